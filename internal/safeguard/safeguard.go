// Package safeguard is the sole gate through which a proposed offer
// becomes a recorded turn. It enforces price bounds, keeps offers
// monotonic, detects stalls, and drives the final-offer convergence step.
package safeguard

import (
	"math"

	"github.com/RushiPardeshi/agent-marketplace/internal/market"
)

// Default safeguard parameters.
const (
	// DefaultAcceptEpsilon is the absolute tolerance for treating an
	// offer as acceptance of the counterpart's last offer.
	DefaultAcceptEpsilon = 0.01
	// DefaultStallRatio is the fraction of the listing price below which
	// a same-side offer change counts as no movement.
	DefaultStallRatio = 0.005
	// DefaultMinStepRatio is the fraction of the listing price a flagged
	// side must move toward the counterpart per turn.
	DefaultMinStepRatio = 0.02
	// DefaultMaxMisses is the number of flagged proposals that may fail
	// the convergence constraint before the negotiation deadlocks.
	DefaultMaxMisses = 2
	// DefaultStallRounds is the number of consecutive unchanged rounds
	// per side that raises the final-offer flag.
	DefaultStallRounds = 2
)

// Config tunes the safeguard. Zero fields fall back to the defaults.
type Config struct {
	AcceptEpsilon float64
	StallRatio    float64
	MinStepRatio  float64
	MaxMisses     int
	StallRounds   int
}

func (c Config) withDefaults() Config {
	if c.AcceptEpsilon <= 0 {
		c.AcceptEpsilon = DefaultAcceptEpsilon
	}
	if c.StallRatio <= 0 {
		c.StallRatio = DefaultStallRatio
	}
	if c.MinStepRatio <= 0 {
		c.MinStepRatio = DefaultMinStepRatio
	}
	if c.MaxMisses <= 0 {
		c.MaxMisses = DefaultMaxMisses
	}
	if c.StallRounds <= 0 {
		c.StallRounds = DefaultStallRounds
	}
	return c
}

// Safeguard validates proposals against one negotiation's constraints.
// Safe for use from a single goroutine per negotiation, which is the
// engine's scheduling model.
type Safeguard struct {
	cfg Config
}

// New returns a Safeguard with the given configuration.
func New(cfg Config) *Safeguard {
	return &Safeguard{cfg: cfg.withDefaults()}
}

// Verdict is the outcome of validating one proposal.
type Verdict struct {
	// Offer is the value to record, after any clamping.
	Offer float64
	// Clamped is true when the raw proposal was adjusted.
	Clamped bool
	// Accepts is true when the offer matches the opposing side's last
	// offer within the acceptance epsilon.
	Accepts bool
	// Deadlock is true when the proposal exhausted the final-offer
	// convergence allowance; the negotiation must terminate.
	Deadlock bool
}

// Validate checks a raw proposal from the given role against its bound,
// monotonicity, and (when the final-offer flag is set) the convergence
// constraint. Bound violations reject the turn outright; monotonicity
// violations are clamped, never rejected. Validate updates the
// negotiation's convergence-miss counter but records no turn.
func (g *Safeguard) Validate(neg *market.Negotiation, role market.Role, agentID string, bound, listingPrice, offer float64) (Verdict, error) {
	if neg.Terminal() {
		return Verdict{}, market.ErrStaleNegotiation
	}

	// An offer within the acceptance epsilon of the counterpart's last
	// offer is an acceptance. Snap it to that value before the bound
	// check, so a hair of drift past the bound cannot reject a closable
	// deal; the snap only happens when the accepted value itself
	// respects the bound.
	opposing, hasOpposing := neg.LastOpposing(role)
	if hasOpposing && math.Abs(offer-opposing) <= g.cfg.AcceptEpsilon {
		if (role == market.RoleBuyer && opposing <= bound) || (role == market.RoleSeller && opposing >= bound) {
			offer = opposing
		}
	}

	// Bound check: the one violation that rejects instead of clamping.
	if role == market.RoleBuyer && offer > bound {
		return Verdict{}, &market.InvalidOfferError{AgentID: agentID, Role: role, Offer: offer, Bound: bound}
	}
	if role == market.RoleSeller && offer < bound {
		return Verdict{}, &market.InvalidOfferError{AgentID: agentID, Role: role, Offer: offer, Bound: bound}
	}

	v := Verdict{Offer: offer}

	// Monotonicity: buyer offers never decrease, seller offers never
	// increase. The raw proposal is advisory; backward movement is
	// clamped to the previous value.
	if prev, ok := neg.LastOffer(role); ok {
		if role == market.RoleBuyer && v.Offer < prev {
			v.Offer = prev
			v.Clamped = true
		}
		if role == market.RoleSeller && v.Offer > prev {
			v.Offer = prev
			v.Clamped = true
		}
	}

	if hasOpposing && math.Abs(v.Offer-opposing) <= g.cfg.AcceptEpsilon {
		v.Accepts = true
		v.Offer = opposing
		return v, nil
	}

	if neg.FinalOffer && hasOpposing {
		minStep := g.cfg.MinStepRatio * listingPrice
		prev, hasPrev := neg.LastOffer(role)
		moved := hasPrev && math.Abs(v.Offer-prev) >= minStep && towards(role, prev, v.Offer)
		if !moved {
			neg.ConvergenceMisses++
			if neg.ConvergenceMisses >= g.cfg.MaxMisses {
				v.Deadlock = true
				return v, nil
			}
			// Force the minimum step toward the opposing offer,
			// capped by the proposer's bound and the offer itself.
			if hasPrev {
				v.Offer = stepToward(role, prev, opposing, minStep, bound)
				v.Clamped = true
				if math.Abs(v.Offer-opposing) <= g.cfg.AcceptEpsilon {
					v.Accepts = true
					v.Offer = opposing
				}
			}
		}
	}

	return v, nil
}

// Observe updates stall bookkeeping after a turn is committed and raises
// the final-offer flag when both sides have been stuck for the configured
// number of consecutive rounds. Returns true when the flag transitions.
func (g *Safeguard) Observe(neg *market.Negotiation, role market.Role, offer, listingPrice float64) bool {
	stallEps := g.cfg.StallRatio * listingPrice

	history := neg.OfferHistory(role)
	// The committed offer is the last entry; compare against the one
	// before it.
	if len(history) >= 2 && math.Abs(offer-history[len(history)-2]) <= stallEps {
		if role == market.RoleBuyer {
			neg.BuyerStalls++
		} else {
			neg.SellerStalls++
		}
	} else {
		if role == market.RoleBuyer {
			neg.BuyerStalls = 0
		} else {
			neg.SellerStalls = 0
		}
	}

	if !neg.FinalOffer && neg.BuyerStalls >= g.cfg.StallRounds && neg.SellerStalls >= g.cfg.StallRounds {
		neg.FinalOffer = true
		return true
	}
	return false
}

// FinalOfferPrice computes the convergence price proposed by the system
// turn: the midpoint of the two last offers, clamped into the overlap of
// the parties' bounds. The second return is false when the bounds do not
// overlap and no convergence price exists.
func (g *Safeguard) FinalOfferPrice(neg *market.Negotiation, sellerMin, buyerMax float64) (float64, bool) {
	if sellerMin > buyerMax {
		return 0, false
	}
	buyerLast, okB := neg.LastOffer(market.RoleBuyer)
	sellerLast, okS := neg.LastOffer(market.RoleSeller)
	if !okB || !okS {
		return 0, false
	}
	mid := (buyerLast + sellerLast) / 2
	if mid < sellerMin {
		mid = sellerMin
	}
	if mid > buyerMax {
		mid = buyerMax
	}
	return mid, true
}

// towards reports whether moving from prev to next is in the direction of
// the counterpart for the given role.
func towards(role market.Role, prev, next float64) bool {
	if role == market.RoleBuyer {
		return next > prev
	}
	return next < prev
}

// stepToward returns prev moved by step toward target, without crossing
// target or the proposer's bound.
func stepToward(role market.Role, prev, target, step, bound float64) float64 {
	if role == market.RoleBuyer {
		next := prev + step
		if next > target {
			next = target
		}
		if next > bound {
			next = bound
		}
		return next
	}
	next := prev - step
	if next < target {
		next = target
	}
	if next < bound {
		next = bound
	}
	return next
}
