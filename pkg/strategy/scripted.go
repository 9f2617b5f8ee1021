package strategy

import (
	"context"
	"fmt"
	"math"
	"sync"

	"github.com/RushiPardeshi/agent-marketplace/internal/market"
)

// Scripted is a deterministic strategist that replays a fixed sequence of
// offers. Once the script is exhausted it accepts the opposing offer.
// Scripted exists so the engine can be exercised without any live
// generation step.
type Scripted struct {
	mu     sync.Mutex
	offers []float64
	next   int
}

// NewScripted returns a strategist that proposes the given offers in
// order, then accepts.
func NewScripted(offers ...float64) *Scripted {
	return &Scripted{offers: offers}
}

// Propose implements Strategist.
func (s *Scripted) Propose(ctx context.Context, nc Context) (Proposal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.next >= len(s.offers) {
		return Proposal{
			Offer:   nc.LastOpposingOffer,
			Message: "Deal, I accept.",
			Accept:  true,
		}, nil
	}
	offer := s.offers[s.next]
	s.next++
	return Proposal{
		Offer:   offer,
		Message: fmt.Sprintf("My offer is %.2f.", offer),
	}, nil
}

// Rule is a deterministic strategist that concedes a fixed step from the
// opposing offer each round, within its bound: a buyer opens at Opening
// and then offers min(bound, opposing-Step); a seller opens at Opening
// and then offers max(bound, opposing+Step).
type Rule struct {
	Opening float64
	Step    float64
	opened  bool
	mu      sync.Mutex
}

// NewRule returns a rule-based strategist.
func NewRule(opening, step float64) *Rule {
	return &Rule{Opening: opening, Step: step}
}

// Propose implements Strategist.
func (r *Rule) Propose(ctx context.Context, nc Context) (Proposal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.opened {
		r.opened = true
		opening := r.Opening
		if opening == 0 {
			// Anchor off the listing when no opening was configured.
			if nc.Role == market.RoleBuyer {
				opening = math.Min(nc.Bound, nc.ListingPrice*0.75)
			} else {
				opening = nc.ListingPrice
			}
		}
		return Proposal{Offer: opening, Message: fmt.Sprintf("Opening at %.2f.", opening)}, nil
	}

	step := r.Step
	if step == 0 {
		step = nc.ListingPrice * 0.05
	}

	var offer float64
	switch nc.Role {
	case market.RoleBuyer:
		offer = nc.LastOpposingOffer - step
		if offer > nc.Bound {
			offer = nc.Bound
		}
	case market.RoleSeller:
		offer = nc.LastOpposingOffer + step
		if offer < nc.Bound {
			offer = nc.Bound
		}
	default:
		return Proposal{}, fmt.Errorf("rule strategist: unsupported role %q", nc.Role)
	}
	return Proposal{Offer: offer, Message: fmt.Sprintf("I can do %.2f.", offer)}, nil
}
