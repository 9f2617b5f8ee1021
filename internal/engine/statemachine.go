// Package engine drives one buyer-seller negotiation: turn alternation,
// safeguard enforcement, terminal-state transitions, and the buyer's
// autonomous switch decision.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/RushiPardeshi/agent-marketplace/internal/market"
	"github.com/RushiPardeshi/agent-marketplace/internal/safeguard"
	"github.com/RushiPardeshi/agent-marketplace/pkg/strategy"
)

// SystemAgentID marks engine-generated turns.
const SystemAgentID = "system"

// Parties bundles the fixed participants of one negotiation.
type Parties struct {
	Buyer   *market.Participant
	Seller  *market.Participant
	Listing *market.Listing
}

// Machine advances negotiations one turn at a time. A Machine holds no
// per-negotiation state; all state lives on the Negotiation record, so a
// single Machine serves every negotiation in a session.
//
// Turns within one negotiation are strictly sequential: the caller must
// not invoke ExecuteTurn concurrently for the same negotiation.
type Machine struct {
	guard *safeguard.Safeguard
	now   func() time.Time
}

// New returns a Machine using the given safeguard.
func New(guard *safeguard.Safeguard) *Machine {
	return &Machine{guard: guard, now: time.Now}
}

// ExecuteTurn computes and commits the next turn of the negotiation.
// Querying the strategist is the unique suspension point; everything
// after the proposal returns is deterministic. The returned turn is nil
// when the negotiation transitioned to a terminal state without
// recording one (round budget exhausted, convergence failure).
func (m *Machine) ExecuteTurn(ctx context.Context, neg *market.Negotiation, parties Parties, st strategy.Strategist, mctx market.Context) (*market.Turn, error) {
	if neg.Terminal() {
		return nil, market.ErrStaleNegotiation
	}
	if neg.Round() >= neg.MaxRounds {
		m.transition(neg, market.StatusDeadlock, "round budget exhausted")
		return nil, nil
	}

	role := neg.NextRole()
	actor, bound := parties.Buyer, parties.Buyer.Bound
	lev := neg.BuyerLeverage
	if role == market.RoleSeller {
		actor, bound = parties.Seller, parties.Seller.Bound
		lev = neg.SellerLeverage
	}
	if !actor.Active {
		return nil, fmt.Errorf("agent %s: %w", actor.AgentID, market.ErrAlreadyInactive)
	}

	opposing, ok := neg.LastOpposing(role)
	if !ok {
		// The buyer opens by responding to the listing price.
		opposing = parties.Listing.Price
	}

	nc := strategy.Context{
		Role:              role,
		AgentID:           actor.AgentID,
		Bound:             bound,
		Leverage:          lev,
		Round:             neg.Round() + 1,
		RoundsLeft:        neg.MaxRounds - neg.Round(),
		ListingPrice:      parties.Listing.Price,
		ListingTitle:      parties.Listing.Title,
		LastOpposingOffer: opposing,
		Turns:             neg.Turns,
		Market:            mctx,
	}
	if role == market.RoleSeller {
		nc.SellerTarget = neg.SellerTarget
	}

	tctx, span := otel.Tracer("engine").Start(ctx, "negotiation.turn")
	span.SetAttributes(
		attribute.String("negotiation.id", neg.ID),
		attribute.String("turn.role", string(role)),
		attribute.Int("turn.round", nc.Round),
	)
	proposal, err := st.Propose(tctx, nc)
	span.End()
	if err != nil {
		return nil, fmt.Errorf("strategist %s: %w", actor.AgentID, err)
	}

	verdict, err := m.guard.Validate(neg, role, actor.AgentID, bound, parties.Listing.Price, proposal.Offer)
	if errors.Is(err, market.ErrInvalidOffer) {
		// The raw proposal violated the actor's own bound. Fall back to
		// the last valid position (or the bound itself on an opening
		// turn) rather than aborting the negotiation.
		log.Printf("[Engine] %s: %v, falling back", neg.ID, err)
		fallbackOffer, okPrev := neg.LastOffer(role)
		if !okPrev {
			fallbackOffer = bound
		}
		// An out-of-bound acceptance is no acceptance at all.
		proposal.Accept = false
		verdict, err = m.guard.Validate(neg, role, actor.AgentID, bound, parties.Listing.Price, fallbackOffer)
	}
	if err != nil {
		return nil, err
	}

	if verdict.Deadlock {
		m.transition(neg, market.StatusDeadlock, "failed to converge after final offer")
		return nil, nil
	}

	message := proposal.Message
	if verdict.Clamped && message == "" {
		message = "Holding my position."
	}
	if proposal.Accept || verdict.Accepts {
		message = proposal.Message
		if message == "" {
			message = fmt.Sprintf("Deal at %.2f.", verdict.Offer)
		}
	}

	turn := market.Turn{
		Round:         neg.Round() + 1,
		NegotiationID: neg.ID,
		AgentID:       actor.AgentID,
		Role:          role,
		Offer:         verdict.Offer,
		Message:       message,
		Timestamp:     m.now().UTC(),
	}
	neg.Turns = append(neg.Turns, turn)
	neg.UpdatedAt = turn.Timestamp

	if proposal.Accept || verdict.Accepts {
		neg.FinalPrice = verdict.Offer
		m.transition(neg, market.StatusAgreed, fmt.Sprintf("%s accepted the offer", role))
		return &turn, nil
	}

	if m.guard.Observe(neg, role, verdict.Offer, parties.Listing.Price) {
		m.concludeStalled(neg, parties)
		return &turn, nil
	}

	if neg.Round() >= neg.MaxRounds {
		m.transition(neg, market.StatusDeadlock, "round budget exhausted")
	}
	return &turn, nil
}

// concludeStalled handles a freshly raised final-offer flag: when the
// parties' bounds overlap, a system turn proposes the clamped midpoint
// for either side to accept; otherwise no agreement is possible.
func (m *Machine) concludeStalled(neg *market.Negotiation, parties Parties) {
	price, ok := m.guard.FinalOfferPrice(neg, parties.Seller.Bound, parties.Buyer.Bound)
	if !ok {
		m.transition(neg, market.StatusDeadlock, "non-overlapping constraints")
		return
	}
	if neg.Round() >= neg.MaxRounds {
		m.transition(neg, market.StatusDeadlock, "round budget exhausted")
		return
	}

	turn := market.Turn{
		Round:         neg.Round() + 1,
		NegotiationID: neg.ID,
		AgentID:       SystemAgentID,
		Role:          market.RoleSystem,
		Offer:         price,
		Message:       "Final offer to conclude the negotiation. Both parties have reached their positions.",
		Timestamp:     m.now().UTC(),
	}
	neg.Turns = append(neg.Turns, turn)
	neg.UpdatedAt = turn.Timestamp
}

// Switch transitions an active negotiation to switched. Used for both
// explicit switch commands and autonomous switch decisions.
func (m *Machine) Switch(neg *market.Negotiation, reason string) error {
	if neg.Terminal() {
		return market.ErrStaleNegotiation
	}
	m.transition(neg, market.StatusSwitched, reason)
	return nil
}

// ForceTerminate ends an active negotiation during the finality cascade.
func (m *Machine) ForceTerminate(neg *market.Negotiation, status market.Status, reason string) {
	if neg.Terminal() {
		return
	}
	m.transition(neg, status, reason)
}

// transition applies a one-way terminal transition.
func (m *Machine) transition(neg *market.Negotiation, status market.Status, reason string) {
	neg.Status = status
	neg.Reason = reason
	neg.UpdatedAt = m.now().UTC()
}
