// Package strategy defines the decision-maker contract consumed by the
// negotiation engine. A Strategist receives a structured view of one
// negotiation and returns a numeric offer plus a short message. The engine
// never trusts the value directly; every proposal passes through the
// offer safeguard before becoming a turn.
//
// Implementations range from live LLM providers (OpenAI, Gemini, Bedrock)
// to deterministic scripted stubs used in tests and an interactive human
// strategist for the CLI.
package strategy

import (
	"context"
	"errors"

	"github.com/RushiPardeshi/agent-marketplace/internal/market"
)

// ErrExhausted is returned by finite strategists that have no further
// scripted offers.
var ErrExhausted = errors.New("strategist has no further offers")

// Context is the structured negotiation view handed to a strategist.
type Context struct {
	// Role is the side this strategist plays.
	Role market.Role
	// AgentID identifies the acting participant.
	AgentID string
	// Bound is the acting side's price limit: max for buyers, min for
	// sellers. The counterpart's bound is never included.
	Bound float64
	// Leverage is the acting side's current leverage tier.
	Leverage market.Leverage
	// Round is the 1-based number of the turn being computed.
	Round int
	// RoundsLeft is the remaining budget before the round cap.
	RoundsLeft int
	// ListingPrice is the public asking price of the listing.
	ListingPrice float64
	// ListingTitle describes the product under negotiation.
	ListingTitle string
	// LastOpposingOffer is the most recent offer the acting side must
	// respond to (the listing price on the opening turn).
	LastOpposingOffer float64
	// SellerTarget is the seller's internal anchor price. Zero for
	// buyers.
	SellerTarget float64
	// Turns is the full transcript so far.
	Turns []market.Turn
	// Market is the live marketplace context.
	Market market.Context
}

// OwnOffers returns the acting side's offers so far, in order.
func (c Context) OwnOffers() []float64 {
	var out []float64
	for _, t := range c.Turns {
		if t.Role == c.Role {
			out = append(out, t.Offer)
		}
	}
	return out
}

// OpposingOffers returns the other parties' offers so far, in order.
func (c Context) OpposingOffers() []float64 {
	var out []float64
	for _, t := range c.Turns {
		if t.Role != c.Role {
			out = append(out, t.Offer)
		}
	}
	return out
}

// Proposal is a strategist's response: an offer and a short free-text
// message. Accept signals explicit acceptance of the opposing offer; the
// engine also treats an offer matching the opposing offer as acceptance.
type Proposal struct {
	Offer   float64 `json:"offer"`
	Message string  `json:"message"`
	Accept  bool    `json:"accept,omitempty"`
}

// Strategist produces one proposal per turn. Implementations must be safe
// for sequential reuse across rounds of one negotiation; the engine never
// calls Propose concurrently for the same negotiation.
type Strategist interface {
	Propose(ctx context.Context, nc Context) (Proposal, error)
}

// Func adapts a plain function to the Strategist interface.
type Func func(ctx context.Context, nc Context) (Proposal, error)

// Propose implements Strategist.
func (f Func) Propose(ctx context.Context, nc Context) (Proposal, error) {
	return f(ctx, nc)
}
