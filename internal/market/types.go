// Package market defines the data model shared by the negotiation engine:
// listings, participants, turns, negotiations, and the per-session
// marketplace context. The types here are plain data; behavior lives in
// the engine and marketplace packages.
package market

import (
	"time"
)

// Role identifies which side of a negotiation produced a turn.
type Role string

const (
	// RoleBuyer is the purchasing side of a negotiation.
	RoleBuyer Role = "buyer"
	// RoleSeller is the selling side of a negotiation.
	RoleSeller Role = "seller"
	// RoleSystem marks engine-generated turns (final-offer convergence).
	RoleSystem Role = "system"
)

// Counterpart returns the opposing negotiating role.
// RoleSystem has no counterpart and is returned unchanged.
func (r Role) Counterpart() Role {
	switch r {
	case RoleBuyer:
		return RoleSeller
	case RoleSeller:
		return RoleBuyer
	}
	return r
}

// Status is the lifecycle state of a negotiation.
// Transitions are one-way: active -> {agreed, deadlock, switched}.
type Status string

const (
	// StatusActive means the negotiation is still accepting turns.
	StatusActive Status = "active"
	// StatusAgreed means both parties converged on a price.
	StatusAgreed Status = "agreed"
	// StatusDeadlock means the negotiation terminated without agreement.
	StatusDeadlock Status = "deadlock"
	// StatusSwitched means the buyer abandoned this seller for another.
	StatusSwitched Status = "switched"
)

// Terminal reports whether the status is final.
func (s Status) Terminal() bool {
	return s == StatusAgreed || s == StatusDeadlock || s == StatusSwitched
}

// Leverage is a side's structural bargaining advantage, derived from the
// relative scarcity of counterparties.
type Leverage string

const (
	LeverageLow    Leverage = "low"
	LeverageMedium Leverage = "medium"
	LeverageHigh   Leverage = "high"
)

// Rank orders leverage tiers: low=0, medium=1, high=2.
func (l Leverage) Rank() int {
	switch l {
	case LeverageMedium:
		return 1
	case LeverageHigh:
		return 2
	}
	return 0
}

// Listing is an item offered for sale. Immutable once a negotiation
// references it, except for ownership transfer on sale.
type Listing struct {
	ID          string  `json:"id"`
	Title       string  `json:"title"`
	Description string  `json:"description,omitempty"`
	Price       float64 `json:"price"`
	Category    string  `json:"category,omitempty"`
	// SoldTo records the buyer after a deal; empty while unsold.
	SoldTo string `json:"soldTo,omitempty"`
}

// Participant is one negotiating agent within a session.
// The price bound is a maximum for buyers and a minimum for sellers; the
// seller's bound is never exposed to the buyer side.
type Participant struct {
	AgentID string  `json:"agentId"`
	Role    Role    `json:"role"`
	Bound   float64 `json:"bound"`
	// ListingID is the listing a seller offers. Empty for buyers.
	ListingID string `json:"listingId,omitempty"`
	// Interests lists the seller IDs a buyer is willing to negotiate
	// with, in preference order. Empty for sellers.
	Interests []string `json:"interests,omitempty"`
	// Active flips to false exactly once, on deal completion.
	Active bool `json:"active"`
}

// Interested reports whether sellerID is in the buyer's interest list.
// An empty list means the buyer is open to every seller.
func (p *Participant) Interested(sellerID string) bool {
	if len(p.Interests) == 0 {
		return true
	}
	for _, id := range p.Interests {
		if id == sellerID {
			return true
		}
	}
	return false
}

// Turn is one committed offer in a negotiation. Turns are append-only and
// immutable once recorded.
type Turn struct {
	Round         int       `json:"round"`
	NegotiationID string    `json:"negotiationId"`
	AgentID       string    `json:"agentId"`
	Role          Role      `json:"role"`
	Offer         float64   `json:"offer"`
	Message       string    `json:"message"`
	Timestamp     time.Time `json:"timestamp"`
}

// Negotiation is one buyer-seller pairing and its transcript.
type Negotiation struct {
	ID        string `json:"id"`
	BuyerID   string `json:"buyerId"`
	SellerID  string `json:"sellerId"`
	ListingID string `json:"listingId"`

	BuyerLeverage  Leverage `json:"buyerLeverage"`
	SellerLeverage Leverage `json:"sellerLeverage"`
	// SellerTarget is the seller's internal anchor price, derived from
	// its leverage. Never exposed to the buyer side.
	SellerTarget float64 `json:"sellerTarget"`

	MaxRounds int    `json:"maxRounds"`
	Turns     []Turn `json:"turns"`
	Status    Status `json:"status"`

	FinalPrice float64 `json:"finalPrice,omitempty"`
	Reason     string  `json:"reason,omitempty"`

	// Stall bookkeeping, maintained by the safeguard.
	BuyerStalls  int  `json:"buyerStalls"`
	SellerStalls int  `json:"sellerStalls"`
	FinalOffer   bool `json:"finalOffer"`
	// ConvergenceMisses counts proposals that failed the final-offer
	// constraint after the flag was raised.
	ConvergenceMisses int `json:"convergenceMisses"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Round returns the number of committed turns.
func (n *Negotiation) Round() int {
	return len(n.Turns)
}

// Terminal reports whether the negotiation reached a final status.
func (n *Negotiation) Terminal() bool {
	return n.Status.Terminal()
}

// NextRole returns the side expected to act next. The buyer opens every
// negotiation, responding to the listing price; system turns do not
// consume a slot in the alternation.
func (n *Negotiation) NextRole() Role {
	for i := len(n.Turns) - 1; i >= 0; i-- {
		switch n.Turns[i].Role {
		case RoleBuyer:
			return RoleSeller
		case RoleSeller:
			return RoleBuyer
		}
	}
	return RoleBuyer
}

// LastOffer returns the most recent offer made by the given role.
func (n *Negotiation) LastOffer(role Role) (float64, bool) {
	for i := len(n.Turns) - 1; i >= 0; i-- {
		if n.Turns[i].Role == role {
			return n.Turns[i].Offer, true
		}
	}
	return 0, false
}

// LastOpposing returns the most recent offer the given role must respond
// to: the latest turn made by any other party, including system turns.
func (n *Negotiation) LastOpposing(role Role) (float64, bool) {
	for i := len(n.Turns) - 1; i >= 0; i-- {
		if n.Turns[i].Role != role {
			return n.Turns[i].Offer, true
		}
	}
	return 0, false
}

// OfferHistory returns all offers made by the given role, in order.
func (n *Negotiation) OfferHistory(role Role) []float64 {
	var offers []float64
	for _, t := range n.Turns {
		if t.Role == role {
			offers = append(offers, t.Offer)
		}
	}
	return offers
}

// Context is the live view of the marketplace used to compute leverage.
type Context struct {
	ActiveBuyers       int `json:"activeBuyers"`
	ActiveSellers      int `json:"activeSellers"`
	ActiveNegotiations int `json:"activeNegotiations"`
	// RecentPrices holds prices of recently agreed deals, oldest first.
	RecentPrices []float64 `json:"recentPrices,omitempty"`
}

// Session holds the participants, listings, and negotiations of one
// marketplace instance.
type Session struct {
	ID           string                  `json:"id"`
	Buyers       map[string]*Participant `json:"buyers"`
	Sellers      map[string]*Participant `json:"sellers"`
	Listings     map[string]*Listing     `json:"listings"`
	Negotiations map[string]*Negotiation `json:"negotiations"`
	Market       Context                 `json:"market"`
	CreatedAt    time.Time               `json:"createdAt"`
	UpdatedAt    time.Time               `json:"updatedAt"`
}

// Participant looks up an agent in either role map.
func (s *Session) Participant(agentID string) (*Participant, bool) {
	if p, ok := s.Buyers[agentID]; ok {
		return p, true
	}
	if p, ok := s.Sellers[agentID]; ok {
		return p, true
	}
	return nil, false
}

// ActiveNegotiationsFor returns the active negotiations referencing the
// given agent as either party.
func (s *Session) ActiveNegotiationsFor(agentID string) []*Negotiation {
	var out []*Negotiation
	for _, n := range s.Negotiations {
		if n.Status != StatusActive {
			continue
		}
		if n.BuyerID == agentID || n.SellerID == agentID {
			out = append(out, n)
		}
	}
	return out
}

// RefreshMarket recomputes the derived marketplace counts.
func (s *Session) RefreshMarket() {
	buyers, sellers, active := 0, 0, 0
	for _, b := range s.Buyers {
		if b.Active {
			buyers++
		}
	}
	for _, sl := range s.Sellers {
		if sl.Active {
			sellers++
		}
	}
	for _, n := range s.Negotiations {
		if n.Status == StatusActive {
			active++
		}
	}
	s.Market.ActiveBuyers = buyers
	s.Market.ActiveSellers = sellers
	s.Market.ActiveNegotiations = active
}
