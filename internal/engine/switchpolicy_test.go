package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/RushiPardeshi/agent-marketplace/internal/market"
)

func switchFixture(turns ...market.Turn) (*market.Negotiation, *market.Participant, *market.Listing) {
	neg := testNegotiation(10)
	neg.Turns = turns
	buyer := &market.Participant{AgentID: "b1", Role: market.RoleBuyer, Bound: 1000, Active: true}
	listing := &market.Listing{ID: "l1", Price: 1200}
	return neg, buyer, listing
}

func TestShouldSwitchStuckSeller(t *testing.T) {
	p := NewSwitchPolicy()
	neg, buyer, listing := switchFixture(
		market.Turn{Role: market.RoleBuyer, Offer: 900},
		market.Turn{Role: market.RoleSeller, Offer: 1150},
	)
	neg.SellerStalls = 3

	ok, reason := p.ShouldSwitch(neg, buyer, listing, true)
	assert.True(t, ok)
	assert.Contains(t, reason, "unchanged")
}

func TestShouldSwitchNeedsAlternatives(t *testing.T) {
	p := NewSwitchPolicy()
	neg, buyer, listing := switchFixture()
	neg.SellerStalls = 5

	ok, _ := p.ShouldSwitch(neg, buyer, listing, false)
	assert.False(t, ok, "no switch without another seller to turn to")
}

func TestShouldSwitchIgnoresTerminal(t *testing.T) {
	p := NewSwitchPolicy()
	neg, buyer, listing := switchFixture()
	neg.SellerStalls = 5
	neg.Status = market.StatusAgreed

	ok, _ := p.ShouldSwitch(neg, buyer, listing, true)
	assert.False(t, ok)
}

func TestShouldSwitchOverpricedLateGame(t *testing.T) {
	p := NewSwitchPolicy()

	// Seller at 1150 is 15% over the buyer's 1000 bound; 6 of 10 rounds
	// burned leaves fewer than half remaining.
	neg, buyer, listing := switchFixture(
		market.Turn{Role: market.RoleBuyer, Offer: 900},
		market.Turn{Role: market.RoleSeller, Offer: 1160},
		market.Turn{Role: market.RoleBuyer, Offer: 920},
		market.Turn{Role: market.RoleSeller, Offer: 1155},
		market.Turn{Role: market.RoleBuyer, Offer: 940},
		market.Turn{Role: market.RoleSeller, Offer: 1150},
	)

	ok, reason := p.ShouldSwitch(neg, buyer, listing, true)
	assert.True(t, ok)
	assert.Contains(t, reason, "exceeds budget")
}

func TestShouldSwitchAsymmetricConcession(t *testing.T) {
	p := NewSwitchPolicy()

	// The buyer moved from 800 to 950 (75% of its 200 of room); the
	// seller moved 1150 to 1140, under 1% of the listing price. Keep the
	// seller below the overbound trigger.
	neg, buyer, listing := switchFixture(
		market.Turn{Role: market.RoleBuyer, Offer: 800},
		market.Turn{Role: market.RoleSeller, Offer: 1140},
		market.Turn{Role: market.RoleBuyer, Offer: 950},
		market.Turn{Role: market.RoleSeller, Offer: 1130},
	)

	ok, reason := p.ShouldSwitch(neg, buyer, listing, true)
	assert.True(t, ok)
	assert.Contains(t, reason, "asymmetric")
}

func TestShouldSwitchQuietNegotiation(t *testing.T) {
	p := NewSwitchPolicy()

	// Healthy convergence: both sides moving, seller near budget.
	neg, buyer, listing := switchFixture(
		market.Turn{Role: market.RoleBuyer, Offer: 800},
		market.Turn{Role: market.RoleSeller, Offer: 1100},
		market.Turn{Role: market.RoleBuyer, Offer: 850},
		market.Turn{Role: market.RoleSeller, Offer: 1020},
	)

	ok, _ := p.ShouldSwitch(neg, buyer, listing, true)
	assert.False(t, ok)
}
