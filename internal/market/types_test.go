package market

import "testing"

func TestRoleCounterpart(t *testing.T) {
	if RoleBuyer.Counterpart() != RoleSeller {
		t.Error("buyer's counterpart should be seller")
	}
	if RoleSeller.Counterpart() != RoleBuyer {
		t.Error("seller's counterpart should be buyer")
	}
}

func TestStatusTerminal(t *testing.T) {
	tests := []struct {
		status Status
		want   bool
	}{
		{StatusActive, false},
		{StatusAgreed, true},
		{StatusDeadlock, true},
		{StatusSwitched, true},
	}
	for _, tt := range tests {
		if got := tt.status.Terminal(); got != tt.want {
			t.Errorf("%s.Terminal() = %v, want %v", tt.status, got, tt.want)
		}
	}
}

func TestLeverageRank(t *testing.T) {
	if LeverageLow.Rank() >= LeverageMedium.Rank() || LeverageMedium.Rank() >= LeverageHigh.Rank() {
		t.Error("leverage ranks must be strictly ordered low < medium < high")
	}
}

func TestNextRole(t *testing.T) {
	neg := &Negotiation{Status: StatusActive}

	if neg.NextRole() != RoleBuyer {
		t.Fatal("buyer must open the negotiation")
	}

	neg.Turns = append(neg.Turns, Turn{Role: RoleBuyer, Offer: 900})
	if neg.NextRole() != RoleSeller {
		t.Fatal("seller responds to the buyer")
	}

	neg.Turns = append(neg.Turns, Turn{Role: RoleSeller, Offer: 1100})
	if neg.NextRole() != RoleBuyer {
		t.Fatal("alternation returns to the buyer")
	}

	// A system turn does not consume a slot in the alternation.
	neg.Turns = append(neg.Turns, Turn{Role: RoleSystem, Offer: 1000})
	if neg.NextRole() != RoleBuyer {
		t.Fatal("system turns must not shift the alternation")
	}
}

func TestLastOpposingIncludesSystemTurns(t *testing.T) {
	neg := &Negotiation{
		Status: StatusActive,
		Turns: []Turn{
			{Role: RoleBuyer, Offer: 900},
			{Role: RoleSeller, Offer: 1100},
			{Role: RoleSystem, Offer: 1000},
		},
	}

	got, ok := neg.LastOpposing(RoleBuyer)
	if !ok || got != 1000 {
		t.Errorf("buyer should respond to the system offer 1000, got %v", got)
	}
	got, ok = neg.LastOpposing(RoleSeller)
	if !ok || got != 1000 {
		t.Errorf("seller should respond to the system offer 1000, got %v", got)
	}
}

func TestOfferHistory(t *testing.T) {
	neg := &Negotiation{
		Turns: []Turn{
			{Role: RoleBuyer, Offer: 900},
			{Role: RoleSeller, Offer: 1150},
			{Role: RoleBuyer, Offer: 950},
		},
	}

	got := neg.OfferHistory(RoleBuyer)
	if len(got) != 2 || got[0] != 900 || got[1] != 950 {
		t.Errorf("unexpected buyer history: %v", got)
	}
}

func TestParticipantInterested(t *testing.T) {
	open := &Participant{AgentID: "b1", Role: RoleBuyer}
	if !open.Interested("anyone") {
		t.Error("empty interest list means interested in every seller")
	}

	narrow := &Participant{AgentID: "b2", Role: RoleBuyer, Interests: []string{"s1"}}
	if !narrow.Interested("s1") || narrow.Interested("s2") {
		t.Error("explicit interest list must be respected")
	}
}

func TestSessionRefreshMarket(t *testing.T) {
	s := &Session{
		Buyers: map[string]*Participant{
			"b1": {AgentID: "b1", Active: true},
			"b2": {AgentID: "b2", Active: false},
		},
		Sellers: map[string]*Participant{
			"s1": {AgentID: "s1", Active: true},
			"s2": {AgentID: "s2", Active: true},
		},
		Negotiations: map[string]*Negotiation{
			"n1": {Status: StatusActive},
			"n2": {Status: StatusAgreed},
		},
	}

	s.RefreshMarket()

	if s.Market.ActiveBuyers != 1 || s.Market.ActiveSellers != 2 || s.Market.ActiveNegotiations != 1 {
		t.Errorf("unexpected market context: %+v", s.Market)
	}
}

func TestActiveNegotiationsFor(t *testing.T) {
	s := &Session{
		Negotiations: map[string]*Negotiation{
			"n1": {BuyerID: "b1", SellerID: "s1", Status: StatusActive},
			"n2": {BuyerID: "b1", SellerID: "s2", Status: StatusDeadlock},
			"n3": {BuyerID: "b2", SellerID: "s1", Status: StatusActive},
		},
	}

	if got := len(s.ActiveNegotiationsFor("b1")); got != 1 {
		t.Errorf("expected 1 active negotiation for b1, got %d", got)
	}
	if got := len(s.ActiveNegotiationsFor("s1")); got != 2 {
		t.Errorf("expected 2 active negotiations for s1, got %d", got)
	}
}
