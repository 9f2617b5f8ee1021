package engine

import (
	"fmt"

	"github.com/RushiPardeshi/agent-marketplace/internal/market"
)

// Default switch-policy thresholds. All are configurable constants, not
// hard invariants.
const (
	// DefaultStuckRounds is how many consecutive unchanged seller offers
	// trigger a switch.
	DefaultStuckRounds = 3
	// DefaultOverboundRatio is how far above the buyer's bound the
	// seller's offer must sit, combined with a shrinking round budget.
	DefaultOverboundRatio = 0.15
	// DefaultBuyerConcession is the fraction of the buyer's bargaining
	// room conceded that counts as heavy concession.
	DefaultBuyerConcession = 0.5
	// DefaultSellerConcession is the fraction of the listing price the
	// seller must have moved for its concession to count as material.
	DefaultSellerConcession = 0.1
)

// SwitchPolicy decides, after a seller turn, whether the buyer should
// abandon the current negotiation for another interested seller.
type SwitchPolicy struct {
	StuckRounds      int
	OverboundRatio   float64
	BuyerConcession  float64
	SellerConcession float64
}

// NewSwitchPolicy returns a policy with the default thresholds.
func NewSwitchPolicy() *SwitchPolicy {
	return &SwitchPolicy{
		StuckRounds:      DefaultStuckRounds,
		OverboundRatio:   DefaultOverboundRatio,
		BuyerConcession:  DefaultBuyerConcession,
		SellerConcession: DefaultSellerConcession,
	}
}

// ShouldSwitch evaluates the policy. It returns false unless the
// negotiation is still active and the buyer has at least one other
// seller to turn to. The returned reason names the trigger.
func (p *SwitchPolicy) ShouldSwitch(neg *market.Negotiation, buyer *market.Participant, listing *market.Listing, hasAlternatives bool) (bool, string) {
	if !hasAlternatives || neg.Status != market.StatusActive {
		return false, ""
	}

	// Trigger 1: seller stuck at the same price.
	if neg.SellerStalls >= p.StuckRounds {
		return true, fmt.Sprintf("seller offer unchanged for %d rounds", neg.SellerStalls)
	}

	sellerLast, okS := neg.LastOffer(market.RoleSeller)
	if !okS {
		return false, ""
	}

	// Trigger 2: seller priced far above the buyer's budget with little
	// of the round budget left.
	remaining := neg.MaxRounds - neg.Round()
	if sellerLast >= buyer.Bound*(1+p.OverboundRatio) && remaining < neg.MaxRounds/2 {
		return true, fmt.Sprintf("seller offer %.2f exceeds budget by >=%.0f%% with %d rounds left",
			sellerLast, p.OverboundRatio*100, remaining)
	}

	// Trigger 3: asymmetric concession. The buyer has burned most of its
	// bargaining room while the seller has barely moved.
	buyerOffers := neg.OfferHistory(market.RoleBuyer)
	sellerOffers := neg.OfferHistory(market.RoleSeller)
	if len(buyerOffers) >= 2 && len(sellerOffers) >= 2 {
		room := buyer.Bound - buyerOffers[0]
		if room > 0 {
			buyerConceded := (buyerOffers[len(buyerOffers)-1] - buyerOffers[0]) / room
			sellerConceded := (sellerOffers[0] - sellerOffers[len(sellerOffers)-1]) / listing.Price
			if buyerConceded >= p.BuyerConcession && sellerConceded < p.SellerConcession {
				return true, fmt.Sprintf("asymmetric concession: buyer %.0f%%, seller %.0f%% of listing price",
					buyerConceded*100, sellerConceded*100)
			}
		}
	}

	return false, ""
}
