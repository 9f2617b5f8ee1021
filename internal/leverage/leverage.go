// Package leverage derives bargaining leverage tiers and round budgets
// from marketplace supply and demand. All functions are pure.
package leverage

import (
	"github.com/RushiPardeshi/agent-marketplace/internal/market"
)

// Default tier cutoffs. A side's leverage grows with the number of
// alternatives available to its counterparty.
const (
	// DefaultHighCutoff is the alternative count at which leverage is high.
	DefaultHighCutoff = 3
)

// Calculator maps alternative counts to leverage tiers.
// The zero value is not usable; call NewCalculator.
type Calculator struct {
	highCutoff int
}

// NewCalculator returns a Calculator with the given high-tier cutoff.
// A cutoff below 1 falls back to the default.
func NewCalculator(highCutoff int) *Calculator {
	if highCutoff < 1 {
		highCutoff = DefaultHighCutoff
	}
	return &Calculator{highCutoff: highCutoff}
}

// Tier converts a count of counterparty alternatives into a leverage tier:
// 0 alternatives is low, counts at or above the high cutoff are high,
// everything between is medium.
func (c *Calculator) Tier(alternatives int) market.Leverage {
	switch {
	case alternatives <= 0:
		return market.LeverageLow
	case alternatives >= c.highCutoff:
		return market.LeverageHigh
	default:
		return market.LeverageMedium
	}
}

// ForBuyer computes the buyer's leverage from the number of competing
// sellers available to it.
func (c *Calculator) ForBuyer(competitorSellers int) market.Leverage {
	return c.Tier(competitorSellers)
}

// ForSeller computes the seller's leverage from the number of buyers
// interested in its listing.
func (c *Calculator) ForSeller(interestedBuyers int) market.Leverage {
	return c.Tier(interestedBuyers)
}

// SellerTarget computes the seller's internal anchor price between its
// floor and the listing price. Higher leverage anchors closer to the
// listing price.
func SellerTarget(minPrice, listingPrice float64, lev market.Leverage) float64 {
	var k float64
	switch lev {
	case market.LeverageHigh:
		k = 0.85
	case market.LeverageMedium:
		k = 0.60
	default:
		k = 0.35
	}
	target := minPrice + (listingPrice-minPrice)*k
	if target < minPrice {
		return minPrice
	}
	if target > listingPrice {
		return listingPrice
	}
	return target
}
