package leverage

import (
	"math"
	"testing"

	"github.com/RushiPardeshi/agent-marketplace/internal/market"
)

func TestCalculatorTier(t *testing.T) {
	calc := NewCalculator(0)

	tests := []struct {
		name         string
		alternatives int
		want         market.Leverage
	}{
		{"no alternatives", 0, market.LeverageLow},
		{"negative treated as none", -1, market.LeverageLow},
		{"one alternative", 1, market.LeverageMedium},
		{"two alternatives", 2, market.LeverageMedium},
		{"at cutoff", 3, market.LeverageHigh},
		{"above cutoff", 10, market.LeverageHigh},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := calc.Tier(tt.alternatives); got != tt.want {
				t.Errorf("Tier(%d) = %s, want %s", tt.alternatives, got, tt.want)
			}
		})
	}
}

func TestCalculatorCustomCutoff(t *testing.T) {
	calc := NewCalculator(5)
	if got := calc.Tier(4); got != market.LeverageMedium {
		t.Errorf("Tier(4) with cutoff 5 = %s, want medium", got)
	}
	if got := calc.Tier(5); got != market.LeverageHigh {
		t.Errorf("Tier(5) with cutoff 5 = %s, want high", got)
	}
}

// A lone buyer facing a popular seller: no competing sellers gives the
// buyer low leverage, five interested buyers give the seller high.
func TestTiersFromMarketCounts(t *testing.T) {
	calc := NewCalculator(0)

	if got := calc.ForBuyer(0); got != market.LeverageLow {
		t.Errorf("ForBuyer(0) = %s, want low", got)
	}
	if got := calc.ForSeller(5); got != market.LeverageHigh {
		t.Errorf("ForSeller(5) = %s, want high", got)
	}
}

func TestSellerTarget(t *testing.T) {
	tests := []struct {
		name    string
		min     float64
		listing float64
		lev     market.Leverage
		want    float64
	}{
		{"high leverage anchors near listing", 900, 1200, market.LeverageHigh, 1155},
		{"medium leverage anchors midway", 900, 1200, market.LeverageMedium, 1080},
		{"low leverage anchors near floor", 900, 1200, market.LeverageLow, 1005},
		{"degenerate range", 500, 500, market.LeverageHigh, 500},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SellerTarget(tt.min, tt.listing, tt.lev)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("SellerTarget(%v, %v, %s) = %v, want %v", tt.min, tt.listing, tt.lev, got, tt.want)
			}
		})
	}
}

func TestSellerTargetStaysInRange(t *testing.T) {
	for _, lev := range []market.Leverage{market.LeverageLow, market.LeverageMedium, market.LeverageHigh} {
		got := SellerTarget(300, 1000, lev)
		if got < 300 || got > 1000 {
			t.Errorf("SellerTarget out of [min, listing]: %v at %s leverage", got, lev)
		}
	}
}
