package leverage

import (
	"github.com/RushiPardeshi/agent-marketplace/internal/market"
)

// Default patience parameters.
const (
	DefaultBaseRounds    = 10
	DefaultRoundStep     = 2
	DefaultMinRounds     = 4
	DefaultMaxRounds     = 20
)

// Scheduler derives the round budget of a negotiation from both sides'
// leverage tiers. Deterministic and symmetric: swapping the two tiers
// yields the same budget.
type Scheduler struct {
	base  int
	step  int
	floor int
	ceil  int
}

// NewScheduler returns a Scheduler with the given parameters.
// Non-positive values fall back to the defaults.
func NewScheduler(base, step, floor, ceil int) *Scheduler {
	if base <= 0 {
		base = DefaultBaseRounds
	}
	if step <= 0 {
		step = DefaultRoundStep
	}
	if floor <= 0 {
		floor = DefaultMinRounds
	}
	if ceil <= 0 {
		ceil = DefaultMaxRounds
	}
	return &Scheduler{base: base, step: step, floor: floor, ceil: ceil}
}

// MaxRounds returns the round budget for a negotiation between sides with
// the given leverage tiers. Each high-leverage side can afford to wait and
// removes one step from the budget, pressuring the counterparty; each
// low-leverage side adds one step. The result is clamped to
// [floor, ceiling].
func (s *Scheduler) MaxRounds(buyer, seller market.Leverage) int {
	rounds := s.base
	rounds += s.step * (1 - buyer.Rank())
	rounds += s.step * (1 - seller.Rank())
	if rounds < s.floor {
		return s.floor
	}
	if rounds > s.ceil {
		return s.ceil
	}
	return rounds
}
