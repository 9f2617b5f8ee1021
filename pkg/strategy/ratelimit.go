package strategy

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"
)

// RateLimited wraps a strategist with a token-bucket limiter so that
// automated sessions do not exceed a provider's request quota.
type RateLimited struct {
	inner   Strategist
	limiter *rate.Limiter
}

// NewRateLimited wraps inner, allowing proposalsPerSecond sustained calls
// with the given burst.
func NewRateLimited(inner Strategist, proposalsPerSecond float64, burst int) *RateLimited {
	if burst <= 0 {
		burst = 1
	}
	return &RateLimited{
		inner:   inner,
		limiter: rate.NewLimiter(rate.Limit(proposalsPerSecond), burst),
	}
}

// Propose implements Strategist, blocking until the limiter admits the
// call or the context is canceled.
func (r *RateLimited) Propose(ctx context.Context, nc Context) (Proposal, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return Proposal{}, fmt.Errorf("proposal rate limit: %w", err)
	}
	return r.inner.Propose(ctx, nc)
}
