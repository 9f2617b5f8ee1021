package strategy

import (
	"context"
	"time"

	"github.com/RushiPardeshi/agent-marketplace/pkg/observability"
)

// Instrumented wraps a Strategist and records how long each proposal
// takes, labeled by provider name.
type Instrumented struct {
	inner    Strategist
	provider string
}

// NewInstrumented wraps inner with proposal-duration metrics.
func NewInstrumented(inner Strategist, provider string) *Instrumented {
	return &Instrumented{inner: inner, provider: provider}
}

// Propose implements Strategist.
func (i *Instrumented) Propose(ctx context.Context, nc Context) (Proposal, error) {
	start := time.Now()
	p, err := i.inner.Propose(ctx, nc)
	observability.RecordProposal(i.provider, time.Since(start))
	return p, err
}
