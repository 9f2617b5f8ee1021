package store

import (
	"context"

	"github.com/RushiPardeshi/agent-marketplace/internal/market"
	"github.com/RushiPardeshi/agent-marketplace/pkg/observability"
)

// Instrumented wraps a Repository and counts every operation by outcome.
type Instrumented struct {
	inner Repository
}

// NewInstrumented wraps inner with operation metrics.
func NewInstrumented(inner Repository) *Instrumented {
	return &Instrumented{inner: inner}
}

func record(operation string, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	observability.RecordStoreOperation(operation, status)
}

// SaveSession implements Repository.
func (i *Instrumented) SaveSession(ctx context.Context, s *market.Session) error {
	err := i.inner.SaveSession(ctx, s)
	record("save_session", err)
	return err
}

// GetSession implements Repository.
func (i *Instrumented) GetSession(ctx context.Context, id string) (*market.Session, error) {
	s, err := i.inner.GetSession(ctx, id)
	record("get_session", err)
	return s, err
}

// DeleteSession implements Repository.
func (i *Instrumented) DeleteSession(ctx context.Context, id string) error {
	err := i.inner.DeleteSession(ctx, id)
	record("delete_session", err)
	return err
}

// ListSessions implements Repository.
func (i *Instrumented) ListSessions(ctx context.Context) ([]string, error) {
	ids, err := i.inner.ListSessions(ctx)
	record("list_sessions", err)
	return ids, err
}

// SaveListing implements Repository.
func (i *Instrumented) SaveListing(ctx context.Context, l *market.Listing) error {
	err := i.inner.SaveListing(ctx, l)
	record("save_listing", err)
	return err
}

// GetListing implements Repository.
func (i *Instrumented) GetListing(ctx context.Context, id string) (*market.Listing, error) {
	l, err := i.inner.GetListing(ctx, id)
	record("get_listing", err)
	return l, err
}

// Close implements Repository.
func (i *Instrumented) Close() error {
	return i.inner.Close()
}
