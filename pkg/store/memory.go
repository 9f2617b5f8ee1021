package store

import (
	"context"
	"sync"

	"github.com/RushiPardeshi/agent-marketplace/internal/market"
)

// Memory is an in-memory Repository. It is the default backend for tests
// and single-process runs. Sessions are cloned on both save and load so
// callers cannot mutate stored state behind the repository's back.
type Memory struct {
	mu       sync.RWMutex
	sessions map[string]*market.Session
	listings map[string]*market.Listing
	closed   bool
}

// NewMemory returns an empty in-memory repository.
func NewMemory() *Memory {
	return &Memory{
		sessions: make(map[string]*market.Session),
		listings: make(map[string]*market.Listing),
	}
}

// SaveSession implements Repository.
func (m *Memory) SaveSession(ctx context.Context, s *market.Session) error {
	clone, err := CloneSession(s)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrStoreClosed
	}
	m.sessions[s.ID] = clone
	return nil
}

// GetSession implements Repository.
func (m *Memory) GetSession(ctx context.Context, id string) (*market.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, ErrStoreClosed
	}
	s, ok := m.sessions[id]
	if !ok {
		return nil, market.ErrSessionNotFound
	}
	return CloneSession(s)
}

// DeleteSession implements Repository.
func (m *Memory) DeleteSession(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrStoreClosed
	}
	delete(m.sessions, id)
	return nil
}

// ListSessions implements Repository.
func (m *Memory) ListSessions(ctx context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, ErrStoreClosed
	}
	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	return ids, nil
}

// SaveListing implements Repository.
func (m *Memory) SaveListing(ctx context.Context, l *market.Listing) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrStoreClosed
	}
	cp := *l
	m.listings[l.ID] = &cp
	return nil
}

// GetListing implements Repository.
func (m *Memory) GetListing(ctx context.Context, id string) (*market.Listing, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, ErrStoreClosed
	}
	l, ok := m.listings[id]
	if !ok {
		return nil, market.ErrListingNotFound
	}
	cp := *l
	return &cp, nil
}

// Close implements Repository.
func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}
