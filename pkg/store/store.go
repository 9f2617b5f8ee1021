// Package store provides pluggable persistence for marketplace sessions
// and the listing catalog. The engine treats a Repository as synchronous
// load/store with no side effects beyond the state passed in; backends
// cover in-memory, file, Redis, and Firestore deployments.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/RushiPardeshi/agent-marketplace/internal/market"
)

// ErrStoreClosed is returned when operating on a closed backend.
var ErrStoreClosed = errors.New("store is closed")

// Repository abstracts session and listing persistence.
// Implementations must be safe for concurrent use.
type Repository interface {
	// SaveSession creates or replaces a session.
	SaveSession(ctx context.Context, s *market.Session) error

	// GetSession retrieves a session by ID.
	// Returns market.ErrSessionNotFound if it doesn't exist.
	GetSession(ctx context.Context, id string) (*market.Session, error)

	// DeleteSession removes a session. Deleting a missing session is not
	// an error.
	DeleteSession(ctx context.Context, id string) error

	// ListSessions returns all stored session IDs.
	ListSessions(ctx context.Context) ([]string, error)

	// SaveListing adds or replaces a catalog listing.
	SaveListing(ctx context.Context, l *market.Listing) error

	// GetListing retrieves a catalog listing by ID.
	// Returns market.ErrListingNotFound if it doesn't exist.
	GetListing(ctx context.Context, id string) (*market.Listing, error)

	// Close releases any resources held by the backend.
	Close() error
}

// CloneSession deep-copies a session through its JSON encoding, so
// callers never share mutable state with a backend's internal copy.
func CloneSession(s *market.Session) (*market.Session, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("encode session: %w", err)
	}
	var out market.Session
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	return &out, nil
}
