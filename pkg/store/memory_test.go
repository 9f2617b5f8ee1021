package store

import (
	"context"
	"testing"
	"time"

	"github.com/RushiPardeshi/agent-marketplace/internal/market"
)

func sampleSession(id string) *market.Session {
	now := time.Now().UTC().Truncate(time.Second)
	return &market.Session{
		ID: id,
		Buyers: map[string]*market.Participant{
			"b1": {AgentID: "b1", Role: market.RoleBuyer, Bound: 1100, Active: true},
		},
		Sellers: map[string]*market.Participant{
			"s1": {AgentID: "s1", Role: market.RoleSeller, Bound: 900, ListingID: "laptop", Active: true},
		},
		Listings: map[string]*market.Listing{
			"laptop": {ID: "laptop", Title: "MacBook Pro 2021 (14-inch)", Price: 1200},
		},
		Negotiations: map[string]*market.Negotiation{},
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

func TestMemorySessionRoundTrip(t *testing.T) {
	m := NewMemory()
	defer func() { _ = m.Close() }()
	ctx := context.Background()

	if _, err := m.GetSession(ctx, "missing"); err != market.ErrSessionNotFound {
		t.Errorf("expected ErrSessionNotFound, got %v", err)
	}

	s := sampleSession("sess-1")
	if err := m.SaveSession(ctx, s); err != nil {
		t.Fatalf("SaveSession() error = %v", err)
	}

	got, err := m.GetSession(ctx, "sess-1")
	if err != nil {
		t.Fatalf("GetSession() error = %v", err)
	}
	if got.ID != "sess-1" || len(got.Buyers) != 1 || got.Listings["laptop"].Price != 1200 {
		t.Errorf("unexpected session: %+v", got)
	}
}

func TestMemoryIsolatesCallers(t *testing.T) {
	m := NewMemory()
	defer func() { _ = m.Close() }()
	ctx := context.Background()

	s := sampleSession("sess-1")
	if err := m.SaveSession(ctx, s); err != nil {
		t.Fatal(err)
	}

	// Mutating the caller's copy must not leak into the store.
	s.Buyers["b1"].Active = false

	got, err := m.GetSession(ctx, "sess-1")
	if err != nil {
		t.Fatal(err)
	}
	if !got.Buyers["b1"].Active {
		t.Error("store must hold its own copy of saved sessions")
	}

	// And mutating a loaded copy must not affect later loads.
	got.Buyers["b1"].Bound = 1
	again, err := m.GetSession(ctx, "sess-1")
	if err != nil {
		t.Fatal(err)
	}
	if again.Buyers["b1"].Bound != 1100 {
		t.Error("loaded sessions must be independent copies")
	}
}

func TestMemoryDeleteAndList(t *testing.T) {
	m := NewMemory()
	defer func() { _ = m.Close() }()
	ctx := context.Background()

	for _, id := range []string{"a", "b"} {
		if err := m.SaveSession(ctx, sampleSession(id)); err != nil {
			t.Fatal(err)
		}
	}

	ids, err := m.ListSessions(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(ids) != 2 {
		t.Errorf("expected 2 sessions, got %v", ids)
	}

	if err := m.DeleteSession(ctx, "a"); err != nil {
		t.Fatal(err)
	}
	// Deleting a missing session is not an error.
	if err := m.DeleteSession(ctx, "a"); err != nil {
		t.Errorf("double delete should be a no-op, got %v", err)
	}

	if _, err := m.GetSession(ctx, "a"); err != market.ErrSessionNotFound {
		t.Errorf("expected ErrSessionNotFound after delete, got %v", err)
	}
}

func TestMemoryListings(t *testing.T) {
	m := NewMemory()
	defer func() { _ = m.Close() }()
	ctx := context.Background()

	if _, err := m.GetListing(ctx, "laptop"); err != market.ErrListingNotFound {
		t.Errorf("expected ErrListingNotFound, got %v", err)
	}

	l := &market.Listing{ID: "laptop", Title: "MacBook Pro 2021 (14-inch)", Price: 1200}
	if err := m.SaveListing(ctx, l); err != nil {
		t.Fatal(err)
	}
	got, err := m.GetListing(ctx, "laptop")
	if err != nil {
		t.Fatal(err)
	}
	if got.Price != 1200 {
		t.Errorf("unexpected listing: %+v", got)
	}
}

func TestMemoryClosed(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	if err := m.Close(); err != nil {
		t.Fatal(err)
	}
	if err := m.SaveSession(ctx, sampleSession("x")); err != ErrStoreClosed {
		t.Errorf("expected ErrStoreClosed, got %v", err)
	}
	if _, err := m.GetSession(ctx, "x"); err != ErrStoreClosed {
		t.Errorf("expected ErrStoreClosed, got %v", err)
	}
}
