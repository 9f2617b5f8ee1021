package store

import (
	"context"
	"testing"
	"time"

	"github.com/RushiPardeshi/agent-marketplace/internal/market"
)

func TestJanitorSweep(t *testing.T) {
	m := NewMemory()
	defer func() { _ = m.Close() }()
	ctx := context.Background()

	// Finished long ago: prunable.
	old := sampleSession("old-done")
	old.Negotiations["n1"] = &market.Negotiation{
		ID: "n1", BuyerID: "b1", SellerID: "s1", ListingID: "laptop",
		Status: market.StatusAgreed,
	}
	old.UpdatedAt = time.Now().Add(-48 * time.Hour)

	// Old but still has an active negotiation: kept.
	busy := sampleSession("old-active")
	busy.Negotiations["n1"] = &market.Negotiation{
		ID: "n1", BuyerID: "b1", SellerID: "s1", ListingID: "laptop",
		Status: market.StatusActive,
	}
	busy.UpdatedAt = time.Now().Add(-48 * time.Hour)

	// Finished but recent: kept until it ages out.
	recent := sampleSession("recent-done")
	recent.Negotiations["n1"] = &market.Negotiation{
		ID: "n1", BuyerID: "b1", SellerID: "s1", ListingID: "laptop",
		Status: market.StatusDeadlock,
	}
	recent.UpdatedAt = time.Now()

	for _, s := range []*market.Session{old, busy, recent} {
		if err := m.SaveSession(ctx, s); err != nil {
			t.Fatal(err)
		}
	}

	j := NewJanitor(m, 24*time.Hour)
	pruned, err := j.Sweep(ctx)
	if err != nil {
		t.Fatalf("Sweep() error = %v", err)
	}
	if pruned != 1 {
		t.Errorf("Sweep() pruned = %d, want 1", pruned)
	}

	if _, err := m.GetSession(ctx, "old-done"); err != market.ErrSessionNotFound {
		t.Errorf("old finished session should be pruned, got %v", err)
	}
	if _, err := m.GetSession(ctx, "old-active"); err != nil {
		t.Errorf("session with active negotiation must survive, got %v", err)
	}
	if _, err := m.GetSession(ctx, "recent-done"); err != nil {
		t.Errorf("recent session must survive, got %v", err)
	}
}

func TestJanitorSweepEmptyRepo(t *testing.T) {
	m := NewMemory()
	defer func() { _ = m.Close() }()

	j := NewJanitor(m, time.Hour)
	pruned, err := j.Sweep(context.Background())
	if err != nil {
		t.Fatalf("Sweep() error = %v", err)
	}
	if pruned != 0 {
		t.Errorf("Sweep() pruned = %d, want 0", pruned)
	}
}

func TestJanitorStartStop(t *testing.T) {
	m := NewMemory()
	defer func() { _ = m.Close() }()

	j := NewJanitor(m, time.Hour)
	if err := j.Start("@hourly"); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	j.Stop()

	if err := NewJanitor(m, time.Hour).Start("not a cron spec"); err == nil {
		t.Error("expected error for invalid cron spec")
	}
}
