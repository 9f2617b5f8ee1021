package store

import (
	"context"
	"log"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/RushiPardeshi/agent-marketplace/internal/market"
)

// Janitor periodically prunes finished sessions from a repository.
// A session is prunable when every negotiation in it is terminal and it
// has not been touched within the retention window.
type Janitor struct {
	repo      Repository
	retention time.Duration
	cron      *cron.Cron
}

// NewJanitor creates a janitor over repo. Sessions older than retention
// with no active negotiations are removed on each sweep.
func NewJanitor(repo Repository, retention time.Duration) *Janitor {
	return &Janitor{
		repo:      repo,
		retention: retention,
		cron:      cron.New(),
	}
}

// Start schedules sweeps on the given cron expression (e.g. "@hourly")
// and starts the scheduler.
func (j *Janitor) Start(spec string) error {
	if _, err := j.cron.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		if n, err := j.Sweep(ctx); err != nil {
			log.Printf("[Janitor] sweep failed: %v", err)
		} else if n > 0 {
			log.Printf("[Janitor] pruned %d finished sessions", n)
		}
	}); err != nil {
		return err
	}
	j.cron.Start()
	return nil
}

// Stop halts the scheduler and waits for a running sweep to finish.
func (j *Janitor) Stop() {
	<-j.cron.Stop().Done()
}

// Sweep removes prunable sessions once and returns how many were
// deleted.
func (j *Janitor) Sweep(ctx context.Context) (int, error) {
	ids, err := j.repo.ListSessions(ctx)
	if err != nil {
		return 0, err
	}

	cutoff := time.Now().Add(-j.retention)
	pruned := 0
	for _, id := range ids {
		s, err := j.repo.GetSession(ctx, id)
		if err != nil {
			continue
		}
		if !s.UpdatedAt.Before(cutoff) || hasActive(s) {
			continue
		}
		if err := j.repo.DeleteSession(ctx, id); err != nil {
			log.Printf("[Janitor] delete %s: %v", id, err)
			continue
		}
		pruned++
	}
	return pruned, nil
}

func hasActive(s *market.Session) bool {
	for _, n := range s.Negotiations {
		if n.Status == market.StatusActive {
			return true
		}
	}
	return false
}
