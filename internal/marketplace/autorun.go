package marketplace

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/RushiPardeshi/agent-marketplace/internal/market"
	"github.com/RushiPardeshi/agent-marketplace/pkg/observability"
)

// RunOptions tunes the automated session loop.
type RunOptions struct {
	// AllowSwitching lets buyers abandon a seller mid-negotiation when
	// the switch policy fires.
	AllowSwitching bool

	// MaxTurns caps the total number of turns the loop will execute
	// across all negotiations. Zero means DefaultMaxTurns.
	MaxTurns int
}

// DefaultMaxTurns bounds a runaway loop.
const DefaultMaxTurns = 1000

// Results summarizes a finished automated session.
type Results struct {
	Deals       int                `json:"deals"`
	Deadlocks   int                `json:"deadlocks"`
	Switches    int                `json:"switches"`
	TotalTurns  int                `json:"totalTurns"`
	FinalPrices map[string]float64 `json:"finalPrices"`
	// Unmatched lists buyers that ended the session without a deal.
	Unmatched []string `json:"unmatched,omitempty"`
}

// RunAutomated drives every negotiation in the session to a terminal
// state. Buyers without an open negotiation are paired with their first
// available seller; active negotiations then advance round-robin, one
// turn each, until all of them conclude. A single negotiation failing
// is recorded as a deadlock and never aborts the loop.
func (s *Service) RunAutomated(ctx context.Context, sessionID string, opts RunOptions) (*Results, error) {
	ctx, span := observability.Tracer("marketplace").Start(ctx, "marketplace.run_automated",
		trace.WithAttributes(attribute.String("session.id", sessionID)))
	defer span.End()

	maxTurns := opts.MaxTurns
	if maxTurns <= 0 {
		maxTurns = DefaultMaxTurns
	}

	totalTurns := 0
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		if err := s.matchIdleBuyers(ctx, sessionID); err != nil {
			return nil, err
		}

		queue, err := s.activeNegotiationIDs(ctx, sessionID)
		if err != nil {
			return nil, err
		}
		observability.SetActiveNegotiations(len(queue))
		if len(queue) == 0 {
			break
		}

		for _, negID := range queue {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			if totalTurns >= maxTurns {
				return nil, fmt.Errorf("session %s exceeded %d turns", sessionID, maxTurns)
			}

			advanced, err := s.advanceOne(ctx, sessionID, negID, opts.AllowSwitching)
			if err != nil {
				return nil, err
			}
			if advanced {
				totalTurns++
			}
		}
	}

	observability.SetActiveNegotiations(0)
	results, err := s.collectResults(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	results.TotalTurns = totalTurns
	log.Printf("[Marketplace] Session %s finished: %d deals, %d deadlocks, %d switches in %d turns",
		sessionID, results.Deals, results.Deadlocks, results.Switches, totalTurns)
	return results, nil
}

// RunMany runs several independent sessions concurrently.
func (s *Service) RunMany(ctx context.Context, sessionIDs []string, opts RunOptions) (map[string]*Results, error) {
	results := make(map[string]*Results, len(sessionIDs))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	for _, id := range sessionIDs {
		g.Go(func() error {
			r, err := s.RunAutomated(gctx, id, opts)
			if err != nil {
				return fmt.Errorf("session %s: %w", id, err)
			}
			mu.Lock()
			results[id] = r
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// advanceOne executes one turn and, after a seller turn, evaluates the
// buyer's switch policy. Identity errors mean the negotiation concluded
// under our feet and are not failures; anything else deadlocks the
// negotiation with the error as reason.
func (s *Service) advanceOne(ctx context.Context, sessionID, negID string, allowSwitching bool) (bool, error) {
	turn, err := s.ExecuteTurn(ctx, sessionID, negID)
	switch {
	case err == nil:
	case errors.Is(err, market.ErrStaleNegotiation), errors.Is(err, market.ErrAlreadyInactive):
		return false, nil
	case ctx.Err() != nil:
		return false, ctx.Err()
	default:
		log.Printf("[Marketplace] Negotiation %s failed: %v", negID, err)
		if termErr := s.terminateFailed(ctx, sessionID, negID, err.Error()); termErr != nil {
			return false, termErr
		}
		return false, nil
	}

	if allowSwitching && turn != nil && turn.Role == market.RoleSeller {
		if err := s.maybeSwitch(ctx, sessionID, negID); err != nil {
			return true, err
		}
	}
	return true, nil
}

// maybeSwitch applies the autonomy switch policy to a negotiation after
// a seller turn and, when it fires, moves the buyer to the next
// available seller.
func (s *Service) maybeSwitch(ctx context.Context, sessionID, negID string) error {
	session, err := s.repo.GetSession(ctx, sessionID)
	if err != nil {
		return err
	}
	neg, ok := session.Negotiations[negID]
	if !ok || neg.Terminal() {
		return nil
	}
	buyer, ok := session.Buyers[neg.BuyerID]
	if !ok {
		return nil
	}
	listing := session.Listings[neg.ListingID]
	if listing == nil {
		return nil
	}

	next := s.nextSeller(session, buyer, neg.SellerID)
	should, reason := s.policy.ShouldSwitch(neg, buyer, listing, next != "")
	if !should {
		return nil
	}

	log.Printf("[Marketplace] Buyer %s switching from seller %s to %s: %s", buyer.AgentID, neg.SellerID, next, reason)
	if _, err := s.SwitchSeller(ctx, sessionID, buyer.AgentID, neg.SellerID, next); err != nil {
		return fmt.Errorf("switch seller: %w", err)
	}
	return nil
}

// matchIdleBuyers opens a negotiation for every active buyer that has
// none, pairing it with its first available seller.
func (s *Service) matchIdleBuyers(ctx context.Context, sessionID string) error {
	lock := s.sessionLock(sessionID)
	lock.Lock()
	defer lock.Unlock()

	session, err := s.repo.GetSession(ctx, sessionID)
	if err != nil {
		return err
	}

	buyerIDs := make([]string, 0, len(session.Buyers))
	for id := range session.Buyers {
		buyerIDs = append(buyerIDs, id)
	}
	sort.Strings(buyerIDs)

	opened := false
	for _, buyerID := range buyerIDs {
		buyer := session.Buyers[buyerID]
		if !buyer.Active || len(session.ActiveNegotiationsFor(buyerID)) > 0 {
			continue
		}
		sellerID := s.nextSeller(session, buyer, "")
		if sellerID == "" {
			continue
		}
		if _, err := s.startNegotiation(session, buyerID, sellerID); err != nil {
			log.Printf("[Marketplace] Could not pair buyer %s with seller %s: %v", buyerID, sellerID, err)
			continue
		}
		opened = true
	}

	if !opened {
		return nil
	}
	session.UpdatedAt = time.Now().UTC()
	return s.repo.SaveSession(ctx, session)
}

// nextSeller picks the next seller the buyer could open a negotiation
// with: active, listing unsold, never negotiated with before, and not
// the excluded one. Candidates follow the buyer's interest list in its
// declared preference order; an open-interest buyer considers every
// seller, ordered by agent ID.
func (s *Service) nextSeller(session *market.Session, buyer *market.Participant, exclude string) string {
	tried := make(map[string]bool)
	for _, neg := range session.Negotiations {
		if neg.BuyerID == buyer.AgentID {
			tried[neg.SellerID] = true
		}
	}

	candidates := buyer.Interests
	if len(candidates) == 0 {
		candidates = make([]string, 0, len(session.Sellers))
		for id := range session.Sellers {
			candidates = append(candidates, id)
		}
		sort.Strings(candidates)
	}

	for _, id := range candidates {
		if id == exclude || tried[id] {
			continue
		}
		seller, ok := session.Sellers[id]
		if !ok || !seller.Active {
			continue
		}
		if l, ok := session.Listings[seller.ListingID]; !ok || l.SoldTo != "" {
			continue
		}
		return id
	}
	return ""
}

// terminateFailed deadlocks a negotiation that errored mid-turn so the
// loop can move on.
func (s *Service) terminateFailed(ctx context.Context, sessionID, negID, reason string) error {
	lock := s.sessionLock(sessionID)
	lock.Lock()
	defer lock.Unlock()

	session, err := s.repo.GetSession(ctx, sessionID)
	if err != nil {
		return err
	}
	neg, ok := session.Negotiations[negID]
	if !ok || neg.Terminal() {
		return nil
	}
	s.machine.ForceTerminate(neg, market.StatusDeadlock, reason)
	observability.RecordNegotiationEnd(string(neg.Status), neg.Round())
	session.RefreshMarket()
	session.UpdatedAt = time.Now().UTC()
	return s.repo.SaveSession(ctx, session)
}

func (s *Service) activeNegotiationIDs(ctx context.Context, sessionID string) ([]string, error) {
	session, err := s.repo.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(session.Negotiations))
	for id, neg := range session.Negotiations {
		if !neg.Terminal() {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (s *Service) collectResults(ctx context.Context, sessionID string) (*Results, error) {
	session, err := s.repo.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	results := &Results{FinalPrices: make(map[string]float64)}
	dealt := make(map[string]bool)
	for id, neg := range session.Negotiations {
		switch neg.Status {
		case market.StatusAgreed:
			results.Deals++
			results.FinalPrices[id] = neg.FinalPrice
			dealt[neg.BuyerID] = true
		case market.StatusDeadlock:
			results.Deadlocks++
		case market.StatusSwitched:
			results.Switches++
		}
	}
	for id := range session.Buyers {
		if !dealt[id] {
			results.Unmatched = append(results.Unmatched, id)
		}
	}
	sort.Strings(results.Unmatched)
	return results, nil
}
