// Package marketplace coordinates whole trading sessions: participant
// registration, negotiation lifecycle, the deal finality cascade, and
// the automated round-robin loop that drives every negotiation to a
// terminal state.
package marketplace

import (
	"context"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/RushiPardeshi/agent-marketplace/internal/engine"
	"github.com/RushiPardeshi/agent-marketplace/internal/leverage"
	"github.com/RushiPardeshi/agent-marketplace/internal/market"
	"github.com/RushiPardeshi/agent-marketplace/pkg/events"
	"github.com/RushiPardeshi/agent-marketplace/pkg/observability"
	"github.com/RushiPardeshi/agent-marketplace/pkg/store"
	"github.com/RushiPardeshi/agent-marketplace/pkg/strategy"
)

// Strategists resolves the decision maker acting for a participant.
type Strategists interface {
	For(p *market.Participant) (strategy.Strategist, error)
}

// StrategistMap resolves strategists by agent ID.
type StrategistMap map[string]strategy.Strategist

// For implements Strategists.
func (m StrategistMap) For(p *market.Participant) (strategy.Strategist, error) {
	st, ok := m[p.AgentID]
	if !ok {
		return nil, fmt.Errorf("no strategist for agent %s: %w", p.AgentID, market.ErrUnknownParticipant)
	}
	return st, nil
}

// BuyerSpec describes a buyer joining a session.
type BuyerSpec struct {
	AgentID  string   `json:"agentId" yaml:"agent_id"`
	MaxPrice float64  `json:"maxPrice" yaml:"max_price"`
	// Interests lists seller agent IDs the buyer will negotiate with.
	// Empty means interested in every seller.
	Interests []string `json:"interests,omitempty" yaml:"interests,omitempty"`
}

// SellerSpec describes a seller joining a session.
type SellerSpec struct {
	AgentID   string  `json:"agentId" yaml:"agent_id"`
	ListingID string  `json:"listingId" yaml:"listing_id"`
	MinPrice  float64 `json:"minPrice" yaml:"min_price"`
}

// Service is the marketplace session orchestrator. All mutation of a
// session happens under a per-session lock, so turns of one session are
// computed and committed one at a time; distinct sessions advance
// independently.
type Service struct {
	repo        store.Repository
	machine     *engine.Machine
	policy      *engine.SwitchPolicy
	calc        *leverage.Calculator
	sched       *leverage.Scheduler
	broker      *events.Broker
	strategists Strategists

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// Option customizes a Service.
type Option func(*Service)

// WithSwitchPolicy overrides the autonomy switch policy.
func WithSwitchPolicy(p *engine.SwitchPolicy) Option {
	return func(s *Service) { s.policy = p }
}

// WithLeverage overrides the leverage calculator.
func WithLeverage(c *leverage.Calculator) Option {
	return func(s *Service) { s.calc = c }
}

// WithScheduler overrides the patience scheduler.
func WithScheduler(sc *leverage.Scheduler) Option {
	return func(s *Service) { s.sched = sc }
}

// WithBroker sets the broker committed turns are published to.
func WithBroker(b *events.Broker) Option {
	return func(s *Service) { s.broker = b }
}

// NewService creates a marketplace service backed by the given
// repository, negotiation machine, and strategist registry.
func NewService(repo store.Repository, machine *engine.Machine, strategists Strategists, opts ...Option) *Service {
	s := &Service{
		repo:        repo,
		machine:     machine,
		policy:      engine.NewSwitchPolicy(),
		calc:        leverage.NewCalculator(0),
		sched:       leverage.NewScheduler(0, 0, 0, 0),
		broker:      events.NewBroker(),
		strategists: strategists,
		locks:       make(map[string]*sync.Mutex),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Broker returns the broker turn events are published to.
func (s *Service) Broker() *events.Broker {
	return s.broker
}

func (s *Service) sessionLock(id string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[id]
	if !ok {
		l = &sync.Mutex{}
		s.locks[id] = l
	}
	return l
}

// CreateSession registers participants, resolves their listings from the
// catalog, and persists the initial session state.
func (s *Service) CreateSession(ctx context.Context, buyers []BuyerSpec, sellers []SellerSpec) (*market.Session, error) {
	if len(buyers) == 0 || len(sellers) == 0 {
		return nil, fmt.Errorf("session needs at least one buyer and one seller")
	}

	now := time.Now().UTC()
	session := &market.Session{
		ID:           uuid.NewString(),
		Buyers:       make(map[string]*market.Participant, len(buyers)),
		Sellers:      make(map[string]*market.Participant, len(sellers)),
		Listings:     make(map[string]*market.Listing, len(sellers)),
		Negotiations: make(map[string]*market.Negotiation),
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	for _, spec := range sellers {
		if spec.MinPrice <= 0 {
			return nil, fmt.Errorf("seller %s: min price must be positive", spec.AgentID)
		}
		listing, err := s.repo.GetListing(ctx, spec.ListingID)
		if err != nil {
			return nil, fmt.Errorf("seller %s: %w", spec.AgentID, err)
		}
		session.Listings[listing.ID] = listing
		session.Sellers[spec.AgentID] = &market.Participant{
			AgentID:   spec.AgentID,
			Role:      market.RoleSeller,
			Bound:     spec.MinPrice,
			ListingID: spec.ListingID,
			Active:    true,
		}
	}

	for _, spec := range buyers {
		if spec.MaxPrice <= 0 {
			return nil, fmt.Errorf("buyer %s: max price must be positive", spec.AgentID)
		}
		if _, dup := session.Sellers[spec.AgentID]; dup {
			return nil, fmt.Errorf("agent %s registered as both buyer and seller", spec.AgentID)
		}
		session.Buyers[spec.AgentID] = &market.Participant{
			AgentID:   spec.AgentID,
			Role:      market.RoleBuyer,
			Bound:     spec.MaxPrice,
			Interests: append([]string(nil), spec.Interests...),
			Active:    true,
		}
	}

	session.RefreshMarket()

	if err := s.repo.SaveSession(ctx, session); err != nil {
		return nil, fmt.Errorf("save session: %w", err)
	}
	log.Printf("[Marketplace] Session %s created: %d buyers, %d sellers", session.ID, len(buyers), len(sellers))
	return session, nil
}

// GetSession returns the current persisted state of a session.
func (s *Service) GetSession(ctx context.Context, sessionID string) (*market.Session, error) {
	return s.repo.GetSession(ctx, sessionID)
}

// Transcript returns the committed turns of a negotiation. Reading the
// transcript never mutates state; repeated calls between commits return
// identical slices.
func (s *Service) Transcript(ctx context.Context, sessionID, negotiationID string) ([]market.Turn, error) {
	session, err := s.repo.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	neg, ok := session.Negotiations[negotiationID]
	if !ok {
		return nil, market.ErrNegotiationNotFound
	}
	return neg.Turns, nil
}

// AddInterest registers a buyer's interest in a seller.
func (s *Service) AddInterest(ctx context.Context, sessionID, buyerID, sellerID string) error {
	lock := s.sessionLock(sessionID)
	lock.Lock()
	defer lock.Unlock()

	session, err := s.repo.GetSession(ctx, sessionID)
	if err != nil {
		return err
	}
	buyer, ok := session.Buyers[buyerID]
	if !ok {
		return fmt.Errorf("buyer %s: %w", buyerID, market.ErrUnknownParticipant)
	}
	if _, ok := session.Sellers[sellerID]; !ok {
		return fmt.Errorf("seller %s: %w", sellerID, market.ErrUnknownParticipant)
	}
	for _, id := range buyer.Interests {
		if id == sellerID {
			return nil
		}
	}
	buyer.Interests = append(buyer.Interests, sellerID)
	session.UpdatedAt = time.Now().UTC()
	return s.repo.SaveSession(ctx, session)
}

// StartNegotiation opens a negotiation between a buyer and a seller.
// Leverage, patience, and the seller's concession target are computed
// from the market state at this moment and frozen on the negotiation.
func (s *Service) StartNegotiation(ctx context.Context, sessionID, buyerID, sellerID string) (*market.Negotiation, error) {
	lock := s.sessionLock(sessionID)
	lock.Lock()
	defer lock.Unlock()

	session, err := s.repo.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	neg, err := s.startNegotiation(session, buyerID, sellerID)
	if err != nil {
		return nil, err
	}
	session.UpdatedAt = time.Now().UTC()
	if err := s.repo.SaveSession(ctx, session); err != nil {
		return nil, fmt.Errorf("save session: %w", err)
	}
	return neg, nil
}

// startNegotiation validates the pairing and opens the negotiation on
// the in-memory session. The caller holds the session lock and persists.
func (s *Service) startNegotiation(session *market.Session, buyerID, sellerID string) (*market.Negotiation, error) {
	buyer, ok := session.Buyers[buyerID]
	if !ok {
		return nil, fmt.Errorf("buyer %s: %w", buyerID, market.ErrUnknownParticipant)
	}
	seller, ok := session.Sellers[sellerID]
	if !ok {
		return nil, fmt.Errorf("seller %s: %w", sellerID, market.ErrUnknownParticipant)
	}
	if !buyer.Active {
		return nil, fmt.Errorf("buyer %s: %w", buyerID, market.ErrAlreadyInactive)
	}
	if !seller.Active {
		return nil, fmt.Errorf("seller %s: %w", sellerID, market.ErrAlreadyInactive)
	}
	if !buyer.Interested(sellerID) {
		return nil, fmt.Errorf("buyer %s has no interest in seller %s: %w", buyerID, sellerID, market.ErrNotInterested)
	}
	listing, ok := session.Listings[seller.ListingID]
	if !ok {
		return nil, fmt.Errorf("listing %s: %w", seller.ListingID, market.ErrListingNotFound)
	}
	if listing.SoldTo != "" {
		return nil, fmt.Errorf("listing %s already sold: %w", listing.ID, market.ErrListingNotFound)
	}
	for _, other := range session.Negotiations {
		if !other.Terminal() && other.BuyerID == buyerID && other.SellerID == sellerID {
			return nil, fmt.Errorf("%s and %s: %w", buyerID, sellerID, market.ErrDuplicateNegotiation)
		}
	}

	buyerLev := s.calc.ForBuyer(s.buyerAlternatives(session, buyer, sellerID))
	sellerLev := s.calc.ForSeller(s.sellerAlternatives(session, seller, buyerID))

	now := time.Now().UTC()
	neg := &market.Negotiation{
		ID:             fmt.Sprintf("neg-%s-%s-%s", buyerID, sellerID, uuid.NewString()[:8]),
		BuyerID:        buyerID,
		SellerID:       sellerID,
		ListingID:      listing.ID,
		BuyerLeverage:  buyerLev,
		SellerLeverage: sellerLev,
		SellerTarget:   leverage.SellerTarget(seller.Bound, listing.Price, sellerLev),
		MaxRounds:      s.sched.MaxRounds(buyerLev, sellerLev),
		Status:         market.StatusActive,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	session.Negotiations[neg.ID] = neg
	session.RefreshMarket()

	log.Printf("[Marketplace] Negotiation %s opened: buyer %s (%s leverage) vs seller %s (%s leverage), %d rounds",
		neg.ID, buyerID, buyerLev, sellerID, sellerLev, neg.MaxRounds)
	return neg, nil
}

// buyerAlternatives counts sellers the buyer could still turn to,
// excluding the one being negotiated with.
func (s *Service) buyerAlternatives(session *market.Session, buyer *market.Participant, excludeSeller string) int {
	n := 0
	for id, seller := range session.Sellers {
		if id == excludeSeller || !seller.Active || !buyer.Interested(id) {
			continue
		}
		if l, ok := session.Listings[seller.ListingID]; ok && l.SoldTo == "" {
			n++
		}
	}
	return n
}

// sellerAlternatives counts other active buyers interested in this
// seller.
func (s *Service) sellerAlternatives(session *market.Session, seller *market.Participant, excludeBuyer string) int {
	n := 0
	for id, buyer := range session.Buyers {
		if id == excludeBuyer || !buyer.Active {
			continue
		}
		if buyer.Interested(seller.AgentID) {
			n++
		}
	}
	return n
}

// ExecuteTurn advances a negotiation by exactly one turn: it resolves
// the acting strategist, runs the engine, applies the finality cascade
// when a deal lands, persists the session, and publishes the committed
// turns.
func (s *Service) ExecuteTurn(ctx context.Context, sessionID, negotiationID string) (*market.Turn, error) {
	ctx, span := observability.Tracer("marketplace").Start(ctx, "marketplace.execute_turn",
		trace.WithAttributes(
			attribute.String("session.id", sessionID),
			attribute.String("negotiation.id", negotiationID),
		))
	defer span.End()

	lock := s.sessionLock(sessionID)
	lock.Lock()
	defer lock.Unlock()

	session, err := s.repo.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	neg, ok := session.Negotiations[negotiationID]
	if !ok {
		return nil, market.ErrNegotiationNotFound
	}
	parties, err := s.parties(session, neg)
	if err != nil {
		return nil, err
	}

	actor := parties.Buyer
	if neg.NextRole() == market.RoleSeller {
		actor = parties.Seller
	}
	st, err := s.strategists.For(actor)
	if err != nil {
		return nil, err
	}

	before := len(neg.Turns)
	turn, err := s.machine.ExecuteTurn(ctx, neg, parties, st, session.Market)
	if err != nil {
		return nil, err
	}

	if neg.Status == market.StatusAgreed {
		s.finalizeDeal(session, neg)
	}
	if neg.Terminal() {
		span.SetAttributes(attribute.String("negotiation.status", string(neg.Status)))
		observability.RecordNegotiationEnd(string(neg.Status), neg.Round())
		if neg.Status == market.StatusAgreed {
			observability.RecordDeal(neg.FinalPrice)
		}
	}

	session.RefreshMarket()
	session.UpdatedAt = time.Now().UTC()
	if err := s.repo.SaveSession(ctx, session); err != nil {
		return nil, fmt.Errorf("save session: %w", err)
	}

	// Publish only after the commit is durable.
	for _, t := range neg.Turns[before:] {
		observability.RecordTurn(string(t.Role))
		s.broker.Publish(events.TurnEvent{
			SessionID:     sessionID,
			NegotiationID: neg.ID,
			Turn:          t,
			Status:        neg.Status,
		})
	}
	return turn, nil
}

// SwitchSeller abandons the buyer's active negotiation with one seller
// and opens a fresh one with another. The old transcript is preserved
// under the switched status; nothing carries over to the new
// negotiation.
func (s *Service) SwitchSeller(ctx context.Context, sessionID, buyerID, fromSellerID, toSellerID string) (*market.Negotiation, error) {
	lock := s.sessionLock(sessionID)
	lock.Lock()
	defer lock.Unlock()

	session, err := s.repo.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	var current *market.Negotiation
	for _, neg := range session.Negotiations {
		if !neg.Terminal() && neg.BuyerID == buyerID && neg.SellerID == fromSellerID {
			current = neg
			break
		}
	}
	if current == nil {
		return nil, fmt.Errorf("no active negotiation between %s and %s: %w", buyerID, fromSellerID, market.ErrNegotiationNotFound)
	}

	if err := s.machine.Switch(current, fmt.Sprintf("buyer switched to seller %s", toSellerID)); err != nil {
		return nil, err
	}
	observability.RecordSellerSwitch()
	observability.RecordNegotiationEnd(string(current.Status), current.Round())

	neg, err := s.startNegotiation(session, buyerID, toSellerID)
	if err != nil {
		// The switch already terminated the old negotiation; persist
		// that even though no replacement opened.
		session.UpdatedAt = time.Now().UTC()
		if saveErr := s.repo.SaveSession(ctx, session); saveErr != nil {
			return nil, fmt.Errorf("save session: %w", saveErr)
		}
		return nil, err
	}

	session.UpdatedAt = time.Now().UTC()
	if err := s.repo.SaveSession(ctx, session); err != nil {
		return nil, fmt.Errorf("save session: %w", err)
	}
	return neg, nil
}

func (s *Service) parties(session *market.Session, neg *market.Negotiation) (engine.Parties, error) {
	buyer, ok := session.Buyers[neg.BuyerID]
	if !ok {
		return engine.Parties{}, fmt.Errorf("buyer %s: %w", neg.BuyerID, market.ErrUnknownParticipant)
	}
	seller, ok := session.Sellers[neg.SellerID]
	if !ok {
		return engine.Parties{}, fmt.Errorf("seller %s: %w", neg.SellerID, market.ErrUnknownParticipant)
	}
	listing, ok := session.Listings[neg.ListingID]
	if !ok {
		return engine.Parties{}, fmt.Errorf("listing %s: %w", neg.ListingID, market.ErrListingNotFound)
	}
	return engine.Parties{Buyer: buyer, Seller: seller, Listing: listing}, nil
}

// finalizeDeal applies the finality cascade as one logical unit under
// the session lock: both parties deactivate, the listing transfers, the
// price joins the market history, and every other negotiation either
// party was in terminates.
func (s *Service) finalizeDeal(session *market.Session, neg *market.Negotiation) {
	buyer := session.Buyers[neg.BuyerID]
	seller := session.Sellers[neg.SellerID]
	buyer.Active = false
	seller.Active = false

	if listing, ok := session.Listings[neg.ListingID]; ok {
		listing.SoldTo = neg.BuyerID
	}
	session.Market.RecentPrices = append(session.Market.RecentPrices, neg.FinalPrice)

	ids := make([]string, 0, len(session.Negotiations))
	for id := range session.Negotiations {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		other := session.Negotiations[id]
		if other.Terminal() || other.ID == neg.ID {
			continue
		}
		if other.BuyerID != neg.BuyerID && other.SellerID != neg.SellerID {
			continue
		}

		// The surviving counterpart decides the terminal status: with
		// alternatives left it is a switch, without them a deadlock.
		var survivorHasAlternatives bool
		if other.BuyerID == neg.BuyerID {
			survivor := session.Sellers[other.SellerID]
			survivorHasAlternatives = survivor != nil && s.sellerAlternatives(session, survivor, neg.BuyerID) > 0
		} else {
			survivor := session.Buyers[other.BuyerID]
			survivorHasAlternatives = survivor != nil && s.buyerAlternatives(session, survivor, neg.SellerID) > 0
		}

		status := market.StatusDeadlock
		if survivorHasAlternatives {
			status = market.StatusSwitched
		}
		s.machine.ForceTerminate(other, status, fmt.Sprintf("counterpart completed a deal in %s", neg.ID))
		observability.RecordNegotiationEnd(string(status), other.Round())
	}

	session.RefreshMarket()
	log.Printf("[Marketplace] Deal: %s bought %s from %s at %.2f", neg.BuyerID, neg.ListingID, neg.SellerID, neg.FinalPrice)
}
