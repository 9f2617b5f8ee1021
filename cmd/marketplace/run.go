package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"sort"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/RushiPardeshi/agent-marketplace/internal/engine"
	"github.com/RushiPardeshi/agent-marketplace/internal/leverage"
	"github.com/RushiPardeshi/agent-marketplace/internal/market"
	"github.com/RushiPardeshi/agent-marketplace/internal/marketplace"
	"github.com/RushiPardeshi/agent-marketplace/internal/safeguard"
	"github.com/RushiPardeshi/agent-marketplace/pkg/config"
	"github.com/RushiPardeshi/agent-marketplace/pkg/events"
	"github.com/RushiPardeshi/agent-marketplace/pkg/observability"
	"github.com/RushiPardeshi/agent-marketplace/pkg/store"
	"github.com/RushiPardeshi/agent-marketplace/pkg/strategy"
)

// scenario describes one automated session: the listings on the market
// and the agents trading them.
type scenario struct {
	Listings []market.Listing `yaml:"listings"`
	Buyers   []scenarioAgent  `yaml:"buyers"`
	Sellers  []scenarioAgent  `yaml:"sellers"`
}

// scenarioAgent is a participant plus its decision-making setup.
type scenarioAgent struct {
	AgentID   string   `yaml:"agent_id"`
	MaxPrice  float64  `yaml:"max_price,omitempty"`
	MinPrice  float64  `yaml:"min_price,omitempty"`
	ListingID string   `yaml:"listing_id,omitempty"`
	Interests []string `yaml:"interests,omitempty"`

	// Provider overrides the config-level strategist provider.
	Provider string `yaml:"provider,omitempty"`
	// Offers drives the scripted provider.
	Offers []float64 `yaml:"offers,omitempty"`
	// Opening and Step drive the rule provider.
	Opening float64 `yaml:"opening,omitempty"`
	Step    float64 `yaml:"step,omitempty"`
}

func newRunCmd() *cobra.Command {
	var (
		scenarioFile string
		switching    bool
		verbose      bool
		metrics      bool
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run an automated negotiation session from a scenario file",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			sc, err := loadScenario(scenarioFile)
			if err != nil {
				return err
			}
			return runScenario(cmd.Context(), cfg, sc, switching, verbose, metrics)
		},
	}
	cmd.Flags().StringVarP(&scenarioFile, "scenario", "s", "", "scenario YAML file (required)")
	cmd.Flags().BoolVar(&switching, "switching", true, "let buyers switch sellers autonomously")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "print every committed turn")
	cmd.Flags().BoolVar(&metrics, "metrics", false, "serve /metrics and /health while the session runs")
	_ = cmd.MarkFlagRequired("scenario")
	return cmd
}

func loadScenario(path string) (*scenario, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- path comes from the operator's CLI flag
	if err != nil {
		return nil, fmt.Errorf("read scenario: %w", err)
	}
	var sc scenario
	if err := yaml.Unmarshal(data, &sc); err != nil {
		return nil, fmt.Errorf("parse scenario: %w", err)
	}
	if len(sc.Buyers) == 0 || len(sc.Sellers) == 0 {
		return nil, fmt.Errorf("scenario needs at least one buyer and one seller")
	}
	return &sc, nil
}

func runScenario(ctx context.Context, cfg *config.Config, sc *scenario, switching, verbose, metrics bool) error {
	observability.InitMetrics()
	if err := observability.InitTracingFromEnv(); err != nil {
		log.Printf("Tracing disabled: %v", err)
	}
	defer func() {
		if err := observability.ShutdownTracing(context.Background()); err != nil {
			log.Printf("Tracing shutdown: %v", err)
		}
	}()

	repo, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer repo.Close()

	if metrics {
		checker := observability.GetHealthChecker()
		checker.RegisterCheck(observability.PingCheck())
		checker.RegisterCheck(observability.RepositoryCheck(func(ctx context.Context) error {
			_, err := repo.ListSessions(ctx)
			return err
		}))

		obs := observability.NewServer(cfg.MetricsPort)
		go func() {
			if err := obs.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Printf("Observability server: %v", err)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = obs.Shutdown(shutdownCtx)
		}()
	}

	for i := range sc.Listings {
		l := sc.Listings[i]
		if err := repo.SaveListing(ctx, &l); err != nil {
			return fmt.Errorf("save listing %s: %w", l.ID, err)
		}
	}

	svc, err := buildService(cfg, repo, sc)
	if err != nil {
		return err
	}

	buyers := make([]marketplace.BuyerSpec, 0, len(sc.Buyers))
	for _, b := range sc.Buyers {
		buyers = append(buyers, marketplace.BuyerSpec{
			AgentID:   b.AgentID,
			MaxPrice:  b.MaxPrice,
			Interests: b.Interests,
		})
	}
	sellers := make([]marketplace.SellerSpec, 0, len(sc.Sellers))
	for _, s := range sc.Sellers {
		sellers = append(sellers, marketplace.SellerSpec{
			AgentID:   s.AgentID,
			ListingID: s.ListingID,
			MinPrice:  s.MinPrice,
		})
	}

	session, err := svc.CreateSession(ctx, buyers, sellers)
	if err != nil {
		return err
	}

	if verbose {
		unsubscribe := svc.Broker().Subscribe(func(ev events.TurnEvent) {
			fmt.Printf("  [%s] round %d %s %s offers %.2f  %s\n",
				ev.NegotiationID, ev.Turn.Round, ev.Turn.Role, ev.Turn.AgentID, ev.Turn.Offer, ev.Turn.Message)
		})
		defer unsubscribe()
	}

	results, err := svc.RunAutomated(ctx, session.ID, marketplace.RunOptions{AllowSwitching: switching})
	if err != nil {
		return err
	}

	printResults(results)
	return nil
}

// buildService assembles the negotiation stack from the configuration.
func buildService(cfg *config.Config, repo store.Repository, sc *scenario) (*marketplace.Service, error) {
	n := cfg.Negotiation
	guard := safeguard.New(safeguard.Config{
		AcceptEpsilon: n.AcceptEpsilon,
		StallRatio:    n.StallRatio,
		MinStepRatio:  n.MinStepRatio,
		MaxMisses:     n.MaxMisses,
		StallRounds:   n.StallRounds,
	})
	machine := engine.New(guard)

	strategists := make(marketplace.StrategistMap)
	for _, a := range append(append([]scenarioAgent(nil), sc.Buyers...), sc.Sellers...) {
		st, err := buildStrategist(cfg, a)
		if err != nil {
			return nil, fmt.Errorf("agent %s: %w", a.AgentID, err)
		}
		strategists[a.AgentID] = st
	}

	return marketplace.NewService(repo, machine, strategists,
		marketplace.WithLeverage(leverage.NewCalculator(n.HighLeverageCutoff)),
		marketplace.WithScheduler(leverage.NewScheduler(n.BaseRounds, n.RoundStep, n.MinRounds, n.MaxRounds)),
	), nil
}

func buildStrategist(cfg *config.Config, a scenarioAgent) (strategy.Strategist, error) {
	provider := a.Provider
	if provider == "" {
		provider = cfg.Provider
	}

	var (
		st  strategy.Strategist
		err error
	)
	switch provider {
	case "scripted":
		if len(a.Offers) == 0 {
			return nil, fmt.Errorf("scripted provider needs offers")
		}
		st = strategy.NewScripted(a.Offers...)
	case "rule":
		st = strategy.NewRule(a.Opening, a.Step)
	case "human":
		st = strategy.NewHuman()
	case "openai":
		st = strategy.NewOpenAI(cfg.OpenAIKey, cfg.Model, float32(cfg.Temperature))
	case "gemini":
		st, err = strategy.NewGemini(cfg.GeminiKey, cfg.GCPProject, "", cfg.Model, float32(cfg.Temperature))
	case "bedrock":
		st, err = strategy.NewBedrock(context.Background(), "", cfg.Model, float32(cfg.Temperature))
	default:
		return nil, fmt.Errorf("unknown provider: %s", provider)
	}
	if err != nil {
		return nil, err
	}

	if cfg.ProposalsPerSecond > 0 && (provider == "openai" || provider == "gemini" || provider == "bedrock") {
		st = strategy.NewRateLimited(st, cfg.ProposalsPerSecond, 1)
	}
	return strategy.NewInstrumented(st, provider), nil
}

func printResults(results *marketplace.Results) {
	fmt.Printf("\nSession finished in %d turns: %d deals, %d deadlocks, %d switches\n",
		results.TotalTurns, results.Deals, results.Deadlocks, results.Switches)

	ids := make([]string, 0, len(results.FinalPrices))
	for id := range results.FinalPrices {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		fmt.Printf("  %s closed at %.2f\n", id, results.FinalPrices[id])
	}
	for _, id := range results.Unmatched {
		fmt.Printf("  buyer %s left without a deal\n", id)
	}
}
