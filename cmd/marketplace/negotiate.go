package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/RushiPardeshi/agent-marketplace/internal/engine"
	"github.com/RushiPardeshi/agent-marketplace/internal/market"
	"github.com/RushiPardeshi/agent-marketplace/internal/marketplace"
	"github.com/RushiPardeshi/agent-marketplace/internal/safeguard"
	"github.com/RushiPardeshi/agent-marketplace/pkg/strategy"
)

func newNegotiateCmd() *cobra.Command {
	var (
		listingID string
		side      string
		bound     float64
		peerBound float64
	)

	cmd := &cobra.Command{
		Use:   "negotiate",
		Short: "Negotiate interactively against an automated counterpart",
		Long: `Opens a single negotiation over one listing with you on one side and a
config-selected strategist on the other. Offers are typed at the prompt;
'accept' takes the counterpart's last offer.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			repo, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer repo.Close()

			listing, err := repo.GetListing(cmd.Context(), listingID)
			if err != nil {
				return err
			}
			if side != "buyer" && side != "seller" {
				return fmt.Errorf("--side must be buyer or seller")
			}

			human := strategy.NewHuman()
			defer human.Close()

			peer, err := buildStrategist(cfg, scenarioAgent{AgentID: "agent"})
			if err != nil {
				return err
			}

			strategists := marketplace.StrategistMap{"you": human, "agent": peer}
			guard := safeguard.New(safeguard.Config{})
			svc := marketplace.NewService(repo, engine.New(guard), strategists)

			return negotiateInteractive(cmd.Context(), svc, listing, side, bound, peerBound)
		},
	}
	cmd.Flags().StringVarP(&listingID, "listing", "l", "", "listing ID to negotiate over (required)")
	cmd.Flags().StringVar(&side, "side", "buyer", "your side: buyer or seller")
	cmd.Flags().Float64Var(&bound, "bound", 0, "your private bound (buyer max or seller min)")
	cmd.Flags().Float64Var(&peerBound, "peer-bound", 0, "the automated counterpart's private bound")
	_ = cmd.MarkFlagRequired("listing")
	return cmd
}

func negotiateInteractive(ctx context.Context, svc *marketplace.Service, listing *market.Listing, side string, bound, peerBound float64) error {
	// Derive unstated bounds from the listing price.
	buyerMax := bound
	sellerMin := peerBound
	buyerID, sellerID := "you", "agent"
	if side == "seller" {
		buyerMax, sellerMin = peerBound, bound
		buyerID, sellerID = "agent", "you"
	}
	if buyerMax == 0 {
		buyerMax = listing.Price * 0.95
	}
	if sellerMin == 0 {
		sellerMin = listing.Price * 0.70
	}

	session, err := svc.CreateSession(ctx,
		[]marketplace.BuyerSpec{{AgentID: buyerID, MaxPrice: buyerMax, Interests: []string{sellerID}}},
		[]marketplace.SellerSpec{{AgentID: sellerID, ListingID: listing.ID, MinPrice: sellerMin}},
	)
	if err != nil {
		return err
	}
	neg, err := svc.StartNegotiation(ctx, session.ID, buyerID, sellerID)
	if err != nil {
		return err
	}

	fmt.Printf("Negotiating %s (listed at %.2f), up to %d rounds\n", listing.Title, listing.Price, neg.MaxRounds)

	for {
		if _, err := svc.ExecuteTurn(ctx, session.ID, neg.ID); err != nil {
			return err
		}
		current, err := svc.GetSession(ctx, session.ID)
		if err != nil {
			return err
		}
		n, ok := current.Negotiations[neg.ID]
		if !ok {
			return market.ErrNegotiationNotFound
		}
		if len(n.Turns) > 0 {
			last := n.Turns[len(n.Turns)-1]
			fmt.Printf("[round %d] %s offers %.2f  %s\n", last.Round, last.AgentID, last.Offer, last.Message)
		}
		if n.Terminal() {
			switch n.Status {
			case market.StatusAgreed:
				fmt.Printf("Deal at %.2f\n", n.FinalPrice)
			default:
				fmt.Printf("No deal (%s): %s\n", n.Status, n.Reason)
			}
			return nil
		}
	}
}
