package strategy

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/peterh/liner"

	"github.com/RushiPardeshi/agent-marketplace/internal/market"
)

// Human is an interactive strategist that reads offers from the terminal.
// It lets a person play either side against an automated counterpart.
type Human struct {
	line *liner.State
}

// NewHuman creates a terminal-backed strategist. Call Close when done.
func NewHuman() *Human {
	l := liner.NewLiner()
	l.SetCtrlCAborts(true)
	return &Human{line: l}
}

// Close releases the terminal state.
func (h *Human) Close() error {
	return h.line.Close()
}

// Propose implements Strategist. It prints the negotiation situation and
// prompts for a number or "accept".
func (h *Human) Propose(ctx context.Context, nc Context) (Proposal, error) {
	side := "Buyer"
	if nc.Role == market.RoleSeller {
		side = "Seller"
	}
	fmt.Printf("\n[%s turn, round %d]\n", side, nc.Round)
	if nc.ListingTitle != "" {
		fmt.Printf("Product: %s (listed at $%.2f)\n", nc.ListingTitle, nc.ListingPrice)
	}
	fmt.Println(MarketContextString(nc))
	fmt.Printf("Rounds left: %d\n", nc.RoundsLeft)
	fmt.Printf("Last offer from the other side: $%.2f\n", nc.LastOpposingOffer)
	if nc.Role == market.RoleBuyer {
		fmt.Printf("Your maximum budget: $%.2f\n", nc.Bound)
	} else {
		fmt.Printf("Your minimum price: $%.2f\n", nc.Bound)
	}

	for {
		if err := ctx.Err(); err != nil {
			return Proposal{}, err
		}

		raw, err := h.line.Prompt("offer (number or 'accept')> ")
		if err != nil {
			return Proposal{}, fmt.Errorf("read offer: %w", err)
		}
		raw = strings.TrimSpace(raw)

		if strings.EqualFold(raw, "accept") || strings.EqualFold(raw, "deal") {
			return Proposal{
				Offer:   nc.LastOpposingOffer,
				Message: fmt.Sprintf("Deal. I accept $%.2f.", nc.LastOpposingOffer),
				Accept:  true,
			}, nil
		}

		offer, err := strconv.ParseFloat(raw, 64)
		if err != nil || offer <= 0 {
			fmt.Println("Please enter a positive number or 'accept'.")
			continue
		}

		msg, err := h.line.Prompt("message (optional)> ")
		if err != nil {
			return Proposal{}, fmt.Errorf("read message: %w", err)
		}
		msg = strings.TrimSpace(msg)
		if msg == "" {
			msg = "Here is my offer."
		}
		h.line.AppendHistory(raw)
		return Proposal{Offer: offer, Message: msg}, nil
	}
}
