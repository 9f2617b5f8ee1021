package strategy

import (
	"fmt"
	"strings"

	"github.com/RushiPardeshi/agent-marketplace/internal/market"
)

// BuildPrompt renders the system prompt for a generative strategist.
// The acting side's bound and leverage are included; the counterpart's
// bound never is.
func BuildPrompt(nc Context) string {
	var b strings.Builder

	if nc.Role == market.RoleBuyer {
		b.WriteString("You are a buyer negotiating the price of a product. ")
		b.WriteString("Your goal is to purchase the product for the lowest possible price. ")
		fmt.Fprintf(&b, "Your absolute maximum budget is $%.2f. ", nc.Bound)
	} else {
		b.WriteString("You are a seller negotiating the price of a product. ")
		b.WriteString("Your goal is to sell the product for the highest possible price. ")
		fmt.Fprintf(&b, "Your absolute minimum acceptable price is $%.2f. ", nc.Bound)
		if nc.SellerTarget > 0 {
			fmt.Fprintf(&b, "Aim for around $%.2f. ", nc.SellerTarget)
		}
	}

	if nc.ListingTitle != "" {
		fmt.Fprintf(&b, "Product: %s. ", nc.ListingTitle)
	}
	fmt.Fprintf(&b, "Listing price: $%.2f. ", nc.ListingPrice)
	b.WriteString(MarketContextString(nc))

	if transcript := TranscriptString(nc); transcript != "" {
		fmt.Fprintf(&b, "The negotiation so far:\n%s\n", transcript)
	}
	fmt.Fprintf(&b, "The last offer from the other side was $%.2f. ", nc.LastOpposingOffer)
	fmt.Fprintf(&b, "You have %d rounds left. ", nc.RoundsLeft)

	if nc.Role == market.RoleBuyer {
		b.WriteString("Strategy: start low but credible, concede in small steps, " +
			"and never jump straight to your maximum. ")
		b.WriteString("If the seller's offer is within budget and fair, accept it by repeating that price. ")
	} else {
		b.WriteString("Strategy: defend your price and concede in small steps only when necessary. ")
		b.WriteString("If the buyer's offer is acceptable, close by repeating that price. ")
	}

	b.WriteString(`Reply with a valid JSON object (double quotes for keys and strings): ` +
		`{"offer": <number>, "message": "<short reasoning>"}.`)
	return b.String()
}

// TranscriptString renders the turn history from the acting side's
// perspective, marking own turns as "You".
func TranscriptString(nc Context) string {
	var lines []string
	for _, t := range nc.Turns {
		marker := t.AgentID
		if t.AgentID == nc.AgentID {
			marker = "You"
		}
		lines = append(lines, fmt.Sprintf("%s (%s) offered $%.2f: %s", marker, t.Role, t.Offer, t.Message))
	}
	return strings.Join(lines, "\n")
}

// MarketContextString summarizes the acting side's competitive position.
func MarketContextString(nc Context) string {
	if nc.Role == market.RoleBuyer {
		return fmt.Sprintf("You have %s leverage. Market: %d sellers available, %d buyers competing, %d active negotiations. ",
			nc.Leverage, nc.Market.ActiveSellers, nc.Market.ActiveBuyers, nc.Market.ActiveNegotiations)
	}
	return fmt.Sprintf("You have %s leverage. Market: %d buyers interested, %d sellers competing, %d active negotiations. ",
		nc.Leverage, nc.Market.ActiveBuyers, nc.Market.ActiveSellers, nc.Market.ActiveNegotiations)
}
