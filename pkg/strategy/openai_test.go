package strategy

import (
	"context"
	"errors"
	"strings"
	"testing"

	openai "github.com/sashabaranov/go-openai"

	"github.com/RushiPardeshi/agent-marketplace/internal/market"
)

type fakeChatCompleter struct {
	content string
	err     error
	lastReq openai.ChatCompletionRequest
}

func (f *fakeChatCompleter) CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	f.lastReq = req
	if f.err != nil {
		return openai.ChatCompletionResponse{}, f.err
	}
	return openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{
			{Message: openai.ChatCompletionMessage{Content: f.content}},
		},
	}, nil
}

func TestOpenAIProposeParsesResponse(t *testing.T) {
	fake := &fakeChatCompleter{content: `{"offer": 975.50, "message": "Meeting you halfway."}`}
	o := NewOpenAIWithClient(fake, "", 0.4)

	nc := Context{
		Role:              market.RoleBuyer,
		AgentID:           "b1",
		Bound:             1100,
		ListingPrice:      1200,
		ListingTitle:      "MacBook Pro 2021 (14-inch)",
		LastOpposingOffer: 1150,
		RoundsLeft:        8,
	}
	p, err := o.Propose(context.Background(), nc)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Offer != 975.50 {
		t.Errorf("expected offer 975.50, got %v", p.Offer)
	}
	if p.Message != "Meeting you halfway." {
		t.Errorf("unexpected message: %q", p.Message)
	}

	if fake.lastReq.Model != defaultOpenAIModel {
		t.Errorf("expected default model, got %s", fake.lastReq.Model)
	}
	if len(fake.lastReq.Messages) != 1 {
		t.Fatalf("expected a single system message, got %d", len(fake.lastReq.Messages))
	}
	prompt := fake.lastReq.Messages[0].Content
	if !strings.Contains(prompt, "maximum budget is $1100.00") {
		t.Errorf("prompt missing the buyer bound: %s", prompt)
	}
	if !strings.Contains(prompt, "MacBook Pro") {
		t.Errorf("prompt missing the listing title: %s", prompt)
	}
}

func TestOpenAIProposeError(t *testing.T) {
	fake := &fakeChatCompleter{err: errors.New("rate limited")}
	o := NewOpenAIWithClient(fake, "gpt-4o", 0)

	_, err := o.Propose(context.Background(), Context{Role: market.RoleBuyer})
	if err == nil || !strings.Contains(err.Error(), "rate limited") {
		t.Errorf("expected wrapped API error, got %v", err)
	}
}

func TestParseProposal(t *testing.T) {
	tests := []struct {
		name      string
		content   string
		wantOffer float64
	}{
		{"plain json", `{"offer": 950, "message": "deal?"}`, 950},
		{"code fenced", "```json\n{\"offer\": 950, \"message\": \"deal?\"}\n```", 950},
		{"bare fence", "```\n{\"offer\": 875.25}\n```", 875.25},
		{"garbage falls back", "I think we should haggle more", 1000},
		{"zero offer falls back", `{"offer": 0}`, 1000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := ParseProposal(tt.content, 1000)
			if p.Offer != tt.wantOffer {
				t.Errorf("ParseProposal(%q) offer = %v, want %v", tt.content, p.Offer, tt.wantOffer)
			}
		})
	}
}

func TestBuildPromptSellerTarget(t *testing.T) {
	nc := Context{
		Role:         market.RoleSeller,
		Bound:        900,
		SellerTarget: 1080,
		ListingPrice: 1200,
	}
	prompt := BuildPrompt(nc)
	if !strings.Contains(prompt, "minimum acceptable price is $900.00") {
		t.Error("prompt missing seller floor")
	}
	if !strings.Contains(prompt, "$1080.00") {
		t.Error("prompt missing seller target anchor")
	}
}
