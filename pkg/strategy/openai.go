package strategy

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/sashabaranov/go-openai"
)

const (
	defaultOpenAIModel = "gpt-4o-mini"
	maxProposalTokens  = 150
)

// ChatCompleter is the narrow slice of the OpenAI client the strategist
// needs; it exists so tests can substitute a fake.
type ChatCompleter interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// OpenAI is a generative strategist backed by the OpenAI chat API.
type OpenAI struct {
	client      ChatCompleter
	model       string
	temperature float32
}

// NewOpenAI creates an OpenAI strategist with a default client.
func NewOpenAI(apiKey, model string, temperature float32) *OpenAI {
	return NewOpenAIWithClient(openai.NewClient(apiKey), model, temperature)
}

// NewOpenAIWithClient creates an OpenAI strategist with a custom client
// (useful for testing).
func NewOpenAIWithClient(client ChatCompleter, model string, temperature float32) *OpenAI {
	if model == "" {
		model = defaultOpenAIModel
	}
	return &OpenAI{client: client, model: model, temperature: temperature}
}

// Propose implements Strategist. A response that cannot be parsed falls
// back to repeating the opposing offer; the safeguard downstream keeps
// even a bad proposal from corrupting the negotiation.
func (o *OpenAI) Propose(ctx context.Context, nc Context) (Proposal, error) {
	req := openai.ChatCompletionRequest{
		Model:       o.model,
		Temperature: o.temperature,
		MaxTokens:   maxProposalTokens,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: BuildPrompt(nc)},
		},
	}

	resp, err := o.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return Proposal{}, fmt.Errorf("openai completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return Proposal{}, fmt.Errorf("openai completion: empty response")
	}

	content := resp.Choices[0].Message.Content
	if os.Getenv("MARKETPLACE_DEBUG") == "true" {
		log.Printf("[Strategy] OpenAI raw response: %s", content)
	}
	return ParseProposal(content, nc.LastOpposingOffer), nil
}

// ParseProposal extracts a Proposal from raw model output. Output that is
// not valid JSON falls back to repeating the given offer, which the
// engine treats as holding position.
func ParseProposal(content string, fallback float64) Proposal {
	content = strings.TrimSpace(content)

	// Models occasionally wrap JSON in a code fence.
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")
	content = strings.TrimSpace(content)

	var p Proposal
	if err := json.Unmarshal([]byte(content), &p); err == nil && p.Offer > 0 {
		return p
	}

	return Proposal{
		Offer:   fallback,
		Message: "Could not parse response.",
	}
}
