package strategy

import (
	"context"
	"fmt"
	"time"

	"google.golang.org/genai"
)

const (
	defaultGeminiModel  = "gemini-2.0-flash"
	geminiClientTimeout = 30 * time.Second
)

// Gemini is a generative strategist backed by the Google Gen AI SDK.
// It works against either the Gemini API or a Vertex AI backend,
// depending on the client configuration.
type Gemini struct {
	client      *genai.Client
	model       string
	temperature float32
}

// NewGemini creates a Gemini strategist. With a non-empty projectID the
// client targets Vertex AI using Application Default Credentials;
// otherwise it uses the Gemini API with the given key.
func NewGemini(apiKey, projectID, location, model string, temperature float32) (*Gemini, error) {
	ctx, cancel := context.WithTimeout(context.Background(), geminiClientTimeout)
	defer cancel()

	cfg := &genai.ClientConfig{}
	if projectID != "" {
		if location == "" {
			location = "us-central1"
		}
		cfg.Project = projectID
		cfg.Location = location
		cfg.Backend = genai.BackendVertexAI
	} else {
		cfg.APIKey = apiKey
	}

	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}

	if model == "" {
		model = defaultGeminiModel
	}
	return &Gemini{client: client, model: model, temperature: temperature}, nil
}

// Propose implements Strategist.
func (g *Gemini) Propose(ctx context.Context, nc Context) (Proposal, error) {
	config := &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		Temperature:      genai.Ptr(g.temperature),
		MaxOutputTokens:  maxProposalTokens,
	}

	contents := []*genai.Content{
		genai.NewContentFromText(BuildPrompt(nc), genai.RoleUser),
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.model, contents, config)
	if err != nil {
		return Proposal{}, fmt.Errorf("gemini completion: %w", err)
	}

	text := resp.Text()
	if text == "" {
		return Proposal{}, fmt.Errorf("gemini completion: empty response")
	}
	return ParseProposal(text, nc.LastOpposingOffer), nil
}
