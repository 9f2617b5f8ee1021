package strategy

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
)

const defaultBedrockModel = "anthropic.claude-3-haiku-20240307-v1:0"

// bedrockInvoker is the slice of the Bedrock runtime client used here.
type bedrockInvoker interface {
	InvokeModel(ctx context.Context, params *bedrockruntime.InvokeModelInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelOutput, error)
}

// Bedrock is a generative strategist backed by AWS Bedrock Anthropic
// models.
type Bedrock struct {
	client      bedrockInvoker
	model       string
	temperature float32
}

// NewBedrock creates a Bedrock strategist using the default AWS
// credential chain.
func NewBedrock(ctx context.Context, region, model string, temperature float32) (*Bedrock, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	if model == "" {
		model = defaultBedrockModel
	}
	return &Bedrock{
		client:      bedrockruntime.NewFromConfig(cfg),
		model:       model,
		temperature: temperature,
	}, nil
}

// anthropicRequest is the Bedrock Anthropic messages payload.
type anthropicRequest struct {
	AnthropicVersion string             `json:"anthropic_version"`
	MaxTokens        int                `json:"max_tokens"`
	Temperature      float32            `json:"temperature"`
	Messages         []anthropicMessage `json:"messages"`
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicResponse struct {
	Content []struct {
		Text string `json:"text"`
	} `json:"content"`
}

// Propose implements Strategist.
func (b *Bedrock) Propose(ctx context.Context, nc Context) (Proposal, error) {
	body, err := json.Marshal(anthropicRequest{
		AnthropicVersion: "bedrock-2023-05-31",
		MaxTokens:        maxProposalTokens,
		Temperature:      b.temperature,
		Messages: []anthropicMessage{
			{Role: "user", Content: BuildPrompt(nc)},
		},
	})
	if err != nil {
		return Proposal{}, fmt.Errorf("marshal bedrock request: %w", err)
	}

	out, err := b.client.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     aws.String(b.model),
		ContentType: aws.String("application/json"),
		Body:        body,
	})
	if err != nil {
		return Proposal{}, fmt.Errorf("bedrock invoke: %w", err)
	}

	var resp anthropicResponse
	if err := json.Unmarshal(out.Body, &resp); err != nil {
		return Proposal{}, fmt.Errorf("parse bedrock response: %w", err)
	}
	if len(resp.Content) == 0 {
		return Proposal{}, fmt.Errorf("bedrock invoke: empty response")
	}
	return ParseProposal(resp.Content[0].Text, nc.LastOpposingOffer), nil
}
