package llm

import (
	"context"
	"errors"
	"fmt"
	"math"

	"google.golang.org/genai"
)

// GeminiCompleter implements Completer using Gemini text generation.
type GeminiCompleter struct {
	client *genai.Client
}

func NewGeminiCompleter(ctx context.Context, apiKey string) (*GeminiCompleter, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}
	return &GeminiCompleter{client: client}, nil
}

func (c *GeminiCompleter) Name() string { return "gemini" }

func (c *GeminiCompleter) Complete(ctx context.Context, r Request) (string, error) {
	cfg := &genai.GenerateContentConfig{
		Temperature:      genai.Ptr(float32(r.Sampling.Temperature)),
		TopP:             genai.Ptr(float32(r.Sampling.TopP)),
		FrequencyPenalty: genai.Ptr(float32(r.Sampling.FrequencyPenalty)),
		PresencePenalty:  genai.Ptr(float32(r.Sampling.PresencePenalty)),
		CandidateCount:   1,
	}
	if r.MaxTokens > 0 {
		cfg.MaxOutputTokens = int32(min(r.MaxTokens, math.MaxInt32))
	}
	resp, err := c.client.Models.GenerateContent(ctx, r.Model, genai.Text(r.Prompt), cfg)
	if err != nil {
		return "", serviceError(ctx, c.Name(), err)
	}
	if len(resp.Candidates) == 0 {
		return "", serviceError(ctx, c.Name(), errors.New("response has no candidates"))
	}
	return cleanMarkdownOutput(resp.Text()), nil
}
