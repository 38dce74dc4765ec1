package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

type OpenAICompleter struct {
	client   *http.Client
	apiKey   string
	endpoint string
}

type openAIChatRequest struct {
	Model            string              `json:"model"`
	Messages         []openAIChatMessage `json:"messages"`
	Temperature      float64             `json:"temperature"`
	TopP             float64             `json:"top_p"`
	FrequencyPenalty float64             `json:"frequency_penalty"`
	PresencePenalty  float64             `json:"presence_penalty"`
	MaxTokens        int                 `json:"max_tokens,omitempty"`
	N                int                 `json:"n"`
}

type openAIChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIChatResponse struct {
	Choices []struct {
		Message openAIChatMessage `json:"message"`
	} `json:"choices"`
}

func NewOpenAICompleter(apiKey, baseURL string) *OpenAICompleter {
	endpoint := strings.TrimSpace(baseURL)
	if endpoint == "" {
		endpoint = "https://api.openai.com/v1/chat/completions"
	} else {
		endpoint = strings.TrimRight(endpoint, "/")
		if !strings.HasSuffix(endpoint, "/chat/completions") {
			if strings.HasSuffix(endpoint, "/v1") {
				endpoint += "/chat/completions"
			} else {
				endpoint += "/v1/chat/completions"
			}
		}
	}
	return &OpenAICompleter{
		// Long-form sections take a while; per-call limits come from WithTimeout.
		client:   &http.Client{Timeout: 10 * time.Minute},
		apiKey:   apiKey,
		endpoint: endpoint,
	}
}

func (c *OpenAICompleter) Name() string { return "openai" }

func (c *OpenAICompleter) Complete(ctx context.Context, r Request) (string, error) {
	if strings.TrimSpace(c.apiKey) == "" {
		return "", serviceError(ctx, c.Name(), errors.New("openai api key is required"))
	}
	if strings.TrimSpace(r.Model) == "" {
		return "", serviceError(ctx, c.Name(), errors.New("openai model is required"))
	}

	reqBody := openAIChatRequest{
		Model: r.Model,
		Messages: []openAIChatMessage{
			{Role: "user", Content: r.Prompt},
		},
		Temperature:      r.Sampling.Temperature,
		TopP:             r.Sampling.TopP,
		FrequencyPenalty: r.Sampling.FrequencyPenalty,
		PresencePenalty:  r.Sampling.PresencePenalty,
		MaxTokens:        r.MaxTokens,
		N:                1,
	}
	body, err := json.Marshal(reqBody)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", serviceError(ctx, c.Name(), err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", serviceError(ctx, c.Name(), err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", serviceError(ctx, c.Name(), fmt.Errorf("chat request failed (%d): %s", resp.StatusCode, strings.TrimSpace(string(raw))))
	}

	var parsed openAIChatResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", serviceError(ctx, c.Name(), fmt.Errorf("decode response: %w", err))
	}
	if len(parsed.Choices) == 0 {
		return "", serviceError(ctx, c.Name(), errors.New("response has no choices"))
	}
	return cleanMarkdownOutput(parsed.Choices[0].Message.Content), nil
}
