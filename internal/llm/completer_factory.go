package llm

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

type CompleterOptions struct {
	Provider string
	APIKey   string
	BaseURL  string
	DryRun   bool
	Logger   *zap.Logger
}

func NewCompleter(ctx context.Context, opts CompleterOptions) (Completer, error) {
	if opts.DryRun {
		return NewDryRunCompleter(opts.Logger), nil
	}
	provider := strings.ToLower(strings.TrimSpace(opts.Provider))
	if provider == "" {
		provider = "openai"
	}
	if strings.TrimSpace(opts.APIKey) == "" {
		return nil, fmt.Errorf("%s api key not configured", provider)
	}

	switch provider {
	case "gemini":
		return NewGeminiCompleter(ctx, opts.APIKey)
	case "openai":
		return NewOpenAICompleter(opts.APIKey, opts.BaseURL), nil
	default:
		return nil, fmt.Errorf("unsupported completer provider: %s", opts.Provider)
	}
}
