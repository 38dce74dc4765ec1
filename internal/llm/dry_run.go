package llm

import (
	"context"
	"unicode/utf8"

	"go.uber.org/zap"
)

// DryRunCompleter logs each prompt and answers with an empty completion.
// It lets a run be rehearsed against a stored outline without calling a service.
type DryRunCompleter struct {
	logger *zap.Logger
}

func NewDryRunCompleter(logger *zap.Logger) *DryRunCompleter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DryRunCompleter{logger: logger}
}

func (c *DryRunCompleter) Name() string { return "dry-run" }

func (c *DryRunCompleter) Complete(ctx context.Context, r Request) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	c.logger.Info("PROMPT",
		zap.String("phase", PhaseFrom(ctx).String()),
		zap.Int("prompt_chars", utf8.RuneCountInString(r.Prompt)),
		zap.String("prompt", r.Prompt))
	return "", nil
}
