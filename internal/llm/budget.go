package llm

import (
	"context"
	"fmt"
	"unicode/utf8"
)

// DefaultTokenCeiling bounds prompt and response together.
const DefaultTokenCeiling = 4097

// TokenBudget is the response budget left once the prompt is accounted for.
// Prompt length is measured in characters, which over-counts tokens and keeps
// the total safely below the ceiling.
func TokenBudget(ceiling int, prompt string) int {
	if ceiling <= 0 {
		ceiling = DefaultTokenCeiling
	}
	return ceiling - utf8.RuneCountInString(prompt)
}

// NewRequest builds a request whose MaxTokens is the remaining budget.
func NewRequest(ctx context.Context, model, prompt string, ceiling int, sampling Sampling) (Request, error) {
	budget := TokenBudget(ceiling, prompt)
	if budget <= 0 {
		return Request{}, serviceError(ctx, "budget", fmt.Errorf("prompt of %d characters exceeds token ceiling %d", utf8.RuneCountInString(prompt), ceiling))
	}
	return Request{Model: model, Prompt: prompt, MaxTokens: budget, Sampling: sampling}, nil
}
