// Package llm is the text generation collaborator: a single blocking
// request/response call per prompt.
package llm

import (
	"context"
	"fmt"
)

// Completer turns one prompt into one completion.
type Completer interface {
	Name() string
	Complete(ctx context.Context, req Request) (string, error)
}

// Request is a single generation call.
type Request struct {
	Model     string
	Prompt    string
	MaxTokens int
	Sampling  Sampling
}

// Sampling carries the decoding parameters sent with every request.
type Sampling struct {
	Temperature      float64
	TopP             float64
	FrequencyPenalty float64
	PresencePenalty  float64
}

// DefaultSampling matches the parameters the book prompts were tuned with.
func DefaultSampling() Sampling {
	return Sampling{Temperature: 0.7, TopP: 1}
}

// GenerationServiceError is returned when a call fails or yields nothing usable.
type GenerationServiceError struct {
	Provider string
	Phase    string
	Err      error
}

func (e *GenerationServiceError) Error() string {
	if e.Phase == "" {
		return fmt.Sprintf("generation service %s: %v", e.Provider, e.Err)
	}
	return fmt.Sprintf("generation service %s (%s): %v", e.Provider, e.Phase, e.Err)
}

func (e *GenerationServiceError) Unwrap() error { return e.Err }

func serviceError(ctx context.Context, provider string, err error) error {
	return &GenerationServiceError{Provider: provider, Phase: PhaseFrom(ctx).String(), Err: err}
}
