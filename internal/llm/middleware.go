package llm

import (
	"context"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"
)

// Middleware decorates a Completer with a cross-cutting concern
// (logging, timeouts, journaling).
type Middleware func(Completer) Completer

// Wrap applies middlewares in left-to-right order.
// Example: Wrap(inner, A, B) => A(B(inner))
func Wrap(inner Completer, mws ...Middleware) Completer {
	out := inner
	for i := len(mws) - 1; i >= 0; i-- {
		if mws[i] != nil {
			out = mws[i](out)
		}
	}
	return out
}

type completerFunc struct {
	name string
	fn   func(ctx context.Context, req Request) (string, error)
}

func (c completerFunc) Name() string { return c.name }
func (c completerFunc) Complete(ctx context.Context, req Request) (string, error) {
	return c.fn(ctx, req)
}

// -------- Logging --------

// WithLogging logs every request and its outcome at debug level, failures at error level.
func WithLogging(logger *zap.Logger) Middleware {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(next Completer) Completer {
		return completerFunc{name: next.Name(), fn: func(ctx context.Context, req Request) (string, error) {
			phase := PhaseFrom(ctx)
			logger.Debug("LLM request",
				zap.String("completer", next.Name()),
				zap.String("phase", phase.String()),
				zap.String("model", req.Model),
				zap.Int("prompt_chars", utf8.RuneCountInString(req.Prompt)),
				zap.Int("max_tokens", req.MaxTokens))
			start := time.Now()
			out, err := next.Complete(ctx, req)
			if err != nil {
				logger.Error("LLM request failed",
					zap.String("phase", phase.String()),
					zap.Duration("elapsed", time.Since(start)),
					zap.Error(err))
				return "", err
			}
			logger.Debug("LLM response",
				zap.String("phase", phase.String()),
				zap.Int("response_chars", utf8.RuneCountInString(out)),
				zap.Duration("elapsed", time.Since(start)))
			return out, nil
		}}
	}
}

// -------- Timeout --------

// WithTimeout bounds each call. A non-positive duration disables it.
func WithTimeout(d time.Duration) Middleware {
	return func(next Completer) Completer {
		if d <= 0 {
			return next
		}
		return completerFunc{name: next.Name(), fn: func(ctx context.Context, req Request) (string, error) {
			ctx, cancel := context.WithTimeout(ctx, d)
			defer cancel()
			out, err := next.Complete(ctx, req)
			if err != nil && ctx.Err() != nil {
				return "", serviceError(ctx, next.Name(), err)
			}
			return out, err
		}}
	}
}

// -------- Journal --------

// CallRecord describes one finished generation call.
type CallRecord struct {
	Phase         string
	Label         string
	Model         string
	PromptChars   int
	ResponseChars int
	Duration      time.Duration
	Err           string
}

// Journal persists call records, typically into the run ledger.
type Journal interface {
	RecordCall(ctx context.Context, rec CallRecord) error
}

// WithJournal records every call. Journal failures are logged and do not
// fail the call.
func WithJournal(j Journal, logger *zap.Logger) Middleware {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(next Completer) Completer {
		if j == nil {
			return next
		}
		return completerFunc{name: next.Name(), fn: func(ctx context.Context, req Request) (string, error) {
			start := time.Now()
			out, err := next.Complete(ctx, req)
			phase := PhaseFrom(ctx)
			rec := CallRecord{
				Phase:         phase.Name,
				Label:         phase.Label,
				Model:         req.Model,
				PromptChars:   utf8.RuneCountInString(req.Prompt),
				ResponseChars: utf8.RuneCountInString(out),
				Duration:      time.Since(start),
			}
			if err != nil {
				rec.Err = err.Error()
			}
			if jerr := j.RecordCall(context.WithoutCancel(ctx), rec); jerr != nil {
				logger.Warn("Failed to journal LLM call", zap.String("phase", phase.String()), zap.Error(jerr))
			}
			return out, err
		}}
	}
}
