// Package resolver decides which outline text a run starts from: a stored
// outline or a freshly generated one.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"bookgen/internal/llm"
	"bookgen/internal/storage"

	"go.uber.org/zap"
)

var (
	// ErrNoOutlineAvailable means no outline text could be read or generated.
	ErrNoOutlineAvailable = errors.New("no outline available")
	// ErrAborted means the operator rejected the outline and ended the run.
	ErrAborted = errors.New("outline rejected by operator")
)

type Policy string

const (
	ReuseLatest Policy = "reuse-latest"
	AlwaysNew   Policy = "always-new"
	Interactive Policy = "interactive"
)

func ParsePolicy(s string) (Policy, error) {
	switch p := Policy(strings.ToLower(strings.TrimSpace(s))); p {
	case ReuseLatest, AlwaysNew, Interactive:
		return p, nil
	}
	return "", fmt.Errorf("unknown outline policy %q", s)
}

// Regeneration controls what happens to drafts the operator rejects.
type Regeneration string

const (
	// ReplaceDraft never writes rejected drafts; the accepted one takes the next suffix.
	ReplaceDraft Regeneration = "replace"
	// KeepDrafts writes every rejected draft under its own suffix.
	KeepDrafts Regeneration = "keep"
)

func ParseRegeneration(s string) (Regeneration, error) {
	switch r := Regeneration(strings.ToLower(strings.TrimSpace(s))); r {
	case ReplaceDraft, KeepDrafts:
		return r, nil
	case "":
		return ReplaceDraft, nil
	}
	return "", fmt.Errorf("unknown regeneration policy %q", s)
}

// Decision is the operator's verdict on a freshly generated outline.
type Decision int

const (
	Accept Decision = iota
	Abort
	Regenerate
)

func (d Decision) String() string {
	switch d {
	case Accept:
		return "accept"
	case Abort:
		return "abort"
	case Regenerate:
		return "regenerate"
	}
	return fmt.Sprintf("Decision(%d)", int(d))
}

// Decider reviews a generated outline.
type Decider interface {
	Decide(ctx context.Context, topic, outlineText string) (Decision, error)
}

// Selector picks one of the stored outlines, or asks for a new one by
// returning ok=false.
type Selector interface {
	Select(ctx context.Context, topic string, stored []storage.OutlineID) (id storage.OutlineID, ok bool, err error)
}

// Resolution is the outcome of Resolve. Text always starts with the topic header line.
type Resolution struct {
	Text   string
	ID     storage.OutlineID
	Reused bool
}

type Options struct {
	Policy       Policy
	Regeneration Regeneration
	Model        string
	TokenCeiling int
	Sampling     llm.Sampling
	Decider      Decider  // required for Interactive
	Selector     Selector // optional for Interactive
	Logger       *zap.Logger
}

type Resolver struct {
	store     storage.OutlineStore
	completer llm.Completer
	opts      Options
	logger    *zap.Logger
}

func New(store storage.OutlineStore, completer llm.Completer, opts Options) *Resolver {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Regeneration == "" {
		opts.Regeneration = ReplaceDraft
	}
	return &Resolver{store: store, completer: completer, opts: opts, logger: logger}
}

// Resolve returns the outline text for the topic according to the policy.
func (r *Resolver) Resolve(ctx context.Context, topic string) (Resolution, error) {
	if err := storage.ValidateTopic(topic); err != nil {
		return Resolution{}, err
	}
	if r.opts.Policy == Interactive && r.opts.Decider == nil {
		return Resolution{}, errors.New("interactive policy requires a decider")
	}

	stored, listErr := r.store.List(topic)
	if listErr != nil {
		r.logger.Warn("Outline storage unavailable", zap.String("topic", topic), zap.Error(listErr))
	}

	if len(stored) > 0 {
		latest := stored[len(stored)-1]
		switch r.opts.Policy {
		case ReuseLatest:
			return r.load(latest)
		case Interactive:
			if r.opts.Selector != nil {
				id, ok, err := r.opts.Selector.Select(ctx, topic, stored)
				if err != nil {
					return Resolution{}, err
				}
				if ok {
					return r.load(id)
				}
			}
		}
	}

	next := storage.FirstOutlineID(topic)
	if len(stored) > 0 {
		next = stored[len(stored)-1].Next()
	}
	res, err := r.generate(ctx, topic, next)
	if err != nil && listErr != nil {
		return Resolution{}, fmt.Errorf("%w (outline storage: %v)", err, listErr)
	}
	return res, err
}

func (r *Resolver) load(id storage.OutlineID) (Resolution, error) {
	text, err := r.store.Load(id)
	if err != nil {
		return Resolution{}, fmt.Errorf("%w: %w", ErrNoOutlineAvailable, err)
	}
	r.logger.Info("Reusing stored outline", zap.String("outline", id.FileName()))
	return Resolution{Text: text, ID: id, Reused: true}, nil
}

func (r *Resolver) generate(ctx context.Context, topic string, id storage.OutlineID) (Resolution, error) {
	for {
		body, err := r.request(ctx, topic)
		if err != nil {
			return Resolution{}, fmt.Errorf("%w: %w", ErrNoOutlineAvailable, err)
		}

		if r.opts.Policy == Interactive {
			decision, err := r.opts.Decider.Decide(ctx, topic, body)
			if err != nil {
				return Resolution{}, err
			}
			r.logger.Info("Outline reviewed", zap.String("decision", decision.String()))
			switch decision {
			case Abort:
				return Resolution{}, ErrAborted
			case Regenerate:
				if r.opts.Regeneration == KeepDrafts {
					if err := r.store.Save(id, body); err != nil {
						return Resolution{}, err
					}
					id = id.Next()
				}
				continue
			case Accept:
			default:
				return Resolution{}, fmt.Errorf("unknown decision %v", decision)
			}
		}

		if err := r.store.Save(id, body); err != nil {
			return Resolution{}, err
		}
		r.logger.Info("Stored new outline", zap.String("outline", id.FileName()))
		return Resolution{Text: storage.FormatOutlineFile(topic, body), ID: id}, nil
	}
}

func (r *Resolver) request(ctx context.Context, topic string) (string, error) {
	ctx = llm.WithPhase(ctx, "outline", topic)
	req, err := llm.NewRequest(ctx, r.opts.Model, OutlinePrompt(topic), r.opts.TokenCeiling, r.opts.Sampling)
	if err != nil {
		return "", err
	}
	return r.completer.Complete(ctx, req)
}

// OutlinePrompt is the fixed instruction used to request a new outline.
func OutlinePrompt(topic string) string {
	return fmt.Sprintf("Write me a book outline on %s. Use your best judgement to determine the number of chapters for the book (choose 8, 9, 10, 11, 12 or 13). ", topic) +
		"Each chapter has 3 topics. Each topic has 2 subtopics.  Chapters are counted with integers. " +
		"Topics are counted with integers under Chapters with the prefix Topic:. Subtopics are prefixed with only bullet points under topics." +
		"Propose a title for the book with Book Title prefix."
}
