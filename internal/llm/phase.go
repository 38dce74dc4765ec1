package llm

import "context"

// Phase tags a request with the traversal step that issued it.
type Phase struct {
	Name  string // outline, introduction, chapter, topic, subtopic, conclusion, glossary
	Label string
}

func (p Phase) String() string {
	if p.Label == "" {
		return p.Name
	}
	return p.Name + ":" + p.Label
}

type phaseKey struct{}

func WithPhase(ctx context.Context, name, label string) context.Context {
	return context.WithValue(ctx, phaseKey{}, Phase{Name: name, Label: label})
}

func PhaseFrom(ctx context.Context) Phase {
	if p, ok := ctx.Value(phaseKey{}).(Phase); ok {
		return p
	}
	return Phase{}
}
