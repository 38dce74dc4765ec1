package resolver

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"bookgen/internal/llm"
	"bookgen/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCompleter struct {
	replies []string
	err     error
	prompts  []string
	phases   []llm.Phase
	sampling []llm.Sampling
}

func (f *fakeCompleter) Name() string { return "fake" }

func (f *fakeCompleter) Complete(ctx context.Context, req llm.Request) (string, error) {
	f.prompts = append(f.prompts, req.Prompt)
	f.phases = append(f.phases, llm.PhaseFrom(ctx))
	f.sampling = append(f.sampling, req.Sampling)
	if f.err != nil {
		return "", f.err
	}
	i := len(f.prompts) - 1
	if i >= len(f.replies) {
		i = len(f.replies) - 1
	}
	return f.replies[i], nil
}

type scriptedDecider struct {
	decisions []Decision
	seen      []string
}

func (d *scriptedDecider) Decide(ctx context.Context, topic, text string) (Decision, error) {
	d.seen = append(d.seen, text)
	next := d.decisions[0]
	d.decisions = d.decisions[1:]
	return next, nil
}

type fixedSelector struct {
	pick  int // -1 for a new outline
	shown []storage.OutlineID
}

func (s *fixedSelector) Select(ctx context.Context, topic string, stored []storage.OutlineID) (storage.OutlineID, bool, error) {
	s.shown = stored
	if s.pick < 0 {
		return storage.OutlineID{}, false, nil
	}
	return stored[s.pick], true, nil
}

func seed(t *testing.T, dir string, names ...string) {
	t.Helper()
	for _, n := range names {
		require.NoError(t, os.WriteFile(filepath.Join(dir, n), []byte("widgets\nChapter 1: "+n+"\nTopic 1: A\n"), 0644))
	}
}

func TestResolve_ReuseLatestPicksGreatestSuffix(t *testing.T) {
	dir := t.TempDir()
	seed(t, dir, "widgets_outline.00001.txt", "widgets_outline.00002.txt")
	fc := &fakeCompleter{}

	r := New(storage.NewFileOutlineStore(dir), fc, Options{Policy: ReuseLatest})
	res, err := r.Resolve(context.Background(), "widgets")
	require.NoError(t, err)

	assert.Equal(t, "00002", res.ID.Suffix())
	assert.True(t, res.Reused)
	assert.Contains(t, res.Text, "widgets_outline.00002.txt")
	assert.Empty(t, fc.prompts, "reuse must not call the generation service")
}

func TestResolve_AlwaysNewWithNothingStored(t *testing.T) {
	dir := t.TempDir()
	fc := &fakeCompleter{replies: []string{"Book Title: Widgets\nChapter 1: Intro\nTopic 1: Basics\n"}}

	r := New(storage.NewFileOutlineStore(dir), fc, Options{Policy: AlwaysNew, Model: "m", TokenCeiling: 4097})
	res, err := r.Resolve(context.Background(), "widgets")
	require.NoError(t, err)

	require.Len(t, fc.prompts, 1)
	assert.Equal(t, OutlinePrompt("widgets"), fc.prompts[0])
	assert.Equal(t, "outline", fc.phases[0].Name)
	assert.Equal(t, "00001", res.ID.Suffix())
	assert.False(t, res.Reused)
	assert.Equal(t, "widgets\nBook Title: Widgets\nChapter 1: Intro\nTopic 1: Basics\n", res.Text)

	stored, err := os.ReadFile(filepath.Join(dir, "widgets_outline.00001.txt"))
	require.NoError(t, err)
	assert.Equal(t, res.Text, string(stored))
}

func TestResolve_AlwaysNewTakesNextSuffix(t *testing.T) {
	dir := t.TempDir()
	seed(t, dir, "widgets_outline.00001.txt", "widgets_outline.00009.txt")
	fc := &fakeCompleter{replies: []string{"Chapter 1: X\nTopic 1: Y\n"}}

	res, err := New(storage.NewFileOutlineStore(dir), fc, Options{Policy: AlwaysNew}).Resolve(context.Background(), "widgets")
	require.NoError(t, err)
	assert.Equal(t, "00010", res.ID.Suffix())
	assert.FileExists(t, filepath.Join(dir, "widgets_outline.00010.txt"))
}

func TestResolve_ReuseLatestFallsBackToGeneration(t *testing.T) {
	dir := t.TempDir()
	seed(t, dir, "gadgets_outline.00004.txt")
	fc := &fakeCompleter{replies: []string{"Chapter 1: X\nTopic 1: Y\n"}}

	res, err := New(storage.NewFileOutlineStore(dir), fc, Options{Policy: ReuseLatest}).Resolve(context.Background(), "widgets")
	require.NoError(t, err)
	assert.Len(t, fc.prompts, 1)
	assert.Equal(t, "widgets_outline.00001.txt", res.ID.FileName())
}

func TestResolve_NoOutlineAvailable(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "outlines")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0644))
	svcErr := &llm.GenerationServiceError{Provider: "fake", Err: errors.New("unreachable")}
	fc := &fakeCompleter{err: svcErr}

	_, err := New(storage.NewFileOutlineStore(blocker), fc, Options{Policy: ReuseLatest}).Resolve(context.Background(), "widgets")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNoOutlineAvailable)
	var gErr *llm.GenerationServiceError
	assert.True(t, errors.As(err, &gErr))
	assert.Contains(t, err.Error(), "outline storage")
}

func TestResolve_PromptOverCeiling(t *testing.T) {
	fc := &fakeCompleter{replies: []string{"x"}}
	_, err := New(storage.NewFileOutlineStore(t.TempDir()), fc, Options{Policy: AlwaysNew, TokenCeiling: 10}).Resolve(context.Background(), "widgets")
	assert.ErrorIs(t, err, ErrNoOutlineAvailable)
	assert.Empty(t, fc.prompts)
}

func TestResolve_InteractiveAcceptAfterRegenerate(t *testing.T) {
	tests := []struct {
		name         string
		regeneration Regeneration
		wantFiles    []string
		wantID       string
	}{
		{"replace drafts", ReplaceDraft, []string{"widgets_outline.00001.txt"}, "00001"},
		{"keep drafts", KeepDrafts, []string{"widgets_outline.00001.txt", "widgets_outline.00002.txt", "widgets_outline.00003.txt"}, "00003"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			fc := &fakeCompleter{replies: []string{"Chapter 1: v1\n", "Chapter 1: v2\n", "Chapter 1: v3\nTopic 1: T\n"}}
			d := &scriptedDecider{decisions: []Decision{Regenerate, Regenerate, Accept}}

			r := New(storage.NewFileOutlineStore(dir), fc, Options{Policy: Interactive, Regeneration: tt.regeneration, Decider: d})
			res, err := r.Resolve(context.Background(), "widgets")
			require.NoError(t, err)

			assert.Len(t, fc.prompts, 3)
			assert.Len(t, d.seen, 3)
			assert.Equal(t, tt.wantID, res.ID.Suffix())
			assert.Contains(t, res.Text, "v3")

			entries, err := os.ReadDir(dir)
			require.NoError(t, err)
			var names []string
			for _, e := range entries {
				names = append(names, e.Name())
			}
			assert.Equal(t, tt.wantFiles, names)
		})
	}
}

func TestResolve_InteractiveAbort(t *testing.T) {
	dir := t.TempDir()
	fc := &fakeCompleter{replies: []string{"Chapter 1: v1\n"}}
	d := &scriptedDecider{decisions: []Decision{Abort}}

	_, err := New(storage.NewFileOutlineStore(dir), fc, Options{Policy: Interactive, Decider: d}).Resolve(context.Background(), "widgets")
	assert.ErrorIs(t, err, ErrAborted)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries, "aborted outlines are not stored")
}

func TestResolve_InteractiveSelection(t *testing.T) {
	dir := t.TempDir()
	seed(t, dir, "widgets_outline.00001.txt", "widgets_outline.00002.txt")

	sel := &fixedSelector{pick: 0}
	fc := &fakeCompleter{}
	r := New(storage.NewFileOutlineStore(dir), fc, Options{Policy: Interactive, Decider: &scriptedDecider{}, Selector: sel})
	res, err := r.Resolve(context.Background(), "widgets")
	require.NoError(t, err)
	assert.Len(t, sel.shown, 2)
	assert.Equal(t, "00001", res.ID.Suffix())
	assert.Empty(t, fc.prompts)

	// choosing "new" generates under the next suffix
	sel = &fixedSelector{pick: -1}
	fc = &fakeCompleter{replies: []string{"Chapter 1: X\nTopic 1: Y\n"}}
	d := &scriptedDecider{decisions: []Decision{Accept}}
	r = New(storage.NewFileOutlineStore(dir), fc, Options{Policy: Interactive, Decider: d, Selector: sel})
	res, err = r.Resolve(context.Background(), "widgets")
	require.NoError(t, err)
	assert.Equal(t, "00003", res.ID.Suffix())
}

func TestResolve_InteractiveNeedsDecider(t *testing.T) {
	_, err := New(storage.NewFileOutlineStore(t.TempDir()), &fakeCompleter{}, Options{Policy: Interactive}).Resolve(context.Background(), "widgets")
	assert.ErrorContains(t, err, "decider")
}

func TestParsePolicy(t *testing.T) {
	p, err := ParsePolicy(" Reuse-Latest ")
	require.NoError(t, err)
	assert.Equal(t, ReuseLatest, p)
	_, err = ParsePolicy("never")
	assert.Error(t, err)

	r, err := ParseRegeneration("")
	require.NoError(t, err)
	assert.Equal(t, ReplaceDraft, r)
	_, err = ParseRegeneration("overwrite")
	assert.Error(t, err)
}

func TestResolve_SamplingIsSentAsConfigured(t *testing.T) {
	tests := []struct {
		name     string
		sampling llm.Sampling
	}{
		{"all zero", llm.Sampling{}},
		{"defaults", llm.DefaultSampling()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fc := &fakeCompleter{replies: []string{"Book Title: Widgets\nChapter 1: Intro\nTopic 1: Basics\n"}}
			r := New(storage.NewFileOutlineStore(t.TempDir()), fc, Options{Policy: AlwaysNew, Sampling: tt.sampling})
			_, err := r.Resolve(context.Background(), "widgets")
			require.NoError(t, err)
			require.Len(t, fc.sampling, 1)
			assert.Equal(t, tt.sampling, fc.sampling[0])
		})
	}
}
