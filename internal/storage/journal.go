package storage

import (
	"context"
	"sync"

	"bookgen/internal/llm"
)

// RunJournal adapts a RunLedger to llm.Journal for a single run, numbering
// calls in the order they finish.
type RunJournal struct {
	ledger RunLedger
	runID  string

	mu  sync.Mutex
	seq int
}

func NewRunJournal(ledger RunLedger, runID string) *RunJournal {
	return &RunJournal{ledger: ledger, runID: runID}
}

func (j *RunJournal) RecordCall(ctx context.Context, rec llm.CallRecord) error {
	j.mu.Lock()
	j.seq++
	seq := j.seq
	j.mu.Unlock()
	return j.ledger.RecordCall(ctx, j.runID, Call{
		Seq:           seq,
		Phase:         rec.Phase,
		Label:         rec.Label,
		Model:         rec.Model,
		PromptChars:   rec.PromptChars,
		ResponseChars: rec.ResponseChars,
		DurationMS:    rec.Duration.Milliseconds(),
		Error:         rec.Err,
	})
}

// Calls is the number of calls recorded so far.
func (j *RunJournal) Calls() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.seq
}
