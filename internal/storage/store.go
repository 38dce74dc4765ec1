package storage

import (
	"context"
	"fmt"
	"time"
)

// StorageError reports a read or write failure on outline or document storage.
type StorageError struct {
	Op   string
	Path string
	Err  error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// OutlineStore persists outline text, one entry per identifier.
type OutlineStore interface {
	// List returns the stored identifiers for a topic in ascending order.
	List(topic string) ([]OutlineID, error)

	// Load returns the full stored text, header line included.
	Load(id OutlineID) (string, error)

	// Save writes the topic header followed by the outline body.
	Save(id OutlineID, body string) error
}

// RunLedger records generation runs and the calls they made.
type RunLedger interface {
	StartRun(ctx context.Context, run Run) error
	FinishRun(ctx context.Context, runID string, status string, runErr error) error
	RecordCall(ctx context.Context, runID string, call Call) error
	ListRuns(ctx context.Context, limit int) ([]Run, error)
	Close() error
}

type Run struct {
	ID        string
	Topic     string
	OutlineID string
	Document  string
	Status    string // running, completed, failed, aborted
	Error     string
	Calls     int
	StartedAt time.Time
	EndedAt   *time.Time
}

type Call struct {
	Seq           int
	Phase         string
	Label         string
	Model         string
	PromptChars   int
	ResponseChars int
	DurationMS    int64
	Error         string
}
