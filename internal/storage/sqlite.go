package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteLedger is the RunLedger backed by a local SQLite database.
type SQLiteLedger struct {
	db *sql.DB
}

// NewSQLiteLedger creates or opens a SQLite database.
func NewSQLiteLedger(path string) (*SQLiteLedger, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}

	s := &SQLiteLedger{db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to init schema: %w", err)
	}

	return s, nil
}

func (s *SQLiteLedger) Close() error {
	return s.db.Close()
}

func (s *SQLiteLedger) initSchema() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			topic TEXT,
			outline_id TEXT,
			document TEXT,
			status TEXT,
			error TEXT,
			started_at INTEGER,
			ended_at INTEGER
		);`,
		`CREATE TABLE IF NOT EXISTS calls (
			run_id TEXT,
			seq INTEGER,
			phase TEXT,
			label TEXT,
			model TEXT,
			prompt_chars INTEGER,
			response_chars INTEGER,
			duration_ms INTEGER,
			error TEXT,
			PRIMARY KEY (run_id, seq)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);`,
	}

	for _, q := range queries {
		if _, err := s.db.Exec(q); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteLedger) StartRun(ctx context.Context, run Run) error {
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now()
	}
	if run.Status == "" {
		run.Status = "running"
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO runs (id, topic, outline_id, document, status, error, started_at, ended_at)
		VALUES (?, ?, ?, ?, ?, '', ?, NULL)
		ON CONFLICT(id) DO UPDATE SET
			topic=excluded.topic,
			outline_id=excluded.outline_id,
			document=excluded.document,
			status=excluded.status
	`, run.ID, run.Topic, run.OutlineID, run.Document, run.Status, run.StartedAt.UnixMilli())
	return err
}

func (s *SQLiteLedger) FinishRun(ctx context.Context, runID string, status string, runErr error) error {
	msg := ""
	if runErr != nil {
		msg = runErr.Error()
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE runs SET status = ?, error = ?, ended_at = ? WHERE id = ?
	`, status, msg, time.Now().UnixMilli(), runID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("run %s not found", runID)
	}
	return nil
}

func (s *SQLiteLedger) RecordCall(ctx context.Context, runID string, c Call) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO calls (run_id, seq, phase, label, model, prompt_chars, response_chars, duration_ms, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, runID, c.Seq, c.Phase, c.Label, c.Model, c.PromptChars, c.ResponseChars, c.DurationMS, c.Error)
	return err
}

// ListRuns returns the most recent runs first, with their call counts.
func (s *SQLiteLedger) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT r.id, r.topic, r.outline_id, r.document, r.status, r.error, r.started_at, r.ended_at,
			(SELECT COUNT(*) FROM calls c WHERE c.run_id = r.id)
		FROM runs r
		ORDER BY r.started_at DESC, r.id
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		var started int64
		var ended sql.NullInt64
		var errText sql.NullString
		if err := rows.Scan(&r.ID, &r.Topic, &r.OutlineID, &r.Document, &r.Status, &errText, &started, &ended, &r.Calls); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		r.Error = errText.String
		r.StartedAt = time.UnixMilli(started)
		if ended.Valid {
			t := time.UnixMilli(ended.Int64)
			r.EndedAt = &t
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}
