// Package runlog persists a history of transcription runs and their
// per-stage outcomes, backed by SQLite.
package runlog

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// Run statuses.
const (
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// Run is one recorded pipeline execution.
type Run struct {
	ID             string
	InputPath      string
	OutputPath     string
	Language       string
	Status         string
	Alignment      string
	Transcription  string
	AlignOutcome   string
	DiarizeOutcome string
	ErrorCode      string
	CreatedAt      time.Time
	FinishedAt     *time.Time
}

// Store manages run persistence.
type Store struct {
	db   *sql.DB
	path string
}

const schema = `
CREATE TABLE IF NOT EXISTS runs (
    id TEXT PRIMARY KEY,
    input_path TEXT NOT NULL,
    output_path TEXT NOT NULL DEFAULT '',
    language TEXT NOT NULL DEFAULT '',
    status TEXT NOT NULL,
    alignment TEXT NOT NULL DEFAULT '',
    transcription_outcome TEXT NOT NULL DEFAULT '',
    align_outcome TEXT NOT NULL DEFAULT '',
    diarize_outcome TEXT NOT NULL DEFAULT '',
    error_code TEXT NOT NULL DEFAULT '',
    created_at TEXT NOT NULL,
    finished_at TEXT
);
CREATE INDEX IF NOT EXISTS idx_runs_created_at ON runs(created_at);
`

// Open initializes or connects to the run database at path.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("ensure run log directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &Store{db: db, path: path}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Begin inserts a new running record and assigns the run ID if unset.
func (s *Store) Begin(ctx context.Context, run *Run) error {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	run.Status = StatusRunning
	run.CreatedAt = time.Now().UTC()

	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO runs (id, input_path, output_path, language, status, created_at)
         VALUES (?, ?, ?, ?, ?, ?)`,
		run.ID,
		run.InputPath,
		run.OutputPath,
		run.Language,
		run.Status,
		run.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// Finish updates the terminal state of a run.
func (s *Store) Finish(ctx context.Context, run *Run) error {
	now := time.Now().UTC()
	run.FinishedAt = &now

	_, err := s.db.ExecContext(
		ctx,
		`UPDATE runs SET
            output_path = ?, language = ?, status = ?, alignment = ?,
            transcription_outcome = ?, align_outcome = ?, diarize_outcome = ?,
            error_code = ?, finished_at = ?
         WHERE id = ?`,
		run.OutputPath,
		run.Language,
		run.Status,
		run.Alignment,
		run.Transcription,
		run.AlignOutcome,
		run.DiarizeOutcome,
		run.ErrorCode,
		now.Format(time.RFC3339Nano),
		run.ID,
	)
	if err != nil {
		return fmt.Errorf("update run: %w", err)
	}
	return nil
}

// List returns the most recent runs, newest first.
func (s *Store) List(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT id, input_path, output_path, language, status, alignment,
                transcription_outcome, align_outcome, diarize_outcome,
                error_code, created_at, finished_at
         FROM runs ORDER BY created_at DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var run Run
		var createdAt string
		var finishedAt sql.NullString
		if err := rows.Scan(
			&run.ID, &run.InputPath, &run.OutputPath, &run.Language,
			&run.Status, &run.Alignment, &run.Transcription,
			&run.AlignOutcome, &run.DiarizeOutcome, &run.ErrorCode,
			&createdAt, &finishedAt,
		); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		if parsed, err := time.Parse(time.RFC3339Nano, createdAt); err == nil {
			run.CreatedAt = parsed
		}
		if finishedAt.Valid {
			if parsed, err := time.Parse(time.RFC3339Nano, finishedAt.String); err == nil {
				run.FinishedAt = &parsed
			}
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}
