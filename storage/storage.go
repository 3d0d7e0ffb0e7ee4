// Package storage keeps the run journal: one row per migration run, the
// per-table stage outcomes and the validation diff summaries, in a local
// SQLite file.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/stephenafamo/scan"
	"github.com/stephenafamo/scan/stdscan"
	_ "modernc.org/sqlite"
)

// DB is the global journal connection
var DB *sql.DB

// ErrRunNotFound is returned when a run id does not exist.
var ErrRunNotFound = errors.New("run not found")

const (
	StatusRunning   = "running"
	StatusSucceeded = "succeeded"
	StatusPartial   = "partial"
	StatusFailed    = "failed"
)

// Run represents one pipeline execution
type Run struct {
	ID         string
	Source     string
	Target     string
	Status     string
	StartedAt  time.Time
	FinishedAt *time.Time
}

// TableOutcome represents the result of one stage for one table
type TableOutcome struct {
	RunID    string `db:"run_id"`
	Table    string `db:"table_name"`
	Stage    string `db:"stage"`
	Detail   string `db:"detail"`
	Rows     int64  `db:"rows"`
	Attempts int64  `db:"attempts"`
	Duration int64  `db:"duration"` // milliseconds
	Error    string `db:"error"`
}

// DiffSummary represents the validation diff of one table
type DiffSummary struct {
	RunID      string `db:"run_id"`
	Table      string `db:"table_name"`
	SchemaRows int64  `db:"schema_rows"`
	DataRows   int64  `db:"data_rows"`
	Error      string `db:"error"`
	// Detail is the JSON encoded diff record.
	Detail string `db:"detail"`
}

// DefaultPath returns ~/.config/mysql2mongo/journal.db
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "mysql2mongo", "journal.db"), nil
}

// Init opens the journal at path, creating it when missing. An empty path
// uses DefaultPath.
func Init(path string) error {
	if path == "" {
		var err error
		if path, err = DefaultPath(); err != nil {
			return err
		}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return err
	}
	DB = db

	if err := createTables(); err != nil {
		return fmt.Errorf("failed to create journal tables: %w", err)
	}
	return nil
}

// Close closes the journal connection
func Close() error {
	if DB != nil {
		err := DB.Close()
		DB = nil
		return err
	}
	return nil
}

func createTables() error {
	schema := `
    CREATE TABLE IF NOT EXISTS runs (
        id TEXT PRIMARY KEY,
        source TEXT NOT NULL,
        target TEXT NOT NULL,
        status TEXT NOT NULL,
        started_at DATETIME NOT NULL,
        finished_at DATETIME
    );

    CREATE TABLE IF NOT EXISTS table_outcomes (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        run_id TEXT NOT NULL,
        table_name TEXT NOT NULL,
        stage TEXT NOT NULL,
        detail TEXT NOT NULL DEFAULT '',
        rows INTEGER DEFAULT 0,
        attempts INTEGER DEFAULT 0,
        duration INTEGER DEFAULT 0,
        error TEXT NOT NULL DEFAULT '',
        FOREIGN KEY (run_id) REFERENCES runs(id) ON DELETE CASCADE
    );

    CREATE TABLE IF NOT EXISTS diff_records (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        run_id TEXT NOT NULL,
        table_name TEXT NOT NULL,
        schema_rows INTEGER DEFAULT 0,
        data_rows INTEGER DEFAULT 0,
        error TEXT NOT NULL DEFAULT '',
        detail TEXT NOT NULL DEFAULT '',
        FOREIGN KEY (run_id) REFERENCES runs(id) ON DELETE CASCADE
    );

    CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at);
    CREATE INDEX IF NOT EXISTS idx_table_outcomes_run ON table_outcomes(run_id);
    CREATE INDEX IF NOT EXISTS idx_diff_records_run ON diff_records(run_id);
    `

	_, err := DB.Exec(schema)
	return err
}

// =============================================================================
// Run operations
// =============================================================================

// CreateRun starts a new run and returns its id
func CreateRun(source, target string) (string, error) {
	id := uuid.NewString()
	_, err := DB.Exec(
		"INSERT INTO runs (id, source, target, status, started_at) VALUES (?, ?, ?, ?, ?)",
		id, source, target, StatusRunning, time.Now().UTC(),
	)
	if err != nil {
		return "", err
	}
	return id, nil
}

// FinishRun stores the final status of a run
func FinishRun(id, status string) error {
	res, err := DB.Exec(
		"UPDATE runs SET status = ?, finished_at = ? WHERE id = ?",
		status, time.Now().UTC(), id,
	)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	return nil
}

// GetRun retrieves a run by id
func GetRun(id string) (*Run, error) {
	run := &Run{}
	var finished sql.NullTime
	err := DB.QueryRow(
		"SELECT id, source, target, status, started_at, finished_at FROM runs WHERE id = ?",
		id,
	).Scan(&run.ID, &run.Source, &run.Target, &run.Status, &run.StartedAt, &finished)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	if finished.Valid {
		run.FinishedAt = &finished.Time
	}
	return run, nil
}

// GetRuns retrieves the most recent runs first
func GetRuns(limit int) ([]Run, error) {
	rows, err := DB.Query(
		"SELECT id, source, target, status, started_at, finished_at FROM runs ORDER BY started_at DESC LIMIT ?",
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var run Run
		var finished sql.NullTime
		if err := rows.Scan(&run.ID, &run.Source, &run.Target, &run.Status, &run.StartedAt, &finished); err != nil {
			return nil, err
		}
		if finished.Valid {
			run.FinishedAt = &finished.Time
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// LatestRun returns the most recently started run
func LatestRun() (*Run, error) {
	runs, err := GetRuns(1)
	if err != nil {
		return nil, err
	}
	if len(runs) == 0 {
		return nil, ErrRunNotFound
	}
	return &runs[0], nil
}

// DeleteRun deletes a run with its outcomes and diffs
func DeleteRun(id string) error {
	tx, err := DB.Begin()
	if err != nil {
		return err
	}
	for _, q := range []string{
		"DELETE FROM table_outcomes WHERE run_id = ?",
		"DELETE FROM diff_records WHERE run_id = ?",
		"DELETE FROM runs WHERE id = ?",
	} {
		if _, err := tx.Exec(q, id); err != nil {
			_ = tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

// =============================================================================
// Outcome and diff operations
// =============================================================================

// AddOutcome appends one table outcome to a run
func AddOutcome(o TableOutcome) error {
	_, err := DB.Exec(
		"INSERT INTO table_outcomes (run_id, table_name, stage, detail, rows, attempts, duration, error) VALUES (?, ?, ?, ?, ?, ?, ?, ?)",
		o.RunID, o.Table, o.Stage, o.Detail, o.Rows, o.Attempts, o.Duration, o.Error,
	)
	return err
}

// GetOutcomes retrieves the outcomes of a run in insertion order
func GetOutcomes(ctx context.Context, runID string) ([]TableOutcome, error) {
	return stdscan.All(ctx, DB, scan.StructMapper[TableOutcome](),
		"SELECT run_id, table_name, stage, detail, rows, attempts, duration, error FROM table_outcomes WHERE run_id = ? ORDER BY id",
		runID,
	)
}

// AddDiff appends one diff summary to a run
func AddDiff(d DiffSummary) error {
	_, err := DB.Exec(
		"INSERT INTO diff_records (run_id, table_name, schema_rows, data_rows, error, detail) VALUES (?, ?, ?, ?, ?, ?)",
		d.RunID, d.Table, d.SchemaRows, d.DataRows, d.Error, d.Detail,
	)
	return err
}

// GetDiffs retrieves the diff summaries of a run in insertion order
func GetDiffs(ctx context.Context, runID string) ([]DiffSummary, error) {
	return stdscan.All(ctx, DB, scan.StructMapper[DiffSummary](),
		"SELECT run_id, table_name, schema_rows, data_rows, error, detail FROM diff_records WHERE run_id = ? ORDER BY id",
		runID,
	)
}
