package batch

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schemaSQL string

// schemaVersion is bumped on schema changes; stale databases are rejected so
// reports never mix layouts.
const schemaVersion = 1

// ItemStatus is the lifecycle of one batch item.
type ItemStatus string

const (
	ItemPending   ItemStatus = "pending"
	ItemRunning   ItemStatus = "running"
	ItemCompleted ItemStatus = "completed"
	ItemFailed    ItemStatus = "failed"
	ItemSkipped   ItemStatus = "skipped"
)

// Item is one persisted batch item outcome.
type Item struct {
	ID         int64
	JobID      string
	Index      int
	Input      string
	Status     ItemStatus
	Error      string
	StartedAt  *time.Time
	FinishedAt *time.Time
}

// Job is one persisted batch run.
type Job struct {
	ID         string
	OutputDir  string
	Total      int
	Completed  int
	Failed     int
	Skipped    int
	Canceled   bool
	CreatedAt  time.Time
	FinishedAt *time.Time
}

// Store persists batch results in a SQLite database inside the output
// directory.
type Store struct {
	db   *sql.DB
	path string
}

// ResultsDBName is the database file created in every batch output directory.
const ResultsDBName = "batch.db"

// OpenStore initializes or connects to the results database in dir.
func OpenStore(ctx context.Context, dir string) (*Store, error) {
	dbPath := filepath.Join(dir, ResultsDBName)
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open results db: %w", err)
	}

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("apply pragma: %w", err)
		}
	}

	store := &Store{db: db, path: dbPath}
	if err := store.initSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string { return s.path }

func (s *Store) initSchema(ctx context.Context) error {
	var tableExists int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	).Scan(&tableExists)
	if err != nil {
		return fmt.Errorf("check schema_version table: %w", err)
	}

	if tableExists == 0 {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin schema tx: %w", err)
		}
		defer func() { _ = tx.Rollback() }()
		if _, err := tx.ExecContext(ctx, schemaSQL); err != nil {
			return fmt.Errorf("create schema: %w", err)
		}
		if _, err := tx.ExecContext(ctx, "INSERT INTO schema_version (version) VALUES (?)", schemaVersion); err != nil {
			return fmt.Errorf("record schema version: %w", err)
		}
		return tx.Commit()
	}

	var version int
	if err := s.db.QueryRowContext(ctx, "SELECT version FROM schema_version LIMIT 1").Scan(&version); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if version != schemaVersion {
		return fmt.Errorf("results db has schema version %d, expected %d (delete %s to recreate)",
			version, schemaVersion, s.path)
	}
	return nil
}

// CreateJob records a new run with all items pending.
func (s *Store) CreateJob(ctx context.Context, jobID, outputDir string, inputs []string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin job tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now().UTC().Format(time.RFC3339Nano)
	if _, err := tx.ExecContext(ctx,
		"INSERT INTO jobs (id, output_dir, total, created_at) VALUES (?, ?, ?, ?)",
		jobID, outputDir, len(inputs), now,
	); err != nil {
		return fmt.Errorf("insert job: %w", err)
	}
	for i, input := range inputs {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO items (job_id, idx, input, status) VALUES (?, ?, ?, ?)",
			jobID, i+1, input, ItemPending,
		); err != nil {
			return fmt.Errorf("insert item %d: %w", i+1, err)
		}
	}
	return tx.Commit()
}

// MarkItemRunning stamps the start of an item attempt.
func (s *Store) MarkItemRunning(ctx context.Context, jobID string, index int) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err := s.db.ExecContext(ctx,
		"UPDATE items SET status = ?, started_at = ? WHERE job_id = ? AND idx = ?",
		ItemRunning, now, jobID, index,
	)
	if err != nil {
		return fmt.Errorf("mark item running: %w", err)
	}
	return nil
}

// RecordOutcome finalizes one item.
func (s *Store) RecordOutcome(ctx context.Context, jobID string, index int, status ItemStatus, itemErr string) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err := s.db.ExecContext(ctx,
		"UPDATE items SET status = ?, error = ?, finished_at = ? WHERE job_id = ? AND idx = ?",
		status, itemErr, now, jobID, index,
	)
	if err != nil {
		return fmt.Errorf("record outcome: %w", err)
	}
	return nil
}

// FinishJob stamps the terminal summary onto the job row.
func (s *Store) FinishJob(ctx context.Context, summary Summary) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	canceled := 0
	if summary.Canceled {
		canceled = 1
	}
	_, err := s.db.ExecContext(ctx,
		"UPDATE jobs SET completed = ?, failed = ?, skipped = ?, canceled = ?, finished_at = ? WHERE id = ?",
		summary.Completed, summary.Failed, summary.Skipped, canceled, now, summary.JobID,
	)
	if err != nil {
		return fmt.Errorf("finish job: %w", err)
	}
	return nil
}

// Jobs lists runs newest first.
func (s *Store) Jobs(ctx context.Context) ([]Job, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, output_dir, total, completed, failed, skipped, canceled, created_at, finished_at FROM jobs ORDER BY created_at DESC",
	)
	if err != nil {
		return nil, fmt.Errorf("query jobs: %w", err)
	}
	defer rows.Close()

	var jobs []Job
	for rows.Next() {
		var job Job
		var canceled int
		var createdAt string
		var finishedAt sql.NullString
		if err := rows.Scan(&job.ID, &job.OutputDir, &job.Total, &job.Completed, &job.Failed, &job.Skipped, &canceled, &createdAt, &finishedAt); err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		job.Canceled = canceled != 0
		job.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
		if finishedAt.Valid {
			if ts, err := time.Parse(time.RFC3339Nano, finishedAt.String); err == nil {
				job.FinishedAt = &ts
			}
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// Items lists a run's items in input order.
func (s *Store) Items(ctx context.Context, jobID string) ([]Item, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, job_id, idx, input, status, error, started_at, finished_at FROM items WHERE job_id = ? ORDER BY idx",
		jobID,
	)
	if err != nil {
		return nil, fmt.Errorf("query items: %w", err)
	}
	defer rows.Close()

	var items []Item
	for rows.Next() {
		var item Item
		var startedAt, finishedAt sql.NullString
		if err := rows.Scan(&item.ID, &item.JobID, &item.Index, &item.Input, &item.Status, &item.Error, &startedAt, &finishedAt); err != nil {
			return nil, fmt.Errorf("scan item: %w", err)
		}
		if startedAt.Valid {
			if ts, err := time.Parse(time.RFC3339Nano, startedAt.String); err == nil {
				item.StartedAt = &ts
			}
		}
		if finishedAt.Valid {
			if ts, err := time.Parse(time.RFC3339Nano, finishedAt.String); err == nil {
				item.FinishedAt = &ts
			}
		}
		items = append(items, item)
	}
	return items, rows.Err()
}
