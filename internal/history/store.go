// Package history persists a record of every submitted run in SQLite.
// The pipeline never depends on it; it exists so the history subcommand
// can answer "what did I run last week and where are the results".
package history

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"foampilot/internal/backend"
	"foampilot/internal/logging"
)

// Run is one recorded submission.
type Run struct {
	JobID       string
	CaseName    string
	Requirement string
	Status      backend.Status
	DownloadRef string
	CreatedAt   time.Time
	FinishedAt  time.Time // zero until a terminal status is recorded
}

// Store wraps the SQLite database.
type Store struct {
	mu sync.Mutex
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	job_id       TEXT PRIMARY KEY,
	case_name    TEXT NOT NULL DEFAULT '',
	requirement  TEXT NOT NULL DEFAULT '',
	status       TEXT NOT NULL DEFAULT 'queued',
	download_ref TEXT NOT NULL DEFAULT '',
	created_at   INTEGER NOT NULL,
	finished_at  INTEGER
);
CREATE INDEX IF NOT EXISTS idx_runs_created_at ON runs(created_at DESC);
`

// Open initializes the database at the given path.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create history directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		logging.StoreDebug("failed to set busy_timeout: %v", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		logging.StoreDebug("failed to set journal_mode=WAL: %v", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize history schema: %w", err)
	}
	logging.Store("history store open at %s", path)
	return &Store{db: db}, nil
}

// RecordSubmission inserts a freshly submitted run.
func (s *Store) RecordSubmission(jobID, caseName, requirement string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.Exec(
		`INSERT OR REPLACE INTO runs (job_id, case_name, requirement, status, created_at) VALUES (?, ?, ?, ?, ?)`,
		jobID, caseName, requirement, string(backend.StatusQueued), time.Now().Unix(),
	)
	return err
}

// RecordOutcome marks a run terminal.
func (s *Store) RecordOutcome(jobID string, status backend.Status, downloadRef string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.Exec(
		`UPDATE runs SET status = ?, download_ref = ?, finished_at = ? WHERE job_id = ?`,
		string(status), downloadRef, time.Now().Unix(), jobID,
	)
	return err
}

// List returns the most recent runs, newest first.
func (s *Store) List(limit int) ([]Run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.Query(
		`SELECT job_id, case_name, requirement, status, download_ref, created_at, finished_at
		 FROM runs ORDER BY created_at DESC, job_id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var (
			r          Run
			status     string
			createdAt  int64
			finishedAt sql.NullInt64
		)
		if err := rows.Scan(&r.JobID, &r.CaseName, &r.Requirement, &status, &r.DownloadRef, &createdAt, &finishedAt); err != nil {
			return nil, err
		}
		r.Status = backend.Status(status)
		r.CreatedAt = time.Unix(createdAt, 0)
		if finishedAt.Valid {
			r.FinishedAt = time.Unix(finishedAt.Int64, 0)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// Close closes the database.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}
