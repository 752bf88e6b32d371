// Package store keeps the benchmark history in SQLite: one row per matrix
// run and one per (tool, scenario) result.
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/p-arndt/installbench/internal/bench"
	_ "modernc.org/sqlite"
)

// Sentinel errors
var (
	ErrNotFound = errors.New("not found")
)

// Run statuses.
const (
	StatusRunning     = "running"
	StatusCompleted   = "completed"
	StatusFailed      = "failed"
	StatusInterrupted = "interrupted"
)

// isBusyLock reports whether err indicates SQLite database lock (SQLITE_BUSY).
// Handles wrapped errors from database/sql.
func isBusyLock(err error) bool {
	if err == nil {
		return false
	}
	s := err.Error()
	return strings.Contains(s, "database is locked") || strings.Contains(s, "SQLITE_BUSY")
}

// retryOnBusy runs fn and retries on SQLITE_BUSY with exponential backoff.
func retryOnBusy(fn func() error) error {
	const maxAttempts = 4
	backoff := 25 * time.Millisecond
	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		lastErr = fn()
		if lastErr == nil || !isBusyLock(lastErr) {
			return lastErr
		}
		if attempt < maxAttempts-1 {
			time.Sleep(backoff)
			backoff *= 2
		}
	}
	return lastErr
}

type Run struct {
	ID         string     `json:"id"`
	Package    string     `json:"package"`
	Tools      []string   `json:"tools"`
	Scenarios  []string   `json:"scenarios"`
	Status     string     `json:"status"`
	Error      string     `json:"error,omitempty"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

type Store struct {
	db *sql.DB
}

const createTablesSQL = `
CREATE TABLE IF NOT EXISTS runs (
	id          TEXT PRIMARY KEY,
	package     TEXT NOT NULL,
	tools       TEXT NOT NULL DEFAULT '',
	scenarios   TEXT NOT NULL DEFAULT '',
	status      TEXT NOT NULL DEFAULT 'running',
	error       TEXT NOT NULL DEFAULT '',
	started_at  DATETIME NOT NULL,
	finished_at DATETIME
);
CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at);
CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);

CREATE TABLE IF NOT EXISTS results (
	run_id             TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
	seq                INTEGER NOT NULL,
	tool               TEXT NOT NULL,
	scenario           TEXT NOT NULL,
	duration_ms        INTEGER NOT NULL,
	success            INTEGER NOT NULL,
	error              TEXT NOT NULL DEFAULT '',
	package_count      INTEGER NOT NULL DEFAULT 0,
	per_package_ms     REAL NOT NULL DEFAULT 0,
	version            TEXT NOT NULL DEFAULT '',
	PRIMARY KEY (run_id, seq)
);
`

// DefaultMaxOpenConns is the default connection pool size for concurrent reads.
// WAL mode allows multiple readers + 1 writer.
const DefaultMaxOpenConns = 4

// dsnWithPragmas returns a connection string with WAL, busy_timeout, and perf
// pragmas applied to every new connection.
func dsnWithPragmas(dbPath string) string {
	// busy_timeout: 15s wait on lock (HTTP readers + history writes overlap)
	// journal_mode=WAL: concurrent reads during writes
	// synchronous=NORMAL: safe in WAL
	// foreign_keys: results cascade with their run
	return dbPath + "?_pragma=busy_timeout(15000)" +
		"&_pragma=journal_mode(WAL)" +
		"&_pragma=synchronous(NORMAL)" +
		"&_pragma=foreign_keys(1)"
}

// New opens the store. maxOpenConns controls the connection pool size (0 = default 4).
func New(dbPath string, maxOpenConns int) (*Store, error) {
	db, err := sql.Open("sqlite", dsnWithPragmas(dbPath))
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if maxOpenConns <= 0 {
		maxOpenConns = DefaultMaxOpenConns
	}
	db.SetMaxOpenConns(maxOpenConns)
	db.SetMaxIdleConns(maxOpenConns)

	if _, err := db.Exec(createTablesSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) CreateRun(r *Run) error {
	err := retryOnBusy(func() error {
		_, e := s.db.Exec(
			`INSERT INTO runs (id, package, tools, scenarios, status, error, started_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			r.ID, r.Package, strings.Join(r.Tools, ","), strings.Join(r.Scenarios, ","),
			r.Status, r.Error, r.StartedAt.UTC(),
		)
		return e
	})
	if err != nil {
		return fmt.Errorf("inserting run: %w", err)
	}
	return nil
}

// FinishRun sets the terminal status of a run.
func (s *Store) FinishRun(id, status, errMsg string, finishedAt time.Time) error {
	var result sql.Result
	err := retryOnBusy(func() error {
		var e error
		result, e = s.db.Exec(
			`UPDATE runs SET status = ?, error = ?, finished_at = ? WHERE id = ?`,
			status, errMsg, finishedAt.UTC(), id,
		)
		return e
	})
	if err != nil {
		return fmt.Errorf("updating run: %w", err)
	}
	return checkRowAffected(result, id)
}

// SaveResults replaces the results of a run in one transaction.
func (s *Store) SaveResults(runID string, results []bench.TestResult) error {
	err := retryOnBusy(func() error {
		tx, err := s.db.Begin()
		if err != nil {
			return err
		}
		defer tx.Rollback()

		if _, err := tx.Exec(`DELETE FROM results WHERE run_id = ?`, runID); err != nil {
			return err
		}
		stmt, err := tx.Prepare(
			`INSERT INTO results (run_id, seq, tool, scenario, duration_ms, success, error, package_count, per_package_ms, version)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for i, r := range results {
			if _, err := stmt.Exec(runID, i, r.Tool, r.Scenario, r.DurationMs, r.Success, r.Error,
				r.PackageCount, r.PerPackageTimeMs, r.Version); err != nil {
				return err
			}
		}
		return tx.Commit()
	})
	if err != nil {
		return fmt.Errorf("saving results for %s: %w", runID, err)
	}
	return nil
}

const runColumns = `id, package, tools, scenarios, status, error, started_at, finished_at`

func (s *Store) GetRun(id string) (*Run, error) {
	row := s.db.QueryRow(`SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("run %s: %w", id, ErrNotFound)
	}
	return r, err
}

// ListRuns returns the newest runs first. limit <= 0 means no limit.
func (s *Store) ListRuns(limit int) ([]*Run, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.Query(`SELECT `+runColumns+` FROM runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating runs: %w", err)
	}
	return runs, nil
}

// GetResults returns the results of a run in matrix order.
func (s *Store) GetResults(runID string) ([]bench.TestResult, error) {
	rows, err := s.db.Query(
		`SELECT tool, scenario, duration_ms, success, error, package_count, per_package_ms, version
		 FROM results WHERE run_id = ? ORDER BY seq`, runID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing results: %w", err)
	}
	defer rows.Close()

	var out []bench.TestResult
	for rows.Next() {
		var r bench.TestResult
		if err := rows.Scan(&r.Tool, &r.Scenario, &r.DurationMs, &r.Success, &r.Error,
			&r.PackageCount, &r.PerPackageTimeMs, &r.Version); err != nil {
			return nil, fmt.Errorf("scanning result: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating results: %w", err)
	}
	return out, nil
}

// MarkInterrupted closes runs left in the running state by a previous
// process. It returns how many were updated.
func (s *Store) MarkInterrupted(now time.Time) (int64, error) {
	var result sql.Result
	err := retryOnBusy(func() error {
		var e error
		result, e = s.db.Exec(
			`UPDATE runs SET status = ?, finished_at = ? WHERE status = ?`,
			StatusInterrupted, now.UTC(), StatusRunning,
		)
		return e
	})
	if err != nil {
		return 0, fmt.Errorf("marking interrupted runs: %w", err)
	}
	return result.RowsAffected()
}

type scannable interface {
	Scan(dest ...any) error
}

func scanRun(row scannable) (*Run, error) {
	var r Run
	var tools, scenarios string
	var finished sql.NullTime
	err := row.Scan(&r.ID, &r.Package, &tools, &scenarios, &r.Status, &r.Error, &r.StartedAt, &finished)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("scanning run: %w", err)
	}
	r.Tools = splitList(tools)
	r.Scenarios = splitList(scenarios)
	if finished.Valid {
		t := finished.Time
		r.FinishedAt = &t
	}
	return &r, nil
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, ",")
}

func checkRowAffected(result sql.Result, id string) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("run %s: %w", id, ErrNotFound)
	}
	return nil
}
