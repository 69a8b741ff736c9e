// Package history records pipeline runs in a local SQLite database so trends
// can be listed per Value Unit.
package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/c360studio/kdd/gate"
)

// openDB is a package-level var to allow test injection.
var openDB = sql.Open

// ErrNotFound is returned when a run does not exist.
var ErrNotFound = errors.New("run not found")

// DefaultLimit bounds List when no limit is given.
const DefaultLimit = 20

// timeLayout is fixed width so started_at sorts as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Run is one recorded pipeline execution.
type Run struct {
	ID         string      `json:"runId"`
	UVID       string      `json:"uvId"`
	Status     gate.Status `json:"status"`
	DurationMs int64       `json:"durationMs"`
	StartedAt  time.Time   `json:"startedAt"`
	Gates      []GateRun   `json:"gates,omitempty"`
}

// GateRun is the outcome of one gate within a run.
type GateRun struct {
	Gate       int         `json:"gate"`
	Name       string      `json:"name"`
	Status     gate.Status `json:"status"`
	Summary    string      `json:"summary"`
	DurationMs int64       `json:"durationMs"`
}

// Store is the run history database.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// Open creates or opens the database at path, creating parent directories.
func Open(path string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create history dir: %w", err)
	}
	db, err := openDB("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open history: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("history pragma %q: %w", p, err)
		}
	}

	s := &Store{db: db, logger: logger}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate history: %w", err)
	}
	return s, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
		CREATE TABLE IF NOT EXISTS runs (
			run_id      TEXT PRIMARY KEY,
			uv_id       TEXT NOT NULL,
			status      TEXT NOT NULL,
			duration_ms INTEGER NOT NULL,
			started_at  TEXT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_runs_uv ON runs(uv_id, started_at);

		CREATE TABLE IF NOT EXISTS gate_results (
			run_id      TEXT NOT NULL REFERENCES runs(run_id) ON DELETE CASCADE,
			gate        INTEGER NOT NULL,
			name        TEXT NOT NULL,
			status      TEXT NOT NULL,
			summary     TEXT NOT NULL,
			duration_ms INTEGER NOT NULL,
			PRIMARY KEY (run_id, gate)
		);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Record stores a pipeline result and its gates in one transaction.
func (s *Store) Record(ctx context.Context, r *gate.PipelineResult) error {
	if r == nil || r.UV == nil {
		return errors.New("record run: missing value unit")
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin record: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO runs (run_id, uv_id, status, duration_ms, started_at) VALUES (?, ?, ?, ?, ?)`,
		r.RunID, r.UV.ID, string(r.Status), r.DurationMs, r.StartedAt.UTC().Format(timeLayout),
	); err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	for _, g := range r.Gates {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO gate_results (run_id, gate, name, status, summary, duration_ms) VALUES (?, ?, ?, ?, ?, ?)`,
			r.RunID, g.Gate, g.Name, string(g.Status), g.Summary, g.DurationMs,
		); err != nil {
			return fmt.Errorf("insert gate %d: %w", g.Gate, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit record: %w", err)
	}
	s.logger.Debug("Run recorded", slog.String("run_id", r.RunID), slog.String("uv", r.UV.ID))
	return nil
}

// List returns the most recent runs, newest first, optionally for one Value
// Unit. Gate rows are not loaded.
func (s *Store) List(ctx context.Context, uvID string, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	query := `SELECT run_id, uv_id, status, duration_ms, started_at FROM runs`
	args := []any{}
	if uvID != "" {
		query += ` WHERE uv_id = ?`
		args = append(args, uvID)
	}
	query += ` ORDER BY started_at DESC, rowid DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// Get returns one run with its gates.
func (s *Store) Get(ctx context.Context, runID string) (*Run, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT run_id, uv_id, status, duration_ms, started_at FROM runs WHERE run_id = ?`, runID)
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT gate, name, status, summary, duration_ms FROM gate_results WHERE run_id = ? ORDER BY gate`, runID)
	if err != nil {
		return nil, fmt.Errorf("list gates: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var g GateRun
		var status string
		if err := rows.Scan(&g.Gate, &g.Name, &status, &g.Summary, &g.DurationMs); err != nil {
			return nil, fmt.Errorf("scan gate: %w", err)
		}
		g.Status = gate.Status(status)
		r.Gates = append(r.Gates, g)
	}
	return &r, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(sc scanner) (Run, error) {
	var (
		r       Run
		status  string
		started string
	)
	if err := sc.Scan(&r.ID, &r.UVID, &status, &r.DurationMs, &started); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return r, err
		}
		return r, fmt.Errorf("scan run: %w", err)
	}
	r.Status = gate.Status(status)
	t, err := time.Parse(time.RFC3339Nano, started)
	if err != nil {
		return r, fmt.Errorf("parse started_at: %w", err)
	}
	r.StartedAt = t
	return r, nil
}
