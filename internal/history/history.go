package history

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/tabwatch/tabwatch/internal/runner"
)

// Store persists finished run reports to a local SQLite file. It
// implements runner.Recorder.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the SQLite file at path and applies the
// schema. The modernc.org driver is pure Go and needs no CGO. The
// caller must Close the store on shutdown.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", fmt.Sprintf("file:%s?_fk=1", path))
	if err != nil {
		return nil, fmt.Errorf("history: open db: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("history: ping db: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("history: migrate: %w", err)
	}
	return s, nil
}

func (s *Store) migrate() error {
	const stmt = `
CREATE TABLE IF NOT EXISTS runs (
    id        TEXT PRIMARY KEY,
    started   DATETIME NOT NULL,
    finished  DATETIME NOT NULL,
    state     TEXT NOT NULL,
    delivered INTEGER NOT NULL,
    attempts  INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS samples (
    run_id TEXT NOT NULL REFERENCES runs(id),
    name   TEXT NOT NULL,
    value  REAL NOT NULL,
    unit   TEXT NOT NULL,
    at     DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_samples_run ON samples(run_id);
`
	_, err := s.db.Exec(stmt)
	return err
}

// RunRecord is one persisted run row.
type RunRecord struct {
	ID        string
	Started   time.Time
	Finished  time.Time
	State     string
	Delivered bool
	Attempts  int
}

// SampleRecord is one persisted metric row.
type SampleRecord struct {
	Name  string
	Value float64
	Unit  string
	At    time.Time
}

// Record stores the report and its samples in a single transaction.
func (s *Store) Record(ctx context.Context, rep *runner.Report) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("history: begin tx: %w", err)
	}

	var delivered bool
	var attempts int
	if rep.Export != nil {
		delivered = rep.Export.Delivered
		attempts = rep.Export.Attempts
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO runs (id, started, finished, state, delivered, attempts) VALUES (?, ?, ?, ?, ?, ?)`,
		rep.RunID, rep.Started.UTC(), rep.Finished.UTC(), string(rep.State), delivered, attempts,
	); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("history: insert run: %w", err)
	}

	for _, sample := range rep.Batch {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO samples (run_id, name, value, unit, at) VALUES (?, ?, ?, ?, ?)`,
			rep.RunID, sample.Name, sample.Value, sample.Unit, sample.At.UTC(),
		); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("history: insert sample %s: %w", sample.Name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("history: commit tx: %w", err)
	}
	return nil
}

// Recent returns the latest runs, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]RunRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, started, finished, state, delivered, attempts
		 FROM runs ORDER BY started DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("history: query runs: %w", err)
	}
	defer rows.Close()

	var out []RunRecord
	for rows.Next() {
		var r RunRecord
		if err := rows.Scan(&r.ID, &r.Started, &r.Finished, &r.State, &r.Delivered, &r.Attempts); err != nil {
			return nil, fmt.Errorf("history: scan run: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Samples returns the metric rows recorded for one run.
func (s *Store) Samples(ctx context.Context, runID string) ([]SampleRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT name, value, unit, at FROM samples WHERE run_id = ? ORDER BY rowid`, runID)
	if err != nil {
		return nil, fmt.Errorf("history: query samples: %w", err)
	}
	defer rows.Close()

	var out []SampleRecord
	for rows.Next() {
		var r SampleRecord
		if err := rows.Scan(&r.Name, &r.Value, &r.Unit, &r.At); err != nil {
			return nil, fmt.Errorf("history: scan sample: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Close shuts down the database connection.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
