package source

import (
	"context"
	"time"

	"github.com/tabwatch/tabwatch/internal/config"
)

// Row is one record of the simulated table.
type Row struct {
	ID        int64
	Amount    *float64 // nil models a SQL NULL
	CreatedAt time.Time
}

// memorySource implements Source over an in-memory row set. It serves two
// purposes: a simulated backend for running tabwatch without a database,
// and a deterministic fixture for tests. The table name argument is
// accepted and ignored — the simulation holds exactly one table.
type memorySource struct {
	rows func() []Row
}

// NewMemory returns a simulated source that regenerates its row set on
// every query: cfg.Rows records spread evenly from the start of the
// current day (per now, in UTC) to now, newest first, with every
// cfg.NullEvery-th amount NULL. Given the same now the row set is
// identical call to call.
func NewMemory(cfg config.MemoryConfig, now func() time.Time) Source {
	return &memorySource{rows: func() []Row {
		return simulateRows(cfg, now().UTC())
	}}
}

// NewStatic returns a source serving exactly the given rows.
func NewStatic(rows []Row) Source {
	fixed := make([]Row, len(rows))
	copy(fixed, rows)
	return &memorySource{rows: func() []Row { return fixed }}
}

func simulateRows(cfg config.MemoryConfig, now time.Time) []Row {
	if cfg.Rows <= 0 {
		return nil
	}
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	elapsed := now.Sub(dayStart)

	rows := make([]Row, 0, cfg.Rows)
	for i := 0; i < cfg.Rows; i++ {
		r := Row{
			ID:        int64(i + 1),
			CreatedAt: now.Add(-time.Duration(i) * elapsed / time.Duration(cfg.Rows)),
		}
		if cfg.NullEvery == 0 || (i+1)%cfg.NullEvery != 0 {
			amount := 100.0 + float64(i)
			r.Amount = &amount
		}
		rows = append(rows, r)
	}
	return rows
}

func (s *memorySource) LatestCreatedAt(_ context.Context, _ string) (time.Time, bool, error) {
	rows := s.rows()
	if len(rows) == 0 {
		return time.Time{}, false, nil
	}
	latest := rows[0].CreatedAt
	for _, r := range rows[1:] {
		if r.CreatedAt.After(latest) {
			latest = r.CreatedAt
		}
	}
	return latest, true, nil
}

func (s *memorySource) RowCountSince(_ context.Context, _ string, since, until time.Time) (int64, error) {
	var n int64
	for _, r := range s.rows() {
		if !r.CreatedAt.Before(since) && !r.CreatedAt.After(until) {
			n++
		}
	}
	return n, nil
}

func (s *memorySource) NullRatio(_ context.Context, _, _ string) (float64, bool, error) {
	rows := s.rows()
	if len(rows) == 0 {
		return 0, false, nil
	}
	var nulls int
	for _, r := range rows {
		if r.Amount == nil {
			nulls++
		}
	}
	return float64(nulls) / float64(len(rows)), true, nil
}

func (s *memorySource) Close() {}
