package source

import (
	"context"
	"fmt"
	"time"

	"github.com/tabwatch/tabwatch/internal/config"
)

// Source is the read-only aggregate query surface the checks run against.
// Every method is independently failable; failures are reported as
// *AccessError and must be handled per-metric by the caller. An empty
// table is signalled through ok=false, never through an error.
type Source interface {
	// LatestCreatedAt returns the newest created_at in table.
	// ok is false when the table has no rows.
	LatestCreatedAt(ctx context.Context, table string) (ts time.Time, ok bool, err error)

	// RowCountSince returns the number of rows with created_at in
	// [since, until]. Zero is a valid result.
	RowCountSince(ctx context.Context, table string, since, until time.Time) (int64, error)

	// NullRatio returns the fraction of NULL values in column, in [0, 1].
	// ok is false when the table has no rows (the ratio is undefined).
	NullRatio(ctx context.Context, table, column string) (ratio float64, ok bool, err error)

	// Close releases any underlying connections.
	Close()
}

// AccessError reports a failed aggregate query against one table.
type AccessError struct {
	Table string
	Op    string // "latest_created_at" | "row_count" | "null_ratio"
	Err   error
}

func (e *AccessError) Error() string {
	return fmt.Sprintf("source: %s on %q: %v", e.Op, e.Table, e.Err)
}

func (e *AccessError) Unwrap() error { return e.Err }

// New returns the Source selected by cfg.Kind.
// The postgres backend opens a connection pool lazily; queries carry the
// caller's context so a hung database cannot outlive a run's timeout.
func New(ctx context.Context, cfg config.SourceConfig) (Source, error) {
	switch cfg.Kind {
	case "postgres":
		return newPostgres(ctx, cfg)
	case "memory":
		return NewMemory(cfg.Memory, time.Now), nil
	default:
		return nil, fmt.Errorf("source: unsupported backend %q", cfg.Kind)
	}
}
