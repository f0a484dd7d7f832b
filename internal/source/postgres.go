package source

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tabwatch/tabwatch/internal/config"
)

// postgresSource implements Source against a PostgreSQL database using a
// pgx v5 connection pool. Each query runs on a pooled connection under
// the caller's context; the pool is released by Close.
type postgresSource struct {
	pool *pgxpool.Pool
}

func newPostgres(ctx context.Context, cfg config.SourceConfig) (*postgresSource, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("source: parse dsn: %w", err)
	}
	if pw := cfg.Password(); pw != "" {
		poolCfg.ConnConfig.Password = pw
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("source: pgxpool: %w", err)
	}
	return &postgresSource{pool: pool}, nil
}

func (s *postgresSource) LatestCreatedAt(ctx context.Context, table string) (time.Time, bool, error) {
	query := fmt.Sprintf(`SELECT max(created_at) FROM %s`, pgIdent(table))

	var latest *time.Time
	if err := s.pool.QueryRow(ctx, query).Scan(&latest); err != nil {
		return time.Time{}, false, &AccessError{Table: table, Op: "latest_created_at", Err: err}
	}
	if latest == nil {
		// max() over zero rows is NULL — no data, not an error.
		return time.Time{}, false, nil
	}
	return *latest, true, nil
}

func (s *postgresSource) RowCountSince(ctx context.Context, table string, since, until time.Time) (int64, error) {
	query := fmt.Sprintf(
		`SELECT count(*) FROM %s WHERE created_at >= $1 AND created_at <= $2`,
		pgIdent(table),
	)

	var n int64
	if err := s.pool.QueryRow(ctx, query, since, until).Scan(&n); err != nil {
		return 0, &AccessError{Table: table, Op: "row_count", Err: err}
	}
	return n, nil
}

func (s *postgresSource) NullRatio(ctx context.Context, table, column string) (float64, bool, error) {
	query := fmt.Sprintf(
		`SELECT count(*) FILTER (WHERE %s IS NULL), count(*) FROM %s`,
		pgIdent(column), pgIdent(table),
	)

	var nulls, total int64
	if err := s.pool.QueryRow(ctx, query).Scan(&nulls, &total); err != nil {
		return 0, false, &AccessError{Table: table, Op: "null_ratio", Err: err}
	}
	if total == 0 {
		return 0, false, nil
	}
	return float64(nulls) / float64(total), true, nil
}

func (s *postgresSource) Close() {
	s.pool.Close()
}

// pgIdent quotes a SQL identifier. Table and column names come from the
// config file, not from query results, but they still must not be
// interpolated raw.
func pgIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
