// Package source abstracts the tabular data source the quality checks
// query. Source exposes the three read-only aggregates the checks need
// (newest created_at, windowed row count, NULL ratio of one column);
// backends are selected by configuration through New: "postgres" (pgx v5
// pool) or "memory" (a deterministic simulation of the monitored table).
//
// An empty table is reported via ok=false, never as an error. Query
// failures are *AccessError values so callers can fall back per metric.
package source
