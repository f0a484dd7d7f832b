// Package history keeps an optional local record of past runs in a
// SQLite file: one row per run plus one row per computed sample. The
// exported metrics themselves live in the push gateway; this store only
// exists so an operator can inspect what recent runs computed and
// whether deliveries succeeded.
package history
