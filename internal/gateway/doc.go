// Package gateway delivers rendered metric payloads to a Prometheus
// push gateway over HTTP PUT, keyed by job label.
//
// Push distinguishes transient failures (connection errors, timeouts,
// 5xx — retried with jittered exponential backoff up to the configured
// attempt bound) from rejections (4xx — never retried). The outcome is
// always a Result; delivery failure is data for the run coordinator,
// not an error that propagates.
package gateway
