// Package runner coordinates one complete check run: it derives the day
// boundary from an explicit now, runs the three quality calculators
// concurrently (each under its own query timeout), renders the
// successful subset and pushes it to the gateway, then optionally
// records the report.
//
// Run never returns an error. Calculator failures become absent samples
// in the batch, export failures are carried in the Report, and the
// terminal state is done only when delivery succeeded with all three
// metrics present — anything less is partial_failure. The external
// scheduler can therefore always invoke the next tick.
package runner
