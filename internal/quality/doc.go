// Package quality implements the three data-quality calculators:
// freshness (hours since the newest record), volume (row count for the
// current day window) and null percentage of one column.
//
// Each calculator is pure given its source results and takes an explicit
// now so tests control the clock. The calculators are independent — the
// run coordinator invokes them separately and a failure in one never
// affects the others. An undefined value (empty table) is an error
// wrapping ErrNoData, never a sentinel number.
package quality
