// Package render turns a quality.Batch into its two deterministic wire
// forms: Prometheus exposition text (what the gateway receives) and a
// flat "name=value" summary line (what the logs carry). Both preserve
// batch order and share one fixed-point value formatter.
//
// The matching parsers exist so the formats are verifiably lossless:
// ParseExposition uses the prometheus/common text parser, ParseKeyValue
// splits the summary line. Parsing either rendering of a batch yields
// the same name → value mapping.
package render
