package render

import (
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"

	"github.com/tabwatch/tabwatch/internal/quality"
)

// Exposition renders a batch as Prometheus exposition text: one
// "<name> <value>" line per sample in batch order, newline-terminated.
// Samples absent from the batch (failed calculators) simply produce no
// line — never a placeholder.
func Exposition(b quality.Batch) string {
	var sb strings.Builder
	for _, s := range b {
		sb.WriteString(s.Name)
		sb.WriteByte(' ')
		sb.WriteString(Value(s))
		sb.WriteByte('\n')
	}
	return sb.String()
}

// KeyValue renders a batch as a single "name=value, name=value" line,
// in batch order with the same value formatting as Exposition. Used for
// log summaries.
func KeyValue(b quality.Batch) string {
	parts := make([]string, 0, len(b))
	for _, s := range b {
		parts = append(parts, s.Name+"="+Value(s))
	}
	return strings.Join(parts, ", ")
}

// Value formats a sample value in fixed-point decimal, never scientific
// notation: integer form for row counts, one decimal place otherwise.
func Value(s quality.Sample) string {
	if s.Unit == quality.UnitRows {
		return strconv.FormatInt(int64(math.Round(s.Value)), 10)
	}
	return strconv.FormatFloat(s.Value, 'f', 1, 64)
}

// ParseExposition decodes exposition text from r into a name → value
// mapping. It accepts the full Prometheus text format, so output
// produced by Exposition (bare untyped samples) round-trips exactly.
func ParseExposition(r io.Reader) (map[string]float64, error) {
	var parser expfmt.TextParser
	mfs, err := parser.TextToMetricFamilies(r)
	if err != nil {
		// The parser may have decoded some families before failing, but
		// a partial mapping is worse than no mapping for a round-trip.
		return nil, fmt.Errorf("render: parse exposition: %w", err)
	}

	out := make(map[string]float64, len(mfs))
	for name, mf := range mfs {
		v, ok := familyValue(mf)
		if !ok {
			continue
		}
		out[name] = v
	}
	return out, nil
}

// familyValue extracts the single scalar value of a family. Our
// exposition output carries exactly one unlabeled metric per family.
func familyValue(mf *dto.MetricFamily) (float64, bool) {
	for _, m := range mf.GetMetric() {
		switch {
		case m.Untyped != nil:
			return m.Untyped.GetValue(), true
		case m.Gauge != nil:
			return m.Gauge.GetValue(), true
		case m.Counter != nil:
			return m.Counter.GetValue(), true
		}
	}
	return 0, false
}

// ParseKeyValue decodes a KeyValue line back into a name → value
// mapping. An empty string yields an empty map.
func ParseKeyValue(s string) (map[string]float64, error) {
	s = strings.TrimSpace(s)
	out := make(map[string]float64)
	if s == "" {
		return out, nil
	}
	for _, pair := range strings.Split(s, ",") {
		name, raw, ok := strings.Cut(strings.TrimSpace(pair), "=")
		if !ok {
			return nil, fmt.Errorf("render: malformed pair %q", pair)
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, fmt.Errorf("render: value of %q: %w", name, err)
		}
		out[name] = v
	}
	return out, nil
}
