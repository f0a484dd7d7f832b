package render

import (
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/tabwatch/tabwatch/internal/quality"
)

var sampledAt = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func fullBatch() quality.Batch {
	return quality.Batch{
		{Name: quality.MetricFreshness, Value: 0.5, Unit: quality.UnitHours, At: sampledAt},
		{Name: quality.MetricVolume, Value: 48, Unit: quality.UnitRows, At: sampledAt},
		{Name: quality.MetricNullPct, Value: 30, Unit: quality.UnitPercent, At: sampledAt},
	}
}

func TestExposition_ReferenceScenario(t *testing.T) {
	// 48 rows today, 30% null amounts, newest row 30 minutes old.
	want := "data_freshness_hours 0.5\n" +
		"data_volume_rows 48\n" +
		"data_null_percentage 30.0\n"

	if got := Exposition(fullBatch()); got != want {
		t.Errorf("Exposition() =\n%q\nwant\n%q", got, want)
	}
}

func TestKeyValue_ReferenceScenario(t *testing.T) {
	want := "data_freshness_hours=0.5, data_volume_rows=48, data_null_percentage=30.0"

	if got := KeyValue(fullBatch()); got != want {
		t.Errorf("KeyValue() = %q, want %q", got, want)
	}
}

func TestExposition_OmitsMissingMetrics(t *testing.T) {
	// Freshness failed upstream: only two samples in the batch. The
	// rendering carries no placeholder for the missing one.
	b := quality.Batch{
		{Name: quality.MetricVolume, Value: 0, Unit: quality.UnitRows, At: sampledAt},
		{Name: quality.MetricNullPct, Value: 12.3, Unit: quality.UnitPercent, At: sampledAt},
	}

	got := Exposition(b)
	if strings.Contains(got, quality.MetricFreshness) {
		t.Errorf("Exposition() mentions a failed metric:\n%s", got)
	}
	want := "data_volume_rows 0\ndata_null_percentage 12.3\n"
	if got != want {
		t.Errorf("Exposition() = %q, want %q", got, want)
	}
}

func TestExposition_EmptyBatch(t *testing.T) {
	if got := Exposition(nil); got != "" {
		t.Errorf("Exposition(nil) = %q, want empty", got)
	}
	if got := KeyValue(nil); got != "" {
		t.Errorf("KeyValue(nil) = %q, want empty", got)
	}
}

func TestParseExposition_ReconstructsBatch(t *testing.T) {
	b := fullBatch()
	text := Exposition(b)

	got, err := ParseExposition(strings.NewReader(text))
	if err != nil {
		t.Fatalf("ParseExposition() error = %v", err)
	}

	want := map[string]float64{
		quality.MetricFreshness: 0.5,
		quality.MetricVolume:    48,
		quality.MetricNullPct:   30,
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ParseExposition() = %v, want %v", got, want)
	}
}

func TestParseExposition_MalformedInputFails(t *testing.T) {
	// One valid line followed by a broken one: the valid prefix must not
	// leak out as a partial mapping.
	text := "data_freshness_hours 0.5\ndata_volume_rows forty-eight\n"

	got, err := ParseExposition(strings.NewReader(text))
	if err == nil {
		t.Fatalf("ParseExposition() error = nil, want parse error (got %v)", got)
	}
	if got != nil {
		t.Errorf("ParseExposition() = %v, want nil on error", got)
	}
}

func TestExposition_OrderPreserved(t *testing.T) {
	lines := strings.Split(strings.TrimSpace(Exposition(fullBatch())), "\n")
	wantOrder := []string{quality.MetricFreshness, quality.MetricVolume, quality.MetricNullPct}

	if len(lines) != len(wantOrder) {
		t.Fatalf("got %d lines, want %d", len(lines), len(wantOrder))
	}
	for i, line := range lines {
		name, _, ok := strings.Cut(line, " ")
		if !ok {
			t.Fatalf("line %d %q is not a name value pair", i, line)
		}
		if name != wantOrder[i] {
			t.Errorf("line %d: metric %q, want %q", i, name, wantOrder[i])
		}
	}
}

func TestRoundTrip_BothFormsAgree(t *testing.T) {
	batches := []quality.Batch{
		fullBatch(),
		{
			{Name: quality.MetricVolume, Value: 0, Unit: quality.UnitRows, At: sampledAt},
		},
		{
			{Name: quality.MetricFreshness, Value: 26.75, Unit: quality.UnitHours, At: sampledAt},
			{Name: quality.MetricNullPct, Value: 100, Unit: quality.UnitPercent, At: sampledAt},
		},
	}

	for i, b := range batches {
		fromExpo, err := ParseExposition(strings.NewReader(Exposition(b)))
		if err != nil {
			t.Fatalf("batch %d: ParseExposition() error = %v", i, err)
		}
		fromKV, err := ParseKeyValue(KeyValue(b))
		if err != nil {
			t.Fatalf("batch %d: ParseKeyValue() error = %v", i, err)
		}
		if !reflect.DeepEqual(fromExpo, fromKV) {
			t.Errorf("batch %d: exposition parse %v != key-value parse %v", i, fromExpo, fromKV)
		}
		if len(fromExpo) != len(b) {
			t.Errorf("batch %d: parsed %d metrics, want %d", i, len(fromExpo), len(b))
		}
	}
}

func TestParseKeyValue_Malformed(t *testing.T) {
	for _, in := range []string{"data_volume_rows", "a=b"} {
		if _, err := ParseKeyValue(in); err == nil {
			t.Errorf("ParseKeyValue(%q) expected error, got nil", in)
		}
	}
}

func TestValue_FixedPoint(t *testing.T) {
	tests := []struct {
		s    quality.Sample
		want string
	}{
		{quality.Sample{Value: 0.5, Unit: quality.UnitHours}, "0.5"},
		{quality.Sample{Value: 0, Unit: quality.UnitHours}, "0.0"},
		{quality.Sample{Value: 1234567, Unit: quality.UnitRows}, "1234567"},
		{quality.Sample{Value: 100, Unit: quality.UnitPercent}, "100.0"},
	}
	for _, tc := range tests {
		if got := Value(tc.s); got != tc.want {
			t.Errorf("Value(%v %s) = %q, want %q", tc.s.Value, tc.s.Unit, got, tc.want)
		}
	}
}
