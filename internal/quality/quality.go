package quality

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tabwatch/tabwatch/internal/source"
)

// Stable metric identifiers. These names are the external contract of the
// exposition output and must not change.
const (
	MetricFreshness = "data_freshness_hours"
	MetricVolume    = "data_volume_rows"
	MetricNullPct   = "data_null_percentage"
)

// Units carried on samples. The renderer uses UnitRows to pick integer
// formatting.
const (
	UnitHours   = "hours"
	UnitRows    = "rows"
	UnitPercent = "percent"
)

// ErrNoData marks a metric whose value is undefined because the table has
// no rows. Callers detect it with errors.Is.
var ErrNoData = errors.New("no data")

// Sample is one computed metric value. It is created fresh on every run
// and never mutated afterwards.
type Sample struct {
	Name  string
	Value float64
	Unit  string
	At    time.Time
}

// Batch is the ordered set of samples for one run. Insertion order is
// computation order (freshness, volume, null percentage) and is preserved
// through formatting.
type Batch []Sample

// Freshness computes the hours elapsed since the newest record in table.
// A future created_at (clock skew) clamps to 0 rather than going
// negative. An empty table yields an error wrapping ErrNoData.
func Freshness(ctx context.Context, src source.Source, table string, now time.Time) (Sample, error) {
	latest, ok, err := src.LatestCreatedAt(ctx, table)
	if err != nil {
		return Sample{}, err
	}
	if !ok {
		return Sample{}, fmt.Errorf("freshness of %q: %w", table, ErrNoData)
	}
	return Sample{
		Name:  MetricFreshness,
		Value: HoursSince(now, latest),
		Unit:  UnitHours,
		At:    now,
	}, nil
}

// HoursSince returns now minus ts in fractional hours, clamped to >= 0.
func HoursSince(now, ts time.Time) float64 {
	h := now.Sub(ts).Hours()
	if h < 0 {
		return 0
	}
	return h
}

// Volume computes the row count for the window [dayStart, now].
// Zero rows is a valid measurement, distinct from an unavailable one.
func Volume(ctx context.Context, src source.Source, table string, dayStart, now time.Time) (Sample, error) {
	n, err := src.RowCountSince(ctx, table, dayStart, now)
	if err != nil {
		return Sample{}, err
	}
	return Sample{
		Name:  MetricVolume,
		Value: float64(n),
		Unit:  UnitRows,
		At:    now,
	}, nil
}

// NullPercentage computes the percentage of NULL values in column, in
// [0, 100]. An empty table yields an error wrapping ErrNoData since the
// ratio is undefined, not zero.
func NullPercentage(ctx context.Context, src source.Source, table, column string, now time.Time) (Sample, error) {
	ratio, ok, err := src.NullRatio(ctx, table, column)
	if err != nil {
		return Sample{}, err
	}
	if !ok {
		return Sample{}, fmt.Errorf("null ratio of %q.%s: %w", table, column, ErrNoData)
	}
	return Sample{
		Name:  MetricNullPct,
		Value: ratio * 100,
		Unit:  UnitPercent,
		At:    now,
	}, nil
}
