package runner

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tabwatch/tabwatch/internal/config"
	"github.com/tabwatch/tabwatch/internal/gateway"
	"github.com/tabwatch/tabwatch/internal/quality"
	"github.com/tabwatch/tabwatch/internal/render"
	"github.com/tabwatch/tabwatch/internal/source"
)

// State names the phases of one run. A Report carries the phase it
// terminated in; the two terminal states are StateDone and
// StatePartialFailure.
type State string

const (
	StateIdle           State = "idle"
	StateFetching       State = "fetching"
	StateComputing      State = "computing"
	StateFormatting     State = "formatting"
	StateExporting      State = "exporting"
	StateDone           State = "done"
	StatePartialFailure State = "partial_failure"
)

// Report is the outcome of one run. It is created fresh per run and
// never escapes to the scheduler as an error — even a fully failed run
// produces a Report.
type Report struct {
	RunID    string
	State    State
	Batch    quality.Batch
	Failures map[string]error // metric name → calculator error
	Export   *gateway.Result  // nil when no export was attempted
	Started  time.Time
	Finished time.Time
}

// Summary renders the successfully computed metrics as a key=value line.
func (r *Report) Summary() string {
	return render.KeyValue(r.Batch)
}

// Pusher is the delivery dependency of the runner. *gateway.Pusher
// implements it; tests substitute a stub.
type Pusher interface {
	Push(ctx context.Context, payload string) gateway.Result
}

// Recorder persists finished run reports. Optional — a nil Recorder
// disables history.
type Recorder interface {
	Record(ctx context.Context, rep *Report) error
}

// Runner sequences one complete check run: fetch/compute the three
// metrics, render the successful subset, push it, record the outcome.
// The scheduler guarantees at most one run is active at a time; Runner
// holds no cross-run state and does no locking of its own.
type Runner struct {
	cfg    config.MonitorConfig
	src    source.Source
	pusher Pusher
	rec    Recorder
	loc    *time.Location
	clock  func() time.Time // injectable so Report timestamps are deterministic in tests
}

// New builds a Runner. The configured timezone must resolve; rec may be
// nil.
func New(cfg config.MonitorConfig, src source.Source, pusher Pusher, rec Recorder) (*Runner, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	return &Runner{cfg: cfg, src: src, pusher: pusher, rec: rec, loc: loc, clock: time.Now}, nil
}

// Run executes one complete, independent run anchored at now. It never
// returns an error: per-metric failures become absent samples, export
// failures live in Report.Export, and the next scheduled run must always
// be able to proceed.
func (r *Runner) Run(ctx context.Context, now time.Time) *Report {
	rep := &Report{
		RunID:    uuid.NewString(),
		State:    StateIdle,
		Failures: make(map[string]error),
		Started:  now,
	}
	defer func() {
		rep.Finished = r.clock()
		r.record(ctx, rep)
	}()

	dayStart := startOfDay(now.In(r.loc))
	slog.Info("run: starting",
		"run_id", rep.RunID, "table", r.cfg.Table, "day_start", dayStart)

	rep.State = StateFetching
	results := r.computeAll(ctx, now, dayStart)

	rep.State = StateComputing
	for _, res := range results {
		if res.err != nil {
			rep.Failures[res.name] = res.err
			slog.Warn("run: metric unavailable",
				"run_id", rep.RunID, "metric", res.name, "err", res.err)
			continue
		}
		rep.Batch = append(rep.Batch, res.sample)
	}

	if len(rep.Batch) == 0 {
		// Nothing to push — terminate without an export attempt.
		rep.State = StatePartialFailure
		slog.Error("run: no metrics computed, skipping export", "run_id", rep.RunID)
		return rep
	}

	rep.State = StateFormatting
	payload := render.Exposition(rep.Batch)

	rep.State = StateExporting
	res := r.pusher.Push(ctx, payload)
	rep.Export = &res

	if res.Delivered && len(rep.Failures) == 0 {
		rep.State = StateDone
	} else {
		rep.State = StatePartialFailure
	}
	return rep
}

// result is one calculator outcome, tagged with its metric name.
type result struct {
	name   string
	sample quality.Sample
	err    error
}

// computeAll runs the three calculators concurrently, each bounded by
// its own query timeout so one hanging aggregate cannot stall the
// others. The returned slice is in fixed metric order regardless of
// completion order, and a failure in one slot never cancels the rest.
func (r *Runner) computeAll(ctx context.Context, now, dayStart time.Time) []result {
	calcs := []struct {
		name string
		fn   func(ctx context.Context) (quality.Sample, error)
	}{
		{quality.MetricFreshness, func(ctx context.Context) (quality.Sample, error) {
			return quality.Freshness(ctx, r.src, r.cfg.Table, now)
		}},
		{quality.MetricVolume, func(ctx context.Context) (quality.Sample, error) {
			return quality.Volume(ctx, r.src, r.cfg.Table, dayStart, now)
		}},
		{quality.MetricNullPct, func(ctx context.Context) (quality.Sample, error) {
			return quality.NullPercentage(ctx, r.src, r.cfg.Table, r.cfg.NullColumn, now)
		}},
	}

	results := make([]result, len(calcs))
	var wg sync.WaitGroup
	for i, c := range calcs {
		wg.Add(1)
		go func(i int, name string, fn func(context.Context) (quality.Sample, error)) {
			defer wg.Done()
			cctx, cancel := context.WithTimeout(ctx, r.cfg.QueryTimeout)
			defer cancel()
			s, err := fn(cctx)
			results[i] = result{name: name, sample: s, err: err}
		}(i, c.name, c.fn)
	}
	wg.Wait()
	return results
}

// record hands the finished report to the recorder, if any. Persistence
// trouble is logged, never surfaced.
func (r *Runner) record(ctx context.Context, rep *Report) {
	if r.rec == nil {
		return
	}
	if err := r.rec.Record(ctx, rep); err != nil {
		slog.Error("run: history record failed", "run_id", rep.RunID, "err", err)
	}
}

// startOfDay truncates t to midnight in its own location.
func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
