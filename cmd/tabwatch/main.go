package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tabwatch/tabwatch/internal/config"
	"github.com/tabwatch/tabwatch/internal/gateway"
	"github.com/tabwatch/tabwatch/internal/history"
	"github.com/tabwatch/tabwatch/internal/runner"
	"github.com/tabwatch/tabwatch/internal/source"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	slog.Info("tabwatch starting", "config", *configPath)

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "err", err)
		os.Exit(1)
	}
	slog.Info("config loaded",
		"table", cfg.Monitor.Table,
		"source", cfg.Source.Kind,
		"gateway", cfg.Gateway.URL,
		"job", cfg.Gateway.Job,
		"interval", cfg.Monitor.Interval,
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	src, err := source.New(ctx, cfg.Source)
	if err != nil {
		slog.Error("failed to build data source", "err", err)
		os.Exit(1)
	}
	defer src.Close()

	pusher, err := gateway.New(cfg.Gateway)
	if err != nil {
		slog.Error("failed to build gateway pusher", "err", err)
		os.Exit(1)
	}

	var rec runner.Recorder
	if cfg.History.Path != "" {
		store, err := history.Open(cfg.History.Path)
		if err != nil {
			slog.Error("failed to open history store", "path", cfg.History.Path, "err", err)
			os.Exit(1)
		}
		defer store.Close()
		rec = store
		slog.Info("run history enabled", "path", cfg.History.Path)
	}

	run, err := runner.New(cfg.Monitor, src, pusher, rec)
	if err != nil {
		slog.Error("failed to build runner", "err", err)
		os.Exit(1)
	}

	// Watch the config file for hot-reload. Accepted reloads are handed
	// to the scheduler loop, which applies them between runs so a live
	// run never sees a half-swapped config.
	reloads := make(chan *config.Config, 1)
	go func() {
		if err := config.Watch(ctx, *configPath, func(updated *config.Config, changed []string) {
			select {
			case reloads <- updated:
			default:
			}
		}); err != nil {
			slog.Error("config watcher stopped", "err", err)
		}
	}()

	execute := func(now time.Time) {
		rep := run.Run(ctx, now)
		attrs := []any{
			"run_id", rep.RunID,
			"state", string(rep.State),
			"metrics", rep.Summary(),
		}
		if rep.Export != nil {
			attrs = append(attrs, "delivered", rep.Export.Delivered, "attempts", rep.Export.Attempts)
		}
		if rep.State == runner.StateDone {
			slog.Info("run complete", attrs...)
		} else {
			slog.Warn("run completed with failures", attrs...)
		}
	}

	// One run immediately, then one per interval until shutdown.
	execute(time.Now())

	ticker := time.NewTicker(cfg.Monitor.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			slog.Info("tabwatch shutting down")
			return
		case updated := <-reloads:
			cfg = applyReload(cfg, updated, src, rec, &pusher, &run, ticker)
		case t := <-ticker.C:
			execute(t)
		}
	}
}

// applyReload applies the live-swappable parts of an accepted config
// reload: gateway settings and the monitor schedule. Source and history
// backends hold open connections and keep their startup settings until
// a restart. Anything that fails to apply keeps its previous value.
func applyReload(cfg, updated *config.Config, src source.Source, rec runner.Recorder,
	pusher **gateway.Pusher, run **runner.Runner, ticker *time.Ticker) *config.Config {

	if updated.Source != cfg.Source || updated.History != cfg.History {
		slog.Warn("config: source and history changes need a restart")
	}
	updated.Source = cfg.Source
	updated.History = cfg.History

	if updated.Gateway != cfg.Gateway {
		p, err := gateway.New(updated.Gateway)
		if err != nil {
			slog.Error("config: gateway settings not applied", "err", err)
			updated.Gateway = cfg.Gateway
		} else {
			*pusher = p
			slog.Info("config: gateway settings applied", "gateway", updated.Gateway.URL, "job", updated.Gateway.Job)
		}
	}

	if updated.Monitor != cfg.Monitor {
		r, err := runner.New(updated.Monitor, src, *pusher, rec)
		if err != nil {
			slog.Error("config: monitor settings not applied", "err", err)
			updated.Monitor = cfg.Monitor
		} else {
			*run = r
			if updated.Monitor.Interval != cfg.Monitor.Interval {
				ticker.Reset(updated.Monitor.Interval)
			}
			slog.Info("config: monitor settings applied", "table", updated.Monitor.Table, "interval", updated.Monitor.Interval)
		}
	} else if updated.Gateway != cfg.Gateway {
		// The runner holds the pusher, so a gateway swap alone still
		// needs a rebuilt runner.
		if r, err := runner.New(updated.Monitor, src, *pusher, rec); err == nil {
			*run = r
		}
	}

	return updated
}
