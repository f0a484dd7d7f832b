package config

import (
	"context"
	"log/slog"

	"github.com/fsnotify/fsnotify"
)

// Watch monitors the config file at path and invokes onChange with each
// newly loaded Config together with the names of the sections that
// differ from the previously active one. Edits that fail to load or
// validate are rejected: the previous config stays active and onChange
// is not called. Edits that change nothing effective are ignored.
// Watch blocks until ctx is cancelled.
func Watch(ctx context.Context, path string, onChange func(cfg *Config, changed []string)) error {
	prev, err := Load(path)
	if err != nil {
		return err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	if err := watcher.Add(path); err != nil {
		return err
	}

	slog.Info("config: watching for changes", "path", path)

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			// Atomic saves replace the file instead of writing it in
			// place, so creates count as much as writes.
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}

			// A replaced inode also needs watching again.
			_ = watcher.Add(path)

			cfg, err := Load(path)
			if err != nil {
				slog.Error("config: reload rejected, previous config stays active",
					"path", path, "err", err)
				continue
			}

			changed := prev.ChangedSections(cfg)
			if len(changed) == 0 {
				continue
			}

			slog.Info("config: reloaded", "path", path, "changed", changed)
			prev = cfg
			onChange(cfg, changed)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			slog.Error("config: watcher error", "err", err)
		}
	}
}

// ChangedSections compares two configs section by section and returns
// the names of those that differ, in file order. Callers use the list
// to decide what can be applied live (gateway settings, the schedule
// interval) and what needs a restart (source and history backends).
func (c *Config) ChangedSections(next *Config) []string {
	var changed []string
	if c.Monitor != next.Monitor {
		changed = append(changed, "monitor")
	}
	if c.Source != next.Source {
		changed = append(changed, "source")
	}
	if c.Gateway != next.Gateway {
		changed = append(changed, "gateway")
	}
	if c.History != next.History {
		changed = append(changed, "history")
	}
	return changed
}
