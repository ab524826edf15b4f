package config

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/hazyhaar/tootwatch/timeline"
)

// Reloader serves the filters of a config file and swaps them when the file
// changes on disk. Other sections are not re-applied; a browser or page
// change needs a restart.
type Reloader struct {
	path     string
	logger   *slog.Logger
	debounce time.Duration

	filters  atomic.Pointer[Filters]
	onReload func(*Config)
}

var _ timeline.Settings = (*Reloader)(nil)

// NewReloader starts from the filters of initial.
func NewReloader(path string, initial *Config, logger *slog.Logger) *Reloader {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Reloader{path: filepath.Clean(path), logger: logger, debounce: 100 * time.Millisecond}
	f := Filters{}
	if initial != nil && initial.Filters != nil {
		f = initial.Filters
	}
	r.filters.Store(&f)
	return r
}

// OnReload registers a callback run after each successful reload. Register
// before Run.
func (r *Reloader) OnReload(fn func(*Config)) { r.onReload = fn }

func (r *Reloader) Lookup(key string) (bool, bool) {
	return (*r.filters.Load()).Lookup(key)
}

func (r *Reloader) GetConfig(key string, def bool) bool {
	return (*r.filters.Load()).GetConfig(key, def)
}

// Run watches the file's directory, so editors that replace the file by
// rename are seen too. It blocks until ctx is done.
func (r *Reloader) Run(ctx context.Context) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("config: watcher: %w", err)
	}
	defer w.Close()

	if err := w.Add(filepath.Dir(r.path)); err != nil {
		return fmt.Errorf("config: watch %s: %w", r.path, err)
	}
	r.logger.Info("config: watching for changes", "path", r.path)

	var timer *time.Timer
	var fire <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return nil

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != r.path || !ev.Has(fsnotify.Write|fsnotify.Create|fsnotify.Rename) {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.NewTimer(r.debounce)
			fire = timer.C

		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			r.logger.Warn("config: watcher error", "error", err)

		case <-fire:
			fire = nil
			r.Reload()
		}
	}
}

// Reload re-reads the file now. A file that fails to load leaves the
// current filters in place.
func (r *Reloader) Reload() error {
	cfg, err := LoadFile(r.path)
	if err != nil {
		r.logger.Warn("config: reload failed, keeping previous filters", "path", r.path, "error", err)
		return err
	}
	r.filters.Store(&cfg.Filters)
	r.logger.Info("config: filters reloaded", "path", r.path, "filters", len(cfg.Filters))
	if r.onReload != nil {
		r.onReload(cfg)
	}
	return nil
}
