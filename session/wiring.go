package session

import (
	"context"
	"io"
	"log/slog"

	"github.com/hazyhaar/tootwatch/internal/config"
	"github.com/hazyhaar/tootwatch/internal/sink"
	"github.com/hazyhaar/tootwatch/timeline"
)

// Settings layers the filter sources: the settings database (if any) wins
// over the config file, which is reloaded on change when path is set.
// Background loops stop with ctx; closeFn releases the database.
func Settings(ctx context.Context, cfg *config.Config, path string, logger *slog.Logger) (timeline.Settings, func() error, error) {
	if logger == nil {
		logger = slog.Default()
	}
	var layers config.Overlay
	closeFn := func() error { return nil }

	if cfg.SettingsDB != "" {
		store, err := config.OpenStore(cfg.SettingsDB, logger)
		if err != nil {
			return nil, nil, err
		}
		go store.Watch(ctx, 0)
		layers = append(layers, store)
		closeFn = store.Close
	}

	if path != "" {
		r := config.NewReloader(path, cfg, logger)
		go func() {
			if err := r.Run(ctx); err != nil {
				logger.Warn("session: config reloader stopped", "error", err)
			}
		}()
		layers = append(layers, r)
	} else {
		layers = append(layers, cfg.Filters)
	}
	return layers, closeFn, nil
}

// Sinks builds the configured outputs behind a presence filter. stdout
// sinks write to w.
func Sinks(cfg *config.Config, w io.Writer, logger *slog.Logger) sink.Sink {
	var outs []sink.Sink
	for _, sc := range cfg.Sinks {
		switch sc.Type {
		case "stdout":
			var opts []sink.StdoutOption
			if sc.Raw {
				opts = append(opts, sink.Raw())
			}
			outs = append(outs, sink.NewStdout(w, opts...))
		case "log":
			outs = append(outs, sink.NewLog(logger))
		}
	}
	return sink.NewPresence(sink.NewRouter(logger, outs...))
}
