package sink

import (
	"context"
	"errors"
	"log/slog"

	"github.com/hazyhaar/tootwatch/timeline"
)

// Router fans events out to several sinks. A failing sink does not stop
// delivery to the others; the first error is returned.
type Router struct {
	sinks  []Sink
	logger *slog.Logger
}

// NewRouter creates a Router.
func NewRouter(logger *slog.Logger, sinks ...Sink) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{sinks: sinks, logger: logger}
}

func (r *Router) Added(ctx context.Context, rec *timeline.Record) error {
	var first error
	for _, s := range r.sinks {
		if err := s.Added(ctx, rec); err != nil {
			r.logger.Warn("sink: added failed", "id", rec.ID(), "error", err)
			if first == nil {
				first = err
			}
		}
	}
	return first
}

func (r *Router) Removed(ctx context.Context, id string) error {
	var first error
	for _, s := range r.sinks {
		if err := s.Removed(ctx, id); err != nil {
			r.logger.Warn("sink: removed failed", "id", id, "error", err)
			if first == nil {
				first = err
			}
		}
	}
	return first
}

// Close closes every sink and joins their errors.
func (r *Router) Close() error {
	var errs []error
	for _, s := range r.sinks {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
