package sink

import (
	"context"
	"log/slog"

	"github.com/hazyhaar/tootwatch/timeline"
)

// Log reports events through slog at info level.
type Log struct {
	logger *slog.Logger
}

// NewLog creates a Log sink.
func NewLog(logger *slog.Logger) *Log {
	if logger == nil {
		logger = slog.Default()
	}
	return &Log{logger: logger}
}

func (l *Log) Added(ctx context.Context, r *timeline.Record) error {
	l.logger.InfoContext(ctx, "post added",
		"id", r.ID(),
		"author", r.Author,
		"reshared", r.Reshared,
		"home", r.OnHomeColumn,
		"user", r.OnUserColumn,
		"media", len(r.MediaAnchors))
	return nil
}

func (l *Log) Removed(ctx context.Context, id string) error {
	l.logger.InfoContext(ctx, "post removed", "id", id)
	return nil
}

func (l *Log) Close() error { return nil }
