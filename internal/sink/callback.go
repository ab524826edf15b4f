package sink

import (
	"context"

	"github.com/hazyhaar/tootwatch/timeline"
)

// Callback delivers events as plain function calls. Either func may be nil.
type Callback struct {
	OnAdded   func(ctx context.Context, r *timeline.Record) error
	OnRemoved func(ctx context.Context, id string) error
}

func (c *Callback) Added(ctx context.Context, r *timeline.Record) error {
	if c.OnAdded != nil {
		return c.OnAdded(ctx, r)
	}
	return nil
}

func (c *Callback) Removed(ctx context.Context, id string) error {
	if c.OnRemoved != nil {
		return c.OnRemoved(ctx, id)
	}
	return nil
}

func (c *Callback) Close() error { return nil }
