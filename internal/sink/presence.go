package sink

import (
	"context"
	"sync"

	"github.com/hazyhaar/tootwatch/timeline"
)

// Presence forwards an added event only for a post that is not already on
// screen, and a removed event only for one that is. The web UI re-renders
// posts it keeps on screen (column switches, virtualised scrolling), which
// the watcher reports as fresh additions.
type Presence struct {
	next Sink

	mu      sync.Mutex
	present map[string]int
}

// NewPresence wraps next.
func NewPresence(next Sink) *Presence {
	return &Presence{next: next, present: make(map[string]int)}
}

// Added counts the post's rendered copies and forwards the first.
func (p *Presence) Added(ctx context.Context, r *timeline.Record) error {
	p.mu.Lock()
	n := p.present[r.ID()]
	p.present[r.ID()] = n + 1
	p.mu.Unlock()

	if n > 0 {
		return nil
	}
	return p.next.Added(ctx, r)
}

// Removed forwards when the last rendered copy is gone.
func (p *Presence) Removed(ctx context.Context, id string) error {
	p.mu.Lock()
	n, ok := p.present[id]
	switch {
	case !ok:
	case n <= 1:
		delete(p.present, id)
	default:
		p.present[id] = n - 1
	}
	p.mu.Unlock()

	if !ok || n > 1 {
		return nil
	}
	return p.next.Removed(ctx, id)
}

// Len is the number of distinct posts on screen.
func (p *Presence) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.present)
}

// Has reports whether a post is on screen.
func (p *Presence) Has(id string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.present[id] > 0
}

func (p *Presence) Close() error { return p.next.Close() }
