package timeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

// ErrRunning is returned by Start when the watcher is already subscribed.
var ErrRunning = errors.New("timeline: watcher already running")

// Watcher subscribes to a Source over a root node and turns child-list
// changes into OnAdded / OnRemoved callbacks.
//
// Batches are processed synchronously on the source's delivery goroutine,
// changes in order, and within a change every added node before every
// removed node. The watcher keeps no state across batches apart from the
// subscription handle and its counters.
type Watcher struct {
	source   Source
	root     Node
	settings Settings
	markers  Markers
	reveal   bool
	logger   *slog.Logger

	cbMu      sync.RWMutex
	onAdded   func(*Record)
	onRemoved func(id string)

	mu      sync.Mutex
	handle  Handle
	running bool

	stats counters
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithSettings sets the filter policy. Default: AllowAll.
func WithSettings(s Settings) Option {
	return func(w *Watcher) { w.settings = s }
}

// WithMarkers overrides the structure markers. Empty fields keep their
// default.
func WithMarkers(m Markers) Option {
	return func(w *Watcher) { w.markers = m.withDefaults() }
}

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) Option {
	return func(w *Watcher) { w.logger = l }
}

// WithoutReveal disables the spoiler click. Records still report
// HasContentWarning.
func WithoutReveal() Option {
	return func(w *Watcher) { w.reveal = false }
}

// New creates an idle Watcher observing root through source.
func New(source Source, root Node, opts ...Option) *Watcher {
	w := &Watcher{
		source:   source,
		root:     root,
		settings: AllowAll,
		markers:  DefaultMarkers(),
		reveal:   true,
		logger:   slog.Default(),
	}
	for _, o := range opts {
		o(w)
	}
	if w.settings == nil {
		w.settings = AllowAll
	}
	if w.logger == nil {
		w.logger = slog.Default()
	}
	return w
}

// OnAdded registers the callback for extracted posts. Register before Start.
func (w *Watcher) OnAdded(fn func(*Record)) {
	w.cbMu.Lock()
	w.onAdded = fn
	w.cbMu.Unlock()
}

// OnRemoved registers the callback for removed post ids. Register before
// Start.
func (w *Watcher) OnRemoved(fn func(id string)) {
	w.cbMu.Lock()
	w.onRemoved = fn
	w.cbMu.Unlock()
}

// Start subscribes to child-list, attribute and character-data changes
// over the root's whole subtree.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.running {
		return ErrRunning
	}
	h, err := w.source.Subscribe(ctx, w.root, ObserveAll, w.handleBatch)
	if err != nil {
		return fmt.Errorf("timeline: subscribe: %w", err)
	}
	w.handle = h
	w.running = true
	w.logger.Debug("timeline: watcher started", "handle", h)
	return nil
}

// Stop ends the subscription. A batch already being processed runs to
// completion. Stop on an idle watcher does nothing.
func (w *Watcher) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.running {
		return
	}
	if err := w.source.Unsubscribe(w.handle); err != nil {
		w.logger.Warn("timeline: unsubscribe failed", "handle", w.handle, "error", err)
	}
	w.logger.Debug("timeline: watcher stopped", "handle", w.handle)
	w.handle = ""
	w.running = false
}

// Running reports whether the watcher is subscribed.
func (w *Watcher) Running() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

// Stats returns a snapshot of the watcher's counters.
func (w *Watcher) Stats() Stats {
	return w.stats.snapshot()
}

func (w *Watcher) handleBatch(batch Batch) {
	w.stats.batches.Add(1)

	w.cbMu.RLock()
	onAdded, onRemoved := w.onAdded, w.onRemoved
	w.cbMu.RUnlock()

	for _, ch := range batch {
		if ch.Kind != ChildList {
			continue
		}
		for _, n := range ch.Added {
			if n == nil {
				continue
			}
			for _, root := range FindRoots(n, w.markers.Entity) {
				w.guard(root, func(root Node) { w.handleAdded(root, onAdded) })
			}
		}
		for _, n := range ch.Removed {
			if n == nil {
				continue
			}
			for _, root := range FindRoots(n, w.markers.Entity) {
				w.guard(root, func(root Node) { w.handleRemoved(root, onRemoved) })
			}
		}
	}
}

// guard keeps a panicking host node from aborting the rest of the batch.
func (w *Watcher) guard(n Node, fn func(Node)) {
	defer func() {
		if r := recover(); r != nil {
			w.stats.skipped.Add(1)
			w.logger.Error("timeline: entity handler panicked", "panic", r)
		}
	}()
	fn(n)
}

func (w *Watcher) handleAdded(n Node, onAdded func(*Record)) {
	cw, hasCW := n.Query(w.markers.ContentWarning)
	if hasCW {
		if !w.allowed(KeyNSFW) {
			w.filtered(KeyNSFW)
			return
		}
		w.revealSpoiler(cw)
	}

	ex, err := Extract(n, w.markers)
	if err != nil {
		w.stats.skipped.Add(1)
		w.logger.Debug("timeline: skip entity", "error", err)
		return
	}
	// Revealing may unmount the control; the post still had one.
	if hasCW {
		ex.ContentWarning = cw
	}

	if ex.Reshared && !w.allowed(KeyListBoost) {
		w.filtered(KeyListBoost)
		return
	}
	if ex.Placement.Home && !w.allowed(KeyListHome) {
		w.filtered(KeyListHome)
		return
	}
	if ex.Placement.User && !w.allowed(KeyListUser) {
		w.filtered(KeyListUser)
		return
	}

	rec := newRecord(n, ex)
	w.stats.added.Add(1)
	if onAdded != nil {
		onAdded(rec)
	}
}

func (w *Watcher) handleRemoved(n Node, onRemoved func(string)) {
	link, err := FindPermalink(n, w.markers)
	if err != nil {
		return
	}
	w.stats.removed.Add(1)
	if onRemoved != nil {
		onRemoved(link.Path)
	}
}

// revealSpoiler clicks the spoiler control. This mutates the observed tree;
// the resulting attribute changes are ignored by handleBatch, so the post is
// not processed twice.
func (w *Watcher) revealSpoiler(cw Node) {
	if !w.reveal {
		return
	}
	if err := cw.Click(); err != nil {
		w.logger.Warn("timeline: reveal content warning", "error", err)
	}
}

func (w *Watcher) allowed(key string) bool {
	return w.settings.GetConfig(key, true)
}

func (w *Watcher) filtered(key string) {
	w.stats.filter(key)
	w.logger.Debug("timeline: entity filtered", "key", key)
}
