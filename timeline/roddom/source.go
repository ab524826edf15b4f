// Package roddom is the live-browser timeline host built on go-rod.
//
// Element adapts *rod.Element to timeline.Node. Source implements
// timeline.Source by injecting a MutationObserver into the page; the
// observer parks changed nodes in a page-side registry and reports their
// ids through a CDP runtime binding. Go resolves the ids back into remote
// objects and delivers one batch per observer callback, from a single
// goroutine per subscription, in arrival order.
package roddom

import (
	"context"
	_ "embed"
	"fmt"
	"log/slog"
	"sync"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"

	"github.com/hazyhaar/tootwatch/idgen"
	"github.com/hazyhaar/tootwatch/timeline"
)

//go:embed observer.js
var observerJS string

var newHandle = idgen.Prefixed("tw", idgen.Compact(idgen.Default))

// DefaultBinding is the name of the runtime binding the observer calls.
const DefaultBinding = "__tootwatch_binding"

var _ timeline.Source = (*Source)(nil)

// Source delivers mutation batches observed in one page.
type Source struct {
	page    *rod.Page
	binding string
	logger  *slog.Logger
	buffer  int

	installOnce sync.Once
	installErr  error

	mu   sync.Mutex
	subs map[timeline.Handle]*subscription
}

type subscription struct {
	handle timeline.Handle
	fn     timeline.BatchFunc
	ctx    context.Context
	cancel context.CancelFunc
	msgs   chan payload
	stop   func() bool
}

// Option configures a Source.
type Option func(*Source)

// WithBinding overrides the runtime binding name.
func WithBinding(name string) Option {
	return func(s *Source) {
		if name != "" {
			s.binding = name
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Source) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithBuffer sets how many undelivered observer callbacks a subscription
// queues before the binding listener blocks. Default: 256.
func WithBuffer(n int) Option {
	return func(s *Source) {
		if n > 0 {
			s.buffer = n
		}
	}
}

// NewSource creates a Source for page. Nothing is injected until the first
// Subscribe.
func NewSource(page *rod.Page, opts ...Option) *Source {
	s := &Source{
		page:    page,
		binding: DefaultBinding,
		logger:  slog.Default(),
		buffer:  256,
		subs:    make(map[timeline.Handle]*subscription),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Root returns the first element matching selector, waiting for it to
// appear until ctx is done.
func (s *Source) Root(ctx context.Context, selector string) (*Element, error) {
	el, err := s.page.Context(ctx).Element(selector)
	if err != nil {
		return nil, fmt.Errorf("roddom: root %q: %w", selector, err)
	}
	return Wrap(el, s.logger), nil
}

// install adds the binding and the page-side registry.
func (s *Source) install() error {
	s.installOnce.Do(func() {
		if err := (proto.RuntimeAddBinding{Name: s.binding}).Call(s.page); err != nil {
			s.installErr = fmt.Errorf("roddom: add binding: %w", err)
			return
		}
		if _, err := s.page.Eval(observerJS); err != nil {
			s.installErr = fmt.Errorf("roddom: inject observer: %w", err)
			return
		}
		s.logger.Debug("roddom: observer injected", "binding", s.binding)
	})
	return s.installErr
}

// Subscribe implements timeline.Source. root must be an *Element of this
// page. Cancelling ctx unsubscribes.
func (s *Source) Subscribe(ctx context.Context, root timeline.Node, opts timeline.ObserveOptions, fn timeline.BatchFunc) (timeline.Handle, error) {
	r, ok := root.(*Element)
	if !ok || r == nil {
		return "", fmt.Errorf("roddom: root is not a roddom element")
	}
	if fn == nil {
		return "", fmt.Errorf("roddom: nil batch func")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if err := s.install(); err != nil {
		return "", err
	}

	h := timeline.Handle(newHandle())
	subCtx, cancel := context.WithCancel(ctx)
	sub := &subscription{
		handle: h,
		fn:     fn,
		ctx:    subCtx,
		cancel: cancel,
		msgs:   make(chan payload, s.buffer),
	}

	// Listen before observing so the first callback is not missed.
	wait := s.page.Context(subCtx).EachEvent(func(e *proto.RuntimeBindingCalled) {
		if e.Name != s.binding {
			return
		}
		p, err := decodePayload(e.Payload)
		if err != nil {
			s.logger.Warn("roddom: bad binding payload", "error", err)
			return
		}
		if p.Handle != h {
			return
		}
		select {
		case sub.msgs <- p:
		case <-subCtx.Done():
		}
	})
	go wait()

	jsOpts := map[string]bool{
		"childList":     opts.ChildList,
		"attributes":    opts.Attributes,
		"characterData": opts.CharacterData,
		"subtree":       opts.Subtree,
	}
	if _, err := r.el.Eval(`(h, opts, binding) => window.__tootwatch.observe(this, h, opts, binding)`, string(h), jsOpts, s.binding); err != nil {
		cancel()
		return "", fmt.Errorf("roddom: observe: %w", err)
	}

	s.mu.Lock()
	s.subs[h] = sub
	s.mu.Unlock()

	go s.loop(sub)
	sub.stop = context.AfterFunc(ctx, func() { s.Unsubscribe(h) })

	s.logger.Debug("roddom: subscribed", "handle", h)
	return h, nil
}

// Unsubscribe implements timeline.Source. It disconnects the observer and
// stops delivery without waiting for an in-flight batch, so it is safe to
// call from inside a BatchFunc.
func (s *Source) Unsubscribe(h timeline.Handle) error {
	s.mu.Lock()
	sub, ok := s.subs[h]
	delete(s.subs, h)
	s.mu.Unlock()

	if !ok {
		return fmt.Errorf("roddom: unknown handle %q", h)
	}
	sub.cancel()
	if sub.stop != nil {
		sub.stop()
	}

	if _, err := s.page.Eval(`(h) => window.__tootwatch && window.__tootwatch.disconnect(h)`, string(h)); err != nil {
		// The page may already be gone; the subscription is dead either way.
		s.logger.Debug("roddom: disconnect observer", "handle", h, "error", err)
	}
	s.logger.Debug("roddom: unsubscribed", "handle", h)
	return nil
}

// Close unsubscribes everything.
func (s *Source) Close() {
	s.mu.Lock()
	hs := make([]timeline.Handle, 0, len(s.subs))
	for h := range s.subs {
		hs = append(hs, h)
	}
	s.mu.Unlock()

	for _, h := range hs {
		s.Unsubscribe(h)
	}
}

func (s *Source) loop(sub *subscription) {
	for {
		select {
		case <-sub.ctx.Done():
			return
		case p := <-sub.msgs:
			batch, err := s.resolve(sub, p)
			if err != nil {
				s.logger.Warn("roddom: resolve batch", "handle", sub.handle, "error", err)
				continue
			}
			if sub.ctx.Err() != nil {
				return
			}
			sub.fn(batch)
		}
	}
}

// resolve turns parked node ids into elements, one round trip per change
// that carries nodes. A failed take drops the whole payload, releasing
// every id it parked so the page does not keep them alive.
func (s *Source) resolve(sub *subscription, p payload) (timeline.Batch, error) {
	batch := make(timeline.Batch, 0, len(p.Records))
	for _, rec := range p.Records {
		ch := timeline.Change{Kind: timeline.ChangeKind(rec.Kind)}
		var err error
		if ch.Added, err = s.take(sub, rec.Added); err == nil {
			ch.Removed, err = s.take(sub, rec.Removed)
		}
		if err != nil {
			s.drop(sub, p.ids())
			return nil, err
		}
		batch = append(batch, ch)
	}
	return batch, nil
}

// drop releases parked ids. Ids already taken are ignored page-side.
func (s *Source) drop(sub *subscription, ids []int64) {
	if len(ids) == 0 {
		return
	}
	res, err := s.page.Eval(`(h, ids) => window.__tootwatch ? window.__tootwatch.drop(h, ids) : 0`, string(sub.handle), ids)
	if err != nil {
		s.logger.Debug("roddom: drop parked nodes", "handle", sub.handle, "error", err)
		return
	}
	s.logger.Debug("roddom: dropped parked nodes", "handle", sub.handle, "count", res.Value.Int())
}

func (s *Source) take(sub *subscription, ids []int64) ([]timeline.Node, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	els, err := s.page.Context(sub.ctx).ElementsByJS(rod.Eval(`(h, ids) => window.__tootwatch.take(h, ids)`, string(sub.handle), ids))
	if err != nil {
		return nil, fmt.Errorf("take %d nodes: %w", len(ids), err)
	}
	out := make([]timeline.Node, 0, len(els))
	for _, el := range els {
		out = append(out, Wrap(el, s.logger))
	}
	return out, nil
}
