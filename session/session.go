// Package session runs a timeline watcher against a live page: it owns the
// browser, the tab, the mutation source and the watcher, and re-attaches
// everything when the browser is recycled.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/go-rod/rod"

	"github.com/hazyhaar/tootwatch/internal/browser"
	"github.com/hazyhaar/tootwatch/internal/config"
	"github.com/hazyhaar/tootwatch/internal/sink"
	"github.com/hazyhaar/tootwatch/timeline"
	"github.com/hazyhaar/tootwatch/timeline/roddom"
)

// ErrStarted is returned by Start on a running session.
var ErrStarted = errors.New("session: already started")

// Session watches one page.
type Session struct {
	cfg      *config.Config
	settings timeline.Settings
	sink     sink.Sink
	logger   *slog.Logger

	mgr *browser.Manager

	mu      sync.Mutex
	ctx     context.Context
	tab     *browser.Tab
	source  *roddom.Source
	watcher *timeline.Watcher
}

// New creates a session. settings and out are used for every watcher the
// session attaches.
func New(cfg *config.Config, settings timeline.Settings, out sink.Sink, logger *slog.Logger) (*Session, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Page.URL == "" {
		return nil, fmt.Errorf("session: page url is required")
	}
	mode, err := browser.ParseMode(cfg.Browser.Stealth)
	if err != nil {
		return nil, err
	}
	screen, err := browser.ParseScreen(cfg.Browser.XvfbScreen)
	if err != nil {
		return nil, err
	}
	s := &Session{cfg: cfg, settings: settings, sink: out, logger: logger}
	s.mgr = browser.NewManager(browser.Config{
		RemoteURL:        cfg.Browser.Remote,
		Mode:             mode,
		ResourceBlocking: cfg.Browser.ResourceBlocking,
		MemoryLimit:      cfg.Browser.MemoryLimit,
		RecycleInterval:  cfg.Browser.RecycleInterval.Std(),
		XvfbDisplay:      cfg.Browser.XvfbDisplay,
		Screen:           screen,
		Logger:           logger,
	})
	s.mgr.OnRecycle(s.reattach)
	return s, nil
}

// Start launches the browser, opens the page and starts watching.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ctx != nil {
		return ErrStarted
	}
	if _, err := s.mgr.Start(ctx); err != nil {
		return err
	}
	if err := s.attachLocked(ctx); err != nil {
		s.mgr.Close()
		return err
	}
	s.ctx = ctx
	return nil
}

// Run starts the session and blocks until ctx is done.
func (s *Session) Run(ctx context.Context) error {
	if err := s.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	return s.Stop()
}

// Stop detaches the watcher and shuts the browser down.
func (s *Session) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.detachLocked()
	s.ctx = nil
	return errors.Join(s.mgr.Close(), s.sink.Close())
}

// Stats returns the current watcher's counters. They restart after a
// browser recycle.
func (s *Session) Stats() timeline.Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.watcher == nil {
		return timeline.Stats{}
	}
	return s.watcher.Stats()
}

func (s *Session) attachLocked(ctx context.Context) error {
	tab, err := s.mgr.OpenTab(ctx, s.cfg.Page.URL)
	if err != nil {
		return err
	}
	src := roddom.NewSource(tab.Page, sourceOptions(s.cfg, s.logger)...)

	readyCtx, cancel := context.WithTimeout(ctx, s.cfg.Page.ReadyTimeout.Std())
	defer cancel()
	root, err := src.Root(readyCtx, s.cfg.Page.Root)
	if err != nil {
		tab.Close()
		return fmt.Errorf("session: %w", err)
	}

	w, err := Attach(ctx, s.cfg, src, root, s.settings, s.sink, s.logger)
	if err != nil {
		src.Close()
		tab.Close()
		return err
	}
	s.tab, s.source, s.watcher = tab, src, w
	s.logger.Info("session: watching", "url", s.cfg.Page.URL, "root", s.cfg.Page.Root)
	return nil
}

func (s *Session) detachLocked() {
	if s.watcher != nil {
		s.watcher.Stop()
		s.watcher = nil
	}
	if s.source != nil {
		s.source.Close()
		s.source = nil
	}
	if s.tab != nil {
		s.tab.Close()
		s.tab = nil
	}
}

// reattach runs after a browser recycle. The old tab died with the old
// process, so only local state is dropped before opening a new one.
func (s *Session) reattach(ctx context.Context, _ *rod.Browser) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ctx == nil {
		return
	}
	if s.watcher != nil {
		s.watcher.Stop()
	}
	s.tab, s.source, s.watcher = nil, nil, nil
	if err := s.attachLocked(ctx); err != nil {
		s.logger.Error("session: reattach after recycle failed", "error", err)
	}
}

// Attach builds a watcher over root with the options cfg describes, wires
// it to out and starts it.
func Attach(ctx context.Context, cfg *config.Config, src timeline.Source, root timeline.Node, settings timeline.Settings, out sink.Sink, logger *slog.Logger) (*timeline.Watcher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	opts := []timeline.Option{
		timeline.WithSettings(settings),
		timeline.WithMarkers(cfg.Markers.Timeline()),
		timeline.WithLogger(logger),
	}
	if cfg.NoReveal {
		opts = append(opts, timeline.WithoutReveal())
	}
	w := timeline.New(src, root, opts...)
	sink.Attach(ctx, w, out, func(err error) {
		logger.Warn("session: sink error", "error", err)
	})
	if err := w.Start(ctx); err != nil {
		return nil, fmt.Errorf("session: %w", err)
	}
	return w, nil
}

func sourceOptions(cfg *config.Config, logger *slog.Logger) []roddom.Option {
	return []roddom.Option{
		roddom.WithLogger(logger),
		roddom.WithBinding(cfg.Page.Binding),
		roddom.WithBuffer(cfg.Page.EventBuffer),
	}
}
