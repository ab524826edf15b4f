// CLAUDE:SUMMARY Chrome lifecycle for timeline watching: launch or connect, heap and age based recycling, Xvfb for headful runs.
// Package browser owns the Chrome process that renders the watched
// timeline. It launches a local Chrome (or connects to a remote one), opens
// stealth tabs, and recycles the process when it gets too old or its JS heap
// grows past a limit, telling the owner so it can reopen its tab.
package browser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
)

// ErrClosed is returned once the manager has been closed.
var ErrClosed = errors.New("browser: manager is closed")

// Mode selects how Chrome runs.
type Mode int

const (
	ModePlain    Mode = iota // headless, no stealth patches
	ModeHeadless             // headless with stealth patches
	ModeHeadful              // headful under Xvfb, with stealth patches
)

// ParseMode maps the config spelling to a Mode. Empty means headless.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "headless":
		return ModeHeadless, nil
	case "plain", "none":
		return ModePlain, nil
	case "headful":
		return ModeHeadful, nil
	}
	return 0, fmt.Errorf("browser: unknown mode %q", s)
}

func (m Mode) String() string {
	switch m {
	case ModePlain:
		return "plain"
	case ModeHeadless:
		return "headless"
	case ModeHeadful:
		return "headful"
	}
	return fmt.Sprintf("Mode(%d)", int(m))
}

// Config configures a Manager.
type Config struct {
	// RemoteURL is the DevTools WebSocket URL of a running Chrome. Empty
	// launches a local one.
	RemoteURL string

	Mode Mode

	// ResourceBlocking lists resource types tabs refuse to load
	// (images, fonts, media, stylesheets).
	ResourceBlocking []string

	// MemoryLimit is the JS heap size in bytes that triggers a recycle.
	// Default: 1GB.
	MemoryLimit int64

	// RecycleInterval is the maximum Chrome lifetime. Default: 4h.
	RecycleInterval time.Duration

	// XvfbDisplay is used in headful mode. Default: ":99".
	XvfbDisplay string

	// Screen is the Xvfb geometry and Chrome window size in headful mode.
	// Default: DefaultScreen.
	Screen Screen

	Logger *slog.Logger
}

func (c *Config) defaults() {
	if c.MemoryLimit <= 0 {
		c.MemoryLimit = 1 << 30
	}
	if c.RecycleInterval <= 0 {
		c.RecycleInterval = 4 * time.Hour
	}
	if c.XvfbDisplay == "" {
		c.XvfbDisplay = ":99"
	}
	if c.Screen.Width <= 0 || c.Screen.Height <= 0 {
		c.Screen = DefaultScreen
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// RecycleFunc is called after Chrome was restarted. Tabs of the old
// process are gone; the owner reopens what it needs.
type RecycleFunc func(ctx context.Context, b *rod.Browser)

// Manager owns one Chrome process.
type Manager struct {
	cfg Config

	mu        sync.RWMutex
	browser   *rod.Browser
	lnch      *launcher.Launcher
	xvfb      *exec.Cmd
	startAt   time.Time
	closed    bool
	onRecycle RecycleFunc
}

// NewManager creates a Manager. Call Start to get a browser.
func NewManager(cfg Config) *Manager {
	cfg.defaults()
	return &Manager{cfg: cfg}
}

// OnRecycle registers the recycle callback.
func (m *Manager) OnRecycle(fn RecycleFunc) {
	m.mu.Lock()
	m.onRecycle = fn
	m.mu.Unlock()
}

// Start launches or connects to Chrome and starts the health monitor,
// which runs until ctx is done.
func (m *Manager) Start(ctx context.Context) (*rod.Browser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, ErrClosed
	}
	if m.browser != nil {
		return m.browser, nil
	}
	b, err := m.launch()
	if err != nil {
		return nil, err
	}
	m.browser = b
	m.startAt = time.Now()

	go m.monitor(ctx)
	return b, nil
}

// Browser returns the current browser, or nil before Start.
func (m *Manager) Browser() *rod.Browser {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.browser
}

// Recycle restarts Chrome and runs the recycle callback.
func (m *Manager) Recycle(ctx context.Context) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrClosed
	}
	m.cfg.Logger.Info("browser: recycling", "uptime", time.Since(m.startAt).Round(time.Second))
	m.cleanup()
	b, err := m.launch()
	if err != nil {
		m.mu.Unlock()
		return fmt.Errorf("browser: relaunch: %w", err)
	}
	m.browser = b
	m.startAt = time.Now()
	fn := m.onRecycle
	m.mu.Unlock()

	if fn != nil {
		fn(ctx, b)
	}
	return nil
}

// Close shuts Chrome (and Xvfb) down. A remote Chrome is only
// disconnected from.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil
	}
	m.closed = true
	m.cleanup()
	return nil
}

func (m *Manager) launch() (*rod.Browser, error) {
	log := m.cfg.Logger

	if m.cfg.Mode == ModeHeadful && m.cfg.RemoteURL == "" {
		if err := m.startXvfb(); err != nil {
			return nil, fmt.Errorf("browser: xvfb: %w", err)
		}
	}

	wsURL := m.cfg.RemoteURL
	if wsURL != "" {
		log.Info("browser: connecting to remote", "url", wsURL)
	} else {
		l := launcher.New().Headless(m.cfg.Mode != ModeHeadful)
		if m.cfg.Mode == ModeHeadful {
			l = l.Env("DISPLAY="+m.cfg.XvfbDisplay).Set("window-size", m.cfg.Screen.windowSize())
		}
		l = l.Set("disable-blink-features", "AutomationControlled")

		u, err := l.Launch()
		if err != nil {
			return nil, fmt.Errorf("browser: launch: %w", err)
		}
		wsURL = u
		m.lnch = l
		log.Info("browser: launched chrome", "url", wsURL, "mode", m.cfg.Mode)
	}

	b := rod.New().ControlURL(wsURL)
	if err := b.Connect(); err != nil {
		return nil, fmt.Errorf("browser: connect: %w", err)
	}
	return b, nil
}

func (m *Manager) cleanup() {
	if m.browser != nil {
		if m.lnch != nil {
			m.browser.Close()
		}
		m.browser = nil
	}
	if m.lnch != nil {
		m.lnch.Cleanup()
		m.lnch = nil
	}
	m.stopXvfb()
}

func (m *Manager) monitor(ctx context.Context) {
	log := m.cfg.Logger
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		m.mu.RLock()
		closed, b, startAt := m.closed, m.browser, m.startAt
		m.mu.RUnlock()
		if closed {
			return
		}
		if b == nil {
			continue
		}

		if time.Since(startAt) > m.cfg.RecycleInterval {
			log.Info("browser: recycle interval reached")
			if err := m.Recycle(ctx); err != nil {
				log.Error("browser: recycle failed", "error", err)
			}
			continue
		}

		used, err := heapUsage(b)
		if err != nil {
			log.Debug("browser: heap check failed", "error", err)
			continue
		}
		if used > m.cfg.MemoryLimit {
			log.Info("browser: memory limit exceeded", "used", used, "limit", m.cfg.MemoryLimit)
			if err := m.Recycle(ctx); err != nil {
				log.Error("browser: recycle failed", "error", err)
			}
		}
	}
}

// heapUsage sums the JS heap of every open page.
func heapUsage(b *rod.Browser) (int64, error) {
	pages, err := b.Pages()
	if err != nil {
		return 0, err
	}
	if len(pages) == 0 {
		return 0, fmt.Errorf("no pages")
	}
	var total int64
	for _, p := range pages {
		res, err := p.Eval(`() => performance.memory ? performance.memory.usedJSHeapSize : 0`)
		if err != nil {
			continue
		}
		total += int64(res.Value.Int())
	}
	return total, nil
}
