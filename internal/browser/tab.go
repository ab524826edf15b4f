package browser

import (
	"context"
	"fmt"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
)

// NavigateTimeout bounds page navigation in OpenTab.
const NavigateTimeout = 30 * time.Second

// Tab is one open page.
type Tab struct {
	Page *rod.Page
	URL  string
}

// OpenTab opens url in a new tab. Stealth patches are applied before the
// first navigation unless the manager runs in ModePlain.
func (m *Manager) OpenTab(ctx context.Context, url string) (*Tab, error) {
	b := m.Browser()
	if b == nil {
		return nil, fmt.Errorf("browser: not started")
	}

	var page *rod.Page
	var err error
	if m.cfg.Mode == ModePlain {
		page, err = b.Page(proto.TargetCreateTarget{})
	} else {
		page, err = stealth.Page(b)
	}
	if err != nil {
		return nil, fmt.Errorf("browser: create tab: %w", err)
	}

	if len(m.cfg.ResourceBlocking) > 0 {
		blockResources(page, m.cfg.ResourceBlocking)
	}

	navCtx, cancel := context.WithTimeout(ctx, NavigateTimeout)
	defer cancel()
	if err := page.Context(navCtx).Navigate(url); err != nil {
		page.Close()
		return nil, fmt.Errorf("browser: navigate %s: %w", url, err)
	}
	if err := page.Context(navCtx).WaitLoad(); err != nil {
		m.cfg.Logger.Warn("browser: wait load", "url", url, "error", err)
	}
	m.cfg.Logger.Info("browser: tab open", "url", url)
	return &Tab{Page: page, URL: url}, nil
}

// Close closes the tab.
func (t *Tab) Close() error {
	if t.Page == nil {
		return nil
	}
	return t.Page.Close()
}
