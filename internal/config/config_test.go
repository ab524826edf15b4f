package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hazyhaar/tootwatch/internal/dbopen"
	"github.com/hazyhaar/tootwatch/timeline"
)

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadFile_YAML(t *testing.T) {
	path := writeFile(t, "tootwatch.yaml", `
browser:
  remote: ws://127.0.0.1:9222/devtools/browser/x
  stealth: headful
  resource_blocking: [images, fonts]
  recycle_interval: 90m
  xvfb_screen: 1920x1080
page:
  url: https://mastodon.example/home
  ready_timeout: 15s
  binding: __tw_events
  event_buffer: 64
filters:
  nsfw: false
  listboost: true
markers:
  entity: toot
  home_signature: ".column-header > .icon-home"
settings_db: /tmp/tw.db
sinks:
  - type: stdout
    raw: true
  - type: log
`)
	cfg, err := LoadFile(path)
	require.NoError(t, err)

	assert.Equal(t, "headful", cfg.Browser.Stealth)
	assert.Equal(t, []string{"images", "fonts"}, cfg.Browser.ResourceBlocking)
	assert.Equal(t, 90*time.Minute, cfg.Browser.RecycleInterval.Std())
	assert.Equal(t, "https://mastodon.example/home", cfg.Page.URL)
	assert.Equal(t, "body", cfg.Page.Root)
	assert.Equal(t, 15*time.Second, cfg.Page.ReadyTimeout.Std())
	assert.Equal(t, "__tw_events", cfg.Page.Binding)
	assert.Equal(t, 64, cfg.Page.EventBuffer)
	assert.Equal(t, "1920x1080", cfg.Browser.XvfbScreen)
	assert.Equal(t, Filters{"nsfw": false, "listboost": true}, cfg.Filters)
	assert.Equal(t, "/tmp/tw.db", cfg.SettingsDB)
	require.Len(t, cfg.Sinks, 2)
	assert.True(t, cfg.Sinks[0].Raw)
	assert.Equal(t, "log", cfg.Sinks[1].Type)

	m := cfg.Markers.Timeline()
	assert.Equal(t, "toot", m.Entity)
	assert.Equal(t, ".column-header > .icon-home", m.HomeSignature)
	assert.Empty(t, m.Permalink)
}

func TestLoadFile_TOML(t *testing.T) {
	path := writeFile(t, "tootwatch.toml", `
settings_db = ""

[browser]
stealth = "plain"
recycle_interval = "2h"

[page]
url = "https://mastodon.example/home"
root = ".columns-area"

[filters]
listhome = false

[[sinks]]
type = "stdout"
`)
	cfg, err := LoadFile(path)
	require.NoError(t, err)

	assert.Equal(t, "plain", cfg.Browser.Stealth)
	assert.Equal(t, 2*time.Hour, cfg.Browser.RecycleInterval.Std())
	assert.Equal(t, ".columns-area", cfg.Page.Root)
	assert.Equal(t, Filters{"listhome": false}, cfg.Filters)
	assert.Equal(t, ":99", cfg.Browser.XvfbDisplay)
}

func TestLoadFile_Errors(t *testing.T) {
	tests := map[string]struct {
		name, body string
	}{
		"unknown extension": {"c.json", `{}`},
		"bad yaml":          {"c.yaml", "filters: [unterminated"},
		"unknown filter":    {"c.yaml", "filters: {autoplay: true}"},
		"unknown sink":      {"c.yaml", "sinks: [{type: webhook}]"},
		"bad duration":      {"c.yaml", "browser: {recycle_interval: soon}"},
		"bad stealth":       {"c.toml", "[browser]\nstealth = \"invisible\"\n"},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := LoadFile(writeFile(t, tt.name, tt.body))
			assert.Error(t, err)
		})
	}

	_, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.Equal(t, "headless", cfg.Browser.Stealth)
	assert.Equal(t, int64(1<<30), cfg.Browser.MemoryLimit)
	assert.Equal(t, 4*time.Hour, cfg.Browser.RecycleInterval.Std())
	assert.Equal(t, []SinkConfig{{Type: "stdout"}}, cfg.Sinks)
	assert.NotNil(t, cfg.Filters)
	assert.NoError(t, cfg.Validate())
}

func TestFiltersAndOverlay(t *testing.T) {
	file := Filters{timeline.KeyNSFW: false, timeline.KeyListHome: true}
	db := Filters{timeline.KeyListHome: false}

	assert.False(t, file.GetConfig(timeline.KeyNSFW, true))
	assert.True(t, file.GetConfig(timeline.KeyListUser, true))

	o := Overlay{db, nil, file}
	assert.False(t, o.GetConfig(timeline.KeyListHome, true), "first layer wins")
	assert.False(t, o.GetConfig(timeline.KeyNSFW, true), "falls through to later layers")
	assert.True(t, o.GetConfig(timeline.KeyListBoost, true), "default when no layer has the key")

	var s timeline.Settings = o
	assert.False(t, s.GetConfig(timeline.KeyNSFW, true))
}

func TestStore(t *testing.T) {
	ctx := context.Background()
	db := dbopen.OpenMemory(t)
	s, err := NewStore(db, nil)
	require.NoError(t, err)

	assert.True(t, s.GetConfig(timeline.KeyNSFW, true))
	_, ok := s.Lookup(timeline.KeyNSFW)
	assert.False(t, ok)

	require.NoError(t, s.Set(ctx, timeline.KeyNSFW, false))
	require.NoError(t, s.Set(ctx, timeline.KeyListBoost, true))
	assert.False(t, s.GetConfig(timeline.KeyNSFW, true))
	assert.Equal(t, map[string]bool{"nsfw": false, "listboost": true}, s.All())

	require.NoError(t, s.Set(ctx, timeline.KeyNSFW, true))
	assert.True(t, s.GetConfig(timeline.KeyNSFW, false))

	require.NoError(t, s.Unset(ctx, timeline.KeyNSFW))
	_, ok = s.Lookup(timeline.KeyNSFW)
	assert.False(t, ok)

	assert.Error(t, s.Set(ctx, "autoplay", true))
}

func TestStore_ReopenKeepsValues(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "settings.db")

	s, err := OpenStore(path, nil)
	require.NoError(t, err)
	require.NoError(t, s.Set(ctx, timeline.KeyListUser, false))
	require.NoError(t, s.Close())

	s, err = OpenStore(path, nil)
	require.NoError(t, err)
	defer s.Close()
	assert.False(t, s.GetConfig(timeline.KeyListUser, true))
}

func TestStore_WatchPicksUpExternalWrites(t *testing.T) {
	db := dbopen.OpenMemory(t)
	s, err := NewStore(db, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Watch(ctx, 10*time.Millisecond)

	// A write that bypasses the store, as another process would do.
	_, err = db.Exec(`INSERT INTO timeline_settings (key, value, updated_at) VALUES ('listhome', 0, 42)`)
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		v, ok := s.Lookup(timeline.KeyListHome)
		return ok && !v
	}, 2*time.Second, 10*time.Millisecond)
}

func TestReloader(t *testing.T) {
	path := writeFile(t, "tootwatch.yaml", "filters: {nsfw: false}\n")
	cfg, err := LoadFile(path)
	require.NoError(t, err)

	r := NewReloader(path, cfg, nil)
	assert.False(t, r.GetConfig(timeline.KeyNSFW, true))

	reloaded := make(chan *Config, 4)
	r.OnReload(func(c *Config) { reloaded <- c })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	errc := make(chan error, 1)
	go func() { errc <- r.Run(ctx) }()

	// Give the watcher time to register the directory.
	time.Sleep(100 * time.Millisecond)
	require.NoError(t, os.WriteFile(path, []byte("filters: {nsfw: true, listuser: false}\n"), 0o644))

	select {
	case c := <-reloaded:
		assert.Equal(t, Filters{"nsfw": true, "listuser": false}, c.Filters)
	case <-time.After(3 * time.Second):
		t.Fatal("no reload after write")
	}
	assert.True(t, r.GetConfig(timeline.KeyNSFW, false))
	v, ok := r.Lookup(timeline.KeyListUser)
	assert.True(t, ok)
	assert.False(t, v)

	// A broken file keeps the previous filters.
	require.NoError(t, os.WriteFile(path, []byte("filters: {bogus: true}\n"), 0o644))
	assert.Error(t, r.Reload())
	assert.True(t, r.GetConfig(timeline.KeyNSFW, false))

	cancel()
	select {
	case err := <-errc:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
