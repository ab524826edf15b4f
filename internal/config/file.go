// CLAUDE:SUMMARY tootwatch daemon configuration: YAML or TOML file, defaults, validation, marker overrides.
// Package config loads the tootwatch configuration and provides the filter
// settings consulted by the timeline watcher: static filters from the file,
// a SQLite-backed settings store, and a file reloader.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/hazyhaar/tootwatch/timeline"
)

// Config is the top-level configuration.
type Config struct {
	Browser    BrowserConfig `yaml:"browser" toml:"browser"`
	Page       PageConfig    `yaml:"page" toml:"page"`
	Filters    Filters       `yaml:"filters" toml:"filters"`
	Markers    MarkersConfig `yaml:"markers" toml:"markers"`
	NoReveal   bool          `yaml:"no_reveal" toml:"no_reveal"`
	SettingsDB string        `yaml:"settings_db" toml:"settings_db"`
	Sinks      []SinkConfig  `yaml:"sinks" toml:"sinks"`
}

// BrowserConfig controls Chrome.
type BrowserConfig struct {
	Remote           string   `yaml:"remote" toml:"remote"`
	Stealth          string   `yaml:"stealth" toml:"stealth"` // plain | headless | headful
	ResourceBlocking []string `yaml:"resource_blocking" toml:"resource_blocking"`
	MemoryLimit      int64    `yaml:"memory_limit" toml:"memory_limit"`
	RecycleInterval  Duration `yaml:"recycle_interval" toml:"recycle_interval"`
	XvfbDisplay      string   `yaml:"xvfb_display" toml:"xvfb_display"`
	XvfbScreen       string   `yaml:"xvfb_screen" toml:"xvfb_screen"` // WIDTHxHEIGHT, headful only
}

// PageConfig names the page to open and the element to observe.
type PageConfig struct {
	URL          string   `yaml:"url" toml:"url"`
	Root         string   `yaml:"root" toml:"root"`
	ReadyTimeout Duration `yaml:"ready_timeout" toml:"ready_timeout"`
	Binding      string   `yaml:"binding" toml:"binding"`           // runtime binding name; empty keeps the roddom default
	EventBuffer  int      `yaml:"event_buffer" toml:"event_buffer"` // queued observer callbacks per subscription; 0 keeps the default
}

// SinkConfig selects an output.
type SinkConfig struct {
	Type string `yaml:"type" toml:"type"` // stdout | log
	// Raw keeps display-name markup unsanitised (stdout only).
	Raw bool `yaml:"raw" toml:"raw"`
}

// MarkersConfig overrides the structure markers. Empty fields keep the
// Mastodon defaults.
type MarkersConfig struct {
	Entity         string `yaml:"entity" toml:"entity"`
	Author         string `yaml:"author" toml:"author"`
	DisplayName    string `yaml:"display_name" toml:"display_name"`
	ContentWarning string `yaml:"content_warning" toml:"content_warning"`
	Time           string `yaml:"time" toml:"time"`
	TimeAttr       string `yaml:"time_attr" toml:"time_attr"`
	Anchor         string `yaml:"anchor" toml:"anchor"`
	Video          string `yaml:"video" toml:"video"`
	Permalink      string `yaml:"permalink" toml:"permalink"`
	BoostIcon      string `yaml:"boost_icon" toml:"boost_icon"`
	FavouriteIcon  string `yaml:"favourite_icon" toml:"favourite_icon"`
	Reshare        string `yaml:"reshare" toml:"reshare"`
	Column         string `yaml:"column" toml:"column"`
	Boundary       string `yaml:"boundary" toml:"boundary"`
	HomeSignature  string `yaml:"home_signature" toml:"home_signature"`
	UserSignature  string `yaml:"user_signature" toml:"user_signature"`
}

// Timeline converts the overrides to timeline markers.
func (m MarkersConfig) Timeline() timeline.Markers {
	return timeline.Markers{
		Entity:         m.Entity,
		Author:         m.Author,
		DisplayName:    m.DisplayName,
		ContentWarning: m.ContentWarning,
		Time:           m.Time,
		TimeAttr:       m.TimeAttr,
		Anchor:         m.Anchor,
		Video:          m.Video,
		Permalink:      m.Permalink,
		BoostIcon:      m.BoostIcon,
		FavouriteIcon:  m.FavouriteIcon,
		Reshare:        m.Reshare,
		Column:         m.Column,
		Boundary:       m.Boundary,
		HomeSignature:  m.HomeSignature,
		UserSignature:  m.UserSignature,
	}
}

// Duration is a time.Duration written as "250ms", "4h" in both YAML and
// TOML.
type Duration time.Duration

func (d *Duration) UnmarshalText(b []byte) error {
	v, err := time.ParseDuration(strings.TrimSpace(string(b)))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

func (d *Duration) UnmarshalYAML(n *yaml.Node) error {
	return d.UnmarshalText([]byte(n.Value))
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// Std returns d as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Default returns a configuration with every default applied.
func Default() *Config {
	var c Config
	c.applyDefaults()
	return &c
}

// LoadFile reads a .yaml, .yml or .toml file.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read: %w", err)
	}

	var cfg Config
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &cfg)
	case ".toml":
		err = toml.Unmarshal(data, &cfg)
	default:
		return nil, fmt.Errorf("config: unsupported file type %q", ext)
	}
	if err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Browser.Stealth == "" {
		c.Browser.Stealth = "headless"
	}
	if c.Browser.MemoryLimit <= 0 {
		c.Browser.MemoryLimit = 1 << 30
	}
	if c.Browser.RecycleInterval <= 0 {
		c.Browser.RecycleInterval = Duration(4 * time.Hour)
	}
	if c.Browser.XvfbDisplay == "" {
		c.Browser.XvfbDisplay = ":99"
	}
	if c.Page.Root == "" {
		c.Page.Root = "body"
	}
	if c.Page.ReadyTimeout <= 0 {
		c.Page.ReadyTimeout = Duration(time.Minute)
	}
	if c.Filters == nil {
		c.Filters = Filters{}
	}
	if len(c.Sinks) == 0 {
		c.Sinks = []SinkConfig{{Type: "stdout"}}
	}
}

// Validate rejects unknown filter keys and sink types.
func (c *Config) Validate() error {
	if err := c.Filters.Validate(); err != nil {
		return err
	}
	for i, s := range c.Sinks {
		switch s.Type {
		case "stdout", "log":
		default:
			return fmt.Errorf("config: sinks[%d]: unknown type %q", i, s.Type)
		}
	}
	switch strings.ToLower(c.Browser.Stealth) {
	case "plain", "none", "headless", "headful":
	default:
		return fmt.Errorf("config: browser.stealth: unknown mode %q", c.Browser.Stealth)
	}
	return nil
}
