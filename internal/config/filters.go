package config

import (
	"fmt"
	"slices"
	"sort"

	"github.com/hazyhaar/tootwatch/timeline"
)

// Keys lists the filter keys the watcher queries.
var Keys = []string{timeline.KeyNSFW, timeline.KeyListBoost, timeline.KeyListHome, timeline.KeyListUser}

// ValidKey reports whether key is a filter key.
func ValidKey(key string) bool { return slices.Contains(Keys, key) }

// Lookuper reports a configured value and whether the key is configured
// at all.
type Lookuper interface {
	Lookup(key string) (value, ok bool)
}

// Filters is a static key → allowed map.
type Filters map[string]bool

var _ timeline.Settings = Filters(nil)

func (f Filters) Lookup(key string) (bool, bool) {
	v, ok := f[key]
	return v, ok
}

func (f Filters) GetConfig(key string, def bool) bool {
	if v, ok := f[key]; ok {
		return v
	}
	return def
}

// Validate rejects unknown keys.
func (f Filters) Validate() error {
	var bad []string
	for k := range f {
		if !ValidKey(k) {
			bad = append(bad, k)
		}
	}
	if len(bad) > 0 {
		sort.Strings(bad)
		return fmt.Errorf("config: unknown filter keys %v", bad)
	}
	return nil
}

// Overlay answers from the first layer that configures a key.
type Overlay []Lookuper

var _ timeline.Settings = Overlay(nil)

func (o Overlay) Lookup(key string) (bool, bool) {
	for _, l := range o {
		if l == nil {
			continue
		}
		if v, ok := l.Lookup(key); ok {
			return v, true
		}
	}
	return false, false
}

func (o Overlay) GetConfig(key string, def bool) bool {
	if v, ok := o.Lookup(key); ok {
		return v
	}
	return def
}
