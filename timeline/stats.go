package timeline

import "sync/atomic"

// Stats counts what a watcher did since it was created.
type Stats struct {
	Batches uint64
	Added   uint64
	Removed uint64
	Skipped uint64 // entities without a permalink, or whose handler panicked

	FilteredNSFW  uint64
	FilteredBoost uint64
	FilteredHome  uint64
	FilteredUser  uint64
}

type counters struct {
	batches atomic.Uint64
	added   atomic.Uint64
	removed atomic.Uint64
	skipped atomic.Uint64

	nsfw  atomic.Uint64
	boost atomic.Uint64
	home  atomic.Uint64
	user  atomic.Uint64
}

func (c *counters) filter(key string) {
	switch key {
	case KeyNSFW:
		c.nsfw.Add(1)
	case KeyListBoost:
		c.boost.Add(1)
	case KeyListHome:
		c.home.Add(1)
	case KeyListUser:
		c.user.Add(1)
	}
}

func (c *counters) snapshot() Stats {
	return Stats{
		Batches:       c.batches.Load(),
		Added:         c.added.Load(),
		Removed:       c.removed.Load(),
		Skipped:       c.skipped.Load(),
		FilteredNSFW:  c.nsfw.Load(),
		FilteredBoost: c.boost.Load(),
		FilteredHome:  c.home.Load(),
		FilteredUser:  c.user.Load(),
	}
}
