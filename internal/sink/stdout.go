// CLAUDE:SUMMARY Writes watcher events as JSON lines, sanitising display-name markup with bluemonday.
package sink

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"sync"
	"time"

	"github.com/microcosm-cc/bluemonday"

	"github.com/hazyhaar/tootwatch/idgen"
	"github.com/hazyhaar/tootwatch/timeline"
)

// Stdout writes one JSON object per event. Display names and video
// containers are page markup and can carry anything the instance lets
// through, so they are passed through UGC policies unless the sink is raw.
type Stdout struct {
	mu     sync.Mutex
	enc    *json.Encoder
	policy *bluemonday.Policy
	media  *bluemonday.Policy
	now    func() time.Time
	newID  idgen.Generator
}

// StdoutOption configures a Stdout sink.
type StdoutOption func(*Stdout)

// Raw disables sanitising.
func Raw() StdoutOption {
	return func(s *Stdout) { s.policy, s.media = nil, nil }
}

// mediaPolicy is the UGC policy plus the video markup Mastodon players use.
func mediaPolicy() *bluemonday.Policy {
	p := bluemonday.UGCPolicy()
	p.AllowElements("video", "source")
	p.AllowAttrs("src", "type").OnElements("video", "source")
	p.AllowAttrs("poster", "controls", "loop", "muted", "playsinline", "preload").OnElements("video")
	return p
}

// WithClock overrides the event timestamp source.
func WithClock(now func() time.Time) StdoutOption {
	return func(s *Stdout) { s.now = now }
}

// WithIDs overrides the event id generator.
func WithIDs(gen idgen.Generator) StdoutOption {
	return func(s *Stdout) { s.newID = gen }
}

// NewStdout writes to w, or os.Stdout when w is nil.
func NewStdout(w io.Writer, opts ...StdoutOption) *Stdout {
	if w == nil {
		w = os.Stdout
	}
	s := &Stdout{
		enc:    json.NewEncoder(w),
		policy: bluemonday.UGCPolicy(),
		media:  mediaPolicy(),
		now:    time.Now,
		newID:  idgen.Default,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Envelope is one output line.
type Envelope struct {
	Event string    `json:"event"` // added | removed
	ID    string    `json:"id"`    // unique per line
	At    time.Time `json:"at"`
	Post  string    `json:"post"`
	Data  *View     `json:"data,omitempty"`
}

func (s *Stdout) Added(_ context.Context, r *timeline.Record) error {
	v := NewView(r)
	if s.policy != nil {
		v.DisplayName = s.policy.Sanitize(v.DisplayName)
	}
	if s.media != nil {
		v.Video = s.media.Sanitize(v.Video)
	}
	return s.write(Envelope{Event: "added", Post: v.ID, Data: &v})
}

func (s *Stdout) Removed(_ context.Context, id string) error {
	return s.write(Envelope{Event: "removed", Post: id})
}

func (s *Stdout) write(e Envelope) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e.ID = s.newID()
	e.At = s.now().UTC()
	return s.enc.Encode(e)
}

func (s *Stdout) Close() error { return nil }
