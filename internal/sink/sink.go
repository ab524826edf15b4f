// Package sink delivers watcher events to consumers.
package sink

import (
	"context"
	"time"

	"github.com/hazyhaar/tootwatch/timeline"
)

// Sink receives the events of one watcher, in order, from one goroutine.
type Sink interface {
	Added(ctx context.Context, r *timeline.Record) error
	Removed(ctx context.Context, id string) error
	Close() error
}

// View is the serialisable form of a record. Node references are reduced
// to what a consumer can use without the page.
type View struct {
	ID                string     `json:"id"`
	NumericID         string     `json:"numeric_id"`
	Author            string     `json:"author"`
	DisplayName       string     `json:"display_name"`
	DisplayNameText   string     `json:"display_name_text"`
	Link              string     `json:"link"`
	CreatedAt         *time.Time `json:"created_at,omitempty"`
	Media             []string   `json:"media"`
	HasContentWarning bool       `json:"has_content_warning"`
	Video             string     `json:"video,omitempty"`
	Reshared          bool       `json:"reshared"`
	OnHomeColumn      bool       `json:"on_home_column"`
	OnUserColumn      bool       `json:"on_user_column"`
}

// NewView flattens r. Media holds the anchors' resolved hrefs; Video the
// inner markup of the video container snapshot.
func NewView(r *timeline.Record) View {
	v := View{
		ID:                r.ID(),
		NumericID:         r.NumericID(),
		Author:            r.Author,
		DisplayName:       r.DisplayNameHTML,
		DisplayNameText:   r.DisplayNameText,
		Link:              r.Link,
		CreatedAt:         r.CreatedAt,
		Media:             make([]string, 0, len(r.MediaAnchors)),
		HasContentWarning: r.HasContentWarning,
		Reshared:          r.Reshared,
		OnHomeColumn:      r.OnHomeColumn,
		OnUserColumn:      r.OnUserColumn,
	}
	for _, a := range r.MediaAnchors {
		if href := a.Href(); href != "" {
			v.Media = append(v.Media, href)
		}
	}
	if r.VideoContainer != nil {
		v.Video = r.VideoContainer.InnerHTML()
	}
	return v
}

// Attach wires a watcher's callbacks to s. Sink errors are passed to
// onErr, which may be nil.
func Attach(ctx context.Context, w *timeline.Watcher, s Sink, onErr func(error)) {
	report := func(err error) {
		if err != nil && onErr != nil {
			onErr(err)
		}
	}
	w.OnAdded(func(r *timeline.Record) { report(s.Added(ctx, r)) })
	w.OnRemoved(func(id string) { report(s.Removed(ctx, id)) })
}
