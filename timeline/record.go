package timeline

import (
	"strings"
	"time"
)

// Record is one extracted post. The watcher builds it once and never
// touches it again; consumers must treat it as read-only.
//
// Node and the other Node fields are references into the host tree and may
// go stale once the post is removed. VideoContainer is a detached clone and
// stays valid.
type Record struct {
	Node Node

	id        string
	numericID string

	Author          string // handle from the author link, without the leading "/"
	AuthorNode      Node
	DisplayNameHTML string
	DisplayNameText string
	Link            string     // absolute permalink
	CreatedAt       *time.Time // nil when the post had no usable timestamp

	MediaAnchors      []Node
	HasContentWarning bool
	VideoContainer    Node

	BoostButton     Node
	FavouriteButton Node

	Reshared     bool
	OnHomeColumn bool
	OnUserColumn bool
}

// ID is the permalink path, e.g. "/@alice/109".
func (r *Record) ID() string { return r.id }

// NumericID is the last path segment of ID.
func (r *Record) NumericID() string { return r.numericID }

func newRecord(n Node, ex *Extraction) *Record {
	return &Record{
		Node:              n,
		id:                ex.Permalink.Path,
		numericID:         numericID(ex.Permalink.Path),
		Author:            ex.Author,
		AuthorNode:        ex.AuthorNode,
		DisplayNameHTML:   ex.DisplayNameHTML,
		DisplayNameText:   ex.DisplayNameText,
		Link:              ex.Permalink.Link,
		CreatedAt:         ex.CreatedAt,
		MediaAnchors:      ex.MediaAnchors,
		HasContentWarning: ex.ContentWarning != nil,
		VideoContainer:    ex.VideoContainer,
		BoostButton:       ex.BoostButton,
		FavouriteButton:   ex.FavouriteButton,
		Reshared:          ex.Reshared,
		OnHomeColumn:      ex.Placement.Home,
		OnUserColumn:      ex.Placement.User,
	}
}

func numericID(path string) string {
	return path[strings.LastIndexByte(path, '/')+1:]
}
