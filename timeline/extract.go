package timeline

import (
	"errors"
	"strings"
	"time"
)

// ErrNoPermalink is returned when an entity root has no permalink anchor.
// Without it the post has no id, so the node is skipped.
var ErrNoPermalink = errors.New("timeline: permalink anchor not found")

// Permalink is the identity of a post.
type Permalink struct {
	Path string // becomes Record.ID
	Link string // absolute URL
}

// Placement tells which column, if any, holds a post.
type Placement struct {
	Home bool
	User bool
}

// Extraction is everything read from one entity root. Building it has no
// side effects on the tree.
type Extraction struct {
	Author          string
	AuthorNode      Node
	DisplayNameHTML string
	DisplayNameText string
	ContentWarning  Node // nil when the post has no spoiler control
	CreatedAt       *time.Time
	MediaAnchors    []Node
	VideoContainer  Node
	Permalink       Permalink
	BoostButton     Node
	FavouriteButton Node
	Reshared        bool
	Placement       Placement
}

// Extract reads an entity root. Optional structure that is missing leaves
// its field empty; a missing permalink returns ErrNoPermalink.
func Extract(n Node, m Markers) (*Extraction, error) {
	m = m.withDefaults()
	ex := &Extraction{MediaAnchors: []Node{}}

	if a, ok := n.Query(m.Author); ok {
		ex.AuthorNode = a
		ex.Author = strings.TrimPrefix(a.Pathname(), "/")
	}
	if d, ok := n.Query(m.DisplayName); ok {
		ex.DisplayNameHTML = d.InnerHTML()
		ex.DisplayNameText = d.InnerText()
	}
	if cw, ok := n.Query(m.ContentWarning); ok {
		ex.ContentWarning = cw
	}
	ex.CreatedAt = createdAt(n, m)

	for _, a := range n.QueryAll(m.Anchor) {
		if hasBackground(a) {
			ex.MediaAnchors = append(ex.MediaAnchors, a)
		}
	}
	ex.VideoContainer = videoContainer(n, m)

	link, err := FindPermalink(n, m)
	if err != nil {
		return nil, err
	}
	ex.Permalink = link

	ex.BoostButton = iconButton(n, m.BoostIcon)
	ex.FavouriteButton = iconButton(n, m.FavouriteIcon)

	if prev, ok := n.PreviousSibling(); ok && prev.HasClass(m.Reshare) {
		ex.Reshared = true
	}
	ex.Placement = Classify(n, m)
	return ex, nil
}

// FindPermalink locates the permalink anchor of an entity root.
func FindPermalink(n Node, m Markers) (Permalink, error) {
	m = m.withDefaults()
	a, ok := n.Query(m.Permalink)
	if !ok {
		return Permalink{}, ErrNoPermalink
	}
	return Permalink{Path: a.Pathname(), Link: a.Href()}, nil
}

// Classify walks up from n to the nearest column and tests the column
// against the home and profile signatures. A post outside any column, or
// one whose walk reaches the boundary element first, has a zero Placement.
func Classify(n Node, m Markers) Placement {
	m = m.withDefaults()
	col, ok := findColumn(n, m)
	if !ok {
		return Placement{}
	}
	_, home := col.Query(m.HomeSignature)
	_, user := col.Query(m.UserSignature)
	return Placement{Home: home, User: user}
}

func findColumn(n Node, m Markers) (Node, bool) {
	p, ok := n.Parent()
	for ok {
		if p.TagName() == m.Boundary {
			return nil, false
		}
		if p.HasClass(m.Column) {
			return p, true
		}
		p, ok = p.Parent()
	}
	return nil, false
}

// timeLayouts are the ISO 8601 forms a datetime attribute may take, most
// specific first. Forms without an offset are read as UTC.
var timeLayouts = []string{
	time.RFC3339, // also accepts fractional seconds
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	time.DateOnly,
}

// createdAt parses the time element's timestamp. A value that does not
// parse leaves the post without a timestamp.
func createdAt(n Node, m Markers) *time.Time {
	t, ok := n.Query(m.Time)
	if !ok {
		return nil
	}
	raw, ok := t.Attr(m.TimeAttr)
	if !ok {
		return nil
	}
	return parseTimestamp(raw)
}

func parseTimestamp(raw string) *time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	for _, layout := range timeLayouts {
		if ts, err := time.Parse(layout, raw); err == nil {
			return &ts
		}
	}
	return nil
}

func hasBackground(n Node) bool {
	if v := n.Style("background-image"); v != "" && v != "none" {
		return true
	}
	return n.Style("background") != ""
}

// videoContainer clones the direct child of the root that holds the video.
func videoContainer(n Node, m Markers) Node {
	v, ok := n.Query(m.Video)
	if !ok {
		return nil
	}
	for _, c := range n.Children() {
		if c.Contains(v) {
			return c.Clone()
		}
	}
	return nil
}

func iconButton(n Node, iconSelector string) Node {
	icon, ok := n.Query(iconSelector)
	if !ok {
		return nil
	}
	btn, ok := icon.Parent()
	if !ok {
		return nil
	}
	return btn
}
