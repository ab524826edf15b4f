// Package htmldom is an in-memory timeline host built on golang.org/x/net/html.
//
// A Tree owns a parsed document. Its mutation methods (Append, InsertBefore,
// Remove, SetAttr, SetText) change the document and queue change records
// for every subscription that observes the target, the way a browser's
// MutationObserver does. Flush delivers the queued records, one batch per
// subscription.
package htmldom

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"strings"
	"sync"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/hazyhaar/tootwatch/idgen"
	"github.com/hazyhaar/tootwatch/timeline"
)

var _ timeline.Source = (*Tree)(nil)

var (
	// ErrForeignNode is returned when a node from another tree (or another
	// host) is passed to a Tree method.
	ErrForeignNode = errors.New("htmldom: node does not belong to this tree")
	// ErrDetached is returned when removing a node that has no parent.
	ErrDetached = errors.New("htmldom: node is not attached")
	// ErrHierarchy is returned when a node would be inserted into itself.
	ErrHierarchy = errors.New("htmldom: node would become its own ancestor")
)

// Tree is a parsed document plus its subscriptions.
type Tree struct {
	doc    *html.Node
	base   *url.URL
	logger *slog.Logger

	mu       sync.Mutex
	wrappers map[*html.Node]*Element
	subs     map[timeline.Handle]*subscription
	order    []timeline.Handle
	clicks   map[*html.Node]int
	onClick  func(*Element) error
}

type subscription struct {
	root    *html.Node
	opts    timeline.ObserveOptions
	fn      timeline.BatchFunc
	pending timeline.Batch
	stop    func() bool
}

// Option configures a Tree.
type Option func(*Tree) error

// WithBaseURL sets the document URL used to resolve relative hrefs.
func WithBaseURL(raw string) Option {
	return func(t *Tree) error {
		u, err := url.Parse(raw)
		if err != nil {
			return fmt.Errorf("htmldom: base url: %w", err)
		}
		t.base = u
		return nil
	}
}

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) Option {
	return func(t *Tree) error {
		if l != nil {
			t.logger = l
		}
		return nil
	}
}

// WithClickHandler installs the behaviour run by Element.Click. Without one,
// a click is only counted.
func WithClickHandler(fn func(*Element) error) Option {
	return func(t *Tree) error {
		t.onClick = fn
		return nil
	}
}

// Parse reads a document.
func Parse(r io.Reader, opts ...Option) (*Tree, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("htmldom: parse: %w", err)
	}
	t := &Tree{
		doc:      doc,
		logger:   slog.Default(),
		wrappers: make(map[*html.Node]*Element),
		subs:     make(map[timeline.Handle]*subscription),
		clicks:   make(map[*html.Node]int),
	}
	for _, o := range opts {
		if err := o(t); err != nil {
			return nil, err
		}
	}
	return t, nil
}

// ParseString is Parse over a string.
func ParseString(markup string, opts ...Option) (*Tree, error) {
	return Parse(strings.NewReader(markup), opts...)
}

// Document returns the document node.
func (t *Tree) Document() *Element { return t.Wrap(t.doc) }

// Body returns the body element.
func (t *Tree) Body() *Element {
	var body *html.Node
	var f func(*html.Node)
	f = func(n *html.Node) {
		if body != nil {
			return
		}
		if n.Type == html.ElementNode && n.DataAtom == atom.Body {
			body = n
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			f(c)
		}
	}
	f(t.doc)
	if body == nil {
		return nil
	}
	return t.Wrap(body)
}

// Find returns the first element of the document matching selector.
func (t *Tree) Find(selector string) (*Element, bool) {
	n, ok := t.Document().Query(selector)
	if !ok {
		return nil, false
	}
	return n.(*Element), true
}

// Wrap returns the interned Element for an x/net/html node.
func (t *Tree) Wrap(n *html.Node) *Element {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.wrapLocked(n)
}

func (t *Tree) wrap(n *html.Node) *Element { return t.Wrap(n) }

func (t *Tree) wrapLocked(n *html.Node) *Element {
	if e, ok := t.wrappers[n]; ok {
		return e
	}
	e := &Element{n: n, t: t}
	t.wrappers[n] = e
	return e
}

// Fragment parses markup into detached nodes owned by the tree. Whitespace
// between top-level elements is dropped.
func (t *Tree) Fragment(markup string) ([]*Element, error) {
	ctx := &html.Node{Type: html.ElementNode, Data: "body", DataAtom: atom.Body}
	nodes, err := html.ParseFragment(strings.NewReader(markup), ctx)
	if err != nil {
		return nil, fmt.Errorf("htmldom: parse fragment: %w", err)
	}
	out := make([]*Element, 0, len(nodes))
	for _, n := range nodes {
		if n.Type == html.TextNode && strings.TrimSpace(n.Data) == "" {
			continue
		}
		out = append(out, t.Wrap(n))
	}
	return out, nil
}

// Append moves children to the end of parent, in order. Attached children
// are first removed from their current parent, which queues a removal.
func (t *Tree) Append(parent *Element, children ...*Element) error {
	return t.insert(parent, nil, children)
}

// InsertBefore inserts children before ref, which must be a child of parent.
// A nil ref appends.
func (t *Tree) InsertBefore(parent, ref *Element, children ...*Element) error {
	return t.insert(parent, ref, children)
}

func (t *Tree) insert(parent, ref *Element, children []*Element) error {
	if err := t.own(parent); err != nil {
		return err
	}
	if ref != nil {
		if err := t.own(ref); err != nil {
			return err
		}
		if ref.n.Parent != parent.n {
			return fmt.Errorf("htmldom: reference node is not a child of parent")
		}
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	var added []*html.Node
	for _, c := range children {
		if err := t.own(c); err != nil {
			return err
		}
		if contains(c.n, parent.n) {
			return ErrHierarchy
		}
		if old := c.n.Parent; old != nil {
			old.RemoveChild(c.n)
			t.recordLocked(timeline.ChildList, old, nil, []*html.Node{c.n})
		}
		if ref != nil {
			parent.n.InsertBefore(c.n, ref.n)
		} else {
			parent.n.AppendChild(c.n)
		}
		added = append(added, c.n)
	}
	if len(added) > 0 {
		t.recordLocked(timeline.ChildList, parent.n, added, nil)
	}
	return nil
}

// Remove detaches n from its parent.
func (t *Tree) Remove(n *Element) error {
	if err := t.own(n); err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	parent := n.n.Parent
	if parent == nil {
		return ErrDetached
	}
	parent.RemoveChild(n.n)
	t.recordLocked(timeline.ChildList, parent, nil, []*html.Node{n.n})
	return nil
}

// SetAttr sets an attribute and queues an attribute change.
func (t *Tree) SetAttr(n *Element, key, val string) error {
	if err := t.own(n); err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	set := false
	for i := range n.n.Attr {
		if n.n.Attr[i].Key == key {
			n.n.Attr[i].Val = val
			set = true
			break
		}
	}
	if !set {
		n.n.Attr = append(n.n.Attr, html.Attribute{Key: key, Val: val})
	}
	t.recordLocked(timeline.Attributes, n.n, nil, nil)
	return nil
}

// SetText replaces the data of n's first text child and queues a
// character-data change.
func (t *Tree) SetText(n *Element, text string) error {
	if err := t.own(n); err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	for c := n.n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.TextNode {
			c.Data = text
			t.recordLocked(timeline.CharacterData, c, nil, nil)
			return nil
		}
	}
	return fmt.Errorf("htmldom: element has no text child")
}

// Subscribe implements timeline.Source. root must belong to this tree.
func (t *Tree) Subscribe(ctx context.Context, root timeline.Node, opts timeline.ObserveOptions, fn timeline.BatchFunc) (timeline.Handle, error) {
	r, ok := root.(*Element)
	if !ok || r == nil || r.t != t {
		return "", ErrForeignNode
	}
	if fn == nil {
		return "", fmt.Errorf("htmldom: nil batch func")
	}

	h := timeline.Handle(idgen.New())
	s := &subscription{root: r.n, opts: opts, fn: fn}

	t.mu.Lock()
	t.subs[h] = s
	t.order = append(t.order, h)
	t.mu.Unlock()

	if ctx != nil {
		s.stop = context.AfterFunc(ctx, func() { t.Unsubscribe(h) })
	}
	t.logger.Debug("htmldom: subscribed", "handle", h)
	return h, nil
}

// Unsubscribe implements timeline.Source. Queued changes are dropped.
func (t *Tree) Unsubscribe(h timeline.Handle) error {
	t.mu.Lock()
	s, ok := t.subs[h]
	if ok {
		delete(t.subs, h)
		for i, o := range t.order {
			if o == h {
				t.order = append(t.order[:i], t.order[i+1:]...)
				break
			}
		}
	}
	t.mu.Unlock()

	if !ok {
		return fmt.Errorf("htmldom: unknown handle %q", h)
	}
	if s.stop != nil {
		s.stop()
	}
	return nil
}

// Flush delivers queued changes, one batch per subscription, in
// subscription order. Callbacks run on the calling goroutine with no lock
// held, so they may mutate the tree; those changes queue for the next Flush.
func (t *Tree) Flush() {
	type delivery struct {
		fn    timeline.BatchFunc
		batch timeline.Batch
	}

	t.mu.Lock()
	var ds []delivery
	for _, h := range t.order {
		s := t.subs[h]
		if len(s.pending) == 0 {
			continue
		}
		ds = append(ds, delivery{fn: s.fn, batch: s.pending})
		s.pending = nil
	}
	t.mu.Unlock()

	for _, d := range ds {
		d.fn(d.batch)
	}
}

// Discard drops every queued change.
func (t *Tree) Discard() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, s := range t.subs {
		s.pending = nil
	}
}

// Clicks reports how many times n was clicked.
func (t *Tree) Clicks(n *Element) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.clicks[n.n]
}

func (t *Tree) click(e *Element) error {
	t.mu.Lock()
	t.clicks[e.n]++
	fn := t.onClick
	t.mu.Unlock()

	if fn != nil {
		return fn(e)
	}
	return nil
}

func (t *Tree) own(e *Element) error {
	if e == nil || e.t != t {
		return ErrForeignNode
	}
	return nil
}

func (t *Tree) recordLocked(kind timeline.ChangeKind, target *html.Node, added, removed []*html.Node) {
	for _, h := range t.order {
		s := t.subs[h]
		if !s.observes(kind, target) {
			continue
		}
		ch := timeline.Change{Kind: kind}
		for _, n := range added {
			ch.Added = append(ch.Added, t.wrapLocked(n))
		}
		for _, n := range removed {
			ch.Removed = append(ch.Removed, t.wrapLocked(n))
		}
		s.pending = append(s.pending, ch)
	}
}

func (s *subscription) observes(kind timeline.ChangeKind, target *html.Node) bool {
	switch kind {
	case timeline.ChildList:
		if !s.opts.ChildList {
			return false
		}
	case timeline.Attributes:
		if !s.opts.Attributes {
			return false
		}
	case timeline.CharacterData:
		if !s.opts.CharacterData {
			return false
		}
	}
	if target == s.root {
		return true
	}
	return s.opts.Subtree && contains(s.root, target)
}

// contains reports whether b is a or one of its descendants.
func contains(a, b *html.Node) bool {
	for n := b; n != nil; n = n.Parent {
		if n == a {
			return true
		}
	}
	return false
}
