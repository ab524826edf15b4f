package htmldom

import (
	"bytes"
	"net/url"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/hazyhaar/tootwatch/timeline"
)

var _ timeline.Node = (*Element)(nil)

// Element is a node of a Tree. Wrappers are interned per tree, so two
// lookups of the same node return the same *Element.
type Element struct {
	n *html.Node
	t *Tree
}

// HTMLNode exposes the underlying x/net/html node.
func (e *Element) HTMLNode() *html.Node { return e.n }

func (e *Element) HasClass(name string) bool { return hasClass(e.n, name) }

func (e *Element) Children() []timeline.Node {
	var out []timeline.Node
	for c := e.n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode {
			out = append(out, e.t.wrap(c))
		}
	}
	return out
}

func (e *Element) Parent() (timeline.Node, bool) {
	p := e.n.Parent
	if p == nil || p.Type != html.ElementNode {
		return nil, false
	}
	return e.t.wrap(p), true
}

// PreviousSibling skips text and comment nodes.
func (e *Element) PreviousSibling() (timeline.Node, bool) {
	for s := e.n.PrevSibling; s != nil; s = s.PrevSibling {
		if s.Type == html.ElementNode {
			return e.t.wrap(s), true
		}
	}
	return nil, false
}

func (e *Element) TagName() string {
	if e.n.Type != html.ElementNode {
		return ""
	}
	return strings.ToLower(e.n.Data)
}

func (e *Element) Query(selector string) (timeline.Node, bool) {
	l, err := compile(selector)
	if err != nil {
		e.t.logger.Warn("htmldom: bad selector", "selector", selector, "error", err)
		return nil, false
	}
	found := querySelectorAll(e.n, l, true)
	if len(found) == 0 {
		return nil, false
	}
	return e.t.wrap(found[0]), true
}

func (e *Element) QueryAll(selector string) []timeline.Node {
	l, err := compile(selector)
	if err != nil {
		e.t.logger.Warn("htmldom: bad selector", "selector", selector, "error", err)
		return nil
	}
	found := querySelectorAll(e.n, l, false)
	out := make([]timeline.Node, 0, len(found))
	for _, n := range found {
		out = append(out, e.t.wrap(n))
	}
	return out
}

func (e *Element) Contains(other timeline.Node) bool {
	o, ok := other.(*Element)
	if !ok || o == nil {
		return false
	}
	for n := o.n; n != nil; n = n.Parent {
		if n == e.n {
			return true
		}
	}
	return false
}

func (e *Element) Attr(name string) (string, bool) { return lookupAttr(e.n, name) }

func (e *Element) Style(property string) string {
	return inlineStyle(getAttr(e.n, "style"), property)
}

func (e *Element) InnerHTML() string {
	var buf bytes.Buffer
	for c := e.n.FirstChild; c != nil; c = c.NextSibling {
		html.Render(&buf, c)
	}
	return buf.String()
}

// OuterHTML serialises the element itself.
func (e *Element) OuterHTML() string {
	var buf bytes.Buffer
	html.Render(&buf, e.n)
	return buf.String()
}

// InnerText concatenates descendant text, skipping script and style, and
// collapses whitespace runs.
func (e *Element) InnerText() string {
	var sb strings.Builder
	var f func(*html.Node)
	f = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
		}
		if n.Type == html.ElementNode {
			switch n.DataAtom {
			case atom.Script, atom.Style, atom.Noscript:
				return
			case atom.Br:
				sb.WriteByte(' ')
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			f(c)
		}
	}
	for c := e.n.FirstChild; c != nil; c = c.NextSibling {
		f(c)
	}
	return strings.Join(strings.Fields(sb.String()), " ")
}

func (e *Element) Pathname() string {
	u := e.resolve()
	if u == nil {
		return ""
	}
	if p := u.EscapedPath(); p != "" {
		return p
	}
	if u.Host != "" {
		return "/"
	}
	return ""
}

func (e *Element) Href() string {
	u := e.resolve()
	if u == nil {
		return ""
	}
	return u.String()
}

func (e *Element) resolve() *url.URL {
	raw, ok := lookupAttr(e.n, "href")
	if !ok {
		return nil
	}
	ref, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return nil
	}
	if e.t.base == nil {
		return ref
	}
	return e.t.base.ResolveReference(ref)
}

func (e *Element) Clone() timeline.Node {
	return &Element{n: cloneNode(e.n), t: e.t}
}

// Click counts the activation and runs the tree's click handler, if any.
func (e *Element) Click() error {
	return e.t.click(e)
}

func cloneNode(n *html.Node) *html.Node {
	c := &html.Node{
		Type:      n.Type,
		DataAtom:  n.DataAtom,
		Data:      n.Data,
		Namespace: n.Namespace,
		Attr:      append([]html.Attribute(nil), n.Attr...),
	}
	for ch := n.FirstChild; ch != nil; ch = ch.NextSibling {
		c.AppendChild(cloneNode(ch))
	}
	return c
}
