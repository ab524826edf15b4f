package roddom

import (
	"log/slog"

	"github.com/go-rod/rod"

	"github.com/hazyhaar/tootwatch/timeline"
)

var _ timeline.Node = (*Element)(nil)

// Element adapts a *rod.Element to timeline.Node. Every accessor is a CDP
// round trip; failures are logged at debug level and reported as absence,
// since a node can be detached or garbage-collected by the page at any time.
type Element struct {
	el     *rod.Element
	logger *slog.Logger
}

// Wrap adapts el. A nil logger uses slog.Default().
func Wrap(el *rod.Element, logger *slog.Logger) *Element {
	if logger == nil {
		logger = slog.Default()
	}
	return &Element{el: el, logger: logger}
}

func (e *Element) wrap(el *rod.Element) *Element { return &Element{el: el, logger: e.logger} }

func (e *Element) fail(op string, err error) {
	e.logger.Debug("roddom: element call failed", "op", op, "error", err)
}

func (e *Element) evalStr(op, js string, args ...any) string {
	res, err := e.el.Eval(js, args...)
	if err != nil {
		e.fail(op, err)
		return ""
	}
	return res.Value.Str()
}

func (e *Element) HasClass(name string) bool {
	res, err := e.el.Eval(`(c) => !!(this.classList && this.classList.contains(c))`, name)
	if err != nil {
		e.fail("hasClass", err)
		return false
	}
	return res.Value.Bool()
}

func (e *Element) Children() []timeline.Node {
	els, err := e.el.Elements(":scope > *")
	if err != nil {
		e.fail("children", err)
		return nil
	}
	return e.nodes(els)
}

func (e *Element) Parent() (timeline.Node, bool) {
	p, err := e.el.Parent()
	if err != nil {
		return nil, false
	}
	return e.wrap(p), true
}

func (e *Element) PreviousSibling() (timeline.Node, bool) {
	p, err := e.el.Previous()
	if err != nil {
		return nil, false
	}
	return e.wrap(p), true
}

func (e *Element) TagName() string {
	return e.evalStr("tagName", `() => this.tagName ? this.tagName.toLowerCase() : ""`)
}

// Query does not wait for the selector to appear.
func (e *Element) Query(selector string) (timeline.Node, bool) {
	ok, el, err := e.el.Has(selector)
	if err != nil {
		e.fail("query", err)
		return nil, false
	}
	if !ok {
		return nil, false
	}
	return e.wrap(el), true
}

func (e *Element) QueryAll(selector string) []timeline.Node {
	els, err := e.el.Elements(selector)
	if err != nil {
		e.fail("queryAll", err)
		return nil
	}
	return e.nodes(els)
}

func (e *Element) Contains(other timeline.Node) bool {
	o, ok := other.(*Element)
	if !ok || o == nil {
		return false
	}
	in, err := e.el.ContainsElement(o.el)
	if err != nil {
		e.fail("contains", err)
		return false
	}
	return in
}

func (e *Element) Attr(name string) (string, bool) {
	v, err := e.el.Attribute(name)
	if err != nil {
		e.fail("attr", err)
		return "", false
	}
	if v == nil {
		return "", false
	}
	return *v, true
}

func (e *Element) Style(property string) string {
	return e.evalStr("style", `(p) => this.style ? this.style.getPropertyValue(p) : ""`, property)
}

func (e *Element) InnerHTML() string {
	return e.evalStr("innerHTML", `() => this.innerHTML`)
}

func (e *Element) InnerText() string {
	s, err := e.el.Text()
	if err != nil {
		e.fail("innerText", err)
		return ""
	}
	return s
}

func (e *Element) Pathname() string {
	return e.evalStr("pathname", `() => typeof this.pathname === "string" ? this.pathname : ""`)
}

func (e *Element) Href() string {
	return e.evalStr("href", `() => typeof this.href === "string" ? this.href : ""`)
}

// Clone deep-copies the element inside the page. The copy is not attached
// to the document.
func (e *Element) Clone() timeline.Node {
	c, err := e.el.ElementByJS(rod.Eval(`() => this.cloneNode(true)`))
	if err != nil {
		e.fail("clone", err)
		return nil
	}
	return e.wrap(c)
}

// Click dispatches a DOM click, like HTMLElement.click(). It does not move
// the mouse, so it works on elements scrolled out of view.
func (e *Element) Click() error {
	_, err := e.el.Eval(`() => this.click()`)
	return err
}

func (e *Element) nodes(els rod.Elements) []timeline.Node {
	out := make([]timeline.Node, 0, len(els))
	for _, el := range els {
		out = append(out, e.wrap(el))
	}
	return out
}
