// CLAUDE:SUMMARY CSS selector subset (compound, descendant, child, lists) matched right-to-left on x/net/html nodes.
package htmldom

import (
	"fmt"
	"strings"
	"sync"

	"golang.org/x/net/html"
)

// Supported selector grammar:
//   - compound: tag, *, .class, #id, [attr], [attr=val], in any combination
//   - combinators: descendant (whitespace) and child (>)
//   - lists: "a, b"
//
// Matching follows querySelector: the combinator chain may reach ancestors
// above the element the query started from.

type attrSelector struct {
	key    string
	val    string
	hasVal bool
}

type compound struct {
	tag     string
	id      string
	classes []string
	attrs   []attrSelector
}

type part struct {
	combinator byte // 0 for the leftmost part, ' ' or '>'
	sel        compound
}

type complexSelector []part

type selectorList []complexSelector

var selectorCache sync.Map // string -> selectorList

// Compile parses a selector, reporting syntax errors.
func Compile(selector string) error {
	_, err := compile(selector)
	return err
}

func compile(selector string) (selectorList, error) {
	if v, ok := selectorCache.Load(selector); ok {
		return v.(selectorList), nil
	}
	var list selectorList
	for _, raw := range splitList(selector) {
		cs, err := parseComplex(raw)
		if err != nil {
			return nil, fmt.Errorf("htmldom: selector %q: %w", selector, err)
		}
		list = append(list, cs)
	}
	if len(list) == 0 {
		return nil, fmt.Errorf("htmldom: empty selector")
	}
	selectorCache.Store(selector, list)
	return list, nil
}

// splitList splits on commas outside attribute brackets.
func splitList(s string) []string {
	var out []string
	depth, start := 0, 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '[':
			depth++
		case ']':
			if depth > 0 {
				depth--
			}
		case ',':
			if depth == 0 {
				out = append(out, s[start:i])
				start = i + 1
			}
		}
	}
	out = append(out, s[start:])
	return out
}

func parseComplex(s string) (complexSelector, error) {
	var out complexSelector
	var comb byte
	i := 0
	for {
		for i < len(s) && isSpace(s[i]) {
			i++
		}
		if i >= len(s) {
			break
		}
		if s[i] == '>' {
			if len(out) == 0 || comb == '>' {
				return nil, fmt.Errorf("unexpected '>' at %d", i)
			}
			comb = '>'
			i++
			continue
		}
		c, n, err := parseCompound(s[i:])
		if err != nil {
			return nil, err
		}
		if len(out) > 0 && comb == 0 {
			comb = ' '
		}
		out = append(out, part{combinator: comb, sel: c})
		comb = 0
		i += n
	}
	if comb != 0 {
		return nil, fmt.Errorf("dangling combinator")
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("empty selector")
	}
	return out, nil
}

// parseCompound reads one compound selector and returns the bytes consumed.
func parseCompound(s string) (compound, int, error) {
	var c compound
	i := 0
	if i < len(s) && s[i] == '*' {
		c.tag = "*"
		i++
	} else {
		n := identLen(s[i:])
		c.tag = strings.ToLower(s[i : i+n])
		i += n
	}
	for i < len(s) {
		switch s[i] {
		case '.':
			n := identLen(s[i+1:])
			if n == 0 {
				return c, 0, fmt.Errorf("empty class at %d", i)
			}
			c.classes = append(c.classes, s[i+1:i+1+n])
			i += 1 + n
		case '#':
			n := identLen(s[i+1:])
			if n == 0 {
				return c, 0, fmt.Errorf("empty id at %d", i)
			}
			c.id = s[i+1 : i+1+n]
			i += 1 + n
		case '[':
			end := strings.IndexByte(s[i:], ']')
			if end < 0 {
				return c, 0, fmt.Errorf("unterminated attribute selector")
			}
			c.attrs = append(c.attrs, parseAttr(s[i+1:i+end]))
			i += end + 1
		default:
			if isSpace(s[i]) || s[i] == '>' {
				if i == 0 {
					return c, 0, fmt.Errorf("unexpected %q", s[i])
				}
				return c, i, nil
			}
			return c, 0, fmt.Errorf("unexpected %q", s[i])
		}
	}
	if i == 0 {
		return c, 0, fmt.Errorf("empty compound")
	}
	return c, i, nil
}

func parseAttr(expr string) attrSelector {
	if eq := strings.IndexByte(expr, '='); eq >= 0 {
		return attrSelector{
			key:    strings.TrimSpace(expr[:eq]),
			val:    strings.Trim(strings.TrimSpace(expr[eq+1:]), `"'`),
			hasVal: true,
		}
	}
	return attrSelector{key: strings.TrimSpace(expr)}
}

func identLen(s string) int {
	n := 0
	for n < len(s) {
		b := s[n]
		if b == '-' || b == '_' || (b >= '0' && b <= '9') || (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') || b >= 0x80 {
			n++
			continue
		}
		break
	}
	return n
}

func isSpace(b byte) bool {
	return b == ' ' || b == '\t' || b == '\n' || b == '\r' || b == '\f'
}

func (l selectorList) match(n *html.Node) bool {
	for _, cs := range l {
		if cs.matchAt(n, len(cs)-1) {
			return true
		}
	}
	return false
}

func (cs complexSelector) matchAt(n *html.Node, i int) bool {
	if !cs[i].sel.matches(n) {
		return false
	}
	if i == 0 {
		return true
	}
	if cs[i].combinator == '>' {
		return n.Parent != nil && cs.matchAt(n.Parent, i-1)
	}
	for p := n.Parent; p != nil; p = p.Parent {
		if cs.matchAt(p, i-1) {
			return true
		}
	}
	return false
}

func (c compound) matches(n *html.Node) bool {
	if n.Type != html.ElementNode {
		return false
	}
	if c.tag != "" && c.tag != "*" && c.tag != strings.ToLower(n.Data) {
		return false
	}
	if c.id != "" && getAttr(n, "id") != c.id {
		return false
	}
	for _, cls := range c.classes {
		if !hasClass(n, cls) {
			return false
		}
	}
	for _, a := range c.attrs {
		val, ok := lookupAttr(n, a.key)
		if !ok || (a.hasVal && val != a.val) {
			return false
		}
	}
	return true
}

// querySelectorAll returns descendants of root (root excluded) matching the
// selector, in document order.
func querySelectorAll(root *html.Node, l selectorList, first bool) []*html.Node {
	var results []*html.Node
	var walk func(*html.Node) bool
	walk = func(n *html.Node) bool {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if l.match(c) {
				results = append(results, c)
				if first {
					return true
				}
			}
			if walk(c) {
				return true
			}
		}
		return false
	}
	walk(root)
	return results
}

func getAttr(n *html.Node, key string) string {
	v, _ := lookupAttr(n, key)
	return v
}

func lookupAttr(n *html.Node, key string) (string, bool) {
	for _, attr := range n.Attr {
		if attr.Key == key {
			return attr.Val, true
		}
	}
	return "", false
}

func hasClass(n *html.Node, name string) bool {
	if n.Type != html.ElementNode {
		return false
	}
	for _, c := range strings.Fields(getAttr(n, "class")) {
		if c == name {
			return true
		}
	}
	return false
}
