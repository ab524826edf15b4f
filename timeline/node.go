// Package timeline watches a mutating timeline tree and extracts one Record
// per post as post nodes are inserted, and one id per post as they are
// removed.
//
// The package does not know about any concrete DOM. Hosts implement Node
// (the capability set the extractor reads) and Source (the change feed).
// Two hosts ship with the module: timeline/htmldom (in-memory, x/net/html)
// and timeline/roddom (live Chrome page through go-rod).
package timeline

// Node is the read capability the watcher needs from a host tree node.
//
// Lookups that may miss return (Node, bool). Implementations backed by a
// remote runtime report transport failures as misses and log them; the
// watcher treats every miss as absent optional structure.
type Node interface {
	// HasClass reports whether the node carries the class token.
	HasClass(name string) bool
	// Children returns element children in document order.
	Children() []Node
	// Parent returns the parent element. Document nodes are not elements.
	Parent() (Node, bool)
	// PreviousSibling returns the previous element sibling.
	PreviousSibling() (Node, bool)
	// TagName is the lowercase element name, or "" for non-elements.
	TagName() string

	// Query returns the first descendant matching a CSS selector.
	Query(selector string) (Node, bool)
	// QueryAll returns every descendant matching a CSS selector.
	QueryAll(selector string) []Node
	// Contains reports whether other is the node itself or a descendant.
	Contains(other Node) bool

	Attr(name string) (string, bool)
	// Style returns the value of an inline style property.
	Style(property string) string
	InnerHTML() string
	InnerText() string
	// Pathname and Href resolve an anchor's href against the document URL.
	Pathname() string
	Href() string

	// Clone returns a detached deep copy.
	Clone() Node
	// Click dispatches the node's activation behaviour. It mutates the host
	// tree, so the watcher only calls it through the reveal step.
	Click() error
}
