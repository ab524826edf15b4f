package timeline

import "context"

// ChangeKind is the type of a single change record.
type ChangeKind string

const (
	ChildList     ChangeKind = "childList"
	Attributes    ChangeKind = "attributes"
	CharacterData ChangeKind = "characterData"
)

// Change is one change record of a batch. Added and Removed are only set
// for ChildList changes and keep the order the host reported.
type Change struct {
	Kind    ChangeKind
	Added   []Node
	Removed []Node
}

// Batch is every change a host delivered in one notification, in order.
type Batch []Change

// BatchFunc receives batches. It runs on the host's delivery goroutine and
// must return promptly.
type BatchFunc func(Batch)

// ObserveOptions selects what a subscription reports.
type ObserveOptions struct {
	ChildList     bool
	Attributes    bool
	CharacterData bool
	Subtree       bool
}

// ObserveAll requests child-list, attribute and character-data changes over
// the whole subtree.
var ObserveAll = ObserveOptions{ChildList: true, Attributes: true, CharacterData: true, Subtree: true}

// Handle identifies a subscription.
type Handle string

// Source is a host change feed.
type Source interface {
	// Subscribe starts reporting changes under root. Deliveries stop when
	// ctx is done or the handle is unsubscribed.
	Subscribe(ctx context.Context, root Node, opts ObserveOptions, fn BatchFunc) (Handle, error)
	Unsubscribe(h Handle) error
}
