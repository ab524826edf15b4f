package roddom

import (
	"slices"
	"strings"
	"testing"

	"github.com/hazyhaar/tootwatch/timeline"
)

func TestDecodePayload(t *testing.T) {
	p, err := decodePayload(`{"h":"abc","records":[{"kind":"childList","added":[1,2],"removed":[3]},{"kind":"attributes","added":[],"removed":[]}]}`)
	if err != nil {
		t.Fatal(err)
	}
	if p.Handle != "abc" {
		t.Errorf("handle: got %q", p.Handle)
	}
	if len(p.Records) != 2 {
		t.Fatalf("records: got %d, want 2", len(p.Records))
	}
	r := p.Records[0]
	if timeline.ChangeKind(r.Kind) != timeline.ChildList || len(r.Added) != 2 || r.Added[1] != 2 || len(r.Removed) != 1 {
		t.Errorf("first record: %+v", r)
	}
}

func TestDecodePayload_Errors(t *testing.T) {
	for _, raw := range []string{
		``,
		`not json`,
		`{"records":[]}`,
		`{"h":"x","records":[{"kind":"subtree"}]}`,
	} {
		if _, err := decodePayload(raw); err == nil {
			t.Errorf("decodePayload(%q): want error", raw)
		}
	}
}

func TestObserverScriptIsAFunction(t *testing.T) {
	// page.Eval expects a function definition.
	if len(observerJS) < 5 || observerJS[:5] != "() =>" {
		t.Errorf("observer.js must start with an arrow function, got %.20q", observerJS)
	}
}

func TestSourceOptions(t *testing.T) {
	s := NewSource(nil)
	if s.binding != DefaultBinding || s.buffer != 256 {
		t.Errorf("defaults: binding=%q buffer=%d", s.binding, s.buffer)
	}

	s = NewSource(nil, WithBinding("__tw_events"), WithBuffer(8))
	if s.binding != "__tw_events" || s.buffer != 8 {
		t.Errorf("options: binding=%q buffer=%d", s.binding, s.buffer)
	}

	// Zero values keep the defaults, so unset config fields are harmless.
	s = NewSource(nil, WithBinding(""), WithBuffer(0), WithLogger(nil))
	if s.binding != DefaultBinding || s.buffer != 256 || s.logger == nil {
		t.Errorf("zero options: binding=%q buffer=%d", s.binding, s.buffer)
	}
}

func TestPayloadIDs(t *testing.T) {
	p, err := decodePayload(`{"h":"h1","records":[{"kind":"childList","added":[1,2],"removed":[3]},{"kind":"attributes"},{"kind":"childList","added":[4],"removed":[5,6]}]}`)
	if err != nil {
		t.Fatal(err)
	}
	got := p.ids()
	want := []int64{1, 2, 3, 4, 5, 6}
	if !slices.Equal(got, want) {
		t.Errorf("ids: got %v, want %v", got, want)
	}
	if ids := (payload{Handle: "h1"}).ids(); len(ids) != 0 {
		t.Errorf("empty payload ids: %v", ids)
	}
}

func TestObserverScriptReleasesNodes(t *testing.T) {
	for _, fn := range []string{"reg.take", "reg.drop", "reg.disconnect"} {
		if !strings.Contains(observerJS, fn+" = (h") {
			t.Errorf("observer.js does not define %s", fn)
		}
	}
}
