package htmldom

import (
	"strings"
	"testing"

	"golang.org/x/net/html"
)

const selectorDoc = `<html><body>
<div class="columns">
  <div class="column" id="c1">
    <div class="column-header"><i class="fa fa-fw fa-home"></i></div>
    <div class="scrollable"><div><div><div class="account__header"></div></div></div></div>
  </div>
  <a class="status__relative-time" href="/x" data-kind='perm'>t</a>
  <button class="icon-button"><i class="fa fa-fw fa-retweet"></i></button>
  <span class="icon-button"><i class="fa fa-fw fa-retweet"></i></span>
</div>
</body></html>`

func parseDoc(t *testing.T) *html.Node {
	t.Helper()
	doc, err := html.Parse(strings.NewReader(selectorDoc))
	if err != nil {
		t.Fatal(err)
	}
	return doc
}

func TestSelector_Matching(t *testing.T) {
	doc := parseDoc(t)
	tests := []struct {
		sel  string
		want int
	}{
		{"i", 3},
		{"*.fa-retweet", 2},
		{"button.icon-button > i.fa.fa-fw.fa-retweet", 1},
		{".icon-button > i", 2},
		{".column-header > i.fa.fa-fw.fa-home", 1},
		{".scrollable > div > div > .account__header", 1},
		{".scrollable > div > .account__header", 0},
		{".columns .account__header", 1},
		{"#c1 i", 1},
		{"a[href]", 1},
		{"a[data-kind=perm]", 1},
		{`a[data-kind="perm"]`, 1},
		{"a[data-kind=other]", 0},
		{"button, span", 2},
		{"DIV#c1", 1},
	}
	for _, tt := range tests {
		t.Run(tt.sel, func(t *testing.T) {
			l, err := compile(tt.sel)
			if err != nil {
				t.Fatalf("compile: %v", err)
			}
			if got := len(querySelectorAll(doc, l, false)); got != tt.want {
				t.Errorf("got %d matches, want %d", got, tt.want)
			}
		})
	}
}

func TestSelector_Errors(t *testing.T) {
	for _, sel := range []string{"", "> a", "a >", "a > > b", ".", "#", "a[href", "a:hover", "a,"} {
		if err := Compile(sel); err == nil {
			t.Errorf("Compile(%q): want error", sel)
		}
	}
}

func TestSelector_ExcludesRoot(t *testing.T) {
	doc := parseDoc(t)
	l, _ := compile(".column")
	col := querySelectorAll(doc, l, true)[0]
	if got := querySelectorAll(col, l, false); len(got) != 0 {
		t.Errorf("root matched itself: %d", len(got))
	}
}

func TestSelector_ChainReachesAboveScope(t *testing.T) {
	doc := parseDoc(t)
	hl, _ := compile(".column-header")
	header := querySelectorAll(doc, hl, true)[0]

	// The "#c1" part sits above the query root, as querySelector allows.
	l, _ := compile("#c1 i")
	if got := querySelectorAll(header, l, false); len(got) != 1 {
		t.Errorf("got %d matches, want 1", len(got))
	}
}

func TestSelector_FirstStopsEarly(t *testing.T) {
	doc := parseDoc(t)
	l, _ := compile("i")
	got := querySelectorAll(doc, l, true)
	if len(got) != 1 || !hasClass(got[0], "fa-home") {
		t.Errorf("want the first i in document order, got %d nodes", len(got))
	}
}

func TestInlineStyle(t *testing.T) {
	tests := []struct {
		style, prop, want string
	}{
		{"background-image: url(a.png)", "background-image", "url(a.png)"},
		{"color: red; background-image: none", "background-image", "none"},
		{"BACKGROUND: red !important", "background", "red"},
		{"background: url(data:image/png;base64,AA==) no-repeat; color: red", "background", "url(data:image/png;base64,AA==) no-repeat"},
		{`background-image: url("a;b.png")`, "background-image", `url("a;b.png")`},
		{"color: red; color: blue", "color", "blue"},
		{"color: red", "background", ""},
		{"", "color", ""},
		{"garbage", "color", ""},
	}
	for _, tt := range tests {
		if got := inlineStyle(tt.style, tt.prop); got != tt.want {
			t.Errorf("inlineStyle(%q, %q): got %q, want %q", tt.style, tt.prop, got, tt.want)
		}
	}
}
