package timeline_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/hazyhaar/tootwatch/timeline"
	"github.com/hazyhaar/tootwatch/timeline/htmldom"
)

const page = `<!DOCTYPE html>
<html><body>
<div class="columns-area">
  <div class="column" id="home">
    <div class="column-header"><i class="fa fa-fw fa-home"></i><h1>Home</h1></div>
    <div class="scrollable"><div id="home-feed"></div></div>
  </div>
  <div class="column" id="profile">
    <div class="column-header"><i class="fa fa-fw fa-user"></i></div>
    <div class="scrollable">
      <div><div><div class="account__header">Alice</div></div></div>
      <div id="profile-feed"></div>
    </div>
  </div>
  <div class="column" id="notifications">
    <div class="column-header"><i class="fa fa-fw fa-bell"></i></div>
    <div class="scrollable"><div id="notif-feed"></div></div>
  </div>
  <div id="loose-feed"></div>
</div>
</body></html>`

const baseURL = "https://mastodon.example/web/timelines/home"

// status renders an entity root with a permalink to /@alice/<id>. extra is
// inserted between the header and the action bar.
func status(id, extra string) string {
	return fmt.Sprintf(`<div class="status" data-id="%[1]s">
  <div class="status__info">
    <a class="status__relative-time" href="/@alice/%[1]s"><time datetime="2023-01-01T00:00:00Z">Jan 1</time></a>
    <a class="status__display-name" href="/@alice"><span class="display-name"><bdi><strong>Alice</strong></bdi> <span>@alice</span></span></a>
  </div>
  %[2]s
  <div class="status__action-bar"><button class="icon-button"><i class="fa fa-fw fa-retweet"></i></button><button class="icon-button"><i class="fa fa-fw fa-star"></i></button></div>
</div>`, id, extra)
}

type fixture struct {
	t       *testing.T
	tree    *htmldom.Tree
	watcher *timeline.Watcher
	added   []*timeline.Record
	removed []string
	events  []string
}

func newFixture(t *testing.T, opts ...timeline.Option) *fixture {
	t.Helper()
	return newFixtureWithTree(t, nil, opts...)
}

func newFixtureWithTree(t *testing.T, treeOpts []htmldom.Option, opts ...timeline.Option) *fixture {
	t.Helper()
	tree, err := htmldom.ParseString(page, append([]htmldom.Option{htmldom.WithBaseURL(baseURL)}, treeOpts...)...)
	if err != nil {
		t.Fatalf("parse page: %v", err)
	}
	f := &fixture{t: t, tree: tree}
	f.watcher = timeline.New(tree, tree.Body(), opts...)
	f.watcher.OnAdded(func(r *timeline.Record) {
		f.added = append(f.added, r)
		f.events = append(f.events, "added:"+r.ID())
	})
	f.watcher.OnRemoved(func(id string) {
		f.removed = append(f.removed, id)
		f.events = append(f.events, "removed:"+id)
	})
	if err := f.watcher.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	t.Cleanup(f.watcher.Stop)
	return f
}

func (f *fixture) find(selector string) *htmldom.Element {
	f.t.Helper()
	e, ok := f.tree.Find(selector)
	if !ok {
		f.t.Fatalf("no element matches %q", selector)
	}
	return e
}

func (f *fixture) fragment(markup string) []*htmldom.Element {
	f.t.Helper()
	nodes, err := f.tree.Fragment(markup)
	if err != nil {
		f.t.Fatalf("fragment: %v", err)
	}
	return nodes
}

// insert appends markup under the element matching selector and flushes.
func (f *fixture) insert(selector, markup string) []*htmldom.Element {
	f.t.Helper()
	nodes := f.fragment(markup)
	if err := f.tree.Append(f.find(selector), nodes...); err != nil {
		f.t.Fatalf("append: %v", err)
	}
	f.tree.Flush()
	return nodes
}

func (f *fixture) remove(nodes ...*htmldom.Element) {
	f.t.Helper()
	for _, n := range nodes {
		if err := f.tree.Remove(n); err != nil {
			f.t.Fatalf("remove: %v", err)
		}
	}
	f.tree.Flush()
}

// settings answers from a fixed map, defaulting like the real collaborators.
type settings map[string]bool

func (s settings) GetConfig(key string, def bool) bool {
	if v, ok := s[key]; ok {
		return v
	}
	return def
}

// fakeSource hands the watcher's batch func to the test.
type fakeSource struct {
	fn           timeline.BatchFunc
	opts         timeline.ObserveOptions
	subscribed   int
	unsubscribed int
}

func (s *fakeSource) Subscribe(_ context.Context, _ timeline.Node, opts timeline.ObserveOptions, fn timeline.BatchFunc) (timeline.Handle, error) {
	s.fn = fn
	s.opts = opts
	s.subscribed++
	return timeline.Handle(fmt.Sprintf("h%d", s.subscribed)), nil
}

func (s *fakeSource) Unsubscribe(timeline.Handle) error {
	s.unsubscribed++
	s.fn = nil
	return nil
}
