package main

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/hazyhaar/tootwatch/timeline/htmldom"
)

// step is one line of a replay script.
//
//	{"op":"insert","parent":".item-list","html":"<article>...</article>"}
//	{"op":"insert","parent":".item-list","before":"article","html":"..."}
//	{"op":"remove","target":"#post-2"}
//	{"op":"attr","target":".status","name":"class","value":"status muted"}
//	{"op":"flush"}
//
// Selectors resolve against the whole document; the first match is used.
type step struct {
	Op     string `json:"op"`
	Parent string `json:"parent,omitempty"`
	Before string `json:"before,omitempty"`
	Target string `json:"target,omitempty"`
	HTML   string `json:"html,omitempty"`
	Name   string `json:"name,omitempty"`
	Value  string `json:"value,omitempty"`
}

func newReplayCmd(a *app) *cobra.Command {
	var baseURL string
	cmd := &cobra.Command{
		Use:   "replay FILE.html SCRIPT.jsonl",
		Short: "Apply scripted mutations to a saved page and print the events",
		Long: `Load a saved page, watch its body, then apply the JSON lines of the
script in order. Mutations between two "flush" steps are delivered as one
batch; the script ends with an implicit flush.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.loadConfig()
			if err != nil {
				return err
			}
			tree, err := parsePage(args[0], baseURL, a)
			if err != nil {
				return err
			}
			script, err := openFile(args[1])
			if err != nil {
				return err
			}
			defer script.Close()

			w, done, err := a.attachLocal(cmd, cfg, tree, tree.Body())
			if err != nil {
				return err
			}
			if err := replay(tree, script); err != nil {
				return errors.Join(err, done())
			}
			a.logStats("replay", args[1], w.Stats())
			return done()
		},
	}
	cmd.Flags().StringVar(&baseURL, "base-url", "", "URL the page was saved from, for resolving links")
	return cmd
}

func replay(tree *htmldom.Tree, r io.Reader) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 4<<20)
	line := 0
	for sc.Scan() {
		line++
		raw := sc.Bytes()
		if len(raw) == 0 || raw[0] == '#' {
			continue
		}
		var s step
		if err := json.Unmarshal(raw, &s); err != nil {
			return fmt.Errorf("replay: line %d: %w", line, err)
		}
		if err := apply(tree, s); err != nil {
			return fmt.Errorf("replay: line %d: %w", line, err)
		}
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("replay: read script: %w", err)
	}
	tree.Flush()
	return nil
}

func apply(tree *htmldom.Tree, s step) error {
	switch s.Op {
	case "flush":
		tree.Flush()
		return nil

	case "insert":
		parent, err := find(tree, s.Parent)
		if err != nil {
			return err
		}
		var ref *htmldom.Element
		if s.Before != "" {
			if ref, err = find(tree, s.Before); err != nil {
				return err
			}
		}
		nodes, err := tree.Fragment(s.HTML)
		if err != nil {
			return err
		}
		return tree.InsertBefore(parent, ref, nodes...)

	case "remove":
		target, err := find(tree, s.Target)
		if err != nil {
			return err
		}
		return tree.Remove(target)

	case "attr":
		target, err := find(tree, s.Target)
		if err != nil {
			return err
		}
		return tree.SetAttr(target, s.Name, s.Value)
	}
	return fmt.Errorf("unknown op %q", s.Op)
}

func find(tree *htmldom.Tree, selector string) (*htmldom.Element, error) {
	if selector == "" {
		return nil, fmt.Errorf("missing selector")
	}
	e, ok := tree.Find(selector)
	if !ok {
		return nil, fmt.Errorf("no element matches %q", selector)
	}
	return e, nil
}
