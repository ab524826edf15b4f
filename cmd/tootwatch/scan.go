package main

import (
	"context"
	"errors"

	"github.com/spf13/cobra"
	"golang.org/x/net/html"

	"github.com/hazyhaar/tootwatch/internal/config"
	"github.com/hazyhaar/tootwatch/session"
	"github.com/hazyhaar/tootwatch/timeline"
	"github.com/hazyhaar/tootwatch/timeline/htmldom"
)

func newScanCmd(a *app) *cobra.Command {
	var baseURL string
	cmd := &cobra.Command{
		Use:   "scan FILE.html",
		Short: "Extract every post of a saved page",
		Long: `Parse a saved page and report every post in its body as if the whole
body had just been inserted. Filters from the config and the settings
database apply.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.loadConfig()
			if err != nil {
				return err
			}
			tree, err := parsePage(args[0], baseURL, a)
			if err != nil {
				return err
			}
			body := tree.Body()

			// Detach the body's content before subscribing, then put it
			// back: the watcher sees a single insertion batch.
			var content []*htmldom.Element
			for c := body.HTMLNode().FirstChild; c != nil; c = c.NextSibling {
				if c.Type == html.ElementNode {
					content = append(content, tree.Wrap(c))
				}
			}
			for _, c := range content {
				if err := tree.Remove(c); err != nil {
					return err
				}
			}

			w, done, err := a.attachLocal(cmd, cfg, tree, body)
			if err != nil {
				return err
			}
			if err := tree.Append(body, content...); err != nil {
				return errors.Join(err, done())
			}
			tree.Flush()

			a.logStats("scan", args[0], w.Stats())
			return done()
		},
	}
	cmd.Flags().StringVar(&baseURL, "base-url", "", "URL the page was saved from, for resolving links")
	return cmd
}

func parsePage(path, baseURL string, a *app) (*htmldom.Tree, error) {
	f, err := openFile(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	opts := []htmldom.Option{htmldom.WithLogger(a.logger)}
	if baseURL != "" {
		opts = append(opts, htmldom.WithBaseURL(baseURL))
	}
	return htmldom.Parse(f, opts...)
}

// attachLocal starts a watcher over an in-memory tree with the configured
// filters and sinks. done stops the watcher and releases everything.
func (a *app) attachLocal(cmd *cobra.Command, cfg *config.Config, tree *htmldom.Tree, root *htmldom.Element) (*timeline.Watcher, func() error, error) {
	ctx, cancel := context.WithCancel(cmd.Context())
	settings, closeSettings, err := session.Settings(ctx, cfg, "", a.logger)
	if err != nil {
		cancel()
		return nil, nil, err
	}
	out := session.Sinks(cfg, cmd.OutOrStdout(), a.logger)
	w, err := session.Attach(ctx, cfg, tree, root, settings, out, a.logger)
	if err != nil {
		cancel()
		return nil, nil, errors.Join(err, out.Close(), closeSettings())
	}
	done := func() error {
		w.Stop()
		cancel()
		return errors.Join(out.Close(), closeSettings())
	}
	return w, done, nil
}

func (a *app) logStats(op, file string, s timeline.Stats) {
	a.logger.Info("tootwatch: "+op+" done",
		"file", file,
		"batches", s.Batches,
		"added", s.Added,
		"removed", s.Removed,
		"skipped", s.Skipped,
		"filtered", s.FilteredNSFW+s.FilteredBoost+s.FilteredHome+s.FilteredUser)
}
