// CLAUDE:SUMMARY CLI entry point for tootwatch: scan saved pages, replay mutation scripts, watch a live timeline, edit filter settings.
// Command tootwatch extracts posts from a Mastodon web timeline.
//
// Usage:
//
//	tootwatch scan page.html                  # extract every post of a saved page
//	tootwatch replay page.html script.jsonl   # apply scripted mutations, print events
//	tootwatch watch -c tootwatch.yaml         # follow a live timeline in Chrome
//	tootwatch settings set nsfw false --db settings.db
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "tootwatch:", err)
		os.Exit(1)
	}
}
