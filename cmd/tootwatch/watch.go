package main

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/hazyhaar/tootwatch/session"
)

func newWatchCmd(a *app) *cobra.Command {
	var url, root, stealth string
	var noReveal bool
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Follow a live timeline in Chrome",
		Long: `Open the configured page in Chrome and print every post the timeline
renders until interrupted. The config file, when given, is reloaded on
change; values in the settings database take precedence.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := a.loadConfig()
			if err != nil {
				return err
			}
			if url != "" {
				cfg.Page.URL = url
			}
			if root != "" {
				cfg.Page.Root = root
			}
			if stealth != "" {
				cfg.Browser.Stealth = stealth
			}
			if noReveal {
				cfg.NoReveal = true
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			ctx := cmd.Context()
			settings, closeSettings, err := session.Settings(ctx, cfg, a.configPath, a.logger)
			if err != nil {
				return err
			}
			out := session.Sinks(cfg, cmd.OutOrStdout(), a.logger)
			s, err := session.New(cfg, settings, out, a.logger)
			if err != nil {
				return errors.Join(err, out.Close(), closeSettings())
			}

			a.logger.Info("tootwatch: watching", "url", cfg.Page.URL, "root", cfg.Page.Root, "mode", cfg.Browser.Stealth)
			err = s.Run(ctx)
			st := s.Stats()
			a.logger.Info("tootwatch: stopped", "added", st.Added, "removed", st.Removed, "skipped", st.Skipped)
			return errors.Join(err, closeSettings())
		},
	}
	cmd.Flags().StringVar(&url, "url", "", "page to open (overrides page.url)")
	cmd.Flags().StringVar(&root, "root", "", "selector of the observed root (overrides page.root)")
	cmd.Flags().StringVar(&stealth, "stealth", "", "browser mode: plain, headless, headful")
	cmd.Flags().BoolVar(&noReveal, "no-reveal", false, "never click content warnings open")
	return cmd
}
