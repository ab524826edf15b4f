package main

import (
	"fmt"
	"slices"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/hazyhaar/tootwatch/internal/config"
)

func newSettingsCmd(a *app) *cobra.Command {
	var dbPath string
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Show or change filter settings in the settings database",
		Long: `Filter keys: nsfw, listboost, listhome, listuser. A key set to false
hides the matching posts. Running watchers pick changes up within a second.`,
	}
	cmd.PersistentFlags().StringVar(&dbPath, "db", "", "settings database (defaults to settings_db from the config)")

	open := func() (*config.Store, error) {
		path := dbPath
		if path == "" {
			cfg, err := a.loadConfig()
			if err != nil {
				return nil, err
			}
			path = cfg.SettingsDB
		}
		if path == "" {
			return nil, fmt.Errorf("no settings database: pass --db or set settings_db")
		}
		return config.OpenStore(path, a.logger)
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "Show every filter key and its effective value",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := open()
			if err != nil {
				return err
			}
			defer store.Close()
			values := store.All()
			for _, key := range config.Keys {
				v, ok := values[key]
				if !ok {
					fmt.Fprintf(cmd.OutOrStdout(), "%-10s true (default)\n", key)
					continue
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%-10s %t\n", key, v)
			}
			return nil
		},
	}

	set := &cobra.Command{
		Use:   "set KEY true|false",
		Short: "Set a filter key",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := strconv.ParseBool(args[1])
			if err != nil {
				return fmt.Errorf("value for %s: %w", args[0], err)
			}
			store, err := open()
			if err != nil {
				return err
			}
			defer store.Close()
			if err := store.Set(cmd.Context(), args[0], v); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s = %t\n", args[0], v)
			return nil
		},
	}

	unset := &cobra.Command{
		Use:   "unset KEY",
		Short: "Remove a filter key so the default applies",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(config.Keys, args[0]) {
				return fmt.Errorf("unknown filter key %q", args[0])
			}
			store, err := open()
			if err != nil {
				return err
			}
			defer store.Close()
			if err := store.Unset(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s unset\n", args[0])
			return nil
		},
	}

	cmd.AddCommand(list, set, unset)
	return cmd
}
