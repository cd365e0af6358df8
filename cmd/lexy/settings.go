package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/lexyapp/lexy/internal/store"
	"github.com/lexyapp/lexy/internal/syncq"
)

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Manage user settings",
	Long: `Manage user settings.

Settings are stored locally with last-write-wins semantics and synced to
the backend through the same durable queue as practice progress.`,
}

var settingsSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a setting",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		key, value := args[0], args[1]

		st := openStore()
		defer st.Close()

		if err := st.PutSetting(ctx, key, value); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		queue := newQueue(st, newLogger("[settings] "))
		payload, err := json.Marshal(syncq.SettingPayload{Key: key, Value: value})
		if err == nil {
			if err := queue.Enqueue(ctx, store.TaskKindSetting, payload); err != nil {
				fmt.Fprintf(os.Stderr, "Warning: setting saved locally but not queued for sync: %v\n", err)
			}
		}
		// Push now; this process won't outlive the debounce timer.
		if !cfg.Offline {
			queue.Replay(ctx)
		}
		queue.Stop()

		fmt.Printf("%s = %s\n", key, value)
	},
}

var settingsGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Get a setting",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()

		st := openStore()
		defer st.Close()

		value, ok, err := st.GetSetting(ctx, args[0])
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		if !ok {
			fmt.Fprintf(os.Stderr, "Setting %s is not set\n", args[0])
			os.Exit(1)
		}
		fmt.Println(value)
	},
}

var settingsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all settings",
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()

		st := openStore()
		defer st.Close()

		settings, err := st.AllSettings(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		if len(settings) == 0 {
			fmt.Println("No settings")
			return
		}

		keys := make([]string, 0, len(settings))
		for key := range settings {
			keys = append(keys, key)
		}
		sort.Strings(keys)

		for _, key := range keys {
			fmt.Printf("%s = %s\n", key, settings[key])
		}
	},
}

func init() {
	settingsCmd.AddCommand(settingsSetCmd)
	settingsCmd.AddCommand(settingsGetCmd)
	settingsCmd.AddCommand(settingsListCmd)
	rootCmd.AddCommand(settingsCmd)
}
