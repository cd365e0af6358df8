package main

import (
	"fmt"
	"log"
	"os"

	"github.com/spf13/cobra"

	"github.com/lexyapp/lexy/internal/config"
	"github.com/lexyapp/lexy/internal/logging"
	"github.com/lexyapp/lexy/internal/remote"
	"github.com/lexyapp/lexy/internal/store"
	"github.com/lexyapp/lexy/internal/syncq"
)

var (
	cfgFile string
	cfg     *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "lexy",
	Short: "Offline-first language practice",
	Long: `lexy is a language practice tool that works fully offline.

Exercises come from a locally cached catalog, every answer is recorded
durably on this machine first, and progress syncs to the backend
opportunistically whenever connectivity allows. Losing the network never
loses your work.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(cfgFile)
		if err != nil {
			return err
		}
		if offline, _ := cmd.Flags().GetBool("offline"); offline {
			cfg.Offline = true
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default $HOME/.lexy/config.yaml)")
	rootCmd.PersistentFlags().Bool("offline", false, "force offline mode (no sync attempts)")
}

// openStore opens the local store. A store that cannot be opened still comes
// back usable in degraded mode: reads are empty and durable writes fail, but
// the CLI keeps running.
func openStore() *store.Store {
	st, err := store.Open(cfg.StorePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: local store unavailable, running degraded: %v\n", err)
	}
	return st
}

// newLogger builds a prefixed logger honoring the configured log file.
func newLogger(prefix string) *log.Logger {
	return logging.New(prefix, cfg.LogFile)
}

// newQueue wires the sync queue against the configured backend.
func newQueue(st *store.Store, logger *log.Logger) *syncq.Queue {
	client := remote.NewClient(cfg.BackendURL, cfg.AuthToken)
	qcfg := syncq.DefaultConfig()
	qcfg.Logger = logger
	qcfg.Online = func() bool { return !cfg.Offline }
	return syncq.New(st, client, qcfg)
}
