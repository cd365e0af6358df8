package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/lexyapp/lexy/internal/syncq"
)

var queueCmd = &cobra.Command{
	Use:   "queue",
	Short: "Inspect and replay the pending sync queue",
}

var queueListCmd = &cobra.Command{
	Use:   "list",
	Short: "List pending sync tasks",
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()

		st := openStore()
		defer st.Close()

		tasks, err := st.PendingSyncTasks(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		if len(tasks) == 0 {
			fmt.Println("Sync queue is empty")
			return
		}

		fmt.Printf("%-6s %-10s %-8s %s\n", "ID", "KIND", "RETRIES", "ENQUEUED")
		for _, task := range tasks {
			fmt.Printf("%-6d %-10s %d/%d      %s\n",
				task.ID, task.Kind, task.RetryCount, syncq.RetryCeiling,
				task.EnqueuedAt.Local().Format(time.RFC822))
		}
		fmt.Printf("\n%d pending\n", len(tasks))
	},
}

var queueReplayCmd = &cobra.Command{
	Use:   "replay",
	Short: "Run one replay pass now",
	Long: `Run one replay pass against the backend immediately.

Normally replay happens in the background on connectivity changes; this
forces a pass for scripting or troubleshooting. With --offline (or no
credentials) the pass is a no-op.`,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()

		st := openStore()
		defer st.Close()

		queue := newQueue(st, newLogger("[queue] "))
		queue.Replay(ctx)

		pending, err := st.SyncTaskCount(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Replay pass complete, %d tasks still pending\n", pending)
	},
}

func init() {
	queueCmd.AddCommand(queueListCmd)
	queueCmd.AddCommand(queueReplayCmd)
	rootCmd.AddCommand(queueCmd)
}
