package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/lexyapp/lexy/internal/catalog"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Manage the cached content catalog",
}

var cacheRefreshCmd = &cobra.Command{
	Use:   "refresh [batch-file...]",
	Short: "Install a new catalog generation from batch files",
	Long: `Install a new catalog generation.

With no arguments, every *.json batch file in the catalog drop directory is
read; with arguments, only the named batch files. The replacement is
all-or-nothing: on any failure the previous generation stays untouched.`,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()

		st := openStore()
		defer st.Close()

		var items []catalog.ContentItem
		var err error

		if len(args) == 0 {
			items, err = catalog.ReadAllBatchFiles(cfg.CatalogDir)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
			if len(items) == 0 {
				fmt.Printf("No batch files found in %s\n", cfg.CatalogDir)
				return
			}
		} else {
			seen := make(map[string]bool)
			for _, path := range args {
				batch, err := catalog.ReadBatchFile(path)
				if err != nil {
					fmt.Fprintf(os.Stderr, "Error: %v\n", err)
					os.Exit(1)
				}
				for _, item := range batch {
					if seen[item.ID] {
						continue
					}
					seen[item.ID] = true
					items = append(items, item)
				}
			}
		}

		if err := st.ReplaceContentItems(ctx, items); err != nil {
			fmt.Fprintf(os.Stderr, "Error: cache refresh failed: %v\n", err)
			os.Exit(1)
		}

		fmt.Printf("Cache refreshed: %d items\n", len(items))
	},
}

var cacheStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show cache freshness",
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()

		st := openStore()
		defer st.Close()

		info, err := st.CacheInfo(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		if info.LastUpdate == nil {
			fmt.Println("Cache is empty (never refreshed)")
			return
		}

		fmt.Printf("Last refresh: %s (%s ago)\n",
			info.LastUpdate.Local().Format(time.RFC1123),
			time.Since(*info.LastUpdate).Round(time.Minute))
		fmt.Printf("Items:        %d\n", info.ItemCount)
		if info.IsExpired {
			fmt.Println("Status:       STALE - refresh when online")
		} else {
			fmt.Println("Status:       fresh")
		}
	},
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Empty the content cache",
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()

		st := openStore()
		defer st.Close()

		if err := st.ClearCache(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("Cache cleared")
	},
}

func init() {
	cacheCmd.AddCommand(cacheRefreshCmd)
	cacheCmd.AddCommand(cacheStatusCmd)
	cacheCmd.AddCommand(cacheClearCmd)
	rootCmd.AddCommand(cacheCmd)
}
