package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/common"
	"github.com/olebedev/when/rules/en"
	"github.com/spf13/cobra"

	"github.com/lexyapp/lexy/internal/store"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show answered exercises",
	Long: `Show the interaction log, most recent first.

--since and --until accept natural language ("yesterday", "last monday",
"3 days ago") as well as RFC3339 timestamps.

Example usage:
  lexy history --since yesterday
  lexy history --item verb-ser-01 --limit 5
  lexy history --incorrect --since "last week"`,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()

		itemID, _ := cmd.Flags().GetString("item")
		limit, _ := cmd.Flags().GetInt("limit")
		sinceText, _ := cmd.Flags().GetString("since")
		untilText, _ := cmd.Flags().GetString("until")
		onlyCorrect, _ := cmd.Flags().GetBool("correct")
		onlyIncorrect, _ := cmd.Flags().GetBool("incorrect")

		filter := store.InteractionFilter{
			ContentItemID: itemID,
			Limit:         limit,
		}

		if onlyCorrect && onlyIncorrect {
			fmt.Fprintln(os.Stderr, "Error: --correct and --incorrect are mutually exclusive")
			os.Exit(1)
		}
		if onlyCorrect {
			v := true
			filter.Correct = &v
		}
		if onlyIncorrect {
			v := false
			filter.Correct = &v
		}

		if sinceText != "" {
			t, err := parseWhen(sinceText)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: cannot parse --since %q: %v\n", sinceText, err)
				os.Exit(1)
			}
			filter.Since = t
		}
		if untilText != "" {
			t, err := parseWhen(untilText)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: cannot parse --until %q: %v\n", untilText, err)
				os.Exit(1)
			}
			filter.Until = t
		}

		st := openStore()
		defer st.Close()

		records, err := st.ListInteractions(ctx, filter)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		if len(records) == 0 {
			fmt.Println("No matching interactions")
			return
		}

		for _, rec := range records {
			mark := "✗"
			if rec.Correct {
				mark = "✓"
			}
			synced := ""
			if rec.Synced {
				synced = " (synced)"
			}
			fmt.Printf("%s %s %-24s %4dpts %6dms%s\n",
				rec.AnsweredAt.Local().Format("2006-01-02 15:04"),
				mark, rec.ContentItemID, rec.PointsEarned, rec.TimeTakenMs, synced)
		}
	},
}

// parseWhen parses natural-language or RFC3339 time expressions.
func parseWhen(text string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, text); err == nil {
		return t, nil
	}

	w := when.New(nil)
	w.Add(en.All...)
	w.Add(common.All...)

	result, err := w.Parse(text, time.Now())
	if err != nil {
		return time.Time{}, err
	}
	if result == nil {
		return time.Time{}, fmt.Errorf("unrecognized time expression")
	}
	return result.Time, nil
}

func init() {
	historyCmd.Flags().String("item", "", "filter by content item id")
	historyCmd.Flags().Int("limit", 20, "maximum records to show (0 = all)")
	historyCmd.Flags().String("since", "", "only records at or after this time")
	historyCmd.Flags().String("until", "", "only records before this time")
	historyCmd.Flags().Bool("correct", false, "only correct answers")
	historyCmd.Flags().Bool("incorrect", false, "only incorrect answers")

	rootCmd.AddCommand(historyCmd)
}
