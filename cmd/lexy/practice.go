package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/lexyapp/lexy/internal/catalog"
	"github.com/lexyapp/lexy/internal/progress"
	"github.com/lexyapp/lexy/internal/sampler"
	"github.com/lexyapp/lexy/internal/store"
)

var (
	correctStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Bold(true)
	wrongStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	hintStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("244")).Italic(true)
	promptStyle  = lipgloss.NewStyle().Bold(true)
)

var practiceCmd = &cobra.Command{
	Use:   "practice",
	Short: "Run an interactive practice session from the cached catalog",
	Long: `Run an interactive practice session.

Exercises are drawn from the locally cached catalog, so practice works
without any network. Each answer is recorded durably before the next
question appears; sync to the backend happens in the background and never
blocks the session.

Example usage:
  lexy practice                        # 10 questions from the whole catalog
  lexy practice --level b1 --count 5   # 5 B1 questions
  lexy practice --topic travel --max-difficulty 3`,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()

		levels, _ := cmd.Flags().GetStringSlice("level")
		topics, _ := cmd.Flags().GetStringSlice("topic")
		types, _ := cmd.Flags().GetStringSlice("type")
		minDiff, _ := cmd.Flags().GetInt("min-difficulty")
		maxDiff, _ := cmd.Flags().GetInt("max-difficulty")
		count, _ := cmd.Flags().GetInt("count")

		st := openStore()
		defer st.Close()

		logger := newLogger("[practice] ")
		queue := newQueue(st, logger)
		defer queue.Stop()

		recorder := progress.NewRecorder(st, queue, logger)

		info, err := st.CacheInfo(ctx)
		if err == nil && info.IsExpired {
			fmt.Fprintln(os.Stderr, "Warning: cached catalog is stale; run 'lexy cache refresh' when online")
		}

		items, err := sampler.New(st).Sample(ctx, store.ContentFilter{
			Levels:        levels,
			Topics:        topics,
			Types:         types,
			MinDifficulty: minDiff,
			MaxDifficulty: maxDiff,
		}, true, count)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: failed to sample exercises: %v\n", err)
			os.Exit(1)
		}
		if len(items) == 0 {
			fmt.Println("No cached exercises match. Try 'lexy cache refresh' or loosen the filters.")
			return
		}

		stats, err := recorder.ComputeStats(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: failed to load stats: %v\n", err)
			os.Exit(1)
		}
		streak := stats.CurrentStreak

		sessionCorrect := 0
		sessionPoints := 0

		for i, item := range items {
			fmt.Printf("\n%s\n", promptStyle.Render(fmt.Sprintf("Question %d/%d (%s, %s)", i+1, len(items), item.Level, item.Topic)))

			answer, err := askOne(item)
			if errors.Is(err, huh.ErrUserAborted) {
				fmt.Println("\nSession ended early.")
				break
			}
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}

			correct := checkAnswer(item, answer.text)
			points := 0
			if correct {
				streak++
				points = item.Difficulty * 10
				sessionCorrect++
				sessionPoints += points
				fmt.Println(correctStyle.Render("Correct!"))
			} else {
				streak = 0
				fmt.Println(wrongStyle.Render(fmt.Sprintf("Not quite. Answer: %s", item.Payload.Answer)))
				if item.Payload.Hint != "" {
					fmt.Println(hintStyle.Render("Hint: " + item.Payload.Hint))
				}
			}

			if _, err := recorder.RecordAnswer(ctx, item.ID, correct, answer.tookMs, points, streak); err != nil {
				// Degraded store: the session continues, the answer is lost.
				fmt.Fprintf(os.Stderr, "Warning: answer not recorded: %v\n", err)
			}
		}

		fmt.Printf("\nSession done: %d/%d correct, %d points, streak %d\n",
			sessionCorrect, len(items), sessionPoints, streak)

		// Short-lived process: push pending work now rather than waiting for
		// the debounce timer we will not live to see.
		if !cfg.Offline {
			queue.Replay(ctx)
		}
	},
}

type answered struct {
	text   string
	tookMs int64
}

// askOne renders one exercise: a select when the item carries options, a free
// input otherwise.
func askOne(item catalog.ContentItem) (answered, error) {
	var text string
	started := time.Now()

	var field huh.Field
	if len(item.Payload.Options) > 0 {
		field = huh.NewSelect[string]().
			Title(item.Payload.Prompt).
			Options(huh.NewOptions(item.Payload.Options...)...).
			Value(&text)
	} else {
		field = huh.NewInput().
			Title(item.Payload.Prompt).
			Value(&text)
	}

	if err := huh.NewForm(huh.NewGroup(field)).Run(); err != nil {
		return answered{}, err
	}

	return answered{
		text:   text,
		tookMs: time.Since(started).Milliseconds(),
	}, nil
}

// checkAnswer compares case-insensitively with surrounding whitespace
// ignored. Free-text language answers do not deserve byte equality.
func checkAnswer(item catalog.ContentItem, given string) bool {
	return strings.EqualFold(strings.TrimSpace(given), strings.TrimSpace(item.Payload.Answer))
}

func init() {
	practiceCmd.Flags().StringSlice("level", nil, "filter by level (a1..c2, repeatable)")
	practiceCmd.Flags().StringSlice("topic", nil, "filter by topic (repeatable)")
	practiceCmd.Flags().StringSlice("type", nil, "filter by exercise type (repeatable)")
	practiceCmd.Flags().Int("min-difficulty", 0, "minimum difficulty (1-5)")
	practiceCmd.Flags().Int("max-difficulty", 0, "maximum difficulty (1-5)")
	practiceCmd.Flags().IntP("count", "n", 10, "number of questions")

	rootCmd.AddCommand(practiceCmd)
}
