package main

import (
	"context"
	"fmt"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/lexyapp/lexy/internal/progress"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show practice statistics",
	Long: `Show aggregate practice statistics.

All numbers are recomputed from the local interaction log, so they are
accurate even when the backend has never seen any of your answers.`,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()

		st := openStore()
		defer st.Close()

		recorder := progress.NewRecorder(st, nil, newLogger("[stats] "))
		stats, err := recorder.ComputeStats(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: failed to compute stats: %v\n", err)
			os.Exit(1)
		}

		label := lipgloss.NewStyle().Foreground(lipgloss.Color("244")).Width(18)
		value := lipgloss.NewStyle().Bold(true)

		rows := []struct {
			name string
			val  string
		}{
			{"Questions", fmt.Sprintf("%d", stats.TotalQuestions)},
			{"Correct", fmt.Sprintf("%d", stats.CorrectAnswers)},
			{"Accuracy", fmt.Sprintf("%.1f%%", stats.Accuracy)},
			{"Current streak", fmt.Sprintf("%d", stats.CurrentStreak)},
			{"Total points", fmt.Sprintf("%d", stats.TotalPoints)},
		}

		fmt.Println(lipgloss.NewStyle().Bold(true).Underline(true).Render("Practice stats"))
		for _, row := range rows {
			fmt.Printf("%s %s\n", label.Render(row.name), value.Render(row.val))
		}
	},
}

func init() {
	rootCmd.AddCommand(statsCmd)
}
