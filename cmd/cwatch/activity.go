package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/commitwatch/commitwatch-go/internal/storage"
)

var activityCmd = &cobra.Command{
	Use:   "activity <owner/repo>",
	Short: "Show the repository's activity score and commit heatmap",
	Args:  cobra.ExactArgs(1),
	RunE:  runActivity,
}

func init() {
	activityCmd.Flags().Bool("json", false, "print the result as JSON")
	activityCmd.Flags().Bool("heatmap", false, "render the day/hour commit heatmap")
}

func runActivity(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	repoID := args[0]
	asJSON, _ := cmd.Flags().GetBool("json")
	showHeatmap, _ := cmd.Flags().GetBool("heatmap")

	store, err := openStore()
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	defer store.Close()

	score, err := store.GetActivityScore(ctx, repoID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("no activity score recorded for %s, run `cwatch analyze %s` first", repoID, repoID)
		}
		return fmt.Errorf("load activity score: %w", err)
	}

	if asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(score)
	}

	fmt.Printf("Activity for %s: %d/100 (%s) over the last %d days\n",
		repoID, score.Score, score.Level, score.WindowDays)
	fmt.Printf("  Commit frequency:      %.1f\n", score.Factors.CommitFrequency)
	fmt.Printf("  Contributor diversity: %.1f\n", score.Factors.ContributorDiversity)
	fmt.Printf("  Code churn:            %.1f\n", score.Factors.CodeChurn)
	fmt.Printf("  Consistency:           %.1f\n", score.Factors.DevelopmentConsistency)

	if score.PeakActivity.Count > 0 {
		fmt.Printf("  Peak: %s %02d:00 (%d commits)\n",
			dayName(score.PeakActivity.Day), score.PeakActivity.Hour, score.PeakActivity.Count)
	}

	if showHeatmap {
		printHeatmap(score.Heatmap)
	}

	return nil
}

var dayNames = [7]string{"Mon", "Tue", "Wed", "Thu", "Fri", "Sat", "Sun"}

func dayName(day int) string {
	if day < 0 || day >= len(dayNames) {
		return "?"
	}
	return dayNames[day]
}

func printHeatmap(heatmap [7][24]int) {
	fmt.Println()
	fmt.Print("      ")
	for h := 0; h < 24; h += 3 {
		fmt.Printf("%-3d", h)
	}
	fmt.Println()

	for day := 0; day < 7; day++ {
		fmt.Printf("  %s ", dayNames[day])
		for hour := 0; hour < 24; hour++ {
			fmt.Print(heatCell(heatmap[day][hour]))
		}
		fmt.Println()
	}
}

func heatCell(count int) string {
	switch {
	case count == 0:
		return "."
	case count < 3:
		return "+"
	case count < 10:
		return "*"
	default:
		return "#"
	}
}
