package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/commitwatch/commitwatch-go/internal/models"
	"github.com/commitwatch/commitwatch-go/internal/storage"
)

var busFactorCmd = &cobra.Command{
	Use:   "busfactor <owner/repo>",
	Short: "Show the repository's bus factor and concentration risk",
	Args:  cobra.ExactArgs(1),
	RunE:  runBusFactor,
}

func init() {
	busFactorCmd.Flags().Bool("json", false, "print the result as JSON")
}

func runBusFactor(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	repoID := args[0]
	asJSON, _ := cmd.Flags().GetBool("json")

	store, err := openStore()
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	defer store.Close()

	result, err := store.GetBusFactor(ctx, repoID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("no bus factor recorded for %s, run `cwatch analyze %s` first", repoID, repoID)
		}
		return fmt.Errorf("load bus factor: %w", err)
	}

	if asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}

	printBusFactor(repoID, result)
	return nil
}

func printBusFactor(repoID string, result *models.BusFactorResult) {
	fmt.Printf("Bus factor for %s: %d (%s)\n", repoID, result.BusFactor, result.RiskLevel)
	fmt.Printf("  %s\n", result.RiskReason)
	fmt.Printf("  Contributors: %d, commits analyzed: %d\n\n", result.TotalContributors, result.TotalCommits)

	for i, c := range result.TopContributors {
		share := 0.0
		if result.TotalCommits > 0 {
			share = float64(c.TotalCommits) / float64(result.TotalCommits) * 100
		}
		fmt.Printf("  %d. %s <%s>  %d commits (%.1f%%)\n",
			i+1, c.Author, c.Email, c.TotalCommits, share)
	}
}
