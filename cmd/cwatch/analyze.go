package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze <owner/repo>",
	Short: "Analyze new commits: running stats, anomalies, alerts, and scores",
	Long: `Fetches commits added since the last run, folds them into the running
statistics, classifies each commit for anomalies, evaluates the configured
alert thresholds, and refreshes the bus factor and activity scores.`,
	Args: cobra.ExactArgs(1),
	RunE: runAnalyze,
}

func init() {
	analyzeCmd.Flags().String("path", "", "local checkout to read history from instead of the GitHub API")
	analyzeCmd.Flags().String("user", "default", "user whose alert configuration applies")
	analyzeCmd.Flags().Bool("json", false, "print the full report as JSON")
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	repoID := args[0]
	path, _ := cmd.Flags().GetString("path")
	userID, _ := cmd.Flags().GetString("user")
	asJSON, _ := cmd.Flags().GetBool("json")

	store, err := openStore()
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	defer store.Close()

	p, err := buildPipeline(store, path)
	if err != nil {
		return err
	}
	defer p.Close()

	report, err := p.Run(ctx, repoID, userID)
	if err != nil {
		return fmt.Errorf("analysis failed: %w", err)
	}

	if asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}

	anomalous := 0
	for _, a := range report.Anomalies {
		if a.Result.IsAnomalous {
			anomalous++
		}
	}

	fmt.Printf("Analyzed %s: %d new commits\n", report.RepoID, report.NewCommits)
	fmt.Printf("  Anomalous commits: %d\n", anomalous)
	fmt.Printf("  Alerts fired:      %d\n", len(report.Alerts))
	fmt.Printf("  Bus factor:        %d (%s)\n", report.BusFactor.BusFactor, report.BusFactor.RiskLevel)
	fmt.Printf("  Activity score:    %d/100 (%s)\n", report.Activity.Score, report.Activity.Level)

	for _, a := range report.Anomalies {
		if !a.Result.IsAnomalous {
			continue
		}
		fmt.Printf("\n  %s  %s  risk=%s confidence=%.2f\n    %s\n",
			shortSHA(a.Commit.SHA), a.Commit.Email, a.Result.RiskLevel,
			a.Result.Confidence, a.Result.Reasoning)
	}

	return nil
}

func shortSHA(sha string) string {
	if len(sha) > 8 {
		return sha[:8]
	}
	return sha
}
