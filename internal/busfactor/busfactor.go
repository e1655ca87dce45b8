// Package busfactor computes contributor-concentration risk: the minimum
// number of contributors whose cumulative commits reach half of the total,
// plus a share-based risk tier. Bot commits are excluded before
// aggregation.
package busfactor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/commitwatch/commitwatch-go/internal/botfilter"
	"github.com/commitwatch/commitwatch-go/internal/models"
	"github.com/commitwatch/commitwatch-go/internal/storage"
)

const topContributorLimit = 5

// StatsSource optionally supplies pre-computed per-contributor statistics
// for top-contributor detail. When the source is absent or reports
// storage.ErrNotFound, detail is summed directly from the commit list.
type StatsSource interface {
	ContributorStats(ctx context.Context, repoID, email string) (*models.ContributorStats, error)
}

// Engine computes bus-factor results over commit snapshots.
type Engine struct {
	filter *botfilter.Filter
	source StatsSource // may be nil
	logger *slog.Logger
}

// New creates an engine. source may be nil.
func New(filter *botfilter.Filter, source StatsSource) *Engine {
	return &Engine{
		filter: filter,
		source: source,
		logger: slog.Default().With("component", "busfactor"),
	}
}

// contributorAgg accumulates per-contributor totals during grouping.
type contributorAgg struct {
	email        string
	name         string
	commits      int
	linesAdded   int
	linesDeleted int
	filesChanged int
	firstCommit  time.Time
	lastCommit   time.Time
}

// Compute analyzes a full commit snapshot for one repository.
func (e *Engine) Compute(ctx context.Context, repoID string, commits []models.CommitRecord) models.BusFactorResult {
	byEmail := make(map[string]*contributorAgg)
	totalCommits := 0

	for _, commit := range commits {
		if e.filter.IsBot(commit) {
			continue
		}
		totalCommits++

		email := strings.ToLower(commit.Email)
		agg, exists := byEmail[email]
		if !exists {
			agg = &contributorAgg{
				email:       email,
				name:        commit.Author,
				firstCommit: commit.Timestamp,
				lastCommit:  commit.Timestamp,
			}
			byEmail[email] = agg
		}
		agg.commits++
		agg.linesAdded += commit.LinesAdded
		agg.linesDeleted += commit.LinesDeleted
		agg.filesChanged += len(commit.FilesChanged)
		if commit.Timestamp.Before(agg.firstCommit) {
			agg.firstCommit = commit.Timestamp
		}
		if commit.Timestamp.After(agg.lastCommit) {
			agg.lastCommit = commit.Timestamp
		}
	}

	if len(byEmail) == 0 {
		return models.BusFactorResult{
			BusFactor:       0,
			TopContributors: []models.ContributorSummary{},
			RiskLevel:       models.BusRiskLow,
			RiskReason:      "no human contributors found in commit history",
			AnalysisDate:    time.Now(),
		}
	}

	contributors := make([]*contributorAgg, 0, len(byEmail))
	for _, agg := range byEmail {
		contributors = append(contributors, agg)
	}
	sort.Slice(contributors, func(i, j int) bool {
		if contributors[i].commits != contributors[j].commits {
			return contributors[i].commits > contributors[j].commits
		}
		return contributors[i].email < contributors[j].email
	})

	topShare := float64(contributors[0].commits) / float64(totalCommits)

	busFactor := 0
	switch {
	case len(contributors) == 1:
		busFactor = 1
	case topShare > 0.5:
		busFactor = 1
	default:
		cumulative := 0
		half := float64(totalCommits) * 0.5
		for _, c := range contributors {
			cumulative += c.commits
			busFactor++
			if float64(cumulative) >= half {
				break
			}
		}
	}

	riskLevel, riskReason := classifyRisk(len(contributors), busFactor, topShare)

	return models.BusFactorResult{
		BusFactor:         busFactor,
		TotalContributors: len(contributors),
		TotalCommits:      totalCommits,
		TopContributors:   e.topContributors(ctx, repoID, contributors),
		RiskLevel:         riskLevel,
		RiskReason:        riskReason,
		AnalysisDate:      time.Now(),
	}
}

// classifyRisk applies the tiering table, first match wins.
func classifyRisk(totalContributors, busFactor int, topShare float64) (models.BusRiskLevel, string) {
	topPercent := topShare * 100

	switch {
	case totalContributors <= 2 || busFactor == 1 || topShare > 0.8:
		return models.BusRiskCritical,
			riskReason("critical concentration", totalContributors, busFactor, topPercent)
	case busFactor <= 3 || topShare > 0.6:
		return models.BusRiskHigh,
			riskReason("high concentration", totalContributors, busFactor, topPercent)
	case busFactor <= 6 || topShare > 0.4:
		return models.BusRiskMedium,
			riskReason("moderate concentration", totalContributors, busFactor, topPercent)
	default:
		return models.BusRiskLow,
			riskReason("healthy distribution", totalContributors, busFactor, topPercent)
	}
}

func riskReason(label string, totalContributors, busFactor int, topPercent float64) string {
	return fmt.Sprintf("%s: %d contributor(s) account for half of all commits; top contributor holds %.0f%% across %d contributor(s)",
		label, busFactor, topPercent, totalContributors)
}

// topContributors builds detail summaries for the top 5. Detail comes from
// the stats source when one is wired and has the contributor; otherwise
// the sums from the commit list stand. A genuine lookup failure for one
// contributor is logged and zeroes that contributor's line/file fields
// rather than aborting the computation.
func (e *Engine) topContributors(ctx context.Context, repoID string, sorted []*contributorAgg) []models.ContributorSummary {
	limit := topContributorLimit
	if len(sorted) < limit {
		limit = len(sorted)
	}

	summaries := make([]models.ContributorSummary, 0, limit)
	for _, agg := range sorted[:limit] {
		summary := models.ContributorSummary{
			Author:               agg.name,
			Email:                agg.email,
			TotalCommits:         agg.commits,
			TotalLinesAdded:      agg.linesAdded,
			TotalLinesDeleted:    agg.linesDeleted,
			TotalFilesChanged:    agg.filesChanged,
			FirstCommit:          agg.firstCommit,
			LastCommit:           agg.lastCommit,
			ContributionSpanDays: int(agg.lastCommit.Sub(agg.firstCommit).Hours() / 24),
		}

		if e.source != nil {
			stats, err := e.source.ContributorStats(ctx, repoID, agg.email)
			switch {
			case errors.Is(err, storage.ErrNotFound):
				// No stored statistics for this contributor; the commit-list
				// sums already in the summary stand.
			case err != nil:
				e.logger.Warn("contributor detail lookup failed, using zero stats",
					"repo", repoID, "email", agg.email, "error", err)
				summary.TotalLinesAdded = 0
				summary.TotalLinesDeleted = 0
				summary.TotalFilesChanged = 0
			case stats != nil:
				summary.TotalLinesAdded = int(math.Round(stats.LinesAdded.Mean * float64(stats.LinesAdded.Count)))
				summary.TotalLinesDeleted = int(math.Round(stats.LinesDeleted.Mean * float64(stats.LinesDeleted.Count)))
				summary.TotalFilesChanged = int(math.Round(stats.FilesChanged.Mean * float64(stats.FilesChanged.Count)))
			}
		}

		summaries = append(summaries, summary)
	}
	return summaries
}
