package alerts

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/commitwatch/commitwatch-go/internal/anomaly"
	"github.com/commitwatch/commitwatch-go/internal/models"
	"github.com/google/uuid"
)

// Evaluator checks commits against user alert configurations. It decides
// whether and why alerts fire; persistence is the caller's concern.
type Evaluator struct {
	detector      *anomaly.Detector // may be nil when the AI metric is unused
	hourTolerance int
	logger        *slog.Logger
}

// NewEvaluator creates an evaluator. hourTolerance widens the contributor's
// active-hour range for the timing metric; zero means the default of 2.
func NewEvaluator(detector *anomaly.Detector, hourTolerance int) *Evaluator {
	if hourTolerance <= 0 {
		hourTolerance = 2
	}
	return &Evaluator{
		detector:      detector,
		hourTolerance: hourTolerance,
		logger:        slog.Default().With("component", "alerts"),
	}
}

// Evaluate checks one commit against one user's configuration. Every
// enabled metric is checked independently across all of its configured
// modes, so a single commit can yield multiple alerts. A pre-computed
// anomaly result may be passed to avoid re-analysis; when nil and the AI
// metric is enabled, the evaluator runs the detector itself.
func (e *Evaluator) Evaluate(
	ctx context.Context,
	repoID, userID string,
	commit models.CommitRecord,
	cfg Config,
	repoStats *models.RepositoryStats,
	contributorStats *models.ContributorStats,
	anomalyResult *models.AnomalyResult,
) []models.AlertEvent {
	var events []models.AlertEvent

	add := func(metric, mode string, threshold, actual float64, description string) {
		events = append(events, models.AlertEvent{
			ID:          uuid.New().String(),
			RepoID:      repoID,
			UserID:      userID,
			CommitSHA:   commit.SHA,
			Metric:      metric,
			Mode:        mode,
			Threshold:   threshold,
			Actual:      actual,
			Description: description,
			Commit:      commit,
			CreatedAt:   time.Now(),
		})
	}

	if mc, ok := cfg[MetricLinesAddedDeleted]; ok && mc.Enabled {
		e.evaluateSizeMetric(MetricLinesAddedDeleted, mc, float64(commit.TotalLines()),
			linesBaseline(contributorStats), linesRepoMean(repoStats), add)
	}

	if mc, ok := cfg[MetricFilesChanged]; ok && mc.Enabled {
		e.evaluateSizeMetric(MetricFilesChanged, mc, float64(len(commit.FilesChanged)),
			filesBaseline(contributorStats), filesRepoMean(repoStats), add)
	}

	if mc, ok := cfg[MetricHighChurn]; ok && mc.Enabled && len(commit.FilesChanged) > 0 {
		e.evaluateChurn(mc, commit, repoStats, add)
	}

	if mc, ok := cfg[MetricUnusualActivity]; ok && mc.Enabled {
		e.evaluateTiming(mc, commit, contributorStats, add)
	}

	if mc, ok := cfg[MetricAIAnomaly]; ok && mc.Enabled {
		result := anomalyResult
		if result == nil && e.detector != nil {
			r := e.detector.Analyze(ctx, commit, contributorStats, repoStats)
			result = &r
		}
		if result != nil && result.IsAnomalous {
			add(MetricAIAnomaly, ModeAIAnomaly, 0, result.Confidence,
				fmt.Sprintf("AI analysis flagged commit as anomalous (%s): %s", result.RiskLevel, result.Reasoning))
		}
	}

	return events
}

// baseline carries a contributor's mean and combined stddev for one size
// metric; nil mean no baseline.
type baseline struct {
	mean   float64
	stddev float64
}

func linesBaseline(stats *models.ContributorStats) *baseline {
	if stats == nil || !stats.LinesAdded.HasBaseline() {
		return nil
	}
	sa := stats.LinesAdded.StdDev()
	sd := stats.LinesDeleted.StdDev()
	return &baseline{
		mean:   stats.LinesAdded.Mean + stats.LinesDeleted.Mean,
		stddev: math.Sqrt(sa*sa + sd*sd),
	}
}

func filesBaseline(stats *models.ContributorStats) *baseline {
	if stats == nil || !stats.FilesChanged.HasBaseline() {
		return nil
	}
	return &baseline{
		mean:   stats.FilesChanged.Mean,
		stddev: stats.FilesChanged.StdDev(),
	}
}

func linesRepoMean(stats *models.RepositoryStats) float64 {
	if stats == nil || !stats.LinesAdded.HasBaseline() {
		return 0
	}
	return stats.LinesAdded.Mean + stats.LinesDeleted.Mean
}

func filesRepoMean(stats *models.RepositoryStats) float64 {
	if stats == nil || !stats.FilesChanged.HasBaseline() {
		return 0
	}
	return stats.FilesChanged.Mean
}

// evaluateSizeMetric applies the three threshold modes shared by the
// lines-changed and files-changed metrics.
func (e *Evaluator) evaluateSizeMetric(metric string, mc MetricConfig, actual float64, contrib *baseline, repoMean float64, add func(string, string, float64, float64, string)) {
	if mc.Threshold != nil && actual > *mc.Threshold {
		add(metric, ModeHardcoded, *mc.Threshold, actual,
			fmt.Sprintf("%s of %.0f exceeds fixed threshold %.0f", metric, actual, *mc.Threshold))
	}

	if mc.ContributorVariance != nil && contrib != nil {
		threshold := contrib.mean + *mc.ContributorVariance*contrib.stddev
		if actual > threshold {
			add(metric, ModeContributor, threshold, actual,
				fmt.Sprintf("%s of %.0f exceeds contributor baseline %.1f (mean %.1f + %.1fx stddev)",
					metric, actual, threshold, contrib.mean, *mc.ContributorVariance))
		}
	}

	if mc.RepositoryMultiplier != nil && repoMean > 0 {
		threshold := repoMean * *mc.RepositoryMultiplier
		if actual > threshold {
			add(metric, ModeRepository, threshold, actual,
				fmt.Sprintf("%s of %.0f exceeds %.1fx the repository mean %.1f",
					metric, actual, *mc.RepositoryMultiplier, repoMean))
		}
	}
}

// evaluateChurn checks lines-per-file ratio thresholds. Only called when
// the commit touches at least one file.
func (e *Evaluator) evaluateChurn(mc MetricConfig, commit models.CommitRecord, repoStats *models.RepositoryStats, add func(string, string, float64, float64, string)) {
	ratio := float64(commit.TotalLines()) / float64(len(commit.FilesChanged))

	if mc.Threshold != nil && ratio > *mc.Threshold {
		add(MetricHighChurn, ModeHardcoded, *mc.Threshold, ratio,
			fmt.Sprintf("churn ratio %.1f lines/file exceeds fixed threshold %.1f", ratio, *mc.Threshold))
	}

	if mc.RepositoryMultiplier != nil && repoStats != nil && repoStats.FilesChanged.HasBaseline() && repoStats.FilesChanged.Mean > 0 {
		repoRatio := (repoStats.LinesAdded.Mean + repoStats.LinesDeleted.Mean) / repoStats.FilesChanged.Mean
		threshold := repoRatio * *mc.RepositoryMultiplier
		if threshold > 0 && ratio > threshold {
			add(MetricHighChurn, ModeRepository, threshold, ratio,
				fmt.Sprintf("churn ratio %.1f lines/file exceeds %.1fx the repository ratio %.1f",
					ratio, *mc.RepositoryMultiplier, repoRatio))
		}
	}
}

// evaluateTiming flags commits landing outside the contributor's usual
// active hours, or (percentage variant) in an hour holding less than the
// configured share of their commits.
func (e *Evaluator) evaluateTiming(mc MetricConfig, commit models.CommitRecord, stats *models.ContributorStats, add func(string, string, float64, float64, string)) {
	if stats == nil || stats.CommitCount == 0 {
		return
	}

	hour := commit.Timestamp.Hour()

	minActive, maxActive, found := activeHourRange(stats.HourHistogram)
	if found {
		low := minActive - e.hourTolerance
		high := maxActive + e.hourTolerance
		if hour < low || hour > high {
			add(MetricUnusualActivity, ModeHourRange, float64(e.hourTolerance), float64(hour),
				fmt.Sprintf("commit at hour %d is outside the contributor's active range %d-%d (tolerance %d)",
					hour, minActive, maxActive, e.hourTolerance))
		}
	}

	if mc.MinHourPercentage != nil {
		fraction := float64(stats.HourHistogram[hour]) / float64(stats.CommitCount) * 100
		if fraction < *mc.MinHourPercentage {
			add(MetricUnusualActivity, ModeHourFraction, *mc.MinHourPercentage, fraction,
				fmt.Sprintf("only %.1f%% of the contributor's commits occur at hour %d (minimum %.1f%%)",
					fraction, hour, *mc.MinHourPercentage))
		}
	}
}

// activeHourRange returns the lowest and highest hours with any commits.
func activeHourRange(histogram [24]int64) (int, int, bool) {
	minActive, maxActive := -1, -1
	for hour, count := range histogram {
		if count == 0 {
			continue
		}
		if minActive == -1 {
			minActive = hour
		}
		maxActive = hour
	}
	if minActive == -1 {
		return 0, 0, false
	}
	return minActive, maxActive, true
}
