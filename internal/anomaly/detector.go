// Package anomaly implements multi-stage commit anomaly detection: cheap
// rejects first (bot, merge, trivial size, within statistical baseline),
// then natural-language classification through an external text-generation
// collaborator. Detection never returns an error to its caller; every
// failure path degrades to a safe, non-anomalous default.
package anomaly

import (
	"context"
	"log/slog"
	"math"

	"github.com/commitwatch/commitwatch-go/internal/botfilter"
	"github.com/commitwatch/commitwatch-go/internal/llm"
	"github.com/commitwatch/commitwatch-go/internal/models"
)

// Stage-reject confidences.
const (
	botConfidence     = 1.0
	mergeConfidence   = 0.9
	trivialConfidence = 0.9
	inRangeConfidence = 0.8
	failedConfidence  = 0.5
)

// Options tunes the detector's statistical stages.
type Options struct {
	// DeviationMultiplier scales the contributor stddev for the in-range
	// check. Zero means the default of 2.
	DeviationMultiplier float64
	// HourTolerance widens the contributor's common-hours window when
	// describing timing to the classifier. Zero means the default of 2.
	HourTolerance int
}

// Detector runs the staged analysis pipeline over single commits.
type Detector struct {
	filter    *botfilter.Filter
	generator llm.Generator
	logger    *slog.Logger
	opts      Options
}

// New creates a detector. generator may be nil, in which case deep
// classification is unavailable and borderline commits resolve through the
// failure default.
func New(filter *botfilter.Filter, generator llm.Generator, opts Options) *Detector {
	if opts.DeviationMultiplier <= 0 {
		opts.DeviationMultiplier = 2.0
	}
	if opts.HourTolerance <= 0 {
		opts.HourTolerance = 2
	}
	return &Detector{
		filter:    filter,
		generator: generator,
		logger:    slog.Default().With("component", "anomaly"),
		opts:      opts,
	}
}

// Analyze classifies one commit. contributor and repo may be nil when no
// baseline exists yet. The result is always usable; Analyze never panics
// and never returns an error.
func (d *Detector) Analyze(ctx context.Context, commit models.CommitRecord, contributor *models.ContributorStats, repo *models.RepositoryStats) (result models.AnomalyResult) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("anomaly analysis panicked", "sha", commit.SHA, "panic", r)
			result = failedResult()
		}
	}()

	// Stage 1: bot/merge reject.
	cls := d.filter.Classify(commit)
	if cls.IsBot {
		return models.AnomalyResult{
			IsAnomalous:       false,
			Confidence:        botConfidence,
			RiskLevel:         models.AnomalyRiskLow,
			Reasoning:         "automated commit from a known bot account",
			SuspiciousFactors: []string{},
		}
	}
	if cls.IsMerge {
		return models.AnomalyResult{
			IsAnomalous:       false,
			Confidence:        mergeConfidence,
			RiskLevel:         models.AnomalyRiskLow,
			Reasoning:         "merge commit, not a direct change",
			SuspiciousFactors: []string{},
		}
	}

	// Stage 2: trivial-size reject.
	if cls.IsTrivial {
		return models.AnomalyResult{
			IsAnomalous:       false,
			Confidence:        trivialConfidence,
			RiskLevel:         models.AnomalyRiskLow,
			Reasoning:         "small commit, below the analysis floor",
			SuspiciousFactors: []string{},
		}
	}

	// Stage 3: in-range reject. The contributor and repository checks are
	// independent early exits; the contributor check runs first, and a
	// commit that clears neither band proceeds to deep classification.
	totalLines := float64(commit.TotalLines())
	if contributor != nil && contributor.LinesAdded.HasBaseline() {
		mean := contributor.LinesAdded.Mean + contributor.LinesDeleted.Mean
		stddev := combinedStdDev(contributor.LinesAdded, contributor.LinesDeleted)
		if totalLines <= mean+d.opts.DeviationMultiplier*stddev {
			return models.AnomalyResult{
				IsAnomalous:       false,
				Confidence:        inRangeConfidence,
				RiskLevel:         models.AnomalyRiskLow,
				Reasoning:         "within normal range for this contributor",
				SuspiciousFactors: []string{},
			}
		}
	}
	if repo != nil && repo.LinesAdded.HasBaseline() {
		repoMean := repo.LinesAdded.Mean + repo.LinesDeleted.Mean
		if totalLines <= repoMean {
			return models.AnomalyResult{
				IsAnomalous:       false,
				Confidence:        inRangeConfidence,
				RiskLevel:         models.AnomalyRiskLow,
				Reasoning:         "within normal range for this repository",
				SuspiciousFactors: []string{},
			}
		}
	}

	// Stage 4: deep classification through the text-generation collaborator.
	if d.generator == nil {
		return failedResult()
	}

	prompt := d.buildPrompt(commit, contributor, repo)
	response, err := d.generator.Generate(ctx, prompt)
	if err != nil {
		d.logger.Warn("llm classification unavailable", "sha", commit.SHA, "error", err)
		return failedResult()
	}

	return d.parseResponse(response)
}

// combinedStdDev combines two independent running stddevs via variance sum.
func combinedStdDev(a, b models.RunningStat) float64 {
	sa := a.StdDev()
	sb := b.StdDev()
	return math.Sqrt(sa*sa + sb*sb)
}

// failedResult is the safe default for any failure in the pipeline:
// non-anomalous at half confidence, so ingestion continues unflagged.
func failedResult() models.AnomalyResult {
	return models.AnomalyResult{
		IsAnomalous:       false,
		Confidence:        failedConfidence,
		RiskLevel:         models.AnomalyRiskLow,
		Reasoning:         "analysis failed",
		SuspiciousFactors: []string{},
	}
}
