// Package pipeline orchestrates a full analysis run: fetch history, fold
// running statistics, classify anomalies, evaluate alerts, and compute the
// repository-level bus factor and activity scores.
package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/commitwatch/commitwatch-go/internal/activity"
	"github.com/commitwatch/commitwatch-go/internal/alerts"
	"github.com/commitwatch/commitwatch-go/internal/anomaly"
	"github.com/commitwatch/commitwatch-go/internal/botfilter"
	"github.com/commitwatch/commitwatch-go/internal/busfactor"
	"github.com/commitwatch/commitwatch-go/internal/cache"
	"github.com/commitwatch/commitwatch-go/internal/logging"
	"github.com/commitwatch/commitwatch-go/internal/models"
	"github.com/commitwatch/commitwatch-go/internal/stats"
	"github.com/commitwatch/commitwatch-go/internal/storage"
)

// HistorySource produces a repository's commit history oldest-first.
// since is the last commit already processed, or empty for full history.
type HistorySource interface {
	Commits(ctx context.Context, repoID, since string) ([]models.CommitRecord, error)
}

// CommitAnomaly pairs a commit with its classification.
type CommitAnomaly struct {
	Commit models.CommitRecord  `json:"commit"`
	Result models.AnomalyResult `json:"result"`
}

// Report summarizes one analysis run.
type Report struct {
	RepoID     string                 `json:"repo_id"`
	NewCommits int                    `json:"new_commits"`
	Anomalies  []CommitAnomaly        `json:"anomalies"`
	Alerts     []models.AlertEvent    `json:"alerts"`
	BusFactor  models.BusFactorResult `json:"bus_factor"`
	Activity   models.ActivityScore   `json:"activity"`
	StartedAt  time.Time              `json:"started_at"`
	FinishedAt time.Time              `json:"finished_at"`
}

// Pipeline wires the analysis stages together over a shared store.
type Pipeline struct {
	store      storage.Store
	source     HistorySource
	filter     *botfilter.Filter
	detector   *anomaly.Detector
	evaluator  *alerts.Evaluator
	busEngine  *busfactor.Engine
	results    *cache.Cache // optional, may be nil
	workers    int
	windowDays int
	logger     *slog.Logger
}

// Options configures a pipeline run.
type Options struct {
	Workers            int // concurrent anomaly classifications, default 4
	ActivityWindowDays int // trailing window for activity scoring, default 90
}

// New assembles a pipeline. The result cache may be nil to disable commit
// deduplication across runs.
func New(store storage.Store, source HistorySource, filter *botfilter.Filter,
	detector *anomaly.Detector, evaluator *alerts.Evaluator, results *cache.Cache, opts Options) *Pipeline {

	workers := opts.Workers
	if workers <= 0 {
		workers = 4
	}
	windowDays := opts.ActivityWindowDays
	if windowDays <= 0 {
		windowDays = activity.WindowDays
	}

	return &Pipeline{
		store:      store,
		source:     source,
		filter:     filter,
		detector:   detector,
		evaluator:  evaluator,
		busEngine:  busfactor.New(filter, statsSource{store}),
		results:    results,
		workers:    workers,
		windowDays: windowDays,
		logger:     logging.ForComponent("pipeline"),
	}
}

// Close releases the result cache, if one is attached. The store is owned
// by the caller.
func (p *Pipeline) Close() error {
	if p.results == nil {
		return nil
	}
	return p.results.Close()
}

// Run analyzes new history for a repository and persists everything it
// derives. Per-commit failures are logged and skipped; Run fails only when
// the history source or the store is unusable.
func (p *Pipeline) Run(ctx context.Context, repoID, userID string) (*Report, error) {
	report := &Report{RepoID: repoID, StartedAt: time.Now().UTC()}

	since, err := p.store.GetLastSHA(ctx, repoID)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return nil, err
	}

	commits, err := p.source.Commits(ctx, repoID, since)
	if err != nil {
		return nil, err
	}
	report.NewCommits = len(commits)

	repoStats, contributors, err := p.foldStats(ctx, repoID, commits)
	if err != nil {
		return nil, err
	}

	alertCfg := p.loadAlertConfig(ctx, repoID, userID)

	anomalies := p.classifyCommits(ctx, repoID, commits, repoStats, contributors)
	report.Anomalies = anomalies

	for _, a := range anomalies {
		result := a.Result
		if result.IsAnomalous {
			if err := p.store.SaveAnomaly(ctx, repoID, a.Commit.SHA, &result); err != nil {
				p.logger.Warn("failed to persist anomaly result",
					"sha", a.Commit.SHA, "error", err)
			}
		}

		events := p.evaluator.Evaluate(ctx, repoID, userID, a.Commit, alertCfg,
			repoStats, contributors[strings.ToLower(a.Commit.Email)], &result)
		report.Alerts = append(report.Alerts, events...)
	}

	if len(report.Alerts) > 0 {
		if err := p.store.SaveAlerts(ctx, report.Alerts); err != nil {
			p.logger.Warn("failed to persist alerts", "error", err)
		}
	}

	report.BusFactor = p.busEngine.Compute(ctx, repoID, commits)
	if err := p.store.SaveBusFactor(ctx, repoID, &report.BusFactor); err != nil {
		p.logger.Warn("failed to persist bus factor", "error", err)
	}

	report.Activity = activity.ScoreWindow(commits, p.windowDays, time.Now())
	if err := p.store.SaveActivityScore(ctx, repoID, &report.Activity); err != nil {
		p.logger.Warn("failed to persist activity score", "error", err)
	}

	if len(commits) > 0 {
		last := commits[len(commits)-1].SHA
		if err := p.store.SaveLastSHA(ctx, repoID, last); err != nil {
			p.logger.Warn("failed to persist sync marker", "sha", last, "error", err)
		}
	}

	report.FinishedAt = time.Now().UTC()
	return report, nil
}

// foldStats folds the new commits into the persisted running statistics.
// Only bot commits are excluded; merge and trivial commits still count
// toward the baselines. Contributors are keyed by lowercased email so the
// stored statistics line up with later lookups.
func (p *Pipeline) foldStats(ctx context.Context, repoID string, commits []models.CommitRecord) (*models.RepositoryStats, map[string]*models.ContributorStats, error) {
	repoStats, err := p.store.GetRepositoryStats(ctx, repoID)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			return nil, nil, err
		}
		repoStats = &models.RepositoryStats{RepoID: repoID}
	}

	contributors := make(map[string]*models.ContributorStats)

	for _, c := range commits {
		if p.filter.IsBot(c) {
			continue
		}

		email := strings.ToLower(c.Email)
		prior, ok := contributors[email]
		if !ok {
			loaded, err := p.store.GetContributorStats(ctx, repoID, email)
			if err != nil {
				if !errors.Is(err, storage.ErrNotFound) {
					return nil, nil, err
				}
				loaded = &models.ContributorStats{RepoID: repoID, Email: email, Name: c.Author}
			}
			prior = loaded
		}

		updated := stats.UpdateContributor(*prior, c)
		contributors[email] = &updated

		newRepo := stats.UpdateRepository(*repoStats, c)
		repoStats = &newRepo
	}

	for _, cs := range contributors {
		if err := p.store.SaveContributorStats(ctx, cs); err != nil {
			p.logger.Warn("failed to persist contributor stats",
				"email", cs.Email, "error", err)
		}
	}
	if err := p.store.SaveRepositoryStats(ctx, repoStats); err != nil {
		p.logger.Warn("failed to persist repository stats", "error", err)
	}

	return repoStats, contributors, nil
}

// classifyCommits runs anomaly detection across commits with bounded
// concurrency, consulting the result cache first.
func (p *Pipeline) classifyCommits(ctx context.Context, repoID string, commits []models.CommitRecord,
	repoStats *models.RepositoryStats, contributors map[string]*models.ContributorStats) []CommitAnomaly {

	out := make([]CommitAnomaly, len(commits))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.workers)

	for i, c := range commits {
		i, c := i, c
		g.Go(func() error {
			result, cached := p.cachedResult(repoID, c.SHA)
			if !cached {
				result = p.detector.Analyze(gctx, c, contributors[strings.ToLower(c.Email)], repoStats)
				p.storeResult(repoID, c.SHA, result)
			}

			mu.Lock()
			out[i] = CommitAnomaly{Commit: c, Result: result}
			mu.Unlock()
			return nil
		})
	}
	// Workers never return errors; Wait only surfaces context cancellation.
	if err := g.Wait(); err != nil {
		p.logger.Warn("anomaly classification interrupted", "error", err)
	}

	return out
}

func (p *Pipeline) cachedResult(repoID, sha string) (models.AnomalyResult, bool) {
	if p.results == nil {
		return models.AnomalyResult{}, false
	}
	result, ok, err := p.results.Get(repoID, sha)
	if err != nil {
		p.logger.Warn("result cache read failed", "sha", sha, "error", err)
		return models.AnomalyResult{}, false
	}
	if !ok {
		return models.AnomalyResult{}, false
	}
	return *result, true
}

func (p *Pipeline) storeResult(repoID, sha string, result models.AnomalyResult) {
	if p.results == nil {
		return
	}
	if err := p.results.Put(repoID, sha, result); err != nil {
		p.logger.Warn("result cache write failed", "sha", sha, "error", err)
	}
}

// loadAlertConfig fetches the user's threshold configuration. A missing or
// malformed configuration yields an empty config, which fires no alerts.
func (p *Pipeline) loadAlertConfig(ctx context.Context, repoID, userID string) alerts.Config {
	raw, err := p.store.GetAlertConfig(ctx, repoID, userID)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			p.logger.Warn("failed to load alert config", "error", err)
		}
		return alerts.Config{}
	}
	return alerts.ParseConfig(raw)
}

// statsSource adapts the store to the bus factor engine's lookup interface.
type statsSource struct {
	store storage.Store
}

func (s statsSource) ContributorStats(ctx context.Context, repoID, email string) (*models.ContributorStats, error) {
	return s.store.GetContributorStats(ctx, repoID, email)
}
