package main

import (
	"fmt"

	"github.com/commitwatch/commitwatch-go/internal/alerts"
	"github.com/commitwatch/commitwatch-go/internal/anomaly"
	"github.com/commitwatch/commitwatch-go/internal/botfilter"
	"github.com/commitwatch/commitwatch-go/internal/cache"
	"github.com/commitwatch/commitwatch-go/internal/gitlog"
	"github.com/commitwatch/commitwatch-go/internal/github"
	"github.com/commitwatch/commitwatch-go/internal/llm"
	"github.com/commitwatch/commitwatch-go/internal/pipeline"
	"github.com/commitwatch/commitwatch-go/internal/storage"
)

// openStore picks the backend from configuration.
func openStore() (storage.Store, error) {
	switch cfg.Storage.Type {
	case "postgres":
		return storage.NewPostgresStore(cfg.Storage.PostgresDSN, logger)
	case "sqlite", "":
		return storage.NewSQLiteStore(cfg.Storage.LocalPath, logger)
	default:
		return nil, fmt.Errorf("unknown storage type %q", cfg.Storage.Type)
	}
}

// newHistorySource returns a local git source when path is set, otherwise
// the GitHub API source for the owner/name id.
func newHistorySource(path string) pipeline.HistorySource {
	if path != "" {
		return gitlog.NewSource(path)
	}
	return github.NewSource(cfg.GitHub.Token, cfg.GitHub.RateLimit)
}

// loadPatterns returns the configured bot patterns, falling back to the
// built-in defaults. The configured trivial floor overrides the pattern
// set's own value.
func loadPatterns() botfilter.Patterns {
	patterns := botfilter.DefaultPatterns()
	if cfg.Analysis.BotPatternFile != "" {
		loaded, err := botfilter.LoadPatterns(cfg.Analysis.BotPatternFile)
		if err != nil {
			logger.WithError(err).Warn("Failed to load bot patterns, using defaults")
		} else {
			patterns = loaded
		}
	}
	if cfg.Analysis.TrivialFloor > 0 {
		patterns.TrivialFloor = cfg.Analysis.TrivialFloor
	}
	return patterns
}

// buildPipeline assembles the full analysis pipeline from configuration.
func buildPipeline(store storage.Store, path string) (*pipeline.Pipeline, error) {
	filter := botfilter.New(loadPatterns())

	llmClient, err := llm.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("initialize llm client: %w", err)
	}
	var generator llm.Generator
	if llmClient.IsEnabled() {
		generator = llmClient
	} else {
		logger.Warn("No LLM provider configured; deep anomaly classification disabled")
	}

	detector := anomaly.New(filter, generator, anomaly.Options{
		DeviationMultiplier: cfg.Analysis.DeviationMultiplier,
		HourTolerance:       cfg.Analysis.HourTolerance,
	})
	evaluator := alerts.NewEvaluator(detector, cfg.Analysis.HourTolerance)

	var results *cache.Cache
	if cfg.Cache.Path != "" {
		results, err = cache.Open(cfg.Cache.Path)
		if err != nil {
			logger.WithError(err).Warn("Failed to open result cache, continuing without")
			results = nil
		}
	}

	return pipeline.New(store, newHistorySource(path), filter, detector, evaluator, results,
		pipeline.Options{
			Workers:            cfg.Analysis.Workers,
			ActivityWindowDays: cfg.Analysis.ActivityWindowDays,
		}), nil
}
