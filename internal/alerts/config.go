// Package alerts evaluates per-user alert threshold configurations against
// incoming commits. Configurations arrive as stored JSON blobs; anything
// malformed fails closed to "no alerts configured".
package alerts

import (
	"encoding/json"
	"log/slog"
)

// Recognized metric names. Unknown names in a config are dropped.
const (
	MetricLinesAddedDeleted = "lines_added_deleted"
	MetricFilesChanged      = "files_changed"
	MetricHighChurn         = "high_churn"
	MetricUnusualActivity   = "unusual_author_activity"
	MetricAIAnomaly         = "ai_powered_anomaly_detection"

	// legacyTimestampMetric is an older name for the timing metric still
	// found in stored configs.
	legacyTimestampMetric = "suspicious_author_timestamps"
)

// Threshold modes reported on fired alerts.
const (
	ModeHardcoded    = "hardcoded"
	ModeContributor  = "contributor_relative"
	ModeRepository   = "repository_relative"
	ModeHourRange    = "hour_range"
	ModeHourFraction = "hour_fraction"
	ModeAIAnomaly    = "ai_anomaly"
)

// MetricConfig configures one metric. Each non-nil parameter enables the
// corresponding threshold mode; a single commit can fire one alert per
// exceeded mode.
type MetricConfig struct {
	Enabled bool `json:"enabled"`

	// Threshold is the fixed numeric threshold (hardcoded mode).
	Threshold *float64 `json:"threshold,omitempty"`

	// ContributorVariance multiplies the contributor's combined stddev
	// (contributor-relative mode).
	ContributorVariance *float64 `json:"contributor_variance,omitempty"`

	// RepositoryMultiplier multiplies the repository mean
	// (repository-relative mode).
	RepositoryMultiplier *float64 `json:"repository_multiplier,omitempty"`

	// MinHourPercentage fires the timing metric when the fraction of the
	// contributor's commits in the commit's exact hour is below this
	// percentage (0-100).
	MinHourPercentage *float64 `json:"min_hour_percentage,omitempty"`
}

// Config is a user's alert configuration: recognized metric names mapped to
// their settings.
type Config map[string]MetricConfig

// recognizedMetrics maps accepted config keys to their canonical names.
var recognizedMetrics = map[string]string{
	MetricLinesAddedDeleted: MetricLinesAddedDeleted,
	MetricFilesChanged:      MetricFilesChanged,
	MetricHighChurn:         MetricHighChurn,
	MetricUnusualActivity:   MetricUnusualActivity,
	legacyTimestampMetric:   MetricUnusualActivity,
	MetricAIAnomaly:         MetricAIAnomaly,
}

// ParseConfig decodes a stored JSON blob into a Config. Malformed JSON, or
// a blob of the wrong shape, resolves to an empty config rather than an
// error; unknown metric names are silently dropped.
func ParseConfig(raw []byte) Config {
	if len(raw) == 0 {
		return Config{}
	}

	var decoded map[string]MetricConfig
	if err := json.Unmarshal(raw, &decoded); err != nil {
		slog.Default().Warn("malformed alert config, treating as no alerts", "error", err)
		return Config{}
	}

	cfg := Config{}
	for name, metric := range decoded {
		canonical, ok := recognizedMetrics[name]
		if !ok {
			slog.Default().Debug("ignoring unrecognized alert metric", "metric", name)
			continue
		}
		cfg[canonical] = metric
	}
	return cfg
}
