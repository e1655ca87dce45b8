package models

import (
	"math"
	"time"
)

// CommitRecord is the canonical in-memory representation of a single commit.
// Produced by a history source; immutable once constructed.
type CommitRecord struct {
	SHA          string    `json:"sha" db:"sha"`
	Author       string    `json:"author" db:"author"`
	Email        string    `json:"email" db:"email"`
	Timestamp    time.Time `json:"timestamp" db:"timestamp"`
	Message      string    `json:"message" db:"message"`
	LinesAdded   int       `json:"lines_added" db:"lines_added"`
	LinesDeleted int       `json:"lines_deleted" db:"lines_deleted"`
	FilesChanged []string  `json:"files_changed"`
}

// TotalLines returns the total lines changed (added + deleted).
func (c CommitRecord) TotalLines() int {
	return c.LinesAdded + c.LinesDeleted
}

// RunningStat holds incrementally maintained population statistics for one
// metric. M2 is the running sum of squared deviations (Welford), so stddev
// never requires a second pass over history.
type RunningStat struct {
	Count int64   `json:"count"`
	Mean  float64 `json:"mean"`
	M2    float64 `json:"m2"`
}

// HasBaseline reports whether enough history exists to use Mean/StdDev.
// With Count == 0 the zero values mean "no data", not a literal zero baseline.
func (r RunningStat) HasBaseline() bool {
	return r.Count > 0
}

// StdDev returns the population standard deviation.
func (r RunningStat) StdDev() float64 {
	if r.Count == 0 {
		return 0
	}
	return math.Sqrt(r.M2 / float64(r.Count))
}

// ContributorStats aggregates per-contributor commit behavior for one
// repository. Keyed by (RepoID, Email). Updated once per qualifying
// (non-bot) commit by the stats engine; never deleted.
type ContributorStats struct {
	RepoID        string      `json:"repo_id"`
	Email         string      `json:"email"`
	Name          string      `json:"name"`
	CommitCount   int64       `json:"commit_count"`
	LinesAdded    RunningStat `json:"lines_added"`
	LinesDeleted  RunningStat `json:"lines_deleted"`
	FilesChanged  RunningStat `json:"files_changed"`
	HourHistogram [24]int64   `json:"hour_histogram"`
	LastCommit    time.Time   `json:"last_commit"`
}

// RepositoryStats has the same shape as ContributorStats but aggregates
// across all contributors of a repository.
type RepositoryStats struct {
	RepoID        string      `json:"repo_id"`
	CommitCount   int64       `json:"commit_count"`
	LinesAdded    RunningStat `json:"lines_added"`
	LinesDeleted  RunningStat `json:"lines_deleted"`
	FilesChanged  RunningStat `json:"files_changed"`
	HourHistogram [24]int64   `json:"hour_histogram"`
	LastCommit    time.Time   `json:"last_commit"`
}

// AnomalyRiskLevel classifies the severity of a detected anomaly.
type AnomalyRiskLevel string

const (
	AnomalyRiskLow      AnomalyRiskLevel = "low"
	AnomalyRiskModerate AnomalyRiskLevel = "moderate"
	AnomalyRiskHigh     AnomalyRiskLevel = "high"
	AnomalyRiskCritical AnomalyRiskLevel = "critical"
)

// Valid reports whether the level is one of the recognized values.
func (r AnomalyRiskLevel) Valid() bool {
	switch r {
	case AnomalyRiskLow, AnomalyRiskModerate, AnomalyRiskHigh, AnomalyRiskCritical:
		return true
	}
	return false
}

// AnomalyResult is the outcome of analyzing one commit for anomalies.
// Persisted only when IsAnomalous is true.
type AnomalyResult struct {
	IsAnomalous       bool             `json:"is_anomalous"`
	Confidence        float64          `json:"confidence"`
	RiskLevel         AnomalyRiskLevel `json:"risk_level"`
	Reasoning         string           `json:"reasoning"`
	SuspiciousFactors []string         `json:"suspicious_factors"`
}

// BusRiskLevel classifies contributor-concentration risk.
type BusRiskLevel string

const (
	BusRiskLow      BusRiskLevel = "LOW"
	BusRiskMedium   BusRiskLevel = "MEDIUM"
	BusRiskHigh     BusRiskLevel = "HIGH"
	BusRiskCritical BusRiskLevel = "CRITICAL"
)

// ContributorSummary describes one of the top contributors in a bus-factor
// analysis.
type ContributorSummary struct {
	Author               string    `json:"author"`
	Email                string    `json:"email"`
	TotalCommits         int       `json:"total_commits"`
	TotalLinesAdded      int       `json:"total_lines_added"`
	TotalLinesDeleted    int       `json:"total_lines_deleted"`
	TotalFilesChanged    int       `json:"total_files_changed"`
	FirstCommit          time.Time `json:"first_commit"`
	LastCommit           time.Time `json:"last_commit"`
	ContributionSpanDays int       `json:"contribution_span_days"`
}

// BusFactorResult is the output of a bus-factor analysis run. Recomputed
// wholesale on each run; bot commits are excluded before aggregation.
type BusFactorResult struct {
	BusFactor         int                  `json:"bus_factor"`
	TotalContributors int                  `json:"total_contributors"`
	TotalCommits      int                  `json:"total_commits"`
	TopContributors   []ContributorSummary `json:"top_contributors"`
	RiskLevel         BusRiskLevel         `json:"risk_level"`
	RiskReason        string               `json:"risk_reason"`
	AnalysisDate      time.Time            `json:"analysis_date"`
}

// ActivityLevel buckets an activity score via fixed breakpoints (80/60/40).
type ActivityLevel string

const (
	ActivityLow      ActivityLevel = "LOW"
	ActivityModerate ActivityLevel = "MODERATE"
	ActivityHigh     ActivityLevel = "HIGH"
	ActivityVeryHigh ActivityLevel = "VERY_HIGH"
)

// ActivityFactors holds the four weighted sub-scores, each in [0, 25].
type ActivityFactors struct {
	CommitFrequency        float64 `json:"commit_frequency"`
	ContributorDiversity   float64 `json:"contributor_diversity"`
	CodeChurn              float64 `json:"code_churn"`
	DevelopmentConsistency float64 `json:"development_consistency"`
}

// HeatmapCell identifies a (day, hour) bucket in the commit-time heatmap.
// Day is Monday-indexed (0 = Monday).
type HeatmapCell struct {
	Day   int `json:"day"`
	Hour  int `json:"hour"`
	Count int `json:"count"`
}

// ActivityScore is an aggregate 0-100 activity assessment over the trailing
// 90-day window, plus a commit-time heatmap over the full input.
type ActivityScore struct {
	Score        int             `json:"score"`
	Level        ActivityLevel   `json:"level"`
	Factors      ActivityFactors `json:"factors"`
	Heatmap      [7][24]int      `json:"heatmap"`
	PeakActivity HeatmapCell     `json:"peak_activity"`
	WindowDays   int             `json:"window_days"`
	ComputedAt   time.Time       `json:"computed_at"`
}

// AlertEvent records one fired alert: which metric and threshold mode
// triggered, the values involved, and the full commit context for audit.
type AlertEvent struct {
	ID          string       `json:"id" db:"id"`
	RepoID      string       `json:"repo_id" db:"repo_id"`
	UserID      string       `json:"user_id" db:"user_id"`
	CommitSHA   string       `json:"commit_sha" db:"commit_sha"`
	Metric      string       `json:"metric" db:"metric"`
	Mode        string       `json:"mode" db:"mode"`
	Threshold   float64      `json:"threshold" db:"threshold"`
	Actual      float64      `json:"actual" db:"actual"`
	Description string       `json:"description" db:"description"`
	Commit      CommitRecord `json:"commit"`
	CreatedAt   time.Time    `json:"created_at" db:"created_at"`
}
