package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/commitwatch/commitwatch-go/internal/models"
)

func openTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)

	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"), logger)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestContributorStatsRoundTrip(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	stats := &models.ContributorStats{
		RepoID:      "org/repo",
		Email:       "dana@example.com",
		Name:        "Dana",
		CommitCount: 12,
		LinesAdded:  models.RunningStat{Count: 12, Mean: 40.5, M2: 300},
	}
	stats.HourHistogram[14] = 9

	require.NoError(t, store.SaveContributorStats(ctx, stats))

	got, err := store.GetContributorStats(ctx, "org/repo", "dana@example.com")
	require.NoError(t, err)
	require.Equal(t, stats.CommitCount, got.CommitCount)
	require.Equal(t, stats.LinesAdded, got.LinesAdded)
	require.Equal(t, int64(9), got.HourHistogram[14])
}

func TestContributorStatsUpsert(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	stats := &models.ContributorStats{RepoID: "org/repo", Email: "dana@example.com", CommitCount: 1}
	require.NoError(t, store.SaveContributorStats(ctx, stats))

	stats.CommitCount = 2
	require.NoError(t, store.SaveContributorStats(ctx, stats))

	got, err := store.GetContributorStats(ctx, "org/repo", "dana@example.com")
	require.NoError(t, err)
	require.Equal(t, int64(2), got.CommitCount)
}

func TestGetContributorStatsNotFound(t *testing.T) {
	store := openTestStore(t)

	_, err := store.GetContributorStats(context.Background(), "org/repo", "nobody@example.com")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestListContributorStats(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	for _, email := range []string{"b@example.com", "a@example.com"} {
		require.NoError(t, store.SaveContributorStats(ctx, &models.ContributorStats{
			RepoID: "org/repo", Email: email,
		}))
	}
	require.NoError(t, store.SaveContributorStats(ctx, &models.ContributorStats{
		RepoID: "org/other", Email: "x@example.com",
	}))

	got, err := store.ListContributorStats(ctx, "org/repo")
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, "a@example.com", got[0].Email)
}

func TestRepositoryStatsRoundTrip(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	stats := &models.RepositoryStats{
		RepoID:      "org/repo",
		CommitCount: 100,
		LinesAdded:  models.RunningStat{Count: 100, Mean: 55, M2: 1234.5},
	}
	require.NoError(t, store.SaveRepositoryStats(ctx, stats))

	got, err := store.GetRepositoryStats(ctx, "org/repo")
	require.NoError(t, err)
	require.Equal(t, stats.LinesAdded, got.LinesAdded)

	_, err = store.GetRepositoryStats(ctx, "org/unknown")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestBusFactorRoundTrip(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	result := &models.BusFactorResult{
		BusFactor:         2,
		TotalContributors: 5,
		TotalCommits:      200,
		RiskLevel:         models.BusRiskHigh,
		RiskReason:        "high concentration",
		TopContributors: []models.ContributorSummary{
			{Author: "Dana", Email: "dana@example.com", TotalCommits: 120},
		},
		AnalysisDate: time.Now().UTC(),
	}
	require.NoError(t, store.SaveBusFactor(ctx, "org/repo", result))

	got, err := store.GetBusFactor(ctx, "org/repo")
	require.NoError(t, err)
	require.Equal(t, result.BusFactor, got.BusFactor)
	require.Equal(t, result.RiskLevel, got.RiskLevel)
	require.Len(t, got.TopContributors, 1)
}

func TestActivityScoreRoundTrip(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	score := &models.ActivityScore{
		Score:      72,
		Level:      models.ActivityHigh,
		WindowDays: 90,
	}
	score.Heatmap[0][9] = 4

	require.NoError(t, store.SaveActivityScore(ctx, "org/repo", score))

	got, err := store.GetActivityScore(ctx, "org/repo")
	require.NoError(t, err)
	require.Equal(t, 72, got.Score)
	require.Equal(t, 4, got.Heatmap[0][9])
}

func TestSaveAnomaly(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	result := &models.AnomalyResult{
		IsAnomalous: true,
		Confidence:  0.8,
		RiskLevel:   models.AnomalyRiskHigh,
	}
	require.NoError(t, store.SaveAnomaly(ctx, "org/repo", "abc123", result))
	// Re-saving the same commit upserts instead of erroring.
	require.NoError(t, store.SaveAnomaly(ctx, "org/repo", "abc123", result))
}

func TestAlertsAndConfigRoundTrip(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	raw := []byte(`{"lines_added_deleted": {"enabled": true, "threshold": 1000}}`)
	require.NoError(t, store.SaveAlertConfig(ctx, "org/repo", "u1", raw))

	got, err := store.GetAlertConfig(ctx, "org/repo", "u1")
	require.NoError(t, err)
	require.JSONEq(t, string(raw), string(got))

	_, err = store.GetAlertConfig(ctx, "org/repo", "other")
	require.ErrorIs(t, err, ErrNotFound)

	alerts := []models.AlertEvent{
		{
			ID:        "alert-1",
			RepoID:    "org/repo",
			UserID:    "u1",
			CommitSHA: "abc123",
			Metric:    "lines_added_deleted",
			Mode:      "hardcoded",
			Threshold: 1000,
			Actual:    1500,
			Commit:    models.CommitRecord{SHA: "abc123", Email: "dana@example.com"},
			CreatedAt: time.Now().UTC(),
		},
	}
	require.NoError(t, store.SaveAlerts(ctx, alerts))
	// Duplicate IDs are ignored, not an error.
	require.NoError(t, store.SaveAlerts(ctx, alerts))
}

func TestSyncStateRoundTrip(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	_, err := store.GetLastSHA(ctx, "org/repo")
	require.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, store.SaveLastSHA(ctx, "org/repo", "abc123"))
	require.NoError(t, store.SaveLastSHA(ctx, "org/repo", "def456"))

	sha, err := store.GetLastSHA(ctx, "org/repo")
	require.NoError(t, err)
	require.Equal(t, "def456", sha)
}
