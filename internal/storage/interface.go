package storage

import (
	"context"
	"errors"

	"github.com/commitwatch/commitwatch-go/internal/models"
)

// Common errors
var (
	ErrNotFound = errors.New("not found")
)

// Store defines the storage interface
type Store interface {
	// Running statistics
	SaveContributorStats(ctx context.Context, stats *models.ContributorStats) error
	GetContributorStats(ctx context.Context, repoID, email string) (*models.ContributorStats, error)
	ListContributorStats(ctx context.Context, repoID string) ([]*models.ContributorStats, error)
	SaveRepositoryStats(ctx context.Context, stats *models.RepositoryStats) error
	GetRepositoryStats(ctx context.Context, repoID string) (*models.RepositoryStats, error)

	// Anomaly results
	SaveAnomaly(ctx context.Context, repoID, sha string, result *models.AnomalyResult) error

	// Bus factor
	SaveBusFactor(ctx context.Context, repoID string, result *models.BusFactorResult) error
	GetBusFactor(ctx context.Context, repoID string) (*models.BusFactorResult, error)

	// Activity scoring
	SaveActivityScore(ctx context.Context, repoID string, score *models.ActivityScore) error
	GetActivityScore(ctx context.Context, repoID string) (*models.ActivityScore, error)

	// Alerts
	SaveAlerts(ctx context.Context, alerts []models.AlertEvent) error
	GetAlertConfig(ctx context.Context, repoID, userID string) ([]byte, error)
	SaveAlertConfig(ctx context.Context, repoID, userID string, raw []byte) error

	// Incremental sync marker: the last commit already folded into the
	// running statistics for a repository.
	GetLastSHA(ctx context.Context, repoID string) (string, error)
	SaveLastSHA(ctx context.Context, repoID, sha string) error

	// Close connection
	Close() error
}
