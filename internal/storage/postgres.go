package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"

	"github.com/commitwatch/commitwatch-go/internal/models"
)

// PostgresStore implements storage using PostgreSQL
type PostgresStore struct {
	db     *sqlx.DB
	logger *logrus.Logger
}

// NewPostgresStore creates a new PostgreSQL storage
func NewPostgresStore(dsn string, logger *logrus.Logger) (*PostgresStore, error) {
	db, err := sqlx.Connect("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}

	// Configure connection pool
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	store := &PostgresStore{
		db:     db,
		logger: logger,
	}

	if err := store.initSchema(); err != nil {
		return nil, fmt.Errorf("init schema: %w", err)
	}

	return store, nil
}

func (s *PostgresStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS contributor_stats (
		repo_id TEXT NOT NULL,
		email TEXT NOT NULL,
		data JSONB NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL,
		PRIMARY KEY (repo_id, email)
	);

	CREATE TABLE IF NOT EXISTS repository_stats (
		repo_id TEXT PRIMARY KEY,
		data JSONB NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	);

	CREATE TABLE IF NOT EXISTS anomaly_results (
		repo_id TEXT NOT NULL,
		commit_sha TEXT NOT NULL,
		is_anomalous BOOLEAN NOT NULL,
		confidence DOUBLE PRECISION NOT NULL,
		risk_level TEXT NOT NULL,
		data JSONB NOT NULL,
		created_at TIMESTAMPTZ NOT NULL,
		PRIMARY KEY (repo_id, commit_sha)
	);

	CREATE TABLE IF NOT EXISTS bus_factor (
		repo_id TEXT PRIMARY KEY,
		data JSONB NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	);

	CREATE TABLE IF NOT EXISTS activity_scores (
		repo_id TEXT PRIMARY KEY,
		data JSONB NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	);

	CREATE TABLE IF NOT EXISTS alerts (
		id TEXT PRIMARY KEY,
		repo_id TEXT NOT NULL,
		user_id TEXT NOT NULL,
		commit_sha TEXT NOT NULL,
		metric TEXT NOT NULL,
		mode TEXT NOT NULL,
		threshold DOUBLE PRECISION NOT NULL,
		actual DOUBLE PRECISION NOT NULL,
		description TEXT,
		commit_data JSONB NOT NULL,
		created_at TIMESTAMPTZ NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_alerts_repo ON alerts(repo_id, created_at);

	CREATE TABLE IF NOT EXISTS alert_configs (
		repo_id TEXT NOT NULL,
		user_id TEXT NOT NULL,
		config JSONB NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL,
		PRIMARY KEY (repo_id, user_id)
	);

	CREATE TABLE IF NOT EXISTS sync_state (
		repo_id TEXT PRIMARY KEY,
		last_sha TEXT NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

// Running statistics

func (s *PostgresStore) SaveContributorStats(ctx context.Context, stats *models.ContributorStats) error {
	data, err := json.Marshal(stats)
	if err != nil {
		return fmt.Errorf("encode contributor stats: %w", err)
	}

	query := `
		INSERT INTO contributor_stats (repo_id, email, data, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (repo_id, email) DO UPDATE SET
			data = EXCLUDED.data,
			updated_at = EXCLUDED.updated_at
	`
	if _, err := s.db.ExecContext(ctx, query, stats.RepoID, stats.Email, data, time.Now().UTC()); err != nil {
		return fmt.Errorf("save contributor stats: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetContributorStats(ctx context.Context, repoID, email string) (*models.ContributorStats, error) {
	var data []byte
	err := s.db.GetContext(ctx, &data,
		`SELECT data FROM contributor_stats WHERE repo_id = $1 AND email = $2`, repoID, email)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get contributor stats: %w", err)
	}

	var stats models.ContributorStats
	if err := json.Unmarshal(data, &stats); err != nil {
		return nil, fmt.Errorf("decode contributor stats: %w", err)
	}
	return &stats, nil
}

func (s *PostgresStore) ListContributorStats(ctx context.Context, repoID string) ([]*models.ContributorStats, error) {
	var rows [][]byte
	err := s.db.SelectContext(ctx, &rows,
		`SELECT data FROM contributor_stats WHERE repo_id = $1 ORDER BY email`, repoID)
	if err != nil {
		return nil, fmt.Errorf("list contributor stats: %w", err)
	}

	out := make([]*models.ContributorStats, 0, len(rows))
	for _, data := range rows {
		var stats models.ContributorStats
		if err := json.Unmarshal(data, &stats); err != nil {
			return nil, fmt.Errorf("decode contributor stats: %w", err)
		}
		out = append(out, &stats)
	}
	return out, nil
}

func (s *PostgresStore) SaveRepositoryStats(ctx context.Context, stats *models.RepositoryStats) error {
	data, err := json.Marshal(stats)
	if err != nil {
		return fmt.Errorf("encode repository stats: %w", err)
	}

	query := `
		INSERT INTO repository_stats (repo_id, data, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (repo_id) DO UPDATE SET
			data = EXCLUDED.data,
			updated_at = EXCLUDED.updated_at
	`
	if _, err := s.db.ExecContext(ctx, query, stats.RepoID, data, time.Now().UTC()); err != nil {
		return fmt.Errorf("save repository stats: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetRepositoryStats(ctx context.Context, repoID string) (*models.RepositoryStats, error) {
	var data []byte
	err := s.db.GetContext(ctx, &data,
		`SELECT data FROM repository_stats WHERE repo_id = $1`, repoID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get repository stats: %w", err)
	}

	var stats models.RepositoryStats
	if err := json.Unmarshal(data, &stats); err != nil {
		return nil, fmt.Errorf("decode repository stats: %w", err)
	}
	return &stats, nil
}

// Anomaly results

func (s *PostgresStore) SaveAnomaly(ctx context.Context, repoID, sha string, result *models.AnomalyResult) error {
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("encode anomaly result: %w", err)
	}

	query := `
		INSERT INTO anomaly_results (repo_id, commit_sha, is_anomalous, confidence, risk_level, data, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (repo_id, commit_sha) DO UPDATE SET
			is_anomalous = EXCLUDED.is_anomalous,
			confidence = EXCLUDED.confidence,
			risk_level = EXCLUDED.risk_level,
			data = EXCLUDED.data
	`
	_, err = s.db.ExecContext(ctx, query,
		repoID, sha, result.IsAnomalous, result.Confidence, string(result.RiskLevel),
		data, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("save anomaly result: %w", err)
	}
	return nil
}

// Bus factor

func (s *PostgresStore) SaveBusFactor(ctx context.Context, repoID string, result *models.BusFactorResult) error {
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("encode bus factor: %w", err)
	}

	query := `
		INSERT INTO bus_factor (repo_id, data, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (repo_id) DO UPDATE SET
			data = EXCLUDED.data,
			updated_at = EXCLUDED.updated_at
	`
	if _, err := s.db.ExecContext(ctx, query, repoID, data, time.Now().UTC()); err != nil {
		return fmt.Errorf("save bus factor: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetBusFactor(ctx context.Context, repoID string) (*models.BusFactorResult, error) {
	var data []byte
	err := s.db.GetContext(ctx, &data,
		`SELECT data FROM bus_factor WHERE repo_id = $1`, repoID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get bus factor: %w", err)
	}

	var result models.BusFactorResult
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("decode bus factor: %w", err)
	}
	return &result, nil
}

// Activity scoring

func (s *PostgresStore) SaveActivityScore(ctx context.Context, repoID string, score *models.ActivityScore) error {
	data, err := json.Marshal(score)
	if err != nil {
		return fmt.Errorf("encode activity score: %w", err)
	}

	query := `
		INSERT INTO activity_scores (repo_id, data, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (repo_id) DO UPDATE SET
			data = EXCLUDED.data,
			updated_at = EXCLUDED.updated_at
	`
	if _, err := s.db.ExecContext(ctx, query, repoID, data, time.Now().UTC()); err != nil {
		return fmt.Errorf("save activity score: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetActivityScore(ctx context.Context, repoID string) (*models.ActivityScore, error) {
	var data []byte
	err := s.db.GetContext(ctx, &data,
		`SELECT data FROM activity_scores WHERE repo_id = $1`, repoID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get activity score: %w", err)
	}

	var score models.ActivityScore
	if err := json.Unmarshal(data, &score); err != nil {
		return nil, fmt.Errorf("decode activity score: %w", err)
	}
	return &score, nil
}

// Alerts

func (s *PostgresStore) SaveAlerts(ctx context.Context, alerts []models.AlertEvent) error {
	if len(alerts) == 0 {
		return nil
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		INSERT INTO alerts (id, repo_id, user_id, commit_sha, metric, mode,
			threshold, actual, description, commit_data, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO NOTHING
	`
	for _, a := range alerts {
		commitData, err := json.Marshal(a.Commit)
		if err != nil {
			return fmt.Errorf("encode alert commit: %w", err)
		}
		_, err = tx.ExecContext(ctx, query,
			a.ID, a.RepoID, a.UserID, a.CommitSHA, a.Metric, a.Mode,
			a.Threshold, a.Actual, a.Description, commitData, a.CreatedAt)
		if err != nil {
			return fmt.Errorf("save alert: %w", err)
		}
	}

	return tx.Commit()
}

func (s *PostgresStore) GetAlertConfig(ctx context.Context, repoID, userID string) ([]byte, error) {
	var config []byte
	err := s.db.GetContext(ctx, &config,
		`SELECT config FROM alert_configs WHERE repo_id = $1 AND user_id = $2`, repoID, userID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get alert config: %w", err)
	}
	return config, nil
}

func (s *PostgresStore) SaveAlertConfig(ctx context.Context, repoID, userID string, raw []byte) error {
	query := `
		INSERT INTO alert_configs (repo_id, user_id, config, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (repo_id, user_id) DO UPDATE SET
			config = EXCLUDED.config,
			updated_at = EXCLUDED.updated_at
	`
	if _, err := s.db.ExecContext(ctx, query, repoID, userID, raw, time.Now().UTC()); err != nil {
		return fmt.Errorf("save alert config: %w", err)
	}
	return nil
}

// Sync state

func (s *PostgresStore) GetLastSHA(ctx context.Context, repoID string) (string, error) {
	var sha string
	err := s.db.GetContext(ctx, &sha,
		`SELECT last_sha FROM sync_state WHERE repo_id = $1`, repoID)
	if err != nil {
		if err == sql.ErrNoRows {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("get sync state: %w", err)
	}
	return sha, nil
}

func (s *PostgresStore) SaveLastSHA(ctx context.Context, repoID, sha string) error {
	query := `
		INSERT INTO sync_state (repo_id, last_sha, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (repo_id) DO UPDATE SET
			last_sha = EXCLUDED.last_sha,
			updated_at = EXCLUDED.updated_at
	`
	if _, err := s.db.ExecContext(ctx, query, repoID, sha, time.Now().UTC()); err != nil {
		return fmt.Errorf("save sync state: %w", err)
	}
	return nil
}
