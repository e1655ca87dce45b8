package pipeline

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/commitwatch/commitwatch-go/internal/alerts"
	"github.com/commitwatch/commitwatch-go/internal/anomaly"
	"github.com/commitwatch/commitwatch-go/internal/botfilter"
	"github.com/commitwatch/commitwatch-go/internal/models"
	"github.com/commitwatch/commitwatch-go/internal/storage"
)

// memStore is an in-memory Store for pipeline tests.
type memStore struct {
	mu           sync.Mutex
	contributors map[string]*models.ContributorStats
	repos        map[string]*models.RepositoryStats
	anomalies    map[string]*models.AnomalyResult
	busFactors   map[string]*models.BusFactorResult
	activities   map[string]*models.ActivityScore
	alerts       []models.AlertEvent
	alertConfigs map[string][]byte
	lastSHAs     map[string]string
}

func newMemStore() *memStore {
	return &memStore{
		contributors: make(map[string]*models.ContributorStats),
		repos:        make(map[string]*models.RepositoryStats),
		anomalies:    make(map[string]*models.AnomalyResult),
		busFactors:   make(map[string]*models.BusFactorResult),
		activities:   make(map[string]*models.ActivityScore),
		alertConfigs: make(map[string][]byte),
		lastSHAs:     make(map[string]string),
	}
}

func (m *memStore) SaveContributorStats(ctx context.Context, stats *models.ContributorStats) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *stats
	m.contributors[stats.RepoID+"/"+stats.Email] = &copied
	return nil
}

func (m *memStore) GetContributorStats(ctx context.Context, repoID, email string) (*models.ContributorStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.contributors[repoID+"/"+email]; ok {
		copied := *s
		return &copied, nil
	}
	return nil, storage.ErrNotFound
}

func (m *memStore) ListContributorStats(ctx context.Context, repoID string) ([]*models.ContributorStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.ContributorStats
	for _, s := range m.contributors {
		if s.RepoID == repoID {
			copied := *s
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (m *memStore) SaveRepositoryStats(ctx context.Context, stats *models.RepositoryStats) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *stats
	m.repos[stats.RepoID] = &copied
	return nil
}

func (m *memStore) GetRepositoryStats(ctx context.Context, repoID string) (*models.RepositoryStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.repos[repoID]; ok {
		copied := *s
		return &copied, nil
	}
	return nil, storage.ErrNotFound
}

func (m *memStore) SaveAnomaly(ctx context.Context, repoID, sha string, result *models.AnomalyResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *result
	m.anomalies[repoID+"/"+sha] = &copied
	return nil
}

func (m *memStore) SaveBusFactor(ctx context.Context, repoID string, result *models.BusFactorResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *result
	m.busFactors[repoID] = &copied
	return nil
}

func (m *memStore) GetBusFactor(ctx context.Context, repoID string) (*models.BusFactorResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r, ok := m.busFactors[repoID]; ok {
		return r, nil
	}
	return nil, storage.ErrNotFound
}

func (m *memStore) SaveActivityScore(ctx context.Context, repoID string, score *models.ActivityScore) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *score
	m.activities[repoID] = &copied
	return nil
}

func (m *memStore) GetActivityScore(ctx context.Context, repoID string) (*models.ActivityScore, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.activities[repoID]; ok {
		return s, nil
	}
	return nil, storage.ErrNotFound
}

func (m *memStore) SaveAlerts(ctx context.Context, events []models.AlertEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.alerts = append(m.alerts, events...)
	return nil
}

func (m *memStore) GetAlertConfig(ctx context.Context, repoID, userID string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if raw, ok := m.alertConfigs[repoID+"/"+userID]; ok {
		return raw, nil
	}
	return nil, storage.ErrNotFound
}

func (m *memStore) SaveAlertConfig(ctx context.Context, repoID, userID string, raw []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.alertConfigs[repoID+"/"+userID] = raw
	return nil
}

func (m *memStore) GetLastSHA(ctx context.Context, repoID string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if sha, ok := m.lastSHAs[repoID]; ok {
		return sha, nil
	}
	return "", storage.ErrNotFound
}

func (m *memStore) SaveLastSHA(ctx context.Context, repoID, sha string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastSHAs[repoID] = sha
	return nil
}

func (m *memStore) Close() error { return nil }

// fakeSource serves a fixed history and records the since marker it saw.
type fakeSource struct {
	commits []models.CommitRecord
	since   string
}

func (f *fakeSource) Commits(ctx context.Context, repoID, since string) ([]models.CommitRecord, error) {
	f.since = since
	if since == "" {
		return f.commits, nil
	}
	for i, c := range f.commits {
		if c.SHA == since {
			return f.commits[i+1:], nil
		}
	}
	return f.commits, nil
}

func historyOf(n int) []models.CommitRecord {
	commits := make([]models.CommitRecord, 0, n)
	base := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		commits = append(commits, models.CommitRecord{
			SHA:          fmt.Sprintf("sha-%03d", i),
			Author:       "Dana",
			Email:        "dana@example.com",
			Timestamp:    base.AddDate(0, 0, i),
			Message:      fmt.Sprintf("change %d", i),
			LinesAdded:   20,
			LinesDeleted: 5,
			FilesChanged: []string{"main.go"},
		})
	}
	return commits
}

func newTestPipeline(store storage.Store, source HistorySource) *Pipeline {
	filter := botfilter.New(botfilter.DefaultPatterns())
	detector := anomaly.New(filter, nil, anomaly.Options{})
	evaluator := alerts.NewEvaluator(detector, 0)
	return New(store, source, filter, detector, evaluator, nil, Options{Workers: 2})
}

func TestRunFullAnalysis(t *testing.T) {
	store := newMemStore()
	source := &fakeSource{commits: historyOf(10)}
	p := newTestPipeline(store, source)

	report, err := p.Run(context.Background(), "org/repo", "u1")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if report.NewCommits != 10 {
		t.Errorf("NewCommits = %d, want 10", report.NewCommits)
	}
	if len(report.Anomalies) != 10 {
		t.Errorf("len(Anomalies) = %d, want one per commit", len(report.Anomalies))
	}
	if source.since != "" {
		t.Errorf("first run used since marker %q, want empty", source.since)
	}

	// Stats were folded and persisted.
	cs, err := store.GetContributorStats(context.Background(), "org/repo", "dana@example.com")
	if err != nil {
		t.Fatalf("contributor stats not persisted: %v", err)
	}
	if cs.CommitCount != 10 {
		t.Errorf("CommitCount = %d, want 10", cs.CommitCount)
	}

	if report.BusFactor.BusFactor != 1 {
		t.Errorf("BusFactor = %d, want 1 for a solo repo", report.BusFactor.BusFactor)
	}
	if store.busFactors["org/repo"] == nil {
		t.Error("bus factor not persisted")
	}
	if store.activities["org/repo"] == nil {
		t.Error("activity score not persisted")
	}
	if store.lastSHAs["org/repo"] != "sha-009" {
		t.Errorf("lastSHA = %q, want sha-009", store.lastSHAs["org/repo"])
	}
}

func TestRunResumesFromSyncMarker(t *testing.T) {
	store := newMemStore()
	source := &fakeSource{commits: historyOf(10)}
	p := newTestPipeline(store, source)

	if _, err := p.Run(context.Background(), "org/repo", "u1"); err != nil {
		t.Fatalf("first Run: %v", err)
	}

	report, err := p.Run(context.Background(), "org/repo", "u1")
	if err != nil {
		t.Fatalf("second Run: %v", err)
	}

	if source.since != "sha-009" {
		t.Errorf("second run since = %q, want sha-009", source.since)
	}
	if report.NewCommits != 0 {
		t.Errorf("NewCommits = %d, want 0 on an up-to-date repo", report.NewCommits)
	}

	// Stats were not double-counted.
	cs, err := store.GetContributorStats(context.Background(), "org/repo", "dana@example.com")
	if err != nil {
		t.Fatalf("contributor stats: %v", err)
	}
	if cs.CommitCount != 10 {
		t.Errorf("CommitCount = %d after no-op rerun, want 10", cs.CommitCount)
	}
}

func TestRunExcludesBotsFromStats(t *testing.T) {
	store := newMemStore()
	human := historyOf(5)
	commits := append([]models.CommitRecord{}, human...)
	for i, c := range human {
		commits = append(commits, models.CommitRecord{
			SHA:        fmt.Sprintf("bot-%d", i),
			Author:     "dependabot[bot]",
			Email:      "dependabot@example.com",
			Timestamp:  c.Timestamp.Add(time.Hour),
			Message:    "chore(deps): bump",
			LinesAdded: 999,
		})
	}
	source := &fakeSource{commits: commits}
	p := newTestPipeline(store, source)

	if _, err := p.Run(context.Background(), "org/repo", "u1"); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if _, err := store.GetContributorStats(context.Background(), "org/repo", "dependabot@example.com"); err == nil {
		t.Error("bot contributor stats were persisted")
	}
	repo, err := store.GetRepositoryStats(context.Background(), "org/repo")
	if err != nil {
		t.Fatalf("repository stats: %v", err)
	}
	if repo.CommitCount != 5 {
		t.Errorf("repo CommitCount = %d, want 5 human commits", repo.CommitCount)
	}
}

func TestRunCountsMergeCommitsInStats(t *testing.T) {
	store := newMemStore()
	commits := historyOf(5)
	commits = append(commits, models.CommitRecord{
		SHA:          "sha-merge",
		Author:       "Dana",
		Email:        "dana@example.com",
		Timestamp:    commits[4].Timestamp.Add(time.Hour),
		Message:      "Merge branch 'feature' into main",
		LinesAdded:   40,
		LinesDeleted: 10,
		FilesChanged: []string{"main.go", "util.go"},
	})

	p := newTestPipeline(store, &fakeSource{commits: commits})
	if _, err := p.Run(context.Background(), "org/repo", "u1"); err != nil {
		t.Fatalf("Run: %v", err)
	}

	// Merge commits skip anomaly analysis but still count toward the
	// running statistics.
	cs, err := store.GetContributorStats(context.Background(), "org/repo", "dana@example.com")
	if err != nil {
		t.Fatalf("contributor stats: %v", err)
	}
	if cs.CommitCount != 6 {
		t.Errorf("CommitCount = %d, want 6 including the merge commit", cs.CommitCount)
	}
	repo, err := store.GetRepositoryStats(context.Background(), "org/repo")
	if err != nil {
		t.Fatalf("repository stats: %v", err)
	}
	if repo.CommitCount != 6 {
		t.Errorf("repo CommitCount = %d, want 6 including the merge commit", repo.CommitCount)
	}
}

func TestRunNormalizesContributorEmails(t *testing.T) {
	store := newMemStore()
	commits := historyOf(5)
	for i := range commits {
		commits[i].Email = "Dana@Example.com"
	}

	p := newTestPipeline(store, &fakeSource{commits: commits})
	report, err := p.Run(context.Background(), "org/repo", "u1")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	cs, err := store.GetContributorStats(context.Background(), "org/repo", "dana@example.com")
	if err != nil {
		t.Fatalf("stats not stored under the lowercased email: %v", err)
	}
	if cs.CommitCount != 5 {
		t.Errorf("CommitCount = %d, want 5", cs.CommitCount)
	}

	// The bus-factor detail lookup uses the same key, so the stored
	// statistics back the top contributor's line counts.
	if len(report.BusFactor.TopContributors) != 1 {
		t.Fatalf("TopContributors = %d, want 1", len(report.BusFactor.TopContributors))
	}
	if got := report.BusFactor.TopContributors[0].TotalLinesAdded; got != 100 {
		t.Errorf("TotalLinesAdded = %d, want 100 from stored stats", got)
	}
}

func TestRunFiresConfiguredAlerts(t *testing.T) {
	store := newMemStore()
	store.SaveAlertConfig(context.Background(), "org/repo", "u1",
		[]byte(`{"lines_added_deleted": {"enabled": true, "threshold": 100}}`))

	commits := historyOf(3)
	commits[2].LinesAdded = 500 // 505 total, over the fixed threshold

	source := &fakeSource{commits: commits}
	p := newTestPipeline(store, source)

	report, err := p.Run(context.Background(), "org/repo", "u1")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(report.Alerts) != 1 {
		t.Fatalf("len(Alerts) = %d, want 1", len(report.Alerts))
	}
	if report.Alerts[0].CommitSHA != "sha-002" {
		t.Errorf("alert commit = %s, want sha-002", report.Alerts[0].CommitSHA)
	}
	if len(store.alerts) != 1 {
		t.Errorf("persisted alerts = %d, want 1", len(store.alerts))
	}
}

func TestRunWithoutAlertConfigFiresNothing(t *testing.T) {
	store := newMemStore()
	commits := historyOf(3)
	commits[2].LinesAdded = 5000

	p := newTestPipeline(store, &fakeSource{commits: commits})

	report, err := p.Run(context.Background(), "org/repo", "u1")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(report.Alerts) != 0 {
		t.Errorf("Alerts = %v, want none without a config", report.Alerts)
	}
}
