package stats

import (
	"math"
	"testing"
	"time"

	"github.com/commitwatch/commitwatch-go/internal/models"
)

const epsilon = 1e-6

// textbook mean/stddev over the full slice, for comparison against the
// incremental updates.
func reference(values []float64) (mean, stddev float64) {
	for _, v := range values {
		mean += v
	}
	mean /= float64(len(values))

	var ss float64
	for _, v := range values {
		ss += (v - mean) * (v - mean)
	}
	return mean, math.Sqrt(ss / float64(len(values)))
}

func TestObserveMatchesTextbookStats(t *testing.T) {
	tests := []struct {
		name   string
		values []float64
	}{
		{"single value", []float64{42}},
		{"identical values", []float64{10, 10, 10, 10}},
		{"small spread", []float64{9, 10, 11}},
		{"commit-sized values", []float64{3, 120, 45, 0, 18, 300, 7, 52}},
		{"large magnitudes", []float64{1e6, 1e6 + 1, 1e6 + 2, 1e6 + 3}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var r models.RunningStat
			for _, v := range tt.values {
				r = Observe(r, v)
			}

			wantMean, wantStdDev := reference(tt.values)
			if math.Abs(r.Mean-wantMean) > epsilon {
				t.Errorf("Mean = %v, want %v", r.Mean, wantMean)
			}
			if math.Abs(r.StdDev()-wantStdDev) > epsilon {
				t.Errorf("StdDev() = %v, want %v", r.StdDev(), wantStdDev)
			}
			if r.Count != int64(len(tt.values)) {
				t.Errorf("Count = %d, want %d", r.Count, len(tt.values))
			}
		})
	}
}

func TestObserveFirstValueHasZeroStdDev(t *testing.T) {
	r := Observe(models.RunningStat{}, 55)
	if r.Mean != 55 {
		t.Errorf("Mean = %v, want 55", r.Mean)
	}
	if r.StdDev() != 0 {
		t.Errorf("StdDev() = %v, want 0", r.StdDev())
	}
	if !r.HasBaseline() {
		t.Error("HasBaseline() = false after first observation")
	}
}

func TestUpdateContributor(t *testing.T) {
	ts := time.Date(2025, 3, 10, 14, 30, 0, 0, time.UTC)
	commit := models.CommitRecord{
		SHA:          "abc123",
		Author:       "Dana",
		Email:        "Dana@Example.com",
		Timestamp:    ts,
		LinesAdded:   40,
		LinesDeleted: 10,
		FilesChanged: []string{"a.go", "b.go"},
	}

	got := UpdateContributor(models.ContributorStats{RepoID: "org/repo"}, commit)

	if got.Email != "dana@example.com" {
		t.Errorf("Email = %q, want lowercased", got.Email)
	}
	if got.CommitCount != 1 {
		t.Errorf("CommitCount = %d, want 1", got.CommitCount)
	}
	if got.LinesAdded.Mean != 40 || got.LinesDeleted.Mean != 10 {
		t.Errorf("line means = %v/%v, want 40/10", got.LinesAdded.Mean, got.LinesDeleted.Mean)
	}
	if got.FilesChanged.Mean != 2 {
		t.Errorf("FilesChanged.Mean = %v, want 2", got.FilesChanged.Mean)
	}
	if got.HourHistogram[14] != 1 {
		t.Errorf("HourHistogram[14] = %d, want 1", got.HourHistogram[14])
	}
	if !got.LastCommit.Equal(ts) {
		t.Errorf("LastCommit = %v, want %v", got.LastCommit, ts)
	}
}

func TestUpdateContributorKeepsLatestCommitTime(t *testing.T) {
	newer := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	older := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

	s := UpdateContributor(models.ContributorStats{}, models.CommitRecord{Email: "d@e.com", Timestamp: newer})
	s = UpdateContributor(s, models.CommitRecord{Email: "d@e.com", Timestamp: older})

	if !s.LastCommit.Equal(newer) {
		t.Errorf("LastCommit = %v, want %v", s.LastCommit, newer)
	}
	if s.HourHistogram[9] != 2 {
		t.Errorf("HourHistogram[9] = %d, want 2", s.HourHistogram[9])
	}
}

func TestUpdateRepositoryAccumulates(t *testing.T) {
	var repo models.RepositoryStats
	for i := 0; i < 5; i++ {
		repo = UpdateRepository(repo, models.CommitRecord{
			Timestamp:    time.Date(2025, 3, 10, 8+i, 0, 0, 0, time.UTC),
			LinesAdded:   20,
			LinesDeleted: 5,
			FilesChanged: []string{"x.go"},
		})
	}

	if repo.CommitCount != 5 {
		t.Errorf("CommitCount = %d, want 5", repo.CommitCount)
	}
	if repo.LinesAdded.Mean != 20 {
		t.Errorf("LinesAdded.Mean = %v, want 20", repo.LinesAdded.Mean)
	}
	if repo.LinesAdded.StdDev() != 0 {
		t.Errorf("StdDev over identical commits = %v, want 0", repo.LinesAdded.StdDev())
	}
}
