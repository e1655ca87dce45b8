package anomaly

import (
	"strings"
	"testing"
	"time"

	"github.com/commitwatch/commitwatch-go/internal/models"
)

func TestHourDistance(t *testing.T) {
	tests := []struct {
		a, b, want int
	}{
		{10, 10, 0},
		{10, 12, 2},
		{23, 1, 2},
		{0, 23, 1},
		{0, 12, 12},
		{3, 20, 7},
	}

	for _, tt := range tests {
		if got := hourDistance(tt.a, tt.b); got != tt.want {
			t.Errorf("hourDistance(%d, %d) = %d, want %d", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestOutsideCommonHours(t *testing.T) {
	d := testDetector()

	contributor := &models.ContributorStats{CommitCount: 30}
	contributor.HourHistogram[9] = 15
	contributor.HourHistogram[10] = 10
	contributor.HourHistogram[14] = 5

	tests := []struct {
		name string
		hour int
		want bool
	}{
		{"exact common hour", 9, false},
		{"within tolerance of common hour", 12, false},
		{"far from all common hours", 3, true},
		{"wraps past midnight", 23, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			commit := models.CommitRecord{
				Timestamp: time.Date(2025, 3, 10, tt.hour, 0, 0, 0, time.UTC),
			}
			outside, _ := d.outsideCommonHours(commit, contributor)
			if outside != tt.want {
				t.Errorf("outsideCommonHours at hour %d = %v, want %v", tt.hour, outside, tt.want)
			}
		})
	}
}

func TestBuildPromptTruncatesMessage(t *testing.T) {
	d := testDetector()

	commit := bigCommit()
	commit.Message = strings.Repeat("x", 500)

	prompt := d.buildPrompt(commit, nil, nil)

	if strings.Contains(prompt, strings.Repeat("x", 201)) {
		t.Error("message not truncated to the cap")
	}
	if !strings.Contains(prompt, "...") {
		t.Error("truncated message missing ellipsis")
	}
}

func TestBuildPromptFlagsSensitiveFiles(t *testing.T) {
	d := testDetector()

	commit := bigCommit()
	commit.FilesChanged = []string{"src/app.go", ".env.production", "deploy/id_rsa", "tool.exe"}

	prompt := d.buildPrompt(commit, nil, nil)

	for _, want := range []string{"environment file", "key file", "binary file"} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q hint", want)
		}
	}
	if strings.Contains(prompt, "src/app.go (") {
		t.Error("ordinary source file tagged as notable")
	}
}

func TestBuildPromptMentionsBaselines(t *testing.T) {
	d := testDetector()

	contributor := &models.ContributorStats{
		CommitCount: 12,
		LinesAdded:  models.RunningStat{Count: 12, Mean: 80},
	}
	repo := &models.RepositoryStats{
		LinesAdded: models.RunningStat{Count: 40, Mean: 100},
	}

	prompt := d.buildPrompt(bigCommit(), contributor, repo)

	if !strings.Contains(prompt, "Contributor history: 12 commits") {
		t.Error("prompt missing contributor history")
	}
	if !strings.Contains(prompt, "Repository average") {
		t.Error("prompt missing repository average")
	}

	noHistory := d.buildPrompt(bigCommit(), nil, nil)
	if !strings.Contains(noHistory, "first commits from this author") {
		t.Error("prompt missing first-commit note")
	}
}
