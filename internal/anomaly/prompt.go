package anomaly

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/commitwatch/commitwatch-go/internal/models"
)

const maxMessageLength = 200

// suspiciousFileHints maps filename substrings to the tag reported for them.
var suspiciousFileHints = []struct {
	substring string
	tag       string
}{
	{".env", "environment file"},
	{"secret", "possible secret material"},
	{"credential", "possible secret material"},
	{"password", "possible secret material"},
	{".pem", "key file"},
	{".key", "key file"},
	{"id_rsa", "key file"},
	{"config", "configuration file"},
	{".lock", "lock file"},
}

// binaryExtensions flag unusual binary payloads in a commit.
var binaryExtensions = map[string]bool{
	".exe": true, ".dll": true, ".so": true, ".dylib": true,
	".bin": true, ".jar": true, ".class": true, ".wasm": true,
}

// buildPrompt constructs a bounded natural-language description of the
// commit plus an instruction to return strict JSON.
func (d *Detector) buildPrompt(commit models.CommitRecord, contributor *models.ContributorStats, repo *models.RepositoryStats) string {
	var b strings.Builder

	b.WriteString("You are a code repository security analyst. Assess whether the following commit is anomalous.\n\n")

	message := commit.Message
	if len(message) > maxMessageLength {
		message = message[:maxMessageLength] + "..."
	}

	fmt.Fprintf(&b, "Commit by %s <%s> at %s\n", commit.Author, commit.Email, commit.Timestamp.Format("2006-01-02 15:04 MST"))
	fmt.Fprintf(&b, "Message: %q\n", message)
	fmt.Fprintf(&b, "Size: +%d/-%d lines across %d files\n", commit.LinesAdded, commit.LinesDeleted, len(commit.FilesChanged))

	if hints := describeSuspiciousFiles(commit.FilesChanged); len(hints) > 0 {
		fmt.Fprintf(&b, "Notable files touched: %s\n", strings.Join(hints, "; "))
	}

	if contributor != nil && contributor.LinesAdded.HasBaseline() {
		avg := contributor.LinesAdded.Mean + contributor.LinesDeleted.Mean
		fmt.Fprintf(&b, "Contributor history: %d commits, average %.0f lines changed per commit.\n", contributor.CommitCount, avg)
		if outside, hours := d.outsideCommonHours(commit, contributor); outside {
			fmt.Fprintf(&b, "Timing: this commit (hour %d) is outside the contributor's usual hours %v.\n", commit.Timestamp.Hour(), hours)
		}
	} else {
		b.WriteString("Contributor history: none (first commits from this author).\n")
	}

	if repo != nil && repo.LinesAdded.HasBaseline() {
		repoAvg := repo.LinesAdded.Mean + repo.LinesDeleted.Mean
		fmt.Fprintf(&b, "Repository average: %.0f lines changed per commit.\n", repoAvg)
	}

	b.WriteString("\nRespond with strict JSON only, no prose, exactly this shape:\n")
	b.WriteString(`{"isAnomalous": bool, "confidence": number 0-1, "reasoning": "short text", "riskLevel": "low"|"moderate"|"high"|"critical", "suspiciousFactors": ["tag", ...]}`)
	b.WriteString("\n")

	return b.String()
}

// describeSuspiciousFiles returns short descriptions for files matching the
// suspicious-name or binary-extension hints.
func describeSuspiciousFiles(paths []string) []string {
	var hints []string
	for _, path := range paths {
		lower := strings.ToLower(path)
		matched := false
		for _, hint := range suspiciousFileHints {
			if strings.Contains(lower, hint.substring) {
				hints = append(hints, fmt.Sprintf("%s (%s)", path, hint.tag))
				matched = true
				break
			}
		}
		if !matched && binaryExtensions[filepath.Ext(lower)] {
			hints = append(hints, fmt.Sprintf("%s (binary file)", path))
		}
	}
	return hints
}

// outsideCommonHours reports whether the commit hour is more than the
// tolerance away from every one of the contributor's three most common
// commit hours.
func (d *Detector) outsideCommonHours(commit models.CommitRecord, contributor *models.ContributorStats) (bool, []int) {
	type hourCount struct {
		hour  int
		count int64
	}
	var counts []hourCount
	for hour, count := range contributor.HourHistogram {
		if count > 0 {
			counts = append(counts, hourCount{hour, count})
		}
	}
	if len(counts) == 0 {
		return false, nil
	}

	sort.Slice(counts, func(i, j int) bool {
		if counts[i].count != counts[j].count {
			return counts[i].count > counts[j].count
		}
		return counts[i].hour < counts[j].hour
	})
	if len(counts) > 3 {
		counts = counts[:3]
	}

	commitHour := commit.Timestamp.Hour()
	common := make([]int, 0, len(counts))
	for _, hc := range counts {
		common = append(common, hc.hour)
		if hourDistance(commitHour, hc.hour) <= d.opts.HourTolerance {
			return false, common
		}
	}
	return true, common
}

// hourDistance is the circular distance between two hours of day.
func hourDistance(a, b int) int {
	diff := a - b
	if diff < 0 {
		diff = -diff
	}
	if diff > 12 {
		diff = 24 - diff
	}
	return diff
}
