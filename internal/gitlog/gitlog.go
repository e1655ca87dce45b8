// Package gitlog extracts commit history from a local git checkout by
// shelling out to git log with numstat output.
package gitlog

import (
	"bufio"
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/commitwatch/commitwatch-go/internal/models"
)

// Source reads history from a local repository path.
type Source struct {
	repoPath string
}

// NewSource creates a source for the repository at repoPath.
func NewSource(repoPath string) *Source {
	return &Source{repoPath: repoPath}
}

// Commits returns the repository's history oldest-first. since may be a
// commit id to resume from (exclusive) or empty for full history. repoID
// is unused here; it satisfies the pipeline's history-source contract.
func (s *Source) Commits(ctx context.Context, repoID, since string) ([]models.CommitRecord, error) {
	args := []string{
		"log",
		"--reverse",
		"--numstat",
		"--pretty=format:%H|%an|%ae|%ad|%s",
		"--date=iso-strict",
	}
	if since != "" {
		args = append(args, fmt.Sprintf("%s..HEAD", since))
	}

	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = s.repoPath
	output, err := cmd.CombinedOutput()
	if err != nil {
		return nil, fmt.Errorf("git log failed: %w (output: %s)", err, string(output))
	}

	return parseLog(string(output))
}

// parseLog parses raw git log output into commit records. Header lines are
// SHA|Author|Email|Date|Message; numstat lines follow as
// "additions<TAB>deletions<TAB>path" until the next header.
func parseLog(output string) ([]models.CommitRecord, error) {
	var commits []models.CommitRecord
	var current *models.CommitRecord

	flush := func() {
		if current != nil {
			commits = append(commits, *current)
			current = nil
		}
	}

	scanner := bufio.NewScanner(strings.NewReader(output))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()

		if line == "" {
			flush()
			continue
		}

		if strings.Count(line, "|") >= 4 {
			flush()

			parts := strings.SplitN(line, "|", 5)
			timestamp, err := time.Parse(time.RFC3339, parts[3])
			if err != nil {
				// Skip commits with unparseable dates rather than
				// poisoning downstream hour statistics.
				continue
			}

			current = &models.CommitRecord{
				SHA:          parts[0],
				Author:       parts[1],
				Email:        parts[2],
				Timestamp:    timestamp,
				Message:      parts[4],
				FilesChanged: []string{},
			}
			continue
		}

		if current == nil {
			continue
		}

		fields := strings.SplitN(line, "\t", 3)
		if len(fields) < 3 {
			continue
		}

		// Binary files report "-" for both counts; keep the file but
		// contribute no line counts. The path is everything after the
		// second tab, so paths with spaces or rename arrows stay intact.
		additions, _ := strconv.Atoi(fields[0])
		deletions, _ := strconv.Atoi(fields[1])
		path := fields[2]

		current.LinesAdded += additions
		current.LinesDeleted += deletions
		current.FilesChanged = append(current.FilesChanged, path)
	}
	flush()

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scanning git log output: %w", err)
	}

	return commits, nil
}
