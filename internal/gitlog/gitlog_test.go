package gitlog

import (
	"testing"
	"time"
)

const sampleLog = `a1b2c3|Dana|dana@example.com|2025-03-10T14:30:00+00:00|add retry logic
10	2	pkg/client.go
5	0	pkg/client_test.go

d4e5f6|Sam|sam@example.com|2025-03-11T09:05:00+02:00|update importer
100	40	internal/importer.go
-	-	assets/logo.png
`

func TestParseLog(t *testing.T) {
	commits, err := parseLog(sampleLog)
	if err != nil {
		t.Fatalf("parseLog: %v", err)
	}
	if len(commits) != 2 {
		t.Fatalf("len(commits) = %d, want 2", len(commits))
	}

	first := commits[0]
	if first.SHA != "a1b2c3" || first.Author != "Dana" || first.Email != "dana@example.com" {
		t.Errorf("first commit identity = %s/%s/%s", first.SHA, first.Author, first.Email)
	}
	if first.Message != "add retry logic" {
		t.Errorf("Message = %q", first.Message)
	}
	if first.LinesAdded != 15 || first.LinesDeleted != 2 {
		t.Errorf("lines = +%d/-%d, want +15/-2", first.LinesAdded, first.LinesDeleted)
	}
	if len(first.FilesChanged) != 2 || first.FilesChanged[0] != "pkg/client.go" {
		t.Errorf("FilesChanged = %v", first.FilesChanged)
	}

	want := time.Date(2025, 3, 10, 14, 30, 0, 0, time.UTC)
	if !first.Timestamp.Equal(want) {
		t.Errorf("Timestamp = %v, want %v", first.Timestamp, want)
	}
}

func TestParseLogBinaryFilesKeepPathWithoutCounts(t *testing.T) {
	commits, err := parseLog(sampleLog)
	if err != nil {
		t.Fatalf("parseLog: %v", err)
	}

	second := commits[1]
	if second.LinesAdded != 100 || second.LinesDeleted != 40 {
		t.Errorf("lines = +%d/-%d, want +100/-40", second.LinesAdded, second.LinesDeleted)
	}
	if len(second.FilesChanged) != 2 || second.FilesChanged[1] != "assets/logo.png" {
		t.Errorf("FilesChanged = %v, want binary path retained", second.FilesChanged)
	}
}

func TestParseLogMessageWithPipes(t *testing.T) {
	log := "abc|Dana|dana@example.com|2025-03-10T14:30:00+00:00|feat: a | b | c\n3	1	main.go\n"

	commits, err := parseLog(log)
	if err != nil {
		t.Fatalf("parseLog: %v", err)
	}
	if len(commits) != 1 {
		t.Fatalf("len(commits) = %d, want 1", len(commits))
	}
	if commits[0].Message != "feat: a | b | c" {
		t.Errorf("Message = %q, want pipes preserved", commits[0].Message)
	}
}

func TestParseLogKeepsPathsWithSpacesAndRenames(t *testing.T) {
	log := "abc|Dana|dana@example.com|2025-03-10T14:30:00+00:00|reorganize docs\n" +
		"4	1	docs/release notes.md\n" +
		"2	2	pkg/{old => new}/util.go\n"

	commits, err := parseLog(log)
	if err != nil {
		t.Fatalf("parseLog: %v", err)
	}
	if len(commits) != 1 {
		t.Fatalf("len(commits) = %d, want 1", len(commits))
	}

	files := commits[0].FilesChanged
	if len(files) != 2 {
		t.Fatalf("FilesChanged = %v, want 2 entries", files)
	}
	if files[0] != "docs/release notes.md" {
		t.Errorf("path = %q, want space preserved", files[0])
	}
	if files[1] != "pkg/{old => new}/util.go" {
		t.Errorf("path = %q, want rename notation intact", files[1])
	}
	if commits[0].LinesAdded != 6 || commits[0].LinesDeleted != 3 {
		t.Errorf("lines = +%d/-%d, want +6/-3", commits[0].LinesAdded, commits[0].LinesDeleted)
	}
}

func TestParseLogSkipsUnparseableDates(t *testing.T) {
	log := "abc|Dana|dana@example.com|not-a-date|broken\n3	1	main.go\n\n" +
		"def|Sam|sam@example.com|2025-03-10T08:00:00+00:00|fine\n1	1	x.go\n"

	commits, err := parseLog(log)
	if err != nil {
		t.Fatalf("parseLog: %v", err)
	}
	if len(commits) != 1 || commits[0].SHA != "def" {
		t.Errorf("commits = %v, want only the parseable one", commits)
	}
}

func TestParseLogEmptyOutput(t *testing.T) {
	commits, err := parseLog("")
	if err != nil {
		t.Fatalf("parseLog: %v", err)
	}
	if len(commits) != 0 {
		t.Errorf("len(commits) = %d, want 0", len(commits))
	}
}
