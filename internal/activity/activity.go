// Package activity computes an aggregate 0-100 repository activity score
// from four weighted sub-scores over a trailing 90-day window, plus a
// commit-time heatmap over the full history.
package activity

import (
	"math"
	"strings"
	"time"

	"github.com/commitwatch/commitwatch-go/internal/models"
)

const (
	// WindowDays is the trailing window for the score sub-factors.
	WindowDays = 90

	factorCap = 25.0

	// Per-factor normalization caps.
	commitsPerMonthCap = 15.0
	distinctAuthorsCap = 5.0
	churnPerCommitCap  = 50.0
	commitsPerWeekCap  = 3.0
)

// Score computes the activity score for a repository's commit history,
// windowed relative to the current time.
func Score(commits []models.CommitRecord) models.ActivityScore {
	return ScoreAt(commits, time.Now())
}

// ScoreAt computes the activity score with an explicit "now" over the
// default trailing window.
func ScoreAt(commits []models.CommitRecord, now time.Time) models.ActivityScore {
	return ScoreWindow(commits, WindowDays, now)
}

// ScoreWindow computes the activity score with an explicit "now" and
// window length, restricting the sub-factors to commits within the
// trailing window. A month counts as 30 days and four weeks for the
// frequency normalizations. The heatmap is built from the full,
// unfiltered input.
func ScoreWindow(commits []models.CommitRecord, windowDays int, now time.Time) models.ActivityScore {
	if windowDays <= 0 {
		windowDays = WindowDays
	}
	windowMonths := float64(windowDays) / 30.0
	windowWeeks := windowMonths * 4
	cutoff := now.AddDate(0, 0, -windowDays)

	var windowed []models.CommitRecord
	for _, c := range commits {
		if c.Timestamp.After(cutoff) && !c.Timestamp.After(now) {
			windowed = append(windowed, c)
		}
	}

	score := models.ActivityScore{
		Level:      models.ActivityLow,
		WindowDays: windowDays,
		ComputedAt: now,
	}
	score.Heatmap, score.PeakActivity = buildHeatmap(commits)

	if len(windowed) == 0 {
		return score
	}

	commitCount := float64(len(windowed))

	authors := make(map[string]bool)
	totalChurn := 0
	for _, c := range windowed {
		authors[strings.ToLower(c.Email)] = true
		totalChurn += c.TotalLines()
	}

	factors := models.ActivityFactors{
		CommitFrequency:        cappedFactor(commitCount/windowMonths, commitsPerMonthCap),
		ContributorDiversity:   cappedFactor(float64(len(authors)), distinctAuthorsCap),
		CodeChurn:              cappedFactor(float64(totalChurn)/commitCount, churnPerCommitCap),
		DevelopmentConsistency: cappedFactor(commitCount/windowWeeks, commitsPerWeekCap),
	}

	total := factors.CommitFrequency + factors.ContributorDiversity +
		factors.CodeChurn + factors.DevelopmentConsistency

	score.Factors = factors
	score.Score = int(math.Round(total))
	score.Level = levelForScore(score.Score)
	return score
}

// cappedFactor maps a value to [0, 25] points: min(value/cap, 1) x 25.
func cappedFactor(value, limit float64) float64 {
	ratio := value / limit
	if ratio > 1 {
		ratio = 1
	}
	if ratio < 0 {
		ratio = 0
	}
	return ratio * factorCap
}

// levelForScore applies the fixed breakpoints 80/60/40.
func levelForScore(score int) models.ActivityLevel {
	switch {
	case score >= 80:
		return models.ActivityVeryHigh
	case score >= 60:
		return models.ActivityHigh
	case score >= 40:
		return models.ActivityModerate
	default:
		return models.ActivityLow
	}
}

// buildHeatmap buckets commits by (day, hour) with the week starting
// Monday, and returns the single busiest cell.
func buildHeatmap(commits []models.CommitRecord) ([7][24]int, models.HeatmapCell) {
	var heatmap [7][24]int
	for _, c := range commits {
		// time.Weekday is Sunday-indexed; shift so Monday is day 0.
		day := (int(c.Timestamp.Weekday()) + 6) % 7
		heatmap[day][c.Timestamp.Hour()]++
	}

	var peak models.HeatmapCell
	for day := 0; day < 7; day++ {
		for hour := 0; hour < 24; hour++ {
			if heatmap[day][hour] > peak.Count {
				peak = models.HeatmapCell{Day: day, Hour: hour, Count: heatmap[day][hour]}
			}
		}
	}
	return heatmap, peak
}
