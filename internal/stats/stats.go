// Package stats maintains running per-contributor and per-repository commit
// baselines. Updates are pure functions from (prior state, commit) to new
// state; callers own sequencing when the same key is updated concurrently.
package stats

import (
	"strings"

	"github.com/commitwatch/commitwatch-go/internal/models"
)

// Observe folds one value into a running statistic using Welford's
// algorithm. After N observations Mean and StdDev match the population
// statistics over those N values.
func Observe(r models.RunningStat, value float64) models.RunningStat {
	r.Count++
	delta := value - r.Mean
	r.Mean += delta / float64(r.Count)
	r.M2 += delta * (value - r.Mean)
	return r
}

// UpdateContributor returns contributor statistics with one qualifying
// commit folded in. The first commit for a contributor initializes the
// means to that commit's values with zero stddev.
func UpdateContributor(prior models.ContributorStats, c models.CommitRecord) models.ContributorStats {
	next := prior
	if next.Email == "" {
		next.Email = strings.ToLower(c.Email)
	}
	if next.Name == "" {
		next.Name = c.Author
	}

	next.CommitCount++
	next.LinesAdded = Observe(next.LinesAdded, float64(c.LinesAdded))
	next.LinesDeleted = Observe(next.LinesDeleted, float64(c.LinesDeleted))
	next.FilesChanged = Observe(next.FilesChanged, float64(len(c.FilesChanged)))
	next.HourHistogram[c.Timestamp.Hour()]++
	if c.Timestamp.After(next.LastCommit) {
		next.LastCommit = c.Timestamp
	}
	return next
}

// UpdateRepository returns repository statistics with one qualifying commit
// folded in.
func UpdateRepository(prior models.RepositoryStats, c models.CommitRecord) models.RepositoryStats {
	next := prior
	next.CommitCount++
	next.LinesAdded = Observe(next.LinesAdded, float64(c.LinesAdded))
	next.LinesDeleted = Observe(next.LinesDeleted, float64(c.LinesDeleted))
	next.FilesChanged = Observe(next.FilesChanged, float64(len(c.FilesChanged)))
	next.HourHistogram[c.Timestamp.Hour()]++
	if c.Timestamp.After(next.LastCommit) {
		next.LastCommit = c.Timestamp
	}
	return next
}
