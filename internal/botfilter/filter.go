// Package botfilter classifies commits as bot-authored, merge commits, or
// trivial-size changes. Classification is pure; callers decide whether a
// flag excludes a commit from statistics, anomaly analysis, or bus-factor
// counts.
package botfilter

import (
	"strings"

	"github.com/commitwatch/commitwatch-go/internal/models"
)

// Classification holds the three independent noise flags for a commit.
type Classification struct {
	IsBot     bool
	IsMerge   bool
	IsTrivial bool
}

// Filter applies an injected pattern set to commits.
type Filter struct {
	patterns Patterns
}

// New creates a filter with the given pattern set.
func New(p Patterns) *Filter {
	if p.TrivialFloor <= 0 {
		p.TrivialFloor = DefaultPatterns().TrivialFloor
	}
	return &Filter{patterns: p}
}

// Classify evaluates all three flags for one commit.
func (f *Filter) Classify(c models.CommitRecord) Classification {
	return Classification{
		IsBot:     f.IsBot(c),
		IsMerge:   f.IsMerge(c),
		IsTrivial: c.TotalLines() < f.patterns.TrivialFloor,
	}
}

// IsBot reports whether the commit looks automation-authored: the author
// name or email matches a known bot pattern, or the message carries a
// dependency/CI conventional-commit prefix.
func (f *Filter) IsBot(c models.CommitRecord) bool {
	author := strings.ToLower(c.Author)
	email := strings.ToLower(c.Email)

	for _, pattern := range f.patterns.BotAuthors {
		if strings.Contains(author, pattern) {
			return true
		}
	}
	for _, pattern := range f.patterns.BotEmailPatterns {
		if strings.Contains(email, pattern) {
			return true
		}
	}

	message := strings.ToLower(strings.TrimSpace(c.Message))
	for _, prefix := range f.patterns.BotMessagePrefixes {
		if strings.HasPrefix(message, prefix) {
			return true
		}
	}
	return false
}

// IsMerge reports whether the commit message starts with a merge-commit
// phrasing.
func (f *Filter) IsMerge(c models.CommitRecord) bool {
	message := strings.ToLower(strings.TrimSpace(c.Message))
	for _, prefix := range f.patterns.MergePrefixes {
		if strings.HasPrefix(message, prefix) {
			return true
		}
	}
	return false
}

// TrivialFloor exposes the configured minimum change size.
func (f *Filter) TrivialFloor() int {
	return f.patterns.TrivialFloor
}
