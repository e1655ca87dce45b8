package botfilter

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Patterns is the immutable pattern configuration driving classification.
// All matching is case-insensitive. A custom set can be supplied for tests
// or per-deployment tuning; DefaultPatterns covers the common automation
// ecosystem.
type Patterns struct {
	// BotAuthors are substrings matched against the author name.
	BotAuthors []string `yaml:"bot_authors"`
	// BotEmailPatterns are substrings matched against the author email.
	BotEmailPatterns []string `yaml:"bot_email_patterns"`
	// BotMessagePrefixes mark dependency/CI conventional-commit messages.
	BotMessagePrefixes []string `yaml:"bot_message_prefixes"`
	// MergePrefixes are matched anchored at the start of the message.
	MergePrefixes []string `yaml:"merge_prefixes"`
	// TrivialFloor is the minimum total lines changed (added + deleted)
	// for a commit to count as non-trivial.
	TrivialFloor int `yaml:"trivial_floor"`
}

// DefaultPatterns returns the built-in automation pattern set.
func DefaultPatterns() Patterns {
	return Patterns{
		BotAuthors: []string{
			"dependabot",
			"renovate",
			"github-actions",
			"greenkeeper",
			"snyk-bot",
			"travis",
			"circleci",
			"jenkins",
			"codecov",
			"[bot]",
		},
		BotEmailPatterns: []string{
			"dependabot",
			"renovate",
			"github-actions",
			"actions@github.com",
			"[bot]",
			"bot@",
			"+bot",
			"noreply@travis-ci",
		},
		BotMessagePrefixes: []string{
			"chore(deps):",
			"chore(deps-dev):",
			"build(deps):",
			"build(deps-dev):",
			"ci:",
			"fix(deps):",
		},
		MergePrefixes: []string{
			"merge branch",
			"merge pull request",
			"merge remote-tracking branch",
			"merged in",
		},
		TrivialFloor: 5,
	}
}

// LoadPatterns reads a pattern set from a YAML file. Fields left empty in
// the file fall back to the defaults, so a file can override just one list.
func LoadPatterns(path string) (Patterns, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Patterns{}, fmt.Errorf("read pattern file: %w", err)
	}

	p := DefaultPatterns()
	if err := yaml.Unmarshal(data, &p); err != nil {
		return Patterns{}, fmt.Errorf("parse pattern file %s: %w", path, err)
	}
	if p.TrivialFloor <= 0 {
		p.TrivialFloor = DefaultPatterns().TrivialFloor
	}
	return p, nil
}
