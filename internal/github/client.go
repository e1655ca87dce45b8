// Package github fetches commit history through the GitHub API, with
// rate limiting and bounded concurrency for per-commit detail lookups.
package github

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/google/go-github/v57/github"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/commitwatch/commitwatch-go/internal/models"
)

// Source wraps the GitHub API client with rate limiting and concurrency.
type Source struct {
	client      *github.Client
	rateLimiter *rate.Limiter
	maxWorkers  int
}

// NewSource creates a GitHub-backed history source. rateLimit is requests
// per second against the API.
func NewSource(token string, rateLimit int) *Source {
	client := github.NewClient(nil)
	if token != "" {
		client = client.WithAuthToken(token)
	}
	if rateLimit <= 0 {
		rateLimit = 10
	}

	return &Source{
		client:      client,
		rateLimiter: rate.NewLimiter(rate.Limit(rateLimit), 1),
		maxWorkers:  10,
	}
}

// Commits returns the repository's history oldest-first. repoID must be
// "owner/name". since may be a commit id to resume from (exclusive) or
// empty for full history.
func (s *Source) Commits(ctx context.Context, repoID, since string) ([]models.CommitRecord, error) {
	owner, name, err := splitRepoID(repoID)
	if err != nil {
		return nil, err
	}

	opts := &github.CommitsListOptions{
		ListOptions: github.ListOptions{PerPage: 100},
	}

	var listed []*github.RepositoryCommit
	for {
		if err := s.rateLimiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter: %w", err)
		}

		commits, resp, err := s.client.Repositories.ListCommits(ctx, owner, name, opts)
		if err != nil {
			return nil, fmt.Errorf("fetch commits: %w", err)
		}

		done := false
		for _, c := range commits {
			if since != "" && c.GetSHA() == since {
				done = true
				break
			}
			listed = append(listed, c)
		}
		if done || resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	// ListCommits does not include per-file stats; fetch each commit's
	// detail with bounded concurrency.
	records := make([]models.CommitRecord, len(listed))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.maxWorkers)

	for i, c := range listed {
		i, sha := i, c.GetSHA()
		g.Go(func() error {
			record, err := s.fetchCommit(gctx, owner, name, sha)
			if err != nil {
				return err
			}
			mu.Lock()
			records[i] = record
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	// The API lists newest-first; callers fold statistics in commit order.
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].Timestamp.Before(records[j].Timestamp)
	})

	return records, nil
}

func (s *Source) fetchCommit(ctx context.Context, owner, name, sha string) (models.CommitRecord, error) {
	if err := s.rateLimiter.Wait(ctx); err != nil {
		return models.CommitRecord{}, fmt.Errorf("rate limiter: %w", err)
	}

	commit, _, err := s.client.Repositories.GetCommit(ctx, owner, name, sha, nil)
	if err != nil {
		return models.CommitRecord{}, fmt.Errorf("fetch commit %s: %w", sha, err)
	}

	record := models.CommitRecord{
		SHA:          commit.GetSHA(),
		Author:       commit.GetCommit().GetAuthor().GetName(),
		Email:        commit.GetCommit().GetAuthor().GetEmail(),
		Timestamp:    commit.GetCommit().GetAuthor().GetDate().Time,
		Message:      commit.GetCommit().GetMessage(),
		FilesChanged: []string{},
	}
	if record.Author == "" {
		record.Author = commit.GetAuthor().GetLogin()
	}

	for _, f := range commit.Files {
		record.LinesAdded += f.GetAdditions()
		record.LinesDeleted += f.GetDeletions()
		record.FilesChanged = append(record.FilesChanged, f.GetFilename())
	}

	return record, nil
}

func splitRepoID(repoID string) (owner, name string, err error) {
	parts := strings.Split(repoID, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid repository id %q, expected owner/name", repoID)
	}
	return parts[0], parts[1], nil
}
