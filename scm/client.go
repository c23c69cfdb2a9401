// Package scm looks up the files changed between two commits.
package scm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/go-github/v66/github"
)

// Client is the source-control lookup the purge run depends on.
type Client interface {
	ChangedFiles(ctx context.Context, owner, repo, base, head string) ([]string, error)
}

type githubClient struct {
	gh *github.Client
}

// NewClient returns a GitHub client authenticated with token. An empty token
// gives an anonymous client.
func NewClient(token string) Client {
	gh := github.NewClient(&http.Client{Timeout: 30 * time.Second})
	if token != "" {
		gh = gh.WithAuthToken(token)
	}
	return &githubClient{gh: gh}
}

// newClientFor wraps an existing go-github client.
func newClientFor(gh *github.Client) Client {
	return &githubClient{gh: gh}
}

// ChangedFiles returns the filenames of the base...head comparison in API
// order. Renamed files are reported under their new name.
func (c *githubClient) ChangedFiles(ctx context.Context, owner, repo, base, head string) ([]string, error) {
	if base == "" || head == "" {
		return nil, errors.New("compare needs both base and head commits")
	}
	cmp, _, err := c.gh.Repositories.CompareCommits(ctx, owner, repo, base, head, &github.ListOptions{PerPage: 100})
	if err != nil {
		return nil, fmt.Errorf("compare %s/%s %s...%s: %w", owner, repo, base, head, err)
	}

	out := make([]string, 0, len(cmp.Files))
	for _, f := range cmp.Files {
		if name := f.GetFilename(); name != "" {
			out = append(out, name)
		}
	}
	return out, nil
}
