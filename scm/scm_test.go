package scm

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/google/go-github/v66/github"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventRepository(t *testing.T) {
	ev := EventFromPayload(map[string]any{
		"before":  "abc",
		"after":   "def",
		"compare": "https://github.com/adobe/helix-purge/compare/abc...def",
		"ref":     "refs/heads/feature/x",
	})
	owner, repo, err := ev.Repository()
	require.NoError(t, err)
	assert.Equal(t, "adobe", owner)
	assert.Equal(t, "helix-purge", repo)
	assert.Equal(t, "abc", ev.Before)
	assert.Equal(t, "def", ev.After)
	assert.Equal(t, "x", ev.Branch(""))
}

func TestEventRepositoryErrors(t *testing.T) {
	_, _, err := Event{}.Repository()
	assert.Error(t, err)

	_, _, err = Event{Compare: "https://github.com/onlyowner"}.Repository()
	assert.Error(t, err)
}

func TestEventBranchFallback(t *testing.T) {
	assert.Equal(t, "master", Event{}.Branch(""))
	assert.Equal(t, "main", Event{}.Branch("main"))
	assert.Equal(t, "main", Event{Ref: "refs/heads/"}.Branch("main"))
	assert.Equal(t, "release", Event{Ref: "release"}.Branch(""))
}

func TestChangedFiles(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/org/site/compare/abc...def", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"files":[
			{"filename":"blog/post.html","status":"modified"},
			{"filename":".github/workflows/purge.yml","status":"added"},
			{"filename":"index.md","status":"renamed","previous_filename":"old.md"}
		]}`))
	})
	ts := httptest.NewServer(mux)
	defer ts.Close()

	gh := github.NewClient(ts.Client())
	base, err := url.Parse(ts.URL + "/")
	require.NoError(t, err)
	gh.BaseURL = base

	files, err := newClientFor(gh).ChangedFiles(context.Background(), "org", "site", "abc", "def")
	require.NoError(t, err)
	assert.Equal(t, []string{"blog/post.html", ".github/workflows/purge.yml", "index.md"}, files)
}

func TestChangedFilesNeedsCommits(t *testing.T) {
	_, err := NewClient("").ChangedFiles(context.Background(), "o", "r", "", "def")
	assert.Error(t, err)
}

func TestChangedFilesAPIError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message":"Not Found"}`, http.StatusNotFound)
	}))
	defer ts.Close()

	gh := github.NewClient(ts.Client())
	base, _ := url.Parse(ts.URL + "/")
	gh.BaseURL = base

	_, err := newClientFor(gh).ChangedFiles(context.Background(), "o", "r", "a", "b")
	assert.Error(t, err)
}
