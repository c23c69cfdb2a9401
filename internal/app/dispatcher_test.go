package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"HlxPurge/edge"
	"HlxPurge/internal/metrics"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakePurger answers from a table keyed by target URL and tracks concurrency.
type fakePurger struct {
	delay   time.Duration
	results map[string]func() ([]edge.Entry, error)

	mu       sync.Mutex
	targets  []string
	inflight int32
	peak     int32
	closed   int32
}

func (f *fakePurger) Purge(ctx context.Context, target string) ([]edge.Entry, error) {
	n := atomic.AddInt32(&f.inflight, 1)
	for {
		p := atomic.LoadInt32(&f.peak)
		if n <= p || atomic.CompareAndSwapInt32(&f.peak, p, n) {
			break
		}
	}
	defer atomic.AddInt32(&f.inflight, -1)

	f.mu.Lock()
	f.targets = append(f.targets, target)
	f.mu.Unlock()

	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	if fn, ok := f.results[target]; ok {
		return fn()
	}
	return []edge.Entry{{Status: "ok", URL: target}}, nil
}

func (f *fakePurger) Close() error {
	atomic.AddInt32(&f.closed, 1)
	return nil
}

func (f *fakePurger) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.targets)
}

const testBase = "https://main--site--org.hlx.page"

func TestDispatchRespectsCeiling(t *testing.T) {
	purger := &fakePurger{delay: 10 * time.Millisecond}
	agg := NewFailureAggregator()
	d := &Dispatcher{Purger: purger, Failures: agg, Limit: 20}

	paths := make([]string, 50)
	for i := range paths {
		paths[i] = fmt.Sprintf("/page-%d.html", i)
	}
	outcomes := d.Dispatch(context.Background(), paths, testBase)

	require.Len(t, outcomes, 50)
	assert.Equal(t, 50, purger.calls())
	assert.LessOrEqual(t, atomic.LoadInt32(&purger.peak), int32(20))
	assert.Greater(t, atomic.LoadInt32(&purger.peak), int32(1))
	assert.False(t, agg.HasFailed())
	for i, o := range outcomes {
		assert.Equal(t, paths[i], o.Path)
		assert.NoError(t, o.Err)
	}
}

func TestDispatchEmpty(t *testing.T) {
	purger := &fakePurger{}
	agg := NewFailureAggregator()
	d := &Dispatcher{Purger: purger, Failures: agg}

	assert.Empty(t, d.Dispatch(context.Background(), nil, testBase))
	assert.Zero(t, purger.calls())
	assert.False(t, agg.HasFailed())
}

func TestDispatchKeepsDuplicates(t *testing.T) {
	purger := &fakePurger{}
	d := &Dispatcher{Purger: purger, Failures: NewFailureAggregator()}

	d.Dispatch(context.Background(), []string{"/a.html", "/a.html", "/b.html"}, testBase)
	assert.Equal(t, 3, purger.calls())
}

func TestDispatchIsolatesFailures(t *testing.T) {
	purger := &fakePurger{results: map[string]func() ([]edge.Entry, error){
		testBase + "/missing.html": func() ([]edge.Entry, error) {
			return nil, &edge.HTTPStatusError{Code: 404, Message: "Not Found"}
		},
		testBase + "/down.html": func() ([]edge.Entry, error) {
			return nil, &edge.TransportError{URL: testBase + "/down.html", Err: errors.New("connection reset")}
		},
	}}
	agg := NewFailureAggregator()
	rec := metrics.New()
	d := &Dispatcher{Purger: purger, Failures: agg, Metrics: rec}

	outcomes := d.Dispatch(context.Background(), []string{"/a.html", "/missing.html", "/b.html", "/down.html"}, testBase)

	assert.Equal(t, 4, purger.calls())
	assert.NoError(t, outcomes[0].Err)
	assert.NoError(t, outcomes[2].Err)

	records := agg.Drain()
	require.Len(t, records, 2)
	labels := map[string]bool{}
	for _, r := range records {
		labels[r.Label] = true
	}
	assert.True(t, labels["/missing.html"])
	assert.True(t, labels["/down.html"])

	g := rec.Gatherer()
	n, err := testutil.GatherAndCount(g, "hlxpurge_requests_total")
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestDispatchRecordsOnlyFailedEntries(t *testing.T) {
	target := testBase + "/mixed.html"
	purger := &fakePurger{results: map[string]func() ([]edge.Entry, error){
		target: func() ([]edge.Entry, error) {
			entries := []edge.Entry{
				{Status: "ok", URL: "https://a/mixed.html"},
				{Status: "error", URL: "https://b/mixed.html"},
				{Status: "ok", URL: "https://c/mixed.html"},
			}
			return entries, &edge.EntriesError{Failed: []*edge.PurgeEntryError{{URL: "https://b/mixed.html", Status: "error"}}}
		},
	}}
	agg := NewFailureAggregator()
	d := &Dispatcher{Purger: purger, Failures: agg}

	outcomes := d.Dispatch(context.Background(), []string{"/mixed.html"}, testBase)

	require.Len(t, outcomes, 1)
	assert.Len(t, outcomes[0].Entries, 3)
	records := agg.Drain()
	require.Len(t, records, 1)
	assert.Equal(t, "/mixed.html", records[0].Label)

	var pe *edge.PurgeEntryError
	require.True(t, errors.As(records[0].Err, &pe))
	assert.Equal(t, "https://b/mixed.html", pe.URL)
}

func TestDispatchWithoutAggregator(t *testing.T) {
	purger := &fakePurger{results: map[string]func() ([]edge.Entry, error){
		testBase + "/gone.html": func() ([]edge.Entry, error) {
			return nil, &edge.HTTPStatusError{Code: 410, Message: "Gone"}
		},
	}}
	d := &Dispatcher{Purger: purger}

	outcomes := d.Dispatch(context.Background(), []string{"/gone.html", "/ok.html"}, testBase)
	require.Len(t, outcomes, 2)
	assert.Error(t, outcomes[0].Err)
	assert.NoError(t, outcomes[1].Err)
	require.NotNil(t, d.Failures)
	assert.True(t, d.Failures.HasFailed())
}

func TestDispatchIgnoresCallerCancellation(t *testing.T) {
	purger := &fakePurger{delay: 5 * time.Millisecond}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	d := &Dispatcher{Purger: purger, Failures: NewFailureAggregator(), Limit: 2}
	outcomes := d.Dispatch(ctx, []string{"/a", "/b", "/c"}, testBase)
	assert.Equal(t, 3, purger.calls())
	for _, o := range outcomes {
		assert.NoError(t, o.Err)
	}
}

func TestFailureKind(t *testing.T) {
	cases := map[string]error{
		"transport":    &edge.TransportError{Err: errors.New("x")},
		"status":       &edge.HTTPStatusError{Code: 500},
		"content_type": &edge.ContentTypeError{Got: "text/html"},
		"decode":       &edge.DecodeError{Err: errors.New("x")},
		"entry":        &edge.PurgeEntryError{Status: "error"},
		"cdn":          &edge.BatchError{Err: errors.New("x")},
		"other":        errors.New("x"),
	}
	for want, err := range cases {
		assert.Equal(t, want, failureKind(err))
	}
}
