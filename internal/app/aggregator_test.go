package app

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAggregatorConcurrentRecord(t *testing.T) {
	agg := NewFailureAggregator()
	assert.False(t, agg.HasFailed())

	var wg sync.WaitGroup
	for i := 0; i < 200; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			agg.Record(fmt.Sprintf("/f%d", i), errors.New("boom"))
		}(i)
	}
	wg.Wait()

	require.True(t, agg.HasFailed())
	records := agg.Drain()
	assert.Len(t, records, 200)
	assert.True(t, agg.Drained())

	seen := make(map[string]bool, len(records))
	for _, r := range records {
		seen[r.Label] = true
	}
	assert.Len(t, seen, 200)
}

func TestAggregatorIgnoresNil(t *testing.T) {
	agg := NewFailureAggregator()
	agg.Record("/x", nil)
	assert.False(t, agg.HasFailed())
	assert.Empty(t, agg.Drain())
}

func TestAggregatorDrainReturnsCopy(t *testing.T) {
	agg := NewFailureAggregator()
	agg.Record("/a", errors.New("one"))

	first := agg.Drain()
	first[0].Label = "mutated"
	agg.Record("/b", errors.New("two"))

	second := agg.Drain()
	require.Len(t, second, 2)
	assert.Equal(t, "/a", second[0].Label)
	assert.Equal(t, "/b", second[1].Label)
}

func TestReport(t *testing.T) {
	records := []FailureRecord{
		{Label: "/a.html", Err: errors.New("unexpected status 404: Not Found")},
		{Label: "/b.html", Err: errors.New("request failed")},
	}
	assert.Equal(t, "/a.html: unexpected status 404: Not Found\n/b.html: request failed", Report(records))
	assert.Equal(t, "", Report(nil))
}
