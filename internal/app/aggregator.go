package app

import (
	"fmt"
	"strings"
	"sync"
)

// FailureRecord is one failed file or failed entry.
type FailureRecord struct {
	Label string
	Err   error
}

func (f FailureRecord) Error() string {
	return fmt.Sprintf("%s: %v", f.Label, f.Err)
}

// FailureAggregator is an append-only log of failures shared by all purge
// goroutines of a run.
type FailureAggregator struct {
	mu      sync.Mutex
	records []FailureRecord
	drained bool
}

func NewFailureAggregator() *FailureAggregator {
	return &FailureAggregator{}
}

// Record appends a failure. Safe for concurrent use.
func (a *FailureAggregator) Record(label string, err error) {
	if err == nil {
		return
	}
	a.mu.Lock()
	a.records = append(a.records, FailureRecord{Label: label, Err: err})
	a.mu.Unlock()
}

func (a *FailureAggregator) HasFailed() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.records) > 0
}

// Drain returns a copy of every record in append order and marks the log
// drained. Records appended later are still kept.
func (a *FailureAggregator) Drain() []FailureRecord {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.drained = true
	out := make([]FailureRecord, len(a.records))
	copy(out, a.records)
	return out
}

func (a *FailureAggregator) Drained() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.drained
}

// Report joins every failure message, one per line.
func Report(records []FailureRecord) string {
	lines := make([]string, len(records))
	for i, r := range records {
		lines[i] = r.Error()
	}
	return strings.Join(lines, "\n")
}
