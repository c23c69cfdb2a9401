// Package metrics counts purge traffic on a private prometheus registry.
// A run is short-lived, so the numbers are dumped once at the end in
// textfile-collector format instead of being scraped.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Request outcomes.
const (
	OutcomeCleared   = "cleared"
	OutcomeRejected  = "rejected"
	OutcomeTransport = "transport"
)

type Recorder struct {
	registry *prometheus.Registry

	requests *prometheus.CounterVec
	entries  *prometheus.CounterVec
	failures *prometheus.CounterVec
	inflight prometheus.Gauge
	duration prometheus.Histogram
}

// New registers all collectors on a fresh registry.
func New() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "hlxpurge_requests_total",
			Help: "Purge requests by outcome",
		}, []string{"outcome"}),
		entries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "hlxpurge_entries_total",
			Help: "Acknowledged cache entries by reported status",
		}, []string{"status"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "hlxpurge_failures_total",
			Help: "Failure records by kind",
		}, []string{"kind"}),
		inflight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "hlxpurge_inflight_requests",
			Help: "Purge requests currently in flight",
		}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "hlxpurge_request_duration_seconds",
			Help:    "Latency of a single purge request",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),
	}
	r.registry.MustRegister(r.requests, r.entries, r.failures, r.inflight, r.duration)
	return r
}

// Start marks one request in flight and returns the func that ends it.
func (r *Recorder) Start() func(outcome string) {
	if r == nil {
		return func(string) {}
	}
	began := time.Now()
	r.inflight.Inc()
	return func(outcome string) {
		r.inflight.Dec()
		r.duration.Observe(time.Since(began).Seconds())
		r.requests.WithLabelValues(outcome).Inc()
	}
}

func (r *Recorder) Entry(status string) {
	if r == nil {
		return
	}
	r.entries.WithLabelValues(status).Inc()
}

func (r *Recorder) Failure(kind string) {
	if r == nil {
		return
	}
	r.failures.WithLabelValues(kind).Inc()
}

// Gatherer exposes the registry, mainly for tests.
func (r *Recorder) Gatherer() prometheus.Gatherer {
	return r.registry
}

// WriteTextfile writes all metrics to path atomically.
func (r *Recorder) WriteTextfile(path string) error {
	if r == nil || path == "" {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
