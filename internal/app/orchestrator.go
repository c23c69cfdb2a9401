package app

import (
	"context"
	"errors"
	"fmt"

	"HlxPurge/changeset"
	"HlxPurge/edge"
	"HlxPurge/internal/host"
	"HlxPurge/internal/logger"
	"HlxPurge/internal/metrics"

	"go.uber.org/zap"
)

// Phase is the state of a run.
type Phase string

const (
	PhaseInit             Phase = "init"
	PhaseValidatingConfig Phase = "validating_config"
	PhaseDispatching      Phase = "dispatching"
	PhaseAggregating      Phase = "aggregating"
	PhaseDone             Phase = "done"
)

type RunRequest struct {
	Paths      []string
	BaseURL    string
	Credential string
}

// Outcome is the terminal artifact of one run.
type Outcome struct {
	Failed     bool
	Failures   []FailureRecord
	Dispatched int
	Cleared    int
	Skipped    int
	Phase      Phase
}

// Mirror purges the same paths from a second CDN after the edge purge.
type Mirror interface {
	PurgeFiles(ctx context.Context, paths []string) (int, []error)
}

// FailureSink persists the failure report.
type FailureSink interface {
	SaveFailures(failures []changeset.Failure) error
}

type Orchestrator struct {
	// Connect opens the connection pool for one run.
	Connect  func(credential string) edge.Session
	Reporter host.Reporter

	Mirror   Mirror
	Notifier *NotifierService
	Sink     FailureSink
	Metrics  *metrics.Recorder

	IgnorePrefix string
	Limit        int
	MetricsFile  string
	// Subject names the site in notifications.
	Subject string
}

// Run validates the base URL, purges every filtered path and reports the
// aggregate result to the host. The returned error is only ever a fatal
// precondition; per-file failures are in the Outcome.
func (o *Orchestrator) Run(ctx context.Context, req RunRequest) (Outcome, error) {
	if o.Connect == nil || o.Reporter == nil {
		return Outcome{}, ErrMissingDependencies
	}
	log := logger.Named("run")
	out := Outcome{Phase: PhaseInit}

	session := o.Connect(req.Credential)
	defer func() {
		if err := session.Close(); err != nil {
			log.Warn("close connection pool", zap.Error(err))
		}
	}()

	out.Phase = PhaseValidatingConfig
	if _, err := edge.ParseBase(req.BaseURL); err != nil {
		out.Phase = PhaseDone
		out.Failed = true
		err = fmt.Errorf("%w: %w", ErrFatalPrecondition, err)
		log.Error("invalid edge url", zap.Error(err))
		o.Reporter.Failed(err.Error())
		return out, err
	}

	paths, skipped := changeset.Filter(req.Paths, o.IgnorePrefix)
	out.Skipped = skipped
	out.Dispatched = len(paths)
	log.Info("purging", logger.URL(req.BaseURL), logger.Count(len(paths)), zap.Int("skipped", skipped))

	out.Phase = PhaseDispatching
	failures := NewFailureAggregator()
	d := &Dispatcher{Purger: session, Failures: failures, Metrics: o.Metrics, Limit: o.Limit}
	for _, r := range d.Dispatch(ctx, paths, req.BaseURL) {
		if r.Err == nil {
			out.Cleared++
		}
	}

	if o.Mirror != nil && len(paths) > 0 {
		purged, errs := o.Mirror.PurgeFiles(ctx, paths)
		for _, err := range errs {
			o.Metrics.Failure(failureKind(err))
			var be *edge.BatchError
			if errors.As(err, &be) {
				failures.Record(fmt.Sprintf("cloudflare[%d:%d]", be.From, be.To), be.Err)
				continue
			}
			failures.Record("cloudflare", err)
		}
		log.Info("mirror purge finished", logger.Count(purged), zap.Int("failed_batches", len(errs)))
	}

	out.Phase = PhaseAggregating
	out.Failures = failures.Drain()
	out.Failed = len(out.Failures) > 0
	o.report(ctx, out)

	out.Phase = PhaseDone
	return out, nil
}

func (o *Orchestrator) report(ctx context.Context, out Outcome) {
	log := logger.Named("run")

	if out.Failed {
		o.Reporter.Failed(Report(out.Failures))
	} else {
		o.Reporter.Infof("cleared %d file(s)", out.Cleared)
	}
	o.Reporter.Summary(out.Cleared, len(out.Failures))

	if o.Sink != nil {
		rows := make([]changeset.Failure, len(out.Failures))
		for i, f := range out.Failures {
			rows[i] = changeset.Failure{Label: f.Label, Reason: f.Err.Error()}
		}
		if err := o.Sink.SaveFailures(rows); err != nil {
			log.Warn("save failure report", zap.Error(err))
		}
	}
	if err := o.Metrics.WriteTextfile(o.MetricsFile); err != nil {
		log.Warn("write metrics", zap.Error(err))
	}
	if out.Failed && o.Notifier != nil {
		if err := o.Notifier.NotifyFailures(ctx, o.Subject, out.Failures); err != nil {
			log.Warn("notify failures", zap.Error(err))
		}
	}
}
