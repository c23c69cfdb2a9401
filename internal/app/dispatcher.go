package app

import (
	"context"
	"errors"

	"HlxPurge/edge"
	"HlxPurge/internal/logger"
	"HlxPurge/internal/metrics"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// FileOutcome is the terminal state of one file's purge.
type FileOutcome struct {
	Path    string
	Target  string
	Entries []edge.Entry
	Err     error
}

// Dispatcher fans purge requests out under a fixed concurrency ceiling.
type Dispatcher struct {
	Purger   edge.Purger
	// Failures collects failure records. Dispatch creates one when nil.
	Failures *FailureAggregator
	Metrics  *metrics.Recorder
	// Limit is the maximum number of requests in flight. Default 20.
	Limit int
}

// Dispatch purges every path against base and waits for all of them.
// Failures are recorded on d.Failures and never stop sibling requests; the
// returned outcomes are in input order.
func (d *Dispatcher) Dispatch(ctx context.Context, paths []string, base string) []FileOutcome {
	if len(paths) == 0 {
		return nil
	}
	if d.Failures == nil {
		d.Failures = NewFailureAggregator()
	}
	limit := d.Limit
	if limit <= 0 {
		limit = edge.DefaultMaxConnections
	}
	log := logger.Named("dispatch")

	// issued requests run to completion even if the caller goes away
	reqCtx := context.WithoutCancel(ctx)

	outcomes := make([]FileOutcome, len(paths))
	var g errgroup.Group
	g.SetLimit(limit)
	for i, p := range paths {
		i, p := i, p
		g.Go(func() error {
			outcomes[i] = d.purgeOne(reqCtx, log, p, base)
			return nil
		})
	}
	_ = g.Wait()
	return outcomes
}

func (d *Dispatcher) purgeOne(ctx context.Context, log *zap.Logger, path, base string) FileOutcome {
	target := edge.JoinURLPath(base, path)
	done := d.Metrics.Start()

	entries, err := d.Purger.Purge(ctx, target)
	for _, e := range entries {
		d.Metrics.Entry(e.Status)
	}
	out := FileOutcome{Path: path, Target: target, Entries: entries, Err: err}

	if err == nil {
		done(metrics.OutcomeCleared)
		log.Info("cleared", logger.Path(path), logger.URL(target), logger.Count(len(entries)))
		return out
	}

	var entryErr *edge.EntriesError
	if errors.As(err, &entryErr) {
		done(metrics.OutcomeRejected)
		for _, fe := range entryErr.Failed {
			d.Metrics.Failure(failureKind(fe))
			d.Failures.Record(path, fe)
		}
		log.Warn("purge entries failed", logger.Path(path), logger.Count(len(entryErr.Failed)), zap.Error(err))
		return out
	}

	var te *edge.TransportError
	if errors.As(err, &te) {
		done(metrics.OutcomeTransport)
	} else {
		done(metrics.OutcomeRejected)
	}
	d.Metrics.Failure(failureKind(err))
	d.Failures.Record(path, err)
	log.Warn("purge failed", logger.Path(path), logger.URL(target), zap.Error(err))
	return out
}

func failureKind(err error) string {
	var (
		te *edge.TransportError
		se *edge.HTTPStatusError
		ce *edge.ContentTypeError
		de *edge.DecodeError
		pe *edge.PurgeEntryError
		be *edge.BatchError
	)
	switch {
	case errors.As(err, &pe):
		return "entry"
	case errors.As(err, &te):
		return "transport"
	case errors.As(err, &se):
		return "status"
	case errors.As(err, &ce):
		return "content_type"
	case errors.As(err, &de):
		return "decode"
	case errors.As(err, &be):
		return "cdn"
	default:
		return "other"
	}
}
