package events

import (
	"context"
	"time"

	applog "storefront/internal/log"
	"storefront/internal/metrics"
	"storefront/internal/repos"
)

// Relay moves outbox records to a Publisher. Records are marked sent only
// after they were published; a failure stops the batch so order is kept.
type Relay struct {
	Outbox   *repos.OutboxRepo
	Pub      Publisher
	Batch    int
	Interval time.Duration
	Metrics  *metrics.Metrics
}

// Run flushes on every tick until ctx is done.
func (r *Relay) Run(ctx context.Context) {
	t := time.NewTicker(r.Interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if _, err := r.Flush(ctx); err != nil && ctx.Err() == nil {
				applog.Logger().WithError(err).Warn("outbox.flush_failed")
			}
		}
	}
}

// Flush publishes one batch of pending records and returns how many were sent.
func (r *Relay) Flush(ctx context.Context) (int, error) {
	recs, err := r.Outbox.FetchPending(ctx, r.Batch)
	if err != nil {
		return 0, err
	}
	sent := make([]int64, 0, len(recs))
	var pubErr error
	for _, rec := range recs {
		if pubErr = r.Pub.Publish(ctx, rec); pubErr != nil {
			break
		}
		sent = append(sent, rec.ID)
	}
	if err := r.Outbox.MarkSent(ctx, sent); err != nil {
		return 0, err
	}
	r.Metrics.Published(len(sent))
	return len(sent), pubErr
}
