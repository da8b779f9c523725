// Package relay implements the outbox relay: a fixed-interval poll loop
// that publishes staged events to the broker and marks them published.
// Delivery is at-least-once: a crash between broker ack and the mark
// produces a duplicate on restart, which downstream idempotency absorbs.
package relay

import (
	"context"
	"time"

	"go.uber.org/zap"

	"prequal-service/internal/broker"
	"prequal-service/internal/metrics"
	"prequal-service/internal/model"
	"prequal-service/internal/repo"
)

// Options bound the relay's batch, retries and publish latency.
type Options struct {
	PollInterval   time.Duration
	BatchSize      int
	MaxRetries     int
	PublishTimeout time.Duration
}

// Relay owns its breaker and metrics explicitly; one instance per process,
// single flight per instance. Multiple process replicas may run
// concurrently: MarkPublished is predicate-guarded and consumers dedup.
type Relay struct {
	repo    *repo.Repository
	pub     broker.Publisher
	breaker *Breaker
	log     *zap.SugaredLogger
	metrics *metrics.Relay
	opts    Options
}

// New constructs a relay. metrics may be nil in tests.
func New(r *repo.Repository, pub broker.Publisher, breaker *Breaker, m *metrics.Relay, log *zap.SugaredLogger, opts Options) *Relay {
	return &Relay{repo: r, pub: pub, breaker: breaker, log: log, metrics: m, opts: opts}
}

// Run polls on a fixed interval until ctx is cancelled. The in-flight batch
// always finishes before Run returns.
func (r *Relay) Run(ctx context.Context) {
	ticker := time.NewTicker(r.opts.PollInterval)
	defer ticker.Stop()

	r.log.Infow("outbox relay started", "interval", r.opts.PollInterval, "batch", r.opts.BatchSize)
	for {
		select {
		case <-ctx.Done():
			r.log.Info("outbox relay stopped")
			return
		case <-ticker.C:
			// The batch runs against the background context so an
			// in-flight publish is flushed even during shutdown.
			if _, err := r.PollAndPublish(context.Background()); err != nil {
				r.log.Errorw("poll and publish", "error", err)
			}
		}
	}
}

// PollAndPublish performs one relay pass: select up to BatchSize
// unpublished rows oldest-first, publish each keyed by aggregate id, mark
// acknowledged rows published, and record attempted failures. Returns the
// number of rows published.
func (r *Relay) PollAndPublish(ctx context.Context) (int, error) {
	events, err := r.repo.PollOutbox(ctx, r.opts.BatchSize, r.opts.MaxRetries)
	if err != nil {
		return 0, err
	}
	r.observe(ctx, len(events))

	published := 0
	for i := range events {
		evt := &events[i]
		if err := r.publishOne(ctx, evt); err != nil {
			if err == ErrCircuitOpen {
				// Short-circuited: no network call was made, so the
				// retry counter must not move. The rest of the batch
				// would short-circuit too.
				r.log.Warnw("publish short-circuited", "event", evt.ID, "state", r.breaker.State())
				break
			}
			r.log.Errorw("publish failed", "event", evt.ID, "retries", evt.RetryCount+1, "error", err)
			if r.metrics != nil {
				r.metrics.PublishFailed.Inc()
			}
			if ferr := r.repo.RecordPublishFailure(ctx, evt.ID, err.Error()); ferr != nil {
				r.log.Errorw("record publish failure", "event", evt.ID, "error", ferr)
			}
			continue
		}
		if err := r.repo.MarkPublished(ctx, evt.ID); err != nil {
			// The publish succeeded; the row stays pending and will be
			// republished next pass. Consumers dedup the extra copy.
			r.log.Errorw("mark published", "event", evt.ID, "error", err)
			continue
		}
		published++
		if r.metrics != nil {
			r.metrics.Published.Inc()
		}
	}
	return published, nil
}

func (r *Relay) publishOne(ctx context.Context, evt *model.OutboxEvent) error {
	if !r.breaker.Allow() {
		return ErrCircuitOpen
	}
	pubCtx, cancel := context.WithTimeout(ctx, r.opts.PublishTimeout)
	defer cancel()
	if err := r.pub.Publish(pubCtx, evt.Topic, []byte(evt.Key), []byte(evt.Payload)); err != nil {
		r.breaker.OnFailure()
		return err
	}
	r.breaker.OnSuccess()
	return nil
}

func (r *Relay) observe(ctx context.Context, pending int) {
	if r.metrics == nil {
		return
	}
	r.metrics.Pending.Set(float64(pending))
	if age, err := r.repo.OldestPendingAge(ctx); err == nil {
		r.metrics.OldestAge.Set(age.Seconds())
	}
	if dead, err := r.repo.CountDeadRows(ctx, r.opts.MaxRetries); err == nil {
		r.metrics.DeadRows.Set(float64(dead))
	}
}
