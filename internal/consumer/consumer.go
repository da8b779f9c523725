// Package consumer converts at-least-once broker delivery into
// effectively-once business effect. The business handler and the
// idempotency-ledger insert commit in one local transaction; the offset is
// committed only afterwards, so a crash mid-transaction redelivers the
// message and the ledger short-circuits the replayed copy.
package consumer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"prequal-service/internal/broker"
	"prequal-service/internal/event"
	"prequal-service/internal/metrics"
	"prequal-service/internal/model"
	"prequal-service/internal/repo"
)

// Handler applies one message's business effect inside tx. Returning a
// Permanent error dead-letters; any other error is retried with backoff.
type Handler func(ctx context.Context, tx *gorm.DB, env event.Envelope, msg kafka.Message) error

// Options bound retries and handler latency.
type Options struct {
	Group          string
	DLQSuffix      string
	MaxAttempts    int
	BaseBackoff    time.Duration
	HandlerTimeout time.Duration
}

// Consumer wraps a stage handler with the idempotency, retry and
// dead-letter policy shared by the scoring and decision stages.
type Consumer struct {
	repo    *repo.Repository
	dlq     broker.Publisher
	handler Handler
	log     *zap.SugaredLogger
	metrics *metrics.Consumer
	opts    Options

	// sleep is swapped in tests to avoid real backoff waits.
	sleep func(ctx context.Context, d time.Duration)
}

// New constructs a consumer. metrics may be nil in tests.
func New(r *repo.Repository, dlq broker.Publisher, handler Handler, m *metrics.Consumer, log *zap.SugaredLogger, opts Options) *Consumer {
	return &Consumer{
		repo:    r,
		dlq:     dlq,
		handler: handler,
		log:     log,
		metrics: m,
		opts:    opts,
		sleep:   sleepCtx,
	}
}

// Reader is the broker consumption surface of kafka.Reader, narrowed so the
// fetch/commit loop can be driven by a scripted fake in tests.
type Reader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Run fetches messages until ctx is cancelled, committing each offset only
// after HandleMessage resolves it. The loop never fetches past an unresolved
// message: offset commits are per-partition watermarks, so committing any
// later offset would implicitly acknowledge the unresolved one and drop it.
func (c *Consumer) Run(ctx context.Context, reader Reader) error {
	defer reader.Close()
	for {
		msg, err := reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return fmt.Errorf("fetch message: %w", err)
		}
		for {
			err := c.HandleMessage(context.Background(), msg)
			if err == nil {
				break
			}
			// Unresolvable (e.g. dead-letter publish failed): hold
			// position and re-attempt the same message.
			c.log.Errorw("message unresolved, holding offset",
				"topic", msg.Topic, "partition", msg.Partition, "offset", msg.Offset, "error", err)
			c.sleep(ctx, c.opts.BaseBackoff)
			if ctx.Err() != nil {
				return nil
			}
		}
		if err := reader.CommitMessages(ctx, msg); err != nil {
			c.log.Errorw("commit offset", "error", err)
		}
	}
}

// HandleMessage resolves one delivery to exactly one of: effect committed,
// duplicate skipped, or dead-lettered. A nil return means the offset may be
// committed.
func (c *Consumer) HandleMessage(ctx context.Context, msg kafka.Message) error {
	env, err := event.Decode(msg.Value)
	if err != nil {
		// Malformed payloads cannot succeed later: dead-letter at once,
		// forwarding the original bytes so the copy stays inspectable.
		c.log.Warnw("permanent decode failure", "topic", msg.Topic, "offset", msg.Offset, "error", err)
		return c.deadLetter(ctx, msg, msg.Value, err, 0)
	}

	fp := event.Fingerprint(env.AggregateID, msg.Topic, msg.Partition, msg.Offset)

	var lastErr error
	for attempt := 1; attempt <= c.opts.MaxAttempts; attempt++ {
		err := c.processOnce(ctx, fp, env, msg)
		switch {
		case err == nil:
			if c.metrics != nil {
				c.metrics.Processed.Inc()
			}
			return nil
		case errors.Is(err, errDuplicate):
			c.log.Infow("duplicate delivery skipped", "fingerprint", fp)
			if c.metrics != nil {
				c.metrics.Duplicates.Inc()
			}
			return nil
		case IsPermanent(err):
			c.log.Errorw("permanent failure", "fingerprint", fp, "error", err)
			return c.deadLetter(ctx, msg, deadLetterBody(env, err, attempt), err, attempt)
		}
		lastErr = err
		backoff := c.opts.BaseBackoff << (attempt - 1)
		c.log.Warnw("transient failure, backing off",
			"fingerprint", fp, "attempt", attempt, "backoff", backoff, "error", err)
		if attempt < c.opts.MaxAttempts {
			c.sleep(ctx, backoff)
		}
	}

	c.log.Errorw("retry budget exhausted", "fingerprint", fp, "attempts", c.opts.MaxAttempts, "error", lastErr)
	return c.deadLetter(ctx, msg, deadLetterBody(env, lastErr, c.opts.MaxAttempts), lastErr, c.opts.MaxAttempts)
}

// processOnce runs the ledger check, the handler and the ledger insert in
// one transaction. The ledger check is a single indexed lookup.
func (c *Consumer) processOnce(ctx context.Context, fp string, env event.Envelope, msg kafka.Message) error {
	hctx, cancel := context.WithTimeout(ctx, c.opts.HandlerTimeout)
	defer cancel()

	return c.repo.DB(hctx).Transaction(func(tx *gorm.DB) error {
		seen, err := c.repo.SeenMessage(hctx, tx, fp)
		if err != nil {
			return err
		}
		if seen {
			return errDuplicate
		}
		if err := c.handler(hctx, tx, env, msg); err != nil {
			return err
		}
		return c.repo.MarkProcessed(hctx, tx, &model.ProcessedMessage{
			Fingerprint:   fp,
			Topic:         msg.Topic,
			Partition:     msg.Partition,
			Offset:        msg.Offset,
			ConsumerGroup: c.opts.Group,
		})
	})
}

// deadLetterBody stamps the failure metadata onto a decoded envelope.
// Undecodable messages never reach here; their raw bytes go to the
// dead-letter topic untouched.
func deadLetterBody(env event.Envelope, cause error, attempts int) []byte {
	env.FailureReason = cause.Error()
	env.AttemptCount = attempts
	payload, err := env.Encode()
	if err != nil {
		return nil
	}
	return payload
}

// deadLetter parks payload on the source topic's dead-letter twin, then lets
// the offset advance. A failed dead-letter publish is returned so the caller
// holds position instead of silently dropping the message.
func (c *Consumer) deadLetter(ctx context.Context, msg kafka.Message, payload []byte, cause error, attempts int) error {
	if payload == nil {
		payload = msg.Value
	}
	suffix := c.opts.DLQSuffix
	if suffix == "" {
		suffix = ".dlq"
	}
	topic := msg.Topic + suffix
	if err := c.dlq.Publish(ctx, topic, msg.Key, payload); err != nil {
		return fmt.Errorf("dead-letter publish to %s: %w", topic, err)
	}
	if c.metrics != nil {
		c.metrics.DeadLetter.Inc()
	}
	c.log.Warnw("message dead-lettered", "topic", topic, "attempts", attempts, "reason", cause.Error())
	return nil
}

func sleepCtx(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
