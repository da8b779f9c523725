package decision

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"prequal-service/internal/consumer"
	"prequal-service/internal/event"
	"prequal-service/internal/repo"
)

const (
	updateAttempts = 3
	conflictDelay  = 100 * time.Millisecond

	// Valid score range; anything outside it on the wire is corrupt.
	minValidScore = 300
	maxValidScore = 900
)

// Handler consumes scored events and applies the decision with optimistic
// concurrency: read, recompute against fresh state, conditional update,
// retry on conflict. The recompute matters: after a conflict the fresh row
// may legitimately produce a different outcome.
type Handler struct {
	repo  *repo.Repository
	log   *zap.SugaredLogger
	sleep func(d time.Duration)
}

// NewHandler wires the decision stage.
func NewHandler(r *repo.Repository, log *zap.SugaredLogger) *Handler {
	return &Handler{repo: r, log: log, sleep: time.Sleep}
}

// Handle implements consumer.Handler.
func (h *Handler) Handle(ctx context.Context, tx *gorm.DB, env event.Envelope, msg kafka.Message) error {
	appID, err := uuid.Parse(env.AggregateID)
	if err != nil {
		return consumer.Permanent(fmt.Errorf("aggregate id %q: %w", env.AggregateID, err))
	}
	if env.Score == nil {
		return consumer.Permanent(fmt.Errorf("scored event for %s missing score", env.AggregateID))
	}
	score := *env.Score
	if score < minValidScore || score > maxValidScore {
		return consumer.Permanent(fmt.Errorf("score %d for %s outside [%d,%d]",
			score, env.AggregateID, minValidScore, maxValidScore))
	}

	for attempt := 1; attempt <= updateAttempts; attempt++ {
		app, err := h.repo.GetApplication(ctx, tx, appID)
		if errors.Is(err, repo.ErrNotFound) {
			// The application row is the outbox event's transaction
			// sibling, so absence is not eventual-consistency lag.
			return consumer.Permanent(fmt.Errorf("application %s not found", appID))
		}
		if err != nil {
			return err
		}

		if app.Status.IsTerminal() {
			// Already decided: a replayed or duplicate logical event.
			// Terminal states are monotonic, so this is a no-op success.
			h.log.Infow("application already decided", "application", appID, "status", app.Status)
			return nil
		}

		out := Decide(app.MonthlyIncome, app.RequestedAmount, score)
		rows, err := h.repo.UpdateWithVersion(ctx, tx, appID, repo.DecisionUpdate{
			Status:            out.Status,
			Score:             score,
			Reason:            out.Reason,
			MaxApprovedAmount: out.MaxApprovedAmount,
		}, app.Version)
		if err != nil {
			return err
		}
		if rows == 1 {
			h.log.Infow("decision applied",
				"application", appID, "status", out.Status, "score", score, "attempt", attempt)
			return nil
		}

		// Conflict: someone mutated the row between read and update.
		h.log.Warnw("version conflict", "application", appID, "expected_version", app.Version, "attempt", attempt)
		if attempt < updateAttempts {
			h.sleep(conflictDelay)
		}
	}
	return consumer.Permanent(fmt.Errorf("version conflict persisted after %d attempts for %s", updateAttempts, appID))
}
