package scoring

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"prequal-service/internal/broker"
	"prequal-service/internal/consumer"
	"prequal-service/internal/crypto"
	"prequal-service/internal/event"
	"prequal-service/internal/model"
	"prequal-service/internal/repo"
)

const actor = "scoring-service"

// Handler consumes submitted events, scores them and produces scored events
// to the output topic. The produce happens inside the ledger transaction:
// a crash before the ledger commit replays the message and may publish a
// second copy, which the decision stage deduplicates.
type Handler struct {
	repo   *repo.Repository
	cipher *crypto.Cipher
	out    broker.Publisher
	topic  string
	log    *zap.SugaredLogger
}

// NewHandler wires the scoring stage. topic is the scored-events topic.
func NewHandler(r *repo.Repository, cipher *crypto.Cipher, out broker.Publisher, topic string, log *zap.SugaredLogger) *Handler {
	return &Handler{repo: r, cipher: cipher, out: out, topic: topic, log: log}
}

// Handle implements consumer.Handler.
func (h *Handler) Handle(ctx context.Context, tx *gorm.DB, env event.Envelope, msg kafka.Message) error {
	appID, err := uuid.Parse(env.AggregateID)
	if err != nil {
		return consumer.Permanent(fmt.Errorf("aggregate id %q: %w", env.AggregateID, err))
	}

	pan, err := h.cipher.DecryptFromString(env.PANEncrypted)
	if err != nil {
		// A payload that cannot be decrypted will never decrypt; a key
		// misconfiguration shows up as every message failing, which the
		// dead-letter volume makes obvious.
		return consumer.Permanent(fmt.Errorf("decrypt pan: %w", err))
	}
	if err := h.repo.RecordAccess(ctx, tx, appID, actor, model.AuditDecrypt); err != nil {
		return fmt.Errorf("audit decrypt: %w", err)
	}

	score := Score(pan, env.AggregateID, env.MonthlyIncome, model.LoanType(env.LoanType))
	h.log.Infow("application scored", "application", env.AggregateID, "score", score)

	// Re-encrypt for transport; the scored envelope never carries the
	// plaintext PAN.
	panOut, err := h.cipher.EncryptToString(pan)
	if err != nil {
		return fmt.Errorf("re-encrypt pan: %w", err)
	}

	scored := event.Envelope{
		AggregateID:     env.AggregateID,
		PayloadVersion:  event.PayloadVersion,
		EventType:       event.TypeScored,
		PANEncrypted:    panOut,
		MonthlyIncome:   env.MonthlyIncome,
		RequestedAmount: env.RequestedAmount,
		LoanType:        env.LoanType,
		Score:           &score,
		ProducedAt:      time.Now().UTC(),
	}
	payload, err := scored.Encode()
	if err != nil {
		return consumer.Permanent(fmt.Errorf("encode scored event: %w", err))
	}

	// A publish failure aborts the transaction so the ledger insert never
	// commits; the whole handler is retried, which is safe because the
	// downstream consumer is idempotent.
	if err := h.out.Publish(ctx, h.topic, []byte(env.AggregateID), payload); err != nil {
		return fmt.Errorf("publish scored event: %w", err)
	}
	return nil
}
