package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"prequal-service/internal/crypto"
	"prequal-service/internal/event"
	"prequal-service/internal/model"
	"prequal-service/internal/repo"
	"prequal-service/internal/validate"
)

const (
	actor          = "prequal-api"
	statusCacheTTL = 30 * time.Second
)

// ErrDuplicatePAN means an active application with the same PAN exists
// inside the configured window.
var ErrDuplicatePAN = errors.New("an active application with this PAN already exists")

// ErrNotFound re-exported for the transport layer.
var ErrNotFound = repo.ErrNotFound

// SubmitResult acknowledges a submission.
type SubmitResult struct {
	ApplicationID uuid.UUID
	OutboxEventID uint64
	Status        model.Status
	CreatedAt     time.Time
}

// StatusResult is the query surface. PAN is masked here, at the boundary,
// and never stored masked.
type StatusResult struct {
	ApplicationID     uuid.UUID        `json:"application_id"`
	Status            model.Status     `json:"status"`
	PANMasked         string           `json:"pan_number_masked"`
	FirstName         string           `json:"first_name"`
	LastName          string           `json:"last_name"`
	RequestedAmount   decimal.Decimal  `json:"requested_amount"`
	Score             *int             `json:"score,omitempty"`
	DecisionReason    *string          `json:"decision_reason,omitempty"`
	MaxApprovedAmount *decimal.Decimal `json:"max_approved_amount,omitempty"`
	CreatedAt         time.Time        `json:"created_at"`
	UpdatedAt         time.Time        `json:"updated_at"`
}

// ApplicationService is the ingress write path. Its one contract that the
// pipeline depends on: Submit returns success only if the application row
// and its outbox row committed in the same transaction.
type ApplicationService struct {
	repo      *repo.Repository
	cipher    *crypto.Cipher
	rdb       *redis.Client
	log       *zap.SugaredLogger
	topic     string
	panWindow time.Duration
}

// NewApplicationService constructs the service. rdb may be nil (cache off).
func NewApplicationService(r *repo.Repository, cipher *crypto.Cipher, rdb *redis.Client, log *zap.SugaredLogger, submittedTopic string, panWindow time.Duration) *ApplicationService {
	return &ApplicationService{
		repo:      r,
		cipher:    cipher,
		rdb:       rdb,
		log:       log,
		topic:     submittedTopic,
		panWindow: panWindow,
	}
}

// Submit validates, encrypts, and atomically writes the application, its
// audit entry and the outbox event. If it returns nil error, the submitted
// event will eventually be published.
func (s *ApplicationService) Submit(ctx context.Context, in validate.Submission) (*SubmitResult, error) {
	if errs := validate.Check(in, time.Now()); errs != nil {
		return nil, errs
	}

	panEncrypted, err := s.cipher.Encrypt(in.PAN)
	if err != nil {
		return nil, fmt.Errorf("encrypt pan: %w", err)
	}
	panHash := crypto.Hash(in.PAN)
	panForWire, err := s.cipher.EncryptToString(in.PAN)
	if err != nil {
		return nil, fmt.Errorf("encrypt pan for transport: %w", err)
	}

	app := &model.Application{
		ID:              uuid.New(),
		PANEncrypted:    panEncrypted,
		PANHash:         panHash,
		FirstName:       in.FirstName,
		LastName:        in.LastName,
		DateOfBirth:     in.DateOfBirth,
		Email:           in.Email,
		Phone:           in.Phone,
		MonthlyIncome:   in.MonthlyIncome,
		RequestedAmount: in.RequestedAmount,
		LoanType:        model.LoanType(in.LoanType),
		Status:          model.StatusPending,
		Version:         1,
	}

	var evtID uint64
	err = s.repo.DB(ctx).Transaction(func(tx *gorm.DB) error {
		existing, err := s.repo.FindBlockingByPANHash(ctx, tx, panHash, time.Now().Add(-s.panWindow))
		if err != nil && !errors.Is(err, repo.ErrNotFound) {
			return err
		}
		if existing != nil {
			return fmt.Errorf("%w (existing application %s)", ErrDuplicatePAN, existing.ID)
		}

		if err := s.repo.CreateApplication(ctx, tx, app); err != nil {
			return err
		}
		if err := s.repo.RecordAccess(ctx, tx, app.ID, actor, model.AuditEncrypt); err != nil {
			return err
		}

		payload, err := event.Envelope{
			AggregateID:     app.ID.String(),
			PayloadVersion:  event.PayloadVersion,
			EventType:       event.TypeSubmitted,
			PANEncrypted:    panForWire,
			FirstName:       in.FirstName,
			LastName:        in.LastName,
			MonthlyIncome:   in.MonthlyIncome,
			RequestedAmount: in.RequestedAmount,
			LoanType:        in.LoanType,
			ProducedAt:      time.Now().UTC(),
		}.Encode()
		if err != nil {
			return err
		}

		evt := &model.OutboxEvent{
			AggregateID: app.ID,
			EventType:   event.TypeSubmitted,
			Topic:       s.topic,
			Key:         app.ID.String(),
			Payload:     string(payload),
		}
		if err := s.repo.CreateOutboxEvent(ctx, tx, evt); err != nil {
			return err
		}
		evtID = evt.ID
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Infow("application submitted", "application", app.ID, "outbox_event", evtID)
	return &SubmitResult{
		ApplicationID: app.ID,
		OutboxEventID: evtID,
		Status:        model.StatusPending,
		CreatedAt:     app.CreatedAt,
	}, nil
}

// GetStatus returns the latest committed row with the PAN masked, briefly
// cached in redis. Every decrypt-for-mask is audit-logged.
func (s *ApplicationService) GetStatus(ctx context.Context, id uuid.UUID) (*StatusResult, error) {
	if cached := s.cachedStatus(ctx, id); cached != nil {
		return cached, nil
	}

	app, err := s.repo.GetApplication(ctx, s.repo.DB(ctx), id)
	if err != nil {
		return nil, err
	}

	pan, err := s.cipher.Decrypt(app.PANEncrypted)
	if err != nil {
		return nil, fmt.Errorf("decrypt pan: %w", err)
	}
	if err := s.repo.RecordAccess(ctx, s.repo.DB(ctx), app.ID, actor, model.AuditMask); err != nil {
		s.log.Warnw("audit mask", "application", app.ID, "error", err)
	}

	res := &StatusResult{
		ApplicationID:     app.ID,
		Status:            app.Status,
		PANMasked:         crypto.MaskPAN(pan),
		FirstName:         app.FirstName,
		LastName:          app.LastName,
		RequestedAmount:   app.RequestedAmount,
		Score:             app.Score,
		DecisionReason:    app.DecisionReason,
		MaxApprovedAmount: app.MaxApprovedAmount,
		CreatedAt:         app.CreatedAt,
		UpdatedAt:         app.UpdatedAt,
	}
	s.cacheStatus(ctx, res)
	return res, nil
}

func statusKey(id uuid.UUID) string { return "status:" + id.String() }

func (s *ApplicationService) cachedStatus(ctx context.Context, id uuid.UUID) *StatusResult {
	if s.rdb == nil {
		return nil
	}
	raw, err := s.rdb.Get(ctx, statusKey(id)).Result()
	if err != nil {
		return nil
	}
	var res StatusResult
	if err := json.Unmarshal([]byte(raw), &res); err != nil {
		return nil
	}
	return &res
}

func (s *ApplicationService) cacheStatus(ctx context.Context, res *StatusResult) {
	if s.rdb == nil {
		return
	}
	// Terminal statuses never change, so a longer TTL would also be
	// correct; PENDING staleness is bounded by the short TTL.
	raw, err := json.Marshal(res)
	if err != nil {
		return
	}
	if err := s.rdb.Set(ctx, statusKey(res.ApplicationID), raw, statusCacheTTL).Err(); err != nil {
		s.log.Warnw("cache status", "application", res.ApplicationID, "error", err)
	}
}
