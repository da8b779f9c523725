package repo

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"prequal-service/internal/model"
)

// ErrNotFound is returned when the requested row does not exist.
var ErrNotFound = errors.New("not found")

// Repository is the single data-access layer shared by the ingress service,
// the relay and the consumers. Every method that takes a tx participates in
// the caller's transaction; the outbox polling methods run outside any
// transaction, as the relay is their only caller.
type Repository struct {
	db  *gorm.DB
	log *zap.SugaredLogger
}

// NewRepository constructs repo.
func NewRepository(db *gorm.DB, logger *zap.SugaredLogger) *Repository {
	return &Repository{db: db, log: logger}
}

// DB returns underlying *gorm.DB
func (r *Repository) DB(ctx context.Context) *gorm.DB { return r.db.WithContext(ctx) }

// CreateApplication inserts the aggregate root (status PENDING, version 1).
func (r *Repository) CreateApplication(ctx context.Context, tx *gorm.DB, app *model.Application) error {
	return tx.WithContext(ctx).Create(app).Error
}

// GetApplication reads the latest committed row.
func (r *Repository) GetApplication(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*model.Application, error) {
	var app model.Application
	err := tx.WithContext(ctx).Where("id = ?", id).First(&app).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &app, nil
}

// FindBlockingByPANHash returns an application sharing the PAN hash that
// should block a new submission: created inside the window and not REJECTED.
// A rejected application's hash is reusable immediately.
func (r *Repository) FindBlockingByPANHash(ctx context.Context, tx *gorm.DB, hash string, since time.Time) (*model.Application, error) {
	var app model.Application
	err := tx.WithContext(ctx).
		Where("pan_hash = ? AND status <> ? AND created_at >= ?", hash, model.StatusRejected, since).
		First(&app).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &app, nil
}

// DecisionUpdate carries the fields written by the decision stage.
type DecisionUpdate struct {
	Status            model.Status
	Score             int
	Reason            string
	MaxApprovedAmount *decimal.Decimal
}

// UpdateWithVersion applies a state transition only if the stored version
// still equals expectedVersion, incrementing it by one. Returns the number
// of rows affected: 1 means success, 0 means conflict or missing row; the
// caller must re-read to distinguish.
func (r *Repository) UpdateWithVersion(ctx context.Context, tx *gorm.DB, id uuid.UUID, upd DecisionUpdate, expectedVersion uint64) (int64, error) {
	res := tx.WithContext(ctx).
		Model(&model.Application{}).
		Where("id = ? AND version = ?", id, expectedVersion).
		Updates(map[string]interface{}{
			"status":              upd.Status,
			"score":               upd.Score,
			"decision_reason":     upd.Reason,
			"max_approved_amount": upd.MaxApprovedAmount,
			"version":             expectedVersion + 1,
			"updated_at":          time.Now(),
		})
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}

// CreateOutboxEvent stages an event in the caller's transaction.
func (r *Repository) CreateOutboxEvent(ctx context.Context, tx *gorm.DB, evt *model.OutboxEvent) error {
	return tx.WithContext(ctx).Create(evt).Error
}

// PollOutbox pulls up to limit unpublished events, oldest first, skipping
// rows flagged past the retry ceiling.
func (r *Repository) PollOutbox(ctx context.Context, limit, maxRetries int) ([]model.OutboxEvent, error) {
	var evts []model.OutboxEvent
	err := r.db.WithContext(ctx).
		Where("published = false AND retry_count <= ?", maxRetries).
		Order("created_at").
		Limit(limit).
		Find(&evts).Error
	return evts, err
}

// MarkPublished flips the published flag, guarded by the published=false
// predicate so a row is marked at most once even with concurrent relays.
func (r *Repository) MarkPublished(ctx context.Context, id uint64) error {
	now := time.Now()
	return r.db.WithContext(ctx).
		Model(&model.OutboxEvent{}).
		Where("id = ? AND published = false", id).
		Updates(map[string]interface{}{"published": true, "published_at": &now, "last_error": nil}).Error
}

// RecordPublishFailure increments the retry counter after an attempted and
// failed publish. Short-circuited attempts must not call this.
func (r *Repository) RecordPublishFailure(ctx context.Context, id uint64, cause string) error {
	if len(cause) > 500 {
		cause = cause[:500]
	}
	return r.db.WithContext(ctx).
		Model(&model.OutboxEvent{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"retry_count": gorm.Expr("retry_count + 1"),
			"last_error":  cause,
		}).Error
}

// CountDeadRows counts unpublished rows flagged past the retry ceiling;
// these require manual intervention and are surfaced via a gauge.
func (r *Repository) CountDeadRows(ctx context.Context, maxRetries int) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).
		Model(&model.OutboxEvent{}).
		Where("published = false AND retry_count > ?", maxRetries).
		Count(&n).Error
	return n, err
}

// OldestPendingAge reports how stale the oldest unpublished row is. Zero
// when the outbox is drained.
func (r *Repository) OldestPendingAge(ctx context.Context) (time.Duration, error) {
	var evt model.OutboxEvent
	err := r.db.WithContext(ctx).
		Where("published = false").
		Order("created_at").
		First(&evt).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return time.Since(evt.CreatedAt), nil
}

// SeenMessage checks the idempotency ledger. Single indexed lookup.
func (r *Repository) SeenMessage(ctx context.Context, tx *gorm.DB, fingerprint string) (bool, error) {
	var pm model.ProcessedMessage
	err := tx.WithContext(ctx).Where("fingerprint = ?", fingerprint).First(&pm).Error
	if err == nil {
		return true, nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	return false, err
}

// MarkProcessed inserts the ledger row in the caller's transaction, so the
// business effect and the dedup record commit atomically.
func (r *Repository) MarkProcessed(ctx context.Context, tx *gorm.DB, pm *model.ProcessedMessage) error {
	return tx.WithContext(ctx).Create(pm).Error
}

// RecordAccess appends a PII-access audit entry.
func (r *Repository) RecordAccess(ctx context.Context, tx *gorm.DB, appID uuid.UUID, actor, action string) error {
	return tx.WithContext(ctx).Create(&model.AuditLogEntry{
		ApplicationID: appID,
		Actor:         actor,
		Action:        action,
	}).Error
}
