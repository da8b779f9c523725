package repo

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"prequal-service/internal/model"
)

func newTestRepo(t *testing.T) (*Repository, *gorm.DB) {
	db, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared&_busy_timeout=5000"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&model.Application{}, &model.OutboxEvent{},
		&model.ProcessedMessage{}, &model.AuditLogEntry{},
	))
	return NewRepository(db, zap.NewNop().Sugar()), db
}

func seedApplication(t *testing.T, db *gorm.DB) *model.Application {
	app := &model.Application{
		ID:              uuid.New(),
		PANEncrypted:    []byte{0x01},
		PANHash:         "hash-" + t.Name(),
		FirstName:       "Asha",
		LastName:        "Verma",
		DateOfBirth:     time.Date(1990, 3, 15, 0, 0, 0, 0, time.UTC),
		Email:           "asha@example.com",
		Phone:           "9876543210",
		MonthlyIncome:   decimal.NewFromInt(100_000),
		RequestedAmount: decimal.NewFromInt(500_000),
		LoanType:        model.LoanPersonal,
		Status:          model.StatusPending,
		Version:         1,
	}
	require.NoError(t, db.Create(app).Error)
	return app
}

func TestUpdateWithVersion_StaleVersionLoses(t *testing.T) {
	repo, db := newTestRepo(t)
	ctx := context.Background()
	app := seedApplication(t, db)

	upd := DecisionUpdate{Status: model.StatusPreApproved, Score: 790, Reason: "ok"}
	rows, err := repo.UpdateWithVersion(ctx, db, app.ID, upd, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(1), rows)

	// same expected version again: the row moved to version 2
	rows, err = repo.UpdateWithVersion(ctx, db, app.ID, upd, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(0), rows)

	var final model.Application
	require.NoError(t, db.First(&final, "id = ?", app.ID).Error)
	assert.Equal(t, uint64(2), final.Version)
	assert.Equal(t, model.StatusPreApproved, final.Status)
	require.NotNil(t, final.Score)
	assert.Equal(t, 790, *final.Score)
}

func TestUpdateWithVersion_ConcurrentUpdate(t *testing.T) {
	repo, db := newTestRepo(t)
	ctx := context.Background()
	app := seedApplication(t, db)

	var wg sync.WaitGroup
	var mu sync.Mutex
	success := 0
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			rows, err := repo.UpdateWithVersion(ctx, db, app.ID,
				DecisionUpdate{Status: model.StatusManualReview, Score: 650, Reason: "review"}, 1)
			if err == nil && rows == 1 {
				mu.Lock()
				success++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, success, "exactly one writer should win the version race")
	var final model.Application
	require.NoError(t, db.First(&final, "id = ?", app.ID).Error)
	assert.Equal(t, uint64(2), final.Version)
}

func TestUpdateWithVersion_MissingRow(t *testing.T) {
	repo, db := newTestRepo(t)
	rows, err := repo.UpdateWithVersion(context.Background(), db, uuid.New(),
		DecisionUpdate{Status: model.StatusRejected, Score: 500, Reason: "x"}, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(0), rows)
}

func TestOutbox_PollMarkAndRetry(t *testing.T) {
	repo, db := newTestRepo(t)
	ctx := context.Background()

	first := &model.OutboxEvent{AggregateID: uuid.New(), EventType: "APPLICATION_SUBMITTED",
		Topic: "loan.applications.submitted", Key: "a", Payload: "{}"}
	require.NoError(t, repo.CreateOutboxEvent(ctx, db, first))
	second := &model.OutboxEvent{AggregateID: uuid.New(), EventType: "APPLICATION_SUBMITTED",
		Topic: "loan.applications.submitted", Key: "b", Payload: "{}"}
	require.NoError(t, repo.CreateOutboxEvent(ctx, db, second))
	// force a strict ordering; sqlite timestamps can collide
	require.NoError(t, db.Model(first).Update("created_at", time.Now().Add(-time.Minute)).Error)

	evts, err := repo.PollOutbox(ctx, 10, 3)
	require.NoError(t, err)
	require.Len(t, evts, 2)
	assert.Equal(t, first.ID, evts[0].ID, "oldest first")

	require.NoError(t, repo.MarkPublished(ctx, first.ID))
	evts, err = repo.PollOutbox(ctx, 10, 3)
	require.NoError(t, err)
	require.Len(t, evts, 1)
	assert.Equal(t, second.ID, evts[0].ID)

	require.NoError(t, repo.RecordPublishFailure(ctx, second.ID, "broker down"))
	var reloaded model.OutboxEvent
	require.NoError(t, db.First(&reloaded, second.ID).Error)
	assert.Equal(t, 1, reloaded.RetryCount)
	require.NotNil(t, reloaded.LastError)
	assert.Equal(t, "broker down", *reloaded.LastError)
	assert.False(t, reloaded.Published)
}

func TestOutbox_DeadRowsExcludedFromPoll(t *testing.T) {
	repo, db := newTestRepo(t)
	ctx := context.Background()

	evt := &model.OutboxEvent{AggregateID: uuid.New(), EventType: "APPLICATION_SUBMITTED",
		Topic: "loan.applications.submitted", Key: "a", Payload: "{}"}
	require.NoError(t, repo.CreateOutboxEvent(ctx, db, evt))
	for i := 0; i < 4; i++ {
		require.NoError(t, repo.RecordPublishFailure(ctx, evt.ID, "broker down"))
	}

	evts, err := repo.PollOutbox(ctx, 10, 3)
	require.NoError(t, err)
	assert.Empty(t, evts, "rows past the retry ceiling stay put for manual intervention")

	dead, err := repo.CountDeadRows(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, int64(1), dead)
}

func TestOutbox_OldestPendingAge(t *testing.T) {
	repo, db := newTestRepo(t)
	ctx := context.Background()

	age, err := repo.OldestPendingAge(ctx)
	require.NoError(t, err)
	assert.Zero(t, age)

	evt := &model.OutboxEvent{AggregateID: uuid.New(), EventType: "APPLICATION_SUBMITTED",
		Topic: "loan.applications.submitted", Key: "a", Payload: "{}"}
	require.NoError(t, repo.CreateOutboxEvent(ctx, db, evt))
	require.NoError(t, db.Model(evt).Update("created_at", time.Now().Add(-time.Hour)).Error)

	age, err = repo.OldestPendingAge(ctx)
	require.NoError(t, err)
	assert.Greater(t, age, 59*time.Minute)
}

func TestProcessedLedger(t *testing.T) {
	repo, db := newTestRepo(t)
	ctx := context.Background()
	fp := "agg:topic:0:42"

	seen, err := repo.SeenMessage(ctx, db, fp)
	require.NoError(t, err)
	assert.False(t, seen)

	require.NoError(t, repo.MarkProcessed(ctx, db, &model.ProcessedMessage{
		Fingerprint: fp, Topic: "topic", Partition: 0, Offset: 42, ConsumerGroup: "g",
	}))

	seen, err = repo.SeenMessage(ctx, db, fp)
	require.NoError(t, err)
	assert.True(t, seen)
}

func TestFindBlockingByPANHash(t *testing.T) {
	repo, db := newTestRepo(t)
	ctx := context.Background()
	app := seedApplication(t, db)
	since := time.Now().Add(-24 * time.Hour)

	// pending inside the window blocks
	got, err := repo.FindBlockingByPANHash(ctx, db, app.PANHash, since)
	require.NoError(t, err)
	assert.Equal(t, app.ID, got.ID)

	// rejected applications never block
	require.NoError(t, db.Model(app).Update("status", model.StatusRejected).Error)
	_, err = repo.FindBlockingByPANHash(ctx, db, app.PANHash, since)
	assert.ErrorIs(t, err, ErrNotFound)

	// outside the window does not block either
	require.NoError(t, db.Model(app).Updates(map[string]interface{}{
		"status":     model.StatusPreApproved,
		"created_at": time.Now().Add(-48 * time.Hour),
	}).Error)
	_, err = repo.FindBlockingByPANHash(ctx, db, app.PANHash, since)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGetApplication_NotFound(t *testing.T) {
	repo, db := newTestRepo(t)
	_, err := repo.GetApplication(context.Background(), db, uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)
}
