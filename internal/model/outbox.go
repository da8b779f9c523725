package model

import (
	"time"

	"github.com/google/uuid"
)

// OutboxEvent is a staged publication written in the same transaction as the
// business mutation that caused it. The relay is its only mutator: a row is
// visible to polling iff published=false and its retry count is under the
// ceiling; marking published is guarded by the published=false predicate so a
// row is never re-selected once acknowledged.
type OutboxEvent struct {
	ID          uint64    `gorm:"primaryKey"`
	AggregateID uuid.UUID `gorm:"type:uuid;not null;index"`
	EventType   string    `gorm:"size:64;not null"`
	Topic       string    `gorm:"size:100;not null"`
	Key         string    `gorm:"size:255;not null"`
	Payload     string    `gorm:"type:jsonb;not null"`

	Published   bool `gorm:"not null;default:false;index:idx_outbox_pending,priority:1"`
	PublishedAt *time.Time
	RetryCount  int     `gorm:"not null;default:0"`
	LastError   *string `gorm:"type:text"`

	CreatedAt time.Time `gorm:"autoCreateTime;index:idx_outbox_pending,priority:2"`
}

func (OutboxEvent) TableName() string { return "outbox_events" }
