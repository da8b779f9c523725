package model

import "time"

// ProcessedMessage is the idempotency ledger: one row per durably processed
// inbound message. The fingerprint (aggregate id + topic + partition + offset)
// is unique; its presence means the business effect already committed. Rows
// carry no foreign keys so time-based pruning is a plain DELETE.
type ProcessedMessage struct {
	ID            uint64    `gorm:"primaryKey"`
	Fingerprint   string    `gorm:"size:255;not null;uniqueIndex"`
	Topic         string    `gorm:"size:100;not null;index"`
	Partition     int       `gorm:"not null"`
	Offset        int64     `gorm:"not null"`
	ConsumerGroup string    `gorm:"size:100;not null"`
	ProcessedAt   time.Time `gorm:"autoCreateTime;index"`
}

func (ProcessedMessage) TableName() string { return "processed_messages" }
