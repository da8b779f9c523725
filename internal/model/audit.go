package model

import (
	"time"

	"github.com/google/uuid"
)

// Audit actions recorded for PII access.
const (
	AuditEncrypt = "ENCRYPT"
	AuditDecrypt = "DECRYPT"
	AuditMask    = "MASK"
)

// AuditLogEntry is an append-only record of PAN access for compliance.
// The application reference is lookup-only: no cascade, no ownership.
type AuditLogEntry struct {
	ID            uint64    `gorm:"primaryKey"`
	ApplicationID uuid.UUID `gorm:"type:uuid;not null;index"`
	Actor         string    `gorm:"size:50;not null"`
	Action        string    `gorm:"size:20;not null"`
	AccessedAt    time.Time `gorm:"autoCreateTime;index"`
}

func (AuditLogEntry) TableName() string { return "audit_log" }
