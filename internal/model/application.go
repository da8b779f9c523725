package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Status is the application state machine. PENDING is the initial state;
// the other three are terminal. There is no terminal-to-terminal transition.
type Status string

const (
	StatusPending      Status = "PENDING"
	StatusPreApproved  Status = "PRE_APPROVED"
	StatusRejected     Status = "REJECTED"
	StatusManualReview Status = "MANUAL_REVIEW"
)

// IsTerminal reports whether the status admits no further transitions.
func (s Status) IsTerminal() bool {
	return s == StatusPreApproved || s == StatusRejected || s == StatusManualReview
}

// LoanType is the closed loan category enum.
type LoanType string

const (
	LoanPersonal LoanType = "PERSONAL"
	LoanHome     LoanType = "HOME"
	LoanAuto     LoanType = "AUTO"
)

// Application is the aggregate root. PAN is stored encrypted (AES-256-GCM,
// nonce prepended) and indexed by its SHA-256 hash for duplicate detection
// without decryption. Version backs optimistic concurrency: it starts at 1
// and every successful mutation increments it by exactly one.
type Application struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey"`
	PANEncrypted []byte    `gorm:"not null"`
	PANHash      string    `gorm:"size:64;not null;index"`

	FirstName   string    `gorm:"size:100;not null"`
	LastName    string    `gorm:"size:100;not null"`
	DateOfBirth time.Time `gorm:"not null"`
	Email       string    `gorm:"size:255;not null;index"`
	Phone       string    `gorm:"size:15;not null"`

	MonthlyIncome   decimal.Decimal `gorm:"type:numeric(12,2);not null"`
	RequestedAmount decimal.Decimal `gorm:"type:numeric(12,2);not null"`
	LoanType        LoanType        `gorm:"size:16;not null"`

	Status Status `gorm:"size:20;not null;default:'PENDING';index"`

	// Populated by the decision stage in a single conditional update.
	Score             *int
	DecisionReason    *string          `gorm:"type:text"`
	MaxApprovedAmount *decimal.Decimal `gorm:"type:numeric(12,2)"`

	Version   uint64    `gorm:"not null;default:1"`
	CreatedAt time.Time `gorm:"autoCreateTime;index"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

func (Application) TableName() string { return "applications" }
