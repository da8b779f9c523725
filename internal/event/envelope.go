// Package event defines the wire contract shared by both topics and the
// message fingerprint used as the idempotency key.
package event

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// PayloadVersion allows schema evolution; unknown fields are ignored by
// older handlers, so bumping it is additive.
const PayloadVersion = 1

// Event type tags.
const (
	TypeSubmitted = "APPLICATION_SUBMITTED"
	TypeScored    = "APPLICATION_SCORED"
)

var ErrMalformed = errors.New("malformed event payload")

// Envelope is the message body on both topics. PII travels encrypted
// (base64 of nonce||ciphertext), never in plaintext. Dead-lettered copies
// additionally carry FailureReason and AttemptCount.
type Envelope struct {
	AggregateID    string `json:"aggregate_id"`
	PayloadVersion int    `json:"payload_version"`
	EventType      string `json:"event_type"`

	PANEncrypted    string          `json:"pan_encrypted,omitempty"`
	FirstName       string          `json:"first_name,omitempty"`
	LastName        string          `json:"last_name,omitempty"`
	MonthlyIncome   decimal.Decimal `json:"monthly_income"`
	RequestedAmount decimal.Decimal `json:"requested_amount"`
	LoanType        string          `json:"loan_type,omitempty"`

	Score *int `json:"score,omitempty"`

	ProducedAt time.Time `json:"produced_at"`

	FailureReason string `json:"failure_reason,omitempty"`
	AttemptCount  int    `json:"attempt_count,omitempty"`
}

// Encode marshals the envelope for publication.
func (e Envelope) Encode() ([]byte, error) {
	return json.Marshal(e)
}

// Decode parses an envelope, treating an unparseable body or a missing
// aggregate id as permanently malformed.
func Decode(data []byte) (Envelope, error) {
	var e Envelope
	if err := json.Unmarshal(data, &e); err != nil {
		return Envelope{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if e.AggregateID == "" {
		return Envelope{}, fmt.Errorf("%w: missing aggregate_id", ErrMalformed)
	}
	return e, nil
}

// Fingerprint identifies one logical delivery of one logical event. It is
// stable across redelivery of the same message (same partition and offset)
// and distinct across logically distinct messages.
func Fingerprint(aggregateID, topic string, partition int, offset int64) string {
	return fmt.Sprintf("%s:%s:%d:%d", aggregateID, topic, partition, offset)
}
