// Package decision applies the prequalification rules and runs the decision
// stage of the pipeline.
package decision

import (
	"fmt"

	"github.com/shopspring/decimal"

	"prequal-service/internal/model"
)

const (
	// MinScore is the minimum score that avoids outright rejection.
	MinScore = 650
	// TermMonths is the assumed repayment term for the income ratio.
	TermMonths = 48
)

// Outcome is the decision for one application snapshot.
type Outcome struct {
	Status            model.Status
	Reason            string
	MaxApprovedAmount *decimal.Decimal
}

// Decide is pure and deterministic for a given snapshot and score:
//
//	score < 650                      → REJECTED
//	income > requested/48            → PRE_APPROVED
//	otherwise                        → MANUAL_REVIEW
//
// The maximum approved amount is income × 48 whenever not rejected.
func Decide(monthlyIncome, requestedAmount decimal.Decimal, score int) Outcome {
	if score < MinScore {
		return Outcome{
			Status: model.StatusRejected,
			Reason: fmt.Sprintf("score %d is below the minimum threshold of %d", score, MinScore),
		}
	}

	required := requestedAmount.DivRound(decimal.NewFromInt(TermMonths), 2)
	maxApproved := monthlyIncome.Mul(decimal.NewFromInt(TermMonths))

	if monthlyIncome.GreaterThan(required) {
		return Outcome{
			Status: model.StatusPreApproved,
			Reason: fmt.Sprintf("score %d meets threshold and monthly income %s exceeds required %s",
				score, monthlyIncome.StringFixed(2), required.StringFixed(2)),
			MaxApprovedAmount: &maxApproved,
		}
	}
	return Outcome{
		Status: model.StatusManualReview,
		Reason: fmt.Sprintf("score %d meets threshold but monthly income %s does not exceed required %s",
			score, monthlyIncome.StringFixed(2), required.StringFixed(2)),
		MaxApprovedAmount: &maxApproved,
	}
}
