package decision

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"prequal-service/internal/model"
)

func TestDecide_RejectsBelowThreshold(t *testing.T) {
	out := Decide(decimal.NewFromInt(100_000), decimal.NewFromInt(500_000), 610)
	assert.Equal(t, model.StatusRejected, out.Status)
	assert.Nil(t, out.MaxApprovedAmount, "rejected applications carry no approved amount")
	assert.NotEmpty(t, out.Reason)
}

func TestDecide_PreApprovesSufficientIncome(t *testing.T) {
	// required = 500000/48 = 10416.67; income 100000 clears it
	out := Decide(decimal.NewFromInt(100_000), decimal.NewFromInt(500_000), 790)
	assert.Equal(t, model.StatusPreApproved, out.Status)
	require.NotNil(t, out.MaxApprovedAmount)
	assert.True(t, out.MaxApprovedAmount.Equal(decimal.NewFromInt(4_800_000)),
		"max approved is income x term, got %s", out.MaxApprovedAmount)
}

func TestDecide_ManualReviewWhenIncomeInsufficient(t *testing.T) {
	// required = 500000/48 = 10416.67; income 10000 falls short
	out := Decide(decimal.NewFromInt(10_000), decimal.NewFromInt(500_000), 700)
	assert.Equal(t, model.StatusManualReview, out.Status)
	require.NotNil(t, out.MaxApprovedAmount)
	assert.True(t, out.MaxApprovedAmount.Equal(decimal.NewFromInt(480_000)))
}

func TestDecide_Boundaries(t *testing.T) {
	// score exactly at the threshold is not rejected
	out := Decide(decimal.NewFromInt(10_000), decimal.NewFromInt(500_000), MinScore)
	assert.Equal(t, model.StatusManualReview, out.Status)

	// income exactly equal to required is not strictly greater
	out = Decide(decimal.NewFromInt(10_000), decimal.NewFromInt(480_000), 700)
	assert.Equal(t, model.StatusManualReview, out.Status)

	// one paisa over tips it
	out = Decide(decimal.RequireFromString("10000.01"), decimal.NewFromInt(480_000), 700)
	assert.Equal(t, model.StatusPreApproved, out.Status)
}

func TestDecide_Deterministic(t *testing.T) {
	income := decimal.NewFromInt(42_000)
	requested := decimal.NewFromInt(999_999)
	first := Decide(income, requested, 700)
	for i := 0; i < 5; i++ {
		again := Decide(income, requested, 700)
		assert.Equal(t, first.Status, again.Status)
		assert.Equal(t, first.Reason, again.Reason)
	}
}
