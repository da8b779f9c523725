package scoring

import (
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"prequal-service/internal/model"
)

func TestScore_Fixtures(t *testing.T) {
	income := decimal.NewFromInt(50_000)
	assert.Equal(t, 790, Score("ABCDE1234F", uuid.NewString(), income, model.LoanPersonal))
	assert.Equal(t, 610, Score("FGHIJ5678K", uuid.NewString(), income, model.LoanHome))
}

func TestScore_Deterministic(t *testing.T) {
	id := uuid.NewString()
	income := decimal.NewFromInt(50_000)
	first := Score("ZZZZZ9999Z", id, income, model.LoanAuto)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, Score("ZZZZZ9999Z", id, income, model.LoanAuto))
	}
}

func TestScore_IncomeAndLoanTypeAdjustments(t *testing.T) {
	// same application id isolates the deterministic variation
	id := uuid.NewString()
	pan := "ZZZZZ9999Z"
	mid := Score(pan, id, decimal.NewFromInt(50_000), model.LoanAuto)

	high := Score(pan, id, decimal.NewFromInt(80_000), model.LoanAuto)
	assert.Equal(t, mid+40, high)

	low := Score(pan, id, decimal.NewFromInt(20_000), model.LoanAuto)
	assert.Equal(t, mid-20, low)

	personal := Score(pan, id, decimal.NewFromInt(50_000), model.LoanPersonal)
	assert.Equal(t, mid-10, personal)

	home := Score(pan, id, decimal.NewFromInt(50_000), model.LoanHome)
	assert.Equal(t, mid+10, home)
}

func TestScore_ThresholdIncomeIsUnadjusted(t *testing.T) {
	id := uuid.NewString()
	pan := "ZZZZZ9999Z"
	mid := Score(pan, id, decimal.NewFromInt(50_000), model.LoanAuto)
	// 75000 is not strictly greater, 30000 is not strictly lower
	assert.Equal(t, mid, Score(pan, id, decimal.NewFromInt(75_000), model.LoanAuto))
	assert.Equal(t, mid, Score(pan, id, decimal.NewFromInt(30_000), model.LoanAuto))
}

func TestScore_WithinBounds(t *testing.T) {
	for i := 0; i < 50; i++ {
		s := Score("ZZZZZ9999Z", uuid.NewString(), decimal.NewFromInt(20_000), model.LoanPersonal)
		assert.GreaterOrEqual(t, s, 300)
		assert.LessOrEqual(t, s, 900)
	}
}
