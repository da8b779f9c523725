package validate

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

var now = time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)

func valid() Submission {
	return Submission{
		PAN:             "ABCDE1234F",
		FirstName:       "Asha",
		LastName:        "Verma",
		DateOfBirth:     time.Date(1990, 3, 15, 0, 0, 0, 0, time.UTC),
		Email:           "asha.verma@example.com",
		Phone:           "9876543210",
		MonthlyIncome:   decimal.NewFromInt(100_000),
		RequestedAmount: decimal.NewFromInt(500_000),
		LoanType:        "PERSONAL",
	}
}

func TestCheck_Valid(t *testing.T) {
	assert.Nil(t, Check(valid(), now))
}

func TestCheck_PANFormat(t *testing.T) {
	for _, pan := range []string{"", "abcde1234f", "ABCDE12345", "ABCD12345F", "ABCDE1234FX"} {
		s := valid()
		s.PAN = pan
		errs := Check(s, now)
		assert.Contains(t, errs, "pan_number", "pan %q should be rejected", pan)
	}
}

func TestCheck_AgeBounds(t *testing.T) {
	s := valid()
	s.DateOfBirth = now.AddDate(-18, 0, 1) // turns 18 tomorrow
	assert.Contains(t, Check(s, now), "date_of_birth")

	s.DateOfBirth = now.AddDate(-18, 0, 0) // 18 today
	assert.Nil(t, Check(s, now))

	s.DateOfBirth = now.AddDate(-101, 0, 0)
	assert.Contains(t, Check(s, now), "date_of_birth")
}

func TestCheck_Amounts(t *testing.T) {
	s := valid()
	s.MonthlyIncome = decimal.Zero
	assert.Contains(t, Check(s, now), "monthly_income")

	s = valid()
	s.RequestedAmount = decimal.NewFromInt(-1)
	assert.Contains(t, Check(s, now), "requested_amount")

	s = valid()
	s.RequestedAmount = decimal.NewFromInt(10_000_001)
	assert.Contains(t, Check(s, now), "requested_amount")

	s = valid()
	s.RequestedAmount = decimal.NewFromInt(10_000_000)
	assert.Nil(t, Check(s, now))
}

func TestCheck_EnumAndContact(t *testing.T) {
	s := valid()
	s.LoanType = "BOAT"
	assert.Contains(t, Check(s, now), "loan_type")

	s = valid()
	s.Email = "not-an-email"
	assert.Contains(t, Check(s, now), "email")

	s = valid()
	s.Phone = "12345"
	assert.Contains(t, Check(s, now), "phone_number")

	s = valid()
	s.Phone = "98765abc10"
	assert.Contains(t, Check(s, now), "phone_number")
}

func TestFieldErrors_CollectsAll(t *testing.T) {
	s := valid()
	s.PAN = "bad"
	s.LoanType = "BOAT"
	errs := Check(s, now)
	assert.Len(t, errs, 2)
	assert.NotEmpty(t, errs.Error())
}
