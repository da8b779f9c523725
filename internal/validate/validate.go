// Package validate checks submissions as a pure function over a plain
// struct, decoupled from the persistence models: callers get either nil or
// a map of field errors, never panics or framework types.
package validate

import (
	"net/mail"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	panLength = 10
	minAge    = 18
	maxAge    = 100
)

var maxRequestedAmount = decimal.NewFromInt(10_000_000)

// Submission carries the raw application fields from the ingress boundary.
type Submission struct {
	PAN             string
	FirstName       string
	LastName        string
	DateOfBirth     time.Time
	Email           string
	Phone           string
	MonthlyIncome   decimal.Decimal
	RequestedAmount decimal.Decimal
	LoanType        string
}

// FieldErrors maps field name to the first violation found for it.
type FieldErrors map[string]string

func (f FieldErrors) Error() string {
	parts := make([]string, 0, len(f))
	for field, msg := range f {
		parts = append(parts, field+": "+msg)
	}
	return strings.Join(parts, "; ")
}

// Check validates a submission. Returns nil when the submission is valid.
func Check(s Submission, now time.Time) FieldErrors {
	errs := FieldErrors{}

	if !validPAN(s.PAN) {
		errs["pan_number"] = "must match AAAAA9999A"
	}
	if s.FirstName == "" || len(s.FirstName) > 100 {
		errs["first_name"] = "must be 1-100 characters"
	}
	if s.LastName == "" || len(s.LastName) > 100 {
		errs["last_name"] = "must be 1-100 characters"
	}
	if _, err := mail.ParseAddress(s.Email); err != nil {
		errs["email"] = "invalid email address"
	}
	if !validPhone(s.Phone) {
		errs["phone_number"] = "must be 10-15 digits"
	}
	age := yearsBetween(s.DateOfBirth, now)
	if age < minAge {
		errs["date_of_birth"] = "applicant must be at least 18 years old"
	} else if age > maxAge {
		errs["date_of_birth"] = "invalid date of birth"
	}
	if s.MonthlyIncome.LessThanOrEqual(decimal.Zero) {
		errs["monthly_income"] = "must be positive"
	}
	if s.RequestedAmount.LessThanOrEqual(decimal.Zero) || s.RequestedAmount.GreaterThan(maxRequestedAmount) {
		errs["requested_amount"] = "must be positive and at most 10000000"
	}
	switch s.LoanType {
	case "PERSONAL", "HOME", "AUTO":
	default:
		errs["loan_type"] = "must be one of PERSONAL, HOME, AUTO"
	}

	if len(errs) == 0 {
		return nil
	}
	return errs
}

// validPAN checks the AAAAA9999A format: five uppercase letters, four
// digits, one uppercase letter.
func validPAN(pan string) bool {
	if len(pan) != panLength {
		return false
	}
	for i, r := range pan {
		switch {
		case i < 5 || i == 9:
			if r < 'A' || r > 'Z' {
				return false
			}
		default:
			if r < '0' || r > '9' {
				return false
			}
		}
	}
	return true
}

func validPhone(phone string) bool {
	if len(phone) < 10 || len(phone) > 15 {
		return false
	}
	for _, r := range phone {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func yearsBetween(dob, now time.Time) int {
	years := now.Year() - dob.Year()
	anniversary := dob.AddDate(years, 0, 0)
	if anniversary.After(now) {
		years--
	}
	return years
}
