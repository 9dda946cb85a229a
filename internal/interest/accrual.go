// Package interest computes the loan interest a tenant earned inside a cycle
// window.
//
// Maturity is derived one way only: the loan's maturity_date when recorded,
// otherwise release_date plus term_months. Interest earned in a window is the
// full-term interest pro-rated by the days the loan was active inside the
// window, capped at the full-term interest.
//
// Repayments settle principal first. Whatever a loan has paid beyond its
// principal is interest already realized in cash, so a window never earns
// more than the full-term interest minus that realized part.
package interest

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
	loandomain "github.com/smallbiznis/groupledger/internal/loan/domain"
)

const (
	daysPerYear     = 365
	monthsPerYear   = 12
	ratePrecision   = 16
	hoursPerDay     = 24
	percentDivisor  = 100
	currencyDecimal = 2
)

var (
	ErrMissingProduct      = errors.New("missing_product")
	ErrMissingReleaseDate  = errors.New("missing_release_date")
	ErrInvalidTerm         = errors.New("invalid_term")
	ErrInvalidMaturity     = errors.New("maturity_not_after_release")
	ErrUnknownInterestType = errors.New("unknown_interest_type")
	ErrInvalidPrincipal    = errors.New("invalid_principal")
)

// Window is a closed time range.
type Window struct {
	Start time.Time
	End   time.Time
}

// EffectiveWindow clamps a cycle window's end to now.
func EffectiveWindow(start, end, now time.Time) Window {
	if now.Before(end) {
		end = now
	}
	return Window{Start: start.UTC(), End: end.UTC()}
}

// MaturityDate returns the canonical maturity of loan.
func MaturityDate(loan loandomain.Loan) (time.Time, error) {
	if loan.ReleaseDate == nil {
		return time.Time{}, ErrMissingReleaseDate
	}
	release := loan.ReleaseDate.UTC()
	if loan.MaturityDate != nil {
		maturity := loan.MaturityDate.UTC()
		if !maturity.After(release) {
			return time.Time{}, ErrInvalidMaturity
		}
		return maturity, nil
	}
	if loan.TermMonths <= 0 {
		return time.Time{}, ErrInvalidTerm
	}
	return release.AddDate(0, loan.TermMonths, 0), nil
}

// FullTermInterest is the interest owed over the whole loan. A recorded total
// payable takes precedence over the product formula.
func FullTermInterest(loan loandomain.Loan, product loandomain.LoanProduct, termDays int) (decimal.Decimal, error) {
	if !loan.Principal.IsPositive() {
		return decimal.Zero, ErrInvalidPrincipal
	}
	if loan.TotalPayable.Valid {
		interest := loan.TotalPayable.Decimal.Sub(loan.Principal)
		if interest.IsNegative() {
			return decimal.Zero, nil
		}
		return interest, nil
	}

	rate := product.AnnualRate.Div(decimal.NewFromInt(percentDivisor))
	switch product.InterestType {
	case loandomain.InterestTypeFlat:
		if termDays <= 0 {
			return decimal.Zero, ErrInvalidTerm
		}
		return loan.Principal.Mul(rate).
			Mul(decimal.NewFromInt(int64(termDays))).
			DivRound(decimal.NewFromInt(daysPerYear), ratePrecision), nil
	case loandomain.InterestTypeDeclining:
		return decliningInterest(loan.Principal, rate, termMonths(loan, termDays))
	default:
		return decimal.Zero, ErrUnknownInterestType
	}
}

// decliningInterest is the total interest of an equal-installment schedule at
// rate/12 per month over months.
func decliningInterest(principal, annualRate decimal.Decimal, months int) (decimal.Decimal, error) {
	if months <= 0 {
		return decimal.Zero, ErrInvalidTerm
	}
	if annualRate.IsZero() {
		return decimal.Zero, nil
	}
	n := decimal.NewFromInt(int64(months))
	monthly := annualRate.DivRound(decimal.NewFromInt(monthsPerYear), ratePrecision)
	growth := decimal.NewFromInt(1).Add(monthly).Pow(n).Round(ratePrecision)
	installment := principal.Mul(monthly).Mul(growth).DivRound(growth.Sub(decimal.NewFromInt(1)), ratePrecision)
	interest := installment.Mul(n).Sub(principal)
	if interest.IsNegative() {
		return decimal.Zero, nil
	}
	return interest, nil
}

// termMonths prefers the recorded term; loans that only carry a maturity date
// get the term rounded from days.
func termMonths(loan loandomain.Loan, termDays int) int {
	if loan.TermMonths > 0 {
		return loan.TermMonths
	}
	months := int(decimal.NewFromInt(int64(termDays)*monthsPerYear).
		DivRound(decimal.NewFromInt(daysPerYear), 0).IntPart())
	if months < 1 && termDays > 0 {
		return 1
	}
	return months
}

// EarnedInWindow returns the interest loan earned inside window.
func EarnedInWindow(loan loandomain.Loan, product *loandomain.LoanProduct, window Window) (decimal.Decimal, error) {
	if product == nil {
		return decimal.Zero, ErrMissingProduct
	}
	maturity, err := MaturityDate(loan)
	if err != nil {
		return decimal.Zero, err
	}
	release := loan.ReleaseDate.UTC()
	termDays := daysBetween(release, maturity)
	if termDays <= 0 {
		return decimal.Zero, ErrInvalidMaturity
	}

	from := latest(release, window.Start)
	to := earliest(maturity, window.End)
	activeDays := daysBetween(from, to)
	if activeDays <= 0 {
		return decimal.Zero, nil
	}

	full, err := FullTermInterest(loan, *product, termDays)
	if err != nil {
		return decimal.Zero, err
	}
	earned := full.Mul(decimal.NewFromInt(int64(activeDays))).
		DivRound(decimal.NewFromInt(int64(termDays)), ratePrecision)
	if earned.GreaterThan(full) {
		earned = full
	}
	if unrealized := UnrealizedInterest(loan, full); earned.GreaterThan(unrealized) {
		earned = unrealized
	}
	if earned.IsNegative() {
		earned = decimal.Zero
	}
	return earned.Round(currencyDecimal), nil
}

// UnrealizedInterest is the part of full not yet covered by payments beyond
// the principal.
func UnrealizedInterest(loan loandomain.Loan, full decimal.Decimal) decimal.Decimal {
	realized := loan.TotalPaid.Sub(loan.Principal)
	if !realized.IsPositive() {
		return full
	}
	if realized.GreaterThan(full) {
		return decimal.Zero
	}
	return full.Sub(realized)
}

// daysBetween counts whole days from a to b; negative when b precedes a.
func daysBetween(a, b time.Time) int {
	return int(b.Sub(a).Hours() / hoursPerDay)
}

func latest(a, b time.Time) time.Time {
	if a.After(b) {
		return a
	}
	return b
}

func earliest(a, b time.Time) time.Time {
	if a.Before(b) {
		return a
	}
	return b
}
