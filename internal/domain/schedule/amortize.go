package schedule

import (
	"github.com/shopspring/decimal"

	"schedule-engine/internal/pkg/apperrors"
)

// periodicRate returns the per-period interest rate: annual nominal percent
// divided by 100, divided by the frequency's periods-per-year. The divisor
// must come from the same Frequency used for date stepping.
func periodicRate(terms LoanTerms) decimal.Decimal {
	perYear := decimal.NewFromInt(int64(terms.PaymentFrequency.PeriodsPerYear()))
	return terms.InterestRate.Div(decimal.NewFromInt(100)).Div(perYear)
}

// PaymentAmount computes the fixed periodic payment for the financed base
// (principal plus brokerage fee) under the standard fixed-payment
// amortization formula:
//
//	payment = r * P / (1 - (1+r)^-n)
//
// For a zero rate the payment is simply P / n. The result is rounded; the
// final payment of a generated schedule absorbs any residual drift.
func PaymentAmount(terms LoanTerms) (decimal.Decimal, error) {
	if err := terms.Validate(); err != nil {
		return decimal.Zero, err
	}

	base := FinancedBase(terms)
	if base.LessThanOrEqual(decimal.Zero) {
		return decimal.Zero, apperrors.NewInvalidTermsError("principalAmount", "financed base must be greater than zero")
	}
	n := int64(terms.NumberOfPayments)

	r := periodicRate(terms)
	if r.IsZero() {
		return Round(base.Div(decimal.NewFromInt(n))), nil
	}

	onePlusR := decimal.NewFromInt(1).Add(r)
	discount := decimal.NewFromInt(1).Div(onePlusR.Pow(decimal.NewFromInt(n)))
	payment := r.Mul(base).Div(decimal.NewFromInt(1).Sub(discount))
	return Round(payment), nil
}
