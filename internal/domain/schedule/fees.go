package schedule

import "github.com/shopspring/decimal"

// Brokerage fee tiers. The fee is a monotonic step function of the loan
// amount; callers never invent this value by hand.
var brokerageTiers = []struct {
	upTo decimal.Decimal // inclusive upper bound of the tier
	fee  decimal.Decimal
}{
	{decimal.NewFromInt(500), decimal.NewFromInt(55)},
	{decimal.NewFromInt(750), decimal.NewFromInt(90)},
	{decimal.NewFromInt(1000), decimal.NewFromInt(150)},
	{decimal.NewFromInt(1250), decimal.NewFromInt(195)},
	{decimal.NewFromInt(1500), decimal.NewFromInt(250)},
}

// feeRateAboveTiers applies past the last tier: 20% of the loan amount.
var feeRateAboveTiers = decimal.NewFromFloat(0.20)

// DefaultDeferralFee applies when the originating contract carries no
// deferral-fee terms of its own.
var DefaultDeferralFee = decimal.NewFromInt(35)

// BrokerageFeeFor returns the brokerage fee for a loan amount.
func BrokerageFeeFor(loanAmount decimal.Decimal) decimal.Decimal {
	if loanAmount.LessThanOrEqual(decimal.Zero) {
		return decimal.Zero
	}
	for _, tier := range brokerageTiers {
		if loanAmount.LessThanOrEqual(tier.upTo) {
			return tier.fee
		}
	}
	return Round(loanAmount.Mul(feeRateAboveTiers))
}

// FinancedBase is the amount interest is actually computed on: principal plus
// the brokerage fee. The origination fee is contingent (realized only on a
// returned payment) and must never enter this base, or the amortized payment
// quoted up front would be wrong.
func FinancedBase(terms LoanTerms) decimal.Decimal {
	return terms.PrincipalAmount.Add(terms.BrokerageFee)
}

// DeferralFeeFor resolves the fee a deferral should carry: the contract's own
// deferral fee terms when present, otherwise the fixed default.
func DeferralFeeFor(terms LoanTerms) decimal.Decimal {
	if terms.DeferralFee.GreaterThan(decimal.Zero) {
		return terms.DeferralFee
	}
	return DefaultDeferralFee
}
