package schedule

import "github.com/shopspring/decimal"

// All currency leaving this package passes through Round or Reconcile; no
// caller performs its own rounding.

const currencyScale = 2

// Round rounds a monetary amount to two decimal places, half away from zero.
func Round(amount decimal.Decimal) decimal.Decimal {
	return amount.Round(currencyScale)
}

// Reconcile splits total into n rounded shares whose sum equals round(total)
// exactly. The first n-1 shares are total/n rounded independently; the last
// share absorbs whatever remains, so it may differ from the others by a cent
// or two.
func Reconcile(total decimal.Decimal, n int) []decimal.Decimal {
	if n <= 0 {
		return nil
	}
	shares := make([]decimal.Decimal, n)
	even := Round(total.Div(decimal.NewFromInt(int64(n))))
	accumulated := decimal.Zero
	for i := 0; i < n-1; i++ {
		shares[i] = even
		accumulated = accumulated.Add(even)
	}
	shares[n-1] = Round(total).Sub(accumulated)
	return shares
}
