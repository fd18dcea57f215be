package schedule

import (
	"time"

	"github.com/shopspring/decimal"
)

// ReconciliationTolerance is the largest final-payment rounding adjustment a
// healthy schedule should need. Anything beyond it usually means a rate or
// term mismatch upstream; callers log it as a warning and do not block.
var ReconciliationTolerance = decimal.NewFromFloat(0.05)

// Mode tags who owns a schedule's contents.
//
// In ModeAuto the loan terms drive the schedule: any terms change regenerates
// it wholesale. In ModeManual user edits own the schedule and regeneration is
// refused until the user explicitly resets to auto. This replaces a mutable
// "manually edited" flag living outside the schedule, so every consumer of
// the engine observes the same contract.
type Mode string

const (
	ModeAuto   Mode = "AUTO"
	ModeManual Mode = "MANUAL"
)

// Schedule is an ordered sequence of dated payments, ascending by due date.
// Adjustment records the rounding remainder absorbed by the final payment.
type Schedule struct {
	Items      []ScheduleItem
	Mode       Mode
	Adjustment decimal.Decimal
}

func (s *Schedule) Empty() bool { return len(s.Items) == 0 }

// TotalPrincipal sums the principal column; for a freshly generated schedule
// it equals the financed base exactly.
func (s *Schedule) TotalPrincipal() decimal.Decimal {
	total := decimal.Zero
	for _, it := range s.Items {
		total = total.Add(it.Principal)
	}
	return total
}

func (s *Schedule) TotalInterest() decimal.Decimal {
	total := decimal.Zero
	for _, it := range s.Items {
		total = total.Add(it.Interest)
	}
	return total
}

func (s *Schedule) TotalAmount() decimal.Decimal {
	total := decimal.Zero
	for _, it := range s.Items {
		total = total.Add(it.Amount)
	}
	return total
}

// MarkManual hands ownership of the schedule to the user. Idempotent.
func (s *Schedule) MarkManual() { s.Mode = ModeManual }

// ResetToAuto returns ownership to the loan terms; the next Regenerate call
// will succeed and replace the items wholesale.
func (s *Schedule) ResetToAuto() { s.Mode = ModeAuto }

// Regenerate replaces the schedule from terms unless the user owns it.
// A manual schedule is left untouched and the call reports false.
func (s *Schedule) Regenerate(terms LoanTerms, startDate time.Time, cal HolidayCalendar) (bool, error) {
	if s.Mode == ModeManual {
		return false, nil
	}
	fresh, err := Generate(terms, startDate, cal)
	if err != nil {
		return false, err
	}
	s.Items = fresh.Items
	s.Adjustment = fresh.Adjustment
	return true, nil
}

// Generate produces the declining-balance amortization schedule for terms,
// starting one period after startDate.
//
// Interest for each period is computed on the remaining balance at the
// nominal periodic rate; the principal portion is the fixed payment minus
// that interest. The final payment is forced to the exact remaining balance
// so cumulative principal equals the financed base regardless of rounding
// drift across the earlier periods.
//
// A due date landing on a weekend or supplied holiday is shifted forward to
// the next business day. The shift affects only the displayed date, not the
// interest accrual period.
//
// A zero startDate or non-positive payment count yields an empty schedule
// with a nil error: the inputs are not ready yet, which is not a caller
// mistake worth surfacing.
func Generate(terms LoanTerms, startDate time.Time, cal HolidayCalendar) (*Schedule, error) {
	if startDate.IsZero() || terms.NumberOfPayments <= 0 {
		return &Schedule{Mode: ModeAuto}, nil
	}

	payment, err := PaymentAmount(terms)
	if err != nil {
		return nil, err
	}

	r := periodicRate(terms)
	balance := FinancedBase(terms)
	items := make([]ScheduleItem, 0, terms.NumberOfPayments)
	adjustment := decimal.Zero

	for i := 1; i <= terms.NumberOfPayments; i++ {
		interest := Round(balance.Mul(r))
		principal := payment.Sub(interest)
		amount := payment

		if i == terms.NumberOfPayments {
			// Close out the exact remaining balance instead of the nominal
			// payment.
			principal = balance
			amount = Round(principal.Add(interest))
			adjustment = amount.Sub(payment)
		}

		due := terms.PaymentFrequency.Step(startDate, i)
		items = append(items, ScheduleItem{
			Sequence:  i,
			DueDate:   cal.NextBusinessDay(due),
			Amount:    amount,
			Principal: principal,
			Interest:  interest,
		})
		balance = balance.Sub(principal)
	}

	return &Schedule{Items: items, Mode: ModeAuto, Adjustment: adjustment}, nil
}
