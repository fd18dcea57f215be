package schedule

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"schedule-engine/internal/pkg/apperrors"
)

// Editor applies post-generation mutations to persisted payments: ad hoc
// manual edits and deferrals. It transforms payment values and leaves
// persistence to the caller. The clock is injected so audit notes are
// reproducible in tests.
type Editor struct {
	now func() time.Time
}

func NewEditor() *Editor {
	return &Editor{now: time.Now}
}

func NewEditorWithClock(now func() time.Time) *Editor {
	return &Editor{now: now}
}

// EditRequest carries the optional overrides of a manual edit. Nil means
// "leave unchanged".
type EditRequest struct {
	NewAmount *decimal.Decimal
	NewDate   *time.Time
}

// Edit applies a manual override to a single payment and appends an audit
// note describing the old and new values. The rest of the schedule is NOT
// recomputed: an edited payment is an isolated override, and the
// reconciliation invariant is not re-enforced afterwards. Later payments do
// not absorb the discrepancy.
func (e *Editor) Edit(p Payment, req EditRequest) (Payment, error) {
	if req.NewAmount == nil && req.NewDate == nil {
		return p, apperrors.NewInvalidEditError("", "nothing to change")
	}
	if req.NewAmount != nil && req.NewAmount.LessThanOrEqual(decimal.Zero) {
		return p, apperrors.NewInvalidEditError("amount", "must be greater than zero")
	}
	if req.NewDate != nil && req.NewDate.IsZero() {
		return p, apperrors.NewInvalidEditError("date", "must be a valid date")
	}

	if req.NewAmount != nil {
		amount := Round(*req.NewAmount)
		p.AppendNote(e.now(), fmt.Sprintf("amount changed from %s to %s",
			p.Amount.StringFixed(2), amount.StringFixed(2)))
		p.Amount = amount
	}
	if req.NewDate != nil {
		p.AppendNote(e.now(), fmt.Sprintf("due date changed from %s to %s",
			p.DueDate.Format("2006-01-02"), req.NewDate.Format("2006-01-02")))
		p.DueDate = *req.NewDate
	}
	p.Status = PaymentStatusManual
	return p, nil
}

// Defer zeroes out the target payment and returns the replacement payment to
// append at the end of the schedule, one frequency step past lastDueDate.
//
// Only pending payments may be deferred. The fee, when charged, rides on the
// appended payment's Fee field and stays out of the principal/interest
// breakdown so downstream reconciliation does not count it as principal.
// When the fee option is set and no explicit amount is given, the contract's
// deferral fee terms apply.
func (e *Editor) Defer(p Payment, terms LoanTerms, lastDueDate time.Time, req DeferralRequest) (Payment, Payment, error) {
	if p.Status != PaymentStatusPending {
		return p, Payment{}, fmt.Errorf("%w: cannot defer payment %d with status %s",
			apperrors.ErrPrecondition, p.ID, p.Status)
	}
	if req.FeeOption != FeeOptionNone && req.FeeOption != FeeOptionAddToEndPayment {
		return p, Payment{}, apperrors.NewInvalidEditError("feeOption", "unknown fee option")
	}

	originalAmount := p.Amount
	originalPrincipal := p.Principal
	originalInterest := p.Interest

	fee := decimal.Zero
	if req.FeeOption == FeeOptionAddToEndPayment {
		if req.FeeAmount != nil {
			fee = Round(*req.FeeAmount)
		} else {
			fee = DeferralFeeFor(terms)
		}
		if fee.LessThanOrEqual(decimal.Zero) {
			return p, Payment{}, apperrors.NewInvalidEditError("feeAmount", "must be greater than zero")
		}
	}

	now := e.now()
	p.Amount = decimal.Zero
	p.Principal = decimal.Zero
	p.Interest = decimal.Zero
	p.Status = PaymentStatusDeferred
	note := fmt.Sprintf("payment of %s deferred to end of schedule", originalAmount.StringFixed(2))
	if fee.GreaterThan(decimal.Zero) {
		note += fmt.Sprintf(" with %s deferral fee", fee.StringFixed(2))
	}
	p.AppendNote(now, note)

	appended := Payment{
		LoanID:    p.LoanID,
		Sequence:  p.Sequence, // caller assigns the real end-of-schedule sequence on insert
		DueDate:   terms.PaymentFrequency.Next(lastDueDate),
		Amount:    originalAmount.Add(fee),
		Principal: originalPrincipal,
		Interest:  originalInterest,
		Fee:       fee,
		Status:    PaymentStatusPending,
	}
	appended.AppendNote(now, fmt.Sprintf("created by deferral of payment #%d", p.Sequence))

	return p, appended, nil
}
