package schedule

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"schedule-engine/internal/pkg/apperrors"
)

// PaymentStatus is informational state set by the payment-processing
// collaborators; the engine only reads it (deferral requires PENDING) and
// writes DEFERRED / MANUAL as a result of its own operations.
type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "PENDING"
	PaymentStatusConfirmed PaymentStatus = "CONFIRMED"
	PaymentStatusPaid      PaymentStatus = "PAID"
	PaymentStatusFailed    PaymentStatus = "FAILED"
	PaymentStatusRejected  PaymentStatus = "REJECTED"
	PaymentStatusDeferred  PaymentStatus = "DEFERRED"
	PaymentStatusManual    PaymentStatus = "MANUAL"
	PaymentStatusCancelled PaymentStatus = "CANCELLED"
	PaymentStatusRebate    PaymentStatus = "REBATE"
)

// LoanTerms is the input to amortization. Immutable once a schedule generated
// from it has been locked; staff edits before submission create fresh terms.
type LoanTerms struct {
	PrincipalAmount  decimal.Decimal
	InterestRate     decimal.Decimal // annual nominal rate, percent
	PaymentFrequency Frequency
	NumberOfPayments int
	BrokerageFee     decimal.Decimal // financed, folded into the amortization base
	OriginationFee   decimal.Decimal // contingent (returned payments only), never financed
	DeferralFee      decimal.Decimal // default fee applied when a deferral carries one
}

func (t LoanTerms) Validate() error {
	if t.PrincipalAmount.LessThanOrEqual(decimal.Zero) {
		return apperrors.NewInvalidTermsError("principalAmount", "must be greater than zero")
	}
	if t.InterestRate.IsNegative() {
		return apperrors.NewInvalidTermsError("interestRate", "must not be negative")
	}
	if !t.PaymentFrequency.Valid() {
		return apperrors.NewInvalidTermsError("paymentFrequency", "unknown frequency")
	}
	if t.NumberOfPayments <= 0 {
		return apperrors.NewInvalidTermsError("numberOfPayments", "must be positive")
	}
	if t.BrokerageFee.IsNegative() {
		return apperrors.NewInvalidTermsError("brokerageFee", "must not be negative")
	}
	if t.OriginationFee.IsNegative() {
		return apperrors.NewInvalidTermsError("originationFee", "must not be negative")
	}
	return nil
}

// ScheduleItem is one dated payment of a generated schedule.
// Amount == Principal + Interest for every item except possibly the last,
// which may absorb a rounding remainder.
type ScheduleItem struct {
	Sequence  int
	DueDate   time.Time
	Amount    decimal.Decimal
	Principal decimal.Decimal
	Interest  decimal.Decimal
}

// Payment is the persisted instance of a schedule item, owned by a loan.
// Fee carries a deferral fee rolled onto an appended end payment; it is kept
// out of the principal/interest breakdown so reconciliation checks do not
// miscount it as principal.
type Payment struct {
	ID        int64
	LoanID    int64
	Sequence  int
	DueDate   time.Time
	Amount    decimal.Decimal
	Principal decimal.Decimal
	Interest  decimal.Decimal
	Fee       decimal.Decimal
	Status    PaymentStatus
	Notes     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// AppendNote appends a timestamped human-readable audit entry. Notes are
// append-only; nothing in this package ever rewrites existing entries.
func (p *Payment) AppendNote(at time.Time, note string) {
	entry := at.UTC().Format(time.RFC3339) + " " + note
	if p.Notes == "" {
		p.Notes = entry
		return
	}
	p.Notes = strings.TrimRight(p.Notes, "\n") + "\n" + entry
}

// FeeOption selects how a deferral charges its fee.
type FeeOption string

const (
	FeeOptionNone            FeeOption = "NONE"
	FeeOptionAddToEndPayment FeeOption = "ADD_TO_END_PAYMENT"
)

// DeferralRequest references one existing payment to push to the end of the
// schedule. FeeAmount is consulted only when FeeOption is ADD_TO_END_PAYMENT;
// a nil FeeAmount means "use the contract's deferral fee terms".
type DeferralRequest struct {
	PaymentID int64
	FeeOption FeeOption
	FeeAmount *decimal.Decimal
}
