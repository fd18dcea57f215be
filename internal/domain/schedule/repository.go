package schedule

import (
	"context"
)

// Repository persists loans and their payment rows.
//
// CreateLoan and ApplyDeferral are transactional units: a concurrent reader
// observes either the fully-applied or the fully-unapplied state, never a
// partial one. Deferral in particular mutates one row and inserts another
// and must not interleave with a second edit of the same payment.
type Repository interface {
	CreateLoan(ctx context.Context, loan *Loan, payments []Payment) (*Loan, error)

	GetLoan(ctx context.Context, loanID int64) (*Loan, error)

	GetPayment(ctx context.Context, paymentID int64) (*Payment, error)

	GetPayments(ctx context.Context, loanID int64) ([]Payment, error)

	// UpdatePayment overwrites a payment's mutable columns (amount, dates,
	// breakdown, status, notes) inside a single transaction.
	UpdatePayment(ctx context.Context, p *Payment) error

	// ApplyDeferral updates the deferred payment and inserts the appended one
	// in one transaction, returning the inserted row with its assigned ID and
	// sequence.
	ApplyDeferral(ctx context.Context, deferred *Payment, appended *Payment) (*Payment, error)

	// GetActiveLoanIDs lists loans with at least one pending payment; used by
	// the nightly reconciliation audit.
	GetActiveLoanIDs(ctx context.Context) ([]int64, error)
}
