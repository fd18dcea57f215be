package schedule

import "time"

// Loan is the persisted contract a locked schedule belongs to. Terms are
// snapshotted at submission; edits before submission create new terms and a
// regenerated preview, never a mutation of a stored row.
type Loan struct {
	ID        int64
	AccountID int64
	Terms     LoanTerms
	StartDate time.Time
	Locked    bool
	CreatedAt time.Time
	UpdatedAt time.Time
	Payments  []Payment
}
