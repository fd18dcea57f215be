package event

import "time"

// ContractLockedEvent announces that a loan's schedule was locked at
// submission and its payment rows created.
type ContractLockedEvent struct {
	LoanID       int64     `json:"loanId"`
	AccountID    int64     `json:"accountId"`
	PaymentCount int       `json:"paymentCount"`
	TotalAmount  string    `json:"totalAmount"`
	Timestamp    time.Time `json:"timestamp"`
}

// PaymentEditedEvent announces a manual amount/date override on one payment.
type PaymentEditedEvent struct {
	LoanID    int64     `json:"loanId"`
	PaymentID int64     `json:"paymentId"`
	Note      string    `json:"note"`
	Timestamp time.Time `json:"timestamp"`
}

// PaymentDeferredEvent announces a deferral: one payment zeroed, one appended.
type PaymentDeferredEvent struct {
	LoanID            int64     `json:"loanId"`
	DeferredPaymentID int64     `json:"deferredPaymentId"`
	AppendedPaymentID int64     `json:"appendedPaymentId"`
	FeeAmount         string    `json:"feeAmount,omitempty"`
	Timestamp         time.Time `json:"timestamp"`
}
