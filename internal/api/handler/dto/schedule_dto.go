package dto

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"schedule-engine/internal/domain/schedule"
)

const dateLayout = "2006-01-02"

// GenerateScheduleRequest is the loan terms payload from the contract
// generation screen. Money fields are decimal strings.
type GenerateScheduleRequest struct {
	AccountID        int64  `json:"accountId"`
	LoanAmount       string `json:"loanAmount"`
	InterestRate     string `json:"interestRate"`
	PaymentFrequency string `json:"paymentFrequency"`
	NumberOfPayments int    `json:"numberOfPayments"`
	NextPaymentDate  string `json:"nextPaymentDate"`
	BrokerageFee     string `json:"brokerageFee,omitempty"`
	OriginationFee   string `json:"originationFee,omitempty"`
}

// Validate checks the request without touching the engine. The
// nextPaymentDate must be at least tomorrow relative to server time; that is
// a caller-facing rule, not an engine invariant.
func (r *GenerateScheduleRequest) Validate(now time.Time) error {
	amount, err := decimal.NewFromString(r.LoanAmount)
	if err != nil || amount.LessThanOrEqual(decimal.Zero) {
		return fmt.Errorf("loanAmount must be a positive decimal")
	}
	if _, err := decimal.NewFromString(r.InterestRate); err != nil {
		return fmt.Errorf("invalid interestRate: %w", err)
	}
	if _, err := schedule.ParseFrequency(r.PaymentFrequency); err != nil {
		return fmt.Errorf("invalid paymentFrequency: %w", err)
	}
	if r.NumberOfPayments <= 0 {
		return fmt.Errorf("numberOfPayments must be positive")
	}
	start, err := time.Parse(dateLayout, r.NextPaymentDate)
	if err != nil {
		return fmt.Errorf("invalid nextPaymentDate format (use YYYY-MM-DD): %w", err)
	}
	tomorrow := now.UTC().Truncate(24 * time.Hour).AddDate(0, 0, 1)
	if start.Before(tomorrow) {
		return fmt.Errorf("nextPaymentDate must be at least tomorrow")
	}
	return nil
}

// ToTerms converts the validated request into engine terms. When the payload
// carries no brokerage fee the tiered schedule supplies it; callers never
// invent that value.
func (r *GenerateScheduleRequest) ToTerms() (schedule.LoanTerms, time.Time, error) {
	amount, err := decimal.NewFromString(r.LoanAmount)
	if err != nil {
		return schedule.LoanTerms{}, time.Time{}, err
	}
	rate, err := decimal.NewFromString(r.InterestRate)
	if err != nil {
		return schedule.LoanTerms{}, time.Time{}, err
	}
	freq, err := schedule.ParseFrequency(r.PaymentFrequency)
	if err != nil {
		return schedule.LoanTerms{}, time.Time{}, err
	}
	start, err := time.Parse(dateLayout, r.NextPaymentDate)
	if err != nil {
		return schedule.LoanTerms{}, time.Time{}, err
	}

	brokerage := schedule.BrokerageFeeFor(amount)
	if r.BrokerageFee != "" {
		brokerage, err = decimal.NewFromString(r.BrokerageFee)
		if err != nil {
			return schedule.LoanTerms{}, time.Time{}, err
		}
	}
	origination := decimal.Zero
	if r.OriginationFee != "" {
		origination, err = decimal.NewFromString(r.OriginationFee)
		if err != nil {
			return schedule.LoanTerms{}, time.Time{}, err
		}
	}

	return schedule.LoanTerms{
		PrincipalAmount:  amount,
		InterestRate:     rate,
		PaymentFrequency: freq,
		NumberOfPayments: r.NumberOfPayments,
		BrokerageFee:     brokerage,
		OriginationFee:   origination,
	}, start, nil
}

type EditPaymentRequest struct {
	NewAmount string `json:"newAmount,omitempty"`
	NewDate   string `json:"newDate,omitempty"`
}

func (r *EditPaymentRequest) Validate() error {
	if r.NewAmount == "" && r.NewDate == "" {
		return fmt.Errorf("at least one of newAmount or newDate is required")
	}
	if r.NewAmount != "" {
		amount, err := decimal.NewFromString(r.NewAmount)
		if err != nil {
			return fmt.Errorf("invalid newAmount: %w", err)
		}
		if amount.LessThanOrEqual(decimal.Zero) {
			return fmt.Errorf("newAmount must be greater than zero")
		}
	}
	if r.NewDate != "" {
		if _, err := time.Parse(dateLayout, r.NewDate); err != nil {
			return fmt.Errorf("invalid newDate format (use YYYY-MM-DD): %w", err)
		}
	}
	return nil
}

func (r *EditPaymentRequest) ToEditRequest() (schedule.EditRequest, error) {
	var req schedule.EditRequest
	if r.NewAmount != "" {
		amount, err := decimal.NewFromString(r.NewAmount)
		if err != nil {
			return req, err
		}
		req.NewAmount = &amount
	}
	if r.NewDate != "" {
		d, err := time.Parse(dateLayout, r.NewDate)
		if err != nil {
			return req, err
		}
		req.NewDate = &d
	}
	return req, nil
}

type DeferPaymentRequest struct {
	FeeOption string `json:"feeOption"`
	FeeAmount string `json:"feeAmount,omitempty"`
}

func (r *DeferPaymentRequest) Validate() error {
	switch schedule.FeeOption(r.FeeOption) {
	case schedule.FeeOptionNone, schedule.FeeOptionAddToEndPayment:
	default:
		return fmt.Errorf("feeOption must be NONE or ADD_TO_END_PAYMENT")
	}
	if r.FeeAmount != "" {
		fee, err := decimal.NewFromString(r.FeeAmount)
		if err != nil {
			return fmt.Errorf("invalid feeAmount: %w", err)
		}
		if fee.LessThanOrEqual(decimal.Zero) {
			return fmt.Errorf("feeAmount must be greater than zero")
		}
	}
	return nil
}

func (r *DeferPaymentRequest) ToDeferralRequest(paymentID int64) (schedule.DeferralRequest, error) {
	req := schedule.DeferralRequest{
		PaymentID: paymentID,
		FeeOption: schedule.FeeOption(r.FeeOption),
	}
	if r.FeeAmount != "" {
		fee, err := decimal.NewFromString(r.FeeAmount)
		if err != nil {
			return req, err
		}
		req.FeeAmount = &fee
	}
	return req, nil
}

type ScheduleItemResponse struct {
	Sequence  int    `json:"sequence"`
	DueDate   string `json:"due_date"`
	Amount    string `json:"amount"`
	Principal string `json:"principal"`
	Interest  string `json:"interest"`
}

type ScheduleResponse struct {
	Mode            string                 `json:"mode"`
	PaymentSchedule []ScheduleItemResponse `json:"payment_schedule"`
	TotalAmount     string                 `json:"totalAmount"`
	TotalPrincipal  string                 `json:"totalPrincipal"`
	TotalInterest   string                 `json:"totalInterest"`
}

type PaymentResponse struct {
	ID        string `json:"id"`
	LoanID    string `json:"loanId"`
	Sequence  int    `json:"sequence"`
	DueDate   string `json:"dueDate"`
	Amount    string `json:"amount"`
	Principal string `json:"principal"`
	Interest  string `json:"interest"`
	Fee       string `json:"fee,omitempty"`
	Status    string `json:"status"`
	Notes     string `json:"notes,omitempty"`
}

type LoanResponse struct {
	ID               string            `json:"id"`
	AccountID        string            `json:"accountId"`
	PrincipalAmount  string            `json:"principalAmount"`
	InterestRate     string            `json:"interestRate"`
	PaymentFrequency string            `json:"paymentFrequency"`
	NumberOfPayments int               `json:"numberOfPayments"`
	BrokerageFee     string            `json:"brokerageFee"`
	OriginationFee   string            `json:"originationFee"`
	StartDate        string            `json:"startDate"`
	Locked           bool              `json:"locked"`
	Payments         []PaymentResponse `json:"payments,omitempty"`
}

type DeferralResponse struct {
	DeferredPayment PaymentResponse `json:"deferredPayment"`
	AppendedPayment PaymentResponse `json:"appendedPayment"`
}

type ErrorDetail struct {
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

type TokenRequest struct {
	Username string `json:"username"`
}

func NewScheduleResponse(s *schedule.Schedule) ScheduleResponse {
	items := make([]ScheduleItemResponse, 0, len(s.Items))
	for _, it := range s.Items {
		items = append(items, ScheduleItemResponse{
			Sequence:  it.Sequence,
			DueDate:   it.DueDate.Format(dateLayout),
			Amount:    it.Amount.StringFixed(2),
			Principal: it.Principal.StringFixed(2),
			Interest:  it.Interest.StringFixed(2),
		})
	}
	return ScheduleResponse{
		Mode:            string(s.Mode),
		PaymentSchedule: items,
		TotalAmount:     s.TotalAmount().StringFixed(2),
		TotalPrincipal:  s.TotalPrincipal().StringFixed(2),
		TotalInterest:   s.TotalInterest().StringFixed(2),
	}
}

func NewPaymentResponse(p *schedule.Payment) PaymentResponse {
	resp := PaymentResponse{
		ID:        fmt.Sprintf("%d", p.ID),
		LoanID:    fmt.Sprintf("%d", p.LoanID),
		Sequence:  p.Sequence,
		DueDate:   p.DueDate.Format(dateLayout),
		Amount:    p.Amount.StringFixed(2),
		Principal: p.Principal.StringFixed(2),
		Interest:  p.Interest.StringFixed(2),
		Status:    string(p.Status),
		Notes:     p.Notes,
	}
	if p.Fee.GreaterThan(decimal.Zero) {
		resp.Fee = p.Fee.StringFixed(2)
	}
	return resp
}

func NewLoanResponse(l *schedule.Loan, includePayments bool) LoanResponse {
	resp := LoanResponse{
		ID:               fmt.Sprintf("%d", l.ID),
		AccountID:        fmt.Sprintf("%d", l.AccountID),
		PrincipalAmount:  l.Terms.PrincipalAmount.StringFixed(2),
		InterestRate:     l.Terms.InterestRate.StringFixed(2),
		PaymentFrequency: string(l.Terms.PaymentFrequency),
		NumberOfPayments: l.Terms.NumberOfPayments,
		BrokerageFee:     l.Terms.BrokerageFee.StringFixed(2),
		OriginationFee:   l.Terms.OriginationFee.StringFixed(2),
		StartDate:        l.StartDate.Format(dateLayout),
		Locked:           l.Locked,
	}
	if includePayments {
		resp.Payments = make([]PaymentResponse, 0, len(l.Payments))
		for i := range l.Payments {
			resp.Payments = append(resp.Payments, NewPaymentResponse(&l.Payments[i]))
		}
	}
	return resp
}
