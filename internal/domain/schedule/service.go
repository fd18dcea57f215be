package schedule

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"schedule-engine/internal/event"
	"schedule-engine/internal/infrastructure/monitoring"
	"schedule-engine/internal/pkg/apperrors"
)

type ScheduleService interface {
	// PreviewSchedule computes a schedule without persisting anything. Staff
	// may call it arbitrarily often while tuning inputs; every call replaces
	// the whole preview.
	PreviewSchedule(ctx context.Context, terms LoanTerms, startDate time.Time) (*Schedule, error)

	// SubmitContract locks the terms and creates the loan plus its payment
	// rows in one transaction.
	SubmitContract(ctx context.Context, accountID int64, terms LoanTerms, startDate time.Time) (*Loan, error)

	GetLoan(ctx context.Context, loanID int64) (*Loan, error)

	GetSchedule(ctx context.Context, loanID int64) ([]Payment, error)

	// EditPayment applies a manual amount/date override to one payment.
	EditPayment(ctx context.Context, paymentID int64, req EditRequest) (*Payment, error)

	// DeferPayment zeroes the target payment and appends a replacement at the
	// end of the schedule as a single transactional unit.
	DeferPayment(ctx context.Context, req DeferralRequest) (*Payment, *Payment, error)
}

type scheduleServiceImpl struct {
	repo      Repository
	publisher event.EventPublisher
	calendar  HolidayCalendar
	editor    *Editor
	logger    *slog.Logger
}

func NewScheduleService(r Repository, pub event.EventPublisher, cal HolidayCalendar, logger *slog.Logger) ScheduleService {
	return &scheduleServiceImpl{
		repo:      r,
		publisher: pub,
		calendar:  cal,
		editor:    NewEditor(),
		logger:    logger.With("component", "ScheduleService"),
	}
}

func (s *scheduleServiceImpl) PreviewSchedule(ctx context.Context, terms LoanTerms, startDate time.Time) (*Schedule, error) {
	sched, err := Generate(terms, startDate, s.calendar)
	if err != nil {
		s.logger.WarnContext(ctx, "Schedule preview rejected", "error", err)
		return nil, err
	}
	monitoring.Business.SchedulesGeneratedTotal.Inc()
	s.warnOnDrift(ctx, 0, sched.Adjustment)
	return sched, nil
}

func (s *scheduleServiceImpl) SubmitContract(ctx context.Context, accountID int64, terms LoanTerms, startDate time.Time) (*Loan, error) {
	s.logger.InfoContext(ctx, "Submitting contract", "accountID", accountID)

	if err := terms.Validate(); err != nil {
		return nil, err
	}
	if startDate.IsZero() {
		return nil, apperrors.NewValidationError("nextPaymentDate", "start date is required")
	}

	sched, err := Generate(terms, startDate, s.calendar)
	if err != nil {
		return nil, err
	}
	if sched.Empty() {
		return nil, fmt.Errorf("%w: generated schedule is empty", apperrors.ErrInternalServer)
	}

	newLoan := &Loan{
		AccountID: accountID,
		Terms:     terms,
		StartDate: startDate,
		Locked:    true,
	}
	payments := make([]Payment, 0, len(sched.Items))
	for _, it := range sched.Items {
		payments = append(payments, Payment{
			Sequence:  it.Sequence,
			DueDate:   it.DueDate,
			Amount:    it.Amount,
			Principal: it.Principal,
			Interest:  it.Interest,
			Status:    PaymentStatusPending,
		})
	}

	created, err := s.repo.CreateLoan(ctx, newLoan, payments)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to persist loan and schedule", "error", err)
		return nil, fmt.Errorf("failed to save loan and schedule: %w", err)
	}
	s.warnOnDrift(ctx, created.ID, sched.Adjustment)

	if err := s.publisher.PublishContractLocked(ctx, event.ContractLockedEvent{
		LoanID:       created.ID,
		AccountID:    accountID,
		PaymentCount: len(payments),
		TotalAmount:  sched.TotalAmount().StringFixed(2),
		Timestamp:    time.Now().UTC(),
	}); err != nil {
		// Event delivery is best-effort; the contract itself is committed.
		s.logger.WarnContext(ctx, "Failed to publish contract.locked event", "loanID", created.ID, "error", err)
	}

	monitoring.Business.ContractsLockedTotal.Inc()
	s.logger.InfoContext(ctx, "Contract submitted", "loanID", created.ID, "payments", len(payments))
	return created, nil
}

func (s *scheduleServiceImpl) GetLoan(ctx context.Context, loanID int64) (*Loan, error) {
	l, err := s.repo.GetLoan(ctx, loanID)
	if err != nil {
		return nil, err
	}
	return l, nil
}

func (s *scheduleServiceImpl) GetSchedule(ctx context.Context, loanID int64) ([]Payment, error) {
	return s.repo.GetPayments(ctx, loanID)
}

func (s *scheduleServiceImpl) EditPayment(ctx context.Context, paymentID int64, req EditRequest) (*Payment, error) {
	s.logger.InfoContext(ctx, "Editing payment", "paymentID", paymentID)

	p, err := s.repo.GetPayment(ctx, paymentID)
	if err != nil {
		return nil, err
	}

	edited, err := s.editor.Edit(*p, req)
	if err != nil {
		return nil, err
	}

	if err := s.repo.UpdatePayment(ctx, &edited); err != nil {
		s.logger.ErrorContext(ctx, "Failed to persist payment edit", "paymentID", paymentID, "error", err)
		return nil, err
	}

	if err := s.publisher.PublishPaymentEdited(ctx, event.PaymentEditedEvent{
		LoanID:    edited.LoanID,
		PaymentID: edited.ID,
		Note:      lastNoteLine(edited.Notes),
		Timestamp: time.Now().UTC(),
	}); err != nil {
		s.logger.WarnContext(ctx, "Failed to publish payment.edited event", "paymentID", paymentID, "error", err)
	}

	monitoring.Business.PaymentsEditedTotal.Inc()
	return &edited, nil
}

func (s *scheduleServiceImpl) DeferPayment(ctx context.Context, req DeferralRequest) (*Payment, *Payment, error) {
	s.logger.InfoContext(ctx, "Deferring payment", "paymentID", req.PaymentID)

	p, err := s.repo.GetPayment(ctx, req.PaymentID)
	if err != nil {
		return nil, nil, err
	}
	l, err := s.repo.GetLoan(ctx, p.LoanID)
	if err != nil {
		return nil, nil, err
	}
	siblings, err := s.repo.GetPayments(ctx, p.LoanID)
	if err != nil {
		return nil, nil, err
	}
	if len(siblings) == 0 {
		return nil, nil, fmt.Errorf("%w: loan %d has no payments", apperrors.ErrInternalServer, p.LoanID)
	}
	last := siblings[len(siblings)-1]

	deferred, appended, err := s.editor.Defer(*p, l.Terms, last.DueDate, req)
	if err != nil {
		return nil, nil, err
	}
	appended.Sequence = last.Sequence + 1

	inserted, err := s.repo.ApplyDeferral(ctx, &deferred, &appended)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to apply deferral", "paymentID", req.PaymentID, "error", err)
		return nil, nil, err
	}

	if err := s.publisher.PublishPaymentDeferred(ctx, event.PaymentDeferredEvent{
		LoanID:            p.LoanID,
		DeferredPaymentID: deferred.ID,
		AppendedPaymentID: inserted.ID,
		FeeAmount:         inserted.Fee.StringFixed(2),
		Timestamp:         time.Now().UTC(),
	}); err != nil {
		s.logger.WarnContext(ctx, "Failed to publish payment.deferred event", "paymentID", req.PaymentID, "error", err)
	}

	monitoring.Business.PaymentsDeferredTotal.Inc()
	s.logger.InfoContext(ctx, "Payment deferred", "paymentID", deferred.ID, "appendedPaymentID", inserted.ID)
	return &deferred, inserted, nil
}

// warnOnDrift surfaces a reconciliation warning when the final-payment
// rounding adjustment is larger than a healthy schedule should ever need.
// Non-fatal: staff see the warning, nothing is blocked.
func (s *scheduleServiceImpl) warnOnDrift(ctx context.Context, loanID int64, adjustment decimal.Decimal) {
	if adjustment.Abs().GreaterThan(ReconciliationTolerance) {
		monitoring.Business.ReconciliationDriftWarning.Inc()
		s.logger.WarnContext(ctx, "Reconciliation adjustment exceeded tolerance",
			"loanID", loanID,
			"adjustment", adjustment.StringFixed(2),
			"tolerance", ReconciliationTolerance.StringFixed(2))
	}
}

func lastNoteLine(notes string) string {
	if notes == "" {
		return ""
	}
	lines := strings.Split(notes, "\n")
	return lines[len(lines)-1]
}
