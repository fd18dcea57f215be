package batch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"

	"schedule-engine/internal/domain/schedule"
	"schedule-engine/internal/infrastructure/monitoring"
	"schedule-engine/internal/pkg/apperrors"
)

// ReconciliationAuditJob walks every loan with pending payments and checks
// that the persisted schedule still sums to the financed base. Drift beyond
// a cent usually means a rate or term mismatch upstream, or a hand edit that
// nobody followed up on; the job warns, it never blocks or mutates.
type ReconciliationAuditJob struct {
	repo   schedule.Repository
	logger *slog.Logger
}

var auditTolerance = decimal.NewFromFloat(0.01)

func NewReconciliationAuditJob(repo schedule.Repository, logger *slog.Logger) *ReconciliationAuditJob {
	if repo == nil || logger == nil {
		panic("ReconciliationAuditJob dependencies cannot be nil")
	}
	return &ReconciliationAuditJob{
		repo:   repo,
		logger: logger.With("job", "ReconciliationAudit"),
	}
}

func (j *ReconciliationAuditJob) Run(ctx context.Context) error {
	startTime := time.Now()
	j.logger.InfoContext(ctx, "Starting nightly schedule reconciliation audit.")

	loanIDs, err := j.repo.GetActiveLoanIDs(ctx)
	if err != nil {
		j.logger.ErrorContext(ctx, "Failed to get active loan IDs, aborting job.", slog.Any("error", err))
		return fmt.Errorf("cannot run job, failed to get active loans: %w", err)
	}
	j.logger.InfoContext(ctx, "Fetched active loan IDs.", slog.Int("count", len(loanIDs)))

	if len(loanIDs) == 0 {
		j.logger.InfoContext(ctx, "No active loans found to audit.", slog.Duration("duration", time.Since(startTime)))
		return nil
	}

	var wg sync.WaitGroup
	var auditedCount, driftedCount, errorCount int32

	for _, loanID := range loanIDs {
		wg.Add(1)
		go func(currentLoanID int64) {
			defer wg.Done()

			logCtx := j.logger.With(slog.Int64("loanID", currentLoanID))

			drifted, checkErr := j.auditLoan(ctx, currentLoanID, logCtx)
			if checkErr != nil {
				if errors.Is(checkErr, apperrors.ErrNotFound) {
					logCtx.WarnContext(ctx, "Loan disappeared during audit", slog.Any("error", checkErr))
				} else {
					logCtx.ErrorContext(ctx, "Failed to audit loan", slog.Any("error", checkErr))
					atomic.AddInt32(&errorCount, 1)
				}
				return
			}
			if drifted {
				atomic.AddInt32(&driftedCount, 1)
			}
			atomic.AddInt32(&auditedCount, 1)
		}(loanID)
	}

	wg.Wait()
	summaryLog := j.logger.With(
		slog.Duration("duration", time.Since(startTime)),
		slog.Int("total_active_loans", len(loanIDs)),
		slog.Int("loans_audited", int(atomic.LoadInt32(&auditedCount))),
		slog.Int("loans_drifted", int(atomic.LoadInt32(&driftedCount))),
		slog.Int("errors_encountered", int(atomic.LoadInt32(&errorCount))),
	)
	if errorCount > 0 {
		summaryLog.WarnContext(ctx, "Schedule reconciliation audit finished with errors.")
		return fmt.Errorf("job completed with %d errors", atomic.LoadInt32(&errorCount))
	}
	summaryLog.InfoContext(ctx, "Schedule reconciliation audit finished successfully.")
	return nil
}

// auditLoan compares the persisted principal column against the loan's
// financed base. Deferral fees live in the fee column and are excluded from
// the comparison; a deferred payment's zeroed slot is compensated by its
// appended end payment, so the totals still have to match.
func (j *ReconciliationAuditJob) auditLoan(ctx context.Context, loanID int64, logCtx *slog.Logger) (bool, error) {
	l, err := j.repo.GetLoan(ctx, loanID)
	if err != nil {
		return false, err
	}
	payments, err := j.repo.GetPayments(ctx, loanID)
	if err != nil {
		return false, err
	}

	totalPrincipal := decimal.Zero
	totalInterest := decimal.Zero
	totalAmount := decimal.Zero
	totalFees := decimal.Zero
	for _, p := range payments {
		totalPrincipal = totalPrincipal.Add(p.Principal)
		totalInterest = totalInterest.Add(p.Interest)
		totalAmount = totalAmount.Add(p.Amount)
		totalFees = totalFees.Add(p.Fee)
	}

	financedBase := schedule.FinancedBase(l.Terms)
	drift := totalPrincipal.Sub(financedBase)

	manuallyEdited := false
	for _, p := range payments {
		if p.Status == schedule.PaymentStatusManual {
			manuallyEdited = true
			break
		}
	}

	if drift.Abs().GreaterThan(auditTolerance) {
		monitoring.Business.ReconciliationDriftWarning.Inc()
		logCtx.WarnContext(ctx, "Schedule principal does not reconcile with financed base",
			slog.String("financed_base", financedBase.StringFixed(2)),
			slog.String("total_principal", totalPrincipal.StringFixed(2)),
			slog.String("drift", drift.StringFixed(2)),
			slog.Bool("has_manual_edits", manuallyEdited),
		)
		return true, nil
	}

	expectedAmount := totalPrincipal.Add(totalInterest).Add(totalFees)
	if !totalAmount.Sub(expectedAmount).IsZero() {
		logCtx.WarnContext(ctx, "Payment amounts do not equal principal+interest+fees",
			slog.String("total_amount", totalAmount.StringFixed(2)),
			slog.String("expected", expectedAmount.StringFixed(2)),
			slog.Bool("has_manual_edits", manuallyEdited),
		)
		return true, nil
	}

	return false, nil
}
