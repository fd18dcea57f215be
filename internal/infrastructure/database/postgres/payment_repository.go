package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pashagolub/pgxmock/v4"

	"schedule-engine/internal/domain/schedule"
	"schedule-engine/internal/infrastructure/monitoring"
	"schedule-engine/internal/pkg/apperrors"
)

type DBPool interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Acquire(ctx context.Context) (*pgxpool.Conn, error)
	Close()
}

type PaymentRepository struct {
	db     DBPool
	logger *slog.Logger
}

var _ DBPool = (*pgxpool.Pool)(nil)

var _ DBPool = (pgxmock.PgxPoolIface)(nil)

var _ schedule.Repository = (*PaymentRepository)(nil)

var errMsgFormat = "%w: %w"

const paymentColumns = "id, loan_id, sequence, due_date, amount, principal, interest, fee, status, notes, created_at, updated_at"

func NewPaymentRepository(db DBPool, logger *slog.Logger) *PaymentRepository {
	return &PaymentRepository{db: db, logger: logger.With("component", "PaymentRepository")}
}

func (r *PaymentRepository) BeginTx(ctx context.Context) (pgx.Tx, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to begin transaction", "error", err)
		return nil, fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
	}
	return tx, nil
}

func (r *PaymentRepository) CommitTx(ctx context.Context, tx pgx.Tx) error {
	err := tx.Commit(ctx)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to commit transaction", "error", err)
		return fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
	}
	return nil
}

func (r *PaymentRepository) RollbackTx(ctx context.Context, tx pgx.Tx) error {
	err := tx.Rollback(ctx)
	if err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		r.logger.ErrorContext(ctx, "Failed to rollback transaction", "error", err)
		return fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
	}
	return nil
}

// CreateLoan inserts the locked loan terms and every payment row in one
// transaction.
func (r *PaymentRepository) CreateLoan(ctx context.Context, newLoan *schedule.Loan, payments []schedule.Payment) (*schedule.Loan, error) {
	tx, err := r.BeginTx(ctx)
	if err != nil {
		return nil, err
	}
	defer r.RollbackTx(ctx, tx)

	loanSQL := `
        INSERT INTO loans (account_id, principal_amount, interest_rate, payment_frequency, number_of_payments, brokerage_fee, origination_fee, deferral_fee, start_date, locked, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW(), NOW())
        RETURNING id, created_at, updated_at`

	created := *newLoan
	err = tx.QueryRow(ctx, loanSQL,
		newLoan.AccountID, newLoan.Terms.PrincipalAmount, newLoan.Terms.InterestRate,
		string(newLoan.Terms.PaymentFrequency), newLoan.Terms.NumberOfPayments,
		newLoan.Terms.BrokerageFee, newLoan.Terms.OriginationFee, newLoan.Terms.DeferralFee,
		newLoan.StartDate, newLoan.Locked,
	).Scan(&created.ID, &created.CreatedAt, &created.UpdatedAt)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to insert loan", "error", err)
		return nil, fmt.Errorf("%w: failed to insert loan: %w", apperrors.ErrDatabase, err)
	}
	r.logger.InfoContext(ctx, "Loan created in DB", "loan_id", created.ID)

	if len(payments) > 0 {
		paymentSQL := `
            INSERT INTO payments (loan_id, sequence, due_date, amount, principal, interest, fee, status, notes, created_at, updated_at)
            VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW(), NOW())`

		batch := &pgx.Batch{}
		for _, p := range payments {
			batch.Queue(paymentSQL, created.ID, p.Sequence, p.DueDate, p.Amount, p.Principal, p.Interest, p.Fee, p.Status, p.Notes)
		}

		results := tx.SendBatch(ctx, batch)
		for i := 0; i < len(payments); i++ {
			_, err = results.Exec()
			if err != nil {
				results.Close()
				r.logger.ErrorContext(ctx, "Failed executing payment batch insert", "error", err, "entry_index", i, "loan_id", created.ID)
				return nil, fmt.Errorf("%w: failed inserting payment %d: %w", apperrors.ErrDatabase, i+1, err)
			}
		}
		if err = results.Close(); err != nil {
			r.logger.ErrorContext(ctx, "Failed closing payment batch results", "error", err, "loan_id", created.ID)
			return nil, fmt.Errorf("%w: closing batch results failed: %w", apperrors.ErrDatabase, err)
		}
	}
	r.logger.InfoContext(ctx, "Payment schedule created in DB", "loan_id", created.ID, "num_payments", len(payments))

	if err := r.CommitTx(ctx, tx); err != nil {
		return nil, err
	}

	return &created, nil
}

func (r *PaymentRepository) GetLoan(ctx context.Context, loanID int64) (*schedule.Loan, error) {
	query := `
        SELECT id, account_id, principal_amount, interest_rate, payment_frequency, number_of_payments, brokerage_fee, origination_fee, deferral_fee, start_date, locked, created_at, updated_at
        FROM loans
        WHERE id = $1`
	status := "success"
	startTime := time.Now()

	var l schedule.Loan
	var frequency string
	err := r.db.QueryRow(ctx, query, loanID).Scan(
		&l.ID, &l.AccountID, &l.Terms.PrincipalAmount, &l.Terms.InterestRate,
		&frequency, &l.Terms.NumberOfPayments, &l.Terms.BrokerageFee,
		&l.Terms.OriginationFee, &l.Terms.DeferralFee,
		&l.StartDate, &l.Locked, &l.CreatedAt, &l.UpdatedAt,
	)

	if err != nil {
		status = "error"
	}
	monitoring.RecordDBQuery("GetLoan", status, time.Since(startTime))

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			r.logger.WarnContext(ctx, "Loan not found", "loan_id", loanID)
			return nil, apperrors.ErrNotFound
		}
		r.logger.ErrorContext(ctx, "Failed to get loan by ID", "loan_id", loanID, "error", err)
		return nil, fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
	}
	l.Terms.PaymentFrequency = schedule.Frequency(frequency)
	return &l, nil
}

func (r *PaymentRepository) GetPayment(ctx context.Context, paymentID int64) (*schedule.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE id = $1`

	p, err := scanPayment(r.db.QueryRow(ctx, query, paymentID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			r.logger.WarnContext(ctx, "Payment not found", "payment_id", paymentID)
			return nil, apperrors.ErrNotFound
		}
		r.logger.ErrorContext(ctx, "Failed to get payment by ID", "payment_id", paymentID, "error", err)
		return nil, fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
	}
	return p, nil
}

func (r *PaymentRepository) GetPayments(ctx context.Context, loanID int64) ([]schedule.Payment, error) {
	query := `SELECT ` + paymentColumns + `
        FROM payments
        WHERE loan_id = $1
        ORDER BY sequence ASC`

	rows, err := r.db.Query(ctx, query, loanID)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to query payments", "loan_id", loanID, "error", err)
		return nil, fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
	}
	defer rows.Close()

	payments := make([]schedule.Payment, 0)
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			r.logger.ErrorContext(ctx, "Failed to scan payment row", "loan_id", loanID, "error", err)
			return nil, fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
		}
		payments = append(payments, *p)
	}

	if err = rows.Err(); err != nil {
		r.logger.ErrorContext(ctx, "Error iterating payment rows", "loan_id", loanID, "error", err)
		return nil, fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
	}

	return payments, nil
}

func (r *PaymentRepository) UpdatePayment(ctx context.Context, p *schedule.Payment) error {
	updateSQL := `
        UPDATE payments
        SET due_date = $1, amount = $2, principal = $3, interest = $4, fee = $5, status = $6, notes = $7, updated_at = NOW()
        WHERE id = $8`

	cmdTag, err := r.db.Exec(ctx, updateSQL,
		p.DueDate, p.Amount, p.Principal, p.Interest, p.Fee, p.Status, p.Notes, p.ID)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to update payment", "payment_id", p.ID, "error", err)
		return fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
	}
	if cmdTag.RowsAffected() == 0 {
		return fmt.Errorf("%w: payment %d not found", apperrors.ErrNotFound, p.ID)
	}
	return nil
}

// ApplyDeferral mutates the deferred payment and inserts the appended end
// payment as one transaction, so a concurrent request observes either both
// rows or neither.
func (r *PaymentRepository) ApplyDeferral(ctx context.Context, deferred *schedule.Payment, appended *schedule.Payment) (*schedule.Payment, error) {
	tx, err := r.BeginTx(ctx)
	if err != nil {
		return nil, err
	}
	defer r.RollbackTx(ctx, tx)

	updateSQL := `
        UPDATE payments
        SET amount = $1, principal = $2, interest = $3, status = $4, notes = $5, updated_at = NOW()
        WHERE id = $6 AND status = 'PENDING'`

	cmdTag, err := tx.Exec(ctx, updateSQL,
		deferred.Amount, deferred.Principal, deferred.Interest, deferred.Status, deferred.Notes, deferred.ID)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to update deferred payment", "payment_id", deferred.ID, "error", err)
		return nil, fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
	}
	if cmdTag.RowsAffected() == 0 {
		// A concurrent edit got there first, or the status changed under us.
		return nil, fmt.Errorf("%w: payment %d is no longer pending", apperrors.ErrConflict, deferred.ID)
	}

	insertSQL := `
        INSERT INTO payments (loan_id, sequence, due_date, amount, principal, interest, fee, status, notes, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW(), NOW())
        RETURNING id, created_at, updated_at`

	inserted := *appended
	err = tx.QueryRow(ctx, insertSQL,
		appended.LoanID, appended.Sequence, appended.DueDate, appended.Amount,
		appended.Principal, appended.Interest, appended.Fee, appended.Status, appended.Notes,
	).Scan(&inserted.ID, &inserted.CreatedAt, &inserted.UpdatedAt)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to insert appended payment", "loan_id", appended.LoanID, "error", err)
		return nil, fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
	}

	if err := r.CommitTx(ctx, tx); err != nil {
		return nil, err
	}

	r.logger.InfoContext(ctx, "Deferral applied", "payment_id", deferred.ID, "appended_payment_id", inserted.ID)
	return &inserted, nil
}

func (r *PaymentRepository) GetActiveLoanIDs(ctx context.Context) ([]int64, error) {
	query := `
        SELECT DISTINCT loan_id
        FROM payments
        WHERE status = 'PENDING'
        ORDER BY loan_id ASC`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to query active loan IDs", "error", err)
		return nil, fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
	}
	defer rows.Close()

	ids := make([]int64, 0)
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
		}
		ids = append(ids, id)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
	}
	return ids, nil
}

func scanPayment(row pgx.Row) (*schedule.Payment, error) {
	var p schedule.Payment
	err := row.Scan(
		&p.ID, &p.LoanID, &p.Sequence, &p.DueDate,
		&p.Amount, &p.Principal, &p.Interest, &p.Fee,
		&p.Status, &p.Notes, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}
