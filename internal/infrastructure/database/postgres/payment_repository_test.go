package postgres

import (
	"context"
	"io"
	"log/slog"
	"regexp"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"schedule-engine/internal/domain/schedule"
	"schedule-engine/internal/pkg/apperrors"
)

const pgxmockExpectationsNotMetMsg = "pgxmock expectations were not met"

var logger = slog.New(slog.NewTextHandler(io.Discard, nil))

var paymentTest = &schedule.Payment{
	ID:        42,
	LoanID:    7,
	Sequence:  2,
	DueDate:   time.Date(2024, time.April, 15, 0, 0, 0, 0, time.UTC),
	Amount:    decimal.NewFromFloat(402.01),
	Principal: decimal.NewFromFloat(374.22),
	Interest:  decimal.NewFromFloat(27.79),
	Fee:       decimal.Zero,
	Status:    schedule.PaymentStatusPending,
}

func loanTest() *schedule.Loan {
	return &schedule.Loan{
		ID:        7,
		AccountID: 5,
		Terms: schedule.LoanTerms{
			PrincipalAmount:  decimal.NewFromInt(1000),
			InterestRate:     decimal.NewFromInt(29),
			PaymentFrequency: schedule.FrequencyMonthly,
			NumberOfPayments: 3,
			BrokerageFee:     decimal.NewFromInt(150),
			OriginationFee:   decimal.NewFromInt(50),
			DeferralFee:      decimal.NewFromInt(35),
		},
		StartDate: time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC),
		Locked:    true,
	}
}

func setupPaymentRepo(t *testing.T) (context.Context, *PaymentRepository, pgxmock.PgxPoolIface) {
	t.Helper()
	mockPool, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to open a stub database connection: %v", err)
	}

	ctx := context.Background()
	repo := NewPaymentRepository(mockPool, logger)

	return ctx, repo, mockPool
}

func paymentRows() *pgxmock.Rows {
	return pgxmock.NewRows([]string{"id", "loan_id", "sequence", "due_date", "amount", "principal", "interest", "fee", "status", "notes", "created_at", "updated_at"})
}

func TestCreateLoanWhenSuccess(t *testing.T) {
	ctx, repo, mockPool := setupPaymentRepo(t)
	defer mockPool.Close()

	l := loanTest()
	l.ID = 0
	payments := []schedule.Payment{
		{Sequence: 1, DueDate: time.Date(2024, time.April, 1, 0, 0, 0, 0, time.UTC), Amount: decimal.NewFromFloat(402.01), Principal: decimal.NewFromFloat(374.22), Interest: decimal.NewFromFloat(27.79), Fee: decimal.Zero, Status: schedule.PaymentStatusPending},
		{Sequence: 2, DueDate: time.Date(2024, time.May, 1, 0, 0, 0, 0, time.UTC), Amount: decimal.NewFromFloat(402.01), Principal: decimal.NewFromFloat(383.26), Interest: decimal.NewFromFloat(18.75), Fee: decimal.Zero, Status: schedule.PaymentStatusPending},
	}

	loanSQL := `
        INSERT INTO loans (account_id, principal_amount, interest_rate, payment_frequency, number_of_payments, brokerage_fee, origination_fee, deferral_fee, start_date, locked, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW(), NOW())
        RETURNING id, created_at, updated_at`
	paymentSQL := `
            INSERT INTO payments (loan_id, sequence, due_date, amount, principal, interest, fee, status, notes, created_at, updated_at)
            VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW(), NOW())`

	now := time.Now()
	mockPool.ExpectBegin()
	mockPool.ExpectQuery(regexp.QuoteMeta(loanSQL)).WithArgs(
		l.AccountID,
		l.Terms.PrincipalAmount,
		l.Terms.InterestRate,
		string(l.Terms.PaymentFrequency),
		l.Terms.NumberOfPayments,
		l.Terms.BrokerageFee,
		l.Terms.OriginationFee,
		l.Terms.DeferralFee,
		l.StartDate,
		l.Locked,
	).WillReturnRows(pgxmock.NewRows([]string{"id", "created_at", "updated_at"}).
		AddRow(int64(7), now, now))

	batch := mockPool.ExpectBatch()
	for _, p := range payments {
		batch.ExpectExec(regexp.QuoteMeta(paymentSQL)).WithArgs(
			int64(7), p.Sequence, p.DueDate, p.Amount, p.Principal, p.Interest, p.Fee, p.Status, p.Notes,
		).WillReturnResult(pgxmock.NewResult("INSERT", 1))
	}
	mockPool.ExpectCommit()
	mockPool.ExpectRollback()

	created, err := repo.CreateLoan(ctx, l, payments)
	assert.NoError(t, err)
	assert.Equal(t, int64(7), created.ID)
	assert.NoError(t, mockPool.ExpectationsWereMet(), pgxmockExpectationsNotMetMsg)
}

func TestCreateLoanRollsBackOnInsertError(t *testing.T) {
	ctx, repo, mockPool := setupPaymentRepo(t)
	defer mockPool.Close()

	mockPool.ExpectBegin()
	mockPool.ExpectQuery(regexp.QuoteMeta("INSERT INTO loans")).WithArgs(
		pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
		pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
	).WillReturnError(assert.AnError)
	mockPool.ExpectRollback()

	_, err := repo.CreateLoan(ctx, loanTest(), nil)
	assert.ErrorIs(t, err, apperrors.ErrDatabase)
	assert.NoError(t, mockPool.ExpectationsWereMet(), pgxmockExpectationsNotMetMsg)
}

func TestGetLoanReturnsTerms(t *testing.T) {
	ctx, repo, mockPool := setupPaymentRepo(t)
	defer mockPool.Close()

	l := loanTest()
	query := `
        SELECT id, account_id, principal_amount, interest_rate, payment_frequency, number_of_payments, brokerage_fee, origination_fee, deferral_fee, start_date, locked, created_at, updated_at
        FROM loans
        WHERE id = $1`

	now := time.Now()
	mockPool.ExpectQuery(regexp.QuoteMeta(query)).WithArgs(l.ID).
		WillReturnRows(pgxmock.NewRows([]string{"id", "account_id", "principal_amount", "interest_rate", "payment_frequency", "number_of_payments", "brokerage_fee", "origination_fee", "deferral_fee", "start_date", "locked", "created_at", "updated_at"}).
			AddRow(l.ID, l.AccountID, l.Terms.PrincipalAmount, l.Terms.InterestRate,
				string(l.Terms.PaymentFrequency), l.Terms.NumberOfPayments, l.Terms.BrokerageFee,
				l.Terms.OriginationFee, l.Terms.DeferralFee, l.StartDate, l.Locked, now, now))

	got, err := repo.GetLoan(ctx, l.ID)
	assert.NoError(t, err)
	assert.Equal(t, schedule.FrequencyMonthly, got.Terms.PaymentFrequency)
	assert.True(t, got.Terms.PrincipalAmount.Equal(l.Terms.PrincipalAmount))
	assert.True(t, got.Locked)
	assert.NoError(t, mockPool.ExpectationsWereMet(), pgxmockExpectationsNotMetMsg)
}

func TestGetLoanReturnsNotFound(t *testing.T) {
	ctx, repo, mockPool := setupPaymentRepo(t)
	defer mockPool.Close()

	mockPool.ExpectQuery(regexp.QuoteMeta("SELECT")).WithArgs(int64(404)).WillReturnError(pgx.ErrNoRows)

	_, err := repo.GetLoan(ctx, 404)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	assert.NoError(t, mockPool.ExpectationsWereMet(), pgxmockExpectationsNotMetMsg)
}

func TestGetPaymentReturnsOne(t *testing.T) {
	ctx, repo, mockPool := setupPaymentRepo(t)
	defer mockPool.Close()

	query := `SELECT ` + paymentColumns + ` FROM payments WHERE id = $1`
	now := time.Now()

	mockPool.ExpectQuery(regexp.QuoteMeta(query)).WithArgs(paymentTest.ID).
		WillReturnRows(paymentRows().
			AddRow(paymentTest.ID, paymentTest.LoanID, paymentTest.Sequence, paymentTest.DueDate,
				paymentTest.Amount, paymentTest.Principal, paymentTest.Interest, paymentTest.Fee,
				paymentTest.Status, paymentTest.Notes, now, now))

	got, err := repo.GetPayment(ctx, paymentTest.ID)
	assert.NoError(t, err)
	assert.Equal(t, paymentTest.LoanID, got.LoanID)
	assert.True(t, got.Amount.Equal(paymentTest.Amount))
	assert.NoError(t, mockPool.ExpectationsWereMet(), pgxmockExpectationsNotMetMsg)
}

func TestGetPaymentReturnsNotFound(t *testing.T) {
	ctx, repo, mockPool := setupPaymentRepo(t)
	defer mockPool.Close()

	mockPool.ExpectQuery(regexp.QuoteMeta("SELECT")).WithArgs(int64(404)).WillReturnError(pgx.ErrNoRows)

	_, err := repo.GetPayment(ctx, 404)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	assert.NoError(t, mockPool.ExpectationsWereMet(), pgxmockExpectationsNotMetMsg)
}

func TestGetPaymentsReturnsAllInSequenceOrder(t *testing.T) {
	ctx, repo, mockPool := setupPaymentRepo(t)
	defer mockPool.Close()

	query := `SELECT ` + paymentColumns + `
        FROM payments
        WHERE loan_id = $1
        ORDER BY sequence ASC`
	now := time.Now()

	mockPool.ExpectQuery(regexp.QuoteMeta(query)).WithArgs(int64(7)).
		WillReturnRows(paymentRows().
			AddRow(int64(41), int64(7), 1, paymentTest.DueDate, paymentTest.Amount, paymentTest.Principal, paymentTest.Interest, decimal.Zero, schedule.PaymentStatusPaid, "", now, now).
			AddRow(int64(42), int64(7), 2, paymentTest.DueDate, paymentTest.Amount, paymentTest.Principal, paymentTest.Interest, decimal.Zero, schedule.PaymentStatusPending, "", now, now))

	got, err := repo.GetPayments(ctx, 7)
	assert.NoError(t, err)
	assert.Len(t, got, 2)
	assert.Equal(t, 1, got[0].Sequence)
	assert.Equal(t, 2, got[1].Sequence)
	assert.NoError(t, mockPool.ExpectationsWereMet(), pgxmockExpectationsNotMetMsg)
}

func TestUpdatePaymentWhenSuccess(t *testing.T) {
	ctx, repo, mockPool := setupPaymentRepo(t)
	defer mockPool.Close()

	updateSQL := `
        UPDATE payments
        SET due_date = $1, amount = $2, principal = $3, interest = $4, fee = $5, status = $6, notes = $7, updated_at = NOW()
        WHERE id = $8`

	mockPool.ExpectExec(regexp.QuoteMeta(updateSQL)).WithArgs(
		paymentTest.DueDate, paymentTest.Amount, paymentTest.Principal, paymentTest.Interest,
		paymentTest.Fee, paymentTest.Status, paymentTest.Notes, paymentTest.ID,
	).WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	err := repo.UpdatePayment(ctx, paymentTest)
	assert.NoError(t, err)
	assert.NoError(t, mockPool.ExpectationsWereMet(), pgxmockExpectationsNotMetMsg)
}

func TestUpdatePaymentReturnsNotFoundWhenNoRows(t *testing.T) {
	ctx, repo, mockPool := setupPaymentRepo(t)
	defer mockPool.Close()

	mockPool.ExpectExec(regexp.QuoteMeta("UPDATE payments")).WithArgs(
		paymentTest.DueDate, paymentTest.Amount, paymentTest.Principal, paymentTest.Interest,
		paymentTest.Fee, paymentTest.Status, paymentTest.Notes, paymentTest.ID,
	).WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := repo.UpdatePayment(ctx, paymentTest)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	assert.NoError(t, mockPool.ExpectationsWereMet(), pgxmockExpectationsNotMetMsg)
}

func TestApplyDeferralWhenSuccess(t *testing.T) {
	ctx, repo, mockPool := setupPaymentRepo(t)
	defer mockPool.Close()

	deferred := *paymentTest
	deferred.Amount = decimal.Zero
	deferred.Principal = decimal.Zero
	deferred.Interest = decimal.Zero
	deferred.Status = schedule.PaymentStatusDeferred

	appended := schedule.Payment{
		LoanID:   7,
		Sequence: 4,
		DueDate:  time.Date(2024, time.July, 15, 0, 0, 0, 0, time.UTC),
		Amount:   decimal.NewFromFloat(402.01),
		Fee:      decimal.Zero,
		Status:   schedule.PaymentStatusPending,
	}

	updateSQL := `
        UPDATE payments
        SET amount = $1, principal = $2, interest = $3, status = $4, notes = $5, updated_at = NOW()
        WHERE id = $6 AND status = 'PENDING'`
	insertSQL := `
        INSERT INTO payments (loan_id, sequence, due_date, amount, principal, interest, fee, status, notes, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW(), NOW())
        RETURNING id, created_at, updated_at`

	now := time.Now()
	mockPool.ExpectBegin()
	mockPool.ExpectExec(regexp.QuoteMeta(updateSQL)).WithArgs(
		deferred.Amount, deferred.Principal, deferred.Interest, deferred.Status, deferred.Notes, deferred.ID,
	).WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mockPool.ExpectQuery(regexp.QuoteMeta(insertSQL)).WithArgs(
		appended.LoanID, appended.Sequence, appended.DueDate, appended.Amount,
		appended.Principal, appended.Interest, appended.Fee, appended.Status, appended.Notes,
	).WillReturnRows(pgxmock.NewRows([]string{"id", "created_at", "updated_at"}).
		AddRow(int64(99), now, now))
	mockPool.ExpectCommit()
	mockPool.ExpectRollback()

	inserted, err := repo.ApplyDeferral(ctx, &deferred, &appended)
	assert.NoError(t, err)
	assert.Equal(t, int64(99), inserted.ID)
	assert.Equal(t, 4, inserted.Sequence)
	assert.NoError(t, mockPool.ExpectationsWereMet(), pgxmockExpectationsNotMetMsg)
}

func TestApplyDeferralReturnsConflictWhenNotPending(t *testing.T) {
	ctx, repo, mockPool := setupPaymentRepo(t)
	defer mockPool.Close()

	deferred := *paymentTest

	mockPool.ExpectBegin()
	mockPool.ExpectExec(regexp.QuoteMeta("UPDATE payments")).WithArgs(
		deferred.Amount, deferred.Principal, deferred.Interest, deferred.Status, deferred.Notes, deferred.ID,
	).WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	mockPool.ExpectRollback()

	_, err := repo.ApplyDeferral(ctx, &deferred, &schedule.Payment{})
	assert.ErrorIs(t, err, apperrors.ErrConflict)
	assert.NoError(t, mockPool.ExpectationsWereMet(), pgxmockExpectationsNotMetMsg)
}

func TestGetActiveLoanIDs(t *testing.T) {
	ctx, repo, mockPool := setupPaymentRepo(t)
	defer mockPool.Close()

	query := `
        SELECT DISTINCT loan_id
        FROM payments
        WHERE status = 'PENDING'
        ORDER BY loan_id ASC`

	mockPool.ExpectQuery(regexp.QuoteMeta(query)).
		WillReturnRows(pgxmock.NewRows([]string{"loan_id"}).AddRow(int64(1)).AddRow(int64(3)))

	ids, err := repo.GetActiveLoanIDs(ctx)
	assert.NoError(t, err)
	assert.Equal(t, []int64{1, 3}, ids)
	assert.NoError(t, mockPool.ExpectationsWereMet(), pgxmockExpectationsNotMetMsg)
}
