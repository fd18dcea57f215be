package schedule

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"schedule-engine/internal/event"
	"schedule-engine/internal/pkg/apperrors"
)

type MockRepository struct {
	mock.Mock
}

func (_m *MockRepository) CreateLoan(ctx context.Context, loan *Loan, payments []Payment) (*Loan, error) {
	ret := _m.Called(ctx, loan, payments)

	var r0 *Loan
	if ret.Get(0) != nil {
		r0 = ret.Get(0).(*Loan)
	}
	return r0, ret.Error(1)
}

func (_m *MockRepository) GetLoan(ctx context.Context, loanID int64) (*Loan, error) {
	ret := _m.Called(ctx, loanID)

	var r0 *Loan
	if ret.Get(0) != nil {
		r0 = ret.Get(0).(*Loan)
	}
	return r0, ret.Error(1)
}

func (_m *MockRepository) GetPayment(ctx context.Context, paymentID int64) (*Payment, error) {
	ret := _m.Called(ctx, paymentID)

	var r0 *Payment
	if ret.Get(0) != nil {
		r0 = ret.Get(0).(*Payment)
	}
	return r0, ret.Error(1)
}

func (_m *MockRepository) GetPayments(ctx context.Context, loanID int64) ([]Payment, error) {
	ret := _m.Called(ctx, loanID)

	var r0 []Payment
	if ret.Get(0) != nil {
		r0 = ret.Get(0).([]Payment)
	}
	return r0, ret.Error(1)
}

func (_m *MockRepository) UpdatePayment(ctx context.Context, p *Payment) error {
	ret := _m.Called(ctx, p)
	return ret.Error(0)
}

func (_m *MockRepository) ApplyDeferral(ctx context.Context, deferred *Payment, appended *Payment) (*Payment, error) {
	ret := _m.Called(ctx, deferred, appended)

	var r0 *Payment
	if ret.Get(0) != nil {
		r0 = ret.Get(0).(*Payment)
	}
	return r0, ret.Error(1)
}

func (_m *MockRepository) GetActiveLoanIDs(ctx context.Context) ([]int64, error) {
	ret := _m.Called(ctx)

	var r0 []int64
	if ret.Get(0) != nil {
		r0 = ret.Get(0).([]int64)
	}
	return r0, ret.Error(1)
}

type MockEventPublisher struct {
	mock.Mock
}

func (_m *MockEventPublisher) PublishContractLocked(ctx context.Context, e event.ContractLockedEvent) error {
	ret := _m.Called(ctx, e)
	return ret.Error(0)
}

func (_m *MockEventPublisher) PublishPaymentEdited(ctx context.Context, e event.PaymentEditedEvent) error {
	ret := _m.Called(ctx, e)
	return ret.Error(0)
}

func (_m *MockEventPublisher) PublishPaymentDeferred(ctx context.Context, e event.PaymentDeferredEvent) error {
	ret := _m.Called(ctx, e)
	return ret.Error(0)
}

func setupServiceTest() (*MockRepository, *MockEventPublisher, ScheduleService) {
	mockRepo := new(MockRepository)
	mockPub := new(MockEventPublisher)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	service := NewScheduleService(mockRepo, mockPub, NewHolidayCalendar(nil), logger)
	return mockRepo, mockPub, service
}

func TestScheduleService_PreviewSchedule(t *testing.T) {
	ctx := context.Background()

	t.Run("Success", func(t *testing.T) {
		_, _, service := setupServiceTest()

		sched, err := service.PreviewSchedule(ctx, validTerms(), date(2024, time.March, 1))

		require.NoError(t, err)
		require.Len(t, sched.Items, 3)
		assert.Equal(t, ModeAuto, sched.Mode)
	})

	t.Run("Error - Invalid Terms", func(t *testing.T) {
		_, _, service := setupServiceTest()
		terms := validTerms()
		terms.NumberOfPayments = 0

		_, err := service.PreviewSchedule(ctx, terms, date(2024, time.March, 1))

		assert.ErrorIs(t, err, apperrors.ErrInvalidTerms)
	})
}

func TestScheduleService_SubmitContract(t *testing.T) {
	ctx := context.Background()
	startDate := date(2024, time.March, 1)

	t.Run("Success", func(t *testing.T) {
		mockRepo, mockPub, service := setupServiceTest()
		expectedLoanID := int64(10)

		mockRepo.On("CreateLoan", ctx, mock.MatchedBy(func(l *Loan) bool {
			return l.AccountID == int64(5) && l.Locked && l.StartDate.Equal(startDate)
		}), mock.MatchedBy(func(ps []Payment) bool {
			if len(ps) != 3 {
				return false
			}
			for _, p := range ps {
				if p.Status != PaymentStatusPending {
					return false
				}
			}
			return true
		})).Return(&Loan{ID: expectedLoanID, AccountID: 5, Locked: true}, nil).Once()
		mockPub.On("PublishContractLocked", ctx, mock.MatchedBy(func(e event.ContractLockedEvent) bool {
			return e.LoanID == expectedLoanID && e.PaymentCount == 3
		})).Return(nil).Once()

		created, err := service.SubmitContract(ctx, 5, validTerms(), startDate)

		require.NoError(t, err)
		assert.Equal(t, expectedLoanID, created.ID)
		mockRepo.AssertExpectations(t)
		mockPub.AssertExpectations(t)
	})

	t.Run("Error - Invalid Terms", func(t *testing.T) {
		mockRepo, _, service := setupServiceTest()
		terms := validTerms()
		terms.PrincipalAmount = decimal.Zero

		_, err := service.SubmitContract(ctx, 5, terms, startDate)

		assert.ErrorIs(t, err, apperrors.ErrValidation)
		mockRepo.AssertNotCalled(t, "CreateLoan", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("Error - Missing Start Date", func(t *testing.T) {
		mockRepo, _, service := setupServiceTest()

		_, err := service.SubmitContract(ctx, 5, validTerms(), time.Time{})

		assert.ErrorIs(t, err, apperrors.ErrValidation)
		mockRepo.AssertNotCalled(t, "CreateLoan", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("Error - Repository Failure", func(t *testing.T) {
		mockRepo, _, service := setupServiceTest()
		dbErr := errors.New("connection reset")
		mockRepo.On("CreateLoan", ctx, mock.Anything, mock.Anything).Return(nil, dbErr).Once()

		_, err := service.SubmitContract(ctx, 5, validTerms(), startDate)

		assert.ErrorIs(t, err, dbErr)
		mockRepo.AssertExpectations(t)
	})

	t.Run("Success - Publish Failure Is Non-Fatal", func(t *testing.T) {
		mockRepo, mockPub, service := setupServiceTest()
		mockRepo.On("CreateLoan", ctx, mock.Anything, mock.Anything).
			Return(&Loan{ID: 11}, nil).Once()
		mockPub.On("PublishContractLocked", ctx, mock.Anything).
			Return(errors.New("broker down")).Once()

		created, err := service.SubmitContract(ctx, 5, validTerms(), startDate)

		require.NoError(t, err)
		assert.Equal(t, int64(11), created.ID)
	})
}

func TestScheduleService_GetLoan(t *testing.T) {
	ctx := context.Background()

	t.Run("Success", func(t *testing.T) {
		mockRepo, _, service := setupServiceTest()
		mockRepo.On("GetLoan", ctx, int64(3)).Return(&Loan{ID: 3, AccountID: 9}, nil).Once()

		l, err := service.GetLoan(ctx, 3)

		require.NoError(t, err)
		assert.Equal(t, int64(9), l.AccountID)
		mockRepo.AssertExpectations(t)
	})

	t.Run("Error - Not Found", func(t *testing.T) {
		mockRepo, _, service := setupServiceTest()
		mockRepo.On("GetLoan", ctx, int64(404)).
			Return(nil, fmt.Errorf("%w: loan with ID 404", apperrors.ErrNotFound)).Once()

		_, err := service.GetLoan(ctx, 404)

		assert.ErrorIs(t, err, apperrors.ErrNotFound)
	})
}

func TestScheduleService_EditPayment(t *testing.T) {
	ctx := context.Background()

	t.Run("Success", func(t *testing.T) {
		mockRepo, mockPub, service := setupServiceTest()
		stored := pendingPayment()
		newAmount := decimal.NewFromFloat(215.50)

		mockRepo.On("GetPayment", ctx, stored.ID).Return(&stored, nil).Once()
		mockRepo.On("UpdatePayment", ctx, mock.MatchedBy(func(p *Payment) bool {
			return p.ID == stored.ID &&
				p.Status == PaymentStatusManual &&
				p.Amount.Equal(newAmount)
		})).Return(nil).Once()
		mockPub.On("PublishPaymentEdited", ctx, mock.MatchedBy(func(e event.PaymentEditedEvent) bool {
			return e.PaymentID == stored.ID && e.LoanID == stored.LoanID
		})).Return(nil).Once()

		edited, err := service.EditPayment(ctx, stored.ID, EditRequest{NewAmount: &newAmount})

		require.NoError(t, err)
		assert.Equal(t, PaymentStatusManual, edited.Status)
		assert.Contains(t, edited.Notes, "amount changed")
		mockRepo.AssertExpectations(t)
		mockPub.AssertExpectations(t)
	})

	t.Run("Error - Invalid Edit", func(t *testing.T) {
		mockRepo, _, service := setupServiceTest()
		stored := pendingPayment()
		mockRepo.On("GetPayment", ctx, stored.ID).Return(&stored, nil).Once()

		_, err := service.EditPayment(ctx, stored.ID, EditRequest{})

		assert.ErrorIs(t, err, apperrors.ErrInvalidEdit)
		mockRepo.AssertNotCalled(t, "UpdatePayment", mock.Anything, mock.Anything)
	})

	t.Run("Error - Payment Not Found", func(t *testing.T) {
		mockRepo, _, service := setupServiceTest()
		mockRepo.On("GetPayment", ctx, int64(404)).
			Return(nil, fmt.Errorf("%w: payment with ID 404", apperrors.ErrNotFound)).Once()

		newAmount := decimal.NewFromInt(100)
		_, err := service.EditPayment(ctx, 404, EditRequest{NewAmount: &newAmount})

		assert.ErrorIs(t, err, apperrors.ErrNotFound)
	})
}

func TestScheduleService_DeferPayment(t *testing.T) {
	ctx := context.Background()

	t.Run("Success", func(t *testing.T) {
		mockRepo, mockPub, service := setupServiceTest()
		stored := pendingPayment()
		loan := &Loan{ID: stored.LoanID, Terms: LoanTerms{PaymentFrequency: FrequencyMonthly}}
		siblings := []Payment{
			stored,
			{ID: 43, LoanID: stored.LoanID, Sequence: 3, DueDate: date(2024, time.May, 15), Status: PaymentStatusPending},
		}

		mockRepo.On("GetPayment", ctx, stored.ID).Return(&stored, nil).Once()
		mockRepo.On("GetLoan", ctx, stored.LoanID).Return(loan, nil).Once()
		mockRepo.On("GetPayments", ctx, stored.LoanID).Return(siblings, nil).Once()
		mockRepo.On("ApplyDeferral", ctx, mock.MatchedBy(func(p *Payment) bool {
			return p.ID == stored.ID && p.Status == PaymentStatusDeferred && p.Amount.IsZero()
		}), mock.MatchedBy(func(p *Payment) bool {
			return p.Sequence == 4 && p.DueDate.Equal(date(2024, time.June, 15))
		})).Return(&Payment{ID: 44, LoanID: stored.LoanID, Sequence: 4}, nil).Once()
		mockPub.On("PublishPaymentDeferred", ctx, mock.MatchedBy(func(e event.PaymentDeferredEvent) bool {
			return e.LoanID == stored.LoanID && e.AppendedPaymentID == int64(44)
		})).Return(nil).Once()

		deferred, appended, err := service.DeferPayment(ctx, DeferralRequest{
			PaymentID: stored.ID,
			FeeOption: FeeOptionNone,
		})

		require.NoError(t, err)
		assert.Equal(t, PaymentStatusDeferred, deferred.Status)
		assert.Equal(t, int64(44), appended.ID)
		mockRepo.AssertExpectations(t)
		mockPub.AssertExpectations(t)
	})

	t.Run("Error - Not Pending", func(t *testing.T) {
		mockRepo, _, service := setupServiceTest()
		stored := pendingPayment()
		stored.Status = PaymentStatusPaid
		loan := &Loan{ID: stored.LoanID, Terms: LoanTerms{PaymentFrequency: FrequencyMonthly}}

		mockRepo.On("GetPayment", ctx, stored.ID).Return(&stored, nil).Once()
		mockRepo.On("GetLoan", ctx, stored.LoanID).Return(loan, nil).Once()
		mockRepo.On("GetPayments", ctx, stored.LoanID).Return([]Payment{stored}, nil).Once()

		_, _, err := service.DeferPayment(ctx, DeferralRequest{PaymentID: stored.ID, FeeOption: FeeOptionNone})

		assert.ErrorIs(t, err, apperrors.ErrPrecondition)
		mockRepo.AssertNotCalled(t, "ApplyDeferral", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("Error - No Payments On Loan", func(t *testing.T) {
		mockRepo, _, service := setupServiceTest()
		stored := pendingPayment()
		loan := &Loan{ID: stored.LoanID, Terms: LoanTerms{PaymentFrequency: FrequencyMonthly}}

		mockRepo.On("GetPayment", ctx, stored.ID).Return(&stored, nil).Once()
		mockRepo.On("GetLoan", ctx, stored.LoanID).Return(loan, nil).Once()
		mockRepo.On("GetPayments", ctx, stored.LoanID).Return([]Payment{}, nil).Once()

		_, _, err := service.DeferPayment(ctx, DeferralRequest{PaymentID: stored.ID, FeeOption: FeeOptionNone})

		assert.ErrorIs(t, err, apperrors.ErrInternalServer)
	})
}
