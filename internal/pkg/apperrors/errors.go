package apperrors

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound = errors.New("resource not found")

	ErrInvalidArgument = errors.New("invalid argument")

	ErrValidation = errors.New("validation failed")

	// ErrInvalidTerms covers non-positive principal, rate or payment count
	// supplied to the amortization calculator.
	ErrInvalidTerms = errors.New("invalid loan terms")

	// ErrInvalidEdit covers a non-positive amount or unparsable date on a
	// manual payment edit.
	ErrInvalidEdit = errors.New("invalid payment edit")

	// ErrPrecondition covers operations attempted against a payment in the
	// wrong state, e.g. deferring a payment that is not pending.
	ErrPrecondition = errors.New("precondition failed")

	ErrAlreadyExists = errors.New("resource already exists")

	ErrDatabase = errors.New("database error")

	ErrInternalServer = errors.New("internal server error")

	ErrScheduleLocked = errors.New("schedule is locked")

	ErrUnauthorized = errors.New("unauthorized")

	ErrForbidden = errors.New("forbidden")

	ErrConflict = errors.New("resource conflict")
)

type ValidationError struct {
	Field   string
	Message string
	Cause   error
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation failed for field '%s': %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation failed: %s", e.Message)
}

func (e *ValidationError) Unwrap() error {
	return e.Cause
}

func NewValidationError(field, message string) error {

	return fmt.Errorf("%w: %w", ErrValidation, &ValidationError{Field: field, Message: message})
}

// NewInvalidTermsError names the offending loan-terms field so callers can
// surface a message pointing at the exact input.
func NewInvalidTermsError(field, message string) error {
	return fmt.Errorf("%w: %w", ErrInvalidTerms, &ValidationError{Field: field, Message: message})
}

func NewInvalidEditError(field, message string) error {
	return fmt.Errorf("%w: %w", ErrInvalidEdit, &ValidationError{Field: field, Message: message})
}

type AppError struct {
	Code    string
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("[%s] %s", e.Code, e.Message)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

func WrapDatabaseError(cause error, message string) error {
	return &AppError{
		Code:    "DB_ERROR",
		Message: message,
		Cause:   fmt.Errorf("%w: %w", ErrDatabase, cause),
	}
}
