package apperrors

import (
	"errors"
	"fmt"
)

// Lookup and request shape.
var (
	ErrNotFound        = errors.New("resource not found")
	ErrInvalidArgument = errors.New("invalid argument")
	ErrUnauthorized    = errors.New("unauthorized")
)

// Ledger rules. Rejections wrap ErrValidation; the specific sentinel travels as the cause.
var (
	ErrValidation             = errors.New("validation failed")
	ErrInvalidRepaymentAmount = errors.New("invalid repayment amount")
	ErrLoanFullyPaid          = errors.New("loan is already fully paid")
)

// Persistence.
var (
	ErrDatabase       = errors.New("database error")
	ErrCorruptState   = errors.New("stored ledger state is inconsistent")
	ErrInternalServer = errors.New("internal server error")
)

// ValidationError names the input field a ledger rule rejected.
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
	return NewValidationErrorWithCause(field, message, nil)
}

// NewValidationErrorWithCause keeps a sentinel such as ErrLoanFullyPaid reachable through errors.Is.
func NewValidationErrorWithCause(field, message string, cause error) error {
	return fmt.Errorf("%w: %w", ErrValidation, &ValidationError{Field: field, Message: message, Cause: cause})
}

func NewNotFoundError(entity string, id int64) error {
	return fmt.Errorf("%w: %s %d", ErrNotFound, entity, id)
}

// StoreError reports a record store failure. It matches ErrDatabase and its driver cause.
type StoreError struct {
	Message string
	Cause   error
}

func (e *StoreError) Error() string {
	if e.Cause == nil {
		return "record store: " + e.Message
	}
	return fmt.Sprintf("record store: %s: %v", e.Message, e.Cause)
}

func (e *StoreError) Unwrap() []error {
	if e.Cause == nil {
		return []error{ErrDatabase}
	}
	return []error{ErrDatabase, e.Cause}
}

func WrapDatabaseError(cause error, message string) error {
	return &StoreError{Message: message, Cause: cause}
}
