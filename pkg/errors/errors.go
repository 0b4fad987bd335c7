package errors

import (
	"errors"
	"fmt"
)

// Domain errors
var (
	ErrInvalidTerms        = errors.New("invalid loan terms")
	ErrLoanNotFound        = errors.New("loan not found")
	ErrLoanAlreadyExists   = errors.New("loan already exists")
	ErrInstallmentNotFound = errors.New("installment not found")
	ErrAlreadySettled      = errors.New("installment is already paid")
	ErrInvalidAmount       = errors.New("invalid payment amount")
	ErrDuplicatePayment    = errors.New("payment event already applied")
	ErrVersionConflict     = errors.New("loan was modified concurrently")
)

// BusinessError represents a business logic error
type BusinessError struct {
	Code    string
	Message string
	Err     error
}

func (e *BusinessError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *BusinessError) Unwrap() error {
	return e.Err
}

// NewBusinessError creates a new business error
func NewBusinessError(code, message string, err error) *BusinessError {
	return &BusinessError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Error codes
const (
	ErrCodeInvalidTerms        = "INVALID_TERMS"
	ErrCodeLoanNotFound        = "LOAN_NOT_FOUND"
	ErrCodeLoanAlreadyExists   = "LOAN_ALREADY_EXISTS"
	ErrCodeInstallmentNotFound = "INSTALLMENT_NOT_FOUND"
	ErrCodeAlreadySettled      = "INSTALLMENT_ALREADY_SETTLED"
	ErrCodeInvalidAmount       = "INVALID_PAYMENT_AMOUNT"
	ErrCodeDuplicatePayment    = "DUPLICATE_PAYMENT"
	ErrCodeInvalidEventID      = "INVALID_EVENT_ID"
	ErrCodeVersionConflict     = "LOAN_VERSION_CONFLICT"
	ErrCodeDatabaseError       = "DATABASE_ERROR"
	ErrCodeCacheError          = "CACHE_ERROR"
)

// Wrap common errors with business context
func WrapInvalidTerms(reason string) *BusinessError {
	return NewBusinessError(
		ErrCodeInvalidTerms,
		reason,
		ErrInvalidTerms,
	)
}

func WrapLoanNotFound(loanID string) *BusinessError {
	return NewBusinessError(
		ErrCodeLoanNotFound,
		fmt.Sprintf("Loan with ID %s not found", loanID),
		ErrLoanNotFound,
	)
}

func WrapLoanAlreadyExists(loanID string) *BusinessError {
	return NewBusinessError(
		ErrCodeLoanAlreadyExists,
		fmt.Sprintf("Loan with ID %s already exists", loanID),
		ErrLoanAlreadyExists,
	)
}

func WrapInstallmentNotFound(loanID string, number int) *BusinessError {
	return NewBusinessError(
		ErrCodeInstallmentNotFound,
		fmt.Sprintf("Loan %s has no installment %d", loanID, number),
		ErrInstallmentNotFound,
	)
}

func WrapAlreadySettled(loanID string, number int) *BusinessError {
	return NewBusinessError(
		ErrCodeAlreadySettled,
		fmt.Sprintf("Installment %d of loan %s is already paid", number, loanID),
		ErrAlreadySettled,
	)
}

func WrapInvalidAmount(amount string) *BusinessError {
	return NewBusinessError(
		ErrCodeInvalidAmount,
		fmt.Sprintf("Payment amount must be positive, got %s", amount),
		ErrInvalidAmount,
	)
}

func WrapDuplicatePayment(eventID string) *BusinessError {
	return NewBusinessError(
		ErrCodeDuplicatePayment,
		fmt.Sprintf("Payment event %s was already applied", eventID),
		ErrDuplicatePayment,
	)
}

func WrapVersionConflict(loanID string) *BusinessError {
	return NewBusinessError(
		ErrCodeVersionConflict,
		fmt.Sprintf("Loan %s was modified by a concurrent operation", loanID),
		ErrVersionConflict,
	)
}

func WrapDatabaseError(err error) *BusinessError {
	return NewBusinessError(
		ErrCodeDatabaseError,
		"database operation failed",
		err,
	)
}

func WrapCacheError(err error) *BusinessError {
	return NewBusinessError(
		ErrCodeCacheError,
		"Cache operation failed",
		err,
	)
}
