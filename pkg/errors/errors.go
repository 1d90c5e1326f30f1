package errors

import (
	"errors"
	"fmt"
)

// Domain errors
var (
	ErrLoanNotFound              = errors.New("loan not found")
	ErrBorrowerNotFound          = errors.New("borrower not found")
	ErrInvalidLoanState          = errors.New("loan is not in a state that accepts this operation")
	ErrInvalidPaymentAmount      = errors.New("invalid payment amount")
	ErrPaymentDateBeforeLastCalc = errors.New("payment date is before last interest calculation date")
	ErrInvalidLoanRequest        = errors.New("invalid loan request")
	ErrInvalidBorrowerRequest    = errors.New("invalid borrower request")
	ErrConcurrencyConflict       = errors.New("concurrent modification of loan")
	ErrPersistenceFailure        = errors.New("persistence failure")
)

// BusinessError represents a business logic error
type BusinessError struct {
	Code    string
	Message string
	LoanID  string
	State   string
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

// Retryable reports whether the caller may resubmit the same request.
func (e *BusinessError) Retryable() bool {
	return e.Code == ErrCodeConcurrencyConflict
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
	ErrCodeNotFound            = "NOT_FOUND"
	ErrCodeInvalidState        = "INVALID_STATE"
	ErrCodeInvalidInput        = "INVALID_INPUT"
	ErrCodeConcurrencyConflict = "CONCURRENCY_CONFLICT"
	ErrCodePersistenceFailure  = "PERSISTENCE_FAILURE"
)

// CodeOf returns the BusinessError code carried by err, or "" when err is not one.
func CodeOf(err error) string {
	var be *BusinessError
	if errors.As(err, &be) {
		return be.Code
	}
	return ""
}

func WrapLoanNotFound(loanID string) *BusinessError {
	e := NewBusinessError(
		ErrCodeNotFound,
		fmt.Sprintf("Loan with ID %s not found", loanID),
		ErrLoanNotFound,
	)
	e.LoanID = loanID
	return e
}

func WrapBorrowerNotFound(borrowerID string) *BusinessError {
	return NewBusinessError(
		ErrCodeNotFound,
		fmt.Sprintf("Borrower with ID %s not found", borrowerID),
		ErrBorrowerNotFound,
	)
}

func WrapInvalidState(loanID, state string) *BusinessError {
	e := NewBusinessError(
		ErrCodeInvalidState,
		fmt.Sprintf("Loan with ID %s is %s", loanID, state),
		ErrInvalidLoanState,
	)
	e.LoanID = loanID
	e.State = state
	return e
}

func WrapInvalidPaymentAmount(loanID, amount string) *BusinessError {
	e := NewBusinessError(
		ErrCodeInvalidInput,
		fmt.Sprintf("Invalid payment amount %s: must be positive, within range and have at most 2 decimal places", amount),
		ErrInvalidPaymentAmount,
	)
	e.LoanID = loanID
	return e
}

func WrapPaymentDateBeforeLastCalc(loanID, paymentDate, lastCalcDate string) *BusinessError {
	e := NewBusinessError(
		ErrCodeInvalidInput,
		fmt.Sprintf("Payment date %s is before last interest calculation date %s", paymentDate, lastCalcDate),
		ErrPaymentDateBeforeLastCalc,
	)
	e.LoanID = loanID
	return e
}

func WrapInvalidLoanRequest(reason string) *BusinessError {
	return NewBusinessError(ErrCodeInvalidInput, reason, ErrInvalidLoanRequest)
}

func WrapInvalidBorrowerRequest(reason string) *BusinessError {
	return NewBusinessError(ErrCodeInvalidInput, reason, ErrInvalidBorrowerRequest)
}

func WrapConcurrencyConflict(loanID string, err error) *BusinessError {
	e := NewBusinessError(
		ErrCodeConcurrencyConflict,
		fmt.Sprintf("Loan with ID %s is being modified concurrently, retry later", loanID),
		errors.Join(ErrConcurrencyConflict, err),
	)
	e.LoanID = loanID
	return e
}

func WrapPersistenceFailure(loanID string, err error) *BusinessError {
	e := NewBusinessError(
		ErrCodePersistenceFailure,
		"database operation failed",
		errors.Join(ErrPersistenceFailure, err),
	)
	e.LoanID = loanID
	return e
}
