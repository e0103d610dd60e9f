package errors

import (
	"errors"
	"fmt"
)

// Domain errors
var (
	ErrValidation           = errors.New("validation failed")
	ErrLoanNotFound         = errors.New("loan not found")
	ErrVersionNotFound      = errors.New("loan version not found")
	ErrBenchmarkNotFound    = errors.New("benchmark not found")
	ErrConflict             = errors.New("concurrent mutation in progress")
	ErrComputationInvariant = errors.New("schedule computation invariant violated")
	ErrLoanNotActive        = errors.New("loan is not active")
	ErrPhaseDisbursed       = errors.New("disbursement phase is already disbursed")
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
	ErrCodeValidation           = "VALIDATION_ERROR"
	ErrCodeNotFound             = "NOT_FOUND"
	ErrCodeConflict             = "CONFLICT"
	ErrCodeComputationInvariant = "COMPUTATION_INVARIANT"
	ErrCodeDatabaseError        = "DATABASE_ERROR"
	ErrCodeCacheError           = "CACHE_ERROR"
)

// WrapValidation surfaces malformed or inconsistent input terms.
// These are never retried.
func WrapValidation(message string) *BusinessError {
	return NewBusinessError(ErrCodeValidation, message, ErrValidation)
}

func WrapValidationf(format string, args ...interface{}) *BusinessError {
	return NewBusinessError(ErrCodeValidation, fmt.Sprintf(format, args...), ErrValidation)
}

func WrapLoanNotFound(loanID string) *BusinessError {
	return NewBusinessError(
		ErrCodeNotFound,
		fmt.Sprintf("Loan with ID %s not found", loanID),
		ErrLoanNotFound,
	)
}

func WrapVersionNotFound(loanID string, version int) *BusinessError {
	return NewBusinessError(
		ErrCodeNotFound,
		fmt.Sprintf("Version %d of loan %s not found", version, loanID),
		ErrVersionNotFound,
	)
}

func WrapBenchmarkNotFound(name string) *BusinessError {
	return NewBusinessError(
		ErrCodeNotFound,
		fmt.Sprintf("Benchmark %s not found", name),
		ErrBenchmarkNotFound,
	)
}

// WrapConflict signals that another mutation holds the per-loan lock.
// Callers may retry.
func WrapConflict(loanID string) *BusinessError {
	return NewBusinessError(
		ErrCodeConflict,
		fmt.Sprintf("Another mutation is in progress for loan %s", loanID),
		ErrConflict,
	)
}

// WrapComputationInvariant signals a generated schedule that failed an
// internal consistency check. Fatal, never silently corrected.
func WrapComputationInvariant(detail string) *BusinessError {
	return NewBusinessError(ErrCodeComputationInvariant, detail, ErrComputationInvariant)
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
		"cache operation failed",
		err,
	)
}

// Code extracts the business error code from an error chain, or empty string.
func Code(err error) string {
	var be *BusinessError
	if errors.As(err, &be) {
		return be.Code
	}
	return ""
}
