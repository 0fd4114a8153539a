package domain

import (
	"errors"
	"fmt"
)

// DomainError represents a business logic error with a stable machine-readable code.
type DomainError struct {
	Code    string
	Message string
	Err     error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the underlying error for errors.Is/As support
func (e *DomainError) Unwrap() error {
	return e.Err
}

const (
	ErrCodeInvalidTransition   = "INVALID_TRANSITION"
	ErrCodeInvalidAmount       = "INVALID_AMOUNT"
	ErrCodeRefundExceedsAmount = "REFUND_EXCEEDS_AMOUNT"
	ErrCodeMissingField        = "MISSING_REQUIRED_FIELD"
)

var (
	ErrInvalidTransition   = errors.New("invalid status transition")
	ErrInvalidAmount       = errors.New("amount must be positive")
	ErrRefundExceedsAmount = errors.New("refund amount exceeds available balance")
)

func NewInvalidTransitionError(from, to TransactionStatus) *DomainError {
	return &DomainError{
		Code:    ErrCodeInvalidTransition,
		Message: fmt.Sprintf("cannot transition from %s to %s", from, to),
		Err:     ErrInvalidTransition,
	}
}

func NewMissingFieldError(field string) *DomainError {
	return &DomainError{
		Code:    ErrCodeMissingField,
		Message: field + " is required",
	}
}
