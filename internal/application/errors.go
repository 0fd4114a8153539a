package application

import (
	"errors"
	"fmt"
	"net/http"
)

// ServiceError is the orchestration-level error surfaced to callers. Raw
// provider responses stay server-side; the message is safe to forward.
type ServiceError struct {
	Code       string
	Message    string
	HTTPStatus int
	Err        error
}

func (e *ServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

const (
	// Validation: caller sent something the current state cannot accept.
	ErrCodeInvalidInput   = "INVALID_INPUT"
	ErrCodeInvalidState   = "INVALID_STATE"
	ErrCodeRefundExceeded = "REFUND_EXCEEDS_BALANCE"
	ErrCodeNotFound       = "NOT_FOUND"

	// Gateway: the provider rejected or could not be reached. Retryable but
	// external.
	ErrCodeGatewayRejected      = "GATEWAY_REJECTED"
	ErrCodeGatewayUnavailable   = "GATEWAY_UNAVAILABLE"
	ErrCodeSignatureMismatch    = "SIGNATURE_MISMATCH"
	ErrCodeGatewayNotConfigured = "GATEWAY_NOT_CONFIGURED"

	// System: internal faults, detail never exposed.
	ErrCodeInternal = "INTERNAL_ERROR"
)

func NewInvalidInputError(msg string) *ServiceError {
	return &ServiceError{
		Code:       ErrCodeInvalidInput,
		Message:    msg,
		HTTPStatus: http.StatusBadRequest,
	}
}

func NewInvalidStateError(err error) *ServiceError {
	return &ServiceError{
		Code:       ErrCodeInvalidState,
		Message:    "operation not allowed in current state",
		HTTPStatus: http.StatusConflict,
		Err:        err,
	}
}

func NewRefundExceededError() *ServiceError {
	return &ServiceError{
		Code:       ErrCodeRefundExceeded,
		Message:    "refund amount exceeds available balance",
		HTTPStatus: http.StatusBadRequest,
	}
}

func NewNotFoundError(what string, err error) *ServiceError {
	return &ServiceError{
		Code:       ErrCodeNotFound,
		Message:    what + " not found",
		HTTPStatus: http.StatusNotFound,
		Err:        err,
	}
}

func NewGatewayRejectedError(msg string) *ServiceError {
	return &ServiceError{
		Code:       ErrCodeGatewayRejected,
		Message:    msg,
		HTTPStatus: http.StatusBadGateway,
	}
}

func NewGatewayUnavailableError(err error) *ServiceError {
	return &ServiceError{
		Code:       ErrCodeGatewayUnavailable,
		Message:    "payment gateway unavailable",
		HTTPStatus: http.StatusBadGateway,
		Err:        err,
	}
}

func NewSignatureMismatchError() *ServiceError {
	return &ServiceError{
		Code:       ErrCodeSignatureMismatch,
		Message:    "payment signature verification failed",
		HTTPStatus: http.StatusBadRequest,
	}
}

func NewGatewayNotConfiguredError(detail string) *ServiceError {
	return &ServiceError{
		Code:       ErrCodeGatewayNotConfigured,
		Message:    detail,
		HTTPStatus: http.StatusBadRequest,
	}
}

func NewInternalError(err error) *ServiceError {
	return &ServiceError{
		Code:       ErrCodeInternal,
		Message:    "an internal error occurred",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

func IsServiceError(err error) (*ServiceError, bool) {
	var svcErr *ServiceError
	ok := errors.As(err, &svcErr)
	return svcErr, ok
}
