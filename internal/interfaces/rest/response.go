// Package rest holds the HTTP response envelope and the error mapping shared
// by every handler.
package rest

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/mealstack/payment-core/internal/application"
	"github.com/mealstack/payment-core/internal/domain"
)

type APIResponse struct {
	Success bool      `json:"success"`
	Data    any       `json:"data,omitempty"`
	Error   *APIError `json:"error,omitempty"`
}

type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func RespondWithJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	response := APIResponse{
		Success: status >= 200 && status < 300,
	}

	if response.Success {
		response.Data = data
	} else {
		if apiErr, ok := data.(*APIError); ok {
			response.Error = apiErr
		}
	}

	_ = json.NewEncoder(w).Encode(response)
}

// WriteError maps service and domain errors to HTTP responses. Internal
// detail is logged, never sent to the caller.
func WriteError(w http.ResponseWriter, err error, logger *slog.Logger) {
	if svcErr, ok := application.IsServiceError(err); ok {
		if svcErr.HTTPStatus >= http.StatusInternalServerError {
			logger.Error("request failed", "code", svcErr.Code, "error", err)
		}
		RespondWithJSON(w, svcErr.HTTPStatus, &APIError{
			Code:    svcErr.Code,
			Message: svcErr.Message,
		})
		return
	}

	var domainErr *domain.DomainError
	if errors.As(err, &domainErr) {
		status := http.StatusBadRequest
		if domainErr.Code == domain.ErrCodeInvalidTransition {
			status = http.StatusConflict
		}
		RespondWithJSON(w, status, &APIError{
			Code:    domainErr.Code,
			Message: domainErr.Message,
		})
		return
	}

	logger.Error("unhandled error", "error", err)
	RespondWithJSON(w, http.StatusInternalServerError, &APIError{
		Code:    application.ErrCodeInternal,
		Message: "an internal error occurred",
	})
}

// WriteValidationError reports a request body that failed struct validation.
func WriteValidationError(w http.ResponseWriter, err error) {
	RespondWithJSON(w, http.StatusBadRequest, &APIError{
		Code:    "VALIDATION_ERROR",
		Message: err.Error(),
	})
}
