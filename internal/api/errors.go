package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/p-arndt/installbench/internal/bench"
	"github.com/p-arndt/installbench/internal/session"
)

// Error codes returned in API responses
const (
	ErrCodeRunNotFound    = "RUN_NOT_FOUND"
	ErrCodeRunInProgress  = "RUN_IN_PROGRESS"
	ErrCodeInvalidRequest = "INVALID_REQUEST"
	ErrCodeInternalError  = "INTERNAL_ERROR"
	ErrCodeUnauthorized   = "UNAUTHORIZED"
)

// APIError represents a structured API error response
type APIError struct {
	Code    string                 `json:"error_code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// writeAPIError writes a structured error response with appropriate HTTP status
func writeAPIError(w http.ResponseWriter, err error) {
	var apiErr APIError
	statusCode := http.StatusInternalServerError

	switch {
	case errors.Is(err, session.ErrNotFound):
		apiErr = APIError{Code: ErrCodeRunNotFound, Message: err.Error()}
		statusCode = http.StatusNotFound

	case errors.Is(err, bench.ErrAlreadyRunning):
		apiErr = APIError{Code: ErrCodeRunInProgress, Message: err.Error()}
		statusCode = http.StatusConflict

	case errors.Is(err, bench.ErrEmptyPackage), errors.Is(err, session.ErrInvalidRequest):
		apiErr = APIError{Code: ErrCodeInvalidRequest, Message: err.Error()}
		statusCode = http.StatusBadRequest

	default:
		apiErr = APIError{Code: ErrCodeInternalError, Message: err.Error()}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(apiErr)
}

// writeValidationError writes a 400 Bad Request with validation details
func writeValidationError(w http.ResponseWriter, message string, details map[string]interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusBadRequest)
	json.NewEncoder(w).Encode(APIError{
		Code:    ErrCodeInvalidRequest,
		Message: message,
		Details: details,
	})
}

// writeUnauthorizedError writes a 401 Unauthorized error
func writeUnauthorizedError(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	json.NewEncoder(w).Encode(APIError{
		Code:    ErrCodeUnauthorized,
		Message: message,
	})
}
