package errors

import (
	"net/http"

	"github.com/go-chi/render"
)

// APIError is an error raised by request handling itself, before any ledger
// work starts. ErrorHandler renders it as a problem document with StatusCode.
type APIError struct {
	StatusCode int         `json:"status_code"`
	ErrorCode  string      `json:"error_code"`
	Message    string      `json:"message"`
	Details    interface{} `json:"details,omitempty"`
}

func (e *APIError) Error() string {
	return e.Message
}

// Render sets the response status for chi/render.
func (e *APIError) Render(w http.ResponseWriter, r *http.Request) error {
	render.Status(r, e.StatusCode)
	return nil
}

// ValidationError describes one rejected request field.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// New creates an APIError.
func New(statusCode int, errorCode, message string) *APIError {
	return &APIError{
		StatusCode: statusCode,
		ErrorCode:  errorCode,
		Message:    message,
	}
}

var (
	ErrRateLimitExceeded  = New(http.StatusTooManyRequests, "RATE_LIMIT_EXCEEDED", "Rate limit exceeded")
	ErrServiceUnavailable = New(http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE", "Ledger temporarily unavailable")
)

// ErrValidation rejects a single query parameter.
func ErrValidation(field, message string) *APIError {
	e := New(http.StatusBadRequest, "VALIDATION_FAILED", "Request validation failed")
	e.Details = ValidationError{Field: field, Message: message}
	return e
}
