// Package apierror provides the standardized API error envelope.
// Every failure emitted by the authorization gate and the domain handlers is
// converted to this shape before it reaches the client; internal errors are
// never exposed in message or details.
package apierror

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// Code represents a machine-readable error code.
type Code string

// Standard error codes.
const (
	CodeBadRequest       Code = "E400.BAD_REQUEST"
	CodeAuthentication   Code = "E401.AUTHENTICATION"
	CodeAuthorization    Code = "E403.AUTHORIZATION"
	CodeNotFound         Code = "E404.NOT_FOUND"
	CodeConflict         Code = "E409.CONFLICT"
	CodeValidation       Code = "E422.VALIDATION"
	CodeRateLimit        Code = "E429.RATE_LIMIT"
	CodeInternal         Code = "E500.INTERNAL"
	CodeTenantRequired   Code = "TENANT_REQUIRED"
	CodeTenantInvalid    Code = "TENANT_INVALID"
	CodeServiceUnhealthy Code = "E503.UNAVAILABLE"
)

// Error represents a standardized API error.
type Error struct {
	// HTTP status code, not serialized.
	Status int `json:"-"`

	// Machine-readable error code.
	Code Code `json:"code"`

	// Human-readable error message.
	Message string `json:"message"`

	// Additional error details, e.g. validation field errors.
	Details any `json:"details,omitempty"`

	// Internal error, never exposed to the client.
	Err error `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

// Body is the serialized error detail inside the envelope.
type Body struct {
	ID      string `json:"id,omitempty"`
	Code    Code   `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// Envelope is the uniform error response shape.
type Envelope struct {
	Success bool   `json:"success"`
	Status  string `json:"status"`
	Error   Body   `json:"error"`
}

// ToEnvelope converts the error to the response envelope. The request id is
// carried inside the error body so clients can correlate reports.
func (e *Error) ToEnvelope(requestID string) Envelope {
	return Envelope{
		Success: false,
		Status:  "error",
		Error: Body{
			ID:      requestID,
			Code:    e.Code,
			Message: e.Message,
			Details: e.Details,
		},
	}
}

// WriteJSON writes the error envelope to the response writer.
func (e *Error) WriteJSON(w http.ResponseWriter) {
	e.WriteJSONWithRequestID(w, "")
}

// WriteJSONWithRequestID writes the error envelope with a correlation id.
func (e *Error) WriteJSONWithRequestID(w http.ResponseWriter, requestID string) {
	w.Header().Set("Content-Type", "application/json")
	if requestID != "" {
		w.Header().Set("X-Request-ID", requestID)
	}
	w.WriteHeader(e.Status)
	_ = json.NewEncoder(w).Encode(e.ToEnvelope(requestID))
}

// New creates a new API error.
func New(status int, code Code, message string) *Error {
	return &Error{Status: status, Code: code, Message: message}
}

// Wrap wraps an existing error with API error context.
func Wrap(err error, status int, code Code, message string) *Error {
	return &Error{Status: status, Code: code, Message: message, Err: err}
}

// WithDetails adds details to the error.
func (e *Error) WithDetails(details any) *Error {
	e.Details = details
	return e
}

// WithError adds an internal error.
func (e *Error) WithError(err error) *Error {
	e.Err = err
	return e
}

// BadRequest creates a 400 Bad Request error.
func BadRequest(message string) *Error {
	return New(http.StatusBadRequest, CodeBadRequest, message)
}

// AuthenticationRequired creates a 401 error: no valid principal.
func AuthenticationRequired(message string) *Error {
	if message == "" {
		message = "Authentication required"
	}
	return New(http.StatusUnauthorized, CodeAuthentication, message)
}

// AuthorizationDenied creates a 403 error: principal lacks the required
// permission in the resolved tenant.
func AuthorizationDenied(message string) *Error {
	if message == "" {
		message = "Insufficient permissions"
	}
	return New(http.StatusForbidden, CodeAuthorization, message)
}

// TenantRequired creates a 400 error: request carries no tenant identifier.
func TenantRequired() *Error {
	return New(http.StatusBadRequest, CodeTenantRequired, "Tenant identifier is required")
}

// TenantMismatch creates a 403 error: principal holds no membership in the
// requested tenant.
func TenantMismatch() *Error {
	return New(http.StatusForbidden, CodeTenantInvalid, "You do not have access to this tenant")
}

// NotFound creates a 404 error. Deliberately used for both truly-absent ids
// and cross-tenant references so the two are indistinguishable.
func NotFound(resource string) *Error {
	message := "Resource not found"
	if resource != "" {
		message = fmt.Sprintf("%s not found", resource)
	}
	return New(http.StatusNotFound, CodeNotFound, message)
}

// Conflict creates a 409 Conflict error.
func Conflict(message string) *Error {
	return New(http.StatusConflict, CodeConflict, message)
}

// ValidationFailed creates a 422 Unprocessable Entity error.
func ValidationFailed(message string, details any) *Error {
	return &Error{
		Status:  http.StatusUnprocessableEntity,
		Code:    CodeValidation,
		Message: message,
		Details: details,
	}
}

// RateLimited creates a 429 Too Many Requests error.
func RateLimited(message string) *Error {
	if message == "" {
		message = "Rate limit exceeded"
	}
	return New(http.StatusTooManyRequests, CodeRateLimit, message)
}

// InternalError creates a 500 Internal Server Error. The wrapped error is
// kept for logging only.
func InternalError(err error) *Error {
	return &Error{
		Status:  http.StatusInternalServerError,
		Code:    CodeInternal,
		Message: "An internal error occurred",
		Err:     err,
	}
}

// ServiceUnavailable creates a 503 Service Unavailable error.
func ServiceUnavailable(message string) *Error {
	if message == "" {
		message = "Service temporarily unavailable"
	}
	return New(http.StatusServiceUnavailable, CodeServiceUnhealthy, message)
}

// ValidationError represents a single field validation error in details.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}
