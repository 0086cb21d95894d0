package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/girderhq/api/internal/infra/http/middleware"
	"github.com/girderhq/api/pkg/apierror"
	"github.com/girderhq/api/pkg/domain/authz"
	"github.com/girderhq/api/pkg/domain/shared"
	"github.com/girderhq/api/pkg/logger"
	"github.com/girderhq/api/pkg/pagination"
	"github.com/girderhq/api/pkg/validator"
)

// Envelope is the uniform success response body.
type Envelope struct {
	Success bool   `json:"success"`
	Status  string `json:"status"`
	Data    any    `json:"data"`
	Meta    *Meta  `json:"meta,omitempty"`
}

// Meta carries pagination metadata for list responses.
type Meta struct {
	Page       int   `json:"page"`
	PerPage    int   `json:"per_page"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
}

// respond writes a success envelope.
func respond(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(Envelope{
		Success: true,
		Status:  "success",
		Data:    data,
	})
}

// respondList writes a success envelope with pagination metadata. Page and
// perPage are normalized the same way the repositories normalize them, so
// the meta reflects the window actually queried.
func respondList(w http.ResponseWriter, data any, total int64, page, perPage int) {
	pg := pagination.Normalize(page, perPage)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(Envelope{
		Success: true,
		Status:  "success",
		Data:    data,
		Meta: &Meta{
			Page:       pg.Page,
			PerPage:    pg.PerPage,
			Total:      total,
			TotalPages: pg.TotalPages(total),
		},
	})
}

// decodeJSON decodes the request body into dst. A malformed body is a 400.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		apierror.BadRequest("Invalid request body").
			WriteJSONWithRequestID(w, middleware.GetRequestID(r.Context()))
		return false
	}
	return true
}

// requestContext pulls the resolved tenant context out of the request. The
// tenant middleware guarantees it is present on gated routes; a nil here
// means the route was wired without the gate.
func requestContext(w http.ResponseWriter, r *http.Request) (*authz.RequestContext, bool) {
	rc := authz.FromContext(r.Context())
	if rc == nil {
		apierror.AuthenticationRequired("Authentication required").
			WriteJSONWithRequestID(w, middleware.GetRequestID(r.Context()))
		return nil, false
	}
	return rc, true
}

// writeValidationError converts validator errors to the 422 envelope.
func writeValidationError(w http.ResponseWriter, r *http.Request, err error) {
	requestID := middleware.GetRequestID(r.Context())

	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		apiErrors := make([]apierror.ValidationError, len(validationErrors))
		for i, ve := range validationErrors {
			apiErrors[i] = apierror.ValidationError{
				Field:   ve.Field,
				Message: ve.Message,
			}
		}
		apierror.ValidationFailed("Validation failed", apiErrors).WriteJSONWithRequestID(w, requestID)
		return
	}
	apierror.BadRequest("Validation error").WriteJSONWithRequestID(w, requestID)
}

// writeServiceError maps service and domain errors to the wire. Gate
// sentinels are checked first: a scope failure must stay a plain 404 and a
// permission failure a 403, whatever wrapped them.
func writeServiceError(w http.ResponseWriter, r *http.Request, log *logger.Logger, resource string, err error) {
	requestID := middleware.GetRequestID(r.Context())

	switch {
	case errors.Is(err, authz.ErrResourceNotFound):
		apierror.NotFound(resource).WriteJSONWithRequestID(w, requestID)
	case errors.Is(err, authz.ErrPermissionDenied):
		apierror.AuthorizationDenied("Permission denied").WriteJSONWithRequestID(w, requestID)
	case errors.Is(err, authz.ErrTenantMismatch):
		apierror.TenantMismatch().WriteJSONWithRequestID(w, requestID)
	case errors.Is(err, shared.ErrUnauthorized):
		apierror.AuthenticationRequired("Authentication required").WriteJSONWithRequestID(w, requestID)
	case errors.Is(err, shared.ErrNotFound):
		apierror.NotFound(resource).WriteJSONWithRequestID(w, requestID)
	case errors.Is(err, shared.ErrAlreadyExists):
		apierror.Conflict(resource + " already exists").WriteJSONWithRequestID(w, requestID)
	case errors.Is(err, shared.ErrValidation):
		apierror.BadRequest(err.Error()).WriteJSONWithRequestID(w, requestID)
	default:
		log.Error("service error", "error", err, "request_id", requestID)
		apierror.InternalError(err).WriteJSONWithRequestID(w, requestID)
	}
}

// parseQueryInt parses a query parameter as an integer, falling back to
// defaultVal when empty or invalid.
func parseQueryInt(s string, defaultVal int) int {
	if s == "" {
		return defaultVal
	}
	val, err := strconv.Atoi(s)
	if err != nil {
		return defaultVal
	}
	return val
}

// parseQueryBool parses a query parameter as a boolean. "true" and "1" are
// true, everything else is false.
func parseQueryBool(s string) bool {
	return s == "true" || s == "1"
}
