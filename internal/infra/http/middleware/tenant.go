package middleware

import (
	"context"
	"errors"
	"net/http"

	"github.com/girderhq/api/pkg/apierror"
	"github.com/girderhq/api/pkg/domain/authz"
	"github.com/girderhq/api/pkg/logger"
)

// TenantHeader is the request header carrying the active tenant id. The
// tenant is a per-request claim, deliberately not baked into the JWT, so a
// user can work in two tenants from two browser tabs with one session.
const TenantHeader = "X-Tenant-ID"

// TenantContext resolves the X-Tenant-ID header through the gate and attaches
// the resulting RequestContext. Must run after Auth.
//
// A missing header is a 400 (the client forgot to say which tenant); a header
// naming a tenant the principal cannot act in is a 403. The distinction is
// deliberate: the 400 is a client bug, the 403 is a denial.
func TenantContext(gate *authz.Gate) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal := GetPrincipal(r.Context())

			rc, err := gate.ResolveTenant(r.Context(), principal, r.Header.Get(TenantHeader))
			if err != nil {
				writeGateError(w, r, err)
				return
			}

			ctx := authz.ToContext(r.Context(), rc)
			ctx = context.WithValue(ctx, logger.ContextKeyTenantID, rc.TenantID().String())

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// writeGateError maps gate sentinels to their wire responses.
func writeGateError(w http.ResponseWriter, r *http.Request, err error) {
	requestID := GetRequestID(r.Context())

	switch {
	case errors.Is(err, authz.ErrAuthenticationRequired):
		RecordGateDenial("auth")
		apierror.AuthenticationRequired("Authentication required").WriteJSONWithRequestID(w, requestID)
	case errors.Is(err, authz.ErrTenantRequired):
		RecordGateDenial("tenant")
		apierror.TenantRequired().WriteJSONWithRequestID(w, requestID)
	case errors.Is(err, authz.ErrTenantMismatch):
		RecordGateDenial("tenant")
		apierror.TenantMismatch().WriteJSONWithRequestID(w, requestID)
	case errors.Is(err, authz.ErrPermissionDenied):
		RecordGateDenial("permission")
		apierror.AuthorizationDenied("Permission denied").WriteJSONWithRequestID(w, requestID)
	case errors.Is(err, authz.ErrResourceNotFound):
		RecordGateDenial("scope")
		apierror.NotFound("resource").WriteJSONWithRequestID(w, requestID)
	default:
		apierror.InternalError(err).WriteJSONWithRequestID(w, requestID)
	}
}
