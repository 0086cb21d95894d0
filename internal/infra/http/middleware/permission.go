package middleware

import (
	"net/http"

	"github.com/girderhq/api/pkg/apierror"
	"github.com/girderhq/api/pkg/domain/authz"
	"github.com/girderhq/api/pkg/domain/permission"
)

// RequirePermission guards a route behind one permission code. It runs after
// TenantContext and before the handler ever touches a resource id, so a
// caller without the code gets 403 even when the id they sent does not exist.
func RequirePermission(gate *authz.Gate, code permission.Code) func(http.Handler) http.Handler {
	return RequireAny(gate, code)
}

// RequireAny guards a route behind a disjunction of permission codes; holding
// any one of them admits the request. Codes are matched exactly, never by
// prefix or wildcard.
func RequireAny(gate *authz.Gate, codes ...permission.Code) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rc := authz.FromContext(r.Context())
			if rc == nil {
				apierror.AuthenticationRequired("Authentication required").
					WriteJSONWithRequestID(w, GetRequestID(r.Context()))
				return
			}

			if err := gate.Authorize(r.Context(), rc, codes...); err != nil {
				writeGateError(w, r, err)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
