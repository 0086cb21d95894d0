package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/girderhq/api/internal/app"
	"github.com/girderhq/api/pkg/apierror"
	"github.com/girderhq/api/pkg/domain/user"
	"github.com/girderhq/api/pkg/logger"
)

type principalKey struct{}

// Auth validates the Bearer token and attaches the authenticated user to the
// context. Runs before every other gate stage: a request that fails here
// never reaches tenant resolution.
func Auth(authService *app.AuthService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := extractBearerToken(r)
			if token == "" {
				apierror.AuthenticationRequired("Authentication required").
					WriteJSONWithRequestID(w, GetRequestID(r.Context()))
				return
			}

			u, err := authService.Authenticate(r.Context(), token)
			if err != nil {
				apierror.AuthenticationRequired("Invalid or expired token").
					WriteJSONWithRequestID(w, GetRequestID(r.Context()))
				return
			}

			ctx := context.WithValue(r.Context(), principalKey{}, u)
			ctx = context.WithValue(ctx, logger.ContextKeyUserID, u.ID().String())

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetPrincipal returns the authenticated user, or nil.
func GetPrincipal(ctx context.Context) *user.User {
	if u, ok := ctx.Value(principalKey{}).(*user.User); ok {
		return u
	}
	return nil
}

// extractBearerToken pulls the token from the Authorization header, falling
// back to the token query parameter for WebSocket clients that cannot set
// headers.
func extractBearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimPrefix(header, "Bearer ")
	}
	return r.URL.Query().Get("token")
}
