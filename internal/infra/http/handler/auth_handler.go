package handler

import (
	"net/http"
	"time"

	"github.com/girderhq/api/internal/app"
	"github.com/girderhq/api/internal/infra/http/middleware"
	"github.com/girderhq/api/pkg/apierror"
	"github.com/girderhq/api/pkg/domain/tenant"
	"github.com/girderhq/api/pkg/domain/user"
	"github.com/girderhq/api/pkg/logger"
	"github.com/girderhq/api/pkg/validator"
)

// AuthHandler handles authentication and current-user HTTP requests.
type AuthHandler struct {
	auth        *app.AuthService
	tenants     *app.TenantService
	permissions *app.PermissionService
	validator   *validator.Validator
	logger      *logger.Logger
}

// NewAuthHandler creates a new auth handler.
func NewAuthHandler(auth *app.AuthService, tenants *app.TenantService, perms *app.PermissionService, v *validator.Validator, log *logger.Logger) *AuthHandler {
	return &AuthHandler{
		auth:        auth,
		tenants:     tenants,
		permissions: perms,
		validator:   v,
		logger:      log,
	}
}

// UserResponse represents a user in API responses. The tenant_id field is the
// legacy single-tenant column and is omitted when the user has memberships.
type UserResponse struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

// LoginResponse is returned from login and refresh.
type LoginResponse struct {
	User         UserResponse `json:"user"`
	AccessToken  string       `json:"access_token"`
	RefreshToken string       `json:"refresh_token"`
}

// RefreshRequest carries a refresh token.
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

// SelectTenantRequest selects the user's default tenant.
type SelectTenantRequest struct {
	TenantID string `json:"tenant_id" validate:"required,uuid"`
}

// MembershipResponse represents a tenant membership.
type MembershipResponse struct {
	TenantID  string    `json:"tenant_id"`
	RoleID    string    `json:"role_id"`
	IsDefault bool      `json:"is_default"`
	JoinedAt  time.Time `json:"joined_at"`
}

func toUserResponse(u *user.User) UserResponse {
	return UserResponse{
		ID:        u.ID().String(),
		Email:     u.Email(),
		Name:      u.Name(),
		Active:    u.IsActive(),
		CreatedAt: u.CreatedAt(),
	}
}

func toMembershipResponse(m *tenant.Membership) MembershipResponse {
	return MembershipResponse{
		TenantID:  m.TenantID().String(),
		RoleID:    m.RoleID().String(),
		IsDefault: m.IsDefault(),
		JoinedAt:  m.JoinedAt(),
	}
}

// Login handles POST /api/v1/auth/login.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req app.LoginInput
	if !decodeJSON(w, r, &req) {
		return
	}

	if err := h.validator.Validate(req); err != nil {
		writeValidationError(w, r, err)
		return
	}

	u, tokens, err := h.auth.Login(r.Context(), req)
	if err != nil {
		writeServiceError(w, r, h.logger, "user", err)
		return
	}

	respond(w, http.StatusOK, LoginResponse{
		User:         toUserResponse(u),
		AccessToken:  tokens.AccessToken,
		RefreshToken: tokens.RefreshToken,
	})
}

// Refresh handles POST /api/v1/auth/refresh.
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req RefreshRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if err := h.validator.Validate(req); err != nil {
		writeValidationError(w, r, err)
		return
	}

	u, tokens, err := h.auth.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		writeServiceError(w, r, h.logger, "user", err)
		return
	}

	respond(w, http.StatusOK, LoginResponse{
		User:         toUserResponse(u),
		AccessToken:  tokens.AccessToken,
		RefreshToken: tokens.RefreshToken,
	})
}

// Me handles GET /api/v1/me.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	principal := middleware.GetPrincipal(r.Context())
	if principal == nil {
		apierror.AuthenticationRequired("Authentication required").
			WriteJSONWithRequestID(w, middleware.GetRequestID(r.Context()))
		return
	}

	respond(w, http.StatusOK, toUserResponse(principal))
}

// MePermissions handles GET /api/v1/me/permissions. It reports the effective
// permission codes for the active tenant, so it requires the tenant header.
func (h *AuthHandler) MePermissions(w http.ResponseWriter, r *http.Request) {
	rc, ok := requestContext(w, r)
	if !ok {
		return
	}

	perms, err := rc.Permissions(r.Context())
	if err != nil {
		writeServiceError(w, r, h.logger, "permissions", err)
		return
	}

	respond(w, http.StatusOK, map[string]any{
		"tenant_id":   rc.TenantID().String(),
		"permissions": perms.Codes(),
	})
}

// MeTenants handles GET /api/v1/me/tenants. It lists the principal's
// memberships and does not need the tenant header; it is how a client finds
// out which tenants it may name in the first place.
func (h *AuthHandler) MeTenants(w http.ResponseWriter, r *http.Request) {
	principal := middleware.GetPrincipal(r.Context())
	if principal == nil {
		apierror.AuthenticationRequired("Authentication required").
			WriteJSONWithRequestID(w, middleware.GetRequestID(r.Context()))
		return
	}

	memberships, err := h.tenants.ListMemberships(r.Context(), principal.ID())
	if err != nil {
		writeServiceError(w, r, h.logger, "memberships", err)
		return
	}

	out := make([]MembershipResponse, len(memberships))
	for i, m := range memberships {
		out[i] = toMembershipResponse(m)
	}

	respond(w, http.StatusOK, out)
}

// SelectTenant handles PUT /api/v1/me/tenant. It flips the default-tenant
// flag to the named tenant, which must be one of the principal's memberships.
func (h *AuthHandler) SelectTenant(w http.ResponseWriter, r *http.Request) {
	principal := middleware.GetPrincipal(r.Context())
	if principal == nil {
		apierror.AuthenticationRequired("Authentication required").
			WriteJSONWithRequestID(w, middleware.GetRequestID(r.Context()))
		return
	}

	var req SelectTenantRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if err := h.validator.Validate(req); err != nil {
		writeValidationError(w, r, err)
		return
	}

	if err := h.tenants.SelectDefaultTenant(r.Context(), principal.ID(), req.TenantID); err != nil {
		writeServiceError(w, r, h.logger, "tenant", err)
		return
	}

	respond(w, http.StatusOK, map[string]string{"default_tenant_id": req.TenantID})
}
