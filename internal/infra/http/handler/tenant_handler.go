package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/girderhq/api/internal/app"
	"github.com/girderhq/api/internal/infra/http/middleware"
	"github.com/girderhq/api/pkg/apierror"
	"github.com/girderhq/api/pkg/domain/tenant"
	"github.com/girderhq/api/pkg/logger"
	"github.com/girderhq/api/pkg/validator"
)

// TenantHandler handles tenant and membership HTTP requests.
type TenantHandler struct {
	service   *app.TenantService
	validator *validator.Validator
	logger    *logger.Logger
}

// NewTenantHandler creates a new tenant handler.
func NewTenantHandler(svc *app.TenantService, v *validator.Validator, log *logger.Logger) *TenantHandler {
	return &TenantHandler{
		service:   svc,
		validator: v,
		logger:    log,
	}
}

// TenantResponse represents a tenant in API responses.
type TenantResponse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Slug      string    `json:"slug"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// MemberResponse represents a tenant member.
type MemberResponse struct {
	UserID    string    `json:"user_id"`
	RoleID    string    `json:"role_id"`
	IsDefault bool      `json:"is_default"`
	JoinedAt  time.Time `json:"joined_at"`
}

// AssignRoleRequest changes a member's role.
type AssignRoleRequest struct {
	RoleSlug string `json:"role_slug" validate:"required,slug"`
}

func toTenantResponse(t *tenant.Tenant) TenantResponse {
	return TenantResponse{
		ID:        t.ID().String(),
		Name:      t.Name(),
		Slug:      t.Slug(),
		Active:    t.IsActive(),
		CreatedAt: t.CreatedAt(),
		UpdatedAt: t.UpdatedAt(),
	}
}

func toMemberResponse(m *tenant.Membership) MemberResponse {
	return MemberResponse{
		UserID:    m.UserID().String(),
		RoleID:    m.RoleID().String(),
		IsDefault: m.IsDefault(),
		JoinedAt:  m.JoinedAt(),
	}
}

// Create handles POST /api/v1/tenants. It runs outside the tenant gate: the
// creator has no membership in a tenant that does not exist yet.
func (h *TenantHandler) Create(w http.ResponseWriter, r *http.Request) {
	principal := middleware.GetPrincipal(r.Context())
	if principal == nil {
		apierror.AuthenticationRequired("Authentication required").
			WriteJSONWithRequestID(w, middleware.GetRequestID(r.Context()))
		return
	}

	var req app.CreateTenantInput
	if !decodeJSON(w, r, &req) {
		return
	}

	if err := h.validator.Validate(req); err != nil {
		writeValidationError(w, r, err)
		return
	}

	t, err := h.service.Create(r.Context(), principal.ID(), req)
	if err != nil {
		writeServiceError(w, r, h.logger, "tenant", err)
		return
	}

	respond(w, http.StatusCreated, toTenantResponse(t))
}

// Get handles GET /api/v1/tenant. It returns the active tenant.
func (h *TenantHandler) Get(w http.ResponseWriter, r *http.Request) {
	rc, ok := requestContext(w, r)
	if !ok {
		return
	}

	t, err := h.service.Get(r.Context(), rc)
	if err != nil {
		writeServiceError(w, r, h.logger, "tenant", err)
		return
	}

	respond(w, http.StatusOK, toTenantResponse(t))
}

// ListMembers handles GET /api/v1/tenant/members.
func (h *TenantHandler) ListMembers(w http.ResponseWriter, r *http.Request) {
	rc, ok := requestContext(w, r)
	if !ok {
		return
	}

	members, err := h.service.ListMembers(r.Context(), rc)
	if err != nil {
		writeServiceError(w, r, h.logger, "members", err)
		return
	}

	out := make([]MemberResponse, len(members))
	for i, m := range members {
		out[i] = toMemberResponse(m)
	}

	respond(w, http.StatusOK, out)
}

// AddMember handles POST /api/v1/tenant/members.
func (h *TenantHandler) AddMember(w http.ResponseWriter, r *http.Request) {
	rc, ok := requestContext(w, r)
	if !ok {
		return
	}

	var req app.AddMemberInput
	if !decodeJSON(w, r, &req) {
		return
	}

	if err := h.validator.Validate(req); err != nil {
		writeValidationError(w, r, err)
		return
	}

	m, err := h.service.AddMember(r.Context(), rc, req)
	if err != nil {
		writeServiceError(w, r, h.logger, "member", err)
		return
	}

	respond(w, http.StatusCreated, toMemberResponse(m))
}

// RemoveMember handles DELETE /api/v1/tenant/members/{userID}.
func (h *TenantHandler) RemoveMember(w http.ResponseWriter, r *http.Request) {
	rc, ok := requestContext(w, r)
	if !ok {
		return
	}

	if err := h.service.RemoveMember(r.Context(), rc, chi.URLParam(r, "userID")); err != nil {
		writeServiceError(w, r, h.logger, "member", err)
		return
	}

	respond(w, http.StatusOK, map[string]bool{"removed": true})
}

// AssignRole handles PUT /api/v1/tenant/members/{userID}/role.
func (h *TenantHandler) AssignRole(w http.ResponseWriter, r *http.Request) {
	rc, ok := requestContext(w, r)
	if !ok {
		return
	}

	var req AssignRoleRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if err := h.validator.Validate(req); err != nil {
		writeValidationError(w, r, err)
		return
	}

	if err := h.service.AssignRole(r.Context(), rc, chi.URLParam(r, "userID"), req.RoleSlug); err != nil {
		writeServiceError(w, r, h.logger, "member", err)
		return
	}

	respond(w, http.StatusOK, map[string]string{"role_slug": req.RoleSlug})
}
