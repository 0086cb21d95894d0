package handler

import (
	"net/http"
	"time"

	"github.com/girderhq/api/internal/app"
	"github.com/girderhq/api/pkg/domain/role"
	"github.com/girderhq/api/pkg/logger"
)

// RoleHandler exposes the role and permission catalog. Role definitions are
// seeded out of band; the API only reads them.
type RoleHandler struct {
	roles       *app.RoleService
	permissions *app.PermissionService
	logger      *logger.Logger
}

// NewRoleHandler creates a new role handler.
func NewRoleHandler(roles *app.RoleService, perms *app.PermissionService, log *logger.Logger) *RoleHandler {
	return &RoleHandler{
		roles:       roles,
		permissions: perms,
		logger:      log,
	}
}

// RoleResponse represents a role in API responses.
type RoleResponse struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Slug        string    `json:"slug"`
	Scope       string    `json:"scope"`
	Active      bool      `json:"active"`
	Permissions []string  `json:"permissions"`
	CreatedAt   time.Time `json:"created_at"`
}

func toRoleResponse(r *role.Role) RoleResponse {
	codes := r.Permissions()
	perms := make([]string, len(codes))
	for i, c := range codes {
		perms[i] = c.String()
	}
	return RoleResponse{
		ID:          r.ID().String(),
		Name:        r.Name(),
		Slug:        r.Slug(),
		Scope:       r.Scope().String(),
		Active:      r.IsActive(),
		Permissions: perms,
		CreatedAt:   r.CreatedAt(),
	}
}

// List handles GET /api/v1/roles.
func (h *RoleHandler) List(w http.ResponseWriter, r *http.Request) {
	roles, err := h.roles.List(r.Context())
	if err != nil {
		writeServiceError(w, r, h.logger, "role", err)
		return
	}

	out := make([]RoleResponse, len(roles))
	for i, ro := range roles {
		out[i] = toRoleResponse(ro)
	}

	respond(w, http.StatusOK, out)
}

// Catalog handles GET /api/v1/permissions. It returns every permission code
// the evaluator knows about.
func (h *RoleHandler) Catalog(w http.ResponseWriter, r *http.Request) {
	codes := h.permissions.Catalog(r.Context())

	out := make([]string, len(codes))
	for i, c := range codes {
		out[i] = c.String()
	}

	respond(w, http.StatusOK, out)
}
