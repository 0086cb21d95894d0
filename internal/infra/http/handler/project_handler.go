package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/girderhq/api/internal/app"
	"github.com/girderhq/api/pkg/domain/project"
	"github.com/girderhq/api/pkg/logger"
	"github.com/girderhq/api/pkg/validator"
)

// ProjectHandler handles project HTTP requests.
type ProjectHandler struct {
	service   *app.ProjectService
	validator *validator.Validator
	logger    *logger.Logger
}

// NewProjectHandler creates a new project handler.
func NewProjectHandler(svc *app.ProjectService, v *validator.Validator, log *logger.Logger) *ProjectHandler {
	return &ProjectHandler{
		service:   svc,
		validator: v,
		logger:    log,
	}
}

// ProjectResponse represents a project in API responses.
type ProjectResponse struct {
	ID          string    `json:"id"`
	TenantID    string    `json:"tenant_id"`
	Name        string    `json:"name"`
	Code        string    `json:"code,omitempty"`
	Description string    `json:"description,omitempty"`
	Status      string    `json:"status"`
	CreatedBy   string    `json:"created_by"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// ProjectStatsResponse summarizes a project's task workload.
type ProjectStatsResponse struct {
	ProjectID string `json:"project_id"`
	OpenTasks int    `json:"open_tasks"`
	Total     int    `json:"total_tasks"`
}

func toProjectResponse(p *project.Project) ProjectResponse {
	return ProjectResponse{
		ID:          p.ID().String(),
		TenantID:    p.TenantID().String(),
		Name:        p.Name(),
		Code:        p.Code(),
		Description: p.Description(),
		Status:      p.Status().String(),
		CreatedBy:   p.CreatedBy().String(),
		CreatedAt:   p.CreatedAt(),
		UpdatedAt:   p.UpdatedAt(),
	}
}

// List handles GET /api/v1/projects.
func (h *ProjectHandler) List(w http.ResponseWriter, r *http.Request) {
	rc, ok := requestContext(w, r)
	if !ok {
		return
	}

	query := r.URL.Query()
	input := app.ListProjectsInput{
		Status:  query.Get("status"),
		Search:  query.Get("search"),
		Page:    parseQueryInt(query.Get("page"), 1),
		PerPage: parseQueryInt(query.Get("per_page"), 20),
	}

	if err := h.validator.Validate(input); err != nil {
		writeValidationError(w, r, err)
		return
	}

	projects, total, err := h.service.List(r.Context(), rc, input)
	if err != nil {
		writeServiceError(w, r, h.logger, "project", err)
		return
	}

	out := make([]ProjectResponse, len(projects))
	for i, p := range projects {
		out[i] = toProjectResponse(p)
	}

	respondList(w, out, total, input.Page, input.PerPage)
}

// Create handles POST /api/v1/projects.
func (h *ProjectHandler) Create(w http.ResponseWriter, r *http.Request) {
	rc, ok := requestContext(w, r)
	if !ok {
		return
	}

	var req app.CreateProjectInput
	if !decodeJSON(w, r, &req) {
		return
	}

	if err := h.validator.Validate(req); err != nil {
		writeValidationError(w, r, err)
		return
	}

	p, err := h.service.Create(r.Context(), rc, req)
	if err != nil {
		writeServiceError(w, r, h.logger, "project", err)
		return
	}

	respond(w, http.StatusCreated, toProjectResponse(p))
}

// Get handles GET /api/v1/projects/{id}.
func (h *ProjectHandler) Get(w http.ResponseWriter, r *http.Request) {
	rc, ok := requestContext(w, r)
	if !ok {
		return
	}

	p, err := h.service.Get(r.Context(), rc, chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, r, h.logger, "project", err)
		return
	}

	respond(w, http.StatusOK, toProjectResponse(p))
}

// Update handles PATCH /api/v1/projects/{id}.
func (h *ProjectHandler) Update(w http.ResponseWriter, r *http.Request) {
	rc, ok := requestContext(w, r)
	if !ok {
		return
	}

	var req app.UpdateProjectInput
	if !decodeJSON(w, r, &req) {
		return
	}

	if err := h.validator.Validate(req); err != nil {
		writeValidationError(w, r, err)
		return
	}

	p, err := h.service.Update(r.Context(), rc, chi.URLParam(r, "id"), req)
	if err != nil {
		writeServiceError(w, r, h.logger, "project", err)
		return
	}

	respond(w, http.StatusOK, toProjectResponse(p))
}

// Delete handles DELETE /api/v1/projects/{id}.
func (h *ProjectHandler) Delete(w http.ResponseWriter, r *http.Request) {
	rc, ok := requestContext(w, r)
	if !ok {
		return
	}

	if err := h.service.Delete(r.Context(), rc, chi.URLParam(r, "id")); err != nil {
		writeServiceError(w, r, h.logger, "project", err)
		return
	}

	respond(w, http.StatusOK, map[string]bool{"deleted": true})
}

// Stats handles GET /api/v1/projects/{id}/stats. The same numbers stream
// over the WebSocket endpoint; this is the one-shot variant.
func (h *ProjectHandler) Stats(w http.ResponseWriter, r *http.Request) {
	rc, ok := requestContext(w, r)
	if !ok {
		return
	}

	id := chi.URLParam(r, "id")
	open, total, err := h.service.TaskCounts(r.Context(), rc, id)
	if err != nil {
		writeServiceError(w, r, h.logger, "project", err)
		return
	}

	respond(w, http.StatusOK, ProjectStatsResponse{
		ProjectID: id,
		OpenTasks: open,
		Total:     total,
	})
}
