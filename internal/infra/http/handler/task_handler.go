package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/girderhq/api/internal/app"
	"github.com/girderhq/api/pkg/domain/task"
	"github.com/girderhq/api/pkg/logger"
	"github.com/girderhq/api/pkg/validator"
)

// TaskHandler handles task HTTP requests.
type TaskHandler struct {
	service   *app.TaskService
	validator *validator.Validator
	logger    *logger.Logger
}

// NewTaskHandler creates a new task handler.
func NewTaskHandler(svc *app.TaskService, v *validator.Validator, log *logger.Logger) *TaskHandler {
	return &TaskHandler{
		service:   svc,
		validator: v,
		logger:    log,
	}
}

// TaskResponse represents a task in API responses.
type TaskResponse struct {
	ID         string     `json:"id"`
	TenantID   string     `json:"tenant_id"`
	ProjectID  string     `json:"project_id"`
	Title      string     `json:"title"`
	Details    string     `json:"details,omitempty"`
	Status     string     `json:"status"`
	AssigneeID *string    `json:"assignee_id,omitempty"`
	DueDate    *time.Time `json:"due_date,omitempty"`
	CreatedBy  string     `json:"created_by"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// AssignTaskRequest assigns a task to a user.
type AssignTaskRequest struct {
	AssigneeID string `json:"assignee_id" validate:"required,uuid"`
}

func toTaskResponse(t *task.Task) TaskResponse {
	resp := TaskResponse{
		ID:        t.ID().String(),
		TenantID:  t.TenantID().String(),
		ProjectID: t.ProjectID().String(),
		Title:     t.Title(),
		Details:   t.Details(),
		Status:    t.Status().String(),
		DueDate:   t.DueDate(),
		CreatedBy: t.CreatedBy().String(),
		CreatedAt: t.CreatedAt(),
		UpdatedAt: t.UpdatedAt(),
	}
	if assignee := t.AssigneeID(); assignee != nil {
		s := assignee.String()
		resp.AssigneeID = &s
	}
	return resp
}

// List handles GET /api/v1/tasks.
func (h *TaskHandler) List(w http.ResponseWriter, r *http.Request) {
	rc, ok := requestContext(w, r)
	if !ok {
		return
	}

	query := r.URL.Query()
	input := app.ListTasksInput{
		ProjectID:  query.Get("project_id"),
		Status:     query.Get("status"),
		AssigneeID: query.Get("assignee_id"),
		Page:       parseQueryInt(query.Get("page"), 1),
		PerPage:    parseQueryInt(query.Get("per_page"), 20),
	}

	if err := h.validator.Validate(input); err != nil {
		writeValidationError(w, r, err)
		return
	}

	tasks, total, err := h.service.List(r.Context(), rc, input)
	if err != nil {
		writeServiceError(w, r, h.logger, "task", err)
		return
	}

	out := make([]TaskResponse, len(tasks))
	for i, t := range tasks {
		out[i] = toTaskResponse(t)
	}

	respondList(w, out, total, input.Page, input.PerPage)
}

// Create handles POST /api/v1/tasks.
func (h *TaskHandler) Create(w http.ResponseWriter, r *http.Request) {
	rc, ok := requestContext(w, r)
	if !ok {
		return
	}

	var req app.CreateTaskInput
	if !decodeJSON(w, r, &req) {
		return
	}

	if err := h.validator.Validate(req); err != nil {
		writeValidationError(w, r, err)
		return
	}

	t, err := h.service.Create(r.Context(), rc, req)
	if err != nil {
		writeServiceError(w, r, h.logger, "task", err)
		return
	}

	respond(w, http.StatusCreated, toTaskResponse(t))
}

// Get handles GET /api/v1/tasks/{id}.
func (h *TaskHandler) Get(w http.ResponseWriter, r *http.Request) {
	rc, ok := requestContext(w, r)
	if !ok {
		return
	}

	t, err := h.service.Get(r.Context(), rc, chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, r, h.logger, "task", err)
		return
	}

	respond(w, http.StatusOK, toTaskResponse(t))
}

// Update handles PATCH /api/v1/tasks/{id}.
func (h *TaskHandler) Update(w http.ResponseWriter, r *http.Request) {
	rc, ok := requestContext(w, r)
	if !ok {
		return
	}

	var req app.UpdateTaskInput
	if !decodeJSON(w, r, &req) {
		return
	}

	if err := h.validator.Validate(req); err != nil {
		writeValidationError(w, r, err)
		return
	}

	t, err := h.service.Update(r.Context(), rc, chi.URLParam(r, "id"), req)
	if err != nil {
		writeServiceError(w, r, h.logger, "task", err)
		return
	}

	respond(w, http.StatusOK, toTaskResponse(t))
}

// Delete handles DELETE /api/v1/tasks/{id}.
func (h *TaskHandler) Delete(w http.ResponseWriter, r *http.Request) {
	rc, ok := requestContext(w, r)
	if !ok {
		return
	}

	if err := h.service.Delete(r.Context(), rc, chi.URLParam(r, "id")); err != nil {
		writeServiceError(w, r, h.logger, "task", err)
		return
	}

	respond(w, http.StatusOK, map[string]bool{"deleted": true})
}

// Assign handles PUT /api/v1/tasks/{id}/assignee.
func (h *TaskHandler) Assign(w http.ResponseWriter, r *http.Request) {
	rc, ok := requestContext(w, r)
	if !ok {
		return
	}

	var req AssignTaskRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if err := h.validator.Validate(req); err != nil {
		writeValidationError(w, r, err)
		return
	}

	t, err := h.service.Assign(r.Context(), rc, chi.URLParam(r, "id"), req.AssigneeID)
	if err != nil {
		writeServiceError(w, r, h.logger, "task", err)
		return
	}

	respond(w, http.StatusOK, toTaskResponse(t))
}
