package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/girderhq/api/internal/app"
	"github.com/girderhq/api/pkg/domain/rfi"
	"github.com/girderhq/api/pkg/logger"
	"github.com/girderhq/api/pkg/validator"
)

// RFIHandler handles request-for-information HTTP requests.
type RFIHandler struct {
	service   *app.RFIService
	validator *validator.Validator
	logger    *logger.Logger
}

// NewRFIHandler creates a new RFI handler.
func NewRFIHandler(svc *app.RFIService, v *validator.Validator, log *logger.Logger) *RFIHandler {
	return &RFIHandler{
		service:   svc,
		validator: v,
		logger:    log,
	}
}

// RFIResponse represents an RFI in API responses.
type RFIResponse struct {
	ID         string     `json:"id"`
	TenantID   string     `json:"tenant_id"`
	ProjectID  string     `json:"project_id"`
	Subject    string     `json:"subject"`
	Question   string     `json:"question"`
	Answer     string     `json:"answer,omitempty"`
	Status     string     `json:"status"`
	RaisedBy   string     `json:"raised_by"`
	AnsweredBy *string    `json:"answered_by,omitempty"`
	AnsweredAt *time.Time `json:"answered_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

func toRFIResponse(q *rfi.RFI) RFIResponse {
	resp := RFIResponse{
		ID:         q.ID().String(),
		TenantID:   q.TenantID().String(),
		ProjectID:  q.ProjectID().String(),
		Subject:    q.Subject(),
		Question:   q.Question(),
		Answer:     q.Answer(),
		Status:     q.Status().String(),
		RaisedBy:   q.RaisedBy().String(),
		AnsweredAt: q.AnsweredAt(),
		CreatedAt:  q.CreatedAt(),
		UpdatedAt:  q.UpdatedAt(),
	}
	if by := q.AnsweredBy(); by != nil {
		s := by.String()
		resp.AnsweredBy = &s
	}
	return resp
}

// List handles GET /api/v1/rfis.
func (h *RFIHandler) List(w http.ResponseWriter, r *http.Request) {
	rc, ok := requestContext(w, r)
	if !ok {
		return
	}

	query := r.URL.Query()
	input := app.ListRFIsInput{
		ProjectID: query.Get("project_id"),
		Status:    query.Get("status"),
		Page:      parseQueryInt(query.Get("page"), 1),
		PerPage:   parseQueryInt(query.Get("per_page"), 20),
	}

	if err := h.validator.Validate(input); err != nil {
		writeValidationError(w, r, err)
		return
	}

	rfis, total, err := h.service.List(r.Context(), rc, input)
	if err != nil {
		writeServiceError(w, r, h.logger, "rfi", err)
		return
	}

	out := make([]RFIResponse, len(rfis))
	for i, q := range rfis {
		out[i] = toRFIResponse(q)
	}

	respondList(w, out, total, input.Page, input.PerPage)
}

// Create handles POST /api/v1/rfis.
func (h *RFIHandler) Create(w http.ResponseWriter, r *http.Request) {
	rc, ok := requestContext(w, r)
	if !ok {
		return
	}

	var req app.CreateRFIInput
	if !decodeJSON(w, r, &req) {
		return
	}

	if err := h.validator.Validate(req); err != nil {
		writeValidationError(w, r, err)
		return
	}

	q, err := h.service.Create(r.Context(), rc, req)
	if err != nil {
		writeServiceError(w, r, h.logger, "rfi", err)
		return
	}

	respond(w, http.StatusCreated, toRFIResponse(q))
}

// Get handles GET /api/v1/rfis/{id}.
func (h *RFIHandler) Get(w http.ResponseWriter, r *http.Request) {
	rc, ok := requestContext(w, r)
	if !ok {
		return
	}

	q, err := h.service.Get(r.Context(), rc, chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, r, h.logger, "rfi", err)
		return
	}

	respond(w, http.StatusOK, toRFIResponse(q))
}

// Respond handles POST /api/v1/rfis/{id}/answer.
func (h *RFIHandler) Respond(w http.ResponseWriter, r *http.Request) {
	rc, ok := requestContext(w, r)
	if !ok {
		return
	}

	var req app.RespondInput
	if !decodeJSON(w, r, &req) {
		return
	}

	if err := h.validator.Validate(req); err != nil {
		writeValidationError(w, r, err)
		return
	}

	q, err := h.service.Respond(r.Context(), rc, chi.URLParam(r, "id"), req)
	if err != nil {
		writeServiceError(w, r, h.logger, "rfi", err)
		return
	}

	respond(w, http.StatusOK, toRFIResponse(q))
}
