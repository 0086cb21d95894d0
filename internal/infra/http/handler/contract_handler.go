package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/girderhq/api/internal/app"
	"github.com/girderhq/api/pkg/domain/contract"
	"github.com/girderhq/api/pkg/logger"
	"github.com/girderhq/api/pkg/validator"
)

// ContractHandler handles contract and payment HTTP requests.
type ContractHandler struct {
	service   *app.ContractService
	validator *validator.Validator
	logger    *logger.Logger
}

// NewContractHandler creates a new contract handler.
func NewContractHandler(svc *app.ContractService, v *validator.Validator, log *logger.Logger) *ContractHandler {
	return &ContractHandler{
		service:   svc,
		validator: v,
		logger:    log,
	}
}

// ContractResponse represents a contract in API responses.
type ContractResponse struct {
	ID         string    `json:"id"`
	TenantID   string    `json:"tenant_id"`
	ProjectID  *string   `json:"project_id,omitempty"`
	Title      string    `json:"title"`
	Vendor     string    `json:"vendor,omitempty"`
	ValueCents int64     `json:"value_cents"`
	Status     string    `json:"status"`
	CreatedBy  string    `json:"created_by"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// PaymentResponse represents a contract payment.
type PaymentResponse struct {
	ID          string    `json:"id"`
	ContractID  string    `json:"contract_id"`
	AmountCents int64     `json:"amount_cents"`
	Reference   string    `json:"reference,omitempty"`
	PaidAt      time.Time `json:"paid_at"`
	RecordedBy  string    `json:"recorded_by"`
	CreatedAt   time.Time `json:"created_at"`
}

func toContractResponse(c *contract.Contract) ContractResponse {
	resp := ContractResponse{
		ID:         c.ID().String(),
		TenantID:   c.TenantID().String(),
		Title:      c.Title(),
		Vendor:     c.Vendor(),
		ValueCents: c.ValueCents(),
		Status:     c.Status().String(),
		CreatedBy:  c.CreatedBy().String(),
		CreatedAt:  c.CreatedAt(),
		UpdatedAt:  c.UpdatedAt(),
	}
	if pid := c.ProjectID(); pid != nil {
		s := pid.String()
		resp.ProjectID = &s
	}
	return resp
}

func toPaymentResponse(p *contract.Payment) PaymentResponse {
	return PaymentResponse{
		ID:          p.ID().String(),
		ContractID:  p.ContractID().String(),
		AmountCents: p.AmountCents(),
		Reference:   p.Reference(),
		PaidAt:      p.PaidAt(),
		RecordedBy:  p.RecordedBy().String(),
		CreatedAt:   p.CreatedAt(),
	}
}

// List handles GET /api/v1/contracts.
func (h *ContractHandler) List(w http.ResponseWriter, r *http.Request) {
	rc, ok := requestContext(w, r)
	if !ok {
		return
	}

	query := r.URL.Query()
	input := app.ListContractsInput{
		ProjectID: query.Get("project_id"),
		Status:    query.Get("status"),
		Page:      parseQueryInt(query.Get("page"), 1),
		PerPage:   parseQueryInt(query.Get("per_page"), 20),
	}

	if err := h.validator.Validate(input); err != nil {
		writeValidationError(w, r, err)
		return
	}

	contracts, total, err := h.service.List(r.Context(), rc, input)
	if err != nil {
		writeServiceError(w, r, h.logger, "contract", err)
		return
	}

	out := make([]ContractResponse, len(contracts))
	for i, c := range contracts {
		out[i] = toContractResponse(c)
	}

	respondList(w, out, total, input.Page, input.PerPage)
}

// Create handles POST /api/v1/contracts.
func (h *ContractHandler) Create(w http.ResponseWriter, r *http.Request) {
	rc, ok := requestContext(w, r)
	if !ok {
		return
	}

	var req app.CreateContractInput
	if !decodeJSON(w, r, &req) {
		return
	}

	if err := h.validator.Validate(req); err != nil {
		writeValidationError(w, r, err)
		return
	}

	c, err := h.service.Create(r.Context(), rc, req)
	if err != nil {
		writeServiceError(w, r, h.logger, "contract", err)
		return
	}

	respond(w, http.StatusCreated, toContractResponse(c))
}

// Get handles GET /api/v1/contracts/{id}.
func (h *ContractHandler) Get(w http.ResponseWriter, r *http.Request) {
	rc, ok := requestContext(w, r)
	if !ok {
		return
	}

	c, err := h.service.Get(r.Context(), rc, chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, r, h.logger, "contract", err)
		return
	}

	respond(w, http.StatusOK, toContractResponse(c))
}

// Update handles PATCH /api/v1/contracts/{id}.
func (h *ContractHandler) Update(w http.ResponseWriter, r *http.Request) {
	rc, ok := requestContext(w, r)
	if !ok {
		return
	}

	var req app.UpdateContractInput
	if !decodeJSON(w, r, &req) {
		return
	}

	if err := h.validator.Validate(req); err != nil {
		writeValidationError(w, r, err)
		return
	}

	c, err := h.service.Update(r.Context(), rc, chi.URLParam(r, "id"), req)
	if err != nil {
		writeServiceError(w, r, h.logger, "contract", err)
		return
	}

	respond(w, http.StatusOK, toContractResponse(c))
}

// RecordPayment handles POST /api/v1/contracts/{id}/payments.
func (h *ContractHandler) RecordPayment(w http.ResponseWriter, r *http.Request) {
	rc, ok := requestContext(w, r)
	if !ok {
		return
	}

	var req app.RecordPaymentInput
	if !decodeJSON(w, r, &req) {
		return
	}

	if err := h.validator.Validate(req); err != nil {
		writeValidationError(w, r, err)
		return
	}

	p, err := h.service.RecordPayment(r.Context(), rc, chi.URLParam(r, "id"), req)
	if err != nil {
		writeServiceError(w, r, h.logger, "contract", err)
		return
	}

	respond(w, http.StatusCreated, toPaymentResponse(p))
}

// ListPayments handles GET /api/v1/contracts/{id}/payments.
func (h *ContractHandler) ListPayments(w http.ResponseWriter, r *http.Request) {
	rc, ok := requestContext(w, r)
	if !ok {
		return
	}

	payments, err := h.service.ListPayments(r.Context(), rc, chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, r, h.logger, "contract", err)
		return
	}

	out := make([]PaymentResponse, len(payments))
	for i, p := range payments {
		out[i] = toPaymentResponse(p)
	}

	respond(w, http.StatusOK, out)
}
