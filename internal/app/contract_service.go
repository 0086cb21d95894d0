package app

import (
	"context"
	"fmt"
	"time"

	"github.com/girderhq/api/pkg/domain/authz"
	"github.com/girderhq/api/pkg/domain/contract"
	"github.com/girderhq/api/pkg/domain/shared"
	"github.com/girderhq/api/pkg/logger"
)

// ContractService handles contract and payment operations.
type ContractService struct {
	contractRepo contract.Repository
	projects     *ProjectService
	logger       *logger.Logger
}

// NewContractService creates a new ContractService.
func NewContractService(contractRepo contract.Repository, projects *ProjectService, log *logger.Logger) *ContractService {
	return &ContractService{
		contractRepo: contractRepo,
		projects:     projects,
		logger:       log.With("service", "contract"),
	}
}

// CreateContractInput represents the input for creating a contract.
type CreateContractInput struct {
	ProjectID  string `json:"project_id" validate:"omitempty,uuid"`
	Title      string `json:"title" validate:"required,min=2,max=200"`
	Vendor     string `json:"vendor" validate:"max=200"`
	ValueCents int64  `json:"value_cents" validate:"gte=0"`
}

// Create creates a contract in the request's tenant. A project reference, if
// present, must resolve within the same tenant.
func (s *ContractService) Create(ctx context.Context, rc *authz.RequestContext, input CreateContractInput) (*contract.Contract, error) {
	var projectID *shared.ID
	if input.ProjectID != "" {
		p, err := s.projects.Get(ctx, rc, input.ProjectID)
		if err != nil {
			return nil, err
		}
		id := p.ID()
		projectID = &id
	}

	c, err := contract.New(rc.TenantID(), projectID, input.Title, input.Vendor, input.ValueCents, rc.Principal().ID())
	if err != nil {
		return nil, err
	}

	if err := s.contractRepo.Create(ctx, c); err != nil {
		return nil, err
	}

	s.logger.Info("contract created",
		"contract_id", c.ID().String(),
		"tenant_id", rc.TenantID().String(),
	)
	return c, nil
}

// Get loads a contract and verifies it belongs to the request's tenant.
func (s *ContractService) Get(ctx context.Context, rc *authz.RequestContext, rawID string) (*contract.Contract, error) {
	id, err := shared.IDFromString(rawID)
	if err != nil {
		return nil, authz.ErrResourceNotFound
	}

	c, err := s.contractRepo.GetByID(ctx, id)
	if err != nil {
		if shared.IsNotFound(err) {
			return nil, authz.ErrResourceNotFound
		}
		return nil, err
	}
	if err := authz.VerifyScope(rc, c); err != nil {
		return nil, err
	}

	return c, nil
}

// ListContractsInput represents list filters.
type ListContractsInput struct {
	ProjectID string `json:"project_id" validate:"omitempty,uuid"`
	Status    string `json:"status" validate:"omitempty,contract_status"`
	Page      int    `json:"page"`
	PerPage   int    `json:"per_page"`
}

// List returns the tenant's contracts matching the filters.
func (s *ContractService) List(ctx context.Context, rc *authz.RequestContext, input ListContractsInput) ([]*contract.Contract, int64, error) {
	f := contract.Filter{
		TenantID: rc.TenantID(),
		Status:   input.Status,
		Page:     input.Page,
		PerPage:  input.PerPage,
	}
	if input.ProjectID != "" {
		id, err := shared.IDFromString(input.ProjectID)
		if err != nil {
			return nil, 0, fmt.Errorf("%w: invalid project id", shared.ErrValidation)
		}
		f.ProjectID = &id
	}

	return s.contractRepo.List(ctx, f)
}

// UpdateContractInput represents the input for updating a contract.
type UpdateContractInput struct {
	Title      *string `json:"title" validate:"omitempty,min=2,max=200"`
	Vendor     *string `json:"vendor" validate:"omitempty,max=200"`
	ValueCents *int64  `json:"value_cents" validate:"omitempty,gte=0"`
	Status     *string `json:"status" validate:"omitempty,contract_status"`
}

// Update applies changes to a contract in the request's tenant.
func (s *ContractService) Update(ctx context.Context, rc *authz.RequestContext, rawID string, input UpdateContractInput) (*contract.Contract, error) {
	c, err := s.Get(ctx, rc, rawID)
	if err != nil {
		return nil, err
	}

	var status *contract.Status
	if input.Status != nil {
		st := contract.Status(*input.Status)
		status = &st
	}

	if err := c.Update(input.Title, input.Vendor, input.ValueCents, status); err != nil {
		return nil, err
	}
	if err := s.contractRepo.Update(ctx, c); err != nil {
		return nil, err
	}

	return c, nil
}

// RecordPaymentInput represents a payment against a contract.
type RecordPaymentInput struct {
	AmountCents int64      `json:"amount_cents" validate:"required,gt=0"`
	Reference   string     `json:"reference" validate:"max=200"`
	PaidAt      *time.Time `json:"paid_at"`
}

// RecordPayment records a payment against a contract in the request's tenant.
func (s *ContractService) RecordPayment(ctx context.Context, rc *authz.RequestContext, rawContractID string, input RecordPaymentInput) (*contract.Payment, error) {
	c, err := s.Get(ctx, rc, rawContractID)
	if err != nil {
		return nil, err
	}

	paidAt := time.Now().UTC()
	if input.PaidAt != nil {
		paidAt = *input.PaidAt
	}

	p, err := contract.NewPayment(rc.TenantID(), c.ID(), input.AmountCents, input.Reference, paidAt, rc.Principal().ID())
	if err != nil {
		return nil, err
	}

	if err := s.contractRepo.AddPayment(ctx, p); err != nil {
		return nil, err
	}

	s.logger.Info("payment recorded",
		"contract_id", c.ID().String(),
		"amount_cents", p.AmountCents(),
		"tenant_id", rc.TenantID().String(),
	)
	return p, nil
}

// ListPayments returns the payments recorded against a contract in the
// request's tenant.
func (s *ContractService) ListPayments(ctx context.Context, rc *authz.RequestContext, rawContractID string) ([]*contract.Payment, error) {
	c, err := s.Get(ctx, rc, rawContractID)
	if err != nil {
		return nil, err
	}
	return s.contractRepo.ListPayments(ctx, c.ID())
}
