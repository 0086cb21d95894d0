package app

import (
	"context"
	"fmt"

	"github.com/girderhq/api/internal/infra/jobs"
	"github.com/girderhq/api/pkg/domain/authz"
	"github.com/girderhq/api/pkg/domain/notification"
	"github.com/girderhq/api/pkg/domain/rfi"
	"github.com/girderhq/api/pkg/domain/shared"
	"github.com/girderhq/api/pkg/logger"
)

// RFIService handles request-for-information operations.
type RFIService struct {
	rfiRepo  rfi.Repository
	projects *ProjectService
	notifier Notifier
	logger   *logger.Logger
}

// NewRFIService creates a new RFIService.
func NewRFIService(rfiRepo rfi.Repository, projects *ProjectService, notifier Notifier, log *logger.Logger) *RFIService {
	return &RFIService{
		rfiRepo:  rfiRepo,
		projects: projects,
		notifier: notifier,
		logger:   log.With("service", "rfi"),
	}
}

// CreateRFIInput represents the input for raising an RFI.
type CreateRFIInput struct {
	ProjectID string `json:"project_id" validate:"required,uuid"`
	Subject   string `json:"subject" validate:"required,min=2,max=200"`
	Question  string `json:"question" validate:"required,max=5000"`
}

// Create raises an RFI against a project in the request's tenant.
func (s *RFIService) Create(ctx context.Context, rc *authz.RequestContext, input CreateRFIInput) (*rfi.RFI, error) {
	p, err := s.projects.Get(ctx, rc, input.ProjectID)
	if err != nil {
		return nil, err
	}

	q, err := rfi.New(rc.TenantID(), p.ID(), input.Subject, input.Question, rc.Principal().ID())
	if err != nil {
		return nil, err
	}

	if err := s.rfiRepo.Create(ctx, q); err != nil {
		return nil, err
	}

	s.logger.Info("rfi raised",
		"rfi_id", q.ID().String(),
		"project_id", p.ID().String(),
		"tenant_id", rc.TenantID().String(),
	)
	return q, nil
}

// Get loads an RFI and verifies it belongs to the request's tenant.
func (s *RFIService) Get(ctx context.Context, rc *authz.RequestContext, rawID string) (*rfi.RFI, error) {
	id, err := shared.IDFromString(rawID)
	if err != nil {
		return nil, authz.ErrResourceNotFound
	}

	q, err := s.rfiRepo.GetByID(ctx, id)
	if err != nil {
		if shared.IsNotFound(err) {
			return nil, authz.ErrResourceNotFound
		}
		return nil, err
	}
	if err := authz.VerifyScope(rc, q); err != nil {
		return nil, err
	}

	return q, nil
}

// ListRFIsInput represents list filters.
type ListRFIsInput struct {
	ProjectID string `json:"project_id" validate:"omitempty,uuid"`
	Status    string `json:"status" validate:"omitempty,rfi_status"`
	Page      int    `json:"page"`
	PerPage   int    `json:"per_page"`
}

// List returns the tenant's RFIs matching the filters.
func (s *RFIService) List(ctx context.Context, rc *authz.RequestContext, input ListRFIsInput) ([]*rfi.RFI, int64, error) {
	f := rfi.Filter{
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
		f.ProjectID = id
	}

	return s.rfiRepo.List(ctx, f)
}

// RespondInput represents an RFI answer.
type RespondInput struct {
	Answer string `json:"answer" validate:"required,max=5000"`
}

// Respond records an answer and notifies whoever raised the RFI.
func (s *RFIService) Respond(ctx context.Context, rc *authz.RequestContext, rawID string, input RespondInput) (*rfi.RFI, error) {
	q, err := s.Get(ctx, rc, rawID)
	if err != nil {
		return nil, err
	}

	if err := q.Respond(input.Answer, rc.Principal().ID()); err != nil {
		return nil, err
	}
	if err := s.rfiRepo.Update(ctx, q); err != nil {
		return nil, err
	}

	if s.notifier != nil && !q.RaisedBy().IsZero() {
		payload := jobs.NotificationDeliverPayload{
			TenantID: rc.TenantID().String(),
			UserID:   q.RaisedBy().String(),
			Kind:     string(notification.KindRFIAnswered),
			Subject:  "RFI answered: " + q.Subject(),
			Body:     fmt.Sprintf("%s answered your RFI %q.", rc.Principal().Name(), q.Subject()),
		}
		if err := s.notifier.EnqueueNotification(ctx, payload); err != nil {
			s.logger.Error("failed to queue rfi notification", "rfi_id", q.ID().String(), "error", err)
		}
	}

	return q, nil
}
