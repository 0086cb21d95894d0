package app

import (
	"context"
	"fmt"

	"github.com/girderhq/api/pkg/domain/authz"
	"github.com/girderhq/api/pkg/domain/project"
	"github.com/girderhq/api/pkg/domain/shared"
	"github.com/girderhq/api/pkg/logger"
)

// ProjectService handles project operations.
type ProjectService struct {
	projectRepo project.Repository
	logger      *logger.Logger
}

// NewProjectService creates a new ProjectService.
func NewProjectService(projectRepo project.Repository, log *logger.Logger) *ProjectService {
	return &ProjectService{
		projectRepo: projectRepo,
		logger:      log.With("service", "project"),
	}
}

// CreateProjectInput represents the input for creating a project. Any
// tenant_id a client ships in the payload is ignored; the entity is stamped
// with the request's resolved tenant.
type CreateProjectInput struct {
	Name        string `json:"name" validate:"required,min=2,max=200"`
	Code        string `json:"code" validate:"max=50"`
	Description string `json:"description" validate:"max=2000"`
}

// Create creates a project in the request's tenant.
func (s *ProjectService) Create(ctx context.Context, rc *authz.RequestContext, input CreateProjectInput) (*project.Project, error) {
	p, err := project.New(rc.TenantID(), input.Name, input.Code, input.Description, rc.Principal().ID())
	if err != nil {
		return nil, err
	}

	if err := s.projectRepo.Create(ctx, p); err != nil {
		return nil, err
	}

	s.logger.Info("project created",
		"project_id", p.ID().String(),
		"tenant_id", rc.TenantID().String(),
	)
	return p, nil
}

// Get loads a project and verifies it belongs to the request's tenant. A
// cross-tenant id surfaces as not-found, same as a genuinely absent one.
func (s *ProjectService) Get(ctx context.Context, rc *authz.RequestContext, rawID string) (*project.Project, error) {
	id, err := shared.IDFromString(rawID)
	if err != nil {
		return nil, authz.ErrResourceNotFound
	}

	p, err := s.projectRepo.GetByID(ctx, id)
	if err != nil {
		if shared.IsNotFound(err) {
			return nil, authz.ErrResourceNotFound
		}
		return nil, err
	}
	if err := authz.VerifyScope(rc, p); err != nil {
		return nil, err
	}

	return p, nil
}

// ListProjectsInput represents list filters.
type ListProjectsInput struct {
	Status  string `json:"status" validate:"omitempty,project_status"`
	Search  string `json:"search" validate:"max=200"`
	Page    int    `json:"page"`
	PerPage int    `json:"per_page"`
}

// List returns the tenant's projects matching the filters.
func (s *ProjectService) List(ctx context.Context, rc *authz.RequestContext, input ListProjectsInput) ([]*project.Project, int64, error) {
	return s.projectRepo.List(ctx, project.Filter{
		TenantID: rc.TenantID(),
		Status:   input.Status,
		Search:   input.Search,
		Page:     input.Page,
		PerPage:  input.PerPage,
	})
}

// UpdateProjectInput represents the input for updating a project.
type UpdateProjectInput struct {
	Name        *string `json:"name" validate:"omitempty,min=2,max=200"`
	Description *string `json:"description" validate:"omitempty,max=2000"`
	Status      *string `json:"status" validate:"omitempty,project_status"`
}

// Update applies changes to a project in the request's tenant.
func (s *ProjectService) Update(ctx context.Context, rc *authz.RequestContext, rawID string, input UpdateProjectInput) (*project.Project, error) {
	p, err := s.Get(ctx, rc, rawID)
	if err != nil {
		return nil, err
	}

	var status *project.Status
	if input.Status != nil {
		st := project.Status(*input.Status)
		status = &st
	}

	if err := p.Update(input.Name, input.Description, status); err != nil {
		return nil, err
	}
	if err := s.projectRepo.Update(ctx, p); err != nil {
		return nil, err
	}

	return p, nil
}

// Delete removes a project from the request's tenant.
func (s *ProjectService) Delete(ctx context.Context, rc *authz.RequestContext, rawID string) error {
	p, err := s.Get(ctx, rc, rawID)
	if err != nil {
		return err
	}

	if err := s.projectRepo.Delete(ctx, p.ID()); err != nil {
		return err
	}

	s.logger.Info("project deleted",
		"project_id", p.ID().String(),
		"tenant_id", rc.TenantID().String(),
	)
	return nil
}

// TaskCounts returns open/total task counts for a project the request can see.
func (s *ProjectService) TaskCounts(ctx context.Context, rc *authz.RequestContext, rawID string) (open, total int, err error) {
	p, err := s.Get(ctx, rc, rawID)
	if err != nil {
		return 0, 0, err
	}

	open, total, err = s.projectRepo.TaskCounts(ctx, p.ID())
	if err != nil {
		return 0, 0, fmt.Errorf("task counts: %w", err)
	}
	return open, total, nil
}
