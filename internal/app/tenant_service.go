package app

import (
	"context"
	"fmt"

	"github.com/girderhq/api/pkg/domain/authz"
	"github.com/girderhq/api/pkg/domain/role"
	"github.com/girderhq/api/pkg/domain/shared"
	"github.com/girderhq/api/pkg/domain/tenant"
	"github.com/girderhq/api/pkg/logger"
)

// TenantService handles tenant and membership operations.
type TenantService struct {
	tenantRepo tenant.Repository
	roleRepo   role.Repository
	logger     *logger.Logger
}

// NewTenantService creates a new TenantService.
func NewTenantService(tenantRepo tenant.Repository, roleRepo role.Repository, log *logger.Logger) *TenantService {
	return &TenantService{
		tenantRepo: tenantRepo,
		roleRepo:   roleRepo,
		logger:     log.With("service", "tenant"),
	}
}

// CreateTenantInput represents the input for creating a tenant.
type CreateTenantInput struct {
	Name string `json:"name" validate:"required,min=2,max=100"`
	Slug string `json:"slug" validate:"required,min=2,max=100,slug"`
}

// Create creates a tenant and makes the creator its admin member. The first
// membership is marked default so the creator lands in the new tenant.
func (s *TenantService) Create(ctx context.Context, creatorID shared.ID, input CreateTenantInput) (*tenant.Tenant, error) {
	t, err := tenant.New(input.Name, input.Slug)
	if err != nil {
		return nil, err
	}

	adminRole, err := s.roleRepo.GetBySlug(ctx, "admin")
	if err != nil {
		return nil, fmt.Errorf("lookup admin role: %w", err)
	}

	if err := s.tenantRepo.Create(ctx, t); err != nil {
		return nil, err
	}

	existing, err := s.tenantRepo.ListMemberships(ctx, creatorID)
	if err != nil {
		return nil, fmt.Errorf("list memberships: %w", err)
	}

	m, err := tenant.NewMembership(creatorID, t.ID(), adminRole.ID(), len(existing) == 0)
	if err != nil {
		return nil, err
	}
	if err := s.tenantRepo.AddMember(ctx, m); err != nil {
		return nil, err
	}

	s.logger.Info("tenant created", "tenant_id", t.ID().String(), "slug", t.Slug())
	return t, nil
}

// Get returns the request's resolved tenant.
func (s *TenantService) Get(ctx context.Context, rc *authz.RequestContext) (*tenant.Tenant, error) {
	t, err := s.tenantRepo.GetByID(ctx, rc.TenantID())
	if err != nil {
		return nil, err
	}
	return t, nil
}

// ListForUser returns the tenants the user can switch into.
func (s *TenantService) ListForUser(ctx context.Context, userID shared.ID) ([]*tenant.Tenant, error) {
	return s.tenantRepo.ListForUser(ctx, userID)
}

// ListMemberships returns the user's membership rows, including the default flag.
func (s *TenantService) ListMemberships(ctx context.Context, userID shared.ID) ([]*tenant.Membership, error) {
	return s.tenantRepo.ListMemberships(ctx, userID)
}

// SelectDefaultTenant makes tenantID the user's default context. Membership
// is verified first; the flag flip itself is a single atomic update in the
// repository, so two racing selections settle on exactly one default.
func (s *TenantService) SelectDefaultTenant(ctx context.Context, userID shared.ID, rawTenantID string) error {
	tenantID, err := shared.IDFromString(rawTenantID)
	if err != nil {
		return fmt.Errorf("%w: invalid tenant id", shared.ErrValidation)
	}

	if _, err := s.tenantRepo.GetMembership(ctx, userID, tenantID); err != nil {
		if shared.IsNotFound(err) {
			return authz.ErrTenantMismatch
		}
		return fmt.Errorf("check membership: %w", err)
	}

	if err := s.tenantRepo.SetDefaultTenant(ctx, userID, tenantID); err != nil {
		return err
	}

	s.logger.Info("default tenant selected", "user_id", userID.String(), "tenant_id", tenantID.String())
	return nil
}

// AddMemberInput represents the input for adding a member to a tenant.
type AddMemberInput struct {
	UserID   string `json:"user_id" validate:"required,uuid"`
	RoleSlug string `json:"role_slug" validate:"required,slug"`
}

// AddMember adds a user to the request's tenant with the given role.
func (s *TenantService) AddMember(ctx context.Context, rc *authz.RequestContext, input AddMemberInput) (*tenant.Membership, error) {
	userID, err := shared.IDFromString(input.UserID)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid user id", shared.ErrValidation)
	}

	r, err := s.roleRepo.GetBySlug(ctx, input.RoleSlug)
	if err != nil {
		return nil, err
	}

	existing, err := s.tenantRepo.ListMemberships(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list memberships: %w", err)
	}

	m, err := tenant.NewMembership(userID, rc.TenantID(), r.ID(), len(existing) == 0)
	if err != nil {
		return nil, err
	}
	if err := s.tenantRepo.AddMember(ctx, m); err != nil {
		return nil, err
	}

	s.logger.Info("member added",
		"tenant_id", rc.TenantID().String(),
		"user_id", userID.String(),
		"role", r.Slug(),
	)
	return m, nil
}

// RemoveMember removes a user from the request's tenant.
func (s *TenantService) RemoveMember(ctx context.Context, rc *authz.RequestContext, rawUserID string) error {
	userID, err := shared.IDFromString(rawUserID)
	if err != nil {
		return fmt.Errorf("%w: invalid user id", shared.ErrValidation)
	}
	return s.tenantRepo.RemoveMember(ctx, userID, rc.TenantID())
}

// ListMembers returns the memberships within the request's tenant.
func (s *TenantService) ListMembers(ctx context.Context, rc *authz.RequestContext) ([]*tenant.Membership, error) {
	return s.tenantRepo.ListMembers(ctx, rc.TenantID())
}

// AssignRole changes the role a member holds in the request's tenant.
func (s *TenantService) AssignRole(ctx context.Context, rc *authz.RequestContext, rawUserID, roleSlug string) error {
	userID, err := shared.IDFromString(rawUserID)
	if err != nil {
		return fmt.Errorf("%w: invalid user id", shared.ErrValidation)
	}

	r, err := s.roleRepo.GetBySlug(ctx, roleSlug)
	if err != nil {
		return err
	}

	if err := s.tenantRepo.UpdateMemberRole(ctx, userID, rc.TenantID(), r.ID()); err != nil {
		return err
	}

	s.logger.Info("role assigned",
		"tenant_id", rc.TenantID().String(),
		"user_id", userID.String(),
		"role", r.Slug(),
	)
	return nil
}
