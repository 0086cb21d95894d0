package app

import (
	"context"

	"github.com/girderhq/api/pkg/domain/role"
	"github.com/girderhq/api/pkg/logger"
)

// RoleService exposes the role catalog. Role definitions are seeded and
// managed out-of-band by girder-admin; the API only reads them and assigns
// them to members via the tenant service.
type RoleService struct {
	roleRepo role.Repository
	logger   *logger.Logger
}

// NewRoleService creates a new RoleService.
func NewRoleService(roleRepo role.Repository, log *logger.Logger) *RoleService {
	return &RoleService{
		roleRepo: roleRepo,
		logger:   log.With("service", "role"),
	}
}

// List returns all roles with their permission bundles.
func (s *RoleService) List(ctx context.Context) ([]*role.Role, error) {
	return s.roleRepo.List(ctx)
}

// GetBySlug returns one role by slug.
func (s *RoleService) GetBySlug(ctx context.Context, slug string) (*role.Role, error) {
	return s.roleRepo.GetBySlug(ctx, slug)
}
