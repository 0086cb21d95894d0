// Package app contains the application services. Services receive a resolved
// authz.RequestContext from the HTTP layer, apply the scope guard to every
// entity they load, and stamp created entities with the request's tenant.
package app

import (
	"context"
	"fmt"

	"github.com/girderhq/api/pkg/domain/permission"
	"github.com/girderhq/api/pkg/domain/role"
	"github.com/girderhq/api/pkg/domain/shared"
	"github.com/girderhq/api/pkg/logger"
)

// PermissionService computes effective permission sets. It implements
// authz.PermissionStore: every call hits the role store, so a role change or
// revocation is visible on the next request without any cache to invalidate.
type PermissionService struct {
	roleRepo role.Repository
	logger   *logger.Logger
}

// NewPermissionService creates a new PermissionService.
func NewPermissionService(roleRepo role.Repository, log *logger.Logger) *PermissionService {
	return &PermissionService{
		roleRepo: roleRepo,
		logger:   log.With("service", "permission"),
	}
}

// EffectivePermissions returns the union of permission codes the user holds
// in the tenant. A user with no role assignments gets an empty set.
func (s *PermissionService) EffectivePermissions(ctx context.Context, userID, tenantID shared.ID) (permission.Set, error) {
	codes, err := s.roleRepo.ListPermissionCodes(ctx, userID, tenantID)
	if err != nil {
		return nil, fmt.Errorf("list permission codes: %w", err)
	}
	return permission.NewSet(codes), nil
}

// Catalog returns every permission code the system knows about.
func (s *PermissionService) Catalog(ctx context.Context) []permission.Code {
	return permission.All()
}
