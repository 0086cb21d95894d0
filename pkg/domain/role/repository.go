package role

import (
	"context"

	"github.com/girderhq/api/pkg/domain/shared"
)

// Repository defines persistence operations for roles and role assignments.
type Repository interface {
	Create(ctx context.Context, r *Role) error
	GetByID(ctx context.Context, id shared.ID) (*Role, error)
	GetBySlug(ctx context.Context, slug string) (*Role, error)
	List(ctx context.Context) ([]*Role, error)
	Update(ctx context.Context, r *Role) error

	// SetPermissions replaces the role's permission bundle.
	SetPermissions(ctx context.Context, roleID shared.ID, codes []string) error

	// ListPermissionCodes returns the union of permission codes granted to the
	// user within the tenant: codes from active system-scoped roles held by
	// the user plus codes from active roles assigned to the user specifically
	// in that tenant. Roles held in other tenants contribute nothing. The
	// query runs fresh on every call; callers must not cache results across
	// requests.
	ListPermissionCodes(ctx context.Context, userID, tenantID shared.ID) ([]string, error)
}
