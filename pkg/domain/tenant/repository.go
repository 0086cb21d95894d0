package tenant

import (
	"context"

	"github.com/girderhq/api/pkg/domain/shared"
)

// Repository defines persistence operations for tenants and memberships.
type Repository interface {
	Create(ctx context.Context, t *Tenant) error
	GetByID(ctx context.Context, id shared.ID) (*Tenant, error)
	GetBySlug(ctx context.Context, slug string) (*Tenant, error)
	Update(ctx context.Context, t *Tenant) error

	// ListForUser returns the tenants the user holds a membership in.
	ListForUser(ctx context.Context, userID shared.ID) ([]*Tenant, error)

	AddMember(ctx context.Context, m *Membership) error
	RemoveMember(ctx context.Context, userID, tenantID shared.ID) error
	GetMembership(ctx context.Context, userID, tenantID shared.ID) (*Membership, error)
	ListMemberships(ctx context.Context, userID shared.ID) ([]*Membership, error)
	ListMembers(ctx context.Context, tenantID shared.ID) ([]*Membership, error)
	UpdateMemberRole(ctx context.Context, userID, tenantID, roleID shared.ID) error

	// SetDefaultTenant marks tenantID as the user's default context and clears
	// the flag on every other membership of the user. Implementations must
	// apply this as one atomic update scoped by user id so concurrent
	// selections can never leave zero or two defaults.
	SetDefaultTenant(ctx context.Context, userID, tenantID shared.ID) error
}
