package tenant

import (
	"fmt"
	"time"

	"github.com/girderhq/api/pkg/domain/shared"
)

// Membership represents a principal's membership in a tenant, carrying the
// role the principal holds there. Invariant: at most one membership per
// principal has isDefault set; the repository flips the flag across all of a
// principal's rows in a single atomic update.
type Membership struct {
	id        shared.ID
	userID    shared.ID
	tenantID  shared.ID
	roleID    shared.ID
	isDefault bool
	joinedAt  time.Time
}

// NewMembership creates a new Membership.
func NewMembership(userID, tenantID, roleID shared.ID, isDefault bool) (*Membership, error) {
	if userID.IsZero() {
		return nil, fmt.Errorf("%w: userID is required", shared.ErrValidation)
	}
	if tenantID.IsZero() {
		return nil, fmt.Errorf("%w: tenantID is required", shared.ErrValidation)
	}
	if roleID.IsZero() {
		return nil, fmt.Errorf("%w: roleID is required", shared.ErrValidation)
	}

	return &Membership{
		id:        shared.NewID(),
		userID:    userID,
		tenantID:  tenantID,
		roleID:    roleID,
		isDefault: isDefault,
		joinedAt:  time.Now().UTC(),
	}, nil
}

// ReconstituteMembership recreates a Membership from persistence.
func ReconstituteMembership(id, userID, tenantID, roleID shared.ID, isDefault bool, joinedAt time.Time) *Membership {
	return &Membership{
		id:        id,
		userID:    userID,
		tenantID:  tenantID,
		roleID:    roleID,
		isDefault: isDefault,
		joinedAt:  joinedAt,
	}
}

// ID returns the membership ID.
func (m *Membership) ID() shared.ID { return m.id }

// UserID returns the member's user ID.
func (m *Membership) UserID() shared.ID { return m.userID }

// TenantID returns the tenant ID.
func (m *Membership) TenantID() shared.ID { return m.tenantID }

// RoleID returns the role held within this tenant.
func (m *Membership) RoleID() shared.ID { return m.roleID }

// IsDefault reports whether this tenant is the principal's default context.
func (m *Membership) IsDefault() bool { return m.isDefault }

// JoinedAt returns when the member joined.
func (m *Membership) JoinedAt() time.Time { return m.joinedAt }

// ChangeRole updates the role held within this tenant.
func (m *Membership) ChangeRole(roleID shared.ID) error {
	if roleID.IsZero() {
		return fmt.Errorf("%w: roleID is required", shared.ErrValidation)
	}
	m.roleID = roleID
	return nil
}
