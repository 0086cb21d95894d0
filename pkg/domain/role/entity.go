// Package role defines named bundles of permission codes.
package role

import (
	"fmt"
	"strings"
	"time"

	"github.com/girderhq/api/pkg/domain/permission"
	"github.com/girderhq/api/pkg/domain/shared"
)

// Scope determines where a role's grants apply.
type Scope string

const (
	// ScopeSystem roles grant their permissions in every tenant the holder
	// is a member of.
	ScopeSystem Scope = "system"
	// ScopeTenant roles grant their permissions only within the tenant the
	// assignment is scoped to.
	ScopeTenant Scope = "tenant"
)

// IsValid checks if the scope is valid.
func (s Scope) IsValid() bool {
	return s == ScopeSystem || s == ScopeTenant
}

// String returns the string representation of the scope.
func (s Scope) String() string {
	return string(s)
}

// Role is a named, assignable bundle of permission codes.
type Role struct {
	id          shared.ID
	name        string
	slug        string
	scope       Scope
	active      bool
	permissions []permission.Code
	createdAt   time.Time
	updatedAt   time.Time
}

// New creates a new active Role.
func New(name, slug string, scope Scope, permissions []permission.Code) (*Role, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", shared.ErrValidation)
	}
	if !scope.IsValid() {
		return nil, fmt.Errorf("%w: invalid scope %q", shared.ErrValidation, scope)
	}
	for _, code := range permissions {
		if !permission.IsKnown(code) {
			return nil, fmt.Errorf("%w: unknown permission code %q", shared.ErrValidation, code)
		}
	}

	now := time.Now().UTC()
	return &Role{
		id:          shared.NewID(),
		name:        name,
		slug:        slug,
		scope:       scope,
		active:      true,
		permissions: permissions,
		createdAt:   now,
		updatedAt:   now,
	}, nil
}

// Reconstitute recreates a Role from persistence.
func Reconstitute(id shared.ID, name, slug string, scope Scope, active bool, permissions []permission.Code, createdAt, updatedAt time.Time) *Role {
	return &Role{
		id:          id,
		name:        name,
		slug:        slug,
		scope:       scope,
		active:      active,
		permissions: permissions,
		createdAt:   createdAt,
		updatedAt:   updatedAt,
	}
}

// ID returns the role ID.
func (r *Role) ID() shared.ID { return r.id }

// Name returns the role name.
func (r *Role) Name() string { return r.name }

// Slug returns the stable role identifier used in seeds and assignments.
func (r *Role) Slug() string { return r.slug }

// Scope returns where the role's grants apply.
func (r *Role) Scope() Scope { return r.scope }

// IsActive reports whether the role is active. Inactive roles contribute no
// permissions to the effective set.
func (r *Role) IsActive() bool { return r.active }

// Permissions returns the permission codes bundled in this role.
func (r *Role) Permissions() []permission.Code { return r.permissions }

// CreatedAt returns the creation timestamp.
func (r *Role) CreatedAt() time.Time { return r.createdAt }

// UpdatedAt returns the last update timestamp.
func (r *Role) UpdatedAt() time.Time { return r.updatedAt }

// GrantPermission adds a code to the role's bundle.
func (r *Role) GrantPermission(code permission.Code) error {
	if !permission.IsKnown(code) {
		return fmt.Errorf("%w: unknown permission code %q", shared.ErrValidation, code)
	}
	for _, existing := range r.permissions {
		if existing == code {
			return nil
		}
	}
	r.permissions = append(r.permissions, code)
	r.updatedAt = time.Now().UTC()
	return nil
}

// RevokePermission removes a code from the role's bundle.
func (r *Role) RevokePermission(code permission.Code) {
	out := r.permissions[:0]
	for _, existing := range r.permissions {
		if existing != code {
			out = append(out, existing)
		}
	}
	r.permissions = out
	r.updatedAt = time.Now().UTC()
}
