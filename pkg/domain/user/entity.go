// Package user defines the authenticated principal.
package user

import (
	"fmt"
	"strings"
	"time"

	"github.com/girderhq/api/pkg/domain/shared"
)

// User represents an authenticated actor. TenantID is the legacy home-tenant
// column: it is honored by the tenant resolver only when the user has zero
// membership rows, as a migration-path fallback.
type User struct {
	id           shared.ID
	email        string
	name         string
	passwordHash string
	tenantID     shared.ID
	active       bool
	createdAt    time.Time
	updatedAt    time.Time
}

// New creates a new active User.
func New(email, name, passwordHash string) (*User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return nil, fmt.Errorf("%w: email is required", shared.ErrValidation)
	}
	if passwordHash == "" {
		return nil, fmt.Errorf("%w: password hash is required", shared.ErrValidation)
	}

	now := time.Now().UTC()
	return &User{
		id:           shared.NewID(),
		email:        email,
		name:         name,
		passwordHash: passwordHash,
		active:       true,
		createdAt:    now,
		updatedAt:    now,
	}, nil
}

// Reconstitute recreates a User from persistence.
func Reconstitute(id shared.ID, email, name, passwordHash string, tenantID shared.ID, active bool, createdAt, updatedAt time.Time) *User {
	return &User{
		id:           id,
		email:        email,
		name:         name,
		passwordHash: passwordHash,
		tenantID:     tenantID,
		active:       active,
		createdAt:    createdAt,
		updatedAt:    updatedAt,
	}
}

// ID returns the user ID.
func (u *User) ID() shared.ID { return u.id }

// Email returns the user's email address.
func (u *User) Email() string { return u.email }

// Name returns the user's display name.
func (u *User) Name() string { return u.name }

// PasswordHash returns the bcrypt password hash.
func (u *User) PasswordHash() string { return u.passwordHash }

// TenantID returns the legacy home tenant id. Zero for users created after
// membership rows became mandatory.
func (u *User) TenantID() shared.ID { return u.tenantID }

// IsActive reports whether the account is active.
func (u *User) IsActive() bool { return u.active }

// CreatedAt returns the creation timestamp.
func (u *User) CreatedAt() time.Time { return u.createdAt }

// UpdatedAt returns the last update timestamp.
func (u *User) UpdatedAt() time.Time { return u.updatedAt }

// SetLegacyTenant sets the legacy home-tenant column.
func (u *User) SetLegacyTenant(tenantID shared.ID) {
	u.tenantID = tenantID
	u.updatedAt = time.Now().UTC()
}

// Deactivate marks the account inactive.
func (u *User) Deactivate() {
	u.active = false
	u.updatedAt = time.Now().UTC()
}
