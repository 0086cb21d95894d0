// Package tenant defines the tenant aggregate: the isolation boundary every
// domain entity belongs to.
package tenant

import (
	"fmt"
	"strings"
	"time"

	"github.com/girderhq/api/pkg/domain/shared"
)

// Tenant represents an isolation boundary. Domain entities carry a tenant id
// and are visible only to principals operating within that tenant context.
type Tenant struct {
	id        shared.ID
	name      string
	slug      string
	active    bool
	createdAt time.Time
	updatedAt time.Time
}

// New creates a new active Tenant.
func New(name, slug string) (*Tenant, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", shared.ErrValidation)
	}
	if slug == "" {
		return nil, fmt.Errorf("%w: slug is required", shared.ErrValidation)
	}

	now := time.Now().UTC()
	return &Tenant{
		id:        shared.NewID(),
		name:      name,
		slug:      slug,
		active:    true,
		createdAt: now,
		updatedAt: now,
	}, nil
}

// Reconstitute recreates a Tenant from persistence.
func Reconstitute(id shared.ID, name, slug string, active bool, createdAt, updatedAt time.Time) *Tenant {
	return &Tenant{
		id:        id,
		name:      name,
		slug:      slug,
		active:    active,
		createdAt: createdAt,
		updatedAt: updatedAt,
	}
}

// ID returns the tenant ID.
func (t *Tenant) ID() shared.ID { return t.id }

// Name returns the tenant name.
func (t *Tenant) Name() string { return t.name }

// Slug returns the URL-safe tenant identifier.
func (t *Tenant) Slug() string { return t.slug }

// IsActive reports whether the tenant is active. Inactive tenants reject all
// requests at the resolver stage.
func (t *Tenant) IsActive() bool { return t.active }

// CreatedAt returns the creation timestamp.
func (t *Tenant) CreatedAt() time.Time { return t.createdAt }

// UpdatedAt returns the last update timestamp.
func (t *Tenant) UpdatedAt() time.Time { return t.updatedAt }

// Rename updates the tenant display name.
func (t *Tenant) Rename(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("%w: name is required", shared.ErrValidation)
	}
	t.name = name
	t.updatedAt = time.Now().UTC()
	return nil
}

// Deactivate marks the tenant inactive.
func (t *Tenant) Deactivate() {
	t.active = false
	t.updatedAt = time.Now().UTC()
}
