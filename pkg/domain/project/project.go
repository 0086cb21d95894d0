// Package project defines the construction project aggregate.
package project

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/girderhq/api/pkg/domain/shared"
)

// Status represents the lifecycle state of a project.
type Status string

const (
	StatusPlanning  Status = "planning"
	StatusActive    Status = "active"
	StatusOnHold    Status = "on_hold"
	StatusCompleted Status = "completed"
)

// IsValid checks if the status is valid.
func (s Status) IsValid() bool {
	switch s {
	case StatusPlanning, StatusActive, StatusOnHold, StatusCompleted:
		return true
	}
	return false
}

// String returns the string representation of the status.
func (s Status) String() string { return string(s) }

// Project is a tenant-owned construction project; tasks and RFIs hang off it.
type Project struct {
	id          shared.ID
	tenantID    shared.ID
	name        string
	code        string
	description string
	status      Status
	createdBy   shared.ID
	createdAt   time.Time
	updatedAt   time.Time
}

// New creates a new Project stamped with the given tenant. The tenant id
// always comes from the resolved request context, never from a client
// payload.
func New(tenantID shared.ID, name, code, description string, createdBy shared.ID) (*Project, error) {
	if tenantID.IsZero() {
		return nil, fmt.Errorf("%w: tenantID is required", shared.ErrValidation)
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", shared.ErrValidation)
	}

	now := time.Now().UTC()
	return &Project{
		id:          shared.NewID(),
		tenantID:    tenantID,
		name:        name,
		code:        code,
		description: description,
		status:      StatusPlanning,
		createdBy:   createdBy,
		createdAt:   now,
		updatedAt:   now,
	}, nil
}

// Reconstitute recreates a Project from persistence.
func Reconstitute(id, tenantID shared.ID, name, code, description string, status Status, createdBy shared.ID, createdAt, updatedAt time.Time) *Project {
	return &Project{
		id:          id,
		tenantID:    tenantID,
		name:        name,
		code:        code,
		description: description,
		status:      status,
		createdBy:   createdBy,
		createdAt:   createdAt,
		updatedAt:   updatedAt,
	}
}

func (p *Project) ID() shared.ID        { return p.id }
func (p *Project) TenantID() shared.ID  { return p.tenantID }
func (p *Project) Name() string         { return p.name }
func (p *Project) Code() string         { return p.code }
func (p *Project) Description() string  { return p.description }
func (p *Project) Status() Status       { return p.status }
func (p *Project) CreatedBy() shared.ID { return p.createdBy }
func (p *Project) CreatedAt() time.Time { return p.createdAt }
func (p *Project) UpdatedAt() time.Time { return p.updatedAt }

// Update applies field changes; nil pointers leave fields untouched.
func (p *Project) Update(name, description *string, status *Status) error {
	if name != nil {
		trimmed := strings.TrimSpace(*name)
		if trimmed == "" {
			return fmt.Errorf("%w: name is required", shared.ErrValidation)
		}
		p.name = trimmed
	}
	if description != nil {
		p.description = *description
	}
	if status != nil {
		if !status.IsValid() {
			return fmt.Errorf("%w: invalid status %q", shared.ErrValidation, *status)
		}
		p.status = *status
	}
	p.updatedAt = time.Now().UTC()
	return nil
}

// Filter narrows project list queries. TenantID is mandatory: every list is
// tenant-scoped at the SQL level.
type Filter struct {
	TenantID shared.ID
	Status   string
	Search   string
	Page     int
	PerPage  int
}

// Repository defines persistence operations for projects.
type Repository interface {
	Create(ctx context.Context, p *Project) error
	GetByID(ctx context.Context, id shared.ID) (*Project, error)
	List(ctx context.Context, f Filter) ([]*Project, int64, error)
	Update(ctx context.Context, p *Project) error
	Delete(ctx context.Context, id shared.ID) error

	// TaskCounts returns open/total task counts for the stats stream.
	TaskCounts(ctx context.Context, projectID shared.ID) (open int, total int, err error)
}
