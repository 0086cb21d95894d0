// Package task defines project tasks.
package task

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/girderhq/api/pkg/domain/shared"
)

// Status represents the lifecycle state of a task.
type Status string

const (
	StatusOpen       Status = "open"
	StatusInProgress Status = "in_progress"
	StatusBlocked    Status = "blocked"
	StatusDone       Status = "done"
)

// IsValid checks if the status is valid.
func (s Status) IsValid() bool {
	switch s {
	case StatusOpen, StatusInProgress, StatusBlocked, StatusDone:
		return true
	}
	return false
}

// String returns the string representation of the status.
func (s Status) String() string { return string(s) }

// Task is a unit of work on a project. It carries its own tenant id so the
// scope guard can run without loading the parent project.
type Task struct {
	id         shared.ID
	tenantID   shared.ID
	projectID  shared.ID
	title      string
	details    string
	status     Status
	assigneeID *shared.ID
	dueDate    *time.Time
	createdBy  shared.ID
	createdAt  time.Time
	updatedAt  time.Time
}

// New creates a new open Task stamped with the given tenant.
func New(tenantID, projectID shared.ID, title, details string, dueDate *time.Time, createdBy shared.ID) (*Task, error) {
	if tenantID.IsZero() {
		return nil, fmt.Errorf("%w: tenantID is required", shared.ErrValidation)
	}
	if projectID.IsZero() {
		return nil, fmt.Errorf("%w: projectID is required", shared.ErrValidation)
	}
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, fmt.Errorf("%w: title is required", shared.ErrValidation)
	}

	now := time.Now().UTC()
	return &Task{
		id:        shared.NewID(),
		tenantID:  tenantID,
		projectID: projectID,
		title:     title,
		details:   details,
		status:    StatusOpen,
		dueDate:   dueDate,
		createdBy: createdBy,
		createdAt: now,
		updatedAt: now,
	}, nil
}

// Reconstitute recreates a Task from persistence.
func Reconstitute(id, tenantID, projectID shared.ID, title, details string, status Status, assigneeID *shared.ID, dueDate *time.Time, createdBy shared.ID, createdAt, updatedAt time.Time) *Task {
	return &Task{
		id:         id,
		tenantID:   tenantID,
		projectID:  projectID,
		title:      title,
		details:    details,
		status:     status,
		assigneeID: assigneeID,
		dueDate:    dueDate,
		createdBy:  createdBy,
		createdAt:  createdAt,
		updatedAt:  updatedAt,
	}
}

func (t *Task) ID() shared.ID          { return t.id }
func (t *Task) TenantID() shared.ID    { return t.tenantID }
func (t *Task) ProjectID() shared.ID   { return t.projectID }
func (t *Task) Title() string          { return t.title }
func (t *Task) Details() string        { return t.details }
func (t *Task) Status() Status         { return t.status }
func (t *Task) AssigneeID() *shared.ID { return t.assigneeID }
func (t *Task) DueDate() *time.Time    { return t.dueDate }
func (t *Task) CreatedBy() shared.ID   { return t.createdBy }
func (t *Task) CreatedAt() time.Time   { return t.createdAt }
func (t *Task) UpdatedAt() time.Time   { return t.updatedAt }

// Assign sets the assignee.
func (t *Task) Assign(userID shared.ID) error {
	if userID.IsZero() {
		return fmt.Errorf("%w: assignee is required", shared.ErrValidation)
	}
	t.assigneeID = &userID
	t.updatedAt = time.Now().UTC()
	return nil
}

// Update applies field changes; nil pointers leave fields untouched.
func (t *Task) Update(title, details *string, status *Status, dueDate *time.Time) error {
	if title != nil {
		trimmed := strings.TrimSpace(*title)
		if trimmed == "" {
			return fmt.Errorf("%w: title is required", shared.ErrValidation)
		}
		t.title = trimmed
	}
	if details != nil {
		t.details = *details
	}
	if status != nil {
		if !status.IsValid() {
			return fmt.Errorf("%w: invalid status %q", shared.ErrValidation, *status)
		}
		t.status = *status
	}
	if dueDate != nil {
		t.dueDate = dueDate
	}
	t.updatedAt = time.Now().UTC()
	return nil
}

// Filter narrows task list queries.
type Filter struct {
	TenantID   shared.ID
	ProjectID  shared.ID
	Status     string
	AssigneeID *shared.ID
	DueBefore  *time.Time
	Page       int
	PerPage    int
}

// Repository defines persistence operations for tasks.
type Repository interface {
	Create(ctx context.Context, t *Task) error
	GetByID(ctx context.Context, id shared.ID) (*Task, error)
	List(ctx context.Context, f Filter) ([]*Task, int64, error)
	Update(ctx context.Context, t *Task) error
	Delete(ctx context.Context, id shared.ID) error

	// ListDueSoon returns open tasks across all tenants whose due date falls
	// within the window. Consumed by the reminder scheduler, which runs
	// outside the request gate.
	ListDueSoon(ctx context.Context, within time.Duration) ([]*Task, error)
}
