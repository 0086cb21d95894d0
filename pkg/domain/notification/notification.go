// Package notification defines in-app notifications delivered to members.
// Rows are written by the background worker, never inline in request
// handlers.
package notification

import (
	"context"
	"fmt"
	"time"

	"github.com/girderhq/api/pkg/domain/shared"
)

// Kind classifies what triggered the notification.
type Kind string

const (
	KindTaskAssigned Kind = "task.assigned"
	KindTaskDueSoon  Kind = "task.due_soon"
	KindRFIAnswered  Kind = "rfi.answered"
)

// Notification is a tenant-scoped message addressed to one user.
type Notification struct {
	id        shared.ID
	tenantID  shared.ID
	userID    shared.ID
	kind      Kind
	subject   string
	body      string
	readAt    *time.Time
	createdAt time.Time
}

// New creates a Notification.
func New(tenantID, userID shared.ID, kind Kind, subject, body string) (*Notification, error) {
	if tenantID.IsZero() {
		return nil, fmt.Errorf("%w: tenantID is required", shared.ErrValidation)
	}
	if userID.IsZero() {
		return nil, fmt.Errorf("%w: userID is required", shared.ErrValidation)
	}

	return &Notification{
		id:        shared.NewID(),
		tenantID:  tenantID,
		userID:    userID,
		kind:      kind,
		subject:   subject,
		body:      body,
		createdAt: time.Now().UTC(),
	}, nil
}

// Reconstitute recreates a Notification from persistence.
func Reconstitute(id, tenantID, userID shared.ID, kind Kind, subject, body string, readAt *time.Time, createdAt time.Time) *Notification {
	return &Notification{
		id:        id,
		tenantID:  tenantID,
		userID:    userID,
		kind:      kind,
		subject:   subject,
		body:      body,
		readAt:    readAt,
		createdAt: createdAt,
	}
}

func (n *Notification) ID() shared.ID        { return n.id }
func (n *Notification) TenantID() shared.ID  { return n.tenantID }
func (n *Notification) UserID() shared.ID    { return n.userID }
func (n *Notification) Kind() Kind           { return n.kind }
func (n *Notification) Subject() string      { return n.subject }
func (n *Notification) Body() string         { return n.body }
func (n *Notification) ReadAt() *time.Time   { return n.readAt }
func (n *Notification) CreatedAt() time.Time { return n.createdAt }

// MarkRead stamps the read timestamp.
func (n *Notification) MarkRead() {
	if n.readAt == nil {
		now := time.Now().UTC()
		n.readAt = &now
	}
}

// Repository defines persistence operations for notifications.
type Repository interface {
	Create(ctx context.Context, n *Notification) error
	GetByID(ctx context.Context, id shared.ID) (*Notification, error)
	ListForUser(ctx context.Context, tenantID, userID shared.ID, unreadOnly bool, page, perPage int) ([]*Notification, int64, error)
	MarkRead(ctx context.Context, id shared.ID) error
}
