// Package rfi defines requests for information raised against a project.
package rfi

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/girderhq/api/pkg/domain/shared"
)

// Status represents the lifecycle state of an RFI.
type Status string

const (
	StatusOpen     Status = "open"
	StatusAnswered Status = "answered"
	StatusClosed   Status = "closed"
)

// IsValid checks if the status is valid.
func (s Status) IsValid() bool {
	switch s {
	case StatusOpen, StatusAnswered, StatusClosed:
		return true
	}
	return false
}

// String returns the string representation of the status.
func (s Status) String() string { return string(s) }

// RFI is a formal question raised against a project.
type RFI struct {
	id          shared.ID
	tenantID    shared.ID
	projectID   shared.ID
	subject     string
	question    string
	answer      string
	status      Status
	raisedBy    shared.ID
	answeredBy  *shared.ID
	answeredAt  *time.Time
	createdAt   time.Time
	updatedAt   time.Time
}

// New creates a new open RFI stamped with the given tenant.
func New(tenantID, projectID shared.ID, subject, question string, raisedBy shared.ID) (*RFI, error) {
	if tenantID.IsZero() {
		return nil, fmt.Errorf("%w: tenantID is required", shared.ErrValidation)
	}
	if projectID.IsZero() {
		return nil, fmt.Errorf("%w: projectID is required", shared.ErrValidation)
	}
	subject = strings.TrimSpace(subject)
	if subject == "" {
		return nil, fmt.Errorf("%w: subject is required", shared.ErrValidation)
	}
	if strings.TrimSpace(question) == "" {
		return nil, fmt.Errorf("%w: question is required", shared.ErrValidation)
	}

	now := time.Now().UTC()
	return &RFI{
		id:        shared.NewID(),
		tenantID:  tenantID,
		projectID: projectID,
		subject:   subject,
		question:  question,
		status:    StatusOpen,
		raisedBy:  raisedBy,
		createdAt: now,
		updatedAt: now,
	}, nil
}

// Reconstitute recreates an RFI from persistence.
func Reconstitute(id, tenantID, projectID shared.ID, subject, question, answer string, status Status, raisedBy shared.ID, answeredBy *shared.ID, answeredAt *time.Time, createdAt, updatedAt time.Time) *RFI {
	return &RFI{
		id:         id,
		tenantID:   tenantID,
		projectID:  projectID,
		subject:    subject,
		question:   question,
		answer:     answer,
		status:     status,
		raisedBy:   raisedBy,
		answeredBy: answeredBy,
		answeredAt: answeredAt,
		createdAt:  createdAt,
		updatedAt:  updatedAt,
	}
}

func (r *RFI) ID() shared.ID          { return r.id }
func (r *RFI) TenantID() shared.ID    { return r.tenantID }
func (r *RFI) ProjectID() shared.ID   { return r.projectID }
func (r *RFI) Subject() string        { return r.subject }
func (r *RFI) Question() string       { return r.question }
func (r *RFI) Answer() string         { return r.answer }
func (r *RFI) Status() Status         { return r.status }
func (r *RFI) RaisedBy() shared.ID    { return r.raisedBy }
func (r *RFI) AnsweredBy() *shared.ID { return r.answeredBy }
func (r *RFI) AnsweredAt() *time.Time { return r.answeredAt }
func (r *RFI) CreatedAt() time.Time   { return r.createdAt }
func (r *RFI) UpdatedAt() time.Time   { return r.updatedAt }

// Respond records an answer and moves the RFI to answered.
func (r *RFI) Respond(answer string, answeredBy shared.ID) error {
	if strings.TrimSpace(answer) == "" {
		return fmt.Errorf("%w: answer is required", shared.ErrValidation)
	}
	if r.status == StatusClosed {
		return fmt.Errorf("%w: rfi is closed", shared.ErrValidation)
	}
	now := time.Now().UTC()
	r.answer = answer
	r.answeredBy = &answeredBy
	r.answeredAt = &now
	r.status = StatusAnswered
	r.updatedAt = now
	return nil
}

// Filter narrows RFI list queries.
type Filter struct {
	TenantID  shared.ID
	ProjectID shared.ID
	Status    string
	Page      int
	PerPage   int
}

// Repository defines persistence operations for RFIs.
type Repository interface {
	Create(ctx context.Context, r *RFI) error
	GetByID(ctx context.Context, id shared.ID) (*RFI, error)
	List(ctx context.Context, f Filter) ([]*RFI, int64, error)
	Update(ctx context.Context, r *RFI) error
}
