// Package contract defines contracts and their payment records. Payments are
// guarded by their own permission codes: contract.view does not grant
// contract.payment.view.
package contract

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/girderhq/api/pkg/domain/shared"
)

// Status represents the lifecycle state of a contract.
type Status string

const (
	StatusDraft      Status = "draft"
	StatusActive     Status = "active"
	StatusCompleted  Status = "completed"
	StatusTerminated Status = "terminated"
)

// IsValid checks if the status is valid.
func (s Status) IsValid() bool {
	switch s {
	case StatusDraft, StatusActive, StatusCompleted, StatusTerminated:
		return true
	}
	return false
}

// String returns the string representation of the status.
func (s Status) String() string { return string(s) }

// Contract is a tenant-owned agreement, optionally tied to a project.
type Contract struct {
	id         shared.ID
	tenantID   shared.ID
	projectID  *shared.ID
	title      string
	vendor     string
	valueCents int64
	status     Status
	createdBy  shared.ID
	createdAt  time.Time
	updatedAt  time.Time
}

// New creates a new draft Contract stamped with the given tenant.
func New(tenantID shared.ID, projectID *shared.ID, title, vendor string, valueCents int64, createdBy shared.ID) (*Contract, error) {
	if tenantID.IsZero() {
		return nil, fmt.Errorf("%w: tenantID is required", shared.ErrValidation)
	}
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, fmt.Errorf("%w: title is required", shared.ErrValidation)
	}
	if valueCents < 0 {
		return nil, fmt.Errorf("%w: value must not be negative", shared.ErrValidation)
	}

	now := time.Now().UTC()
	return &Contract{
		id:         shared.NewID(),
		tenantID:   tenantID,
		projectID:  projectID,
		title:      title,
		vendor:     vendor,
		valueCents: valueCents,
		status:     StatusDraft,
		createdBy:  createdBy,
		createdAt:  now,
		updatedAt:  now,
	}, nil
}

// Reconstitute recreates a Contract from persistence.
func Reconstitute(id, tenantID shared.ID, projectID *shared.ID, title, vendor string, valueCents int64, status Status, createdBy shared.ID, createdAt, updatedAt time.Time) *Contract {
	return &Contract{
		id:         id,
		tenantID:   tenantID,
		projectID:  projectID,
		title:      title,
		vendor:     vendor,
		valueCents: valueCents,
		status:     status,
		createdBy:  createdBy,
		createdAt:  createdAt,
		updatedAt:  updatedAt,
	}
}

func (c *Contract) ID() shared.ID         { return c.id }
func (c *Contract) TenantID() shared.ID   { return c.tenantID }
func (c *Contract) ProjectID() *shared.ID { return c.projectID }
func (c *Contract) Title() string         { return c.title }
func (c *Contract) Vendor() string        { return c.vendor }
func (c *Contract) ValueCents() int64     { return c.valueCents }
func (c *Contract) Status() Status        { return c.status }
func (c *Contract) CreatedBy() shared.ID  { return c.createdBy }
func (c *Contract) CreatedAt() time.Time  { return c.createdAt }
func (c *Contract) UpdatedAt() time.Time  { return c.updatedAt }

// Update applies field changes; nil pointers leave fields untouched.
func (c *Contract) Update(title, vendor *string, valueCents *int64, status *Status) error {
	if title != nil {
		trimmed := strings.TrimSpace(*title)
		if trimmed == "" {
			return fmt.Errorf("%w: title is required", shared.ErrValidation)
		}
		c.title = trimmed
	}
	if vendor != nil {
		c.vendor = *vendor
	}
	if valueCents != nil {
		if *valueCents < 0 {
			return fmt.Errorf("%w: value must not be negative", shared.ErrValidation)
		}
		c.valueCents = *valueCents
	}
	if status != nil {
		if !status.IsValid() {
			return fmt.Errorf("%w: invalid status %q", shared.ErrValidation, *status)
		}
		c.status = *status
	}
	c.updatedAt = time.Now().UTC()
	return nil
}

// Payment is a recorded payment against a contract. It carries the contract's
// tenant id so the scope guard can run on payments directly.
type Payment struct {
	id          shared.ID
	tenantID    shared.ID
	contractID  shared.ID
	amountCents int64
	reference   string
	paidAt      time.Time
	recordedBy  shared.ID
	createdAt   time.Time
}

// NewPayment records a payment against a contract.
func NewPayment(tenantID, contractID shared.ID, amountCents int64, reference string, paidAt time.Time, recordedBy shared.ID) (*Payment, error) {
	if tenantID.IsZero() {
		return nil, fmt.Errorf("%w: tenantID is required", shared.ErrValidation)
	}
	if contractID.IsZero() {
		return nil, fmt.Errorf("%w: contractID is required", shared.ErrValidation)
	}
	if amountCents <= 0 {
		return nil, fmt.Errorf("%w: amount must be positive", shared.ErrValidation)
	}

	return &Payment{
		id:          shared.NewID(),
		tenantID:    tenantID,
		contractID:  contractID,
		amountCents: amountCents,
		reference:   reference,
		paidAt:      paidAt,
		recordedBy:  recordedBy,
		createdAt:   time.Now().UTC(),
	}, nil
}

// ReconstitutePayment recreates a Payment from persistence.
func ReconstitutePayment(id, tenantID, contractID shared.ID, amountCents int64, reference string, paidAt time.Time, recordedBy shared.ID, createdAt time.Time) *Payment {
	return &Payment{
		id:          id,
		tenantID:    tenantID,
		contractID:  contractID,
		amountCents: amountCents,
		reference:   reference,
		paidAt:      paidAt,
		recordedBy:  recordedBy,
		createdAt:   createdAt,
	}
}

func (p *Payment) ID() shared.ID         { return p.id }
func (p *Payment) TenantID() shared.ID   { return p.tenantID }
func (p *Payment) ContractID() shared.ID { return p.contractID }
func (p *Payment) AmountCents() int64    { return p.amountCents }
func (p *Payment) Reference() string     { return p.reference }
func (p *Payment) PaidAt() time.Time     { return p.paidAt }
func (p *Payment) RecordedBy() shared.ID { return p.recordedBy }
func (p *Payment) CreatedAt() time.Time  { return p.createdAt }

// Filter narrows contract list queries.
type Filter struct {
	TenantID  shared.ID
	ProjectID *shared.ID
	Status    string
	Page      int
	PerPage   int
}

// Repository defines persistence operations for contracts and payments.
type Repository interface {
	Create(ctx context.Context, c *Contract) error
	GetByID(ctx context.Context, id shared.ID) (*Contract, error)
	List(ctx context.Context, f Filter) ([]*Contract, int64, error)
	Update(ctx context.Context, c *Contract) error

	AddPayment(ctx context.Context, p *Payment) error
	ListPayments(ctx context.Context, contractID shared.ID) ([]*Payment, error)
}
