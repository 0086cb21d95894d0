package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/girderhq/api/pkg/domain/contract"
	"github.com/girderhq/api/pkg/domain/shared"
	"github.com/girderhq/api/pkg/pagination"
)

// ContractRepository implements contract.Repository using PostgreSQL.
type ContractRepository struct {
	db *DB
}

// NewContractRepository creates a new ContractRepository.
func NewContractRepository(db *DB) *ContractRepository {
	return &ContractRepository{db: db}
}

const contractColumns = `id, tenant_id, project_id, title, vendor, value_cents, status, created_by, created_at, updated_at`

// Create persists a new contract.
func (r *ContractRepository) Create(ctx context.Context, c *contract.Contract) error {
	query := `
		INSERT INTO contracts (` + contractColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err := r.db.ExecContext(ctx, query,
		c.ID().String(),
		c.TenantID().String(),
		nullID(c.ProjectID()),
		c.Title(),
		c.Vendor(),
		c.ValueCents(),
		c.Status().String(),
		nullIDValue(c.CreatedBy()),
		c.CreatedAt(),
		c.UpdatedAt(),
	)
	if err != nil {
		if isForeignKeyViolation(err) {
			return fmt.Errorf("%w: project", shared.ErrNotFound)
		}
		return fmt.Errorf("failed to create contract: %w", err)
	}

	return nil
}

// GetByID retrieves a contract by ID. Tenant-blind; callers apply the scope guard.
func (r *ContractRepository) GetByID(ctx context.Context, id shared.ID) (*contract.Contract, error) {
	query := `SELECT ` + contractColumns + ` FROM contracts WHERE id = $1`

	c, err := scanContract(r.db.QueryRowContext(ctx, query, id.String()))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return c, nil
}

// List returns contracts matching the filter, with the total count.
func (r *ContractRepository) List(ctx context.Context, f contract.Filter) ([]*contract.Contract, int64, error) {
	where := []string{"tenant_id = $1"}
	args := []any{f.TenantID.String()}

	if f.ProjectID != nil && !f.ProjectID.IsZero() {
		args = append(args, f.ProjectID.String())
		where = append(where, fmt.Sprintf("project_id = $%d", len(args)))
	}
	if f.Status != "" {
		args = append(args, f.Status)
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}

	whereClause := strings.Join(where, " AND ")

	var total int64
	countQuery := `SELECT COUNT(*) FROM contracts WHERE ` + whereClause
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count contracts: %w", err)
	}

	page := pagination.Normalize(f.Page, f.PerPage)
	query := `SELECT ` + contractColumns + ` FROM contracts WHERE ` + whereClause +
		fmt.Sprintf(" ORDER BY created_at DESC LIMIT %d OFFSET %d", page.Limit(), page.Offset())

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query contracts: %w", err)
	}
	defer rows.Close()

	var contracts []*contract.Contract
	for rows.Next() {
		c, err := scanContract(rows)
		if err != nil {
			return nil, 0, err
		}
		contracts = append(contracts, c)
	}

	return contracts, total, rows.Err()
}

// Update updates an existing contract.
func (r *ContractRepository) Update(ctx context.Context, c *contract.Contract) error {
	query := `
		UPDATE contracts
		SET title = $2, vendor = $3, value_cents = $4, status = $5, updated_at = $6
		WHERE id = $1
	`

	result, err := r.db.ExecContext(ctx, query,
		c.ID().String(),
		c.Title(),
		c.Vendor(),
		c.ValueCents(),
		c.Status().String(),
		c.UpdatedAt(),
	)
	if err != nil {
		return fmt.Errorf("failed to update contract: %w", err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return shared.ErrNotFound
	}

	return nil
}

// AddPayment records a payment against a contract.
func (r *ContractRepository) AddPayment(ctx context.Context, p *contract.Payment) error {
	query := `
		INSERT INTO contract_payments (id, tenant_id, contract_id, amount_cents, reference, paid_at, recorded_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := r.db.ExecContext(ctx, query,
		p.ID().String(),
		p.TenantID().String(),
		p.ContractID().String(),
		p.AmountCents(),
		nullString(p.Reference()),
		p.PaidAt(),
		nullIDValue(p.RecordedBy()),
		p.CreatedAt(),
	)
	if err != nil {
		if isForeignKeyViolation(err) {
			return fmt.Errorf("%w: contract", shared.ErrNotFound)
		}
		return fmt.Errorf("failed to add payment: %w", err)
	}

	return nil
}

// ListPayments returns all payments recorded against a contract.
func (r *ContractRepository) ListPayments(ctx context.Context, contractID shared.ID) ([]*contract.Payment, error) {
	query := `
		SELECT id, tenant_id, contract_id, amount_cents, reference, paid_at, recorded_by, created_at
		FROM contract_payments
		WHERE contract_id = $1
		ORDER BY paid_at DESC
	`

	rows, err := r.db.QueryContext(ctx, query, contractID.String())
	if err != nil {
		return nil, fmt.Errorf("failed to query payments: %w", err)
	}
	defer rows.Close()

	var payments []*contract.Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		payments = append(payments, p)
	}

	return payments, rows.Err()
}

func scanContract(s rowScanner) (*contract.Contract, error) {
	var (
		idStr       string
		tenantIDStr string
		projectID   sql.NullString
		title       string
		vendor      string
		valueCents  int64
		status      string
		createdBy   sql.NullString
		createdAt   sql.NullTime
		updatedAt   sql.NullTime
	)

	if err := s.Scan(&idStr, &tenantIDStr, &projectID, &title, &vendor, &valueCents,
		&status, &createdBy, &createdAt, &updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan contract: %w", err)
	}

	id, err := shared.IDFromString(idStr)
	if err != nil {
		return nil, fmt.Errorf("invalid contract id: %w", err)
	}
	tenantID, err := shared.IDFromString(tenantIDStr)
	if err != nil {
		return nil, fmt.Errorf("invalid tenant id: %w", err)
	}

	return contract.Reconstitute(
		id,
		tenantID,
		parseNullID(projectID),
		title,
		vendor,
		valueCents,
		contract.Status(status),
		idOrZero(parseNullID(createdBy)),
		createdAt.Time,
		updatedAt.Time,
	), nil
}

func scanPayment(s rowScanner) (*contract.Payment, error) {
	var (
		idStr         string
		tenantIDStr   string
		contractIDStr string
		amountCents   int64
		reference     sql.NullString
		paidAt        sql.NullTime
		recordedBy    sql.NullString
		createdAt     sql.NullTime
	)

	if err := s.Scan(&idStr, &tenantIDStr, &contractIDStr, &amountCents, &reference,
		&paidAt, &recordedBy, &createdAt); err != nil {
		return nil, fmt.Errorf("failed to scan payment: %w", err)
	}

	id, err := shared.IDFromString(idStr)
	if err != nil {
		return nil, fmt.Errorf("invalid payment id: %w", err)
	}
	tenantID, err := shared.IDFromString(tenantIDStr)
	if err != nil {
		return nil, fmt.Errorf("invalid tenant id: %w", err)
	}
	contractID, err := shared.IDFromString(contractIDStr)
	if err != nil {
		return nil, fmt.Errorf("invalid contract id: %w", err)
	}

	return contract.ReconstitutePayment(
		id,
		tenantID,
		contractID,
		amountCents,
		nullStringValue(reference),
		paidAt.Time,
		idOrZero(parseNullID(recordedBy)),
		createdAt.Time,
	), nil
}
