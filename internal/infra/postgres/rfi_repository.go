package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/girderhq/api/pkg/domain/rfi"
	"github.com/girderhq/api/pkg/domain/shared"
	"github.com/girderhq/api/pkg/pagination"
)

// RFIRepository implements rfi.Repository using PostgreSQL.
type RFIRepository struct {
	db *DB
}

// NewRFIRepository creates a new RFIRepository.
func NewRFIRepository(db *DB) *RFIRepository {
	return &RFIRepository{db: db}
}

const rfiColumns = `id, tenant_id, project_id, subject, question, answer, status, raised_by, answered_by, answered_at, created_at, updated_at`

// Create persists a new RFI.
func (r *RFIRepository) Create(ctx context.Context, q *rfi.RFI) error {
	query := `
		INSERT INTO rfis (` + rfiColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`

	_, err := r.db.ExecContext(ctx, query,
		q.ID().String(),
		q.TenantID().String(),
		q.ProjectID().String(),
		q.Subject(),
		q.Question(),
		nullString(q.Answer()),
		q.Status().String(),
		nullIDValue(q.RaisedBy()),
		nullID(q.AnsweredBy()),
		nullTime(q.AnsweredAt()),
		q.CreatedAt(),
		q.UpdatedAt(),
	)
	if err != nil {
		if isForeignKeyViolation(err) {
			return fmt.Errorf("%w: project", shared.ErrNotFound)
		}
		return fmt.Errorf("failed to create rfi: %w", err)
	}

	return nil
}

// GetByID retrieves an RFI by ID. Tenant-blind; callers apply the scope guard.
func (r *RFIRepository) GetByID(ctx context.Context, id shared.ID) (*rfi.RFI, error) {
	query := `SELECT ` + rfiColumns + ` FROM rfis WHERE id = $1`

	q, err := scanRFI(r.db.QueryRowContext(ctx, query, id.String()))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return q, nil
}

// List returns RFIs matching the filter, with the total count.
func (r *RFIRepository) List(ctx context.Context, f rfi.Filter) ([]*rfi.RFI, int64, error) {
	where := []string{"tenant_id = $1"}
	args := []any{f.TenantID.String()}

	if !f.ProjectID.IsZero() {
		args = append(args, f.ProjectID.String())
		where = append(where, fmt.Sprintf("project_id = $%d", len(args)))
	}
	if f.Status != "" {
		args = append(args, f.Status)
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}

	whereClause := strings.Join(where, " AND ")

	var total int64
	countQuery := `SELECT COUNT(*) FROM rfis WHERE ` + whereClause
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count rfis: %w", err)
	}

	page := pagination.Normalize(f.Page, f.PerPage)
	query := `SELECT ` + rfiColumns + ` FROM rfis WHERE ` + whereClause +
		fmt.Sprintf(" ORDER BY created_at DESC LIMIT %d OFFSET %d", page.Limit(), page.Offset())

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query rfis: %w", err)
	}
	defer rows.Close()

	var rfis []*rfi.RFI
	for rows.Next() {
		q, err := scanRFI(rows)
		if err != nil {
			return nil, 0, err
		}
		rfis = append(rfis, q)
	}

	return rfis, total, rows.Err()
}

// Update updates an existing RFI.
func (r *RFIRepository) Update(ctx context.Context, q *rfi.RFI) error {
	query := `
		UPDATE rfis
		SET subject = $2, question = $3, answer = $4, status = $5, answered_by = $6, answered_at = $7, updated_at = $8
		WHERE id = $1
	`

	result, err := r.db.ExecContext(ctx, query,
		q.ID().String(),
		q.Subject(),
		q.Question(),
		nullString(q.Answer()),
		q.Status().String(),
		nullID(q.AnsweredBy()),
		nullTime(q.AnsweredAt()),
		q.UpdatedAt(),
	)
	if err != nil {
		return fmt.Errorf("failed to update rfi: %w", err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return shared.ErrNotFound
	}

	return nil
}

func scanRFI(s rowScanner) (*rfi.RFI, error) {
	var (
		idStr        string
		tenantIDStr  string
		projectIDStr string
		subject      string
		question     string
		answer       sql.NullString
		status       string
		raisedBy     sql.NullString
		answeredBy   sql.NullString
		answeredAt   sql.NullTime
		createdAt    sql.NullTime
		updatedAt    sql.NullTime
	)

	if err := s.Scan(&idStr, &tenantIDStr, &projectIDStr, &subject, &question, &answer,
		&status, &raisedBy, &answeredBy, &answeredAt, &createdAt, &updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan rfi: %w", err)
	}

	id, err := shared.IDFromString(idStr)
	if err != nil {
		return nil, fmt.Errorf("invalid rfi id: %w", err)
	}
	tenantID, err := shared.IDFromString(tenantIDStr)
	if err != nil {
		return nil, fmt.Errorf("invalid tenant id: %w", err)
	}
	projectID, err := shared.IDFromString(projectIDStr)
	if err != nil {
		return nil, fmt.Errorf("invalid project id: %w", err)
	}

	return rfi.Reconstitute(
		id,
		tenantID,
		projectID,
		subject,
		question,
		nullStringValue(answer),
		rfi.Status(status),
		idOrZero(parseNullID(raisedBy)),
		parseNullID(answeredBy),
		nullTimeValue(answeredAt),
		createdAt.Time,
		updatedAt.Time,
	), nil
}
