package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/girderhq/api/pkg/domain/project"
	"github.com/girderhq/api/pkg/domain/shared"
	"github.com/girderhq/api/pkg/pagination"
)

// ProjectRepository implements project.Repository using PostgreSQL.
type ProjectRepository struct {
	db *DB
}

// NewProjectRepository creates a new ProjectRepository.
func NewProjectRepository(db *DB) *ProjectRepository {
	return &ProjectRepository{db: db}
}

const projectColumns = `id, tenant_id, name, code, description, status, created_by, created_at, updated_at`

// Create persists a new project.
func (r *ProjectRepository) Create(ctx context.Context, p *project.Project) error {
	query := `
		INSERT INTO projects (` + projectColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err := r.db.ExecContext(ctx, query,
		p.ID().String(),
		p.TenantID().String(),
		p.Name(),
		nullString(p.Code()),
		p.Description(),
		p.Status().String(),
		nullIDValue(p.CreatedBy()),
		p.CreatedAt(),
		p.UpdatedAt(),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: project with code %s", shared.ErrAlreadyExists, p.Code())
		}
		return fmt.Errorf("failed to create project: %w", err)
	}

	return nil
}

// GetByID retrieves a project by ID. The lookup is deliberately tenant-blind:
// the caller applies the scope guard to the loaded entity.
func (r *ProjectRepository) GetByID(ctx context.Context, id shared.ID) (*project.Project, error) {
	query := `SELECT ` + projectColumns + ` FROM projects WHERE id = $1`

	p, err := scanProject(r.db.QueryRowContext(ctx, query, id.String()))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return p, nil
}

// List returns projects matching the filter, with the total count.
func (r *ProjectRepository) List(ctx context.Context, f project.Filter) ([]*project.Project, int64, error) {
	where := []string{"tenant_id = $1"}
	args := []any{f.TenantID.String()}

	if f.Status != "" {
		args = append(args, f.Status)
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	if f.Search != "" {
		args = append(args, "%"+f.Search+"%")
		where = append(where, fmt.Sprintf("(name ILIKE $%d OR code ILIKE $%d)", len(args), len(args)))
	}

	whereClause := strings.Join(where, " AND ")

	var total int64
	countQuery := `SELECT COUNT(*) FROM projects WHERE ` + whereClause
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count projects: %w", err)
	}

	page := pagination.Normalize(f.Page, f.PerPage)
	query := `SELECT ` + projectColumns + ` FROM projects WHERE ` + whereClause +
		fmt.Sprintf(" ORDER BY created_at DESC LIMIT %d OFFSET %d", page.Limit(), page.Offset())

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query projects: %w", err)
	}
	defer rows.Close()

	var projects []*project.Project
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, 0, err
		}
		projects = append(projects, p)
	}

	return projects, total, rows.Err()
}

// Update updates an existing project.
func (r *ProjectRepository) Update(ctx context.Context, p *project.Project) error {
	query := `
		UPDATE projects
		SET name = $2, description = $3, status = $4, updated_at = $5
		WHERE id = $1
	`

	result, err := r.db.ExecContext(ctx, query,
		p.ID().String(),
		p.Name(),
		p.Description(),
		p.Status().String(),
		p.UpdatedAt(),
	)
	if err != nil {
		return fmt.Errorf("failed to update project: %w", err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return shared.ErrNotFound
	}

	return nil
}

// Delete removes a project and, via cascades, its tasks and RFIs.
func (r *ProjectRepository) Delete(ctx context.Context, id shared.ID) error {
	query := `DELETE FROM projects WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query, id.String())
	if err != nil {
		return fmt.Errorf("failed to delete project: %w", err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return shared.ErrNotFound
	}

	return nil
}

// TaskCounts returns open/total task counts for the stats stream.
func (r *ProjectRepository) TaskCounts(ctx context.Context, projectID shared.ID) (int, int, error) {
	query := `
		SELECT COUNT(*) FILTER (WHERE status <> 'done'), COUNT(*)
		FROM tasks
		WHERE project_id = $1
	`

	var open, total int
	if err := r.db.QueryRowContext(ctx, query, projectID.String()).Scan(&open, &total); err != nil {
		return 0, 0, fmt.Errorf("failed to count tasks: %w", err)
	}

	return open, total, nil
}

func scanProject(s rowScanner) (*project.Project, error) {
	var (
		idStr       string
		tenantIDStr string
		name        string
		code        sql.NullString
		description string
		status      string
		createdBy   sql.NullString
		createdAt   sql.NullTime
		updatedAt   sql.NullTime
	)

	if err := s.Scan(&idStr, &tenantIDStr, &name, &code, &description, &status, &createdBy, &createdAt, &updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan project: %w", err)
	}

	id, err := shared.IDFromString(idStr)
	if err != nil {
		return nil, fmt.Errorf("invalid project id: %w", err)
	}
	tenantID, err := shared.IDFromString(tenantIDStr)
	if err != nil {
		return nil, fmt.Errorf("invalid tenant id: %w", err)
	}

	return project.Reconstitute(
		id,
		tenantID,
		name,
		nullStringValue(code),
		description,
		project.Status(status),
		idOrZero(parseNullID(createdBy)),
		createdAt.Time,
		updatedAt.Time,
	), nil
}
