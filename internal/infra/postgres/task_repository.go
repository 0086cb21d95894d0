package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/girderhq/api/pkg/domain/shared"
	"github.com/girderhq/api/pkg/domain/task"
	"github.com/girderhq/api/pkg/pagination"
)

// TaskRepository implements task.Repository using PostgreSQL.
type TaskRepository struct {
	db *DB
}

// NewTaskRepository creates a new TaskRepository.
func NewTaskRepository(db *DB) *TaskRepository {
	return &TaskRepository{db: db}
}

const taskColumns = `id, tenant_id, project_id, title, details, status, assignee_id, due_date, created_by, created_at, updated_at`

// Create persists a new task.
func (r *TaskRepository) Create(ctx context.Context, t *task.Task) error {
	query := `
		INSERT INTO tasks (` + taskColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	_, err := r.db.ExecContext(ctx, query,
		t.ID().String(),
		t.TenantID().String(),
		t.ProjectID().String(),
		t.Title(),
		t.Details(),
		t.Status().String(),
		nullID(t.AssigneeID()),
		nullTime(t.DueDate()),
		nullIDValue(t.CreatedBy()),
		t.CreatedAt(),
		t.UpdatedAt(),
	)
	if err != nil {
		if isForeignKeyViolation(err) {
			return fmt.Errorf("%w: project", shared.ErrNotFound)
		}
		return fmt.Errorf("failed to create task: %w", err)
	}

	return nil
}

// GetByID retrieves a task by ID. Tenant-blind; callers apply the scope guard.
func (r *TaskRepository) GetByID(ctx context.Context, id shared.ID) (*task.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE id = $1`

	t, err := scanTask(r.db.QueryRowContext(ctx, query, id.String()))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return t, nil
}

// List returns tasks matching the filter, with the total count.
func (r *TaskRepository) List(ctx context.Context, f task.Filter) ([]*task.Task, int64, error) {
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
	if f.AssigneeID != nil && !f.AssigneeID.IsZero() {
		args = append(args, f.AssigneeID.String())
		where = append(where, fmt.Sprintf("assignee_id = $%d", len(args)))
	}
	if f.DueBefore != nil {
		args = append(args, *f.DueBefore)
		where = append(where, fmt.Sprintf("due_date <= $%d", len(args)))
	}

	whereClause := strings.Join(where, " AND ")

	var total int64
	countQuery := `SELECT COUNT(*) FROM tasks WHERE ` + whereClause
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count tasks: %w", err)
	}

	page := pagination.Normalize(f.Page, f.PerPage)
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE ` + whereClause +
		fmt.Sprintf(" ORDER BY created_at DESC LIMIT %d OFFSET %d", page.Limit(), page.Offset())

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query tasks: %w", err)
	}
	defer rows.Close()

	var tasks []*task.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, 0, err
		}
		tasks = append(tasks, t)
	}

	return tasks, total, rows.Err()
}

// Update updates an existing task.
func (r *TaskRepository) Update(ctx context.Context, t *task.Task) error {
	query := `
		UPDATE tasks
		SET title = $2, details = $3, status = $4, assignee_id = $5, due_date = $6, updated_at = $7
		WHERE id = $1
	`

	result, err := r.db.ExecContext(ctx, query,
		t.ID().String(),
		t.Title(),
		t.Details(),
		t.Status().String(),
		nullID(t.AssigneeID()),
		nullTime(t.DueDate()),
		t.UpdatedAt(),
	)
	if err != nil {
		return fmt.Errorf("failed to update task: %w", err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return shared.ErrNotFound
	}

	return nil
}

// Delete removes a task.
func (r *TaskRepository) Delete(ctx context.Context, id shared.ID) error {
	query := `DELETE FROM tasks WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query, id.String())
	if err != nil {
		return fmt.Errorf("failed to delete task: %w", err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return shared.ErrNotFound
	}

	return nil
}

// ListDueSoon returns open tasks across all tenants whose due date falls
// within the window. Only assigned tasks are returned; unassigned tasks have
// nobody to remind.
func (r *TaskRepository) ListDueSoon(ctx context.Context, within time.Duration) ([]*task.Task, error) {
	query := `
		SELECT ` + taskColumns + `
		FROM tasks
		WHERE status NOT IN ('done')
		  AND assignee_id IS NOT NULL
		  AND due_date IS NOT NULL
		  AND due_date BETWEEN NOW() AND NOW() + $1::interval
		ORDER BY due_date
	`

	rows, err := r.db.QueryContext(ctx, query, fmt.Sprintf("%d seconds", int(within.Seconds())))
	if err != nil {
		return nil, fmt.Errorf("failed to query due tasks: %w", err)
	}
	defer rows.Close()

	var tasks []*task.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}

	return tasks, rows.Err()
}

func scanTask(s rowScanner) (*task.Task, error) {
	var (
		idStr        string
		tenantIDStr  string
		projectIDStr string
		title        string
		details      string
		status       string
		assigneeID   sql.NullString
		dueDate      sql.NullTime
		createdBy    sql.NullString
		createdAt    sql.NullTime
		updatedAt    sql.NullTime
	)

	if err := s.Scan(&idStr, &tenantIDStr, &projectIDStr, &title, &details, &status,
		&assigneeID, &dueDate, &createdBy, &createdAt, &updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan task: %w", err)
	}

	id, err := shared.IDFromString(idStr)
	if err != nil {
		return nil, fmt.Errorf("invalid task id: %w", err)
	}
	tenantID, err := shared.IDFromString(tenantIDStr)
	if err != nil {
		return nil, fmt.Errorf("invalid tenant id: %w", err)
	}
	projectID, err := shared.IDFromString(projectIDStr)
	if err != nil {
		return nil, fmt.Errorf("invalid project id: %w", err)
	}

	return task.Reconstitute(
		id,
		tenantID,
		projectID,
		title,
		details,
		task.Status(status),
		parseNullID(assigneeID),
		nullTimeValue(dueDate),
		idOrZero(parseNullID(createdBy)),
		createdAt.Time,
		updatedAt.Time,
	), nil
}
