package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/girderhq/api/pkg/domain/permission"
	"github.com/girderhq/api/pkg/domain/role"
	"github.com/girderhq/api/pkg/domain/shared"
)

// RoleRepository implements role.Repository using PostgreSQL.
type RoleRepository struct {
	db *DB
}

// NewRoleRepository creates a new RoleRepository.
func NewRoleRepository(db *DB) *RoleRepository {
	return &RoleRepository{db: db}
}

// SeedPermissions upserts the permission catalog. Existing rows keep their
// id; descriptions are refreshed so catalog renames propagate.
func (r *RoleRepository) SeedPermissions(ctx context.Context, entries map[permission.Code]string) error {
	query := `
		INSERT INTO permissions (id, code, description)
		VALUES (gen_random_uuid(), $1, $2)
		ON CONFLICT (code) DO UPDATE SET description = EXCLUDED.description
	`

	return r.db.Transaction(ctx, func(tx *sql.Tx) error {
		for code, description := range entries {
			if _, err := tx.ExecContext(ctx, query, code.String(), description); err != nil {
				return fmt.Errorf("failed to seed permission %s: %w", code, err)
			}
		}
		return nil
	})
}

// Create persists a new role together with its permission bundle.
func (r *RoleRepository) Create(ctx context.Context, rl *role.Role) error {
	return r.db.Transaction(ctx, func(tx *sql.Tx) error {
		query := `
			INSERT INTO roles (id, name, slug, scope, active, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`

		_, err := tx.ExecContext(ctx, query,
			rl.ID().String(),
			rl.Name(),
			rl.Slug(),
			rl.Scope().String(),
			rl.IsActive(),
			rl.CreatedAt(),
			rl.UpdatedAt(),
		)
		if err != nil {
			if isUniqueViolation(err) {
				return fmt.Errorf("%w: role with slug %s", shared.ErrAlreadyExists, rl.Slug())
			}
			return fmt.Errorf("failed to create role: %w", err)
		}

		return setRolePermissionsTx(ctx, tx, rl.ID(), codeStrings(rl.Permissions()))
	})
}

// GetByID retrieves a role by ID with its permission codes.
func (r *RoleRepository) GetByID(ctx context.Context, id shared.ID) (*role.Role, error) {
	query := `
		SELECT id, name, slug, scope, active, created_at, updated_at
		FROM roles
		WHERE id = $1
	`

	return r.scanRoleWithPermissions(ctx, r.db.QueryRowContext(ctx, query, id.String()))
}

// GetBySlug retrieves a role by slug with its permission codes.
func (r *RoleRepository) GetBySlug(ctx context.Context, slug string) (*role.Role, error) {
	query := `
		SELECT id, name, slug, scope, active, created_at, updated_at
		FROM roles
		WHERE slug = $1
	`

	return r.scanRoleWithPermissions(ctx, r.db.QueryRowContext(ctx, query, slug))
}

// List returns all roles with their permission codes.
func (r *RoleRepository) List(ctx context.Context) ([]*role.Role, error) {
	query := `
		SELECT id, name, slug, scope, active, created_at, updated_at
		FROM roles
		ORDER BY name
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list roles: %w", err)
	}
	defer rows.Close()

	var roles []*role.Role
	for rows.Next() {
		rl, err := scanRole(rows)
		if err != nil {
			return nil, err
		}
		roles = append(roles, rl)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Load permission bundles in one query rather than per role.
	byRole, err := r.loadAllPermissions(ctx)
	if err != nil {
		return nil, err
	}

	result := make([]*role.Role, 0, len(roles))
	for _, rl := range roles {
		result = append(result, role.Reconstitute(
			rl.ID(), rl.Name(), rl.Slug(), rl.Scope(), rl.IsActive(),
			byRole[rl.ID().String()], rl.CreatedAt(), rl.UpdatedAt(),
		))
	}

	return result, nil
}

// Update updates a role's mutable fields and replaces its permission bundle.
func (r *RoleRepository) Update(ctx context.Context, rl *role.Role) error {
	return r.db.Transaction(ctx, func(tx *sql.Tx) error {
		query := `
			UPDATE roles
			SET name = $2, active = $3, updated_at = $4
			WHERE id = $1
		`

		result, err := tx.ExecContext(ctx, query,
			rl.ID().String(),
			rl.Name(),
			rl.IsActive(),
			rl.UpdatedAt(),
		)
		if err != nil {
			return fmt.Errorf("failed to update role: %w", err)
		}

		rows, _ := result.RowsAffected()
		if rows == 0 {
			return shared.ErrNotFound
		}

		return setRolePermissionsTx(ctx, tx, rl.ID(), codeStrings(rl.Permissions()))
	})
}

// SetPermissions replaces the role's permission bundle.
func (r *RoleRepository) SetPermissions(ctx context.Context, roleID shared.ID, codes []string) error {
	return r.db.Transaction(ctx, func(tx *sql.Tx) error {
		return setRolePermissionsTx(ctx, tx, roleID, codes)
	})
}

// ListPermissionCodes returns the union of permission codes the user holds in
// the tenant: codes from active system-scoped roles assigned to the user plus
// codes from the active role on the user's membership in that tenant. It runs
// fresh on every call so role changes and revocations apply to the next
// request without any cache invalidation.
func (r *RoleRepository) ListPermissionCodes(ctx context.Context, userID, tenantID shared.ID) ([]string, error) {
	query := `
		SELECT DISTINCT p.code
		FROM tenant_members tm
		JOIN roles ro ON ro.id = tm.role_id AND ro.active
		JOIN role_permissions rp ON rp.role_id = ro.id
		JOIN permissions p ON p.id = rp.permission_id
		WHERE tm.user_id = $1
		  AND (ro.scope = 'system' OR tm.tenant_id = $2)
	`

	rows, err := r.db.QueryContext(ctx, query, userID.String(), tenantID.String())
	if err != nil {
		return nil, fmt.Errorf("failed to list permission codes: %w", err)
	}
	defer rows.Close()

	var codes []string
	for rows.Next() {
		var code string
		if err := rows.Scan(&code); err != nil {
			return nil, fmt.Errorf("failed to scan permission code: %w", err)
		}
		codes = append(codes, code)
	}

	return codes, rows.Err()
}

// setRolePermissionsTx replaces the role -> permission links within a transaction.
// Unknown codes are rejected rather than silently skipped.
func setRolePermissionsTx(ctx context.Context, tx *sql.Tx, roleID shared.ID, codes []string) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM role_permissions WHERE role_id = $1`, roleID.String()); err != nil {
		return fmt.Errorf("failed to clear role permissions: %w", err)
	}

	if len(codes) == 0 {
		return nil
	}

	query := `
		INSERT INTO role_permissions (role_id, permission_id)
		SELECT $1, p.id FROM permissions p WHERE p.code = ANY($2)
	`

	result, err := tx.ExecContext(ctx, query, roleID.String(), pq.Array(codes))
	if err != nil {
		return fmt.Errorf("failed to set role permissions: %w", err)
	}

	rows, _ := result.RowsAffected()
	if int(rows) != len(codes) {
		return fmt.Errorf("%w: one or more permission codes are unknown", shared.ErrValidation)
	}

	return nil
}

// loadAllPermissions returns permission codes grouped by role id.
func (r *RoleRepository) loadAllPermissions(ctx context.Context) (map[string][]permission.Code, error) {
	query := `
		SELECT rp.role_id, p.code
		FROM role_permissions rp
		JOIN permissions p ON p.id = rp.permission_id
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to load role permissions: %w", err)
	}
	defer rows.Close()

	byRole := make(map[string][]permission.Code)
	for rows.Next() {
		var roleID, code string
		if err := rows.Scan(&roleID, &code); err != nil {
			return nil, fmt.Errorf("failed to scan role permission: %w", err)
		}
		byRole[roleID] = append(byRole[roleID], permission.Code(code))
	}

	return byRole, rows.Err()
}

func (r *RoleRepository) scanRoleWithPermissions(ctx context.Context, row *sql.Row) (*role.Role, error) {
	rl, err := scanRole(row)
	if err != nil {
		return nil, err
	}

	query := `
		SELECT p.code
		FROM role_permissions rp
		JOIN permissions p ON p.id = rp.permission_id
		WHERE rp.role_id = $1
		ORDER BY p.code
	`

	rows, err := r.db.QueryContext(ctx, query, rl.ID().String())
	if err != nil {
		return nil, fmt.Errorf("failed to load permissions for role: %w", err)
	}
	defer rows.Close()

	var codes []permission.Code
	for rows.Next() {
		var code string
		if err := rows.Scan(&code); err != nil {
			return nil, fmt.Errorf("failed to scan permission code: %w", err)
		}
		codes = append(codes, permission.Code(code))
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return role.Reconstitute(
		rl.ID(), rl.Name(), rl.Slug(), rl.Scope(), rl.IsActive(),
		codes, rl.CreatedAt(), rl.UpdatedAt(),
	), nil
}

func scanRole(s rowScanner) (*role.Role, error) {
	var (
		idStr     string
		name      string
		slug      string
		scope     string
		active    bool
		createdAt sql.NullTime
		updatedAt sql.NullTime
	)

	if err := s.Scan(&idStr, &name, &slug, &scope, &active, &createdAt, &updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, fmt.Errorf("failed to scan role: %w", err)
	}

	id, err := shared.IDFromString(idStr)
	if err != nil {
		return nil, fmt.Errorf("invalid role id: %w", err)
	}

	return role.Reconstitute(id, name, slug, role.Scope(scope), active, nil, createdAt.Time, updatedAt.Time), nil
}

func codeStrings(codes []permission.Code) []string {
	out := make([]string, len(codes))
	for i, c := range codes {
		out[i] = string(c)
	}
	return out
}
