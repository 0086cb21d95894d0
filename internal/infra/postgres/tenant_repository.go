package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/girderhq/api/pkg/domain/shared"
	"github.com/girderhq/api/pkg/domain/tenant"
)

// TenantRepository implements tenant.Repository using PostgreSQL.
type TenantRepository struct {
	db *DB
}

// NewTenantRepository creates a new TenantRepository.
func NewTenantRepository(db *DB) *TenantRepository {
	return &TenantRepository{db: db}
}

// =============================================================================
// Tenant CRUD
// =============================================================================

// Create persists a new tenant.
func (r *TenantRepository) Create(ctx context.Context, t *tenant.Tenant) error {
	query := `
		INSERT INTO tenants (id, name, slug, active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := r.db.ExecContext(ctx, query,
		t.ID().String(),
		t.Name(),
		t.Slug(),
		t.IsActive(),
		t.CreatedAt(),
		t.UpdatedAt(),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: tenant with slug %s", shared.ErrAlreadyExists, t.Slug())
		}
		return fmt.Errorf("failed to create tenant: %w", err)
	}

	return nil
}

// GetByID retrieves a tenant by ID.
func (r *TenantRepository) GetByID(ctx context.Context, id shared.ID) (*tenant.Tenant, error) {
	query := `
		SELECT id, name, slug, active, created_at, updated_at
		FROM tenants
		WHERE id = $1
	`

	return r.scanTenant(r.db.QueryRowContext(ctx, query, id.String()))
}

// GetBySlug retrieves a tenant by slug.
func (r *TenantRepository) GetBySlug(ctx context.Context, slug string) (*tenant.Tenant, error) {
	query := `
		SELECT id, name, slug, active, created_at, updated_at
		FROM tenants
		WHERE slug = $1
	`

	return r.scanTenant(r.db.QueryRowContext(ctx, query, slug))
}

// Update updates an existing tenant.
func (r *TenantRepository) Update(ctx context.Context, t *tenant.Tenant) error {
	query := `
		UPDATE tenants
		SET name = $2, slug = $3, active = $4, updated_at = $5
		WHERE id = $1
	`

	result, err := r.db.ExecContext(ctx, query,
		t.ID().String(),
		t.Name(),
		t.Slug(),
		t.IsActive(),
		t.UpdatedAt(),
	)
	if err != nil {
		return fmt.Errorf("failed to update tenant: %w", err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return shared.ErrNotFound
	}

	return nil
}

// ListForUser returns the tenants the user holds a membership in.
func (r *TenantRepository) ListForUser(ctx context.Context, userID shared.ID) ([]*tenant.Tenant, error) {
	query := `
		SELECT t.id, t.name, t.slug, t.active, t.created_at, t.updated_at
		FROM tenants t
		JOIN tenant_members tm ON tm.tenant_id = t.id
		WHERE tm.user_id = $1
		ORDER BY t.name
	`

	rows, err := r.db.QueryContext(ctx, query, userID.String())
	if err != nil {
		return nil, fmt.Errorf("failed to list tenants for user: %w", err)
	}
	defer rows.Close()

	var tenants []*tenant.Tenant
	for rows.Next() {
		t, err := r.scanTenantRows(rows)
		if err != nil {
			return nil, err
		}
		tenants = append(tenants, t)
	}

	return tenants, rows.Err()
}

// =============================================================================
// Memberships
// =============================================================================

// AddMember persists a new membership.
func (r *TenantRepository) AddMember(ctx context.Context, m *tenant.Membership) error {
	query := `
		INSERT INTO tenant_members (id, user_id, tenant_id, role_id, is_default, joined_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := r.db.ExecContext(ctx, query,
		m.ID().String(),
		m.UserID().String(),
		m.TenantID().String(),
		m.RoleID().String(),
		m.IsDefault(),
		m.JoinedAt(),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: membership", shared.ErrAlreadyExists)
		}
		if isForeignKeyViolation(err) {
			return fmt.Errorf("%w: user, tenant or role", shared.ErrNotFound)
		}
		return fmt.Errorf("failed to add member: %w", err)
	}

	return nil
}

// RemoveMember deletes a membership.
func (r *TenantRepository) RemoveMember(ctx context.Context, userID, tenantID shared.ID) error {
	query := `DELETE FROM tenant_members WHERE user_id = $1 AND tenant_id = $2`

	result, err := r.db.ExecContext(ctx, query, userID.String(), tenantID.String())
	if err != nil {
		return fmt.Errorf("failed to remove member: %w", err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return shared.ErrNotFound
	}

	return nil
}

// GetMembership retrieves a single membership row.
func (r *TenantRepository) GetMembership(ctx context.Context, userID, tenantID shared.ID) (*tenant.Membership, error) {
	query := `
		SELECT id, user_id, tenant_id, role_id, is_default, joined_at
		FROM tenant_members
		WHERE user_id = $1 AND tenant_id = $2
	`

	return r.scanMembership(r.db.QueryRowContext(ctx, query, userID.String(), tenantID.String()))
}

// ListMemberships returns all memberships held by a user.
func (r *TenantRepository) ListMemberships(ctx context.Context, userID shared.ID) ([]*tenant.Membership, error) {
	query := `
		SELECT id, user_id, tenant_id, role_id, is_default, joined_at
		FROM tenant_members
		WHERE user_id = $1
		ORDER BY joined_at
	`

	return r.queryMemberships(ctx, query, userID.String())
}

// ListMembers returns all memberships within a tenant.
func (r *TenantRepository) ListMembers(ctx context.Context, tenantID shared.ID) ([]*tenant.Membership, error) {
	query := `
		SELECT id, user_id, tenant_id, role_id, is_default, joined_at
		FROM tenant_members
		WHERE tenant_id = $1
		ORDER BY joined_at
	`

	return r.queryMemberships(ctx, query, tenantID.String())
}

// UpdateMemberRole changes the role a user holds in a tenant.
func (r *TenantRepository) UpdateMemberRole(ctx context.Context, userID, tenantID, roleID shared.ID) error {
	query := `
		UPDATE tenant_members
		SET role_id = $3
		WHERE user_id = $1 AND tenant_id = $2
	`

	result, err := r.db.ExecContext(ctx, query, userID.String(), tenantID.String(), roleID.String())
	if err != nil {
		if isForeignKeyViolation(err) {
			return fmt.Errorf("%w: role", shared.ErrNotFound)
		}
		return fmt.Errorf("failed to update member role: %w", err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return shared.ErrNotFound
	}

	return nil
}

// SetDefaultTenant marks tenantID as the user's default context. The single
// UPDATE sets is_default true on the chosen membership and false on every
// other membership of the user in the same statement, so the at-most-one
// default invariant holds even under concurrent selections.
func (r *TenantRepository) SetDefaultTenant(ctx context.Context, userID, tenantID shared.ID) error {
	query := `
		UPDATE tenant_members
		SET is_default = (tenant_id = $2)
		WHERE user_id = $1
	`

	result, err := r.db.ExecContext(ctx, query, userID.String(), tenantID.String())
	if err != nil {
		return fmt.Errorf("failed to set default tenant: %w", err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return shared.ErrNotFound
	}

	return nil
}

// =============================================================================
// Scanning
// =============================================================================

type rowScanner interface {
	Scan(dest ...any) error
}

func (r *TenantRepository) scanTenant(row *sql.Row) (*tenant.Tenant, error) {
	t, err := scanTenantFrom(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return t, nil
}

func (r *TenantRepository) scanTenantRows(rows *sql.Rows) (*tenant.Tenant, error) {
	return scanTenantFrom(rows)
}

func scanTenantFrom(s rowScanner) (*tenant.Tenant, error) {
	var (
		idStr     string
		name      string
		slug      string
		active    bool
		createdAt sql.NullTime
		updatedAt sql.NullTime
	)

	if err := s.Scan(&idStr, &name, &slug, &active, &createdAt, &updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan tenant: %w", err)
	}

	id, err := shared.IDFromString(idStr)
	if err != nil {
		return nil, fmt.Errorf("invalid tenant id: %w", err)
	}

	return tenant.Reconstitute(id, name, slug, active, createdAt.Time, updatedAt.Time), nil
}

func (r *TenantRepository) scanMembership(row *sql.Row) (*tenant.Membership, error) {
	m, err := scanMembershipFrom(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return m, nil
}

func (r *TenantRepository) queryMemberships(ctx context.Context, query string, arg any) ([]*tenant.Membership, error) {
	rows, err := r.db.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("failed to query memberships: %w", err)
	}
	defer rows.Close()

	var memberships []*tenant.Membership
	for rows.Next() {
		m, err := scanMembershipFrom(rows)
		if err != nil {
			return nil, err
		}
		memberships = append(memberships, m)
	}

	return memberships, rows.Err()
}

func scanMembershipFrom(s rowScanner) (*tenant.Membership, error) {
	var (
		idStr       string
		userIDStr   string
		tenantIDStr string
		roleIDStr   string
		isDefault   bool
		joinedAt    sql.NullTime
	)

	if err := s.Scan(&idStr, &userIDStr, &tenantIDStr, &roleIDStr, &isDefault, &joinedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan membership: %w", err)
	}

	id, err := shared.IDFromString(idStr)
	if err != nil {
		return nil, fmt.Errorf("invalid membership id: %w", err)
	}
	userID, err := shared.IDFromString(userIDStr)
	if err != nil {
		return nil, fmt.Errorf("invalid user id: %w", err)
	}
	tenantID, err := shared.IDFromString(tenantIDStr)
	if err != nil {
		return nil, fmt.Errorf("invalid tenant id: %w", err)
	}
	roleID, err := shared.IDFromString(roleIDStr)
	if err != nil {
		return nil, fmt.Errorf("invalid role id: %w", err)
	}

	return tenant.ReconstituteMembership(id, userID, tenantID, roleID, isDefault, joinedAt.Time), nil
}
