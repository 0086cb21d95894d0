package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/girderhq/api/pkg/domain/shared"
	"github.com/girderhq/api/pkg/domain/user"
)

// UserRepository implements user.Repository using PostgreSQL.
type UserRepository struct {
	db *DB
}

// NewUserRepository creates a new UserRepository.
func NewUserRepository(db *DB) *UserRepository {
	return &UserRepository{db: db}
}

// Create persists a new user.
func (r *UserRepository) Create(ctx context.Context, u *user.User) error {
	query := `
		INSERT INTO users (id, email, name, password_hash, tenant_id, active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := r.db.ExecContext(ctx, query,
		u.ID().String(),
		u.Email(),
		u.Name(),
		u.PasswordHash(),
		nullIDValue(u.TenantID()),
		u.IsActive(),
		u.CreatedAt(),
		u.UpdatedAt(),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: user with email %s", shared.ErrAlreadyExists, u.Email())
		}
		return fmt.Errorf("failed to create user: %w", err)
	}

	return nil
}

// GetByID retrieves a user by ID.
func (r *UserRepository) GetByID(ctx context.Context, id shared.ID) (*user.User, error) {
	query := `
		SELECT id, email, name, password_hash, tenant_id, active, created_at, updated_at
		FROM users
		WHERE id = $1
	`

	return r.scanUser(r.db.QueryRowContext(ctx, query, id.String()))
}

// GetByEmail retrieves a user by email.
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*user.User, error) {
	query := `
		SELECT id, email, name, password_hash, tenant_id, active, created_at, updated_at
		FROM users
		WHERE email = $1
	`

	return r.scanUser(r.db.QueryRowContext(ctx, query, email))
}

// Update updates an existing user.
func (r *UserRepository) Update(ctx context.Context, u *user.User) error {
	query := `
		UPDATE users
		SET email = $2, name = $3, password_hash = $4, tenant_id = $5, active = $6, updated_at = $7
		WHERE id = $1
	`

	result, err := r.db.ExecContext(ctx, query,
		u.ID().String(),
		u.Email(),
		u.Name(),
		u.PasswordHash(),
		nullIDValue(u.TenantID()),
		u.IsActive(),
		u.UpdatedAt(),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: user with email %s", shared.ErrAlreadyExists, u.Email())
		}
		return fmt.Errorf("failed to update user: %w", err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return shared.ErrNotFound
	}

	return nil
}

// Delete removes a user.
func (r *UserRepository) Delete(ctx context.Context, id shared.ID) error {
	query := `DELETE FROM users WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query, id.String())
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return shared.ErrNotFound
	}

	return nil
}

// scanUser scans a user row into a domain entity.
func (r *UserRepository) scanUser(row *sql.Row) (*user.User, error) {
	var (
		idStr        string
		email        string
		name         string
		passwordHash string
		tenantID     sql.NullString
		active       bool
		createdAt    sql.NullTime
		updatedAt    sql.NullTime
	)

	err := row.Scan(&idStr, &email, &name, &passwordHash, &tenantID, &active, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, fmt.Errorf("failed to scan user: %w", err)
	}

	id, err := shared.IDFromString(idStr)
	if err != nil {
		return nil, fmt.Errorf("invalid user id: %w", err)
	}

	return user.Reconstitute(
		id,
		email,
		name,
		passwordHash,
		idOrZero(parseNullID(tenantID)),
		active,
		createdAt.Time,
		updatedAt.Time,
	), nil
}
