package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/girderhq/api/pkg/domain/notification"
	"github.com/girderhq/api/pkg/domain/shared"
	"github.com/girderhq/api/pkg/pagination"
)

// NotificationRepository implements notification.Repository using PostgreSQL.
type NotificationRepository struct {
	db *DB
}

// NewNotificationRepository creates a new NotificationRepository.
func NewNotificationRepository(db *DB) *NotificationRepository {
	return &NotificationRepository{db: db}
}

const notificationColumns = `id, tenant_id, user_id, kind, subject, body, read_at, created_at`

// Create persists a new notification.
func (r *NotificationRepository) Create(ctx context.Context, n *notification.Notification) error {
	query := `
		INSERT INTO notifications (` + notificationColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := r.db.ExecContext(ctx, query,
		n.ID().String(),
		n.TenantID().String(),
		n.UserID().String(),
		string(n.Kind()),
		n.Subject(),
		n.Body(),
		nullTime(n.ReadAt()),
		n.CreatedAt(),
	)
	if err != nil {
		return fmt.Errorf("failed to create notification: %w", err)
	}

	return nil
}

// GetByID retrieves a notification by ID. Tenant-blind; callers apply the
// scope guard.
func (r *NotificationRepository) GetByID(ctx context.Context, id shared.ID) (*notification.Notification, error) {
	query := `SELECT ` + notificationColumns + ` FROM notifications WHERE id = $1`

	n, err := scanNotification(r.db.QueryRowContext(ctx, query, id.String()))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return n, nil
}

// ListForUser returns the user's notifications in a tenant, newest first.
func (r *NotificationRepository) ListForUser(ctx context.Context, tenantID, userID shared.ID, unreadOnly bool, page, perPage int) ([]*notification.Notification, int64, error) {
	whereClause := "tenant_id = $1 AND user_id = $2"
	if unreadOnly {
		whereClause += " AND read_at IS NULL"
	}

	var total int64
	countQuery := `SELECT COUNT(*) FROM notifications WHERE ` + whereClause
	if err := r.db.QueryRowContext(ctx, countQuery, tenantID.String(), userID.String()).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count notifications: %w", err)
	}

	pg := pagination.Normalize(page, perPage)
	query := `SELECT ` + notificationColumns + ` FROM notifications WHERE ` + whereClause +
		fmt.Sprintf(" ORDER BY created_at DESC LIMIT %d OFFSET %d", pg.Limit(), pg.Offset())

	rows, err := r.db.QueryContext(ctx, query, tenantID.String(), userID.String())
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query notifications: %w", err)
	}
	defer rows.Close()

	var notifications []*notification.Notification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, 0, err
		}
		notifications = append(notifications, n)
	}

	return notifications, total, rows.Err()
}

// MarkRead stamps the read timestamp if it is not already set.
func (r *NotificationRepository) MarkRead(ctx context.Context, id shared.ID) error {
	query := `
		UPDATE notifications
		SET read_at = NOW()
		WHERE id = $1 AND read_at IS NULL
	`

	if _, err := r.db.ExecContext(ctx, query, id.String()); err != nil {
		return fmt.Errorf("failed to mark notification read: %w", err)
	}

	return nil
}

func scanNotification(s rowScanner) (*notification.Notification, error) {
	var (
		idStr       string
		tenantIDStr string
		userIDStr   string
		kind        string
		subject     string
		body        string
		readAt      sql.NullTime
		createdAt   sql.NullTime
	)

	if err := s.Scan(&idStr, &tenantIDStr, &userIDStr, &kind, &subject, &body, &readAt, &createdAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan notification: %w", err)
	}

	id, err := shared.IDFromString(idStr)
	if err != nil {
		return nil, fmt.Errorf("invalid notification id: %w", err)
	}
	tenantID, err := shared.IDFromString(tenantIDStr)
	if err != nil {
		return nil, fmt.Errorf("invalid tenant id: %w", err)
	}
	userID, err := shared.IDFromString(userIDStr)
	if err != nil {
		return nil, fmt.Errorf("invalid user id: %w", err)
	}

	return notification.Reconstitute(
		id,
		tenantID,
		userID,
		notification.Kind(kind),
		subject,
		body,
		nullTimeValue(readAt),
		createdAt.Time,
	), nil
}
