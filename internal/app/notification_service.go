package app

import (
	"context"
	"fmt"
	"time"

	"github.com/girderhq/api/pkg/domain/authz"
	"github.com/girderhq/api/pkg/domain/notification"
	"github.com/girderhq/api/pkg/domain/shared"
	"github.com/girderhq/api/pkg/domain/task"
	"github.com/girderhq/api/pkg/logger"
)

// NotificationService lists and delivers in-app notifications. It implements
// jobs.NotificationProcessor, so the worker funnels every delivery through
// the same code path the API reads from.
type NotificationService struct {
	notificationRepo notification.Repository
	taskRepo         task.Repository
	logger           *logger.Logger
}

// NewNotificationService creates a new NotificationService.
func NewNotificationService(notificationRepo notification.Repository, taskRepo task.Repository, log *logger.Logger) *NotificationService {
	return &NotificationService{
		notificationRepo: notificationRepo,
		taskRepo:         taskRepo,
		logger:           log.With("service", "notification"),
	}
}

// ListNotificationsInput represents list filters.
type ListNotificationsInput struct {
	UnreadOnly bool `json:"unread_only"`
	Page       int  `json:"page"`
	PerPage    int  `json:"per_page"`
}

// List returns the principal's notifications within the request's tenant.
func (s *NotificationService) List(ctx context.Context, rc *authz.RequestContext, input ListNotificationsInput) ([]*notification.Notification, int64, error) {
	return s.notificationRepo.ListForUser(ctx, rc.TenantID(), rc.Principal().ID(), input.UnreadOnly, input.Page, input.PerPage)
}

// MarkRead marks one of the principal's notifications as read. Notifications
// addressed to other users, like those in other tenants, surface as not-found.
func (s *NotificationService) MarkRead(ctx context.Context, rc *authz.RequestContext, rawID string) error {
	id, err := shared.IDFromString(rawID)
	if err != nil {
		return authz.ErrResourceNotFound
	}

	n, err := s.notificationRepo.GetByID(ctx, id)
	if err != nil {
		if shared.IsNotFound(err) {
			return authz.ErrResourceNotFound
		}
		return err
	}
	if err := authz.VerifyScope(rc, n); err != nil {
		return err
	}
	if !n.UserID().Equals(rc.Principal().ID()) {
		return authz.ErrResourceNotFound
	}

	return s.notificationRepo.MarkRead(ctx, n.ID())
}

// =============================================================================
// jobs.NotificationProcessor
// =============================================================================

// Deliver writes one notification row. Called by the background worker.
func (s *NotificationService) Deliver(ctx context.Context, rawTenantID, rawUserID, kind, subject, body string) error {
	tenantID, err := shared.IDFromString(rawTenantID)
	if err != nil {
		return fmt.Errorf("%w: invalid tenant id", shared.ErrValidation)
	}
	userID, err := shared.IDFromString(rawUserID)
	if err != nil {
		return fmt.Errorf("%w: invalid user id", shared.ErrValidation)
	}

	n, err := notification.New(tenantID, userID, notification.Kind(kind), subject, body)
	if err != nil {
		return err
	}

	return s.notificationRepo.Create(ctx, n)
}

// ScanDueSoon finds open assigned tasks due within the window and writes a
// reminder for each assignee. Called by the background worker on the cron
// schedule; it crosses tenants by design and never runs inside a request.
func (s *NotificationService) ScanDueSoon(ctx context.Context, window time.Duration) error {
	tasks, err := s.taskRepo.ListDueSoon(ctx, window)
	if err != nil {
		return fmt.Errorf("list due tasks: %w", err)
	}

	var failed int
	for _, t := range tasks {
		assignee := t.AssigneeID()
		if assignee == nil {
			continue
		}

		n, err := notification.New(
			t.TenantID(),
			*assignee,
			notification.KindTaskDueSoon,
			"Task due soon: "+t.Title(),
			fmt.Sprintf("Task %q is due %s.", t.Title(), t.DueDate().Format("2006-01-02")),
		)
		if err != nil {
			failed++
			continue
		}
		if err := s.notificationRepo.Create(ctx, n); err != nil {
			s.logger.Error("failed to write due-soon reminder",
				"task_id", t.ID().String(),
				"error", err,
			)
			failed++
		}
	}

	s.logger.Info("due-soon scan finished",
		"window", window,
		"tasks", len(tasks),
		"failed", failed,
	)
	return nil
}
