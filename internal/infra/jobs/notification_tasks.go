// Package jobs defines background task types and the asynq worker that
// processes them. Notification rows are written here, never inline in
// request handlers.
package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"github.com/girderhq/api/pkg/logger"
)

// =============================================================================
// Task Types
// =============================================================================

const (
	// TypeNotificationDeliver is the task type for writing a notification row.
	TypeNotificationDeliver = "notification:deliver"

	// TypeTaskDueSoonScan is the task type for the due-soon reminder scan.
	TypeTaskDueSoonScan = "task:due_soon_scan"
)

// =============================================================================
// Task Payloads
// =============================================================================

// NotificationDeliverPayload contains data for delivering one notification.
type NotificationDeliverPayload struct {
	TenantID string `json:"tenant_id"`
	UserID   string `json:"user_id"`
	Kind     string `json:"kind"`
	Subject  string `json:"subject"`
	Body     string `json:"body"`
}

// TaskDueSoonScanPayload contains data for the due-soon scan.
type TaskDueSoonScanPayload struct {
	WindowSeconds int `json:"window_seconds"`
}

// =============================================================================
// Task Creators
// =============================================================================

// NewNotificationDeliverTask creates a task that writes one notification row.
func NewNotificationDeliverTask(payload NotificationDeliverPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal notification deliver payload: %w", err)
	}

	return asynq.NewTask(
		TypeNotificationDeliver,
		data,
		asynq.MaxRetry(5),
		asynq.Timeout(30*time.Second),
		asynq.Queue("default"),
	), nil
}

// NewTaskDueSoonScanTask creates a task that scans for tasks due soon and
// fans out reminder notifications.
func NewTaskDueSoonScanTask(window time.Duration) (*asynq.Task, error) {
	data, err := json.Marshal(TaskDueSoonScanPayload{
		WindowSeconds: int(window.Seconds()),
	})
	if err != nil {
		return nil, fmt.Errorf("marshal due-soon scan payload: %w", err)
	}

	return asynq.NewTask(
		TypeTaskDueSoonScan,
		data,
		asynq.MaxRetry(1),
		asynq.Timeout(2*time.Minute),
		asynq.Queue("low"),
	), nil
}

// =============================================================================
// Handlers
// =============================================================================

// NotificationProcessor persists notifications and fans out reminders. The
// app layer implements it; the worker stays free of SQL.
type NotificationProcessor interface {
	Deliver(ctx context.Context, tenantID, userID, kind, subject, body string) error
	ScanDueSoon(ctx context.Context, window time.Duration) error
}

// NotificationTaskHandler processes notification tasks.
type NotificationTaskHandler struct {
	processor NotificationProcessor
	logger    *logger.Logger
}

// NewNotificationTaskHandler creates a new NotificationTaskHandler.
func NewNotificationTaskHandler(processor NotificationProcessor, log *logger.Logger) *NotificationTaskHandler {
	return &NotificationTaskHandler{
		processor: processor,
		logger:    log.With("component", "notification_tasks"),
	}
}

// RegisterHandlers wires the handler's task types into the mux.
func (h *NotificationTaskHandler) RegisterHandlers(mux *asynq.ServeMux) {
	mux.HandleFunc(TypeNotificationDeliver, h.HandleDeliver)
	mux.HandleFunc(TypeTaskDueSoonScan, h.HandleDueSoonScan)
}

// HandleDeliver writes one notification row.
func (h *NotificationTaskHandler) HandleDeliver(ctx context.Context, t *asynq.Task) error {
	var payload NotificationDeliverPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal notification deliver payload: %v: %w", err, asynq.SkipRetry)
	}

	if err := h.processor.Deliver(ctx, payload.TenantID, payload.UserID, payload.Kind, payload.Subject, payload.Body); err != nil {
		h.logger.Error("notification delivery failed",
			"user_id", payload.UserID,
			"kind", payload.Kind,
			"error", err,
		)
		return err
	}

	h.logger.Debug("notification delivered", "user_id", payload.UserID, "kind", payload.Kind)
	return nil
}

// HandleDueSoonScan scans for tasks due soon and enqueues reminders.
func (h *NotificationTaskHandler) HandleDueSoonScan(ctx context.Context, t *asynq.Task) error {
	var payload TaskDueSoonScanPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal due-soon scan payload: %v: %w", err, asynq.SkipRetry)
	}

	window := time.Duration(payload.WindowSeconds) * time.Second
	if err := h.processor.ScanDueSoon(ctx, window); err != nil {
		h.logger.Error("due-soon scan failed", "window", window, "error", err)
		return err
	}

	return nil
}
