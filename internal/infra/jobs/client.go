package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"github.com/girderhq/api/pkg/logger"
)

// Client manages enqueueing background jobs using Asynq.
type Client struct {
	client *asynq.Client
	logger *logger.Logger
}

// ClientConfig contains configuration for the job client.
type ClientConfig struct {
	RedisAddr     string
	RedisPassword string
	RedisDB       int
}

// NewClient creates a new job client for enqueueing tasks.
func NewClient(cfg ClientConfig, log *logger.Logger) *Client {
	client := asynq.NewClient(asynq.RedisClientOpt{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})

	return &Client{
		client: client,
		logger: log.With("component", "job_client"),
	}
}

// Close closes the client connection.
func (c *Client) Close() error {
	return c.client.Close()
}

// EnqueueNotification enqueues a notification delivery job.
func (c *Client) EnqueueNotification(ctx context.Context, payload NotificationDeliverPayload) error {
	task, err := NewNotificationDeliverTask(payload)
	if err != nil {
		return fmt.Errorf("failed to create task: %w", err)
	}

	info, err := c.client.EnqueueContext(ctx, task)
	if err != nil {
		c.logger.Error("failed to enqueue notification",
			"user_id", payload.UserID,
			"kind", payload.Kind,
			"error", err,
		)
		return fmt.Errorf("failed to enqueue task: %w", err)
	}

	c.logger.Debug("notification queued",
		"task_id", info.ID,
		"user_id", payload.UserID,
		"queue", info.Queue,
	)
	return nil
}

// EnqueueDueSoonScan enqueues a due-soon reminder scan.
func (c *Client) EnqueueDueSoonScan(ctx context.Context, window time.Duration) error {
	task, err := NewTaskDueSoonScanTask(window)
	if err != nil {
		return fmt.Errorf("failed to create task: %w", err)
	}

	info, err := c.client.EnqueueContext(ctx, task)
	if err != nil {
		c.logger.Error("failed to enqueue due-soon scan", "error", err)
		return fmt.Errorf("failed to enqueue task: %w", err)
	}

	c.logger.Info("due-soon scan queued", "task_id", info.ID, "window", window)
	return nil
}
