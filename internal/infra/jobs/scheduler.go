package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/girderhq/api/pkg/logger"
)

// Scheduler enqueues recurring jobs on cron schedules. It only enqueues;
// the worker does the actual work, so a missed tick costs one scan, not data.
type Scheduler struct {
	cron   *cron.Cron
	client *Client
	logger *logger.Logger
}

// NewScheduler creates a new Scheduler.
func NewScheduler(client *Client, log *logger.Logger) *Scheduler {
	return &Scheduler{
		cron:   cron.New(),
		client: client,
		logger: log.With("component", "scheduler"),
	}
}

// RegisterDueSoonScan schedules the task due-soon reminder scan.
func (s *Scheduler) RegisterDueSoonScan(spec string, window time.Duration) error {
	_, err := s.cron.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := s.client.EnqueueDueSoonScan(ctx, window); err != nil {
			s.logger.Error("failed to enqueue due-soon scan", "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("failed to register due-soon scan: %w", err)
	}

	s.logger.Info("due-soon scan registered", "spec", spec, "window", window)
	return nil
}

// Start starts the cron scheduler.
func (s *Scheduler) Start() {
	s.logger.Info("starting scheduler")
	s.cron.Start()
}

// Stop stops the scheduler and waits for running jobs to finish.
func (s *Scheduler) Stop() {
	s.logger.Info("stopping scheduler")
	<-s.cron.Stop().Done()
}

// Run runs the scheduler until the context is canceled.
func (s *Scheduler) Run(ctx context.Context) error {
	s.Start()
	<-ctx.Done()
	s.Stop()
	return ctx.Err()
}
