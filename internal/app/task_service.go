package app

import (
	"context"
	"fmt"
	"time"

	"github.com/girderhq/api/internal/infra/jobs"
	"github.com/girderhq/api/pkg/domain/authz"
	"github.com/girderhq/api/pkg/domain/notification"
	"github.com/girderhq/api/pkg/domain/shared"
	"github.com/girderhq/api/pkg/domain/task"
	"github.com/girderhq/api/pkg/logger"
)

// Notifier enqueues notification delivery jobs. Implemented by jobs.Client;
// kept as an interface so tests run without Redis.
type Notifier interface {
	EnqueueNotification(ctx context.Context, payload jobs.NotificationDeliverPayload) error
}

// TaskService handles task operations.
type TaskService struct {
	taskRepo task.Repository
	projects *ProjectService
	notifier Notifier
	logger   *logger.Logger
}

// NewTaskService creates a new TaskService.
func NewTaskService(taskRepo task.Repository, projects *ProjectService, notifier Notifier, log *logger.Logger) *TaskService {
	return &TaskService{
		taskRepo: taskRepo,
		projects: projects,
		notifier: notifier,
		logger:   log.With("service", "task"),
	}
}

// CreateTaskInput represents the input for creating a task. The project_id
// must reference a project in the request's tenant; a foreign project id
// fails as not-found.
type CreateTaskInput struct {
	ProjectID string     `json:"project_id" validate:"required,uuid"`
	Title     string     `json:"title" validate:"required,min=2,max=200"`
	Details   string     `json:"details" validate:"max=5000"`
	DueDate   *time.Time `json:"due_date"`
}

// Create creates a task in the request's tenant.
func (s *TaskService) Create(ctx context.Context, rc *authz.RequestContext, input CreateTaskInput) (*task.Task, error) {
	p, err := s.projects.Get(ctx, rc, input.ProjectID)
	if err != nil {
		return nil, err
	}

	t, err := task.New(rc.TenantID(), p.ID(), input.Title, input.Details, input.DueDate, rc.Principal().ID())
	if err != nil {
		return nil, err
	}

	if err := s.taskRepo.Create(ctx, t); err != nil {
		return nil, err
	}

	s.logger.Info("task created",
		"task_id", t.ID().String(),
		"project_id", p.ID().String(),
		"tenant_id", rc.TenantID().String(),
	)
	return t, nil
}

// Get loads a task and verifies it belongs to the request's tenant.
func (s *TaskService) Get(ctx context.Context, rc *authz.RequestContext, rawID string) (*task.Task, error) {
	id, err := shared.IDFromString(rawID)
	if err != nil {
		return nil, authz.ErrResourceNotFound
	}

	t, err := s.taskRepo.GetByID(ctx, id)
	if err != nil {
		if shared.IsNotFound(err) {
			return nil, authz.ErrResourceNotFound
		}
		return nil, err
	}
	if err := authz.VerifyScope(rc, t); err != nil {
		return nil, err
	}

	return t, nil
}

// ListTasksInput represents list filters.
type ListTasksInput struct {
	ProjectID  string `json:"project_id" validate:"omitempty,uuid"`
	Status     string `json:"status" validate:"omitempty,task_status"`
	AssigneeID string `json:"assignee_id" validate:"omitempty,uuid"`
	Page       int    `json:"page"`
	PerPage    int    `json:"per_page"`
}

// List returns the tenant's tasks matching the filters.
func (s *TaskService) List(ctx context.Context, rc *authz.RequestContext, input ListTasksInput) ([]*task.Task, int64, error) {
	f := task.Filter{
		TenantID: rc.TenantID(),
		Status:   input.Status,
		Page:     input.Page,
		PerPage:  input.PerPage,
	}
	if input.ProjectID != "" {
		id, err := shared.IDFromString(input.ProjectID)
		if err != nil {
			return nil, 0, fmt.Errorf("%w: invalid project id", shared.ErrValidation)
		}
		f.ProjectID = id
	}
	if input.AssigneeID != "" {
		id, err := shared.IDFromString(input.AssigneeID)
		if err != nil {
			return nil, 0, fmt.Errorf("%w: invalid assignee id", shared.ErrValidation)
		}
		f.AssigneeID = &id
	}

	return s.taskRepo.List(ctx, f)
}

// UpdateTaskInput represents the input for updating a task.
type UpdateTaskInput struct {
	Title   *string    `json:"title" validate:"omitempty,min=2,max=200"`
	Details *string    `json:"details" validate:"omitempty,max=5000"`
	Status  *string    `json:"status" validate:"omitempty,task_status"`
	DueDate *time.Time `json:"due_date"`
}

// Update applies changes to a task in the request's tenant.
func (s *TaskService) Update(ctx context.Context, rc *authz.RequestContext, rawID string, input UpdateTaskInput) (*task.Task, error) {
	t, err := s.Get(ctx, rc, rawID)
	if err != nil {
		return nil, err
	}

	var status *task.Status
	if input.Status != nil {
		st := task.Status(*input.Status)
		status = &st
	}

	if err := t.Update(input.Title, input.Details, status, input.DueDate); err != nil {
		return nil, err
	}
	if err := s.taskRepo.Update(ctx, t); err != nil {
		return nil, err
	}

	return t, nil
}

// Delete removes a task from the request's tenant.
func (s *TaskService) Delete(ctx context.Context, rc *authz.RequestContext, rawID string) error {
	t, err := s.Get(ctx, rc, rawID)
	if err != nil {
		return err
	}
	return s.taskRepo.Delete(ctx, t.ID())
}

// Assign sets the task's assignee and queues an in-app notification for them.
// Delivery is asynchronous; a full queue never fails the assignment.
func (s *TaskService) Assign(ctx context.Context, rc *authz.RequestContext, rawID, rawAssigneeID string) (*task.Task, error) {
	t, err := s.Get(ctx, rc, rawID)
	if err != nil {
		return nil, err
	}

	assigneeID, err := shared.IDFromString(rawAssigneeID)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid assignee id", shared.ErrValidation)
	}

	if err := t.Assign(assigneeID); err != nil {
		return nil, err
	}
	if err := s.taskRepo.Update(ctx, t); err != nil {
		return nil, err
	}

	if s.notifier != nil {
		payload := jobs.NotificationDeliverPayload{
			TenantID: rc.TenantID().String(),
			UserID:   assigneeID.String(),
			Kind:     string(notification.KindTaskAssigned),
			Subject:  "Task assigned: " + t.Title(),
			Body:     fmt.Sprintf("You were assigned %q by %s.", t.Title(), rc.Principal().Name()),
		}
		if err := s.notifier.EnqueueNotification(ctx, payload); err != nil {
			s.logger.Error("failed to queue assignment notification",
				"task_id", t.ID().String(),
				"error", err,
			)
		}
	}

	return t, nil
}
