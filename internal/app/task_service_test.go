package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/girderhq/api/internal/infra/jobs"
	"github.com/girderhq/api/pkg/domain/authz"
	"github.com/girderhq/api/pkg/domain/notification"
	"github.com/girderhq/api/pkg/domain/shared"
	"github.com/girderhq/api/pkg/domain/task"
	"github.com/girderhq/api/pkg/logger"
)

type memTaskRepo struct {
	tasks map[shared.ID]*task.Task
}

func newMemTaskRepo() *memTaskRepo {
	return &memTaskRepo{tasks: make(map[shared.ID]*task.Task)}
}

func (r *memTaskRepo) Create(_ context.Context, t *task.Task) error {
	r.tasks[t.ID()] = t
	return nil
}

func (r *memTaskRepo) GetByID(_ context.Context, id shared.ID) (*task.Task, error) {
	if t, ok := r.tasks[id]; ok {
		return t, nil
	}
	return nil, shared.ErrNotFound
}

func (r *memTaskRepo) List(_ context.Context, f task.Filter) ([]*task.Task, int64, error) {
	var out []*task.Task
	for _, t := range r.tasks {
		if !t.TenantID().Equals(f.TenantID) {
			continue
		}
		if !f.ProjectID.IsZero() && !t.ProjectID().Equals(f.ProjectID) {
			continue
		}
		if f.Status != "" && string(t.Status()) != f.Status {
			continue
		}
		out = append(out, t)
	}
	return out, int64(len(out)), nil
}

func (r *memTaskRepo) Update(_ context.Context, t *task.Task) error {
	r.tasks[t.ID()] = t
	return nil
}

func (r *memTaskRepo) Delete(_ context.Context, id shared.ID) error {
	delete(r.tasks, id)
	return nil
}

func (r *memTaskRepo) ListDueSoon(_ context.Context, within time.Duration) ([]*task.Task, error) {
	cutoff := time.Now().UTC().Add(within)
	var out []*task.Task
	for _, t := range r.tasks {
		if t.DueDate() != nil && t.AssigneeID() != nil && t.Status() != task.StatusDone && t.DueDate().Before(cutoff) {
			out = append(out, t)
		}
	}
	return out, nil
}

// captureNotifier records enqueued payloads and can simulate a full queue.
type captureNotifier struct {
	payloads []jobs.NotificationDeliverPayload
	err      error
}

func (n *captureNotifier) EnqueueNotification(_ context.Context, p jobs.NotificationDeliverPayload) error {
	if n.err != nil {
		return n.err
	}
	n.payloads = append(n.payloads, p)
	return nil
}

type taskFixture struct {
	svc      *TaskService
	notifier *captureNotifier
	rc       *authz.RequestContext
	project  string
}

func newTaskFixture(t *testing.T) *taskFixture {
	t.Helper()

	log := logger.NewDefault()
	projects := NewProjectService(newMemProjectRepo(), log)
	notifier := &captureNotifier{}
	svc := NewTaskService(newMemTaskRepo(), projects, notifier, log)

	rc := testRequestContext(shared.NewID())
	p, err := projects.Create(context.Background(), rc, CreateProjectInput{Name: "North Tower"})
	require.NoError(t, err)

	return &taskFixture{svc: svc, notifier: notifier, rc: rc, project: p.ID().String()}
}

func TestTaskService_Create(t *testing.T) {
	ctx := context.Background()
	fx := newTaskFixture(t)

	t.Run("task lands in the request tenant", func(t *testing.T) {
		created, err := fx.svc.Create(ctx, fx.rc, CreateTaskInput{ProjectID: fx.project, Title: "Pour foundation"})
		require.NoError(t, err)
		assert.True(t, created.TenantID().Equals(fx.rc.TenantID()))
		assert.Equal(t, task.StatusOpen, created.Status())
	})

	t.Run("foreign project id reads as not found", func(t *testing.T) {
		other := testRequestContext(shared.NewID())
		_, err := fx.svc.Create(ctx, other, CreateTaskInput{ProjectID: fx.project, Title: "Sneaky task"})
		assert.ErrorIs(t, err, authz.ErrResourceNotFound)
	})
}

func TestTaskService_Assign(t *testing.T) {
	ctx := context.Background()

	t.Run("assignment queues a notification for the assignee", func(t *testing.T) {
		fx := newTaskFixture(t)
		created, err := fx.svc.Create(ctx, fx.rc, CreateTaskInput{ProjectID: fx.project, Title: "Inspect rebar"})
		require.NoError(t, err)

		assignee := shared.NewID()
		updated, err := fx.svc.Assign(ctx, fx.rc, created.ID().String(), assignee.String())
		require.NoError(t, err)
		require.NotNil(t, updated.AssigneeID())
		assert.True(t, updated.AssigneeID().Equals(assignee))

		require.Len(t, fx.notifier.payloads, 1)
		p := fx.notifier.payloads[0]
		assert.Equal(t, assignee.String(), p.UserID)
		assert.Equal(t, fx.rc.TenantID().String(), p.TenantID)
		assert.Equal(t, string(notification.KindTaskAssigned), p.Kind)
		assert.Contains(t, p.Subject, "Inspect rebar")
	})

	t.Run("full queue does not fail the assignment", func(t *testing.T) {
		fx := newTaskFixture(t)
		fx.notifier.err = errors.New("queue full")

		created, err := fx.svc.Create(ctx, fx.rc, CreateTaskInput{ProjectID: fx.project, Title: "Order concrete"})
		require.NoError(t, err)

		updated, err := fx.svc.Assign(ctx, fx.rc, created.ID().String(), shared.NewID().String())
		require.NoError(t, err)
		assert.NotNil(t, updated.AssigneeID())
	})

	t.Run("cross-tenant assignment reads as not found", func(t *testing.T) {
		fx := newTaskFixture(t)
		created, err := fx.svc.Create(ctx, fx.rc, CreateTaskInput{ProjectID: fx.project, Title: "Survey site"})
		require.NoError(t, err)

		other := testRequestContext(shared.NewID())
		_, err = fx.svc.Assign(ctx, other, created.ID().String(), shared.NewID().String())
		assert.ErrorIs(t, err, authz.ErrResourceNotFound)
		assert.Empty(t, fx.notifier.payloads)
	})
}

func TestTaskService_List_FiltersByTenantAndProject(t *testing.T) {
	ctx := context.Background()
	fx := newTaskFixture(t)

	_, err := fx.svc.Create(ctx, fx.rc, CreateTaskInput{ProjectID: fx.project, Title: "Task one"})
	require.NoError(t, err)
	_, err = fx.svc.Create(ctx, fx.rc, CreateTaskInput{ProjectID: fx.project, Title: "Task two"})
	require.NoError(t, err)

	tasks, total, err := fx.svc.List(ctx, fx.rc, ListTasksInput{ProjectID: fx.project})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Len(t, tasks, 2)

	// Another tenant sees nothing even with the same project filter.
	other := testRequestContext(shared.NewID())
	tasks, total, err = fx.svc.List(ctx, other, ListTasksInput{ProjectID: fx.project})
	require.NoError(t, err)
	assert.Equal(t, int64(0), total)
	assert.Empty(t, tasks)
}
