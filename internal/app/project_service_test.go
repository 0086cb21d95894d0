package app

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/girderhq/api/pkg/domain/authz"
	"github.com/girderhq/api/pkg/domain/permission"
	"github.com/girderhq/api/pkg/domain/project"
	"github.com/girderhq/api/pkg/domain/shared"
	"github.com/girderhq/api/pkg/domain/user"
	"github.com/girderhq/api/pkg/logger"
)

// memProjectRepo is an in-memory project.Repository.
type memProjectRepo struct {
	projects map[shared.ID]*project.Project
}

func newMemProjectRepo() *memProjectRepo {
	return &memProjectRepo{projects: make(map[shared.ID]*project.Project)}
}

func (r *memProjectRepo) Create(_ context.Context, p *project.Project) error {
	r.projects[p.ID()] = p
	return nil
}

func (r *memProjectRepo) GetByID(_ context.Context, id shared.ID) (*project.Project, error) {
	if p, ok := r.projects[id]; ok {
		return p, nil
	}
	return nil, shared.ErrNotFound
}

func (r *memProjectRepo) List(_ context.Context, f project.Filter) ([]*project.Project, int64, error) {
	var out []*project.Project
	for _, p := range r.projects {
		if !p.TenantID().Equals(f.TenantID) {
			continue
		}
		if f.Status != "" && string(p.Status()) != f.Status {
			continue
		}
		if f.Search != "" && !strings.Contains(strings.ToLower(p.Name()), strings.ToLower(f.Search)) {
			continue
		}
		out = append(out, p)
	}
	return out, int64(len(out)), nil
}

func (r *memProjectRepo) Update(_ context.Context, p *project.Project) error {
	r.projects[p.ID()] = p
	return nil
}

func (r *memProjectRepo) Delete(_ context.Context, id shared.ID) error {
	if _, ok := r.projects[id]; !ok {
		return shared.ErrNotFound
	}
	delete(r.projects, id)
	return nil
}

func (r *memProjectRepo) TaskCounts(_ context.Context, _ shared.ID) (int, int, error) {
	return 2, 5, nil
}

type allowAllStore struct{}

func (allowAllStore) EffectivePermissions(_ context.Context, _, _ shared.ID) (permission.Set, error) {
	return permission.NewSet(nil), nil
}

// testRequestContext builds the post-gate request context for a tenant.
func testRequestContext(tenantID shared.ID) *authz.RequestContext {
	now := time.Now().UTC()
	u := user.Reconstitute(shared.NewID(), "pm@example.com", "PM", "hash", shared.ID{}, true, now, now)
	return authz.NewRequestContext(u, tenantID, allowAllStore{})
}

func TestProjectService_Get_ScopesToTenant(t *testing.T) {
	ctx := context.Background()
	repo := newMemProjectRepo()
	svc := NewProjectService(repo, logger.NewDefault())

	tenantA := shared.NewID()
	tenantB := shared.NewID()
	rcA := testRequestContext(tenantA)
	rcB := testRequestContext(tenantB)

	created, err := svc.Create(ctx, rcA, CreateProjectInput{Name: "North Tower"})
	require.NoError(t, err)

	t.Run("owner tenant sees the project", func(t *testing.T) {
		got, err := svc.Get(ctx, rcA, created.ID().String())
		require.NoError(t, err)
		assert.Equal(t, "North Tower", got.Name())
	})

	t.Run("other tenant gets not found, not forbidden", func(t *testing.T) {
		_, err := svc.Get(ctx, rcB, created.ID().String())
		assert.ErrorIs(t, err, authz.ErrResourceNotFound)
	})

	t.Run("absent id is indistinguishable from foreign id", func(t *testing.T) {
		_, err := svc.Get(ctx, rcA, shared.NewID().String())
		assert.ErrorIs(t, err, authz.ErrResourceNotFound)
	})

	t.Run("malformed id reads as not found", func(t *testing.T) {
		_, err := svc.Get(ctx, rcA, "42")
		assert.ErrorIs(t, err, authz.ErrResourceNotFound)
	})
}

func TestProjectService_Create_StampsRequestTenant(t *testing.T) {
	ctx := context.Background()
	svc := NewProjectService(newMemProjectRepo(), logger.NewDefault())

	tenantID := shared.NewID()
	rc := testRequestContext(tenantID)

	p, err := svc.Create(ctx, rc, CreateProjectInput{Name: "Bridge Retrofit", Code: "BR-7"})
	require.NoError(t, err)

	assert.True(t, p.TenantID().Equals(tenantID))
	assert.Equal(t, project.StatusPlanning, p.Status())
	assert.Equal(t, rc.Principal().ID(), p.CreatedBy())
}

func TestProjectService_List_FiltersByTenant(t *testing.T) {
	ctx := context.Background()
	repo := newMemProjectRepo()
	svc := NewProjectService(repo, logger.NewDefault())

	rcA := testRequestContext(shared.NewID())
	rcB := testRequestContext(shared.NewID())

	_, err := svc.Create(ctx, rcA, CreateProjectInput{Name: "Plant Expansion"})
	require.NoError(t, err)
	_, err = svc.Create(ctx, rcA, CreateProjectInput{Name: "Warehouse"})
	require.NoError(t, err)
	_, err = svc.Create(ctx, rcB, CreateProjectInput{Name: "Other Tenant Job"})
	require.NoError(t, err)

	projects, total, err := svc.List(ctx, rcA, ListProjectsInput{})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	for _, p := range projects {
		assert.True(t, p.TenantID().Equals(rcA.TenantID()))
	}

	projects, total, err = svc.List(ctx, rcA, ListProjectsInput{Search: "warehouse"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, projects, 1)
	assert.Equal(t, "Warehouse", projects[0].Name())
}

func TestProjectService_Update_CrossTenantDeniedAsNotFound(t *testing.T) {
	ctx := context.Background()
	repo := newMemProjectRepo()
	svc := NewProjectService(repo, logger.NewDefault())

	rcA := testRequestContext(shared.NewID())
	rcB := testRequestContext(shared.NewID())

	p, err := svc.Create(ctx, rcA, CreateProjectInput{Name: "Substation"})
	require.NoError(t, err)

	name := "Substation Phase 2"
	_, err = svc.Update(ctx, rcB, p.ID().String(), UpdateProjectInput{Name: &name})
	assert.ErrorIs(t, err, authz.ErrResourceNotFound)

	// The write never happened.
	got, err := svc.Get(ctx, rcA, p.ID().String())
	require.NoError(t, err)
	assert.Equal(t, "Substation", got.Name())
}

func TestProjectService_Delete_CrossTenantDeniedAsNotFound(t *testing.T) {
	ctx := context.Background()
	repo := newMemProjectRepo()
	svc := NewProjectService(repo, logger.NewDefault())

	rcA := testRequestContext(shared.NewID())
	rcB := testRequestContext(shared.NewID())

	p, err := svc.Create(ctx, rcA, CreateProjectInput{Name: "Depot"})
	require.NoError(t, err)

	assert.ErrorIs(t, svc.Delete(ctx, rcB, p.ID().String()), authz.ErrResourceNotFound)
	require.NoError(t, svc.Delete(ctx, rcA, p.ID().String()))
}
