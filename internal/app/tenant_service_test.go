package app

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/girderhq/api/pkg/domain/authz"
	"github.com/girderhq/api/pkg/domain/role"
	"github.com/girderhq/api/pkg/domain/shared"
	"github.com/girderhq/api/pkg/domain/tenant"
	"github.com/girderhq/api/pkg/logger"
)

// memTenantRepo is an in-memory tenant.Repository. SetDefaultTenant mirrors
// the production single-statement semantics: one flag flip scoped by user.
type memTenantRepo struct {
	tenants     map[shared.ID]*tenant.Tenant
	memberships []*tenant.Membership
}

func newMemTenantRepo() *memTenantRepo {
	return &memTenantRepo{tenants: make(map[shared.ID]*tenant.Tenant)}
}

func (r *memTenantRepo) Create(_ context.Context, t *tenant.Tenant) error {
	for _, existing := range r.tenants {
		if existing.Slug() == t.Slug() {
			return shared.ErrAlreadyExists
		}
	}
	r.tenants[t.ID()] = t
	return nil
}

func (r *memTenantRepo) GetByID(_ context.Context, id shared.ID) (*tenant.Tenant, error) {
	if t, ok := r.tenants[id]; ok {
		return t, nil
	}
	return nil, shared.ErrNotFound
}

func (r *memTenantRepo) GetBySlug(_ context.Context, slug string) (*tenant.Tenant, error) {
	for _, t := range r.tenants {
		if t.Slug() == slug {
			return t, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (r *memTenantRepo) Update(_ context.Context, t *tenant.Tenant) error {
	r.tenants[t.ID()] = t
	return nil
}

func (r *memTenantRepo) ListForUser(_ context.Context, userID shared.ID) ([]*tenant.Tenant, error) {
	var out []*tenant.Tenant
	for _, m := range r.memberships {
		if m.UserID().Equals(userID) {
			if t, ok := r.tenants[m.TenantID()]; ok {
				out = append(out, t)
			}
		}
	}
	return out, nil
}

func (r *memTenantRepo) AddMember(_ context.Context, m *tenant.Membership) error {
	for _, existing := range r.memberships {
		if existing.UserID().Equals(m.UserID()) && existing.TenantID().Equals(m.TenantID()) {
			return shared.ErrAlreadyExists
		}
	}
	r.memberships = append(r.memberships, m)
	return nil
}

func (r *memTenantRepo) RemoveMember(_ context.Context, userID, tenantID shared.ID) error {
	for i, m := range r.memberships {
		if m.UserID().Equals(userID) && m.TenantID().Equals(tenantID) {
			r.memberships = append(r.memberships[:i], r.memberships[i+1:]...)
			return nil
		}
	}
	return shared.ErrNotFound
}

func (r *memTenantRepo) GetMembership(_ context.Context, userID, tenantID shared.ID) (*tenant.Membership, error) {
	for _, m := range r.memberships {
		if m.UserID().Equals(userID) && m.TenantID().Equals(tenantID) {
			return m, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (r *memTenantRepo) ListMemberships(_ context.Context, userID shared.ID) ([]*tenant.Membership, error) {
	var out []*tenant.Membership
	for _, m := range r.memberships {
		if m.UserID().Equals(userID) {
			out = append(out, m)
		}
	}
	return out, nil
}

func (r *memTenantRepo) ListMembers(_ context.Context, tenantID shared.ID) ([]*tenant.Membership, error) {
	var out []*tenant.Membership
	for _, m := range r.memberships {
		if m.TenantID().Equals(tenantID) {
			out = append(out, m)
		}
	}
	return out, nil
}

func (r *memTenantRepo) UpdateMemberRole(_ context.Context, userID, tenantID, roleID shared.ID) error {
	for _, m := range r.memberships {
		if m.UserID().Equals(userID) && m.TenantID().Equals(tenantID) {
			return m.ChangeRole(roleID)
		}
	}
	return shared.ErrNotFound
}

func (r *memTenantRepo) SetDefaultTenant(_ context.Context, userID, tenantID shared.ID) error {
	for i, m := range r.memberships {
		if !m.UserID().Equals(userID) {
			continue
		}
		r.memberships[i] = tenant.ReconstituteMembership(
			m.ID(), m.UserID(), m.TenantID(), m.RoleID(),
			m.TenantID().Equals(tenantID), m.JoinedAt(),
		)
	}
	return nil
}

// memRoleRepo holds a fixed set of roles by slug.
type memRoleRepo struct {
	roles map[string]*role.Role
}

func newMemRoleRepo(t *testing.T, slugs ...string) *memRoleRepo {
	t.Helper()
	repo := &memRoleRepo{roles: make(map[string]*role.Role)}
	for _, slug := range slugs {
		r, err := role.New(slug, slug, role.ScopeTenant, nil)
		require.NoError(t, err)
		repo.roles[slug] = r
	}
	return repo
}

func (r *memRoleRepo) Create(_ context.Context, rl *role.Role) error {
	r.roles[rl.Slug()] = rl
	return nil
}

func (r *memRoleRepo) GetByID(_ context.Context, id shared.ID) (*role.Role, error) {
	for _, rl := range r.roles {
		if rl.ID().Equals(id) {
			return rl, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (r *memRoleRepo) GetBySlug(_ context.Context, slug string) (*role.Role, error) {
	if rl, ok := r.roles[slug]; ok {
		return rl, nil
	}
	return nil, shared.ErrNotFound
}

func (r *memRoleRepo) List(_ context.Context) ([]*role.Role, error) {
	var out []*role.Role
	for _, rl := range r.roles {
		out = append(out, rl)
	}
	return out, nil
}

func (r *memRoleRepo) Update(_ context.Context, rl *role.Role) error {
	r.roles[rl.Slug()] = rl
	return nil
}

func (r *memRoleRepo) SetPermissions(_ context.Context, _ shared.ID, _ []string) error {
	return nil
}

func (r *memRoleRepo) ListPermissionCodes(_ context.Context, _, _ shared.ID) ([]string, error) {
	return nil, nil
}

func defaultTenantOf(t *testing.T, repo *memTenantRepo, userID shared.ID) (shared.ID, int) {
	t.Helper()
	memberships, err := repo.ListMemberships(context.Background(), userID)
	require.NoError(t, err)

	var id shared.ID
	defaults := 0
	for _, m := range memberships {
		if m.IsDefault() {
			defaults++
			id = m.TenantID()
		}
	}
	return id, defaults
}

func TestTenantService_Create_FirstMembershipIsDefault(t *testing.T) {
	ctx := context.Background()
	tenantRepo := newMemTenantRepo()
	svc := NewTenantService(tenantRepo, newMemRoleRepo(t, "admin"), logger.NewDefault())

	creatorID := shared.NewID()

	first, err := svc.Create(ctx, creatorID, CreateTenantInput{Name: "Acme Construction", Slug: "acme"})
	require.NoError(t, err)
	second, err := svc.Create(ctx, creatorID, CreateTenantInput{Name: "Beta Builders", Slug: "beta"})
	require.NoError(t, err)
	_ = second

	// Only the first tenant became the default; creating another never
	// steals the flag.
	def, count := defaultTenantOf(t, tenantRepo, creatorID)
	assert.Equal(t, 1, count)
	assert.True(t, def.Equals(first.ID()))
}

func TestTenantService_Create_DuplicateSlug(t *testing.T) {
	ctx := context.Background()
	svc := NewTenantService(newMemTenantRepo(), newMemRoleRepo(t, "admin"), logger.NewDefault())

	_, err := svc.Create(ctx, shared.NewID(), CreateTenantInput{Name: "Acme", Slug: "acme"})
	require.NoError(t, err)
	_, err = svc.Create(ctx, shared.NewID(), CreateTenantInput{Name: "Acme Two", Slug: "acme"})
	assert.ErrorIs(t, err, shared.ErrAlreadyExists)
}

func TestTenantService_SelectDefaultTenant(t *testing.T) {
	ctx := context.Background()
	tenantRepo := newMemTenantRepo()
	svc := NewTenantService(tenantRepo, newMemRoleRepo(t, "admin"), logger.NewDefault())

	userID := shared.NewID()
	first, err := svc.Create(ctx, userID, CreateTenantInput{Name: "Acme", Slug: "acme"})
	require.NoError(t, err)
	second, err := svc.Create(ctx, userID, CreateTenantInput{Name: "Beta", Slug: "beta"})
	require.NoError(t, err)

	t.Run("switching moves the single default", func(t *testing.T) {
		require.NoError(t, svc.SelectDefaultTenant(ctx, userID, second.ID().String()))

		def, count := defaultTenantOf(t, tenantRepo, userID)
		assert.Equal(t, 1, count)
		assert.True(t, def.Equals(second.ID()))

		require.NoError(t, svc.SelectDefaultTenant(ctx, userID, first.ID().String()))
		def, count = defaultTenantOf(t, tenantRepo, userID)
		assert.Equal(t, 1, count)
		assert.True(t, def.Equals(first.ID()))
	})

	t.Run("selecting a tenant without membership is denied", func(t *testing.T) {
		stranger := shared.NewID()
		err := svc.SelectDefaultTenant(ctx, stranger, first.ID().String())
		assert.ErrorIs(t, err, authz.ErrTenantMismatch)
	})

	t.Run("malformed tenant id is a validation error", func(t *testing.T) {
		err := svc.SelectDefaultTenant(ctx, userID, "acme")
		assert.ErrorIs(t, err, shared.ErrValidation)
	})
}

func TestTenantService_AddMember(t *testing.T) {
	ctx := context.Background()
	tenantRepo := newMemTenantRepo()
	roleRepo := newMemRoleRepo(t, "admin", "engineer")
	svc := NewTenantService(tenantRepo, roleRepo, logger.NewDefault())

	adminID := shared.NewID()
	ten, err := svc.Create(ctx, adminID, CreateTenantInput{Name: "Acme", Slug: "acme"})
	require.NoError(t, err)
	rc := testRequestContext(ten.ID())

	newcomer := shared.NewID()

	t.Run("first membership of a user becomes their default", func(t *testing.T) {
		m, err := svc.AddMember(ctx, rc, AddMemberInput{UserID: newcomer.String(), RoleSlug: "engineer"})
		require.NoError(t, err)
		assert.True(t, m.IsDefault())
	})

	t.Run("duplicate membership is rejected", func(t *testing.T) {
		_, err := svc.AddMember(ctx, rc, AddMemberInput{UserID: newcomer.String(), RoleSlug: "engineer"})
		assert.ErrorIs(t, err, shared.ErrAlreadyExists)
	})

	t.Run("unknown role slug", func(t *testing.T) {
		_, err := svc.AddMember(ctx, rc, AddMemberInput{UserID: shared.NewID().String(), RoleSlug: "wizard"})
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})
}

func TestTenantService_AssignRole(t *testing.T) {
	ctx := context.Background()
	tenantRepo := newMemTenantRepo()
	roleRepo := newMemRoleRepo(t, "admin", "viewer")
	svc := NewTenantService(tenantRepo, roleRepo, logger.NewDefault())

	adminID := shared.NewID()
	ten, err := svc.Create(ctx, adminID, CreateTenantInput{Name: "Acme", Slug: "acme"})
	require.NoError(t, err)
	rc := testRequestContext(ten.ID())

	viewer, err := roleRepo.GetBySlug(ctx, "viewer")
	require.NoError(t, err)

	require.NoError(t, svc.AssignRole(ctx, rc, adminID.String(), "viewer"))

	m, err := tenantRepo.GetMembership(ctx, adminID, ten.ID())
	require.NoError(t, err)
	assert.True(t, m.RoleID().Equals(viewer.ID()))
}
