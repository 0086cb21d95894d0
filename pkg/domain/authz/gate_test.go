package authz_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/girderhq/api/pkg/domain/authz"
	"github.com/girderhq/api/pkg/domain/permission"
	"github.com/girderhq/api/pkg/domain/shared"
	"github.com/girderhq/api/pkg/domain/tenant"
	"github.com/girderhq/api/pkg/domain/user"
)

// fakeTenantSource is an in-memory TenantSource.
type fakeTenantSource struct {
	tenants     map[shared.ID]*tenant.Tenant
	memberships []*tenant.Membership
}

func newFakeTenantSource() *fakeTenantSource {
	return &fakeTenantSource{tenants: make(map[shared.ID]*tenant.Tenant)}
}

func (f *fakeTenantSource) addTenant(t *tenant.Tenant) {
	f.tenants[t.ID()] = t
}

func (f *fakeTenantSource) addMembership(userID, tenantID shared.ID) {
	m := tenant.ReconstituteMembership(shared.NewID(), userID, tenantID, shared.NewID(), false, time.Now().UTC())
	f.memberships = append(f.memberships, m)
}

func (f *fakeTenantSource) GetByID(_ context.Context, id shared.ID) (*tenant.Tenant, error) {
	if t, ok := f.tenants[id]; ok {
		return t, nil
	}
	return nil, shared.ErrNotFound
}

func (f *fakeTenantSource) GetMembership(_ context.Context, userID, tenantID shared.ID) (*tenant.Membership, error) {
	for _, m := range f.memberships {
		if m.UserID().Equals(userID) && m.TenantID().Equals(tenantID) {
			return m, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (f *fakeTenantSource) ListMemberships(_ context.Context, userID shared.ID) ([]*tenant.Membership, error) {
	var out []*tenant.Membership
	for _, m := range f.memberships {
		if m.UserID().Equals(userID) {
			out = append(out, m)
		}
	}
	return out, nil
}

// fakePermissionStore returns a mutable per-user permission set and counts
// lookups so memoization can be observed.
type fakePermissionStore struct {
	grants map[shared.ID][]string
	calls  int
}

func newFakePermissionStore() *fakePermissionStore {
	return &fakePermissionStore{grants: make(map[shared.ID][]string)}
}

func (f *fakePermissionStore) grant(userID shared.ID, codes ...string) {
	f.grants[userID] = codes
}

func (f *fakePermissionStore) EffectivePermissions(_ context.Context, userID, _ shared.ID) (permission.Set, error) {
	f.calls++
	return permission.NewSet(f.grants[userID]), nil
}

func newTestUser(tenantID shared.ID, active bool) *user.User {
	now := time.Now().UTC()
	return user.Reconstitute(shared.NewID(), "pm@example.com", "Project Manager", "hash", tenantID, active, now, now)
}

func newTestTenant(active bool) *tenant.Tenant {
	now := time.Now().UTC()
	return tenant.Reconstitute(shared.NewID(), "Acme Construction", "acme", active, now, now)
}

func TestGate_ResolveTenant(t *testing.T) {
	ctx := context.Background()

	t.Run("member resolves tenant", func(t *testing.T) {
		tenants := newFakeTenantSource()
		ten := newTestTenant(true)
		tenants.addTenant(ten)
		u := newTestUser(shared.ID{}, true)
		tenants.addMembership(u.ID(), ten.ID())

		gate := authz.NewGate(tenants, newFakePermissionStore())
		rc, err := gate.ResolveTenant(ctx, u, ten.ID().String())

		require.NoError(t, err)
		assert.True(t, rc.TenantID().Equals(ten.ID()))
		assert.Equal(t, u.ID(), rc.Principal().ID())
	})

	t.Run("nil principal", func(t *testing.T) {
		gate := authz.NewGate(newFakeTenantSource(), newFakePermissionStore())
		_, err := gate.ResolveTenant(ctx, nil, shared.NewID().String())
		assert.ErrorIs(t, err, authz.ErrAuthenticationRequired)
	})

	t.Run("deactivated principal", func(t *testing.T) {
		tenants := newFakeTenantSource()
		ten := newTestTenant(true)
		tenants.addTenant(ten)
		u := newTestUser(shared.ID{}, false)
		tenants.addMembership(u.ID(), ten.ID())

		gate := authz.NewGate(tenants, newFakePermissionStore())
		_, err := gate.ResolveTenant(ctx, u, ten.ID().String())
		assert.ErrorIs(t, err, authz.ErrAuthenticationRequired)
	})

	t.Run("missing tenant identifier", func(t *testing.T) {
		gate := authz.NewGate(newFakeTenantSource(), newFakePermissionStore())
		_, err := gate.ResolveTenant(ctx, newTestUser(shared.ID{}, true), "")
		assert.ErrorIs(t, err, authz.ErrTenantRequired)
	})

	t.Run("malformed tenant identifier", func(t *testing.T) {
		gate := authz.NewGate(newFakeTenantSource(), newFakePermissionStore())
		_, err := gate.ResolveTenant(ctx, newTestUser(shared.ID{}, true), "not-a-uuid")
		assert.ErrorIs(t, err, authz.ErrTenantMismatch)
	})

	t.Run("no membership in requested tenant", func(t *testing.T) {
		tenants := newFakeTenantSource()
		home := newTestTenant(true)
		other := newTestTenant(true)
		tenants.addTenant(home)
		tenants.addTenant(other)
		u := newTestUser(shared.ID{}, true)
		tenants.addMembership(u.ID(), home.ID())

		gate := authz.NewGate(tenants, newFakePermissionStore())
		_, err := gate.ResolveTenant(ctx, u, other.ID().String())
		assert.ErrorIs(t, err, authz.ErrTenantMismatch)
	})

	t.Run("inactive tenant", func(t *testing.T) {
		tenants := newFakeTenantSource()
		ten := newTestTenant(false)
		tenants.addTenant(ten)
		u := newTestUser(shared.ID{}, true)
		tenants.addMembership(u.ID(), ten.ID())

		gate := authz.NewGate(tenants, newFakePermissionStore())
		_, err := gate.ResolveTenant(ctx, u, ten.ID().String())
		assert.ErrorIs(t, err, authz.ErrTenantMismatch)
	})

	t.Run("legacy home tenant without memberships", func(t *testing.T) {
		tenants := newFakeTenantSource()
		ten := newTestTenant(true)
		tenants.addTenant(ten)
		u := newTestUser(ten.ID(), true)

		gate := authz.NewGate(tenants, newFakePermissionStore())
		rc, err := gate.ResolveTenant(ctx, u, ten.ID().String())

		require.NoError(t, err)
		assert.True(t, rc.TenantID().Equals(ten.ID()))
	})

	t.Run("legacy fallback disabled once memberships exist", func(t *testing.T) {
		tenants := newFakeTenantSource()
		legacy := newTestTenant(true)
		current := newTestTenant(true)
		tenants.addTenant(legacy)
		tenants.addTenant(current)
		u := newTestUser(legacy.ID(), true)
		tenants.addMembership(u.ID(), current.ID())

		gate := authz.NewGate(tenants, newFakePermissionStore())
		_, err := gate.ResolveTenant(ctx, u, legacy.ID().String())
		assert.ErrorIs(t, err, authz.ErrTenantMismatch)
	})
}

// Failure precedence: authentication before tenant identification before
// membership. A request missing everything fails on the earliest stage.
func TestGate_ResolveTenant_FailureOrder(t *testing.T) {
	ctx := context.Background()
	gate := authz.NewGate(newFakeTenantSource(), newFakePermissionStore())

	// Unauthenticated and no tenant header: the auth failure wins.
	_, err := gate.ResolveTenant(ctx, nil, "")
	assert.ErrorIs(t, err, authz.ErrAuthenticationRequired)

	// Authenticated, no tenant header: missing identifier wins over the
	// membership check that would also fail.
	_, err = gate.ResolveTenant(ctx, newTestUser(shared.ID{}, true), "")
	assert.ErrorIs(t, err, authz.ErrTenantRequired)
}

func TestGate_Authorize(t *testing.T) {
	ctx := context.Background()

	setup := func(codes ...string) (*authz.Gate, *authz.RequestContext, *fakePermissionStore) {
		tenants := newFakeTenantSource()
		ten := newTestTenant(true)
		tenants.addTenant(ten)
		u := newTestUser(shared.ID{}, true)
		tenants.addMembership(u.ID(), ten.ID())

		store := newFakePermissionStore()
		store.grant(u.ID(), codes...)

		gate := authz.NewGate(tenants, store)
		rc, err := gate.ResolveTenant(ctx, u, ten.ID().String())
		require.NoError(t, err)
		return gate, rc, store
	}

	t.Run("exact code match", func(t *testing.T) {
		gate, rc, _ := setup("project.view")
		assert.NoError(t, gate.Authorize(ctx, rc, permission.ProjectView))
	})

	t.Run("missing code", func(t *testing.T) {
		gate, rc, _ := setup("project.view")
		assert.ErrorIs(t, gate.Authorize(ctx, rc, permission.ProjectDelete), authz.ErrPermissionDenied)
	})

	t.Run("no prefix or hierarchy matching", func(t *testing.T) {
		// contract.view is not a parent of contract.payment.view and the
		// payment code does not grant the shorter one either.
		gate, rc, _ := setup("contract.view")
		assert.ErrorIs(t, gate.Authorize(ctx, rc, permission.ContractPaymentView), authz.ErrPermissionDenied)

		gate, rc, _ = setup("contract.payment.view")
		assert.ErrorIs(t, gate.Authorize(ctx, rc, permission.ContractView), authz.ErrPermissionDenied)
	})

	t.Run("disjunction admits any one code", func(t *testing.T) {
		gate, rc, _ := setup("task.edit")
		assert.NoError(t, gate.Authorize(ctx, rc, permission.TaskAssign, permission.TaskEdit))
	})

	t.Run("empty requirement passes", func(t *testing.T) {
		gate, rc, _ := setup()
		assert.NoError(t, gate.Authorize(ctx, rc))
	})

	t.Run("nil request context", func(t *testing.T) {
		gate, _, _ := setup()
		assert.ErrorIs(t, gate.Authorize(ctx, nil, permission.ProjectView), authz.ErrAuthenticationRequired)
	})

	t.Run("permissions memoized within one request", func(t *testing.T) {
		gate, rc, store := setup("project.view")
		require.NoError(t, gate.Authorize(ctx, rc, permission.ProjectView))
		require.NoError(t, gate.Authorize(ctx, rc, permission.ProjectView))
		assert.Equal(t, 1, store.calls)
	})
}

// A revoked grant must not survive into the next request: the permission set
// is recomputed whenever a new RequestContext is built.
func TestGate_RevocationTakesEffectNextRequest(t *testing.T) {
	ctx := context.Background()

	tenants := newFakeTenantSource()
	ten := newTestTenant(true)
	tenants.addTenant(ten)
	u := newTestUser(shared.ID{}, true)
	tenants.addMembership(u.ID(), ten.ID())

	store := newFakePermissionStore()
	store.grant(u.ID(), "project.view")
	gate := authz.NewGate(tenants, store)

	rc1, err := gate.ResolveTenant(ctx, u, ten.ID().String())
	require.NoError(t, err)
	require.NoError(t, gate.Authorize(ctx, rc1, permission.ProjectView))

	store.grant(u.ID()) // revoke everything

	// The in-flight request keeps its memoized set.
	assert.NoError(t, gate.Authorize(ctx, rc1, permission.ProjectView))

	// The next request sees the revocation.
	rc2, err := gate.ResolveTenant(ctx, u, ten.ID().String())
	require.NoError(t, err)
	assert.ErrorIs(t, gate.Authorize(ctx, rc2, permission.ProjectView), authz.ErrPermissionDenied)
}

type scopedEntity struct {
	tenantID shared.ID
}

func (e *scopedEntity) TenantID() shared.ID { return e.tenantID }

func TestVerifyScope(t *testing.T) {
	ctx := context.Background()

	tenants := newFakeTenantSource()
	ten := newTestTenant(true)
	tenants.addTenant(ten)
	u := newTestUser(shared.ID{}, true)
	tenants.addMembership(u.ID(), ten.ID())

	gate := authz.NewGate(tenants, newFakePermissionStore())
	rc, err := gate.ResolveTenant(ctx, u, ten.ID().String())
	require.NoError(t, err)

	t.Run("same tenant passes", func(t *testing.T) {
		assert.NoError(t, authz.VerifyScope(rc, &scopedEntity{tenantID: ten.ID()}))
	})

	t.Run("cross-tenant entity reads as not found", func(t *testing.T) {
		err := authz.VerifyScope(rc, &scopedEntity{tenantID: shared.NewID()})
		assert.ErrorIs(t, err, authz.ErrResourceNotFound)
	})

	t.Run("nil entity reads as not found", func(t *testing.T) {
		assert.ErrorIs(t, authz.VerifyScope(rc, nil), authz.ErrResourceNotFound)
	})

	t.Run("nil request context", func(t *testing.T) {
		err := authz.VerifyScope(nil, &scopedEntity{tenantID: ten.ID()})
		assert.ErrorIs(t, err, authz.ErrAuthenticationRequired)
	})

	t.Run("gate method delegates", func(t *testing.T) {
		err := gate.VerifyScope(rc, &scopedEntity{tenantID: shared.NewID()})
		assert.ErrorIs(t, err, authz.ErrResourceNotFound)
	})
}
