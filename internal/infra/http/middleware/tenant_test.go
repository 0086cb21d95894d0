package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/girderhq/api/pkg/apierror"
	"github.com/girderhq/api/pkg/domain/authz"
	"github.com/girderhq/api/pkg/domain/permission"
	"github.com/girderhq/api/pkg/domain/shared"
	"github.com/girderhq/api/pkg/domain/tenant"
	"github.com/girderhq/api/pkg/domain/user"
)

type stubTenantSource struct {
	tenants     map[shared.ID]*tenant.Tenant
	memberships []*tenant.Membership
}

func (s *stubTenantSource) GetByID(_ context.Context, id shared.ID) (*tenant.Tenant, error) {
	if t, ok := s.tenants[id]; ok {
		return t, nil
	}
	return nil, shared.ErrNotFound
}

func (s *stubTenantSource) GetMembership(_ context.Context, userID, tenantID shared.ID) (*tenant.Membership, error) {
	for _, m := range s.memberships {
		if m.UserID().Equals(userID) && m.TenantID().Equals(tenantID) {
			return m, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (s *stubTenantSource) ListMemberships(_ context.Context, userID shared.ID) ([]*tenant.Membership, error) {
	var out []*tenant.Membership
	for _, m := range s.memberships {
		if m.UserID().Equals(userID) {
			out = append(out, m)
		}
	}
	return out, nil
}

type stubPermissionStore struct {
	codes []string
}

func (s *stubPermissionStore) EffectivePermissions(_ context.Context, _, _ shared.ID) (permission.Set, error) {
	return permission.NewSet(s.codes), nil
}

// gateFixture wires a gate with one member user in one active tenant.
type gateFixture struct {
	gate      *authz.Gate
	principal *user.User
	tenantID  shared.ID
}

func newGateFixture(t *testing.T, codes ...string) *gateFixture {
	t.Helper()
	now := time.Now().UTC()

	ten := tenant.Reconstitute(shared.NewID(), "Acme Construction", "acme", true, now, now)
	u := user.Reconstitute(shared.NewID(), "pm@example.com", "PM", "hash", shared.ID{}, true, now, now)
	m := tenant.ReconstituteMembership(shared.NewID(), u.ID(), ten.ID(), shared.NewID(), true, now)

	source := &stubTenantSource{
		tenants:     map[shared.ID]*tenant.Tenant{ten.ID(): ten},
		memberships: []*tenant.Membership{m},
	}
	return &gateFixture{
		gate:      authz.NewGate(source, &stubPermissionStore{codes: codes}),
		principal: u,
		tenantID:  ten.ID(),
	}
}

// withPrincipal simulates a request that already passed the auth stage.
func withPrincipal(r *http.Request, u *user.User) *http.Request {
	return r.WithContext(context.WithValue(r.Context(), principalKey{}, u))
}

func decodeErrorEnvelope(t *testing.T, rec *httptest.ResponseRecorder) apierror.Envelope {
	t.Helper()
	var env apierror.Envelope
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&env))
	assert.False(t, env.Success)
	assert.Equal(t, "error", env.Status)
	return env
}

func okHandler(called *bool) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*called = true
		w.WriteHeader(http.StatusOK)
	})
}

func TestTenantContext(t *testing.T) {
	t.Run("attaches request context for a member", func(t *testing.T) {
		fx := newGateFixture(t)
		var rc *authz.RequestContext
		handler := TenantContext(fx.gate)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rc = authz.FromContext(r.Context())
			w.WriteHeader(http.StatusOK)
		}))

		req := withPrincipal(httptest.NewRequest(http.MethodGet, "/projects", nil), fx.principal)
		req.Header.Set(TenantHeader, fx.tenantID.String())
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		require.NotNil(t, rc)
		assert.True(t, rc.TenantID().Equals(fx.tenantID))
	})

	t.Run("missing header is 400 TENANT_REQUIRED", func(t *testing.T) {
		fx := newGateFixture(t)
		called := false
		handler := TenantContext(fx.gate)(okHandler(&called))

		req := withPrincipal(httptest.NewRequest(http.MethodGet, "/projects", nil), fx.principal)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.False(t, called)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		env := decodeErrorEnvelope(t, rec)
		assert.Equal(t, apierror.CodeTenantRequired, env.Error.Code)
	})

	t.Run("foreign tenant is 403 TENANT_INVALID", func(t *testing.T) {
		fx := newGateFixture(t)
		called := false
		handler := TenantContext(fx.gate)(okHandler(&called))

		req := withPrincipal(httptest.NewRequest(http.MethodGet, "/projects", nil), fx.principal)
		req.Header.Set(TenantHeader, shared.NewID().String())
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.False(t, called)
		assert.Equal(t, http.StatusForbidden, rec.Code)
		env := decodeErrorEnvelope(t, rec)
		assert.Equal(t, apierror.CodeTenantInvalid, env.Error.Code)
	})

	t.Run("no principal is 401 before any tenant check", func(t *testing.T) {
		fx := newGateFixture(t)
		called := false
		handler := TenantContext(fx.gate)(okHandler(&called))

		// Valid tenant header, but the auth stage never ran.
		req := httptest.NewRequest(http.MethodGet, "/projects", nil)
		req.Header.Set(TenantHeader, fx.tenantID.String())
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.False(t, called)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		env := decodeErrorEnvelope(t, rec)
		assert.Equal(t, apierror.CodeAuthentication, env.Error.Code)
	})
}

func TestRequirePermission(t *testing.T) {
	t.Run("holder passes", func(t *testing.T) {
		fx := newGateFixture(t, "project.view")
		called := false
		handler := TenantContext(fx.gate)(RequirePermission(fx.gate, permission.ProjectView)(okHandler(&called)))

		req := withPrincipal(httptest.NewRequest(http.MethodGet, "/projects", nil), fx.principal)
		req.Header.Set(TenantHeader, fx.tenantID.String())
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.True(t, called)
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("non-holder is 403 regardless of target id", func(t *testing.T) {
		fx := newGateFixture(t, "project.view")
		called := false
		handler := TenantContext(fx.gate)(RequirePermission(fx.gate, permission.ProjectDelete)(okHandler(&called)))

		req := withPrincipal(httptest.NewRequest(http.MethodDelete, "/projects/"+shared.NewID().String(), nil), fx.principal)
		req.Header.Set(TenantHeader, fx.tenantID.String())
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.False(t, called)
		assert.Equal(t, http.StatusForbidden, rec.Code)
		env := decodeErrorEnvelope(t, rec)
		assert.Equal(t, apierror.CodeAuthorization, env.Error.Code)
	})

	t.Run("any one of a disjunction admits", func(t *testing.T) {
		fx := newGateFixture(t, "task.edit")
		called := false
		handler := TenantContext(fx.gate)(RequireAny(fx.gate, permission.TaskAssign, permission.TaskEdit)(okHandler(&called)))

		req := withPrincipal(httptest.NewRequest(http.MethodPut, "/tasks/x/assignee", nil), fx.principal)
		req.Header.Set(TenantHeader, fx.tenantID.String())
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.True(t, called)
	})

	t.Run("missing request context is 401", func(t *testing.T) {
		fx := newGateFixture(t, "project.view")
		called := false
		handler := RequirePermission(fx.gate, permission.ProjectView)(okHandler(&called))

		req := httptest.NewRequest(http.MethodGet, "/projects", nil)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.False(t, called)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

// The gate stages fail in a fixed order: authentication, then tenant
// identification, then tenant validity, then permission. Each test removes
// one more defect from the request and the failure moves one stage later.
func TestGateFailureOrder(t *testing.T) {
	fx := newGateFixture(t) // member, but no permissions granted
	chain := TenantContext(fx.gate)(RequirePermission(fx.gate, permission.ProjectView)(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		})))

	run := func(req *http.Request) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		chain.ServeHTTP(rec, req)
		return rec
	}

	// No principal, no header, no permission: 401 wins.
	rec := run(httptest.NewRequest(http.MethodGet, "/projects", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// Principal but no header: 400 wins over the permission failure.
	req := withPrincipal(httptest.NewRequest(http.MethodGet, "/projects", nil), fx.principal)
	rec = run(req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// Principal and a foreign tenant: 403 TENANT_INVALID wins.
	req = withPrincipal(httptest.NewRequest(http.MethodGet, "/projects", nil), fx.principal)
	req.Header.Set(TenantHeader, shared.NewID().String())
	rec = run(req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, apierror.CodeTenantInvalid, decodeErrorEnvelope(t, rec).Error.Code)

	// Principal and their own tenant: the permission failure finally shows.
	req = withPrincipal(httptest.NewRequest(http.MethodGet, "/projects", nil), fx.principal)
	req.Header.Set(TenantHeader, fx.tenantID.String())
	rec = run(req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, apierror.CodeAuthorization, decodeErrorEnvelope(t, rec).Error.Code)
}
