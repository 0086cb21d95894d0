package authz

import (
	"context"

	"github.com/girderhq/api/pkg/domain/permission"
	"github.com/girderhq/api/pkg/domain/shared"
	"github.com/girderhq/api/pkg/domain/user"
)

// PermissionStore computes the effective permission set for one
// (principal, tenant) pair: the union of codes across every active role the
// principal holds system-wide or specifically within that tenant. A principal
// with zero role assignments yields an empty set, not an error.
type PermissionStore interface {
	EffectivePermissions(ctx context.Context, userID, tenantID shared.ID) (permission.Set, error)
}

// RequestContext carries the per-request resolved (principal, tenant,
// effective-permission-set) triple. It is built fresh on every request and
// destroyed at response time; the permission set is memoized only within this
// lifetime so a revocation takes effect on the very next request.
type RequestContext struct {
	principal *user.User
	tenantID  shared.ID

	store       PermissionStore
	permissions permission.Set
	resolved    bool
}

// NewRequestContext builds a RequestContext for a resolved principal and
// tenant. The store is consulted lazily on the first permission check.
func NewRequestContext(principal *user.User, tenantID shared.ID, store PermissionStore) *RequestContext {
	return &RequestContext{
		principal: principal,
		tenantID:  tenantID,
		store:     store,
	}
}

// Principal returns the authenticated actor.
func (rc *RequestContext) Principal() *user.User { return rc.principal }

// TenantID returns the resolved tenant for this request.
func (rc *RequestContext) TenantID() shared.ID { return rc.tenantID }

// Permissions returns the effective permission set, computing it on first use.
func (rc *RequestContext) Permissions(ctx context.Context) (permission.Set, error) {
	if rc.resolved {
		return rc.permissions, nil
	}
	set, err := rc.store.EffectivePermissions(ctx, rc.principal.ID(), rc.tenantID)
	if err != nil {
		return nil, err
	}
	rc.permissions = set
	rc.resolved = true
	return set, nil
}

type contextKey struct{}

// ToContext attaches the RequestContext to a context.Context so handlers
// downstream of the gate can read the resolved tenant and principal.
func ToContext(ctx context.Context, rc *RequestContext) context.Context {
	return context.WithValue(ctx, contextKey{}, rc)
}

// FromContext retrieves the RequestContext, or nil when the gate has not run.
func FromContext(ctx context.Context) *RequestContext {
	if rc, ok := ctx.Value(contextKey{}).(*RequestContext); ok {
		return rc
	}
	return nil
}
