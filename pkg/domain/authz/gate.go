package authz

import (
	"context"
	"fmt"

	"github.com/girderhq/api/pkg/domain/permission"
	"github.com/girderhq/api/pkg/domain/shared"
	"github.com/girderhq/api/pkg/domain/tenant"
	"github.com/girderhq/api/pkg/domain/user"
)

// TenantSource provides the tenant and membership lookups the resolver needs.
// Satisfied by tenant.Repository.
type TenantSource interface {
	GetByID(ctx context.Context, id shared.ID) (*tenant.Tenant, error)
	GetMembership(ctx context.Context, userID, tenantID shared.ID) (*tenant.Membership, error)
	ListMemberships(ctx context.Context, userID shared.ID) ([]*tenant.Membership, error)
}

// Gate composes tenant resolution, permission evaluation, and resource
// scoping in a fixed order. It holds no mutable state: everything is
// re-derived from persistent storage on every invocation, which is what makes
// permission revocation immediately effective without cache invalidation.
type Gate struct {
	tenants TenantSource
	store   PermissionStore
}

// NewGate creates a Gate.
func NewGate(tenants TenantSource, store PermissionStore) *Gate {
	return &Gate{tenants: tenants, store: store}
}

// ResolveTenant validates the raw tenant identifier supplied by the request
// against the principal's memberships and returns the RequestContext for the
// rest of the chain.
//
// Failure order is fixed: missing principal (ErrAuthenticationRequired) is
// checked before the identifier, a blank identifier fails with
// ErrTenantRequired, and an identifier the principal has no membership in
// fails with ErrTenantMismatch. A principal with zero membership rows may
// still resolve their legacy home tenant; this is a migration-path fallback,
// not a permanent feature.
func (g *Gate) ResolveTenant(ctx context.Context, principal *user.User, rawTenantID string) (*RequestContext, error) {
	if principal == nil || !principal.IsActive() {
		return nil, ErrAuthenticationRequired
	}
	if rawTenantID == "" {
		return nil, ErrTenantRequired
	}

	tenantID, err := shared.IDFromString(rawTenantID)
	if err != nil {
		// A malformed identifier can never match a membership.
		return nil, ErrTenantMismatch
	}

	if err := g.checkAccess(ctx, principal, tenantID); err != nil {
		return nil, err
	}

	t, err := g.tenants.GetByID(ctx, tenantID)
	if err != nil {
		if shared.IsNotFound(err) {
			return nil, ErrTenantMismatch
		}
		return nil, fmt.Errorf("resolve tenant: %w", err)
	}
	if !t.IsActive() {
		return nil, ErrTenantMismatch
	}

	return NewRequestContext(principal, tenantID, g.store), nil
}

// checkAccess verifies the principal may operate within tenantID: either a
// membership row exists, or the principal has no memberships at all and
// tenantID equals their legacy home tenant.
func (g *Gate) checkAccess(ctx context.Context, principal *user.User, tenantID shared.ID) error {
	_, err := g.tenants.GetMembership(ctx, principal.ID(), tenantID)
	if err == nil {
		return nil
	}
	if !shared.IsNotFound(err) {
		return fmt.Errorf("check membership: %w", err)
	}

	memberships, err := g.tenants.ListMemberships(ctx, principal.ID())
	if err != nil {
		return fmt.Errorf("list memberships: %w", err)
	}
	if len(memberships) == 0 && !principal.TenantID().IsZero() && principal.TenantID().Equals(tenantID) {
		return nil
	}

	return ErrTenantMismatch
}

// Authorize checks that the effective permission set for the request contains
// the required code, or at least one of a disjunction. Codes are opaque
// atoms: no wildcard or prefix matching is performed.
//
// Authorize must run before any lookup of the specific target entity so a
// principal lacking the base permission receives a permission denial even
// when the referenced id does not exist or belongs to another tenant.
func (g *Gate) Authorize(ctx context.Context, rc *RequestContext, required ...permission.Code) error {
	if rc == nil || rc.Principal() == nil {
		return ErrAuthenticationRequired
	}
	if len(required) == 0 {
		return nil
	}

	set, err := rc.Permissions(ctx)
	if err != nil {
		return fmt.Errorf("effective permissions: %w", err)
	}
	if set.HasAny(required...) {
		return nil
	}
	return ErrPermissionDenied
}

// Scoped is any loaded domain entity that carries a tenant reference.
type Scoped interface {
	TenantID() shared.ID
}

// VerifyScope is the Resource Scope Guard: a loaded entity whose tenant
// differs from the request's resolved tenant is reported as not found,
// indistinguishable from a truly absent id. It runs after Authorize, so
// permission-less callers get a permission denial while permission-holding
// callers probing foreign ids get not-found.
func (g *Gate) VerifyScope(rc *RequestContext, entity Scoped) error {
	return VerifyScope(rc, entity)
}

// VerifyScope is the standalone form used by services that load entities
// without a Gate handle.
func VerifyScope(rc *RequestContext, entity Scoped) error {
	if rc == nil {
		return ErrAuthenticationRequired
	}
	if entity == nil || !entity.TenantID().Equals(rc.TenantID()) {
		return ErrResourceNotFound
	}
	return nil
}
