// Package authz implements the tenant-isolation and RBAC authorization gate
// every business endpoint passes through: resolve the caller's tenant,
// compute the caller's effective permissions for that tenant, and deny before
// any business logic runs. Cross-tenant resource references are reported as
// not-found so an attacker probing ids cannot learn whether an id exists in
// another tenant.
package authz

import "errors"

// Gate failures. All are terminal and request-scoped; none is retryable.
var (
	// ErrAuthenticationRequired: no valid principal. Surfaced as 401.
	ErrAuthenticationRequired = errors.New("authentication required")

	// ErrTenantRequired: the request carries no tenant identifier. Surfaced
	// as 400, distinct from authentication and authorization failures.
	ErrTenantRequired = errors.New("tenant identifier missing")

	// ErrTenantMismatch: the principal holds no membership in the requested
	// tenant. Surfaced as 403.
	ErrTenantMismatch = errors.New("tenant mismatch")

	// ErrPermissionDenied: the principal lacks the required permission in the
	// resolved tenant. Surfaced as 403.
	ErrPermissionDenied = errors.New("permission denied")

	// ErrResourceNotFound: the target entity belongs to a different tenant or
	// does not exist. Surfaced as 404 with no signal distinguishing the two.
	ErrResourceNotFound = errors.New("resource not found")
)
