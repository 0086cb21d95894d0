// Package permission defines the granular permission codes used by the
// authorization gate.
//
// Permission naming convention follows a dotted pattern:
//
//	{module}.{action}
//
// Examples:
//   - project.view (read projects)
//   - task.assign (assign tasks to members)
//
// Sub-features add a segment before the action:
//
//	{module}.{subfeature}.{action}
//
// Examples:
//   - contract.payment.create (record contract payments)
//
// Codes are opaque atoms: holding contract.view does NOT imply
// contract.payment.view. Any hierarchy must be expressed by assigning
// multiple explicit codes to a role.
package permission

import (
	"slices"
	"strings"
)

// Code represents a granular permission for a specific action on a resource.
type Code string

// String returns the string representation of the permission code.
func (c Code) String() string {
	return string(c)
}

// Module returns the leading module segment of the code.
func (c Code) Module() string {
	s := string(c)
	if i := strings.IndexByte(s, '.'); i > 0 {
		return s[:i]
	}
	return s
}

// Action returns everything after the module segment.
func (c Code) Action() string {
	s := string(c)
	if i := strings.IndexByte(s, '.'); i > 0 {
		return s[i+1:]
	}
	return ""
}

// Project module.
const (
	ProjectView   Code = "project.view"
	ProjectCreate Code = "project.create"
	ProjectEdit   Code = "project.edit"
	ProjectDelete Code = "project.delete"
)

// Task module.
const (
	TaskView   Code = "task.view"
	TaskCreate Code = "task.create"
	TaskEdit   Code = "task.edit"
	TaskDelete Code = "task.delete"
	TaskAssign Code = "task.assign"
)

// RFI module.
const (
	RFIView    Code = "rfi.view"
	RFICreate  Code = "rfi.create"
	RFIRespond Code = "rfi.respond"
)

// Contract module. Payment codes are distinct atoms: contract.view does not
// grant access to payment records.
const (
	ContractView   Code = "contract.view"
	ContractCreate Code = "contract.create"
	ContractEdit   Code = "contract.edit"

	ContractPaymentView   Code = "contract.payment.view"
	ContractPaymentCreate Code = "contract.payment.create"
)

// Notification module.
const (
	NotificationView Code = "notification.view"
)

// Role administration.
const (
	RoleView   Code = "role.view"
	RoleAssign Code = "role.assign"
)

// Tenant administration.
const (
	TenantMemberManage Code = "tenant.member.manage"
)

// All returns every permission code known to the application, in catalog
// order. Used by the seeder and the permission listing endpoint.
func All() []Code {
	return []Code{
		ProjectView, ProjectCreate, ProjectEdit, ProjectDelete,
		TaskView, TaskCreate, TaskEdit, TaskDelete, TaskAssign,
		RFIView, RFICreate, RFIRespond,
		ContractView, ContractCreate, ContractEdit,
		ContractPaymentView, ContractPaymentCreate,
		NotificationView,
		RoleView, RoleAssign,
		TenantMemberManage,
	}
}

// IsKnown reports whether the code is part of the application catalog.
// The gate itself treats codes as opaque; this is used only by the seeder
// and role-editing endpoints to reject typos.
func IsKnown(c Code) bool {
	return slices.Contains(All(), c)
}

// Set is an effective permission set for one (principal, tenant) pair.
// It is computed fresh for every request and never cached across requests,
// so revocations take effect on the next request.
type Set map[Code]struct{}

// NewSet builds a Set from raw code strings.
func NewSet(codes []string) Set {
	s := make(Set, len(codes))
	for _, c := range codes {
		s[Code(c)] = struct{}{}
	}
	return s
}

// Has reports whether the exact code is present. No wildcard or prefix
// matching is performed.
func (s Set) Has(c Code) bool {
	_, ok := s[c]
	return ok
}

// HasAny reports whether at least one of the codes is present.
func (s Set) HasAny(codes ...Code) bool {
	for _, c := range codes {
		if s.Has(c) {
			return true
		}
	}
	return false
}

// Codes returns the set contents as sorted strings.
func (s Set) Codes() []string {
	out := make([]string, 0, len(s))
	for c := range s {
		out = append(out, string(c))
	}
	slices.Sort(out)
	return out
}
