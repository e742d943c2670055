// Package access implements the permission resolution engine: the sole
// authority for "may actor A perform permission P in submodule S of module M".
package access

import (
	"github.com/sol-suite/sol-access/internal/catalog"
	"github.com/sol-suite/sol-access/internal/overrides"
	"github.com/sol-suite/sol-access/internal/roles"
)

// Reason explains a decision. Absence of a positive grant is always a deny;
// the engine never fails open.
type Reason string

const (
	// ReasonUnknownPermission means the requested triple does not resolve
	// to a catalog permission. Always a deny, never an error.
	ReasonUnknownPermission Reason = "unknown_permission"
	// ReasonOverrideGrant means an active per-user override granted access.
	ReasonOverrideGrant Reason = "override_grant"
	// ReasonOverrideDeny means an active per-user override denied access,
	// regardless of role membership.
	ReasonOverrideDeny Reason = "override_deny"
	// ReasonRoleGrant means an active role's permission set granted access.
	ReasonRoleGrant Reason = "role_grant"
	// ReasonNoGrant means nothing positively granted access.
	ReasonNoGrant Reason = "no_grant"
)

// Decision is the outcome of resolving one permission for one actor.
type Decision struct {
	Allowed bool   `json:"allowed"`
	Reason  Reason `json:"reason"`
}

var (
	denyUnknown = Decision{Allowed: false, Reason: ReasonUnknownPermission}
	denyNoGrant = Decision{Allowed: false, Reason: ReasonNoGrant}
)

// UserPermissionView separates role-derived permissions from active
// overrides for audit and inspection UIs.
type UserPermissionView struct {
	Roles           []roles.Role         `json:"roles"`
	RolePermissions []catalog.Permission `json:"role_permissions"`
	DirectGrants    []OverrideDetail     `json:"direct_grants"`
	DirectDenials   []OverrideDetail     `json:"direct_denials"`
}

// OverrideDetail pairs an active override with its catalog permission.
type OverrideDetail struct {
	Permission catalog.Permission `json:"permission"`
	Override   overrides.Override `json:"override"`
}
