package shared

// Canonical permission keys guarding the engine's own administration API.
// Seeded with the catalog so the bootstrap admin role can hold them.
const (
	PermRBACRead   = "administration.rbac.read"
	PermRBACUpdate = "administration.rbac.update"
	PermRBACFull   = "administration.rbac.full"
)
