package catalog

import (
	"context"
	"strings"
)

// Reader is the slice of the repository the service depends on.
type Reader interface {
	ListActiveModules(ctx context.Context) ([]Module, error)
	ListActiveSubmodules(ctx context.Context) ([]Submodule, error)
	ListPermissions(ctx context.Context) ([]Permission, error)
	ListSubmodulePermissions(ctx context.Context, moduleSlug, submoduleSlug string) ([]Permission, error)
}

// Service exposes the read-only Module -> Submodule -> Permission tree.
type Service struct {
	repo Reader
}

// NewService constructs a Service.
func NewService(repo Reader) *Service {
	return &Service{repo: repo}
}

// GetStructure assembles the active catalog tree. Permissions of inactive
// submodules or modules never appear.
func (s *Service) GetStructure(ctx context.Context) ([]Module, error) {
	modules, err := s.repo.ListActiveModules(ctx)
	if err != nil {
		return nil, err
	}
	submodules, err := s.repo.ListActiveSubmodules(ctx)
	if err != nil {
		return nil, err
	}
	perms, err := s.repo.ListPermissions(ctx)
	if err != nil {
		return nil, err
	}

	permsBySubmodule := make(map[int64][]Permission, len(submodules))
	for _, p := range perms {
		permsBySubmodule[p.SubmoduleID] = append(permsBySubmodule[p.SubmoduleID], p)
	}
	subsByModule := make(map[int64][]Submodule, len(modules))
	for _, sub := range submodules {
		sub.Permissions = permsBySubmodule[sub.ID]
		if sub.Permissions == nil {
			sub.Permissions = []Permission{}
		}
		subsByModule[sub.ModuleID] = append(subsByModule[sub.ModuleID], sub)
	}
	tree := make([]Module, 0, len(modules))
	for _, m := range modules {
		m.Submodules = subsByModule[m.ID]
		if m.Submodules == nil {
			m.Submodules = []Submodule{}
		}
		tree = append(tree, m)
	}
	return tree, nil
}

// ListPermissions returns the flat permission list with canonical keys.
func (s *Service) ListPermissions(ctx context.Context) ([]Permission, error) {
	return s.repo.ListPermissions(ctx)
}

// Resolution is the outcome of resolving a (module, submodule, permission)
// triple. Wildcard carries the submodule's "full" permission when one exists.
type Resolution struct {
	Permission Permission
	Wildcard   *Permission
}

// ResolvePermission maps a slug triple to the stored permission. The
// requested slug may be bare ("read") or already prefixed with the
// submodule slug ("inventory-management.read"); both resolve to the same
// record. Returns ErrNotFound when the triple does not identify an active
// catalog permission.
func (s *Service) ResolvePermission(ctx context.Context, moduleSlug, submoduleSlug, permissionSlug string) (Resolution, error) {
	moduleSlug = strings.TrimSpace(moduleSlug)
	submoduleSlug = strings.TrimSpace(submoduleSlug)
	permissionSlug = strings.TrimSpace(permissionSlug)
	if moduleSlug == "" || submoduleSlug == "" || permissionSlug == "" {
		return Resolution{}, ErrNotFound
	}

	perms, err := s.repo.ListSubmodulePermissions(ctx, moduleSlug, submoduleSlug)
	if err != nil {
		return Resolution{}, err
	}

	wanted := ActionSlug(submoduleSlug, permissionSlug)
	var res Resolution
	for i := range perms {
		action := ActionSlug(submoduleSlug, perms[i].Slug)
		if action == wanted {
			res.Permission = perms[i]
		}
		if action == WildcardSlug {
			w := perms[i]
			res.Wildcard = &w
		}
	}
	if res.Permission.ID == 0 {
		return Resolution{}, ErrNotFound
	}
	if res.Wildcard != nil && res.Wildcard.ID == res.Permission.ID {
		res.Wildcard = nil
	}
	return res, nil
}
