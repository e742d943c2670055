package access

import (
	"context"
	"errors"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/sol-suite/sol-access/internal/catalog"
	"github.com/sol-suite/sol-access/internal/overrides"
	"github.com/sol-suite/sol-access/internal/roles"
)

// CatalogReader resolves slug triples and enumerates the permission catalog.
type CatalogReader interface {
	ResolvePermission(ctx context.Context, moduleSlug, submoduleSlug, permissionSlug string) (catalog.Resolution, error)
	ListPermissions(ctx context.Context) ([]catalog.Permission, error)
}

// RoleReader exposes the actor's role-derived permission state.
type RoleReader interface {
	ListRolesForUser(ctx context.Context, userID int64) ([]roles.Role, error)
	ListUserRolePermissionIDs(ctx context.Context, userID int64) ([]int64, error)
}

// OverrideReader exposes the actor's active overrides keyed by permission id.
type OverrideReader interface {
	GetActiveOverrides(ctx context.Context, userID int64) (map[int64]overrides.Override, error)
}

// DecisionRecorder counts resolutions per reason.
type DecisionRecorder interface {
	RecordDecision(reason string)
}

// Engine combines catalog, roles and overrides into allow/deny decisions.
// Check and EffectivePermissions are pure functions of store state at call
// time; the optional cache accelerates EffectivePermissions only.
type Engine struct {
	logger    *slog.Logger
	catalog   CatalogReader
	roles     RoleReader
	overrides OverrideReader
	cache     *Cache
	metrics   DecisionRecorder
}

// NewEngine constructs an Engine. Cache and metrics may be nil.
func NewEngine(logger *slog.Logger, cat CatalogReader, r RoleReader, o OverrideReader, cache *Cache, metrics DecisionRecorder) *Engine {
	return &Engine{logger: logger, catalog: cat, roles: r, overrides: o, cache: cache, metrics: metrics}
}

// Check resolves one permission for one actor. Decision order, first match
// wins:
//
//  1. Unknown module/submodule/permission triple -> deny.
//  2. Active override for the exact permission -> its granted flag.
//     Explicit per-user state beats role-derived state, denies included.
//  3. Active grant override on the submodule's wildcard permission -> grant.
//  4. Any active role holding the exact or the wildcard permission -> grant.
//  5. Deny.
//
// Storage failures are returned as errors; the engine never guesses.
func (e *Engine) Check(ctx context.Context, actorID int64, moduleSlug, submoduleSlug, permissionSlug string) (Decision, error) {
	res, err := e.catalog.ResolvePermission(ctx, moduleSlug, submoduleSlug, permissionSlug)
	if err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			return e.record(denyUnknown), nil
		}
		return Decision{}, err
	}

	var (
		active  map[int64]overrides.Override
		roleIDs []int64
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		active, err = e.overrides.GetActiveOverrides(gctx, actorID)
		return err
	})
	g.Go(func() error {
		var err error
		roleIDs, err = e.roles.ListUserRolePermissionIDs(gctx, actorID)
		return err
	})
	if err := g.Wait(); err != nil {
		return Decision{}, err
	}

	return e.record(resolve(res, active, roleIDs)), nil
}

// EffectivePermissions materialises the decision for every catalog
// permission, keyed by canonical permission key. The per-key result is
// identical to calling Check for that key. When a cache is configured the
// map is served from it; mutations invalidate per the cache contract.
func (e *Engine) EffectivePermissions(ctx context.Context, actorID int64) (map[string]Decision, error) {
	if e.cache != nil {
		return e.cache.GetOrBuild(ctx, actorID, func(ctx context.Context) (map[string]Decision, error) {
			return e.buildEffective(ctx, actorID)
		})
	}
	return e.buildEffective(ctx, actorID)
}

func (e *Engine) buildEffective(ctx context.Context, actorID int64) (map[string]Decision, error) {
	var (
		perms   []catalog.Permission
		active  map[int64]overrides.Override
		roleIDs []int64
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		perms, err = e.catalog.ListPermissions(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		active, err = e.overrides.GetActiveOverrides(gctx, actorID)
		return err
	})
	g.Go(func() error {
		var err error
		roleIDs, err = e.roles.ListUserRolePermissionIDs(gctx, actorID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	wildcards := wildcardsBySubmodule(perms)
	result := make(map[string]Decision, len(perms))
	for _, p := range perms {
		res := catalog.Resolution{Permission: p}
		if w, ok := wildcards[p.SubmoduleID]; ok && w.ID != p.ID {
			wc := w
			res.Wildcard = &wc
		}
		result[p.Key] = resolve(res, active, roleIDs)
	}
	return result, nil
}

// UserPermissionView aggregates role-derived permissions and active
// overrides for inspection. Expired overrides never appear.
func (e *Engine) UserPermissionView(ctx context.Context, userID int64) (UserPermissionView, error) {
	var (
		perms     []catalog.Permission
		active    map[int64]overrides.Override
		roleIDs   []int64
		userRoles []roles.Role
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		perms, err = e.catalog.ListPermissions(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		active, err = e.overrides.GetActiveOverrides(gctx, userID)
		return err
	})
	g.Go(func() error {
		var err error
		roleIDs, err = e.roles.ListUserRolePermissionIDs(gctx, userID)
		return err
	})
	g.Go(func() error {
		var err error
		userRoles, err = e.roles.ListRolesForUser(gctx, userID)
		return err
	})
	if err := g.Wait(); err != nil {
		return UserPermissionView{}, err
	}

	held := make(map[int64]struct{}, len(roleIDs))
	for _, id := range roleIDs {
		held[id] = struct{}{}
	}

	view := UserPermissionView{
		Roles:           userRoles,
		RolePermissions: []catalog.Permission{},
		DirectGrants:    []OverrideDetail{},
		DirectDenials:   []OverrideDetail{},
	}
	if view.Roles == nil {
		view.Roles = []roles.Role{}
	}
	for _, p := range perms {
		if _, ok := held[p.ID]; ok {
			view.RolePermissions = append(view.RolePermissions, p)
		}
		if o, ok := active[p.ID]; ok {
			detail := OverrideDetail{Permission: p, Override: o}
			if o.Granted {
				view.DirectGrants = append(view.DirectGrants, detail)
			} else {
				view.DirectDenials = append(view.DirectDenials, detail)
			}
		}
	}
	return view, nil
}

// resolve applies the decision order to one resolved permission against a
// snapshot of the actor's overrides and role permission ids. Check and
// EffectivePermissions both funnel through here so the two can never
// diverge.
func resolve(res catalog.Resolution, active map[int64]overrides.Override, roleIDs []int64) Decision {
	if o, ok := active[res.Permission.ID]; ok {
		if o.Granted {
			return Decision{Allowed: true, Reason: ReasonOverrideGrant}
		}
		return Decision{Allowed: false, Reason: ReasonOverrideDeny}
	}
	// A grant on the submodule's wildcard extends to every action; an
	// explicit deny applies to the exact permission only.
	if res.Wildcard != nil {
		if o, ok := active[res.Wildcard.ID]; ok && o.Granted {
			return Decision{Allowed: true, Reason: ReasonOverrideGrant}
		}
	}
	for _, id := range roleIDs {
		if id == res.Permission.ID {
			return Decision{Allowed: true, Reason: ReasonRoleGrant}
		}
		if res.Wildcard != nil && id == res.Wildcard.ID {
			return Decision{Allowed: true, Reason: ReasonRoleGrant}
		}
	}
	return denyNoGrant
}

func wildcardsBySubmodule(perms []catalog.Permission) map[int64]catalog.Permission {
	wildcards := make(map[int64]catalog.Permission)
	for _, p := range perms {
		if catalog.ActionSlug(p.SubmoduleSlug, p.Slug) == catalog.WildcardSlug {
			wildcards[p.SubmoduleID] = p
		}
	}
	return wildcards
}

func (e *Engine) record(d Decision) Decision {
	if e.metrics != nil {
		e.metrics.RecordDecision(string(d.Reason))
	}
	return d
}
