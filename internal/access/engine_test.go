package access

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sol-suite/sol-access/internal/catalog"
	"github.com/sol-suite/sol-access/internal/overrides"
	"github.com/sol-suite/sol-access/internal/roles"
)

// ============================================================================
// FAKES
// ============================================================================

// fakeCatalogReader backs a real catalog.Service so slug resolution in tests
// behaves exactly like production.
type fakeCatalogReader struct {
	perms []catalog.Permission
}

func (f *fakeCatalogReader) ListActiveModules(ctx context.Context) ([]catalog.Module, error) {
	return nil, nil
}

func (f *fakeCatalogReader) ListActiveSubmodules(ctx context.Context) ([]catalog.Submodule, error) {
	return nil, nil
}

func (f *fakeCatalogReader) ListPermissions(ctx context.Context) ([]catalog.Permission, error) {
	return f.perms, nil
}

func (f *fakeCatalogReader) ListSubmodulePermissions(ctx context.Context, moduleSlug, submoduleSlug string) ([]catalog.Permission, error) {
	var out []catalog.Permission
	for _, p := range f.perms {
		if p.ModuleSlug == moduleSlug && p.SubmoduleSlug == submoduleSlug {
			out = append(out, p)
		}
	}
	return out, nil
}

type fakeRoleReader struct {
	roles   map[int64][]roles.Role
	permIDs map[int64][]int64
}

func (f *fakeRoleReader) ListRolesForUser(ctx context.Context, userID int64) ([]roles.Role, error) {
	return f.roles[userID], nil
}

func (f *fakeRoleReader) ListUserRolePermissionIDs(ctx context.Context, userID int64) ([]int64, error) {
	return f.permIDs[userID], nil
}

type fakeOverrideReader struct {
	rows map[int64][]overrides.Override
}

func (f *fakeOverrideReader) GetActiveOverrides(ctx context.Context, userID int64) (map[int64]overrides.Override, error) {
	now := time.Now()
	active := make(map[int64]overrides.Override)
	for _, o := range f.rows[userID] {
		if o.Active(now) {
			active[o.PermissionID] = o
		}
	}
	return active, nil
}

// ============================================================================
// FIXTURE
// ============================================================================

const (
	permRBACRead   int64 = 100
	permRBACUpdate int64 = 101
	permRBACFull   int64 = 102
	permInvRead    int64 = 200
	permInvRestock int64 = 201
	permInvFull    int64 = 202
)

func perm(id, submoduleID int64, moduleSlug, submoduleSlug, slug string) catalog.Permission {
	return catalog.Permission{
		ID:            id,
		SubmoduleID:   submoduleID,
		Slug:          slug,
		ModuleSlug:    moduleSlug,
		SubmoduleSlug: submoduleSlug,
		Key:           catalog.CanonicalKey(moduleSlug, submoduleSlug, slug),
	}
}

type fixture struct {
	engine    *Engine
	roles     *fakeRoleReader
	overrides *fakeOverrideReader
}

func newFixture() *fixture {
	cat := catalog.NewService(&fakeCatalogReader{perms: []catalog.Permission{
		perm(permRBACRead, 10, "administration", "rbac", "read"),
		perm(permRBACUpdate, 10, "administration", "rbac", "update"),
		perm(permRBACFull, 10, "administration", "rbac", "full"),
		perm(permInvRead, 20, "requisition-management", "inventory-management", "inventory-management.read"),
		perm(permInvRestock, 20, "requisition-management", "inventory-management", "inventory-management.restock"),
		perm(permInvFull, 20, "requisition-management", "inventory-management", "full"),
	}})
	r := &fakeRoleReader{roles: map[int64][]roles.Role{}, permIDs: map[int64][]int64{}}
	o := &fakeOverrideReader{rows: map[int64][]overrides.Override{}}
	return &fixture{
		engine:    NewEngine(slog.Default(), cat, r, o, nil, nil),
		roles:     r,
		overrides: o,
	}
}

func (f *fixture) grantRolePerms(userID int64, permIDs ...int64) {
	f.roles.permIDs[userID] = append(f.roles.permIDs[userID], permIDs...)
}

func (f *fixture) addOverride(userID, permID int64, granted bool, expiresAt *time.Time) {
	f.overrides.rows[userID] = append(f.overrides.rows[userID], overrides.Override{
		UserID:       userID,
		PermissionID: permID,
		Granted:      granted,
		ExpiresAt:    expiresAt,
	})
}

// ============================================================================
// TESTS
// ============================================================================

func TestCheckUnknownPermissionDenies(t *testing.T) {
	f := newFixture()

	d, err := f.engine.Check(context.Background(), 7, "administration", "rbac", "nonexistent")
	require.NoError(t, err, "unknown permissions deny, they do not error")
	assert.False(t, d.Allowed)
	assert.Equal(t, ReasonUnknownPermission, d.Reason)
}

func TestCheckNoGrantDenies(t *testing.T) {
	f := newFixture()

	d, err := f.engine.Check(context.Background(), 7, "administration", "rbac", "read")
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, ReasonNoGrant, d.Reason)
}

func TestCheckRoleGrant(t *testing.T) {
	f := newFixture()
	f.grantRolePerms(7, permRBACRead)

	d, err := f.engine.Check(context.Background(), 7, "administration", "rbac", "read")
	require.NoError(t, err)
	assert.True(t, d.Allowed)
	assert.Equal(t, ReasonRoleGrant, d.Reason)
}

func TestCheckOverrideGrantWithoutAnyRole(t *testing.T) {
	f := newFixture()
	f.addOverride(7, permRBACRead, true, nil)

	d, err := f.engine.Check(context.Background(), 7, "administration", "rbac", "read")
	require.NoError(t, err)
	assert.True(t, d.Allowed)
	assert.Equal(t, ReasonOverrideGrant, d.Reason)
}

func TestCheckOverrideDenyBeatsRoleGrant(t *testing.T) {
	f := newFixture()
	f.grantRolePerms(7, permRBACRead)
	f.addOverride(7, permRBACRead, false, nil)

	d, err := f.engine.Check(context.Background(), 7, "administration", "rbac", "read")
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, ReasonOverrideDeny, d.Reason)
}

func TestCheckExpiredOverrideFallsThroughToRole(t *testing.T) {
	f := newFixture()
	f.grantRolePerms(7, permRBACRead)
	past := time.Now().Add(-time.Hour)
	f.addOverride(7, permRBACRead, false, &past)

	d, err := f.engine.Check(context.Background(), 7, "administration", "rbac", "read")
	require.NoError(t, err)
	assert.True(t, d.Allowed)
	assert.Equal(t, ReasonRoleGrant, d.Reason)
}

func TestCheckExpiredGrantDeniesWithoutRole(t *testing.T) {
	f := newFixture()
	past := time.Now().Add(-time.Minute)
	f.addOverride(7, permRBACRead, true, &past)

	d, err := f.engine.Check(context.Background(), 7, "administration", "rbac", "read")
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, ReasonNoGrant, d.Reason)
}

func TestCheckRoleWildcardGrantsEveryAction(t *testing.T) {
	f := newFixture()
	f.grantRolePerms(7, permInvFull)

	for _, action := range []string{"read", "restock", "inventory-management.read", "full"} {
		d, err := f.engine.Check(context.Background(), 7, "requisition-management", "inventory-management", action)
		require.NoError(t, err)
		assert.True(t, d.Allowed, "action %q", action)
		assert.Equal(t, ReasonRoleGrant, d.Reason)
	}
}

func TestCheckOverrideGrantOnWildcardExtends(t *testing.T) {
	f := newFixture()
	f.addOverride(7, permInvFull, true, nil)

	d, err := f.engine.Check(context.Background(), 7, "requisition-management", "inventory-management", "restock")
	require.NoError(t, err)
	assert.True(t, d.Allowed)
	assert.Equal(t, ReasonOverrideGrant, d.Reason)
}

func TestCheckOverrideDenyOnWildcardIsExactOnly(t *testing.T) {
	f := newFixture()
	f.grantRolePerms(7, permInvRead)
	f.addOverride(7, permInvFull, false, nil)

	// The deny pins the wildcard permission itself...
	d, err := f.engine.Check(context.Background(), 7, "requisition-management", "inventory-management", "full")
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, ReasonOverrideDeny, d.Reason)

	// ...but does not fan out to sibling actions the role still grants.
	d, err = f.engine.Check(context.Background(), 7, "requisition-management", "inventory-management", "read")
	require.NoError(t, err)
	assert.True(t, d.Allowed)
	assert.Equal(t, ReasonRoleGrant, d.Reason)
}

func TestCheckExactOverrideBeatsWildcardGrant(t *testing.T) {
	f := newFixture()
	f.addOverride(7, permInvFull, true, nil)
	f.addOverride(7, permInvRead, false, nil)

	d, err := f.engine.Check(context.Background(), 7, "requisition-management", "inventory-management", "read")
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, ReasonOverrideDeny, d.Reason)
}

func TestEffectivePermissionsMatchesCheck(t *testing.T) {
	f := newFixture()
	f.grantRolePerms(7, permRBACRead, permInvFull)
	f.addOverride(7, permRBACUpdate, true, nil)
	f.addOverride(7, permInvRestock, false, nil)
	ctx := context.Background()

	effective, err := f.engine.EffectivePermissions(ctx, 7)
	require.NoError(t, err)
	require.Len(t, effective, 6, "one entry per catalog permission")

	perms, err := f.engine.catalog.ListPermissions(ctx)
	require.NoError(t, err)
	for _, p := range perms {
		d, err := f.engine.Check(ctx, 7, p.ModuleSlug, p.SubmoduleSlug, p.Slug)
		require.NoError(t, err)
		assert.Equal(t, d, effective[p.Key], "key %s", p.Key)
	}
}

func TestUserPermissionView(t *testing.T) {
	f := newFixture()
	f.roles.roles[7] = []roles.Role{{ID: 1, Slug: "store-keeper", Name: "Store Keeper", Active: true}}
	f.grantRolePerms(7, permInvRead, permInvRestock)
	f.addOverride(7, permRBACRead, true, nil)
	f.addOverride(7, permInvRestock, false, nil)
	past := time.Now().Add(-time.Hour)
	f.addOverride(7, permRBACUpdate, true, &past)

	view, err := f.engine.UserPermissionView(context.Background(), 7)
	require.NoError(t, err)

	require.Len(t, view.Roles, 1)
	assert.Equal(t, "store-keeper", view.Roles[0].Slug)
	assert.Len(t, view.RolePermissions, 2)
	require.Len(t, view.DirectGrants, 1)
	assert.Equal(t, permRBACRead, view.DirectGrants[0].Permission.ID)
	require.Len(t, view.DirectDenials, 1)
	assert.Equal(t, permInvRestock, view.DirectDenials[0].Permission.ID)
}

func TestUserPermissionViewEmptyUser(t *testing.T) {
	f := newFixture()

	view, err := f.engine.UserPermissionView(context.Background(), 99)
	require.NoError(t, err)
	assert.NotNil(t, view.Roles)
	assert.NotNil(t, view.RolePermissions)
	assert.NotNil(t, view.DirectGrants)
	assert.NotNil(t, view.DirectDenials)
}
