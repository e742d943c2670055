package roles

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ============================================================================
// MOCK STORE
// ============================================================================

type mockStore struct {
	roles       map[int64]Role
	permissions map[int64][]int64 // role id -> permission ids
	userRoles   map[int64][]int64 // user id -> role ids

	syncResult SyncResult
	syncErr    error
	syncCalls  int
	syncRole   int64
	syncWant   []int64
}

func newMockStore() *mockStore {
	return &mockStore{
		roles:       make(map[int64]Role),
		permissions: make(map[int64][]int64),
		userRoles:   make(map[int64][]int64),
	}
}

func (m *mockStore) ListActiveRoles(ctx context.Context) ([]Role, error) {
	var out []Role
	for _, r := range m.roles {
		if r.Active {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *mockStore) GetRole(ctx context.Context, id int64) (Role, error) {
	r, ok := m.roles[id]
	if !ok {
		return Role{}, ErrNotFound
	}
	return r, nil
}

func (m *mockStore) ListPermissionIDs(ctx context.Context, roleID int64) ([]int64, error) {
	return m.permissions[roleID], nil
}

func (m *mockStore) SyncPermissions(ctx context.Context, roleID int64, desired []int64) (SyncResult, error) {
	m.syncCalls++
	m.syncRole = roleID
	m.syncWant = desired
	if m.syncErr != nil {
		return SyncResult{}, m.syncErr
	}
	return m.syncResult, nil
}

func (m *mockStore) ListRolesForUser(ctx context.Context, userID int64) ([]Role, error) {
	var out []Role
	for _, id := range m.userRoles[userID] {
		if r, ok := m.roles[id]; ok && r.Active {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *mockStore) ListUserRolePermissionIDs(ctx context.Context, userID int64) ([]int64, error) {
	seen := make(map[int64]struct{})
	var out []int64
	for _, roleID := range m.userRoles[userID] {
		r, ok := m.roles[roleID]
		if !ok || !r.Active {
			continue
		}
		for _, pid := range m.permissions[roleID] {
			if _, dup := seen[pid]; !dup {
				seen[pid] = struct{}{}
				out = append(out, pid)
			}
		}
	}
	return out, nil
}

func (m *mockStore) AssignRole(ctx context.Context, userID, roleID int64) error {
	for _, id := range m.userRoles[userID] {
		if id == roleID {
			return nil
		}
	}
	m.userRoles[userID] = append(m.userRoles[userID], roleID)
	return nil
}

func (m *mockStore) RemoveRole(ctx context.Context, userID, roleID int64) error {
	ids := m.userRoles[userID]
	for i, id := range ids {
		if id == roleID {
			m.userRoles[userID] = append(ids[:i], ids[i+1:]...)
			return nil
		}
	}
	return nil
}

type mockInvalidator struct {
	allCalls  int
	userCalls []int64
}

func (m *mockInvalidator) InvalidateAll(ctx context.Context) error {
	m.allCalls++
	return nil
}

func (m *mockInvalidator) InvalidateUser(ctx context.Context, userID int64) error {
	m.userCalls = append(m.userCalls, userID)
	return nil
}

func newTestService(store Store, cache Invalidator) *Service {
	return NewService(slog.Default(), store, nil, cache)
}

// ============================================================================
// TESTS
// ============================================================================

func TestGetPermissionsUnknownRole(t *testing.T) {
	svc := newTestService(newMockStore(), nil)

	_, err := svc.GetPermissions(context.Background(), 42)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGetPermissionsEmptySetIsSlice(t *testing.T) {
	store := newMockStore()
	store.roles[1] = Role{ID: 1, Slug: "staff", Active: true}
	svc := newTestService(store, nil)

	ids, err := svc.GetPermissions(context.Background(), 1)
	require.NoError(t, err)
	require.NotNil(t, ids)
	assert.Empty(t, ids)
}

func TestSyncPermissionsInvalidatesOnChange(t *testing.T) {
	store := newMockStore()
	store.roles[1] = Role{ID: 1, Slug: "staff", Active: true}
	store.syncResult = SyncResult{Attached: []int64{4}, Detached: []int64{1}, Unchanged: []int64{2, 3}}
	cache := &mockInvalidator{}
	svc := newTestService(store, cache)

	result, err := svc.SyncPermissions(context.Background(), 1, []int64{2, 3, 4}, 9)
	require.NoError(t, err)
	assert.Equal(t, []int64{4}, result.Attached)
	assert.Equal(t, []int64{1}, result.Detached)
	assert.Equal(t, 1, cache.allCalls)
	assert.Equal(t, int64(1), store.syncRole)
	assert.Equal(t, []int64{2, 3, 4}, store.syncWant)
}

func TestSyncPermissionsNoChangeSkipsInvalidation(t *testing.T) {
	store := newMockStore()
	store.roles[1] = Role{ID: 1, Slug: "staff", Active: true}
	store.syncResult = SyncResult{Unchanged: []int64{2, 3}}
	cache := &mockInvalidator{}
	svc := newTestService(store, cache)

	result, err := svc.SyncPermissions(context.Background(), 1, []int64{2, 3}, 9)
	require.NoError(t, err)
	assert.Empty(t, result.Attached)
	assert.Empty(t, result.Detached)
	assert.Zero(t, cache.allCalls, "an idempotent sync must not flush the cache")
}

func TestSyncPermissionsUnknownPermission(t *testing.T) {
	store := newMockStore()
	store.syncErr = ErrInvalidPermission
	cache := &mockInvalidator{}
	svc := newTestService(store, cache)

	_, err := svc.SyncPermissions(context.Background(), 1, []int64{999}, 9)
	assert.ErrorIs(t, err, ErrInvalidPermission)
	assert.Zero(t, cache.allCalls)
}

func TestAssignRoleUnknownRole(t *testing.T) {
	svc := newTestService(newMockStore(), nil)

	err := svc.AssignRole(context.Background(), 7, 42, 9)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestAssignRoleInvalidatesUser(t *testing.T) {
	store := newMockStore()
	store.roles[1] = Role{ID: 1, Slug: "staff", Active: true}
	cache := &mockInvalidator{}
	svc := newTestService(store, cache)

	require.NoError(t, svc.AssignRole(context.Background(), 7, 1, 9))
	assert.Equal(t, []int64{7}, cache.userCalls)
	assert.Equal(t, []int64{1}, store.userRoles[7])
}

func TestAssignRoleTwiceIsNoop(t *testing.T) {
	store := newMockStore()
	store.roles[1] = Role{ID: 1, Slug: "staff", Active: true}
	svc := newTestService(store, nil)

	ctx := context.Background()
	require.NoError(t, svc.AssignRole(ctx, 7, 1, 9))
	require.NoError(t, svc.AssignRole(ctx, 7, 1, 9))
	assert.Equal(t, []int64{1}, store.userRoles[7])
}

func TestRemoveRoleInvalidatesUser(t *testing.T) {
	store := newMockStore()
	store.roles[1] = Role{ID: 1, Slug: "staff", Active: true}
	store.userRoles[7] = []int64{1}
	cache := &mockInvalidator{}
	svc := newTestService(store, cache)

	require.NoError(t, svc.RemoveRole(context.Background(), 7, 1, 9))
	assert.Equal(t, []int64{7}, cache.userCalls)
	assert.Empty(t, store.userRoles[7])
}

func TestInactiveRoleContributesNothing(t *testing.T) {
	store := newMockStore()
	store.roles[1] = Role{ID: 1, Slug: "staff", Active: false}
	store.permissions[1] = []int64{10, 11}
	store.userRoles[7] = []int64{1}
	svc := newTestService(store, nil)

	list, err := svc.ListRolesForUser(context.Background(), 7)
	require.NoError(t, err)
	assert.Empty(t, list)
}
