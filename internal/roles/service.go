package roles

import (
	"context"
	"log/slog"
	"strconv"

	"github.com/sol-suite/sol-access/internal/shared"
)

// Store is the persistence surface the service depends on.
type Store interface {
	ListActiveRoles(ctx context.Context) ([]Role, error)
	GetRole(ctx context.Context, id int64) (Role, error)
	ListPermissionIDs(ctx context.Context, roleID int64) ([]int64, error)
	SyncPermissions(ctx context.Context, roleID int64, desired []int64) (SyncResult, error)
	ListRolesForUser(ctx context.Context, userID int64) ([]Role, error)
	ListUserRolePermissionIDs(ctx context.Context, userID int64) ([]int64, error)
	AssignRole(ctx context.Context, userID, roleID int64) error
	RemoveRole(ctx context.Context, userID, roleID int64) error
}

// Invalidator drops cached permission decisions after a mutation. Role
// permission changes fan out to every holder of the role, so the whole
// namespace is invalidated rather than chasing affected users.
type Invalidator interface {
	InvalidateAll(ctx context.Context) error
	InvalidateUser(ctx context.Context, userID int64) error
}

// Service owns role permission sets and user-role assignment.
type Service struct {
	logger *slog.Logger
	store  Store
	audit  *shared.AuditLogger
	cache  Invalidator
}

// NewService constructs a Service. Audit and cache may be nil in tests.
func NewService(logger *slog.Logger, store Store, audit *shared.AuditLogger, cache Invalidator) *Service {
	return &Service{logger: logger, store: store, audit: audit, cache: cache}
}

// ListRoles returns all active roles ordered by name.
func (s *Service) ListRoles(ctx context.Context) ([]Role, error) {
	return s.store.ListActiveRoles(ctx)
}

// GetPermissions returns the permission ids of a role. The role must exist;
// a role without links yields an empty slice, not an error.
func (s *Service) GetPermissions(ctx context.Context, roleID int64) ([]int64, error) {
	if _, err := s.store.GetRole(ctx, roleID); err != nil {
		return nil, err
	}
	ids, err := s.store.ListPermissionIDs(ctx, roleID)
	if err != nil {
		return nil, err
	}
	if ids == nil {
		ids = []int64{}
	}
	return ids, nil
}

// SyncPermissions atomically replaces the role's permission set and reports
// the diff. Calling twice with the same desired set is idempotent.
func (s *Service) SyncPermissions(ctx context.Context, roleID int64, desired []int64, actingAdmin int64) (SyncResult, error) {
	result, err := s.store.SyncPermissions(ctx, roleID, desired)
	if err != nil {
		return SyncResult{}, err
	}

	if s.cache != nil && (len(result.Attached) > 0 || len(result.Detached) > 0) {
		if err := s.cache.InvalidateAll(ctx); err != nil {
			s.logger.Warn("invalidate decision cache", slog.Any("error", err))
		}
	}
	s.recordAudit(ctx, shared.AuditLog{
		ActorID:  actingAdmin,
		Action:   shared.AuditActionRoleSync,
		Entity:   "role",
		EntityID: strconv.FormatInt(roleID, 10),
		Meta: map[string]any{
			"attached": result.Attached,
			"detached": result.Detached,
		},
	})
	return result, nil
}

// ListRolesForUser returns the user's active roles.
func (s *Service) ListRolesForUser(ctx context.Context, userID int64) ([]Role, error) {
	return s.store.ListRolesForUser(ctx, userID)
}

// AssignRole links a user to a role.
func (s *Service) AssignRole(ctx context.Context, userID, roleID int64, actingAdmin int64) error {
	if _, err := s.store.GetRole(ctx, roleID); err != nil {
		return err
	}
	if err := s.store.AssignRole(ctx, userID, roleID); err != nil {
		return err
	}
	s.invalidateUser(ctx, userID)
	s.recordAudit(ctx, shared.AuditLog{
		ActorID:  actingAdmin,
		Action:   shared.AuditActionRoleAssign,
		Entity:   "user",
		EntityID: strconv.FormatInt(userID, 10),
		Meta:     map[string]any{"role_id": roleID},
	})
	return nil
}

// RemoveRole unlinks a user from a role.
func (s *Service) RemoveRole(ctx context.Context, userID, roleID int64, actingAdmin int64) error {
	if err := s.store.RemoveRole(ctx, userID, roleID); err != nil {
		return err
	}
	s.invalidateUser(ctx, userID)
	s.recordAudit(ctx, shared.AuditLog{
		ActorID:  actingAdmin,
		Action:   shared.AuditActionRoleRemove,
		Entity:   "user",
		EntityID: strconv.FormatInt(userID, 10),
		Meta:     map[string]any{"role_id": roleID},
	})
	return nil
}

func (s *Service) invalidateUser(ctx context.Context, userID int64) {
	if s.cache == nil {
		return
	}
	if err := s.cache.InvalidateUser(ctx, userID); err != nil {
		s.logger.Warn("invalidate decision cache", slog.Int64("user_id", userID), slog.Any("error", err))
	}
}

func (s *Service) recordAudit(ctx context.Context, log shared.AuditLog) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Record(ctx, log); err != nil {
		s.logger.Warn("record audit log", slog.String("action", log.Action), slog.Any("error", err))
	}
}
