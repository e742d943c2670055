package overrides

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/sol-suite/sol-access/internal/shared"
)

// Store is the persistence surface the service depends on.
type Store interface {
	Upsert(ctx context.Context, o Override) error
	ListActive(ctx context.Context, userID int64) ([]Override, error)
}

// Invalidator drops a user's cached decision map after a mutation.
type Invalidator interface {
	InvalidateUser(ctx context.Context, userID int64) error
}

// Service owns per-user permission exceptions with expiry semantics.
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

// SetOverride upserts the override keyed by (userID, permissionID). There is
// no delete operation: removal is an upsert with expires_at in the past, or
// the natural passage of time.
func (s *Service) SetOverride(ctx context.Context, userID, permissionID int64, granted bool, expiresAt *time.Time, actingAdmin int64) error {
	if userID <= 0 || permissionID <= 0 {
		return ErrInvalidInput
	}
	err := s.store.Upsert(ctx, Override{
		UserID:       userID,
		PermissionID: permissionID,
		Granted:      granted,
		GrantedBy:    actingAdmin,
		ExpiresAt:    expiresAt,
	})
	if err != nil {
		return err
	}

	if s.cache != nil {
		if err := s.cache.InvalidateUser(ctx, userID); err != nil {
			s.logger.Warn("invalidate decision cache", slog.Int64("user_id", userID), slog.Any("error", err))
		}
	}
	if s.audit != nil {
		log := shared.AuditLog{
			ActorID:  actingAdmin,
			Action:   shared.AuditActionOverrideUpsert,
			Entity:   "user",
			EntityID: strconv.FormatInt(userID, 10),
			Meta: map[string]any{
				"permission_id": permissionID,
				"granted":       granted,
				"expires_at":    expiresAt,
			},
		}
		if err := s.audit.Record(ctx, log); err != nil {
			s.logger.Warn("record audit log", slog.String("action", log.Action), slog.Any("error", err))
		}
	}
	return nil
}

// GetActiveOverrides returns the user's overrides still in force, keyed by
// permission id. Expired rows are treated as absent so resolution falls
// through to role membership.
func (s *Service) GetActiveOverrides(ctx context.Context, userID int64) (map[int64]Override, error) {
	list, err := s.store.ListActive(ctx, userID)
	if err != nil {
		return nil, err
	}
	active := make(map[int64]Override, len(list))
	for _, o := range list {
		active[o.PermissionID] = o
	}
	return active, nil
}
