package overrides

import (
	"context"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository provides PostgreSQL backed persistence for user permission
// overrides.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Upsert creates or replaces the single override keyed by
// (user_id, permission_id). The row-level conflict target serialises
// concurrent writers on the same key, so the final state always matches
// exactly one caller's request.
func (r *Repository) Upsert(ctx context.Context, o Override) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO user_permissions (user_id, permission_id, granted, granted_by, granted_at, expires_at)
		VALUES ($1, $2, $3, $4, NOW(), $5)
		ON CONFLICT (user_id, permission_id)
		DO UPDATE SET granted = EXCLUDED.granted,
		              granted_by = EXCLUDED.granted_by,
		              granted_at = NOW(),
		              expires_at = EXCLUDED.expires_at`,
		o.UserID, o.PermissionID, o.Granted, o.GrantedBy, o.ExpiresAt)
	if pgErr, ok := err.(*pgconn.PgError); ok && pgErr.Code == "23503" {
		return ErrInvalidPermission
	}
	return err
}

// ListActive returns the user's non-expired overrides. Expiry is evaluated
// against the database clock, the same clock that stamped granted_at.
func (r *Repository) ListActive(ctx context.Context, userID int64) ([]Override, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT user_id, permission_id, granted, granted_by, granted_at, expires_at
		FROM user_permissions
		WHERE user_id = $1 AND (expires_at IS NULL OR expires_at > NOW())
		ORDER BY permission_id`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []Override
	for rows.Next() {
		var o Override
		if err := rows.Scan(&o.UserID, &o.PermissionID, &o.Granted, &o.GrantedBy, &o.GrantedAt, &o.ExpiresAt); err != nil {
			return nil, err
		}
		list = append(list, o)
	}
	return list, rows.Err()
}

// PurgeExpired hard-deletes override rows whose expiry passed more than the
// retention window ago. Recently expired rows are kept for the audit view.
func (r *Repository) PurgeExpired(ctx context.Context, retentionDays int) (int64, error) {
	tag, err := r.pool.Exec(ctx, `
		DELETE FROM user_permissions
		WHERE expires_at IS NOT NULL
		  AND expires_at < NOW() - make_interval(days => $1)`, retentionDays)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// ListUserIDs returns every user holding a role or an override, the
// population the cache warmup job rebuilds decision maps for.
func (r *Repository) ListUserIDs(ctx context.Context) ([]int64, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT user_id FROM user_roles
		UNION
		SELECT user_id FROM user_permissions
		ORDER BY user_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
