package roles

import (
	"context"
	"errors"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sol-suite/sol-access/internal/platform/db"
)

// Repository provides PostgreSQL backed persistence for roles, their
// permission links and user-role assignments.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// ListActiveRoles returns active roles ordered by name.
func (r *Repository) ListActiveRoles(ctx context.Context) ([]Role, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, slug, name, is_active, created_at, updated_at FROM roles WHERE is_active ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var roles []Role
	for rows.Next() {
		var role Role
		if err := rows.Scan(&role.ID, &role.Slug, &role.Name, &role.Active, &role.CreatedAt, &role.UpdatedAt); err != nil {
			return nil, err
		}
		roles = append(roles, role)
	}
	return roles, rows.Err()
}

// GetRole fetches a role by id regardless of its active flag.
func (r *Repository) GetRole(ctx context.Context, id int64) (Role, error) {
	var role Role
	err := r.pool.QueryRow(ctx, `SELECT id, slug, name, is_active, created_at, updated_at FROM roles WHERE id = $1`, id).
		Scan(&role.ID, &role.Slug, &role.Name, &role.Active, &role.CreatedAt, &role.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Role{}, ErrNotFound
	}
	if err != nil {
		return Role{}, err
	}
	return role, nil
}

// ListPermissionIDs returns the permission ids linked to a role.
func (r *Repository) ListPermissionIDs(ctx context.Context, roleID int64) ([]int64, error) {
	rows, err := r.pool.Query(ctx, `SELECT permission_id FROM role_permissions WHERE role_id = $1 ORDER BY permission_id`, roleID)
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

// SyncPermissions replaces a role's permission set with the desired one in a
// single transaction. The role row is locked first so concurrent syncs of
// the same role serialize while syncs of different roles proceed in
// parallel; the current set is read after the lock is held, so the diff is
// taken against the last committed sync. Readers never observe a
// half-applied set.
func (r *Repository) SyncPermissions(ctx context.Context, roleID int64, desired []int64) (SyncResult, error) {
	seen := make(map[int64]struct{}, len(desired))
	unique := make([]int64, 0, len(desired))
	for _, id := range desired {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		unique = append(unique, id)
	}

	var result SyncResult
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		var locked int64
		if err := tx.QueryRow(ctx, `SELECT id FROM roles WHERE id = $1 FOR UPDATE`, roleID).Scan(&locked); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrNotFound
			}
			return err
		}

		if len(unique) > 0 {
			var known int64
			if err := tx.QueryRow(ctx, `SELECT COUNT(*) FROM permissions WHERE id = ANY($1)`, unique).Scan(&known); err != nil {
				return err
			}
			if known != int64(len(unique)) {
				return ErrInvalidPermission
			}
		}

		rows, err := tx.Query(ctx, `SELECT permission_id FROM role_permissions WHERE role_id = $1`, roleID)
		if err != nil {
			return err
		}
		var current []int64
		for rows.Next() {
			var id int64
			if err := rows.Scan(&id); err != nil {
				rows.Close()
				return err
			}
			current = append(current, id)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return err
		}

		result = diffPermissions(current, unique)

		if len(result.Attached) > 0 {
			if _, err := tx.Exec(ctx, `INSERT INTO role_permissions (role_id, permission_id) SELECT $1, unnest($2::bigint[])`, roleID, result.Attached); err != nil {
				if pgErr, ok := err.(*pgconn.PgError); ok && pgErr.Code == "23503" {
					return ErrInvalidPermission
				}
				return err
			}
		}
		if len(result.Detached) > 0 {
			if _, err := tx.Exec(ctx, `DELETE FROM role_permissions WHERE role_id = $1 AND permission_id = ANY($2)`, roleID, result.Detached); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return SyncResult{}, err
	}
	return result, nil
}

// ListRolesForUser returns the user's active roles. A deactivated role is
// excluded entirely, which makes it equivalent to an empty permission set
// during resolution.
func (r *Repository) ListRolesForUser(ctx context.Context, userID int64) ([]Role, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT r.id, r.slug, r.name, r.is_active, r.created_at, r.updated_at
		FROM roles r
		JOIN user_roles ur ON ur.role_id = r.id
		WHERE ur.user_id = $1 AND r.is_active
		ORDER BY r.name`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []Role
	for rows.Next() {
		var role Role
		if err := rows.Scan(&role.ID, &role.Slug, &role.Name, &role.Active, &role.CreatedAt, &role.UpdatedAt); err != nil {
			return nil, err
		}
		list = append(list, role)
	}
	return list, rows.Err()
}

// ListUserRolePermissionIDs returns the union of permission ids held by the
// user's active roles.
func (r *Repository) ListUserRolePermissionIDs(ctx context.Context, userID int64) ([]int64, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT DISTINCT rp.permission_id
		FROM role_permissions rp
		JOIN user_roles ur ON ur.role_id = rp.role_id
		JOIN roles r ON r.id = rp.role_id
		WHERE ur.user_id = $1 AND r.is_active
		ORDER BY rp.permission_id`, userID)
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

// AssignRole links a user to a role. Assigning twice is a no-op.
func (r *Repository) AssignRole(ctx context.Context, userID, roleID int64) error {
	_, err := r.pool.Exec(ctx, `INSERT INTO user_roles (user_id, role_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`, userID, roleID)
	if pgErr, ok := err.(*pgconn.PgError); ok && pgErr.Code == "23503" {
		return ErrNotFound
	}
	return err
}

// RemoveRole unlinks a user from a role.
func (r *Repository) RemoveRole(ctx context.Context, userID, roleID int64) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM user_roles WHERE user_id = $1 AND role_id = $2`, userID, roleID)
	return err
}
