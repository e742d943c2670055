package catalog

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository provides PostgreSQL backed persistence for the catalog tree.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// ListActiveModules returns active modules ordered by sort order.
func (r *Repository) ListActiveModules(ctx context.Context) ([]Module, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, slug, name, sort_order, is_active FROM modules WHERE is_active ORDER BY sort_order, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var modules []Module
	for rows.Next() {
		var m Module
		if err := rows.Scan(&m.ID, &m.Slug, &m.Name, &m.SortOrder, &m.Active); err != nil {
			return nil, err
		}
		modules = append(modules, m)
	}
	return modules, rows.Err()
}

// ListActiveSubmodules returns active submodules of active modules.
func (r *Repository) ListActiveSubmodules(ctx context.Context) ([]Submodule, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT s.id, s.module_id, s.slug, s.name, s.sort_order, s.is_active
		FROM submodules s
		JOIN modules m ON m.id = s.module_id
		WHERE s.is_active AND m.is_active
		ORDER BY s.sort_order, s.id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var submodules []Submodule
	for rows.Next() {
		var s Submodule
		if err := rows.Scan(&s.ID, &s.ModuleID, &s.Slug, &s.Name, &s.SortOrder, &s.Active); err != nil {
			return nil, err
		}
		submodules = append(submodules, s)
	}
	return submodules, rows.Err()
}

// ListPermissions returns every permission under an active submodule of an
// active module, with owner slugs for canonical key construction.
func (r *Repository) ListPermissions(ctx context.Context) ([]Permission, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT p.id, p.submodule_id, p.slug, p.name, m.slug, s.slug
		FROM permissions p
		JOIN submodules s ON s.id = p.submodule_id
		JOIN modules m ON m.id = s.module_id
		WHERE s.is_active AND m.is_active
		ORDER BY m.sort_order, s.sort_order, p.id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var perms []Permission
	for rows.Next() {
		var p Permission
		if err := rows.Scan(&p.ID, &p.SubmoduleID, &p.Slug, &p.Name, &p.ModuleSlug, &p.SubmoduleSlug); err != nil {
			return nil, err
		}
		p.Key = CanonicalKey(p.ModuleSlug, p.SubmoduleSlug, p.Slug)
		perms = append(perms, p)
	}
	return perms, rows.Err()
}

// ListSubmodulePermissions returns the permissions of one submodule,
// addressed by module and submodule slug. Inactive branches yield no rows.
func (r *Repository) ListSubmodulePermissions(ctx context.Context, moduleSlug, submoduleSlug string) ([]Permission, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT p.id, p.submodule_id, p.slug, p.name, m.slug, s.slug
		FROM permissions p
		JOIN submodules s ON s.id = p.submodule_id
		JOIN modules m ON m.id = s.module_id
		WHERE m.slug = $1 AND s.slug = $2 AND s.is_active AND m.is_active
		ORDER BY p.id`, moduleSlug, submoduleSlug)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var perms []Permission
	for rows.Next() {
		var p Permission
		if err := rows.Scan(&p.ID, &p.SubmoduleID, &p.Slug, &p.Name, &p.ModuleSlug, &p.SubmoduleSlug); err != nil {
			return nil, err
		}
		p.Key = CanonicalKey(p.ModuleSlug, p.SubmoduleSlug, p.Slug)
		perms = append(perms, p)
	}
	return perms, rows.Err()
}

// CountPermissions reports how many of the given permission ids exist.
// Role sync uses it to reject desired sets referencing unknown permissions
// before any mutation happens.
func (r *Repository) CountPermissions(ctx context.Context, ids []int64) (int64, error) {
	var count int64
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM permissions WHERE id = ANY($1)`, ids).Scan(&count)
	return count, err
}
