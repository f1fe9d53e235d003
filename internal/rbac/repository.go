package rbac

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gatehouse-io/gatehouse/internal/platform/db"
)

const uniqueViolation = "23505"

// Repository provides PostgreSQL backed persistence for the engine.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

var _ Store = (*Repository)(nil)

const roleColumns = `id, name, slug, guard_name, description, color, icon, is_default, is_active, deleted_at, created_at, updated_at`

func scanRole(row pgx.Row) (Role, error) {
	var r Role
	err := row.Scan(&r.ID, &r.Name, &r.Slug, &r.GuardName, &r.Description, &r.Color, &r.Icon,
		&r.IsDefault, &r.IsActive, &r.DeletedAt, &r.CreatedAt, &r.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Role{}, ErrNotFound
	}
	return r, err
}

// GetRole loads a role by id. Soft-deleted rows are invisible.
func (r *Repository) GetRole(ctx context.Context, id int64) (Role, error) {
	return scanRole(r.pool.QueryRow(ctx,
		`SELECT `+roleColumns+` FROM roles WHERE id = $1 AND deleted_at IS NULL`, id))
}

// GetRoleBySlug loads a role by slug, optionally including inactive rows.
func (r *Repository) GetRoleBySlug(ctx context.Context, slug string, includeInactive bool) (Role, error) {
	return scanRole(r.pool.QueryRow(ctx,
		`SELECT `+roleColumns+` FROM roles WHERE slug = $1 AND deleted_at IS NULL AND (is_active OR $2)`,
		slug, includeInactive))
}

// GetRoleByName loads a role by name, optionally including inactive rows.
func (r *Repository) GetRoleByName(ctx context.Context, name string, includeInactive bool) (Role, error) {
	return scanRole(r.pool.QueryRow(ctx,
		`SELECT `+roleColumns+` FROM roles WHERE name = $1 AND deleted_at IS NULL AND (is_active OR $2)`,
		name, includeInactive))
}

// ListRoles returns all roles ordered by name.
func (r *Repository) ListRoles(ctx context.Context, includeInactive bool) ([]Role, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+roleColumns+` FROM roles WHERE deleted_at IS NULL AND (is_active OR $1) ORDER BY name`,
		includeInactive)
	if err != nil {
		return nil, err
	}
	return collectRoles(rows)
}

// DefaultRole returns the active role flagged as default.
func (r *Repository) DefaultRole(ctx context.Context) (Role, error) {
	return scanRole(r.pool.QueryRow(ctx,
		`SELECT `+roleColumns+` FROM roles WHERE is_default AND is_active AND deleted_at IS NULL ORDER BY id LIMIT 1`))
}

// CreateRole inserts a new role.
func (r *Repository) CreateRole(ctx context.Context, role Role) (Role, error) {
	created, err := scanRole(r.pool.QueryRow(ctx,
		`INSERT INTO roles (name, slug, guard_name, description, color, icon, is_default, is_active)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 RETURNING `+roleColumns,
		role.Name, role.Slug, role.GuardName, role.Description, role.Color, role.Icon,
		role.IsDefault, role.IsActive))
	if isUniqueViolation(err) {
		return Role{}, &ValidationError{Fields: map[string]string{"slug": "slug already in use"}}
	}
	return created, err
}

// UpdateRole persists every mutable column. The slug is never written.
func (r *Repository) UpdateRole(ctx context.Context, role Role) (Role, error) {
	return scanRole(r.pool.QueryRow(ctx,
		`UPDATE roles SET name = $2, guard_name = $3, description = $4, color = $5, icon = $6,
		        is_default = $7, is_active = $8, updated_at = now()
		 WHERE id = $1 AND deleted_at IS NULL
		 RETURNING `+roleColumns,
		role.ID, role.Name, role.GuardName, role.Description, role.Color, role.Icon,
		role.IsDefault, role.IsActive))
}

// SoftDeleteRole marks the role deleted and removes its association rows.
func (r *Repository) SoftDeleteRole(ctx context.Context, id int64) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx,
			`UPDATE roles SET deleted_at = now(), updated_at = now() WHERE id = $1 AND deleted_at IS NULL`, id)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return ErrNotFound
		}
		if _, err := tx.Exec(ctx, `DELETE FROM role_user WHERE role_id = $1`, id); err != nil {
			return err
		}
		_, err = tx.Exec(ctx, `DELETE FROM permission_role WHERE role_id = $1`, id)
		return err
	})
}

// RestoreRole clears the deletion mark.
func (r *Repository) RestoreRole(ctx context.Context, id int64) (Role, error) {
	return scanRole(r.pool.QueryRow(ctx,
		`UPDATE roles SET deleted_at = NULL, updated_at = now() WHERE id = $1 AND deleted_at IS NOT NULL
		 RETURNING `+roleColumns, id))
}

// RoleSlugExists reports whether any role, deleted or not, holds the slug.
// Deleted rows keep their slug reserved so a restore cannot collide.
func (r *Repository) RoleSlugExists(ctx context.Context, slug string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM roles WHERE slug = $1)`, slug).Scan(&exists)
	return exists, err
}

const permColumns = `id, name, slug, guard_name, description, group_id, is_active, deleted_at, created_at, updated_at`

func scanPermission(row pgx.Row) (Permission, error) {
	var p Permission
	err := row.Scan(&p.ID, &p.Name, &p.Slug, &p.GuardName, &p.Description, &p.GroupID,
		&p.IsActive, &p.DeletedAt, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Permission{}, ErrNotFound
	}
	return p, err
}

// GetPermission loads a permission by id. Soft-deleted rows are invisible.
func (r *Repository) GetPermission(ctx context.Context, id int64) (Permission, error) {
	return scanPermission(r.pool.QueryRow(ctx,
		`SELECT `+permColumns+` FROM permissions WHERE id = $1 AND deleted_at IS NULL`, id))
}

// GetPermissionBySlug loads a permission by slug, optionally including inactive rows.
func (r *Repository) GetPermissionBySlug(ctx context.Context, slug string, includeInactive bool) (Permission, error) {
	return scanPermission(r.pool.QueryRow(ctx,
		`SELECT `+permColumns+` FROM permissions WHERE slug = $1 AND deleted_at IS NULL AND (is_active OR $2)`,
		slug, includeInactive))
}

// GetPermissionByName loads a permission by name, optionally including inactive rows.
func (r *Repository) GetPermissionByName(ctx context.Context, name string, includeInactive bool) (Permission, error) {
	return scanPermission(r.pool.QueryRow(ctx,
		`SELECT `+permColumns+` FROM permissions WHERE name = $1 AND deleted_at IS NULL AND (is_active OR $2)`,
		name, includeInactive))
}

// ListPermissions returns all permissions ordered by slug.
func (r *Repository) ListPermissions(ctx context.Context, includeInactive bool) ([]Permission, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+permColumns+` FROM permissions WHERE deleted_at IS NULL AND (is_active OR $1) ORDER BY slug`,
		includeInactive)
	if err != nil {
		return nil, err
	}
	return collectPermissions(rows)
}

// CreatePermission inserts a new permission.
func (r *Repository) CreatePermission(ctx context.Context, perm Permission) (Permission, error) {
	created, err := scanPermission(r.pool.QueryRow(ctx,
		`INSERT INTO permissions (name, slug, guard_name, description, group_id, is_active)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING `+permColumns,
		perm.Name, perm.Slug, perm.GuardName, perm.Description, perm.GroupID, perm.IsActive))
	if isUniqueViolation(err) {
		return Permission{}, &ValidationError{Fields: map[string]string{"slug": "slug already in use"}}
	}
	return created, err
}

// UpdatePermission persists every mutable column. The slug is never written.
func (r *Repository) UpdatePermission(ctx context.Context, perm Permission) (Permission, error) {
	return scanPermission(r.pool.QueryRow(ctx,
		`UPDATE permissions SET name = $2, guard_name = $3, description = $4, group_id = $5,
		        is_active = $6, updated_at = now()
		 WHERE id = $1 AND deleted_at IS NULL
		 RETURNING `+permColumns,
		perm.ID, perm.Name, perm.GuardName, perm.Description, perm.GroupID, perm.IsActive))
}

// SoftDeletePermission marks the permission deleted and removes its
// association rows.
func (r *Repository) SoftDeletePermission(ctx context.Context, id int64) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx,
			`UPDATE permissions SET deleted_at = now(), updated_at = now() WHERE id = $1 AND deleted_at IS NULL`, id)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return ErrNotFound
		}
		if _, err := tx.Exec(ctx, `DELETE FROM permission_role WHERE permission_id = $1`, id); err != nil {
			return err
		}
		_, err = tx.Exec(ctx, `DELETE FROM permission_user WHERE permission_id = $1`, id)
		return err
	})
}

// RestorePermission clears the deletion mark.
func (r *Repository) RestorePermission(ctx context.Context, id int64) (Permission, error) {
	return scanPermission(r.pool.QueryRow(ctx,
		`UPDATE permissions SET deleted_at = NULL, updated_at = now() WHERE id = $1 AND deleted_at IS NOT NULL
		 RETURNING `+permColumns, id))
}

// PermissionSlugExists reports whether any permission holds the slug.
func (r *Repository) PermissionSlugExists(ctx context.Context, slug string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM permissions WHERE slug = $1)`, slug).Scan(&exists)
	return exists, err
}

const groupColumns = `id, name, slug, description, color, icon, sort_order, is_active, created_at, updated_at`

func scanGroup(row pgx.Row) (Group, error) {
	var g Group
	err := row.Scan(&g.ID, &g.Name, &g.Slug, &g.Description, &g.Color, &g.Icon,
		&g.SortOrder, &g.IsActive, &g.CreatedAt, &g.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Group{}, ErrNotFound
	}
	return g, err
}

// GetGroup loads a group by id.
func (r *Repository) GetGroup(ctx context.Context, id int64) (Group, error) {
	return scanGroup(r.pool.QueryRow(ctx,
		`SELECT `+groupColumns+` FROM permission_groups WHERE id = $1`, id))
}

// GetGroupBySlug loads a group by slug, optionally including inactive rows.
func (r *Repository) GetGroupBySlug(ctx context.Context, slug string, includeInactive bool) (Group, error) {
	return scanGroup(r.pool.QueryRow(ctx,
		`SELECT `+groupColumns+` FROM permission_groups WHERE slug = $1 AND (is_active OR $2)`,
		slug, includeInactive))
}

// ListGroups returns all groups in display order.
func (r *Repository) ListGroups(ctx context.Context, includeInactive bool) ([]Group, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+groupColumns+` FROM permission_groups WHERE is_active OR $1 ORDER BY sort_order, name`,
		includeInactive)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var groups []Group
	for rows.Next() {
		var g Group
		if err := rows.Scan(&g.ID, &g.Name, &g.Slug, &g.Description, &g.Color, &g.Icon,
			&g.SortOrder, &g.IsActive, &g.CreatedAt, &g.UpdatedAt); err != nil {
			return nil, err
		}
		groups = append(groups, g)
	}
	return groups, rows.Err()
}

// CreateGroup inserts a new group.
func (r *Repository) CreateGroup(ctx context.Context, group Group) (Group, error) {
	created, err := scanGroup(r.pool.QueryRow(ctx,
		`INSERT INTO permission_groups (name, slug, description, color, icon, sort_order, is_active)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING `+groupColumns,
		group.Name, group.Slug, group.Description, group.Color, group.Icon, group.SortOrder, group.IsActive))
	if isUniqueViolation(err) {
		return Group{}, &ValidationError{Fields: map[string]string{"slug": "slug already in use"}}
	}
	return created, err
}

// UpdateGroup persists every mutable column. The slug is never written.
func (r *Repository) UpdateGroup(ctx context.Context, group Group) (Group, error) {
	return scanGroup(r.pool.QueryRow(ctx,
		`UPDATE permission_groups SET name = $2, description = $3, color = $4, icon = $5,
		        sort_order = $6, is_active = $7, updated_at = now()
		 WHERE id = $1
		 RETURNING `+groupColumns,
		group.ID, group.Name, group.Description, group.Color, group.Icon, group.SortOrder, group.IsActive))
}

// DeleteGroup removes the group and orphans its permissions rather than
// deleting them.
func (r *Repository) DeleteGroup(ctx context.Context, id int64) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx,
			`UPDATE permissions SET group_id = NULL, updated_at = now() WHERE group_id = $1`, id); err != nil {
			return err
		}
		tag, err := tx.Exec(ctx, `DELETE FROM permission_groups WHERE id = $1`, id)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return ErrNotFound
		}
		return nil
	})
}

// GroupSlugExists reports whether any group holds the slug.
func (r *Repository) GroupSlugExists(ctx context.Context, slug string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM permission_groups WHERE slug = $1)`, slug).Scan(&exists)
	return exists, err
}

// SubjectRoles returns the roles held by a subject.
func (r *Repository) SubjectRoles(ctx context.Context, subjectID int64, includeInactive bool) ([]Role, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+prefixColumns("r", roleColumns)+`
		 FROM roles r JOIN role_user ru ON ru.role_id = r.id
		 WHERE ru.user_id = $1 AND r.deleted_at IS NULL AND (r.is_active OR $2)
		 ORDER BY r.name`,
		subjectID, includeInactive)
	if err != nil {
		return nil, err
	}
	return collectRoles(rows)
}

// AttachSubjectRoles adds role grants, ignoring ones already present.
func (r *Repository) AttachSubjectRoles(ctx context.Context, subjectID int64, roleIDs []int64) error {
	if len(roleIDs) == 0 {
		return nil
	}
	_, err := r.pool.Exec(ctx,
		`INSERT INTO role_user (user_id, role_id)
		 SELECT $1, unnest($2::bigint[])
		 ON CONFLICT DO NOTHING`,
		subjectID, roleIDs)
	return err
}

// DetachSubjectRoles removes role grants; absent ones are ignored.
func (r *Repository) DetachSubjectRoles(ctx context.Context, subjectID int64, roleIDs []int64) error {
	if len(roleIDs) == 0 {
		return nil
	}
	_, err := r.pool.Exec(ctx,
		`DELETE FROM role_user WHERE user_id = $1 AND role_id = ANY($2::bigint[])`,
		subjectID, roleIDs)
	return err
}

// SyncSubjectRoles replaces the subject's role set in one transaction.
func (r *Repository) SyncSubjectRoles(ctx context.Context, subjectID int64, roleIDs []int64) error {
	return r.syncAssociation(ctx, "role_user", "user_id", "role_id", subjectID, roleIDs)
}

// SubjectDirectPermissions returns a subject's directly granted permissions.
func (r *Repository) SubjectDirectPermissions(ctx context.Context, subjectID int64, includeInactive bool) ([]Permission, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+prefixColumns("p", permColumns)+`
		 FROM permissions p JOIN permission_user pu ON pu.permission_id = p.id
		 WHERE pu.user_id = $1 AND p.deleted_at IS NULL AND (p.is_active OR $2)
		 ORDER BY p.slug`,
		subjectID, includeInactive)
	if err != nil {
		return nil, err
	}
	return collectPermissions(rows)
}

// AttachSubjectPermissions adds direct grants, ignoring ones already present.
func (r *Repository) AttachSubjectPermissions(ctx context.Context, subjectID int64, permIDs []int64) error {
	if len(permIDs) == 0 {
		return nil
	}
	_, err := r.pool.Exec(ctx,
		`INSERT INTO permission_user (user_id, permission_id)
		 SELECT $1, unnest($2::bigint[])
		 ON CONFLICT DO NOTHING`,
		subjectID, permIDs)
	return err
}

// DetachSubjectPermissions removes direct grants; absent ones are ignored.
func (r *Repository) DetachSubjectPermissions(ctx context.Context, subjectID int64, permIDs []int64) error {
	if len(permIDs) == 0 {
		return nil
	}
	_, err := r.pool.Exec(ctx,
		`DELETE FROM permission_user WHERE user_id = $1 AND permission_id = ANY($2::bigint[])`,
		subjectID, permIDs)
	return err
}

// SyncSubjectPermissions replaces the subject's direct grants in one
// transaction.
func (r *Repository) SyncSubjectPermissions(ctx context.Context, subjectID int64, permIDs []int64) error {
	return r.syncAssociation(ctx, "permission_user", "user_id", "permission_id", subjectID, permIDs)
}

// RolePermissions returns the permissions attached to a role.
func (r *Repository) RolePermissions(ctx context.Context, roleID int64, includeInactive bool) ([]Permission, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+prefixColumns("p", permColumns)+`
		 FROM permissions p JOIN permission_role pr ON pr.permission_id = p.id
		 WHERE pr.role_id = $1 AND p.deleted_at IS NULL AND (p.is_active OR $2)
		 ORDER BY p.slug`,
		roleID, includeInactive)
	if err != nil {
		return nil, err
	}
	return collectPermissions(rows)
}

// AttachRolePermissions adds permissions to a role, ignoring ones already
// present.
func (r *Repository) AttachRolePermissions(ctx context.Context, roleID int64, permIDs []int64) error {
	if len(permIDs) == 0 {
		return nil
	}
	_, err := r.pool.Exec(ctx,
		`INSERT INTO permission_role (role_id, permission_id)
		 SELECT $1, unnest($2::bigint[])
		 ON CONFLICT DO NOTHING`,
		roleID, permIDs)
	return err
}

// DetachRolePermissions removes permissions from a role; absent ones are
// ignored.
func (r *Repository) DetachRolePermissions(ctx context.Context, roleID int64, permIDs []int64) error {
	if len(permIDs) == 0 {
		return nil
	}
	_, err := r.pool.Exec(ctx,
		`DELETE FROM permission_role WHERE role_id = $1 AND permission_id = ANY($2::bigint[])`,
		roleID, permIDs)
	return err
}

// SyncRolePermissions replaces the role's permission set in one transaction.
func (r *Repository) SyncRolePermissions(ctx context.Context, roleID int64, permIDs []int64) error {
	return r.syncAssociation(ctx, "permission_role", "role_id", "permission_id", roleID, permIDs)
}

// RoleSubjectIDs returns the subjects currently holding a role.
func (r *Repository) RoleSubjectIDs(ctx context.Context, roleID int64) ([]int64, error) {
	return r.collectIDs(ctx, `SELECT user_id FROM role_user WHERE role_id = $1`, roleID)
}

// PermissionRoleIDs returns the roles a permission is attached to.
func (r *Repository) PermissionRoleIDs(ctx context.Context, permID int64) ([]int64, error) {
	return r.collectIDs(ctx, `SELECT role_id FROM permission_role WHERE permission_id = $1`, permID)
}

// PermissionSubjectIDs returns the subjects holding a permission directly.
func (r *Repository) PermissionSubjectIDs(ctx context.Context, permID int64) ([]int64, error) {
	return r.collectIDs(ctx, `SELECT user_id FROM permission_user WHERE permission_id = $1`, permID)
}

// DetachSubject removes every association the subject participates in.
func (r *Repository) DetachSubject(ctx context.Context, subjectID int64) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM role_user WHERE user_id = $1`, subjectID); err != nil {
			return err
		}
		_, err := tx.Exec(ctx, `DELETE FROM permission_user WHERE user_id = $1`, subjectID)
		return err
	})
}

// syncAssociation replaces one side of a pivot table within a transaction,
// so a reader never observes the set half-replaced.
func (r *Repository) syncAssociation(ctx context.Context, table, ownerCol, targetCol string, ownerID int64, targetIDs []int64) error {
	del := fmt.Sprintf(`DELETE FROM %s WHERE %s = $1`, table, ownerCol)
	ins := fmt.Sprintf(`INSERT INTO %s (%s, %s) SELECT $1, unnest($2::bigint[]) ON CONFLICT DO NOTHING`,
		table, ownerCol, targetCol)
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, del, ownerID); err != nil {
			return err
		}
		if len(targetIDs) == 0 {
			return nil
		}
		_, err := tx.Exec(ctx, ins, ownerID, targetIDs)
		return err
	})
}

func (r *Repository) collectIDs(ctx context.Context, query string, arg int64) ([]int64, error) {
	rows, err := r.pool.Query(ctx, query, arg)
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

func collectRoles(rows pgx.Rows) ([]Role, error) {
	defer rows.Close()
	var roles []Role
	for rows.Next() {
		var r Role
		if err := rows.Scan(&r.ID, &r.Name, &r.Slug, &r.GuardName, &r.Description, &r.Color, &r.Icon,
			&r.IsDefault, &r.IsActive, &r.DeletedAt, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, err
		}
		roles = append(roles, r)
	}
	return roles, rows.Err()
}

func collectPermissions(rows pgx.Rows) ([]Permission, error) {
	defer rows.Close()
	var perms []Permission
	for rows.Next() {
		var p Permission
		if err := rows.Scan(&p.ID, &p.Name, &p.Slug, &p.GuardName, &p.Description, &p.GroupID,
			&p.IsActive, &p.DeletedAt, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		perms = append(perms, p)
	}
	return perms, rows.Err()
}

func prefixColumns(alias, columns string) string {
	cols := strings.Split(columns, ", ")
	for i, col := range cols {
		cols[i] = alias + "." + col
	}
	return strings.Join(cols, ", ")
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
