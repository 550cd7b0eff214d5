package storage

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// RoleRepo is the data-access layer over roles, permissions, and the
// join tables binding them to each other and to users (§3, §4.E).
type RoleRepo struct {
	pool *pgxpool.Pool
}

func NewRoleRepo(pool *pgxpool.Pool) *RoleRepo {
	return &RoleRepo{pool: pool}
}

func (r *RoleRepo) GetByID(ctx context.Context, id uuid.UUID) (*Role, error) {
	var role Role
	err := r.pool.QueryRow(ctx, `SELECT id, name, description, is_system_role FROM roles WHERE id = $1`, id).
		Scan(&role.ID, &role.Name, &role.Description, &role.IsSystemRole)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &role, nil
}

func (r *RoleRepo) GetByName(ctx context.Context, name string) (*Role, error) {
	var role Role
	err := r.pool.QueryRow(ctx, `SELECT id, name, description, is_system_role FROM roles WHERE name = $1`, name).
		Scan(&role.ID, &role.Name, &role.Description, &role.IsSystemRole)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &role, nil
}

// RolesForUser returns every role directly assigned to a user.
func (r *RoleRepo) RolesForUser(ctx context.Context, userID uuid.UUID) ([]Role, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT r.id, r.name, r.description, r.is_system_role
		FROM roles r JOIN user_roles ur ON ur.role_id = r.id
		WHERE ur.user_id = $1`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var roles []Role
	for rows.Next() {
		var role Role
		if err := rows.Scan(&role.ID, &role.Name, &role.Description, &role.IsSystemRole); err != nil {
			return nil, err
		}
		roles = append(roles, role)
	}
	return roles, rows.Err()
}

// EffectivePermissionsForUser is the union of permissions over every
// role assigned to the user (§4.E).
func (r *RoleRepo) EffectivePermissionsForUser(ctx context.Context, userID uuid.UUID) ([]Permission, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT DISTINCT p.id, p.name, p.resource, p.action
		FROM permissions p
		JOIN role_permissions rp ON rp.permission_id = p.id
		JOIN user_roles ur ON ur.role_id = rp.role_id
		WHERE ur.user_id = $1`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var perms []Permission
	for rows.Next() {
		var p Permission
		if err := rows.Scan(&p.ID, &p.Name, &p.Resource, &p.Action); err != nil {
			return nil, err
		}
		perms = append(perms, p)
	}
	return perms, rows.Err()
}

// AssignRole idempotently assigns a role to a user, reporting whether a
// new row was inserted (§8 invariant 12 — idempotent assignment).
func (r *RoleRepo) AssignRole(ctx context.Context, userID, roleID uuid.UUID) (assigned bool, err error) {
	tag, err := r.pool.Exec(ctx, `
		INSERT INTO user_roles (user_id, role_id) VALUES ($1,$2)
		ON CONFLICT (user_id, role_id) DO NOTHING`, userID, roleID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (r *RoleRepo) RemoveRole(ctx context.Context, userID, roleID uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM user_roles WHERE user_id = $1 AND role_id = $2`, userID, roleID)
	return err
}

// UserIDsWithRole returns every user holding a given role, used by
// authorization-cache invalidation on role/permission mutation (§4.E).
func (r *RoleRepo) UserIDsWithRole(ctx context.Context, roleID uuid.UUID) ([]uuid.UUID, error) {
	rows, err := r.pool.Query(ctx, `SELECT user_id FROM user_roles WHERE role_id = $1`, roleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// UserIDsWithPermission returns every user transitively holding a
// permission through any role, used when a Permission is deleted.
func (r *RoleRepo) UserIDsWithPermission(ctx context.Context, permissionID uuid.UUID) ([]uuid.UUID, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT DISTINCT ur.user_id
		FROM user_roles ur
		JOIN role_permissions rp ON rp.role_id = ur.role_id
		WHERE rp.permission_id = $1`, permissionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *RoleRepo) AssignPermission(ctx context.Context, roleID, permissionID uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO role_permissions (role_id, permission_id) VALUES ($1,$2)
		ON CONFLICT (role_id, permission_id) DO NOTHING`, roleID, permissionID)
	return err
}

func (r *RoleRepo) RemovePermission(ctx context.Context, roleID, permissionID uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM role_permissions WHERE role_id = $1 AND permission_id = $2`, roleID, permissionID)
	return err
}

// DeleteRole refuses to delete system roles; callers collect
// UserIDsWithRole before calling this and invalidate the authorization
// cache for those users afterwards.
func (r *RoleRepo) DeleteRole(ctx context.Context, roleID uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM roles WHERE id = $1 AND is_system_role = false`, roleID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errors.New("storage: cannot delete system role or role not found")
	}
	return nil
}

// DeletePermission is forbidden while any role still references it
// (§3 ownership rule).
func (r *RoleRepo) DeletePermission(ctx context.Context, permissionID uuid.UUID) error {
	var inUse bool
	if err := r.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM role_permissions WHERE permission_id = $1)`, permissionID).Scan(&inUse); err != nil {
		return err
	}
	if inUse {
		return errors.New("storage: permission referenced by a role")
	}
	_, err := r.pool.Exec(ctx, `DELETE FROM permissions WHERE id = $1`, permissionID)
	return err
}
