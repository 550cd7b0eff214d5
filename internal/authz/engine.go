// Package authz implements component E: effective-permission resolution
// over roles, a short-TTL Redis cache, a super-admin bypass, and
// event-driven cache invalidation.
package authz

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/lavente-care/iam-gateway/internal/storage"
	"github.com/redis/go-redis/v9"
)

const superAdminRoleName = "super_admin"

func permissionsCacheKey(userID uuid.UUID) string  { return fmt.Sprintf("user_permissions:%s", userID) }
func superAdminCacheKey(userID uuid.UUID) string   { return fmt.Sprintf("user_is_super_admin:%s", userID) }

// Engine resolves and caches a user's effective permissions (§4.E).
type Engine struct {
	roles *storage.RoleRepo
	rdb   *redis.Client
	ttl   time.Duration
	bus   *Bus
	log   *slog.Logger
}

func NewEngine(roles *storage.RoleRepo, rdb *redis.Client, ttl time.Duration, bus *Bus, log *slog.Logger) *Engine {
	return &Engine{roles: roles, rdb: rdb, ttl: ttl, bus: bus, log: log}
}

// Listen subscribes to the Bus and drops cache entries for every
// affected user until ctx is cancelled. Run once, in its own goroutine,
// from main.
func (e *Engine) Listen(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case userID := <-e.bus.events():
			if err := e.invalidate(ctx, userID); err != nil {
				e.log.Warn("authz_cache_invalidate_failed", "user_id", userID, "error", err)
			}
		}
	}
}

func (e *Engine) invalidate(ctx context.Context, userID uuid.UUID) error {
	return e.rdb.Del(ctx, permissionsCacheKey(userID), superAdminCacheKey(userID)).Err()
}

// IsSuperAdmin reports whether the user holds the super_admin role,
// consulting the cache first.
func (e *Engine) IsSuperAdmin(ctx context.Context, userID uuid.UUID) (bool, error) {
	key := superAdminCacheKey(userID)
	if cached, err := e.rdb.Get(ctx, key).Result(); err == nil {
		return cached == "1", nil
	}

	roles, err := e.roles.RolesForUser(ctx, userID)
	if err != nil {
		return false, err
	}
	isAdmin := false
	for _, r := range roles {
		if r.Name == superAdminRoleName {
			isAdmin = true
			break
		}
	}

	val := "0"
	if isAdmin {
		val = "1"
	}
	_ = e.rdb.Set(ctx, key, val, e.ttl).Err()
	return isAdmin, nil
}

// EffectivePermissions returns the union of permissions over every role
// assigned to the user, consulting the cache first (§4.E).
func (e *Engine) EffectivePermissions(ctx context.Context, userID uuid.UUID) (map[string]bool, error) {
	key := permissionsCacheKey(userID)
	if cached, err := e.rdb.SMembers(ctx, key).Result(); err == nil && len(cached) > 0 {
		set := make(map[string]bool, len(cached))
		for _, p := range cached {
			set[p] = true
		}
		return set, nil
	}

	perms, err := e.roles.EffectivePermissionsForUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	set := make(map[string]bool, len(perms))
	names := make([]interface{}, 0, len(perms))
	for _, p := range perms {
		set[p.Name] = true
		names = append(names, p.Name)
	}

	if len(names) > 0 {
		pipe := e.rdb.TxPipeline()
		pipe.SAdd(ctx, key, names...)
		pipe.Expire(ctx, key, e.ttl)
		_, _ = pipe.Exec(ctx)
	}
	return set, nil
}

// HasPermission implements the super-admin bypass (§8 invariant 7):
// has_permission(u, p) is true for any p when u holds super_admin,
// regardless of whether p is attached to any role.
func (e *Engine) HasPermission(ctx context.Context, userID uuid.UUID, permission string) (bool, error) {
	isAdmin, err := e.IsSuperAdmin(ctx, userID)
	if err != nil {
		return false, err
	}
	if isAdmin {
		return true, nil
	}
	perms, err := e.EffectivePermissions(ctx, userID)
	if err != nil {
		return false, err
	}
	return perms[permission], nil
}

// AssignRole idempotently assigns a role and invalidates the user's
// cache entries before returning, so the very next HasPermission call
// observes it rather than racing the async bus (§8 invariant 8,
// invariant 12). Single-user-scoped mutations invalidate synchronously;
// only the fan-out cases (AssignPermission, RemovePermission, DeleteRole,
// DeletePermission) use the bus.
func (e *Engine) AssignRole(ctx context.Context, userID, roleID uuid.UUID) (assigned bool, err error) {
	assigned, err = e.roles.AssignRole(ctx, userID, roleID)
	if err != nil {
		return false, err
	}
	if err := e.invalidate(ctx, userID); err != nil {
		return false, err
	}
	return assigned, nil
}

func (e *Engine) RemoveRole(ctx context.Context, userID, roleID uuid.UUID) error {
	if err := e.roles.RemoveRole(ctx, userID, roleID); err != nil {
		return err
	}
	return e.invalidate(ctx, userID)
}

// AssignPermission attaches a permission to a role and invalidates every
// user currently holding that role (§4.E invalidation rules).
func (e *Engine) AssignPermission(ctx context.Context, roleID, permissionID uuid.UUID) error {
	if err := e.roles.AssignPermission(ctx, roleID, permissionID); err != nil {
		return err
	}
	ids, err := e.roles.UserIDsWithRole(ctx, roleID)
	if err != nil {
		return err
	}
	e.bus.PublishAll(ids)
	return nil
}

func (e *Engine) RemovePermission(ctx context.Context, roleID, permissionID uuid.UUID) error {
	if err := e.roles.RemovePermission(ctx, roleID, permissionID); err != nil {
		return err
	}
	ids, err := e.roles.UserIDsWithRole(ctx, roleID)
	if err != nil {
		return err
	}
	e.bus.PublishAll(ids)
	return nil
}

// DeleteRole collects every affected user before the row disappears and
// publishes their invalidations once the delete has succeeded.
func (e *Engine) DeleteRole(ctx context.Context, roleID uuid.UUID) error {
	ids, err := e.roles.UserIDsWithRole(ctx, roleID)
	if err != nil {
		return err
	}
	if err := e.roles.DeleteRole(ctx, roleID); err != nil {
		return err
	}
	e.bus.PublishAll(ids)
	return nil
}

// DeletePermission collects every user transitively holding it, removes
// the row, then publishes their invalidations.
func (e *Engine) DeletePermission(ctx context.Context, permissionID uuid.UUID) error {
	ids, err := e.roles.UserIDsWithPermission(ctx, permissionID)
	if err != nil {
		return err
	}
	if err := e.roles.DeletePermission(ctx, permissionID); err != nil {
		return err
	}
	e.bus.PublishAll(ids)
	return nil
}
