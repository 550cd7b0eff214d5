package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/lavente-care/iam-gateway/internal/errs"
	"github.com/lavente-care/iam-gateway/internal/gatewayhttp"
)

func targetUserID(r *http.Request) (uuid.UUID, error) {
	return uuid.Parse(chi.URLParam(r, "user_id"))
}

// GetUser implements `GET /users/{user_id}` (§6.1).
func (h *Handlers) GetUser(w http.ResponseWriter, r *http.Request) {
	id, err := targetUserID(r)
	if err != nil {
		gatewayhttp.RespondError(w, r, h.Log, errs.New(errs.KindValidationError, "invalid user id"))
		return
	}
	u, err := h.Identity.GetByID(r.Context(), id)
	if err != nil {
		gatewayhttp.RespondError(w, r, h.Log, err)
		return
	}
	gatewayhttp.RespondJSON(w, r, http.StatusOK, map[string]interface{}{
		"id":       u.ID,
		"username": u.Username,
		"email":    u.Email,
		"phone":    u.Phone,
		"status":   u.Status,
	})
}

// UserRoles implements `GET /users/{user_id}/roles`.
func (h *Handlers) UserRoles(w http.ResponseWriter, r *http.Request) {
	id, err := targetUserID(r)
	if err != nil {
		gatewayhttp.RespondError(w, r, h.Log, errs.New(errs.KindValidationError, "invalid user id"))
		return
	}
	roles, err := h.Roles.RolesForUser(r.Context(), id)
	if err != nil {
		gatewayhttp.RespondError(w, r, h.Log, errs.Wrap(errs.KindServiceUnavailable, "failed to load roles", err))
		return
	}
	gatewayhttp.RespondJSON(w, r, http.StatusOK, map[string]interface{}{"roles": roles})
}

// UserPermissions implements `GET /users/{user_id}/permissions`.
func (h *Handlers) UserPermissions(w http.ResponseWriter, r *http.Request) {
	id, err := targetUserID(r)
	if err != nil {
		gatewayhttp.RespondError(w, r, h.Log, errs.New(errs.KindValidationError, "invalid user id"))
		return
	}
	perms, err := h.Authz.EffectivePermissions(r.Context(), id)
	if err != nil {
		gatewayhttp.RespondError(w, r, h.Log, err)
		return
	}
	isAdmin, err := h.Authz.IsSuperAdmin(r.Context(), id)
	if err != nil {
		gatewayhttp.RespondError(w, r, h.Log, err)
		return
	}
	gatewayhttp.RespondJSON(w, r, http.StatusOK, map[string]interface{}{
		"permissions":    perms,
		"is_super_admin": isAdmin,
	})
}

type checkPermissionRequest struct {
	Permission string `json:"permission"`
}

// CheckPermission implements `POST /users/{user_id}/permissions/check`.
func (h *Handlers) CheckPermission(w http.ResponseWriter, r *http.Request) {
	id, err := targetUserID(r)
	if err != nil {
		gatewayhttp.RespondError(w, r, h.Log, errs.New(errs.KindValidationError, "invalid user id"))
		return
	}
	var req checkPermissionRequest
	if err := gatewayhttp.DecodeJSON(r, &req); err != nil {
		gatewayhttp.RespondError(w, r, h.Log, err)
		return
	}
	allowed, err := h.Authz.HasPermission(r.Context(), id, req.Permission)
	if err != nil {
		gatewayhttp.RespondError(w, r, h.Log, err)
		return
	}
	gatewayhttp.RespondJSON(w, r, http.StatusOK, map[string]interface{}{"allowed": allowed})
}

type assignRoleRequest struct {
	RoleIDs []uuid.UUID `json:"role_ids"`
}

// AssignRole implements `POST /users/{user_id}/roles` (role:write
// scope). Idempotent per §8 invariant 12: role_ids already held are
// skipped and do not count toward assigned_count.
func (h *Handlers) AssignRole(w http.ResponseWriter, r *http.Request) {
	targetID, err := targetUserID(r)
	if err != nil {
		gatewayhttp.RespondError(w, r, h.Log, errs.New(errs.KindValidationError, "invalid user id"))
		return
	}
	var req assignRoleRequest
	if err := gatewayhttp.DecodeJSON(r, &req); err != nil {
		gatewayhttp.RespondError(w, r, h.Log, err)
		return
	}
	assignedCount := 0
	for _, roleID := range req.RoleIDs {
		assigned, err := h.Authz.AssignRole(r.Context(), targetID, roleID)
		if err != nil {
			gatewayhttp.RespondError(w, r, h.Log, err)
			return
		}
		if assigned {
			assignedCount++
		}
	}
	gatewayhttp.RespondJSON(w, r, http.StatusOK, map[string]interface{}{"assigned_count": assignedCount})
}

// RemoveRole implements `DELETE /users/{user_id}/roles/{role_id}`.
func (h *Handlers) RemoveRole(w http.ResponseWriter, r *http.Request) {
	targetID, err := targetUserID(r)
	if err != nil {
		gatewayhttp.RespondError(w, r, h.Log, errs.New(errs.KindValidationError, "invalid user id"))
		return
	}
	roleID, err := uuid.Parse(chi.URLParam(r, "role_id"))
	if err != nil {
		gatewayhttp.RespondError(w, r, h.Log, errs.New(errs.KindValidationError, "invalid role id"))
		return
	}
	if err := h.Authz.RemoveRole(r.Context(), targetID, roleID); err != nil {
		gatewayhttp.RespondError(w, r, h.Log, err)
		return
	}
	gatewayhttp.RespondJSON(w, r, http.StatusOK, nil)
}
