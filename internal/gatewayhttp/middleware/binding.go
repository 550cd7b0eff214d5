package middleware

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/lavente-care/iam-gateway/internal/authz"
	"github.com/lavente-care/iam-gateway/internal/errs"
	"github.com/lavente-care/iam-gateway/internal/gatewayhttp"
)

// BindingChecker is the narrow slice of the identity service this
// middleware needs.
type BindingChecker interface {
	IsBoundToApplication(ctx context.Context, userID, appID uuid.UUID) (bool, error)
}

// RequireUserBinding implements §4.H step 6: the target user must be
// bound to the calling application, unless the caller holds
// super_admin and the route is flagged as a platform-administrative
// scope — the only documented bypass. The target is the `user_id` path
// parameter when the route declares one (operations against another
// user, e.g. `/users/{user_id}/roles`), falling back to the bearer
// token's own subject for self-only routes (e.g. change-password).
//
// This middleware must run after RequiredScope has been resolved for
// the route — chi applies a parent group's Use stack before any
// middleware registered in a nested sub-router, so callers must not
// install this on a group that wraps a nested RequireScope.
func RequireUserBinding(identity BindingChecker, engine *authz.Engine, platformScopes map[string]bool, log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			callerID := gatewayhttp.UserID(r.Context())
			targetID := callerID
			if raw := chi.URLParam(r, "user_id"); raw != "" {
				parsed, err := uuid.Parse(raw)
				if err != nil {
					gatewayhttp.RespondError(w, r, log, errs.New(errs.KindValidationError, "invalid user id"))
					return
				}
				targetID = parsed
			}
			appID := gatewayhttp.AppID(r.Context())

			if platformScopes[gatewayhttp.RequiredScope(r.Context())] {
				if isAdmin, err := engine.IsSuperAdmin(r.Context(), callerID); err == nil && isAdmin {
					next.ServeHTTP(w, r)
					return
				}
			}

			bound, err := identity.IsBoundToApplication(r.Context(), targetID, appID)
			if err != nil {
				gatewayhttp.RespondError(w, r, log, errs.Wrap(errs.KindServiceUnavailable, "failed to verify application binding", err))
				return
			}
			if !bound {
				gatewayhttp.RespondError(w, r, log, errs.New(errs.KindUserNotBound, "user is not bound to this application"))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
