package middleware

import (
	"log/slog"
	"net/http"

	"github.com/lavente-care/iam-gateway/internal/appregistry"
	"github.com/lavente-care/iam-gateway/internal/errs"
	"github.com/lavente-care/iam-gateway/internal/gatewayhttp"
)

// RequireScope implements §4.H step 3: the endpoint declares a required
// scope; if the calling application lacks it, the request never reaches
// the handler (§8 invariant 10 — enforced regardless of payload).
func RequireScope(scope string, log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			app := gatewayhttp.Application(r.Context())
			if app == nil || !appregistry.ScopeGranted(app, scope) {
				gatewayhttp.RespondError(w, r, log, errs.New(errs.KindInsufficientScope, "application lacks required scope").
					WithDetails(map[string]interface{}{"required_scope": scope}))
				return
			}
			next.ServeHTTP(w, r.WithContext(gatewayhttp.WithRequiredScope(r.Context(), scope)))
		})
	}
}

// RequireLoginMethod implements §4.H step 2, gating register/login
// routes on the application's enabled_login_methods.
func RequireLoginMethod(method string, log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			app := gatewayhttp.Application(r.Context())
			if app == nil || !appregistry.LoginMethodEnabled(app, method) {
				gatewayhttp.RespondError(w, r, log, errs.New(errs.KindLoginMethodDisabled, "login method not enabled for this application"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
