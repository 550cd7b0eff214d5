// Package router wires the admission pipeline of §4.H into a chi
// router; the ordered middleware steps live in
// internal/gatewayhttp/middleware, the handlers in
// internal/gatewayhttp/handlers.
package router

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/lavente-care/iam-gateway/internal/gatewayhttp/handlers"
	"github.com/lavente-care/iam-gateway/internal/gatewayhttp/middleware"
	"github.com/lavente-care/iam-gateway/internal/metrics"
)

// NewRouter assembles the full HTTP surface: unauthenticated auxiliary
// routes, app-credential routes (register/login/refresh/oauth), and
// bearer-token routes (gateway pass-through, user/admin operations),
// applying the §4.H pipeline in order on every authenticated route.
//
// Scope resolution always precedes the user-binding check: chi runs a
// group's Use stack before any middleware nested one level deeper, so
// RequireScope is installed on the same Group as RequireUserBinding
// rather than on an outer parent — otherwise RequiredScope would still
// be unset when the binding check reads it (§4.H steps 3 and 6).
func NewRouter(h *handlers.Handlers, rl *middleware.AppRateLimiter, defaultRateLimit int, m *metrics.Metrics, log *slog.Logger, platformScopes map[string]bool) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recovery(log))
	r.Use(middleware.RequestLogger(log))
	r.Use(chimw.Timeout(30 * time.Second))

	r.Get("/health", h.Health)
	r.Get("/api/v1/gateway/info", h.Info)
	r.Get("/.well-known/jwks.json", h.JWKS)
	r.Handle("/metrics", m.Handler())

	r.Route("/auth", func(auth chi.Router) {
		auth.Use(middleware.AppCredentialAuth(h.Apps, log))
		auth.Use(middleware.RateLimit(rl, defaultRateLimit, m, log))

		auth.With(middleware.RequireScope("auth:register", log)).Post("/send-email-code", h.SendEmailCode)
		auth.With(middleware.RequireScope("auth:register", log)).Post("/send-sms", h.SendSMS)
		auth.With(middleware.RequireScope("auth:register", log)).Post("/verify-email", h.VerifyEmailRegistration)
		auth.With(middleware.RequireScope("auth:register", log)).Post("/verify-phone", h.VerifyPhoneRegistration)

		auth.With(middleware.RequireLoginMethod("email_code", log), middleware.RequireScope("auth:register", log)).Post("/register/email", h.RegisterEmail)
		auth.With(middleware.RequireLoginMethod("phone_code", log), middleware.RequireScope("auth:register", log)).Post("/register/phone", h.RegisterPhone)

		auth.With(middleware.RequireLoginMethod("password", log), middleware.RequireScope("auth:login", log)).Post("/login", h.Login)
		auth.With(middleware.RequireLoginMethod("phone_code", log), middleware.RequireScope("auth:login", log)).Post("/login/phone-code", h.LoginPhoneCode)
		auth.With(middleware.RequireLoginMethod("email_code", log), middleware.RequireScope("auth:login", log)).Post("/login/email-code", h.LoginEmailCode)

		auth.Route("/oauth/{provider}", func(o chi.Router) {
			o.Use(middleware.RequireLoginMethod("oauth", log))
			o.Use(middleware.RequireScope("auth:login", log))
			o.Post("/", func(w http.ResponseWriter, r *http.Request) {
				h.OAuthLogin(w, r, chi.URLParam(r, "provider"))
			})
		})

		auth.With(middleware.RequireScope("auth:refresh", log)).Post("/refresh", h.Refresh)
		auth.With(middleware.RequireScope("auth:logout", log)).Post("/logout", h.Logout)
	})

	r.Group(func(protected chi.Router) {
		protected.Use(middleware.BearerAuth(h.Tokens, h.Apps, log))
		protected.Use(middleware.RateLimit(rl, defaultRateLimit, m, log))
		protected.Use(middleware.Quota(h.Quota, m, log))

		bound := func(scope string) []func(http.Handler) http.Handler {
			return []func(http.Handler) http.Handler{
				middleware.RequireScope(scope, log),
				middleware.RequireUserBinding(h.Identity, h.Authz, platformScopes, log),
			}
		}

		protected.With(bound("user:write")...).Post("/auth/change-password", h.ChangePassword)

		protected.With(bound("user:read")...).Get("/users/{user_id}", h.GetUser)
		protected.With(bound("user:read")...).Get("/users/{user_id}/permissions", h.UserPermissions)
		protected.With(bound("user:read")...).Post("/users/{user_id}/permissions/check", h.CheckPermission)

		protected.With(bound("role:read")...).Get("/users/{user_id}/roles", h.UserRoles)
		protected.With(bound("role:write")...).Post("/users/{user_id}/roles", h.AssignRole)
		protected.With(bound("role:write")...).Delete("/users/{user_id}/roles/{role_id}", h.RemoveRole)

		protected.With(bound("quota:read")...).Get("/quota/usage", h.QuotaUsage)

		protected.Route("/admin", func(admin chi.Router) {
			admin.Use(middleware.RequireScope("platform:admin", log))
			admin.Use(middleware.RequireUserBinding(h.Identity, h.Authz, platformScopes, log))

			admin.Post("/applications", h.CreateApplication)
			admin.Get("/applications/{app}", h.GetApplication)
			admin.Patch("/applications/{app}", h.UpdateApplication)
			admin.Post("/applications/{app}/reset-secret", h.ResetApplicationSecret)
			admin.Delete("/applications/{app}", h.DeleteApplication)

			admin.Post("/quota/{app}/override", h.AdminQuotaOverride)
			admin.Post("/quota/{app}/reset", h.AdminQuotaReset)
		})
	})

	return r
}
