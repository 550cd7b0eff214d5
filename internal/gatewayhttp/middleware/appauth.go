package middleware

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/lavente-care/iam-gateway/internal/appregistry"
	"github.com/lavente-care/iam-gateway/internal/errs"
	"github.com/lavente-care/iam-gateway/internal/gatewayhttp"
	"github.com/lavente-care/iam-gateway/internal/token"
)

// AppCredentialAuth implements §4.H step 1 for app-credential endpoints
// (register/login/refresh/OAuth): X-App-Id + X-App-Secret, constant-time
// compared against the stored hash.
func AppCredentialAuth(apps *appregistry.Service, log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			appIDHeader := r.Header.Get("X-App-Id")
			secret := r.Header.Get("X-App-Secret")
			if appIDHeader == "" || secret == "" {
				gatewayhttp.RespondError(w, r, log, errs.New(errs.KindInvalidCredentials, "missing application credentials"))
				return
			}
			appID, err := uuid.Parse(appIDHeader)
			if err != nil {
				gatewayhttp.RespondError(w, r, log, errs.New(errs.KindInvalidCredentials, "malformed X-App-Id"))
				return
			}

			app, err := apps.Authenticate(r.Context(), appID, secret)
			if err != nil {
				gatewayhttp.RespondError(w, r, log, err)
				return
			}

			ctx := gatewayhttp.WithAppID(r.Context(), app.AppID)
			ctx = gatewayhttp.WithApplication(ctx, app)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// BearerAuth implements §4.H step 1 for bearer-token endpoints:
// Authorization: Bearer <access_token> plus X-App-Id, with the token's
// embedded app_id required to match the header (§8 invariant 2,
// invariant 11).
func BearerAuth(tokens *token.Service, apps *appregistry.Service, log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			const prefix = "Bearer "
			if !strings.HasPrefix(authHeader, prefix) {
				gatewayhttp.RespondError(w, r, log, errs.New(errs.KindInvalidToken, "missing bearer token"))
				return
			}
			rawToken := strings.TrimPrefix(authHeader, prefix)

			appIDHeader := r.Header.Get("X-App-Id")
			if appIDHeader == "" {
				gatewayhttp.RespondError(w, r, log, errs.New(errs.KindInvalidToken, "missing X-App-Id"))
				return
			}
			headerAppID, err := uuid.Parse(appIDHeader)
			if err != nil {
				gatewayhttp.RespondError(w, r, log, errs.New(errs.KindInvalidToken, "malformed X-App-Id"))
				return
			}

			claims, err := tokens.ValidateAccess(rawToken)
			if err != nil {
				gatewayhttp.RespondError(w, r, log, err)
				return
			}
			if claims.AppID != headerAppID {
				gatewayhttp.RespondError(w, r, log, errs.New(errs.KindInvalidToken, "token not issued for this application"))
				return
			}

			app, err := apps.GetByID(r.Context(), headerAppID)
			if err != nil {
				gatewayhttp.RespondError(w, r, log, errs.New(errs.KindInvalidToken, "application not found"))
				return
			}

			ctx := gatewayhttp.WithAppID(r.Context(), app.AppID)
			ctx = gatewayhttp.WithApplication(ctx, app)
			ctx = gatewayhttp.WithUserID(ctx, claims.UserID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
