package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/lavente-care/iam-gateway/internal/gatewayhttp"
)

// Health implements `GET /health`: a liveness/readiness probe pinging
// both durable stores so an orchestrator can distinguish "up" from
// "accepting traffic" (§9 supplemented feature).
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status := "ok"
	deps := map[string]string{"postgres": "ok", "redis": "ok"}

	if err := h.Pool.Ping(ctx); err != nil {
		deps["postgres"] = "unreachable"
		status = "degraded"
	}
	if h.Redis != nil {
		if err := h.Redis.Ping(ctx).Err(); err != nil {
			deps["redis"] = "unreachable"
			status = "degraded"
		}
	}

	code := http.StatusOK
	if status != "ok" {
		code = http.StatusServiceUnavailable
	}
	gatewayhttp.RespondJSON(w, r, code, map[string]interface{}{"status": status, "dependencies": deps})
}

// Info implements `GET /api/v1/gateway/info`: version and capability
// discovery for integrating applications (§9 supplemented feature).
func (h *Handlers) Info(w http.ResponseWriter, r *http.Request) {
	gatewayhttp.RespondJSON(w, r, http.StatusOK, map[string]interface{}{
		"version":              h.Version,
		"supported_api_versions": []string{"v1"},
		"login_methods":        []string{"password", "email_code", "phone_code", "oauth"},
	})
}

// JWKS implements `GET /.well-known/jwks.json`, publishing the access
// token signing key for third-party verification (§9 supplemented
// feature, grounded on the OIDC discovery convention).
func (h *Handlers) JWKS(w http.ResponseWriter, r *http.Request) {
	jwks := h.Tokens.JWKS()
	gatewayhttp.RespondJSON(w, r, http.StatusOK, map[string]interface{}{"keys": jwks.Keys})
}
