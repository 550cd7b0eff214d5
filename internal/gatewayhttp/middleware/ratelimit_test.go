package middleware_test

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/lavente-care/iam-gateway/internal/gatewayhttp"
	"github.com/lavente-care/iam-gateway/internal/gatewayhttp/middleware"
	"github.com/lavente-care/iam-gateway/internal/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRateLimit_AllowsWithinBurstThenRejects(t *testing.T) {
	rl := middleware.NewAppRateLimiter()
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	handler := middleware.RateLimit(rl, 1, m, discardLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	appID := uuid.New()
	newReq := func() *http.Request {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		return req.WithContext(gatewayhttp.WithAppID(req.Context(), appID))
	}

	rec1 := httptest.NewRecorder()
	handler.ServeHTTP(rec1, newReq())
	assert.Equal(t, http.StatusOK, rec1.Code)
	assert.NotEmpty(t, rec1.Header().Get("X-RateLimit-Limit"))

	rec2 := httptest.NewRecorder()
	handler.ServeHTTP(rec2, newReq())
	assert.Equal(t, http.StatusTooManyRequests, rec2.Code)
	assert.NotEmpty(t, rec2.Header().Get("Retry-After"))
}

func TestRateLimit_SeparateApplicationsHaveIndependentBuckets(t *testing.T) {
	rl := middleware.NewAppRateLimiter()
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	handler := middleware.RateLimit(rl, 1, m, discardLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	for _, appID := range []uuid.UUID{uuid.New(), uuid.New()} {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req = req.WithContext(gatewayhttp.WithAppID(req.Context(), appID))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
	}
}
