package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/lavente-care/iam-gateway/internal/gatewayhttp"
	"github.com/lavente-care/iam-gateway/internal/gatewayhttp/middleware"
	"github.com/lavente-care/iam-gateway/internal/storage"
	"github.com/stretchr/testify/assert"
)

func passthrough() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestRequireScope_RejectsWhenAppLacksScope(t *testing.T) {
	handler := middleware.RequireScope("platform:admin", discardLogger())(passthrough())

	app := &storage.Application{GrantedScopes: map[string]bool{}}
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(gatewayhttp.WithApplication(req.Context(), app))
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestRequireScope_AllowsWhenAppHasScope(t *testing.T) {
	handler := middleware.RequireScope("platform:admin", discardLogger())(passthrough())

	app := &storage.Application{GrantedScopes: map[string]bool{"platform:admin": true}}
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(gatewayhttp.WithApplication(req.Context(), app))
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRequireLoginMethod_RejectsDisabledMethod(t *testing.T) {
	handler := middleware.RequireLoginMethod("oauth", discardLogger())(passthrough())

	app := &storage.Application{EnabledLoginMethods: map[string]bool{"password": true}}
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(gatewayhttp.WithApplication(req.Context(), app))
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRequireLoginMethod_NoApplicationInContextRejects(t *testing.T) {
	handler := middleware.RequireLoginMethod("password", discardLogger())(passthrough())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
