package middleware_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/lavente-care/iam-gateway/internal/gatewayhttp"
	"github.com/lavente-care/iam-gateway/internal/gatewayhttp/middleware"
	"github.com/stretchr/testify/require"
)

type fakeBindingChecker struct {
	bound bool
	err   error
}

func (f fakeBindingChecker) IsBoundToApplication(ctx context.Context, userID, appID uuid.UUID) (bool, error) {
	return f.bound, f.err
}

func TestRequireUserBinding_AllowsBoundUser(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	mw := middleware.RequireUserBinding(fakeBindingChecker{bound: true}, nil, map[string]bool{}, discardLog())

	req := httptest.NewRequest(http.MethodGet, "/users/me", nil)
	req = req.WithContext(gatewayhttp.WithUserID(req.Context(), uuid.New()))
	req = req.WithContext(gatewayhttp.WithAppID(req.Context(), uuid.New()))
	rec := httptest.NewRecorder()

	mw(next).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
}

func TestRequireUserBinding_RejectsUnboundUser(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	mw := middleware.RequireUserBinding(fakeBindingChecker{bound: false}, nil, map[string]bool{}, discardLog())

	req := httptest.NewRequest(http.MethodGet, "/users/me", nil)
	req = req.WithContext(gatewayhttp.WithUserID(req.Context(), uuid.New()))
	req = req.WithContext(gatewayhttp.WithAppID(req.Context(), uuid.New()))
	rec := httptest.NewRecorder()

	mw(next).ServeHTTP(rec, req)

	require.Equal(t, http.StatusForbidden, rec.Code)
}
