package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/lavente-care/iam-gateway/internal/gatewayhttp/middleware"
	"github.com/stretchr/testify/require"
)

func TestRecovery_ConvertsPanicToServiceUnavailable(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	})

	req := httptest.NewRequest(http.MethodGet, "/anything", nil)
	rec := httptest.NewRecorder()

	middleware.Recovery(discardLog())(next).ServeHTTP(rec, req)

	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestRecovery_PassesThroughWhenNoPanic(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })

	req := httptest.NewRequest(http.MethodGet, "/anything", nil)
	rec := httptest.NewRecorder()

	middleware.Recovery(discardLog())(next).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
}
