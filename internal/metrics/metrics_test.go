package metrics_test

import (
	"net/http/httptest"
	"testing"

	"github.com/lavente-care/iam-gateway/internal/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandler_ServesTheRegistryItWasBuiltFrom(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	m.RequestsTotal.WithLabelValues("/health", "200").Inc()

	req := httptest.NewRequest("GET", "/metrics", nil)
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, req)

	require.Equal(t, 200, rec.Code)
	assert.Contains(t, rec.Body.String(), "gateway_requests_total")
}

func TestAll_ReturnsEveryCollector(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	assert.Len(t, m.All(), 4)
}
