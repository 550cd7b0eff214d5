// Package metrics exposes the gateway's ambient operational counters,
// grounded on wisbric-nightowl's telemetry package. This is explicitly
// not the analytics-dashboard surface the spec excludes — it is
// operational visibility into the admission pipeline itself.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics bundles every collector the gateway pipeline touches.
type Metrics struct {
	RequestsTotal       *prometheus.CounterVec
	RateLimitRejections *prometheus.CounterVec
	QuotaExhaustions    *prometheus.CounterVec
	RequestDuration     *prometheus.HistogramVec

	gatherer prometheus.Gatherer
}

// New registers every collector against reg and returns the bundle. reg
// must also implement prometheus.Gatherer (as *prometheus.Registry does)
// so Handler can scrape the same registry these collectors live in,
// rather than the global default one.
func New(reg interface {
	prometheus.Registerer
	prometheus.Gatherer
}) *Metrics {
	m := &Metrics{
		gatherer: reg,
		RequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gateway_requests_total",
			Help: "Total gateway requests processed, by route and outcome.",
		}, []string{"route", "status"}),
		RateLimitRejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gateway_rate_limit_rejections_total",
			Help: "Requests rejected by the per-application rate limiter.",
		}, []string{"app_id"}),
		QuotaExhaustions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gateway_quota_exhaustions_total",
			Help: "Requests rejected for request or token quota exhaustion.",
		}, []string{"app_id", "dimension"}),
		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "gateway_request_duration_seconds",
			Help:    "Gateway request latency by route.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
	}

	reg.MustRegister(m.RequestsTotal, m.RateLimitRejections, m.QuotaExhaustions, m.RequestDuration)
	return m
}

// All returns every collector, used to wire a single /metrics handler.
func (m *Metrics) All() []prometheus.Collector {
	return []prometheus.Collector{m.RequestsTotal, m.RateLimitRejections, m.QuotaExhaustions, m.RequestDuration}
}

// Handler serves the registry these collectors were registered against,
// not the global default registry promhttp.Handler() would scrape.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
