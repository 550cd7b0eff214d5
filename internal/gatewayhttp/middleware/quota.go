package middleware

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/lavente-care/iam-gateway/internal/gatewayhttp"
	"github.com/lavente-care/iam-gateway/internal/metrics"
	"github.com/lavente-care/iam-gateway/internal/quota"
)

// Quota implements §4.H step 5 (reserve) and the quota-header portion of
// step 8. An application with no bound subscription plan is let through
// unmetered — quota_not_configured is reserved for endpoints that
// explicitly require a plan, not the general gateway surface.
func Quota(acc *quota.Accounter, m *metrics.Metrics, log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			app := gatewayhttp.Application(r.Context())
			if app == nil || app.SubscriptionPlanID == nil {
				next.ServeHTTP(w, r)
				return
			}

			if err := acc.ReserveRequest(r.Context(), app.AppID, *app.SubscriptionPlanID); err != nil {
				if m != nil {
					m.QuotaExhaustions.WithLabelValues(app.AppID.String(), "request").Inc()
				}
				gatewayhttp.RespondError(w, r, log, err)
				return
			}

			usage, err := acc.Usage(r.Context(), app.AppID, *app.SubscriptionPlanID)
			if err == nil {
				writeQuotaHeaders(w, usage)
			}

			next.ServeHTTP(w, r)
		})
	}
}

func writeQuotaHeaders(w http.ResponseWriter, usage *quota.Usage) {
	w.Header().Set("X-Quota-Request-Limit", fmt.Sprintf("%d", usage.RequestLimit))
	w.Header().Set("X-Quota-Request-Remaining", fmt.Sprintf("%d", usage.RequestRemaining))
	w.Header().Set("X-Quota-Request-Reset", fmt.Sprintf("%d", usage.CycleEnd.Unix()))
	w.Header().Set("X-Quota-Token-Limit", fmt.Sprintf("%d", usage.TokenLimit))
	w.Header().Set("X-Quota-Token-Remaining", fmt.Sprintf("%d", usage.TokenRemaining))
	w.Header().Set("X-Quota-Token-Reset", fmt.Sprintf("%d", usage.CycleEnd.Unix()))

	if usage.RequestLimit >= 0 {
		if usage.RequestUsed >= usage.RequestLimit {
			w.Header().Set("X-Quota-Warning", "exhausted")
		} else if float64(usage.RequestUsed) >= 0.8*float64(usage.RequestLimit) {
			w.Header().Set("X-Quota-Warning", "approaching_limit")
		}
	}
}
