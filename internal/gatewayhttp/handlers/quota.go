package handlers

import (
	"net/http"

	"github.com/lavente-care/iam-gateway/internal/errs"
	"github.com/lavente-care/iam-gateway/internal/gatewayhttp"
)

// QuotaUsage implements `GET /quota/usage`, reporting the calling
// application's current billing-cycle consumption (§4.G usage).
func (h *Handlers) QuotaUsage(w http.ResponseWriter, r *http.Request) {
	app := gatewayhttp.Application(r.Context())
	if app == nil || app.SubscriptionPlanID == nil {
		gatewayhttp.RespondError(w, r, h.Log, errs.New(errs.KindQuotaNotConfigured, "application has no bound subscription plan"))
		return
	}
	usage, err := h.Quota.Usage(r.Context(), app.AppID, *app.SubscriptionPlanID)
	if err != nil {
		gatewayhttp.RespondError(w, r, h.Log, err)
		return
	}
	gatewayhttp.RespondJSON(w, r, http.StatusOK, map[string]interface{}{
		"request_limit":     usage.RequestLimit,
		"request_used":      usage.RequestUsed,
		"request_remaining": usage.RequestRemaining,
		"token_limit":       usage.TokenLimit,
		"token_used":        usage.TokenUsed,
		"token_remaining":   usage.TokenRemaining,
		"cycle_start":       usage.CycleStart,
		"cycle_end":         usage.CycleEnd,
	})
}
