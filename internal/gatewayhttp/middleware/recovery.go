// Package middleware implements the ordered admission steps of the
// gateway pipeline (§4.H), grounded on the teacher's
// internal/api/middleware package.
package middleware

import (
	"log/slog"
	"net/http"
	"runtime/debug"

	"github.com/getsentry/sentry-go"
	"github.com/lavente-care/iam-gateway/internal/errs"
	"github.com/lavente-care/iam-gateway/internal/gatewayhttp"
)

// Recovery converts a panic into service_unavailable, logs the stack
// trace, and reports to Sentry when configured — never echoing the
// stack to the client (§7).
func Recovery(log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					stack := debug.Stack()
					log.ErrorContext(r.Context(), "panic_recovered",
						"error", rec, "request_id", gatewayhttp.RequestID(r.Context()), "stack", string(stack))

					if hub := sentry.GetHubFromContext(r.Context()); hub != nil {
						hub.Recover(rec)
					}

					gatewayhttp.RespondError(w, r, log, errs.New(errs.KindServiceUnavailable, "an unexpected error occurred"))
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}
