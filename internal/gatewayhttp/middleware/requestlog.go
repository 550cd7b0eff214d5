package middleware

import (
	"log/slog"
	"net/http"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/lavente-care/iam-gateway/internal/gatewayhttp"
)

// RequestID assigns a correlation id to the context, reusing chi's
// generator but exposing it through gatewayhttp's typed accessor so
// handlers and the error envelope share one source of truth.
func RequestID(next http.Handler) http.Handler {
	return chimw.RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := chimw.GetReqID(r.Context())
		next.ServeHTTP(w, r.WithContext(gatewayhttp.WithRequestID(r.Context(), id)))
	}))
}

// RequestLogger logs one structured line per request: method, path,
// status, duration, and the correlation id, following the teacher's
// level-by-status convention.
func RequestLogger(log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			fields := []interface{}{
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"duration_ms", time.Since(start).Milliseconds(),
				"request_id", gatewayhttp.RequestID(r.Context()),
			}
			switch {
			case ww.Status() >= 500:
				log.ErrorContext(r.Context(), "request_completed", fields...)
			case ww.Status() >= 400:
				log.WarnContext(r.Context(), "request_completed", fields...)
			default:
				log.InfoContext(r.Context(), "request_completed", fields...)
			}
		})
	}
}
