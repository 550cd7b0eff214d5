package middleware

import (
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/lavente-care/iam-gateway/internal/errs"
	"github.com/lavente-care/iam-gateway/internal/gatewayhttp"
	"github.com/lavente-care/iam-gateway/internal/metrics"
	"golang.org/x/time/rate"
)

// AppRateLimiter is a per-application token bucket, generalized from
// the teacher's per-IP IPRateLimiter (§4.H step 4). Each application
// gets its own *rate.Limiter sized to its configured requests/minute.
type AppRateLimiter struct {
	mu       sync.Mutex
	limiters map[uuid.UUID]*rate.Limiter
}

func NewAppRateLimiter() *AppRateLimiter {
	rl := &AppRateLimiter{limiters: make(map[uuid.UUID]*rate.Limiter)}
	go rl.cleanupLoop()
	return rl
}

func (rl *AppRateLimiter) get(appID uuid.UUID, perMinute int) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	if l, ok := rl.limiters[appID]; ok {
		return l
	}
	l := rate.NewLimiter(rate.Limit(float64(perMinute)/60.0), perMinute)
	rl.limiters[appID] = l
	return l
}

// cleanupLoop drops idle limiters so a churn of one-off applications
// never grows this map unbounded, mirroring the teacher's 10-minute
// sweep.
func (rl *AppRateLimiter) cleanupLoop() {
	ticker := time.NewTicker(10 * time.Minute)
	defer ticker.Stop()
	for range ticker.C {
		rl.mu.Lock()
		for id, l := range rl.limiters {
			if l.TokensAt(time.Now()) == float64(l.Burst()) {
				delete(rl.limiters, id)
			}
		}
		rl.mu.Unlock()
	}
}

// RateLimit implements §4.H step 4: exceeded buckets return 429 with
// Retry-After; every response carries X-RateLimit-* headers.
func RateLimit(rl *AppRateLimiter, defaultPerMinute int, m *metrics.Metrics, log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			app := gatewayhttp.Application(r.Context())
			limit := defaultPerMinute
			if app != nil && app.RateLimit > 0 {
				limit = app.RateLimit
			}
			appID := gatewayhttp.AppID(r.Context())

			limiter := rl.get(appID, limit)
			w.Header().Set("X-RateLimit-Limit", fmt.Sprintf("%d", limit))
			w.Header().Set("X-RateLimit-Reset", fmt.Sprintf("%d", time.Now().Add(time.Minute).Unix()))
			reservation := limiter.Reserve()
			if !reservation.OK() {
				w.Header().Set("X-RateLimit-Remaining", "0")
				gatewayhttp.RespondError(w, r, log, errs.New(errs.KindRateLimitExceeded, "rate limit exceeded"))
				return
			}
			delay := reservation.Delay()
			if delay > 0 {
				reservation.Cancel()
				w.Header().Set("X-RateLimit-Remaining", "0")
				if m != nil {
					m.RateLimitRejections.WithLabelValues(appID.String()).Inc()
				}
				w.Header().Set("Retry-After", fmt.Sprintf("%.0f", delay.Seconds()))
				gatewayhttp.RespondError(w, r, log, errs.New(errs.KindRateLimitExceeded, "rate limit exceeded"))
				return
			}

			remaining := int(limiter.TokensAt(time.Now()))
			w.Header().Set("X-RateLimit-Remaining", fmt.Sprintf("%d", remaining))

			next.ServeHTTP(w, r)
		})
	}
}
