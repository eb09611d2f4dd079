package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/sentineldev/sentinel-gateway/auth"
	"github.com/sentineldev/sentinel-gateway/errs"
	"github.com/sentineldev/sentinel-gateway/ratelimit"
)

// RateLimitMiddleware enforces the per-API-key token bucket (§4.8) and sets
// the standard X-RateLimit-* / Retry-After response headers.
func RateLimitMiddleware(limiter *ratelimit.Limiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := auth.GetAPIKey(r.Context())

			result, err := limiter.Check(r.Context(), key)
			if err != nil {
				errs.WriteHTTP(w, err)
				return
			}

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(result.Limit))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
			w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(result.ResetAt.Unix(), 10))

			if !result.Allowed {
				retryAfter := time.Until(result.ResetAt)
				if retryAfter < 0 {
					retryAfter = 0
				}
				errs.WriteHTTP(w, errs.New(errs.RateLimited, "rate limit exceeded").WithRetry(retryAfter))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
