package middleware

import (
	"context"
	"net/http"
	"time"
)

// TimeoutMiddleware applies the pipeline-wide request deadline (lock TTL
// plus slack, per §5) to every request's context. It does not race a
// separate response-writing goroutine against the handler the way the
// original per-provider timeout wrapper did — a single deadline on the
// context is enough here, since every blocking call downstream already
// respects ctx.
func TimeoutMiddleware(deadline time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), deadline)
			defer cancel()
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
