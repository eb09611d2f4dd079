// Package router wires the gateway's HTTP surface: middleware chain, route
// table, and admin gating (§6).
package router

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/sentineldev/sentinel-gateway/auth"
	"github.com/sentineldev/sentinel-gateway/config"
	"github.com/sentineldev/sentinel-gateway/handler"
	"github.com/sentineldev/sentinel-gateway/middleware"
	"github.com/sentineldev/sentinel-gateway/observability"
	"github.com/sentineldev/sentinel-gateway/ratelimit"
	"github.com/rs/zerolog"
)

// Deps bundles everything the router needs to mount handlers and
// middleware.
type Deps struct {
	Config      *config.Config
	Auth        *auth.Gate
	RateLimiter *ratelimit.Limiter
	Drainer     *middleware.Drainer
	Metrics     *observability.Metrics
	Query       *handler.QueryHandler
	Cache       *handler.CacheHandler
	Health      *handler.HealthHandler
	Log         zerolog.Logger
}

// New builds the chi router with the middleware chain ordering: CORS ->
// security headers -> request ID -> recoverer -> request logging ->
// max-body-size -> drain check -> auth -> rate limit -> timeout.
func New(d Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.CORSMiddleware([]string{"*"}))
	r.Use(middleware.SecurityHeadersMiddleware)
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.Recoverer)
	r.Use(requestLogger(d.Log, d.Metrics))
	r.Use(chimiddleware.RequestSize(d.Config.MaxBodyBytes))
	r.Use(d.Drainer.Middleware)

	r.Get("/health", d.Health.Health)
	r.Handle("/metrics", d.Metrics.Handler())

	r.Group(func(authed chi.Router) {
		authed.Use(d.Auth.Middleware)
		authed.Use(middleware.RateLimitMiddleware(d.RateLimiter))
		authed.Use(middleware.TimeoutMiddleware(d.Config.RequestDeadline))

		authed.Post("/v1/query", d.Query.Query)
		authed.Get("/v1/metrics", d.Health.MetricsSummary)

		authed.Group(func(admin chi.Router) {
			admin.Use(auth.RequireAdmin)
			admin.Get("/v1/cache/all", d.Cache.ListAll)
			admin.Delete("/v1/cache/clear", d.Cache.Clear)
			admin.Post("/v1/cache/test-embeddings", d.Cache.TestEmbeddings)
		})
	})

	return r
}

func requestLogger(log zerolog.Logger, metrics *observability.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			started := time.Now()
			ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			elapsed := time.Since(started)

			if metrics != nil {
				metrics.RecordRequest(r.URL.Path, ww.Status())
				metrics.ObserveDuration(r.URL.Path, elapsed.Seconds())
			}

			log.Info().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", ww.Status()).
				Dur("duration", elapsed).
				Str("request_id", chimiddleware.GetReqID(r.Context())).
				Msg("request handled")
		})
	}
}
