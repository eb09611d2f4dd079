package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sentineldev/sentinel-gateway/auth"
	"github.com/sentineldev/sentinel-gateway/breaker"
	"github.com/sentineldev/sentinel-gateway/cache"
	"github.com/sentineldev/sentinel-gateway/config"
	"github.com/sentineldev/sentinel-gateway/embedding"
	"github.com/sentineldev/sentinel-gateway/generator"
	"github.com/sentineldev/sentinel-gateway/handler"
	"github.com/sentineldev/sentinel-gateway/kv"
	"github.com/sentineldev/sentinel-gateway/lock"
	"github.com/sentineldev/sentinel-gateway/logger"
	gatewaymiddleware "github.com/sentineldev/sentinel-gateway/middleware"
	"github.com/sentineldev/sentinel-gateway/observability"
	"github.com/sentineldev/sentinel-gateway/orchestrator"
	"github.com/sentineldev/sentinel-gateway/ratelimit"
	"github.com/sentineldev/sentinel-gateway/router"
)

func main() {
	cfg := config.Load()
	log := logger.New(cfg)

	log.Info().Str("env", cfg.Env).Msg("sentinel gateway starting")

	// Startup order per the concurrency & resource model: KV adapter ->
	// embedding client -> generator client -> orchestrator/service ->
	// rate limiter/auth.
	store, err := kv.New(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("kv client init failed")
	}
	if err := store.Ping(context.Background()); err != nil {
		log.Warn().Err(err).Msg("kv ping failed at startup — continuing, calls will fail open where applicable")
	} else {
		log.Info().Msg("kv store connected")
	}

	embeddingClient := embedding.New(cfg.EmbeddingURL, cfg.EmbeddingAPIKey, cfg.EmbeddingDimension, 10*time.Second, http.DefaultTransport)

	generatorRegistry := generator.BuildRegistry(cfg)

	cacheStore := cache.New(store, cfg.CacheTTL, cfg.ScanBatchSize)
	lockManager := lock.New(store, cfg.LockTTL, cfg.LockPollInitial, cfg.LockPollMax)
	metrics := observability.New()

	svc := orchestrator.New(
		cacheStore,
		embeddingClient,
		lockManager,
		generatorRegistry,
		breaker.Config{FailureThreshold: cfg.BreakerFailureThreshold, Cooldown: cfg.BreakerCooldown},
		generator.RetryConfig{MaxAttempts: cfg.GeneratorMaxAttempts, InitialBackoff: cfg.GeneratorBackoff, AttemptTimeout: cfg.GeneratorAttemptTO},
		log,
	).WithMetrics(metrics)

	rateLimiter := ratelimit.New(store, cfg.RateLimitRequests, cfg.RateLimitWindow)
	authGate := auth.New(cfg)
	drainer := gatewaymiddleware.NewDrainer()

	queryHandler := handler.NewQueryHandler(svc, handler.QueryDefaults{
		Provider:            cfg.DefaultProvider,
		Model:               "",
		Temperature:         0.7,
		MaxTokens:           500,
		SimilarityThreshold: cfg.SimilarityThreshold,
	})
	cacheHandler := handler.NewCacheHandler(cacheStore, embeddingClient)
	healthHandler := handler.NewHealthHandler(store, cacheStore)

	r := router.New(router.Deps{
		Config:      cfg,
		Auth:        authGate,
		RateLimiter: rateLimiter,
		Drainer:     drainer,
		Metrics:     metrics,
		Query:       queryHandler,
		Cache:       cacheHandler,
		Health:      healthHandler,
		Log:         log,
	})

	srv := &http.Server{
		Addr:         cfg.Addr,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: cfg.RequestDeadline + 10*time.Second,
		IdleTimeout:  120 * time.Second,
	}

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	go func() {
		log.Info().Str("addr", cfg.Addr).Msg("gateway listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	<-done
	log.Info().Msg("shutdown signal received, draining")

	drainer.BeginDrain()

	drainDone := make(chan struct{})
	go func() {
		drainer.Wait()
		close(drainDone)
	}()
	select {
	case <-drainDone:
		log.Info().Msg("in-flight requests drained")
	case <-time.After(cfg.DrainTimeout):
		log.Warn().Msg("drain timeout exceeded, proceeding with shutdown")
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.GracefulTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}

	// Teardown in reverse startup order.
	generator.Close()
	if err := store.Close(); err != nil {
		log.Error().Err(err).Msg("kv client close failed")
	}

	log.Info().Msg("sentinel gateway stopped")
}
