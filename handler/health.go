package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/sentineldev/sentinel-gateway/cache"
	"github.com/sentineldev/sentinel-gateway/kv"
)

// HealthHandler serves /health and /v1/metrics.
type HealthHandler struct {
	kv    kv.Store
	cache *cache.Store
}

// NewHealthHandler builds the health/metrics-summary handler.
func NewHealthHandler(store kv.Store, cacheStore *cache.Store) *HealthHandler {
	return &HealthHandler{kv: store, cache: cacheStore}
}

type healthResponse struct {
	Status string `json:"status"`
	KV     string `json:"kv"`
}

// Health reports liveness plus KV connectivity.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	kvStatus := "ok"
	status := http.StatusOK
	if err := h.kv.Ping(ctx); err != nil {
		kvStatus = "unavailable"
		status = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	writeJSON(w, healthResponse{Status: httpStatusLabel(status), KV: kvStatus})
}

func httpStatusLabel(status int) string {
	if status == http.StatusOK {
		return "ok"
	}
	return "degraded"
}

// MetricsSummary serves a JSON cache-stats summary at /v1/metrics,
// distinct from the Prometheus exposition at /metrics — a quick
// human-readable view for operators without a scrape setup.
func (h *HealthHandler) MetricsSummary(w http.ResponseWriter, r *http.Request) {
	stats, err := h.cache.Stats(r.Context())
	if err != nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		writeJSON(w, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, stats)
}
