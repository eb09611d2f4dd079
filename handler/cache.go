package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/sentineldev/sentinel-gateway/cache"
	"github.com/sentineldev/sentinel-gateway/embedding"
	"github.com/sentineldev/sentinel-gateway/errs"
)

// CacheHandler serves the admin-only cache diagnostic routes.
type CacheHandler struct {
	cache     *cache.Store
	embedding embedding.Client
}

// NewCacheHandler builds the admin cache handler.
func NewCacheHandler(cacheStore *cache.Store, embeddingClient embedding.Client) *CacheHandler {
	return &CacheHandler{cache: cacheStore, embedding: embeddingClient}
}

type cacheEntrySummary struct {
	ObservationID string `json:"observation_id"`
	Prompt        string `json:"prompt"`
	HasEmbedding  bool   `json:"has_embedding"`
}

type cacheListResponse struct {
	Items []cacheEntrySummary `json:"items"`
	Count int                 `json:"count"`
}

// ListAll returns the live cache set's keys and sibling-embedding
// presence, deliberately omitting response bodies to avoid leaking cached
// content over an admin debug route.
func (h *CacheHandler) ListAll(w http.ResponseWriter, r *http.Request) {
	entries, err := h.cache.ScanLive(r.Context())
	if err != nil {
		errs.WriteHTTP(w, err)
		return
	}

	items := make([]cacheEntrySummary, 0, len(entries))
	for _, e := range entries {
		items = append(items, cacheEntrySummary{
			ObservationID: uuid.NewString(),
			Prompt:        e.Prompt,
			HasEmbedding:  e.Embedding != nil,
		})
	}

	writeJSON(w, cacheListResponse{Items: items, Count: len(items)})
}

type cacheClearResponse struct {
	Deleted int `json:"deleted"`
}

// Clear removes every cache entry.
func (h *CacheHandler) Clear(w http.ResponseWriter, r *http.Request) {
	deleted, err := h.cache.Clear(r.Context())
	if err != nil {
		errs.WriteHTTP(w, err)
		return
	}
	writeJSON(w, cacheClearResponse{Deleted: deleted})
}

type testEmbeddingRequest struct {
	Prompt string `json:"prompt"`
}

type testEmbeddingResponse struct {
	Embedding []float32 `json:"embedding"`
	Dimension int       `json:"dimension"`
	ElapsedMs float64   `json:"elapsed_ms"`
}

// TestEmbeddings lets an operator sanity-check embedding connectivity and
// dimensionality without touching the cache.
func (h *CacheHandler) TestEmbeddings(w http.ResponseWriter, r *http.Request) {
	var req testEmbeddingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Prompt == "" {
		errs.WriteHTTP(w, errs.New(errs.ValidationFailed, "prompt is required"))
		return
	}

	started := time.Now()
	vec, err := h.embedding.Embed(r.Context(), req.Prompt)
	if err != nil {
		errs.WriteHTTP(w, err)
		return
	}

	writeJSON(w, testEmbeddingResponse{
		Embedding: vec,
		Dimension: len(vec),
		ElapsedMs: float64(time.Since(started).Microseconds()) / 1000.0,
	})
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
