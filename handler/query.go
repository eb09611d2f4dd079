// Package handler implements the gateway's HTTP handlers: the query
// resolution endpoint and the admin cache/health/metrics diagnostics
// routes (§6).
package handler

import (
	"encoding/json"
	"net/http"

	"github.com/sentineldev/sentinel-gateway/errs"
	"github.com/sentineldev/sentinel-gateway/orchestrator"
)

// QueryHandler serves POST /v1/query.
type QueryHandler struct {
	orchestrator *orchestrator.Orchestrator
	defaults     QueryDefaults
}

// QueryDefaults fills in unset request fields per §6's stated defaults.
type QueryDefaults struct {
	Provider            string
	Model               string
	Temperature         float64
	MaxTokens           int
	SimilarityThreshold float64
}

// NewQueryHandler builds the /v1/query handler.
func NewQueryHandler(o *orchestrator.Orchestrator, defaults QueryDefaults) *QueryHandler {
	return &QueryHandler{orchestrator: o, defaults: defaults}
}

type queryRequest struct {
	Prompt              string   `json:"prompt"`
	Provider            string   `json:"provider"`
	Model               string   `json:"model"`
	Temperature         *float64 `json:"temperature"`
	MaxTokens           *int     `json:"max_tokens"`
	SimilarityThreshold *float64 `json:"similarity_threshold"`
}

type queryResponse struct {
	Response        string   `json:"response"`
	CacheHit        bool     `json:"cache_hit"`
	SimilarityScore *float64 `json:"similarity_score"`
	MatchedPrompt   *string  `json:"matched_prompt"`
	Provider        string   `json:"provider"`
	Model           string   `json:"model"`
	TokensUsed      int      `json:"tokens_used"`
	LatencyMs       float64  `json:"latency_ms"`
}

// Query handles POST /v1/query: decode, validate, default-fill, resolve,
// encode.
func (h *QueryHandler) Query(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errs.WriteHTTP(w, errs.New(errs.ValidationFailed, "malformed request body"))
		return
	}

	if len(req.Prompt) < 1 {
		errs.WriteHTTP(w, errs.New(errs.ValidationFailed, "prompt must be at least 1 character"))
		return
	}
	if req.Provider == "" {
		req.Provider = h.defaults.Provider
	}
	if req.Model == "" {
		req.Model = h.defaults.Model
	}
	temperature := h.defaults.Temperature
	if req.Temperature != nil {
		temperature = *req.Temperature
	}
	if temperature < 0 || temperature > 2 {
		errs.WriteHTTP(w, errs.New(errs.ValidationFailed, "temperature must be in [0, 2]"))
		return
	}
	maxTokens := h.defaults.MaxTokens
	if req.MaxTokens != nil {
		maxTokens = *req.MaxTokens
	}
	if maxTokens < 1 || maxTokens > 4000 {
		errs.WriteHTTP(w, errs.New(errs.ValidationFailed, "max_tokens must be in [1, 4000]"))
		return
	}
	threshold := h.defaults.SimilarityThreshold
	if req.SimilarityThreshold != nil {
		threshold = *req.SimilarityThreshold
	}
	if threshold < 0 || threshold > 1 {
		errs.WriteHTTP(w, errs.New(errs.ValidationFailed, "similarity_threshold must be in [0, 1]"))
		return
	}

	result, err := h.orchestrator.Resolve(r.Context(), orchestrator.Request{
		Prompt:              req.Prompt,
		Provider:            req.Provider,
		Model:               req.Model,
		Temperature:         temperature,
		MaxTokens:           maxTokens,
		SimilarityThreshold: threshold,
	})
	if err != nil {
		errs.WriteHTTP(w, err)
		return
	}

	resp := queryResponse{
		Response:        result.Response,
		CacheHit:        result.CacheHit,
		SimilarityScore: result.SimilarityScore,
		MatchedPrompt:   result.MatchedPrompt,
		Provider:        result.Provider,
		Model:           result.Model,
		TokensUsed:      result.TokensUsed,
		LatencyMs:       result.LatencyMs,
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}
