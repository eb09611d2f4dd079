// Package embedding implements the embedding client (§4.4): a single
// capability, embed(text) -> vector, over a remote HTTP endpoint.
package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"time"

	"github.com/sentineldev/sentinel-gateway/errs"
)

// Client is the embedding capability the orchestrator depends on.
type Client interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// HTTPClient calls a remote embedding endpoint. A single attempt with a
// total timeout — retries, if any, are the orchestrator's choice, not
// this layer's.
type HTTPClient struct {
	baseURL   string
	apiKey    string
	dimension int
	timeout   time.Duration
	http      *http.Client
}

// New builds an embedding client pointed at the given endpoint.
func New(baseURL, apiKey string, dimension int, timeout time.Duration, transport http.RoundTripper) *HTTPClient {
	return &HTTPClient{
		baseURL:   baseURL,
		apiKey:    apiKey,
		dimension: dimension,
		timeout:   timeout,
		http:      &http.Client{Timeout: timeout, Transport: transport},
	}
}

type embedRequest struct {
	Input string `json:"input"`
}

type embedResponse struct {
	Embedding []float32 `json:"embedding"`
}

// Embed calls the remote embedder and validates the returned vector's
// shape: exactly Dimension components, finite, non-zero magnitude. A
// zero vector is treated as "embedding unavailable" since cosine is
// undefined for it.
func (c *HTTPClient) Embed(ctx context.Context, text string) ([]float32, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	body, err := json.Marshal(embedRequest{Input: text})
	if err != nil {
		return nil, errs.Wrap(errs.EmbeddingUnavailable, "marshal request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/embed", bytes.NewReader(body))
	if err != nil {
		return nil, errs.Wrap(errs.EmbeddingUnavailable, "build request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, errs.Wrap(errs.EmbeddingUnavailable, "request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return nil, errs.New(errs.EmbeddingUnavailable, fmt.Sprintf("embedder returned %d: %s", resp.StatusCode, string(b)))
	}

	var out embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, errs.Wrap(errs.EmbeddingUnavailable, "decode response", err)
	}

	if err := validate(out.Embedding, c.dimension); err != nil {
		return nil, err
	}
	return out.Embedding, nil
}

func validate(vec []float32, dimension int) error {
	if len(vec) != dimension {
		return errs.New(errs.EmbeddingUnavailable, fmt.Sprintf("expected %d-dimensional vector, got %d", dimension, len(vec)))
	}
	var normSq float64
	for _, f := range vec {
		if f != f || math.IsInf(float64(f), 0) { // NaN or +/-Inf
			return errs.New(errs.EmbeddingUnavailable, "embedding contains non-finite component")
		}
		normSq += float64(f) * float64(f)
	}
	if normSq == 0 {
		return errs.New(errs.EmbeddingUnavailable, "embedding has zero magnitude")
	}
	return nil
}
