package embedding

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sentineldev/sentinel-gateway/errs"
	"github.com/stretchr/testify/require"
)

func TestEmbedSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(embedResponse{Embedding: []float32{0.1, 0.2, 0.3}})
	}))
	defer srv.Close()

	c := New(srv.URL, "", 3, 2*time.Second, nil)
	vec, err := c.Embed(context.Background(), "hello")
	require.NoError(t, err)
	require.Equal(t, []float32{0.1, 0.2, 0.3}, vec)
}

func TestEmbedWrongDimensionFails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(embedResponse{Embedding: []float32{0.1, 0.2}})
	}))
	defer srv.Close()

	c := New(srv.URL, "", 3, 2*time.Second, nil)
	_, err := c.Embed(context.Background(), "hello")
	require.Error(t, err)
	e, ok := errs.As(err)
	require.True(t, ok)
	require.Equal(t, errs.EmbeddingUnavailable, e.Kind)
}

func TestEmbedZeroVectorFails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(embedResponse{Embedding: []float32{0, 0, 0}})
	}))
	defer srv.Close()

	c := New(srv.URL, "", 3, 2*time.Second, nil)
	_, err := c.Embed(context.Background(), "hello")
	require.Error(t, err)
}

func TestValidateRejectsInfiniteComponent(t *testing.T) {
	vec := []float32{0.1, float32(math.Inf(1)), 0.3}
	err := validate(vec, 3)
	require.Error(t, err)
	e, ok := errs.As(err)
	require.True(t, ok)
	require.Equal(t, errs.EmbeddingUnavailable, e.Kind)
}

func TestValidateRejectsNaNComponent(t *testing.T) {
	vec := []float32{0.1, float32(math.NaN()), 0.3}
	err := validate(vec, 3)
	require.Error(t, err)
	e, ok := errs.As(err)
	require.True(t, ok)
	require.Equal(t, errs.EmbeddingUnavailable, e.Kind)
}

func TestEmbedUpstreamErrorMapsToTypedError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := New(srv.URL, "", 3, 2*time.Second, nil)
	_, err := c.Embed(context.Background(), "hello")
	e, ok := errs.As(err)
	require.True(t, ok)
	require.Equal(t, errs.EmbeddingUnavailable, e.Kind)
}
