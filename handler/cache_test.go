package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/sentineldev/sentinel-gateway/cache"
	"github.com/stretchr/testify/require"
)

func newTestCacheHandler(t *testing.T) (*CacheHandler, *cache.Store) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	store := redisAdapter{redis.NewClient(&redis.Options{Addr: mr.Addr()})}
	cacheStore := cache.New(store, time.Hour, 100)
	return NewCacheHandler(cacheStore, fakeEmbedder{}), cacheStore
}

func TestListAllOmitsResponseBodies(t *testing.T) {
	h, cacheStore := newTestCacheHandler(t)
	require.NoError(t, cacheStore.Set(context.Background(), "p1", "secret response", nil))

	r := httptest.NewRequest(http.MethodGet, "/v1/cache/all", nil)
	w := httptest.NewRecorder()
	h.ListAll(w, r)

	require.Equal(t, http.StatusOK, w.Code)
	require.NotContains(t, w.Body.String(), "secret response")
	var resp cacheListResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Equal(t, 1, resp.Count)
	require.Equal(t, "p1", resp.Items[0].Prompt)
}

func TestClearRemovesEntries(t *testing.T) {
	h, cacheStore := newTestCacheHandler(t)
	require.NoError(t, cacheStore.Set(context.Background(), "p1", "r1", nil))
	require.NoError(t, cacheStore.Set(context.Background(), "p2", "r2", nil))

	r := httptest.NewRequest(http.MethodDelete, "/v1/cache/clear", nil)
	w := httptest.NewRecorder()
	h.Clear(w, r)

	var resp cacheClearResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Equal(t, 2, resp.Deleted)
}

func TestTestEmbeddingsReturnsVector(t *testing.T) {
	h, _ := newTestCacheHandler(t)

	body, _ := json.Marshal(map[string]string{"prompt": "hello"})
	r := httptest.NewRequest(http.MethodPost, "/v1/cache/test-embeddings", bytes.NewReader(body))
	w := httptest.NewRecorder()
	h.TestEmbeddings(w, r)

	require.Equal(t, http.StatusOK, w.Code)
	var resp testEmbeddingResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Equal(t, 384, resp.Dimension)
}

func TestTestEmbeddingsRejectsEmptyPrompt(t *testing.T) {
	h, _ := newTestCacheHandler(t)

	body, _ := json.Marshal(map[string]string{"prompt": ""})
	r := httptest.NewRequest(http.MethodPost, "/v1/cache/test-embeddings", bytes.NewReader(body))
	w := httptest.NewRecorder()
	h.TestEmbeddings(w, r)

	require.Equal(t, http.StatusBadRequest, w.Code)
}
