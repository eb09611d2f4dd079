package handler

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/sentineldev/sentinel-gateway/cache"
	"github.com/stretchr/testify/require"
)

func TestHealthReportsOKWhenKVReachable(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()
	store := redisAdapter{redis.NewClient(&redis.Options{Addr: mr.Addr()})}
	cacheStore := cache.New(store, time.Hour, 100)
	h := NewHealthHandler(store, cacheStore)

	r := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	h.Health(w, r)

	require.Equal(t, http.StatusOK, w.Code)
}

func TestHealthReportsDegradedWhenKVUnreachable(t *testing.T) {
	store := redisAdapter{redis.NewClient(&redis.Options{Addr: "127.0.0.1:1"})}
	cacheStore := cache.New(store, time.Hour, 100)
	h := NewHealthHandler(store, cacheStore)

	r := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	h.Health(w, r)

	require.Equal(t, http.StatusServiceUnavailable, w.Code)
}
