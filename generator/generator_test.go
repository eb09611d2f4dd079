package generator

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sentineldev/sentinel-gateway/errs"
	"github.com/stretchr/testify/require"
)

type fakeGenerator struct {
	calls   int
	results []Result
	errs    []error
}

func (f *fakeGenerator) Call(ctx context.Context, prompt, model string, temperature float64, maxTokens int) (Result, error) {
	i := f.calls
	f.calls++
	if i < len(f.errs) && f.errs[i] != nil {
		return Result{}, f.errs[i]
	}
	if i < len(f.results) {
		return f.results[i], nil
	}
	return Result{}, errors.New("fake exhausted")
}

func TestCallWithRetrySucceedsAfterRetryableFailures(t *testing.T) {
	f := &fakeGenerator{
		errs:    []error{errs.New(errs.GeneratorUnavailable, "transient").WithRetry(0), errs.New(errs.GeneratorUnavailable, "transient").WithRetry(0)},
		results: []Result{{}, {}, {Response: "ok", Provider: "groq"}},
	}
	cfg := RetryConfig{MaxAttempts: 3, InitialBackoff: time.Millisecond, AttemptTimeout: time.Second}

	res, err := CallWithRetry(context.Background(), f, cfg, "hi", "m", 0.7, 100)
	require.NoError(t, err)
	require.Equal(t, "ok", res.Response)
	require.Equal(t, 3, f.calls)
}

func TestCallWithRetryStopsOnNonRetryableFailure(t *testing.T) {
	f := &fakeGenerator{
		errs: []error{errs.New(errs.GeneratorUnavailable, "auth failure")},
	}
	cfg := RetryConfig{MaxAttempts: 3, InitialBackoff: time.Millisecond, AttemptTimeout: time.Second}

	_, err := CallWithRetry(context.Background(), f, cfg, "hi", "m", 0.7, 100)
	require.Error(t, err)
	require.Equal(t, 1, f.calls)
}

func TestCallWithRetryExhaustsAttempts(t *testing.T) {
	retryable := errs.New(errs.GeneratorUnavailable, "transient").WithRetry(0)
	f := &fakeGenerator{errs: []error{retryable, retryable, retryable}}
	cfg := RetryConfig{MaxAttempts: 3, InitialBackoff: time.Millisecond, AttemptTimeout: time.Second}

	_, err := CallWithRetry(context.Background(), f, cfg, "hi", "m", 0.7, 100)
	e, ok := errs.As(err)
	require.True(t, ok)
	require.Equal(t, errs.GeneratorUnavailable, e.Kind)
	require.Equal(t, 3, f.calls)
}

func TestOpenAICompatibleCallParsesUsageAndComputesCost(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"hello there"}}],"usage":{"prompt_tokens":10,"completion_tokens":5}}`))
	}))
	defer srv.Close()

	conn := NewOpenAICompatible("groq", srv.URL, "test-key", "llama-3.1-8b-instant", srv.Client())
	res, err := conn.Call(context.Background(), "hi", "", 0.7, 100)
	require.NoError(t, err)
	require.Equal(t, "hello there", res.Response)
	require.Equal(t, 10, res.InputTokens)
	require.Equal(t, 5, res.OutputTokens)
	require.Equal(t, "llama-3.1-8b-instant", res.Model)
	require.Greater(t, res.CostUSD, 0.0)
}

func TestOpenAICompatibleCallMapsServerErrorToRetryable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	conn := NewOpenAICompatible("groq", srv.URL, "test-key", "llama-3.1-8b-instant", srv.Client())
	_, err := conn.Call(context.Background(), "hi", "", 0.7, 100)
	e, ok := errs.As(err)
	require.True(t, ok)
	require.True(t, e.Retryable)
}

func TestOpenAICompatibleCallMapsAuthFailureToNonRetryable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	conn := NewOpenAICompatible("openai", srv.URL, "bad-key", "gpt-4o-mini", srv.Client())
	_, err := conn.Call(context.Background(), "hi", "", 0.7, 100)
	e, ok := errs.As(err)
	require.True(t, ok)
	require.False(t, e.Retryable)
}

func TestAnthropicCallParsesContentBlocks(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "test-key", r.Header.Get("x-api-key"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"content":[{"type":"text","text":"hi back"}],"usage":{"input_tokens":4,"output_tokens":2}}`))
	}))
	defer srv.Close()

	conn := NewAnthropic(srv.URL, "test-key", "claude-3-5-haiku-20241022", srv.Client())
	res, err := conn.Call(context.Background(), "hi", "", 0.7, 100)
	require.NoError(t, err)
	require.Equal(t, "hi back", res.Response)
	require.Equal(t, 4, res.InputTokens)
	require.Equal(t, 2, res.OutputTokens)
}

func TestRegistryResolveFallsBackToDefault(t *testing.T) {
	reg := NewRegistry("groq")
	reg.Register("groq", &fakeGenerator{})
	g, name, ok := reg.Resolve("")
	require.True(t, ok)
	require.NotNil(t, g)
	require.Equal(t, "groq", name)

	_, _, ok = reg.Resolve("unknown-provider")
	require.False(t, ok)
}
