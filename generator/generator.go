// Package generator implements the upstream text-generation client (§4.5):
// a capability-set interface with bounded retry, independent of any one
// upstream's wire format.
package generator

import (
	"context"
	"math/rand"
	"time"

	"github.com/sentineldev/sentinel-gateway/errs"
)

// Result is what a successful generator call reports back to the
// orchestrator.
type Result struct {
	Response     string
	InputTokens  int
	OutputTokens int
	CostUSD      float64
	LatencyMs    float64
	Provider     string
	Model        string
}

// Generator is the capability a connector exposes: call the upstream with
// the given parameters and return usage plus text.
type Generator interface {
	Call(ctx context.Context, prompt, model string, temperature float64, maxTokens int) (Result, error)
}

// Registry resolves a provider label (the request's "provider" field) to a
// concrete connector.
type Registry struct {
	connectors map[string]Generator
	defaultKey string
}

// NewRegistry builds a registry with the given default provider label.
func NewRegistry(defaultProvider string) *Registry {
	return &Registry{connectors: make(map[string]Generator), defaultKey: defaultProvider}
}

// Register adds a connector under a provider label.
func (r *Registry) Register(name string, g Generator) {
	r.connectors[name] = g
}

// Resolve returns the connector for a provider label and the resolved
// label itself, falling back to the configured default when the input is
// empty.
func (r *Registry) Resolve(provider string) (Generator, string, bool) {
	if provider == "" {
		provider = r.defaultKey
	}
	g, ok := r.connectors[provider]
	return g, provider, ok
}

// RetryConfig bounds the retry ladder a Call wrapper applies around a
// connector, per §4.5: up to 3 attempts, initial delay 1s, doubling.
type RetryConfig struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	AttemptTimeout time.Duration
}

// DefaultRetryConfig matches §4.5's stated defaults.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{MaxAttempts: 3, InitialBackoff: time.Second, AttemptTimeout: 30 * time.Second}
}

// CallWithRetry wraps a connector call with the bounded exponential-backoff
// retry ladder. Retryable failures (marked via errs.Error.Retryable) retry;
// anything else — auth failure, unambiguous 4xx, malformed response —
// returns immediately. Every terminal failure is surfaced as a single
// GeneratorUnavailable error carrying the original classification.
func CallWithRetry(ctx context.Context, g Generator, cfg RetryConfig, prompt, model string, temperature float64, maxTokens int) (Result, error) {
	backoff := cfg.InitialBackoff
	var lastErr error

	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		attemptCtx, cancel := context.WithTimeout(ctx, cfg.AttemptTimeout)
		result, err := g.Call(attemptCtx, prompt, model, temperature, maxTokens)
		cancel()

		if err == nil {
			return result, nil
		}
		lastErr = err

		e, ok := errs.As(err)
		retryable := ok && e.Retryable
		if !retryable || attempt == cfg.MaxAttempts {
			break
		}

		jitter := time.Duration(rand.Int63n(int64(backoff) / 4))
		select {
		case <-ctx.Done():
			return Result{}, errs.Wrap(errs.GeneratorUnavailable, "request cancelled during retry wait", ctx.Err())
		case <-time.After(backoff + jitter):
		}
		backoff *= 2
	}

	if e, ok := errs.As(lastErr); ok {
		return Result{}, e
	}
	return Result{}, errs.Wrap(errs.GeneratorUnavailable, "generator call failed", lastErr)
}
