// Package orchestrator implements the query resolution pipeline (§4.9):
// exact-cache probe, semantic scan, single-flight lock, circuit-breaker
// guarded generation, and cache writeback.
package orchestrator

import (
	"context"
	"sync"
	"time"

	"github.com/sentineldev/sentinel-gateway/breaker"
	"github.com/sentineldev/sentinel-gateway/cache"
	"github.com/sentineldev/sentinel-gateway/embedding"
	"github.com/sentineldev/sentinel-gateway/errs"
	"github.com/sentineldev/sentinel-gateway/generator"
	"github.com/sentineldev/sentinel-gateway/lock"
	"github.com/sentineldev/sentinel-gateway/observability"
	"github.com/rs/zerolog"
)

// Request is one resolution request's ephemeral parameters — the "request
// context" of §3.
type Request struct {
	Prompt              string
	Provider            string
	Model               string
	Temperature         float64
	MaxTokens           int
	SimilarityThreshold float64
}

// Response is the shape returned to the transport layer, matching §6's
// POST /v1/query response body.
type Response struct {
	Response        string
	CacheHit        bool
	SimilarityScore *float64
	MatchedPrompt   *string
	Provider        string
	Model           string
	TokensUsed      int
	LatencyMs       float64
}

// Orchestrator ties every collaborator together behind one Resolve call.
type Orchestrator struct {
	cache       *cache.Store
	embeddings  embedding.Client
	locks       *lock.Lock
	breakersMu  sync.Mutex
	breakers    map[string]*breaker.Breaker
	breakerCfg  breaker.Config
	generators  *generator.Registry
	retryConfig generator.RetryConfig
	log         zerolog.Logger
	metrics     *observability.Metrics
}

// New builds an orchestrator from its collaborators.
func New(cacheStore *cache.Store, embeddings embedding.Client, locks *lock.Lock, generators *generator.Registry, breakerCfg breaker.Config, retryConfig generator.RetryConfig, log zerolog.Logger) *Orchestrator {
	return &Orchestrator{
		cache:       cacheStore,
		embeddings:  embeddings,
		locks:       locks,
		breakers:    make(map[string]*breaker.Breaker),
		breakerCfg:  breakerCfg,
		generators:  generators,
		retryConfig: retryConfig,
		log:         log,
	}
}

// WithMetrics attaches a metrics sink; Resolve records against it only when
// set, so orchestrator tests may omit it entirely.
func (o *Orchestrator) WithMetrics(m *observability.Metrics) *Orchestrator {
	o.metrics = m
	return o
}

// breakerFor returns the per-provider breaker, creating one lazily — each
// upstream generator fails independently of the others.
func (o *Orchestrator) breakerFor(provider string) *breaker.Breaker {
	o.breakersMu.Lock()
	defer o.breakersMu.Unlock()
	if b, ok := o.breakers[provider]; ok {
		return b
	}
	b := breaker.New(o.breakerCfg)
	o.breakers[provider] = b
	return b
}

// Resolve implements execute_query's exact step ordering: embed
// best-effort -> exact probe -> semantic scan -> lock -> generate ->
// writeback.
func (o *Orchestrator) Resolve(ctx context.Context, req Request) (Response, error) {
	started := time.Now()

	gen, provider, ok := o.generators.Resolve(req.Provider)
	if !ok {
		return Response{}, errs.New(errs.ValidationFailed, "unknown provider: "+req.Provider)
	}

	// Best-effort embedding comes first, ahead of the exact probe. A
	// failure is recovered locally: semantic matching is skipped and the
	// pipeline falls through to generation (§7 propagation policy).
	queryVec, embErr := o.embeddings.Embed(ctx, req.Prompt)

	// Step 1: exact-cache probe. A hit short-circuits the remaining steps.
	if resp, hit, err := o.cache.Get(ctx, req.Prompt); err != nil {
		return Response{}, err
	} else if hit {
		o.recordCacheEvent("exact")
		one := 1.0
		prompt := req.Prompt
		return Response{
			Response:        resp,
			CacheHit:        true,
			SimilarityScore: &one,
			MatchedPrompt:   &prompt,
			Provider:        req.Provider,
			Model:           req.Model,
			TokensUsed:      0,
			LatencyMs:       msSince(started),
		}, nil
	}

	// Step 2: semantic scan, only when the embedding succeeded.
	if embErr == nil {
		entries, scanErr := o.cache.ScanLive(ctx)
		if scanErr != nil {
			return Response{}, scanErr
		}
		threshold := req.SimilarityThreshold
		if best, score, found := cache.FindBest(entries, queryVec, threshold); found {
			o.recordCacheEvent("semantic")
			s := score
			prompt := best.Prompt
			return Response{
				Response:        best.Response,
				CacheHit:        true,
				SimilarityScore: &s,
				MatchedPrompt:   &prompt,
				Provider:        req.Provider,
				Model:           req.Model,
				TokensUsed:      0,
				LatencyMs:       msSince(started),
			}, nil
		}
	}
	o.cache.RecordMiss()
	o.recordCacheEvent("miss")

	// Step 3: single-flight lock, then generate (winner) or wait (loser).
	won, lockKey, err := o.locks.Acquire(ctx, req.Prompt, req.Model)
	if err != nil {
		return Response{}, err
	}

	if !won {
		resp, waitResult, waitErr := o.locks.PollForResult(ctx, func(pollCtx context.Context) (string, bool, error) {
			return o.cache.Get(pollCtx, req.Prompt)
		})
		if waitErr != nil {
			return Response{}, waitErr
		}
		if waitResult == lock.WaitHit {
			one := 1.0
			prompt := req.Prompt
			return Response{
				Response:        resp,
				CacheHit:        true,
				SimilarityScore: &one,
				MatchedPrompt:   &prompt,
				Provider:        req.Provider,
				Model:           req.Model,
				TokensUsed:      0,
				LatencyMs:       msSince(started),
			}, nil
		}
		// Ceiling breach: presumed winner crash/stuck. Fall back to
		// generating ourselves, without holding the original lock.
	}
	if won {
		o.recordLockAcquired()
		defer func() {
			o.recordLockReleased()
			if releaseErr := o.locks.Release(context.Background(), lockKey); releaseErr != nil {
				o.log.Warn().Err(releaseErr).Str("lock_key", lockKey).Msg("lock release failed")
			}
		}()
	}

	// Step 4: circuit-breaker guarded generation.
	b := o.breakerFor(provider)
	if allowErr := b.Allow(); allowErr != nil {
		return Response{}, allowErr
	}

	result, genErr := generator.CallWithRetry(ctx, gen, o.retryConfig, req.Prompt, req.Model, req.Temperature, req.MaxTokens)
	if genErr != nil {
		b.RecordFailure()
		return Response{}, genErr
	}
	b.RecordSuccess()
	o.recordCost(result.Provider, result.Model, result.CostUSD)

	// Discard-on-cancel: a result that arrives after the caller's context
	// is already done is not cached, per the explicit decision not to
	// reproduce the "200 OK with an error string" bug.
	if ctx.Err() != nil {
		return Response{}, errs.Wrap(errs.GeneratorUnavailable, "request cancelled before completion", ctx.Err())
	}

	// Step 5: writeback. A cache-write failure surfaces — it is not
	// recovered locally, per §7.
	if err := o.cache.Set(ctx, req.Prompt, result.Response, queryVec); err != nil {
		return Response{}, err
	}

	return Response{
		Response:   result.Response,
		CacheHit:   false,
		Provider:   result.Provider,
		Model:      result.Model,
		TokensUsed: result.InputTokens + result.OutputTokens,
		LatencyMs:  msSince(started),
	}, nil
}

func msSince(t time.Time) float64 {
	return float64(time.Since(t).Microseconds()) / 1000.0
}

func (o *Orchestrator) recordCacheEvent(eventType string) {
	if o.metrics != nil {
		o.metrics.RecordCacheEvent(eventType)
	}
}

func (o *Orchestrator) recordCost(provider, model string, costUSD float64) {
	if o.metrics != nil {
		o.metrics.RecordCost(provider, model, costUSD)
	}
}

func (o *Orchestrator) recordLockAcquired() {
	if o.metrics != nil {
		o.metrics.LockAcquired()
	}
}

func (o *Orchestrator) recordLockReleased() {
	if o.metrics != nil {
		o.metrics.LockReleased()
	}
}
