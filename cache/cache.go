// Package cache implements the exact-cache store (§4.2) and the semantic
// index (§4.3): a prompt-keyed response cache with an optional sibling
// embedding, and a linear best-match scan over the live cache set.
package cache

import (
	"context"
	"encoding/json"
	"math"
	"strings"
	"sync/atomic"
	"time"

	"github.com/sentineldev/sentinel-gateway/kv"
)

const (
	keyPrefix         = "sentinel:cache:"
	embeddingSuffix   = ":embedding"
)

// Entry is one live cache record as produced by a full scan.
type Entry struct {
	Prompt    string
	Response  string
	Embedding []float32 // nil if no sibling embedding was stored or it expired
}

// Store is the exact-cache store and semantic index over a single KV store.
type Store struct {
	kv        kv.Store
	ttl       time.Duration
	scanBatch int64

	hits   int64
	misses int64
}

// New builds a cache store with the given TTL and scan batch size.
func New(store kv.Store, ttl time.Duration, scanBatch int64) *Store {
	if scanBatch <= 0 {
		scanBatch = 100
	}
	return &Store{kv: store, ttl: ttl, scanBatch: scanBatch}
}

func (s *Store) key(prompt string) string { return keyPrefix + prompt }

// Get performs the exact-cache probe: identity equality on the raw prompt.
func (s *Store) Get(ctx context.Context, prompt string) (response string, hit bool, err error) {
	v, found, err := s.kv.Get(ctx, s.key(prompt))
	if err != nil {
		return "", false, err
	}
	if !found {
		atomic.AddInt64(&s.misses, 1)
		return "", false, nil
	}
	atomic.AddInt64(&s.hits, 1)
	return v, true, nil
}

// Set writes the prompt/response pair and, if present, its sibling
// embedding, applying the same TTL to both (§8 invariant 7).
func (s *Store) Set(ctx context.Context, prompt, response string, embedding []float32) error {
	key := s.key(prompt)
	if err := s.kv.SetEx(ctx, key, response, s.ttl); err != nil {
		return err
	}
	if embedding != nil {
		if err := s.kv.SetEx(ctx, key+embeddingSuffix, encodeEmbedding(embedding), s.ttl); err != nil {
			return err
		}
	}
	return nil
}

// ScanLive collects the current live cache set via a full cursor-based
// scan and attaches each entry's sibling embedding when it is still live.
// The scan pattern also matches embedding-sibling keys; they are dropped
// by suffix in this process after each batch arrives, not by the server.
func (s *Store) ScanLive(ctx context.Context) ([]Entry, error) {
	var entries []Entry
	var cursor uint64
	for {
		keys, next, err := s.kv.Scan(ctx, cursor, keyPrefix+"*", s.scanBatch)
		if err != nil {
			return nil, err
		}
		for _, k := range keys {
			if strings.HasSuffix(k, embeddingSuffix) {
				continue
			}
			prompt := strings.TrimPrefix(k, keyPrefix)
			response, found, err := s.kv.Get(ctx, k)
			if err != nil {
				return nil, err
			}
			if !found {
				continue
			}
			entry := Entry{Prompt: prompt, Response: response}
			if embJSON, found, err := s.kv.Get(ctx, k+embeddingSuffix); err == nil && found {
				if vec, decodeErr := decodeEmbedding(embJSON); decodeErr == nil {
					entry.Embedding = vec
				}
			}
			entries = append(entries, entry)
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}
	return entries, nil
}

// StoredItems counts live cache keys (excluding embedding siblings).
func (s *Store) StoredItems(ctx context.Context) (int, error) {
	count := 0
	var cursor uint64
	for {
		keys, next, err := s.kv.Scan(ctx, cursor, keyPrefix+"*", s.scanBatch)
		if err != nil {
			return 0, err
		}
		for _, k := range keys {
			if !strings.HasSuffix(k, embeddingSuffix) {
				count++
			}
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}
	return count, nil
}

// Clear deletes every cache entry (and sibling embedding), returning the
// number of keys removed.
func (s *Store) Clear(ctx context.Context) (int, error) {
	deleted := 0
	var cursor uint64
	for {
		keys, next, err := s.kv.Scan(ctx, cursor, keyPrefix+"*", s.scanBatch)
		if err != nil {
			return deleted, err
		}
		if len(keys) > 0 {
			if err := s.kv.Del(ctx, keys...); err != nil {
				return deleted, err
			}
			deleted += len(keys)
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}
	return deleted, nil
}

// Stats reports the in-process hit/miss counters plus a live scan count.
type Stats struct {
	TotalRequests  int64
	CacheHits      int64
	CacheMisses    int64
	HitRatePercent float64
	StoredItems    int
}

func (s *Store) Stats(ctx context.Context) (Stats, error) {
	hits := atomic.LoadInt64(&s.hits)
	misses := atomic.LoadInt64(&s.misses)
	total := hits + misses
	var rate float64
	if total > 0 {
		rate = math.Round(float64(hits)/float64(total)*100*100) / 100
	}
	stored, err := s.StoredItems(ctx)
	if err != nil {
		return Stats{}, err
	}
	return Stats{
		TotalRequests:  total,
		CacheHits:      hits,
		CacheMisses:    misses,
		HitRatePercent: rate,
		StoredItems:    stored,
	}, nil
}

// RecordMiss lets the orchestrator account for the semantic-scan step's
// own miss without double-counting the exact-probe miss already recorded
// by Get.
func (s *Store) RecordMiss() { atomic.AddInt64(&s.misses, 1) }

// FindBest returns the highest-cosine-similarity entry at or above
// threshold, tie-broken by scan order (first-seen wins). Entries with no
// embedding are skipped; a zero-norm embedding scores 0, so it matches
// only when threshold is 0.
func FindBest(entries []Entry, query []float32, threshold float64) (Entry, float64, bool) {
	var best Entry
	bestScore := -1.0
	found := false
	for _, e := range entries {
		if e.Embedding == nil {
			continue
		}
		score := cosineSimilarity(query, e.Embedding)
		if score >= threshold && score > bestScore {
			best = e
			bestScore = score
			found = true
		}
	}
	return best, bestScore, found
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

func encodeEmbedding(vec []float32) string {
	b, _ := json.Marshal(vec)
	return string(b)
}

func decodeEmbedding(raw string) ([]float32, error) {
	var vec []float32
	if err := json.Unmarshal([]byte(raw), &vec); err != nil {
		return nil, err
	}
	return vec, nil
}
