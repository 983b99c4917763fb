package rag

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/soyeahso/rangecoach/internal/logging"
)

// KV is the narrow cache capability the embedder needs. Any conforming
// store can back it: the sqlite cache in production, an in-memory map in
// tests.
type KV interface {
	GetJSON(key string, out any) (bool, error)
	SetJSON(key string, value any, ttl time.Duration) error
	Prune(maxEntries int) error
}

// CachedEmbedder memoizes per-text embeddings in a KV store. All cache I/O
// is best-effort: a cache failure degrades to the base embedder and must
// never fail a request.
type CachedEmbedder struct {
	base       Embedder
	cache      KV
	namespace  string
	ttl        time.Duration
	maxEntries int
	log        *logging.Logger
}

// NewCachedEmbedder wraps base with a cache. ttl of zero means entries
// never expire; maxEntries <= 0 disables pruning.
func NewCachedEmbedder(base Embedder, cache KV, namespace string, ttl time.Duration, maxEntries int, log *logging.Logger) *CachedEmbedder {
	return &CachedEmbedder{
		base:       base,
		cache:      cache,
		namespace:  namespace,
		ttl:        ttl,
		maxEntries: maxEntries,
		log:        log.Sub("embed-cache"),
	}
}

// Embed serves what it can from cache and batches the rest through the
// base embedder.
func (c *CachedEmbedder) Embed(ctx context.Context, texts []string) ([][]float64, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	results := make([][]float64, len(texts))
	var missingTexts []string
	var missingIdx []int

	for i, text := range texts {
		var cached []float64
		ok, err := c.cache.GetJSON(c.keyFor(text), &cached)
		if err != nil {
			c.log.Debug().Err(err).Msg("embedding cache read failed")
		}
		if ok && err == nil && len(cached) > 0 {
			results[i] = cached
			continue
		}
		missingTexts = append(missingTexts, text)
		missingIdx = append(missingIdx, i)
	}

	if len(missingTexts) > 0 {
		vectors, err := c.base.Embed(ctx, missingTexts)
		if err != nil {
			return nil, err
		}
		if len(vectors) != len(missingTexts) {
			return nil, fmt.Errorf("embedding count mismatch: %d texts, %d vectors", len(missingTexts), len(vectors))
		}
		for j, idx := range missingIdx {
			results[idx] = vectors[j]
			if err := c.cache.SetJSON(c.keyFor(missingTexts[j]), vectors[j], c.ttl); err != nil {
				c.log.Debug().Err(err).Msg("embedding cache write failed")
			}
		}
		if c.maxEntries > 0 {
			if err := c.cache.Prune(c.maxEntries); err != nil {
				c.log.Debug().Err(err).Msg("embedding cache prune failed")
			}
		}
	}
	return results, nil
}

func (c *CachedEmbedder) keyFor(text string) string {
	normalized := strings.Join(strings.Fields(text), " ")
	sum := sha256.Sum256([]byte(c.namespace + ":" + normalized))
	return "emb:" + hex.EncodeToString(sum[:])
}
