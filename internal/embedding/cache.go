package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// Cached wraps a Provider with an expiring LRU keyed on model+text.
// Only successful embeddings are cached.
type Cached struct {
	Provider
	lru *expirable.LRU[string, []float32]
}

// NewCached wraps p. size <= 0 selects 1000 entries, ttl <= 0 selects 10 minutes.
func NewCached(p Provider, size int, ttl time.Duration) *Cached {
	if size <= 0 {
		size = 1000
	}
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &Cached{
		Provider: p,
		lru:      expirable.NewLRU[string, []float32](size, nil, ttl),
	}
}

// CacheKey computes a SHA-256 hash of model+text for cache lookup.
func CacheKey(model, text string) string {
	h := sha256.New()
	_, _ = h.Write([]byte(model))
	_, _ = h.Write([]byte{0}) // separator
	_, _ = h.Write([]byte(text))
	return hex.EncodeToString(h.Sum(nil))
}

func (c *Cached) Embed(ctx context.Context, text string) ([]float32, error) {
	key := CacheKey(c.Model(), text)
	if v, ok := c.lru.Get(key); ok {
		embedCacheHits.Inc()
		return append([]float32(nil), v...), nil
	}
	embedCacheMisses.Inc()
	v, err := c.Provider.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	c.lru.Add(key, append([]float32(nil), v...))
	return v, nil
}

// Len returns the current number of entries.
func (c *Cached) Len() int { return c.lru.Len() }
