package embed

import (
	"context"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/Aman-CERP/amanlex/internal/cache"
)

// CachedEmbedder memoizes query vectors by model and text. Concurrent
// misses for the same text share one upstream call.
type CachedEmbedder struct {
	Embedder
	cache  *cache.TTL[string, []float32]
	flight singleflight.Group
}

var _ Embedder = (*CachedEmbedder)(nil)

func NewCachedEmbedder(inner Embedder, capacity int, ttl time.Duration, opts ...cache.Option) *CachedEmbedder {
	return &CachedEmbedder{
		Embedder: inner,
		cache:    cache.NewTTL[string, []float32](capacity, ttl, opts...),
	}
}

func NewCachedEmbedderWithDefaults(inner Embedder) *CachedEmbedder {
	return NewCachedEmbedder(inner, cache.DefaultCapacity, cache.DefaultTTL)
}

func (c *CachedEmbedder) key(text string) string {
	return cache.Key(c.Embedder.ModelName(), text)
}

// Embed serves from the cache or joins an in-flight call for the same key.
// The shared call outlives a canceled caller so other waiters still get
// the vector; the canceled caller returns its own context error.
func (c *CachedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	key := c.key(text)
	if vec, ok := c.cache.Get(key); ok {
		return vec, nil
	}

	ch := c.flight.DoChan(key, func() (any, error) {
		if vec, ok := c.cache.Get(key); ok {
			return vec, nil
		}
		vec, err := c.Embedder.Embed(context.WithoutCancel(ctx), text)
		if err != nil {
			return nil, err
		}
		c.cache.Set(key, vec)
		return vec, nil
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-ch:
		if r.Err != nil {
			return nil, r.Err
		}
		return r.Val.([]float32), nil
	}
}

// EmbedBatch sends only uncached, distinct texts upstream.
func (c *CachedEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	pending := make(map[string][]int)
	var misses []string
	for i, text := range texts {
		if vec, ok := c.cache.Get(c.key(text)); ok {
			out[i] = vec
			continue
		}
		if _, seen := pending[text]; !seen {
			misses = append(misses, text)
		}
		pending[text] = append(pending[text], i)
	}
	if len(misses) == 0 {
		return out, nil
	}

	fresh, err := c.Embedder.EmbedBatch(ctx, misses)
	if err != nil {
		return nil, err
	}
	for j, text := range misses {
		c.cache.Set(c.key(text), fresh[j])
		for _, i := range pending[text] {
			out[i] = fresh[j]
		}
	}
	return out, nil
}

// Inner returns the wrapped embedder.
func (c *CachedEmbedder) Inner() Embedder { return c.Embedder }

// Len returns the number of cached vectors.
func (c *CachedEmbedder) Len() int { return c.cache.Len() }

// Close drops cached vectors and closes the wrapped embedder.
func (c *CachedEmbedder) Close() error {
	c.cache.Clear()
	return c.Embedder.Close()
}
