package generate

import (
	"context"
	"log/slog"
	"time"

	"github.com/Aman-CERP/amanlex/internal/cache"
)

// cacheWriteTimeout bounds a cache write made after the request has ended.
const cacheWriteTimeout = 2 * time.Second

// CachedGenerator serves repeated prompts from the answer cache. Keys are
// derived from the model name and the full prompt, so a cached answer is a
// pure function of its key.
type CachedGenerator struct {
	inner  Generator
	store  cache.Store
	logger *slog.Logger
}

var _ Generator = (*CachedGenerator)(nil)

// NewCachedGenerator wraps inner with store.
func NewCachedGenerator(inner Generator, store cache.Store, logger *slog.Logger) *CachedGenerator {
	if logger == nil {
		logger = slog.Default()
	}
	return &CachedGenerator{inner: inner, store: store, logger: logger}
}

func (c *CachedGenerator) key(prompt string) string {
	return cache.Key(c.inner.ModelName(), prompt)
}

func (c *CachedGenerator) lookup(ctx context.Context, key string) (string, bool) {
	v, ok, err := c.store.Get(ctx, key)
	if err != nil {
		c.logger.Warn("answer cache read failed", slog.String("error", err.Error()))
		return "", false
	}
	return v, ok
}

// save writes detached from the request context, bounded by its own timeout.
func (c *CachedGenerator) save(ctx context.Context, key, value string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cacheWriteTimeout)
	defer cancel()
	if err := c.store.Set(ctx, key, value); err != nil {
		c.logger.Warn("answer cache write failed", slog.String("error", err.Error()))
	}
}

// Generate implements Generator.
func (c *CachedGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	key := c.key(prompt)
	if v, ok := c.lookup(ctx, key); ok {
		return v, nil
	}

	text, err := c.inner.Generate(ctx, prompt)
	if err != nil {
		return "", err
	}
	c.save(ctx, key, text)
	return text, nil
}

// Stream implements Generator. A hit replays the cached text as one
// fragment; a miss is cached only if the stream completes.
func (c *CachedGenerator) Stream(ctx context.Context, prompt string) (*Stream, error) {
	key := c.key(prompt)
	if v, ok := c.lookup(ctx, key); ok {
		return FromString(v), nil
	}

	s, err := c.inner.Stream(ctx, prompt)
	if err != nil {
		return nil, err
	}
	return Tee(s, func(full string) { c.save(ctx, key, full) }), nil
}

// ModelName implements Generator.
func (c *CachedGenerator) ModelName() string { return c.inner.ModelName() }

// Available implements Generator.
func (c *CachedGenerator) Available(ctx context.Context) bool { return c.inner.Available(ctx) }

// Close implements Generator.
func (c *CachedGenerator) Close() error { return c.inner.Close() }
