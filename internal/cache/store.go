package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// Store is a string-valued cache that may live outside the process.
// A miss is reported as ok=false with a nil error.
type Store interface {
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Set(ctx context.Context, key, value string) error
}

// Key derives a fixed-length cache key from a model name and its input.
func Key(model, input string) string {
	sum := sha256.Sum256([]byte(model + "\x00" + input))
	return hex.EncodeToString(sum[:])
}

// MemoryStore adapts a TTL cache to Store.
type MemoryStore struct {
	ttl *TTL[string, string]
}

// NewMemoryStore creates an in-process Store.
func NewMemoryStore(capacity int, ttl time.Duration, opts ...Option) *MemoryStore {
	return &MemoryStore{ttl: NewTTL[string, string](capacity, ttl, opts...)}
}

// Get implements Store.
func (m *MemoryStore) Get(_ context.Context, key string) (string, bool, error) {
	v, ok := m.ttl.Get(key)
	return v, ok, nil
}

// Set implements Store.
func (m *MemoryStore) Set(_ context.Context, key, value string) error {
	m.ttl.Set(key, value)
	return nil
}

// Len returns the number of cached values.
func (m *MemoryStore) Len() int {
	return m.ttl.Len()
}
