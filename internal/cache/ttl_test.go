package cache

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
}

func TestTTL_EvictsOldestInsertionAtCapacity(t *testing.T) {
	// Given: a cache of capacity 2 holding a and b
	c := NewTTL[string, int](2, time.Hour, WithClock(newFakeClock()))
	c.Set("a", 1)
	c.Set("b", 2)

	// When: a is read and c is inserted
	_, ok := c.Get("a")
	require.True(t, ok)
	c.Set("c", 3)

	// Then: a is evicted despite the recent hit (insertion order, not LRU)
	_, ok = c.Get("a")
	assert.False(t, ok)
	v, ok := c.Get("b")
	assert.True(t, ok)
	assert.Equal(t, 2, v)
	assert.Equal(t, 2, c.Len())
}

func TestTTL_OverwriteCountsAsFreshInsertion(t *testing.T) {
	c := NewTTL[string, int](2, time.Hour, WithClock(newFakeClock()))
	c.Set("a", 1)
	c.Set("b", 2)
	c.Set("a", 10)
	c.Set("c", 3)

	_, ok := c.Get("b")
	assert.False(t, ok, "b became the oldest insertion")
	v, ok := c.Get("a")
	assert.True(t, ok)
	assert.Equal(t, 10, v)
}

func TestTTL_HonoursExpiry(t *testing.T) {
	// Given: an entry with a one minute TTL
	clock := newFakeClock()
	c := NewTTL[string, string](10, time.Minute, WithClock(clock))
	c.Set("k", "v")

	// When: time moves to just before expiry
	clock.Advance(59 * time.Second)

	// Then: the entry is still served
	v, ok := c.Get("k")
	require.True(t, ok)
	assert.Equal(t, "v", v)

	// When: time reaches the expiry instant
	clock.Advance(time.Second)

	// Then: the entry is gone and reclaimed
	_, ok = c.Get("k")
	assert.False(t, ok)
	assert.Equal(t, 0, c.Len())
}

func TestTTL_EvictAndPurge(t *testing.T) {
	clock := newFakeClock()
	c := NewTTL[int, int](10, time.Minute, WithClock(clock))
	c.Set(1, 1)
	c.Set(2, 2)

	assert.True(t, c.Evict(1))
	assert.False(t, c.Evict(1))

	clock.Advance(30 * time.Second)
	c.Set(3, 3)
	clock.Advance(45 * time.Second)

	assert.Equal(t, 1, c.Purge(), "only key 2 has expired")
	assert.Equal(t, 1, c.Len())

	c.Clear()
	assert.Equal(t, 0, c.Len())
}

func TestTTL_DefaultsForNonPositiveSizing(t *testing.T) {
	c := NewTTL[string, int](0, 0)
	assert.Equal(t, DefaultCapacity, c.capacity)
	assert.Equal(t, DefaultTTL, c.ttl)
}

func TestTTL_ConcurrentAccess(t *testing.T) {
	c := NewTTL[int, int](50, time.Hour)

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				c.Set(g*1000+i, i)
				c.Get(i)
			}
		}(g)
	}
	wg.Wait()

	assert.LessOrEqual(t, c.Len(), 50)
}

func TestKey_IsStableAndModelScoped(t *testing.T) {
	a := Key("nomic-embed-text", "theft")
	assert.Len(t, a, 64)
	assert.Equal(t, a, Key("nomic-embed-text", "theft"))
	assert.NotEqual(t, a, Key("gemma", "theft"))
	// The separator keeps "ab"+"c" distinct from "a"+"bc".
	assert.NotEqual(t, Key("ab", "c"), Key("a", "bc"))
}

func TestMemoryStore_GetSet(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(4, time.Minute)

	_, ok, err := s.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Set(ctx, "k", "answer"))
	v, ok, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "answer", v)
	assert.Equal(t, 1, s.Len())
}

func TestRedisStore_RoundTrip(t *testing.T) {
	addr := os.Getenv("AMANLEX_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("AMANLEX_TEST_REDIS_ADDR not set")
	}

	ctx := context.Background()
	s, err := NewRedisStore(ctx, addr, time.Minute)
	require.NoError(t, err)
	defer func() { _ = s.Close() }()

	key := Key("test", t.Name())
	_, ok, err := s.Get(ctx, key)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Set(ctx, key, "value"))
	v, ok, err := s.Get(ctx, key)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "value", v)
}
