package generate

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/amanlex/internal/cache"
)

type countingGenerator struct {
	text  string
	err   error
	calls int
}

func (g *countingGenerator) Generate(_ context.Context, _ string) (string, error) {
	g.calls++
	return g.text, g.err
}

func (g *countingGenerator) Stream(_ context.Context, _ string) (*Stream, error) {
	g.calls++
	if g.err != nil {
		return FromError(g.err), nil
	}
	return FromString(g.text), nil
}

func (g *countingGenerator) ModelName() string                { return "fake" }
func (g *countingGenerator) Available(_ context.Context) bool { return true }
func (g *countingGenerator) Close() error                     { return nil }

func newCached(inner Generator) *CachedGenerator {
	return NewCachedGenerator(inner, cache.NewMemoryStore(8, time.Minute), nil)
}

func TestCachedGenerator_GenerateHitsCache(t *testing.T) {
	// Given: a cached generator
	inner := &countingGenerator{text: "Theft is punished under Article 309."}
	g := newCached(inner)
	ctx := context.Background()

	// When: the same prompt is generated twice
	first, err := g.Generate(ctx, "prompt")
	require.NoError(t, err)
	second, err := g.Generate(ctx, "prompt")
	require.NoError(t, err)

	// Then: the model is called once
	assert.Equal(t, first, second)
	assert.Equal(t, 1, inner.calls)

	// And: a different prompt misses
	_, err = g.Generate(ctx, "other prompt")
	require.NoError(t, err)
	assert.Equal(t, 2, inner.calls)
}

func TestCachedGenerator_ErrorsAreNotCached(t *testing.T) {
	inner := &countingGenerator{err: errors.New("model offline")}
	g := newCached(inner)

	_, err := g.Generate(context.Background(), "prompt")
	require.Error(t, err)
	_, err = g.Generate(context.Background(), "prompt")
	require.Error(t, err)

	assert.Equal(t, 2, inner.calls)
}

func TestCachedGenerator_StreamCachedOnlyWhenComplete(t *testing.T) {
	inner := &countingGenerator{text: "streamed answer"}
	g := newCached(inner)
	ctx := context.Background()

	// When: a stream is abandoned before completion
	s, err := g.Stream(ctx, "prompt")
	require.NoError(t, err)
	require.NoError(t, s.Close())

	// Then: the next request still reaches the model
	s, err = g.Stream(ctx, "prompt")
	require.NoError(t, err)
	text, err := Collect(s)
	require.NoError(t, err)
	assert.Equal(t, "streamed answer", text)
	assert.Equal(t, 2, inner.calls)

	// And: after a completed stream the answer replays from the cache
	s, err = g.Stream(ctx, "prompt")
	require.NoError(t, err)
	text, err = Collect(s)
	require.NoError(t, err)
	assert.Equal(t, "streamed answer", text)
	assert.Equal(t, 2, inner.calls)
}

func TestCachedGenerator_WriteSurvivesCancelledRequest(t *testing.T) {
	inner := &countingGenerator{text: "answer"}
	g := newCached(inner)
	ctx, cancel := context.WithCancel(context.Background())

	s, err := g.Stream(ctx, "prompt")
	require.NoError(t, err)
	cancel()
	_, err = Collect(s)
	require.NoError(t, err)

	_, err = g.Generate(context.Background(), "prompt")
	require.NoError(t, err)
	assert.Equal(t, 1, inner.calls)
}
