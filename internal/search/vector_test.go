package search

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/amanlex/internal/store"
)

// mapEmbedder embeds known texts to one-hot vectors and fails otherwise.
type mapEmbedder struct {
	mu      sync.Mutex
	vectors map[string][]float32
	calls   map[string]int
}

func newMapEmbedder(vectors map[string][]float32) *mapEmbedder {
	return &mapEmbedder{vectors: vectors, calls: make(map[string]int)}
}

func (m *mapEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls[text]++
	v, ok := m.vectors[text]
	if !ok {
		return nil, errors.New("embedding service unavailable")
	}
	return v, nil
}

func (m *mapEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := m.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (m *mapEmbedder) Dimensions() int { return 2 }
func (m *mapEmbedder) ModelName() string { return "map" }
func (m *mapEmbedder) Available(_ context.Context) bool { return true }
func (m *mapEmbedder) Close() error { return nil }

// axisIndex returns canned hits keyed by which axis the query points along.
type axisIndex struct {
	hits [2][]store.VectorHit
}

func (a *axisIndex) Add(context.Context, []string, [][]float32) error { return nil }

func (a *axisIndex) Search(_ context.Context, q []float32, _ int) ([]store.VectorHit, error) {
	if q[0] > q[1] {
		return a.hits[0], nil
	}
	return a.hits[1], nil
}

func (a *axisIndex) Count() int { return 0 }
func (a *axisIndex) Close() error { return nil }

func vectorFixture() *axisIndex {
	return &axisIndex{hits: [2][]store.VectorHit{
		{{ID: "RPC-308", Similarity: 0.8}, {ID: "RPC-309", Similarity: 0.4}},
		{{ID: "RPC-309", Similarity: 0.6}, {ID: "RPC-293", Similarity: 0.6}},
	}}
}

func TestVectorFusor_MergesByMaxSimilarity(t *testing.T) {
	// Given: normalized and raw forms that hit different neighbours
	emb := newMapEmbedder(map[string][]float32{
		"theft":  {1, 0},
		"Theft?": {0, 1},
	})
	f := NewVectorFusor(emb, vectorFixture(), nil)

	// When: retrieved
	res := f.Retrieve(context.Background(), "theft", "Theft?", 10, nil)

	// Then: ids are merged keeping the higher similarity, sorted by it then id
	assert.False(t, res.Degraded)
	assert.Equal(t, 0.8, res.BestSim)
	assert.Equal(t, []store.VectorHit{
		{ID: "RPC-308", Similarity: 0.8},
		{ID: "RPC-293", Similarity: 0.6},
		{ID: "RPC-309", Similarity: 0.6},
	}, res.Hits)
}

func TestVectorFusor_OneFailureIsNotDegraded(t *testing.T) {
	emb := newMapEmbedder(map[string][]float32{"theft": {1, 0}})
	f := NewVectorFusor(emb, vectorFixture(), nil)

	res := f.Retrieve(context.Background(), "theft", "unknown raw form", 10, nil)

	assert.False(t, res.Degraded)
	require.Len(t, res.Hits, 2)
	assert.Equal(t, "RPC-308", res.Hits[0].ID)
}

func TestVectorFusor_AllFailuresDegrade(t *testing.T) {
	f := NewVectorFusor(newMapEmbedder(nil), vectorFixture(), nil)

	res := f.Retrieve(context.Background(), "theft", "Theft", 10, nil)

	assert.True(t, res.Degraded)
	assert.Empty(t, res.Hits)
}

func TestVectorFusor_KeepFilter(t *testing.T) {
	emb := newMapEmbedder(map[string][]float32{"theft": {1, 0}})
	f := NewVectorFusor(emb, vectorFixture(), nil)

	res := f.Retrieve(context.Background(), "theft", "", 10, func(id string) bool { return id != "RPC-308" })

	require.Len(t, res.Hits, 1)
	assert.Equal(t, "RPC-309", res.Hits[0].ID)
	assert.Equal(t, 0.4, res.BestSim)
}

func TestVectorFusor_SameRawSkipsSecondLookup(t *testing.T) {
	emb := newMapEmbedder(map[string][]float32{"theft": {1, 0}})
	f := NewVectorFusor(emb, vectorFixture(), nil)

	f.Retrieve(context.Background(), "theft", "theft", 10, nil)

	assert.Equal(t, 1, emb.calls["theft"])
}

func TestVectorFusor_Disabled(t *testing.T) {
	f := NewVectorFusor(nil, nil, nil)

	assert.False(t, f.Enabled())
	assert.Equal(t, VectorResult{}, f.Retrieve(context.Background(), "theft", "theft", 10, nil))
}

func TestVectorFusor_BreakerStopsCallingFailingEmbedder(t *testing.T) {
	// Given: an embedder that always fails
	emb := newMapEmbedder(nil)
	f := NewVectorFusor(emb, vectorFixture(), nil)

	// When: more searches arrive than the breaker tolerates
	for range DefaultEmbedMaxFailures + 3 {
		res := f.Retrieve(context.Background(), "theft", "theft", 10, nil)
		assert.True(t, res.Degraded)
	}

	// Then: calls stop once the breaker opens
	assert.Equal(t, DefaultEmbedMaxFailures, emb.calls["theft"])
}
