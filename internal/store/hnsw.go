package store

import (
	"context"
	"fmt"
	"math"
	"sync"

	"github.com/coder/hnsw"
)

// HNSWConfig configures the in-process vector index.
type HNSWConfig struct {
	// Dimensions is the vector length. Zero adopts the length of the first
	// vector added.
	Dimensions int
	M          int
	EfSearch   int
}

// DefaultHNSWConfig returns the coder/hnsw recommended parameters.
func DefaultHNSWConfig(dims int) HNSWConfig {
	return HNSWConfig{Dimensions: dims, M: 16, EfSearch: 20}
}

// HNSWIndex implements VectorIndex with the pure Go coder/hnsw graph.
// Vectors are L2-normalized on insert so cosine distance is 1 - dot.
type HNSWIndex struct {
	mu     sync.RWMutex
	graph  *hnsw.Graph[uint64]
	config HNSWConfig

	// coder/hnsw keys are integers; entry ids are strings.
	idMap   map[string]uint64
	keyMap  map[uint64]string
	nextKey uint64

	closed bool
}

var _ VectorIndex = (*HNSWIndex)(nil)

// NewHNSWIndex creates an empty index.
func NewHNSWIndex(cfg HNSWConfig) *HNSWIndex {
	if cfg.M == 0 {
		cfg.M = 16
	}
	if cfg.EfSearch == 0 {
		cfg.EfSearch = 20
	}

	graph := hnsw.NewGraph[uint64]()
	graph.Distance = hnsw.CosineDistance
	graph.M = cfg.M
	graph.EfSearch = cfg.EfSearch
	graph.Ml = 0.25

	return &HNSWIndex{
		graph:  graph,
		config: cfg,
		idMap:  make(map[string]uint64),
		keyMap: make(map[uint64]string),
	}
}

// Add implements VectorIndex. Zero vectors are skipped. Replacing an id orphans its old graph node
// instead of deleting it; coder/hnsw misbehaves when the last node of a
// layer is removed.
func (s *HNSWIndex) Add(_ context.Context, ids []string, vectors [][]float32) error {
	if len(ids) == 0 {
		return nil
	}
	if len(ids) != len(vectors) {
		return fmt.Errorf("ids and vectors length mismatch: %d vs %d", len(ids), len(vectors))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}

	if s.config.Dimensions == 0 {
		s.config.Dimensions = len(vectors[0])
	}
	for _, v := range vectors {
		if len(v) != s.config.Dimensions {
			return ErrDimensionMismatch{Expected: s.config.Dimensions, Got: len(v)}
		}
	}

	for i, id := range ids {
		if old, ok := s.idMap[id]; ok {
			delete(s.keyMap, old)
			delete(s.idMap, id)
		}

		vec := make([]float32, len(vectors[i]))
		copy(vec, vectors[i])
		if !normalizeVectorInPlace(vec) {
			continue
		}

		key := s.nextKey
		s.nextKey++

		s.graph.Add(hnsw.MakeNode(key, vec))
		s.idMap[id] = key
		s.keyMap[key] = id
	}
	return nil
}

// Search implements VectorIndex.
func (s *HNSWIndex) Search(_ context.Context, query []float32, k int) ([]VectorHit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrClosed
	}
	if k <= 0 || s.graph.Len() == 0 {
		return []VectorHit{}, nil
	}
	if len(query) != s.config.Dimensions {
		return nil, ErrDimensionMismatch{Expected: s.config.Dimensions, Got: len(query)}
	}

	q := make([]float32, len(query))
	copy(q, query)
	if !normalizeVectorInPlace(q) {
		// A zero vector has no direction and so no neighbours.
		return []VectorHit{}, nil
	}

	// Ask for enough extra neighbours to cover orphaned nodes.
	n := k + s.graph.Len() - len(s.idMap)
	if n > s.graph.Len() {
		n = s.graph.Len()
	}
	nodes := s.graph.Search(q, n)

	hits := make([]VectorHit, 0, k)
	for _, node := range nodes {
		id, ok := s.keyMap[node.Key]
		if !ok {
			continue
		}
		dist := float64(s.graph.Distance(q, node.Value))
		hits = append(hits, VectorHit{ID: id, Similarity: cosineToSimilarity(dist)})
		if len(hits) == k {
			break
		}
	}
	return hits, nil
}

// Contains reports whether id has a live vector.
func (s *HNSWIndex) Contains(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.idMap[id]
	return ok && !s.closed
}

// Count implements VectorIndex.
func (s *HNSWIndex) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return 0
	}
	return len(s.idMap)
}

// Dimensions returns the vector length, or 0 before the first Add.
func (s *HNSWIndex) Dimensions() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.config.Dimensions
}

// Close implements VectorIndex.
func (s *HNSWIndex) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.graph = nil
	s.idMap = nil
	s.keyMap = nil
	return nil
}

// normalizeVectorInPlace scales v to unit length. It reports false for a
// zero vector, which is left unchanged.
func normalizeVectorInPlace(v []float32) bool {
	var sumSquares float64
	for _, val := range v {
		sumSquares += float64(val) * float64(val)
	}
	if sumSquares == 0 {
		return false
	}
	inv := float32(1.0 / math.Sqrt(sumSquares))
	for i := range v {
		v[i] *= inv
	}
	return true
}
