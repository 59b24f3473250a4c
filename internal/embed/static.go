package embed

import (
	"context"
	"fmt"
	"hash/fnv"
	"strings"
	"sync"

	"github.com/Aman-CERP/amanlex/internal/normalize"
)

// StaticEmbedder generates embeddings using a hash-based approach.
// Works without external dependencies (no network, no model download).
// Provides deterministic, fast embeddings with reduced semantic quality.
type StaticEmbedder struct {
	dims int

	mu     sync.RWMutex
	closed bool
}

// Weights for vector generation
const (
	tokenWeight = 0.7
	ngramWeight = 0.3
	ngramSize   = 3
)

var _ Embedder = (*StaticEmbedder)(nil)

// NewStaticEmbedder creates a static embedder with StaticDimensions.
func NewStaticEmbedder() *StaticEmbedder {
	return NewStaticEmbedderWithDims(StaticDimensions)
}

// NewStaticEmbedderWithDims creates a static embedder of the given size,
// so it can stand in for a remote model of matching dimension.
func NewStaticEmbedderWithDims(dims int) *StaticEmbedder {
	if dims <= 0 {
		dims = StaticDimensions
	}
	return &StaticEmbedder{dims: dims}
}

// Embed generates embedding for a single text.
func (e *StaticEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	e.mu.RLock()
	if e.closed {
		e.mu.RUnlock()
		return nil, fmt.Errorf("embedder is closed")
	}
	e.mu.RUnlock()

	normalized := normalize.Normalize(text)
	if normalized == "" {
		return make([]float32, e.dims), nil
	}
	return normalizeVector(e.generateVector(normalized)), nil
}

// generateVector hashes content tokens and character trigrams into buckets.
// Input is already normalized, so "Sec. 5" and "section 5" share buckets.
func (e *StaticEmbedder) generateVector(normalized string) []float32 {
	vector := make([]float32, e.dims)

	for _, token := range normalize.ContentTokens(normalized) {
		vector[hashToIndex(token, e.dims)] += tokenWeight
	}

	compact := normalize.Compact(normalized)
	for _, ngram := range extractNgrams(compact, ngramSize) {
		vector[hashToIndex(ngram, e.dims)] += ngramWeight
	}
	return vector
}

// extractNgrams extracts n-byte sliding windows.
func extractNgrams(text string, n int) []string {
	if len(text) < n {
		if text == "" {
			return []string{}
		}
		return []string{text}
	}

	ngrams := make([]string, 0, len(text)-n+1)
	for i := 0; i <= len(text)-n; i++ {
		ngrams = append(ngrams, text[i:i+n])
	}
	return ngrams
}

// hashToIndex uses FNV-64 to map a string to an index.
func hashToIndex(s string, size int) int {
	h := fnv.New64()
	_, _ = h.Write([]byte(s))
	return int(h.Sum64() % uint64(size))
}

// EmbedBatch generates embeddings for multiple texts.
func (e *StaticEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	results := make([][]float32, len(texts))
	for i, text := range texts {
		emb, err := e.Embed(ctx, text)
		if err != nil {
			return nil, fmt.Errorf("failed to embed text %d: %w", i, err)
		}
		results[i] = emb
	}
	return results, nil
}

// Dimensions returns the embedding dimension.
func (e *StaticEmbedder) Dimensions() int {
	return e.dims
}

// ModelName returns the model identifier.
func (e *StaticEmbedder) ModelName() string {
	return fmt.Sprintf("static-%d", e.dims)
}

// Available checks if the embedder is ready (always true until closed).
func (e *StaticEmbedder) Available(_ context.Context) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return !e.closed
}

// Close releases resources.
func (e *StaticEmbedder) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
	return nil
}

// EntryText is the text an entry is embedded from when the corpus does not
// carry a precomputed vector.
func EntryText(title, citation, summary, body string) string {
	parts := make([]string, 0, 4)
	for _, p := range []string{title, citation, summary, body} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, "\n")
}
