// Package store provides the candidate indexes behind the retrieval
// channels: nearest-neighbour vector indexes (HNSW in process, pgvector
// remote) and lexical candidate indexes (bleve, SQLite FTS5).
//
// Indexes only propose candidates. Final lexical scoring is done by the
// search package against the full entry, so index scores are relative
// within one result set and are not comparable across backends.
package store

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/Aman-CERP/amanlex/internal/corpus"
)

// ErrClosed is returned by operations on a closed index.
var ErrClosed = errors.New("index is closed")

// ErrDimensionMismatch indicates a vector of the wrong length.
type ErrDimensionMismatch struct {
	Expected int
	Got      int
}

func (e ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("dimension mismatch: expected %d, got %d (embedding model changed? rebuild the vector index)", e.Expected, e.Got)
}

// Document is the searchable projection of a corpus entry.
type Document struct {
	ID       string   `json:"id"`
	Title    string   `json:"title"`
	Citation string   `json:"citation"`
	Summary  string   `json:"summary"`
	Body     string   `json:"body"`
	Tags     []string `json:"tags"`
}

// DocumentFromEntry projects e onto a Document. Structured identifiers
// (section id, law family, entry id) are folded into the citation field so
// that "rpc 308" style queries reach them.
func DocumentFromEntry(e *corpus.Entry) Document {
	citation := strings.Join(nonEmpty(e.CanonicalCitation, e.SectionID, e.LawFamily, e.ID), " ")
	return Document{
		ID:       e.ID,
		Title:    e.Title,
		Citation: citation,
		Summary:  e.Summary,
		Body:     e.BodyText,
		Tags:     e.Tags,
	}
}

func nonEmpty(parts ...string) []string {
	out := parts[:0]
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// LexicalHit is one lexical index candidate.
type LexicalHit struct {
	ID    string
	Score float64
}

// LexicalIndex proposes lexical candidates for a query string.
type LexicalIndex interface {
	// Index adds or replaces documents.
	Index(ctx context.Context, docs []Document) error

	// Search returns up to limit candidates, best first. An empty query
	// returns no hits and no error.
	Search(ctx context.Context, query string, limit int) ([]LexicalHit, error)

	// Count returns the number of indexed documents.
	Count() int

	Close() error
}

// VectorHit is one nearest-neighbour result. Similarity is cosine
// similarity clamped to [0,1].
type VectorHit struct {
	ID         string
	Similarity float64
}

// VectorIndex answers nearest-neighbour queries over entry embeddings.
type VectorIndex interface {
	// Add inserts vectors; an existing id is replaced.
	Add(ctx context.Context, ids []string, vectors [][]float32) error

	// Search returns up to k nearest neighbours, most similar first.
	Search(ctx context.Context, query []float32, k int) ([]VectorHit, error)

	// Count returns the number of live vectors.
	Count() int

	Close() error
}

// cosineToSimilarity maps a cosine distance (1 - cos) to a similarity in [0,1].
func cosineToSimilarity(distance float64) float64 {
	sim := 1 - distance
	if math.IsNaN(sim) || sim < 0 {
		return 0
	}
	if sim > 1 {
		return 1
	}
	return sim
}
