package search

import (
	"context"
	"sort"
	"strings"

	"github.com/Aman-CERP/amanlex/internal/normalize"
)

// LocalReranker is a deterministic in-process reranker. It scores each
// document by the share of query content tokens it contains, plus a bonus
// when those tokens appear close together in query order.
type LocalReranker struct {
	window int
}

// NewLocalReranker creates a local reranker with a proximity window of
// window characters. Zero selects 80.
func NewLocalReranker(window int) *LocalReranker {
	if window <= 0 {
		window = 80
	}
	return &LocalReranker{window: window}
}

// Verify interface implementation at compile time
var _ Reranker = (*LocalReranker)(nil)

// Rerank scores every document and sorts by score, ties by input order.
func (l *LocalReranker) Rerank(ctx context.Context, query string, documents []string, topK int) ([]RerankResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	terms := uniqueTerms(normalize.ContentTokens(normalize.Normalize(query)))
	sets := make([]VariantSet, len(terms))
	for i, t := range terms {
		sets[i] = VariantSet{Token: t, Forms: []string{t}}
	}

	results := make([]RerankResult, len(documents))
	for i, doc := range documents {
		results[i] = RerankResult{Index: i, Score: l.score(terms, sets, doc), Document: doc}
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	if topK > 0 && topK < len(results) {
		results = results[:topK]
	}
	return results, nil
}

func (l *LocalReranker) score(terms []string, sets []VariantSet, doc string) float64 {
	if len(terms) == 0 {
		return 0
	}
	text := normalize.Normalize(doc)
	present := make(map[string]bool)
	for _, t := range normalize.Tokens(text) {
		present[t] = true
	}
	hit := 0
	for _, t := range terms {
		if present[t] {
			hit++
		}
	}
	score := 0.8 * float64(hit) / float64(len(terms))
	if hit == len(terms) && len(terms) > 1 && inOrderWithin(text, sets, l.window) {
		score += 0.2
	}
	return score
}

// Available always returns true.
func (l *LocalReranker) Available(_ context.Context) bool {
	return true
}

// Close is a no-op.
func (l *LocalReranker) Close() error {
	return nil
}

func uniqueTerms(tokens []string) []string {
	seen := make(map[string]bool, len(tokens))
	out := tokens[:0:0]
	for _, t := range tokens {
		t = strings.TrimSpace(t)
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}
