package search

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/Aman-CERP/amanlex/internal/generate"
)

// maxLLMDocLen bounds each document in the ranking prompt.
const maxLLMDocLen = 400

// LLMReranker asks a generator to order documents by relevance.
type LLMReranker struct {
	gen generate.Generator
}

// NewLLMReranker wraps a generator.
func NewLLMReranker(gen generate.Generator) *LLMReranker {
	return &LLMReranker{gen: gen}
}

// Verify interface implementation at compile time
var _ Reranker = (*LLMReranker)(nil)

var rankNumberPattern = regexp.MustCompile(`\d+`)

// Rerank prompts the model for a ranking such as "3, 1, 2". Documents the
// model leaves out follow the ranked ones in their input order.
func (l *LLMReranker) Rerank(ctx context.Context, query string, documents []string, topK int) ([]RerankResult, error) {
	if l.gen == nil {
		return nil, fmt.Errorf("llm reranker has no generator")
	}
	if len(documents) == 0 {
		return []RerankResult{}, nil
	}

	text, err := l.gen.Generate(ctx, rankingPrompt(query, documents))
	if err != nil {
		return nil, fmt.Errorf("llm rerank: %w", err)
	}

	order := parseRanking(text, len(documents))
	results := make([]RerankResult, len(order))
	n := float64(len(order))
	for i, idx := range order {
		results[i] = RerankResult{Index: idx, Score: 1 - float64(i)/n, Document: documents[idx]}
	}
	if topK > 0 && topK < len(results) {
		results = results[:topK]
	}
	return results, nil
}

func rankingPrompt(query string, documents []string) string {
	var b strings.Builder
	b.WriteString("Rank the numbered legal provisions by how well they answer the question.\n")
	b.WriteString("Reply with the numbers only, most relevant first, separated by commas.\n\n")
	fmt.Fprintf(&b, "Question: %s\n\n", query)
	for i, d := range documents {
		d = strings.ReplaceAll(d, "\n", " ")
		if len(d) > maxLLMDocLen {
			d = d[:maxLLMDocLen]
		}
		fmt.Fprintf(&b, "[%d] %s\n", i+1, d)
	}
	return b.String()
}

// parseRanking reads 1-based document numbers in order of appearance and
// returns a full 0-based permutation of n.
func parseRanking(text string, n int) []int {
	seen := make([]bool, n)
	order := make([]int, 0, n)
	for _, m := range rankNumberPattern.FindAllString(text, -1) {
		v, err := strconv.Atoi(m)
		if err != nil || v < 1 || v > n || seen[v-1] {
			continue
		}
		seen[v-1] = true
		order = append(order, v-1)
	}
	for i := 0; i < n; i++ {
		if !seen[i] {
			order = append(order, i)
		}
	}
	return order
}

// Available reports whether the generator is ready.
func (l *LLMReranker) Available(ctx context.Context) bool {
	return l.gen != nil && l.gen.Available(ctx)
}

// Close does not close the shared generator.
func (l *LLMReranker) Close() error {
	return nil
}
