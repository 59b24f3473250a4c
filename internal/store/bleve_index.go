package store

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/custom"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/registry"
	"github.com/blevesearch/bleve/v2/search/query"

	"github.com/Aman-CERP/amanlex/internal/normalize"
)

const (
	// LegalTokenizerName tokenizes normalized legal text.
	LegalTokenizerName = "legal_tokenizer"

	// LegalStopFilterName drops normalized stopwords.
	LegalStopFilterName = "legal_stop"

	// LegalAnalyzerName is the default analyzer for every text field.
	LegalAnalyzerName = "legal_analyzer"
)

// Field boosts for the bleve disjunction. They mirror the ordering of the
// lexical scorer's field weights, coarsely.
var bleveFieldBoosts = map[string]float64{
	"title":    3.0,
	"citation": 3.0,
	"tags":     2.0,
	"summary":  1.5,
	"body":     1.0,
}

func init() {
	_ = registry.RegisterTokenizer(LegalTokenizerName, legalTokenizerConstructor)
	_ = registry.RegisterTokenFilter(LegalStopFilterName, legalStopFilterConstructor)
}

// BleveIndex is an in-memory bleve index over entry fields.
type BleveIndex struct {
	mu     sync.RWMutex
	index  bleve.Index
	closed bool
}

var _ LexicalIndex = (*BleveIndex)(nil)

// NewBleveIndex creates an in-memory index. The corpus is small and is
// rebuilt from its file on start, so nothing is persisted.
func NewBleveIndex() (*BleveIndex, error) {
	m, err := createIndexMapping()
	if err != nil {
		return nil, fmt.Errorf("failed to create index mapping: %w", err)
	}
	idx, err := bleve.NewMemOnly(m)
	if err != nil {
		return nil, fmt.Errorf("failed to create index: %w", err)
	}
	return &BleveIndex{index: idx}, nil
}

func createIndexMapping() (*mapping.IndexMappingImpl, error) {
	m := bleve.NewIndexMapping()
	err := m.AddCustomAnalyzer(LegalAnalyzerName, map[string]interface{}{
		"type":          custom.Name,
		"tokenizer":     LegalTokenizerName,
		"token_filters": []string{LegalStopFilterName},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to add custom analyzer: %w", err)
	}
	m.DefaultAnalyzer = LegalAnalyzerName
	return m, nil
}

// Index implements LexicalIndex.
func (b *BleveIndex) Index(_ context.Context, docs []Document) error {
	if len(docs) == 0 {
		return nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return ErrClosed
	}

	batch := b.index.NewBatch()
	for _, doc := range docs {
		if err := batch.Index(doc.ID, doc); err != nil {
			return fmt.Errorf("failed to index document %s: %w", doc.ID, err)
		}
	}
	if err := b.index.Batch(batch); err != nil {
		return fmt.Errorf("failed to execute batch: %w", err)
	}
	return nil
}

// Search implements LexicalIndex. The query is matched against each field
// with OR semantics and per-field boosts.
func (b *BleveIndex) Search(ctx context.Context, q string, limit int) ([]LexicalHit, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return nil, ErrClosed
	}
	if strings.TrimSpace(q) == "" || limit <= 0 {
		return []LexicalHit{}, nil
	}

	fields := make([]query.Query, 0, len(bleveFieldBoosts))
	for _, name := range []string{"title", "citation", "tags", "summary", "body"} {
		mq := bleve.NewMatchQuery(q)
		mq.SetField(name)
		mq.SetBoost(bleveFieldBoosts[name])
		fields = append(fields, mq)
	}

	req := bleve.NewSearchRequest(bleve.NewDisjunctionQuery(fields...))
	req.Size = limit

	res, err := b.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}

	hits := make([]LexicalHit, 0, len(res.Hits))
	for _, h := range res.Hits {
		hits = append(hits, LexicalHit{ID: h.ID, Score: h.Score})
	}
	return hits, nil
}

// Count implements LexicalIndex.
func (b *BleveIndex) Count() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return 0
	}
	n, err := b.index.DocCount()
	if err != nil {
		return 0
	}
	return int(n)
}

// Close implements LexicalIndex.
func (b *BleveIndex) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	return b.index.Close()
}

func legalTokenizerConstructor(_ map[string]interface{}, _ *registry.Cache) (analysis.Tokenizer, error) {
	return legalTokenizer{}, nil
}

// legalTokenizer runs the query normalizer over the input, so "Sec. 5" in
// an entry and "section 5" in a query produce the same terms. Parenthetical
// forms are indexed both joined and split: "5(a)" yields "5(a)", "5" and "a".
type legalTokenizer struct{}

func (legalTokenizer) Tokenize(input []byte) analysis.TokenStream {
	text := normalize.Normalize(string(input))
	stream := make(analysis.TokenStream, 0, 16)
	pos := 1
	offset := 0
	for _, tok := range normalize.Tokens(text) {
		start := offset + strings.Index(text[offset:], tok)
		end := start + len(tok)
		offset = end

		stream = append(stream, &analysis.Token{
			Term:     []byte(tok),
			Start:    start,
			End:      end,
			Position: pos,
			Type:     analysis.AlphaNumeric,
		})
		if parts := strings.FieldsFunc(tok, isClauseSeparator); len(parts) > 1 {
			for _, p := range parts {
				stream = append(stream, &analysis.Token{
					Term:     []byte(p),
					Start:    start,
					End:      end,
					Position: pos,
					Type:     analysis.AlphaNumeric,
				})
			}
		}
		pos++
	}
	return stream
}

func isClauseSeparator(r rune) bool {
	return r == '(' || r == ')' || r == '-'
}

func legalStopFilterConstructor(_ map[string]interface{}, _ *registry.Cache) (analysis.TokenFilter, error) {
	return legalStopFilter{}, nil
}

type legalStopFilter struct{}

func (legalStopFilter) Filter(input analysis.TokenStream) analysis.TokenStream {
	out := input[:0]
	for _, tok := range input {
		if !normalize.IsStopword(string(tok.Term)) {
			out = append(out, tok)
		}
	}
	return out
}
