package index

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Aman-CERP/amanlex/internal/corpus"
	"github.com/Aman-CERP/amanlex/internal/store"
)

// InconsistencyType categorizes detected issues.
type InconsistencyType int

const (
	// InconsistencyLexicalCount means the lexical index holds fewer
	// documents than the corpus has entries.
	InconsistencyLexicalCount InconsistencyType = iota
	// InconsistencyMissingVector means an entry has no vector.
	InconsistencyMissingVector
	// InconsistencyVectorCount means the vector index holds more vectors
	// than the corpus has entries.
	InconsistencyVectorCount
)

// String returns a short name for the inconsistency type.
func (t InconsistencyType) String() string {
	switch t {
	case InconsistencyLexicalCount:
		return "lexical_count"
	case InconsistencyMissingVector:
		return "missing_vector"
	case InconsistencyVectorCount:
		return "vector_count"
	default:
		return "unknown"
	}
}

// Inconsistency is one detected issue.
type Inconsistency struct {
	Type    InconsistencyType
	EntryID string
	Details string
}

// CheckResult is the outcome of a consistency check.
type CheckResult struct {
	Checked         int
	Inconsistencies []Inconsistency
	Duration        time.Duration
}

// OK reports whether no issue was found.
func (r *CheckResult) OK() bool {
	return len(r.Inconsistencies) == 0
}

// vectorLookup is implemented by vector indexes that can answer per-id
// membership, such as the in-process HNSW index.
type vectorLookup interface {
	Contains(id string) bool
}

// ConsistencyChecker compares the indexes with the corpus they were built
// from.
type ConsistencyChecker struct {
	lexical store.LexicalIndex
	vector  store.VectorIndex
}

// NewConsistencyChecker creates a checker. Either index may be nil.
func NewConsistencyChecker(lexical store.LexicalIndex, vector store.VectorIndex) *ConsistencyChecker {
	return &ConsistencyChecker{lexical: lexical, vector: vector}
}

// Check compares index counts with c and, when the vector index supports
// it, lists entries without a vector.
func (c *ConsistencyChecker) Check(ctx context.Context, cp *corpus.Corpus) (*CheckResult, error) {
	start := time.Now()
	res := &CheckResult{Checked: cp.Len()}

	if c.lexical != nil {
		if n := c.lexical.Count(); n < cp.Len() {
			res.Inconsistencies = append(res.Inconsistencies, Inconsistency{
				Type:    InconsistencyLexicalCount,
				Details: fmt.Sprintf("lexical index has %d documents for %d entries", n, cp.Len()),
			})
		}
	}

	if c.vector != nil {
		if n := c.vector.Count(); n > cp.Len() {
			res.Inconsistencies = append(res.Inconsistencies, Inconsistency{
				Type:    InconsistencyVectorCount,
				Details: fmt.Sprintf("vector index has %d vectors for %d entries", n, cp.Len()),
			})
		}
		if lookup, ok := c.vector.(vectorLookup); ok {
			for _, e := range cp.All() {
				if err := ctx.Err(); err != nil {
					return nil, err
				}
				if !lookup.Contains(e.ID) {
					res.Inconsistencies = append(res.Inconsistencies, Inconsistency{
						Type:    InconsistencyMissingVector,
						EntryID: e.ID,
					})
				}
			}
		}
	}

	res.Duration = time.Since(start)
	if !res.OK() {
		slog.Warn("index inconsistencies found",
			slog.Int("entries", res.Checked),
			slog.Int("issues", len(res.Inconsistencies)))
	}
	return res, nil
}

// QuickCheck compares counts only.
func (c *ConsistencyChecker) QuickCheck(cp *corpus.Corpus) bool {
	if c.lexical != nil && c.lexical.Count() < cp.Len() {
		return false
	}
	if c.vector != nil && c.vector.Count() > cp.Len() {
		return false
	}
	return true
}
