package search

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/amanlex/internal/corpus"
)

func rerankCandidates(n int) []*Candidate {
	out := make([]*Candidate, n)
	for i := range out {
		id := string(rune('a' + i))
		out[i] = &Candidate{Entry: &corpus.Entry{ID: id, Title: "Entry " + id}, Score: 1 - float64(i)*0.1}
	}
	return out
}

func answer() Decision {
	return Decision{Outcome: OutcomeAnswer}
}

func TestNoOpReranker_KeepsOrder(t *testing.T) {
	r := &NoOpReranker{}
	res, err := r.Rerank(context.Background(), "q", []string{"a", "b", "c"}, 2)

	require.NoError(t, err)
	require.Len(t, res, 2)
	assert.Equal(t, 0, res[0].Index)
	assert.Equal(t, 1, res[1].Index)
	assert.True(t, r.Available(context.Background()))
}

func TestRerankStage_AppliesPermutation(t *testing.T) {
	// Given: a reranker that reverses its input
	fake := &fakeReranker{results: reverseResults}
	stage := NewRerankStage(fake, RerankConfig{TopN: 3, Timeout: time.Second}, nil)
	cands := rerankCandidates(5)

	// When: applied
	out, outcome := stage.Apply(context.Background(), "q", cands, answer())

	// Then: the head is reversed and the tail keeps its order
	assert.Equal(t, RerankApplied, outcome)
	assert.Equal(t, []string{"c", "b", "a", "d", "e"}, candidateIDs(out))
}

func TestRerankStage_FallbackKeepsEveryCandidate(t *testing.T) {
	tests := []struct {
		name string
		fake *fakeReranker
	}{
		{name: "error", fake: &fakeReranker{err: errors.New("boom")}},
		{name: "panic", fake: &fakeReranker{panics: true}},
		{name: "empty", fake: &fakeReranker{results: func([]string) []RerankResult { return nil }}},
		{name: "partial", fake: &fakeReranker{results: func(d []string) []RerankResult {
			return []RerankResult{{Index: 1, Score: 1}}
		}}},
		{name: "duplicate index", fake: &fakeReranker{results: func(d []string) []RerankResult {
			return []RerankResult{{Index: 0, Score: 1}, {Index: 0, Score: 0.5}, {Index: 1, Score: 0.1}}
		}}},
		{name: "out of range", fake: &fakeReranker{results: func(d []string) []RerankResult {
			return []RerankResult{{Index: 9, Score: 1}, {Index: 1, Score: 0.5}, {Index: 2, Score: 0.1}}
		}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stage := NewRerankStage(tt.fake, RerankConfig{TopN: 3, Timeout: time.Second}, nil)
			cands := rerankCandidates(4)

			out, outcome := stage.Apply(context.Background(), "q", cands, answer())

			assert.Equal(t, RerankFallback, outcome)
			assert.Equal(t, []string{"a", "b", "c", "d"}, candidateIDs(out))
		})
	}
}

func TestRerankStage_TimeoutFallsBack(t *testing.T) {
	// Given: a reranker slower than the stage budget that ignores its context
	fake := &fakeReranker{results: reverseResults, delay: 200 * time.Millisecond}
	stage := NewRerankStage(fake, RerankConfig{TopN: 3, Timeout: 20 * time.Millisecond}, nil)

	start := time.Now()
	out, outcome := stage.Apply(context.Background(), "q", rerankCandidates(3), answer())

	assert.Equal(t, RerankFallback, outcome)
	assert.Equal(t, []string{"a", "b", "c"}, candidateIDs(out))
	assert.Less(t, time.Since(start), 150*time.Millisecond)
}

func TestRerankStage_SkipPolicy(t *testing.T) {
	fake := &fakeReranker{results: reverseResults}
	stage := NewRerankStage(fake, DefaultRerankConfig(), nil)

	exact := rerankCandidates(3)
	exact[1].ExactCitation = true
	direct := rerankCandidates(3)
	direct[0].DirectMatch = true
	article := rerankCandidates(3)
	article[2].ArticleMatch = true

	tests := []struct {
		name  string
		cands []*Candidate
		d     Decision
		want  string
	}{
		{"single candidate", rerankCandidates(1), answer(), "too few candidates"},
		{"high confidence", rerankCandidates(3), Decision{Outcome: OutcomeAnswer, SkipRerank: true}, "high confidence"},
		{"exact citation", exact, answer(), "exact citation"},
		{"direct match", direct, answer(), "exact citation"},
		{"article match", article, answer(), "article match"},
		{"runs otherwise", rerankCandidates(3), answer(), ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, stage.ShouldSkip(tt.cands, tt.d))
		})
	}

	var disabled *RerankStage
	assert.Equal(t, "disabled", disabled.ShouldSkip(rerankCandidates(3), answer()))
}

func TestRerankStage_SkippedDoesNotCall(t *testing.T) {
	fake := &fakeReranker{results: reverseResults}
	stage := NewRerankStage(fake, DefaultRerankConfig(), nil)

	_, outcome := stage.Apply(context.Background(), "q", rerankCandidates(3), Decision{Outcome: OutcomeAnswer, SkipRerank: true})

	assert.Equal(t, RerankSkipped, outcome)
	assert.Zero(t, fake.calls.Load())
}

func TestRerankDocument_IsBounded(t *testing.T) {
	long := make([]byte, 5000)
	for i := range long {
		long[i] = 'x'
	}
	c := &Candidate{Entry: &corpus.Entry{Title: "T", CanonicalCitation: "C", BodyText: string(long)}}

	doc := RerankDocument(c)

	assert.Len(t, doc, maxRerankDocLen)
	assert.Equal(t, "T\nC\n", doc[:4])
}

func TestRerankDocument_TrimsOnRuneBoundary(t *testing.T) {
	// Given: a body of two-byte runes after a five-byte prefix
	c := &Candidate{Entry: &corpus.Entry{Title: "Tx", CanonicalCitation: "C",
		BodyText: strings.Repeat("ñ", maxRerankDocLen)}}

	// When: the document is built
	doc := RerankDocument(c)

	// Then: it stays within the bound without splitting a rune
	assert.True(t, utf8.ValidString(doc))
	assert.LessOrEqual(t, len(doc), maxRerankDocLen)
	assert.GreaterOrEqual(t, len(doc), maxRerankDocLen-utf8.UTFMax+1)
	assert.True(t, strings.HasSuffix(doc, "ñ"))
}

func TestLocalReranker_PrefersFullInOrderCoverage(t *testing.T) {
	r := NewLocalReranker(0)
	docs := []string{
		"Penalties for estafa under the code",
		"Theft of a motor vehicle is carnapping",
		"Vehicle registration and renewal",
	}

	res, err := r.Rerank(context.Background(), "theft of vehicle", docs, 0)

	require.NoError(t, err)
	require.Len(t, res, 3)
	assert.Equal(t, 1, res[0].Index)
	assert.Equal(t, 2, res[1].Index)
	assert.Equal(t, 0, res[2].Index)
	assert.InDelta(t, 1.0, res[0].Score, 1e-9)
}

func TestLocalReranker_HonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewLocalReranker(0).Rerank(ctx, "q", []string{"a"}, 0)
	assert.ErrorIs(t, err, context.Canceled)
}
