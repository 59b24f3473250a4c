package mcp

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/amanlex/internal/answer"
	"github.com/Aman-CERP/amanlex/internal/corpus"
	amanerrors "github.com/Aman-CERP/amanlex/internal/errors"
	"github.com/Aman-CERP/amanlex/internal/search"
	"github.com/Aman-CERP/amanlex/internal/telemetry"
)

type fakeSearcher struct {
	resp    *search.Response
	err     error
	queries []search.Query
}

func (f *fakeSearcher) Search(_ context.Context, q search.Query) (*search.Response, error) {
	f.queries = append(f.queries, q)
	if strings.TrimSpace(q.Text) == "" {
		return nil, amanerrors.EmptyQueryError()
	}
	return f.resp, f.err
}

type staticCorpus struct{ c *corpus.Corpus }

func (s staticCorpus) Corpus() *corpus.Corpus { return s.c }

func boolPtr(b bool) *bool { return &b }

func testCorpus(t *testing.T) *corpus.Corpus {
	t.Helper()
	c, err := corpus.New([]*corpus.Entry{
		{
			ID:                "RPC-308",
			Type:              corpus.TypeStatuteSection,
			Title:             "Theft",
			CanonicalCitation: "Revised Penal Code, Art. 308",
			Summary:           "Taking personal property of another without violence.",
			Elements:          []string{"taking of personal property"},
			Verified:          boolPtr(true),
		},
		{
			ID:                "ROC-113-5",
			Type:              corpus.TypeRuleOfCourt,
			Title:             "Arrest without warrant; when lawful",
			CanonicalCitation: "Rules of Court, Rule 113, Sec. 5",
		},
	})
	require.NoError(t, err)
	return c
}

func theftResponse(c *corpus.Corpus, outcome search.Outcome) *search.Response {
	e, _ := c.Get("RPC-308")
	return &search.Response{
		Results:  []*search.Candidate{{Entry: e, VectorSim: 0.8, Score: 0.77}},
		Total:    1,
		Decision: search.Decision{Outcome: outcome, Confidence: 0.77},
	}
}

// connect starts s on an in-memory transport and returns a client session.
func connect(t *testing.T, s *Server) *mcp.ClientSession {
	t.Helper()
	ctx := context.Background()
	clientT, serverT := mcp.NewInMemoryTransports()

	ss, err := s.MCPServer().Connect(ctx, serverT, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ss.Close() })

	client := mcp.NewClient(&mcp.Implementation{Name: "test-client", Version: "v0.0.1"}, nil)
	cs, err := client.Connect(ctx, clientT, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = cs.Close() })
	return cs
}

func newTestServer(t *testing.T, fs *fakeSearcher, c *corpus.Corpus, opts ...Option) *Server {
	t.Helper()
	s, err := NewServer(fs, answer.NewService(fs), staticCorpus{c}, opts...)
	require.NoError(t, err)
	return s
}

func callTool(t *testing.T, cs *mcp.ClientSession, name string, args map[string]any) *mcp.CallToolResult {
	t.Helper()
	res, err := cs.CallTool(context.Background(), &mcp.CallToolParams{Name: name, Arguments: args})
	require.NoError(t, err)
	return res
}

func structured[T any](t *testing.T, res *mcp.CallToolResult) T {
	t.Helper()
	data, err := json.Marshal(res.StructuredContent)
	require.NoError(t, err)
	var out T
	require.NoError(t, json.Unmarshal(data, &out))
	return out
}

func text(res *mcp.CallToolResult) string {
	var sb strings.Builder
	for _, c := range res.Content {
		if tc, ok := c.(*mcp.TextContent); ok {
			sb.WriteString(tc.Text)
		}
	}
	return sb.String()
}

func TestNewServer_RequiresDependencies(t *testing.T) {
	fs := &fakeSearcher{}

	_, err := NewServer(nil, answer.NewService(fs), nil)
	assert.Error(t, err)

	_, err = NewServer(fs, nil, nil)
	assert.Error(t, err)
}

func TestListTools(t *testing.T) {
	cs := connect(t, newTestServer(t, &fakeSearcher{}, testCorpus(t)))

	res, err := cs.ListTools(context.Background(), nil)
	require.NoError(t, err)

	names := make([]string, 0, len(res.Tools))
	for _, tool := range res.Tools {
		names = append(names, tool.Name)
	}
	assert.ElementsMatch(t, []string{"ask", "search_entries", "corpus_status"}, names)
}

func TestAskTool(t *testing.T) {
	// Given: a searcher that confidently matches theft
	c := testCorpus(t)
	fs := &fakeSearcher{resp: theftResponse(c, search.OutcomeAnswer)}
	cs := connect(t, newTestServer(t, fs, c))

	// When: asking with a type filter
	res := callTool(t, cs, "ask", map[string]any{"question": "what is theft", "type": "statute_section"})

	// Then: the answer is grounded on the theft entry
	require.False(t, res.IsError, text(res))
	out := structured[AskOutput](t, res)
	assert.Equal(t, "answer", out.Outcome)
	require.Len(t, out.Sources, 1)
	assert.Equal(t, "RPC-308", out.Sources[0].EntryID)
	assert.Contains(t, out.Answer, "Revised Penal Code, Art. 308")
	assert.Contains(t, text(res), "**Sources:**")
	assert.Equal(t, corpus.TypeStatuteSection, fs.queries[0].Filters.Type)
}

func TestAskTool_Refusal(t *testing.T) {
	c := testCorpus(t)
	fs := &fakeSearcher{resp: theftResponse(c, search.OutcomeRefuse)}
	cs := connect(t, newTestServer(t, fs, c))

	res := callTool(t, cs, "ask", map[string]any{"question": "best pizza in manila"})

	out := structured[AskOutput](t, res)
	assert.Equal(t, search.RefusalAnswer, out.Answer)
	assert.Len(t, out.Sources, 1)
}

func TestAskTool_InvalidInput(t *testing.T) {
	tests := []struct {
		name string
		args map[string]any
		want string
	}{
		{"blank question", map[string]any{"question": "   "}, "question is required"},
		{"unknown type", map[string]any{"question": "theft", "type": "blog"}, "unknown entry type"},
		{"unknown status", map[string]any{"question": "theft", "status": "draft"}, "unknown status"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fs := &fakeSearcher{}
			cs := connect(t, newTestServer(t, fs, testCorpus(t)))

			res := callTool(t, cs, "ask", tt.args)

			assert.True(t, res.IsError)
			assert.Contains(t, text(res), tt.want)
			assert.Empty(t, fs.queries)
		})
	}
}

func TestSearchEntriesTool(t *testing.T) {
	// Given
	c := testCorpus(t)
	resp := theftResponse(c, search.OutcomeAnswer)
	resp.Suggestion = "Theft"
	resp.Suggestions = []string{"Theft"}
	fs := &fakeSearcher{resp: resp}
	cs := connect(t, newTestServer(t, fs, c))

	// When
	res := callTool(t, cs, "search_entries", map[string]any{
		"query":    "Art. 308 RPC",
		"limit":    500,
		"verified": true,
	})

	// Then
	require.False(t, res.IsError, text(res))
	out := structured[SearchEntriesOutput](t, res)
	assert.Equal(t, 1, out.Total)
	require.Len(t, out.Results, 1)
	assert.True(t, out.Results[0].Verified)
	assert.Equal(t, "Theft", out.Suggestion)

	q := fs.queries[0]
	assert.Equal(t, maxLimit, q.Limit)
	require.NotNil(t, q.Filters.Verified)
	assert.True(t, *q.Filters.Verified)
	assert.Contains(t, text(res), "## Entries for \"Art. 308 RPC\"")
}

func TestSearchEntriesTool_DefaultLimit(t *testing.T) {
	c := testCorpus(t)
	fs := &fakeSearcher{resp: theftResponse(c, search.OutcomeAnswer)}
	cs := connect(t, newTestServer(t, fs, c))

	callTool(t, cs, "search_entries", map[string]any{"query": "theft"})

	require.Len(t, fs.queries, 1)
	assert.Equal(t, defaultLimit, fs.queries[0].Limit)
}

func TestCorpusStatusTool(t *testing.T) {
	c := testCorpus(t)
	metrics := telemetry.NewQueryMetrics(nil)
	t.Cleanup(func() { _ = metrics.Close() })
	cs := connect(t, newTestServer(t, &fakeSearcher{}, c, WithQueryMetrics(metrics)))

	res := callTool(t, cs, "corpus_status", map[string]any{})

	require.False(t, res.IsError, text(res))
	out := structured[CorpusStatusOutput](t, res)
	assert.Equal(t, 2, out.Entries)
	assert.Equal(t, 1, out.Verified)
	assert.Equal(t, 1, out.ByType["rule_of_court"])
	require.NotNil(t, out.Queries)
	assert.Equal(t, int64(0), out.Queries.Total)
}

func TestCorpusStatusTool_NoCorpus(t *testing.T) {
	cs := connect(t, newTestServer(t, &fakeSearcher{}, nil))

	res := callTool(t, cs, "corpus_status", map[string]any{})

	assert.True(t, res.IsError)
	assert.Contains(t, text(res), "No corpus loaded")
}

func TestEntryResource(t *testing.T) {
	cs := connect(t, newTestServer(t, &fakeSearcher{}, testCorpus(t)))
	ctx := context.Background()

	t.Run("known entry", func(t *testing.T) {
		res, err := cs.ReadResource(ctx, &mcp.ReadResourceParams{URI: EntryURIPrefix + "RPC-308"})

		require.NoError(t, err)
		require.Len(t, res.Contents, 1)
		assert.Equal(t, markdownMIMEType, res.Contents[0].MIMEType)
		assert.Contains(t, res.Contents[0].Text, "# Theft")
		assert.Contains(t, res.Contents[0].Text, "- taking of personal property")
	})

	t.Run("unknown entry", func(t *testing.T) {
		_, err := cs.ReadResource(ctx, &mcp.ReadResourceParams{URI: EntryURIPrefix + "RPC-999"})
		assert.Error(t, err)
	})
}

func TestQueryMetricsResource(t *testing.T) {
	metrics := telemetry.NewQueryMetrics(nil)
	t.Cleanup(func() { _ = metrics.Close() })
	metrics.Record(telemetry.QueryEvent{Query: "what is theft", Outcome: "answer", ResultCount: 1})
	cs := connect(t, newTestServer(t, &fakeSearcher{}, testCorpus(t), WithQueryMetrics(metrics)))

	res, err := cs.ReadResource(context.Background(), &mcp.ReadResourceParams{URI: queryMetricsURI})

	require.NoError(t, err)
	var snap map[string]any
	require.NoError(t, json.Unmarshal([]byte(res.Contents[0].Text), &snap))
	assert.Equal(t, 1.0, snap["total_queries"])
}

func TestServe_UnknownTransport(t *testing.T) {
	s := newTestServer(t, &fakeSearcher{}, nil)

	err := s.Serve(context.Background(), "sse")

	assert.ErrorContains(t, err, "unknown transport")
}
