package search

import (
	"github.com/Aman-CERP/amanlex/internal/corpus"
)

// Query is a retrieval request.
type Query struct {
	Text    string
	Filters corpus.Filters
	// Limit caps the result count. Zero means Config.DefaultLimit.
	Limit int
}

// Channel is a bitmask of the retrieval channels that produced a candidate.
type Channel uint8

const (
	ChannelVector Channel = 1 << iota
	ChannelLexical
	ChannelCitation
)

// Has reports whether c includes ch.
func (c Channel) Has(ch Channel) bool {
	return c&ch != 0
}

// String lists the channels, e.g. "vector+citation".
func (c Channel) String() string {
	var s string
	add := func(name string) {
		if s != "" {
			s += "+"
		}
		s += name
	}
	if c.Has(ChannelVector) {
		add("vector")
	}
	if c.Has(ChannelLexical) {
		add("lexical")
	}
	if c.Has(ChannelCitation) {
		add("citation")
	}
	if s == "" {
		return "none"
	}
	return s
}

// Boosts is the additive boost accumulator, split by source.
type Boosts struct {
	Citation float64 `json:"citation,omitempty"`
	Article  float64 `json:"article,omitempty"`
	Direct   float64 `json:"direct,omitempty"`
	Nearby   float64 `json:"nearby,omitempty"`
	Keyword  float64 `json:"keyword,omitempty"`
}

// Total sums every part.
func (b Boosts) Total() float64 {
	return b.Citation + b.Article + b.Direct + b.Nearby + b.Keyword
}

// raise keeps the larger value of each part.
func (b Boosts) raise(o Boosts) Boosts {
	return Boosts{
		Citation: max(b.Citation, o.Citation),
		Article:  max(b.Article, o.Article),
		Direct:   max(b.Direct, o.Direct),
		Nearby:   max(b.Nearby, o.Nearby),
		Keyword:  max(b.Keyword, o.Keyword),
	}
}

// Candidate is the scoring record of one entry within a request.
type Candidate struct {
	Entry *corpus.Entry

	// VectorSim is the best vector similarity seen, in [0,1].
	VectorSim float64
	// LexicalSim is the best lexical similarity seen, in [0,1].
	LexicalSim float64
	// LexicalScore is the raw weighted-field score behind LexicalSim.
	LexicalScore float64

	Boosts   Boosts
	Channels Channel

	// ExactCitation is set when title+citation equals the query.
	ExactCitation bool
	// DirectMatch is set when the citation matcher found the entry structurally.
	DirectMatch bool
	// ArticleMatch is set when the entry's citation names the queried article.
	ArticleMatch bool

	// Score is the composite score, set by the ranker.
	Score float64

	prep *PreparedEntry
}

// merge folds o into c. Sub-scores only ever rise.
func (c *Candidate) merge(o *Candidate) {
	c.VectorSim = max(c.VectorSim, o.VectorSim)
	c.LexicalSim = max(c.LexicalSim, o.LexicalSim)
	c.LexicalScore = max(c.LexicalScore, o.LexicalScore)
	c.Boosts = c.Boosts.raise(o.Boosts)
	c.Channels |= o.Channels
	c.ExactCitation = c.ExactCitation || o.ExactCitation
	c.DirectMatch = c.DirectMatch || o.DirectMatch
	c.ArticleMatch = c.ArticleMatch || o.ArticleMatch
	if c.prep == nil {
		c.prep = o.prep
	}
}

// candidatePool merges candidates by entry id.
type candidatePool struct {
	byID  map[string]*Candidate
	order []string
}

func newCandidatePool() *candidatePool {
	return &candidatePool{byID: make(map[string]*Candidate)}
}

// add merges c into the pool.
func (p *candidatePool) add(c *Candidate) {
	if c == nil || c.Entry == nil {
		return
	}
	if cur, ok := p.byID[c.Entry.ID]; ok {
		cur.merge(c)
		return
	}
	cp := *c
	p.byID[c.Entry.ID] = &cp
	p.order = append(p.order, c.Entry.ID)
}

// list returns the candidates in first-seen order.
func (p *candidatePool) list() []*Candidate {
	out := make([]*Candidate, 0, len(p.order))
	for _, id := range p.order {
		out = append(out, p.byID[id])
	}
	return out
}

// Analysis is the derived form of a query shared by every channel.
type Analysis struct {
	Raw        string
	Normalized string
	Tokens     []string
	// Content is Tokens without stopwords.
	Content  []string
	Variants []VariantSet
	Citation CitationPattern
	Shape    Shape
}

// Response is the result of Engine.Search.
type Response struct {
	Query      string       `json:"query"`
	Normalized string       `json:"normalized"`
	Results    []*Candidate `json:"-"`
	// Total is the number of ranked candidates before the limit.
	Total    int      `json:"total"`
	Decision Decision `json:"decision"`
	Reranked bool     `json:"reranked"`

	// Suggestion and Suggestions are set when fewer than three results
	// were found.
	Suggestion  string   `json:"suggestion,omitempty"`
	Suggestions []string `json:"suggestions,omitempty"`

	// Degraded lists channels that failed and were skipped.
	Degraded []string `json:"degraded,omitempty"`
}

// IDs returns the ranked entry ids.
func (r *Response) IDs() []string {
	ids := make([]string, len(r.Results))
	for i, c := range r.Results {
		ids[i] = c.Entry.ID
	}
	return ids
}
