package search

import (
	"strings"

	"github.com/xrash/smetrics"

	"github.com/Aman-CERP/amanlex/internal/corpus"
	"github.com/Aman-CERP/amanlex/internal/normalize"
)

// Field names and weights scored by the lexical scorer. Title is the
// strongest signal and body text the weakest.
const (
	FieldTitle         = "title"
	FieldTitleCitation = "title_citation"
	FieldCitationTitle = "citation_title"
	FieldCitation      = "canonical_citation"
	FieldSectionID     = "section_id"
	FieldEntryID       = "entry_id"
	FieldLawFamily     = "law_family"
	FieldTags          = "tags"
	FieldBlob          = "all_fields"
	FieldSummary       = "summary"
	FieldEffectiveDate = "effective_date"
	FieldBody          = "body_text"
)

var fieldWeights = map[string]float64{
	FieldTitle:         10,
	FieldTitleCitation: 9,
	FieldCitationTitle: 9,
	FieldCitation:      8,
	FieldSectionID:     7,
	FieldEntryID:       6,
	FieldLawFamily:     5,
	FieldTags:          5,
	FieldBlob:          4,
	FieldSummary:       3,
	FieldEffectiveDate: 2,
	FieldBody:          1,
}

// FieldWeight returns the weight of a field name, or 0 when unknown.
func FieldWeight(name string) float64 {
	return fieldWeights[name]
}

// Tier multipliers.
const (
	tierExact       = 3.0
	tierPrefix      = 2.0
	tierSubstring   = 1.0
	tierCompact     = 0.9
	tierParen       = 0.9
	tierCoverageLow = 0.4
	tierFuzzy       = 0.5
	tierEditDist    = 0.6

	minCoverage       = 0.6
	maxPhraseBoost    = 20.0
	maxProximityBoost = 10.0
	proximityWindow   = 40

	highWeight     = 8.0
	editDistWeight = 6.0
	editDistMinLen = 3
	editDistMaxLen = 6
)

// Tier identifies which rule matched a field.
type Tier int

const (
	TierNone Tier = iota
	TierExact
	TierPrefix
	TierSubstring
	TierCompact
	TierParenthetical
	TierCoverage
	TierFuzzy
	TierEditDistance
)

// FieldMatch records how one field matched.
type FieldMatch struct {
	Field string  `json:"field"`
	Tier  Tier    `json:"tier"`
	Score float64 `json:"score"`
}

// LexicalScore is the lexical result for one entry.
type LexicalScore struct {
	Score      float64
	Similarity float64
	Matched    []FieldMatch

	ExactCitation bool
	// Keyword is set when every content token appears in title or citation.
	Keyword bool
	// ArticleMatch is set when the citation names the queried article.
	ArticleMatch bool
}

// Hit reports whether any field matched.
func (s LexicalScore) Hit() bool {
	return s.Score > 0
}

type preparedField struct {
	name     string
	weight   float64
	text     string
	compact  string
	paren    string
	tokens   []string
	variants map[string]bool
}

// PreparedEntry caches the normalized fields of an entry. Entries are
// immutable so one is built per corpus snapshot.
type PreparedEntry struct {
	Entry  *corpus.Entry
	fields []preparedField

	titleCitation string
	citationTitle string
	citationParen string
	// tags holds the normalized tag set for topic overlap.
	tags map[string]bool
}

// LexicalScorer scores entries against a query across weighted fields.
type LexicalScorer struct {
	expander   *Expander
	exactScore float64
}

// NewLexicalScorer creates a scorer. exactScore is the fixed score of an
// exact title+citation match.
func NewLexicalScorer(expander *Expander, exactScore float64) *LexicalScorer {
	if expander == nil {
		expander = NewExpander()
	}
	if exactScore <= 0 {
		exactScore = ExactCitationScore
	}
	return &LexicalScorer{expander: expander, exactScore: exactScore}
}

// Prepare normalizes every scored field of e.
func (s *LexicalScorer) Prepare(e *corpus.Entry) *PreparedEntry {
	tags := strings.Join(e.Tags, " ")
	blob := strings.Join([]string{
		e.Title, e.CanonicalCitation, e.Summary, tags, e.LawFamily, e.SectionID, e.ID,
	}, " ")

	raw := []struct {
		name string
		text string
	}{
		{FieldTitle, e.Title},
		{FieldTitleCitation, e.TitleCitation()},
		{FieldCitationTitle, e.CitationTitle()},
		{FieldCitation, e.CanonicalCitation},
		{FieldSectionID, e.SectionID},
		{FieldEntryID, strings.NewReplacer("-", " ", "_", " ").Replace(e.ID)},
		{FieldLawFamily, e.LawFamily},
		{FieldTags, tags},
		{FieldBlob, blob},
		{FieldSummary, e.Summary},
		{FieldEffectiveDate, e.EffectiveDate.String()},
		{FieldBody, e.BodyText},
	}

	p := &PreparedEntry{Entry: e, tags: make(map[string]bool, len(e.Tags))}
	for _, r := range raw {
		text := normalize.Normalize(r.text)
		if text == "" {
			continue
		}
		p.fields = append(p.fields, preparedField{
			name:     r.name,
			weight:   fieldWeights[r.name],
			text:     text,
			compact:  normalize.Compact(text),
			paren:    normalize.Parenthetical(text),
			tokens:   normalize.Tokens(text),
			variants: s.expander.TextVariants(text),
		})
	}

	p.titleCitation = normalize.Normalize(e.TitleCitation())
	p.citationTitle = normalize.Normalize(e.CitationTitle())
	p.citationParen = normalize.Parenthetical(normalize.Normalize(e.CanonicalCitation))
	for _, t := range e.Tags {
		for _, tok := range normalize.Tokens(normalize.Normalize(t)) {
			p.tags[tok] = true
		}
	}
	return p
}

// lexicalQuery is the query side of scoring, built once per request.
type lexicalQuery struct {
	text    string
	compact string
	paren   string
	tokens  []string
	content []VariantSet
	article string
}

func newLexicalQuery(a *Analysis) lexicalQuery {
	q := lexicalQuery{
		text:    a.Normalized,
		compact: normalize.Compact(a.Normalized),
		paren:   normalize.Parenthetical(a.Normalized),
		tokens:  a.Tokens,
		article: a.Citation.ArticleRef(),
	}
	for _, v := range a.Variants {
		if !normalize.IsStopword(v.Token) {
			q.content = append(q.content, v)
		}
	}
	if len(q.content) == 0 {
		q.content = a.Variants
	}
	return q
}

// Score scores a prepared entry against an analyzed query.
func (s *LexicalScorer) Score(p *PreparedEntry, a *Analysis) LexicalScore {
	return s.score(p, newLexicalQuery(a))
}

func (s *LexicalScorer) score(p *PreparedEntry, q lexicalQuery) LexicalScore {
	var out LexicalScore
	if q.text == "" {
		return out
	}

	phraseDone, proximityDone := false, false
	multiToken := len(q.tokens) >= 2

	for i := range p.fields {
		f := &p.fields[i]
		tier, score := matchField(f, q)

		if tier == TierSubstring && multiToken {
			if !phraseDone && (f.weight >= highWeight || f.name == FieldSummary) {
				score += min(maxPhraseBoost, f.weight*2)
				phraseDone = true
			}
			if !proximityDone && f.weight >= highWeight && inOrderWithin(f.text, q.content, proximityWindow) {
				score += min(maxProximityBoost, f.weight)
				proximityDone = true
			}
		}

		if score > 0 {
			out.Score += score
			out.Matched = append(out.Matched, FieldMatch{Field: f.name, Tier: tier, Score: score})
		}
	}

	if q.text == p.titleCitation || q.text == p.citationTitle {
		out.ExactCitation = true
		out.Score = s.exactScore
	}

	out.Similarity = min(1, out.Score/LexicalSaturation)
	out.Keyword = keywordMatch(p, q)
	out.ArticleMatch = q.article != "" && containsPhrase(p.citationParen, q.article)
	return out
}

// matchField applies tiers 1 to 8 in order. The first tier that matches wins.
func matchField(f *preparedField, q lexicalQuery) (Tier, float64) {
	w := f.weight
	switch {
	case f.text == q.text:
		return TierExact, w * tierExact
	case strings.HasPrefix(f.text, q.text):
		return TierPrefix, w * tierPrefix
	case strings.Contains(f.text, q.text):
		return TierSubstring, w * tierSubstring
	case q.compact != "" && strings.Contains(f.compact, q.compact):
		return TierCompact, w * tierCompact
	case q.paren != q.text && strings.Contains(f.paren, q.paren):
		return TierParenthetical, w * tierParen
	}

	if matched := coverage(f, q.content); matched > 0 {
		cov := float64(matched) / float64(len(q.content))
		if cov >= minCoverage {
			return TierCoverage, w * cov
		}
		return TierCoverage, w * tierCoverageLow
	}

	if fuzzyContains(f, q) {
		return TierFuzzy, w * tierFuzzy
	}

	if w >= editDistWeight && editDistanceOne(f.tokens, q.content) {
		return TierEditDistance, w * tierEditDist
	}
	return TierNone, 0
}

// coverage counts the query tokens whose variants meet the field's variants.
func coverage(f *preparedField, content []VariantSet) int {
	n := 0
	for _, set := range content {
		for _, form := range set.Forms {
			if f.variants[form] {
				n++
				break
			}
		}
	}
	return n
}

// fuzzyContains is the loose fallback: the query contains the whole field,
// or every content token occurs somewhere in the field text.
func fuzzyContains(f *preparedField, q lexicalQuery) bool {
	if containsPhrase(q.text, f.text) || strings.HasPrefix(q.compact, f.compact) {
		return true
	}
	if len(q.content) == 0 {
		return false
	}
	for _, set := range q.content {
		if !strings.Contains(f.text, set.Token) {
			return false
		}
	}
	return true
}

// editDistanceOne reports whether some query token of length 3 to 6 is one
// edit away from a field token of similar length.
func editDistanceOne(fieldTokens []string, content []VariantSet) bool {
	for _, set := range content {
		qt := set.Token
		if len(qt) < editDistMinLen || len(qt) > editDistMaxLen {
			continue
		}
		for _, ft := range fieldTokens {
			if len(ft) < editDistMinLen || len(ft) > editDistMaxLen+1 {
				continue
			}
			if d := len(ft) - len(qt); d > 1 || d < -1 {
				continue
			}
			if smetrics.WagnerFischer(qt, ft, 1, 1, 1) <= 1 {
				return true
			}
		}
	}
	return false
}

// inOrderWithin reports whether the query tokens occur in text in order,
// with the first and last match no more than window characters apart.
func inOrderWithin(text string, content []VariantSet, window int) bool {
	if len(content) < 2 {
		return false
	}
	padded := " " + text + " "
	for start := strings.Index(padded, " "+content[0].Token+" "); start >= 0; {
		pos := start
		ok := true
		for _, set := range content[1:] {
			next := strings.Index(padded[pos+1:], " "+set.Token+" ")
			if next < 0 {
				ok = false
				break
			}
			pos = pos + 1 + next
		}
		if ok && pos-start <= window {
			return true
		}
		if !ok {
			return false
		}
		more := strings.Index(padded[start+1:], " "+content[0].Token+" ")
		if more < 0 {
			return false
		}
		start = start + 1 + more
	}
	return false
}

// keywordMatch reports whether every content token is in title or citation.
func keywordMatch(p *PreparedEntry, q lexicalQuery) bool {
	if len(q.content) == 0 {
		return false
	}
	var title, citation map[string]bool
	for i := range p.fields {
		switch p.fields[i].name {
		case FieldTitle:
			title = p.fields[i].variants
		case FieldCitation:
			citation = p.fields[i].variants
		}
	}
	for _, set := range q.content {
		found := false
		for _, form := range set.Forms {
			if title[form] || citation[form] {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}
