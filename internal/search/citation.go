package search

import (
	"context"
	"regexp"
	"strconv"
	"strings"

	"github.com/Aman-CERP/amanlex/internal/corpus"
	"github.com/Aman-CERP/amanlex/internal/normalize"
)

// Source narrows a citation to one body of law.
type Source string

const (
	SourceAny          Source = ""
	SourceConstitution Source = "constitution"
	SourcePenalCode    Source = "penal_code"
	SourceRulesOfCourt Source = "rules_of_court"
)

// CitationPattern is a structural citation found in a query.
type CitationPattern struct {
	Rule          string `json:"rule,omitempty"`
	Section       string `json:"section,omitempty"`
	Article       string `json:"article,omitempty"`
	ArticleSuffix string `json:"article_suffix,omitempty"`
	RepublicAct   string `json:"republic_act,omitempty"`
	Source        Source `json:"source,omitempty"`
}

// HasRuleSection reports a combined "rule N section M".
func (p CitationPattern) HasRuleSection() bool {
	return p.Rule != "" && p.Section != ""
}

// HasArticle reports an "article N" reference.
func (p CitationPattern) HasArticle() bool {
	return p.Article != ""
}

// HasRepublicAct reports a "republic act N" reference.
func (p CitationPattern) HasRepublicAct() bool {
	return p.RepublicAct != ""
}

// IsZero reports whether no structural citation was found.
func (p CitationPattern) IsZero() bool {
	return !p.HasRuleSection() && !p.HasArticle() && !p.HasRepublicAct()
}

// ArticleRef returns the article in normalized parenthetical form, such as
// "article 266(a)", or "" when there is none.
func (p CitationPattern) ArticleRef() string {
	if p.Article == "" {
		return ""
	}
	ref := "article " + p.Article
	if p.ArticleSuffix != "" {
		ref += "(" + p.ArticleSuffix + ")"
	}
	return ref
}

// StatuteRefs returns the statute references a citation must contain to
// earn the statute citation bonus.
func (p CitationPattern) StatuteRefs() []string {
	var refs []string
	if p.HasRepublicAct() {
		refs = append(refs, "republic act "+p.RepublicAct)
	}
	if ref := p.ArticleRef(); ref != "" {
		refs = append(refs, ref)
	}
	return refs
}

const numeral = `(\d+|[ivxlc]+)`

var (
	rulePattern        = regexp.MustCompile(`\brule ` + numeral + `\b`)
	sectionPattern     = regexp.MustCompile(`\bsection (\d+)\b`)
	republicActPattern = regexp.MustCompile(`\brepublic act (?:number )?(\d+)\b`)

	// articlePattern groups: 1-2 "266a", 3 the numeral, 4 "-a", 5 "(a)",
	// 6 a space-separated letter, which detectArticle vets.
	articlePattern = regexp.MustCompile(`\barticle (?:(\d+)([a-z])\b|` + numeral + `\b(?:-([a-z])\b|\(([a-z])\)|\s([a-z])\b)?)`)
)

var sourcePhrases = []struct {
	source  Source
	phrases normalizedPhrases
}{
	{SourceConstitution, normalizeAll([]string{"constitution", "constitutional", "bill of rights"})},
	{SourcePenalCode, normalizeAll([]string{"revised penal code", "penal code", "rpc"})},
	{SourceRulesOfCourt, normalizeAll([]string{"rules of court", "roc", "rules of criminal procedure"})},
}

// DetectCitation finds structural citations in normalized query text.
func DetectCitation(normalized string) CitationPattern {
	var p CitationPattern
	if normalized == "" {
		return p
	}

	if m := rulePattern.FindStringSubmatch(normalized); m != nil {
		p.Rule = arabic(m[1])
	}
	if m := sectionPattern.FindStringSubmatch(normalized); m != nil {
		p.Section = arabic(m[1])
	}
	p.Article, p.ArticleSuffix = detectArticle(normalized)
	if m := republicActPattern.FindStringSubmatch(normalized); m != nil {
		p.RepublicAct = m[1]
	}

	padded := " " + normalized + " "
	for _, sp := range sourcePhrases {
		if sp.phrases.in(padded) {
			p.Source = sp.source
			break
		}
	}
	if p.Source == SourceAny && p.HasRuleSection() {
		p.Source = SourceRulesOfCourt
	}
	return p
}

// detectArticle returns the first article reference whose numeral is valid.
// A letter after a space is a suffix only at the end of the query or before
// a source qualifier, so "article 308 a crime" has no suffix.
func detectArticle(normalized string) (article, suffix string) {
	for _, m := range articlePattern.FindAllStringSubmatchIndex(normalized, -1) {
		group := func(i int) string {
			if m[2*i] < 0 {
				return ""
			}
			return normalized[m[2*i]:m[2*i+1]]
		}
		if n := group(1); n != "" {
			if article = arabic(n); article == "" {
				continue
			}
			return article, group(2)
		}
		article = arabic(group(3))
		if article == "" {
			continue
		}
		switch {
		case group(4) != "":
			suffix = group(4)
		case group(5) != "":
			suffix = group(5)
		case group(6) != "" && qualifierFollows(normalized[m[1]:]):
			suffix = group(6)
		}
		return article, suffix
	}
	return "", ""
}

// qualifierFollows reports whether rest is empty or names a source, as in
// " of the revised penal code".
func qualifierFollows(rest string) bool {
	words := strings.Fields(rest)
	if len(words) == 0 {
		return true
	}
	for len(words) > 0 && (words[0] == "of" || words[0] == "the" || words[0] == "in") {
		words = words[1:]
	}
	tail := strings.Join(words, " ") + " "
	for _, sp := range sourcePhrases {
		for _, ph := range sp.phrases {
			if strings.HasPrefix(tail, ph+" ") {
				return true
			}
		}
	}
	return false
}

// arabic returns digits unchanged and converts a valid Roman numeral. An
// invalid numeral yields "".
func arabic(s string) string {
	if n, ok := normalize.ParseArabic(s); ok {
		return strconv.Itoa(n)
	}
	if n, ok := normalize.RomanToArabic(s); ok {
		return strconv.Itoa(n)
	}
	return ""
}

// Direct hit kinds.
const (
	HitRuleSection   = "rule_section"
	HitArticle       = "article"
	HitRepublicAct   = "republic_act"
	HitNearbyArticle = "nearby_article"
)

// DirectHit is an entry found by citation lookup.
type DirectHit struct {
	Entry  *corpus.Entry
	Kind   string
	Boosts Boosts
}

// Exact reports whether the hit names the requested provision itself.
func (h DirectHit) Exact() bool {
	return h.Kind != HitNearbyArticle
}

// MaxNearbyDistance is how far the nearby-article fallback looks.
const MaxNearbyDistance = 5

// CitationMatcher looks up entries that a citation pattern names.
type CitationMatcher struct {
	boosts BoostConfig
}

// NewCitationMatcher creates a matcher with the given boosts.
func NewCitationMatcher(boosts BoostConfig) *CitationMatcher {
	return &CitationMatcher{boosts: boosts}
}

// Match returns the direct hits for p in corpus order. A suffixed article
// with no entry is retried without the suffix. When that finds nothing too
// it falls back, sequentially, to the nearest article numbers within
// MaxNearbyDistance in the same source.
func (m *CitationMatcher) Match(ctx context.Context, c *corpus.Corpus, p CitationPattern, filters corpus.Filters) []DirectHit {
	if c == nil || p.IsZero() {
		return nil
	}

	var hits []DirectHit
	seen := make(map[string]bool)
	add := func(kind string, b Boosts, entries []*corpus.Entry) {
		for _, e := range entries {
			if seen[e.ID] {
				continue
			}
			seen[e.ID] = true
			hits = append(hits, DirectHit{Entry: e, Kind: kind, Boosts: b})
		}
	}

	if p.HasRuleSection() {
		add(HitRuleSection, Boosts{Citation: m.boosts.Citation}, m.ruleSection(c, p, filters))
	}

	if p.HasArticle() {
		found := m.articles(c, p.Article, p.ArticleSuffix, p.Source, filters)
		if len(found) == 0 && p.ArticleSuffix != "" {
			found = m.articles(c, p.Article, "", p.Source, filters)
		}
		add(HitArticle, Boosts{Article: m.boosts.Article, Direct: m.boosts.Direct}, found)

		if len(found) == 0 {
			add(HitNearbyArticle, Boosts{Nearby: m.boosts.Nearby}, m.nearby(ctx, c, p, filters))
		}
	}

	if p.HasRepublicAct() {
		acts := m.republicAct(c, p.RepublicAct, filters)
		for _, e := range acts {
			b := Boosts{Direct: m.boosts.Direct}
			if p.Section != "" && entrySection(e, p.Section) {
				b.Citation = m.boosts.Citation
			}
			add(HitRepublicAct, b, []*corpus.Entry{e})
		}
	}
	return hits
}

func (m *CitationMatcher) ruleSection(c *corpus.Corpus, p CitationPattern, f corpus.Filters) []*corpus.Entry {
	structural := c.Find(f, func(e *corpus.Entry) bool {
		return sameNumber(e.RuleNo, p.Rule) && sameNumber(e.SectionNo, p.Section)
	})
	if len(structural) > 0 {
		return structural
	}

	rule, section := "rule "+p.Rule, "section "+p.Section
	return c.Find(f, func(e *corpus.Entry) bool {
		if e.RuleNo != "" {
			return false
		}
		if idParts := idNumbers(e.ID); len(idParts) >= 2 &&
			idParts[len(idParts)-2] == p.Rule && idParts[len(idParts)-1] == p.Section &&
			e.Type == corpus.TypeRuleOfCourt {
			return true
		}
		text := citationText(e)
		return containsPhrase(text, rule) && containsPhrase(text, section)
	})
}

func (m *CitationMatcher) articles(c *corpus.Corpus, article, suffix string, src Source, f corpus.Filters) []*corpus.Entry {
	want := article + suffix

	structural := c.Find(f, func(e *corpus.Entry) bool {
		return e.ArticleNo != "" && articleKey(e.ArticleNo) == want && sourceMatches(e, src)
	})
	if len(structural) > 0 {
		return structural
	}

	ref := CitationPattern{Article: article, ArticleSuffix: suffix}.ArticleRef()
	return c.Find(f, func(e *corpus.Entry) bool {
		if e.ArticleNo != "" || !sourceMatches(e, src) {
			return false
		}
		if containsPhrase(citationText(e), ref) || containsPhrase(titleText(e), ref) {
			return true
		}
		if suffix == "" && e.Type.HasArticles() {
			parts := idNumbers(e.ID)
			return len(parts) > 0 && parts[len(parts)-1] == article
		}
		return false
	})
}

// nearby walks outwards from the requested article, one distance at a
// time, and stops at the first distance that finds anything.
func (m *CitationMatcher) nearby(ctx context.Context, c *corpus.Corpus, p CitationPattern, f corpus.Filters) []*corpus.Entry {
	n, err := strconv.Atoi(p.Article)
	if err != nil {
		return nil
	}
	for d := 1; d <= MaxNearbyDistance; d++ {
		if ctx.Err() != nil {
			return nil
		}
		var found []*corpus.Entry
		for _, cand := range []int{n - d, n + d} {
			if cand < 1 {
				continue
			}
			found = append(found, m.articles(c, strconv.Itoa(cand), "", p.Source, f)...)
		}
		if len(found) > 0 {
			return found
		}
	}
	return nil
}

func (m *CitationMatcher) republicAct(c *corpus.Corpus, number string, f corpus.Filters) []*corpus.Entry {
	ref := "republic act " + number
	return c.Find(f, func(e *corpus.Entry) bool {
		parts := strings.Split(strings.ToLower(e.ID), "-")
		if len(parts) >= 2 && parts[0] == "ra" && parts[1] == number {
			return true
		}
		return containsPhrase(citationText(e), ref)
	})
}

// entrySection reports whether an entry is the given section.
func entrySection(e *corpus.Entry, section string) bool {
	if sameNumber(e.SectionID, section) || sameNumber(e.SectionNo, section) {
		return true
	}
	return containsPhrase(citationText(e), "section "+section)
}

// sourceMatches reports whether an entry belongs to the given source.
func sourceMatches(e *corpus.Entry, src Source) bool {
	if src == SourceAny {
		return true
	}
	padded := " " + normalize.Normalize(strings.Join([]string{e.CanonicalCitation, e.LawFamily, e.ID}, " ")) + " "
	for _, sp := range sourcePhrases {
		if sp.source == src {
			if src == SourceConstitution && e.Type == corpus.TypeConstitutionProvision {
				return true
			}
			if src == SourceRulesOfCourt && e.Type == corpus.TypeRuleOfCourt {
				return true
			}
			return sp.phrases.in(padded) || strings.Contains(padded, " "+idSourcePrefix(src)+"-")
		}
	}
	return true
}

func idSourcePrefix(src Source) string {
	switch src {
	case SourcePenalCode:
		return "rpc"
	case SourceRulesOfCourt:
		return "roc"
	case SourceConstitution:
		return "const"
	}
	return ""
}

// citationText is the normalized citation and law family of an entry in
// parenthetical form.
func citationText(e *corpus.Entry) string {
	return normalize.Parenthetical(normalize.Normalize(e.CanonicalCitation + " " + e.LawFamily))
}

func titleText(e *corpus.Entry) string {
	return normalize.Parenthetical(normalize.Normalize(e.Title))
}

// containsPhrase reports whether phrase occurs in text on token boundaries,
// so "article 30" never matches "article 308".
func containsPhrase(text, phrase string) bool {
	return strings.Contains(" "+text+" ", " "+phrase+" ")
}

// idNumbers returns the numeric parts of a dash-separated id.
func idNumbers(id string) []string {
	var out []string
	for _, part := range strings.Split(strings.ToLower(id), "-") {
		if _, ok := normalize.ParseArabic(part); ok {
			out = append(out, strings.TrimLeft(part, "0"))
		}
	}
	return out
}

// sameNumber compares structured numbers ignoring case, spaces and leading
// zeros. A Roman numeral matches its Arabic value.
func sameNumber(field, want string) bool {
	if field == "" || want == "" {
		return false
	}
	f := strings.ToLower(strings.TrimSpace(field))
	if a := arabic(f); a != "" {
		f = a
	}
	return f == want
}

// articleKey folds "266-A", "266 a", "266(a)" and "266a" to "266a", and
// Roman numbers to Arabic.
func articleKey(s string) string {
	s = strings.ToLower(s)
	var digits, letters strings.Builder
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
			digits.WriteRune(r)
		case r >= 'a' && r <= 'z':
			letters.WriteRune(r)
		}
	}
	if digits.Len() == 0 {
		return arabic(letters.String())
	}
	return arabic(digits.String()) + letters.String()
}
