package search

import (
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/Aman-CERP/amanlex/internal/normalize"
)

// VariantSet is a query token and every lexical form it may match.
type VariantSet struct {
	Token string
	// Forms starts with Token and holds no duplicates.
	Forms []string
}

// Contains reports whether form is one of the set's forms.
func (v VariantSet) Contains(form string) bool {
	for _, f := range v.Forms {
		if f == form {
			return true
		}
	}
	return false
}

func (v *VariantSet) add(forms ...string) {
	for _, f := range forms {
		if f != "" && !v.Contains(f) {
			v.Forms = append(v.Forms, f)
		}
	}
}

// Expander produces lexical variants for normalized tokens.
type Expander struct {
	// synonyms maps a normalized acronym to its normalized phrases.
	synonyms map[string][]string
	// phrases maps a normalized phrase back to its acronyms.
	phrases map[string][]string
	// maxPhraseLen is the longest phrase in tokens.
	maxPhraseLen int
	antiPrefix   map[string]bool
	versus       map[string]bool
}

// ExpanderOption configures an Expander.
type ExpanderOption func(*Expander)

// WithCustomSynonyms adds acronym to phrase mappings on top of LegalSynonyms.
func WithCustomSynonyms(synonyms map[string][]string) ExpanderOption {
	return func(e *Expander) {
		for k, v := range synonyms {
			e.addSynonyms(k, v)
		}
	}
}

// WithAntiPrefixAllowlist replaces the anti-prefix allowlist.
func WithAntiPrefixAllowlist(bases []string) ExpanderOption {
	return func(e *Expander) {
		e.antiPrefix = make(map[string]bool, len(bases))
		for _, b := range bases {
			e.antiPrefix[normalize.Normalize(b)] = true
		}
	}
}

// NewExpander creates an expander with the default legal synonym table.
func NewExpander(opts ...ExpanderOption) *Expander {
	e := &Expander{
		synonyms:   make(map[string][]string),
		phrases:    make(map[string][]string),
		antiPrefix: make(map[string]bool, len(AntiPrefixAllowlist)),
		versus:     make(map[string]bool, len(versusForms)),
	}
	for k, v := range LegalSynonyms {
		e.addSynonyms(k, v)
	}
	for _, b := range AntiPrefixAllowlist {
		e.antiPrefix[normalize.Normalize(b)] = true
	}
	for _, v := range versusForms {
		e.versus[normalize.Normalize(v)] = true
	}

	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Expander) addSynonyms(acronym string, phrases []string) {
	key := normalize.Normalize(acronym)
	if key == "" {
		return
	}
	for _, p := range phrases {
		np := normalize.Normalize(p)
		if np == "" || np == key {
			continue
		}
		if !containsString(e.synonyms[key], np) {
			e.synonyms[key] = append(e.synonyms[key], np)
		}
		if !containsString(e.phrases[np], key) {
			e.phrases[np] = append(e.phrases[np], key)
		}
		e.maxPhraseLen = max(e.maxPhraseLen, len(strings.Fields(np)))
	}
}

// Expand returns one variant set per token, in token order.
func (e *Expander) Expand(tokens []string) []VariantSet {
	sets := make([]VariantSet, len(tokens))
	for i, t := range tokens {
		sets[i] = VariantSet{Token: t, Forms: []string{t}}
		sets[i].add(e.tokenVariants(t)...)
	}

	// Number followed by a single letter: "5 a" is also "5a", "5(a)", "5-a".
	for i := 0; i+1 < len(tokens); i++ {
		forms := compositeForms(tokens[i], tokens[i+1])
		if len(forms) == 0 {
			continue
		}
		sets[i].add(forms...)
		sets[i+1].add(forms...)
	}

	// A phrase spanning tokens adds its acronym to every token it covers.
	for _, span := range e.phraseSpans(tokens) {
		for j := span.start; j < span.end; j++ {
			sets[j].add(span.acronyms...)
			sets[j].add(span.phrase)
		}
	}
	return sets
}

// tokenVariants returns the single-token variants of t.
func (e *Expander) tokenVariants(t string) []string {
	var out []string

	if strings.HasPrefix(t, "anti") {
		base := strings.TrimLeft(strings.TrimPrefix(t, "anti"), "-")
		if e.antiPrefix[base] {
			out = append(out, base)
		}
	}

	if e.versus[t] {
		var alts []string
		for v := range e.versus {
			if v != t {
				alts = append(alts, v)
			}
		}
		sort.Strings(alts)
		out = append(out, alts...)
	}

	out = append(out, e.synonyms[t]...)

	if nv, ok := numeralVariant(t); ok {
		out = append(out, nv)
	}

	// A glued sub-clause token such as "5(a)" also reads as "5a" and "5-a".
	if num, letter, ok := splitGluedClause(t); ok {
		out = append(out, compositeForms(num, letter)...)
	}
	return out
}

// numeralVariant converts a numeral token. Single-letter Roman numerals
// are only read for i, v and x; "c", "d", "l" and "m" are far more often
// list markers than numbers. Digits always convert.
func numeralVariant(t string) (string, bool) {
	if len(t) == 1 && (t[0] < '0' || t[0] > '9') && t != "i" && t != "v" && t != "x" {
		return "", false
	}
	return normalize.NumeralVariant(t)
}

var (
	gluedArabic = regexp.MustCompile(`^(\d+)(?:\(([a-z])\)|-?([a-z]))$`)
	// Roman numerals need the bracket or hyphen, or "via" would read as 6(a).
	gluedRoman = regexp.MustCompile(`^([ivx]+)(?:\(([a-z])\)|-([a-z]))$`)
)

// splitGluedClause splits "5(a)", "5-a", "5a", "iv(a)" and "iv-a".
func splitGluedClause(t string) (num, letter string, ok bool) {
	for _, re := range []*regexp.Regexp{gluedArabic, gluedRoman} {
		m := re.FindStringSubmatch(t)
		if m == nil {
			continue
		}
		letter = m[2]
		if letter == "" {
			letter = m[3]
		}
		return m[1], letter, true
	}
	return "", "", false
}

// compositeForms builds the sub-clause forms of a number (or Roman numeral)
// and a single letter. It returns nil when the pair is not such a clause.
func compositeForms(num, letter string) []string {
	if len(letter) != 1 || letter[0] < 'a' || letter[0] > 'z' {
		return nil
	}

	bases := []string{}
	if _, ok := normalize.ParseArabic(num); ok {
		bases = append(bases, num)
	} else if n, ok := normalize.RomanToArabic(num); ok && len(num) <= 4 {
		bases = append(bases, num, strconv.Itoa(n))
	} else {
		return nil
	}

	var out []string
	for _, b := range bases {
		out = append(out, b+letter, b+"("+letter+")", b+"-"+letter)
	}
	return out
}

type phraseSpan struct {
	start, end int
	phrase     string
	acronyms   []string
}

// phraseSpans finds synonym phrases in the token list, longest first.
func (e *Expander) phraseSpans(tokens []string) []phraseSpan {
	var spans []phraseSpan
	for i := 0; i < len(tokens); i++ {
		for n := min(e.maxPhraseLen, len(tokens)-i); n >= 2; n-- {
			phrase := strings.Join(tokens[i:i+n], " ")
			if acr, ok := e.phrases[phrase]; ok {
				spans = append(spans, phraseSpan{start: i, end: i + n, phrase: phrase, acronyms: acr})
				break
			}
		}
	}
	return spans
}

// TextVariants returns every variant form found in normalized text: its
// tokens with their variants plus the acronyms of contained phrases. It is
// the field-side counterpart of Expand.
func (e *Expander) TextVariants(normalized string) map[string]bool {
	tokens := normalize.Tokens(normalized)
	out := make(map[string]bool, len(tokens)*2)
	for _, set := range e.Expand(tokens) {
		for _, f := range set.Forms {
			out[f] = true
		}
	}
	return out
}

// ExpandedQuery joins every distinct form of sets, in order, for use as a
// single lexical index query.
func ExpandedQuery(sets []VariantSet) string {
	seen := make(map[string]bool)
	var parts []string
	for _, s := range sets {
		for _, f := range s.Forms {
			if !seen[f] {
				seen[f] = true
				parts = append(parts, f)
			}
		}
	}
	return strings.Join(parts, " ")
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
