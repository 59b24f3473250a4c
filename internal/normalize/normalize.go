// Package normalize canonicalizes legal query and document text so that the
// lexical and citation layers compare like with like.
//
// Normalize is idempotent: Normalize(Normalize(s)) == Normalize(s) for every s.
package normalize

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// abbreviation is a single legal-abbreviation rewrite.
type abbreviation struct {
	re   *regexp.Regexp
	repl string
}

// periodAbbreviations are applied before punctuation is stripped. Each one
// keys on a period, so it cannot fire again on already normalized text.
var periodAbbreviations = []abbreviation{
	{regexp.MustCompile(`§+`), " section "},
	{regexp.MustCompile(`\bg\s?\.\s?r\s?\.\s?(?:nos?\s?\.|number)?`), " gr number "},
	{regexp.MustCompile(`\br\.\s?a\b\.?`), " republic act "},
	{regexp.MustCompile(`\bb\.\s?p\b\.?`), " bp "},
	{regexp.MustCompile(`\bp\.\s?d\b\.?`), " pd "},
	{regexp.MustCompile(`\be\.\s?o\b\.?`), " executive order "},
	{regexp.MustCompile(`\ba\.\s?o\b\.?`), " administrative order "},
	{regexp.MustCompile(`\bnos?\.\s*(\d)`), " number ${1}"},
	{regexp.MustCompile(`\bpar\.`), " paragraph "},
	{regexp.MustCompile(`\bch\.`), " chapter "},
}

// wordAbbreviations are applied after punctuation is stripped. Their
// replacements never match any rule again.
var wordAbbreviations = []abbreviation{
	{regexp.MustCompile(`\bra\s*(\d)`), " republic act ${1}"},
	{regexp.MustCompile(`\bsubsecs?\b`), " subsection "},
	{regexp.MustCompile(`\bsecs?\b`), " section "},
	{regexp.MustCompile(`\barts?\b`), " article "},
	{regexp.MustCompile(`\bblgs?\b`), " bilang "},
}

// punctuationReplacer unifies smart punctuation and connector symbols.
var punctuationReplacer = strings.NewReplacer(
	"‘", "'", "’", "'", "‚", "'", "‛", "'", "′", "'",
	"“", `"`, "”", `"`, "„", `"`, "″", `"`,
	"‐", "-", "‑", "-", "‒", "-", "–", "-", "—", "-", "−", "-",
	" ", " ",
	"&", " and ",
	"/", " and ",
)

// Normalize returns the canonical form of raw legal text.
//
// Steps, in order: lowercase, strip diacritics, unify smart punctuation,
// expand & and / to "and", expand legal abbreviations, drop punctuation
// other than ( ) -, collapse whitespace, and strip a trailing "s" from
// alphabetic words longer than three letters unless they end in "ss".
func Normalize(raw string) string {
	if raw == "" {
		return ""
	}

	s := foldDiacritics(strings.ToLower(raw))
	s = punctuationReplacer.Replace(s)
	for _, a := range periodAbbreviations {
		s = a.re.ReplaceAllString(s, a.repl)
	}
	s = stripPunctuation(s)
	for _, a := range wordAbbreviations {
		s = a.re.ReplaceAllString(s, a.repl)
	}

	fields := strings.Fields(s)
	out := fields[:0]
	for _, f := range fields {
		f = strings.Trim(f, "-")
		if strings.Trim(f, "()") == "" {
			continue
		}
		out = append(out, Singularize(f))
	}
	return strings.Join(out, " ")
}

// foldDiacritics removes combining marks ("ñ" becomes "n").
func foldDiacritics(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return folded
}

// stripPunctuation keeps letters, digits, whitespace and ( ) -.
// Apostrophes are removed outright so possessives stay one word.
func stripPunctuation(s string) string {
	var sb strings.Builder
	sb.Grow(len(s))
	for _, r := range s {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r):
			sb.WriteRune(r)
		case r == '(' || r == ')' || r == '-':
			sb.WriteRune(r)
		case r == '\'':
		default:
			sb.WriteByte(' ')
		}
	}
	return sb.String()
}

// Singularize applies the naive plural rule to one word.
func Singularize(word string) string {
	if len(word) <= 3 || !strings.HasSuffix(word, "s") || strings.HasSuffix(word, "ss") {
		return word
	}
	for _, r := range word {
		if !unicode.IsLetter(r) {
			return word
		}
	}
	return word[:len(word)-1]
}

// Tokens splits normalized text on whitespace.
func Tokens(normalized string) []string {
	return strings.Fields(normalized)
}

// stopwords are dropped from content tokens. Entries are in normalized
// form, so "does" appears as "doe" and "this" as "thi".
var stopwords = map[string]bool{
	"a": true, "an": true, "the": true, "of": true, "in": true, "on": true,
	"for": true, "to": true, "and": true, "or": true, "is": true, "are": true,
	"be": true, "what": true, "who": true, "when": true, "where": true,
	"why": true, "how": true, "which": true, "doe": true, "do": true,
	"can": true, "me": true, "my": true, "thi": true, "that": true,
	"there": true, "with": true, "under": true, "by": true, "at": true,
	"as": true, "it": true, "its": true, "was": true, "were": true,
	"about": true, "please": true, "tell": true, "explain": true,
	"mean": true, "if": true, "any": true,
	// Filipino function words common in mixed-language queries.
	"ano": true, "ang": true, "ng": true, "sa": true, "mga": true,
	"ba": true, "po": true,
}

// IsStopword reports whether a normalized token carries no content.
func IsStopword(token string) bool {
	return stopwords[token]
}

// ContentTokens returns the tokens of normalized text without stopwords.
// If every token is a stopword the full token list is returned.
func ContentTokens(normalized string) []string {
	tokens := Tokens(normalized)
	content := make([]string, 0, len(tokens))
	for _, t := range tokens {
		if !stopwords[t] {
			content = append(content, t)
		}
	}
	if len(content) == 0 {
		return tokens
	}
	return content
}

// Compact removes all whitespace.
func Compact(s string) string {
	return strings.Join(strings.Fields(s), "")
}

var (
	separatedLetter = regexp.MustCompile(`\b(\d+|[ivx]+)[\s-]([a-z])\b`)
	joinedLetter    = regexp.MustCompile(`\b(\d+)([a-z])\b`)
)

// Parenthetical rewrites sub-clause forms to one convention so that
// "5 a", "5-a" and "5a" all read as "5(a)".
func Parenthetical(s string) string {
	s = separatedLetter.ReplaceAllString(s, "${1}(${2})")
	return joinedLetter.ReplaceAllString(s, "${1}(${2})")
}
