package search

import (
	"regexp"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/Aman-CERP/amanlex/internal/corpus"
	"github.com/Aman-CERP/amanlex/internal/normalize"
)

// DefaultClassifierCacheSize bounds the shape cache.
const DefaultClassifierCacheSize = 10000

// Shape is what the query's phrasing says about the answer it wants.
type Shape struct {
	// Definitional is "what is X" phrasing.
	Definitional bool `json:"definitional,omitempty"`
	// Urgent is procedural phrasing of someone in the middle of an incident.
	Urgent bool `json:"urgent,omitempty"`
	// Threat is threat or violence phrasing.
	Threat bool `json:"threat,omitempty"`
	// Rights is "rights of X" phrasing.
	Rights bool `json:"rights,omitempty"`
	// StatuteName is a short query naming a law rather than asking about it.
	StatuteName bool `json:"statute_name,omitempty"`
	// TypeHints are entry types the phrasing points at, in table order.
	TypeHints []corpus.EntryType `json:"type_hints,omitempty"`
}

// HintsType reports whether t is among the type hints.
func (s Shape) HintsType(t corpus.EntryType) bool {
	for _, h := range s.TypeHints {
		if h == t {
			return true
		}
	}
	return false
}

// typeHint maps phrasing to the entry types it suggests.
type typeHint struct {
	phrases []string
	types   []corpus.EntryType
}

var typeHintTable = []typeHint{
	{
		phrases: []string{"element", "penalty", "penalties", "punishable", "punishment", "crime", "offense", "felony", "imprisonment", "fine", "liable"},
		types:   []corpus.EntryType{corpus.TypeStatuteSection, corpus.TypeCityOrdinanceSection},
	},
	{
		phrases: []string{"procedure", "procedural", "arrest", "arrested", "bail", "warrant", "inquest", "subpoena", "summons", "motion", "appeal", "complaint"},
		types:   []corpus.EntryType{corpus.TypeRuleOfCourt},
	},
	{
		phrases: []string{"rights", "karapatan"},
		types:   []corpus.EntryType{corpus.TypeRightsAdvisory, corpus.TypeConstitutionProvision},
	},
	{
		phrases: []string{"constitution", "constitutional", "bill of rights"},
		types:   []corpus.EntryType{corpus.TypeConstitutionProvision},
	},
	{
		phrases: []string{"circular", "memorandum circular", "advisory"},
		types:   []corpus.EntryType{corpus.TypeAgencyCircular},
	},
	{
		phrases: []string{"ordinance", "city", "municipal", "barangay"},
		types:   []corpus.EntryType{corpus.TypeCityOrdinanceSection},
	},
	{
		phrases: []string{"executive order", "proclamation", "administrative order"},
		types:   []corpus.EntryType{corpus.TypeExecutiveIssuance},
	},
	{
		phrases: []string{"doj", "department of justice", "prosecutor", "preliminary investigation"},
		types:   []corpus.EntryType{corpus.TypeDOJIssuance},
	},
	{
		phrases: []string{"sop", "pnp", "police operation", "operational procedure"},
		types:   []corpus.EntryType{corpus.TypePNPSOP},
	},
	{
		phrases: []string{"checklist", "what to do", "step"},
		types:   []corpus.EntryType{corpus.TypeIncidentChecklist},
	},
	{
		phrases: []string{"ruling", "jurisprudence", "supreme court", "gr number", "case law"},
		types:   []corpus.EntryType{corpus.TypeJurisprudence},
	},
}

var urgentPhrases = []string{
	"urgent", "emergency", "right now", "immediately", "help",
	"arrested", "being arrested", "detained", "detention", "custody",
	"inquest", "checkpoint", "police", "warrantless", "raid", "caught",
}

var threatPhrases = []string{
	"threat", "threaten", "threatened", "threatening", "kill", "killed",
	"murder", "hurt", "violence", "violent", "abuse", "abused", "assault",
	"harass", "harassed", "harassment", "stalk", "stalking", "rape",
	"weapon", "gun", "knife", "beat", "beaten", "beating", "hit me",
	"bugbog", "papatayin", "sinaktan",
}

var statuteWords = []string{"act", "law", "code", "decree", "ordinance", "batas pambansa", "republic act", "charter"}

var (
	definitionalPattern = regexp.MustCompile(`^(?:what (?:is|are|doe) |define |definition of |meaning of |ano ang )`)
	rightsPattern       = regexp.MustCompile(`\bright (?:of|to|against)\b|\bmy right\b|\bkarapatan\b`)
)

// maxStatuteNameTokens bounds how long a bare statute-name query can be.
const maxStatuteNameTokens = 6

// normalizedPhrases holds each phrase table in normalized form so that
// plural stripping in the normalizer cannot defeat a lookup.
type normalizedPhrases []string

func normalizeAll(phrases []string) normalizedPhrases {
	out := make(normalizedPhrases, 0, len(phrases))
	seen := make(map[string]bool, len(phrases))
	for _, p := range phrases {
		n := normalize.Normalize(p)
		if n != "" && !seen[n] {
			seen[n] = true
			out = append(out, n)
		}
	}
	return out
}

// in reports whether any phrase occurs on word boundaries in padded text.
func (p normalizedPhrases) in(padded string) bool {
	for _, ph := range p {
		if strings.Contains(padded, " "+ph+" ") {
			return true
		}
	}
	return false
}

type compiledHint struct {
	phrases normalizedPhrases
	types   []corpus.EntryType
}

// Classifier detects query shape from normalized text. Results are cached.
type Classifier struct {
	cache *lru.Cache[string, Shape]

	hints    []compiledHint
	urgent   normalizedPhrases
	threat   normalizedPhrases
	statutes normalizedPhrases
}

// NewClassifier creates a classifier with an LRU cache of the given size.
// A size of zero or less uses DefaultClassifierCacheSize.
func NewClassifier(cacheSize int) *Classifier {
	if cacheSize <= 0 {
		cacheSize = DefaultClassifierCacheSize
	}
	cache, _ := lru.New[string, Shape](cacheSize)

	c := &Classifier{
		cache:    cache,
		urgent:   normalizeAll(urgentPhrases),
		threat:   normalizeAll(threatPhrases),
		statutes: normalizeAll(statuteWords),
	}
	for _, h := range typeHintTable {
		c.hints = append(c.hints, compiledHint{phrases: normalizeAll(h.phrases), types: h.types})
	}
	return c
}

// Classify returns the shape of normalized query text.
func (c *Classifier) Classify(normalized string) Shape {
	if normalized == "" {
		return Shape{}
	}
	if s, ok := c.cache.Get(normalized); ok {
		return s
	}

	s := c.classify(normalized)
	c.cache.Add(normalized, s)
	return s
}

func (c *Classifier) classify(normalized string) Shape {
	padded := " " + normalized + " "
	tokens := normalize.Tokens(normalized)

	s := Shape{
		Definitional: definitionalPattern.MatchString(normalized + " "),
		Urgent:       c.urgent.in(padded),
		Threat:       c.threat.in(padded),
		Rights:       rightsPattern.MatchString(normalized),
	}

	if len(tokens) <= maxStatuteNameTokens {
		s.StatuteName = c.statutes.in(padded) || hasAntiPrefix(tokens)
	}

	seen := make(map[corpus.EntryType]bool)
	for _, h := range c.hints {
		if !h.phrases.in(padded) {
			continue
		}
		for _, t := range h.types {
			if !seen[t] {
				seen[t] = true
				s.TypeHints = append(s.TypeHints, t)
			}
		}
	}
	return s
}

func hasAntiPrefix(tokens []string) bool {
	for _, t := range tokens {
		if strings.HasPrefix(t, "anti-") {
			return true
		}
	}
	return false
}
