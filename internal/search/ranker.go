package search

import (
	"sort"
	"unicode/utf8"

	"github.com/Aman-CERP/amanlex/internal/normalize"
)

// Signals is the request-level input the score rules read.
type Signals struct {
	Analysis *Analysis
	// Topics are the query's content tokens compared against entry tags.
	Topics []string
}

// NewSignals derives ranking signals from an analyzed query.
func NewSignals(a *Analysis) Signals {
	s := Signals{Analysis: a}
	seen := make(map[string]bool)
	for _, t := range a.Content {
		if len(t) < 3 || seen[t] {
			continue
		}
		if _, num := normalize.NumeralVariant(t); num {
			continue
		}
		seen[t] = true
		s.Topics = append(s.Topics, t)
	}
	return s
}

// ScoreRule is one additive term of the composite score. Rules are pure:
// they read the candidate and never modify it.
type ScoreRule struct {
	Name  string
	Apply func(c *Candidate, s Signals) float64
}

// Ranker computes composite scores and the final order.
type Ranker struct {
	rules []ScoreRule
}

// NewRanker builds the rule chain for cfg. Rules run in this order: blend,
// type hint, topic overlap, channel boosts, statute citation, exact citation.
func NewRanker(cfg Config) *Ranker {
	b := cfg.Boosts
	w := cfg.Weights
	threshold := cfg.SimThreshold

	return &Ranker{rules: []ScoreRule{
		{Name: "blend", Apply: func(c *Candidate, _ Signals) float64 {
			if c.VectorSim >= threshold {
				return w.HighVector*c.VectorSim + w.HighLexical*c.LexicalSim
			}
			return w.LowVector*c.VectorSim + w.LowLexical*c.LexicalSim
		}},
		{Name: "type_hint", Apply: func(c *Candidate, s Signals) float64 {
			if s.Analysis != nil && s.Analysis.Shape.HintsType(c.Entry.Type) {
				return b.TypeHint
			}
			return 0
		}},
		{Name: "topic_overlap", Apply: func(c *Candidate, s Signals) float64 {
			if c.prep == nil {
				return 0
			}
			n := 0
			for _, t := range s.Topics {
				if c.prep.tags[t] {
					n++
				}
			}
			return min(b.TopicOverlapCap, float64(n)*b.TopicOverlap)
		}},
		{Name: "boosts", Apply: func(c *Candidate, _ Signals) float64 {
			return c.Boosts.Total()
		}},
		{Name: "statute_citation", Apply: func(c *Candidate, s Signals) float64 {
			if c.prep == nil || s.Analysis == nil {
				return 0
			}
			for _, ref := range s.Analysis.Citation.StatuteRefs() {
				if containsPhrase(c.prep.citationParen, ref) {
					return b.StatuteCitation
				}
			}
			return 0
		}},
		// The lexical similarity saturates at 1; an exact title+citation
		// match keeps its full fixed score here so nothing can outrank it.
		{Name: "exact_citation", Apply: func(c *Candidate, _ Signals) float64 {
			if c.ExactCitation {
				return b.ExactCitationScore / LexicalSaturation
			}
			return 0
		}},
	}}
}

// Rules returns the rule chain in application order.
func (r *Ranker) Rules() []ScoreRule {
	return r.rules
}

// Score returns the composite score of c.
func (r *Ranker) Score(c *Candidate, s Signals) float64 {
	total := 0.0
	for _, rule := range r.rules {
		total += rule.Apply(c, s)
	}
	return total
}

// Rank scores every candidate and sorts them into the final order.
func (r *Ranker) Rank(cands []*Candidate, s Signals) []*Candidate {
	for _, c := range cands {
		c.Score = r.Score(c, s)
	}
	SortCandidates(cands)
	return cands
}

// SortCandidates orders by score descending, then verified first, active
// first, newer effective date first, shorter title first, and entry id.
func SortCandidates(cands []*Candidate) {
	sort.Slice(cands, func(i, j int) bool {
		return less(cands[i], cands[j])
	})
}

func less(a, b *Candidate) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	ea, eb := a.Entry, b.Entry
	if va, vb := ea.IsVerified(), eb.IsVerified(); va != vb {
		return va
	}
	if aa, ab := ea.IsActive(), eb.IsActive(); aa != ab {
		return aa
	}
	if !ea.EffectiveDate.Equal(eb.EffectiveDate.Time) {
		return ea.EffectiveDate.After(eb.EffectiveDate.Time)
	}
	if la, lb := utf8.RuneCountInString(ea.Title), utf8.RuneCountInString(eb.Title); la != lb {
		return la < lb
	}
	return ea.ID < eb.ID
}
