package search

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Aman-CERP/amanlex/internal/corpus"
)

func gateCandidates(n int) []*Candidate {
	out := make([]*Candidate, n)
	for i := range out {
		out[i] = &Candidate{Entry: &corpus.Entry{ID: string(rune('a' + i))}}
	}
	return out
}

func TestGate_RefusesLowConfidence(t *testing.T) {
	// Given: weak signals and no citation
	g := NewGate(DefaultGateConfig())
	in := GateInput{Candidates: gateCandidates(1), MaxVector: 0.10, MaxLexical: 0.05, MaxFinal: 0.05}

	// When: decided
	d := g.Decide(in)

	// Then: refuse
	assert.Equal(t, OutcomeRefuse, d.Outcome)
	assert.False(t, d.Answerable())
	assert.InDelta(t, 0.09, d.Confidence, 1e-9)
}

func TestGate_HighConfidenceSkipsRerank(t *testing.T) {
	g := NewGate(DefaultGateConfig())
	in := GateInput{Candidates: gateCandidates(3), MaxVector: 0.95, MaxLexical: 0.2, MaxFinal: 0.6}

	d := g.Decide(in)

	assert.Equal(t, OutcomeAnswer, d.Outcome)
	assert.True(t, d.SkipRerank)
}

func TestGate_AnswerBelowHighConfidenceKeepsRerank(t *testing.T) {
	g := NewGate(DefaultGateConfig())
	in := GateInput{Candidates: gateCandidates(2), MaxVector: 0.6}

	d := g.Decide(in)

	assert.Equal(t, OutcomeAnswer, d.Outcome)
	assert.False(t, d.SkipRerank)
}

func TestGate_NoCandidatesRefuses(t *testing.T) {
	d := NewGate(DefaultGateConfig()).Decide(GateInput{MaxVector: 0.99})
	assert.Equal(t, OutcomeRefuse, d.Outcome)
}

func TestGate_ThreatIntercept(t *testing.T) {
	g := NewGate(DefaultGateConfig())

	// Given: threat phrasing with weak semantic support
	d := g.Decide(GateInput{Candidates: gateCandidates(3), MaxVector: 0.2, MaxLexical: 0.9, Shape: Shape{Threat: true}})
	assert.Equal(t, OutcomeSafetyAdvisory, d.Outcome)
	assert.Equal(t, SafetyAdvisory, d.Advisory)

	// Given: threat phrasing the corpus covers well
	d = g.Decide(GateInput{Candidates: gateCandidates(3), MaxVector: 0.7, Shape: Shape{Threat: true}})
	assert.Equal(t, OutcomeAnswer, d.Outcome)
}

func TestGate_ShapeRulesLowerThreshold(t *testing.T) {
	floors := DefaultGateConfig().Floors
	tests := []struct {
		name  string
		in    GateInput
		floor float64
	}{
		{"citation", GateInput{HasCitation: true}, floors.Citation},
		{"urgent", GateInput{Shape: Shape{Urgent: true}}, floors.Urgent},
		{"broad", GateInput{Candidates: gateCandidates(5)}, floors.Broad},
		{"filtered low similarity", GateInput{Filtered: true, MaxVector: 0.1}, floors.Filtered},
		{"rights", GateInput{Shape: Shape{Rights: true}}, floors.Rights},
		{"definitional", GateInput{Shape: Shape{Definitional: true}}, floors.Definitional},
		{"statute name", GateInput{Shape: Shape{StatuteName: true}}, floors.StatuteName},
	}

	g := NewGate(DefaultGateConfig())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.in.Candidates == nil {
				tt.in.Candidates = gateCandidates(1)
			}
			d := g.Decide(tt.in)
			assert.InDelta(t, tt.floor, d.Threshold, 1e-9)
			assert.LessOrEqual(t, d.Threshold, DefaultGateConfig().BaseThreshold)
		})
	}
}

func TestGate_LowestTriggeredFloorWins(t *testing.T) {
	g := NewGate(DefaultGateConfig())
	in := GateInput{
		Candidates:  gateCandidates(1),
		HasCitation: true,
		Shape:       Shape{Definitional: true, Urgent: true},
		MaxLexical:  0.125,
	}

	d := g.Decide(in)

	// Then: citation has the lowest floor and 0.125 x 0.8 clears it
	assert.InDelta(t, DefaultGateConfig().Floors.Citation, d.Threshold, 1e-9)
	assert.Equal(t, OutcomeAnswer, d.Outcome)
}

func TestGate_FilteredRuleIgnoresStrongVector(t *testing.T) {
	g := NewGate(DefaultGateConfig())
	d := g.Decide(GateInput{Candidates: gateCandidates(1), Filtered: true, MaxVector: 0.5})
	assert.InDelta(t, DefaultGateConfig().BaseThreshold, d.Threshold, 1e-9)
}

func TestNewGateInput_TakesMaxima(t *testing.T) {
	cands := []*Candidate{
		{Entry: &corpus.Entry{ID: "a"}, VectorSim: 0.3, LexicalSim: 0.9, Score: 0.2},
		{Entry: &corpus.Entry{ID: "b"}, VectorSim: 0.7, LexicalSim: 0.1, Score: 0.8},
	}
	in := NewGateInput(cands, &Analysis{Citation: CitationPattern{Article: "308"}}, false)

	assert.Equal(t, 0.7, in.MaxVector)
	assert.Equal(t, 0.9, in.MaxLexical)
	assert.Equal(t, 0.8, in.MaxFinal)
	assert.True(t, in.HasCitation)
}
