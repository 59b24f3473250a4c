package search

// Outcome is the terminal state of the confidence gate.
type Outcome string

const (
	OutcomeAnswer         Outcome = "answer"
	OutcomeRefuse         Outcome = "refuse"
	OutcomeSafetyAdvisory Outcome = "safety_advisory"
)

// RefusalAnswer is returned instead of a generated answer on refusal.
const RefusalAnswer = "I don't know."

// SafetyAdvisory is returned for threat or violence phrasing that the
// corpus does not cover well.
const SafetyAdvisory = "If you or someone else is in immediate danger, call 911 or go to the nearest police station. " +
	"For violence against women and children you can also reach the PNP Women and Children Protection Desk " +
	"or your barangay VAW desk. You may ask again with the specific law or situation once you are safe."

// GateInput is what the gate decides on.
type GateInput struct {
	Candidates []*Candidate
	MaxVector  float64
	MaxLexical float64
	MaxFinal   float64
	Shape      Shape
	// HasCitation is set for rule+section, article or statute references.
	HasCitation bool
	// Filtered is set when the request carried metadata filters.
	Filtered bool
}

// NewGateInput derives the maxima from ranked candidates.
func NewGateInput(cands []*Candidate, a *Analysis, filtered bool) GateInput {
	in := GateInput{Candidates: cands, Filtered: filtered}
	if a != nil {
		in.Shape = a.Shape
		in.HasCitation = !a.Citation.IsZero()
	}
	for _, c := range cands {
		in.MaxVector = max(in.MaxVector, c.VectorSim)
		in.MaxLexical = max(in.MaxLexical, c.LexicalSim)
		in.MaxFinal = max(in.MaxFinal, c.Score)
	}
	return in
}

// Decision is the gate result.
type Decision struct {
	Outcome    Outcome  `json:"outcome"`
	Confidence float64  `json:"confidence"`
	Threshold  float64  `json:"threshold"`
	Reasons    []string `json:"reasons,omitempty"`
	// SkipRerank is set when confidence is already high.
	SkipRerank bool   `json:"skip_rerank,omitempty"`
	Advisory   string `json:"advisory,omitempty"`
}

// Answerable reports whether an answer may be generated.
func (d Decision) Answerable() bool {
	return d.Outcome == OutcomeAnswer
}

// Gate decides between answering and refusing.
type Gate struct {
	cfg GateConfig
}

// NewGate creates a gate.
func NewGate(cfg GateConfig) *Gate {
	return &Gate{cfg: cfg}
}

// Decide applies the threat intercept, then the adaptive threshold. Every
// shape rule may only lower the threshold, never raise it, and the lowest
// triggered floor wins.
func (g *Gate) Decide(in GateInput) Decision {
	cfg := g.cfg

	if in.Shape.Threat && in.MaxVector < cfg.ThreatMaxSimilarity {
		return Decision{
			Outcome:  OutcomeSafetyAdvisory,
			Reasons:  []string{"threat phrasing with weak semantic match"},
			Advisory: SafetyAdvisory,
		}
	}

	d := Decision{
		Confidence: max(in.MaxVector*cfg.VectorWeight, in.MaxLexical*cfg.LexicalWeight, in.MaxFinal*cfg.FinalWeight),
		Threshold:  cfg.BaseThreshold,
	}

	lower := func(floor float64, reason string) {
		if floor < d.Threshold {
			d.Threshold = floor
		}
		d.Reasons = append(d.Reasons, reason)
	}
	if in.HasCitation {
		lower(cfg.Floors.Citation, "citation query")
	}
	if in.Shape.Urgent {
		lower(cfg.Floors.Urgent, "urgent procedural query")
	}
	if len(in.Candidates) >= cfg.BroadCandidates {
		lower(cfg.Floors.Broad, "broad query")
	}
	if in.Filtered && in.MaxVector < cfg.BaseThreshold {
		lower(cfg.Floors.Filtered, "filtered low-similarity query")
	}
	if in.Shape.Rights {
		lower(cfg.Floors.Rights, "rights query")
	}
	if in.Shape.Definitional {
		lower(cfg.Floors.Definitional, "definitional query")
	}
	if in.Shape.StatuteName {
		lower(cfg.Floors.StatuteName, "statute name query")
	}

	switch {
	case len(in.Candidates) == 0:
		d.Outcome = OutcomeRefuse
		d.Reasons = append(d.Reasons, "no candidates")
	case d.Confidence < d.Threshold:
		d.Outcome = OutcomeRefuse
		d.Reasons = append(d.Reasons, "confidence below threshold")
	default:
		d.Outcome = OutcomeAnswer
		d.SkipRerank = d.Confidence >= cfg.HighConfidence
	}
	return d
}
