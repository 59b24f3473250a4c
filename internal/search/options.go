package search

import "time"

// Retrieval defaults. The numeric boosts and floors below are empirically
// tuned; changing them is a ranking exercise, not a correctness fix.
const (
	DefaultSimThreshold          = 0.55
	DefaultLexicalSkipSimilarity = 0.82
	DefaultFullScanLimit         = 5000
	DefaultLimit                 = 10
	DefaultMaxLimit              = 100
	DefaultNearestK              = 20
	DefaultSuggestionCount       = 5

	// ExactCitationScore is the lexical score of an entry whose title and
	// citation together equal the query.
	ExactCitationScore = 1000.0

	// LexicalSaturation is the lexical score that maps to similarity 1.
	LexicalSaturation = 60.0

	// LowResultThreshold is the result count below which suggestions are
	// produced.
	LowResultThreshold = 3
)

// BlendWeights are the linear blend of vector and lexical similarity. The
// High pair applies when vector similarity reaches the similarity threshold.
type BlendWeights struct {
	HighVector  float64 `yaml:"high_vector" json:"high_vector"`
	HighLexical float64 `yaml:"high_lexical" json:"high_lexical"`
	LowVector   float64 `yaml:"low_vector" json:"low_vector"`
	LowLexical  float64 `yaml:"low_lexical" json:"low_lexical"`
}

// DefaultBlendWeights returns 0.65/0.25 above the threshold and 0.35/0.45 below.
func DefaultBlendWeights() BlendWeights {
	return BlendWeights{HighVector: 0.65, HighLexical: 0.25, LowVector: 0.35, LowLexical: 0.45}
}

// BoostConfig holds the additive boosts of the composite ranker.
type BoostConfig struct {
	Citation           float64 `yaml:"citation" json:"citation"`
	Article            float64 `yaml:"article" json:"article"`
	Direct             float64 `yaml:"direct" json:"direct"`
	Nearby             float64 `yaml:"nearby" json:"nearby"`
	Keyword            float64 `yaml:"keyword" json:"keyword"`
	TypeHint           float64 `yaml:"type_hint" json:"type_hint"`
	TopicOverlap       float64 `yaml:"topic_overlap" json:"topic_overlap"`
	TopicOverlapCap    float64 `yaml:"topic_overlap_cap" json:"topic_overlap_cap"`
	StatuteCitation    float64 `yaml:"statute_citation" json:"statute_citation"`
	ExactCitationScore float64 `yaml:"exact_citation_score" json:"exact_citation_score"`
}

// DefaultBoostConfig returns the tuned boosts.
func DefaultBoostConfig() BoostConfig {
	return BoostConfig{
		Citation:           0.50,
		Article:            0.35,
		Direct:             0.25,
		Nearby:             0.10,
		Keyword:            0.05,
		TypeHint:           0.05,
		TopicOverlap:       0.03,
		TopicOverlapCap:    0.09,
		StatuteCitation:    0.20,
		ExactCitationScore: ExactCitationScore,
	}
}

// GateFloors are the lowest thresholds each query-shape rule may set.
type GateFloors struct {
	Citation     float64 `yaml:"citation" json:"citation"`
	Urgent       float64 `yaml:"urgent" json:"urgent"`
	Broad        float64 `yaml:"broad" json:"broad"`
	Filtered     float64 `yaml:"filtered" json:"filtered"`
	Rights       float64 `yaml:"rights" json:"rights"`
	Definitional float64 `yaml:"definitional" json:"definitional"`
	StatuteName  float64 `yaml:"statute_name" json:"statute_name"`
}

// GateConfig configures the confidence gate.
type GateConfig struct {
	BaseThreshold       float64    `yaml:"base_threshold" json:"base_threshold"`
	HighConfidence      float64    `yaml:"high_confidence" json:"high_confidence"`
	Floors              GateFloors `yaml:"floors" json:"floors"`
	ThreatMaxSimilarity float64    `yaml:"threat_max_similarity" json:"threat_max_similarity"`

	// BroadCandidates is the candidate count at which a query counts as broad.
	BroadCandidates int `yaml:"broad_candidates" json:"broad_candidates"`

	// Confidence weights for max vector, max lexical and max final score.
	VectorWeight  float64 `yaml:"vector_weight" json:"vector_weight"`
	LexicalWeight float64 `yaml:"lexical_weight" json:"lexical_weight"`
	FinalWeight   float64 `yaml:"final_weight" json:"final_weight"`
}

// DefaultGateConfig returns the tuned gate.
func DefaultGateConfig() GateConfig {
	return GateConfig{
		BaseThreshold:  0.35,
		HighConfidence: 0.85,
		Floors: GateFloors{
			Citation:     0.08,
			Urgent:       0.12,
			Broad:        0.20,
			Filtered:     0.15,
			Rights:       0.15,
			Definitional: 0.18,
			StatuteName:  0.15,
		},
		ThreatMaxSimilarity: 0.35,
		BroadCandidates:     5,
		VectorWeight:        0.9,
		LexicalWeight:       0.8,
		FinalWeight:         0.7,
	}
}

// RerankConfig bounds the rerank stage.
type RerankConfig struct {
	TopN    int           `yaml:"top_n" json:"top_n"`
	Timeout time.Duration `yaml:"timeout" json:"timeout"`
}

// DefaultRerankConfig returns top 10 under a 3s budget.
func DefaultRerankConfig() RerankConfig {
	return RerankConfig{TopN: 10, Timeout: 3 * time.Second}
}

// Config configures the Engine.
type Config struct {
	SimThreshold float64
	Weights      BlendWeights

	// LexicalSkipSimilarity is the best vector similarity at which the
	// lexical channel is skipped, when SkipLexicalOnHighSimilarity is set.
	LexicalSkipSimilarity       float64
	SkipLexicalOnHighSimilarity bool

	// FullScanLimit is the corpus size up to which every entry is scored
	// lexically, not only index candidates.
	FullScanLimit int

	DefaultLimit int
	MaxLimit     int
	NearestK     int

	// LexicalCandidates is the per-variant lexical index fetch size.
	LexicalCandidates int

	SuggestionCount int

	Boosts BoostConfig
	Gate   GateConfig
	Rerank RerankConfig
}

// DefaultConfig returns the tuned engine configuration.
func DefaultConfig() Config {
	return Config{
		SimThreshold:          DefaultSimThreshold,
		Weights:               DefaultBlendWeights(),
		LexicalSkipSimilarity: DefaultLexicalSkipSimilarity,
		FullScanLimit:         DefaultFullScanLimit,
		DefaultLimit:          DefaultLimit,
		MaxLimit:              DefaultMaxLimit,
		NearestK:              DefaultNearestK,
		LexicalCandidates:     50,
		SuggestionCount:       DefaultSuggestionCount,
		Boosts:                DefaultBoostConfig(),
		Gate:                  DefaultGateConfig(),
		Rerank:                DefaultRerankConfig(),
	}
}

// limit clamps a requested limit to the configured bounds.
func (c Config) limit(requested int) int {
	if requested <= 0 {
		return c.DefaultLimit
	}
	if requested > c.MaxLimit {
		return c.MaxLimit
	}
	return requested
}
