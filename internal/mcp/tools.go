package mcp

import (
	"github.com/Aman-CERP/amanlex/internal/answer"
)

// AskInput is the input schema for the ask tool.
type AskInput struct {
	Question     string `json:"question" jsonschema:"the legal question to answer"`
	Type         string `json:"type,omitempty" jsonschema:"entry type, e.g. statute_section, rule_of_court, jurisprudence"`
	Jurisdiction string `json:"jurisdiction,omitempty" jsonschema:"jurisdiction, e.g. PH or a city name"`
	Status       string `json:"status,omitempty" jsonschema:"legal status: active, amended or repealed"`
	Verified     *bool  `json:"verified,omitempty" jsonschema:"only entries whose verification state matches"`
}

// AskOutput is the output schema for the ask tool.
type AskOutput struct {
	Answer     string          `json:"answer" jsonschema:"grounded answer, or I don't know. when the evidence is weak"`
	Outcome    string          `json:"outcome" jsonschema:"answer, refuse or safety_advisory"`
	Confidence float64         `json:"confidence" jsonschema:"score of the top source"`
	Sources    []answer.Source `json:"sources" jsonschema:"entries the answer is grounded on"`
	Generated  bool            `json:"generated" jsonschema:"true when a language model wrote the answer"`
	Degraded   []string        `json:"degraded,omitempty" jsonschema:"backends that failed and were skipped"`
}

// SearchEntriesInput is the input schema for the search_entries tool.
type SearchEntriesInput struct {
	Query        string `json:"query" jsonschema:"a question, keywords or a citation such as Art. 308 RPC"`
	Limit        int    `json:"limit,omitempty" jsonschema:"maximum number of results, default 10"`
	Type         string `json:"type,omitempty" jsonschema:"entry type, e.g. statute_section, rule_of_court, jurisprudence"`
	Jurisdiction string `json:"jurisdiction,omitempty" jsonschema:"jurisdiction, e.g. PH or a city name"`
	Status       string `json:"status,omitempty" jsonschema:"legal status: active, amended or repealed"`
	Verified     *bool  `json:"verified,omitempty" jsonschema:"only entries whose verification state matches"`
}

// SearchEntriesOutput is the output schema for the search_entries tool.
type SearchEntriesOutput struct {
	Results     []answer.Source `json:"results" jsonschema:"ranked entries"`
	Total       int             `json:"total" jsonschema:"number of ranked candidates before the limit"`
	Outcome     string          `json:"outcome" jsonschema:"answer, refuse or safety_advisory"`
	Suggestion  string          `json:"suggestion,omitempty" jsonschema:"closest entry title when few results were found"`
	Suggestions []string        `json:"suggestions,omitempty" jsonschema:"other close entry titles"`
}

// CorpusStatusInput is the input schema for the corpus_status tool.
type CorpusStatusInput struct{}

// CorpusStatusOutput is the output schema for the corpus_status tool.
type CorpusStatusOutput struct {
	Entries  int              `json:"entries"`
	ByType   map[string]int   `json:"by_type"`
	Verified int              `json:"verified"`
	Version  string           `json:"version"`
	Queries  *QueryStatistics `json:"queries,omitempty"`
}

// QueryStatistics summarizes session query telemetry.
type QueryStatistics struct {
	Total       int64   `json:"total"`
	RefusalRate float64 `json:"refusal_rate"`
	Summary     string  `json:"summary"`
}
