// Package errors defines the coded errors raised by AmanLex.
//
// Codes read ERR_NNN_NAME. The hundreds digit selects the category:
// 1 config, 2 io, 3 upstream model or index, 4 caller input, 5 internal.
package errors

import "strings"

// Category groups codes by who has to act on them.
type Category string

const (
	CategoryConfig     Category = "CONFIG"
	CategoryIO         Category = "IO"
	CategoryNetwork    Category = "NETWORK"
	CategoryValidation Category = "VALIDATION"
	CategoryInternal   Category = "INTERNAL"
)

// Severity says whether the caller can keep going.
type Severity string

const (
	SeverityFatal   Severity = "FATAL"
	SeverityError   Severity = "ERROR"
	SeverityWarning Severity = "WARNING"
	SeverityInfo    Severity = "INFO"
)

const (
	ErrCodeConfigInvalid = "ERR_102_CONFIG_INVALID"

	ErrCodeFileNotFound  = "ERR_201_FILE_NOT_FOUND"
	ErrCodeCorpusInvalid = "ERR_207_CORPUS_INVALID"
	ErrCodeGoldInvalid   = "ERR_208_GOLD_INVALID"

	// Upstream failures are retryable; the engine degrades around them.
	ErrCodeEmbeddingUnavailable  = "ERR_304_EMBEDDING_UNAVAILABLE"
	ErrCodeVectorUnavailable     = "ERR_305_VECTOR_UNAVAILABLE"
	ErrCodeGenerationUnavailable = "ERR_306_GENERATION_UNAVAILABLE"

	ErrCodeInvalidInput  = "ERR_401_INVALID_INPUT"
	ErrCodeQueryEmpty    = "ERR_404_QUERY_EMPTY"
	ErrCodeInvalidFilter = "ERR_407_INVALID_FILTER"

	ErrCodeInternal     = "ERR_501_INTERNAL"
	ErrCodeIndexFailed  = "ERR_505_INDEX_FAILED"
	ErrCodeRerankFailed = "ERR_506_RERANK_FAILED"
)

var categoryByDigit = map[byte]Category{
	'1': CategoryConfig,
	'2': CategoryIO,
	'3': CategoryNetwork,
	'4': CategoryValidation,
}

// categoryFromCode reads the hundreds digit. Malformed codes are internal.
func categoryFromCode(code string) Category {
	num, ok := strings.CutPrefix(code, "ERR_")
	if !ok || len(num) < 3 {
		return CategoryInternal
	}
	if c, ok := categoryByDigit[num[0]]; ok {
		return c
	}
	return CategoryInternal
}

func severityFromCode(code string) Severity {
	switch {
	case code == ErrCodeIndexFailed:
		return SeverityFatal
	case isRetryableCode(code):
		return SeverityWarning
	default:
		return SeverityError
	}
}

func isRetryableCode(code string) bool {
	switch code {
	case ErrCodeEmbeddingUnavailable, ErrCodeVectorUnavailable, ErrCodeGenerationUnavailable:
		return true
	}
	return false
}
