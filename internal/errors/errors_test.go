package errors

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_DerivesClassificationFromCode(t *testing.T) {
	tests := []struct {
		code      string
		category  Category
		severity  Severity
		retryable bool
	}{
		{ErrCodeConfigInvalid, CategoryConfig, SeverityError, false},
		{ErrCodeCorpusInvalid, CategoryIO, SeverityError, false},
		{ErrCodeEmbeddingUnavailable, CategoryNetwork, SeverityWarning, true},
		{ErrCodeVectorUnavailable, CategoryNetwork, SeverityWarning, true},
		{ErrCodeGenerationUnavailable, CategoryNetwork, SeverityWarning, true},
		{ErrCodeInvalidFilter, CategoryValidation, SeverityError, false},
		{ErrCodeQueryEmpty, CategoryValidation, SeverityError, false},
		{ErrCodeIndexFailed, CategoryInternal, SeverityFatal, false},
		{"ERR_9", CategoryInternal, SeverityError, false},
		{"BOGUS_402", CategoryInternal, SeverityError, false},
	}
	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			ae := New(tt.code, "msg", nil)
			assert.Equal(t, tt.category, ae.Category)
			assert.Equal(t, tt.severity, ae.Severity)
			assert.Equal(t, tt.retryable, ae.Retryable)
		})
	}
}

func TestAmanError_ErrorAndUnwrap(t *testing.T) {
	// Given: a corpus error caused by a decode failure
	cause := errors.New("unexpected end of JSON input")
	ae := New(ErrCodeCorpusInvalid, "entries.json is not a JSON array", cause)

	// Then: the text carries the code and the cause stays reachable
	assert.Equal(t, "[ERR_207_CORPUS_INVALID] entries.json is not a JSON array", ae.Error())
	assert.ErrorIs(t, ae, cause)
	assert.Equal(t, cause, errors.Unwrap(ae))
}

func TestAmanError_IsComparesCodes(t *testing.T) {
	a := New(ErrCodeInvalidFilter, "unknown type", nil)
	b := New(ErrCodeInvalidFilter, "unknown status", nil)
	c := New(ErrCodeQueryEmpty, "blank", nil)

	assert.ErrorIs(t, a, b)
	assert.NotErrorIs(t, a, c)
	assert.False(t, a.Is(errors.New("plain")))
}

func TestAmanError_DetailsAndSuggestionChain(t *testing.T) {
	ae := New(ErrCodeInvalidFilter, "unknown jurisdiction", nil).
		WithDetail("field", "jurisdiction").
		WithDetail("value", "mars").
		WithSuggestion("Use PH")

	assert.Equal(t, map[string]string{"field": "jurisdiction", "value": "mars"}, ae.Details)
	assert.Equal(t, "Use PH", ae.Suggestion)
}

func TestWrap(t *testing.T) {
	assert.Nil(t, Wrap(ErrCodeInternal, nil))

	cause := errors.New("disk gone")
	ae := Wrap(ErrCodeIndexFailed, cause)
	require.NotNil(t, ae)
	assert.Equal(t, "disk gone", ae.Message)
	assert.ErrorIs(t, ae, cause)
}

func TestHelpers(t *testing.T) {
	assert.Equal(t, ErrCodeFileNotFound, IOError("read gold file", nil).Code)
	assert.Equal(t, ErrCodeInternal, InternalError("boom", nil).Code)

	empty := EmptyQueryError()
	assert.Equal(t, ErrCodeQueryEmpty, empty.Code)
	assert.True(t, IsValidation(empty))
	assert.Contains(t, empty.Suggestion, "Article 308")
}
