package errors_test

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	amanerrors "github.com/Aman-CERP/amanlex/internal/errors"
)

// Wrapped AmanErrors keep their code and category through fmt.Errorf.
func TestErrorWrapping_ChainIsSearched(t *testing.T) {
	// Given: an empty-query error wrapped by a caller
	err := fmt.Errorf("ask: %w", amanerrors.EmptyQueryError())

	// When: inspecting the chain
	ae, ok := amanerrors.As(err)

	// Then: the structured error is found
	require.True(t, ok)
	assert.Equal(t, amanerrors.ErrCodeQueryEmpty, ae.Code)
	assert.Equal(t, amanerrors.ErrCodeQueryEmpty, amanerrors.GetCode(err))
	assert.True(t, amanerrors.IsValidation(err))
	assert.NotEmpty(t, ae.Suggestion)
}

func TestErrorWrapping_UpstreamErrorsAreRetryable(t *testing.T) {
	err := fmt.Errorf("vector channel: %w",
		amanerrors.New(amanerrors.ErrCodeEmbeddingUnavailable, "ollama unreachable", nil))

	assert.True(t, amanerrors.IsRetryable(err))
	assert.Equal(t, amanerrors.CategoryNetwork, amanerrors.GetCategory(err))
	assert.False(t, amanerrors.IsValidation(err))
}

func TestErrorWrapping_PlainErrors(t *testing.T) {
	err := fmt.Errorf("plain")

	_, ok := amanerrors.As(err)
	assert.False(t, ok)
	assert.Empty(t, amanerrors.GetCode(err))
	assert.False(t, amanerrors.IsRetryable(err))
}
