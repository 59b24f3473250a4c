package cmd

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	amanerrors "github.com/Aman-CERP/amanlex/internal/errors"
)

type searchResult struct {
	Results []struct {
		EntryID string `json:"entry_id"`
	} `json:"results"`
	Total       int               `json:"total"`
	Outcome     string            `json:"outcome"`
	Suggestions []string          `json:"suggestions"`
	Explain     map[string]string `json:"explain"`
}

func searchJSONOut(t *testing.T, dir string, args ...string) searchResult {
	t.Helper()
	out, err := run(t, dir, append([]string{"search", "--format", "json"}, args...)...)
	require.NoError(t, err)
	var res searchResult
	require.NoError(t, json.Unmarshal([]byte(out), &res), out)
	return res
}

func TestSearchCmd_ArticleLookup(t *testing.T) {
	// Given: a corpus with the theft article
	dir := testEnv(t)

	// When: searching by article citation
	res := searchJSONOut(t, dir, "Article 308")

	// Then: the article ranks first and the gate answers
	require.NotEmpty(t, res.Results)
	assert.Equal(t, "RPC-308", res.Results[0].EntryID)
	assert.Equal(t, "answer", res.Outcome)
	assert.NotNil(t, res.Suggestions)
}

func TestSearchCmd_FiltersAndLimit(t *testing.T) {
	dir := testEnv(t)

	res := searchJSONOut(t, dir, "bail", "--type", "rule_of_court", "-n", "1")

	require.Len(t, res.Results, 1)
	assert.Equal(t, "ROC-114-7", res.Results[0].EntryID)
}

func TestSearchCmd_Explain(t *testing.T) {
	dir := testEnv(t)

	res := searchJSONOut(t, dir, "theft", "--explain")

	require.NotEmpty(t, res.Results)
	assert.Contains(t, res.Explain, res.Results[0].EntryID)
}

func TestSearchCmd_TextOutput(t *testing.T) {
	dir := testEnv(t)

	out, err := run(t, dir, "search", "Article 308")

	require.NoError(t, err)
	assert.Contains(t, out, "RPC-308")
	assert.Contains(t, out, "Revised Penal Code, Article 308")
}

func TestSearchCmd_CorpusFlagOverridesConfig(t *testing.T) {
	dir := testEnv(t)
	other := t.TempDir()

	out, err := run(t, other, "--corpus", filepath.Join(dir, "corpus.json"), "search", "Article 308", "--format", "json")

	require.NoError(t, err)
	assert.Contains(t, out, "RPC-308")
}

func TestSearchCmd_Errors(t *testing.T) {
	dir := testEnv(t)

	tests := []struct {
		name     string
		args     []string
		wantCode string
		wantMsg  string
	}{
		{"missing query", []string{"search"}, "", "requires at least 1 arg"},
		{"unknown format", []string{"search", "theft", "--format", "xml"}, "", "unknown format"},
		{"negative limit", []string{"search", "theft", "-n", "-1"}, "", "non-negative"},
		{"unknown type", []string{"search", "theft", "--type", "blog"}, amanerrors.ErrCodeInvalidFilter, ""},
		{"blank query", []string{"search", "   "}, amanerrors.ErrCodeQueryEmpty, ""},
		{"missing corpus", []string{"--corpus", filepath.Join(dir, "none.json"), "search", "theft"}, amanerrors.ErrCodeFileNotFound, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := run(t, dir, tt.args...)
			require.Error(t, err)
			if tt.wantCode != "" {
				assert.Equal(t, tt.wantCode, amanerrors.GetCode(err))
			}
			if tt.wantMsg != "" {
				assert.Contains(t, err.Error(), tt.wantMsg)
			}
		})
	}
}
