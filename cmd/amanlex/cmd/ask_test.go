package cmd

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAskCmd_ExtractiveAnswer(t *testing.T) {
	// Given: no generation provider configured
	dir := testEnv(t)

	// When
	out, err := run(t, dir, "ask", "Article 308", "--format", "json")

	// Then: the answer is taken from the top entry and cites it
	require.NoError(t, err)
	var resp struct {
		Answer  string `json:"answer"`
		Outcome string `json:"outcome"`
		Sources []struct {
			EntryID string `json:"entry_id"`
		} `json:"sources"`
		Generated bool `json:"generated"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp), out)
	assert.Equal(t, "answer", resp.Outcome)
	assert.False(t, resp.Generated)
	assert.Contains(t, resp.Answer, "Revised Penal Code, Article 308")
	require.NotEmpty(t, resp.Sources)
	assert.Equal(t, "RPC-308", resp.Sources[0].EntryID)
}

func TestAskCmd_RefusesUnknownTopic(t *testing.T) {
	dir := testEnv(t)

	out, err := run(t, dir, "ask", "quantum chromodynamics")

	require.NoError(t, err)
	assert.Contains(t, out, "I don't know.")
}

func TestAskCmd_StreamPrintsAnswerAndSources(t *testing.T) {
	dir := testEnv(t)

	out, err := run(t, dir, "ask", "Article 308", "--stream")

	require.NoError(t, err)
	assert.Contains(t, out, "Revised Penal Code, Article 308")
	assert.Contains(t, out, "Sources")
}

func TestAskCmd_InvalidFilter(t *testing.T) {
	dir := testEnv(t)

	_, err := run(t, dir, "ask", "theft", "--status", "draft")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown status")
}
