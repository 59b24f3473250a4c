package mcp

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Aman-CERP/amanlex/internal/answer"
	"github.com/Aman-CERP/amanlex/internal/corpus"
	"github.com/Aman-CERP/amanlex/internal/search"
)

var theftSource = answer.Source{
	EntryID:           "RPC-308",
	Type:              "statute_section",
	Title:             "Theft",
	CanonicalCitation: "Revised Penal Code, Art. 308",
	Summary:           "Taking personal property of another without violence.",
	FinalScore:        0.77,
	Verified:          true,
}

func TestFormatAnswer(t *testing.T) {
	t.Run("answer lists sources", func(t *testing.T) {
		a := &answer.Answer{Answer: "Theft is taking.", Outcome: search.OutcomeAnswer, Sources: []answer.Source{theftSource}}

		got := FormatAnswer("what is theft", a)

		assert.Contains(t, got, "## what is theft")
		assert.Contains(t, got, "**Sources:**")
		assert.Contains(t, got, "1. Revised Penal Code, Art. 308, Theft (score: 0.77)")
	})

	t.Run("refusal labels weak sources", func(t *testing.T) {
		a := &answer.Answer{Answer: search.RefusalAnswer, Outcome: search.OutcomeRefuse, Sources: []answer.Source{theftSource}}

		got := FormatAnswer("weather", a)

		assert.Contains(t, got, search.RefusalAnswer)
		assert.Contains(t, got, "below the confidence threshold")
	})

	t.Run("no sources", func(t *testing.T) {
		a := &answer.Answer{Answer: search.RefusalAnswer, Outcome: search.OutcomeRefuse}

		got := FormatAnswer("weather", a)

		assert.NotContains(t, got, "Sources")
	})
}

func TestFormatEntries(t *testing.T) {
	t.Run("empty with suggestion", func(t *testing.T) {
		got := FormatEntries("thef", SearchEntriesOutput{Suggestion: "Theft"})
		assert.Equal(t, `No entries found for "thef". Did you mean "Theft"?`, got)
	})

	t.Run("results", func(t *testing.T) {
		unverified := theftSource
		unverified.EntryID = "RPC-310"
		unverified.Title = "Qualified Theft"
		unverified.Verified = false

		got := FormatEntries("theft", SearchEntriesOutput{
			Results:     []answer.Source{theftSource, unverified},
			Suggestions: []string{"Robbery"},
		})

		assert.Contains(t, got, "Found 2 results")
		assert.Contains(t, got, "### 1. Revised Penal Code, Art. 308, Theft (score: 0.77)")
		assert.Equal(t, 1, strings.Count(got, "unverified"))
		assert.Contains(t, got, "See also: Robbery")
	})
}

func TestFormatEntry(t *testing.T) {
	e := &corpus.Entry{
		ID:                "RPC-308",
		Type:              corpus.TypeStatuteSection,
		Title:             "Theft",
		CanonicalCitation: "Revised Penal Code, Art. 308",
		Status:            corpus.StatusActive,
		BodyText:          "Theft is committed by any person who...",
		Elements:          []string{"taking of personal property", "belonging to another"},
		Penalties:         []string{"prision correccional"},
	}

	got := FormatEntry(e)

	assert.True(t, strings.HasPrefix(got, "# Theft\n"))
	assert.Contains(t, got, "**Citation:** Revised Penal Code, Art. 308")
	assert.Contains(t, got, "**Status:** active")
	assert.Contains(t, got, "## Elements\n\n- taking of personal property\n- belonging to another")
	assert.Contains(t, got, "## Penalties")
	assert.NotContains(t, got, "## Sources")
}

func TestClampLimit(t *testing.T) {
	assert.Equal(t, 10, clampLimit(0, 10, 1, 50))
	assert.Equal(t, 10, clampLimit(-3, 10, 1, 50))
	assert.Equal(t, 7, clampLimit(7, 10, 1, 50))
	assert.Equal(t, 50, clampLimit(500, 10, 1, 50))
}
