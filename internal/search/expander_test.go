package search

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/amanlex/internal/normalize"
)

func expand(t *testing.T, e *Expander, raw string) []VariantSet {
	t.Helper()
	sets := e.Expand(normalize.Tokens(normalize.Normalize(raw)))
	require.NotEmpty(t, sets)
	return sets
}

func TestExpander_AcronymsAndPhrases(t *testing.T) {
	e := NewExpander()

	// Given: an acronym token
	// When: expanded
	sets := expand(t, e, "rpc")

	// Then: it carries its phrase
	assert.True(t, sets[0].Contains("revised penal code"))

	// Given: the phrase spelled out
	sets = expand(t, e, "revised penal code article 308")

	// Then: every covered token carries the acronym, the rest do not
	for i := 0; i < 3; i++ {
		assert.True(t, sets[i].Contains("rpc"), "token %q", sets[i].Token)
	}
	assert.False(t, sets[3].Contains("rpc"))
}

func TestExpander_TokenVariants(t *testing.T) {
	tests := []struct {
		name  string
		query string
		index int
		want  []string
		not   []string
	}{
		{name: "anti prefix allowlisted", query: "anti-hazing", want: []string{"hazing"}},
		// "versus" normalizes to "versu", like the text it is matched against.
		{name: "versus forms", query: "people v santos", index: 1, want: []string{"vs", normalize.Normalize("versus")}},
		{name: "versus spelled out", query: "people versus santos", index: 1, want: []string{"v", "vs"}},
		{name: "roman to arabic", query: "article iv", index: 1, want: []string{"4"}},
		{name: "arabic to roman", query: "article 3", index: 1, want: []string{"iii"}},
		{name: "single digit one", query: "rule 1", index: 1, want: []string{"i"}},
		{name: "two digit arabic", query: "rule 12", index: 1, want: []string{"xii"}},
		{name: "single letter c is not a numeral", query: "paragraph c", index: 1, not: []string{"100"}},
		{name: "glued clause", query: "section 5(a)", index: 1, want: []string{"5a", "5-a"}},
		{name: "glued roman needs separator", query: "via", index: 0, not: []string{"6a", "6(a)"}},
		{name: "separate number and letter", query: "section 5 a", index: 1, want: []string{"5a", "5(a)", "5-a"}},
	}

	e := NewExpander()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sets := expand(t, e, tt.query)
			require.Greater(t, len(sets), tt.index)
			for _, w := range tt.want {
				assert.True(t, sets[tt.index].Contains(w), "want %q in %v", w, sets[tt.index].Forms)
			}
			for _, n := range tt.not {
				assert.False(t, sets[tt.index].Contains(n), "unexpected %q in %v", n, sets[tt.index].Forms)
			}
		})
	}
}

func TestExpander_UnlistedAntiPrefixKeepsToken(t *testing.T) {
	// Given: an anti- word outside the allowlist
	sets := expand(t, NewExpander(), "antibiotics")

	// Then: only the token itself
	assert.Equal(t, []string{"antibiotic"}, sets[0].Forms)
}

func TestExpander_CustomSynonyms(t *testing.T) {
	// Given: a custom acronym
	e := NewExpander(WithCustomSynonyms(map[string][]string{"lto": {"land transportation office"}}))

	// When: the phrase appears
	sets := expand(t, e, "land transportation office license")

	// Then: the acronym is attached to the phrase tokens
	assert.True(t, sets[0].Contains("lto"))
	assert.False(t, sets[3].Contains("lto"))
}

func TestExpander_TextVariantsIncludeAcronyms(t *testing.T) {
	v := NewExpander().TextVariants(normalize.Normalize("Revised Penal Code"))
	assert.True(t, v["rpc"])
	assert.True(t, v["penal"])
}

func TestExpandedQuery_DeduplicatesInOrder(t *testing.T) {
	sets := []VariantSet{
		{Token: "rpc", Forms: []string{"rpc", "revised penal code"}},
		{Token: "theft", Forms: []string{"theft", "rpc"}},
	}
	assert.Equal(t, "rpc revised penal code theft", ExpandedQuery(sets))
}
