package corpus

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	amanerrors "github.com/Aman-CERP/amanlex/internal/errors"
)

const sampleCorpus = `[
  {
    "entry_id": "RPC-308",
    "type": "statute_section",
    "title": "Theft",
    "canonical_citation": "Revised Penal Code, Article 308",
    "article_number": "308",
    "body_text": "Any person who takes personal property of another without consent.",
    "status": "active",
    "effective_date": "1932-01-01",
    "verified": true,
    "jurisdiction": "PH"
  },
  {
    "entry_id": "ROC-114-7",
    "type": "rule_of_court",
    "title": "Bail, a matter of right",
    "canonical_citation": "Rules of Court, Rule 114, Section 7",
    "rule_no": "114",
    "section_no": "7",
    "effective_date": "2000-12",
    "jurisdiction": "ph"
  },
  {
    "entry_id": "RPC-OLD",
    "type": "statute_section",
    "title": "Old provision",
    "canonical_citation": "Revised Penal Code, Article 1",
    "status": "repealed",
    "effective_date": null,
    "verified": false
  }
]`

func TestParse_DecodesEntriesAndAliases(t *testing.T) {
	c, err := Parse([]byte(sampleCorpus))

	require.NoError(t, err)
	assert.Equal(t, 3, c.Len())

	theft, ok := c.Get("RPC-308")
	require.True(t, ok)
	assert.Equal(t, "308", theft.ArticleNo, "article_number alias")
	assert.Contains(t, theft.BodyText, "personal property", "body_text alias")
	assert.Equal(t, "1932-01-01", theft.EffectiveDate.String())
	assert.True(t, theft.IsVerified())
	assert.True(t, theft.IsActive())
	assert.Equal(t, "Theft Revised Penal Code, Article 308", theft.TitleCitation())

	bail, _ := c.Get("ROC-114-7")
	assert.Equal(t, "2000-12-01", bail.EffectiveDate.String())
	assert.True(t, bail.IsActive(), "missing status is active")
	assert.False(t, bail.IsVerified(), "missing verified is unverified")

	old, _ := c.Get("RPC-OLD")
	assert.Empty(t, old.EffectiveDate.String())
	assert.False(t, old.IsActive())

	ids := make([]string, 0, c.Len())
	for _, e := range c.All() {
		ids = append(ids, e.ID)
	}
	assert.Equal(t, []string{"RPC-308", "ROC-114-7", "RPC-OLD"}, ids, "load order is kept")
}

func TestParse_Rejects(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"not an array", `{"entry_id":"x"}`},
		{"missing id", `[{"type":"statute_section"}]`},
		{"unknown type", `[{"entry_id":"x","type":"blog_post"}]`},
		{"unknown status", `[{"entry_id":"x","type":"statute_section","status":"draft"}]`},
		{"bad date", `[{"entry_id":"x","type":"statute_section","effective_date":"yesterday"}]`},
		{"duplicate id", `[{"entry_id":"x","type":"statute_section"},{"entry_id":"x","type":"jurisprudence"}]`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.data))
			require.Error(t, err)
			assert.Equal(t, amanerrors.ErrCodeCorpusInvalid, amanerrors.GetCode(err))
		})
	}
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "entries.json")
	require.NoError(t, os.WriteFile(path, []byte(sampleCorpus), 0o644))

	c, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 3, c.Len())

	_, err = LoadFile(filepath.Join(dir, "missing.json"))
	assert.Equal(t, amanerrors.ErrCodeFileNotFound, amanerrors.GetCode(err))
}

func TestNew_SkipsNilEntries(t *testing.T) {
	c, err := New([]*Entry{nil, {ID: "a", Type: TypeJurisprudence}})

	require.NoError(t, err)
	assert.Equal(t, 1, c.Len())
	_, ok := c.Get("missing")
	assert.False(t, ok)
}

func TestMustNew_PanicsOnDuplicate(t *testing.T) {
	assert.Panics(t, func() {
		MustNew(&Entry{ID: "a", Type: TypeJurisprudence}, &Entry{ID: "a", Type: TypeJurisprudence})
	})
}

func TestFilters(t *testing.T) {
	c, err := Parse([]byte(sampleCorpus))
	require.NoError(t, err)
	yes, no := true, false

	tests := []struct {
		name string
		f    Filters
		want []string
	}{
		{"zero matches all", Filters{}, []string{"RPC-308", "ROC-114-7", "RPC-OLD"}},
		{"type", Filters{Type: TypeRuleOfCourt}, []string{"ROC-114-7"}},
		{"jurisdiction ignores case", Filters{Jurisdiction: "PH"}, []string{"RPC-308", "ROC-114-7"}},
		{"status", Filters{Status: StatusRepealed}, []string{"RPC-OLD"}},
		{"verified", Filters{Verified: &yes}, []string{"RPC-308"}},
		{"unverified includes unreviewed", Filters{Verified: &no}, []string{"ROC-114-7", "RPC-OLD"}},
		{"and logic", Filters{Type: TypeStatuteSection, Jurisdiction: "ph"}, []string{"RPC-308"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got []string
			for _, e := range c.Filter(tt.f) {
				got = append(got, e.ID)
			}
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.f == (Filters{}), tt.f.IsZero())
		})
	}
}

func TestFind(t *testing.T) {
	c, err := Parse([]byte(sampleCorpus))
	require.NoError(t, err)

	got := c.Find(Filters{Type: TypeStatuteSection}, func(e *Entry) bool { return e.ArticleNo == "308" })

	require.Len(t, got, 1)
	assert.Equal(t, "RPC-308", got[0].ID)
}

func TestParseFilters(t *testing.T) {
	yes := true

	f, err := ParseFilters(" Rule_Of_Court ", " PH ", "ACTIVE", &yes)
	require.NoError(t, err)
	assert.Equal(t, Filters{Type: TypeRuleOfCourt, Jurisdiction: "PH", Status: StatusActive, Verified: &yes}, f)

	f, err = ParseFilters("", "", "", nil)
	require.NoError(t, err)
	assert.True(t, f.IsZero())

	_, err = ParseFilters("blog", "", "", nil)
	assert.Equal(t, amanerrors.ErrCodeInvalidFilter, amanerrors.GetCode(err))
	assert.True(t, amanerrors.IsValidation(err))

	_, err = ParseFilters("", "", "draft", nil)
	assert.Equal(t, amanerrors.ErrCodeInvalidFilter, amanerrors.GetCode(err))
}

func TestDate_MarshalRoundTrip(t *testing.T) {
	var d Date
	require.NoError(t, d.UnmarshalJSON([]byte(`"2019-06-30T00:00:00Z"`)))
	out, err := d.MarshalJSON()
	require.NoError(t, err)
	assert.JSONEq(t, `"2019-06-30"`, string(out))

	out, err = Date{}.MarshalJSON()
	require.NoError(t, err)
	assert.Equal(t, `""`, string(out))
}

func TestEntryType_Traits(t *testing.T) {
	assert.True(t, TypeStatuteSection.IsStatuteLike())
	assert.True(t, TypeCityOrdinanceSection.IsStatuteLike())
	assert.False(t, TypeRuleOfCourt.IsStatuteLike())
	assert.True(t, TypeConstitutionProvision.HasArticles())
	assert.False(t, TypeJurisprudence.HasArticles())
	assert.False(t, EntryType("").Valid())
	assert.False(t, Status("").Valid())
}
