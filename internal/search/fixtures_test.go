package search

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/Aman-CERP/amanlex/internal/corpus"
)

func verified() *bool {
	v := true
	return &v
}

func date(s string) corpus.Date {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return corpus.Date{Time: t}
}

// fixtureEntries is a small corpus covering each citation grammar.
func fixtureEntries() []*corpus.Entry {
	return []*corpus.Entry{
		{
			ID:                "RPC-308",
			Type:              corpus.TypeStatuteSection,
			Title:             "Theft",
			CanonicalCitation: "Revised Penal Code, Article 308",
			Summary:           "Theft is committed by any person who, with intent to gain but without violence or intimidation, takes personal property of another without consent.",
			Tags:              []string{"theft", "property", "crime"},
			LawFamily:         "Revised Penal Code",
			ArticleNo:         "308",
			Status:            corpus.StatusActive,
			EffectiveDate:     date("1932-01-01"),
			Verified:          verified(),
			Jurisdiction:      "PH",
		},
		{
			ID:                "RPC-309",
			Type:              corpus.TypeStatuteSection,
			Title:             "Penalties for theft",
			CanonicalCitation: "Revised Penal Code, Article 309",
			Summary:           "The penalty for theft depends on the value of the property stolen.",
			Tags:              []string{"theft", "penalty"},
			LawFamily:         "Revised Penal Code",
			ArticleNo:         "309",
			Status:            corpus.StatusActive,
			EffectiveDate:     date("1932-01-01"),
			Jurisdiction:      "PH",
		},
		{
			ID:                "RPC-293",
			Type:              corpus.TypeStatuteSection,
			Title:             "Robbery",
			CanonicalCitation: "Revised Penal Code, Article 293",
			Summary:           "Robbery is the taking of personal property belonging to another with violence against or intimidation of persons.",
			Tags:              []string{"robbery", "property", "crime"},
			LawFamily:         "Revised Penal Code",
			ArticleNo:         "293",
			Status:            corpus.StatusActive,
			EffectiveDate:     date("1932-01-01"),
			Jurisdiction:      "PH",
		},
		{
			ID:                "ROC-114-7",
			Type:              corpus.TypeRuleOfCourt,
			Title:             "Capital offense not bailable",
			CanonicalCitation: "Rules of Court, Rule 114, Section 7",
			Summary:           "No person charged with a capital offense punishable by reclusion perpetua shall be admitted to bail when evidence of guilt is strong.",
			Tags:              []string{"bail", "criminal procedure"},
			LawFamily:         "Rules of Court",
			RuleNo:            "114",
			SectionNo:         "7",
			Status:            corpus.StatusActive,
			EffectiveDate:     date("2000-12-01"),
			Jurisdiction:      "PH",
		},
		{
			ID:                "ROC-114-1",
			Type:              corpus.TypeRuleOfCourt,
			Title:             "Bail defined",
			CanonicalCitation: "Rules of Court, Rule 114, Section 1",
			Summary:           "Bail is the security given for the release of a person in custody of the law.",
			Tags:              []string{"bail", "criminal procedure"},
			LawFamily:         "Rules of Court",
			RuleNo:            "114",
			SectionNo:         "1",
			Status:            corpus.StatusActive,
			EffectiveDate:     date("2000-12-01"),
			Jurisdiction:      "PH",
		},
		{
			ID:                "ROC-113-5",
			Type:              corpus.TypeRuleOfCourt,
			Title:             "Arrest without warrant; when lawful",
			CanonicalCitation: "Rules of Court, Rule 113, Section 5",
			Summary:           "A peace officer may arrest a person without a warrant when the person is caught in the act of committing an offense.",
			Tags:              []string{"arrest", "warrant", "criminal procedure"},
			LawFamily:         "Rules of Court",
			RuleNo:            "113",
			SectionNo:         "5",
			Status:            corpus.StatusActive,
			EffectiveDate:     date("2000-12-01"),
			Jurisdiction:      "PH",
		},
		{
			ID:                "CONST-III-2",
			Type:              corpus.TypeConstitutionProvision,
			Title:             "Right against unreasonable searches and seizures",
			CanonicalCitation: "1987 Constitution, Article III, Section 2",
			Summary:           "The right of the people to be secure against unreasonable searches and seizures shall be inviolable.",
			Tags:              []string{"search", "seizure", "warrant", "rights"},
			LawFamily:         "1987 Constitution",
			ArticleNo:         "III",
			SectionNo:         "2",
			Status:            corpus.StatusActive,
			EffectiveDate:     date("1987-02-02"),
			Jurisdiction:      "PH",
		},
		{
			ID:                "RA-9262-5",
			Type:              corpus.TypeStatuteSection,
			Title:             "Acts of violence against women and their children",
			CanonicalCitation: "Republic Act No. 9262, Section 5",
			Summary:           "The crime of violence against women and their children is committed through causing physical harm or threatening to cause harm.",
			Tags:              []string{"vawc", "violence", "women"},
			LawFamily:         "Anti-Violence Against Women and Their Children Act",
			SectionID:         "5",
			Status:            corpus.StatusActive,
			EffectiveDate:     date("2004-03-08"),
			Jurisdiction:      "PH",
		},
	}
}

func fixtureCorpus() *corpus.Corpus {
	return corpus.MustNew(fixtureEntries()...)
}

// fakeReranker returns canned results or an error.
type fakeReranker struct {
	results func(documents []string) []RerankResult
	err     error
	panics  bool
	delay   time.Duration
	calls   atomic.Int32
}

func (f *fakeReranker) Rerank(ctx context.Context, _ string, documents []string, _ int) ([]RerankResult, error) {
	f.calls.Add(1)
	if f.panics {
		panic("reranker exploded")
	}
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.results(documents), nil
}

func (f *fakeReranker) Available(context.Context) bool { return true }

func (f *fakeReranker) Close() error { return nil }

// reverseResults ranks the last document first.
func reverseResults(documents []string) []RerankResult {
	out := make([]RerankResult, len(documents))
	for i := range documents {
		idx := len(documents) - 1 - i
		out[i] = RerankResult{Index: idx, Score: 1 - float64(i)*0.1, Document: documents[idx]}
	}
	return out
}
