package mcp

import (
	"fmt"
	"strings"

	"github.com/Aman-CERP/amanlex/internal/answer"
	"github.com/Aman-CERP/amanlex/internal/corpus"
	"github.com/Aman-CERP/amanlex/internal/search"
)

// FormatAnswer renders an answer and its sources as markdown.
func FormatAnswer(question string, a *answer.Answer) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "## %s\n\n", question)
	sb.WriteString(a.Answer)
	sb.WriteString("\n\n")

	if len(a.Sources) == 0 {
		return sb.String()
	}
	if a.Outcome == search.OutcomeRefuse {
		sb.WriteString("**Closest entries (below the confidence threshold):**\n\n")
	} else {
		sb.WriteString("**Sources:**\n\n")
	}
	for i, s := range a.Sources {
		fmt.Fprintf(&sb, "%d. %s (score: %.2f)\n", i+1, sourceRef(s), s.FinalScore)
	}
	return sb.String()
}

// FormatEntries renders ranked search results as markdown.
func FormatEntries(query string, out SearchEntriesOutput) string {
	if len(out.Results) == 0 {
		msg := fmt.Sprintf("No entries found for \"%s\"", query)
		if out.Suggestion != "" {
			msg += fmt.Sprintf(". Did you mean \"%s\"?", out.Suggestion)
		}
		return msg
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "## Entries for \"%s\"\n\n", query)
	fmt.Fprintf(&sb, "Found %d result", len(out.Results))
	if len(out.Results) != 1 {
		sb.WriteString("s")
	}
	sb.WriteString("\n\n")

	for i, s := range out.Results {
		fmt.Fprintf(&sb, "### %d. %s (score: %.2f)\n", i+1, sourceRef(s), s.FinalScore)
		fmt.Fprintf(&sb, "`%s` · %s", s.EntryID, s.Type)
		if !s.Verified {
			sb.WriteString(" · unverified")
		}
		sb.WriteString("\n\n")
		if s.Summary != "" {
			sb.WriteString(s.Summary)
			sb.WriteString("\n\n")
		}
	}
	if len(out.Suggestions) > 0 {
		fmt.Fprintf(&sb, "See also: %s\n", strings.Join(out.Suggestions, "; "))
	}
	return sb.String()
}

// FormatEntry renders one entry in full.
func FormatEntry(e *corpus.Entry) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "# %s\n\n", e.Title)
	if e.CanonicalCitation != "" {
		fmt.Fprintf(&sb, "**Citation:** %s\n", e.CanonicalCitation)
	}
	fmt.Fprintf(&sb, "**Type:** %s\n", e.Type)
	if e.Status != "" {
		fmt.Fprintf(&sb, "**Status:** %s\n", e.Status)
	}
	if e.Jurisdiction != "" {
		fmt.Fprintf(&sb, "**Jurisdiction:** %s\n", e.Jurisdiction)
	}
	sb.WriteString("\n")
	if e.Summary != "" {
		sb.WriteString(e.Summary)
		sb.WriteString("\n\n")
	}
	if e.BodyText != "" {
		sb.WriteString(e.BodyText)
		sb.WriteString("\n\n")
	}
	writeList(&sb, "Elements", e.Elements)
	writeList(&sb, "Penalties", e.Penalties)
	writeList(&sb, "Sources", e.SourceURLs)
	return strings.TrimRight(sb.String(), "\n") + "\n"
}

func writeList(sb *strings.Builder, heading string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(sb, "## %s\n\n", heading)
	for _, it := range items {
		fmt.Fprintf(sb, "- %s\n", it)
	}
	sb.WriteString("\n")
}

func sourceRef(s answer.Source) string {
	if s.CanonicalCitation == "" {
		return s.Title
	}
	return s.CanonicalCitation + ", " + s.Title
}

// clampLimit ensures limit is within bounds.
func clampLimit(limit, defaultVal, lo, hi int) int {
	if limit <= 0 {
		return defaultVal
	}
	return min(max(limit, lo), hi)
}
