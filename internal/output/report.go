package output

import (
	"fmt"
	"strings"

	"github.com/Aman-CERP/amanlex/internal/answer"
	"github.com/Aman-CERP/amanlex/internal/eval"
	"github.com/Aman-CERP/amanlex/internal/search"
)

// Results prints a ranked search response.
func (w *Writer) Results(resp *search.Response, explain func(*search.Candidate) string) {
	s := w.styles
	if len(resp.Results) == 0 {
		w.Warningf("No entries found for %q", resp.Query)
	} else {
		w.Header(fmt.Sprintf("%d of %d results for %q", len(resp.Results), resp.Total, resp.Query))
	}

	for i, c := range resp.Results {
		e := c.Entry
		_, _ = fmt.Fprintf(w.out, "%2d. %s  %s\n", i+1, s.Header.Render(e.ID), e.Title)
		if e.CanonicalCitation != "" {
			_, _ = fmt.Fprintf(w.out, "    %s %s\n", s.Label.Render("citation:"), e.CanonicalCitation)
		}
		_, _ = fmt.Fprintf(w.out, "    %s %s  %s %.3f  %s %.3f  %s %s\n",
			s.Label.Render("score:"), s.Score.Render(fmt.Sprintf("%.3f", c.Score)),
			s.Label.Render("vec:"), c.VectorSim,
			s.Label.Render("lex:"), c.LexicalSim,
			s.Label.Render("via:"), c.Channels)
		if e.Summary != "" {
			_, _ = fmt.Fprintf(w.out, "    %s\n", s.Dim.Render(truncate(e.Summary, 100)))
		}
		if explain != nil {
			_, _ = fmt.Fprintf(w.out, "    %s\n", s.Dim.Render(explain(c)))
		}
	}

	d := resp.Decision
	_, _ = fmt.Fprintf(w.out, "\n%s %s (confidence %.3f, threshold %.3f)\n",
		s.Label.Render("gate:"), d.Outcome, d.Confidence, d.Threshold)
	if len(resp.Degraded) > 0 {
		w.Warningf("degraded channels: %s", strings.Join(resp.Degraded, ", "))
	}
	if resp.Suggestion != "" {
		_, _ = fmt.Fprintf(w.out, "%s %s\n", s.Label.Render("did you mean:"), resp.Suggestion)
		for _, alt := range resp.Suggestions[1:] {
			_, _ = fmt.Fprintf(w.out, "              %s\n", alt)
		}
	}
}

// Answer prints a conversational answer with its sources.
func (w *Writer) Answer(ans *answer.Answer) {
	w.Text(ans.Answer)
	w.Sources(ans.Sources)
}

// Sources prints the sources block of an answer.
func (w *Writer) Sources(sources []answer.Source) {
	if len(sources) == 0 {
		return
	}
	s := w.styles
	w.Newline()
	w.Header("Sources")
	for i, src := range sources {
		cite := src.CanonicalCitation
		if cite == "" {
			cite = src.EntryID
		}
		_, _ = fmt.Fprintf(w.out, "[%d] %s (%s) %s\n", i+1, src.Title, cite,
			s.Dim.Render(fmt.Sprintf("%.3f", src.FinalScore)))
	}
}

// Metrics prints an evaluation summary.
func (w *Writer) Metrics(res *eval.Result) {
	s := w.styles
	w.Header("Evaluation")
	rows := []struct {
		label string
		value string
	}{
		{"queries", fmt.Sprintf("%d", res.Total)},
		{"precision@1", fmt.Sprintf("%.3f", res.P1)},
		{"precision@3", fmt.Sprintf("%.3f", res.P3)},
		{"nDCG@10", fmt.Sprintf("%.3f", res.NDCG10)},
		{"duration", res.Duration.Round(1e6).String()},
	}
	for _, r := range rows {
		_, _ = fmt.Fprintf(w.out, "  %-12s %s\n", s.Label.Render(r.label), s.Score.Render(r.value))
	}
}

// Misses prints the miss analysis.
func (w *Writer) Misses(misses []eval.Miss, k int) {
	s := w.styles
	if len(misses) == 0 {
		w.Successf("Every expected entry ranked in the top %d", k)
		return
	}
	w.Header(fmt.Sprintf("%d queries missed expected entries in the top %d", len(misses), k))
	for _, m := range misses {
		_, _ = fmt.Fprintf(w.out, "\n%s\n", m.Query)
		_, _ = fmt.Fprintf(w.out, "  %s %s\n", s.Error.Render("missing:"), strings.Join(m.Missing, ", "))
		instead := "(nothing)"
		if len(m.RankedInstead) > 0 {
			instead = strings.Join(m.RankedInstead, ", ")
		}
		_, _ = fmt.Fprintf(w.out, "  %s %s\n", s.Label.Render("instead:"), instead)
	}
}
