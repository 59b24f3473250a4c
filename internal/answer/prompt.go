package answer

import (
	"fmt"
	"strings"

	"github.com/Aman-CERP/amanlex/internal/search"
)

// maxPromptChars keeps prompts within small local model context windows.
const maxPromptChars = 12000

// maxSourceChars bounds the text quoted from one entry.
const maxSourceChars = 1500

const systemInstruction = "You are a careful assistant for Philippine law. Answer only from the provisions given below. " +
	"Cite each provision you rely on by its citation in brackets. If the provisions do not answer the question, reply exactly: " +
	search.RefusalAnswer

// BuildPrompt renders the grounded prompt for question over sources.
func BuildPrompt(question string, sources []*search.Candidate) string {
	var sb strings.Builder
	sb.WriteString(systemInstruction)
	sb.WriteString("\n\nPROVISIONS:\n")

	for i, c := range sources {
		var block strings.Builder
		e := c.Entry
		fmt.Fprintf(&block, "\n[%d] %s", i+1, e.Title)
		if e.CanonicalCitation != "" {
			fmt.Fprintf(&block, " (%s)", e.CanonicalCitation)
		}
		block.WriteString("\n")
		text := e.Summary
		if e.BodyText != "" {
			text = strings.TrimSpace(text + "\n" + e.BodyText)
		}
		if len(text) > maxSourceChars {
			text = text[:maxSourceChars] + "..."
		}
		block.WriteString(text)
		block.WriteString("\n")

		if sb.Len()+block.Len() > maxPromptChars && i > 0 {
			break
		}
		sb.WriteString(block.String())
	}

	fmt.Fprintf(&sb, "\nQUESTION: %s\n\nANSWER:", strings.TrimSpace(question))
	return sb.String()
}

// Extractive composes an answer from the top source without a model.
func Extractive(sources []*search.Candidate) string {
	if len(sources) == 0 {
		return search.RefusalAnswer
	}
	e := sources[0].Entry
	text := e.Summary
	if text == "" {
		text = e.BodyText
	}
	if len(text) > maxSourceChars {
		text = text[:maxSourceChars] + "..."
	}
	ref := e.Title
	if e.CanonicalCitation != "" {
		ref = e.CanonicalCitation + ", " + e.Title
	}
	if text == "" {
		return fmt.Sprintf("See %s.", ref)
	}
	return fmt.Sprintf("%s [%s]", strings.TrimSpace(text), ref)
}
