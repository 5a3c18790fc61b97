package engine

import (
	"fmt"
	"strings"
)

// Prompt builders keep the instruction block SHORT: long multi-sentence rule
// lists are the primary source of echoed instruction text in small models.
// Every builder uses the exact labels "Answer:" / "Summary:" / "Comparison:"
// so the post-processor can split on them reliably.

const (
	// Character budgets per prompt section.
	maxContextChars = 1400 // leave room for question + instructions
	maxConvChars    = 400  // history budget
)

// truncate hard-truncates text to maxChars runes, adding an ellipsis. Cutting
// on a rune boundary keeps multi-byte text valid through the prompt.
func truncate(text string, maxChars int) string {
	runes := []rune(text)
	if len(runes) <= maxChars {
		return text
	}
	return strings.TrimRight(string(runes[:maxChars-3]), " \t\n") + "..."
}

func BuildAskPrompt(context, question, conversationContext string) string {
	ctx := truncate(context, maxContextChars)
	conv := strings.TrimSpace(conversationContext)
	if conv != "" {
		conv = truncate(conv, maxConvChars)
	}

	parts := []string{
		"Answer the question using only the document below. Be brief and direct.",
		"",
	}
	if conv != "" {
		parts = append(parts, "History: "+conv, "")
	}
	parts = append(parts,
		"Document: "+ctx,
		"",
		"Question: "+question,
		"Answer:",
	)
	return strings.Join(parts, "\n")
}

func BuildSummarizePrompt(context string) string {
	ctx := truncate(context, maxContextChars)

	return strings.Join([]string{
		"Summarize the document below in 3 to 5 key bullet points. Use only the provided text.",
		"",
		"Document: " + ctx,
		"",
		"Summary:",
	}, "\n")
}

// CompareSection is one document's retrieved context for a comparison prompt.
type CompareSection struct {
	Label   string
	Context string
}

func BuildComparePrompt(sections []CompareSection, question string) string {
	// Split the context budget evenly so one long document cannot starve
	// the others out of the prompt.
	perDoc := maxContextChars / len(sections)

	parts := []string{
		"Compare the documents below to answer the question. Use only the provided text.",
		"",
	}
	for i, s := range sections {
		parts = append(parts, fmt.Sprintf("Document %d (%s): %s", i+1, s.Label, truncate(s.Context, perDoc)), "")
	}
	parts = append(parts,
		"Question: "+question,
		"Comparison:",
	)
	return strings.Join(parts, "\n")
}
