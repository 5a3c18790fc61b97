package engine

import (
	"regexp"
	"strings"

	"pdf-qa-be/pkg/utils"
)

// Models prompted with "Context:" blocks and "Answer:" markers sometimes echo
// those labels verbatim. ExtractFinalAnswer strips prompt echoes and returns
// only the clean, user-facing text. It never panics regardless of input.

var (
	answerMarkerRe = regexp.MustCompile(`(?is)(?:^|\n)\s*(?:Answer|Summary|Comparison)\s*[:\-]?\s*\n?(.*)`)

	echoLineRe = regexp.MustCompile(`(?i)^\s*(` +
		`Context\s*[:\-]|` +
		`Question\s*[:\-]|` +
		`Instructions?\s*[:\-]|` +
		`History\s*[:\-]|` +
		`Conversation\s+History\s*[:\-]|` +
		`Document(\s+\d+)?\s*(\([^)]*\))?\s*[:\-]|` +
		`Current\s+Question\s*[:\-]|` +
		`Answer the question using|` +
		`Summarize the document below|` +
		`Compare the documents below|` +
		`Use only the provided text` +
		`)`)

	duplicateLabelRe = regexp.MustCompile(`(?i)^(?:Answer|Summary|Comparison)\s*[:\-]\s*`)
)

const fallbackAnswer = "I could not find the answer in the document."

func ExtractFinalAnswer(llmOutput string) string {
	raw := llmOutput

	// 1. Keep only what follows the final-answer marker, if present.
	if m := answerMarkerRe.FindStringSubmatch(raw); m != nil {
		raw = strings.TrimSpace(m[1])
	}

	// 2. Drop lines that are clearly prompt or context echoes.
	var kept []string
	for _, line := range strings.Split(raw, "\n") {
		if echoLineRe.MatchString(line) {
			continue
		}
		kept = append(kept, line)
	}
	raw = strings.Join(kept, "\n")

	// 3. Collapse excessive whitespace.
	raw = utils.CollapseWhitespace(raw)

	// 4. Normalize residual character-level spacing ("N P T E L" -> "NPTEL").
	raw = utils.NormalizeSpacedText(raw)

	// 5. Strip a duplicated label the model emitted twice ("Answer: Answer: ...").
	raw = strings.TrimSpace(duplicateLabelRe.ReplaceAllString(raw, ""))

	// 6. Never return an empty string.
	if raw == "" {
		return fallbackAnswer
	}
	return raw
}

var numericKeywords = []string{
	"percent", "percentage", "%", "score", "marks", "ratio",
	"rate", "result", "grade", "cgpa", "gpa",
}

// IsNumericQuestion reports whether the question asks for a numeric figure,
// where answers tend to quote several intermediate values.
func IsNumericQuestion(question string) bool {
	q := strings.ToLower(question)
	for _, kw := range numericKeywords {
		if strings.Contains(q, kw) {
			return true
		}
	}
	return false
}

var percentageRe = regexp.MustCompile(`\b\d+(?:\.\d+)?%`)

// ExtractPercentage returns the last percentage figure in the text — the
// consolidated one when marks are listed before a total — or the text
// unchanged when none is present.
func ExtractPercentage(text string) string {
	matches := percentageRe.FindAllString(text, -1)
	if len(matches) == 0 {
		return text
	}
	return matches[len(matches)-1]
}
