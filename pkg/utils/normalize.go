package utils

import (
	"regexp"
	"strings"
)

// Certain vector-based PDF extractors emit character-level spaced text:
// 'J A I N I   S O L A N K I' instead of 'JAINI SOLANKI', 'I B M' instead of
// 'IBM'. Pattern: 3+ single alpha chars each separated by exactly one space.
// Normal multi-letter words are left completely untouched.
var spacedWordRe = regexp.MustCompile(`\b(?:[A-Za-z] ){2,}[A-Za-z]\b`)

// NormalizeSpacedText collapses character-level spaced words back together.
// Applied at ingestion so embeddings are computed on real words, and again on
// generated answers so residual spacing never leaks to the caller.
func NormalizeSpacedText(text string) string {
	return spacedWordRe.ReplaceAllStringFunc(text, func(m string) string {
		return strings.ReplaceAll(m, " ", "")
	})
}

var (
	multiSpaceRe   = regexp.MustCompile(`[ \t]{2,}`)
	multiNewlineRe = regexp.MustCompile(`\n{3,}`)
)

// CollapseWhitespace squeezes runs of spaces/tabs to one space and runs of
// blank lines to a single blank line.
func CollapseWhitespace(text string) string {
	text = multiSpaceRe.ReplaceAllString(text, " ")
	text = multiNewlineRe.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}
