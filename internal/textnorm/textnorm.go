// Package textnorm prepares extracted CV text before it leaves the process: PII is redacted first,
// then unicode is normalized and whitespace collapsed. Redaction patterns are written against
// the raw text, so the order of Clean's steps must not change.
package textnorm

import (
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"
)

const (
	EmailPlaceholder = "[REDACTED_EMAIL]"
	PhonePlaceholder = "[REDACTED_PHONE]"
)

var (
	emailRe      = regexp.MustCompile(`\b[\w.-]+@[\w.-]+\.\w+\b`)
	longDigitsRe = regexp.MustCompile(`\b\d{10,}\b`)

	blankLinesRe = regexp.MustCompile(`\n\s*\n`)
	spacesRe     = regexp.MustCompile(`[ \t]+`)
)

var asciiFolder = strings.NewReplacer(
	"‘", "'",
	"’", "'",
	"“", `"`,
	"”", `"`,
	"–", "-",
	"—", "-",
)

// Redact replaces e-mail addresses and digit runs of ten or more with placeholders.
func Redact(text string) string {
	text = emailRe.ReplaceAllString(text, EmailPlaceholder)
	return longDigitsRe.ReplaceAllString(text, PhonePlaceholder)
}

// Normalize applies NFKC and folds smart quotes and dashes to ASCII.
func Normalize(text string) string {
	return asciiFolder.Replace(norm.NFKC.String(text))
}

// CollapseWhitespace squeezes blank-line runs into one newline and space runs into one space.
func CollapseWhitespace(text string) string {
	text = blankLinesRe.ReplaceAllString(text, "\n")
	text = spacesRe.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}

// Clean runs Redact, Normalize and CollapseWhitespace in that order.
func Clean(text string) string {
	return CollapseWhitespace(Normalize(Redact(text)))
}
