// Package sanitize turns the service's markdown-ish answers into plain text that
// can be dropped into a text widget without further escaping.
//
// It is not a markdown parser. Transforms run in a fixed order so
// that link rewriting sees intact brackets before emphasis markers go.
package sanitize

import (
	"regexp"
	"strings"
)

// transform is one step of the pipeline
type transform struct {
	name  string
	apply func(string) string
}

var (
	// [text](url), where url may hold one level of balanced parentheses.
	linkPattern = regexp.MustCompile(`\[([^\]]*)\]\(((?:[^()]|\([^()]*\))*)\)`)

	// A heading marker run at column 0 followed by whitespace. "#1" and "#tag" are text.
	headingPattern = regexp.MustCompile(`(?m)^#+[ \t]+`)

	emphasisReplacer = strings.NewReplacer("**", "", "*", "")
)

var pipeline = []transform{
	{"links", func(s string) string { return linkPattern.ReplaceAllString(s, "$1 ($2)") }},
	{"emphasis", emphasisReplacer.Replace},
	{"headings", func(s string) string { return headingPattern.ReplaceAllString(s, "") }},
}

// Response converts a raw answer to display text. It never fails: input without
// markup comes back unchanged.
//
// The pipeline is repeated until the text stops changing, so markup that only
// appears once other markers are gone ("[a]*(b)") is removed as well and
// Response(Response(s)) == Response(s). Every pass that changes the text makes
// it shorter, which bounds the loop.
func Response(markdownish string) string {
	out := markdownish
	for {
		next := out
		for _, t := range pipeline {
			next = t.apply(next)
		}
		if next == out {
			return out
		}
		out = next
	}
}

// Error formats an error message for the transcript.
func Error(msg string) string {
	return "Error: " + Response(msg)
}

// Truncate shortens s to at most maxLen runes, marking the cut with "...".
func Truncate(s string, maxLen int) string {
	if maxLen <= 0 {
		return ""
	}
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(r[:maxLen])
	}
	return string(r[:maxLen-3]) + "..."
}

// Preview collapses whitespace so a multi-line question fits on one line.
func Preview(s string, maxLen int) string {
	return Truncate(strings.Join(strings.Fields(s), " "), maxLen)
}
