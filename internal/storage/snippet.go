package storage

import (
	"strings"
	"unicode/utf8"
)

// Snippet extracts an excerpt of content centered on the first occurrence
// of any query term, trimmed to roughly maxLength characters on word
// boundaries with ellipses marking truncation.
func Snippet(content, query string, maxLength int) string {
	if maxLength <= 0 {
		maxLength = 150
	}

	terms := make([]string, 0, 4)
	for _, t := range strings.Fields(query) {
		t = strings.ToLower(strings.Trim(t, `*"`))
		switch t {
		case "", "and", "or", "not", "near":
			continue
		}
		terms = append(terms, t)
	}

	if len(terms) == 0 {
		if len(content) > maxLength {
			return content[:snapRuneStart(content, maxLength)] + "..."
		}
		return content
	}

	// Find the earliest occurrence of any term; no match falls back to
	// the head of the document
	contentLower := strings.ToLower(content)
	bestPos := len(content)
	for _, term := range terms {
		if pos := strings.Index(contentLower, term); pos >= 0 && pos < bestPos {
			bestPos = pos
		}
	}
	if bestPos == len(content) {
		bestPos = 0
	}

	start := bestPos - maxLength/3
	if start < 0 {
		start = 0
	}
	end := start + maxLength
	if end > len(content) {
		end = len(content)
	}

	// Back up to a word boundary
	if start > 0 {
		if spacePos := strings.LastIndex(content[:min(start+20, len(content))], " "); spacePos > start-20 {
			start = spacePos + 1
		}
	}
	if start > end {
		start = end
	}

	// Window edges must not split a multi-byte rune
	start = snapRuneStart(content, start)
	end = snapRuneStart(content, end)

	snippet := content[start:end]
	if start > 0 {
		snippet = "..." + snippet
	}
	if end < len(content) {
		snippet = snippet + "..."
	}

	return strings.Join(strings.Fields(snippet), " ")
}

// snapRuneStart backs i up to the start of the rune containing it
func snapRuneStart(s string, i int) int {
	for i > 0 && i < len(s) && !utf8.RuneStart(s[i]) {
		i--
	}
	return i
}
