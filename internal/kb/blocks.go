package kb

import (
	"strings"
	"unicode/utf8"
)

// DefaultBlockLimit is the store's per-block content limit in characters.
const DefaultBlockLimit = 2000

// SplitBlocks splits body into block-sized chunks: paragraph boundaries
// first, then the last whitespace that fits the limit. Words are never
// split unless a single word alone exceeds the limit. The chunks carry
// every word of the body in order, so joining them with single
// separators reproduces the text.
func SplitBlocks(body string, limit int) []string {
	if limit <= 0 {
		limit = DefaultBlockLimit
	}
	var out []string
	for _, para := range paragraphs(body) {
		out = append(out, splitParagraph(para, limit)...)
	}
	return out
}

// paragraphs splits on blank lines, dropping empty segments.
func paragraphs(s string) []string {
	var out []string
	for _, p := range strings.Split(s, "\n\n") {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// splitParagraph cuts one paragraph into limit-sized pieces, greedily
// keeping as many words as fit before each cut.
func splitParagraph(s string, limit int) []string {
	var out []string
	for utf8.RuneCountInString(s) > limit {
		cut := lastFit(s, limit)
		out = append(out, strings.TrimRight(s[:cut], " \t\n\r"))
		s = strings.TrimLeft(s[cut:], " \t\n\r")
	}
	if s != "" {
		out = append(out, s)
	}
	return out
}

// lastFit returns the byte offset to cut s so the head holds at most
// limit runes and ends on a word boundary. Only a single word longer
// than the whole window forces a mid-word cut.
func lastFit(s string, limit int) int {
	window := len(s)
	n := 0
	for i := range s {
		if n == limit {
			window = i
			break
		}
		n++
	}
	if window >= len(s) {
		return len(s)
	}
	// The word ends exactly at the window edge.
	if isSpaceByte(s[window]) {
		return window
	}
	if i := strings.LastIndexAny(s[:window], " \t\n\r"); i > 0 {
		return i
	}
	return window
}

func isSpaceByte(b byte) bool {
	return b == ' ' || b == '\t' || b == '\n' || b == '\r'
}
