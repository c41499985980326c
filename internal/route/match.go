package route

import "strings"

// foldText lowercases s and collapses whitespace runs to single spaces
// so multi-word phrases match across line breaks.
func foldText(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

// containsPhrase reports whether text contains phrase with word
// boundaries on both ends. Partial-word hits are rejected: "call" does
// not match inside "recall" or "calling". Both arguments must already
// be folded.
func containsPhrase(text, phrase string) bool {
	if phrase == "" {
		return false
	}
	for start := 0; ; start++ {
		i := strings.Index(text[start:], phrase)
		if i < 0 {
			return false
		}
		start += i
		end := start + len(phrase)
		if (start == 0 || !isWordByte(text[start-1])) &&
			(end == len(text) || !isWordByte(text[end])) {
			return true
		}
	}
}

// firstPhrase returns the first of phrases found whole-word in text,
// or the empty string.
func firstPhrase(text string, phrases []string) string {
	for _, p := range phrases {
		if containsPhrase(text, foldText(p)) {
			return p
		}
	}
	return ""
}

func isWordByte(b byte) bool {
	return b >= 'a' && b <= 'z' || b >= 'A' && b <= 'Z' || b >= '0' && b <= '9'
}
