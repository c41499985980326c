package catalog

import (
	"strings"
	"unicode"

	"github.com/antzucaro/matchr"
)

// Matching tiers, highest first. Substring scores scale with how much of
// the longer string the shorter one covers, so "second brain" inside
// "second brain workflow" scores higher than inside a rambling sentence.
const (
	scoreCanonical = 1.00
	scoreAlias     = 0.95
	fuzzyFloor     = 0.70
)

// Hint extraction limits for ResolveFromText.
const (
	hintTokens    = 8
	maxWindowSize = 5
)

// numeralWords folds spoken ordinals and small numbers to words so
// "2nd Brain" and "Second Brain" normalize identically.
var numeralWords = map[string]string{
	"0": "zero", "1": "one", "2": "two", "3": "three", "4": "four",
	"5": "five", "6": "six", "7": "seven", "8": "eight", "9": "nine",
	"10": "ten", "11": "eleven", "12": "twelve",
	"1st": "first", "2nd": "second", "3rd": "third", "4th": "fourth",
	"5th": "fifth", "6th": "sixth", "7th": "seventh", "8th": "eighth",
	"9th": "ninth", "10th": "tenth", "11th": "eleventh", "12th": "twelfth",
}

// hintStopwords are trailing tokens that belong to the category marker,
// not the project reference.
var hintStopwords = map[string]struct{}{
	"task": {}, "tasks": {}, "todo": {},
	"note": {}, "notes": {},
	"research": {}, "idea": {}, "ideas": {},
	"unclear": {},
}

// bestMatch scores query against every entry and returns the strongest
// candidate. Callers apply the resolution threshold.
func bestMatch(query string, entries []Entry) Match {
	q := normalize(query)
	if q == "" {
		return Match{}
	}
	qTokens := strings.Fields(q)

	var best Match
	for _, e := range entries {
		m := scoreEntry(q, qTokens, e)
		if better(m, best) {
			best = m
		}
		if best.Confidence >= scoreCanonical {
			break
		}
	}
	return best
}

// scoreEntry returns the best tier score for one entry across its
// canonical name and aliases.
func scoreEntry(q string, qTokens []string, e Entry) Match {
	var best Match
	consider := func(conf float64, via string) {
		if conf > best.Confidence {
			best = Match{ID: e.ID, Name: e.Name, Confidence: conf, Via: via}
		}
	}

	name := normalize(e.Name)
	if name != "" {
		if q == name {
			return Match{ID: e.ID, Name: e.Name, Confidence: scoreCanonical, Via: "canonical"}
		}
		if cov, ok := wordCoverage(qTokens, strings.Fields(name)); ok {
			consider(0.85+0.05*cov, "substring")
		}
		if jw := matchr.JaroWinkler(q, name, false); jw >= fuzzyFloor {
			consider(jw, "fuzzy")
		}
	}

	for _, alias := range e.Aliases {
		a := normalize(alias)
		if a == "" {
			continue
		}
		if q == a {
			consider(scoreAlias, "alias")
			continue
		}
		if cov, ok := wordCoverage(qTokens, strings.Fields(a)); ok {
			consider(0.75+0.10*cov, "substring_alias")
		}
		if jw := matchr.JaroWinkler(q, a, false); jw >= fuzzyFloor {
			consider(jw*scoreAlias, "fuzzy")
		}
	}
	return best
}

// better orders candidates: higher confidence wins, then the shorter
// canonical name, then lexicographic, so resolution is deterministic.
func better(m, than Match) bool {
	if m.Confidence != than.Confidence {
		return m.Confidence > than.Confidence
	}
	if m.ID == "" {
		return false
	}
	if len(m.Name) != len(than.Name) {
		return len(m.Name) < len(than.Name)
	}
	return m.Name < than.Name
}

// wordCoverage reports whether one token sequence appears contiguously
// inside the other, and what fraction of the longer sequence it covers.
func wordCoverage(a, b []string) (float64, bool) {
	if len(a) == 0 || len(b) == 0 {
		return 0, false
	}
	switch {
	case len(b) <= len(a) && containsRun(a, b):
		return float64(len(b)) / float64(len(a)), true
	case len(a) < len(b) && containsRun(b, a):
		return float64(len(a)) / float64(len(b)), true
	}
	return 0, false
}

// containsRun reports whether needle occurs as a contiguous run of
// tokens inside haystack.
func containsRun(haystack, needle []string) bool {
	if len(needle) == 0 || len(needle) > len(haystack) {
		return false
	}
outer:
	for i := 0; i+len(needle) <= len(haystack); i++ {
		for j, tok := range needle {
			if haystack[i+j] != tok {
				continue outer
			}
		}
		return true
	}
	return false
}

// normalize lowercases, trims punctuation from token edges, folds
// numerals to words, and collapses whitespace.
func normalize(s string) string {
	fields := strings.Fields(strings.ToLower(s))
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		f = trimPunct(f)
		if f == "" {
			continue
		}
		if word, ok := numeralWords[f]; ok {
			f = word
		}
		out = append(out, f)
	}
	return strings.Join(out, " ")
}

func trimPunct(tok string) string {
	return strings.TrimFunc(tok, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// suffixWindows yields candidate project references from the tail of a
// transcript body: the last few meaningful tokens, joined into windows
// from longest to shortest. Category keywords are skipped so "second
// brain task" still yields "second brain".
func suffixWindows(body string) []string {
	fields := strings.Fields(body)
	tokens := make([]string, 0, hintTokens)
	for i := len(fields) - 1; i >= 0 && len(tokens) < hintTokens; i-- {
		tok := trimPunct(strings.ToLower(fields[i]))
		if tok == "" {
			continue
		}
		if _, stop := hintStopwords[tok]; stop {
			continue
		}
		tokens = append(tokens, tok)
	}
	// Collected back to front; restore reading order.
	for i, j := 0, len(tokens)-1; i < j; i, j = i+1, j-1 {
		tokens[i], tokens[j] = tokens[j], tokens[i]
	}

	size := maxWindowSize
	if len(tokens) < size {
		size = len(tokens)
	}
	windows := make([]string, 0, size)
	for l := size; l >= 1; l-- {
		windows = append(windows, strings.Join(tokens[len(tokens)-l:], " "))
	}
	return windows
}
