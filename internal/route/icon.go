package route

import (
	"sort"

	"github.com/alnah/go-voicepipe/internal/analyze"
)

// IconDecider picks a single glyph from a content-keyword table.
type IconDecider struct {
	entries  []iconEntry
	fallback string
}

type iconEntry struct {
	phrase string
	glyph  string
}

// NewIconDecider builds a decider from a keyword-to-glyph map. Longer
// phrases are tried first so multi-word entries beat their substrings;
// equal lengths order lexicographically to keep matching deterministic.
func NewIconDecider(glyphs map[string]string, fallback string) *IconDecider {
	entries := make([]iconEntry, 0, len(glyphs))
	for phrase, glyph := range glyphs {
		folded := foldText(phrase)
		if folded == "" {
			continue
		}
		entries = append(entries, iconEntry{phrase: folded, glyph: glyph})
	}
	sort.Slice(entries, func(i, j int) bool {
		if len(entries[i].phrase) != len(entries[j].phrase) {
			return len(entries[i].phrase) > len(entries[j].phrase)
		}
		return entries[i].phrase < entries[j].phrase
	})
	return &IconDecider{entries: entries, fallback: fallback}
}

// Decide matches whole words against the record body, not the
// synthesized title, so the glyph reflects the spoken content. No match
// returns the fallback glyph.
func (d *IconDecider) Decide(rec analyze.Record) string {
	text := foldText(rec.Body)
	for _, e := range d.entries {
		if containsPhrase(text, e.phrase) {
			return e.glyph
		}
	}
	return d.fallback
}
