// Package parse segments raw transcript text into a body plus category and
// project hints, and validates it before any model call is spent on it.
package parse

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Category classifies a transcript. The parser only produces a hint;
// analyzers may override it based on structure.
type Category string

const (
	CategoryTask     Category = "task"
	CategoryNote     Category = "note"
	CategoryResearch Category = "research"
	CategoryUnclear  Category = "unclear"
)

// ParseCategory maps a marker word to its Category, reporting whether the
// word is a recognized category keyword.
func ParseCategory(word string) (Category, bool) {
	switch strings.ToLower(strings.TrimSpace(word)) {
	case "task":
		return CategoryTask, true
	case "note":
		return CategoryNote, true
	case "research":
		return CategoryResearch, true
	}
	return "", false
}

// Parsed is the parser output for one transcript.
type Parsed struct {
	// Body is the transcript with any trailing category marker and project
	// hint removed. Never empty for a valid transcript.
	Body string
	// CategoryHint is the five-tier heuristic result.
	CategoryHint Category
	// Explicit reports whether the category came from a trailing marker
	// (tier 1) rather than a structural guess.
	Explicit bool
	// ProjectHint is the free-text project reference spoken after a
	// trailing category marker, empty when none was given.
	ProjectHint string
}

// Default phrase lists for the structural tiers. All matching is
// case-insensitive against the start of the first clause (tiers 2 and 3)
// or anywhere word-bounded (tier 4).
var (
	defaultImperativeVerbs = []string{
		"call", "send", "schedule", "buy", "email", "reply", "respond",
		"text", "book", "order", "fix", "review", "check", "write",
		"cancel", "pay", "ask", "remind", "follow up", "pick up", "set up",
		"clean up", "update", "create", "finish", "submit", "print",
	}
	defaultReflectiveLeaders = []string{
		"i noticed", "i think", "i feel", "i realized", "i wonder",
		"it seems", "it occurred to me", "interesting that", "i've been thinking",
		"i was thinking", "something i learned",
	}
	defaultDuePhrases = []string{
		"by eod", "by end of day", "by tomorrow", "tomorrow", "tonight",
		"by friday", "by monday", "next week", "this week", "by next week",
		"end of week", "asap", "by the end of the month", "deadline",
	}
)

// Parser validates and segments transcripts. The zero value is not usable;
// construct with New.
type Parser struct {
	maxBytes          int
	imperativeVerbs   []string
	reflectiveLeaders []string
	duePhrases        []string
}

// Option configures a Parser.
type Option func(*Parser)

// WithMaxBytes sets the maximum accepted transcript size. Zero or negative
// disables the limit.
func WithMaxBytes(n int) Option {
	return func(p *Parser) { p.maxBytes = n }
}

// WithImperativeVerbs replaces the tier-2 verb list.
func WithImperativeVerbs(verbs []string) Option {
	return func(p *Parser) {
		if len(verbs) > 0 {
			p.imperativeVerbs = verbs
		}
	}
}

// WithReflectiveLeaders replaces the tier-3 leader list.
func WithReflectiveLeaders(leaders []string) Option {
	return func(p *Parser) {
		if len(leaders) > 0 {
			p.reflectiveLeaders = leaders
		}
	}
}

// WithDuePhrases replaces the tier-4 due-phrase list.
func WithDuePhrases(phrases []string) Option {
	return func(p *Parser) {
		if len(phrases) > 0 {
			p.duePhrases = phrases
		}
	}
}

// New creates a Parser with the default phrase lists.
func New(opts ...Option) *Parser {
	p := &Parser{
		maxBytes:          1 << 20,
		imperativeVerbs:   defaultImperativeVerbs,
		reflectiveLeaders: defaultReflectiveLeaders,
		duePhrases:        defaultDuePhrases,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Parse validates raw transcript bytes and derives the body and hints.
// Undecodable input is re-decoded byte-per-rune (Latin-1) rather than
// rejected: a transcript with a few mangled characters is still worth
// processing.
func (p *Parser) Parse(raw []byte) (Parsed, error) {
	if p.maxBytes > 0 && len(raw) > p.maxBytes {
		return Parsed{}, fmt.Errorf("%w: %d bytes (max %d)", ErrTooLong, len(raw), p.maxBytes)
	}

	text := decode(raw)
	if strings.TrimSpace(text) == "" {
		return Parsed{}, ErrEmpty
	}

	body, category, explicit, hint := p.split(text)
	if strings.TrimSpace(body) == "" {
		// The transcript was nothing but a marker ("Task.") - no content
		// to act on.
		return Parsed{}, ErrEmpty
	}

	return Parsed{
		Body:         strings.TrimSpace(body),
		CategoryHint: category,
		Explicit:     explicit,
		ProjectHint:  hint,
	}, nil
}

// decode returns raw as a UTF-8 string, falling back to a byte-per-rune
// (Latin-1) re-decode when the bytes are not valid UTF-8.
func decode(raw []byte) string {
	if utf8.Valid(raw) {
		return string(raw)
	}
	runes := make([]rune, len(raw))
	for i, b := range raw {
		runes[i] = rune(b)
	}
	return string(runes)
}

// segment is a sentence-ish span of the original text.
type segment struct {
	text  string // between delimiters, untrimmed
	start int    // byte offset of the span in the original text
}

// splitSegments slices text on sentence delimiters and newlines, keeping
// byte offsets so the caller can cut the original string exactly.
func splitSegments(text string) []segment {
	var segs []segment
	start := 0
	for i, r := range text {
		switch r {
		case '.', '!', '?', '\n':
			if strings.TrimSpace(text[start:i]) != "" {
				segs = append(segs, segment{text: text[start:i], start: start})
			}
			start = i + utf8.RuneLen(r)
		}
	}
	if strings.TrimSpace(text[start:]) != "" {
		segs = append(segs, segment{text: text[start:], start: start})
	}
	return segs
}

// split applies the five-tier category heuristic and strips consumed
// trailing segments from the body.
func (p *Parser) split(text string) (body string, category Category, explicit bool, hint string) {
	segs := splitSegments(text)

	// Tier 1: explicit trailing marker, possibly followed by a spoken
	// project reference ("... clean up the database. Task. Second Brain
	// workflow.").
	if n := len(segs); n > 0 {
		if cat, ok := ParseCategory(segs[n-1].text); ok {
			return text[:segs[n-1].start], cat, true, ""
		}
		if n >= 2 {
			if cat, ok := ParseCategory(segs[n-2].text); ok {
				return text[:segs[n-2].start], cat, true, strings.TrimSpace(segs[n-1].text)
			}
		}
	}

	// Tiers 2-4 inspect the whole text; nothing is stripped.
	lower := strings.ToLower(text)

	// Tier 2: leading imperative verb on the first clause.
	firstClause := lower
	if len(segs) > 0 {
		firstClause = strings.ToLower(strings.TrimSpace(segs[0].text))
	}
	for _, verb := range p.imperativeVerbs {
		if firstClause == verb || strings.HasPrefix(firstClause, verb+" ") {
			return text, CategoryTask, false, ""
		}
	}

	// Tier 3: reflective or observational leader.
	trimmedLower := strings.TrimLeftFunc(lower, unicode.IsSpace)
	for _, leader := range p.reflectiveLeaders {
		if strings.HasPrefix(trimmedLower, leader) {
			return text, CategoryNote, false, ""
		}
	}

	// Tier 4: a due-like phrase anywhere implies actionable content.
	for _, phrase := range p.duePhrases {
		if containsWordBounded(lower, phrase) {
			return text, CategoryTask, false, ""
		}
	}

	// Tier 5: default bias toward the non-destructive classification.
	return text, CategoryNote, false, ""
}

// containsWordBounded reports whether phrase occurs in s on word
// boundaries. Both arguments must already be lowercase.
func containsWordBounded(s, phrase string) bool {
	for from := 0; ; {
		i := strings.Index(s[from:], phrase)
		if i < 0 {
			return false
		}
		i += from
		before := i == 0 || !isWordByte(s[i-1])
		afterIdx := i + len(phrase)
		after := afterIdx >= len(s) || !isWordByte(s[afterIdx])
		if before && after {
			return true
		}
		from = i + 1
	}
}

func isWordByte(b byte) bool {
	return b == '_' || (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') || (b >= '0' && b <= '9')
}
