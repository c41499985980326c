// Package analyze turns parsed transcript bodies into structured records
// via LLM chat completion.
//
// Two analyzers exist behind one interface: TaskAnalyzer produces one or
// more actionable tasks, NoteAnalyzer titles notes and research. Both
// parse strict-JSON replies with one reprompt on malformed output, and
// degrade to a deterministic local result when the model is unreachable,
// so the pipeline never loses a transcript to a flaky API.
package analyze

import (
	"context"
	"strings"

	"github.com/alnah/go-voicepipe/internal/parse"
)

// Confidence is the analyzer's certainty, clamped to three levels.
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// ParseConfidence clamps a model-reported certainty to a known level.
// Unknown values clamp to low so uncertain output gets flagged for review.
func ParseConfidence(s string) Confidence {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "high":
		return ConfidenceHigh
	case "medium", "med":
		return ConfidenceMedium
	case "low":
		return ConfidenceLow
	default:
		return ConfidenceLow
	}
}

// Record is one structured analysis result. A transcript that carries
// several distinct requests yields several records.
type Record struct {
	Category     parse.Category `json:"category"`
	Title        string         `json:"title"`
	Body         string         `json:"body"`
	ActionItems  []string       `json:"action_items,omitempty"`
	KeyInsights  []string       `json:"key_insights,omitempty"`
	Confidence   Confidence     `json:"confidence"`
	ProjectHint  string         `json:"project_hint,omitempty"`
	ManualReview bool           `json:"manual_review,omitempty"`
	Fallback     bool           `json:"fallback,omitempty"`
}

// Analyzer converts one parsed transcript into records.
type Analyzer interface {
	Analyze(ctx context.Context, p parse.Parsed) ([]Record, error)
}

// PromptSource renders named prompt templates. *config.Store satisfies it.
type PromptSource interface {
	RenderPrompt(name string, vars map[string]string) (string, error)
}

// Dispatcher routes a parsed transcript to the analyzer for its category.
// Research and unclear content take the note path; unclear additionally
// gets flagged for manual review.
type Dispatcher struct {
	Task Analyzer
	Note Analyzer
}

// Compile-time interface compliance check.
var _ Analyzer = (*Dispatcher)(nil)

// Analyze dispatches on the parsed category hint.
func (d *Dispatcher) Analyze(ctx context.Context, p parse.Parsed) ([]Record, error) {
	if p.CategoryHint == parse.CategoryTask {
		return d.Task.Analyze(ctx, p)
	}
	records, err := d.Note.Analyze(ctx, p)
	if err != nil {
		return nil, err
	}
	if p.CategoryHint == parse.CategoryUnclear {
		for i := range records {
			records[i].ManualReview = true
		}
	}
	return records, nil
}

// Title constraints.
const (
	maxTitleRunes      = 80
	fallbackTitleWords = 8
)

// clampTitle trims a title to the length limit at a word boundary.
func clampTitle(title string) string {
	title = strings.Join(strings.Fields(title), " ")
	if len([]rune(title)) <= maxTitleRunes {
		return title
	}
	runes := []rune(title)
	cut := string(runes[:maxTitleRunes])
	if i := strings.LastIndex(cut, " "); i > 0 {
		cut = cut[:i]
	}
	return cut
}

// fallbackTitle derives a deterministic title from the first words of the
// body, for when the model is unreachable or replies unusably.
func fallbackTitle(body string) string {
	words := strings.Fields(body)
	if len(words) == 0 {
		return "Untitled memo"
	}
	if len(words) > fallbackTitleWords {
		words = words[:fallbackTitleWords]
	}
	return clampTitle(strings.Join(words, " "))
}

// fallbackRecord is the deterministic degraded result for one transcript.
func fallbackRecord(p parse.Parsed) Record {
	return Record{
		Category:     p.CategoryHint,
		Title:        fallbackTitle(p.Body),
		Body:         p.Body,
		Confidence:   ConfidenceLow,
		ProjectHint:  p.ProjectHint,
		ManualReview: true,
		Fallback:     true,
	}
}

func wordCount(s string) int {
	return len(strings.Fields(s))
}
