package analyze

import (
	"context"
	"encoding/json"
	"strings"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"github.com/alnah/go-voicepipe/internal/config"
	"github.com/alnah/go-voicepipe/internal/llm"
	"github.com/alnah/go-voicepipe/internal/logging"
	"github.com/alnah/go-voicepipe/internal/parse"
)

// DefaultWordThreshold separates short-form notes (titled and lightly
// reformatted) from long-form notes (titled only, body kept verbatim).
const DefaultWordThreshold = 800

// titleExcerptBytes bounds the body excerpt sent for long-form titling.
const titleExcerptBytes = 1500

// Compile-time interface compliance check.
var _ Analyzer = (*NoteAnalyzer)(nil)

// NoteAnalyzer titles notes and research transcripts. Short notes get a
// light reformat (paragraph breaks only); long notes keep their body
// verbatim and only the title comes from the model.
type NoteAnalyzer struct {
	client        llm.Client
	prompts       PromptSource
	wordThreshold int
	log           zerolog.Logger
}

// NoteOption configures a NoteAnalyzer.
type NoteOption func(*NoteAnalyzer)

// WithWordThreshold sets the long-form word threshold.
func WithWordThreshold(n int) NoteOption {
	return func(a *NoteAnalyzer) {
		if n > 0 {
			a.wordThreshold = n
		}
	}
}

// NewNoteAnalyzer creates a NoteAnalyzer.
func NewNoteAnalyzer(client llm.Client, prompts PromptSource, opts ...NoteOption) *NoteAnalyzer {
	a := &NoteAnalyzer{
		client:        client,
		prompts:       prompts,
		wordThreshold: DefaultWordThreshold,
		log:           logging.WithComponent("analyze"),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Analyze titles the note. Research is handled identically to note; the
// record keeps the parsed category. Model failures degrade to the
// deterministic fallback record.
func (a *NoteAnalyzer) Analyze(ctx context.Context, p parse.Parsed) ([]Record, error) {
	if wordCount(p.Body) >= a.wordThreshold {
		return a.analyzeLong(ctx, p)
	}
	return a.analyzeShort(ctx, p)
}

// analyzeShort runs the combined title-and-reformat completion.
func (a *NoteAnalyzer) analyzeShort(ctx context.Context, p parse.Parsed) ([]Record, error) {
	prompt, err := a.prompts.RenderPrompt(config.PromptNoteAnalysis, map[string]string{
		"body": p.Body,
	})
	if err != nil {
		return nil, err
	}

	raw, err := completeJSON(ctx, a.client, prompt)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		a.log.Warn().Err(err).
			Str(logging.FieldEvent, "analyze.note.fallback").
			Msg("note analysis degraded to deterministic fallback")
		return []Record{fallbackRecord(p)}, nil
	}

	var reply noteReply
	if err := json.Unmarshal([]byte(raw), &reply); err != nil {
		a.log.Warn().
			Str(logging.FieldEvent, "analyze.note.fallback").
			Msg("note reply unusable, using deterministic fallback")
		return []Record{fallbackRecord(p)}, nil
	}

	rec := Record{
		Category:    p.CategoryHint,
		Title:       clampTitle(reply.Title),
		Body:        reply.Content,
		KeyInsights: reply.KeyInsights,
		Confidence:  ParseConfidence(reply.Confidence),
		ProjectHint: p.ProjectHint,
	}
	if rec.Title == "" {
		rec.Title = fallbackTitle(p.Body)
		rec.Confidence = ConfidenceLow
	}
	if rec.Body == "" {
		// Models sometimes drop the content field rather than risk a long
		// JSON string; recover the paragraph breaks with a plain-text call.
		rec.Body = a.reformat(ctx, p.Body)
	}
	if rec.Confidence == ConfidenceLow {
		rec.ManualReview = true
	}

	a.log.Debug().
		Str(logging.FieldEvent, "analyze.note.done").
		Int("words", wordCount(p.Body)).
		Msg("note analysis complete")
	return []Record{rec}, nil
}

// analyzeLong titles the note from an excerpt and preserves the body
// byte for byte. Long content is never summarized or reflowed.
func (a *NoteAnalyzer) analyzeLong(ctx context.Context, p parse.Parsed) ([]Record, error) {
	prompt, err := a.prompts.RenderPrompt(config.PromptTitleOnly, map[string]string{
		"excerpt": excerpt(p.Body, titleExcerptBytes),
	})
	if err != nil {
		return nil, err
	}

	rec := Record{
		Category:    p.CategoryHint,
		Body:        p.Body,
		Confidence:  ConfidenceLow,
		ProjectHint: p.ProjectHint,
	}

	raw, err := completeJSON(ctx, a.client, prompt)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		a.log.Warn().Err(err).
			Str(logging.FieldEvent, "analyze.note.fallback").
			Msg("long-form titling degraded to deterministic fallback")
		rec.Title = fallbackTitle(p.Body)
		rec.ManualReview = true
		rec.Fallback = true
		return []Record{rec}, nil
	}

	var reply titleReply
	if err := json.Unmarshal([]byte(raw), &reply); err != nil || strings.TrimSpace(reply.Title) == "" {
		rec.Title = fallbackTitle(p.Body)
		rec.ManualReview = true
		rec.Fallback = true
		return []Record{rec}, nil
	}

	rec.Title = clampTitle(reply.Title)
	rec.Confidence = ParseConfidence(reply.Confidence)
	if rec.Confidence == ConfidenceLow {
		rec.ManualReview = true
	}

	a.log.Debug().
		Str(logging.FieldEvent, "analyze.note.long_done").
		Int("words", wordCount(p.Body)).
		Msg("long-form note titled, body preserved verbatim")
	return []Record{rec}, nil
}

// reformat asks for paragraph breaks only. Any failure returns the body
// unchanged; this call is best-effort.
func (a *NoteAnalyzer) reformat(ctx context.Context, body string) string {
	prompt, err := a.prompts.RenderPrompt(config.PromptReformatShort, map[string]string{
		"body": body,
	})
	if err != nil {
		return body
	}
	reply, err := a.client.Complete(ctx, llm.Request{User: prompt})
	if err != nil || strings.TrimSpace(reply) == "" {
		return body
	}
	return strings.TrimSpace(reply)
}

// excerpt returns the leading n bytes of s, cut back to a word boundary
// (or a rune boundary when the excerpt is one unbroken word).
func excerpt(s string, n int) string {
	if len(s) <= n {
		return s
	}
	cut := s[:n]
	if i := strings.LastIndexByte(cut, ' '); i > 0 {
		return cut[:i]
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
