package config

import (
	"fmt"
	"regexp"
	"strings"
)

// Prompt template names. Use these instead of string literals.
const (
	PromptTaskAnalysis  = "task_analysis"
	PromptNoteAnalysis  = "note_analysis"
	PromptTitleOnly     = "title_only"
	PromptReformatShort = "reformat_short"
)

// placeholderRe matches {placeholder} tokens inside prompt templates.
// Only bare lowercase identifiers qualify, so JSON braces in the template
// body ({"title": ...}) pass through untouched.
var placeholderRe = regexp.MustCompile(`\{([a-z_]+)\}`)

// Prompt returns the raw template string for name.
// User templates in prompts.yaml override the built-in defaults key by key.
func (s *Store) Prompt(name string) (string, error) {
	v, ok := s.lookup("prompts." + name)
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownPrompt, name)
	}
	tmpl, ok := v.(string)
	if !ok || strings.TrimSpace(tmpl) == "" {
		return "", fmt.Errorf("%w: %q is empty", ErrUnknownPrompt, name)
	}
	return tmpl, nil
}

// RenderPrompt substitutes named {placeholder} tokens into the template.
// Every placeholder in the template must be supplied; a leftover token is
// an error so a half-filled prompt never reaches the model.
func (s *Store) RenderPrompt(name string, vars map[string]string) (string, error) {
	tmpl, err := s.Prompt(name)
	if err != nil {
		return "", err
	}

	var missing []string
	out := placeholderRe.ReplaceAllStringFunc(tmpl, func(token string) string {
		key := token[1 : len(token)-1]
		if val, ok := vars[key]; ok {
			return val
		}
		missing = append(missing, key)
		return token
	})
	if len(missing) > 0 {
		return "", fmt.Errorf("%w: %s in prompt %q",
			ErrUnresolvedPlaceholder, strings.Join(missing, ", "), name)
	}
	return out, nil
}

// defaultPrompts returns the compiled-in prompt templates. Each asks the
// model for strict JSON so the analyzers can parse the reply mechanically.
func defaultPrompts() map[string]any {
	return map[string]any{
		PromptTaskAnalysis: `You convert a voice-memo transcript into one or more actionable tasks.

Transcript:
{body}

Rules:
- Remove filler and meta-commentary ("okay so", "um", "let me think") but keep every substantive detail.
- Each task title must be Verb + Object form, at most 10 words.
- If the transcript contains two or more distinct imperative requests, emit one task per request.
- List explicit sub-steps as action_items when the speaker enumerates them.
- Report confidence as "high", "medium", or "low" based on how certain you are of the intent.

Respond with ONLY a JSON object, no prose:
{"tasks": [{"title": "...", "content": "...", "action_items": ["..."], "confidence": "high"}]}`,

		PromptNoteAnalysis: `You title and lightly clean a voice-memo note.

Transcript:
{body}

Rules:
- Produce a descriptive title of 4 to 8 words.
- Reformat the content with paragraph breaks only; do not summarize, reorder, or drop anything.
- Capture up to 5 key insights when the note states conclusions worth indexing.
- Report confidence as "high", "medium", or "low".

Respond with ONLY a JSON object, no prose:
{"title": "...", "content": "...", "key_insights": ["..."], "confidence": "high"}`,

		PromptTitleOnly: `Produce a descriptive 4-8 word title for this note. The body will be preserved verbatim elsewhere; do not return it.

Note begins:
{excerpt}

Respond with ONLY a JSON object, no prose:
{"title": "...", "confidence": "high"}`,

		PromptReformatShort: `Insert paragraph breaks into this transcript where topics shift. Change nothing else: no summarizing, no rewording, no dropped sentences.

{body}

Respond with ONLY the reformatted text.`,
	}
}
