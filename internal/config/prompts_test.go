package config

import (
	"errors"
	"strings"
	"testing"
)

// ---------------------------------------------------------------------------
// TestPrompt - lookup and user overrides
// ---------------------------------------------------------------------------

func TestPromptDefaultsPresent(t *testing.T) {
	t.Parallel()

	s, err := Load(t.TempDir(), WithGetenv(noEnv))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	for _, name := range []string{
		PromptTaskAnalysis, PromptNoteAnalysis, PromptTitleOnly, PromptReformatShort,
	} {
		tmpl, err := s.Prompt(name)
		if err != nil {
			t.Errorf("Prompt(%s): %v", name, err)
			continue
		}
		if strings.TrimSpace(tmpl) == "" {
			t.Errorf("Prompt(%s) is empty", name)
		}
	}

	if _, err := s.Prompt("nope"); !errors.Is(err, ErrUnknownPrompt) {
		t.Errorf("Prompt(nope) err = %v, want ErrUnknownPrompt", err)
	}
}

func TestPromptUserOverride(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeLayer(t, dir, "prompts.yaml", "title_only: |\n  Custom {excerpt}\n")

	s, err := Load(dir, WithGetenv(noEnv))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	got, err := s.RenderPrompt(PromptTitleOnly, map[string]string{"excerpt": "hello"})
	if err != nil {
		t.Fatalf("RenderPrompt: %v", err)
	}
	if !strings.Contains(got, "Custom hello") {
		t.Errorf("RenderPrompt = %q", got)
	}
	// Other defaults survive an override file with one key.
	if _, err := s.Prompt(PromptTaskAnalysis); err != nil {
		t.Errorf("Prompt(task_analysis) after override: %v", err)
	}
}

// ---------------------------------------------------------------------------
// TestRenderPrompt - placeholder behavior
// ---------------------------------------------------------------------------

func TestRenderPromptMissingVar(t *testing.T) {
	t.Parallel()

	s, err := Load(t.TempDir(), WithGetenv(noEnv))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	_, err = s.RenderPrompt(PromptTaskAnalysis, nil)
	if !errors.Is(err, ErrUnresolvedPlaceholder) {
		t.Errorf("RenderPrompt without vars err = %v, want ErrUnresolvedPlaceholder", err)
	}
}

func TestRenderPromptLeavesJSONBraces(t *testing.T) {
	t.Parallel()

	s, err := Load(t.TempDir(), WithGetenv(noEnv))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	got, err := s.RenderPrompt(PromptTaskAnalysis, map[string]string{"body": "call Bob"})
	if err != nil {
		t.Fatalf("RenderPrompt: %v", err)
	}
	if !strings.Contains(got, "call Bob") {
		t.Error("body placeholder not substituted")
	}
	if !strings.Contains(got, `{"tasks":`) {
		t.Error("JSON example braces were mangled")
	}
}
