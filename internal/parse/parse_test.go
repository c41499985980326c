package parse

import (
	"errors"
	"strings"
	"testing"
)

// ---------------------------------------------------------------------------
// TestParse - validation
// ---------------------------------------------------------------------------

func TestParseRejectsEmpty(t *testing.T) {
	t.Parallel()

	p := New()
	for _, input := range []string{"", "   \n\t  ", "Task."} {
		if _, err := p.Parse([]byte(input)); !errors.Is(err, ErrEmpty) {
			t.Errorf("Parse(%q) err = %v, want ErrEmpty", input, err)
		}
	}
}

func TestParseRejectsOversize(t *testing.T) {
	t.Parallel()

	p := New(WithMaxBytes(10))
	_, err := p.Parse([]byte("this is more than ten bytes"))
	if !errors.Is(err, ErrTooLong) {
		t.Errorf("err = %v, want ErrTooLong", err)
	}
}

func TestParseDecodesLatin1Fallback(t *testing.T) {
	t.Parallel()

	// 0xE9 is 'é' in Latin-1 but invalid standalone UTF-8.
	raw := []byte("caf\xe9 meeting notes about the proposal")
	p := New()
	got, err := p.Parse(raw)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if !strings.Contains(got.Body, "café") {
		t.Errorf("Body = %q, want é re-decoded", got.Body)
	}
}

// ---------------------------------------------------------------------------
// TestParse - five-tier category heuristic
// ---------------------------------------------------------------------------

func TestParseTrailingMarker(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		input    string
		wantCat  Category
		wantBody string
		wantHint string
	}{
		{
			name:     "task marker",
			input:    "Reply to Nate about Simon follow-up. Task.",
			wantCat:  CategoryTask,
			wantBody: "Reply to Nate about Simon follow-up.",
		},
		{
			name:     "note marker case-insensitive",
			input:    "The garden needs attention. NOTE",
			wantCat:  CategoryNote,
			wantBody: "The garden needs attention.",
		},
		{
			name:     "research marker",
			input:    "Look at sleep cycle papers. Research.",
			wantCat:  CategoryResearch,
			wantBody: "Look at sleep cycle papers.",
		},
		{
			name:     "marker followed by project hint",
			input:    "We should clean up the database. Task. Second Brain workflow.",
			wantCat:  CategoryTask,
			wantBody: "We should clean up the database.",
			wantHint: "Second Brain workflow",
		},
	}

	p := New()
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := p.Parse([]byte(tt.input))
			if err != nil {
				t.Fatalf("Parse: %v", err)
			}
			if got.CategoryHint != tt.wantCat {
				t.Errorf("CategoryHint = %q, want %q", got.CategoryHint, tt.wantCat)
			}
			if !got.Explicit {
				t.Error("Explicit = false, want true for trailing marker")
			}
			if got.Body != tt.wantBody {
				t.Errorf("Body = %q, want %q", got.Body, tt.wantBody)
			}
			if got.ProjectHint != tt.wantHint {
				t.Errorf("ProjectHint = %q, want %q", got.ProjectHint, tt.wantHint)
			}
		})
	}
}

func TestParseStructuralTiers(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		input   string
		wantCat Category
	}{
		{
			name:    "tier 2 imperative verb",
			input:   "Call the dentist and move the appointment to March",
			wantCat: CategoryTask,
		},
		{
			name:    "tier 2 multiword verb",
			input:   "Follow up with the landlord about the heating issue",
			wantCat: CategoryTask,
		},
		{
			name:    "tier 3 reflective leader",
			input:   "I noticed that my focus drops right after lunch every day",
			wantCat: CategoryNote,
		},
		{
			name:    "tier 3 it seems",
			input:   "It seems the new routine is working better than expected",
			wantCat: CategoryNote,
		},
		{
			name:    "tier 4 due phrase",
			input:   "The report for accounting has to go out by EOD",
			wantCat: CategoryTask,
		},
		{
			name:    "tier 4 tomorrow",
			input:   "Groceries and the pharmacy run, ideally tomorrow",
			wantCat: CategoryTask,
		},
		{
			name:    "tier 5 default note",
			input:   "A long rambling thought about how cities are organized",
			wantCat: CategoryNote,
		},
	}

	p := New()
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := p.Parse([]byte(tt.input))
			if err != nil {
				t.Fatalf("Parse: %v", err)
			}
			if got.CategoryHint != tt.wantCat {
				t.Errorf("CategoryHint = %q, want %q", got.CategoryHint, tt.wantCat)
			}
			if got.Explicit {
				t.Error("Explicit = true for a structural tier")
			}
			if got.Body != tt.input {
				t.Errorf("structural tiers must not modify the body:\n got %q\nwant %q", got.Body, tt.input)
			}
		})
	}
}

func TestParseTierOrder(t *testing.T) {
	t.Parallel()

	// A reflective leader with a due phrase inside: tier 3 must win over
	// tier 4 (ordered heuristic).
	p := New()
	got, err := p.Parse([]byte("I noticed the deadline pressure makes me sloppy"))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if got.CategoryHint != CategoryNote {
		t.Errorf("CategoryHint = %q, want note (tier 3 beats tier 4)", got.CategoryHint)
	}

	// An explicit marker beats everything.
	got, err = p.Parse([]byte("Call Bob about the thing. Note."))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if got.CategoryHint != CategoryNote || !got.Explicit {
		t.Errorf("explicit marker lost to tier 2: %+v", got)
	}
}

// ---------------------------------------------------------------------------
// TestParseCategory and word-bound matching
// ---------------------------------------------------------------------------

func TestParseCategory(t *testing.T) {
	t.Parallel()

	if cat, ok := ParseCategory(" Task "); !ok || cat != CategoryTask {
		t.Errorf("ParseCategory(Task) = %v, %v", cat, ok)
	}
	if _, ok := ParseCategory("taskforce"); ok {
		t.Error("ParseCategory(taskforce) matched")
	}
}

func TestContainsWordBounded(t *testing.T) {
	t.Parallel()

	tests := []struct {
		s      string
		phrase string
		want   bool
	}{
		{"due tomorrow maybe", "tomorrow", true},
		{"tomorrowland tickets", "tomorrow", false},
		{"finish by eod today", "by eod", true},
		{"nobody eodless", "by eod", false},
		{"asap", "asap", true},
	}
	for _, tt := range tests {
		if got := containsWordBounded(tt.s, tt.phrase); got != tt.want {
			t.Errorf("containsWordBounded(%q, %q) = %v, want %v", tt.s, tt.phrase, got, tt.want)
		}
	}
}
