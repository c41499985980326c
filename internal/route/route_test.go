package route_test

// Notes:
// - Deciders run against a real catalog fed by a stub source, so project
//   resolution exercises the real matching tiers.
// - The clock is pinned to a Wednesday; due-date math is asserted as
//   calendar dates.

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/alnah/go-voicepipe/internal/analyze"
	"github.com/alnah/go-voicepipe/internal/parse"
	"github.com/alnah/go-voicepipe/internal/route"
)

func TestProjectDeciderUsesHint(t *testing.T) {
	t.Parallel()

	d := route.NewProjectDecider(testCatalog())
	rec := analyze.Record{Body: "Reorganize the literature notes.", ProjectHint: "second brain"}

	got, err := d.Decide(context.Background(), rec)
	if err != nil {
		t.Fatalf("Decide: %v", err)
	}
	if got == nil || got.ID != "p-brain" {
		t.Fatalf("project = %+v, want p-brain", got)
	}
	if got.Name != "Second Brain" {
		t.Errorf("Name = %q, want canonical name", got.Name)
	}
	if got.Confidence < 0.99 {
		t.Errorf("Confidence = %.2f, want exact-match confidence", got.Confidence)
	}
}

func TestProjectDeciderScansBody(t *testing.T) {
	t.Parallel()

	d := route.NewProjectDecider(testCatalog())
	rec := analyze.Record{Body: "Collect paint swatches for house renovation"}

	got, err := d.Decide(context.Background(), rec)
	if err != nil {
		t.Fatalf("Decide: %v", err)
	}
	if got == nil || got.ID != "p-house" {
		t.Fatalf("project = %+v, want p-house from body suffix", got)
	}
}

func TestProjectDeciderUnresolved(t *testing.T) {
	t.Parallel()

	d := route.NewProjectDecider(testCatalog())
	rec := analyze.Record{Body: "Buy milk and bread on Tuesday"}

	got, err := d.Decide(context.Background(), rec)
	if err != nil {
		t.Fatalf("Decide: %v", err)
	}
	if got != nil {
		t.Errorf("project = %+v, want nil below threshold", got)
	}
}

func TestProjectDeciderPropagatesCancellation(t *testing.T) {
	t.Parallel()

	d := route.NewProjectDecider(testCatalog())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := d.Decide(ctx, analyze.Record{ProjectHint: "second brain"})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}

func TestRouteTaskRecord(t *testing.T) {
	t.Parallel()

	r := testRouter()
	rec := analyze.Record{
		Category:    parse.CategoryTask,
		Title:       "Reply to the contractor",
		Body:        "Reply to the contractor about the house timeline",
		Confidence:  analyze.ConfidenceHigh,
		ProjectHint: "second brain",
	}

	got, err := r.Route(context.Background(), rec)
	if err != nil {
		t.Fatalf("Route: %v", err)
	}
	if got.Decision.Project == nil || got.Decision.Project.ID != "p-brain" {
		t.Fatalf("project = %+v, want p-brain", got.Decision.Project)
	}
	if got.Decision.Duration == nil {
		t.Fatal("duration = nil, want a class for a task record")
	}
	if got.Decision.Duration.Class != route.ClassQuick {
		t.Errorf("Class = %q, want quick", got.Decision.Duration.Class)
	}
	if got.Decision.Duration.DueDate != "2026-08-19" {
		t.Errorf("DueDate = %q, want today", got.Decision.Duration.DueDate)
	}
	wantTags := []string{route.TagCommunications, route.TagNeedsExternalInput}
	if !reflect.DeepEqual(got.Decision.Tags, wantTags) {
		t.Errorf("tags = %v, want %v", got.Decision.Tags, wantTags)
	}
	if got.Decision.Icon != "📄" {
		t.Errorf("icon = %q, want fallback", got.Decision.Icon)
	}
	if !reflect.DeepEqual(got.Record, rec) {
		t.Errorf("record changed during routing: %+v", got.Record)
	}
}

func TestRouteNoteSkipsDuration(t *testing.T) {
	t.Parallel()

	r := testRouter()
	rec := analyze.Record{
		Category:    parse.CategoryNote,
		Title:       "Workshop takeaways",
		Body:        "Notes from the workshop on soil and compost.",
		Confidence:  analyze.ConfidenceHigh,
		ProjectHint: "second brain",
	}

	got, err := r.Route(context.Background(), rec)
	if err != nil {
		t.Fatalf("Route: %v", err)
	}
	if got.Decision.Duration != nil {
		t.Errorf("duration = %+v, want nil for a note", got.Decision.Duration)
	}
	if len(got.Decision.Tags) != 0 {
		t.Errorf("tags = %v, want none", got.Decision.Tags)
	}
}

func TestRouteUnresolvedProjectForcesReview(t *testing.T) {
	t.Parallel()

	r := testRouter()
	rec := analyze.Record{
		Category:   parse.CategoryTask,
		Title:      "Sort the cables",
		Body:       "Sort the drawer of mystery cables sometime",
		Confidence: analyze.ConfidenceHigh,
	}

	got, err := r.Route(context.Background(), rec)
	if err != nil {
		t.Fatalf("Route: %v", err)
	}
	if got.Decision.Project != nil {
		t.Fatalf("project = %+v, want nil", got.Decision.Project)
	}
	if !hasTag(got.Decision.Tags, route.TagManualReview) {
		t.Errorf("tags = %v, want manual_review when project is unresolved", got.Decision.Tags)
	}
}

func TestRoutePropagatesCancellation(t *testing.T) {
	t.Parallel()

	r := testRouter()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := r.Route(ctx, analyze.Record{Category: parse.CategoryTask, ProjectHint: "second brain"})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}

func TestContainsPhrase(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		text   string
		phrase string
		want   bool
	}{
		{"whole word", "call mom today", "call", true},
		{"word at end", "remember the second brain", "brain", true},
		{"prefix of longer word", "calling mom today", "call", false},
		{"suffix of longer word", "the recall notice", "call", false},
		{"multi word", "schedule with anna", "schedule with", true},
		{"multi word partial", "schedule without anna", "schedule with", false},
		{"hyphen is a boundary", "double-check the total", "check", true},
		{"empty phrase", "anything", "", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := route.ContainsPhrase(route.FoldText(tc.text), tc.phrase); got != tc.want {
				t.Errorf("containsPhrase(%q, %q) = %v, want %v", tc.text, tc.phrase, got, tc.want)
			}
		})
	}
}
