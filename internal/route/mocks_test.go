package route_test

import (
	"context"
	"time"

	"github.com/alnah/go-voicepipe/internal/catalog"
	"github.com/alnah/go-voicepipe/internal/route"
)

// stubSource serves a fixed project list so deciders run against a real
// catalog without network.
type stubSource struct {
	entries []catalog.Entry
}

func (s *stubSource) ListProjects(ctx context.Context) ([]catalog.Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.entries, nil
}

func testProjects() []catalog.Entry {
	return []catalog.Entry{
		{ID: "p-brain", Name: "Second Brain"},
		{ID: "p-house", Name: "House Renovation"},
	}
}

func testCatalog() *catalog.Catalog {
	return catalog.New(&stubSource{entries: testProjects()})
}

func testDurationRules() route.DurationRules {
	return route.DurationRules{
		Quick:  route.ClassRule{Minutes: 2, Keywords: []string{"reply", "confirm", "quick", "check"}},
		Medium: route.ClassRule{Minutes: 20, Keywords: []string{"research", "compare", "decide"}},
		Long:   route.ClassRule{Minutes: 120, Keywords: []string{"plan", "refactor", "build", "overhaul"}},
	}
}

func testTagRules() route.TagRules {
	return route.TagRules{
		Communications:     []string{"call", "email", "reply", "schedule with"},
		NeedsHumanReview:   []string{"not sure", "double check"},
		NeedsExternalInput: []string{"dentist", "insurance", "house", "immigration"},
	}
}

func testIcons() map[string]string {
	return map[string]string{
		"call":      "📞",
		"groceries": "🛒",
		"dentist":   "🦷",
		"deep work": "🧠",
		"work":      "💼",
		"flight":    "✈️",
	}
}

// wednesday is a fixed mid-week clock for due-date assertions.
var wednesday = time.Date(2026, 8, 19, 10, 0, 0, 0, time.UTC)

func testRouter() *route.Router {
	return route.New(
		route.NewProjectDecider(testCatalog()),
		route.NewDurationDecider(testDurationRules(), route.WithDurationNow(func() time.Time { return wednesday })),
		route.NewTagDecider(testTagRules()),
		route.NewIconDecider(testIcons(), "📄"),
	)
}
