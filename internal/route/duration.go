package route

import (
	"fmt"
	"strings"
	"time"

	"github.com/alnah/go-voicepipe/internal/analyze"
)

// Class is a task effort bucket.
type Class string

const (
	// ClassQuick fits replies and small confirmations, due same day.
	ClassQuick Class = "quick"
	// ClassMedium fits researchable decisions, due next Friday.
	ClassMedium Class = "medium"
	// ClassLong fits deep work spanning hours or days, due month end.
	ClassLong Class = "long"
)

// Due dates are calendar dates on the wire.
const dateLayout = "2006-01-02"

// Duration is the router's effort estimate for a task.
type Duration struct {
	Class            Class  `json:"class"`
	EstimatedMinutes int    `json:"estimated_minutes"`
	DueDate          string `json:"due_date"`
	Reason           string `json:"reason"`
}

// ClassRule configures one effort class: its minute estimate and the
// keywords that select it.
type ClassRule struct {
	Minutes  int      `yaml:"minutes"`
	Keywords []string `yaml:"keywords"`
}

// DurationRules holds the three class rules. The shape mirrors the
// durations section of the configuration tree.
type DurationRules struct {
	Quick  ClassRule `yaml:"quick"`
	Medium ClassRule `yaml:"medium"`
	Long   ClassRule `yaml:"long"`
}

// DurationDecider classifies task effort from wording. Keyword matching
// is whole-word and case-insensitive; when wording matches several
// classes the longer class wins.
type DurationDecider struct {
	rules DurationRules
	now   func() time.Time
}

// DurationOption configures a DurationDecider.
type DurationOption func(*DurationDecider)

// WithDurationNow sets the clock (for testing).
func WithDurationNow(fn func() time.Time) DurationOption {
	return func(d *DurationDecider) { d.now = fn }
}

// NewDurationDecider creates a decider from rules.
func NewDurationDecider(rules DurationRules, opts ...DurationOption) *DurationDecider {
	d := &DurationDecider{rules: rules, now: time.Now}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Decide classifies rec and attaches the due date for its class: quick
// is due today, medium next Friday, long the last day of the month. A
// body with no duration keywords defaults to medium.
func (d *DurationDecider) Decide(rec analyze.Record) *Duration {
	text := foldText(rec.Body)

	hits := make(map[Class]string, 3)
	classes := []struct {
		class Class
		rule  ClassRule
	}{
		{ClassLong, d.rules.Long},
		{ClassMedium, d.rules.Medium},
		{ClassQuick, d.rules.Quick},
	}
	for _, c := range classes {
		if kw := firstPhrase(text, c.rule.Keywords); kw != "" {
			hits[c.class] = kw
		}
	}

	chosen := ClassMedium
	for _, c := range classes {
		if _, ok := hits[c.class]; ok {
			chosen = c.class
			break
		}
	}

	return &Duration{
		Class:            chosen,
		EstimatedMinutes: d.minutes(chosen),
		DueDate:          d.due(chosen).Format(dateLayout),
		Reason:           reason(chosen, hits),
	}
}

func (d *DurationDecider) minutes(c Class) int {
	switch c {
	case ClassQuick:
		return d.rules.Quick.Minutes
	case ClassLong:
		return d.rules.Long.Minutes
	default:
		return d.rules.Medium.Minutes
	}
}

func (d *DurationDecider) due(c Class) time.Time {
	today := d.now()
	switch c {
	case ClassQuick:
		return today
	case ClassLong:
		return monthEnd(today)
	default:
		return nextFriday(today)
	}
}

// reason explains the classification in one human-readable line.
func reason(chosen Class, hits map[Class]string) string {
	if len(hits) == 0 {
		return "no duration keywords matched; defaulting to medium"
	}
	line := fmt.Sprintf("matched %q", hits[chosen])
	var losers []string
	for _, c := range []Class{ClassLong, ClassMedium, ClassQuick} {
		if c == chosen {
			continue
		}
		if kw, ok := hits[c]; ok {
			losers = append(losers, fmt.Sprintf("%q (%s)", kw, c))
		}
	}
	if len(losers) > 0 {
		line += fmt.Sprintf("; %s wins over %s", chosen, strings.Join(losers, ", "))
	}
	return line
}

// nextFriday returns the first Friday strictly after t's date, or seven
// days out when t already is a Friday.
func nextFriday(t time.Time) time.Time {
	days := (int(time.Friday) - int(t.Weekday()) + 7) % 7
	if days == 0 {
		days = 7
	}
	return t.AddDate(0, 0, days)
}

// monthEnd returns the last day of t's month.
func monthEnd(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month()+1, 0, 0, 0, 0, 0, t.Location())
}
