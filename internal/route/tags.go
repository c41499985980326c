package route

import "github.com/alnah/go-voicepipe/internal/analyze"

// Tags attached by the TagDecider.
const (
	TagCommunications     = "communications"
	TagNeedsExternalInput = "needs_external_input"
	TagManualReview       = "manual_review"
)

// TagRules holds the configured pattern lists. The shape mirrors the
// patterns section of the configuration tree.
type TagRules struct {
	Communications     []string `yaml:"communications"`
	NeedsHumanReview   []string `yaml:"needs_human_review"`
	NeedsExternalInput []string `yaml:"needs_external_input"`
}

// TagDecider attaches tags from whole-word pattern matches and from the
// record's own review signals.
type TagDecider struct {
	rules TagRules
}

// NewTagDecider creates a decider from rules.
func NewTagDecider(rules TagRules) *TagDecider {
	return &TagDecider{rules: rules}
}

// Decide returns the tags for rec, always in the same order. The
// project argument is the ProjectDecider's result; an unresolved
// project forces manual review.
func (d *TagDecider) Decide(rec analyze.Record, project *Project) []string {
	text := foldText(rec.Body)

	var tags []string
	if firstPhrase(text, d.rules.Communications) != "" {
		tags = append(tags, TagCommunications)
	}
	if firstPhrase(text, d.rules.NeedsExternalInput) != "" {
		tags = append(tags, TagNeedsExternalInput)
	}
	if d.manualReview(rec, project, text) {
		tags = append(tags, TagManualReview)
	}
	return tags
}

// manualReview triggers on low analyzer confidence, an unresolved
// project, an upstream review flag, or hedging phrases in the body.
func (d *TagDecider) manualReview(rec analyze.Record, project *Project, text string) bool {
	return rec.Confidence == analyze.ConfidenceLow ||
		project == nil ||
		rec.ManualReview ||
		firstPhrase(text, d.rules.NeedsHumanReview) != ""
}
