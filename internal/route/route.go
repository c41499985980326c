// Package route turns an analysis record into a fully routed record:
// resolved project, duration class with due date (tasks), tags, and a
// record icon. The four deciders are independent; the Router composes
// them and never fails on content grounds, only on context cancellation.
package route

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/alnah/go-voicepipe/internal/analyze"
	"github.com/alnah/go-voicepipe/internal/logging"
	"github.com/alnah/go-voicepipe/internal/parse"
)

// Project is the routing view of a resolved catalog match.
type Project struct {
	ID         string  `json:"id"`
	Name       string  `json:"name"`
	Confidence float64 `json:"confidence"`
	// Degraded marks a resolution made from stale or fallback data.
	Degraded bool `json:"degraded,omitempty"`
}

// Decision carries the four routing choices for one record.
type Decision struct {
	// Project is nil when no catalog entry resolved above threshold.
	Project *Project `json:"project"`
	// Duration is set for tasks only.
	Duration *Duration `json:"duration,omitempty"`
	Tags     []string  `json:"tags"`
	Icon     string    `json:"icon"`
}

// Routed pairs a record with its routing decision.
type Routed struct {
	Record   analyze.Record `json:"record"`
	Decision Decision       `json:"decision"`
}

// Router runs all four deciders over a record.
type Router struct {
	project  *ProjectDecider
	duration *DurationDecider
	tags     *TagDecider
	icon     *IconDecider
	log      zerolog.Logger
}

// New creates a Router from the four deciders.
func New(project *ProjectDecider, duration *DurationDecider, tags *TagDecider, icon *IconDecider) *Router {
	return &Router{
		project:  project,
		duration: duration,
		tags:     tags,
		icon:     icon,
		log:      logging.WithComponent("route"),
	}
}

// Route decides project, duration, tags, and icon for rec. The only
// error it returns is context cancellation; an unresolvable project or
// an unmatched icon degrade to nil and the default glyph.
func (r *Router) Route(ctx context.Context, rec analyze.Record) (Routed, error) {
	project, err := r.project.Decide(ctx, rec)
	if err != nil {
		return Routed{}, err
	}

	var duration *Duration
	if rec.Category == parse.CategoryTask {
		duration = r.duration.Decide(rec)
	}

	routed := Routed{
		Record: rec,
		Decision: Decision{
			Project:  project,
			Duration: duration,
			Tags:     r.tags.Decide(rec, project),
			Icon:     r.icon.Decide(rec),
		},
	}

	event := r.log.Debug().
		Str(logging.FieldEvent, "route.decided").
		Str(logging.FieldCategory, string(rec.Category)).
		Strs("tags", routed.Decision.Tags).
		Str("icon", routed.Decision.Icon)
	if project != nil {
		event = event.
			Str(logging.FieldProject, project.Name).
			Float64(logging.FieldConfidence, project.Confidence)
	}
	if duration != nil {
		event = event.Str("class", string(duration.Class)).Str("due", duration.DueDate)
	}
	event.Msg("record routed")

	return routed, nil
}
