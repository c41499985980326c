package pipeline

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/renameio/v2"

	"github.com/alnah/go-voicepipe/internal/analyze"
	"github.com/alnah/go-voicepipe/internal/route"
)

// sidecarSuffix completes a stem into its sidecar file name.
const sidecarSuffix = "_processed.json"

// Analysis is the sidecar rendering of one analysis record. Content
// carries the record body; Project is the spoken project reference, null
// when none was given (the resolved id lives in Routing).
type Analysis struct {
	Category     string   `json:"category"`
	Title        string   `json:"title"`
	Content      string   `json:"content"`
	ActionItems  []string `json:"action_items,omitempty"`
	KeyInsights  []string `json:"key_insights,omitempty"`
	Confidence   string   `json:"confidence"`
	Project      *string  `json:"project"`
	ManualReview bool     `json:"manual_review"`
}

// Routing is the sidecar rendering of the routing decision.
type Routing struct {
	ProjectID string          `json:"project_id,omitempty"`
	Duration  *route.Duration `json:"duration,omitempty"`
	Tags      []string        `json:"tags"`
	Icon      string          `json:"icon"`
}

// Entry pairs one analysis with its routing and the record it produced.
// Used only when a transcript yields several records.
type Entry struct {
	Analysis Analysis `json:"analysis"`
	Routing  Routing  `json:"routing"`
	RemoteID string   `json:"remote_id"`
}

// Sidecar is the processed/<stem>_processed.json document. Its presence
// is the on-disk proof that every record it names was created and
// verified remotely. A single-record transcript uses the flat
// analysis/routing/remote_id fields; a multi-record one uses Analyses.
type Sidecar struct {
	OriginalFile string    `json:"original_file"`
	Analysis     *Analysis `json:"analysis,omitempty"`
	Analyses     []Entry   `json:"analyses,omitempty"`
	Routing      *Routing  `json:"routing,omitempty"`
	RemoteID     string    `json:"remote_id,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
}

// RemoteIDs lists every record id the sidecar vouches for, in creation
// order.
func (s Sidecar) RemoteIDs() []string {
	if s.RemoteID != "" {
		return []string{s.RemoteID}
	}
	ids := make([]string, 0, len(s.Analyses))
	for _, entry := range s.Analyses {
		ids = append(ids, entry.RemoteID)
	}
	return ids
}

// SidecarPath returns the sidecar location for a source stem.
func SidecarPath(dir, stem string) string {
	return filepath.Join(dir, stem+sidecarSuffix)
}

// ReadSidecar loads and decodes a sidecar document.
func ReadSidecar(path string) (Sidecar, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- sidecar paths derive from the configured output dir
	if err != nil {
		return Sidecar{}, fmt.Errorf("read sidecar: %w", err)
	}
	var s Sidecar
	if err := json.Unmarshal(data, &s); err != nil {
		return Sidecar{}, fmt.Errorf("decode sidecar %s: %w", path, err)
	}
	return s, nil
}

// writeSidecar persists the document atomically. A crash mid-write must
// not leave a truncated sidecar: a half document that still parses could
// vouch for records that were never verified.
func writeSidecar(path string, s Sidecar) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("create sidecar dir: %w", err)
	}
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("encode sidecar: %w", err)
	}
	if err := renameio.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write sidecar: %w", err)
	}
	return nil
}

// sidecarAnalysis renders one record for the sidecar.
func sidecarAnalysis(rec analyze.Record) Analysis {
	var project *string
	if rec.ProjectHint != "" {
		hint := rec.ProjectHint
		project = &hint
	}
	return Analysis{
		Category:     string(rec.Category),
		Title:        rec.Title,
		Content:      rec.Body,
		ActionItems:  rec.ActionItems,
		KeyInsights:  rec.KeyInsights,
		Confidence:   string(rec.Confidence),
		Project:      project,
		ManualReview: rec.ManualReview,
	}
}

// sidecarRouting renders one routing decision for the sidecar.
func sidecarRouting(d route.Decision) Routing {
	r := Routing{
		Duration: d.Duration,
		Tags:     d.Tags,
		Icon:     d.Icon,
	}
	if r.Tags == nil {
		r.Tags = []string{}
	}
	if d.Project != nil {
		r.ProjectID = d.Project.ID
	}
	return r
}
