package route

import (
	"context"

	"github.com/alnah/go-voicepipe/internal/analyze"
	"github.com/alnah/go-voicepipe/internal/catalog"
)

// resolver is the catalog surface the decider needs.
type resolver interface {
	Resolve(ctx context.Context, query string) (catalog.Match, error)
	ResolveFromText(ctx context.Context, body string) (catalog.Match, error)
}

// Compile-time interface compliance check.
var _ resolver = (*catalog.Catalog)(nil)

// ProjectDecider resolves the record's project through the catalog. A
// spoken hint is authoritative when present; otherwise the end of the
// body is scanned for a project reference.
type ProjectDecider struct {
	catalog resolver
}

// NewProjectDecider creates a decider backed by cat.
func NewProjectDecider(cat *catalog.Catalog) *ProjectDecider {
	return &ProjectDecider{catalog: cat}
}

// Decide returns the resolved project, or nil when nothing resolved
// above the catalog threshold. The only error is context cancellation.
func (d *ProjectDecider) Decide(ctx context.Context, rec analyze.Record) (*Project, error) {
	var (
		m   catalog.Match
		err error
	)
	if rec.ProjectHint != "" {
		m, err = d.catalog.Resolve(ctx, rec.ProjectHint)
	} else {
		m, err = d.catalog.ResolveFromText(ctx, rec.Body)
	}
	if err != nil {
		return nil, err
	}
	if !m.Resolved() {
		return nil, nil
	}
	return &Project{
		ID:         m.ID,
		Name:       m.Name,
		Confidence: m.Confidence,
		Degraded:   m.Degraded,
	}, nil
}
