// Package catalog fetches, caches, and fuzzy-matches the list of known
// projects so free-text project references resolve to stable ids.
package catalog

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/alnah/go-voicepipe/internal/logging"
)

// DefaultFreshness is the cache window after which the remote list is
// re-fetched.
const DefaultFreshness = 60 * time.Minute

// DefaultThreshold is the minimum confidence for a match to resolve to a
// project id. Below it the match is reported but the id stays null.
const DefaultThreshold = 0.80

// Entry is one known project.
type Entry struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	Aliases  []string `json:"aliases,omitempty"`
	Status   string   `json:"status,omitempty"`
	Archived bool     `json:"archived,omitempty"`
}

// Match is the outcome of resolving a query against the catalog.
// A zero Match means nothing scored at all.
type Match struct {
	ID         string  // empty when confidence is below the threshold
	Name       string  // canonical name or alias that matched
	Confidence float64 // best score seen, even when unresolved
	Via        string  // "canonical", "alias", "substring", "substring_alias", "fuzzy"
	Degraded   bool    // resolution ran against stale or fallback data
}

// Resolved reports whether the match carries a usable project id.
func (m Match) Resolved() bool { return m.ID != "" }

// Source lists projects from the knowledge base.
type Source interface {
	ListProjects(ctx context.Context) ([]Entry, error)
}

// snapshot is one immutable view of the project list. Readers get either
// the old or the new pointer, never a torn state.
type snapshot struct {
	entries   []Entry
	fetchedAt time.Time
	degraded  bool
}

// Catalog resolves free-text project references. Safe for concurrent use;
// at most one goroutine refreshes at a time.
type Catalog struct {
	source    Source
	cachePath string
	freshness time.Duration
	threshold float64
	fallback  []Entry
	now       func() time.Time
	log       zerolog.Logger

	mu   sync.RWMutex
	snap *snapshot
}

// Option configures a Catalog.
type Option func(*Catalog)

// WithCachePath sets the on-disk cache location. Empty disables caching.
func WithCachePath(path string) Option {
	return func(c *Catalog) { c.cachePath = path }
}

// WithFreshness sets the cache freshness window.
func WithFreshness(d time.Duration) Option {
	return func(c *Catalog) {
		if d > 0 {
			c.freshness = d
		}
	}
}

// WithThreshold sets the resolution confidence threshold.
func WithThreshold(t float64) Option {
	return func(c *Catalog) {
		if t > 0 {
			c.threshold = t
		}
	}
}

// WithFallback sets the built-in project list used when the remote source
// is unreachable and no cache exists.
func WithFallback(entries []Entry) Option {
	return func(c *Catalog) { c.fallback = entries }
}

// WithNow sets the clock (for testing).
func WithNow(fn func() time.Time) Option {
	return func(c *Catalog) { c.now = fn }
}

// New creates a Catalog backed by source.
func New(source Source, opts ...Option) *Catalog {
	c := &Catalog{
		source:    source,
		freshness: DefaultFreshness,
		threshold: DefaultThreshold,
		now:       time.Now,
		log:       logging.WithComponent("catalog"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Resolve matches query against the project list using the tiered
// pipeline (exact canonical, exact alias, whole-word substring, fuzzy).
// A confidence below the threshold returns an unresolved Match that still
// reports the best candidate for logging.
func (c *Catalog) Resolve(ctx context.Context, query string) (Match, error) {
	entries, degraded, err := c.entries(ctx)
	if err != nil {
		return Match{}, err
	}

	m := bestMatch(query, entries)
	m.Degraded = degraded
	if m.Confidence < c.threshold {
		c.log.Debug().
			Str(logging.FieldEvent, "catalog.resolve.below_threshold").
			Str("query", query).
			Float64(logging.FieldConfidence, m.Confidence).
			Str("candidate", m.Name).
			Msg("no project above threshold")
		m.ID = ""
	}
	return m, nil
}

// ResolveFromText scans the end of body for a spoken project reference:
// suffix windows of one to five tokens, longest first, skipping tokens
// that are exactly a category keyword. The first window that resolves
// above the threshold wins.
func (c *Catalog) ResolveFromText(ctx context.Context, body string) (Match, error) {
	entries, degraded, err := c.entries(ctx)
	if err != nil {
		return Match{}, err
	}

	var best Match
	for _, window := range suffixWindows(body) {
		m := bestMatch(window, entries)
		if m.Confidence >= c.threshold {
			m.Degraded = degraded
			return m, nil
		}
		if m.Confidence > best.Confidence {
			best = m
		}
	}
	best.ID = ""
	best.Degraded = degraded
	return best, nil
}

// Refresh forces a remote fetch, replacing the snapshot and cache.
func (c *Catalog) Refresh(ctx context.Context) error {
	entries, err := c.source.ListProjects(ctx)
	if err != nil {
		return err
	}
	entries = dropArchived(entries)
	fetchedAt := c.now()

	if c.cachePath != "" {
		if err := writeCache(c.cachePath, entries, fetchedAt); err != nil {
			c.log.Warn().Err(err).Str(logging.FieldEvent, "catalog.cache.write_failed").
				Str(logging.FieldPath, c.cachePath).Msg("project cache not persisted")
		}
	}

	c.mu.Lock()
	c.snap = &snapshot{entries: entries, fetchedAt: fetchedAt}
	c.mu.Unlock()

	c.log.Info().Str(logging.FieldEvent, "catalog.refresh").
		Int("projects", len(entries)).Msg("project catalog refreshed")
	return nil
}

// entries returns the current project list, fetching or degrading as
// needed. The degraded flag is true when the data is stale or built-in.
func (c *Catalog) entries(ctx context.Context) ([]Entry, bool, error) {
	c.mu.RLock()
	snap := c.snap
	c.mu.RUnlock()

	if snap != nil && c.fresh(snap.fetchedAt) {
		return snap.entries, snap.degraded, nil
	}

	// Disk cache from a previous run may still be fresh.
	if snap == nil && c.cachePath != "" {
		if cached, fetchedAt, err := readCache(c.cachePath); err == nil && c.fresh(fetchedAt) {
			snap = &snapshot{entries: cached, fetchedAt: fetchedAt}
			c.mu.Lock()
			c.snap = snap
			c.mu.Unlock()
			return snap.entries, false, nil
		}
	}

	if err := c.Refresh(ctx); err == nil {
		c.mu.RLock()
		snap = c.snap
		c.mu.RUnlock()
		return snap.entries, snap.degraded, nil
	} else if ctx.Err() != nil {
		return nil, false, ctx.Err()
	} else {
		c.log.Warn().Err(err).Str(logging.FieldEvent, "catalog.degraded").
			Msg("project source unreachable, degrading")
	}

	// Degraded: prefer any stale data over the built-in fallback list.
	if snap != nil {
		return snap.entries, true, nil
	}
	if c.cachePath != "" {
		if cached, fetchedAt, err := readCache(c.cachePath); err == nil {
			stale := &snapshot{entries: cached, fetchedAt: fetchedAt, degraded: true}
			c.mu.Lock()
			c.snap = stale
			c.mu.Unlock()
			return stale.entries, true, nil
		}
	}
	return c.fallback, true, nil
}

func (c *Catalog) fresh(fetchedAt time.Time) bool {
	return c.now().Sub(fetchedAt) < c.freshness
}

func dropArchived(entries []Entry) []Entry {
	out := entries[:0:0]
	for _, e := range entries {
		if !e.Archived {
			out = append(out, e)
		}
	}
	return out
}
