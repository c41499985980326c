package kb

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/alnah/go-voicepipe/internal/analyze"
	"github.com/alnah/go-voicepipe/internal/catalog"
	"github.com/alnah/go-voicepipe/internal/logging"
	"github.com/alnah/go-voicepipe/internal/parse"
	"github.com/alnah/go-voicepipe/internal/route"
)

// Collections maps record categories to collection ids, plus the
// project collection the catalog reads. The shape mirrors the
// kb.collections section of the configuration tree.
type Collections struct {
	Tasks    string `yaml:"tasks"`
	Notes    string `yaml:"notes"`
	Research string `yaml:"research"`
	Projects string `yaml:"projects"`
}

// For returns the collection id for a category. Unclear content files
// with notes; its records already carry the manual review tag.
func (c Collections) For(cat parse.Category) string {
	switch cat {
	case parse.CategoryTask:
		return c.Tasks
	case parse.CategoryResearch:
		return c.Research
	default:
		return c.Notes
	}
}

// Schema names the record properties in the target collections. Zero
// values fall back to the conventional names.
type Schema struct {
	Title   string `yaml:"title"`
	Tags    string `yaml:"tags"`
	Due     string `yaml:"due"`
	Project string `yaml:"project"`
	Aliases string `yaml:"aliases"`
	Status  string `yaml:"status"`
}

func (s Schema) withDefaults() Schema {
	if s.Title == "" {
		s.Title = "Name"
	}
	if s.Tags == "" {
		s.Tags = "Tags"
	}
	if s.Due == "" {
		s.Due = "Due"
	}
	if s.Project == "" {
		s.Project = "Project"
	}
	if s.Aliases == "" {
		s.Aliases = "Aliases"
	}
	if s.Status == "" {
		s.Status = "Status"
	}
	return s
}

// Adapter maps routed records onto the knowledge base and implements
// the verification the cleanup protocol depends on. It also serves the
// project list to the catalog.
type Adapter struct {
	client      *Client
	collections Collections
	schema      Schema
	blockLimit  int
	log         zerolog.Logger
}

// Compile-time interface compliance check.
var _ catalog.Source = (*Adapter)(nil)

// AdapterOption configures an Adapter.
type AdapterOption func(*Adapter)

// WithSchema overrides the record property names.
func WithSchema(s Schema) AdapterOption {
	return func(a *Adapter) { a.schema = s.withDefaults() }
}

// WithBlockLimit sets the per-block content limit in characters.
func WithBlockLimit(n int) AdapterOption {
	return func(a *Adapter) {
		if n > 0 {
			a.blockLimit = n
		}
	}
}

// NewAdapter creates an Adapter writing to the given collections.
func NewAdapter(client *Client, collections Collections, opts ...AdapterOption) *Adapter {
	a := &Adapter{
		client:      client,
		collections: collections,
		schema:      Schema{}.withDefaults(),
		blockLimit:  DefaultBlockLimit,
		log:         logging.WithComponent("kb"),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Create writes one routed record to its category's collection and
// returns the new record id. Properties carry the routing decisions;
// the body lands as chunked paragraph blocks, action items as to-do
// blocks, and key insights as bullets.
func (a *Adapter) Create(ctx context.Context, routed route.Routed) (string, error) {
	rec := routed.Record
	collection := a.collections.For(rec.Category)
	if collection == "" {
		return "", fmt.Errorf("%w for category %q", ErrMissingCollection, rec.Category)
	}

	page := Page{
		Parent:     Parent{DatabaseID: collection},
		Properties: a.properties(routed),
	}
	if routed.Decision.Icon != "" {
		page.Icon = EmojiIcon(routed.Decision.Icon)
	}

	blocks := a.contentBlocks(rec)
	rest := []Block(nil)
	if len(blocks) > maxBlocksPerCall {
		blocks, rest = blocks[:maxBlocksPerCall], blocks[maxBlocksPerCall:]
	}
	page.Children = blocks

	ref, err := a.client.CreatePage(ctx, page)
	if err != nil {
		return "", fmt.Errorf("failed to create record: %w", err)
	}
	if ref.ID == "" {
		return "", errors.New("create returned an empty record id")
	}
	if len(rest) > 0 {
		if err := a.client.AppendBlocks(ctx, ref.ID, rest); err != nil {
			return "", fmt.Errorf("failed to append content blocks: %w", err)
		}
	}

	a.log.Debug().
		Str(logging.FieldEvent, "kb.record.created").
		Str(logging.FieldCategory, string(rec.Category)).
		Str("remote_id", ref.ID).
		Int("blocks", len(blocks)+len(rest)).
		Msg("record created")
	return ref.ID, nil
}

// Verify re-reads the record and reports whether it exists and is not
// archived. A missing record is a clean false, not an error; only
// transport failures error.
func (a *Adapter) Verify(ctx context.Context, remoteID string) (bool, error) {
	page, err := a.client.GetPage(ctx, remoteID)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to verify record: %w", err)
	}
	return !page.Archived && !page.InTrash, nil
}

// ListProjects reads the full project collection, following pagination.
func (a *Adapter) ListProjects(ctx context.Context) ([]catalog.Entry, error) {
	if a.collections.Projects == "" {
		return nil, fmt.Errorf("%w for projects", ErrMissingCollection)
	}

	var entries []catalog.Entry
	var cursor string
	for {
		result, err := a.client.QueryDatabase(ctx, a.collections.Projects, DatabaseQuery{
			StartCursor: cursor,
			PageSize:    100,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to list projects: %w", err)
		}
		for _, page := range result.Results {
			entries = append(entries, a.entryFromPage(page))
		}
		if !result.HasMore || result.NextCursor == "" {
			return entries, nil
		}
		cursor = result.NextCursor
	}
}

func (a *Adapter) properties(routed route.Routed) map[string]Prop {
	rec := routed.Record
	props := map[string]Prop{
		a.schema.Title: {Title: Text(rec.Title)},
	}
	if tags := routed.Decision.Tags; len(tags) > 0 {
		selected := make([]SelectOption, 0, len(tags))
		for _, tag := range tags {
			selected = append(selected, SelectOption{Name: tag})
		}
		props[a.schema.Tags] = Prop{MultiSelect: selected}
	}
	if d := routed.Decision.Duration; d != nil && rec.Category == parse.CategoryTask {
		props[a.schema.Due] = Prop{Date: &DateValue{Start: d.DueDate}}
	}
	if p := routed.Decision.Project; p != nil {
		if id, ok := normalizeID(p.ID); ok {
			props[a.schema.Project] = Prop{Relation: []Relation{{ID: id}}}
		} else {
			// Hand-kept fallback lists carry ids the relation endpoint
			// would reject.
			a.log.Warn().
				Str(logging.FieldEvent, "kb.relation.skipped").
				Str(logging.FieldProject, p.Name).
				Msg("project id is not a record id, skipping relation")
		}
	}
	return props
}

func (a *Adapter) contentBlocks(rec analyze.Record) []Block {
	var blocks []Block
	for _, chunk := range SplitBlocks(rec.Body, a.blockLimit) {
		blocks = append(blocks, ParagraphBlock(chunk))
	}
	for _, item := range rec.ActionItems {
		for _, chunk := range SplitBlocks(item, a.blockLimit) {
			blocks = append(blocks, ToDoBlock(chunk))
		}
	}
	for _, insight := range rec.KeyInsights {
		for _, chunk := range SplitBlocks(insight, a.blockLimit) {
			blocks = append(blocks, BulletBlock(chunk))
		}
	}
	return blocks
}

func (a *Adapter) entryFromPage(page PageRef) catalog.Entry {
	entry := catalog.Entry{ID: page.ID, Archived: page.Archived || page.InTrash}
	for name, prop := range page.Properties {
		switch {
		case len(prop.Title) > 0:
			entry.Name = plain(prop.Title)
		case name == a.schema.Aliases && len(prop.RichText) > 0:
			entry.Aliases = splitAliases(plain(prop.RichText))
		case name == a.schema.Status && prop.Select != nil:
			entry.Status = prop.Select.Name
		}
	}
	if strings.EqualFold(entry.Status, "archived") {
		entry.Archived = true
	}
	return entry
}

// splitAliases reads a comma or newline separated alias list.
func splitAliases(s string) []string {
	var out []string
	for _, alias := range strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == '\n' || r == ';'
	}) {
		if trimmed := strings.TrimSpace(alias); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// normalizeID canonicalizes a record id. Some surfaces hand out
// hyphenless ids; the relation endpoint wants the canonical form.
func normalizeID(id string) (string, bool) {
	parsed, err := uuid.Parse(id)
	if err != nil {
		return "", false
	}
	return parsed.String(), true
}
