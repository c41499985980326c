// Package pipeline turns one transcript into verified knowledge-base
// records: parse, analyze, route, create, verify, and finally the
// processed sidecar. The sidecar only ever exists for transcripts whose
// records were all created and verified remotely; every downstream
// cleanup decision keys on that.
package pipeline

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/alnah/go-voicepipe/internal/analyze"
	"github.com/alnah/go-voicepipe/internal/audio"
	"github.com/alnah/go-voicepipe/internal/logging"
	"github.com/alnah/go-voicepipe/internal/parse"
	"github.com/alnah/go-voicepipe/internal/route"
)

// Router decides routing for one record. *route.Router satisfies it.
type Router interface {
	Route(ctx context.Context, rec analyze.Record) (route.Routed, error)
}

// RecordStore creates and verifies remote records. *kb.Adapter satisfies
// it.
type RecordStore interface {
	Create(ctx context.Context, routed route.Routed) (string, error)
	Verify(ctx context.Context, remoteID string) (bool, error)
}

// Timings holds per-step wall-clock durations for the run summary.
type Timings struct {
	Parse   time.Duration
	Analyze time.Duration
	Route   time.Duration
	Create  time.Duration
	Verify  time.Duration
	Total   time.Duration
}

// Result reports one processed transcript. RemoteIDs and SidecarPath
// are only set once every record passed verification and the sidecar
// landed on disk.
type Result struct {
	TranscriptPath string
	Stem           string
	Records        int
	RemoteIDs      []string
	SidecarPath    string
	ManualReview   bool
	DryRun         bool
	Timings        Timings
}

// Pipeline processes transcripts one at a time. Safe for concurrent use
// as long as its collaborators are.
type Pipeline struct {
	parser   *parse.Parser
	analyzer analyze.Analyzer
	router   Router
	store    RecordStore
	outDir   string
	dryRun   bool
	now      func() time.Time
	log      zerolog.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithDryRun makes Process simulate: everything up to routing runs for
// real, then intended records are logged and nothing is created or
// written.
func WithDryRun(on bool) Option {
	return func(p *Pipeline) { p.dryRun = on }
}

// withNow sets the sidecar timestamp clock (for testing).
func withNow(fn func() time.Time) Option {
	return func(p *Pipeline) { p.now = fn }
}

// New creates a Pipeline writing sidecars under outDir.
func New(parser *parse.Parser, analyzer analyze.Analyzer, router Router, store RecordStore, outDir string, opts ...Option) *Pipeline {
	p := &Pipeline{
		parser:   parser,
		analyzer: analyzer,
		router:   router,
		store:    store,
		outDir:   outDir,
		now:      time.Now,
		log:      logging.WithComponent("pipeline"),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// SidecarFor returns where Process would write the sidecar for a stem.
func (p *Pipeline) SidecarFor(stem string) string {
	return SidecarPath(p.outDir, stem)
}

// Process runs one transcript end to end. sourcePath names the original
// recording for the sidecar; pass "" when processing a standalone
// transcript. Any error means no sidecar was written and the source must
// be retained.
func (p *Pipeline) Process(ctx context.Context, transcriptPath, sourcePath string) (Result, error) {
	stem := audio.Stem(transcriptPath)
	res := Result{TranscriptPath: transcriptPath, Stem: stem, DryRun: p.dryRun}
	if sourcePath == "" {
		sourcePath = transcriptPath
	}
	total := time.Now()

	raw, err := os.ReadFile(transcriptPath) // #nosec G304 -- transcript paths derive from the configured output dir
	if err != nil {
		return res, stepErr(StepRead, fmt.Errorf("read transcript: %w", err))
	}

	step := time.Now()
	parsed, err := p.parser.Parse(raw)
	res.Timings.Parse = time.Since(step)
	if err != nil {
		return res, stepErr(StepParse, fmt.Errorf("parse %s: %w", stem, err))
	}

	step = time.Now()
	records, err := p.analyzer.Analyze(ctx, parsed)
	res.Timings.Analyze = time.Since(step)
	if err != nil {
		return res, stepErr(StepAnalyze, fmt.Errorf("analyze %s: %w", stem, err))
	}
	if len(records) == 0 {
		return res, stepErr(StepAnalyze, fmt.Errorf("%w for %s", ErrNoRecords, stem))
	}
	res.Records = len(records)

	step = time.Now()
	routed := make([]route.Routed, 0, len(records))
	for _, rec := range records {
		r, err := p.router.Route(ctx, rec)
		if err != nil {
			return res, stepErr(StepRoute, fmt.Errorf("route %s: %w", stem, err))
		}
		if r.Record.ManualReview {
			res.ManualReview = true
		}
		routed = append(routed, r)
	}
	res.Timings.Route = time.Since(step)

	if p.dryRun {
		for _, r := range routed {
			p.log.Info().
				Str(logging.FieldEvent, "pipeline.dryrun.record").
				Str(logging.FieldStem, stem).
				Str(logging.FieldCategory, string(r.Record.Category)).
				Str("title", r.Record.Title).
				Msg("dry run: would create record")
		}
		res.Timings.Total = time.Since(total)
		return res, nil
	}

	step = time.Now()
	ids := make([]string, 0, len(routed))
	for _, r := range routed {
		id, err := p.store.Create(ctx, r)
		if err != nil {
			return res, stepErr(StepCreate, fmt.Errorf("create record for %s: %w", stem, err))
		}
		ids = append(ids, id)
	}
	res.Timings.Create = time.Since(step)

	step = time.Now()
	for _, id := range ids {
		ok, err := p.store.Verify(ctx, id)
		if err != nil {
			return res, stepErr(StepVerify, fmt.Errorf("verify record %s: %w", id, err))
		}
		if !ok {
			logging.Safety(p.log, "unverified_record").
				Str(logging.FieldStem, stem).
				Str("remote_id", id).
				Msg("record created but failed verification; source retained")
			return res, stepErr(StepVerify, fmt.Errorf("%w: %s", ErrUnverified, id))
		}
	}
	res.Timings.Verify = time.Since(step)

	path := SidecarPath(p.outDir, stem)
	if err := writeSidecar(path, p.buildSidecar(sourcePath, routed, ids)); err != nil {
		return res, stepErr(StepSidecar, err)
	}
	res.RemoteIDs = ids
	res.SidecarPath = path
	res.Timings.Total = time.Since(total)

	p.log.Info().
		Str(logging.FieldEvent, "pipeline.done").
		Str(logging.FieldStem, stem).
		Int("records", len(ids)).
		Dur(logging.FieldDuration, res.Timings.Total).
		Msg("transcript processed")
	return res, nil
}

// buildSidecar assembles the document: flat fields for a single record,
// the analyses array when a transcript yielded several.
func (p *Pipeline) buildSidecar(sourcePath string, routed []route.Routed, ids []string) Sidecar {
	s := Sidecar{
		OriginalFile: sourcePath,
		Timestamp:    p.now(),
	}
	if len(routed) == 1 {
		analysis := sidecarAnalysis(routed[0].Record)
		routing := sidecarRouting(routed[0].Decision)
		s.Analysis = &analysis
		s.Routing = &routing
		s.RemoteID = ids[0]
		return s
	}
	for i, r := range routed {
		s.Analyses = append(s.Analyses, Entry{
			Analysis: sidecarAnalysis(r.Record),
			Routing:  sidecarRouting(r.Decision),
			RemoteID: ids[i],
		})
	}
	return s
}
