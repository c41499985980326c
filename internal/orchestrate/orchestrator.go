// Package orchestrate runs one batch session end to end: detect source
// recordings, validate them, transcribe in duration-budgeted batches,
// process transcripts into knowledge-base records, then verify, archive
// and retire sources. Per-file failures retain the file for a later run;
// only environment failures abort the session.
package orchestrate

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/renameio/v2"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/alnah/go-voicepipe/internal/archive"
	"github.com/alnah/go-voicepipe/internal/audio"
	"github.com/alnah/go-voicepipe/internal/logging"
	"github.com/alnah/go-voicepipe/internal/monitor"
	"github.com/alnah/go-voicepipe/internal/pipeline"
	"github.com/alnah/go-voicepipe/internal/session"
	"github.com/alnah/go-voicepipe/internal/transcribe"
)

// DefaultWorkers is the transcription pool size.
const DefaultWorkers = 3

// admissionPoll is how often a worker re-checks CPU admission while
// waiting for headroom.
const admissionPoll = time.Second

// Transcriber converts staged audio to text. *transcribe.Service
// satisfies it.
type Transcriber interface {
	Available(ctx context.Context) bool
	Transcribe(ctx context.Context, path string, estimated time.Duration) (transcribe.Result, error)
}

// Processor turns one transcript into verified records and a sidecar.
// *pipeline.Pipeline satisfies it.
type Processor interface {
	Process(ctx context.Context, transcriptPath, sourcePath string) (pipeline.Result, error)
	SidecarFor(stem string) string
}

// Verifier re-checks that a remote record exists before any source is
// retired. *kb.Adapter satisfies it.
type Verifier interface {
	Verify(ctx context.Context, remoteID string) (bool, error)
}

// Admitter gates worker starts on system load. *monitor.CPU satisfies
// it; a nil Admitter always admits.
type Admitter interface {
	CanStartWorker() bool
}

// Options configures one run.
type Options struct {
	SourceDir     string
	Extension     string
	StagingDir    string
	TranscriptDir string
	FailedDir     string

	BytesPerMinute int64
	MinDuration    time.Duration // 0 disables the short filter
	MaxDuration    time.Duration // 0 disables the long filter
	MinFreeBytes   int64         // 0 disables the staging disk floor

	Workers        int
	BatchBudget    time.Duration
	ProcessWorkers int // clamped to 2

	Retention time.Duration // archive partitions and closed journal sessions

	SkipSteps []string // stage names: s1..s5
	DryRun    bool
}

// Deps are the collaborators a run drives.
type Deps struct {
	Transcriber Transcriber
	Processor   Processor
	Verifier    Verifier
	Journal     *session.Store
	Archive     *archive.Store
	Admitter    Admitter
}

// Orchestrator owns the five-stage session workflow.
type Orchestrator struct {
	opts Options
	deps Deps
	skip map[string]bool
	now  func() time.Time
	poll time.Duration
	log  zerolog.Logger
}

// Option adjusts orchestrator construction.
type Option func(*Orchestrator)

func withNow(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

func withAdmissionPoll(d time.Duration) Option {
	return func(o *Orchestrator) { o.poll = d }
}

// New builds an orchestrator, applying defaults for zero option fields.
func New(opts Options, deps Deps, options ...Option) *Orchestrator {
	if opts.Extension == "" {
		opts.Extension = ".wav"
	}
	if opts.Workers <= 0 {
		opts.Workers = DefaultWorkers
	}
	if opts.BatchBudget <= 0 {
		opts.BatchBudget = DefaultBatchBudget
	}
	if opts.ProcessWorkers <= 0 {
		opts.ProcessWorkers = 1
	}
	if opts.ProcessWorkers > 2 {
		opts.ProcessWorkers = 2
	}
	if opts.Retention <= 0 {
		opts.Retention = time.Duration(archive.DefaultRetentionDays) * 24 * time.Hour
	}

	skip := make(map[string]bool, len(opts.SkipSteps))
	for _, s := range opts.SkipSteps {
		skip[strings.ToLower(strings.TrimSpace(s))] = true
	}

	o := &Orchestrator{
		opts: opts,
		deps: deps,
		skip: skip,
		now:  time.Now,
		poll: admissionPoll,
		log:  logging.WithComponent("orchestrate"),
	}
	for _, opt := range options {
		opt(o)
	}
	return o
}

// Run executes one session and reports what happened. The returned
// error is nil for clean and partial runs alike; callers distinguish
// partial runs through Summary.Partial. A non-nil error means the
// environment stopped the session: unreachable source with no backlog,
// disk floor, no transcription backend, or cancellation.
func (o *Orchestrator) Run(ctx context.Context) (Summary, error) {
	start := o.now()
	sum := Summary{SessionID: session.NewID(start), DryRun: o.opts.DryRun}

	if !o.opts.DryRun {
		if err := o.deps.Journal.Begin(start); err != nil {
			return sum, fmt.Errorf("failed to open session journal: %w", err)
		}
		sum.SessionID = o.deps.Journal.ID()
	}
	o.log.Info().
		Str(logging.FieldSessionID, sum.SessionID).
		Bool("dry_run", o.opts.DryRun).
		Str(logging.FieldEvent, "run.begin").
		Msg("session started")

	files, err := o.detect(&sum)
	if err != nil {
		o.abort(&sum)
		sum.Elapsed = o.now().Sub(start)
		return sum, err
	}

	if err := o.validate(ctx, files, &sum); err != nil {
		o.abort(&sum)
		sum.Elapsed = o.now().Sub(start)
		return sum, err
	}

	o.transcribeStage(ctx, files, &sum)
	o.processStage(ctx, files, &sum)
	pending := o.finalizeStage(ctx, files, &sum)
	o.cleanupQueued(ctx, &sum)

	o.closeSession(ctx, files, &sum, pending)
	sum.Elapsed = o.now().Sub(start)

	o.log.Info().
		Str(logging.FieldSessionID, sum.SessionID).
		Int("detected", sum.Detected).
		Int("transcribed", sum.Transcribed).
		Int("processed_ok", sum.ProcessedOK).
		Int("processed_fail", sum.ProcessedFail).
		Int("deleted", sum.Deleted).
		Int("retained", len(sum.Retained)).
		Str(logging.FieldEvent, "run.done").
		Msg("session finished")

	if ctx.Err() != nil {
		return sum, ctx.Err()
	}
	return sum, nil
}

// detect is stage 1: scan the source volume and fold in the transcript
// backlog. A missing source volume is fatal only when there is no
// backlog to work on instead.
func (o *Orchestrator) detect(sum *Summary) ([]*File, error) {
	var files []*File
	seen := make(map[string]bool)

	if o.skip["s1"] {
		o.log.Info().Str(logging.FieldStage, "s1").Str(logging.FieldEvent, "stage.skipped").Msg("detection skipped")
	} else {
		items, unreadable, err := audio.Discover(o.opts.SourceDir, o.opts.Extension, o.opts.BytesPerMinute, o.now())
		if err != nil {
			if len(o.backlog(nil)) == 0 {
				return nil, fmt.Errorf("%w: %s: %w", ErrSourceUnreachable, o.opts.SourceDir, err)
			}
			o.log.Warn().Err(err).
				Str(logging.FieldPath, o.opts.SourceDir).
				Str(logging.FieldEvent, "detect.source_unreachable").
				Msg("source volume unreachable, continuing with transcript backlog")
		}
		for _, p := range unreadable {
			sum.Skipped = append(sum.Skipped, Skip{Path: p, Reason: ReasonUnreadable})
			o.log.Warn().
				Str(logging.FieldFile, p).
				Str(logging.FieldReason, ReasonUnreadable).
				Str(logging.FieldEvent, "detect.skip").
				Msg("unreadable source file skipped")
		}
		paths := make([]string, 0, len(items))
		for _, it := range items {
			files = append(files, NewFile(it))
			seen[it.Stem] = true
			paths = append(paths, it.Path)
		}
		o.journal("discovered", func(j *session.Store) error { return j.AddDiscovered(paths...) })
	}

	for _, t := range o.backlog(seen) {
		files = append(files, NewBacklogFile(t))
		o.log.Info().
			Str(logging.FieldFile, t).
			Str(logging.FieldEvent, "detect.backlog").
			Msg("unprocessed transcript queued")
	}

	sum.Detected = len(files)
	return files, nil
}

// backlog lists transcripts that never produced a sidecar, excluding
// stems that are about to be re-transcribed from source this run.
func (o *Orchestrator) backlog(seen map[string]bool) []string {
	entries, err := os.ReadDir(o.opts.TranscriptDir)
	if err != nil {
		return nil
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ".txt") {
			continue
		}
		stem := audio.Stem(e.Name())
		if seen[stem] {
			continue
		}
		if _, err := os.Stat(o.deps.Processor.SidecarFor(stem)); err == nil {
			continue
		}
		out = append(out, filepath.Join(o.opts.TranscriptDir, e.Name()))
	}
	return out
}

// validate is stage 2: filter discovered files by duration and duplicate
// history, then check the environment can carry the batch.
func (o *Orchestrator) validate(ctx context.Context, files []*File, sum *Summary) error {
	if o.skip["s2"] {
		o.log.Info().Str(logging.FieldStage, "s2").Str(logging.FieldEvent, "stage.skipped").Msg("validation skipped")
		for _, f := range files {
			if f.State == StateDiscovered {
				o.advance(f, StateValidated)
			}
		}
		return nil
	}

	needTranscription := false
	for _, f := range files {
		if f.State != StateDiscovered {
			continue
		}
		if reason := o.rejectReason(f.Item); reason != "" {
			f.Skipped = true
			f.Retain(reason)
			sum.Skipped = append(sum.Skipped, Skip{Path: f.Item.Path, Reason: reason})
			if reason == ReasonDuplicate {
				o.journal("duplicate", func(j *session.Store) error {
					return j.AddDuplicateSkipped(f.Item.Path)
				})
			}
			o.log.Info().
				Str(logging.FieldFile, f.Item.Path).
				Str(logging.FieldReason, reason).
				Str(logging.FieldEvent, "validate.skip").
				Msg("file skipped")
			continue
		}
		o.advance(f, StateValidated)
		needTranscription = true
	}

	if !needTranscription || o.opts.DryRun {
		return nil
	}
	if o.opts.MinFreeBytes > 0 {
		if err := os.MkdirAll(o.opts.StagingDir, 0o750); err != nil {
			return fmt.Errorf("failed to create staging dir: %w", err)
		}
		if err := monitor.RequireFreeDisk(o.opts.StagingDir, o.opts.MinFreeBytes); err != nil {
			return err
		}
	}
	if !o.deps.Transcriber.Available(ctx) {
		return ErrNoTranscriber
	}
	return nil
}

// rejectReason names why an item cannot enter the batch, or returns ""
// when it can.
func (o *Orchestrator) rejectReason(item audio.Item) string {
	if o.opts.MinDuration > 0 && item.Duration < o.opts.MinDuration {
		return ReasonTooShort
	}
	if o.opts.MaxDuration > 0 && item.Duration > o.opts.MaxDuration {
		return ReasonTooLong
	}
	if o.deps.Journal != nil && o.deps.Journal.IsDuplicate(item.Fingerprint()) {
		return ReasonDuplicate
	}
	return ""
}

// transcribeStage is stage 3: stage validated files onto local storage
// and transcribe them in duration-budgeted batches through a bounded
// worker pool. Per-file failures retain the file and keep the batch
// going; only cancellation stops the pool.
func (o *Orchestrator) transcribeStage(ctx context.Context, files []*File, sum *Summary) {
	if o.skip["s3"] {
		o.log.Info().Str(logging.FieldStage, "s3").Str(logging.FieldEvent, "stage.skipped").Msg("transcription skipped")
		return
	}

	var pending []*File
	for _, f := range files {
		if f.State == StateValidated {
			pending = append(pending, f)
		}
	}
	if len(pending) == 0 {
		return
	}

	if o.opts.DryRun {
		for _, f := range pending {
			o.log.Info().
				Str(logging.FieldFile, f.Item.Path).
				Dur(logging.FieldDuration, f.Item.Duration).
				Str(logging.FieldEvent, "transcribe.dryrun").
				Msg("would stage and transcribe")
		}
		return
	}

	if err := os.MkdirAll(o.opts.TranscriptDir, 0o750); err != nil {
		o.log.Error().Err(err).Str(logging.FieldPath, o.opts.TranscriptDir).Msg("failed to create transcript dir")
		for _, f := range pending {
			o.retain(f, ReasonTranscribeFailed)
		}
		return
	}

	batches := packBatches(pending, o.opts.BatchBudget)
	for i, batch := range batches {
		if ctx.Err() != nil {
			break
		}
		o.log.Info().
			Int(logging.FieldBatch, i+1).
			Int("files", len(batch)).
			Str(logging.FieldEvent, "transcribe.batch").
			Msg("batch started")
		o.runBatch(ctx, batch, sum)
	}

	if ctx.Err() == nil {
		o.journal("transcription flag", func(j *session.Store) error {
			return j.MarkStageComplete(session.FlagTranscriptionComplete)
		})
	}
}

// runBatch drives one batch through the worker pool. Pool size bounds
// concurrency; the admission gate delays starts while the CPU is hot.
func (o *Orchestrator) runBatch(ctx context.Context, batch []*File, sum *Summary) {
	g, gctx := errgroup.WithContext(ctx)
	sem := make(chan struct{}, o.opts.Workers)
	var mu sync.Mutex

	for _, f := range batch {
		f := f
		g.Go(func() error {
			select {
			case sem <- struct{}{}:
			case <-gctx.Done():
				return gctx.Err()
			}
			defer func() { <-sem }()

			if err := o.waitAdmission(gctx); err != nil {
				return err
			}
			o.transcribeOne(gctx, f, &mu, sum)
			return nil
		})
	}
	_ = g.Wait()
}

// transcribeOne moves a single file VALIDATED -> TRANSCRIBED, reusing a
// transcript left by an interrupted run when one exists.
func (o *Orchestrator) transcribeOne(ctx context.Context, f *File, mu *sync.Mutex, sum *Summary) {
	transcript := filepath.Join(o.opts.TranscriptDir, f.Item.Stem+".txt")

	if _, err := os.Stat(transcript); err == nil {
		o.advance(f, StateStaged)
		o.advance(f, StateTranscribed)
		f.TranscriptPath = transcript
		o.journal("transcribed", func(j *session.Store) error { return j.AddTranscribed(transcript) })
		mu.Lock()
		sum.Transcribed++
		mu.Unlock()
		o.log.Info().
			Str(logging.FieldStem, f.Item.Stem).
			Str(logging.FieldEvent, "transcribe.reused").
			Msg("existing transcript reused")
		return
	}

	staged, err := audio.StageTo(f.Item, o.opts.StagingDir)
	if err != nil {
		o.retain(f, ReasonUnreadable)
		o.log.Warn().Err(err).
			Str(logging.FieldFile, f.Item.Path).
			Str(logging.FieldEvent, "transcribe.stage_failed").
			Msg("failed to stage source file")
		return
	}
	f.Staged = staged
	o.advance(f, StateStaged)
	o.journal("staged", func(j *session.Store) error { return j.AddStaged(staged.Path) })

	res, err := o.deps.Transcriber.Transcribe(ctx, staged.Path, f.Item.Duration)
	if err != nil {
		if ctx.Err() != nil {
			o.retain(f, ReasonCancelled)
			_ = staged.Remove()
			return
		}
		o.retain(f, ReasonTranscribeFailed)
		o.moveToFailed(staged.Path)
		o.log.Warn().Err(err).
			Str(logging.FieldFile, f.Item.Path).
			Str(logging.FieldEvent, "transcribe.failed").
			Msg("transcription failed")
		return
	}

	// Atomic write: a truncated transcript would poison the backlog on
	// the next run.
	if err := renameio.WriteFile(transcript, []byte(res.Text), 0o644); err != nil {
		o.retain(f, ReasonTranscribeFailed)
		o.moveToFailed(staged.Path)
		o.log.Error().Err(err).
			Str(logging.FieldPath, transcript).
			Msg("failed to write transcript")
		return
	}
	f.TranscriptPath = transcript
	o.advance(f, StateTranscribed)
	o.journal("transcribed", func(j *session.Store) error { return j.AddTranscribed(transcript) })
	_ = staged.Remove()

	mu.Lock()
	sum.Transcribed++
	mu.Unlock()
	o.log.Info().
		Str(logging.FieldStem, f.Item.Stem).
		Str(logging.FieldBackend, res.Backend).
		Str(logging.FieldEvent, "transcribe.done").
		Msg("file transcribed")
}

// waitAdmission blocks until the CPU monitor admits a new worker or the
// context ends.
func (o *Orchestrator) waitAdmission(ctx context.Context) error {
	if o.deps.Admitter == nil || o.deps.Admitter.CanStartWorker() {
		return nil
	}
	o.log.Debug().Str(logging.FieldEvent, "transcribe.throttled").Msg("cpu above soft cap, holding worker")
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(o.poll):
		}
		if o.deps.Admitter.CanStartWorker() {
			return nil
		}
	}
}

// processStage is stage 4: run each transcript through the analysis
// pipeline with limited parallelism. Failed transcripts move to the
// failed directory; sources stay on the volume either way.
func (o *Orchestrator) processStage(ctx context.Context, files []*File, sum *Summary) {
	if o.skip["s4"] {
		o.log.Info().Str(logging.FieldStage, "s4").Str(logging.FieldEvent, "stage.skipped").Msg("processing skipped")
		return
	}

	var targets []*File
	for _, f := range files {
		if f.State == StateTranscribed {
			targets = append(targets, f)
		}
	}
	if len(targets) == 0 {
		return
	}

	g, gctx := errgroup.WithContext(ctx)
	sem := make(chan struct{}, o.opts.ProcessWorkers)
	var mu sync.Mutex

	for _, f := range targets {
		f := f
		g.Go(func() error {
			select {
			case sem <- struct{}{}:
			case <-gctx.Done():
				return gctx.Err()
			}
			defer func() { <-sem }()
			o.processOne(gctx, f, &mu, sum)
			return nil
		})
	}
	_ = g.Wait()

	if ctx.Err() == nil {
		o.journal("processing flag", func(j *session.Store) error {
			return j.MarkStageComplete(session.FlagProcessingComplete)
		})
	}
}

// processOne moves a single file TRANSCRIBED -> ANALYZED_OK or
// ANALYZED_FAIL.
func (o *Orchestrator) processOne(ctx context.Context, f *File, mu *sync.Mutex, sum *Summary) {
	res, err := o.deps.Processor.Process(ctx, f.TranscriptPath, f.Item.Path)
	if err != nil {
		if ctx.Err() != nil {
			o.retain(f, ReasonCancelled)
			return
		}
		reason := processReason(err)
		o.advance(f, StateAnalyzedFail)
		f.Reason = reason
		o.journal("analyzed fail", func(j *session.Store) error {
			return j.AddAnalyzedFail(o.pathOf(f))
		})
		if !o.opts.DryRun {
			o.moveToFailed(f.TranscriptPath)
		}
		mu.Lock()
		sum.ProcessedFail++
		mu.Unlock()
		o.log.Warn().Err(err).
			Str(logging.FieldFile, o.pathOf(f)).
			Str(logging.FieldReason, reason).
			Str(logging.FieldEvent, "process.failed").
			Msg("processing failed")
		return
	}

	f.Result = res
	o.advance(f, StateAnalyzedOK)
	o.journal("analyzed ok", func(j *session.Store) error {
		return j.AddAnalyzedOK(o.pathOf(f))
	})
	mu.Lock()
	sum.ProcessedOK++
	mu.Unlock()
	o.log.Info().
		Str(logging.FieldStem, f.Stem()).
		Int("records", len(res.RemoteIDs)).
		Bool("manual_review", res.ManualReview).
		Str(logging.FieldEvent, "process.ok").
		Msg("transcript processed")
}

// processReason maps a pipeline failure to the retain reason recorded in
// the summary and journal.
func processReason(err error) string {
	var step *pipeline.StepError
	if !errors.As(err, &step) {
		return ReasonAnalysisFailed
	}
	switch step.Step {
	case pipeline.StepRead:
		return ReasonUnreadable
	case pipeline.StepParse:
		return ReasonParseFailed
	case pipeline.StepAnalyze:
		return ReasonAnalysisFailed
	case pipeline.StepRoute:
		return ReasonRoutingFailed
	case pipeline.StepCreate:
		return ReasonCreateFailed
	case pipeline.StepVerify:
		if errors.Is(err, pipeline.ErrUnverified) {
			return ReasonUnverified
		}
		return ReasonVerifyFailed
	case pipeline.StepSidecar:
		return ReasonSidecarFailed
	default:
		return ReasonAnalysisFailed
	}
}

// finalizeStage is stage 5: for each successfully processed file,
// re-verify its remote records, copy the source into the archive, and
// only then delete source and transcript. The returned paths are sources
// whose deletion failed and must stay queued.
func (o *Orchestrator) finalizeStage(ctx context.Context, files []*File, sum *Summary) []string {
	if o.skip["s5"] || o.opts.DryRun {
		if o.skip["s5"] {
			o.log.Info().Str(logging.FieldStage, "s5").Str(logging.FieldEvent, "stage.skipped").Msg("archive and cleanup skipped")
		}
		return nil
	}

	day := o.now()
	sid := o.deps.Journal.ID()
	var pending []string
	archiveComplete := true

	for _, f := range files {
		if f.State != StateAnalyzedOK {
			continue
		}
		if ctx.Err() != nil {
			break
		}

		if !o.verifyRemote(ctx, f) {
			archiveComplete = false
			continue
		}
		o.advance(f, StateVerifiedRemote)
		sum.Verified++

		if !f.HasSource() {
			// Backlog transcript: nothing to archive, retire the
			// transcript once its records are confirmed.
			if err := os.Remove(f.TranscriptPath); err != nil && !os.IsNotExist(err) {
				o.log.Warn().Err(err).Str(logging.FieldPath, f.TranscriptPath).Msg("failed to remove processed transcript")
			}
			continue
		}

		token, err := o.deps.Archive.Archive(f.Item.Path, f.Item.Size, day, sid)
		if err != nil {
			archiveComplete = false
			o.retain(f, ReasonArchiveFailed)
			logging.Safety(o.log, "archive_copy_failed").
				Err(err).
				Str(logging.FieldFile, f.Item.Path).
				Msg("source kept: archive copy could not be verified")
			continue
		}
		o.advance(f, StateArchived)
		sum.Archived++

		// The candidate lands in the journal before the delete so a
		// crash between the two leaves the file queued, not lost.
		if err := o.deps.Journal.AddCleanupCandidate(f.Item.Path, f.Item.Fingerprint()); err != nil {
			archiveComplete = false
			o.retain(f, ReasonDeleteFailed)
			o.log.Error().Err(err).Str(logging.FieldFile, f.Item.Path).Msg("failed to record cleanup candidate")
			continue
		}
		if err := token.Delete(); err != nil {
			archiveComplete = false
			o.retain(f, ReasonDeleteFailed)
			pending = append(pending, f.Item.Path)
			o.log.Warn().Err(err).
				Str(logging.FieldFile, f.Item.Path).
				Str(logging.FieldEvent, "finalize.delete_failed").
				Msg("source deletion failed, queued for next run")
			continue
		}
		if err := os.Remove(f.TranscriptPath); err != nil && !os.IsNotExist(err) {
			o.log.Warn().Err(err).Str(logging.FieldPath, f.TranscriptPath).Msg("failed to remove transcript")
		}
		o.advance(f, StateSourceDeleted)
		sum.Deleted++
	}

	if ctx.Err() == nil && archiveComplete {
		o.journal("archive flag", func(j *session.Store) error {
			return j.MarkStageComplete(session.FlagArchiveComplete)
		})
		if !anyFailure(files) {
			o.journal("cleanup flag", func(j *session.Store) error {
				return j.MarkStageComplete(session.FlagCleanupReady)
			})
		}
	}
	return pending
}

// anyFailure reports whether any file failed a stage this run.
// Validation skips are not failures.
func anyFailure(files []*File) bool {
	for _, f := range files {
		if f.Skipped {
			continue
		}
		if f.State == StateAnalyzedFail || f.State == StateRetained {
			return true
		}
	}
	return false
}

// verifyRemote re-checks every remote record behind f's sidecar. A
// false verdict demotes the file to ANALYZED_FAIL; a transport error
// retains it without demoting.
func (o *Orchestrator) verifyRemote(ctx context.Context, f *File) bool {
	sidecar, err := pipeline.ReadSidecar(f.Result.SidecarPath)
	if err != nil {
		o.retain(f, ReasonVerifyFailed)
		o.log.Warn().Err(err).Str(logging.FieldStem, f.Stem()).Msg("failed to read sidecar for verification")
		return false
	}
	ids := sidecar.RemoteIDs()
	if len(ids) == 0 {
		o.demote(f, ReasonUnverified)
		return false
	}
	for _, id := range ids {
		ok, err := o.deps.Verifier.Verify(ctx, id)
		if err != nil {
			o.retain(f, ReasonVerifyFailed)
			o.log.Warn().Err(err).
				Str(logging.FieldStem, f.Stem()).
				Str(logging.FieldEvent, "finalize.verify_error").
				Msg("remote verification failed")
			return false
		}
		if !ok {
			o.demote(f, ReasonUnverified)
			logging.Safety(o.log, "unverified_remote").
				Str(logging.FieldStem, f.Stem()).
				Str("remote_id", id).
				Msg("source kept: remote record missing at verification")
			return false
		}
	}
	return true
}

// demote moves an ANALYZED_OK file back to ANALYZED_FAIL after a failed
// remote verification.
func (o *Orchestrator) demote(f *File, reason string) {
	o.advance(f, StateAnalyzedFail)
	f.Reason = reason
	o.journal("demoted", func(j *session.Store) error {
		return j.AddAnalyzedFail(o.pathOf(f))
	})
}

// cleanupQueued resolves deletions queued by previous sessions, then
// prunes archive partitions and closed journal entries past retention.
func (o *Orchestrator) cleanupQueued(ctx context.Context, sum *Summary) {
	if o.opts.DryRun || o.skip["s5"] {
		return
	}

	queued := o.deps.Journal.PendingDeletions()
	var resolved []string
	for _, p := range queued {
		if ctx.Err() != nil {
			break
		}
		token, err := o.deps.Archive.Resolve(p)
		if errors.Is(err, fs.ErrNotExist) {
			// Source already gone, nothing left to delete.
			resolved = append(resolved, p)
			continue
		}
		if err != nil {
			o.log.Warn().Err(err).
				Str(logging.FieldFile, p).
				Str(logging.FieldEvent, "cleanup.unresolved").
				Msg("queued deletion kept pending")
			continue
		}
		if err := token.Delete(); err != nil {
			o.log.Warn().Err(err).Str(logging.FieldFile, p).Msg("queued deletion failed")
			continue
		}
		resolved = append(resolved, p)
		sum.Deleted++
	}
	if len(queued) > 0 {
		o.journal("queued deletions", func(j *session.Store) error {
			return j.MarkDeleted(o.now(), resolved)
		})
	}

	cutoff := o.now().Add(-o.opts.Retention)
	if _, err := o.deps.Archive.Prune(cutoff); err != nil {
		o.log.Warn().Err(err).Msg("failed to prune archive")
	}
	o.journal("prune", func(j *session.Store) error { return j.PruneClosed(cutoff) })
}

// closeSession retires every file still mid-chain, tears down leftover
// staged copies, and closes the journal.
func (o *Orchestrator) closeSession(ctx context.Context, files []*File, sum *Summary, pending []string) {
	cancelled := ctx.Err() != nil
	for _, f := range files {
		if f.Skipped {
			continue
		}
		if !f.HasSource() && f.State == StateVerifiedRemote {
			continue
		}
		if !f.State.IsTerminal() && f.State != StateAnalyzedFail {
			if cancelled {
				o.retain(f, ReasonCancelled)
			} else {
				o.retain(f, ReasonStageSkipped)
			}
		}
		if f.Staged.Path != "" && f.State != StateSourceDeleted {
			_ = f.Staged.Remove()
		}
		if o.opts.DryRun && f.State != StateAnalyzedFail {
			continue
		}
		sum.record(f)
	}

	o.journal("close", func(j *session.Store) error { return j.Close(o.now(), pending) })
}

// abort closes the journal after an environment failure. Files keep
// whatever state they reached; the next run re-detects them.
func (o *Orchestrator) abort(sum *Summary) {
	o.log.Error().
		Str(logging.FieldSessionID, sum.SessionID).
		Str(logging.FieldEvent, "run.aborted").
		Msg("session aborted")
	o.journal("close", func(j *session.Store) error { return j.Close(o.now(), nil) })
}

// advance moves f to next and logs the transition.
func (o *Orchestrator) advance(f *File, next FileState) {
	old := f.State
	if err := f.Advance(next); err != nil {
		o.log.Warn().Err(err).Str(logging.FieldStem, f.Stem()).Msg("state transition refused")
		return
	}
	o.log.Debug().
		Str(logging.FieldStem, f.Stem()).
		Str(logging.FieldOldState, string(old)).
		Str(logging.FieldNewState, string(next)).
		Str(logging.FieldEvent, "file.state").
		Msg("state advanced")
}

// retain parks f with a reason and logs it.
func (o *Orchestrator) retain(f *File, reason string) {
	f.Retain(reason)
	o.log.Info().
		Str(logging.FieldStem, f.Stem()).
		Str(logging.FieldReason, reason).
		Str(logging.FieldNewState, string(StateRetained)).
		Str(logging.FieldEvent, "file.retained").
		Msg("file retained for next run")
}

// journal applies a journal mutation outside dry runs. Write failures
// degrade to a log line; the sidecar, not the journal, is the record of
// truth for what was created remotely.
func (o *Orchestrator) journal(what string, op func(*session.Store) error) {
	if o.opts.DryRun || o.deps.Journal == nil {
		return
	}
	if err := op(o.deps.Journal); err != nil {
		o.log.Warn().Err(err).Str(logging.FieldEvent, "journal.write_failed").Msg("failed to update session journal: " + what)
	}
}

// moveToFailed relocates a staged copy or transcript into the failed
// directory for manual inspection.
func (o *Orchestrator) moveToFailed(path string) {
	if path == "" {
		return
	}
	if err := os.MkdirAll(o.opts.FailedDir, 0o750); err != nil {
		o.log.Warn().Err(err).Str(logging.FieldPath, o.opts.FailedDir).Msg("failed to create failed dir")
		return
	}
	dest := filepath.Join(o.opts.FailedDir, filepath.Base(path))
	if err := os.Rename(path, dest); err != nil {
		o.log.Warn().Err(err).
			Str(logging.FieldSourcePath, path).
			Str(logging.FieldTargetPath, dest).
			Msg("failed to move file to failed dir")
	}
}

// pathOf names a file by its source path, falling back to the transcript
// for backlog entries.
func (o *Orchestrator) pathOf(f *File) string {
	if f.Item.Path != "" {
		return f.Item.Path
	}
	return f.TranscriptPath
}
