package cli

import (
	"context"
	"path/filepath"
	"sync"

	"github.com/alnah/go-voicepipe/internal/config"
	"github.com/alnah/go-voicepipe/internal/orchestrate"
	"github.com/alnah/go-voicepipe/internal/pipeline"
)

// ---------------------------------------------------------------------------
// mockConfigLoader
// ---------------------------------------------------------------------------

// mockConfigLoader loads real stores from a directory unless LoadFunc
// is set. Commands get the genuine layering behavior by default while
// error paths stay scriptable.
type mockConfigLoader struct {
	LoadFunc func(dir string) (*config.Store, error)

	mu   sync.Mutex
	dirs []string
}

func (m *mockConfigLoader) Load(dir string) (*config.Store, error) {
	m.mu.Lock()
	m.dirs = append(m.dirs, dir)
	m.mu.Unlock()

	if m.LoadFunc != nil {
		return m.LoadFunc(dir)
	}
	return config.Load(dir, config.WithGetenv(func(string) string { return "" }))
}

func (m *mockConfigLoader) LoadCalls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.dirs...)
}

// ---------------------------------------------------------------------------
// mockRunnerFactory / mockRunner
// ---------------------------------------------------------------------------

type runnerCall struct {
	root string
	opts orchestrate.Options
}

// mockRunnerFactory records what the orchestrate command asks for and
// hands back a scripted runner.
type mockRunnerFactory struct {
	runner Runner
	err    error

	mu    sync.Mutex
	calls []runnerCall
}

func (m *mockRunnerFactory) NewRunner(cfg *config.Store, getenv func(string) string, root string, opts orchestrate.Options) (Runner, error) {
	m.mu.Lock()
	m.calls = append(m.calls, runnerCall{root: root, opts: opts})
	m.mu.Unlock()

	if m.err != nil {
		return nil, m.err
	}
	if m.runner != nil {
		return m.runner, nil
	}
	return &mockRunner{}, nil
}

func (m *mockRunnerFactory) NewRunnerCalls() []runnerCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]runnerCall(nil), m.calls...)
}

// mockRunner returns a scripted summary and error.
type mockRunner struct {
	sum orchestrate.Summary
	err error

	mu   sync.Mutex
	runs int
}

func (m *mockRunner) Run(ctx context.Context) (orchestrate.Summary, error) {
	m.mu.Lock()
	m.runs++
	m.mu.Unlock()
	return m.sum, m.err
}

func (m *mockRunner) RunCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.runs
}

// ---------------------------------------------------------------------------
// mockProcessorFactory / mockProcessor
// ---------------------------------------------------------------------------

type processorCall struct {
	outDir string
	dryRun bool
}

// mockProcessorFactory records the requested sidecar directory and
// dry-run mode and hands back a scripted processor.
type mockProcessorFactory struct {
	proc Processor
	err  error

	mu    sync.Mutex
	calls []processorCall
}

func (m *mockProcessorFactory) NewProcessor(cfg *config.Store, getenv func(string) string, outDir string, dryRun bool) (Processor, error) {
	m.mu.Lock()
	m.calls = append(m.calls, processorCall{outDir: outDir, dryRun: dryRun})
	m.mu.Unlock()

	if m.err != nil {
		return nil, m.err
	}
	if m.proc != nil {
		return m.proc, nil
	}
	return &mockProcessor{}, nil
}

func (m *mockProcessorFactory) NewProcessorCalls() []processorCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]processorCall(nil), m.calls...)
}

// mockProcessor reports per-transcript success or scripted failure.
type mockProcessor struct {
	failed map[string]error // stem -> error
	dryRun bool

	mu    sync.Mutex
	paths []string
}

func (m *mockProcessor) Process(ctx context.Context, transcriptPath, sourcePath string) (pipeline.Result, error) {
	m.mu.Lock()
	m.paths = append(m.paths, transcriptPath)
	m.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return pipeline.Result{}, err
	}

	stem := strippedStem(transcriptPath)
	if err, ok := m.failed[stem]; ok {
		return pipeline.Result{TranscriptPath: transcriptPath, Stem: stem}, err
	}
	res := pipeline.Result{
		TranscriptPath: transcriptPath,
		Stem:           stem,
		Records:        1,
		DryRun:         m.dryRun,
	}
	if !m.dryRun {
		res.RemoteIDs = []string{"rec-" + stem}
		res.SidecarPath = m.SidecarFor(stem)
	}
	return res, nil
}

func (m *mockProcessor) SidecarFor(stem string) string {
	return filepath.Join("processed", stem+"_processed.json")
}

func (m *mockProcessor) ProcessCalls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.paths...)
}

func strippedStem(path string) string {
	base := filepath.Base(path)
	return base[:len(base)-len(filepath.Ext(base))]
}

// Compile-time interface verification.
var (
	_ ConfigLoader     = (*mockConfigLoader)(nil)
	_ RunnerFactory    = (*mockRunnerFactory)(nil)
	_ Runner           = (*mockRunner)(nil)
	_ ProcessorFactory = (*mockProcessorFactory)(nil)
	_ Processor        = (*mockProcessor)(nil)
)
