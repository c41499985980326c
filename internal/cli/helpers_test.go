package cli

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
)

// Notes:
// - White-box tests (package cli); commands run through their run*
//   functions or through cobra with SetArgs for flag plumbing.
// - Config stores are real: each test writes YAML layers into a temp
//   directory and points the command at it, so layering and env
//   precedence behave exactly as in production.
// - paths.root is always redirected into the temp tree; commands open a
//   run log under <root>/logs, and tests must never touch the real home.

// ---------------------------------------------------------------------------
// syncBuffer - thread-safe bytes.Buffer for concurrent test output
// ---------------------------------------------------------------------------

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (n int, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// Compile-time check that syncBuffer implements io.Writer.
var _ io.Writer = (*syncBuffer)(nil)

// ---------------------------------------------------------------------------
// testEnv - Env wired with mocks and buffers
// ---------------------------------------------------------------------------

// testMocks groups the injectable fakes for assertions.
type testMocks struct {
	configLoader *mockConfigLoader
	runner       *mockRunnerFactory
	processor    *mockProcessorFactory
	stdout       *syncBuffer
	stderr       *syncBuffer
}

// testEnv creates a fully mocked Env. The getenv never resolves, so no
// ambient variable can leak into a test.
func testEnv() (*Env, *testMocks) {
	m := &testMocks{
		configLoader: &mockConfigLoader{},
		runner:       &mockRunnerFactory{},
		processor:    &mockProcessorFactory{},
		stdout:       &syncBuffer{},
		stderr:       &syncBuffer{},
	}
	env := &Env{
		Stdout:           m.stdout,
		Stderr:           m.stderr,
		Getenv:           func(string) string { return "" },
		Now:              fixedTime(time.Date(2026, 8, 19, 10, 0, 0, 0, time.UTC)),
		ConfigLoader:     m.configLoader,
		RunnerFactory:    m.runner,
		ProcessorFactory: m.processor,
	}
	return env, m
}

// fixedTime returns a clock pinned to t.
func fixedTime(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

// staticEnv returns a getenv backed by the given map.
func staticEnv(env map[string]string) func(string) string {
	return func(key string) string { return env[key] }
}

// ---------------------------------------------------------------------------
// Config fixtures
// ---------------------------------------------------------------------------

// writeSettings writes settings.yaml into dir and returns dir.
func writeSettings(t *testing.T, dir, content string) string {
	t.Helper()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir config dir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "settings.yaml"), []byte(content), 0o644); err != nil {
		t.Fatalf("write settings.yaml: %v", err)
	}
	return dir
}

// testConfigDir creates a config directory whose paths.root points into
// the test's temp tree, plus any extra settings lines.
func testConfigDir(t *testing.T, extra ...string) (cfgDir, root string) {
	t.Helper()
	base := t.TempDir()
	root = filepath.Join(base, "root")
	cfgDir = filepath.Join(base, "config")

	lines := []string{
		"paths:",
		"  root: " + root,
	}
	lines = append(lines, extra...)
	writeSettings(t, cfgDir, strings.Join(lines, "\n")+"\n")
	return cfgDir, root
}
