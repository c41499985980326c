package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// Notes:
// - White-box testing (package config) to exercise lookup and deepMerge.
// - Env overrides are injected via WithGetenv, so tests stay parallel-safe.
// - File layers use t.TempDir(); a missing directory must still load.

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

// writeLayer creates one YAML layer file in dir.
func writeLayer(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatalf("write layer %s: %v", name, err)
	}
}

// noEnv is a getenv that never finds anything.
func noEnv(string) string { return "" }

// envWith returns a getenv backed by the given map.
func envWith(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

// ---------------------------------------------------------------------------
// TestLoad - layering and defaults
// ---------------------------------------------------------------------------

func TestLoadMissingDirUsesDefaults(t *testing.T) {
	t.Parallel()

	s, err := Load(filepath.Join(t.TempDir(), "nope"), WithGetenv(noEnv))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if got := s.Int("transcribe.workers", 0); got != 3 {
		t.Errorf("transcribe.workers = %d, want default 3", got)
	}
	if got := s.Int("kb.block_limit", 0); got != 2000 {
		t.Errorf("kb.block_limit = %d, want default 2000", got)
	}
	if got := s.String("archive.dir_name", ""); got != "Recording Archives" {
		t.Errorf("archive.dir_name = %q", got)
	}
}

func TestLoadFileOverridesDefault(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeLayer(t, dir, "settings.yaml", "transcribe:\n  workers: 5\n")

	s, err := Load(dir, WithGetenv(noEnv))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if got := s.Int("transcribe.workers", 0); got != 5 {
		t.Errorf("transcribe.workers = %d, want 5", got)
	}
	// Sibling defaults survive a partial override.
	if got := s.Int("transcribe.batch_minutes", 0); got != 7 {
		t.Errorf("transcribe.batch_minutes = %d, want 7", got)
	}
}

func TestLoadNamespacedLayer(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeLayer(t, dir, "patterns.yaml", "communications:\n  - telegram\n")

	s, err := Load(dir, WithGetenv(noEnv))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	got := s.Strings("patterns.communications", nil)
	if len(got) != 1 || got[0] != "telegram" {
		t.Errorf("patterns.communications = %v, want [telegram]", got)
	}
	// Other pattern lists keep their defaults.
	if got := s.Strings("patterns.needs_external_input", nil); len(got) == 0 {
		t.Error("patterns.needs_external_input default was lost")
	}
}

func TestLoadMalformedLayerFails(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeLayer(t, dir, "settings.yaml", "transcribe: [unclosed\n")

	if _, err := Load(dir, WithGetenv(noEnv)); err == nil {
		t.Fatal("Load accepted malformed YAML")
	}
}

// ---------------------------------------------------------------------------
// TestPrecedence - env > file > default (spec round-trip R1)
// ---------------------------------------------------------------------------

func TestPrecedenceEnvFileDefault(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeLayer(t, dir, "settings.yaml", "transcribe:\n  workers: 5\n")

	env := map[string]string{"TRANSCRIBE_WORKERS": "9"}
	s, err := Load(dir, WithGetenv(envWith(env)))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if got := s.Int("transcribe.workers", 0); got != 9 {
		t.Errorf("with env: workers = %d, want 9", got)
	}

	// Removing the env variable restores the file value.
	delete(env, "TRANSCRIBE_WORKERS")
	if got := s.Int("transcribe.workers", 0); got != 5 {
		t.Errorf("without env: workers = %d, want 5", got)
	}
}

func TestEnvKey(t *testing.T) {
	t.Parallel()

	tests := []struct {
		key  string
		want string
	}{
		{"transcribe.workers", "TRANSCRIBE_WORKERS"},
		{"kb.base_url", "KB_BASE_URL"},
		{"paths.root", "PATHS_ROOT"},
	}
	for _, tt := range tests {
		if got := EnvKey(tt.key); got != tt.want {
			t.Errorf("EnvKey(%q) = %q, want %q", tt.key, got, tt.want)
		}
	}
}

// ---------------------------------------------------------------------------
// TestTypedAccess
// ---------------------------------------------------------------------------

func TestTypedHelpers(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeLayer(t, dir, "settings.yaml", strings.Join([]string{
		"flag: true",
		"ratio: 0.8",
		"timeout: 90s",
		"plain_seconds: 45",
		"list:",
		"  - a",
		"  - b",
	}, "\n"))

	s, err := Load(dir, WithGetenv(envWith(map[string]string{
		"CSV_LIST": "x, y ,z",
		"ENV_DUR":  "2m",
	})))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if !s.Bool("flag", false) {
		t.Error("Bool(flag) = false, want true")
	}
	if got := s.Float("ratio", 0); got != 0.8 {
		t.Errorf("Float(ratio) = %v, want 0.8", got)
	}
	if got := s.Duration("timeout", 0); got != 90*time.Second {
		t.Errorf("Duration(timeout) = %v, want 90s", got)
	}
	if got := s.Duration("plain_seconds", 0); got != 45*time.Second {
		t.Errorf("Duration(plain_seconds) = %v, want 45s", got)
	}
	if got := s.Duration("env.dur", 0); got != 2*time.Minute {
		t.Errorf("Duration(env.dur) = %v, want 2m", got)
	}
	if got := s.Strings("list", nil); len(got) != 2 || got[0] != "a" {
		t.Errorf("Strings(list) = %v", got)
	}
	if got := s.Strings("csv.list", nil); len(got) != 3 || got[1] != "y" {
		t.Errorf("Strings(csv.list) = %v, want [x y z]", got)
	}
	if got := s.Int("absent", 42); got != 42 {
		t.Errorf("Int(absent) = %d, want fallback 42", got)
	}
}

func TestRequire(t *testing.T) {
	t.Parallel()

	s, err := Load(t.TempDir(), WithGetenv(noEnv))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if _, err := s.Require("kb.token"); !errors.Is(err, ErrMissingKey) {
		t.Errorf("Require(kb.token) err = %v, want ErrMissingKey", err)
	}
	if v, err := s.Require("kb.block_limit"); err != nil || v == nil {
		t.Errorf("Require(kb.block_limit) = %v, %v", v, err)
	}
}

func TestRequireStringRejectsBlank(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeLayer(t, dir, "settings.yaml", "kb:\n  token: \"  \"\n")

	s, err := Load(dir, WithGetenv(noEnv))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if _, err := s.RequireString("kb.token"); !errors.Is(err, ErrMissingKey) {
		t.Errorf("RequireString on blank = %v, want ErrMissingKey", err)
	}
}

// ---------------------------------------------------------------------------
// TestDecode - structured subtree access
// ---------------------------------------------------------------------------

func TestDecode(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeLayer(t, dir, "projects.yaml", strings.Join([]string{
		"fallback:",
		"  - id: p1",
		"    name: Epic 2nd Brain Workflow",
		"    aliases: [Second Brain workflow]",
	}, "\n"))

	s, err := Load(dir, WithGetenv(noEnv))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	var out []struct {
		ID      string   `yaml:"id"`
		Name    string   `yaml:"name"`
		Aliases []string `yaml:"aliases"`
	}
	if err := s.Decode("projects.fallback", &out); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(out) != 1 || out[0].ID != "p1" || len(out[0].Aliases) != 1 {
		t.Errorf("Decode = %+v", out)
	}
}

// ---------------------------------------------------------------------------
// TestReload
// ---------------------------------------------------------------------------

func TestReloadPicksUpChanges(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeLayer(t, dir, "settings.yaml", "transcribe:\n  workers: 2\n")

	s, err := Load(dir, WithGetenv(noEnv))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := s.Int("transcribe.workers", 0); got != 2 {
		t.Fatalf("pre-reload workers = %d", got)
	}

	writeLayer(t, dir, "settings.yaml", "transcribe:\n  workers: 6\n")
	if err := s.Reload(); err != nil {
		t.Fatalf("Reload: %v", err)
	}
	if got := s.Int("transcribe.workers", 0); got != 6 {
		t.Errorf("post-reload workers = %d, want 6", got)
	}
}

// ---------------------------------------------------------------------------
// TestSet - the CLI write path into settings.yaml
// ---------------------------------------------------------------------------

func TestSetWritesNestedKeyAndReloads(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	s, err := Load(dir, WithGetenv(noEnv))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if err := s.Set("transcribe.workers", 9); err != nil {
		t.Fatalf("Set: %v", err)
	}

	// The store sees the new value immediately.
	if got := s.Int("transcribe.workers", 0); got != 9 {
		t.Errorf("post-set workers = %d, want 9", got)
	}

	// And the value survives a fresh load from disk.
	fresh, err := Load(dir, WithGetenv(noEnv))
	if err != nil {
		t.Fatalf("fresh Load: %v", err)
	}
	if got := fresh.Int("transcribe.workers", 0); got != 9 {
		t.Errorf("fresh workers = %d, want 9", got)
	}
}

func TestSetPreservesUnrelatedSettings(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeLayer(t, dir, "settings.yaml", "paths:\n  usb: /media/stick\ntranscribe:\n  workers: 2\n")

	s, err := Load(dir, WithGetenv(noEnv))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := s.Set("transcribe.workers", 4); err != nil {
		t.Fatalf("Set: %v", err)
	}

	if got := s.String("paths.usb", ""); got != "/media/stick" {
		t.Errorf("paths.usb = %q, want /media/stick", got)
	}
	if got := s.Int("transcribe.workers", 0); got != 4 {
		t.Errorf("transcribe.workers = %d, want 4", got)
	}
}

func TestSetCreatesConfigDir(t *testing.T) {
	t.Parallel()

	dir := filepath.Join(t.TempDir(), "cfg")
	s, err := Load(dir, WithGetenv(noEnv))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if err := s.Set("paths.usb", "/mnt/rec"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "settings.yaml")); err != nil {
		t.Errorf("settings.yaml not created: %v", err)
	}
}

func TestSetRejectsEmptyKey(t *testing.T) {
	t.Parallel()

	s, err := Load(t.TempDir(), WithGetenv(noEnv))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := s.Set("  ", 1); !errors.Is(err, ErrBadValue) {
		t.Errorf("Set(blank) err = %v, want ErrBadValue", err)
	}
}

// ---------------------------------------------------------------------------
// TestSnapshot
// ---------------------------------------------------------------------------

func TestSnapshotFlattensToDottedKeys(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeLayer(t, dir, "settings.yaml", "transcribe:\n  workers: 5\n")

	s, err := Load(dir, WithGetenv(noEnv))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	snap := s.Snapshot()
	if got, ok := snap["transcribe.workers"]; !ok || got != 5 {
		t.Errorf("snapshot transcribe.workers = %v (ok=%v), want 5", got, ok)
	}
	if _, ok := snap["archive.dir_name"]; !ok {
		t.Error("snapshot is missing defaulted keys")
	}
	// No intermediate map nodes leak into the flat view.
	if _, ok := snap["transcribe"]; ok {
		t.Error("snapshot contains unflattened branch key")
	}
}

func TestKeysSorted(t *testing.T) {
	t.Parallel()

	s, err := Load(t.TempDir(), WithGetenv(noEnv))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	keys := s.Keys()
	if len(keys) == 0 {
		t.Fatal("no keys")
	}
	for i := 1; i < len(keys); i++ {
		if keys[i-1] >= keys[i] {
			t.Fatalf("keys not sorted: %q before %q", keys[i-1], keys[i])
		}
	}
}

// ---------------------------------------------------------------------------
// TestExpandPath
// ---------------------------------------------------------------------------

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skipf("no home dir: %v", err)
	}

	if got := ExpandPath("~/x"); got != filepath.Join(home, "x") {
		t.Errorf("ExpandPath(~/x) = %q", got)
	}
	if got := ExpandPath("/abs/x"); got != "/abs/x" {
		t.Errorf("ExpandPath(/abs/x) = %q", got)
	}
}
