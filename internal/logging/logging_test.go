package logging

// Coverage Notes:
// - Configure is once-only and global, so tests share one buffer and run
//   sequentially. Each test consumes the lines written since the last check.
// - Field names are asserted through JSON decoding, not string matching.

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

var logBuf bytes.Buffer

func TestMain(m *testing.M) {
	Configure(Config{Level: "debug", Output: &logBuf, Service: "voicepipe-test", Version: "v0.0.0-test"})
	os.Exit(m.Run())
}

func drainLines(t *testing.T) []map[string]any {
	t.Helper()

	var entries []map[string]any
	for _, line := range strings.Split(logBuf.String(), "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		var entry map[string]any
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			t.Fatalf("log line is not JSON: %q: %v", line, err)
		}
		entries = append(entries, entry)
	}
	logBuf.Reset()
	return entries
}

func TestConfigureAttachesServiceFields(t *testing.T) {
	logBuf.Reset()

	base := Base()
	base.Info().Str(FieldEvent, "test.ping").Msg("ping")

	entries := drainLines(t)
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	if entries[0]["service"] != "voicepipe-test" {
		t.Errorf("service = %v, want voicepipe-test", entries[0]["service"])
	}
	if entries[0]["version"] != "v0.0.0-test" {
		t.Errorf("version = %v, want v0.0.0-test", entries[0]["version"])
	}
	if entries[0]["event"] != "test.ping" {
		t.Errorf("event = %v, want test.ping", entries[0]["event"])
	}
	if entries[0]["time"] == nil {
		t.Error("expected a timestamp on every entry")
	}
}

func TestConfigureIsOnceOnly(t *testing.T) {
	logBuf.Reset()

	// A second Configure must not redirect output away from the test buffer.
	Configure(Config{Level: "error", Output: os.Stderr, Service: "other"})

	base := Base()
	base.Info().Msg("still here")

	entries := drainLines(t)
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry in original buffer, got %d", len(entries))
	}
	if entries[0]["service"] != "voicepipe-test" {
		t.Errorf("service = %v, want voicepipe-test (first Configure wins)", entries[0]["service"])
	}
}

func TestWithComponent(t *testing.T) {
	logBuf.Reset()

	l := WithComponent("orchestrate")
	l.Info().Str(FieldEvent, "orchestrate.start").Msg("run started")

	entries := drainLines(t)
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	if entries[0]["component"] != "orchestrate" {
		t.Errorf("component = %v, want orchestrate", entries[0]["component"])
	}
}

func TestSafetyEvent(t *testing.T) {
	logBuf.Reset()

	l := WithComponent("archive")
	Safety(l, "delete_blocked").Str(FieldFile, "rec_001.wav").Msg("archive verification failed")

	entries := drainLines(t)
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	e := entries[0]
	if e["level"] != "error" {
		t.Errorf("level = %v, want error", e["level"])
	}
	if e["safety"] != true {
		t.Errorf("safety = %v, want true", e["safety"])
	}
	if e["event"] != "safety.delete_blocked" {
		t.Errorf("event = %v, want safety.delete_blocked", e["event"])
	}
	if e["file"] != "rec_001.wav" {
		t.Errorf("file = %v, want rec_001.wav", e["file"])
	}
}

func TestOpenRunLog(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "logs")
	now := time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)

	rl, err := OpenRunLog(dir, now)
	if err != nil {
		t.Fatalf("OpenRunLog() error: %v", err)
	}

	wantName := "run_20260314_092653.log"
	if filepath.Base(rl.Path) != wantName {
		t.Errorf("run log name = %q, want %q", filepath.Base(rl.Path), wantName)
	}

	if _, err := rl.Write([]byte("{\"level\":\"info\"}\n")); err != nil {
		t.Fatalf("Write() error: %v", err)
	}
	if err := rl.Close(); err != nil {
		t.Fatalf("Close() error: %v", err)
	}

	data, err := os.ReadFile(rl.Path)
	if err != nil {
		t.Fatalf("ReadFile() error: %v", err)
	}
	if !strings.Contains(string(data), "info") {
		t.Errorf("run log content = %q, want the written entry", string(data))
	}

	// A second open with the same timestamp must append, not fail.
	rl2, err := OpenRunLog(dir, now)
	if err != nil {
		t.Fatalf("OpenRunLog() second open error: %v", err)
	}
	if err := rl2.Close(); err != nil {
		t.Fatalf("Close() error: %v", err)
	}
}
