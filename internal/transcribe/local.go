package transcribe

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// DefaultLocalCommand is the whisper.cpp CLI binary name.
const DefaultLocalCommand = "whisper-cli"

// runCommandFunc executes the transcriber binary and returns its
// combined output. Injectable for tests.
type runCommandFunc func(ctx context.Context, name string, args ...string) ([]byte, error)

// lookPathFunc resolves a binary on PATH. Injectable for tests.
type lookPathFunc func(name string) (string, error)

func runCommand(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}

// Compile-time interface compliance check.
var _ Backend = (*LocalBackend)(nil)

// LocalBackend transcribes audio by shelling out to a whisper.cpp CLI.
// The binary writes the transcript to a text file next to the requested
// output prefix; a clean exit without that file still fails.
type LocalBackend struct {
	command   string
	modelPath string
	language  string
	maxBytes  int64
	run       runCommandFunc
	look      lookPathFunc
}

// LocalOption configures a LocalBackend.
type LocalOption func(*LocalBackend)

// WithLocalModel sets the model file passed to the CLI.
func WithLocalModel(path string) LocalOption {
	return func(b *LocalBackend) { b.modelPath = path }
}

// WithLocalLanguage pins the audio language. Empty lets the CLI detect.
func WithLocalLanguage(code string) LocalOption {
	return func(b *LocalBackend) { b.language = code }
}

// WithLocalMaxFileBytes advertises an input size limit. Zero means none.
func WithLocalMaxFileBytes(n int64) LocalOption {
	return func(b *LocalBackend) {
		if n >= 0 {
			b.maxBytes = n
		}
	}
}

// withLocalRunner sets a custom command runner (for testing).
func withLocalRunner(run runCommandFunc) LocalOption {
	return func(b *LocalBackend) { b.run = run }
}

// withLocalLookPath sets a custom binary resolver (for testing).
func withLocalLookPath(look lookPathFunc) LocalOption {
	return func(b *LocalBackend) { b.look = look }
}

// NewLocalBackend creates a LocalBackend running the given command.
// An empty command falls back to the conventional binary name.
func NewLocalBackend(command string, opts ...LocalOption) *LocalBackend {
	if command == "" {
		command = DefaultLocalCommand
	}
	b := &LocalBackend{
		command: command,
		run:     runCommand,
		look:    exec.LookPath,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Name implements Backend.
func (b *LocalBackend) Name() string { return BackendLocal }

// Available reports whether the CLI binary resolves on PATH.
func (b *LocalBackend) Available(context.Context) bool {
	_, err := b.look(b.command)
	return err == nil
}

// MaxFileBytes implements Backend.
func (b *LocalBackend) MaxFileBytes() int64 { return b.maxBytes }

// Transcribe runs the CLI against the audio file and reads the
// transcript it produced.
func (b *LocalBackend) Transcribe(ctx context.Context, path string) (string, error) {
	outDir, err := os.MkdirTemp("", "transcribe-*")
	if err != nil {
		return "", fmt.Errorf("failed to create output dir: %w", err)
	}
	defer func() { _ = os.RemoveAll(outDir) }()

	prefix := filepath.Join(outDir, stem(path))
	args := b.args(path, prefix)

	out, err := b.run(ctx, b.command, args...)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", fmt.Errorf("%s failed: %w\nOutput: %s", b.command, err, bytes.TrimSpace(out))
	}

	text, err := os.ReadFile(prefix + ".txt")
	if errors.Is(err, fs.ErrNotExist) {
		return "", fmt.Errorf("%s exited cleanly: %w", b.command, ErrNoOutput)
	}
	if err != nil {
		return "", fmt.Errorf("failed to read transcript: %w", err)
	}
	return strings.TrimSpace(string(text)), nil
}

// args assembles the CLI invocation: model, input, plain-text output
// under prefix, no progress chatter.
func (b *LocalBackend) args(path, prefix string) []string {
	var args []string
	if b.modelPath != "" {
		args = append(args, "-m", b.modelPath)
	}
	args = append(args, "-f", path, "-otxt", "-of", prefix, "-np")
	if b.language != "" {
		args = append(args, "-l", b.language)
	}
	return args
}

// stem is the file name without directory or extension.
func stem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
