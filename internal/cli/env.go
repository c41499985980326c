package cli

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/alnah/go-voicepipe/internal/config"
	"github.com/alnah/go-voicepipe/internal/orchestrate"
	"github.com/alnah/go-voicepipe/internal/pipeline"
)

// Env holds injectable dependencies for CLI commands.
// This is the central injection point for testing CLI commands in isolation.
//
// All fields have sensible defaults via DefaultEnv(). Tests can override
// specific fields using the With* options or by creating a custom Env.
//
// Env must not be nil when passed to command functions. Use DefaultEnv()
// or NewEnv() to create a valid instance.
type Env struct {
	// I/O and environment
	Stdout io.Writer
	Stderr io.Writer
	Getenv func(string) string
	Now    func() time.Time

	// Factories for domain objects
	ConfigLoader     ConfigLoader
	RunnerFactory    RunnerFactory
	ProcessorFactory ProcessorFactory
}

// ConfigLoader loads the layered configuration store from a directory.
type ConfigLoader interface {
	Load(dir string) (*config.Store, error)
}

// Runner executes one batch session end to end.
type Runner interface {
	Run(ctx context.Context) (orchestrate.Summary, error)
}

// RunnerFactory assembles a Runner and its collaborators from the
// configuration. root is the expanded project root directory.
type RunnerFactory interface {
	NewRunner(cfg *config.Store, getenv func(string) string, root string, opts orchestrate.Options) (Runner, error)
}

// Processor turns one transcript into verified records and a sidecar.
// *pipeline.Pipeline satisfies it.
type Processor interface {
	Process(ctx context.Context, transcriptPath, sourcePath string) (pipeline.Result, error)
	SidecarFor(stem string) string
}

// ProcessorFactory assembles a standalone transcript processor writing
// sidecars under outDir.
type ProcessorFactory interface {
	NewProcessor(cfg *config.Store, getenv func(string) string, outDir string, dryRun bool) (Processor, error)
}

// EnvOption configures an Env.
type EnvOption func(*Env)

// WithStdout sets the stdout writer.
func WithStdout(w io.Writer) EnvOption {
	return func(e *Env) {
		e.Stdout = w
	}
}

// WithStderr sets the stderr writer.
func WithStderr(w io.Writer) EnvOption {
	return func(e *Env) {
		e.Stderr = w
	}
}

// WithGetenv sets the environment variable getter.
func WithGetenv(fn func(string) string) EnvOption {
	return func(e *Env) {
		e.Getenv = fn
	}
}

// WithNow sets the time provider.
func WithNow(fn func() time.Time) EnvOption {
	return func(e *Env) {
		e.Now = fn
	}
}

// WithConfigLoader sets the config loader.
func WithConfigLoader(l ConfigLoader) EnvOption {
	return func(e *Env) {
		e.ConfigLoader = l
	}
}

// WithRunnerFactory sets the runner factory.
func WithRunnerFactory(f RunnerFactory) EnvOption {
	return func(e *Env) {
		e.RunnerFactory = f
	}
}

// WithProcessorFactory sets the processor factory.
func WithProcessorFactory(f ProcessorFactory) EnvOption {
	return func(e *Env) {
		e.ProcessorFactory = f
	}
}

// DefaultEnv returns an Env with production defaults.
func DefaultEnv() *Env {
	return &Env{
		Stdout:           os.Stdout,
		Stderr:           os.Stderr,
		Getenv:           os.Getenv,
		Now:              time.Now,
		ConfigLoader:     &defaultConfigLoader{},
		RunnerFactory:    &defaultRunnerFactory{},
		ProcessorFactory: &defaultProcessorFactory{},
	}
}

// NewEnv creates an Env with the given options applied to defaults.
func NewEnv(opts ...EnvOption) *Env {
	env := DefaultEnv()
	for _, opt := range opts {
		opt(env)
	}
	return env
}

// ---------------------------------------------------------------------------
// Default implementations - delegate to real packages
// ---------------------------------------------------------------------------

// defaultConfigLoader implements ConfigLoader using the config package.
type defaultConfigLoader struct{}

func (defaultConfigLoader) Load(dir string) (*config.Store, error) {
	return config.Load(dir)
}

// defaultRunnerFactory implements RunnerFactory using the wiring in
// wire.go.
type defaultRunnerFactory struct{}

func (defaultRunnerFactory) NewRunner(cfg *config.Store, getenv func(string) string, root string, opts orchestrate.Options) (Runner, error) {
	return buildRunner(cfg, getenv, root, opts)
}

// defaultProcessorFactory implements ProcessorFactory using the wiring
// in wire.go.
type defaultProcessorFactory struct{}

func (defaultProcessorFactory) NewProcessor(cfg *config.Store, getenv func(string) string, outDir string, dryRun bool) (Processor, error) {
	return buildProcessor(cfg, getenv, outDir, dryRun)
}

// Compile-time interface verification.
var (
	_ ConfigLoader     = (*defaultConfigLoader)(nil)
	_ RunnerFactory    = (*defaultRunnerFactory)(nil)
	_ ProcessorFactory = (*defaultProcessorFactory)(nil)
)
