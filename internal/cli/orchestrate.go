package cli

import (
	"fmt"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/alnah/go-voicepipe/internal/config"
	"github.com/alnah/go-voicepipe/internal/interrupt"
	"github.com/alnah/go-voicepipe/internal/orchestrate"
)

// pipelineSteps lists the stage names accepted by --skip-steps.
var pipelineSteps = []string{"s1", "s2", "s3", "s4", "s5"}

// OrchestrateCmd creates the orchestrate command.
// The env parameter provides injectable dependencies for testing.
func OrchestrateCmd(env *Env) *cobra.Command {
	var (
		dryRun           bool
		verbose          bool
		skipSteps        []string
		minDuration      int
		maxDuration      int
		noDurationFilter bool
		configDir        string
	)

	cmd := &cobra.Command{
		Use:   "orchestrate",
		Short: "Run one batch session over the recorder volume",
		Long: `Run one batch session: detect recordings on the USB volume, validate
them, transcribe in parallel batches, analyze each transcript into
knowledge-base records, and retire verified sources into the archive.

A source file is deleted only after its remote record re-verifies and
its archived copy re-verifies by path and size. Anything uncertain is
retained on the volume and listed in the summary.

Press Ctrl+C once to stop after the current file; twice within two
seconds to abort immediately.`,
		Example: `  voicepipe orchestrate
  voicepipe orchestrate --dry-run --verbose
  voicepipe orchestrate --skip-steps s5 --min-duration 5
  voicepipe orchestrate --no-duration-filter --config ~/.config/voicepipe`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOrchestrate(cmd, env, dryRun, verbose, skipSteps, minDuration, maxDuration, noDurationFilter, configDir)
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Walk every stage without writing, creating, or deleting anything")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Log at debug level")
	cmd.Flags().StringSliceVar(&skipSteps, "skip-steps", nil, "Stages to skip: s1 (detect), s2 (validate), s3 (transcribe), s4 (process), s5 (finalize)")
	cmd.Flags().IntVar(&minDuration, "min-duration", 0, "Minimum recording duration in seconds (overrides config)")
	cmd.Flags().IntVar(&maxDuration, "max-duration", 0, "Maximum recording duration in seconds (overrides config)")
	cmd.Flags().BoolVar(&noDurationFilter, "no-duration-filter", false, "Disable the duration filters entirely")
	cmd.Flags().StringVar(&configDir, "config", "", "Configuration directory (default: ~/.config/voicepipe)")

	return cmd
}

// runOrchestrate executes one batch session.
// Validation order: steps -> duration flags -> config -> logging -> build
func runOrchestrate(cmd *cobra.Command, env *Env, dryRun, verbose bool, skipSteps []string, minDuration, maxDuration int, noDurationFilter bool, configDir string) error {
	// === VALIDATION (fail-fast) ===

	// 1. Step names valid
	steps, err := parseSkipSteps(skipSteps)
	if err != nil {
		return err
	}

	// 2. Duration flags coherent
	if minDuration < 0 || maxDuration < 0 {
		return fmt.Errorf("%w: durations must not be negative", ErrInvalidDuration)
	}
	if maxDuration > 0 && minDuration > maxDuration {
		return fmt.Errorf("%w: --min-duration %d exceeds --max-duration %d", ErrInvalidDuration, minDuration, maxDuration)
	}

	// 3. Configuration loads
	cfg, err := env.ConfigLoader.Load(resolveConfigDir(configDir, env.Getenv))
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	// === LOGGING ===

	root := config.ExpandPath(cfg.String("paths.root", defaultRoot))
	closeLog := configureRunLogging(env, root, verbose)
	defer closeLog()

	// === OPTIONS ===

	opts := optionsFromConfig(cfg, root)
	opts.SkipSteps = steps
	opts.DryRun = dryRun
	if noDurationFilter {
		opts.MinDuration, opts.MaxDuration = 0, 0
	} else {
		if minDuration > 0 {
			opts.MinDuration = time.Duration(minDuration) * time.Second
		}
		if maxDuration > 0 {
			opts.MaxDuration = time.Duration(maxDuration) * time.Second
		}
	}

	// === BUILD ===

	run, err := env.RunnerFactory.NewRunner(cfg, env.Getenv, root, opts)
	if err != nil {
		return err
	}

	// === RUN ===

	handler, ctx := interrupt.NewHandlerWithOptions(cmd.Context(), interrupt.Options{Stderr: env.Stderr})
	defer handler.Stop()

	sum, err := run.Run(ctx)
	printSummary(env.Stdout, sum)
	if err != nil {
		return err
	}
	if sum.Partial() {
		return fmt.Errorf("%w: %d retained, %d failed", ErrPartialRun, len(sum.Retained), sum.ProcessedFail)
	}
	return nil
}

// optionsFromConfig maps the configuration tree onto run options. Flag
// overrides are applied by the caller on top.
func optionsFromConfig(cfg *config.Store, root string) orchestrate.Options {
	return orchestrate.Options{
		SourceDir:     config.ExpandPath(cfg.String("paths.usb", "/media/usb/RECORDER")),
		Extension:     cfg.String("paths.audio_ext", ".wav"),
		StagingDir:    filepath.Join(root, "staging"),
		TranscriptDir: filepath.Join(root, "transcripts"),
		FailedDir:     filepath.Join(root, "Failed"),

		BytesPerMinute: int64(cfg.Int("transcribe.bytes_per_minute", 960000)),
		MinDuration:    cfg.Duration("validate.min_duration_seconds", 3*time.Second),
		MaxDuration:    cfg.Duration("validate.max_duration_seconds", 0),
		MinFreeBytes:   int64(cfg.Int("validate.min_free_disk_mb", 100)) * 1024 * 1024,

		Workers:        cfg.Int("transcribe.workers", orchestrate.DefaultWorkers),
		BatchBudget:    time.Duration(cfg.Int("transcribe.batch_minutes", 7)) * time.Minute,
		ProcessWorkers: cfg.Int("process.parallelism", 1),

		Retention: time.Duration(cfg.Int("archive.retention_days", 7)) * 24 * time.Hour,
	}
}

// parseSkipSteps normalizes and validates --skip-steps values.
func parseSkipSteps(steps []string) ([]string, error) {
	out := make([]string, 0, len(steps))
	for _, s := range steps {
		name := strings.ToLower(strings.TrimSpace(s))
		if name == "" {
			continue
		}
		if !slices.Contains(pipelineSteps, name) {
			return nil, fmt.Errorf("%w %q (valid: %s)", ErrUnknownStep, s, strings.Join(pipelineSteps, ", "))
		}
		out = append(out, name)
	}
	return out, nil
}
