package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/alnah/go-voicepipe/internal/config"
	"github.com/alnah/go-voicepipe/internal/interrupt"
)

// ProcessCmd creates the process command.
// The env parameter provides injectable dependencies for testing.
func ProcessCmd(env *Env) *cobra.Command {
	var (
		dryRun    bool
		verbose   bool
		file      string
		inputDir  string
		outputDir string
		configDir string
	)

	cmd := &cobra.Command{
		Use:   "process",
		Short: "Analyze existing transcripts into knowledge-base records",
		Long: `Run the analysis pipeline over transcripts that already exist on
disk: parse, classify, route, create remote records, verify them, and
write the processed sidecar. Source audio is not touched; use
orchestrate for the full ingest-to-retire session.

Without --file or --input-dir, every .txt transcript under the project
root's transcripts directory is processed.`,
		Example: `  voicepipe process
  voicepipe process --file ~/voicepipe/transcripts/memo_001.txt
  voicepipe process --input-dir /tmp/transcripts --dry-run
  voicepipe process --output-dir /tmp/sidecars --verbose`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runProcess(cmd, env, dryRun, verbose, file, inputDir, outputDir, configDir)
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Analyze and route without creating records or writing sidecars")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Log at debug level")
	cmd.Flags().StringVar(&file, "file", "", "Process a single transcript file")
	cmd.Flags().StringVar(&inputDir, "input-dir", "", "Process every .txt transcript in this directory")
	cmd.Flags().StringVar(&outputDir, "output-dir", "", "Directory for processed sidecars (default: <root>/processed)")
	cmd.Flags().StringVar(&configDir, "config", "", "Configuration directory (default: ~/.config/voicepipe)")
	cmd.MarkFlagsMutuallyExclusive("file", "input-dir")

	return cmd
}

// runProcess executes the analysis pipeline over the selected transcripts.
// Validation order: input exists -> config -> build
func runProcess(cmd *cobra.Command, env *Env, dryRun, verbose bool, file, inputDir, outputDir, configDir string) error {
	// === VALIDATION (fail-fast) ===

	// 1. Single file exists when named
	if file != "" {
		if _, err := os.Stat(file); err != nil {
			if os.IsNotExist(err) {
				return fmt.Errorf("%w: %s", ErrFileNotFound, file)
			}
			return fmt.Errorf("cannot access transcript: %w", err)
		}
	}

	// 2. Configuration loads
	cfg, err := env.ConfigLoader.Load(resolveConfigDir(configDir, env.Getenv))
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	// === LOGGING ===

	root := config.ExpandPath(cfg.String("paths.root", defaultRoot))
	closeLog := configureRunLogging(env, root, verbose)
	defer closeLog()

	// === INPUT SELECTION ===

	var transcripts []string
	if file != "" {
		transcripts = []string{file}
	} else {
		dir := inputDir
		if dir == "" {
			dir = filepath.Join(root, "transcripts")
		}
		transcripts, err = filepath.Glob(filepath.Join(dir, "*.txt"))
		if err != nil {
			return fmt.Errorf("failed to list transcripts: %w", err)
		}
		if len(transcripts) == 0 {
			fmt.Fprintf(env.Stdout, "No transcripts found in %s\n", dir)
			return nil
		}
	}

	// === BUILD ===

	out := outputDir
	if out == "" {
		out = filepath.Join(root, "processed")
	}
	proc, err := env.ProcessorFactory.NewProcessor(cfg, env.Getenv, out, dryRun)
	if err != nil {
		return err
	}

	// === RUN ===

	handler, ctx := interrupt.NewHandlerWithOptions(cmd.Context(), interrupt.Options{Stderr: env.Stderr})
	defer handler.Stop()

	processed, failed := 0, 0
	for _, path := range transcripts {
		if ctx.Err() != nil {
			break
		}
		fmt.Fprintf(env.Stderr, "Processing %s...\n", filepath.Base(path))

		res, err := proc.Process(ctx, path, "")
		if err != nil {
			if ctx.Err() != nil {
				fmt.Fprintf(env.Stderr, "Interrupted; %s left untouched\n", filepath.Base(path))
				break
			}
			failed++
			fmt.Fprintf(env.Stderr, "Failed: %s: %v\n", filepath.Base(path), err)
			continue
		}

		processed++
		if res.DryRun {
			fmt.Fprintf(env.Stdout, "%s: %d record(s), dry run\n", res.Stem, res.Records)
		} else {
			fmt.Fprintf(env.Stdout, "%s: %d record(s) -> %s\n", res.Stem, res.Records, res.SidecarPath)
		}
	}

	fmt.Fprintf(env.Stdout, "Processed %d of %d transcript(s), %d failed\n", processed, len(transcripts), failed)
	if err := ctx.Err(); err != nil {
		return err
	}
	if failed > 0 {
		return fmt.Errorf("%w: %d of %d failed", ErrPartialRun, failed, len(transcripts))
	}
	return nil
}
