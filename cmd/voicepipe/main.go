// Command voicepipe ingests voice recordings from a USB recorder,
// transcribes them, routes the analyzed records into the knowledge
// base, and retires verified sources into the archive.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/alnah/go-voicepipe/internal/cli"
	"github.com/alnah/go-voicepipe/internal/config"
	"github.com/alnah/go-voicepipe/internal/interrupt"
	"github.com/alnah/go-voicepipe/internal/monitor"
	"github.com/alnah/go-voicepipe/internal/orchestrate"
)

// Injected at build time via ldflags.
var (
	version = "dev"
	commit  = "unknown"
)

// Exit codes: 0 success, 1 partial (files retained or failed),
// 2 fatal (run could not start), 3 user-aborted.
const (
	ExitOK      = 0
	ExitPartial = 1
	ExitFatal   = 2
)

func main() {
	// Load .env file if present (ignore error if missing).
	_ = godotenv.Load()

	env := cli.DefaultEnv()

	rootCmd := &cobra.Command{
		Use:     "voicepipe",
		Short:   "Transcribe voice recordings and route them into the knowledge base",
		Version: fmt.Sprintf("%s (commit: %s)", version, commit),
		// Silence Cobra's default error/usage printing; we handle it ourselves.
		SilenceErrors: true,
		SilenceUsage:  true,
	}

	rootCmd.AddCommand(cli.OrchestrateCmd(env))
	rootCmd.AddCommand(cli.ProcessCmd(env))
	rootCmd.AddCommand(cli.ConfigCmd(env))

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitCode(err))
	}
}

// exitCode maps errors to the documented exit codes.
func exitCode(err error) int {
	if err == nil {
		return ExitOK
	}

	// User abort: first Ctrl+C cancels the run context and the run
	// winds down to a retained state before returning this.
	if errors.Is(err, context.Canceled) {
		return interrupt.ExitInterrupt
	}

	// Usage errors: Cobra flag/arg parsing plus our own flag validation.
	// The run never started, so these are fatal.
	if isCobraUsageError(err) ||
		errors.Is(err, cli.ErrUnknownStep) || errors.Is(err, cli.ErrInvalidDuration) ||
		errors.Is(err, cli.ErrFileNotFound) {
		return ExitFatal
	}

	// Environment errors that prevent a session from starting.
	if errors.Is(err, config.ErrMissingKey) || errors.Is(err, monitor.ErrLowDisk) ||
		errors.Is(err, orchestrate.ErrSourceUnreachable) || errors.Is(err, orchestrate.ErrNoTranscriber) ||
		errors.Is(err, cli.ErrAPIKeyMissing) || errors.Is(err, cli.ErrKBTokenMissing) {
		return ExitFatal
	}

	// Everything else means the session ran but left work behind:
	// retained sources, failed transcripts, or a mid-run error.
	return ExitPartial
}

// cobraUsageErrorPatterns contains error message substrings that indicate Cobra usage errors.
// These patterns are stable across Cobra versions (tested with v1.8+).
// Cobra doesn't expose typed errors, so string matching is the only reliable approach.
var cobraUsageErrorPatterns = []string{
	"required flag",             // Missing required flag
	"unknown flag",              // Flag doesn't exist
	"unknown shorthand",         // Short flag doesn't exist
	"flag needs an argument",    // Flag provided without value
	"invalid argument",          // Invalid flag value type
	"if any flags in the group", // Mutually exclusive flag violation
	"accepts ",                  // Wrong number of arguments (e.g., "accepts 1 arg(s)")
	"unknown command",           // Subcommand doesn't exist
}

// isCobraUsageError checks if an error is a Cobra usage/parsing error.
func isCobraUsageError(err error) bool {
	if err == nil {
		return false
	}
	errMsg := err.Error()
	for _, pattern := range cobraUsageErrorPatterns {
		if strings.Contains(errMsg, pattern) {
			return true
		}
	}
	return false
}
