package cli

import (
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"github.com/alnah/go-voicepipe/internal/logging"
	"github.com/alnah/go-voicepipe/internal/orchestrate"
)

// configureRunLogging routes structured logs to stderr and a per-run
// file under <root>/logs. The returned closer flushes the file and is
// safe to call even when the file could not be opened.
func configureRunLogging(env *Env, root string, verbose bool) func() {
	level := ""
	if verbose {
		level = "debug"
	}

	writer := io.Writer(env.Stderr)
	closer := func() {}
	runLog, err := logging.OpenRunLog(filepath.Join(root, "logs"), env.Now())
	if err != nil {
		fmt.Fprintf(env.Stderr, "Warning: run log unavailable: %v\n", err)
	} else {
		writer = zerolog.MultiLevelWriter(env.Stderr, runLog)
		closer = func() { _ = runLog.Close() }
	}

	logging.Configure(logging.Config{
		Level:   level,
		Output:  writer,
		Service: "voicepipe",
	})
	return closer
}

// printSummary renders the per-run counts and the retained-file list.
// Counter order matches the run summary contract; retained and skipped
// files are listed with their reasons so nothing disappears silently.
func printSummary(w io.Writer, sum orchestrate.Summary) {
	header := "Session"
	if sum.DryRun {
		header = "Dry-run session"
	}
	fmt.Fprintf(w, "%s %s finished in %s\n", header, sum.SessionID, sum.Elapsed.Round(10*time.Millisecond))

	rows := []struct {
		label string
		n     int
	}{
		{"detected", sum.Detected},
		{"transcribed", sum.Transcribed},
		{"processed_ok", sum.ProcessedOK},
		{"processed_fail", sum.ProcessedFail},
		{"verified", sum.Verified},
		{"archived", sum.Archived},
		{"retained", len(sum.Retained)},
		{"deleted", sum.Deleted},
	}
	for _, row := range rows {
		fmt.Fprintf(w, "  %-14s %d\n", row.label, row.n)
	}

	if len(sum.Skipped) > 0 {
		fmt.Fprintf(w, "Skipped (%d):\n", len(sum.Skipped))
		for _, s := range sum.Skipped {
			fmt.Fprintf(w, "  %s  %s\n", s.Path, s.Reason)
		}
	}
	if len(sum.Retained) > 0 {
		fmt.Fprintf(w, "Retained (%d):\n", len(sum.Retained))
		for _, r := range sum.Retained {
			fmt.Fprintf(w, "  %s  %s\n", r.Path, r.Reason)
		}
	}
}
