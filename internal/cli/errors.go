package cli

import "errors"

// CLI-specific sentinel errors.
// These are validation/usage errors that don't belong to domain packages.

var (
	// ErrAPIKeyMissing indicates the transcription/LLM API key environment
	// variable is not set.
	ErrAPIKeyMissing = errors.New("API key environment variable not set")

	// ErrKBTokenMissing indicates the knowledge-base token environment
	// variable is not set.
	ErrKBTokenMissing = errors.New("knowledge-base token environment variable not set")

	// ErrPartialRun indicates a run finished but left retained sources or
	// failed transcripts behind. Maps to exit code 1.
	ErrPartialRun = errors.New("run finished with retained files")

	// ErrUnknownStep indicates a --skip-steps value outside s1..s5.
	ErrUnknownStep = errors.New("unknown pipeline step")

	// ErrInvalidDuration indicates a duration filter flag that cannot apply.
	ErrInvalidDuration = errors.New("invalid duration filter")

	// ErrFileNotFound indicates the specified input file does not exist.
	ErrFileNotFound = errors.New("file not found")
)
