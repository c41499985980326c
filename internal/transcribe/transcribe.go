// Package transcribe converts staged audio files to text through an
// ordered chain of backends. The cloud backend calls the OpenAI audio
// API; the local backend shells out to a whisper.cpp CLI. The Service
// tries backends in order, skipping any that are unavailable or whose
// file-size limit the input exceeds, and fails only when every usable
// backend has failed.
package transcribe

import "context"

// Backend names and the chain-selection modes built from them.
const (
	BackendCloud = "cloud"
	BackendLocal = "local"
	ModeAuto     = "auto"
)

// Backend is one transcription strategy.
type Backend interface {
	// Name identifies the backend in logs and results.
	Name() string

	// Available reports whether the backend can serve calls at all:
	// a configured API key, a resolvable binary.
	Available(ctx context.Context) bool

	// MaxFileBytes is the largest input the backend accepts.
	// Zero means no limit.
	MaxFileBytes() int64

	// Transcribe converts one audio file to text.
	Transcribe(ctx context.Context, path string) (string, error)
}

// Result is a successful transcription and the backend that produced it.
type Result struct {
	Text    string
	Backend string
}
