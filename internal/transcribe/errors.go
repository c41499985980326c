package transcribe

import "errors"

// ErrNoBackend indicates no backend in the chain could even be tried:
// all were unavailable or rejected the file size.
var ErrNoBackend = errors.New("no usable transcription backend")

// ErrAllFailed indicates every tried backend returned an error.
var ErrAllFailed = errors.New("all transcription backends failed")

// ErrNoOutput indicates the local transcriber exited cleanly but
// produced no transcript file.
var ErrNoOutput = errors.New("no transcript produced")
