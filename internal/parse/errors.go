package parse

import "errors"

var (
	// ErrEmpty indicates a transcript with no content after trimming
	// (or nothing left once trailing markers are stripped).
	ErrEmpty = errors.New("empty transcript")

	// ErrTooLong indicates a transcript above the configured maximum size.
	ErrTooLong = errors.New("transcript exceeds maximum length")
)
