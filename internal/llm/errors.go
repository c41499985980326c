package llm

import "errors"

var (
	// ErrEmptyAPIKey indicates that the API key was not provided.
	ErrEmptyAPIKey = errors.New("API key is required")

	// ErrInputTooLong indicates the input exceeds the token limit (estimated).
	ErrInputTooLong = errors.New("input too long")

	// ErrEmptyCompletion indicates the API returned no usable choice.
	ErrEmptyCompletion = errors.New("empty completion")
)
