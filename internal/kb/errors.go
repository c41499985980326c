package kb

import "errors"

// ErrEmptyToken indicates the knowledge base token is missing.
var ErrEmptyToken = errors.New("API token is required")

// ErrNotFound indicates the record does not exist on the remote store.
var ErrNotFound = errors.New("record not found")

// ErrMissingCollection indicates no collection id is configured for the
// record's category.
var ErrMissingCollection = errors.New("no collection configured")
