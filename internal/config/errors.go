package config

import "errors"

// ErrMissingKey indicates Require was called for a key that is absent from
// every layer (environment, files, defaults). This is a fatal setup error.
var ErrMissingKey = errors.New("required configuration key missing")

// ErrBadValue indicates a Set call with a key or value that cannot be
// written to the settings layer.
var ErrBadValue = errors.New("bad configuration value")

// ErrUnknownPrompt indicates a prompt template name that is not defined in
// prompts.yaml or the built-in defaults.
var ErrUnknownPrompt = errors.New("unknown prompt template")

// ErrUnresolvedPlaceholder indicates a prompt template placeholder that was
// not supplied by the caller.
var ErrUnresolvedPlaceholder = errors.New("unresolved prompt placeholder")
