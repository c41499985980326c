package archive

import "errors"

// ErrVerifyFailed indicates the archived copy did not match the source
// size when re-checked on disk.
var ErrVerifyFailed = errors.New("archive copy verification failed")

// ErrNoArchiveCopy indicates no verified archive copy exists for the
// source.
var ErrNoArchiveCopy = errors.New("no verified archive copy")

// ErrNotVerified indicates a deletion was attempted through a token that
// never passed archive verification.
var ErrNotVerified = errors.New("deletion token not verified")
