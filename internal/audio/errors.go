package audio

import "errors"

// ErrSizeMismatch indicates a staged copy whose size differs from its
// source. The copy is discarded; the source is untouched.
var ErrSizeMismatch = errors.New("staged copy size mismatch")
