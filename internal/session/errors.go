package session

import "errors"

// ErrNoSession indicates a journal mutation before Begin opened a session.
var ErrNoSession = errors.New("no open session")
