package analyze

import "errors"

// ErrMalformedReply indicates the model returned unusable JSON even after
// one reprompt. Analyzers catch it and degrade to the deterministic
// fallback; it never crosses the package boundary on the happy path.
var ErrMalformedReply = errors.New("malformed model reply")
