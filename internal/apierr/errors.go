// Package apierr provides shared error sentinels and retry infrastructure
// for HTTP-based API clients. All provider-specific error types are
// classified into these sentinels at the adapter boundary.
//
// Providers map HTTP status codes to these errors using fmt.Errorf("%s: %w", msg, sentinel).
// Callers check with errors.Is(err, apierr.ErrRateLimit) etc.
package apierr

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// Sentinel errors for API interaction failures.
var (
	// ErrRateLimit indicates the API rate limit was exceeded (temporary, retryable).
	ErrRateLimit = errors.New("rate limit exceeded")

	// ErrQuotaExceeded indicates the API quota was exceeded (billing issue, not retryable).
	ErrQuotaExceeded = errors.New("quota exceeded")

	// ErrTimeout indicates a request timed out.
	ErrTimeout = errors.New("request timeout")

	// ErrAuthFailed indicates API authentication failed (invalid key).
	ErrAuthFailed = errors.New("authentication failed")

	// ErrBadRequest indicates a client error (4xx) that is not otherwise classified.
	ErrBadRequest = errors.New("bad request")

	// ErrOversize indicates the payload exceeds the provider's size limit (413).
	// Not retryable against the same provider; callers may fail over to another.
	ErrOversize = errors.New("payload too large")

	// ErrUnavailable indicates a server-side failure (5xx, retryable).
	ErrUnavailable = errors.New("service unavailable")

	// ErrPermanent indicates a request the provider will never accept
	// (schema mismatch, unsupported parameter). Never retried.
	ErrPermanent = errors.New("permanent request failure")
)

// RateLimitError wraps ErrRateLimit with the server-provided Retry-After
// delay. RetryWithBackoff waits this long instead of the exponential step.
type RateLimitError struct {
	Msg        string
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("%s (retry after %s)", e.Msg, e.RetryAfter)
	}
	return e.Msg
}

// Unwrap makes errors.Is(err, ErrRateLimit) hold for wrapped values.
func (e *RateLimitError) Unwrap() error { return ErrRateLimit }

// RetryAfter extracts the server-provided retry delay from err, if any.
func RetryAfter(err error) (time.Duration, bool) {
	var rle *RateLimitError
	if errors.As(err, &rle) && rle.RetryAfter > 0 {
		return rle.RetryAfter, true
	}
	return 0, false
}

// ParseRetryAfter reads a Retry-After header value, either delay seconds
// or an HTTP date. Returns 0 when absent or unparseable.
func ParseRetryAfter(value string) time.Duration {
	if value == "" {
		return 0
	}
	if secs, err := strconv.Atoi(strings.TrimSpace(value)); err == nil && secs >= 0 {
		return time.Duration(secs) * time.Second
	}
	if at, err := http.ParseTime(value); err == nil {
		if d := time.Until(at); d > 0 {
			return d
		}
	}
	return 0
}

// ClassifyStatus maps an HTTP status plus message to a sentinel error.
// retryAfter, when known, rides along on rate-limit errors so the backoff
// honors the server's delay.
func ClassifyStatus(status int, msg string, retryAfter time.Duration) error {
	switch status {
	case http.StatusTooManyRequests:
		// Distinguish a temporary rate limit from an exhausted quota.
		if strings.Contains(msg, "quota") || strings.Contains(msg, "billing") {
			return fmt.Errorf("%s: %w", msg, ErrQuotaExceeded)
		}
		return &RateLimitError{Msg: msg, RetryAfter: retryAfter}
	case http.StatusPaymentRequired:
		return fmt.Errorf("%s: %w", msg, ErrQuotaExceeded)
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("%s: %w", msg, ErrAuthFailed)
	case http.StatusRequestEntityTooLarge:
		return fmt.Errorf("%s: %w", msg, ErrOversize)
	case http.StatusRequestTimeout, http.StatusGatewayTimeout:
		return fmt.Errorf("%s: %w", msg, ErrTimeout)
	case http.StatusInternalServerError, http.StatusBadGateway, http.StatusServiceUnavailable:
		return fmt.Errorf("%s: %w", msg, ErrUnavailable)
	case http.StatusBadRequest, http.StatusNotFound, http.StatusUnprocessableEntity:
		return fmt.Errorf("%s: %w", msg, ErrBadRequest)
	}
	return fmt.Errorf("API error %d: %s", status, msg)
}

// IsTransient reports whether err is worth retrying against the same
// provider: rate limits, timeouts, and 5xx-class failures qualify.
// Context cancellation, auth, quota, oversize, and permanent errors do not.
func IsTransient(err error) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, ErrRateLimit), errors.Is(err, ErrTimeout), errors.Is(err, ErrUnavailable):
		return true
	default:
		return false
	}
}
