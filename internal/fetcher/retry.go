package fetcher

import (
	"crypto/tls"
	"errors"
	"net/http"
	"time"
)

// Default retry settings.
const (
	DefaultMaxAttempts = 3
	DefaultBackoffUnit = 2 * time.Second
)

// RetryPolicy is the retry budget of a single fetch: how many network
// attempts may be made and how long to back off after each failed one.
//
// Back-off grows linearly: attempt n is followed by n*BackoffUnit, so with
// the defaults a target that keeps failing costs 2s, 4s and 6s of back-off.
type RetryPolicy struct {
	MaxAttempts int
	BackoffUnit time.Duration
}

// DefaultRetryPolicy returns the default policy (3 attempts, 2s unit).
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: DefaultMaxAttempts,
		BackoffUnit: DefaultBackoffUnit,
	}
}

// Backoff returns the pause after the given 1-based failed attempt.
func (p RetryPolicy) Backoff(attempt int) time.Duration {
	if attempt < 1 || p.BackoffUnit <= 0 {
		return 0
	}
	return time.Duration(attempt) * p.BackoffUnit
}

// attempts returns MaxAttempts, at least one.
func (p RetryPolicy) attempts() int {
	if p.MaxAttempts < 1 {
		return 1
	}
	return p.MaxAttempts
}

// WorstCaseBackoff returns the total back-off spent on a target that fails
// transiently on every attempt.
func (p RetryPolicy) WorstCaseBackoff() time.Duration {
	var total time.Duration
	for attempt := 1; attempt <= p.attempts(); attempt++ {
		total += p.Backoff(attempt)
	}
	return total
}

// transientStatus reports whether an HTTP status is worth retrying.
func transientStatus(code int) bool {
	switch {
	case code >= http.StatusInternalServerError:
		return true
	case code == http.StatusTooManyRequests, code == http.StatusRequestTimeout:
		return true
	default:
		return false
	}
}

// transient reports whether err, returned by one attempt, may succeed on a
// later attempt. Timeouts, connection failures and retryable statuses are
// transient; client errors, malformed bodies and certificate failures are not.
func transient(err error) bool {
	if err == nil {
		return false
	}

	var se *statusError
	if errors.As(err, &se) {
		return transientStatus(se.code)
	}

	var me *malformedError
	if errors.As(err, &me) {
		return false
	}

	var certErr *tls.CertificateVerificationError
	if errors.As(err, &certErr) {
		return false
	}

	// Everything else came from the transport: timeouts, refused or reset
	// connections, unexpected EOF.
	return true
}
