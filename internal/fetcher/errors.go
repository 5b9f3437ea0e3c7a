package fetcher

import (
	"errors"
	"fmt"
)

// Sentinel errors matched with errors.Is against a *FetchError.
var (
	// ErrPolicyDenied means robots.txt disallows the target. No request was sent.
	ErrPolicyDenied = errors.New("disallowed by robots policy")

	// ErrRetriesExhausted means every attempt failed with a transient error.
	ErrRetriesExhausted = errors.New("retries exhausted")

	// ErrClientError means the server rejected the request (4xx) or sent a
	// response that can never be read. Such failures are not retried.
	ErrClientError = errors.New("client error")
)

// Kind classifies a terminal fetch failure.
type Kind int

const (
	// KindPolicyDenied corresponds to ErrPolicyDenied.
	KindPolicyDenied Kind = iota + 1
	// KindRetriesExhausted corresponds to ErrRetriesExhausted.
	KindRetriesExhausted
	// KindClientError corresponds to ErrClientError.
	KindClientError
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindPolicyDenied:
		return "PolicyDenied"
	case KindRetriesExhausted:
		return "RetriesExhausted"
	case KindClientError:
		return "ClientError"
	default:
		return "Unknown"
	}
}

func (k Kind) sentinel() error {
	switch k {
	case KindPolicyDenied:
		return ErrPolicyDenied
	case KindRetriesExhausted:
		return ErrRetriesExhausted
	case KindClientError:
		return ErrClientError
	default:
		return nil
	}
}

// FetchError is the terminal failure of one logical fetch.
type FetchError struct {
	// URL is the target that failed.
	URL string
	// Kind is the failure class.
	Kind Kind
	// Attempts is the number of network attempts made. Zero for policy denials.
	Attempts int
	// StatusCode is the last HTTP status seen, or zero.
	StatusCode int
	// Err is the last underlying cause, if any.
	Err error
}

// Error implements error.
func (e *FetchError) Error() string {
	msg := fmt.Sprintf("fetch %s: %s", e.URL, e.Kind.sentinel())
	if e.Attempts > 0 {
		msg += fmt.Sprintf(" after %d attempt(s)", e.Attempts)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap exposes the underlying cause.
func (e *FetchError) Unwrap() error {
	return e.Err
}

// Is matches the sentinel of the error's Kind.
func (e *FetchError) Is(target error) bool {
	return target != nil && target == e.Kind.sentinel()
}

// statusError reports an HTTP status that ended an attempt.
type statusError struct {
	code int
}

func (e *statusError) Error() string {
	return fmt.Sprintf("unexpected status %d", e.code)
}

// malformedError marks a response that arrived but cannot be used.
type malformedError struct {
	err error
}

func (e *malformedError) Error() string {
	return "malformed response: " + e.err.Error()
}

func (e *malformedError) Unwrap() error {
	return e.err
}
