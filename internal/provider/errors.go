package provider

import (
	"errors"
	"fmt"
	"time"
)

// Code classifies a provider failure.
type Code string

const (
	// CodeUnavailable covers network failures and 5xx responses.
	// Retryable.
	CodeUnavailable Code = "provider_unavailable"

	// CodeRateLimited covers 429 responses. Retryable after backoff,
	// optionally with a backend-suggested delay.
	CodeRateLimited Code = "provider_rate_limited"

	// CodeRejected covers 4xx responses to a malformed request. Not
	// retryable; surfaced to the caller.
	CodeRejected Code = "provider_rejected"
)

// Error wraps a backend failure with enough structure for the
// orchestrator's retry policy.
type Error struct {
	Code       Code
	Message    string
	Underlying error
	Retryable  bool
	RetryAfter *time.Duration
}

func (e *Error) Error() string {
	if e.Underlying != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Code, e.Message, e.Underlying)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Underlying
}

// Unavailable builds a retryable transport-level error.
func Unavailable(msg string, underlying error) *Error {
	return &Error{Code: CodeUnavailable, Message: msg, Underlying: underlying, Retryable: true}
}

// RateLimited builds a retryable rate-limit error carrying the backend's
// suggested delay, if any.
func RateLimited(msg string, retryAfter *time.Duration) *Error {
	return &Error{Code: CodeRateLimited, Message: msg, Retryable: true, RetryAfter: retryAfter}
}

// Rejected builds a permanent request-rejected error.
func Rejected(msg string, underlying error) *Error {
	return &Error{Code: CodeRejected, Message: msg, Underlying: underlying}
}

// IsRetryable reports whether err may be retried at the Generating step.
func IsRetryable(err error) bool {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Retryable
	}
	return false
}

// RetryAfterHint returns the backend-suggested delay, if the error
// carries one.
func RetryAfterHint(err error) *time.Duration {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.RetryAfter
	}
	return nil
}

// FromStatus maps an HTTP status code onto the taxonomy. Adapters call
// this after their own structured decoding has failed to find a more
// specific cause.
func FromStatus(status int, msg string, underlying error) *Error {
	switch {
	case status == 429:
		return RateLimited(msg, nil)
	case status >= 500:
		return Unavailable(msg, underlying)
	default:
		return Rejected(msg, underlying)
	}
}
