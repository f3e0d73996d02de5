package providers

import (
	"errors"
	"fmt"
	"time"
)

// ErrCountTokensUnsupported is returned by CountTokens on adapters whose
// upstream has no token counting endpoint. Callers fall back to a local
// estimate.
var ErrCountTokensUnsupported = errors.New("provider does not support count_tokens")

// TransientError reports a failure worth retrying: a network error, a
// timeout, or a 5xx from the upstream. The dispatcher advances to the next
// provider in the fallback chain when it sees one.
type TransientError struct {
	// Provider is the name of the provider that failed
	Provider string

	// StatusCode is the upstream HTTP status (0 when the request never
	// produced a response)
	StatusCode int

	// Message describes the failure
	Message string

	// Cause is the underlying error (if any)
	Cause error
}

// Error implements the error interface.
func (e *TransientError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("provider %q transient error (status %d): %s", e.Provider, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("provider %q transient error: %s", e.Provider, e.Message)
}

// Unwrap returns the underlying error for error chain support.
func (e *TransientError) Unwrap() error {
	return e.Cause
}

// RejectedError reports a request the upstream refused with a non-retryable
// status (4xx, including 429). The fallback chain stops: the request would
// fail the same way everywhere, or the client needs to see the upstream's
// complaint.
type RejectedError struct {
	// Provider is the name of the provider that rejected the request
	Provider string

	// StatusCode is the upstream HTTP status
	StatusCode int

	// Body is the upstream error body, preserved verbatim so the client
	// sees the original complaint
	Body []byte

	// RetryAfter is the upstream's Retry-After hint on 429s (zero when
	// absent)
	RetryAfter time.Duration
}

// Error implements the error interface.
func (e *RejectedError) Error() string {
	return fmt.Sprintf("provider %q rejected request (status %d): %s", e.Provider, e.StatusCode, truncate(string(e.Body), 200))
}

// NotAvailableError reports a provider that appears in a model mapping but
// has no live adapter, usually because construction was skipped over a
// missing credential. Treated like a transient failure for fallback
// purposes.
type NotAvailableError struct {
	// Provider is the mapped provider name
	Provider string

	// Reason says why no adapter exists
	Reason string
}

// Error implements the error interface.
func (e *NotAvailableError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("provider %q is not available", e.Provider)
	}
	return fmt.Sprintf("provider %q is not available: %s", e.Provider, e.Reason)
}

// ProtocolError reports upstream bytes the adapter could not interpret: a
// malformed JSON body, a truncated SSE stream, an event sequence that
// violates the protocol. Mid-stream, this is unrecoverable; before any
// bytes reached the client it is treated as transient.
type ProtocolError struct {
	// Provider is the name of the provider that sent the malformed payload
	Provider string

	// Message describes what was wrong
	Message string

	// Cause is the underlying error (if any)
	Cause error
}

// Error implements the error interface.
func (e *ProtocolError) Error() string {
	return fmt.Sprintf("provider %q protocol error: %s", e.Provider, e.Message)
}

// Unwrap returns the underlying error for error chain support.
func (e *ProtocolError) Unwrap() error {
	return e.Cause
}

// IsTransient reports whether an error permits advancing to the next
// provider in the fallback chain. Covers TransientError, NotAvailableError,
// and ProtocolError (the last only matters before any bytes were relayed;
// mid-stream the dispatcher never gets this far).
func IsTransient(err error) bool {
	var te *TransientError
	if errors.As(err, &te) {
		return true
	}
	var na *NotAvailableError
	if errors.As(err, &na) {
		return true
	}
	var pe *ProtocolError
	return errors.As(err, &pe)
}

// ErrorKind names the failure class for metrics labels: "transient",
// "rejected", "not_available", "protocol", or "other".
func ErrorKind(err error) string {
	var te *TransientError
	if errors.As(err, &te) {
		return "transient"
	}
	var re *RejectedError
	if errors.As(err, &re) {
		return "rejected"
	}
	var na *NotAvailableError
	if errors.As(err, &na) {
		return "not_available"
	}
	var pe *ProtocolError
	if errors.As(err, &pe) {
		return "protocol"
	}
	return "other"
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
