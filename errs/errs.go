// Package errs defines the gateway's transport-agnostic error taxonomy and
// the single mapper that turns it into HTTP responses.
package errs

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"
)

// Kind is one of the closed set of domain error classes the orchestrator and
// its collaborators may surface.
type Kind string

const (
	EmbeddingUnavailable Kind = "embedding_unavailable"
	GeneratorUnavailable Kind = "generator_unavailable"
	CircuitOpen          Kind = "circuit_open"
	StorageUnavailable   Kind = "storage_unavailable"
	DrainInProgress      Kind = "drain_in_progress"
	AuthMissing          Kind = "auth_missing"
	AuthInvalid          Kind = "auth_invalid"
	AuthForbidden        Kind = "auth_forbidden"
	RateLimited          Kind = "rate_limited"
	ValidationFailed     Kind = "validation_failed"
)

// Error is the concrete type carried through the pipeline for every typed
// fault. Retryable and RetryAfter feed the transport mapper's response body;
// they are not used for any automatic retry above the generator client.
type Error struct {
	Kind       Kind
	Message    string
	Retryable  bool
	RetryAfter time.Duration
	cause      error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return string(e.Kind) + ": " + e.Message + ": " + e.cause.Error()
	}
	return string(e.Kind) + ": " + e.Message
}

func (e *Error) Unwrap() error { return e.cause }

// New builds a typed error with no wrapped cause.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap builds a typed error around an underlying cause.
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, cause: cause}
}

// WithRetry marks an error retryable, optionally carrying a retry-after hint.
func (e *Error) WithRetry(after time.Duration) *Error {
	e.Retryable = true
	e.RetryAfter = after
	return e
}

// As reports whether err (or something it wraps) is an *Error, returning it.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

var statusByKind = map[Kind]int{
	EmbeddingUnavailable: http.StatusInternalServerError,
	GeneratorUnavailable: http.StatusBadGateway,
	CircuitOpen:          http.StatusServiceUnavailable,
	StorageUnavailable:   http.StatusServiceUnavailable,
	DrainInProgress:      http.StatusServiceUnavailable,
	AuthMissing:          http.StatusUnauthorized,
	AuthInvalid:          http.StatusUnauthorized,
	AuthForbidden:        http.StatusForbidden,
	RateLimited:          http.StatusTooManyRequests,
	ValidationFailed:     http.StatusBadRequest,
}

type body struct {
	Error      string  `json:"error"`
	Message    string  `json:"message"`
	Retry      *bool   `json:"retry,omitempty"`
	RetryAfter *int64  `json:"retry_after,omitempty"`
}

// WriteHTTP is the only domain→HTTP translation point. It maps a typed error
// to a stable status code and body shape; untyped errors map to 500.
func WriteHTTP(w http.ResponseWriter, err error) {
	e, ok := As(err)
	if !ok {
		e = &Error{Kind: "internal", Message: err.Error()}
	}

	status, ok := statusByKind[e.Kind]
	if !ok {
		status = http.StatusInternalServerError
	}

	b := body{Error: string(e.Kind), Message: e.Message}
	if status >= 500 {
		retry := e.Retryable
		b.Retry = &retry
		if e.RetryAfter > 0 {
			secs := int64(e.RetryAfter.Seconds())
			b.RetryAfter = &secs
		}
	}
	if e.RetryAfter > 0 {
		w.Header().Set("Retry-After", formatSeconds(e.RetryAfter))
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(b)
}

func formatSeconds(d time.Duration) string {
	secs := int64(d.Seconds())
	if secs < 1 {
		secs = 1
	}
	return strconv.FormatInt(secs, 10)
}
