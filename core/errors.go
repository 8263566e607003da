package core

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"syscall"

	"github.com/hupe1980/toolmesh/internal/util"
)

// NotFoundError is returned by store lookups when the requested identifier
// does not exist.
type NotFoundError struct {
	Resource string `json:"resource"` // e.g. "memory record"
	ID       string `json:"id"`
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Resource, e.ID)
}

// DanglingReferenceError is returned when a relation references entity names
// that do not exist. Missing lists every unresolved name; the call that
// produced it created nothing.
type DanglingReferenceError struct {
	Missing []string `json:"missing"`
}

func (e *DanglingReferenceError) Error() string {
	return fmt.Sprintf("relation references unknown entities: %s", strings.Join(e.Missing, ", "))
}

// ValidationError reports a malformed payload. Validation failures are never
// retried by the dispatch coordinator.
type ValidationError = util.ValidationError

// TransientError marks a wrapped error as retryable. Transports use it to
// flag failures (connection resets, upstream overload) that the originating
// error type does not already identify as transient.
type TransientError struct {
	Err error
}

// NewTransientError wraps err with the transient marker.
func NewTransientError(err error) *TransientError {
	return &TransientError{Err: err}
}

func (e *TransientError) Error() string { return e.Err.Error() }

// Unwrap returns the wrapped error.
func (e *TransientError) Unwrap() error { return e.Err }

// Transient marks the error as retryable.
func (e *TransientError) Transient() bool { return true }

// IsTransient reports whether err represents a failure class the dispatch
// coordinator may retry: timeouts, connection-level errors, or anything
// carrying a Transient() marker. Validation errors and other application
// failures are not transient.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	var ve *ValidationError
	if errors.As(err, &ve) {
		return false
	}

	var marker interface{ Transient() bool }
	if errors.As(err, &marker) {
		return marker.Transient()
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	return errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.EPIPE)
}
