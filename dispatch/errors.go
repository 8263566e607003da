package dispatch

import (
	"errors"
	"fmt"
)

var (
	// ErrServerUnreachable is the cause carried by a DispatchFailure when the
	// target's health short-circuited the invocation before any attempt.
	ErrServerUnreachable = errors.New("server is unreachable")

	// ErrNoTransport is the cause carried when a server is registered but no
	// transport is bound for it.
	ErrNoTransport = errors.New("no transport bound for server")
)

// DispatchFailure is the terminal error envelope of a failed invocation. It
// carries the context needed to render a precise diagnostic: target server,
// operation, how many attempts were made and the last underlying cause.
type DispatchFailure struct {
	Server    string `json:"server"`
	Operation string `json:"operation"`
	Attempts  int    `json:"attempts"`
	Cause     error  `json:"-"`
}

func (e *DispatchFailure) Error() string {
	return fmt.Sprintf("dispatch of %s/%s failed after %d attempt(s): %v",
		e.Server, e.Operation, e.Attempts, e.Cause)
}

// Unwrap exposes the last underlying error for errors.Is / errors.As.
func (e *DispatchFailure) Unwrap() error { return e.Cause }
