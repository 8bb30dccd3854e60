package server

import (
	"errors"
	"fmt"
)

// Operation-level errors returned to the caller. Precondition and
// resource failures use sentinels so handlers can map them to HTTP
// codes; I/O failures wrap the underlying OS error.
var (
	// ErrBusy means another control operation is in flight.
	ErrBusy = errors.New("another server operation is in progress")

	// ErrAlreadyRunning means the server is running, or a conflicting
	// instance was detected on the host.
	ErrAlreadyRunning = errors.New("server is already running")

	// ErrNotRunning means the operation requires a running server.
	ErrNotRunning = errors.New("server is not running")

	// ErrNotStopped means start was requested in a transient state.
	ErrNotStopped = errors.New("server is not stopped")

	// ErrJarNotFound means the configured server jar does not exist.
	ErrJarNotFound = errors.New("server jar not found")

	// ErrNoPreviousLaunch means restart was requested before any
	// successful start.
	ErrNoPreviousLaunch = errors.New("no previous launch configuration")

	// ErrStopIncomplete means the child survived both the graceful
	// command and the kill signal within the allotted time.
	ErrStopIncomplete = errors.New("failed to stop server completely")
)

// SpawnError wraps an OS-level launch failure.
type SpawnError struct {
	Err error
}

func (e *SpawnError) Error() string {
	return fmt.Sprintf("failed to spawn server process: %v", e.Err)
}

func (e *SpawnError) Unwrap() error { return e.Err }

// WriteError wraps a failure writing to the child's input stream.
// It is treated as evidence that the child has died; the exit
// monitor confirms and performs the state transition.
type WriteError struct {
	Err error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("failed to write to server input: %v", e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }
