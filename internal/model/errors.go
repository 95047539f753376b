package model

import (
	"errors"
	"fmt"
)

// Error taxonomy for the session state machine. None of these are transient:
// every one is a decision point for the caller, never retried automatically.
// Infrastructure failures (storage, queue) propagate as their own errors and
// are treated as fatal to the operation.
var (
	// ErrInvalidInput — caller-supplied data violates a constraint
	// (negative amount, unknown tender).
	ErrInvalidInput = errors.New("invalid input")

	// ErrInvalidAction — unrecognized resolution action.
	ErrInvalidAction = errors.New("unrecognized resolution action")

	// ErrRegisterAlreadyOpen — the register already has an OPEN session.
	// The caller must close or resolve the existing session first.
	ErrRegisterAlreadyOpen = errors.New("register already has an open session")

	// ErrSessionNotOpen — close requested but the session is not OPEN.
	ErrSessionNotOpen = errors.New("register session is not open")

	// ErrInvalidState — the requested transition is illegal for the current
	// status (e.g. mutating a CLOSED_BALANCED or RESOLVED session).
	ErrInvalidState = errors.New("operation not allowed in current session status")

	// ErrVersionConflict — another writer won the race. The caller must
	// re-fetch before deciding whether to retry.
	ErrVersionConflict = errors.New("session version conflict")

	// ErrSessionNotFound — unknown session id.
	ErrSessionNotFound = errors.New("register session not found")
)

// VersionConflict carries the version the losing writer should re-fetch
// against. errors.Is(err, ErrVersionConflict) matches it.
type VersionConflict struct {
	CurrentVersion int
}

func (e *VersionConflict) Error() string {
	return fmt.Sprintf("session version conflict: current version is %d", e.CurrentVersion)
}

func (e *VersionConflict) Is(target error) bool { return target == ErrVersionConflict }
