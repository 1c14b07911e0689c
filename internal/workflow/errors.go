package workflow

import "errors"

// Sentinel errors for the orchestration core. CLI handlers match on these
// with errors.Is to pick exit messages.
var (
	// ErrInvalidTransition is returned when an operation is requested from a
	// state that does not allow it.
	ErrInvalidTransition = errors.New("invalid transition")

	// ErrDependencyNotMet is returned when starting a task whose dependencies
	// are not all complete or skipped.
	ErrDependencyNotMet = errors.New("dependency not met")

	// ErrTaskNotFound is returned when a task ID does not exist in the state.
	ErrTaskNotFound = errors.New("task not found")

	// ErrAlreadyFinal is returned when advancing from the terminal phase or
	// mutating a task in a terminal status.
	ErrAlreadyFinal = errors.New("already final")

	// ErrAlreadyHalted is returned when a halt is requested while one is
	// already in effect.
	ErrAlreadyHalted = errors.New("halt already requested")

	// ErrNotResumable is returned when resuming a halt that requires manual
	// intervention.
	ErrNotResumable = errors.New("halt is not resumable")
)
