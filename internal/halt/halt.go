// Package halt implements the cooperative halt/resume protocol. Halting
// never cancels in-flight work; it only stops new dispatches. The external
// signal file takes precedence over the in-state flag, so an operator can
// halt a run without touching the state document.
package halt

import (
	"fmt"
	"os"
	"time"

	"github.com/harrison/foreman/internal/models"
	"github.com/harrison/foreman/internal/workflow"
)

// SignalSource is the external halt signal. Abstracted so tests can halt
// without touching the filesystem.
type SignalSource interface {
	// Present reports whether the external halt signal is raised.
	Present() (bool, error)

	// Clear lowers the signal. Clearing an absent signal is a no-op.
	Clear() error
}

// FileSignal is the production SignalSource: a marker file in the planning
// directory.
type FileSignal struct {
	path string
}

// NewFileSignal returns the signal backed by the marker file at path.
func NewFileSignal(path string) *FileSignal {
	return &FileSignal{path: path}
}

func (f *FileSignal) Present() (bool, error) {
	_, err := os.Stat(f.path)
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, fmt.Errorf("failed to check halt signal %s: %w", f.path, err)
}

func (f *FileSignal) Clear() error {
	err := os.Remove(f.path)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to clear halt signal %s: %w", f.path, err)
	}
	return nil
}

// Raise creates the marker file. Used by the CLI to request an external halt.
func (f *FileSignal) Raise() error {
	if err := os.WriteFile(f.path, []byte(time.Now().UTC().Format(time.RFC3339)+"\n"), 0644); err != nil {
		return fmt.Errorf("failed to raise halt signal %s: %w", f.path, err)
	}
	return nil
}

// Controller coordinates halt state between the signal source and the state
// document.
type Controller struct {
	signal SignalSource
}

// NewController returns a controller using the given signal source.
func NewController(signal SignalSource) *Controller {
	return &Controller{signal: signal}
}

// Status is the answer to a halt check.
type Status struct {
	Halted bool
	Reason string
	// External is true when the signal file caused the halt.
	External bool
}

// Check reports whether dispatching must stop. Cheap enough to call before
// every dispatch. The external signal wins over the in-state flag.
func (c *Controller) Check(st *models.WorkflowState) (Status, error) {
	present, err := c.signal.Present()
	if err != nil {
		return Status{}, err
	}
	if present {
		return Status{Halted: true, Reason: "external halt signal", External: true}, nil
	}
	if st.Halt != nil && st.Halt.Requested {
		return Status{Halted: true, Reason: st.Halt.Reason}, nil
	}
	return Status{}, nil
}

// Request records a halt exactly once. A second request while already halted
// fails with ErrAlreadyHalted.
func (c *Controller) Request(st *models.WorkflowState, reason, activeTask string) error {
	status, err := c.Check(st)
	if err != nil {
		return err
	}
	if status.Halted {
		return fmt.Errorf("%w: %s", workflow.ErrAlreadyHalted, status.Reason)
	}

	now := time.Now().UTC().Format(time.RFC3339Nano)
	st.Halt = &models.HaltRecord{
		Requested:   true,
		RequestedAt: now,
		Reason:      reason,
		ActiveTask:  activeTask,
		HaltedAt:    now,
		Resumable:   true,
	}
	st.AddEvent("halt_requested", activeTask, map[string]any{"reason": reason})
	return nil
}

// Resume lifts a halt: clears the signal file if present and resets the
// in-state record. Fails when no halt is in effect, or when the record is
// marked non-resumable (manual intervention required).
func (c *Controller) Resume(st *models.WorkflowState) error {
	status, err := c.Check(st)
	if err != nil {
		return err
	}
	if !status.Halted {
		return fmt.Errorf("no halt in effect")
	}
	if st.Halt != nil && st.Halt.Requested && !st.Halt.Resumable {
		return fmt.Errorf("%w: %s", workflow.ErrNotResumable, st.Halt.Reason)
	}

	if err := c.signal.Clear(); err != nil {
		return err
	}
	st.Halt = nil
	st.AddEvent("resumed", "", nil)
	return nil
}
