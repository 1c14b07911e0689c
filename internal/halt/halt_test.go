package halt

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harrison/foreman/internal/models"
	"github.com/harrison/foreman/internal/workflow"
)

// fakeSignal is an in-memory SignalSource.
type fakeSignal struct {
	raised bool
}

func (f *fakeSignal) Present() (bool, error) { return f.raised, nil }
func (f *fakeSignal) Clear() error           { f.raised = false; return nil }

func newTestState() *models.WorkflowState {
	return models.NewWorkflowState("/tmp/project", time.Now())
}

func TestRequestAndCheck(t *testing.T) {
	sig := &fakeSignal{}
	ctl := NewController(sig)
	st := newTestState()

	status, err := ctl.Check(st)
	require.NoError(t, err)
	assert.False(t, status.Halted)

	require.NoError(t, ctl.Request(st, "budget exhausted", "t7"))
	require.NotNil(t, st.Halt)
	assert.True(t, st.Halt.Requested)
	assert.True(t, st.Halt.Resumable)
	assert.Equal(t, "t7", st.Halt.ActiveTask)

	status, err = ctl.Check(st)
	require.NoError(t, err)
	assert.True(t, status.Halted)
	assert.Equal(t, "budget exhausted", status.Reason)
	assert.False(t, status.External)
}

func TestDoubleRequestFails(t *testing.T) {
	ctl := NewController(&fakeSignal{})
	st := newTestState()

	require.NoError(t, ctl.Request(st, "first", ""))
	err := ctl.Request(st, "second", "")
	assert.ErrorIs(t, err, workflow.ErrAlreadyHalted)
}

func TestExternalSignalTakesPrecedence(t *testing.T) {
	sig := &fakeSignal{raised: true}
	ctl := NewController(sig)
	st := newTestState()

	// no in-state halt was ever requested
	status, err := ctl.Check(st)
	require.NoError(t, err)
	assert.True(t, status.Halted)
	assert.True(t, status.External)
	assert.Equal(t, "external halt signal", status.Reason)

	// and requesting while the signal is up counts as already halted
	err = ctl.Request(st, "late", "")
	assert.ErrorIs(t, err, workflow.ErrAlreadyHalted)
}

func TestResumeClearsSignalAndRecord(t *testing.T) {
	sig := &fakeSignal{raised: true}
	ctl := NewController(sig)
	st := newTestState()

	require.NoError(t, ctl.Resume(st))
	assert.False(t, sig.raised)

	status, err := ctl.Check(st)
	require.NoError(t, err)
	assert.False(t, status.Halted)
}

func TestResumeInStateHalt(t *testing.T) {
	ctl := NewController(&fakeSignal{})
	st := newTestState()

	require.NoError(t, ctl.Request(st, "pause", ""))
	require.NoError(t, ctl.Resume(st))
	assert.Nil(t, st.Halt)
}

func TestResumeWithoutHaltFails(t *testing.T) {
	ctl := NewController(&fakeSignal{})
	err := ctl.Resume(newTestState())
	assert.ErrorContains(t, err, "no halt in effect")
}

func TestResumeNonResumableFails(t *testing.T) {
	ctl := NewController(&fakeSignal{})
	st := newTestState()
	st.Halt = &models.HaltRecord{Requested: true, Reason: "corrupted state", Resumable: false}

	err := ctl.Resume(st)
	assert.ErrorIs(t, err, workflow.ErrNotResumable)
	assert.NotNil(t, st.Halt)
}

func TestFileSignal(t *testing.T) {
	path := filepath.Join(t.TempDir(), "HALT")
	sig := NewFileSignal(path)

	present, err := sig.Present()
	require.NoError(t, err)
	assert.False(t, present)

	require.NoError(t, sig.Raise())
	present, err = sig.Present()
	require.NoError(t, err)
	assert.True(t, present)
	_, err = os.Stat(path)
	assert.NoError(t, err)

	require.NoError(t, sig.Clear())
	present, err = sig.Present()
	require.NoError(t, err)
	assert.False(t, present)

	// clearing twice is fine
	assert.NoError(t, sig.Clear())
}
