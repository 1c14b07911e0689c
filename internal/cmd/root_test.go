package cmd

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// execute runs the root command against dir with the given args and returns
// stdout.
func execute(t *testing.T, dir string, args ...string) (string, error) {
	t.Helper()
	root := NewRootCommand()
	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(append([]string{"--dir", dir}, args...))
	err := root.Execute()
	return out.String(), err
}

func initProject(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	_, err := execute(t, dir, "init")
	require.NoError(t, err)
	// keep tests hermetic: no history database writes
	writeConfig(t, dir, "history:\n  enabled: false\n")
	return dir
}

func writeConfig(t *testing.T, dir, content string) {
	t.Helper()
	path := filepath.Join(dir, ".foreman", "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func writeTaskFile(t *testing.T, dir, id string, body map[string]any) {
	t.Helper()
	if body == nil {
		body = map[string]any{}
	}
	body["id"] = id
	if _, ok := body["name"]; !ok {
		body["name"] = "task " + id
	}
	if _, ok := body["phase"]; !ok {
		body["phase"] = 1
	}
	data, err := json.Marshal(body)
	require.NoError(t, err)
	path := filepath.Join(dir, ".foreman", "tasks", id+".json")
	require.NoError(t, os.WriteFile(path, data, 0644))
}

func TestInitCreatesState(t *testing.T) {
	dir := t.TempDir()
	out, err := execute(t, dir, "init")
	require.NoError(t, err)
	assert.Contains(t, out, "Initialized")

	_, err = os.Stat(filepath.Join(dir, ".foreman", "state.json"))
	assert.NoError(t, err)

	// re-init fails
	_, err = execute(t, dir, "init")
	assert.ErrorContains(t, err, "already initialized")
}

func TestStatusJSON(t *testing.T) {
	dir := initProject(t)
	out, err := execute(t, dir, "status", "--json")
	require.NoError(t, err)

	var report map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.Equal(t, "ingestion", report["phase"])
	assert.Equal(t, false, report["halted"])
}

func TestAdvanceRequiresSpecInput(t *testing.T) {
	dir := initProject(t)

	_, err := execute(t, dir, "advance")
	assert.ErrorContains(t, err, "spec input not found")

	specPath := filepath.Join(dir, ".foreman", "spec.md")
	require.NoError(t, os.WriteFile(specPath, []byte("# Spec\n"), 0644))

	out, err := execute(t, dir, "advance")
	require.NoError(t, err)
	assert.Contains(t, out, "ingestion -> spec_review")
}

func TestReviewRecordAndAdvance(t *testing.T) {
	dir := initProject(t)
	specPath := filepath.Join(dir, ".foreman", "spec.md")
	require.NoError(t, os.WriteFile(specPath, []byte("# Spec\n"), 0644))
	_, err := execute(t, dir, "advance")
	require.NoError(t, err)

	_, err = execute(t, dir, "advance")
	assert.ErrorContains(t, err, "no review recorded")

	_, err = execute(t, dir, "review", "record", "--total", "3", "--critical-open", "1")
	require.NoError(t, err)
	_, err = execute(t, dir, "advance")
	assert.ErrorContains(t, err, "critical")

	_, err = execute(t, dir, "review", "record", "--total", "3", "--critical-open", "0")
	require.NoError(t, err)
	out, err := execute(t, dir, "advance")
	require.NoError(t, err)
	assert.Contains(t, out, "spec_review -> logical")
}

func TestArtifactRegisterInvalidStillRecords(t *testing.T) {
	dir := initProject(t)

	artifact := filepath.Join(dir, "capmap.json")
	require.NoError(t, os.WriteFile(artifact, []byte(`{"domains": []}`), 0644))

	out, err := execute(t, dir, "artifact", "register", "capability_map", artifact)
	require.NoError(t, err)
	assert.Contains(t, out, "INVALID")

	_, err = execute(t, dir, "artifact", "register", "blueprint", artifact)
	assert.ErrorContains(t, err, "unknown artifact kind")
}

func TestTaskLifecycleThroughCLI(t *testing.T) {
	dir := initProject(t)
	writeTaskFile(t, dir, "t1", nil)
	writeTaskFile(t, dir, "t2", map[string]any{
		"dependencies": map[string]any{"tasks": []string{"t1"}},
	})

	out, err := execute(t, dir, "tasks", "load")
	require.NoError(t, err)
	assert.Contains(t, out, "Loaded 2 task(s)")

	out, err = execute(t, dir, "tasks", "ready", "--json")
	require.NoError(t, err)
	var ready map[string][]string
	require.NoError(t, json.Unmarshal([]byte(out), &ready))
	assert.Equal(t, []string{"t1"}, ready["ready"])

	_, err = execute(t, dir, "task", "start", "t2")
	assert.ErrorContains(t, err, "waits on")

	_, err = execute(t, dir, "task", "start", "t1")
	require.NoError(t, err)
	_, err = execute(t, dir, "task", "fail", "t1", "compile error", "--category", "implementation")
	require.NoError(t, err)

	// t2 is now blocked by t1's failure
	out, err = execute(t, dir, "status", "--json")
	require.NoError(t, err)
	var report struct {
		Tasks map[string]int `json:"tasks"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.Equal(t, 1, report.Tasks["failed"])
	assert.Equal(t, 1, report.Tasks["blocked"])

	// retry releases the dependent
	_, err = execute(t, dir, "task", "retry", "t1")
	require.NoError(t, err)
	out, err = execute(t, dir, "tasks", "ready", "--json")
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal([]byte(out), &ready))
	assert.Equal(t, []string{"t1"}, ready["ready"])
}

func TestHaltRequestStatusResume(t *testing.T) {
	dir := initProject(t)

	_, err := execute(t, dir, "halt", "request", "--reason", "budget exhausted")
	require.NoError(t, err)

	out, err := execute(t, dir, "halt", "status")
	require.NoError(t, err)
	assert.Contains(t, out, "budget exhausted")

	_, err = execute(t, dir, "halt", "request")
	assert.ErrorContains(t, err, "already")

	_, err = execute(t, dir, "halt", "resume")
	require.NoError(t, err)
	out, err = execute(t, dir, "halt", "status")
	require.NoError(t, err)
	assert.Contains(t, out, "Not halted")
}

func TestHaltSignalFile(t *testing.T) {
	dir := initProject(t)

	_, err := execute(t, dir, "halt", "request", "--signal")
	require.NoError(t, err)
	_, err = os.Stat(filepath.Join(dir, ".foreman", "HALT"))
	require.NoError(t, err)

	out, err := execute(t, dir, "halt", "status")
	require.NoError(t, err)
	assert.Contains(t, out, "signal file")

	_, err = execute(t, dir, "halt", "resume")
	require.NoError(t, err)
	_, err = os.Stat(filepath.Join(dir, ".foreman", "HALT"))
	assert.True(t, os.IsNotExist(err))
}

func TestGatesRunReportsAllIssues(t *testing.T) {
	dir := initProject(t)
	specPath := filepath.Join(dir, ".foreman", "spec.md")
	require.NoError(t, os.WriteFile(specPath, []byte("# Spec\n\n- REQ-1: parse input\n"), 0644))

	writeTaskFile(t, dir, "t1", map[string]any{
		"dependencies": map[string]any{"tasks": []string{"ghost"}},
	})
	_, err := execute(t, dir, "gates", "run", "--json")
	require.Error(t, err)
}

func TestCheckpointLifecycle(t *testing.T) {
	dir := initProject(t)

	_, err := execute(t, dir, "checkpoint", "create", "t1", "t2")
	require.NoError(t, err)

	_, err = execute(t, dir, "checkpoint", "create", "t3")
	assert.ErrorContains(t, err, "still active")

	_, err = execute(t, dir, "checkpoint", "update", "t1", "success")
	require.NoError(t, err)
	_, err = execute(t, dir, "checkpoint", "update", "t2", "failed")
	require.NoError(t, err)

	out, err := execute(t, dir, "checkpoint", "complete")
	require.NoError(t, err)
	assert.Contains(t, out, "Completed batch")

	_, err = execute(t, dir, "checkpoint", "clear")
	require.NoError(t, err)
}

func TestTokensAndMetrics(t *testing.T) {
	dir := initProject(t)

	_, err := execute(t, dir, "tokens", "log", "--in", "1000", "--out", "500", "--cost", "0.25")
	require.NoError(t, err)

	out, err := execute(t, dir, "metrics", "--json")
	require.NoError(t, err)
	var m map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &m))
	assert.InDelta(t, 1500, m["total_tokens"].(float64), 1e-9)
	assert.InDelta(t, 1.0, m["calibration_score"].(float64), 1e-9)
}
