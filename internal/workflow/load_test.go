package workflow

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harrison/foreman/internal/models"
)

func writeTaskFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0644))
}

func TestLoadTasks(t *testing.T) {
	dir := t.TempDir()
	writeTaskFile(t, dir, "t1.json", `{
		"id": "t1", "name": "scaffold", "phase": 1,
		"behaviors": ["creates module layout"],
		"acceptance_criteria": [{"criterion": "module compiles", "verification": "go build ./..."}],
		"context": {"steel_thread": true, "spec_requirements": ["REQ-001"]}
	}`)
	writeTaskFile(t, dir, "t2.json", `{
		"id": "t2", "name": "storage", "phase": 2,
		"dependencies": {"tasks": ["t1"]}
	}`)
	writeTaskFile(t, dir, "notes.txt", "ignored")

	st := models.NewWorkflowState("/tmp/project", time.Now())
	count, err := LoadTasks(st, dir)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	t1 := st.Task("t1")
	require.NotNil(t, t1)
	assert.Equal(t, models.StatusPending, t1.Status)
	assert.True(t, t1.SteelThread)
	assert.Equal(t, []string{"REQ-001"}, t1.SpecRequirements)
	assert.Equal(t, "t1.json", t1.File)
	assert.Equal(t, []string{"t2"}, t1.Blocks)

	t2 := st.Task("t2")
	require.NotNil(t, t2)
	assert.Equal(t, []string{"t1"}, t2.DependsOn)
}

func TestLoadTasksRejectsDuplicates(t *testing.T) {
	dir := t.TempDir()
	writeTaskFile(t, dir, "a.json", `{"id":"t1","name":"first","phase":1}`)
	writeTaskFile(t, dir, "b.json", `{"id":"t1","name":"second","phase":1}`)

	st := models.NewWorkflowState("/tmp/project", time.Now())
	_, err := LoadTasks(st, dir)
	assert.ErrorContains(t, err, "duplicate task id t1")
	assert.Empty(t, st.Tasks)
}

func TestLoadTasksRejectsInvalidDefinition(t *testing.T) {
	dir := t.TempDir()
	writeTaskFile(t, dir, "bad.json", `{"name":"no id","phase":1}`)

	st := models.NewWorkflowState("/tmp/project", time.Now())
	_, err := LoadTasks(st, dir)
	assert.ErrorContains(t, err, "missing required field 'id'")
}

func TestLoadTasksRejectsMalformedJSON(t *testing.T) {
	dir := t.TempDir()
	writeTaskFile(t, dir, "bad.json", `{`)

	st := models.NewWorkflowState("/tmp/project", time.Now())
	_, err := LoadTasks(st, dir)
	assert.ErrorContains(t, err, "malformed task file")
}

func TestLoadTasksReplacesPreviousSet(t *testing.T) {
	dir := t.TempDir()
	writeTaskFile(t, dir, "t1.json", `{"id":"t1","name":"only","phase":1}`)

	st := models.NewWorkflowState("/tmp/project", time.Now())
	st.Tasks["stale"] = &models.Task{ID: "stale", Status: models.StatusComplete}
	st.Execution.CompletedCount = 1

	_, err := LoadTasks(st, dir)
	require.NoError(t, err)
	assert.Nil(t, st.Task("stale"))
	assert.Equal(t, 0, st.Execution.CompletedCount)
}

func TestLoadDefinitionsKeepsCriteria(t *testing.T) {
	dir := t.TempDir()
	writeTaskFile(t, dir, "t1.json", `{
		"id": "t1", "name": "scaffold", "phase": 1,
		"acceptance_criteria": [{"criterion": "exits zero", "verification": "go test ./..."}]
	}`)

	defs, err := LoadDefinitions(dir)
	require.NoError(t, err)
	require.Len(t, defs, 1)
	require.Len(t, defs["t1"].AcceptanceCriteria, 1)
	assert.Equal(t, "go test ./...", defs["t1"].AcceptanceCriteria[0].Verification)
}

func TestComputeMetrics(t *testing.T) {
	st := models.NewWorkflowState("/tmp/project", time.Now())
	st.Tasks["t1"] = &models.Task{ID: "t1", Status: models.StatusComplete, Attempts: 1,
		Verification: &models.Verification{
			Verdict:        models.VerdictPass,
			Recommendation: models.RecommendProceed,
			Quality:        map[string]string{"lint": "pass", "style": "fail"},
			Tests:          map[string]string{"unit": "pass"},
		}}
	st.Tasks["t2"] = &models.Task{ID: "t2", Status: models.StatusComplete, Attempts: 3}
	st.Tasks["t3"] = &models.Task{ID: "t3", Status: models.StatusFailed, Attempts: 1}
	st.Tasks["t4"] = &models.Task{ID: "t4", Status: models.StatusBlocked}
	require.NoError(t, LogTokens(st, "sess-1", 600, 400, 0.05))

	m := ComputeMetrics(st)
	assert.Equal(t, 4, m.TotalTasks)
	assert.Equal(t, 2, m.Completed)
	assert.Equal(t, 1, m.Failed)
	assert.Equal(t, 1, m.Blocked)
	assert.InDelta(t, 2.0/3.0, m.SuccessRate, 1e-9)
	assert.InDelta(t, 0.5, m.FirstAttemptRate, 1e-9)
	assert.InDelta(t, 5.0/3.0, m.AvgAttempts, 1e-9)
	assert.Equal(t, 1000, m.TotalTokens)
	assert.InDelta(t, 500, m.TokensPerTask, 1e-9)
	assert.InDelta(t, 0.5, m.QualityPassRate, 1e-9)
	assert.InDelta(t, 1.0, m.TestPassRate, 1e-9)
	assert.InDelta(t, 1.0, m.CalibrationScore, 1e-9)
}

func TestLogTokensRejectsNegative(t *testing.T) {
	st := models.NewWorkflowState("/tmp/project", time.Now())
	assert.Error(t, LogTokens(st, "s", -1, 0, 0))
}
