package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harrison/foreman/internal/models"
)

func taskSet(defs map[string][]string) map[string]*models.Task {
	tasks := make(map[string]*models.Task, len(defs))
	for id, deps := range defs {
		tasks[id] = &models.Task{ID: id, Status: models.StatusPending, DependsOn: deps}
	}
	return tasks
}

func TestBuildEdges(t *testing.T) {
	tasks := taskSet(map[string][]string{
		"t1": nil,
		"t2": {"t1"},
		"t3": {"t1", "t2"},
	})
	g := Build(tasks)

	assert.Equal(t, []string{"t2", "t3"}, g.Edges["t1"])
	assert.Equal(t, []string{"t3"}, g.Edges["t2"])
	assert.Equal(t, 0, g.InDegree["t1"])
	assert.Equal(t, 2, g.InDegree["t3"])
}

func TestBuildIgnoresUnknownDeps(t *testing.T) {
	tasks := taskSet(map[string][]string{
		"t1": {"ghost"},
	})
	g := Build(tasks)
	assert.Equal(t, 0, g.InDegree["t1"])

	issues := ValidateDependencies(tasks)
	require.Len(t, issues, 1)
	assert.Contains(t, issues[0], "ghost")
}

func TestDetectCyclesAcyclic(t *testing.T) {
	g := Build(taskSet(map[string][]string{
		"t1": nil,
		"t2": {"t1"},
		"t3": {"t2"},
	}))
	assert.Empty(t, g.DetectCycles())
}

func TestDetectCyclesReportsLoop(t *testing.T) {
	g := Build(taskSet(map[string][]string{
		"a": {"c"},
		"b": {"a"},
		"c": {"b"},
	}))
	cycles := g.DetectCycles()
	require.Len(t, cycles, 1)

	cycle := cycles[0]
	require.GreaterOrEqual(t, len(cycle), 4)
	assert.Equal(t, cycle[0], cycle[len(cycle)-1])

	seen := make(map[string]bool)
	for _, id := range cycle[:len(cycle)-1] {
		seen[id] = true
	}
	assert.Equal(t, map[string]bool{"a": true, "b": true, "c": true}, seen)
}

func TestDetectCyclesSelfReference(t *testing.T) {
	g := Build(taskSet(map[string][]string{
		"loop": {"loop"},
	}))
	cycles := g.DetectCycles()
	require.Len(t, cycles, 1)
	assert.Equal(t, []string{"loop", "loop"}, cycles[0])
}

func TestDetectCyclesDeterministic(t *testing.T) {
	defs := map[string][]string{
		"x": {"y"},
		"y": {"x"},
		"z": nil,
	}
	first := Build(taskSet(defs)).DetectCycles()
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, Build(taskSet(defs)).DetectCycles())
	}
}

func TestReadySetDependencyStates(t *testing.T) {
	tasks := taskSet(map[string][]string{
		"t1": nil,
		"t2": {"t1"},
		"t3": {"t1"},
		"t4": {"t2"},
	})
	tasks["t1"].Status = models.StatusComplete
	g := Build(tasks)

	assert.Equal(t, []string{"t2", "t3"}, g.ReadySet(false))

	tasks["t2"].Status = models.StatusSkipped
	assert.Equal(t, []string{"t3", "t4"}, Build(tasks).ReadySet(false))
}

func TestReadySetBlockRecommendation(t *testing.T) {
	tasks := taskSet(map[string][]string{
		"t1": nil,
		"t2": {"t1"},
	})
	tasks["t1"].Status = models.StatusComplete
	tasks["t1"].Verification = &models.Verification{
		Verdict:        models.VerdictConditional,
		Recommendation: models.RecommendBlock,
	}
	g := Build(tasks)

	assert.Empty(t, g.ReadySet(true))
	assert.Equal(t, []string{"t2"}, g.ReadySet(false))
}

func TestThreeTaskScenario(t *testing.T) {
	tasks := taskSet(map[string][]string{
		"t1": nil,
		"t2": {"t1"},
		"t3": {"t1"},
	})
	g := Build(tasks)
	assert.Equal(t, []string{"t1"}, g.ReadySet(false))

	tasks["t1"].Status = models.StatusComplete
	assert.Equal(t, []string{"t2", "t3"}, Build(tasks).ReadySet(false))

	tasks["t2"].Status = models.StatusFailed
	assert.Equal(t, []string{"t3"}, Build(tasks).ReadySet(false))
}

func TestDiagnoseStallExternalDependency(t *testing.T) {
	tasks := taskSet(map[string][]string{
		"t1": nil,
		"t2": {"t1"},
	})
	tasks["t1"].Status = models.StatusFailed
	g := Build(tasks)

	stall := g.DiagnoseStall()
	require.True(t, stall.Stalled)
	assert.Empty(t, stall.Cycles)
	assert.Equal(t, []string{"t2"}, stall.Pending)
	assert.Contains(t, stall.Reason, "failed or blocked")
}

func TestDiagnoseStallCycle(t *testing.T) {
	g := Build(taskSet(map[string][]string{
		"a": {"b"},
		"b": {"a"},
	}))
	stall := g.DiagnoseStall()
	require.True(t, stall.Stalled)
	assert.NotEmpty(t, stall.Cycles)
}

func TestDiagnoseStallNotStalled(t *testing.T) {
	g := Build(taskSet(map[string][]string{
		"t1": nil,
	}))
	assert.False(t, g.DiagnoseStall().Stalled)
}

func TestDepth(t *testing.T) {
	g := Build(taskSet(map[string][]string{
		"t1": nil,
		"t2": {"t1"},
		"t3": {"t2"},
		"t4": nil,
	}))
	depth, err := g.Depth()
	require.NoError(t, err)
	assert.Equal(t, 3, depth)

	empty := Build(nil)
	depth, err = empty.Depth()
	require.NoError(t, err)
	assert.Equal(t, 0, depth)

	cyclic := Build(taskSet(map[string][]string{"a": {"a"}}))
	_, err = cyclic.Depth()
	assert.Error(t, err)
}
