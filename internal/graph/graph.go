// Package graph builds the task dependency graph and answers the scheduling
// questions asked of it: is the graph acyclic, which tasks are ready to
// dispatch, and why nothing is ready when the run stalls.
package graph

import (
	"fmt"
	"sort"

	"github.com/harrison/foreman/internal/models"
)

// Graph is a directed dependency graph over the task set. Edges point from a
// prerequisite to the tasks that depend on it.
type Graph struct {
	Tasks    map[string]*models.Task
	Edges    map[string][]string
	InDegree map[string]int
}

// Build constructs the graph from the state's task map. Edges referencing
// unknown tasks are dropped; the dependency-existence gate reports them.
func Build(tasks map[string]*models.Task) *Graph {
	g := &Graph{
		Tasks:    make(map[string]*models.Task, len(tasks)),
		Edges:    make(map[string][]string),
		InDegree: make(map[string]int, len(tasks)),
	}
	for id, task := range tasks {
		g.Tasks[id] = task
		g.InDegree[id] = 0
	}
	for id, task := range tasks {
		for _, dep := range task.DependsOn {
			if _, exists := g.Tasks[dep]; !exists {
				continue
			}
			g.Edges[dep] = append(g.Edges[dep], id)
			g.InDegree[id]++
		}
	}
	for dep := range g.Edges {
		sort.Strings(g.Edges[dep])
	}
	return g
}

// ValidateDependencies reports every dependency edge that names a task
// missing from the set, sorted by task ID.
func ValidateDependencies(tasks map[string]*models.Task) []string {
	var issues []string
	for _, id := range sortedIDs(tasks) {
		for _, dep := range tasks[id].DependsOn {
			if _, exists := tasks[dep]; !exists {
				issues = append(issues, fmt.Sprintf("task %s depends on unknown task %s", id, dep))
			}
		}
	}
	return issues
}

// DetectCycles finds dependency cycles with a depth-first walk carrying a
// recursion stack. Visit order is sorted by task ID so the same graph always
// reports the same cycle. Each cycle is the path suffix from the first
// revisited node, with that node repeated at the end.
func (g *Graph) DetectCycles() [][]string {
	const (
		white = iota // unvisited
		gray         // on the recursion stack
		black        // fully explored
	)

	colors := make(map[string]int, len(g.Tasks))
	var cycles [][]string
	var path []string

	var dfs func(node string)
	dfs = func(node string) {
		colors[node] = gray
		path = append(path, node)

		for _, next := range g.neighbors(node) {
			switch colors[next] {
			case gray:
				for i, id := range path {
					if id == next {
						cycle := append(append([]string(nil), path[i:]...), next)
						cycles = append(cycles, cycle)
						break
					}
				}
			case white:
				dfs(next)
			}
		}

		path = path[:len(path)-1]
		colors[node] = black
	}

	for _, id := range sortedIDs(g.Tasks) {
		if colors[id] == white {
			dfs(id)
		}
	}
	return cycles
}

// neighbors returns dependents in deterministic order, including
// self-references, which Build records like any other edge.
func (g *Graph) neighbors(node string) []string {
	return g.Edges[node]
}

// ReadySet returns the IDs of tasks eligible to start: pending, with every
// dependency complete or skipped. When checkVerification is set, a
// dependency verified with a BLOCK recommendation disqualifies its
// dependents even though it completed. Result is sorted by task ID.
func (g *Graph) ReadySet(checkVerification bool) []string {
	var ready []string
	for _, id := range sortedIDs(g.Tasks) {
		task := g.Tasks[id]
		if task.Status != models.StatusPending {
			continue
		}
		if g.depsSatisfied(task, checkVerification) {
			ready = append(ready, id)
		}
	}
	return ready
}

func (g *Graph) depsSatisfied(task *models.Task, checkVerification bool) bool {
	for _, dep := range task.DependsOn {
		parent, exists := g.Tasks[dep]
		if !exists {
			return false
		}
		if !parent.Status.Satisfied() {
			return false
		}
		if checkVerification && parent.Verification != nil &&
			parent.Verification.Recommendation == models.RecommendBlock {
			return false
		}
	}
	return true
}

// Stall describes why no task is ready even though pending tasks remain.
type Stall struct {
	Stalled bool
	Reason  string
	Cycles  [][]string
	Pending []string
}

// DiagnoseStall explains an empty ready set. Pending tasks with no cycle
// means every pending task waits on a failed, blocked, or running
// dependency; with a cycle, the cycle itself is the cause.
func (g *Graph) DiagnoseStall() Stall {
	var pending []string
	for _, id := range sortedIDs(g.Tasks) {
		if g.Tasks[id].Status == models.StatusPending {
			pending = append(pending, id)
		}
	}
	if len(pending) == 0 {
		return Stall{}
	}
	if len(g.ReadySet(false)) > 0 {
		return Stall{}
	}
	if cycles := g.DetectCycles(); len(cycles) > 0 {
		return Stall{
			Stalled: true,
			Reason:  "dependency cycle prevents progress",
			Cycles:  cycles,
			Pending: pending,
		}
	}
	return Stall{
		Stalled: true,
		Reason:  "pending tasks wait on failed or blocked dependencies",
		Pending: pending,
	}
}

// Depth returns the length of the longest dependency chain in the graph,
// in tasks. An acyclic graph of independent tasks has depth 1; an empty
// graph has depth 0. Returns an error when a cycle makes depth undefined.
func (g *Graph) Depth() (int, error) {
	if len(g.Tasks) == 0 {
		return 0, nil
	}
	if cycles := g.DetectCycles(); len(cycles) > 0 {
		return 0, fmt.Errorf("cannot compute depth: graph has %d cycle(s)", len(cycles))
	}

	memo := make(map[string]int, len(g.Tasks))
	var chain func(id string) int
	chain = func(id string) int {
		if d, ok := memo[id]; ok {
			return d
		}
		best := 0
		for _, dep := range g.Tasks[id].DependsOn {
			if _, exists := g.Tasks[dep]; !exists {
				continue
			}
			if d := chain(dep); d > best {
				best = d
			}
		}
		memo[id] = best + 1
		return best + 1
	}

	max := 0
	for id := range g.Tasks {
		if d := chain(id); d > max {
			max = d
		}
	}
	return max, nil
}

func sortedIDs(tasks map[string]*models.Task) []string {
	ids := make([]string, 0, len(tasks))
	for id := range tasks {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
