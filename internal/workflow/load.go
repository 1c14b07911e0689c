package workflow

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/harrison/foreman/internal/models"
)

// LoadTasks bulk-loads every task definition file (*.json) under dir into
// the state, replacing the previous task set. Files are processed in name
// order; any malformed file aborts the load before the state is touched.
func LoadTasks(st *models.WorkflowState, dir string) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, fmt.Errorf("failed to read tasks directory %s: %w", dir, err)
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".json" {
			continue
		}
		files = append(files, e.Name())
	}
	sort.Strings(files)

	loaded := make(map[string]*models.Task, len(files))
	for _, name := range files {
		path := filepath.Join(dir, name)
		data, err := os.ReadFile(path)
		if err != nil {
			return 0, fmt.Errorf("failed to read task file %s: %w", path, err)
		}
		var def models.TaskDefinition
		if err := json.Unmarshal(data, &def); err != nil {
			return 0, fmt.Errorf("malformed task file %s: %w", path, err)
		}
		if err := def.Validate(); err != nil {
			return 0, fmt.Errorf("invalid task file %s: %w", path, err)
		}
		if _, dup := loaded[def.ID]; dup {
			return 0, fmt.Errorf("duplicate task id %s in %s", def.ID, path)
		}
		loaded[def.ID] = def.NewTask(name)
	}

	st.Tasks = loaded
	st.ComputeBlocks()
	st.Execution.ActiveTasks = []string{}
	st.Execution.CompletedCount = 0
	st.Execution.FailedCount = 0
	st.AddEvent("tasks_loaded", "", map[string]any{"count": len(loaded)})
	return len(loaded), nil
}

// LoadDefinitions parses the task definition files under dir without
// mutating any state. The planning gates read acceptance criteria and
// behaviors from here, since the runtime task record does not carry them.
func LoadDefinitions(dir string) (map[string]*models.TaskDefinition, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read tasks directory %s: %w", dir, err)
	}
	defs := make(map[string]*models.TaskDefinition)
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".json" {
			continue
		}
		path := filepath.Join(dir, e.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read task file %s: %w", path, err)
		}
		var def models.TaskDefinition
		if err := json.Unmarshal(data, &def); err != nil {
			return nil, fmt.Errorf("malformed task file %s: %w", path, err)
		}
		if err := def.Validate(); err != nil {
			return nil, fmt.Errorf("invalid task file %s: %w", path, err)
		}
		defs[def.ID] = &def
	}
	return defs, nil
}

func sortedTaskIDs(st *models.WorkflowState) []string {
	ids := make([]string, 0, len(st.Tasks))
	for id := range st.Tasks {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
