package workflow

import (
	"fmt"
	"time"

	"github.com/harrison/foreman/internal/models"
)

// StartTask moves a pending task to running. All dependencies must be
// complete or skipped.
func StartTask(st *models.WorkflowState, id string) error {
	task := st.Task(id)
	if task == nil {
		return fmt.Errorf("%w: %s", ErrTaskNotFound, id)
	}
	if task.Status != models.StatusPending {
		return fmt.Errorf("%w: cannot start task %s in status %s", ErrInvalidTransition, id, task.Status)
	}
	for _, dep := range task.DependsOn {
		parent := st.Task(dep)
		if parent == nil {
			return fmt.Errorf("%w: task %s depends on unknown task %s", ErrDependencyNotMet, id, dep)
		}
		if !parent.Status.Satisfied() {
			return fmt.Errorf("%w: task %s waits on %s (status %s)", ErrDependencyNotMet, id, dep, parent.Status)
		}
	}

	task.Status = models.StatusRunning
	task.Attempts++
	task.StartedAt = time.Now().UTC().Format(time.RFC3339Nano)
	task.CompletedAt = ""
	task.DurationSecs = 0
	st.Execution.ActiveTasks = append(st.Execution.ActiveTasks, id)
	st.AddEvent("task_started", id, map[string]any{"attempt": task.Attempts})
	return nil
}

// CompleteTask moves a running task to complete and records what it touched.
func CompleteTask(st *models.WorkflowState, id string, created, modified []string) error {
	task := st.Task(id)
	if task == nil {
		return fmt.Errorf("%w: %s", ErrTaskNotFound, id)
	}
	if task.Status != models.StatusRunning {
		return fmt.Errorf("%w: cannot complete task %s in status %s", ErrInvalidTransition, id, task.Status)
	}

	now := time.Now().UTC()
	task.Status = models.StatusComplete
	task.CompletedAt = now.Format(time.RFC3339Nano)
	if started, err := time.Parse(time.RFC3339Nano, task.StartedAt); err == nil {
		task.DurationSecs = now.Sub(started).Seconds()
	}
	task.Error = ""
	task.Failure = nil
	if len(created) > 0 {
		task.FilesCreated = created
	}
	if len(modified) > 0 {
		task.FilesModified = modified
	}
	removeActive(st, id)
	st.Execution.CompletedCount++
	st.AddEvent("task_completed", id, map[string]any{"duration_seconds": task.DurationSecs})
	return nil
}

// FailTask records a classified failure and cascades: every pending task
// that depends on id moves to blocked with an error naming this task.
// Administrative failure of a non-running task is allowed; terminal tasks
// are not.
func FailTask(st *models.WorkflowState, id, message, category, subcategory string, retryable bool) error {
	task := st.Task(id)
	if task == nil {
		return fmt.Errorf("%w: %s", ErrTaskNotFound, id)
	}
	if task.Status.Terminal() {
		return fmt.Errorf("%w: cannot fail task %s in status %s", ErrAlreadyFinal, id, task.Status)
	}

	now := time.Now().UTC()
	task.Status = models.StatusFailed
	task.Error = message
	task.Failure = &models.TaskFailure{
		Category:    models.NormalizeCategory(category),
		Subcategory: subcategory,
		Retryable:   retryable,
	}
	task.CompletedAt = now.Format(time.RFC3339Nano)
	if started, err := time.Parse(time.RFC3339Nano, task.StartedAt); err == nil && task.StartedAt != "" {
		task.DurationSecs = now.Sub(started).Seconds()
	}
	removeActive(st, id)
	st.Execution.FailedCount++
	st.AddEvent("task_failed", id, map[string]any{
		"error":     message,
		"category":  string(task.Failure.Category),
		"retryable": retryable,
	})

	blocked := cascadeBlock(st, id)
	if len(blocked) > 0 {
		st.AddEvent("dependents_blocked", id, map[string]any{"blocked": blocked})
	}
	return nil
}

// cascadeBlock moves pending dependents of causeID to blocked and returns
// the IDs it touched.
func cascadeBlock(st *models.WorkflowState, causeID string) []string {
	cause := st.Task(causeID)
	if cause == nil {
		return nil
	}
	var blocked []string
	for _, depID := range cause.Blocks {
		dependent := st.Task(depID)
		if dependent == nil || dependent.Status != models.StatusPending {
			continue
		}
		dependent.Status = models.StatusBlocked
		dependent.Error = models.BlockReason(causeID)
		blocked = append(blocked, depID)
	}
	return blocked
}

// RetryTask resets a failed or blocked task to pending and releases, breadth
// first, every blocked dependent whose block reason cites a task being
// re-pended. A visited set guards against inconsistent blocks edges.
func RetryTask(st *models.WorkflowState, id string) error {
	task := st.Task(id)
	if task == nil {
		return fmt.Errorf("%w: %s", ErrTaskNotFound, id)
	}
	switch task.Status {
	case models.StatusFailed, models.StatusBlocked:
	default:
		return fmt.Errorf("%w: cannot retry task %s in status %s", ErrInvalidTransition, id, task.Status)
	}

	if task.Status == models.StatusFailed && st.Execution.FailedCount > 0 {
		st.Execution.FailedCount--
	}
	resetToPending(task)
	st.AddEvent("task_retried", id, nil)

	visited := map[string]bool{id: true}
	queue := []string{id}
	var released []string
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		curTask := st.Task(cur)
		if curTask == nil {
			continue
		}
		for _, depID := range curTask.Blocks {
			if visited[depID] {
				continue
			}
			dependent := st.Task(depID)
			if dependent == nil || !dependent.BlockedBy(cur) {
				continue
			}
			visited[depID] = true
			resetToPending(dependent)
			released = append(released, depID)
			queue = append(queue, depID)
		}
	}
	if len(released) > 0 {
		st.AddEvent("dependents_released", id, map[string]any{"released": released})
	}
	return nil
}

func resetToPending(task *models.Task) {
	task.Status = models.StatusPending
	task.Error = ""
	task.Failure = nil
	task.SkipReason = ""
	task.StartedAt = ""
	task.CompletedAt = ""
	task.DurationSecs = 0
}

// SkipTask marks a pending, blocked, or failed task as skipped. Skipped
// counts as satisfied for dependents, so each blocked dependent is released
// once all of its dependencies are complete or skipped.
func SkipTask(st *models.WorkflowState, id, reason string) error {
	task := st.Task(id)
	if task == nil {
		return fmt.Errorf("%w: %s", ErrTaskNotFound, id)
	}
	switch task.Status {
	case models.StatusPending, models.StatusBlocked, models.StatusFailed:
	case models.StatusComplete, models.StatusSkipped:
		return fmt.Errorf("%w: cannot skip task %s in status %s", ErrAlreadyFinal, id, task.Status)
	default:
		return fmt.Errorf("%w: cannot skip task %s in status %s", ErrInvalidTransition, id, task.Status)
	}

	if task.Status == models.StatusFailed && st.Execution.FailedCount > 0 {
		st.Execution.FailedCount--
	}
	task.Status = models.StatusSkipped
	task.SkipReason = reason
	task.Error = ""
	task.Failure = nil
	removeActive(st, id)
	st.AddEvent("task_skipped", id, map[string]any{"reason": reason})

	var released []string
	for _, depID := range task.Blocks {
		dependent := st.Task(depID)
		if dependent == nil || dependent.Status != models.StatusBlocked {
			continue
		}
		if allDepsSatisfied(st, dependent) {
			resetToPending(dependent)
			released = append(released, depID)
		}
	}
	if len(released) > 0 {
		st.AddEvent("dependents_released", id, map[string]any{"released": released})
	}
	return nil
}

func allDepsSatisfied(st *models.WorkflowState, task *models.Task) bool {
	for _, dep := range task.DependsOn {
		parent := st.Task(dep)
		if parent == nil || !parent.Status.Satisfied() {
			return false
		}
	}
	return true
}

func removeActive(st *models.WorkflowState, id string) {
	active := st.Execution.ActiveTasks[:0]
	for _, a := range st.Execution.ActiveTasks {
		if a != id {
			active = append(active, a)
		}
	}
	st.Execution.ActiveTasks = active
}
