package verify

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/harrison/foreman/internal/checksum"
	"github.com/harrison/foreman/internal/models"
	"github.com/harrison/foreman/internal/workflow"
)

// CaptureRollback snapshots the pre-execution content of the files a task is
// about to touch. A file that does not exist yet snapshots with an empty
// checksum and existed=false, so verification can demand its absence after
// rollback.
func CaptureRollback(st *models.WorkflowState, taskID string, targetDir string, files []string) error {
	task := st.Task(taskID)
	if task == nil {
		return fmt.Errorf("%w: %s", workflow.ErrTaskNotFound, taskID)
	}

	data := &models.RollbackData{
		Checksums:  make(map[string]string, len(files)),
		Existed:    make(map[string]bool, len(files)),
		CapturedAt: time.Now().UTC().Format(time.RFC3339Nano),
	}
	for _, rel := range files {
		full := filepath.Join(targetDir, rel)
		sum, err := checksum.File(full)
		if err != nil {
			return fmt.Errorf("failed to snapshot %s: %w", rel, err)
		}
		data.Checksums[rel] = sum
		data.Existed[rel] = sum != "" || fileExists(full)
	}
	task.Rollback = data
	st.AddEvent("rollback_captured", taskID, map[string]any{"files": len(files)})
	return nil
}

// VerifyRollback checks that a rollback restored the target tree to its
// pre-execution snapshot. Issues are reported per file, never aggregated
// into one opaque error. ok is true only when no issue was found.
func VerifyRollback(st *models.WorkflowState, taskID string, targetDir string) (ok bool, issues []string, err error) {
	task := st.Task(taskID)
	if task == nil {
		return false, nil, fmt.Errorf("%w: %s", workflow.ErrTaskNotFound, taskID)
	}
	if task.Rollback == nil {
		return false, nil, fmt.Errorf("task %s has no rollback snapshot", taskID)
	}
	snap := task.Rollback

	// Files the task created must be gone.
	for _, rel := range task.FilesCreated {
		if fileExists(filepath.Join(targetDir, rel)) {
			issues = append(issues, fmt.Sprintf("created file not deleted: %s", rel))
		}
	}

	// Files the task modified must match their snapshot.
	for _, rel := range task.FilesModified {
		full := filepath.Join(targetDir, rel)
		original, snapshotted := snap.Checksums[rel]
		if !snapshotted || original == "" {
			if fileExists(full) {
				issues = append(issues, fmt.Sprintf("file should not exist after rollback: %s", rel))
			}
			continue
		}
		current, cerr := checksum.File(full)
		if cerr != nil {
			return false, nil, fmt.Errorf("failed to hash %s: %w", rel, cerr)
		}
		if current == "" {
			issues = append(issues, fmt.Sprintf("file missing after rollback: %s", rel))
			continue
		}
		if current != original {
			issues = append(issues, fmt.Sprintf(
				"file not restored to original: %s (expected %s..., got %s...)",
				rel, original[:8], current[:8]))
		}
	}

	st.AddEvent("rollback_verified", taskID, map[string]any{
		"ok":     len(issues) == 0,
		"issues": len(issues),
	})
	return len(issues) == 0, issues, nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
