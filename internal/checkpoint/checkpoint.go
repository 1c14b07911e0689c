// Package checkpoint snapshots dispatched task batches so a crashed or
// interrupted dispatcher can reconcile what actually happened. Recovery
// cross-references externally produced result records and never retries on
// its own.
package checkpoint

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/harrison/foreman/internal/filelock"
	"github.com/harrison/foreman/internal/models"
)

// Batch statuses.
const (
	StatusActive    = "active"
	StatusCompleted = "completed"
)

// Tasks partitions a batch's task IDs by observed outcome.
type Tasks struct {
	Spawned   []string `json:"spawned"`
	Pending   []string `json:"pending"`
	Completed []string `json:"completed"`
	Failed    []string `json:"failed"`
}

// Checkpoint is the on-disk snapshot of one dispatched batch.
type Checkpoint struct {
	BatchID       string  `json:"batch_id"`
	SpawnedAt     string  `json:"spawned_at"`
	Status        string  `json:"status"`
	Tasks         Tasks   `json:"tasks"`
	LastHeartbeat string  `json:"last_heartbeat"`
	OrphanTimeout float64 `json:"orphan_timeout_seconds"`
}

// ResultRecord is the file a worker drops under results/ when it finishes.
type ResultRecord struct {
	TaskID string `json:"task_id"`
	Status string `json:"status"` // success or failed
	Error  string `json:"error,omitempty"`
}

// Manager owns the checkpoint file and the results directory for one
// target project.
type Manager struct {
	path          string
	resultsDir    string
	orphanTimeout time.Duration
}

// NewManager returns a manager for the checkpoint at path, reading worker
// results from resultsDir.
func NewManager(path, resultsDir string, orphanTimeout time.Duration) *Manager {
	return &Manager{path: path, resultsDir: resultsDir, orphanTimeout: orphanTimeout}
}

// Create snapshots a newly dispatched batch as active, all IDs pending.
// Fails while a previous batch is still active.
func (m *Manager) Create(taskIDs []string) (*Checkpoint, error) {
	if len(taskIDs) == 0 {
		return nil, fmt.Errorf("checkpoint requires at least one task")
	}
	if existing, err := m.Load(); err == nil && existing.Status == StatusActive {
		return nil, fmt.Errorf("batch %s is still active; recover or clear it first", existing.BatchID)
	}

	now := time.Now().UTC().Format(time.RFC3339Nano)
	ids := append([]string(nil), taskIDs...)
	sort.Strings(ids)
	cp := &Checkpoint{
		BatchID:       uuid.New().String(),
		SpawnedAt:     now,
		Status:        StatusActive,
		LastHeartbeat: now,
		OrphanTimeout: m.orphanTimeout.Seconds(),
		Tasks: Tasks{
			Spawned: ids,
			Pending: append([]string(nil), ids...),
		},
	}
	if err := m.save(cp); err != nil {
		return nil, err
	}
	return cp, nil
}

// Load reads the current checkpoint.
func (m *Manager) Load() (*Checkpoint, error) {
	data, err := os.ReadFile(m.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("no checkpoint at %s", m.path)
		}
		return nil, fmt.Errorf("failed to read checkpoint: %w", err)
	}
	var cp Checkpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		return nil, fmt.Errorf("malformed checkpoint %s: %w", m.path, err)
	}
	return &cp, nil
}

// Update moves taskID out of pending into completed or failed and refreshes
// the heartbeat. status must be "success" or "failed".
func (m *Manager) Update(taskID, status string) (*Checkpoint, error) {
	cp, err := m.Load()
	if err != nil {
		return nil, err
	}
	if !remove(&cp.Tasks.Pending, taskID) {
		return nil, fmt.Errorf("task %s is not pending in batch %s", taskID, cp.BatchID)
	}
	switch status {
	case "success":
		cp.Tasks.Completed = append(cp.Tasks.Completed, taskID)
	case "failed":
		cp.Tasks.Failed = append(cp.Tasks.Failed, taskID)
	default:
		return nil, fmt.Errorf("unknown result status %q: must be success or failed", status)
	}
	cp.LastHeartbeat = time.Now().UTC().Format(time.RFC3339Nano)
	if err := m.save(cp); err != nil {
		return nil, err
	}
	return cp, nil
}

// Complete marks the batch completed. All spawned tasks must be accounted
// for first.
func (m *Manager) Complete() (*Checkpoint, error) {
	cp, err := m.Load()
	if err != nil {
		return nil, err
	}
	if len(cp.Tasks.Pending) > 0 {
		return nil, fmt.Errorf("batch %s still has %d pending task(s): %v",
			cp.BatchID, len(cp.Tasks.Pending), cp.Tasks.Pending)
	}
	cp.Status = StatusCompleted
	cp.LastHeartbeat = time.Now().UTC().Format(time.RFC3339Nano)
	if err := m.save(cp); err != nil {
		return nil, err
	}
	return cp, nil
}

// Clear removes the checkpoint file. Clearing a missing file is a no-op.
func (m *Manager) Clear() error {
	err := os.Remove(m.path)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to clear checkpoint: %w", err)
	}
	return nil
}

// Report is the outcome of a recovery pass.
type Report struct {
	BatchID      string   `json:"batch_id"`
	Recovered    []string `json:"recovered,omitempty"`
	Failed       []string `json:"failed,omitempty"`
	Orphaned     []string `json:"orphaned,omitempty"`
	StillPending []string `json:"still_pending,omitempty"`
}

// Recover reconciles pending batch entries against result records. A pending
// ID with a result is reclassified; one with no result whose task is still
// marked running in the state is reported as orphaned, requiring an explicit
// retry decision. Nothing is retried automatically.
func (m *Manager) Recover(st *models.WorkflowState) (*Report, error) {
	cp, err := m.Load()
	if err != nil {
		return nil, err
	}
	report := &Report{BatchID: cp.BatchID}

	var stillPending []string
	for _, taskID := range cp.Tasks.Pending {
		result, err := m.readResult(taskID)
		if err != nil {
			return nil, err
		}
		if result != nil {
			switch result.Status {
			case "success":
				cp.Tasks.Completed = append(cp.Tasks.Completed, taskID)
				report.Recovered = append(report.Recovered, taskID)
			default:
				cp.Tasks.Failed = append(cp.Tasks.Failed, taskID)
				report.Failed = append(report.Failed, taskID)
			}
			continue
		}
		stillPending = append(stillPending, taskID)
		if task := st.Task(taskID); task != nil && task.Status == models.StatusRunning {
			report.Orphaned = append(report.Orphaned, taskID)
		}
	}
	cp.Tasks.Pending = stillPending
	report.StillPending = stillPending
	cp.LastHeartbeat = time.Now().UTC().Format(time.RFC3339Nano)
	if err := m.save(cp); err != nil {
		return nil, err
	}
	return report, nil
}

// readResult loads results/<id>-result.json, or nil when absent.
func (m *Manager) readResult(taskID string) (*ResultRecord, error) {
	path := filepath.Join(m.resultsDir, taskID+"-result.json")
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read result %s: %w", path, err)
	}
	var rec ResultRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("malformed result %s: %w", path, err)
	}
	return &rec, nil
}

func (m *Manager) save(cp *Checkpoint) error {
	data, err := json.MarshalIndent(cp, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode checkpoint: %w", err)
	}
	return filelock.AtomicWrite(m.path, data)
}

func remove(list *[]string, item string) bool {
	for i, v := range *list {
		if v == item {
			*list = append((*list)[:i], (*list)[i+1:]...)
			return true
		}
	}
	return false
}
