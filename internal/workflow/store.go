package workflow

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/harrison/foreman/internal/filelock"
	"github.com/harrison/foreman/internal/models"
)

// PlanningDirName is the control directory foreman keeps inside the target
// project.
const PlanningDirName = ".foreman"

// Store persists the workflow state document for one target project. Every
// mutation is a load-whole-document, mutate, save-whole-document cycle; the
// save is an atomic rename under an advisory lock.
type Store struct {
	targetDir string
}

// NewStore returns the store rooted at targetDir.
func NewStore(targetDir string) *Store {
	return &Store{targetDir: targetDir}
}

// TargetDir returns the project directory this store manages.
func (s *Store) TargetDir() string { return s.targetDir }

// Dir returns the planning directory path.
func (s *Store) Dir() string { return filepath.Join(s.targetDir, PlanningDirName) }

// StatePath returns the path of the state document.
func (s *Store) StatePath() string { return filepath.Join(s.Dir(), "state.json") }

// SpecInputPath returns where the ingested spec text is expected.
func (s *Store) SpecInputPath() string { return filepath.Join(s.Dir(), "spec.md") }

// TasksDir returns the directory holding task definition files.
func (s *Store) TasksDir() string { return filepath.Join(s.Dir(), "tasks") }

// ResultsDir returns the directory where workers drop result records.
func (s *Store) ResultsDir() string { return filepath.Join(s.Dir(), "results") }

// CheckpointPath returns the path of the active batch checkpoint.
func (s *Store) CheckpointPath() string { return filepath.Join(s.Dir(), "checkpoint.json") }

// HaltSignalPath returns the external halt marker file path.
func (s *Store) HaltSignalPath() string { return filepath.Join(s.Dir(), "HALT") }

// Exists reports whether the state document is present.
func (s *Store) Exists() bool {
	_, err := os.Stat(s.StatePath())
	return err == nil
}

// Init creates the planning directory and the initial state document.
// Fails if a state document already exists.
func (s *Store) Init() (*models.WorkflowState, error) {
	if s.Exists() {
		return nil, fmt.Errorf("state already initialized at %s", s.StatePath())
	}
	for _, dir := range []string{s.Dir(), s.TasksDir(), s.ResultsDir()} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}
	st := models.NewWorkflowState(s.targetDir, time.Now())
	if err := s.Save(st); err != nil {
		return nil, err
	}
	return st, nil
}

// Load reads and decodes the state document.
func (s *Store) Load() (*models.WorkflowState, error) {
	data, err := os.ReadFile(s.StatePath())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("no state found at %s (run init first)", s.StatePath())
		}
		return nil, fmt.Errorf("failed to read state: %w", err)
	}
	var st models.WorkflowState
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, fmt.Errorf("malformed state document %s: %w", s.StatePath(), err)
	}
	if st.Version != models.StateVersion {
		return nil, fmt.Errorf("unsupported state version %q (want %s)", st.Version, models.StateVersion)
	}
	if st.Tasks == nil {
		st.Tasks = make(map[string]*models.Task)
	}
	st.ComputeBlocks()
	return &st, nil
}

// Save writes the whole document atomically, refreshing updated_at.
func (s *Store) Save(st *models.WorkflowState) error {
	st.UpdatedAt = time.Now().UTC().Format(time.RFC3339Nano)
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode state: %w", err)
	}
	return filelock.WithLock(s.StatePath(), func() error {
		return filelock.AtomicWrite(s.StatePath(), data)
	})
}

// Update runs fn over a freshly loaded state and saves the result, all under
// the document lock. fn returning an error aborts without writing.
func (s *Store) Update(fn func(*models.WorkflowState) error) error {
	lock := filelock.ForFile(s.StatePath())
	if err := lock.Acquire(); err != nil {
		return err
	}
	defer lock.Release()

	st, err := s.Load()
	if err != nil {
		return err
	}
	if err := fn(st); err != nil {
		return err
	}
	st.UpdatedAt = time.Now().UTC().Format(time.RFC3339Nano)
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode state: %w", err)
	}
	return filelock.AtomicWrite(s.StatePath(), data)
}
