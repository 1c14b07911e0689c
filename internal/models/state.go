package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// StateVersion is the state document format version this build reads and
// writes. Documents with other versions are rejected on load.
const StateVersion = "2.0"

// PhaseState tracks pipeline position. Completed is always a strict prefix
// of PhaseOrder and never contains Current.
type PhaseState struct {
	Current   PhaseName   `json:"current"`
	Completed []PhaseName `json:"completed"`
}

// Artifact is a registered, schema-validated planning artifact.
type Artifact struct {
	Path        string  `json:"path,omitempty"`
	Checksum    string  `json:"checksum,omitempty"`
	Valid       bool    `json:"valid"`
	Error       *string `json:"error,omitempty"`
	ValidatedAt string  `json:"validated_at,omitempty"`
}

// TaskValidation is the external task-plan verifier's registered verdict.
type TaskValidation struct {
	Verdict     PlanVerdict `json:"verdict"`
	Valid       bool        `json:"valid"`
	Summary     string      `json:"summary,omitempty"`
	Issues      []string    `json:"issues,omitempty"`
	ValidatedAt string      `json:"validated_at,omitempty"`
}

// SpecReview summarizes the spec weakness review. CriticalOpen gates the
// spec_review phase: advancement requires it to be zero.
type SpecReview struct {
	Total        int    `json:"total"`
	CriticalOpen int    `json:"critical_open"`
	ReviewedAt   string `json:"reviewed_at,omitempty"`
}

// Artifacts holds everything registered against the state document by
// validation operations. Only registration operations write here.
type Artifacts struct {
	CapabilityMap     *Artifact       `json:"capability_map,omitempty"`
	PhysicalMap       *Artifact       `json:"physical_map,omitempty"`
	SpecReview        *SpecReview     `json:"spec_review,omitempty"`
	TaskValidation    *TaskValidation `json:"task_validation,omitempty"`
	ValidationResults json.RawMessage `json:"validation_results,omitempty"`
}

// Execution aggregates run-wide counters.
type Execution struct {
	CurrentPhase   int      `json:"current_phase"`
	ActiveTasks    []string `json:"active_tasks"`
	CompletedCount int      `json:"completed_count"`
	FailedCount    int      `json:"failed_count"`
	TotalTokens    int      `json:"total_tokens"`
	TotalCostUSD   float64  `json:"total_cost_usd"`
}

// Event is one entry in the append-only audit log.
type Event struct {
	ID        string         `json:"id,omitempty"`
	Timestamp string         `json:"timestamp"`
	Type      string         `json:"type"`
	TaskID    string         `json:"task_id,omitempty"`
	Details   map[string]any `json:"details,omitempty"`
}

// HaltRecord is the in-state half of the cooperative halt protocol. The
// external signal file takes precedence over Requested when checking.
type HaltRecord struct {
	Requested   bool   `json:"requested"`
	RequestedAt string `json:"requested_at,omitempty"`
	Reason      string `json:"reason,omitempty"`
	ActiveTask  string `json:"active_task,omitempty"`
	HaltedAt    string `json:"halted_at,omitempty"`
	Resumable   bool   `json:"resumable"`
}

// CalibrationEntry is one hindsight judgement of a verification verdict.
type CalibrationEntry struct {
	TaskID         string             `json:"task_id"`
	Verdict        Verdict            `json:"verdict"`
	Recommendation Recommendation     `json:"recommendation"`
	ActualOutcome  CalibrationOutcome `json:"actual_outcome"`
	Notes          string             `json:"notes,omitempty"`
	Timestamp      string             `json:"timestamp"`
}

// CalibrationLedger accumulates verifier accuracy over time.
type CalibrationLedger struct {
	TotalVerified  int                `json:"total_verified"`
	Correct        int                `json:"correct"`
	FalsePositives []string           `json:"false_positives,omitempty"`
	FalseNegatives []string           `json:"false_negatives,omitempty"`
	History        []CalibrationEntry `json:"history,omitempty"`
}

// Score returns correct/total_verified, or 1.0 when nothing has been
// verified yet (optimistic prior, never a divide-by-zero).
func (l *CalibrationLedger) Score() float64 {
	if l == nil || l.TotalVerified == 0 {
		return 1.0
	}
	return float64(l.Correct) / float64(l.TotalVerified)
}

// WorkflowState is the root aggregate: one JSON document per target project,
// loaded and saved wholesale on every mutation. Unknown top-level keys from
// newer writers are preserved across a load/save round trip.
type WorkflowState struct {
	Version     string             `json:"version"`
	Phase       PhaseState         `json:"phase"`
	TargetDir   string             `json:"target_dir"`
	CreatedAt   string             `json:"created_at"`
	UpdatedAt   string             `json:"updated_at,omitempty"`
	Artifacts   Artifacts          `json:"artifacts"`
	Tasks       map[string]*Task   `json:"tasks"`
	Execution   Execution          `json:"execution"`
	Halt        *HaltRecord        `json:"halt,omitempty"`
	Calibration *CalibrationLedger `json:"calibration,omitempty"`
	Events      []Event            `json:"events,omitempty"`

	extra map[string]json.RawMessage
}

// knownStateKeys lists every top-level key this build owns; anything else in
// a loaded document is carried in extra and written back untouched.
var knownStateKeys = []string{
	"version", "phase", "target_dir", "created_at", "updated_at",
	"artifacts", "tasks", "execution", "halt", "calibration", "events",
}

// workflowStateAlias breaks marshal recursion while sharing the field tags.
type workflowStateAlias WorkflowState

// UnmarshalJSON decodes the document and stashes unrecognized top-level keys
// for forward-compatible rewrite.
func (s *WorkflowState) UnmarshalJSON(data []byte) error {
	var a workflowStateAlias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	for _, key := range knownStateKeys {
		delete(raw, key)
	}
	*s = WorkflowState(a)
	if len(raw) > 0 {
		s.extra = raw
	}
	return nil
}

// MarshalJSON re-emits preserved unknown keys alongside the known fields.
func (s WorkflowState) MarshalJSON() ([]byte, error) {
	data, err := json.Marshal(workflowStateAlias(s))
	if err != nil {
		return nil, err
	}
	if len(s.extra) == 0 {
		return data, nil
	}
	var merged map[string]json.RawMessage
	if err := json.Unmarshal(data, &merged); err != nil {
		return nil, err
	}
	for key, val := range s.extra {
		if _, owned := merged[key]; !owned {
			merged[key] = val
		}
	}
	return json.Marshal(merged)
}

// NewWorkflowState builds the initial document for a target project.
func NewWorkflowState(targetDir string, now time.Time) *WorkflowState {
	ts := now.UTC().Format(time.RFC3339Nano)
	st := &WorkflowState{
		Version:   StateVersion,
		Phase:     PhaseState{Current: PhaseIngestion, Completed: []PhaseName{}},
		TargetDir: targetDir,
		CreatedAt: ts,
		UpdatedAt: ts,
		Tasks:     make(map[string]*Task),
		Execution: Execution{ActiveTasks: []string{}},
	}
	st.AddEvent("initialized", "", map[string]any{"target_dir": targetDir})
	return st
}

// AddEvent appends an entry to the audit log. Events are never removed.
func (s *WorkflowState) AddEvent(eventType, taskID string, details map[string]any) {
	s.Events = append(s.Events, Event{
		ID:        uuid.New().String(),
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		Type:      eventType,
		TaskID:    taskID,
		Details:   details,
	})
}

// Task returns the task record for id, or nil if it does not exist.
func (s *WorkflowState) Task(id string) *Task {
	if s.Tasks == nil {
		return nil
	}
	return s.Tasks[id]
}

// ComputeBlocks rebuilds the derived reverse-dependency edges from scratch.
// Called after bulk task load so propagation can walk dep -> dependents.
func (s *WorkflowState) ComputeBlocks() {
	for _, task := range s.Tasks {
		task.Blocks = nil
	}
	for id, task := range s.Tasks {
		for _, dep := range task.DependsOn {
			if parent, ok := s.Tasks[dep]; ok {
				parent.Blocks = append(parent.Blocks, id)
			}
		}
	}
}

// CountByStatus tallies tasks per lifecycle state.
func (s *WorkflowState) CountByStatus() map[TaskStatus]int {
	counts := make(map[TaskStatus]int)
	for _, task := range s.Tasks {
		counts[task.Status]++
	}
	return counts
}
