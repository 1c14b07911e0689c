package models

import (
	"errors"
	"fmt"
	"time"
)

// TaskFailure carries the structured classification attached to a failed task.
type TaskFailure struct {
	Category    FailureCategory `json:"category"`
	Subcategory string          `json:"subcategory,omitempty"`
	Retryable   bool            `json:"retryable"`
}

// RollbackData is the pre-execution snapshot used to verify that a rollback
// restored the target tree. Checksums maps relative paths to the SHA-256 of
// the file content before the task ran; Existed records whether the file was
// present at all (a missing file snapshots as an empty checksum).
type RollbackData struct {
	Checksums  map[string]string `json:"checksums"`
	Existed    map[string]bool   `json:"existed"`
	CapturedAt string            `json:"captured_at,omitempty"`
}

// VerificationCriterion is one scored acceptance criterion from a verifier.
type VerificationCriterion struct {
	Name     string `json:"name"`
	Score    string `json:"score"`
	Evidence string `json:"evidence,omitempty"`
}

// Verification is a verifier's recorded judgement of a completed task.
type Verification struct {
	Verdict        Verdict                 `json:"verdict"`
	Recommendation Recommendation          `json:"recommendation"`
	Criteria       []VerificationCriterion `json:"criteria,omitempty"`
	Quality        map[string]string       `json:"quality,omitempty"`
	Tests          map[string]string       `json:"tests,omitempty"`
	VerifiedAt     string                  `json:"verified_at,omitempty"`
}

// RefactorDirective marks a task that supersedes spec requirements. The
// coverage gate treats superseded requirements as covered and substitutes
// the directive text when building the effective requirement set.
type RefactorDirective struct {
	Supersedes []string `json:"supersedes"`
	Directive  string   `json:"directive,omitempty"`
}

// Task is the runtime record of a single unit of work. Tasks are created by
// bulk load from task definition files and mutated only through workflow
// lifecycle operations; they are never deleted.
type Task struct {
	ID               string             `json:"id"`
	Name             string             `json:"name,omitempty"`
	Status           TaskStatus         `json:"status"`
	Phase            int                `json:"phase"` // 0 = unassigned
	DependsOn        []string           `json:"depends_on,omitempty"`
	Blocks           []string           `json:"blocks,omitempty"` // derived: reverse of depends_on
	File             string             `json:"file,omitempty"`
	SteelThread      bool               `json:"steel_thread,omitempty"`
	SpecRequirements []string           `json:"spec_requirements,omitempty"`
	Refactor         *RefactorDirective `json:"refactor,omitempty"`
	Attempts         int                `json:"attempts,omitempty"`
	StartedAt        string             `json:"started_at,omitempty"`
	CompletedAt      string             `json:"completed_at,omitempty"`
	DurationSecs     float64            `json:"duration_seconds,omitempty"`
	Error            string             `json:"error,omitempty"`
	SkipReason       string             `json:"skip_reason,omitempty"`
	Failure          *TaskFailure       `json:"failure,omitempty"`
	FilesCreated     []string           `json:"files_created,omitempty"`
	FilesModified    []string           `json:"files_modified,omitempty"`
	Rollback         *RollbackData      `json:"rollback,omitempty"`
	Verification     *Verification      `json:"verification,omitempty"`
}

// Validate checks the task's required fields and status.
func (t *Task) Validate() error {
	if t.ID == "" {
		return errors.New("task id is required")
	}
	if !t.Status.Valid() {
		return fmt.Errorf("task %s: invalid status %q", t.ID, t.Status)
	}
	if t.Phase < 0 {
		return fmt.Errorf("task %s: phase must be >= 0, got %d", t.ID, t.Phase)
	}
	return nil
}

// Duration returns the recorded wall-clock duration of the last attempt.
func (t *Task) Duration() time.Duration {
	return time.Duration(t.DurationSecs * float64(time.Second))
}

// BlockedBy reports whether the task's block reason cites causeID. Used by
// retry/skip propagation to release only the dependents this task blocked.
func (t *Task) BlockedBy(causeID string) bool {
	return t.Status == StatusBlocked && t.Error == BlockReason(causeID)
}

// BlockReason builds the canonical error text stored on a task blocked by a
// failed dependency. Propagation matches on this text, so it must stay
// stable across releases.
func BlockReason(causeID string) string {
	return fmt.Sprintf("blocked by failed task %s", causeID)
}

// AcceptanceCriterion is one testable criterion in a task definition file.
type AcceptanceCriterion struct {
	Criterion    string `json:"criterion"`
	Verification string `json:"verification"`
}

// TaskContext carries planning metadata from a task definition file.
type TaskContext struct {
	Domain           string   `json:"domain,omitempty"`
	Capability       string   `json:"capability,omitempty"`
	SteelThread      bool     `json:"steel_thread,omitempty"`
	SpecRequirements []string `json:"spec_requirements,omitempty"`
}

// TaskDependencies groups the dependency declarations of a definition file.
type TaskDependencies struct {
	Tasks []string `json:"tasks,omitempty"`
}

// TaskDefinition is the on-disk shape of one task file under tasks/.
// Definitions are consumed once during bulk load; the runtime Task record is
// the source of truth afterward.
type TaskDefinition struct {
	ID                 string                `json:"id"`
	Name               string                `json:"name"`
	Phase              int                   `json:"phase"`
	Dependencies       TaskDependencies      `json:"dependencies,omitempty"`
	Behaviors          []string              `json:"behaviors,omitempty"`
	AcceptanceCriteria []AcceptanceCriterion `json:"acceptance_criteria,omitempty"`
	Context            TaskContext           `json:"context,omitempty"`
	Refactor           *RefactorDirective    `json:"refactor,omitempty"`
	Description        string                `json:"description,omitempty"`
}

// Validate checks the definition's required fields.
func (d *TaskDefinition) Validate() error {
	if d.ID == "" {
		return errors.New("task definition missing required field 'id'")
	}
	if d.Name == "" {
		return fmt.Errorf("task %s: name is required", d.ID)
	}
	if d.Phase < 0 {
		return fmt.Errorf("task %s: phase must be >= 0", d.ID)
	}
	return nil
}

// NewTask converts a definition into its initial runtime record.
func (d *TaskDefinition) NewTask(file string) *Task {
	return &Task{
		ID:               d.ID,
		Name:             d.Name,
		Status:           StatusPending,
		Phase:            d.Phase,
		DependsOn:        append([]string(nil), d.Dependencies.Tasks...),
		File:             file,
		SteelThread:      d.Context.SteelThread,
		SpecRequirements: append([]string(nil), d.Context.SpecRequirements...),
		Refactor:         d.Refactor,
	}
}
