package models

import "fmt"

// TaskStatus is the lifecycle state of a single task.
// pending -> running -> {complete, failed}; failed cascades dependents to
// blocked; failed/blocked can be retried back to pending; pending/blocked/
// failed can be skipped. complete and skipped are terminal.
type TaskStatus string

const (
	StatusPending  TaskStatus = "pending"
	StatusRunning  TaskStatus = "running"
	StatusComplete TaskStatus = "complete"
	StatusFailed   TaskStatus = "failed"
	StatusBlocked  TaskStatus = "blocked"
	StatusSkipped  TaskStatus = "skipped"
)

// Valid reports whether s is a recognized task status.
func (s TaskStatus) Valid() bool {
	switch s {
	case StatusPending, StatusRunning, StatusComplete, StatusFailed, StatusBlocked, StatusSkipped:
		return true
	}
	return false
}

// Terminal reports whether the status can never change again.
// failed and blocked are recoverable via retry/skip, so they are not terminal.
func (s TaskStatus) Terminal() bool {
	switch s {
	case StatusComplete, StatusSkipped:
		return true
	case StatusPending, StatusRunning, StatusFailed, StatusBlocked:
		return false
	}
	return false
}

// Satisfied reports whether a dependency in this status counts as met
// for scheduling purposes.
func (s TaskStatus) Satisfied() bool {
	switch s {
	case StatusComplete, StatusSkipped:
		return true
	case StatusPending, StatusRunning, StatusFailed, StatusBlocked:
		return false
	}
	return false
}

// PhaseName identifies a pipeline phase.
type PhaseName string

const (
	PhaseIngestion  PhaseName = "ingestion"
	PhaseSpecReview PhaseName = "spec_review"
	PhaseLogical    PhaseName = "logical"
	PhasePhysical   PhaseName = "physical"
	PhaseDefinition PhaseName = "definition"
	PhaseValidation PhaseName = "validation"
	PhaseSequencing PhaseName = "sequencing"
	PhaseReady      PhaseName = "ready"
	PhaseExecuting  PhaseName = "executing"
	PhaseComplete   PhaseName = "complete"
)

// PhaseOrder is the canonical pipeline order. Phases advance one step at a
// time and never move backward.
var PhaseOrder = []PhaseName{
	PhaseIngestion,
	PhaseSpecReview,
	PhaseLogical,
	PhasePhysical,
	PhaseDefinition,
	PhaseValidation,
	PhaseSequencing,
	PhaseReady,
	PhaseExecuting,
	PhaseComplete,
}

// Index returns the position of p in the canonical order, or -1 if p is not
// a recognized phase.
func (p PhaseName) Index() int {
	for i, name := range PhaseOrder {
		if name == p {
			return i
		}
	}
	return -1
}

// Next returns the phase following p. ok is false when p is the final phase
// or not a recognized phase.
func (p PhaseName) Next() (next PhaseName, ok bool) {
	idx := p.Index()
	if idx < 0 || idx >= len(PhaseOrder)-1 {
		return "", false
	}
	return PhaseOrder[idx+1], true
}

// Valid reports whether p is a recognized phase name.
func (p PhaseName) Valid() bool {
	return p.Index() >= 0
}

// FailureCategory classifies why a task failed. The set is closed; inputs
// outside it are coerced to CategoryOther rather than rejected.
type FailureCategory string

const (
	CategoryDependency     FailureCategory = "dependency"
	CategoryImplementation FailureCategory = "implementation"
	CategoryVerification   FailureCategory = "verification"
	CategoryEnvironment    FailureCategory = "environment"
	CategoryScope          FailureCategory = "scope"
	CategoryOther          FailureCategory = "other"
)

// NormalizeCategory maps an arbitrary category string onto the closed set.
func NormalizeCategory(raw string) FailureCategory {
	switch FailureCategory(raw) {
	case CategoryDependency, CategoryImplementation, CategoryVerification, CategoryEnvironment, CategoryScope, CategoryOther:
		return FailureCategory(raw)
	}
	return CategoryOther
}

// Verdict is a verifier's judgement of a completed task.
type Verdict string

const (
	VerdictPass        Verdict = "PASS"
	VerdictFail        Verdict = "FAIL"
	VerdictConditional Verdict = "CONDITIONAL"
)

// ParseVerdict validates a verdict string.
func ParseVerdict(raw string) (Verdict, error) {
	switch Verdict(raw) {
	case VerdictPass, VerdictFail, VerdictConditional:
		return Verdict(raw), nil
	}
	return "", fmt.Errorf("invalid verdict %q: must be PASS, FAIL, or CONDITIONAL", raw)
}

// Recommendation is a verifier's dispatch recommendation for dependents.
type Recommendation string

const (
	RecommendProceed Recommendation = "PROCEED"
	RecommendBlock   Recommendation = "BLOCK"
)

// ParseRecommendation validates a recommendation string.
func ParseRecommendation(raw string) (Recommendation, error) {
	switch Recommendation(raw) {
	case RecommendProceed, RecommendBlock:
		return Recommendation(raw), nil
	}
	return "", fmt.Errorf("invalid recommendation %q: must be PROCEED or BLOCK", raw)
}

// PlanVerdict is the external task-plan verifier's judgement of the whole
// task set, registered at the validation phase.
type PlanVerdict string

const (
	PlanReady          PlanVerdict = "READY"
	PlanReadyWithNotes PlanVerdict = "READY_WITH_NOTES"
	PlanBlocked        PlanVerdict = "BLOCKED"
)

// ParsePlanVerdict validates a plan verdict string.
func ParsePlanVerdict(raw string) (PlanVerdict, error) {
	switch PlanVerdict(raw) {
	case PlanReady, PlanReadyWithNotes, PlanBlocked:
		return PlanVerdict(raw), nil
	}
	return "", fmt.Errorf("invalid plan verdict %q: must be READY, READY_WITH_NOTES, or BLOCKED", raw)
}

// Passing reports whether the verdict allows the pipeline to proceed.
func (v PlanVerdict) Passing() bool {
	switch v {
	case PlanReady, PlanReadyWithNotes:
		return true
	case PlanBlocked:
		return false
	}
	return false
}

// CalibrationOutcome records how a verification verdict compared to the
// task's eventual real outcome.
type CalibrationOutcome string

const (
	OutcomeCorrect       CalibrationOutcome = "correct"
	OutcomeFalsePositive CalibrationOutcome = "false_positive"
	OutcomeFalseNegative CalibrationOutcome = "false_negative"
)

// ParseCalibrationOutcome validates a calibration outcome string.
func ParseCalibrationOutcome(raw string) (CalibrationOutcome, error) {
	switch CalibrationOutcome(raw) {
	case OutcomeCorrect, OutcomeFalsePositive, OutcomeFalseNegative:
		return CalibrationOutcome(raw), nil
	}
	return "", fmt.Errorf("invalid calibration outcome %q: must be correct, false_positive, or false_negative", raw)
}
