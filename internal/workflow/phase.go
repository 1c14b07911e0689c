package workflow

import (
	"fmt"

	"github.com/harrison/foreman/internal/models"
)

// AdvanceChecks supplies the environment-dependent predicates the phase
// machine cannot answer from the state document alone.
type AdvanceChecks struct {
	// SpecInputPath is where the ingested spec text must exist before leaving
	// ingestion.
	SpecInputPath string

	// SpecInputExists reports whether SpecInputPath is present.
	SpecInputExists func() bool

	// RunGates evaluates the planning gates at the definition boundary,
	// returning overall pass and the blocking issues.
	RunGates func(*models.WorkflowState) (bool, []string)
}

// Advance moves the pipeline forward one phase after checking the current
// phase's exit predicate. Phases are never skipped and never revisited.
func Advance(st *models.WorkflowState, checks AdvanceChecks) error {
	current := st.Phase.Current
	if !current.Valid() {
		return fmt.Errorf("unknown phase %q", current)
	}

	switch current {
	case models.PhaseIngestion:
		if checks.SpecInputExists == nil || !checks.SpecInputExists() {
			return fmt.Errorf("cannot advance from ingestion: spec input not found at %s", checks.SpecInputPath)
		}

	case models.PhaseSpecReview:
		review := st.Artifacts.SpecReview
		if review == nil {
			return fmt.Errorf("cannot advance from spec_review: no review recorded")
		}
		if review.CriticalOpen > 0 {
			return fmt.Errorf("cannot advance from spec_review: %d critical weakness(es) still open", review.CriticalOpen)
		}

	case models.PhaseLogical:
		if err := artifactReady(st.Artifacts.CapabilityMap, "capability_map"); err != nil {
			return fmt.Errorf("cannot advance from logical: %w", err)
		}

	case models.PhasePhysical:
		if err := artifactReady(st.Artifacts.PhysicalMap, "physical_map"); err != nil {
			return fmt.Errorf("cannot advance from physical: %w", err)
		}

	case models.PhaseDefinition:
		if len(st.Tasks) == 0 {
			return fmt.Errorf("cannot advance from definition: no tasks defined")
		}
		if checks.RunGates == nil {
			return fmt.Errorf("cannot advance from definition: planning gates not available")
		}
		passed, issues := checks.RunGates(st)
		if !passed {
			return fmt.Errorf("cannot advance from definition: %d gate issue(s): %v", len(issues), issues)
		}

	case models.PhaseValidation:
		tv := st.Artifacts.TaskValidation
		if tv == nil {
			return fmt.Errorf("cannot advance from validation: no task-plan verdict recorded")
		}
		if !tv.Verdict.Passing() {
			return fmt.Errorf("cannot advance from validation: plan verdict is %s", tv.Verdict)
		}

	case models.PhaseSequencing:
		for _, id := range sortedTaskIDs(st) {
			if st.Tasks[id].Phase <= 0 {
				return fmt.Errorf("cannot advance from sequencing: task %s has no phase assigned", id)
			}
		}

	case models.PhaseReady:
		// Entering execution needs no further evidence.

	case models.PhaseExecuting:
		for _, id := range sortedTaskIDs(st) {
			task := st.Tasks[id]
			if task.Status.Satisfied() || task.Status == models.StatusBlocked {
				continue
			}
			return fmt.Errorf("cannot advance from executing: task %s is %s", id, task.Status)
		}

	case models.PhaseComplete:
		return fmt.Errorf("%w: pipeline is complete", ErrAlreadyFinal)
	}

	next, ok := current.Next()
	if !ok {
		return fmt.Errorf("%w: no phase after %s", ErrAlreadyFinal, current)
	}
	st.Phase.Completed = append(st.Phase.Completed, current)
	st.Phase.Current = next
	st.Execution.CurrentPhase = next.Index()
	st.AddEvent("phase_advanced", "", map[string]any{
		"from": string(current),
		"to":   string(next),
	})
	return nil
}

func artifactReady(a *models.Artifact, name string) error {
	if a == nil {
		return fmt.Errorf("%s not registered", name)
	}
	if !a.Valid {
		msg := "schema validation failed"
		if a.Error != nil {
			msg = *a.Error
		}
		return fmt.Errorf("%s is invalid: %s", name, msg)
	}
	return nil
}
