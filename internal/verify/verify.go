// Package verify tracks verification verdicts on completed tasks, the
// calibration ledger that scores the verifier's accuracy over time, and
// rollback integrity checks.
package verify

import (
	"fmt"
	"time"

	"github.com/harrison/foreman/internal/models"
	"github.com/harrison/foreman/internal/workflow"
)

// RecordVerification attaches a verifier's judgement to a task. A BLOCK
// recommendation moves every still-pending dependent to blocked.
func RecordVerification(st *models.WorkflowState, taskID string, v models.Verification) error {
	task := st.Task(taskID)
	if task == nil {
		return fmt.Errorf("%w: %s", workflow.ErrTaskNotFound, taskID)
	}
	if _, err := models.ParseVerdict(string(v.Verdict)); err != nil {
		return err
	}
	if _, err := models.ParseRecommendation(string(v.Recommendation)); err != nil {
		return err
	}

	v.VerifiedAt = time.Now().UTC().Format(time.RFC3339Nano)
	task.Verification = &v
	st.AddEvent("verification_recorded", taskID, map[string]any{
		"verdict":        string(v.Verdict),
		"recommendation": string(v.Recommendation),
	})

	if v.Recommendation != models.RecommendBlock {
		return nil
	}
	var blocked []string
	for _, depID := range task.Blocks {
		dependent := st.Task(depID)
		if dependent == nil || dependent.Status != models.StatusPending {
			continue
		}
		dependent.Status = models.StatusBlocked
		dependent.Error = fmt.Sprintf("blocked by verification of task %s", taskID)
		blocked = append(blocked, depID)
	}
	if len(blocked) > 0 {
		st.AddEvent("dependents_blocked", taskID, map[string]any{
			"blocked": blocked,
			"cause":   "verification_block",
		})
	}
	return nil
}

// RecordCalibration appends a hindsight judgement of a task's verification
// to the ledger. The task must already carry a verification. false_positive
// means the verifier recommended PROCEED but the task ultimately failed;
// false_negative means it recommended BLOCK but the task would have
// succeeded.
func RecordCalibration(st *models.WorkflowState, taskID string, outcome models.CalibrationOutcome, notes string) error {
	task := st.Task(taskID)
	if task == nil {
		return fmt.Errorf("%w: %s", workflow.ErrTaskNotFound, taskID)
	}
	if task.Verification == nil {
		return fmt.Errorf("task %s has no verification to calibrate", taskID)
	}
	if _, err := models.ParseCalibrationOutcome(string(outcome)); err != nil {
		return err
	}

	if st.Calibration == nil {
		st.Calibration = &models.CalibrationLedger{}
	}
	ledger := st.Calibration
	ledger.TotalVerified++
	switch outcome {
	case models.OutcomeCorrect:
		ledger.Correct++
	case models.OutcomeFalsePositive:
		ledger.FalsePositives = append(ledger.FalsePositives, taskID)
	case models.OutcomeFalseNegative:
		ledger.FalseNegatives = append(ledger.FalseNegatives, taskID)
	}
	ledger.History = append(ledger.History, models.CalibrationEntry{
		TaskID:         taskID,
		Verdict:        task.Verification.Verdict,
		Recommendation: task.Verification.Recommendation,
		ActualOutcome:  outcome,
		Notes:          notes,
		Timestamp:      time.Now().UTC().Format(time.RFC3339Nano),
	})
	st.AddEvent("calibration_recorded", taskID, map[string]any{"outcome": string(outcome)})
	return nil
}

// CalibrationReport summarizes the verifier's accuracy.
type CalibrationReport struct {
	TotalVerified  int      `json:"total_verified"`
	Correct        int      `json:"correct"`
	Score          float64  `json:"score"`
	FalsePositives []string `json:"false_positives,omitempty"`
	FalseNegatives []string `json:"false_negatives,omitempty"`
}

// Report builds the calibration summary. With no data the score is 1.0.
func Report(st *models.WorkflowState) CalibrationReport {
	rep := CalibrationReport{Score: 1.0}
	if st.Calibration == nil {
		return rep
	}
	ledger := st.Calibration
	rep.TotalVerified = ledger.TotalVerified
	rep.Correct = ledger.Correct
	rep.Score = ledger.Score()
	rep.FalsePositives = ledger.FalsePositives
	rep.FalseNegatives = ledger.FalseNegatives
	return rep
}
