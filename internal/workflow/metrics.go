package workflow

import (
	"fmt"
	"strings"

	"github.com/harrison/foreman/internal/models"
)

// LogTokens accumulates a session's token and cost totals into the run.
func LogTokens(st *models.WorkflowState, session string, tokensIn, tokensOut int, costUSD float64) error {
	if tokensIn < 0 || tokensOut < 0 || costUSD < 0 {
		return fmt.Errorf("token counts and cost must be >= 0")
	}
	st.Execution.TotalTokens += tokensIn + tokensOut
	st.Execution.TotalCostUSD += costUSD
	st.AddEvent("tokens_logged", "", map[string]any{
		"session":    session,
		"tokens_in":  tokensIn,
		"tokens_out": tokensOut,
		"cost_usd":   costUSD,
	})
	return nil
}

// Metrics summarizes run performance from the state document.
type Metrics struct {
	TotalTasks       int     `json:"total_tasks"`
	Completed        int     `json:"completed"`
	Failed           int     `json:"failed"`
	Skipped          int     `json:"skipped"`
	Blocked          int     `json:"blocked"`
	SuccessRate      float64 `json:"success_rate"`
	FirstAttemptRate float64 `json:"first_attempt_rate"`
	AvgAttempts      float64 `json:"avg_attempts"`
	TotalTokens      int     `json:"total_tokens"`
	TotalCostUSD     float64 `json:"total_cost_usd"`
	TokensPerTask    float64 `json:"tokens_per_task"`
	CostPerTask      float64 `json:"cost_per_task"`
	QualityPassRate  float64 `json:"quality_pass_rate"`
	TestPassRate     float64 `json:"test_pass_rate"`
	CalibrationScore float64 `json:"calibration_score"`
}

// ComputeMetrics derives the run performance summary. Rates over an empty
// denominator report 0 except the calibration score, which defaults to 1.0.
func ComputeMetrics(st *models.WorkflowState) Metrics {
	m := Metrics{
		TotalTasks:       len(st.Tasks),
		TotalTokens:      st.Execution.TotalTokens,
		TotalCostUSD:     st.Execution.TotalCostUSD,
		CalibrationScore: st.Calibration.Score(),
	}

	attempted := 0
	totalAttempts := 0
	firstAttempt := 0
	qualityPass, qualityTotal := 0, 0
	testPass, testTotal := 0, 0

	for _, task := range st.Tasks {
		switch task.Status {
		case models.StatusComplete:
			m.Completed++
			if task.Attempts == 1 {
				firstAttempt++
			}
		case models.StatusFailed:
			m.Failed++
		case models.StatusSkipped:
			m.Skipped++
		case models.StatusBlocked:
			m.Blocked++
		}
		if task.Attempts > 0 {
			attempted++
			totalAttempts += task.Attempts
		}
		if v := task.Verification; v != nil {
			for _, outcome := range v.Quality {
				qualityTotal++
				if passed(outcome) {
					qualityPass++
				}
			}
			for _, outcome := range v.Tests {
				testTotal++
				if passed(outcome) {
					testPass++
				}
			}
		}
	}

	if settled := m.Completed + m.Failed; settled > 0 {
		m.SuccessRate = float64(m.Completed) / float64(settled)
	}
	if m.Completed > 0 {
		m.FirstAttemptRate = float64(firstAttempt) / float64(m.Completed)
		m.TokensPerTask = float64(m.TotalTokens) / float64(m.Completed)
		m.CostPerTask = m.TotalCostUSD / float64(m.Completed)
	}
	if attempted > 0 {
		m.AvgAttempts = float64(totalAttempts) / float64(attempted)
	}
	if qualityTotal > 0 {
		m.QualityPassRate = float64(qualityPass) / float64(qualityTotal)
	}
	if testTotal > 0 {
		m.TestPassRate = float64(testPass) / float64(testTotal)
	}
	return m
}

func passed(outcome string) bool {
	switch strings.ToLower(strings.TrimSpace(outcome)) {
	case "pass", "passed", "ok", "true":
		return true
	}
	return false
}
