package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/harrison/foreman/internal/history"
	"github.com/harrison/foreman/internal/models"
	"github.com/harrison/foreman/internal/workflow"
)

var (
	tokensSession string
	tokensIn      int
	tokensOut     int
	tokensCost    float64

	metricsJSON bool
)

// NewTokensCommand creates the tokens command with subcommands
func NewTokensCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tokens",
		Short: "Track token and cost spend",
	}

	logCmd := &cobra.Command{
		Use:   "log",
		Short: "Accumulate a session's token and cost totals",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			err := newStore().Update(func(st *models.WorkflowState) error {
				return workflow.LogTokens(st, tokensSession, tokensIn, tokensOut, tokensCost)
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Logged %d tokens ($%.4f)\n", tokensIn+tokensOut, tokensCost)
			return nil
		},
	}
	logCmd.Flags().StringVar(&tokensSession, "session", "", "Session identifier")
	logCmd.Flags().IntVar(&tokensIn, "in", 0, "Input tokens")
	logCmd.Flags().IntVar(&tokensOut, "out", 0, "Output tokens")
	logCmd.Flags().Float64Var(&tokensCost, "cost", 0, "Cost in USD")

	cmd.AddCommand(logCmd)
	return cmd
}

// NewMetricsCommand creates the metrics subcommand
func NewMetricsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "metrics",
		Short: "Summarize run performance",
		Long: `Derive success rate, first-attempt rate, token economics, verification
pass rates, and the calibration score from the state document. When the
history store is enabled, cross-run failure rates by category are included.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := newStore().Load()
			if err != nil {
				return err
			}
			m := workflow.ComputeMetrics(st)

			failureRates := historyFailureRates(cmd, st.TargetDir)

			out := cmd.OutOrStdout()
			if metricsJSON {
				return writeJSON(out, struct {
					workflow.Metrics
					FailureRates map[string]int `json:"failure_rates,omitempty"`
				}{m, failureRates})
			}

			fmt.Fprintf(out, "Tasks: %d total, %d complete, %d failed, %d skipped, %d blocked\n",
				m.TotalTasks, m.Completed, m.Failed, m.Skipped, m.Blocked)
			fmt.Fprintf(out, "Success rate:       %.0f%%\n", m.SuccessRate*100)
			fmt.Fprintf(out, "First-attempt rate: %.0f%%\n", m.FirstAttemptRate*100)
			fmt.Fprintf(out, "Avg attempts:       %.2f\n", m.AvgAttempts)
			if m.TotalTokens > 0 {
				fmt.Fprintf(out, "Tokens: %d total, %.0f per completed task ($%.2f, $%.4f/task)\n",
					m.TotalTokens, m.TokensPerTask, m.TotalCostUSD, m.CostPerTask)
			}
			fmt.Fprintf(out, "Quality pass rate:  %.0f%%\n", m.QualityPassRate*100)
			fmt.Fprintf(out, "Test pass rate:     %.0f%%\n", m.TestPassRate*100)
			fmt.Fprintf(out, "Calibration score:  %.2f\n", m.CalibrationScore)
			if len(failureRates) > 0 {
				fmt.Fprintln(out, "Cross-run failures by category:")
				for category, count := range failureRates {
					fmt.Fprintf(out, "  %-15s %d\n", category, count)
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&metricsJSON, "json", false, "Output in JSON format")
	return cmd
}

// historyFailureRates pulls cross-run failure counts when the history store
// is enabled; any failure degrades to no history rather than failing the
// metrics command.
func historyFailureRates(cmd *cobra.Command, target string) map[string]int {
	cfg, err := loadConfig()
	if err != nil || !cfg.History.Enabled {
		return nil
	}
	store, err := history.Open(historyDBPath(cfg.History.DBPath))
	if err != nil {
		newLogger(cmd).Debugf("history unavailable: %v", err)
		return nil
	}
	defer store.Close()
	rates, err := store.FailureRates(context.Background(), target)
	if err != nil {
		newLogger(cmd).Debugf("failed to query history: %v", err)
		return nil
	}
	return rates
}
