package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/harrison/foreman/internal/models"
	"github.com/harrison/foreman/internal/verify"
)

var (
	verifyVerdict        string
	verifyRecommendation string
	verifyCriteriaJSON   string
	verifyQualityJSON    string
	verifyTestsJSON      string

	calibrationNotes string
	calibrationJSON  bool
)

// NewVerifyCommand creates the verify command with subcommands
func NewVerifyCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Record verification verdicts on tasks",
	}

	record := &cobra.Command{
		Use:   "record <task-id>",
		Short: "Attach a verifier's judgement to a task",
		Long: `Record a verification verdict (PASS, FAIL, CONDITIONAL) and dispatch
recommendation (PROCEED, BLOCK). A BLOCK recommendation moves every
still-pending dependent to blocked.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			v := models.Verification{
				Verdict:        models.Verdict(verifyVerdict),
				Recommendation: models.Recommendation(verifyRecommendation),
			}
			if verifyCriteriaJSON != "" {
				if err := json.Unmarshal([]byte(verifyCriteriaJSON), &v.Criteria); err != nil {
					return fmt.Errorf("invalid --criteria JSON: %w", err)
				}
			}
			if verifyQualityJSON != "" {
				if err := json.Unmarshal([]byte(verifyQualityJSON), &v.Quality); err != nil {
					return fmt.Errorf("invalid --quality JSON: %w", err)
				}
			}
			if verifyTestsJSON != "" {
				if err := json.Unmarshal([]byte(verifyTestsJSON), &v.Tests); err != nil {
					return fmt.Errorf("invalid --tests JSON: %w", err)
				}
			}

			err := newStore().Update(func(st *models.WorkflowState) error {
				return verify.RecordVerification(st, args[0], v)
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Recorded verification for %s: %s/%s\n",
				args[0], verifyVerdict, verifyRecommendation)
			return nil
		},
	}
	record.Flags().StringVar(&verifyVerdict, "verdict", "", "PASS, FAIL, or CONDITIONAL")
	record.Flags().StringVar(&verifyRecommendation, "recommendation", "", "PROCEED or BLOCK")
	record.Flags().StringVar(&verifyCriteriaJSON, "criteria", "", "Scored criteria as a JSON array")
	record.Flags().StringVar(&verifyQualityJSON, "quality", "", "Quality check outcomes as a JSON object")
	record.Flags().StringVar(&verifyTestsJSON, "tests", "", "Test outcomes as a JSON object")

	cmd.AddCommand(record)
	return cmd
}

// NewCalibrationCommand creates the calibration command with subcommands
func NewCalibrationCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "calibration",
		Short: "Track verifier accuracy over time",
	}

	record := &cobra.Command{
		Use:   "record <task-id> <outcome>",
		Short: "Record how a verification verdict held up in hindsight",
		Long: `Append a hindsight judgement of a task's verification to the ledger.
Outcome is correct, false_positive (PROCEED but the task failed), or
false_negative (BLOCK but the task would have succeeded).`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			err := newStore().Update(func(st *models.WorkflowState) error {
				return verify.RecordCalibration(st, args[0], models.CalibrationOutcome(args[1]), calibrationNotes)
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Recorded calibration for %s: %s\n", args[0], args[1])
			return nil
		},
	}
	record.Flags().StringVar(&calibrationNotes, "notes", "", "Context for the judgement")

	report := &cobra.Command{
		Use:   "report",
		Short: "Summarize verifier accuracy",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := newStore().Load()
			if err != nil {
				return err
			}
			rep := verify.Report(st)

			out := cmd.OutOrStdout()
			if calibrationJSON {
				return writeJSON(out, rep)
			}
			fmt.Fprintf(out, "Calibration score: %.2f (%d of %d correct)\n",
				rep.Score, rep.Correct, rep.TotalVerified)
			if len(rep.FalsePositives) > 0 {
				fmt.Fprintf(out, "False positives: %v\n", rep.FalsePositives)
			}
			if len(rep.FalseNegatives) > 0 {
				fmt.Fprintf(out, "False negatives: %v\n", rep.FalseNegatives)
			}
			return nil
		},
	}
	report.Flags().BoolVar(&calibrationJSON, "json", false, "Output in JSON format")

	cmd.AddCommand(record)
	cmd.AddCommand(report)
	return cmd
}

var rollbackFiles []string

// NewRollbackCommand creates the rollback command with subcommands
func NewRollbackCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rollback",
		Short: "Capture and verify rollback snapshots",
	}

	capture := &cobra.Command{
		Use:   "capture <task-id>",
		Short: "Snapshot file content before a task runs",
		Long: `Checksum the files a task is about to touch so a later rollback can be
verified. Paths are relative to the target directory; a file that does not
exist yet snapshots as absent.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			err := newStore().Update(func(st *models.WorkflowState) error {
				return verify.CaptureRollback(st, args[0], targetDir, rollbackFiles)
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Captured rollback snapshot for %s (%d file(s))\n",
				args[0], len(rollbackFiles))
			return nil
		},
	}
	capture.Flags().StringSliceVar(&rollbackFiles, "files", nil, "Files to snapshot, relative to the target dir")

	verifyCmd := &cobra.Command{
		Use:   "verify <task-id>",
		Short: "Check that a rollback restored the pre-execution tree",
		Long: `Compare the target tree against the task's rollback snapshot: created
files must be gone, modified files must match their original checksums.
Issues are reported per file. Exit code is 1 when any check fails.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store := newStore()
			var ok bool
			var issues []string
			err := store.Update(func(st *models.WorkflowState) error {
				var verr error
				ok, issues, verr = verify.VerifyRollback(st, args[0], targetDir)
				return verr
			})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if ok {
				fmt.Fprintf(out, "Rollback verified for %s\n", args[0])
				return nil
			}
			fmt.Fprintf(out, "Rollback verification failed for %s:\n", args[0])
			for _, issue := range issues {
				fmt.Fprintf(out, "  ✗ %s\n", issue)
			}
			return fmt.Errorf("rollback left %d inconsistency(ies)", len(issues))
		},
	}

	cmd.AddCommand(capture)
	cmd.AddCommand(verifyCmd)
	return cmd
}
