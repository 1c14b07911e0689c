package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/harrison/foreman/internal/models"
	"github.com/harrison/foreman/internal/workflow"
)

// NewArtifactCommand creates the artifact command with subcommands
func NewArtifactCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "artifact",
		Short: "Manage planning artifacts",
	}
	cmd.AddCommand(newArtifactRegisterCmd())
	return cmd
}

func newArtifactRegisterCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "register <kind> <path>",
		Short: "Register and schema-validate a planning artifact",
		Long: `Read the artifact at <path>, checksum it, validate it against the
schema for <kind> (capability_map or physical_map), and record the result.
A schema failure still registers the artifact, marked invalid; the phase
machine refuses to advance past an invalid artifact.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := workflow.ParseArtifactKind(args[0])
			if err != nil {
				return err
			}

			var artifact *models.Artifact
			err = newStore().Update(func(st *models.WorkflowState) error {
				artifact, err = workflow.RegisterArtifact(st, kind, args[1])
				return err
			})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if artifact.Valid {
				fmt.Fprintf(out, "Registered %s: %s (checksum %s...)\n", kind, args[1], artifact.Checksum[:8])
			} else {
				fmt.Fprintf(out, "Registered %s as INVALID: %s\n", kind, *artifact.Error)
			}
			return nil
		},
	}
}

var (
	reviewTotal        int
	reviewCriticalOpen int
)

// NewReviewCommand creates the review command with subcommands
func NewReviewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "review",
		Short: "Record the spec weakness review",
	}

	record := &cobra.Command{
		Use:   "record",
		Short: "Record spec review counts",
		Long: `Register the spec weakness review summary. The pipeline cannot leave
the spec_review phase while any critical weakness remains open.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			err := newStore().Update(func(st *models.WorkflowState) error {
				return workflow.RecordSpecReview(st, reviewTotal, reviewCriticalOpen)
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Recorded spec review: %d weakness(es), %d critical open\n",
				reviewTotal, reviewCriticalOpen)
			return nil
		},
	}
	record.Flags().IntVar(&reviewTotal, "total", 0, "Total weaknesses found")
	record.Flags().IntVar(&reviewCriticalOpen, "critical-open", 0, "Critical weaknesses still open")

	cmd.AddCommand(record)
	return cmd
}

var validateSummary string
var validateIssues []string

// NewValidateCommand creates the validate command with subcommands
func NewValidateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Record external validation verdicts",
	}

	tasks := &cobra.Command{
		Use:   "tasks <verdict>",
		Short: "Record the task-plan verifier's verdict",
		Long: `Register the external task-plan verdict: READY, READY_WITH_NOTES, or
BLOCKED. Only a passing verdict lets the pipeline leave the validation phase.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			verdict, err := models.ParsePlanVerdict(args[0])
			if err != nil {
				return err
			}
			err = newStore().Update(func(st *models.WorkflowState) error {
				workflow.RecordPlanValidation(st, verdict, validateSummary, validateIssues)
				return nil
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Recorded task-plan verdict: %s\n", verdict)
			return nil
		},
	}
	tasks.Flags().StringVar(&validateSummary, "summary", "", "One-line summary of the validation")
	tasks.Flags().StringArrayVar(&validateIssues, "issue", nil, "Issue found (repeatable)")

	cmd.AddCommand(tasks)
	return cmd
}
