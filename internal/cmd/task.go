package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/harrison/foreman/internal/history"
	"github.com/harrison/foreman/internal/models"
	"github.com/harrison/foreman/internal/verify"
	"github.com/harrison/foreman/internal/workflow"
)

var (
	completeCreated  []string
	completeModified []string

	startFiles []string

	failCategory    string
	failSubcategory string
	failRetryable   bool

	skipReason string
)

// NewTaskCommand creates the task command with subcommands
func NewTaskCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "task",
		Short: "Drive a single task through its lifecycle",
	}
	cmd.AddCommand(newTaskStartCmd())
	cmd.AddCommand(newTaskCompleteCmd())
	cmd.AddCommand(newTaskFailCmd())
	cmd.AddCommand(newTaskRetryCmd())
	cmd.AddCommand(newTaskSkipCmd())
	return cmd
}

func newTaskStartCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "start <task-id>",
		Short: "Start a pending task whose dependencies are satisfied",
		Long: `Move a pending task to running. With --files, the listed files are
checksummed first so a rollback can later be verified against their
pre-execution content.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			err := newStore().Update(func(st *models.WorkflowState) error {
				if len(startFiles) > 0 {
					if err := verify.CaptureRollback(st, args[0], targetDir, startFiles); err != nil {
						return err
					}
				}
				return workflow.StartTask(st, args[0])
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Started %s\n", args[0])
			return nil
		},
	}
	cmd.Flags().StringSliceVar(&startFiles, "files", nil, "Files to snapshot for rollback verification")
	return cmd
}

func newTaskCompleteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "complete <task-id>",
		Short: "Mark a running task complete",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store := newStore()
			err := store.Update(func(st *models.WorkflowState) error {
				if err := workflow.CompleteTask(st, args[0], completeCreated, completeModified); err != nil {
					return err
				}
				recordHistory(cmd, st, args[0])
				return nil
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Completed %s\n", args[0])
			return nil
		},
	}
	cmd.Flags().StringSliceVar(&completeCreated, "created", nil, "Files the task created")
	cmd.Flags().StringSliceVar(&completeModified, "modified", nil, "Files the task modified")
	return cmd
}

func newTaskFailCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fail <task-id> <message>",
		Short: "Record a classified task failure",
		Long: `Mark a task failed with a classified reason. Every pending task that
depends on it moves to blocked, naming this task as the cause. Unrecognized
categories coerce to "other".`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			store := newStore()
			err := store.Update(func(st *models.WorkflowState) error {
				if err := workflow.FailTask(st, args[0], args[1], failCategory, failSubcategory, failRetryable); err != nil {
					return err
				}
				recordHistory(cmd, st, args[0])
				return nil
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Failed %s: %s\n", args[0], args[1])
			return nil
		},
	}
	cmd.Flags().StringVar(&failCategory, "category", "other", "Failure category")
	cmd.Flags().StringVar(&failSubcategory, "subcategory", "", "Failure subcategory")
	cmd.Flags().BoolVar(&failRetryable, "retryable", false, "Whether a retry could succeed")
	return cmd
}

func newTaskRetryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "retry <task-id>",
		Short: "Reset a failed or blocked task to pending",
		Long: `Re-pend a failed or blocked task and release, transitively, every
blocked dependent whose block was caused by a task being re-pended.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			err := newStore().Update(func(st *models.WorkflowState) error {
				return workflow.RetryTask(st, args[0])
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Retried %s\n", args[0])
			return nil
		},
	}
}

func newTaskSkipCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "skip <task-id>",
		Short: "Skip a pending, blocked, or failed task",
		Long: `Mark a task skipped. Skipped counts as satisfied for dependents, so
blocked dependents whose remaining dependencies are all met return to
pending.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			err := newStore().Update(func(st *models.WorkflowState) error {
				return workflow.SkipTask(st, args[0], skipReason)
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Skipped %s\n", args[0])
			return nil
		},
	}
	cmd.Flags().StringVar(&skipReason, "reason", "", "Why the task is being skipped")
	return cmd
}

// recordHistory appends the task's outcome to the cross-run history store
// when enabled. History failures never fail the lifecycle operation.
func recordHistory(cmd *cobra.Command, st *models.WorkflowState, taskID string) {
	cfg, err := loadConfig()
	if err != nil || !cfg.History.Enabled {
		return
	}
	task := st.Task(taskID)
	if task == nil {
		return
	}
	store, err := history.Open(historyDBPath(cfg.History.DBPath))
	if err != nil {
		newLogger(cmd).Warnf("history unavailable: %v", err)
		return
	}
	defer store.Close()
	if err := store.RecordTask(context.Background(), st.TargetDir, task); err != nil {
		newLogger(cmd).Warnf("failed to record history for %s: %v", taskID, err)
	}
}
