package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/harrison/foreman/internal/checkpoint"
	"github.com/harrison/foreman/internal/workflow"
)

// NewCheckpointCommand creates the checkpoint command with subcommands
func NewCheckpointCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "checkpoint",
		Short: "Snapshot and recover dispatched task batches",
		Long: `A checkpoint records which tasks a dispatcher spawned so a crash can be
reconciled afterward. Recovery cross-references the result files workers
drop under .foreman/results/ and reports orphans; it never retries tasks
on its own.`,
	}
	cmd.AddCommand(newCheckpointCreateCmd())
	cmd.AddCommand(newCheckpointUpdateCmd())
	cmd.AddCommand(newCheckpointCompleteCmd())
	cmd.AddCommand(newCheckpointStatusCmd())
	cmd.AddCommand(newCheckpointRecoverCmd())
	cmd.AddCommand(newCheckpointClearCmd())
	return cmd
}

func newCheckpointManager(store *workflow.Store) (*checkpoint.Manager, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return checkpoint.NewManager(store.CheckpointPath(), store.ResultsDir(), cfg.OrphanTimeout), nil
}

func newCheckpointCreateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "create <task-id>...",
		Short: "Snapshot a newly dispatched batch",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, err := newCheckpointManager(newStore())
			if err != nil {
				return err
			}
			cp, err := mgr.Create(args)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created batch %s with %d task(s)\n",
				cp.BatchID, len(cp.Tasks.Spawned))
			return nil
		},
	}
}

func newCheckpointUpdateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "update <task-id> <success|failed>",
		Short: "Record one task's batch outcome",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, err := newCheckpointManager(newStore())
			if err != nil {
				return err
			}
			cp, err := mgr.Update(args[0], args[1])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Batch %s: %d pending, %d completed, %d failed\n",
				cp.BatchID, len(cp.Tasks.Pending), len(cp.Tasks.Completed), len(cp.Tasks.Failed))
			return nil
		},
	}
}

func newCheckpointCompleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "complete",
		Short: "Mark the batch completed once every task is accounted for",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, err := newCheckpointManager(newStore())
			if err != nil {
				return err
			}
			cp, err := mgr.Complete()
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Completed batch %s\n", cp.BatchID)
			return nil
		},
	}
}

func newCheckpointStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the current batch checkpoint",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, err := newCheckpointManager(newStore())
			if err != nil {
				return err
			}
			cp, err := mgr.Load()
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), cp)
		},
	}
}

func newCheckpointRecoverCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "recover",
		Short: "Reconcile the batch against worker result files",
		Long: `Reclassify pending batch entries from results/<task-id>-result.json
records. A pending task with no result that the state still shows as
running is reported as orphaned; deciding whether to retry it stays with
the operator.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store := newStore()
			mgr, err := newCheckpointManager(store)
			if err != nil {
				return err
			}
			st, err := store.Load()
			if err != nil {
				return err
			}
			report, err := mgr.Recover(st)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Batch %s:\n", report.BatchID)
			fmt.Fprintf(out, "  recovered: %v\n", report.Recovered)
			fmt.Fprintf(out, "  failed:    %v\n", report.Failed)
			fmt.Fprintf(out, "  orphaned:  %v\n", report.Orphaned)
			fmt.Fprintf(out, "  pending:   %v\n", report.StillPending)
			if len(report.Orphaned) > 0 {
				newLogger(cmd).Warnf("%d orphaned task(s) need an explicit retry decision", len(report.Orphaned))
			}
			return nil
		},
	}
}

func newCheckpointClearCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Remove the checkpoint file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, err := newCheckpointManager(newStore())
			if err != nil {
				return err
			}
			if err := mgr.Clear(); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Checkpoint cleared")
			return nil
		},
	}
}
