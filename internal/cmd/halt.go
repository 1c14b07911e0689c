package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/harrison/foreman/internal/halt"
	"github.com/harrison/foreman/internal/models"
)

var (
	haltReason     string
	haltActiveTask string
	haltExternal   bool
)

// NewHaltCommand creates the halt command with subcommands
func NewHaltCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "halt",
		Short: "Cooperatively halt and resume the run",
		Long: `Halting stops new dispatches; in-flight work is never cancelled. The
halt can live in the state document or as an external HALT marker file in
the planning directory, which an operator can create without touching the
state. The external signal takes precedence.`,
	}
	cmd.AddCommand(newHaltRequestCmd())
	cmd.AddCommand(newHaltStatusCmd())
	cmd.AddCommand(newHaltResumeCmd())
	return cmd
}

func newHaltRequestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "request",
		Short: "Request a halt",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store := newStore()
			ctl := halt.NewController(halt.NewFileSignal(store.HaltSignalPath()))

			if haltExternal {
				sig := halt.NewFileSignal(store.HaltSignalPath())
				if err := sig.Raise(); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Raised halt signal at %s\n", store.HaltSignalPath())
				return nil
			}

			err := store.Update(func(st *models.WorkflowState) error {
				return ctl.Request(st, haltReason, haltActiveTask)
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Halt requested: %s\n", haltReason)
			return nil
		},
	}
	cmd.Flags().StringVar(&haltReason, "reason", "operator request", "Why the run is halting")
	cmd.Flags().StringVar(&haltActiveTask, "active-task", "", "Task in flight when the halt was requested")
	cmd.Flags().BoolVar(&haltExternal, "signal", false, "Raise the external marker file instead of the in-state flag")
	return cmd
}

func newHaltStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Report whether dispatching must stop",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store := newStore()
			st, err := store.Load()
			if err != nil {
				return err
			}
			ctl := halt.NewController(halt.NewFileSignal(store.HaltSignalPath()))
			status, err := ctl.Check(st)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if !status.Halted {
				fmt.Fprintln(out, "Not halted")
				return nil
			}
			source := "state"
			if status.External {
				source = "signal file"
			}
			fmt.Fprintf(out, "HALTED (%s): %s\n", source, status.Reason)
			return nil
		},
	}
}

func newHaltResumeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "resume",
		Short: "Lift a halt",
		Long: `Clear the halt signal file if present and reset the in-state record.
Fails when no halt is in effect, or when the halt was recorded as
non-resumable and needs manual intervention.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store := newStore()
			ctl := halt.NewController(halt.NewFileSignal(store.HaltSignalPath()))
			err := store.Update(func(st *models.WorkflowState) error {
				return ctl.Resume(st)
			})
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Resumed")
			return nil
		},
	}
}
