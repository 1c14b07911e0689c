package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/harrison/foreman/internal/graph"
	"github.com/harrison/foreman/internal/models"
	"github.com/harrison/foreman/internal/workflow"
)

var (
	readyJSON        bool
	readyCheckVerify bool
)

// NewTasksCommand creates the tasks command with subcommands
func NewTasksCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tasks",
		Short: "Manage the task set",
	}
	cmd.AddCommand(newTasksLoadCmd())
	cmd.AddCommand(newTasksReadyCmd())
	cmd.AddCommand(newTasksStallCmd())
	return cmd
}

func newTasksLoadCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "load",
		Short: "Bulk-load task definitions from the tasks directory",
		Long: `Read every *.json file under .foreman/tasks/, validate the definitions,
and replace the state's task set. Any malformed file aborts the load with
the state untouched. Execution counters reset.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store := newStore()
			var count int
			err := store.Update(func(st *models.WorkflowState) error {
				var err error
				count, err = workflow.LoadTasks(st, store.TasksDir())
				return err
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Loaded %d task(s)\n", count)
			return nil
		},
	}
}

func newTasksReadyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ready",
		Short: "List tasks whose dependencies are all satisfied",
		Long: `List pending tasks every dependency of which is complete or skipped,
in deterministic ID order. With --check-verification, a dependency whose
verification recommended BLOCK disqualifies its dependents.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := newStore().Load()
			if err != nil {
				return err
			}
			ready := graph.Build(st.Tasks).ReadySet(readyCheckVerify)

			out := cmd.OutOrStdout()
			if readyJSON {
				return writeJSON(out, map[string]any{"ready": ready})
			}
			if len(ready) == 0 {
				fmt.Fprintln(out, "No tasks ready")
				return nil
			}
			for _, id := range ready {
				fmt.Fprintf(out, "%s  %s\n", id, st.Tasks[id].Name)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&readyJSON, "json", false, "Output in JSON format")
	cmd.Flags().BoolVar(&readyCheckVerify, "check-verification", false, "Treat BLOCK verification recommendations as unsatisfied")
	return cmd
}

func newTasksStallCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stall",
		Short: "Diagnose why no task is ready to run",
		Long: `Check whether the run is stalled: pending tasks exist but none is
dispatchable. Reports dependency cycles or the failed/blocked dependencies
holding the pending set back.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := newStore().Load()
			if err != nil {
				return err
			}
			g := graph.Build(st.Tasks)
			stall := g.DiagnoseStall()

			out := cmd.OutOrStdout()
			if !stall.Stalled {
				fmt.Fprintln(out, "Not stalled")
				return nil
			}
			fmt.Fprintf(out, "STALLED: %s\n", stall.Reason)
			for _, cycle := range stall.Cycles {
				fmt.Fprintf(out, "  cycle: %v\n", cycle)
			}
			for _, id := range stall.Pending {
				fmt.Fprintf(out, "  pending: %s\n", id)
			}
			return fmt.Errorf("run is stalled")
		},
	}
}
