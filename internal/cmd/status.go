package cmd

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/harrison/foreman/internal/halt"
	"github.com/harrison/foreman/internal/models"
)

var statusJSON bool

// statusReport is the JSON shape of the status command output.
type statusReport struct {
	Phase           models.PhaseName          `json:"phase"`
	PhasesCompleted []models.PhaseName        `json:"phases_completed"`
	TargetDir       string                    `json:"target_dir"`
	Tasks           map[models.TaskStatus]int `json:"tasks"`
	ActiveTasks     []string                  `json:"active_tasks,omitempty"`
	SteelThread     int                       `json:"steel_thread_tasks,omitempty"`
	Halted          bool                      `json:"halted"`
	HaltReason      string                    `json:"halt_reason,omitempty"`
	TotalTokens     int                       `json:"total_tokens"`
	TotalCostUSD    float64                   `json:"total_cost_usd"`
}

// NewStatusCommand creates the status subcommand
func NewStatusCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the current phase, task counts, and halt state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store := newStore()
			st, err := store.Load()
			if err != nil {
				return err
			}

			ctl := halt.NewController(halt.NewFileSignal(store.HaltSignalPath()))
			haltStatus, err := ctl.Check(st)
			if err != nil {
				return err
			}

			report := statusReport{
				Phase:           st.Phase.Current,
				PhasesCompleted: st.Phase.Completed,
				TargetDir:       st.TargetDir,
				Tasks:           st.CountByStatus(),
				ActiveTasks:     st.Execution.ActiveTasks,
				Halted:          haltStatus.Halted,
				HaltReason:      haltStatus.Reason,
				TotalTokens:     st.Execution.TotalTokens,
				TotalCostUSD:    st.Execution.TotalCostUSD,
			}
			for _, task := range st.Tasks {
				if task.SteelThread {
					report.SteelThread++
				}
			}

			out := cmd.OutOrStdout()
			if statusJSON {
				return writeJSON(out, report)
			}

			fmt.Fprintf(out, "Phase: %s (%d of %d)\n",
				report.Phase, report.Phase.Index()+1, len(models.PhaseOrder))
			if report.Halted {
				fmt.Fprintf(out, "HALTED: %s\n", report.HaltReason)
			}
			fmt.Fprintf(out, "Tasks: %d total\n", len(st.Tasks))
			for _, status := range statusOrder {
				if n := report.Tasks[status]; n > 0 {
					fmt.Fprintf(out, "  %-9s %d\n", status, n)
				}
			}
			if report.SteelThread > 0 {
				fmt.Fprintf(out, "Steel-thread tasks: %d\n", report.SteelThread)
			}
			if len(report.ActiveTasks) > 0 {
				active := append([]string(nil), report.ActiveTasks...)
				sort.Strings(active)
				fmt.Fprintf(out, "Active: %v\n", active)
			}
			if report.TotalTokens > 0 {
				fmt.Fprintf(out, "Tokens: %d ($%.2f)\n", report.TotalTokens, report.TotalCostUSD)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&statusJSON, "json", false, "Output in JSON format")
	return cmd
}

var statusOrder = []models.TaskStatus{
	models.StatusPending,
	models.StatusRunning,
	models.StatusComplete,
	models.StatusFailed,
	models.StatusBlocked,
	models.StatusSkipped,
}
