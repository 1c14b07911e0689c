package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/harrison/foreman/internal/gates"
	"github.com/harrison/foreman/internal/models"
)

var gatesJSON bool

// NewGatesCommand creates the gates command with subcommands
func NewGatesCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "gates",
		Short: "Run the planning gates",
	}

	run := &cobra.Command{
		Use:   "run",
		Short: "Evaluate every planning gate and report all issues",
		Long: `Run the full gate suite against the current task definitions: spec
coverage, phase leakage, dependency existence, acceptance-criteria quality,
and refactor resolution. Every gate is evaluated even when an earlier one
fails. Exit code is 1 when any blocking gate fails.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store := newStore()
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			var res *gates.Result
			err = store.Update(func(st *models.WorkflowState) error {
				res, err = runGates(store, st, cfg.CoverageThreshold)
				if err != nil {
					return err
				}
				raw, err := json.Marshal(res)
				if err != nil {
					return err
				}
				st.Artifacts.ValidationResults = raw
				st.AddEvent("gates_run", "", map[string]any{
					"passed": res.Passed,
					"issues": len(res.Issues),
				})
				return nil
			})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if gatesJSON {
				if err := writeJSON(out, res); err != nil {
					return err
				}
			} else {
				for _, gate := range res.Gates {
					mark := "✓"
					if !gate.Passed {
						mark = "✗"
					}
					fmt.Fprintf(out, "%s %s\n", mark, gate.Name)
					for _, issue := range gate.Issues {
						fmt.Fprintf(out, "    %s\n", issue)
					}
				}
				if res.Coverage != nil && res.Coverage.Total > 0 {
					fmt.Fprintf(out, "Coverage: %d/%d requirements (%.0f%%)\n",
						res.Coverage.Covered, res.Coverage.Total, res.Coverage.Ratio*100)
				}
			}

			if !res.Passed {
				return fmt.Errorf("gate run failed with %d issue(s)", len(res.Issues))
			}
			return nil
		},
	}
	run.Flags().BoolVar(&gatesJSON, "json", false, "Output in JSON format")

	cmd.AddCommand(run)
	return cmd
}
