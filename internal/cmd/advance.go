package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/harrison/foreman/internal/gates"
	"github.com/harrison/foreman/internal/models"
	"github.com/harrison/foreman/internal/workflow"
)

// NewAdvanceCommand creates the advance subcommand
func NewAdvanceCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "advance",
		Short: "Advance the pipeline one phase",
		Long: `Check the current phase's exit conditions and, if they hold, move to
the next phase. Phases advance one step at a time and never move backward.
Leaving the definition phase runs the full planning gate suite.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store := newStore()
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			log := newLogger(cmd)

			var from, to models.PhaseName
			err = store.Update(func(st *models.WorkflowState) error {
				from = st.Phase.Current
				checks := advanceChecks(store, cfg.CoverageThreshold)
				if err := workflow.Advance(st, checks); err != nil {
					return err
				}
				to = st.Phase.Current
				return nil
			})
			if err != nil {
				return err
			}

			log.Infof("Advanced %s -> %s", from, to)
			fmt.Fprintf(cmd.OutOrStdout(), "Advanced: %s -> %s\n", from, to)
			return nil
		},
	}
}

// advanceChecks wires the environment-dependent phase predicates: the spec
// input file and the planning gate suite.
func advanceChecks(store *workflow.Store, coverageThreshold float64) workflow.AdvanceChecks {
	return workflow.AdvanceChecks{
		SpecInputPath: store.SpecInputPath(),
		SpecInputExists: func() bool {
			_, err := os.Stat(store.SpecInputPath())
			return err == nil
		},
		RunGates: func(st *models.WorkflowState) (bool, []string) {
			res, err := runGates(store, st, coverageThreshold)
			if err != nil {
				return false, []string{err.Error()}
			}
			if raw, merr := json.Marshal(res); merr == nil {
				st.Artifacts.ValidationResults = raw
			}
			return res.Passed, res.Issues
		},
	}
}

// runGates assembles the gate input from the planning directory and runs the
// full suite.
func runGates(store *workflow.Store, st *models.WorkflowState, coverageThreshold float64) (*gates.Result, error) {
	defs, err := workflow.LoadDefinitions(store.TasksDir())
	if err != nil {
		return nil, err
	}
	specText, err := os.ReadFile(store.SpecInputPath())
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read spec input: %w", err)
	}
	return gates.RunAll(gates.Input{
		State:             st,
		Definitions:       defs,
		SpecText:          specText,
		CoverageThreshold: coverageThreshold,
		PhaseExclusions:   workflow.PhaseExclusions(st),
	}), nil
}
