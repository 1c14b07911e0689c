package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewInitCommand creates the init subcommand
func NewInitCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "init [target-dir]",
		Short: "Initialize the planning directory for a target project",
		Long: `Create the .foreman/ directory, its tasks/ and results/ subdirectories,
and the initial state document. Fails if the target is already initialized.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				targetDir = args[0]
			}
			store := newStore()
			st, err := store.Init()
			if err != nil {
				return err
			}
			log := newLogger(cmd)
			log.Infof("Initialized %s", store.StatePath())
			fmt.Fprintf(cmd.OutOrStdout(), "Initialized workflow state for %s (phase: %s)\n",
				st.TargetDir, st.Phase.Current)
			return nil
		},
	}
}
