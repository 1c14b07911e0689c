package cmd

import (
	"encoding/json"
	"io"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/harrison/foreman/internal/config"
	"github.com/harrison/foreman/internal/logger"
	"github.com/harrison/foreman/internal/workflow"
)

// Version is injected at build time via -ldflags
var Version = "dev"

var targetDir string

// NewRootCommand creates and returns the root cobra command for foreman
func NewRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "foreman",
		Short: "Phase-gated planning and execution state engine",
		Long: `Foreman drives an engineering spec through a phase-gated pipeline:
ingestion, review, logical and physical design, task definition, planning
gates, sequencing, and dependency-ordered execution.

All state lives in a single JSON document under the target project's
.foreman/ directory. Every command is a load, mutate, save cycle guarded
by an advisory file lock.`,
		Version: Version,
		// Silence usage on errors to avoid duplicate help text
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVarP(&targetDir, "dir", "C", ".", "Target project directory")

	cmd.AddCommand(NewInitCommand())
	cmd.AddCommand(NewStatusCommand())
	cmd.AddCommand(NewAdvanceCommand())
	cmd.AddCommand(NewArtifactCommand())
	cmd.AddCommand(NewReviewCommand())
	cmd.AddCommand(NewTasksCommand())
	cmd.AddCommand(NewTaskCommand())
	cmd.AddCommand(NewValidateCommand())
	cmd.AddCommand(NewGatesCommand())
	cmd.AddCommand(NewVerifyCommand())
	cmd.AddCommand(NewCalibrationCommand())
	cmd.AddCommand(NewRollbackCommand())
	cmd.AddCommand(NewHaltCommand())
	cmd.AddCommand(NewCheckpointCommand())
	cmd.AddCommand(NewTokensCommand())
	cmd.AddCommand(NewMetricsCommand())

	return cmd
}

// newStore returns the state store for the --dir target.
func newStore() *workflow.Store {
	return workflow.NewStore(targetDir)
}

// loadConfig reads .foreman/config.yaml under the target, falling back to
// defaults when absent.
func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadFromDir(targetDir)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// newLogger builds the console logger at the configured level, writing to
// the command's stderr.
func newLogger(cmd *cobra.Command) *logger.ConsoleLogger {
	level := "info"
	if cfg, err := loadConfig(); err == nil {
		level = cfg.LogLevel
	}
	return logger.NewConsoleLogger(cmd.ErrOrStderr(), level)
}

// historyDBPath resolves the configured history database path against the
// target directory.
func historyDBPath(p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(targetDir, p)
}

// writeJSON pretty-prints v to w.
func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
