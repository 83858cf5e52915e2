package cli

import (
	"log"

	"github.com/spf13/cobra"

	"github.com/vetrecords/vetsync/internal/entrypoint"
	"github.com/vetrecords/vetsync/internal/logging"
)

func NewServeCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the local API (default)",
		Long: `Serve the local API, run the refresh task queue and the periodic
re-validation of tracked scopes. Configuration comes from the environment;
see the README for the variables.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(opts)
		},
	}
}

func runServe(opts *RootOptions) error {
	cfg := opts.config()

	logFile, err := logging.Setup(logging.Config{
		File:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
		Level:      cfg.Log.Level,
	})
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to set up logging", err)
	}
	defer func() {
		if err := logFile.Close(); err != nil {
			log.Printf("Error closing log file: %v", err)
		}
	}()

	if err := entrypoint.Run(cfg, opts.Version); err != nil {
		return WrapExitError(ExitFailure, "server stopped", err)
	}
	return nil
}
