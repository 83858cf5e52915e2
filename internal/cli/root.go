// Package cli implements the vetsync command line.
package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/vetrecords/vetsync/internal/config"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	DatabasePath string
	APIBaseURL   string
	Format       string // "json" | "text"

	Version string
	Commit  string
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command. Without a subcommand it serves the
// local API.
func NewRootCommand(version, commit string) *cobra.Command {
	opts := &RootOptions{Version: version, Commit: commit}

	cmd := &cobra.Command{
		Use:   "vetsync",
		Short: "Offline-first cache of veterinary records",
		Long: `vetsync keeps a local SQLite copy of the veterinary records API.

Reads are answered from the cache at once and revalidated in the background;
writes go to the API first and are stored with what it returns.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return NewExitError(ExitCommandError, fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(opts)
		},
	}

	// Global flags override the environment
	cmd.PersistentFlags().StringVar(&opts.DatabasePath, "db", "", "path to the cache database (overrides DATABASE_PATH)")
	cmd.PersistentFlags().StringVar(&opts.APIBaseURL, "api-url", "", "records API base URL (overrides API_BASE_URL)")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")

	cmd.AddCommand(NewServeCommand(opts))
	cmd.AddCommand(NewRefreshCommand(opts))
	cmd.AddCommand(NewScopesCommand(opts))
	cmd.AddCommand(NewSessionCommand(opts))
	cmd.AddCommand(NewVersionCommand(opts))

	return cmd
}

// config loads the environment configuration and applies flag overrides.
func (o *RootOptions) config() *config.Config {
	cfg := config.NewConfig()
	if o.DatabasePath != "" {
		cfg.Database.Path = o.DatabasePath
	}
	if o.APIBaseURL != "" {
		cfg.API.BaseURL = o.APIBaseURL
	}
	return cfg
}

func (o *RootOptions) formatter(w io.Writer) *OutputFormatter {
	return &OutputFormatter{Format: o.Format, Writer: w}
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}
