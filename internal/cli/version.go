package cli

import (
	"fmt"
	"io"
	"runtime"

	"github.com/spf13/cobra"
)

type VersionInfo struct {
	Version string `json:"version"`
	Commit  string `json:"commit"`
	Go      string `json:"go"`
}

func NewVersionCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			info := VersionInfo{Version: opts.Version, Commit: opts.Commit, Go: runtime.Version()}
			return opts.formatter(cmd.OutOrStdout()).Emit(info, func(w io.Writer) error {
				_, err := fmt.Fprintf(w, "vetsync %s (%s, %s)\n", info.Version, info.Commit, info.Go)
				return err
			})
		},
	}
}
