package cli

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/vetrecords/vetsync/internal/entities"
	"github.com/vetrecords/vetsync/internal/entrypoint"
)

type ScopesOptions struct {
	*RootOptions
	Entity string
}

func NewScopesCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ScopesOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "scopes",
		Short: "List tracked scopes and when they were last synced",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScopes(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.Entity, "entity", "", "only list scopes of this entity")

	return cmd
}

func runScopes(cmd *cobra.Command, opts *ScopesOptions) error {
	app, err := entrypoint.Build(opts.config())
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open cache", err)
	}
	defer app.Close(context.Background())

	records, err := app.Catalog.Ledger.List(opts.Entity)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read sync ledger", err)
	}
	if records == nil {
		records = []entities.ScopeSync{}
	}

	return opts.formatter(cmd.OutOrStdout()).Emit(records, func(w io.Writer) error {
		if len(records) == 0 {
			_, err := fmt.Fprintln(w, "No scopes synced yet")
			return err
		}
		tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "ENTITY\tSCOPE\tSTATUS\tROWS\tLAST SYNCED\tERROR")
		for _, r := range records {
			synced := "never"
			if r.SyncedAt != nil {
				synced = r.SyncedAt.Local().Format(time.DateTime)
			}
			fmt.Fprintf(tw, "%s\t%d\t%s\t%d\t%s\t%s\n", r.Entity, r.Scope, r.Status, r.Rows, synced, r.Error)
		}
		return tw.Flush()
	})
}
