package cli

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/vetrecords/vetsync/internal/entrypoint"
)

// NewSessionCommand groups the session token subcommands.
func NewSessionCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "session",
		Short: "Manage the stored API session token",
	}
	cmd.AddCommand(newSessionShowCommand(rootOpts))
	cmd.AddCommand(newSessionSetCommand(rootOpts))
	cmd.AddCommand(newSessionClearCommand(rootOpts))
	return cmd
}

// SessionInfo describes the stored session without the token.
type SessionInfo struct {
	Authenticated bool       `json:"authenticated"`
	Account       string     `json:"account,omitempty"`
	ExpiresAt     *time.Time `json:"expires_at,omitempty"`
}

func newSessionShowCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the stored session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := entrypoint.Build(opts.config())
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to open cache", err)
			}
			defer app.Close(context.Background())

			current, err := app.Sessions.Current()
			if err != nil {
				return WrapExitError(ExitFailure, "failed to load session", err)
			}
			info := SessionInfo{}
			if current != nil {
				info.Account = current.Account
				info.ExpiresAt = current.ExpiresAt
				info.Authenticated = current.ExpiresAt == nil || time.Now().Before(*current.ExpiresAt)
			}
			return opts.formatter(cmd.OutOrStdout()).Emit(info, func(w io.Writer) error {
				if current == nil {
					_, err := fmt.Fprintln(w, "Not logged in")
					return err
				}
				status := "active"
				if !info.Authenticated {
					status = "expired"
				}
				_, err := fmt.Fprintf(w, "Session for %s (%s)\n", info.Account, status)
				return err
			})
		},
	}
}

type sessionSetOptions struct {
	Account   string
	Token     string
	ExpiresIn time.Duration
}

func newSessionSetCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &sessionSetOptions{}

	cmd := &cobra.Command{
		Use:   "set",
		Short: "Store a session token obtained from the API login",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := entrypoint.Build(rootOpts.config())
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to open cache", err)
			}
			defer app.Close(context.Background())

			var expiresAt *time.Time
			if opts.ExpiresIn > 0 {
				t := time.Now().Add(opts.ExpiresIn)
				expiresAt = &t
			}
			if err := app.Sessions.Save(opts.Account, opts.Token, expiresAt); err != nil {
				return WrapExitError(ExitFailure, "failed to save session", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Session saved")
			return nil
		},
	}

	cmd.Flags().StringVar(&opts.Account, "account", "", "account the token belongs to")
	cmd.Flags().StringVar(&opts.Token, "token", "", "bearer token (required)")
	cmd.Flags().DurationVar(&opts.ExpiresIn, "expires-in", 0, "token lifetime, 0 for no expiry")
	_ = cmd.MarkFlagRequired("token")

	return cmd
}

func newSessionClearCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Remove the stored session; cached records are kept",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := entrypoint.Build(opts.config())
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to open cache", err)
			}
			defer app.Close(context.Background())

			if err := app.Sessions.Clear(); err != nil {
				return WrapExitError(ExitFailure, "failed to clear session", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Session cleared")
			return nil
		},
	}
}
