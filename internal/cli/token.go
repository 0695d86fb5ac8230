package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/waste3d/training-portal/internal/infrastructure/security"
)

type TokenOptions struct {
	*RootOptions
	UserID string
	Email  string
	TTL    time.Duration
}

func NewTokenCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TokenOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint an access token signed with ACCESS_SECRET",
		Long: `Mint an access token signed with ACCESS_SECRET, for local development
and smoke tests against the HTTP API.

Example:
  portalctl token --user 7f3c2a9e --ttl 1h`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.config()
			if err != nil {
				return err
			}
			token, err := security.NewTokenManager(cfg.AccessSecret, opts.TTL).Generate(opts.UserID, opts.Email)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&opts.UserID, "user", "", "user id (required)")
	cmd.Flags().StringVar(&opts.Email, "email", "", "email claim")
	cmd.Flags().DurationVar(&opts.TTL, "ttl", security.DefaultAccessTTL, "token lifetime")
	_ = cmd.MarkFlagRequired("user")

	return cmd
}
