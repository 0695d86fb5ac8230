package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/waste3d/training-portal/internal/application/usecase"
	"github.com/waste3d/training-portal/internal/infrastructure/cache"
	"github.com/waste3d/training-portal/internal/infrastructure/repository"
)

type CertificateOptions struct {
	*RootOptions
	UserID string
	Issue  bool
}

func NewCertificateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CertificateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "certificate",
		Short: "Inspect or issue a user's certificate",
	}

	check := &cobra.Command{
		Use:   "check",
		Short: "Show a user's certificate or how many modules remain",
		Long: `Show a user's certificate or how many modules remain.

With --issue an eligible user without a certificate gets one, exactly as
if their last module had just been completed.

Example:
  portalctl certificate check --user 7f3c2a9e --issue`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return checkCertificate(cmd, opts)
		},
	}
	check.Flags().StringVar(&opts.UserID, "user", "", "user id (required)")
	check.Flags().BoolVar(&opts.Issue, "issue", false, "issue the certificate when eligible")
	_ = check.MarkFlagRequired("user")

	cmd.AddCommand(check)
	return cmd
}

func checkCertificate(cmd *cobra.Command, opts *CertificateOptions) error {
	cfg, err := opts.config()
	if err != nil {
		return err
	}
	store, err := opts.store(cfg)
	if err != nil {
		return err
	}

	// one-shot process, a local cache is enough
	c := cache.NewMemory(cache.DefaultTTL, nil)
	issuer := usecase.NewCertificateIssuer(
		repository.NewCatalogRepository(store, c),
		repository.NewProgressRepository(store, c),
		repository.NewCertificateRepository(store, c),
		repository.NewProfileRepository(store, c),
		nil,
	)

	ctx := cmd.Context()
	if opts.Issue {
		res, err := issuer.CheckAndIssue(ctx, opts.UserID)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), res)
	}

	cert, err := issuer.GetUserCertificate(ctx, opts.UserID)
	if err != nil {
		return err
	}
	if cert != nil {
		return printJSON(cmd.OutOrStdout(), cert)
	}
	remaining, err := issuer.Remaining(ctx, opts.UserID)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "no certificate, %d modules remaining\n", remaining)
	return nil
}
