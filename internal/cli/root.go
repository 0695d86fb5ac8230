// Package cli implements portalctl, the operator tool for seeding the
// catalog, inspecting certificate eligibility and minting development tokens.
package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/waste3d/training-portal/config"
	"github.com/waste3d/training-portal/internal/infrastructure/docstore"
)

type RootOptions struct {
	ConfigDir string

	// Config and Store replace the values loaded from ConfigDir when set.
	Config *config.Config
	Store  docstore.Store
}

func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}
	return newRootCommand(opts)
}

func newRootCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "portalctl",
		Short:         "Training portal operator tool",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&opts.ConfigDir, "config", ".", "directory holding app.env")

	cmd.AddCommand(
		NewSeedCommand(opts),
		NewCertificateCommand(opts),
		NewTokenCommand(opts),
	)
	return cmd
}

func (o *RootOptions) config() (config.Config, error) {
	if o.Config != nil {
		return *o.Config, nil
	}
	return config.LoadConfig(o.ConfigDir)
}

func (o *RootOptions) store(cfg config.Config) (docstore.Store, error) {
	if o.Store != nil {
		return o.Store, nil
	}
	if cfg.StoreDriver == config.DriverMemory {
		return nil, fmt.Errorf("STORE_DRIVER=memory has nothing to operate on, point portalctl at postgres")
	}
	return docstore.OpenPostgres(cfg.DSN(), cfg.Indexes())
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
