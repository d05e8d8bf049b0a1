package main

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/okian/elbow/internal/adapters/registry"
)

func newModelsCommand(root *rootOptions) *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "models",
		Short: "Inspect the model registry",
	}
	cmd.PersistentFlags().StringVarP(&format, "format", "f", "table", "Output format: table or json")

	withRegistry := func(cmd *cobra.Command, fn func(*registry.Registry) error) error {
		if format != "table" && format != "json" {
			return fmt.Errorf("unsupported format %q: must be table or json", format)
		}
		cfg, err := root.load(cmd)
		if err != nil {
			return err
		}
		reg, err := registry.Open(cfg.RegistryDir)
		if err != nil {
			return err
		}
		defer func() { _ = reg.Close() }()
		return fn(reg)
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List registered models, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withRegistry(cmd, func(reg *registry.Registry) error {
				metas, err := reg.List(cmd.Context())
				if err != nil {
					return err
				}
				if format == "json" {
					return printJSON(cmd.OutOrStdout(), metas)
				}
				printModels(cmd.OutOrStdout(), metas)
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "get <id>",
		Short: "Show one registered model and its manifest",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRegistry(cmd, func(reg *registry.Registry) error {
				meta, err := reg.Get(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				manifest, err := registry.ReadManifest(meta)
				if err != nil {
					return err
				}
				if format == "json" {
					return printJSON(cmd.OutOrStdout(), struct {
						registry.Metadata
						Manifest registry.Manifest `json:"manifest"`
					}{meta, manifest})
				}
				printModels(cmd.OutOrStdout(), []registry.Metadata{meta})
				fmt.Fprintf(cmd.OutOrStdout(), "\npath: %s\nflavors: %d\n", meta.Path, len(manifest.Flavors))
				return nil
			})
		},
	})
	return cmd
}

func printModels(w io.Writer, metas []registry.Metadata) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tVERSION\tALGORITHM\tPARAM\tCREATED")
	for _, m := range metas {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%s\n",
			m.ID, m.Name, m.Version, m.Algorithm, m.Param, m.CreatedAt.Format(time.RFC3339))
	}
	_ = tw.Flush()
}
