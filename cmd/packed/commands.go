package main

import (
	"github.com/spf13/cobra"
	"github.com/toyz/packed/internal/annotations"
	"github.com/toyz/packed/internal/cli"
)

func (a *app) generateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "generate [directories...]",
		Short: "Write packed_hooks.go files for annotated packages",
		Example: `  packed generate ./...
  packed generate --module github.com/myorg/myapp ./internal/...`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, diag, err := a.load(cmd, args)
			if err != nil {
				return err
			}
			diag.Header("generating hooks for %v", cfg.Directories)

			g := a.newGenerator(cmd, cfg, diag)
			if err := g.Run(); err != nil {
				return err
			}

			summary := g.Summary()
			diag.Summary("Generation complete", summary.Stats())
			if cfg.Verbose {
				for _, f := range summary.RemovedFiles {
					diag.List("removed %s", f)
				}
			}
			diag.Verbose("Finished in %s", summary.Duration)
			return nil
		},
	}
}

func (a *app) cleanCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clean [directories...]",
		Short: "Remove generated packed_hooks.go files",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, diag, err := a.load(cmd, args)
			if err != nil {
				return err
			}
			removed, err := cli.NewCleaner().CleanGeneratedFiles(cfg.Directories)
			for _, f := range removed {
				diag.Item("removed %s", f)
			}
			if err != nil {
				return err
			}
			diag.Success("%d generated file(s) removed", len(removed))
			return nil
		},
	}
}

func (a *app) scanCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scan [directories...]",
		Short: "List hook annotations found in packages",
		Example: `  packed scan ./...
  packed scan --format yaml ./internal/...`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, diag, err := a.load(cmd, args)
			if err != nil {
				return err
			}
			g := a.newGenerator(cmd, cfg, diag)
			metas, err := g.Scan()
			if err != nil {
				g.Reporter().ReportError(err)
				return err
			}
			return cli.WriteScan(cmd.OutOrStdout(), cfg.Output, metas)
		},
	}
	cmd.Flags().StringP("format", "f", cli.FormatText, "output format: text, json or yaml")
	_ = a.v.BindPFlag("output", cmd.Flags().Lookup("format"))
	return cmd
}

func (a *app) schemasCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "schemas",
		Short: "List the known hook annotations and their parameters",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cli.WriteSchemas(cmd.OutOrStdout(), annotations.DefaultRegistry())
		},
	}
}
