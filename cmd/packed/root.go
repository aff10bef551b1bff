package main

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/toyz/packed/internal/cli"
	"github.com/toyz/packed/internal/utils"
)

type app struct {
	v          *viper.Viper
	configFile string
}

func newRootCmd() *cobra.Command {
	a := &app{v: cli.NewViper()}

	root := &cobra.Command{
		Use:   "packed",
		Short: "Packed hook annotation tool",
		Long: `Packed scans Go packages for //packed:: method annotations and packed:"..." struct tags.

Directory arguments accept Go-style patterns:
  ./...              current directory and all subdirectories
  ./internal/...     internal and all its subdirectories
  ./pkg/shop         a single package

Settings are read from .packed.yaml and PACKED_* environment variables; flags take precedence.`,
		SilenceUsage: true,
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.configFile, "config", "", "config file (default .packed.yaml in the working directory)")
	flags.String("module", "", "module path for import paths (defaults to go.mod)")
	flags.BoolP("verbose", "v", false, "enable verbose output")
	flags.BoolP("quiet", "q", false, "only show errors")
	flags.Bool("strict", false, "reject annotations without a known schema")
	for _, name := range []string{"module", "verbose", "quiet", "strict"} {
		_ = a.v.BindPFlag(name, flags.Lookup(name))
	}

	root.AddCommand(
		a.generateCmd(),
		a.cleanCmd(),
		a.scanCmd(),
		a.schemasCmd(),
	)
	return root
}

// load resolves the configuration of a command run; positional arguments
// replace the configured directories
func (a *app) load(cmd *cobra.Command, args []string) (*cli.Config, *utils.DiagnosticSystem, error) {
	if err := cli.ReadConfigFile(a.v, a.configFile, "."); err != nil {
		return nil, nil, err
	}
	if len(args) > 0 {
		a.v.Set("directories", args)
	}
	cfg, err := cli.LoadConfig(a.v)
	if err != nil {
		return nil, nil, err
	}
	diag := cfg.Diagnostics()
	diag.SetOutput(cmd.OutOrStdout(), cmd.ErrOrStderr())
	return cfg, diag, nil
}

func (a *app) newGenerator(cmd *cobra.Command, cfg *cli.Config, diag *utils.DiagnosticSystem) *cli.Generator {
	g := cli.NewGenerator(cfg, diag)
	g.Reporter().SetOutput(cmd.ErrOrStderr())
	return g
}
