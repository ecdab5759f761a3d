package commands

import (
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"pytestlab/internal/config"
)

// Globals holds the flags shared by every subcommand, populated once in
// root's PersistentPreRunE before any subcommand runs.
type Globals struct {
	CatalogRoot string
	LogLevel    string
	ConfigPath  string
	Log         *logrus.Logger
	Config      *config.RuntimeConfig
}

var globals Globals

// NewRootCommand builds the pytestlabctl command tree.
func NewRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "pytestlabctl",
		Short: "Inspect bench descriptors and drive record/replay sessions",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&globals.CatalogRoot, "catalog-root", ".", "root directory the bench descriptor's profile references resolve against")
	root.PersistentFlags().StringVar(&globals.LogLevel, "log-level", "info", "log level (debug, info, warn, error)")
	root.PersistentFlags().StringVar(&globals.ConfigPath, "config", "", "runtime config YAML file (the PYTESTLAB_SIMULATE env var forces simulation on top of it)")

	root.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(globals.ConfigPath)
		if err != nil {
			return err
		}
		cfg.Log.Level = globals.LogLevel
		globals.Config = cfg
		globals.Log = config.NewLogger(cfg.Log)
		return nil
	}

	root.AddCommand(newBenchCommand())
	root.AddCommand(newReplayCommand())
	root.AddCommand(newSimProfileCommand())
	root.AddCommand(newStoreCommand())
	return root
}
