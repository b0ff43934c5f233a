// Package cli implements the conduit command line: serve, migrate and config.
package cli

import (
	"github.com/spf13/cobra"

	"conduit/internal/config"
	"conduit/internal/server"
)

// Version is set at build time with -ldflags "-X conduit/internal/cli.Version=...".
var Version = "dev"

// DefaultConfigPath is the base configuration document.
const DefaultConfigPath = "conf/default.toml"

// RootOptions holds global flags for all commands.
type RootOptions struct {
	ConfigPath string
	ConfigFile string
	RunMode    string

	// Mounts registers business routes by service name for serve.
	Mounts server.Mounts
}

// NewRootCommand creates the root command. mounts may be nil.
func NewRootCommand(mounts server.Mounts) *cobra.Command {
	opts := &RootOptions{Mounts: mounts}

	cmd := &cobra.Command{
		Use:           "conduit",
		Short:         "Conduit publishing platform core",
		Long:          "Schema migrations, deployment configuration and HTTP listeners for the conduit publishing platform.",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags
	cmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", DefaultConfigPath, "base configuration file (.toml or .yaml)")
	cmd.PersistentFlags().StringVar(&opts.ConfigFile, "config-file", "", "override file merged instead of the run-mode file")
	cmd.PersistentFlags().StringVar(&opts.RunMode, "run-mode", "", "run mode selecting conf/<mode>.<ext> (default $RUN_MODE, then development)")

	// Add subcommands
	cmd.AddCommand(NewServeCommand(opts))
	cmd.AddCommand(NewMigrateCommand(opts))
	cmd.AddCommand(NewConfigCommand(opts))

	return cmd
}

func (o *RootOptions) overrides() config.Overrides {
	return config.Overrides{ConfigFile: o.ConfigFile, RunMode: o.RunMode}
}

func (o *RootOptions) load() (*config.Config, error) {
	return config.Load(o.ConfigPath, o.overrides())
}
