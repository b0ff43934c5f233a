package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

// NewConfigCommand creates the config command group.
func NewConfigCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect the deployment configuration",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the resolved configuration as JSON",
		Long: `Load the base file, the run-mode or --config-file override and the
environment, then print the resolved configuration. The database
password is redacted.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := rootOpts.load()
			if err != nil {
				return err
			}
			out, err := json.MarshalIndent(cfg.View(), "", "  ")
			if err != nil {
				return fmt.Errorf("encode config: %w", err)
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), string(out))
			return err
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "check",
		Short: "Validate the configuration and list the merged files",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := rootOpts.load()
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			for _, src := range cfg.Sources {
				fmt.Fprintf(w, "loaded %s\n", src)
			}
			fmt.Fprintf(w, "ok: %d listener(s), %d capability flag(s) enabled\n",
				len(cfg.Servers), len(cfg.Capabilities.Enabled()))
			return nil
		},
	})

	return cmd
}
