package cli

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/spf13/cobra"

	"conduit/internal/infrastructure/database"
	"conduit/internal/logger"
)

// NewMigrateCommand creates the migrate command group.
func NewMigrateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply or revert schema migrations",
		Long: `Apply or revert the embedded schema migrations against db.url.

Every step runs in its own transaction. A failed step is rolled back and the
schema stays at the last fully applied version.`,
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply every pending migration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMigrator(cmd, rootOpts, func(ctx context.Context, m *database.Migrator) error {
				return m.Up(ctx)
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "down",
		Short: "Revert every applied migration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMigrator(cmd, rootOpts, func(ctx context.Context, m *database.Migrator) error {
				return m.Down(ctx)
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "goto <version>",
		Short: "Migrate up or down to the given version",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			target, err := parseVersion(args[0])
			if err != nil {
				return err
			}
			return withMigrator(cmd, rootOpts, func(ctx context.Context, m *database.Migrator) error {
				return m.Apply(ctx, target)
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the applied schema version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMigrator(cmd, rootOpts, func(ctx context.Context, m *database.Migrator) error {
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "force <version>",
		Short: "Set the version marker and clear the dirty flag without running SQL",
		Long: `Set the version marker and clear the dirty flag without running SQL.

Use only after repairing a schema by hand.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			version, err := parseVersion(args[0])
			if err != nil {
				return err
			}
			return withMigrator(cmd, rootOpts, func(ctx context.Context, m *database.Migrator) error {
				return m.Force(version)
			})
		},
	})

	return cmd
}

func parseVersion(arg string) (uint, error) {
	v, err := strconv.ParseUint(arg, 10, 0)
	if err != nil {
		return 0, fmt.Errorf("invalid version %q", arg)
	}
	return uint(v), nil
}

// withMigrator opens a migrator for the configured database, runs fn and
// prints the resulting version.
func withMigrator(cmd *cobra.Command, opts *RootOptions, fn func(context.Context, *database.Migrator) error) error {
	cfg, err := opts.load()
	if err != nil {
		return err
	}
	logger.Configure(cfg.Debug)

	m, err := database.NewMigrator(cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer func() {
		if err := m.Close(); err != nil {
			logger.Warn("Failed to close migrator", slog.String("error", err.Error()))
		}
	}()

	if err := fn(cmd.Context(), m); err != nil {
		return err
	}

	version, dirty, err := m.Version()
	if err != nil {
		return err
	}
	status := "clean"
	if dirty {
		status = "dirty"
	}
	_, err = fmt.Fprintf(cmd.OutOrStdout(), "schema version %d of %d (%s)\n", version, m.Latest(), status)
	return err
}
