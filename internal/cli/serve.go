package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"conduit/internal/config"
	"conduit/internal/infrastructure/database"
	"conduit/internal/logger"
	"conduit/internal/metrics"
	"conduit/internal/server"
)

const poolStatsInterval = 15 * time.Second

// ServeOptions holds flags for the serve command.
type ServeOptions struct {
	Migrate         bool
	ShutdownTimeout time.Duration
}

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ServeOptions{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the configured HTTP listeners",
		Long: `Run one HTTP listener per entry in servers.

The timestamp triggers are verified before any listener starts. SIGHUP
reloads capabilities and CORS policies; SIGINT and SIGTERM shut down
gracefully.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), rootOpts, opts)
		},
	}

	cmd.Flags().BoolVar(&opts.Migrate, "migrate", false, "apply pending migrations before serving")
	cmd.Flags().DurationVar(&opts.ShutdownTimeout, "shutdown-timeout", 10*time.Second, "grace period for in-flight requests")

	return cmd
}

func runServe(ctx context.Context, rootOpts *RootOptions, opts *ServeOptions) error {
	store, err := config.NewStore(rootOpts.ConfigPath, rootOpts.overrides())
	if err != nil {
		return err
	}
	cfg := store.Current()

	logger.Configure(cfg.Debug)
	if cfg.Debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	logger.Info("Configuration loaded",
		slog.Any("sources", cfg.Sources),
		slog.String("db_url", cfg.RedactedDatabaseURL()),
		slog.Any("servers", cfg.Servers))

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if opts.Migrate {
		if err := migrateUp(ctx, cfg.DatabaseURL); err != nil {
			return err
		}
	}

	// Connect to database
	pool, err := database.NewPostgres(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer pool.Close()

	if err := database.VerifyTimestampPolicy(ctx, pool); err != nil {
		return fmt.Errorf("verify schema: %w", err)
	}
	if err := database.CheckSchema(ctx, pool); err != nil {
		logger.Warn("Schema is not current; /ready reports not ready",
			slog.String("error", err.Error()))
	}
	if version, _, err := database.SchemaVersion(ctx, pool); err == nil {
		metrics.SetSchemaVersion(version)
	}

	// Start database pool metrics collector
	poolStatsCollector := metrics.NewPoolStatsCollector(pool)
	poolStatsCollector.Start(poolStatsInterval)
	defer poolStatsCollector.Stop()
	metrics.LogHealthCheckMetrics(ctx, pool)

	srv, err := server.New(store, pool, rootOpts.Mounts, server.Options{
		Version:         Version,
		ShutdownTimeout: opts.ShutdownTimeout,
	})
	if err != nil {
		return err
	}

	go reloadOnHangup(ctx, store)

	logger.Info("Starting server", slog.String("version", Version))
	if err := srv.Run(ctx); err != nil {
		return err
	}
	logger.Info("Server exited")
	return nil
}

func migrateUp(ctx context.Context, databaseURL string) error {
	m, err := database.NewMigrator(databaseURL)
	if err != nil {
		return err
	}
	defer m.Close()

	if err := m.Up(ctx); err != nil {
		return err
	}
	version, _, err := m.Version()
	if err != nil {
		return err
	}
	logger.Info("Schema migrated", slog.Uint64("version", uint64(version)))
	return nil
}

// reloadOnHangup reloads the configuration on every SIGHUP until ctx ends.
func reloadOnHangup(ctx context.Context, store *config.Store) {
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)

	for {
		select {
		case <-ctx.Done():
			return
		case <-hup:
			cfg, err := store.Reload()
			if err != nil {
				continue
			}
			logger.Configure(cfg.Debug)
		}
	}
}
