package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"conduit/internal/config"
	"conduit/internal/infrastructure/database"
	"conduit/internal/metrics"
	"conduit/internal/testutil"
)

const serveConfig = `
servers = ["public"]

[public]
listen = "127.0.0.1:0"
workers = 2
backlog = 16
services = ["Article"]
`

func writeServeConfig(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "conduit.toml")
	require.NoError(t, os.WriteFile(path, []byte(serveConfig), 0o600))
	return path
}

func TestMigrateCommand_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	tdb := testutil.StartPostgres(t)
	defer tdb.Cleanup(t)

	clearEnv(t)
	t.Setenv(config.EnvDatabaseURL, tdb.ConnStr)
	path := writeServeConfig(t)
	latest := database.LatestVersion()

	out, err := execute(t, "migrate", "version", "--config", path, "--run-mode", "none")
	require.NoError(t, err)
	assert.Equal(t, fmt.Sprintf("schema version 0 of %d (clean)\n", latest), out)

	out, err = execute(t, "migrate", "up", "--config", path, "--run-mode", "none")
	require.NoError(t, err)
	assert.Equal(t, fmt.Sprintf("schema version %d of %d (clean)\n", latest, latest), out)

	out, err = execute(t, "migrate", "goto", "2", "--config", path, "--run-mode", "none")
	require.NoError(t, err)
	assert.Equal(t, fmt.Sprintf("schema version 2 of %d (clean)\n", latest), out)

	_, err = execute(t, "migrate", "goto", "99", "--config", path, "--run-mode", "none")
	assert.ErrorIs(t, err, database.ErrUnknownVersion)

	out, err = execute(t, "migrate", "down", "--config", path, "--run-mode", "none")
	require.NoError(t, err)
	assert.Equal(t, fmt.Sprintf("schema version 0 of %d (clean)\n", latest), out)
}

func TestServeCommand_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	tdb := testutil.StartPostgres(t)
	defer tdb.Cleanup(t)

	clearEnv(t)
	t.Setenv(config.EnvDatabaseURL, tdb.ConnStr)
	path := writeServeConfig(t)

	t.Run("refuses an unmigrated database", func(t *testing.T) {
		_, err := execute(t, "serve", "--config", path, "--run-mode", "none")
		assert.ErrorIs(t, err, database.ErrTimestampPolicy)
	})

	t.Run("migrates then serves until cancelled", func(t *testing.T) {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		cmd := NewRootCommand(nil)
		cmd.SetArgs([]string{"serve", "--migrate", "--config", path, "--run-mode", "none", "--shutdown-timeout", "1s"})
		require.NoError(t, cmd.ExecuteContext(ctx))

		version, dirty, err := database.SchemaVersion(context.Background(), tdb.Pool)
		require.NoError(t, err)
		assert.Equal(t, database.LatestVersion(), version)
		assert.False(t, dirty)
	})

	t.Run("exports the schema version of a migrated database", func(t *testing.T) {
		metrics.SetSchemaVersion(0)

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		cmd := NewRootCommand(nil)
		cmd.SetArgs([]string{"serve", "--config", path, "--run-mode", "none", "--shutdown-timeout", "1s"})
		require.NoError(t, cmd.ExecuteContext(ctx))

		assert.Equal(t, float64(database.LatestVersion()), promtest.ToFloat64(metrics.SchemaVersion))
	})
}
