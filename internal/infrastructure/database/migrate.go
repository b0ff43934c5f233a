package database

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"strings"
	"sync"

	"github.com/golang-migrate/migrate/v4"
	migratedb "github.com/golang-migrate/migrate/v4/database"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"conduit/internal/logger"
	"conduit/internal/metrics"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

const migrationsDir = "migrations"

var (
	// ErrDirtySchema is returned when the version marker records a step that
	// never finished. It must be repaired by hand (migrate force).
	ErrDirtySchema = errors.New("schema version is dirty")

	// ErrUnknownVersion is returned for a target that no embedded migration has.
	ErrUnknownVersion = errors.New("unknown schema version")
)

// MigrationError reports a step that could not be applied. The schema and
// its version marker are left at From.
type MigrationError struct {
	From uint
	To   uint
	Err  error
}

func (e *MigrationError) Error() string {
	return fmt.Sprintf("migrate %d -> %d: %v", e.From, e.To, e.Err)
}

func (e *MigrationError) Unwrap() error { return e.Err }

var embeddedVersions = sync.OnceValues(func() ([]uint, error) {
	src, err := iofs.New(migrationFiles, migrationsDir)
	if err != nil {
		return nil, fmt.Errorf("open embedded migrations: %w", err)
	}
	defer src.Close()

	var versions []uint
	v, err := src.First()
	for err == nil {
		versions = append(versions, v)
		v, err = src.Next(v)
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("list embedded migrations: %w", err)
	}
	return versions, nil
})

// LatestVersion returns the highest embedded migration version.
func LatestVersion() uint {
	versions, err := embeddedVersions()
	if err != nil || len(versions) == 0 {
		return 0
	}
	return versions[len(versions)-1]
}

// Migrator applies the embedded schema migrations one step at a time.
type Migrator struct {
	m        *migrate.Migrate
	versions []uint
}

// NewMigrator opens a migrator against databaseURL.
func NewMigrator(databaseURL string) (*Migrator, error) {
	versions, err := embeddedVersions()
	if err != nil {
		return nil, err
	}

	src, err := iofs.New(migrationFiles, migrationsDir)
	if err != nil {
		return nil, fmt.Errorf("open embedded migrations: %w", err)
	}

	m, err := migrate.NewWithSourceInstance("iofs", src, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("create migrate instance: %w", err)
	}
	m.Log = migrateLogger{}

	return &Migrator{m: m, versions: versions}, nil
}

// Latest returns the highest embedded migration version.
func (mg *Migrator) Latest() uint {
	if len(mg.versions) == 0 {
		return 0
	}
	return mg.versions[len(mg.versions)-1]
}

// Version returns the applied version and whether it is dirty. An empty
// database is at version 0.
func (mg *Migrator) Version() (uint, bool, error) {
	v, dirty, err := mg.m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("read schema version: %w", err)
	}
	return v, dirty, nil
}

// Up applies every pending migration.
func (mg *Migrator) Up(ctx context.Context) error {
	return mg.Apply(ctx, mg.Latest())
}

// Down reverts every applied migration.
func (mg *Migrator) Down(ctx context.Context) error {
	return mg.Apply(ctx, 0)
}

// Apply moves the schema to target one step at a time. Each step runs as a
// single implicit transaction; when one fails the version marker is reset to
// the last completed step and a *MigrationError is returned.
func (mg *Migrator) Apply(ctx context.Context, target uint) error {
	if target != 0 && mg.index(target) < 0 {
		return fmt.Errorf("%w: %d (latest is %d)", ErrUnknownVersion, target, mg.Latest())
	}

	current, dirty, err := mg.Version()
	if err != nil {
		return err
	}
	if dirty {
		return fmt.Errorf("%w: version %d", ErrDirtySchema, current)
	}
	if current != 0 && mg.index(current) < 0 {
		return fmt.Errorf("%w: database is at %d", ErrUnknownVersion, current)
	}

	if current == target {
		logger.Info("Schema already at target version", slog.Uint64("version", uint64(target)))
		return nil
	}

	for current != target {
		if err := ctx.Err(); err != nil {
			return err
		}

		direction, n := "up", 1
		if target < current {
			direction, n = "down", -1
		}
		next := mg.neighbor(current, n)

		err := mg.m.Steps(n)
		metrics.ObserveMigrationStep(direction, next, err)
		if err != nil {
			return &MigrationError{From: current, To: next, Err: mg.restore(current, err)}
		}

		logger.Info("Migration step applied",
			slog.String("direction", direction),
			slog.Uint64("from", uint64(current)),
			slog.Uint64("to", uint64(next)))
		current = next
	}
	return nil
}

// Force sets the version marker without running any migration and clears
// the dirty flag. Version 0 removes the marker.
func (mg *Migrator) Force(version uint) error {
	if version != 0 && mg.index(version) < 0 {
		return fmt.Errorf("%w: %d", ErrUnknownVersion, version)
	}
	if err := mg.m.Force(markerVersion(version)); err != nil {
		return fmt.Errorf("force version %d: %w", version, err)
	}
	logger.Warn("Schema version forced", slog.Uint64("version", uint64(version)))
	return nil
}

// Close releases the source and database handles.
func (mg *Migrator) Close() error {
	srcErr, dbErr := mg.m.Close()
	return errors.Join(srcErr, dbErr)
}

// restore puts the version marker back on the last completed step. The
// failed step's statements were rolled back with its transaction.
func (mg *Migrator) restore(version uint, cause error) error {
	if err := mg.m.Force(markerVersion(version)); err != nil {
		logger.Error("Failed to restore schema version marker",
			slog.Uint64("version", uint64(version)),
			slog.String("error", err.Error()))
		return errors.Join(cause, fmt.Errorf("restore version marker: %w", err))
	}
	return cause
}

func (mg *Migrator) index(version uint) int {
	for i, v := range mg.versions {
		if v == version {
			return i
		}
	}
	return -1
}

// neighbor returns the version one step away from current in direction n.
func (mg *Migrator) neighbor(current uint, n int) uint {
	i := mg.index(current)
	switch {
	case n > 0 && current == 0:
		return mg.versions[0]
	case n > 0:
		return mg.versions[i+1]
	case i <= 0:
		return 0
	default:
		return mg.versions[i-1]
	}
}

func markerVersion(version uint) int {
	if version == 0 {
		return migratedb.NilVersion
	}
	return int(version)
}

// migrateLogger routes golang-migrate output through the package logger.
type migrateLogger struct{}

func (migrateLogger) Printf(format string, v ...any) {
	logger.Debug(strings.TrimSpace(fmt.Sprintf(format, v...)), slog.String("component", "migrate"))
}

func (migrateLogger) Verbose() bool {
	return logger.Level() <= slog.LevelDebug
}
