package database

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// TimestampedTables lists every entity table whose created_at/updated_at
// columns are maintained by the stamp_timestamps trigger.
var TimestampedTables = []string{
	"users",
	"articles",
	"comments",
	"favorite_articles",
	"article_tags",
	"followers",
}

var (
	// ErrTimestampPolicy is returned when an entity table lacks its enabled
	// timestamp trigger.
	ErrTimestampPolicy = errors.New("timestamp trigger missing")

	// ErrSchemaNotCurrent is returned when the applied schema is behind the
	// embedded migrations or dirty.
	ErrSchemaNotCurrent = errors.New("schema is not at the latest version")
)

const missingTriggersQuery = `
SELECT t.name
FROM unnest($1::text[]) AS t(name)
WHERE NOT EXISTS (
    SELECT 1
    FROM pg_catalog.pg_trigger tg
    JOIN pg_catalog.pg_class c ON c.oid = tg.tgrelid
    JOIN pg_catalog.pg_proc p ON p.oid = tg.tgfoid
    WHERE c.relname = t.name
      AND pg_catalog.pg_table_is_visible(c.oid)
      AND tg.tgname = t.name || '_stamp_timestamps'
      AND p.proname = 'stamp_timestamps'
      AND tg.tgenabled <> 'D'
)
ORDER BY t.name`

// VerifyTimestampPolicy checks that every table in TimestampedTables has an
// enabled stamp_timestamps trigger.
func VerifyTimestampPolicy(ctx context.Context, db DBTX) error {
	rows, err := db.Query(ctx, missingTriggersQuery, TimestampedTables)
	if err != nil {
		return fmt.Errorf("query timestamp triggers: %w", err)
	}
	missing, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return fmt.Errorf("scan timestamp triggers: %w", err)
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w on %s", ErrTimestampPolicy, strings.Join(missing, ", "))
	}
	return nil
}

// SchemaVersion reads the version marker written by the migrator. A database
// that was never migrated reports version 0.
func SchemaVersion(ctx context.Context, db DBTX) (uint, bool, error) {
	var (
		version int64
		dirty   bool
	)
	err := db.QueryRow(ctx, `SELECT version, dirty FROM schema_migrations LIMIT 1`).Scan(&version, &dirty)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, false, nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "42P01" { // undefined_table
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("read schema version: %w", err)
	}
	return uint(version), dirty, nil
}

// CheckSchema reports whether the database is clean and at LatestVersion.
func CheckSchema(ctx context.Context, db DBTX) error {
	version, dirty, err := SchemaVersion(ctx, db)
	if err != nil {
		return err
	}
	if dirty {
		return fmt.Errorf("%w: version %d is dirty", ErrSchemaNotCurrent, version)
	}
	if latest := LatestVersion(); version != latest {
		return fmt.Errorf("%w: at %d, latest is %d", ErrSchemaNotCurrent, version, latest)
	}
	return nil
}
