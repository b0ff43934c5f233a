package repository

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"conduit/internal/domain"
	"conduit/internal/logger"
	"conduit/internal/metrics"
)

// SQLSTATE codes of integrity constraint violations.
const (
	codeNotNullViolation    = "23502"
	codeForeignKeyViolation = "23503"
	codeUniqueViolation     = "23505"
	codeCheckViolation      = "23514"
)

// classify maps driver errors to the domain taxonomy: constraint violations
// become *domain.ConstraintViolation and a missing row becomes
// domain.ErrNotFound. Anything else is wrapped with op.
func classify(table, op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%s %s: %w", op, table, domain.ErrNotFound)
	}

	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return fmt.Errorf("%s %s: %w", op, table, err)
	}

	var kind domain.ViolationKind
	switch pgErr.Code {
	case codeUniqueViolation:
		kind = domain.ViolationUnique
	case codeForeignKeyViolation:
		kind = domain.ViolationForeignKey
	case codeNotNullViolation:
		kind = domain.ViolationNotNull
	case codeCheckViolation:
		kind = domain.ViolationCheck
	default:
		return fmt.Errorf("%s %s: %w", op, table, err)
	}

	cv := &domain.ConstraintViolation{
		Kind:       kind,
		Table:      table,
		Constraint: pgErr.ConstraintName,
		Column:     pgErr.ColumnName,
		Err:        err,
	}
	if pgErr.TableName != "" {
		cv.Table = pgErr.TableName
	}

	metrics.ObserveConstraintViolation(string(kind), cv.Constraint)
	logger.Debug("Write rejected by constraint",
		slog.String("operation", op),
		slog.String("table", cv.Table),
		slog.String("kind", string(kind)),
		slog.String("constraint", cv.Constraint))

	return cv
}
