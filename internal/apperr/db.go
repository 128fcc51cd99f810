package apperr

import (
	"context"
	"errors"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// MapDBError turns pgx and postgres errors into the taxonomy:
//   - pgx.ErrNoRows → NotFound
//   - unique violation → Conflict
//   - check violation → InvalidTransition (raised by the jobs guard trigger)
//   - everything else, timeouts included → Persistence
func MapDBError(err error, message string) error {
	if err == nil {
		return nil
	}

	var appErr *Error
	if errors.As(err, &appErr) {
		return err
	}

	if errors.Is(err, pgx.ErrNoRows) {
		return &Error{Code: CodeNotFound, Message: message, Cause: err}
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return &Error{Code: CodePersistence, Message: message + ": timed out", Cause: err}
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgerrcode.UniqueViolation:
			return &Error{Code: CodeConflict, Message: message + ": already exists", Field: pgErr.ColumnName, Cause: err}
		case pgerrcode.CheckViolation:
			return &Error{Code: CodeInvalidTransition, Message: message, Cause: err}
		}
	}

	return &Error{Code: CodePersistence, Message: message, Cause: err}
}
