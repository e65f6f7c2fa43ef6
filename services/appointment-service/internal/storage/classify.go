package storage

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/avik-sarkar/autoshop/services/appointment-service/internal/scheduling"
)

// SQLSTATE codes Postgres raises for contention expected to clear on an
// immediate retry.
const (
	codeSerializationFailure = "40001"
	codeDeadlockDetected     = "40P01"
	codeLockNotAvailable     = "55P03"
)

// Classify maps a storage failure onto the scheduling retry classes using
// typed driver errors, never message substrings. Context expiry is fatal on
// purpose: deadlines must not enter the transient-retry path.
func Classify(err error) scheduling.ErrorClass {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return scheduling.ClassFatal
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return scheduling.ClassNotFound
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case codeSerializationFailure, codeDeadlockDetected, codeLockNotAvailable:
			return scheduling.ClassTransient
		case "23505", "23P01":
			return scheduling.ClassConflict
		}
	}
	return scheduling.ClassFatal
}
