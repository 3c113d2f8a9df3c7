package services

import (
	"errors"

	"github.com/jackc/pgconn"
	"github.com/lib/pq"
)

// PostgreSQL SQLSTATE codes the ledger reacts to.
const (
	sqlStateSerializationFailure = "40001"
	sqlStateDeadlockDetected     = "40P01"
	sqlStateUniqueViolation      = "23505"
)

// sqlState extracts the SQLSTATE from either supported driver's error type.
func sqlState(err error) string {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

// isRetryable reports whether err came from losing a write race, in which case
// rerunning the whole transaction is safe.
func isRetryable(err error) bool {
	if errors.Is(err, errVersionConflict) {
		return true
	}
	switch sqlState(err) {
	case sqlStateSerializationFailure, sqlStateDeadlockDetected:
		return true
	}
	return false
}

func isUniqueViolation(err error) bool {
	return sqlState(err) == sqlStateUniqueViolation
}
