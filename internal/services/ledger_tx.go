package services

import (
	"context"
	"database/sql"
	"log"
	"time"
)

// withTx runs fn in a read-committed transaction and commits it. When an
// attempt loses a write race (version predicate miss, serialization failure or
// deadlock) it is rolled back and fn runs again from the start, up to
// cfg.MaxRetries extra times. fn must not keep state across attempts.
func (s *LedgerService) withTx(ctx context.Context, op string, fn func(tx *sql.Tx) error) error {
	attempts := s.cfg.MaxRetries + 1
	for attempt := 1; attempt <= attempts; attempt++ {
		err := s.runTx(ctx, op, fn)
		if err == nil {
			return nil
		}
		if !isRetryable(err) {
			return err
		}

		log.Printf("[LEDGER] %s attempt %d/%d lost a write race: %v", op, attempt, attempts, err)
		if attempt == attempts {
			break
		}

		select {
		case <-ctx.Done():
			return &StorageError{Op: op, Err: ctx.Err()}
		case <-time.After(time.Duration(attempt) * s.cfg.RetryBackoff):
		}
	}
	return &ConflictError{Op: op, Attempts: attempts}
}

func (s *LedgerService) runTx(ctx context.Context, op string, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return &StorageError{Op: op, Err: err}
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return &StorageError{Op: op, Err: err}
	}
	return nil
}
