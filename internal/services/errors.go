package services

import (
	"errors"
	"fmt"
)

// ErrInsufficientFunds is returned when a withdrawal or transfer would take an
// account below zero. Nothing is written when it is returned.
var ErrInsufficientFunds = errors.New("insufficient funds")

// errVersionConflict marks a balance write whose version predicate matched no
// row. The attempt is rolled back and retried.
var errVersionConflict = errors.New("optimistic lock failed")

// ValidationError reports an out-of-range or malformed argument.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// NotFoundError reports a missing account. Which is "account" for single
// account operations and "sender" or "recipient" for transfers.
type NotFoundError struct {
	Which string
	ID    int64
}

func (e *NotFoundError) Error() string {
	if e.Which == "" || e.Which == "account" {
		return fmt.Sprintf("account %d not found", e.ID)
	}
	return fmt.Sprintf("%s account %d not found", e.Which, e.ID)
}

// ConflictError means every attempt of an operation lost a write race.
// The operation was not applied; the caller may retry it.
type ConflictError struct {
	Op       string
	Attempts int
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s: concurrent update conflict after %d attempts", e.Op, e.Attempts)
}

// StorageError wraps a failure of the underlying store.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("%s: storage failure: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }
