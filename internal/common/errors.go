// Package common defines sentinel errors and constants shared by the local
// store, the sync engine and the CLI. Callers should use errors.Is to match
// these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrNotFound = errors.New("not found")

	// ErrLocalStorageCorruption reports a broken local invariant, e.g. an
	// orphaned tag link. It is fatal for the affected record only.
	ErrLocalStorageCorruption = errors.New("local storage corruption")

	// Validation errors.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrConcurrentModification is returned when a record kept changing
	// between a read and the write based on it.
	ErrConcurrentModification = errors.New("concurrent modification")

	// ErrNoAccount is returned when an operation needs a signed-in account.
	ErrNoAccount = errors.New("no account")
)
