package storage

import "errors"

// Storage errors shared by all implementations.
var (
	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateKey is returned when attempting to insert a record
	// with a key that already exists. Stores are append-only.
	ErrDuplicateKey = errors.New("duplicate key: append-only store does not allow updates")

	// ErrInvalidInput is returned when input validation fails.
	ErrInvalidInput = errors.New("invalid input")

	// ErrRevisionConflict is returned when an insert would produce
	// overlapping revision intervals for a (table, series, date) key.
	// It signals a revision tracker bug and aborts that table's ingestion.
	ErrRevisionConflict = errors.New("revision conflict: overlapping intervals")

	// ErrAlreadyInitialized is returned by setup when the raw store is
	// already populated and overwrite was not requested.
	ErrAlreadyInitialized = errors.New("raw store already initialized: use overwrite to replace")
)
