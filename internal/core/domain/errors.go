package domain

import "errors"

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnknownStream indicates a stream name outside the closed set.
	ErrUnknownStream = errors.New("unknown stream")

	// ErrSyncInProgress indicates a sync is already running.
	ErrSyncInProgress = errors.New("sync in progress")

	// ErrAuthRequired indicates the API requires authentication but no
	// token is configured.
	ErrAuthRequired = errors.New("authentication required")

	// ErrAuthInvalid indicates the configured token was rejected.
	ErrAuthInvalid = errors.New("authentication invalid")

	// ErrEngineClosed indicates the sync engine has been shut down.
	ErrEngineClosed = errors.New("engine closed")
)
