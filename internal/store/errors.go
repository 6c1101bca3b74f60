// Package store defines the storage-facing types shared by the local cache
// implementation and its consumers: sentinel errors, the query
// specification, and sync batch inputs/results.
package store

import "errors"

// Sentinel errors returned by the local store.
var (
	// ErrNotFound means the requested entity does not exist or is soft-deleted.
	ErrNotFound = errors.New("store: not found")

	// ErrAlreadyExists means a row with the same key already exists.
	ErrAlreadyExists = errors.New("store: already exists")

	// ErrCacheNotReady means no full sync has completed yet; queries cannot
	// be answered. Distinct from a generic query failure so callers can
	// degrade gracefully.
	ErrCacheNotReady = errors.New("store: cache not ready")

	// ErrInvalidFilter means a query spec referenced an unknown field or an
	// unsupported modifier for that field. Raised before any SQL runs.
	ErrInvalidFilter = errors.New("store: invalid filter")
)
