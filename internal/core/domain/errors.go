package domain

import "errors"

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists indicates an entity already exists.
	ErrAlreadyExists = errors.New("already exists")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrSnapshotInProgress indicates another ingestion for the same
	// document reference is already in flight. Concurrent normalization
	// runs for one document are disallowed.
	ErrSnapshotInProgress = errors.New("snapshot already in progress for this document")

	// Source Errors.
	//
	// The block source distinguishes transient failures (retry) from
	// fatal ones (abort the snapshot).

	// ErrSourceRateLimited indicates the source API rate limit was hit.
	// Transient: the fetch may be retried.
	ErrSourceRateLimited = errors.New("source rate limited")

	// ErrSourceUnavailable indicates a transient source-side failure
	// (network error, 5xx).
	ErrSourceUnavailable = errors.New("source unavailable")

	// ErrSourceNotFound indicates the referenced document or block does
	// not exist at the source. Fatal for the current snapshot.
	ErrSourceNotFound = errors.New("source object not found")

	// ErrSourceAuth indicates the source rejected the credential.
	// Fatal for the current snapshot.
	ErrSourceAuth = errors.New("source authentication failed")

	// ErrMalformedBlock indicates the source returned a node shape the
	// normalizer cannot map to an element. Fatal for the current snapshot.
	ErrMalformedBlock = errors.New("malformed source block")
)
