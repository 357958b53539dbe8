package errs

import "errors"

// Sentinel errors shared by the retrieval core. Callers match them with
// errors.Is; everything else is wrapped upstream failure.
var (
	// ErrConfig reports malformed splitter or store parameters.
	ErrConfig = errors.New("invalid configuration")

	// ErrSizeMismatch reports parallel arrays of unequal length on insert.
	ErrSizeMismatch = errors.New("parallel array size mismatch")

	// ErrDimensionMismatch reports an embedding dimensionality conflict
	// between ingestion and query time. It is never retried automatically.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")

	// ErrNoResult reports that a retrieval strategy found nothing. It is the
	// only error the query router recovers from locally (fallback chain).
	ErrNoResult = errors.New("no query result")

	// ErrNotFound reports a missing record where absence is unexpected.
	ErrNotFound = errors.New("record not found")
)
