package store

import "errors"

var (
	// ErrInit indicates the storage location is unwritable or the
	// existing schema is incompatible. Fatal for the store lifecycle.
	ErrInit = errors.New("store initialization failed")

	// ErrConstraint indicates an invalid status, a missing test id, a
	// negative duration, or a run id referencing no existing run.
	ErrConstraint = errors.New("constraint violation")

	// ErrStorage indicates an underlying persistence failure. Write
	// failures are never swallowed; the store does not retry.
	ErrStorage = errors.New("storage failure")
)
