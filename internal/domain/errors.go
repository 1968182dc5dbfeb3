package domain

import "errors"

var (
	// ErrNotFound covers missing projects, pool entries and selections.
	ErrNotFound = errors.New("not found")
	// ErrGeocodeFailed is returned when the resolver times out or finds no
	// match; callers degrade gracefully, never crash on it.
	ErrGeocodeFailed = errors.New("geocoding failed")
	// ErrLimitExceeded rejects a selection that would exceed the per-project cap.
	ErrLimitExceeded = errors.New("selection limit exceeded")
	// ErrEmptySelection rejects validating a project with zero validated rows.
	ErrEmptySelection = errors.New("no validated comparable selected")
	// ErrInvalidFilter rejects malformed search filters before any query runs.
	ErrInvalidFilter = errors.New("invalid filter")
)
