package domain

import "errors"

var (
	// ErrCountryUnknown is returned when a country is not tracked.
	ErrCountryUnknown = errors.New("country not tracked")

	// ErrResultNotFound is returned when no aggregation result exists yet.
	ErrResultNotFound = errors.New("aggregation result not found")

	// ErrResourceUnavailable is returned when the inference resources could
	// not be acquired. Retry policy belongs to the caller.
	ErrResourceUnavailable = errors.New("inference resources unavailable")
)
