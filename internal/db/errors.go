package db

import "errors"

// Domain-level database error sentinels.
var (
	// Indicator errors
	ErrIndicatorNotFound = errors.New("indicator not found")

	// Time-series errors
	ErrObservationNotFound = errors.New("no observations for indicator")
	ErrInvalidProvenance   = errors.New("invalid provenance")
	ErrNonFiniteValue      = errors.New("value is not a finite number")

	// Sync log errors
	ErrSyncLogNotFound = errors.New("sync log not found")

	// Config errors
	ErrConfigNotFound = errors.New("config key not found")
)
