package domain

import "errors"

var (
	ErrNotFound     = errors.New("not found")
	ErrInvalidInput = errors.New("invalid input")
	// ErrConflict is returned by the store when a unique key is already taken.
	// For certificates it means "already issued", not a failure.
	ErrConflict = errors.New("conflict")
	// ErrQueryCapability marks a query the store cannot serve as asked
	// (typically a filter combined with ordering and no composite index).
	ErrQueryCapability = errors.New("query capability unavailable")
)
