package domain

import "errors"

var (
	ErrNotFound = errors.New("not found")
	// ErrConflict reports a unique-constraint race. Callers treat it as the
	// row already existing.
	ErrConflict = errors.New("already exists")
	// ErrConfiguration aborts a single brand cycle, never the process.
	ErrConfiguration = errors.New("configuration error")
)
