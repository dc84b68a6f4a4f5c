package repository

import "errors"

// Sentinel kinds for cache errors.
var (
	ErrNotFound = errors.New("snapshot not found")
)
