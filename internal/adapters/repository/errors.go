package repository

import "errors"

// Sentinel kinds for result store errors.
var (
	ErrNotFound     = errors.New("detection run not found")
	ErrInvalidLimit = errors.New("invalid result limit")
	ErrEmptyRunID   = errors.New("empty run id")
)
