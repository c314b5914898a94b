package repository

import "errors"

// Sentinel kinds for store errors.
var (
	ErrInvalidURL = errors.New("invalid store url")
	ErrStore      = errors.New("store operation failed")
)
