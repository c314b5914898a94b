package api

import "errors"

// Sentinel kinds for API errors.
var (
	ErrStreamUnsupported = errors.New("streaming unsupported")
)
