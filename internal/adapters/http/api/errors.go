package api

import "errors"

// Sentinel kinds for API errors.
var (
	ErrUnavailable = errors.New("assignment unavailable")
	ErrAssignment  = errors.New("assignment failed")
)
