package api

import "errors"

// Sentinel kinds for API errors.
var (
	// ErrBadRequest marks malformed query or form parameters.
	ErrBadRequest = errors.New("bad request")
)
