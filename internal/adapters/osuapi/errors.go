package osuapi

import "errors"

// Sentinel kinds for metadata API errors.
var (
	ErrUnavailable = errors.New("metadata api unavailable")
)
