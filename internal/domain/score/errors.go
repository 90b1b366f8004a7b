package score

import "errors"

// Sentinel kinds for score decoding errors.
var (
	ErrMalformedVector = errors.New("malformed score field vector")
)
