package store

import "errors"

// Sentinel kinds for store errors.
var (
	ErrNoDocument = errors.New("no document matched")
)
