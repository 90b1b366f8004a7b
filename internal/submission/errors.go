package submission

import "errors"

// Sentinel kinds for per-request submission failures. The transport layer
// maps each to its wire response; the pipeline never writes responses
// itself.
var (
	// ErrMalformedPayload means the payload could not be decoded into a
	// valid field vector. Logged, answered silently.
	ErrMalformedPayload = errors.New("malformed submission payload")

	// ErrNotLoggedIn means the identity check rejected the credentials.
	// Answered silently, distinct from all other failures.
	ErrNotLoggedIn = errors.New("not logged in")

	// ErrUnknownBeatmap means no tier of the beatmap cache knows the
	// submitted content hash.
	ErrUnknownBeatmap = errors.New("unknown beatmap")

	// ErrDuplicateScore means a score with the same content checksum was
	// already accepted.
	ErrDuplicateScore = errors.New("duplicate score")

	// ErrScoreFailed means the play did not pass. The score is still
	// recorded; only the chart response is withheld.
	ErrScoreFailed = errors.New("score did not pass")

	// ErrUnknownScore means no score, or no stored replay, exists for the
	// requested score id.
	ErrUnknownScore = errors.New("unknown score")
)
