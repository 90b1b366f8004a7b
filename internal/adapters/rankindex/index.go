// Package rankindex defines the ordered numeric index backing global and
// country rank queries, keyed by performance rating.
package rankindex

import "context"

// Index maps user id -> performance rating per board, answering 1-based
// "rank of user" queries descending by rating. Absence yields rank 0.
//
// Board keys are "<mode>" for global boards and "<mode>:<country>" for
// country-scoped boards.
type Index interface {
	// Upsert writes the user's rating into the board.
	Upsert(ctx context.Context, board string, userID int64, rating float64) error

	// Rank returns the user's 1-based rank on the board, 0 when absent.
	Rank(ctx context.Context, board string, userID int64) (int, error)
}
