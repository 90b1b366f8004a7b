package rankindex

import (
	"context"
	"math"
	"math/rand"
	"sync"

	"github.com/aisuru/score-server/pkg/metrics"
)

// Treap-based, in-memory Index implementation.
//
// Ordering: rating DESC, then userID ASC (deterministic). The BST
// comparator's "less" means ranks earlier, so an in-order position count
// yields the 1-based rank in O(log n) via subtree sizes.

// ratingScale controls fixed-point scaling from float64. Six decimal
// places comfortably cover performance-rating precision.
const ratingScale = 1_000_000

type ratingFP int64

func toFixedPoint(x float64) ratingFP {
	if math.IsNaN(x) {
		return 0
	}
	if math.IsInf(x, 1) {
		return ratingFP(math.MaxInt64)
	}
	if math.IsInf(x, -1) {
		return ratingFP(math.MinInt64)
	}
	scaled := x * ratingScale
	if scaled > float64(math.MaxInt64) {
		return ratingFP(math.MaxInt64)
	}
	if scaled < float64(math.MinInt64) {
		return ratingFP(math.MinInt64)
	}
	return ratingFP(math.Round(scaled))
}

type node struct {
	userID int64
	rating ratingFP
	prio   uint64
	left   *node
	right  *node
	size   int
}

func nsize(n *node) int {
	if n == nil {
		return 0
	}
	return n.size
}

func fix(n *node) {
	if n != nil {
		n.size = 1 + nsize(n.left) + nsize(n.right)
	}
}

// less reports whether (aRating, aID) ranks earlier than (bRating, bID).
func less(aRating ratingFP, aID int64, bRating ratingFP, bID int64) bool {
	if aRating != bRating {
		return aRating > bRating // higher rating ranks earlier
	}
	return aID < bID // tie-breaker by id asc
}

func rotateRight(y *node) *node {
	x := y.left
	t2 := x.right
	x.right = y
	y.left = t2
	fix(y)
	fix(x)
	return x
}

func rotateLeft(x *node) *node {
	y := x.right
	t2 := y.left
	y.left = x
	x.right = t2
	fix(x)
	fix(y)
	return y
}

func insert(n *node, userID int64, rating ratingFP, prio uint64) *node {
	if n == nil {
		return &node{userID: userID, rating: rating, prio: prio, size: 1}
	}
	if less(rating, userID, n.rating, n.userID) {
		n.left = insert(n.left, userID, rating, prio)
		if n.left.prio > n.prio {
			n = rotateRight(n)
		}
	} else {
		n.right = insert(n.right, userID, rating, prio)
		if n.right.prio > n.prio {
			n = rotateLeft(n)
		}
	}
	fix(n)
	return n
}

func deleteNode(n *node, userID int64, rating ratingFP) *node {
	if n == nil {
		return nil
	}
	if rating == n.rating && userID == n.userID {
		// Rotate the higher-priority child up until the node is a leaf.
		if n.left == nil {
			return n.right
		}
		if n.right == nil {
			return n.left
		}
		if n.left.prio > n.right.prio {
			n = rotateRight(n)
			n.right = deleteNode(n.right, userID, rating)
		} else {
			n = rotateLeft(n)
			n.left = deleteNode(n.left, userID, rating)
		}
	} else if less(rating, userID, n.rating, n.userID) {
		n.left = deleteNode(n.left, userID, rating)
	} else {
		n.right = deleteNode(n.right, userID, rating)
	}
	fix(n)
	return n
}

// position counts the in-order position (1-based) of the given entry.
func position(n *node, userID int64, rating ratingFP) int {
	pos := 1
	for n != nil {
		if rating == n.rating && userID == n.userID {
			return pos + nsize(n.left)
		}
		if less(rating, userID, n.rating, n.userID) {
			n = n.left
		} else {
			pos += nsize(n.left) + 1
			n = n.right
		}
	}
	return 0
}

type board struct {
	root   *node
	byUser map[int64]ratingFP
}

// TreapIndex is the in-process Index, one treap per board.
type TreapIndex struct {
	mu     sync.RWMutex
	boards map[string]*board
	rng    *rand.Rand
}

// NewTreapIndex constructs an empty in-process rank index.
func NewTreapIndex() *TreapIndex {
	return &TreapIndex{
		boards: make(map[string]*board),
		rng:    rand.New(rand.NewSource(rand.Int63())), //nolint:gosec // treap priorities need no crypto strength
	}
}

// Upsert writes the user's rating into the board, replacing any previous
// entry. O(log n) expected.
func (t *TreapIndex) Upsert(ctx context.Context, name string, userID int64, rating float64) error {
	fp := toFixedPoint(rating)

	t.mu.Lock()
	defer t.mu.Unlock()

	b, ok := t.boards[name]
	if !ok {
		b = &board{byUser: make(map[int64]ratingFP)}
		t.boards[name] = b
	}

	if old, exists := b.byUser[userID]; exists {
		if old == fp {
			return nil
		}
		b.root = deleteNode(b.root, userID, old)
	}
	b.byUser[userID] = fp
	b.root = insert(b.root, userID, fp, t.rng.Uint64())

	metrics.RecordRankIndexWrite()
	return nil
}

// Rank returns the user's 1-based rank on the board in O(log n), 0 when
// the user is absent.
func (t *TreapIndex) Rank(ctx context.Context, name string, userID int64) (int, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	b, ok := t.boards[name]
	if !ok {
		return 0, nil
	}
	fp, exists := b.byUser[userID]
	if !exists {
		return 0, nil
	}
	return position(b.root, userID, fp), nil
}

// Count returns the number of users on the board.
func (t *TreapIndex) Count(name string) int {
	t.mu.RLock()
	defer t.mu.RUnlock()

	b, ok := t.boards[name]
	if !ok {
		return 0
	}
	return len(b.byUser)
}
