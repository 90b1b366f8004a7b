// Package leaderboards maintains the in-memory ranked score lists, one per
// (beatmap, mode) pair.
package leaderboards

import (
	"sort"
	"sync"

	"github.com/aisuru/score-server/internal/domain/mode"
	"github.com/aisuru/score-server/internal/domain/score"
	"github.com/aisuru/score-server/internal/domain/user"
	"github.com/aisuru/score-server/pkg/metrics"
)

// Leaderboard is the ordered best-score list for one (beatmap, mode).
// Mutations on the same leaderboard are serialized by its own mutex;
// independent leaderboards mutate fully in parallel.
type Leaderboard struct {
	mu     sync.Mutex
	mode   mode.Mode
	scores []*score.Score
}

// newLeaderboard creates an empty leaderboard for a mode.
func newLeaderboard(m mode.Mode) *Leaderboard {
	return &Leaderboard{mode: m}
}

// Len returns the number of entries.
func (l *Leaderboard) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.scores)
}

// sortLocked re-sorts descending by the mode's ranking metric. The sort is
// stable so ties keep their original relative order. Callers hold l.mu.
func (l *Leaderboard) sortLocked() {
	if l.mode.RewardsPerformance() {
		sort.SliceStable(l.scores, func(i, j int) bool {
			return l.scores[i].PP > l.scores[j].PP
		})
		return
	}
	sort.SliceStable(l.scores, func(i, j int) bool {
		return l.scores[i].Value > l.scores[j].Value
	})
}

// AddScore inserts a new best score, evicting any previous entry by the
// same user first so at most one BEST entry per user survives.
func (l *Leaderboard) AddScore(s *score.Score) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.removeUserLocked(s.UserID)
	l.scores = append(l.scores, s)
	l.sortLocked()
	metrics.RecordLeaderboardMutation()
}

// FindUserScore returns the user's entry and its 1-based rank.
func (l *Leaderboard) FindUserScore(userID int64) (*score.Score, int, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for idx, s := range l.scores {
		if s.UserID == userID {
			return s, idx + 1, true
		}
	}
	return nil, 0, false
}

// FindScoreRank returns the 1-based rank of a score id, 0 when absent.
func (l *Leaderboard) FindScoreRank(scoreID int64) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	for idx, s := range l.scores {
		if s.ID == scoreID {
			return idx + 1
		}
	}
	return 0
}

// RemoveUser drops the user's entry if present.
func (l *Leaderboard) RemoveUser(userID int64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.removeUserLocked(userID)
}

func (l *Leaderboard) removeUserLocked(userID int64) {
	for idx, s := range l.scores {
		if s.UserID == userID {
			l.scores = append(l.scores[:idx], l.scores[idx+1:]...)
			metrics.RecordLeaderboardMutation()
			return
		}
	}
}

// PatchPrivileges updates the denormalized privilege bitmask on the
// user's entries after a user-privileges event.
func (l *Leaderboard) PatchPrivileges(userID int64, privs user.Privileges) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for _, s := range l.scores {
		if s.UserID == userID {
			s.UserPrivs = privs
		}
	}
}

// Visible returns the entries of users allowed on public leaderboards, in
// rank order, capped at limit when positive.
func (l *Leaderboard) Visible(limit int) []*score.Score {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]*score.Score, 0, len(l.scores))
	for _, s := range l.scores {
		if s.UserPrivs&user.Disallowed != 0 {
			continue
		}
		out = append(out, s)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}
