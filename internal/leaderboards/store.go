package leaderboards

import (
	"context"
	"fmt"
	"sync"

	"github.com/aisuru/score-server/internal/adapters/store"
	"github.com/aisuru/score-server/internal/domain/beatmap"
	"github.com/aisuru/score-server/internal/domain/mode"
	"github.com/aisuru/score-server/internal/domain/score"
	"github.com/aisuru/score-server/internal/domain/user"
	"github.com/aisuru/score-server/pkg/logger"
	"github.com/aisuru/score-server/pkg/metrics"
)

type key struct {
	md5  string
	mode mode.Mode
}

// Store memoizes leaderboards per (beatmap, mode), building each from the
// persistent score records on first access.
type Store struct {
	mu     sync.Mutex
	boards map[key]*Leaderboard

	db     store.DB
	logger logger.Logger
}

// NewStore creates an empty leaderboard store over the given database.
func NewStore(db store.DB) *Store {
	return &Store{
		boards: make(map[key]*Leaderboard),
		db:     db,
		logger: logger.Named("leaderboards"),
	}
}

// Fetch returns the leaderboard for (beatmap, mode), building it on first
// access from the store's BEST score records joined with each submitter's
// current name, privileges and country.
func (s *Store) Fetch(ctx context.Context, bm *beatmap.Beatmap, m mode.Mode) (*Leaderboard, error) {
	k := key{md5: bm.MD5, mode: m}

	s.mu.Lock()
	if lb, ok := s.boards[k]; ok {
		s.mu.Unlock()
		return lb, nil
	}
	s.mu.Unlock()

	lb, err := s.build(ctx, bm, m)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	// Another request may have built it concurrently; first one wins.
	if existing, ok := s.boards[k]; ok {
		return existing, nil
	}
	s.boards[k] = lb
	return lb, nil
}

func (s *Store) build(ctx context.Context, bm *beatmap.Beatmap, m mode.Mode) (*Leaderboard, error) {
	scoreDocs, err := s.db.Collection(store.Scores).Find(ctx, store.M{
		"map_md5": bm.MD5,
		"status":  int64(score.StatusBest),
		"mode":    int64(m),
	})
	if err != nil {
		return nil, fmt.Errorf("leaderboard scores: %w", err)
	}

	userIDs := make([]any, 0, len(scoreDocs))
	for _, doc := range scoreDocs {
		userIDs = append(userIDs, doc["user_id"])
	}

	users := map[int64]store.M{}
	if len(userIDs) > 0 {
		userDocs, err := s.db.Collection(store.Users).Find(ctx,
			store.M{"id": store.In{Values: userIDs}})
		if err != nil {
			return nil, fmt.Errorf("leaderboard users: %w", err)
		}
		for _, doc := range userDocs {
			if id, ok := numeric(doc["id"]); ok {
				users[id] = doc
			}
		}
	}

	lb := newLeaderboard(m)
	for _, doc := range scoreDocs {
		sc, err := score.FromDoc(doc)
		if err != nil {
			s.logger.Warn(ctx, "skipping bad score document", logger.Error(err))
			continue
		}
		if u, ok := users[sc.UserID]; ok {
			if name, ok := u["name"].(string); ok {
				sc.Username = name
			}
			if privs, ok := numeric(u["privileges"]); ok {
				sc.UserPrivs = user.Privileges(privs)
			}
			if country, ok := u["country"].(string); ok {
				sc.UserCountry = country
			}
		}
		lb.scores = append(lb.scores, sc)
	}
	lb.sortLocked()

	metrics.RecordLeaderboardBuild()
	return lb, nil
}

// Cached returns the leaderboards currently held in memory. Used by the
// invalidation handlers to patch privilege bits without a rebuild.
func (s *Store) Cached() []*Leaderboard {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*Leaderboard, 0, len(s.boards))
	for _, lb := range s.boards {
		out = append(out, lb)
	}
	return out
}

func numeric(v any) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case int:
		return int64(n), true
	case int32:
		return int64(n), true
	case float64:
		return int64(n), true
	default:
		return 0, false
	}
}
