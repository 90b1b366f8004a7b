package leaderboards

import (
	"context"
	"testing"

	"github.com/aisuru/score-server/internal/adapters/store"
	"github.com/aisuru/score-server/internal/domain/beatmap"
	"github.com/aisuru/score-server/internal/domain/mode"
	"github.com/aisuru/score-server/internal/domain/score"
	"github.com/aisuru/score-server/internal/domain/user"
)

func seedScore(t *testing.T, db store.DB, id, userID, value int64, status score.Status, m mode.Mode) {
	t.Helper()
	sc := &score.Score{
		ID:     id,
		MapMD5: "0c72e9d2bf885d26cdc4fe9870d13e2f",
		UserID: userID,
		Mode:   m,
		Value:  value,
		Status: status,
		Passed: true,
	}
	if err := db.Collection(store.Scores).InsertOne(context.Background(), sc.ToDoc()); err != nil {
		t.Fatal(err)
	}
}

func TestStoreFetch(t *testing.T) {
	ctx := context.Background()
	db := store.NewMemoryDB()

	seedScore(t, db, 1, 10, 500, score.StatusBest, mode.Standard)
	seedScore(t, db, 2, 20, 900, score.StatusBest, mode.Standard)
	// Superseded and wrong-mode rows must not appear.
	seedScore(t, db, 3, 10, 400, score.StatusSubmitted, mode.Standard)
	seedScore(t, db, 4, 30, 999, score.StatusBest, mode.Taiko)

	users := db.Collection(store.Users)
	_ = users.InsertOne(ctx, store.M{"id": int64(10), "name": "alice", "privileges": int64(0), "country": "US"})
	_ = users.InsertOne(ctx, store.M{"id": int64(20), "name": "bob", "privileges": int64(user.Banned), "country": "DE"})

	s := NewStore(db)
	bm := &beatmap.Beatmap{MD5: "0c72e9d2bf885d26cdc4fe9870d13e2f", ID: 741}

	lb, err := s.Fetch(ctx, bm, mode.Standard)
	if err != nil {
		t.Fatal(err)
	}

	if lb.Len() != 2 {
		t.Fatalf("built %d entries, want 2", lb.Len())
	}

	sc, rank, ok := lb.FindUserScore(20)
	if !ok || rank != 1 {
		t.Fatalf("user 20: rank %d ok=%v, want rank 1", rank, ok)
	}
	if sc.Username != "bob" || sc.UserCountry != "DE" {
		t.Errorf("user join missing: %q %q", sc.Username, sc.UserCountry)
	}
	if sc.UserPrivs&user.Banned == 0 {
		t.Error("privilege join missing")
	}

	// The banned entry stays in the board but off the public listing.
	if visible := lb.Visible(0); len(visible) != 1 || visible[0].Username != "alice" {
		t.Errorf("visible = %v", visible)
	}

	again, err := s.Fetch(ctx, bm, mode.Standard)
	if err != nil {
		t.Fatal(err)
	}
	if again != lb {
		t.Error("Fetch rebuilt a memoized leaderboard")
	}

	if len(s.Cached()) != 1 {
		t.Errorf("cached boards = %d, want 1", len(s.Cached()))
	}
}
