package leaderboards

import (
	"testing"

	"github.com/aisuru/score-server/internal/domain/mode"
	"github.com/aisuru/score-server/internal/domain/score"
	"github.com/aisuru/score-server/internal/domain/user"
	"github.com/aisuru/score-server/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	// Initialize logging for tests
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

func entry(id, userID int64, value int64, pp float64) *score.Score {
	return &score.Score{
		ID:     id,
		UserID: userID,
		Value:  value,
		PP:     pp,
		Status: score.StatusBest,
	}
}

func TestLeaderboardOrdering(t *testing.T) {
	Convey("Given a vanilla leaderboard", t, func() {
		lb := newLeaderboard(mode.Standard)

		lb.AddScore(entry(1, 10, 500, 50))
		lb.AddScore(entry(2, 20, 900, 10))
		lb.AddScore(entry(3, 30, 700, 90))

		Convey("Entries order descending by raw score", func() {
			So(lb.FindScoreRank(2), ShouldEqual, 1)
			So(lb.FindScoreRank(3), ShouldEqual, 2)
			So(lb.FindScoreRank(1), ShouldEqual, 3)
		})

		Convey("An absent score id ranks 0", func() {
			So(lb.FindScoreRank(99), ShouldEqual, 0)
		})

		Convey("Ties keep their original relative order", func() {
			lb.AddScore(entry(4, 40, 900, 0))
			So(lb.FindScoreRank(2), ShouldEqual, 1)
			So(lb.FindScoreRank(4), ShouldEqual, 2)
		})
	})

	Convey("Given a rating-bearing leaderboard", t, func() {
		lb := newLeaderboard(mode.StandardRelax)

		lb.AddScore(entry(1, 10, 900, 50))
		lb.AddScore(entry(2, 20, 500, 90))

		Convey("Entries order descending by performance", func() {
			So(lb.FindScoreRank(2), ShouldEqual, 1)
			So(lb.FindScoreRank(1), ShouldEqual, 2)
		})
	})
}

func TestLeaderboardBestInvariant(t *testing.T) {
	Convey("Given a user with an existing entry", t, func() {
		lb := newLeaderboard(mode.Standard)
		lb.AddScore(entry(1, 10, 500, 0))
		lb.AddScore(entry(2, 20, 400, 0))

		Convey("A second score from the same user evicts the first", func() {
			lb.AddScore(entry(3, 10, 800, 0))

			So(lb.Len(), ShouldEqual, 2)
			So(lb.FindScoreRank(1), ShouldEqual, 0)

			sc, rank, ok := lb.FindUserScore(10)
			So(ok, ShouldBeTrue)
			So(sc.ID, ShouldEqual, 3)
			So(rank, ShouldEqual, 1)
		})

		Convey("RemoveUser drops exactly that user's entry", func() {
			lb.RemoveUser(10)
			So(lb.Len(), ShouldEqual, 1)
			_, _, ok := lb.FindUserScore(10)
			So(ok, ShouldBeFalse)
			_, _, ok = lb.FindUserScore(20)
			So(ok, ShouldBeTrue)
		})
	})
}

func TestLeaderboardVisibility(t *testing.T) {
	Convey("Given entries with mixed privileges", t, func() {
		lb := newLeaderboard(mode.Standard)

		banned := entry(1, 10, 900, 0)
		banned.UserPrivs = user.Banned
		lb.AddScore(banned)
		lb.AddScore(entry(2, 20, 800, 0))
		lb.AddScore(entry(3, 30, 700, 0))

		Convey("Disallowed users never appear on the public listing", func() {
			visible := lb.Visible(0)
			So(len(visible), ShouldEqual, 2)
			So(visible[0].ID, ShouldEqual, 2)
		})

		Convey("A positive limit caps the listing", func() {
			So(len(lb.Visible(1)), ShouldEqual, 1)
		})

		Convey("A privilege patch changes visibility", func() {
			lb.PatchPrivileges(10, 0)
			So(len(lb.Visible(0)), ShouldEqual, 3)

			lb.PatchPrivileges(20, user.Restricted)
			So(len(lb.Visible(0)), ShouldEqual, 2)
		})
	})
}
