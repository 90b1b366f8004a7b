package stats_test

import (
	"context"
	"math"
	"testing"

	"github.com/aisuru/score-server/internal/adapters/bus"
	"github.com/aisuru/score-server/internal/adapters/rankindex"
	"github.com/aisuru/score-server/internal/adapters/store"
	"github.com/aisuru/score-server/internal/domain/beatmap"
	"github.com/aisuru/score-server/internal/domain/mode"
	"github.com/aisuru/score-server/internal/domain/score"
	"github.com/aisuru/score-server/internal/stats"
	"github.com/aisuru/score-server/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	// Initialize logging for tests
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

func seedMap(ctx context.Context, db store.DB, md5 string, status beatmap.RankedStatus) {
	bm := &beatmap.Beatmap{MD5: md5, ID: 1, Status: status}
	_ = db.Collection(store.Maps).InsertOne(ctx, bm.ToDoc())
}

func seedBest(ctx context.Context, db store.DB, id int64, md5 string, pp, acc float64) {
	sc := &score.Score{
		ID: id, MapMD5: md5, UserID: 7, Mode: mode.Standard,
		PP: pp, Accuracy: acc, Status: score.StatusBest, Passed: true,
	}
	_ = db.Collection(store.Scores).InsertOne(ctx, sc.ToDoc())
}

func TestRecalc(t *testing.T) {
	Convey("Given a stats aggregator", t, func() {
		ctx := context.Background()
		db := store.NewMemoryDB()
		agg := stats.New(db, rankindex.NewTreapIndex(), bus.NewMemoryBus())

		Convey("A single qualifying score yields its rating plus the bonus", func() {
			seedMap(ctx, db, "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa", beatmap.Ranked)
			seedBest(ctx, db, 1, "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa", 120, 98.5)

			st := &stats.Stats{}
			So(agg.Recalc(ctx, st, mode.Standard, 7), ShouldBeNil)

			bonus := 416.6667 * (1 - math.Pow(0.994, 1))
			So(bonus, ShouldAlmostEqual, 2.5, 0.01)
			So(st.PP, ShouldEqual, int(math.Round(120+bonus)))
			So(st.Accuracy, ShouldAlmostEqual, 98.5, 0.0001)
		})

		Convey("Scores decay by position in the weighted sum", func() {
			seedMap(ctx, db, "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa", beatmap.Ranked)
			seedMap(ctx, db, "bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb", beatmap.Approved)
			seedBest(ctx, db, 1, "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa", 200, 99)
			seedBest(ctx, db, 2, "bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb", 100, 95)

			st := &stats.Stats{}
			So(agg.Recalc(ctx, st, mode.Standard, 7), ShouldBeNil)

			weighted := 200.0 + 100.0*0.95
			bonus := 416.6667 * (1 - math.Pow(0.994, 2))
			So(st.PP, ShouldEqual, int(math.Round(weighted+bonus)))
		})

		Convey("Scores on unranked maps never qualify", func() {
			seedMap(ctx, db, "cccccccccccccccccccccccccccccccc", beatmap.Pending)
			seedBest(ctx, db, 1, "cccccccccccccccccccccccccccccccc", 500, 100)

			st := &stats.Stats{}
			So(agg.Recalc(ctx, st, mode.Standard, 7), ShouldBeNil)
			So(st.PP, ShouldEqual, 0)
			So(st.Accuracy, ShouldEqual, 0)
		})

		Convey("A user with no scores recalcs to zero", func() {
			st := &stats.Stats{}
			So(agg.Recalc(ctx, st, mode.Standard, 7), ShouldBeNil)
			So(st.PP, ShouldEqual, 0)
		})
	})
}

func TestUpdateRankAndFetch(t *testing.T) {
	Convey("Given two players on the same mode", t, func() {
		ctx := context.Background()
		db := store.NewMemoryDB()
		agg := stats.New(db, rankindex.NewTreapIndex(), bus.NewMemoryBus())

		alice := &stats.Stats{PP: 300}
		bob := &stats.Stats{PP: 500}

		So(agg.UpdateRank(ctx, alice, mode.Standard, 1, "US"), ShouldBeNil)
		So(agg.UpdateRank(ctx, bob, mode.Standard, 2, "DE"), ShouldBeNil)

		Convey("Global ranks order by rating, country boards are scoped", func() {
			// Alice's snapshot predates Bob's write; re-rank her.
			So(agg.UpdateRank(ctx, alice, mode.Standard, 1, "US"), ShouldBeNil)
			So(alice.GlobalRank, ShouldEqual, 2)
			So(alice.CountryRank, ShouldEqual, 1)
			So(bob.GlobalRank, ShouldEqual, 1)
			So(bob.CountryRank, ShouldEqual, 1)
		})

		Convey("Fetch joins persisted counters with both ranks", func() {
			alice.PlayCount = 42
			alice.TotalScore = 123456
			So(agg.Save(ctx, alice, mode.Standard, 1), ShouldBeNil)

			got, err := agg.Fetch(ctx, 1, "US", mode.Standard)
			So(err, ShouldBeNil)
			So(got.PlayCount, ShouldEqual, 42)
			So(got.TotalScore, ShouldEqual, 123456)
			So(got.PP, ShouldEqual, 300)
			So(got.GlobalRank, ShouldEqual, 2)
			So(got.CountryRank, ShouldEqual, 1)
		})

		Convey("Fetch for an unseen player returns zeroed stats, rank 0", func() {
			got, err := agg.Fetch(ctx, 99, "FR", mode.Mania)
			So(err, ShouldBeNil)
			So(got.PP, ShouldEqual, 0)
			So(got.GlobalRank, ShouldEqual, 0)
			So(got.CountryRank, ShouldEqual, 0)
		})

		Convey("Modes rank on separate boards", func() {
			relax := &stats.Stats{PP: 10}
			So(agg.UpdateRank(ctx, relax, mode.StandardRelax, 1, "US"), ShouldBeNil)
			So(relax.GlobalRank, ShouldEqual, 1)
		})
	})
}
