package beatmap_test

import (
	"testing"

	"github.com/aisuru/score-server/internal/domain/beatmap"
	. "github.com/smartystreets/goconvey/convey"
)

func TestStatusFromOsuAPI(t *testing.T) {
	cases := []struct {
		code int
		want beatmap.RankedStatus
	}{
		{-2, beatmap.Pending},
		{-1, beatmap.Pending},
		{0, beatmap.Pending},
		{1, beatmap.Ranked},
		{2, beatmap.Approved},
		{3, beatmap.Qualified},
		{4, beatmap.Loved},
		{99, beatmap.UpdateAvailable},
	}
	for _, tc := range cases {
		if got := beatmap.StatusFromOsuAPI(tc.code); got != tc.want {
			t.Errorf("StatusFromOsuAPI(%d) = %v, want %v", tc.code, got, tc.want)
		}
	}
}

func TestStatusFromDirect(t *testing.T) {
	cases := []struct {
		code int
		want beatmap.RankedStatus
	}{
		{0, beatmap.Ranked},
		{7, beatmap.Ranked},
		{2, beatmap.Pending},
		{5, beatmap.Pending},
		{3, beatmap.Qualified},
		{8, beatmap.Loved},
		{42, beatmap.UpdateAvailable},
	}
	for _, tc := range cases {
		if got := beatmap.StatusFromDirect(tc.code); got != tc.want {
			t.Errorf("StatusFromDirect(%d) = %v, want %v", tc.code, got, tc.want)
		}
	}
}

func TestFrozenStatuses(t *testing.T) {
	frozen := []beatmap.RankedStatus{beatmap.Ranked, beatmap.Approved, beatmap.Loved}
	for _, s := range frozen {
		if !s.Frozen() {
			t.Errorf("%v should freeze", s)
		}
	}
	thawed := []beatmap.RankedStatus{beatmap.NotSubmitted, beatmap.Pending, beatmap.UpdateAvailable, beatmap.Qualified}
	for _, s := range thawed {
		if s.Frozen() {
			t.Errorf("%v should not freeze", s)
		}
	}
}

func TestBeatmapDocRoundTrip(t *testing.T) {
	Convey("Given a beatmap", t, func() {
		bm := &beatmap.Beatmap{
			MD5:     "0c72e9d2bf885d26cdc4fe9870d13e2f",
			ID:      741,
			SetID:   39,
			Artist:  "Kenji Ninuma",
			Title:   "DISCO PRINCE",
			Version: "Normal",
			Creator: "peppy",
			Status:  beatmap.Ranked,
			Plays:   12,
			Passes:  9,
			Diff:    2.55,
			Frozen:  true,
		}

		Convey("It survives the document round trip", func() {
			got, err := beatmap.FromDoc(bm.ToDoc())
			So(err, ShouldBeNil)
			So(got.MD5, ShouldEqual, bm.MD5)
			So(got.ID, ShouldEqual, bm.ID)
			So(got.SetID, ShouldEqual, bm.SetID)
			So(got.Status, ShouldEqual, beatmap.Ranked)
			So(got.Frozen, ShouldBeTrue)
			So(got.Diff, ShouldEqual, 2.55)
		})

		Convey("The cached rating never reaches the document", func() {
			rating := 9.5
			bm.Rating = &rating
			_, ok := bm.ToDoc()["rating"]
			So(ok, ShouldBeFalse)
		})

		Convey("Helpers render the conventional forms", func() {
			So(bm.FullName(), ShouldEqual, "Kenji Ninuma - DISCO PRINCE [Normal]")
			So(bm.URL("aisuru.example"), ShouldEqual, "https://osu.aisuru.example/beatmaps/741")
			So(bm.GivesPerformance(), ShouldBeTrue)
			So(bm.HasLeaderboard(), ShouldBeTrue)
		})

		Convey("A document without md5 is rejected", func() {
			_, err := beatmap.FromDoc(map[string]any{"id": int64(1)})
			So(err, ShouldNotBeNil)
		})
	})
}
