package submission

import (
	"strings"
	"testing"
	"time"

	"github.com/aisuru/score-server/internal/domain/beatmap"
	"github.com/aisuru/score-server/internal/domain/mode"
	"github.com/aisuru/score-server/internal/domain/score"
	"github.com/aisuru/score-server/internal/stats"
)

func TestChartEntry(t *testing.T) {
	got := chartEntry("rank", "5", "2")
	if got != "rankBefore:5|rankAfter:2" {
		t.Errorf("chartEntry = %q", got)
	}

	// A first score on a map has no previous value to show.
	got = chartEntry("pp", "", "120")
	if got != "ppBefore:|ppAfter:120" {
		t.Errorf("chartEntry = %q", got)
	}
}

func TestBuildResponse(t *testing.T) {
	bm := &beatmap.Beatmap{
		ID: 741, SetID: 39, Plays: 10, Passes: 4,
		Status:     beatmap.Ranked,
		LastUpdate: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	sc := &score.Score{
		ID: 55, UserID: 7, Mode: mode.Standard,
		Value: 1_000_000, MaxCombo: 432, Accuracy: 98.76, PP: 120,
		Rank: 1,
	}
	prev := &stats.Stats{GlobalRank: 0, PP: 0}
	cur := &stats.Stats{GlobalRank: 1, RankedScore: 1_000_000, TotalScore: 1_000_000,
		MaxCombo: 432, Accuracy: 98.76, PP: 123}

	body := buildResponse(bm, sc, prev, cur, "test.example")

	lines := strings.Split(body, "\n")
	if len(lines) != 3 {
		t.Fatalf("%d lines, want 3", len(lines))
	}

	if !strings.HasPrefix(lines[0],
		"beatmapId:741|beatmapSetId:39|beatmapPlaycount:10|beatmapPasscount:4|approvedDate:2024-03-01 12:00:00") {
		t.Errorf("header = %q", lines[0])
	}

	for _, want := range []string{
		"chartId:beatmap",
		"chartName:Beatmap Ranking",
		"rankBefore:|rankAfter:1",
		"onlineScoreId:55",
	} {
		if !strings.Contains(lines[1], want) {
			t.Errorf("map chart missing %q: %q", want, lines[1])
		}
	}

	for _, want := range []string{
		"chartId:overall",
		"chartUrl:https://osu.test.example/u/7",
		"ppBefore:0|ppAfter:123",
		"accuracyBefore:0.00|accuracyAfter:98.76",
	} {
		if !strings.Contains(lines[2], want) {
			t.Errorf("overall chart missing %q: %q", want, lines[2])
		}
	}
	if !strings.HasSuffix(lines[2], "achievements-new:") {
		t.Errorf("overall chart should end with the achievements marker")
	}

	t.Run("previous best fills the before columns", func(t *testing.T) {
		old := &score.Score{Value: 500_000, MaxCombo: 200, Accuracy: 95.5, PP: 80, Rank: 3}
		sc.OldBest = old
		defer func() { sc.OldBest = nil }()

		body := buildResponse(bm, sc, prev, cur, "test.example")
		mapChart := strings.Split(body, "\n")[1]

		for _, want := range []string{
			"rankBefore:3|rankAfter:1",
			"rankedScoreBefore:500000|rankedScoreAfter:1000000",
			"ppBefore:80|ppAfter:120",
		} {
			if !strings.Contains(mapChart, want) {
				t.Errorf("map chart missing %q: %q", want, mapChart)
			}
		}
	})
}
