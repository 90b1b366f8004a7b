package submission

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/aisuru/score-server/internal/domain/beatmap"
	"github.com/aisuru/score-server/internal/domain/score"
	"github.com/aisuru/score-server/internal/stats"
)

// chartEntry renders one before/after pair of the chart response. An empty
// before means the client shows no previous value.
func chartEntry(name, before, after string) string {
	return fmt.Sprintf("%sBefore:%s|%sAfter:%s", name, before, name, after)
}

func fmtAcc(v float64) string { return strconv.FormatFloat(v, 'f', 2, 64) }

// buildResponse renders the pipe-delimited chart response the client parses
// after a passing submission: a beatmap header, the per-map ranking chart
// and the overall ranking chart.
func buildResponse(bm *beatmap.Beatmap, sc *score.Score, prev, cur *stats.Stats, domain string) string {
	header := fmt.Sprintf(
		"beatmapId:%d|beatmapSetId:%d|beatmapPlaycount:%d|beatmapPasscount:%d|approvedDate:%s",
		bm.ID, bm.SetID, bm.Plays, bm.Passes,
		bm.LastUpdate.Format("2006-01-02 15:04:05"))

	mapEntries := make([]string, 0, 6)
	if old := sc.OldBest; old != nil {
		mapEntries = append(mapEntries,
			chartEntry("rank", strconv.Itoa(old.Rank), strconv.Itoa(sc.Rank)),
			chartEntry("rankedScore", strconv.FormatInt(old.Value, 10), strconv.FormatInt(sc.Value, 10)),
			chartEntry("totalScore", strconv.FormatInt(old.Value, 10), strconv.FormatInt(sc.Value, 10)),
			chartEntry("maxCombo", strconv.Itoa(old.MaxCombo), strconv.Itoa(sc.MaxCombo)),
			chartEntry("accuracy", fmtAcc(old.Accuracy), fmtAcc(sc.Accuracy)),
			chartEntry("pp", strconv.Itoa(int(old.PP)), strconv.Itoa(int(sc.PP))),
		)
	} else {
		mapEntries = append(mapEntries,
			chartEntry("rank", "", strconv.Itoa(sc.Rank)),
			chartEntry("rankedScore", "", strconv.FormatInt(sc.Value, 10)),
			chartEntry("totalScore", "", strconv.FormatInt(sc.Value, 10)),
			chartEntry("maxCombo", "", strconv.Itoa(sc.MaxCombo)),
			chartEntry("accuracy", "", fmtAcc(sc.Accuracy)),
			chartEntry("pp", "", strconv.Itoa(int(sc.PP))),
		)
	}

	mapChart := fmt.Sprintf("|chartId:beatmap|chartUrl:%s|chartName:Beatmap Ranking|%s|onlineScoreId:%d",
		bm.SetURL(domain), strings.Join(mapEntries, "|"), sc.ID)

	overallEntries := []string{
		chartEntry("rank", strconv.Itoa(prev.GlobalRank), strconv.Itoa(cur.GlobalRank)),
		chartEntry("rankedScore", strconv.FormatInt(prev.RankedScore, 10), strconv.FormatInt(cur.RankedScore, 10)),
		chartEntry("totalScore", strconv.FormatInt(prev.TotalScore, 10), strconv.FormatInt(cur.TotalScore, 10)),
		chartEntry("maxCombo", strconv.Itoa(prev.MaxCombo), strconv.Itoa(cur.MaxCombo)),
		chartEntry("accuracy", fmtAcc(prev.Accuracy), fmtAcc(cur.Accuracy)),
		chartEntry("pp", strconv.Itoa(prev.PP), strconv.Itoa(cur.PP)),
	}

	overallChart := fmt.Sprintf(
		"|chartId:overall|chartUrl:https://osu.%s/u/%d|chartName:Overall Ranking|%s|achievements-new:",
		domain, sc.UserID, strings.Join(overallEntries, "|"))

	return strings.Join([]string{header, mapChart, overallChart}, "\n")
}
