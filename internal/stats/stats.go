// Package stats aggregates per (user, mode) statistics and the global and
// country rank indices.
package stats

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/aisuru/score-server/internal/adapters/bus"
	"github.com/aisuru/score-server/internal/adapters/rankindex"
	"github.com/aisuru/score-server/internal/adapters/store"
	"github.com/aisuru/score-server/internal/domain/beatmap"
	"github.com/aisuru/score-server/internal/domain/mode"
	"github.com/aisuru/score-server/internal/domain/score"
	"github.com/aisuru/score-server/pkg/logger"
	"github.com/aisuru/score-server/pkg/metrics"
)

// Weighted-rating constants. The participation bonus saturates with the
// number of qualifying scores.
const (
	qualifyingScoreLimit = 25_397
	weightedEntries      = 100
	weightDecay          = 0.95
	bonusCeiling         = 416.6667
	bonusDecay           = 0.994
)

// Stats is the per (user, mode) statistics record. GlobalRank and
// CountryRank are derived from the rank indices and never persisted.
type Stats struct {
	TotalScore  int64
	RankedScore int64

	Accuracy float64
	PP       int

	MaxCombo  int
	TotalHits int64

	PlayCount int64
	PlayTime  int64

	GlobalRank  int
	CountryRank int
}

// Aggregator joins persisted counters with rank-index lookups and owns the
// weighted recalculation.
type Aggregator struct {
	db     store.DB
	index  rankindex.Index
	bus    bus.Bus
	logger logger.Logger
}

// New creates a stats aggregator.
func New(db store.DB, index rankindex.Index, b bus.Bus) *Aggregator {
	return &Aggregator{
		db:     db,
		index:  index,
		bus:    b,
		logger: logger.Named("stats"),
	}
}

func globalBoard(m mode.Mode) string { return m.IndexName() }

func countryBoard(m mode.Mode, country string) string {
	return m.IndexName() + ":" + country
}

// Fetch loads the user's stats for a mode, joining the persisted counters
// with both rank indices. A user missing from an index ranks 0.
func (a *Aggregator) Fetch(ctx context.Context, userID int64, country string, m mode.Mode) (*Stats, error) {
	doc, err := a.db.Collection(store.UStats).FindOne(ctx,
		store.M{"user_id": userID, "mode": int64(m)})
	if err != nil && !errors.Is(err, store.ErrNoDocument) {
		return nil, fmt.Errorf("stats lookup: %w", err)
	}

	st := &Stats{}
	if doc != nil {
		st.TotalScore = asInt64(doc["total_score"])
		st.RankedScore = asInt64(doc["ranked_score"])
		st.Accuracy = asFloat(doc["accuracy"])
		st.PP = int(asInt64(doc["pp"]))
		st.MaxCombo = int(asInt64(doc["max_combo"]))
		st.TotalHits = asInt64(doc["total_hits"])
		st.PlayCount = asInt64(doc["playcount"])
		st.PlayTime = asInt64(doc["playtime"])
	}

	if st.GlobalRank, err = a.index.Rank(ctx, globalBoard(m), userID); err != nil {
		return nil, err
	}
	if st.CountryRank, err = a.index.Rank(ctx, countryBoard(m, country), userID); err != nil {
		return nil, err
	}
	return st, nil
}

// Save upserts the persisted counters for (user, mode).
func (a *Aggregator) Save(ctx context.Context, st *Stats, m mode.Mode, userID int64) error {
	err := a.db.Collection(store.UStats).UpdateOne(ctx,
		store.M{"user_id": userID, "mode": int64(m)},
		store.Update{Set: store.M{
			"total_score":  st.TotalScore,
			"ranked_score": st.RankedScore,
			"accuracy":     st.Accuracy,
			"pp":           int64(st.PP),
			"max_combo":    int64(st.MaxCombo),
			"total_hits":   st.TotalHits,
			"playcount":    st.PlayCount,
			"playtime":     st.PlayTime,
		}}, true)
	if err != nil {
		return fmt.Errorf("stats save: %w", err)
	}
	return nil
}

// Recalc recomputes the weighted performance rating and accuracy from the
// user's persisted best scores for the mode, restricted to scores on
// ranked or approved maps.
func (a *Aggregator) Recalc(ctx context.Context, st *Stats, m mode.Mode, userID int64) error {
	scoreDocs, err := a.db.Collection(store.Scores).Find(ctx, store.M{
		"user_id": userID,
		"mode":    int64(m),
		"status":  int64(score.StatusBest),
		"pp":      store.Gt{Value: 0},
	}, store.FindOptions{SortDescBy: "pp", Limit: qualifyingScoreLimit})
	if err != nil {
		return fmt.Errorf("recalc scores: %w", err)
	}

	qualifying, err := a.filterRankedMaps(ctx, scoreDocs)
	if err != nil {
		return err
	}

	top := qualifying
	if len(top) > weightedEntries {
		top = top[:weightedEntries]
	}

	var weightedPP, weightedAcc float64
	for i, doc := range top {
		weight := math.Pow(weightDecay, float64(i))
		weightedPP += asFloat(doc["pp"]) * weight
		weightedAcc += asFloat(doc["acc"]) * weight
	}

	bonusPP := bonusCeiling * (1 - math.Pow(bonusDecay, float64(len(qualifying))))
	st.PP = int(math.Round(weightedPP + bonusPP))

	if len(top) > 0 {
		bonusAcc := 100.0 / (20 * (1 - math.Pow(weightDecay, float64(len(top)))))
		st.Accuracy = (weightedAcc * bonusAcc) / 100.0
	}

	metrics.RecordStatsRecalc()
	return nil
}

// filterRankedMaps keeps the score documents whose map is ranked or
// approved, preserving order.
func (a *Aggregator) filterRankedMaps(ctx context.Context, scoreDocs []store.M) ([]store.M, error) {
	if len(scoreDocs) == 0 {
		return nil, nil
	}

	hashes := make([]any, 0, len(scoreDocs))
	for _, doc := range scoreDocs {
		hashes = append(hashes, doc["map_md5"])
	}

	mapDocs, err := a.db.Collection(store.Maps).Find(ctx,
		store.M{"md5": store.In{Values: hashes}})
	if err != nil {
		return nil, fmt.Errorf("recalc maps: %w", err)
	}

	eligible := make(map[string]bool, len(mapDocs))
	for _, doc := range mapDocs {
		status := beatmap.RankedStatus(asInt64(doc["status"]))
		if status == beatmap.Ranked || status == beatmap.Approved {
			if md5, ok := doc["md5"].(string); ok {
				eligible[md5] = true
			}
		}
	}

	out := make([]store.M, 0, len(scoreDocs))
	for _, doc := range scoreDocs {
		if md5, ok := doc["map_md5"].(string); ok && eligible[md5] {
			out = append(out, doc)
		}
	}
	return out, nil
}

// UpdateRank writes the user's rating into the global and country indices
// and recomputes both ranks. Read-after-write consistency holds for the
// user's own rank; cross-user ordering is eventually consistent.
func (a *Aggregator) UpdateRank(ctx context.Context, st *Stats, m mode.Mode, userID int64, country string) error {
	rating := float64(st.PP)

	if err := a.index.Upsert(ctx, globalBoard(m), userID, rating); err != nil {
		return err
	}
	if err := a.index.Upsert(ctx, countryBoard(m, country), userID, rating); err != nil {
		return err
	}

	var err error
	if st.GlobalRank, err = a.index.Rank(ctx, globalBoard(m), userID); err != nil {
		return err
	}
	if st.CountryRank, err = a.index.Rank(ctx, countryBoard(m, country), userID); err != nil {
		return err
	}
	return nil
}

// Refresh broadcasts a user-stats notification so other instances reload
// the user's stats.
func (a *Aggregator) Refresh(ctx context.Context, m mode.Mode, userID int64) error {
	return a.bus.Publish(ctx, bus.ChannelUserStats, bus.StatsRefresh{
		ID:   userID,
		Mode: int(m),
	})
}

func asInt64(v any) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case int:
		return int64(n)
	case float64:
		return int64(n)
	default:
		return 0
	}
}

func asFloat(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int64:
		return float64(n)
	case int:
		return float64(n)
	default:
		return 0
	}
}
