package beatmaps

import (
	"context"
	"errors"
	"fmt"

	"github.com/aisuru/score-server/internal/adapters/store"
	"github.com/aisuru/score-server/internal/domain/beatmap"
)

// Rating returns the beatmap's average player rating, cached on the
// beatmap after the first computation from the persisted rating records.
func (c *Cache) Rating(ctx context.Context, bm *beatmap.Beatmap) (float64, error) {
	if bm.Rating != nil {
		return *bm.Rating, nil
	}

	avg, err := c.averageRating(ctx, bm.MD5)
	if err != nil {
		return 0, err
	}
	bm.Rating = &avg
	return avg, nil
}

// HasRated reports whether the user already rated the map.
func (c *Cache) HasRated(ctx context.Context, userID int64, md5 string) (bool, error) {
	_, err := c.db.Collection(store.Ratings).FindOne(ctx,
		store.M{"map_md5": md5, "user_id": userID})
	if err != nil {
		if errors.Is(err, store.ErrNoDocument) {
			return false, nil
		}
		return false, fmt.Errorf("rating lookup: %w", err)
	}
	return true, nil
}

// SubmitRating records a user's rating and refreshes the cached average.
// The cached value is invalidated only by this explicit assignment.
func (c *Cache) SubmitRating(ctx context.Context, userID int64, bm *beatmap.Beatmap, value int) (float64, error) {
	err := c.db.Collection(store.Ratings).InsertOne(ctx, store.M{
		"user_id": userID,
		"map_md5": bm.MD5,
		"rating":  int64(value),
	})
	if err != nil {
		return 0, fmt.Errorf("rating insert: %w", err)
	}

	avg, err := c.averageRating(ctx, bm.MD5)
	if err != nil {
		return 0, err
	}
	bm.Rating = &avg
	return avg, nil
}

func (c *Cache) averageRating(ctx context.Context, md5 string) (float64, error) {
	docs, err := c.db.Collection(store.Ratings).Find(ctx, store.M{"map_md5": md5})
	if err != nil {
		return 0, fmt.Errorf("ratings query: %w", err)
	}
	if len(docs) == 0 {
		return 0, nil
	}

	var sum float64
	for _, doc := range docs {
		switch v := doc["rating"].(type) {
		case int64:
			sum += float64(v)
		case float64:
			sum += v
		case int:
			sum += float64(v)
		}
	}
	return sum / float64(len(docs)), nil
}
