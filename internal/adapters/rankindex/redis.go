package rankindex

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/aisuru/score-server/pkg/metrics"
)

const keyPrefix = "aisuru:leaderboard:"

// RedisIndex implements Index on Redis sorted sets, shared across
// instances. ZREVRANK answers rank queries in index-native time.
type RedisIndex struct {
	client *redis.Client
}

// NewRedisIndex creates a rank index on the given Redis client.
func NewRedisIndex(client *redis.Client) *RedisIndex {
	return &RedisIndex{client: client}
}

// Upsert writes the user's rating into the board's sorted set.
func (r *RedisIndex) Upsert(ctx context.Context, board string, userID int64, rating float64) error {
	err := r.client.ZAdd(ctx, keyPrefix+board, redis.Z{
		Score:  rating,
		Member: fmt.Sprintf("%d", userID),
	}).Err()
	if err != nil {
		metrics.RecordExternalError("redis")
		return fmt.Errorf("rank index upsert: %w", err)
	}
	metrics.RecordRankIndexWrite()
	return nil
}

// Rank returns the user's 1-based rank on the board, 0 when absent.
func (r *RedisIndex) Rank(ctx context.Context, board string, userID int64) (int, error) {
	rank, err := r.client.ZRevRank(ctx, keyPrefix+board, fmt.Sprintf("%d", userID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		metrics.RecordExternalError("redis")
		return 0, fmt.Errorf("rank index query: %w", err)
	}
	return int(rank) + 1, nil
}
