package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/shinshin4n4n/tube-review-sub001/internal/domain"
	"github.com/shinshin4n4n/tube-review-sub001/internal/repository"
)

// rankingKey holds one hash field per requested limit. A refresh deletes
// the whole key so no limit can serve rows from an older table.
const (
	rankingKey    = "tubereview:ranking"
	generationKey = "tubereview:ranking:gen"
)

// setIfGeneration writes a ranking only while the generation is unchanged.
// KEYS: ranking hash, generation. ARGV: generation, field, payload, ttl ms.
var setIfGeneration = redis.NewScript(`
local gen = redis.call('GET', KEYS[2]) or '0'
if gen ~= ARGV[1] then
	return 0
end
redis.call('HSET', KEYS[1], ARGV[2], ARGV[3])
redis.call('PEXPIRE', KEYS[1], ARGV[4])
return 1
`)

var _ repository.RankingCache = (*RankingCache)(nil)

// RankingCache implements repository.RankingCache using Redis.
type RankingCache struct {
	client redis.Cmdable
	ttl    time.Duration
}

// NewRankingCache creates a Redis-backed ranking cache. Entries also
// expire after ttl in case an invalidation is lost.
func NewRankingCache(client redis.Cmdable, ttl time.Duration) *RankingCache {
	return &RankingCache{client: client, ttl: ttl}
}

// Get returns the cached ranking for limit with the current generation.
// A miss still reports the generation so the caller can fill it.
func (c *RankingCache) Get(ctx context.Context, limit int) ([]domain.ChannelStats, int64, bool, error) {
	var (
		data *redis.StringCmd
		gen  *redis.StringCmd
	)
	_, err := c.client.Pipelined(ctx, func(p redis.Pipeliner) error {
		data = p.HGet(ctx, rankingKey, strconv.Itoa(limit))
		gen = p.Get(ctx, generationKey)
		return nil
	})
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, 0, false, fmt.Errorf("redis hget ranking: %w", err)
	}

	generation, err := gen.Int64()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, 0, false, fmt.Errorf("parse ranking generation: %w", err)
	}

	raw, err := data.Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, generation, false, nil
	}
	if err != nil {
		return nil, 0, false, fmt.Errorf("redis hget ranking: %w", err)
	}

	var stats []domain.ChannelStats
	if err := json.Unmarshal(raw, &stats); err != nil {
		return nil, 0, false, fmt.Errorf("unmarshal ranking: %w", err)
	}
	return stats, generation, true, nil
}

// Set stores the ranking for limit and refreshes the key's expiry, unless
// an Invalidate has moved past generation since it was read.
func (c *RankingCache) Set(ctx context.Context, generation int64, limit int, stats []domain.ChannelStats) error {
	if stats == nil {
		stats = []domain.ChannelStats{}
	}
	data, err := json.Marshal(stats)
	if err != nil {
		return fmt.Errorf("marshal ranking: %w", err)
	}

	err = setIfGeneration.Run(ctx, c.client,
		[]string{rankingKey, generationKey},
		strconv.FormatInt(generation, 10), strconv.Itoa(limit), data, c.ttl.Milliseconds(),
	).Err()
	if err != nil {
		return fmt.Errorf("redis set ranking: %w", err)
	}
	return nil
}

// Invalidate advances the generation and drops every cached limit.
func (c *RankingCache) Invalidate(ctx context.Context) error {
	if err := c.client.Incr(ctx, generationKey).Err(); err != nil {
		return fmt.Errorf("redis incr ranking generation: %w", err)
	}
	if err := c.client.Del(ctx, rankingKey).Err(); err != nil {
		return fmt.Errorf("redis del ranking: %w", err)
	}
	return nil
}
