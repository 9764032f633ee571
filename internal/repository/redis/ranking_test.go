package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redismock/v9"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shinshin4n4n/tube-review-sub001/internal/domain"
)

func setupTestRedis(t *testing.T) (*RankingCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRankingCache(client, 10*time.Minute), mr
}

func sampleRanking() []domain.ChannelStats {
	at := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	return []domain.ChannelStats{
		{ChannelID: "UCaaaaaaaaaaaaaaaaaaaaaa", ChannelTitle: "A", ReviewCount: 3, AverageRating: 4.3, RecentReviewCount: 2, RefreshedAt: at},
		{ChannelID: "UCbbbbbbbbbbbbbbbbbbbbbb", ChannelTitle: "B", ReviewCount: 1, AverageRating: 5, RefreshedAt: at},
	}
}

func TestRankingCache_Miss(t *testing.T) {
	cache, _ := setupTestRedis(t)

	got, gen, ok, err := cache.Get(context.Background(), 10)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, got)
	assert.Zero(t, gen)
}

func TestRankingCache_SetThenGet(t *testing.T) {
	cache, mr := setupTestRedis(t)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, 0, 10, sampleRanking()))

	got, _, ok, err := cache.Get(ctx, 10)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, sampleRanking(), got)

	_, _, ok, err = cache.Get(ctx, 5)
	require.NoError(t, err)
	assert.False(t, ok, "limits are cached independently")

	ttl := mr.TTL(rankingKey)
	assert.True(t, ttl > 9*time.Minute && ttl <= 10*time.Minute, "unexpected TTL %v", ttl)
}

func TestRankingCache_EmptyRankingIsAHit(t *testing.T) {
	cache, _ := setupTestRedis(t)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, 0, 10, nil))

	got, _, ok, err := cache.Get(ctx, 10)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Empty(t, got)
}

func TestRankingCache_InvalidateDropsAllLimits(t *testing.T) {
	cache, mr := setupTestRedis(t)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, 0, 10, sampleRanking()))
	require.NoError(t, cache.Set(ctx, 0, 1, sampleRanking()[:1]))
	require.NoError(t, cache.Invalidate(ctx))

	assert.False(t, mr.Exists(rankingKey))
	_, gen, ok, err := cache.Get(ctx, 1)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, int64(1), gen)
}

func TestRankingCache_FillFromBeforeInvalidateIsDropped(t *testing.T) {
	cache, mr := setupTestRedis(t)
	ctx := context.Background()

	// A reader misses and starts computing from the old table.
	_, gen, ok, err := cache.Get(ctx, 10)
	require.NoError(t, err)
	require.False(t, ok)

	// A refresh commits and invalidates before the reader writes back.
	require.NoError(t, cache.Invalidate(ctx))
	require.NoError(t, cache.Set(ctx, gen, 10, sampleRanking()))

	assert.False(t, mr.Exists(rankingKey))
	_, current, ok, err := cache.Get(ctx, 10)
	require.NoError(t, err)
	assert.False(t, ok)

	// A reader that started after the refresh fills normally.
	require.NoError(t, cache.Set(ctx, current, 10, sampleRanking()))
	_, _, ok, err = cache.Get(ctx, 10)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRankingCache_CorruptEntry(t *testing.T) {
	cache, mr := setupTestRedis(t)
	mr.HSet(rankingKey, "10", "{{not-json")

	_, _, ok, err := cache.Get(context.Background(), 10)
	require.Error(t, err)
	assert.False(t, ok)
	assert.Contains(t, err.Error(), "unmarshal ranking")
}

func TestRankingCache_ServerErrors(t *testing.T) {
	cache, mr := setupTestRedis(t)
	ctx := context.Background()
	mr.SetError("ERR injected failure")

	_, _, _, err := cache.Get(ctx, 10)
	require.Error(t, err)

	err = cache.Set(ctx, 0, 10, sampleRanking())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "redis set ranking")
}

func TestRankingCache_InvalidateErrors(t *testing.T) {
	client, mock := redismock.NewClientMock()
	cache := NewRankingCache(client, time.Minute)
	ctx := context.Background()

	mock.ExpectIncr(generationKey).SetErr(errors.New("connection refused"))
	err := cache.Invalidate(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "redis incr ranking generation")

	mock.ExpectIncr(generationKey).SetVal(4)
	mock.ExpectDel(rankingKey).SetErr(errors.New("connection refused"))
	err = cache.Invalidate(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "redis del ranking")

	assert.NoError(t, mock.ExpectationsWereMet())
}
