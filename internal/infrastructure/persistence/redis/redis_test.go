package redis

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lingofin/lingofin-hub/internal/domain/challenge"
	"github.com/lingofin/lingofin-hub/pkg/kv/kvtest"
)

func TestKeys(t *testing.T) {
	assert.Equal(t, "session:current_user", SessionKey("current_user"))
	assert.Equal(t, "leaderboard:rank:ch1", rankKey("ch1"))
	assert.Equal(t, "leaderboard:info:ch1", infoKey("ch1"))
	assert.Equal(t, "leaderboard:meta:ch1", metaKey("ch1"))
	assert.Equal(t, "localhost:6379", DefaultConfig().Addr())
	assert.Equal(t, "[::1]:6380", Config{Host: "::1", Port: 6380}.Addr())
}

func TestDefaultTTLs(t *testing.T) {
	c := NewCacheFromClient(nil)

	assert.Equal(t, TTLSessionData, NewSessionStore(c, 0).ttl)
	assert.Equal(t, TTLLeaderboardCache, NewLeaderboardCache(c, 0).ttl)
	assert.Equal(t, time.Minute, NewLeaderboardCache(c, time.Minute).ttl)
}

// The tests below need a scratch Redis; database 15 is flushed, e.g.
// LINGOFIN_TEST_REDIS_ADDR=localhost:6379
func testCache(t *testing.T) *Cache {
	t.Helper()
	addr := os.Getenv("LINGOFIN_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("LINGOFIN_TEST_REDIS_ADDR not set")
	}
	client := redis.NewClient(&redis.Options{Addr: addr, DB: 15})
	require.NoError(t, client.FlushDB(context.Background()).Err())
	t.Cleanup(func() { _ = client.Close() })
	return NewCacheFromClient(client)
}

func TestSessionStore_Contract(t *testing.T) {
	kvtest.RunContract(t, NewSessionStore(testCache(t), time.Minute))
}

func TestCache_JSON(t *testing.T) {
	c := testCache(t)
	ctx := context.Background()

	type payload struct{ N int }
	require.NoError(t, c.PutJSON(ctx, "k", payload{N: 3}, time.Minute))

	got, err := GetJSON[payload](ctx, c, "k")
	require.NoError(t, err)
	assert.Equal(t, 3, got.N)

	_, err = GetJSON[payload](ctx, c, "nope")
	assert.ErrorIs(t, err, ErrCacheMiss)
	assert.ErrorIs(t, c.PutJSON(ctx, "", 1, 0), ErrCacheKeyEmpty)
	assert.ErrorIs(t, c.PutRaw(ctx, "k", nil, -time.Second), ErrCacheInvalidTTL)

	require.NoError(t, c.PutRaw(ctx, "k", []byte("not json"), 0))
	_, err = GetJSON[payload](ctx, c, "k")
	assert.ErrorIs(t, err, ErrCacheSerialization)
}

func TestLeaderboardCache_KeepsRankOrder(t *testing.T) {
	lc := NewLeaderboardCache(testCache(t), time.Minute)
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	_, err := lc.Get(ctx, "ch1")
	require.ErrorIs(t, err, ErrLeaderboardEmpty)

	entries := []challenge.LeaderboardEntry{
		{UserID: "a", UserName: "A", Score: 780},
		{UserID: "b", UserName: "B", Score: 890},
		{UserID: "c", UserName: "C", Score: 950},
		{UserID: "d", UserName: "D", Score: 890},
	}
	require.NoError(t, lc.Store(ctx, "ch1", entries, now))

	got, err := lc.Get(ctx, "ch1")
	require.NoError(t, err)
	require.Len(t, got, 4)
	ids := []string{got[0].UserID, got[1].UserID, got[2].UserID, got[3].UserID}
	assert.Equal(t, []string{"c", "b", "d", "a"}, ids)
	assert.Equal(t, 4, got[3].Rank)

	top, err := lc.Top(ctx, "ch1", 2)
	require.NoError(t, err)
	assert.Len(t, top, 2)

	e, err := lc.Rank(ctx, "ch1", "d")
	require.NoError(t, err)
	assert.Equal(t, 3, e.Rank)
	_, err = lc.Rank(ctx, "ch1", "zz")
	assert.ErrorIs(t, err, ErrUserNotInLeaderboard)

	meta, err := lc.Meta(ctx, "ch1")
	require.NoError(t, err)
	assert.Equal(t, 4, meta.TotalEntries)
	assert.Equal(t, 950, meta.TopScore)

	require.NoError(t, lc.Invalidate(ctx, "ch1"))
	_, err = lc.Get(ctx, "ch1")
	assert.ErrorIs(t, err, ErrLeaderboardEmpty)
}

func TestLeaderboardCache_EmptyBoardIsCached(t *testing.T) {
	lc := NewLeaderboardCache(testCache(t), time.Minute)
	ctx := context.Background()

	require.NoError(t, lc.Store(ctx, "ch2", nil, time.Now()))

	got, err := lc.Get(ctx, "ch2")
	require.NoError(t, err)
	assert.Empty(t, got)
}
