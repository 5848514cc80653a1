package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/lingofin/lingofin-hub/internal/domain/challenge"
)

// ══════════════════════════════════════════════════════════════════════════════
// LEADERBOARD CACHE ERRORS
// ══════════════════════════════════════════════════════════════════════════════

var (
	// ErrLeaderboardEmpty is returned when no board is cached for a challenge.
	ErrLeaderboardEmpty = errors.New("leaderboard_cache: leaderboard is empty")

	// ErrUserNotInLeaderboard is returned when the user has no cached row.
	ErrUserNotInLeaderboard = errors.New("leaderboard_cache: user not in leaderboard")

	// ErrChallengeIDEmpty is returned for an empty challenge id.
	ErrChallengeIDEmpty = errors.New("leaderboard_cache: challenge id is empty")
)

// ══════════════════════════════════════════════════════════════════════════════
// LEADERBOARD CACHE
// ══════════════════════════════════════════════════════════════════════════════

// LeaderboardCache keeps already ranked challenge boards.
//
// Layout per challenge:
//   - Sorted set "leaderboard:rank:{id}" maps userID -> rank
//   - Hash "leaderboard:info:{id}" maps userID -> entry JSON
//   - String "leaderboard:meta:{id}" holds LeaderboardMeta
//
// The sorted-set score is the rank assigned by challenge.Rank, not the
// raw score, so ties keep the order the ranker gave them.
type LeaderboardCache struct {
	cache *Cache
	ttl   time.Duration
}

// LeaderboardMeta describes a cached board.
type LeaderboardMeta struct {
	ChallengeID   string    `json:"challenge_id"`
	LastUpdatedAt time.Time `json:"last_updated_at"`
	TotalEntries  int       `json:"total_entries"`
	TopScore      int       `json:"top_score"`
}

// NewLeaderboardCache creates a cache whose keys expire after ttl; zero
// uses TTLLeaderboardCache.
func NewLeaderboardCache(cache *Cache, ttl time.Duration) *LeaderboardCache {
	if ttl <= 0 {
		ttl = TTLLeaderboardCache
	}
	return &LeaderboardCache{cache: cache, ttl: ttl}
}

func rankKey(challengeID string) string { return PrefixLeaderboard + "rank:" + challengeID }
func infoKey(challengeID string) string { return PrefixLeaderboard + "info:" + challengeID }
func metaKey(challengeID string) string { return PrefixLeaderboard + "meta:" + challengeID }

// ══════════════════════════════════════════════════════════════════════════════
// WRITE OPERATIONS
// ══════════════════════════════════════════════════════════════════════════════

// Store replaces the cached board of challengeID with entries, ranking them
// first. The replacement is atomic.
func (l *LeaderboardCache) Store(ctx context.Context, challengeID string, entries []challenge.LeaderboardEntry, now time.Time) error {
	if challengeID == "" {
		return ErrChallengeIDEmpty
	}
	ranked := challenge.Rank(entries)

	pipe := l.cache.Client().TxPipeline()
	pipe.Del(ctx, rankKey(challengeID), infoKey(challengeID), metaKey(challengeID))

	if len(ranked) > 0 {
		members := make([]redis.Z, 0, len(ranked))
		info := make(map[string]any, len(ranked))
		for _, e := range ranked {
			data, err := json.Marshal(e)
			if err != nil {
				return fmt.Errorf("%w: %v", ErrCacheSerialization, err)
			}
			members = append(members, redis.Z{Score: float64(e.Rank), Member: e.UserID})
			info[e.UserID] = data
		}
		pipe.ZAdd(ctx, rankKey(challengeID), members...)
		pipe.HSet(ctx, infoKey(challengeID), info)
		pipe.Expire(ctx, rankKey(challengeID), l.ttl)
		pipe.Expire(ctx, infoKey(challengeID), l.ttl)
	}

	meta := LeaderboardMeta{
		ChallengeID:   challengeID,
		LastUpdatedAt: now.UTC(),
		TotalEntries:  len(ranked),
	}
	if len(ranked) > 0 {
		meta.TopScore = ranked[0].Score
	}
	metaData, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrCacheSerialization, err)
	}
	pipe.Set(ctx, metaKey(challengeID), metaData, l.ttl)

	_, err = pipe.Exec(ctx)
	return err
}

// Invalidate drops the cached board of challengeID.
func (l *LeaderboardCache) Invalidate(ctx context.Context, challengeID string) error {
	return l.cache.Delete(ctx, rankKey(challengeID), infoKey(challengeID), metaKey(challengeID))
}

// ══════════════════════════════════════════════════════════════════════════════
// READ OPERATIONS
// ══════════════════════════════════════════════════════════════════════════════

// Get returns the whole ranked board. A board that was never stored, or has
// expired, yields ErrLeaderboardEmpty; a stored empty board yields an empty
// slice.
func (l *LeaderboardCache) Get(ctx context.Context, challengeID string) ([]challenge.LeaderboardEntry, error) {
	return l.Top(ctx, challengeID, 0)
}

// Top returns the first n ranked entries; n <= 0 means all.
func (l *LeaderboardCache) Top(ctx context.Context, challengeID string, n int) ([]challenge.LeaderboardEntry, error) {
	if challengeID == "" {
		return nil, ErrChallengeIDEmpty
	}
	if _, err := l.Meta(ctx, challengeID); err != nil {
		return nil, err
	}

	stop := int64(-1)
	if n > 0 {
		stop = int64(n - 1)
	}
	ids, err := l.cache.Client().ZRange(ctx, rankKey(challengeID), 0, stop).Result()
	if err != nil {
		return nil, err
	}
	return l.entries(ctx, challengeID, ids)
}

// Rank returns the cached entry of userID.
func (l *LeaderboardCache) Rank(ctx context.Context, challengeID, userID string) (challenge.LeaderboardEntry, error) {
	data, err := l.cache.Client().HGet(ctx, infoKey(challengeID), userID).Bytes()
	if errors.Is(err, redis.Nil) {
		return challenge.LeaderboardEntry{}, ErrUserNotInLeaderboard
	}
	if err != nil {
		return challenge.LeaderboardEntry{}, err
	}
	var e challenge.LeaderboardEntry
	if err := json.Unmarshal(data, &e); err != nil {
		return challenge.LeaderboardEntry{}, fmt.Errorf("%w: %v", ErrCacheSerialization, err)
	}
	return e, nil
}

// Meta returns the board's metadata or ErrLeaderboardEmpty.
func (l *LeaderboardCache) Meta(ctx context.Context, challengeID string) (LeaderboardMeta, error) {
	meta, err := GetJSON[LeaderboardMeta](ctx, l.cache, metaKey(challengeID))
	if errors.Is(err, ErrCacheMiss) {
		return meta, ErrLeaderboardEmpty
	}
	return meta, err
}

func (l *LeaderboardCache) entries(ctx context.Context, challengeID string, ids []string) ([]challenge.LeaderboardEntry, error) {
	out := make([]challenge.LeaderboardEntry, 0, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	values, err := l.cache.Client().HMGet(ctx, infoKey(challengeID), ids...).Result()
	if err != nil {
		return nil, err
	}
	for _, v := range values {
		s, ok := v.(string)
		if !ok {
			continue
		}
		var e challenge.LeaderboardEntry
		if err := json.Unmarshal([]byte(s), &e); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCacheSerialization, err)
		}
		out = append(out, e)
	}
	return out, nil
}
