// Package jobs contains the worker's scheduled jobs.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/lingofin/lingofin-hub/internal/domain/challenge"
	"github.com/lingofin/lingofin-hub/internal/domain/shared"
	"github.com/lingofin/lingofin-hub/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// REBUILD LEADERBOARDS JOB
// ══════════════════════════════════════════════════════════════════════════════

// LeaderboardStore receives freshly ranked boards.
type LeaderboardStore interface {
	Store(ctx context.Context, challengeID string, entries []challenge.LeaderboardEntry, now time.Time) error
}

// RebuildLeaderboardsJob re-ranks every challenge's leaderboard, writes it
// to the cache and announces it.
type RebuildLeaderboardsJob struct {
	challenges challenge.Gateway
	cache      LeaderboardStore
	publisher  shared.EventPublisher
	clock      timeutil.Clock
	logger     *slog.Logger
	timeout    time.Duration

	lastStats atomic.Pointer[RebuildStats]
}

// RebuildStats describes one run.
type RebuildStats struct {
	StartedAt  time.Time
	Duration   time.Duration
	Challenges int
	Rebuilt    int
	Entries    int
	Errors     []error
}

func NewRebuildLeaderboardsJob(
	challenges challenge.Gateway,
	cache LeaderboardStore,
	publisher shared.EventPublisher,
	clock timeutil.Clock,
	logger *slog.Logger,
	timeout time.Duration,
) *RebuildLeaderboardsJob {
	if publisher == nil {
		publisher = shared.NopPublisher{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	return &RebuildLeaderboardsJob{
		challenges: challenges,
		cache:      cache,
		publisher:  publisher,
		clock:      timeutil.OrSystem(clock),
		logger:     logger,
		timeout:    timeout,
	}
}

func (j *RebuildLeaderboardsJob) Name() string { return "rebuild_leaderboards" }

func (j *RebuildLeaderboardsJob) Description() string {
	return "Ranks every challenge leaderboard and refreshes the leaderboard cache"
}

// Run keeps going past a failing challenge. It fails when the challenge
// list cannot be read or when no board could be rebuilt.
func (j *RebuildLeaderboardsJob) Run(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, j.timeout)
	defer cancel()

	stats := &RebuildStats{StartedAt: j.clock.Now()}
	defer func() {
		stats.Duration = j.clock.Now().Sub(stats.StartedAt)
		j.lastStats.Store(stats)
	}()

	all, err := j.challenges.FetchAllChallenges(ctx)
	if err != nil {
		return fmt.Errorf("fetch challenges: %w", err)
	}
	stats.Challenges = len(all)

	for _, c := range all {
		if err := ctx.Err(); err != nil {
			stats.Errors = append(stats.Errors, err)
			break
		}
		n, err := j.rebuild(ctx, c.ID)
		if err != nil {
			j.logger.Warn("leaderboard rebuild failed", "challenge_id", c.ID, "error", err)
			stats.Errors = append(stats.Errors, fmt.Errorf("%s: %w", c.ID, err))
			continue
		}
		stats.Rebuilt++
		stats.Entries += n
	}

	j.logger.Info("leaderboards rebuilt",
		"challenges", stats.Challenges,
		"rebuilt", stats.Rebuilt,
		"entries", stats.Entries,
		"errors", len(stats.Errors),
	)
	if stats.Rebuilt == 0 && len(stats.Errors) > 0 {
		return errors.Join(stats.Errors...)
	}
	return nil
}

func (j *RebuildLeaderboardsJob) rebuild(ctx context.Context, challengeID string) (int, error) {
	entries, err := j.challenges.FetchLeaderboard(ctx, challengeID)
	if err != nil {
		return 0, err
	}
	ranked := challenge.Rank(entries)

	if j.cache != nil {
		if err := j.cache.Store(ctx, challengeID, ranked, j.clock.Now()); err != nil {
			return 0, fmt.Errorf("cache: %w", err)
		}
	}

	var leaderID string
	var topScore int
	if len(ranked) > 0 {
		leaderID, topScore = ranked[0].UserID, ranked[0].Score
	}
	if err := j.publisher.Publish(shared.NewLeaderboardRankedEvent(challengeID, len(ranked), leaderID, topScore)); err != nil {
		j.logger.Warn("publish leaderboard.ranked", "challenge_id", challengeID, "error", err)
	}
	return len(ranked), nil
}

// LastStats returns the stats of the most recent run, or nil.
func (j *RebuildLeaderboardsJob) LastStats() *RebuildStats {
	return j.lastStats.Load()
}
