package jobs

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/lingofin/lingofin-hub/internal/domain/challenge"
	"github.com/lingofin/lingofin-hub/internal/domain/shared"
	"github.com/lingofin/lingofin-hub/internal/infrastructure/dataaccess/mock"
	"github.com/lingofin/lingofin-hub/pkg/timeutil"
)

var start = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func quiet() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func backend(clock timeutil.Clock) *mock.Backend {
	return mock.New(mock.Config{HashCost: bcrypt.MinCost, Clock: clock})
}

type memBoards map[string][]challenge.LeaderboardEntry

func (m memBoards) Store(_ context.Context, id string, entries []challenge.LeaderboardEntry, _ time.Time) error {
	m[id] = entries
	return nil
}

type events []shared.Event

func (e *events) Publish(ev shared.Event) error {
	*e = append(*e, ev)
	return nil
}

func TestRebuildLeaderboards_RanksCachesAndPublishes(t *testing.T) {
	clock := timeutil.NewFixedClock(start)
	b := backend(clock)
	ctx := context.Background()
	_, err := b.UpdateChallengeScore(ctx, mock.ChallengeSpanishQuiz, "user-john-smith", 990)
	require.NoError(t, err)

	boards := memBoards{}
	var pub events
	job := NewRebuildLeaderboardsJob(b, boards, &pub, clock, quiet(), 0)

	require.NoError(t, job.Run(ctx))

	assert.Len(t, boards, 3)
	spanish := boards[mock.ChallengeSpanishQuiz]
	require.Len(t, spanish, 5)
	assert.Equal(t, "user-john-smith", spanish[0].UserID)
	assert.Equal(t, 1, spanish[0].Rank)
	assert.Equal(t, 5, spanish[4].Rank)

	require.Len(t, pub, 3)
	for _, e := range pub {
		assert.Equal(t, shared.EventLeaderboardRanked, e.EventType())
	}

	stats := job.LastStats()
	require.NotNil(t, stats)
	assert.Equal(t, 3, stats.Challenges)
	assert.Equal(t, 3, stats.Rebuilt)
	assert.Equal(t, 15, stats.Entries)
	assert.Empty(t, stats.Errors)
}

func TestRebuildLeaderboards_PartialFailureKeepsGoing(t *testing.T) {
	b := backend(timeutil.NewFixedClock(start))
	b.FailNext(mock.OpFetchLeaderboard, errors.New("timeout"))

	boards := memBoards{}
	job := NewRebuildLeaderboardsJob(b, boards, nil, nil, quiet(), time.Second)

	require.NoError(t, job.Run(context.Background()))
	assert.Len(t, boards, 2)
	assert.Len(t, job.LastStats().Errors, 1)
}

func TestRebuildLeaderboards_FailsWhenListFails(t *testing.T) {
	b := backend(timeutil.NewFixedClock(start))
	b.FailNext(mock.OpFetchAllChallenges, errors.New("down"))

	job := NewRebuildLeaderboardsJob(b, nil, nil, nil, quiet(), 0)

	assert.Error(t, job.Run(context.Background()))
	assert.Equal(t, "rebuild_leaderboards", job.Name())
}

func TestRefreshChallengeActivity_ReportsDrift(t *testing.T) {
	clock := timeutil.NewFixedClock(start)
	b := backend(clock)
	job := NewRefreshChallengeActivityJob(b, clock, quiet())
	ctx := context.Background()

	drift, err := job.Check(ctx)
	require.NoError(t, err)
	assert.Empty(t, drift)

	clock.Advance(3 * 24 * time.Hour)
	drift, err = job.Check(ctx)
	require.NoError(t, err)
	assert.Equal(t, []ActivityDrift{{ChallengeID: mock.ChallengeGermanBudget, Snapshot: false, Live: true}}, drift)

	clock.Advance(5 * 24 * time.Hour)
	drift, err = job.Check(ctx)
	require.NoError(t, err)
	assert.Len(t, drift, 3)

	require.NoError(t, job.Run(ctx))
}
