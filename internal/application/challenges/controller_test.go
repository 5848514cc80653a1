package challenges

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lingofin/lingofin-hub/internal/application/optimistic"
	"github.com/lingofin/lingofin-hub/internal/domain/challenge"
	"github.com/lingofin/lingofin-hub/internal/domain/shared"
	"github.com/lingofin/lingofin-hub/pkg/timeutil"
)

var errServer = shared.ServiceFailure("dataaccess", "test", errors.New("server unavailable"))

type fakeGateway struct {
	challenges  []challenge.Challenge
	joined      map[string][]string
	leaderboard map[string][]challenge.LeaderboardEntry

	joinErr  error
	scoreErr error
	calls    []string
}

func newFakeGateway(list ...challenge.Challenge) *fakeGateway {
	return &fakeGateway{
		challenges:  list,
		joined:      map[string][]string{},
		leaderboard: map[string][]challenge.LeaderboardEntry{},
	}
}

func (g *fakeGateway) FetchAllChallenges(context.Context) ([]challenge.Challenge, error) {
	g.calls = append(g.calls, "all")
	return g.challenges, nil
}

func (g *fakeGateway) FetchUserChallenges(_ context.Context, userID string) ([]challenge.Challenge, error) {
	g.calls = append(g.calls, "user")
	out := []challenge.Challenge{}
	for _, ch := range g.challenges {
		for _, id := range g.joined[userID] {
			if id == ch.ID {
				out = append(out, ch)
			}
		}
	}
	return out, nil
}

func (g *fakeGateway) JoinChallenge(_ context.Context, challengeID, userID string) (bool, error) {
	g.calls = append(g.calls, "join")
	if g.joinErr != nil {
		return false, g.joinErr
	}
	g.joined[userID] = append(g.joined[userID], challengeID)
	return true, nil
}

func (g *fakeGateway) FetchLeaderboard(_ context.Context, challengeID string) ([]challenge.LeaderboardEntry, error) {
	g.calls = append(g.calls, "leaderboard")
	return g.leaderboard[challengeID], nil
}

func (g *fakeGateway) UpdateChallengeScore(_ context.Context, challengeID, userID string, score int) (bool, error) {
	g.calls = append(g.calls, "score")
	if g.scoreErr != nil {
		return false, g.scoreErr
	}
	g.leaderboard[challengeID] = challenge.Upsert(g.leaderboard[challengeID], challenge.LeaderboardEntry{UserID: userID, Score: score})
	return true, nil
}

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func mustChallenge(t *testing.T, id string, start, end time.Time, now time.Time) challenge.Challenge {
	t.Helper()
	ch, err := challenge.New(challenge.NewParams{
		ID:         id,
		Title:      "Challenge " + id,
		Type:       challenge.TypeTranslation,
		Language:   shared.LanguageSpanish,
		Skill:      shared.SkillInvesting,
		Difficulty: shared.DifficultyIntermediate,
		StartDate:  start,
		EndDate:    end,
	}, now)
	require.NoError(t, err)
	return *ch
}

func TestJoinChallenge_ReloadsUserThenAll(t *testing.T) {
	gw := newFakeGateway(mustChallenge(t, "ch1", t0.Add(-time.Hour), t0.Add(time.Hour), t0))
	c := NewController(gw, Options{})

	require.NoError(t, c.JoinChallenge(context.Background(), "ch1", "u1"))

	assert.Equal(t, []string{"join", "user", "all"}, gw.calls)
	require.Len(t, c.UserChallenges("u1"), 1)
	assert.Len(t, c.Challenges(), 1)
}

func TestJoinChallenge_FailureRecordsError(t *testing.T) {
	gw := newFakeGateway()
	gw.joinErr = errServer
	c := NewController(gw, Options{})

	err := c.JoinChallenge(context.Background(), "ch1", "u1")

	require.Error(t, err)
	assert.Equal(t, []string{"join"}, gw.calls)
	assert.Equal(t, errServer.Error(), c.LastError())
}

func TestLoadLeaderboard_Ranks(t *testing.T) {
	gw := newFakeGateway()
	gw.leaderboard["ch1"] = []challenge.LeaderboardEntry{
		{UserID: "d", Score: 780},
		{UserID: "b", Score: 890},
		{UserID: "a", Score: 950},
		{UserID: "c", Score: 890},
	}
	c := NewController(gw, Options{})

	require.NoError(t, c.LoadLeaderboard(context.Background(), "ch1"))

	board := c.Leaderboard("ch1")
	require.Len(t, board, 4)
	ids, ranks := []string{}, []int{}
	for _, e := range board {
		ids = append(ids, e.UserID)
		ranks = append(ranks, e.Rank)
	}
	assert.Equal(t, []string{"a", "b", "c", "d"}, ids)
	assert.Equal(t, []int{1, 2, 3, 4}, ranks)
}

func TestUpdateScore(t *testing.T) {
	gw := newFakeGateway()
	c := NewController(gw, Options{})

	require.NoError(t, c.UpdateScore(context.Background(), "ch1", "u1", 500))
	assert.Equal(t, []string{"score", "leaderboard"}, gw.calls)
	require.Len(t, c.Leaderboard("ch1"), 1)
	assert.Equal(t, 1, c.Leaderboard("ch1")[0].Rank)
}

func TestUpdateScore_RejectsNegative(t *testing.T) {
	gw := newFakeGateway()
	c := NewController(gw, Options{})

	err := c.UpdateScore(context.Background(), "ch1", "u1", -1)

	require.Error(t, err)
	assert.True(t, shared.IsInvalidArgument(err))
	assert.Empty(t, gw.calls)
}

func TestUpdateScore_FailureSkipsReload(t *testing.T) {
	gw := newFakeGateway()
	gw.scoreErr = errServer
	c := NewController(gw, Options{})

	require.Error(t, c.UpdateScore(context.Background(), "ch1", "u1", 10))
	assert.Equal(t, []string{"score"}, gw.calls)
}

func TestActiveChallenges_SnapshotVersusLive(t *testing.T) {
	created := t0.Add(-72 * time.Hour)
	// Active when created, ended since.
	stale := mustChallenge(t, "stale", created.Add(-time.Hour), t0.Add(-time.Hour), created)
	// Starts after creation, running now.
	started := mustChallenge(t, "started", t0.Add(-time.Hour), t0.Add(time.Hour), created)
	require.True(t, stale.IsActive)
	require.False(t, started.IsActive)

	gw := newFakeGateway(stale, started)
	live := false
	c := NewController(gw, Options{
		Clock:        timeutil.NewFixedClock(t0),
		LiveActivity: func() bool { return live },
	})
	require.NoError(t, c.LoadChallenges(context.Background()))

	snap := c.ActiveChallenges()
	require.Len(t, snap, 1)
	assert.Equal(t, "stale", snap[0].ID)

	live = true
	now := c.ActiveChallenges()
	require.Len(t, now, 1)
	assert.Equal(t, "started", now[0].ID)
}

func TestSharedErrorSlot(t *testing.T) {
	slot := &optimistic.ErrorSlot{}
	gw := newFakeGateway()
	gw.joinErr = errServer
	c := NewController(gw, Options{Errors: slot})

	require.Error(t, c.JoinChallenge(context.Background(), "ch1", "u1"))
	assert.Equal(t, errServer, slot.Err())
	c.ClearError()
	assert.Empty(t, c.LastError())
}
