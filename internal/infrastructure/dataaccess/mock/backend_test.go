package mock

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/lingofin/lingofin-hub/internal/domain/challenge"
	"github.com/lingofin/lingofin-hub/internal/domain/community"
	"github.com/lingofin/lingofin-hub/internal/domain/shared"
	"github.com/lingofin/lingofin-hub/pkg/timeutil"
)

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newBackend() *Backend {
	return New(Config{HashCost: bcrypt.MinCost, SeedDemoUser: true, Clock: timeutil.NewFixedClock(t0)})
}

func TestSeed(t *testing.T) {
	b := newBackend()
	ctx := context.Background()

	courses, err := b.FetchAllCourses(ctx)
	require.NoError(t, err)
	require.Len(t, courses, 4)
	assert.Equal(t, "French Banking Essentials", courses[0].Title)

	chs, err := b.FetchAllChallenges(ctx)
	require.NoError(t, err)
	require.Len(t, chs, 3)
	assert.True(t, chs[0].IsActive)
	assert.True(t, chs[1].IsActive)
	assert.False(t, chs[2].IsActive, "German Budget Planning starts in two days")

	board, err := b.FetchLeaderboard(ctx, ChallengeSpanishQuiz)
	require.NoError(t, err)
	require.Len(t, board, 5)
	assert.Equal(t, "Maria Garcia", challenge.Rank(board)[0].UserName)

	posts, err := b.FetchPosts(ctx)
	require.NoError(t, err)
	assert.Len(t, posts, 3)
}

func TestDemoUser(t *testing.T) {
	b := newBackend()
	ctx := context.Background()

	u, err := b.SignIn(ctx, "Demo@LingoFin.app", DemoPassword)
	require.NoError(t, err)
	assert.Equal(t, DemoName, u.Name)

	courses, err := b.FetchUserCourses(ctx, u.ID)
	require.NoError(t, err)
	assert.Len(t, courses, 2)

	chs, err := b.FetchUserChallenges(ctx, u.ID)
	require.NoError(t, err)
	require.Len(t, chs, 1)
	assert.Equal(t, ChallengeFrenchTransl, chs[0].ID)

	_, err = b.SignIn(ctx, DemoEmail, "wrong")
	assert.ErrorIs(t, err, shared.ErrInvalidCredentials)
}

func TestSignUp(t *testing.T) {
	b := newBackend()
	ctx := context.Background()

	u, err := b.SignUp(ctx, "new@example.com", "Newbie", "secret1")
	require.NoError(t, err)
	assert.Equal(t, 1, u.Progress.Level)

	_, err = b.SignUp(ctx, "NEW@example.com", "Again", "secret1")
	assert.ErrorIs(t, err, shared.ErrEmailTaken)

	_, err = b.SignUp(ctx, "broken", "Bad", "secret1")
	assert.True(t, shared.IsInvalidArgument(err))

	again, err := b.SignIn(ctx, "new@example.com", "secret1")
	require.NoError(t, err)
	assert.Equal(t, u.ID, again.ID)
}

func TestEnrollAndProgressOverlay(t *testing.T) {
	b := newBackend()
	ctx := context.Background()

	ok, err := b.Enroll(ctx, CourseGermanFinance, "u1")
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = b.UpdateLessonProgress(ctx, CourseGermanFinance+"-l1", "u1", true)
	require.NoError(t, err)

	courses, err := b.FetchUserCourses(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, courses, 1)
	assert.True(t, courses[0].Lessons[0].IsCompleted)
	assert.False(t, courses[0].Lessons[1].IsCompleted)

	catalog, err := b.FetchAllCourses(ctx)
	require.NoError(t, err)
	assert.False(t, catalog[2].Lessons[0].IsCompleted, "catalog carries no per-user state")
	assert.Equal(t, 651, catalog[2].EnrolledCount)

	_, err = b.Enroll(ctx, "missing", "u1")
	assert.True(t, shared.IsNotFound(err))
	_, err = b.UpdateLessonProgress(ctx, "missing", "u1", true)
	assert.True(t, shared.IsNotFound(err))
}

func TestChallengeFlow(t *testing.T) {
	b := newBackend()
	ctx := context.Background()

	_, err := b.JoinChallenge(ctx, ChallengeGermanBudget, "u1")
	require.NoError(t, err)
	_, err = b.UpdateChallengeScore(ctx, ChallengeGermanBudget, "u1", 990)
	require.NoError(t, err)

	board, err := b.FetchLeaderboard(ctx, ChallengeGermanBudget)
	require.NoError(t, err)
	ranked := challenge.Rank(board)
	assert.Equal(t, "u1", ranked[0].UserID)
	assert.Len(t, ranked, 6)

	_, err = b.UpdateChallengeScore(ctx, ChallengeGermanBudget, "u1", -5)
	assert.True(t, shared.IsInvalidArgument(err))
	_, err = b.JoinChallenge(ctx, "missing", "u1")
	assert.True(t, shared.IsNotFound(err))
}

func TestCommunityFlow(t *testing.T) {
	b := newBackend()
	ctx := context.Background()

	draft, err := community.NewPost("u1", "Al", "Hola", community.PostQuestion, t0)
	require.NoError(t, err)
	created, err := b.CreatePost(ctx, draft)
	require.NoError(t, err)
	assert.Equal(t, draft.ID, created.ID)

	_, err = b.ToggleLike(ctx, created.ID, "u2")
	require.NoError(t, err)
	c, err := b.AddComment(ctx, created.ID, community.Comment{AuthorID: "u2", Content: "Bienvenido"})
	require.NoError(t, err)
	assert.NotEmpty(t, c.ID)

	posts, err := b.FetchPosts(ctx)
	require.NoError(t, err)
	require.Len(t, posts, 4)
	assert.Equal(t, created.ID, posts[0].ID)
	assert.Equal(t, []string{"u2"}, posts[0].Likes)
	assert.Len(t, posts[0].Comments, 1)

	_, err = b.ToggleLike(ctx, "missing", "u2")
	assert.ErrorIs(t, err, shared.ErrPostNotFound)
}

func TestFailureInjection(t *testing.T) {
	b := newBackend()
	ctx := context.Background()
	boom := shared.ServiceFailure("mock", OpFetchPosts, errors.New("boom"))

	b.FailNext(OpFetchPosts, boom)
	_, err := b.FetchPosts(ctx)
	assert.ErrorIs(t, err, boom)
	_, err = b.FetchPosts(ctx)
	assert.NoError(t, err, "FailNext fires once")

	b.FailAlways(OpToggleLike, boom)
	for range 2 {
		_, err = b.ToggleLike(ctx, "post-emma-tip", "u1")
		assert.ErrorIs(t, err, boom)
	}
	b.ClearFailures()
	_, err = b.ToggleLike(ctx, "post-emma-tip", "u1")
	assert.NoError(t, err)
}

func TestLatencyHonoursContext(t *testing.T) {
	b := New(Config{MinLatency: time.Second, MaxLatency: 2 * time.Second, HashCost: bcrypt.MinCost})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := b.FetchAllCourses(ctx)
	require.Error(t, err)
	assert.True(t, shared.IsServiceFailure(err))
}
