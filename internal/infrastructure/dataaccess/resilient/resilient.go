// Package resilient wraps a data-access backend with retries and a circuit
// breaker. Reads and idempotent writes are retried; other writes are sent
// once.
package resilient

import (
	"context"

	"github.com/lingofin/lingofin-hub/internal/application/app"
	"github.com/lingofin/lingofin-hub/internal/domain/challenge"
	"github.com/lingofin/lingofin-hub/internal/domain/community"
	"github.com/lingofin/lingofin-hub/internal/domain/course"
	"github.com/lingofin/lingofin-hub/internal/domain/shared"
	"github.com/lingofin/lingofin-hub/internal/domain/user"
	"github.com/lingofin/lingofin-hub/pkg/circuitbreaker"
	"github.com/lingofin/lingofin-hub/pkg/logger"
	"github.com/lingofin/lingofin-hub/pkg/retry"
)

type Options struct {
	Retrier *retry.Retrier
	Breaker *circuitbreaker.CircuitBreaker
	Logger  *logger.Logger
}

// DataAccess decorates next. It implements app.DataAccess.
type DataAccess struct {
	next    app.DataAccess
	retrier *retry.Retrier
	once    *retry.Retrier
	breaker *circuitbreaker.CircuitBreaker
	log     *logger.Logger
}

var _ app.DataAccess = (*DataAccess)(nil)

func New(next app.DataAccess, opts Options) *DataAccess {
	if opts.Logger == nil {
		opts.Logger = logger.Nop()
	}
	log := opts.Logger.With(logger.Component("resilient-dataaccess"))
	if opts.Retrier == nil {
		opts.Retrier = retry.DataAccessRetrier(shared.IsRetryable)
	}
	if opts.Breaker == nil {
		opts.Breaker = circuitbreaker.DataAccessBreaker(shared.IsServiceFailure, func(name string, from, to circuitbreaker.State) {
			log.Warn("circuit state changed",
				logger.String("breaker", name),
				logger.String("from", from.String()),
				logger.String("to", to.String()),
			)
		})
	}
	return &DataAccess{
		next:    next,
		retrier: opts.Retrier,
		once:    retry.New(retry.WithMaxAttempts(1)),
		breaker: opts.Breaker,
		log:     log,
	}
}

// Breaker exposes the breaker for health reporting.
func (d *DataAccess) Breaker() *circuitbreaker.CircuitBreaker { return d.breaker }

// do runs fn through the breaker, retrying when idempotent is set. A breaker
// rejection surfaces as a service failure.
func do[T any](ctx context.Context, d *DataAccess, op string, idempotent bool, fn func(context.Context) (T, error)) (T, error) {
	r := d.once
	if idempotent {
		r = d.retrier
	}
	attempt := 0
	out, err := retry.DoValue(ctx, r, func(ctx context.Context) (T, error) {
		attempt++
		if attempt > 1 {
			d.log.Debug("retrying", logger.Operation(op), logger.Int("attempt", attempt))
		}
		return circuitbreaker.Call(ctx, d.breaker, fn)
	})
	if circuitbreaker.IsRejection(err) {
		return out, shared.WrapError("dataaccess", op, shared.ErrNetworkOrServiceFailure, "backend temporarily unavailable", err)
	}
	return out, err
}

func (d *DataAccess) FetchAllCourses(ctx context.Context) ([]course.Course, error) {
	return do(ctx, d, "FetchAllCourses", true, d.next.FetchAllCourses)
}

func (d *DataAccess) FetchUserCourses(ctx context.Context, userID string) ([]course.Course, error) {
	return do(ctx, d, "FetchUserCourses", true, func(ctx context.Context) ([]course.Course, error) {
		return d.next.FetchUserCourses(ctx, userID)
	})
}

func (d *DataAccess) Enroll(ctx context.Context, courseID, userID string) (bool, error) {
	return do(ctx, d, "Enroll", false, func(ctx context.Context) (bool, error) {
		return d.next.Enroll(ctx, courseID, userID)
	})
}

func (d *DataAccess) UpdateLessonProgress(ctx context.Context, lessonID, userID string, completed bool) (bool, error) {
	return do(ctx, d, "UpdateLessonProgress", true, func(ctx context.Context) (bool, error) {
		return d.next.UpdateLessonProgress(ctx, lessonID, userID, completed)
	})
}

func (d *DataAccess) FetchAllChallenges(ctx context.Context) ([]challenge.Challenge, error) {
	return do(ctx, d, "FetchAllChallenges", true, d.next.FetchAllChallenges)
}

func (d *DataAccess) FetchUserChallenges(ctx context.Context, userID string) ([]challenge.Challenge, error) {
	return do(ctx, d, "FetchUserChallenges", true, func(ctx context.Context) ([]challenge.Challenge, error) {
		return d.next.FetchUserChallenges(ctx, userID)
	})
}

func (d *DataAccess) JoinChallenge(ctx context.Context, challengeID, userID string) (bool, error) {
	return do(ctx, d, "JoinChallenge", false, func(ctx context.Context) (bool, error) {
		return d.next.JoinChallenge(ctx, challengeID, userID)
	})
}

func (d *DataAccess) FetchLeaderboard(ctx context.Context, challengeID string) ([]challenge.LeaderboardEntry, error) {
	return do(ctx, d, "FetchLeaderboard", true, func(ctx context.Context) ([]challenge.LeaderboardEntry, error) {
		return d.next.FetchLeaderboard(ctx, challengeID)
	})
}

func (d *DataAccess) UpdateChallengeScore(ctx context.Context, challengeID, userID string, score int) (bool, error) {
	return do(ctx, d, "UpdateChallengeScore", true, func(ctx context.Context) (bool, error) {
		return d.next.UpdateChallengeScore(ctx, challengeID, userID, score)
	})
}

func (d *DataAccess) FetchPosts(ctx context.Context) ([]community.Post, error) {
	return do(ctx, d, "FetchPosts", true, d.next.FetchPosts)
}

func (d *DataAccess) CreatePost(ctx context.Context, p community.Post) (community.Post, error) {
	return do(ctx, d, "CreatePost", false, func(ctx context.Context) (community.Post, error) {
		return d.next.CreatePost(ctx, p)
	})
}

// ToggleLike is not idempotent: a retried flip would undo itself.
func (d *DataAccess) ToggleLike(ctx context.Context, postID, userID string) (bool, error) {
	return do(ctx, d, "ToggleLike", false, func(ctx context.Context) (bool, error) {
		return d.next.ToggleLike(ctx, postID, userID)
	})
}

func (d *DataAccess) AddComment(ctx context.Context, postID string, c community.Comment) (community.Comment, error) {
	return do(ctx, d, "AddComment", false, func(ctx context.Context) (community.Comment, error) {
		return d.next.AddComment(ctx, postID, c)
	})
}

func (d *DataAccess) SignUp(ctx context.Context, email, name, password string) (*user.User, error) {
	return do(ctx, d, "SignUp", false, func(ctx context.Context) (*user.User, error) {
		return d.next.SignUp(ctx, email, name, password)
	})
}

func (d *DataAccess) SignIn(ctx context.Context, email, password string) (*user.User, error) {
	return do(ctx, d, "SignIn", true, func(ctx context.Context) (*user.User, error) {
		return d.next.SignIn(ctx, email, password)
	})
}

func (d *DataAccess) UpdateProfile(ctx context.Context, u *user.User) (*user.User, error) {
	return do(ctx, d, "UpdateProfile", true, func(ctx context.Context) (*user.User, error) {
		return d.next.UpdateProfile(ctx, u)
	})
}
