// Package app assembles the controllers around one data-access backend.
package app

import (
	"context"
	"fmt"

	"github.com/lingofin/lingofin-hub/internal/application/challenges"
	"github.com/lingofin/lingofin-hub/internal/application/community"
	"github.com/lingofin/lingofin-hub/internal/application/optimistic"
	"github.com/lingofin/lingofin-hub/internal/application/progression"
	"github.com/lingofin/lingofin-hub/internal/application/session"
	"github.com/lingofin/lingofin-hub/internal/domain/challenge"
	communitydomain "github.com/lingofin/lingofin-hub/internal/domain/community"
	"github.com/lingofin/lingofin-hub/internal/domain/course"
	"github.com/lingofin/lingofin-hub/internal/domain/shared"
	"github.com/lingofin/lingofin-hub/internal/domain/user"
	"github.com/lingofin/lingofin-hub/pkg/kv"
	"github.com/lingofin/lingofin-hub/pkg/logger"
	"github.com/lingofin/lingofin-hub/pkg/timeutil"
)

// DataAccess is the full backend capability. Every backend (mock, postgres,
// HTTP client, resilient decorator) implements it.
type DataAccess interface {
	course.Gateway
	challenge.Gateway
	communitydomain.Gateway
	user.Gateway
}

type Options struct {
	Publisher    shared.EventPublisher
	Logger       *logger.Logger
	Clock        timeutil.Clock
	LiveActivity func() bool
}

// App is one learner-facing client of the backend.
type App struct {
	Session     *session.Controller
	Progression *progression.Controller
	Challenges  *challenges.Controller
	Community   *community.Manager

	log *logger.Logger
}

func New(da DataAccess, store kv.Store, opts Options) *App {
	if opts.Logger == nil {
		opts.Logger = logger.Nop()
	}
	clock := timeutil.OrSystem(opts.Clock)

	// Challenges and the feed share one screen and one error banner.
	social := &optimistic.ErrorSlot{}

	return &App{
		Session: session.NewController(da, store, session.Options{
			Publisher: opts.Publisher,
			Logger:    opts.Logger,
			Clock:     clock,
		}),
		Progression: progression.NewController(da, progression.Options{
			Publisher: opts.Publisher,
			Logger:    opts.Logger,
			Clock:     clock,
		}),
		Challenges: challenges.NewController(da, challenges.Options{
			Errors:       social,
			Publisher:    opts.Publisher,
			Logger:       opts.Logger,
			Clock:        clock,
			LiveActivity: opts.LiveActivity,
		}),
		Community: community.NewManager(da, community.Options{
			Errors:    social,
			Publisher: opts.Publisher,
			Logger:    opts.Logger,
		}),
		log: opts.Logger.With(logger.Component("app")),
	}
}

// Start restores the session and loads the first screens. Load failures are
// recorded in the controllers and do not stop startup.
func (a *App) Start(ctx context.Context) error {
	if err := a.Session.Restore(ctx); err != nil {
		return err
	}
	_ = a.Progression.LoadCourses(ctx)
	_ = a.Challenges.LoadChallenges(ctx)
	_ = a.Community.LoadPosts(ctx)

	if u := a.Session.CurrentUser(); u != nil {
		_ = a.Progression.LoadUserCourses(ctx, u.ID)
		_ = a.Challenges.LoadUserChallenges(ctx, u.ID)
	}
	return nil
}

// LessonOutcome is the result of finishing one lesson.
type LessonOutcome struct {
	Points    int
	TimeSpent int
	Result    session.LessonResult
}

// FinishLesson scores the submitted answers, marks the lesson completed and
// credits the session user with one lesson, its duration and the points.
// A failed completion report does not stop the progress update.
func (a *App) FinishLesson(ctx context.Context, courseID, lessonID string, answers map[string]string) (LessonOutcome, error) {
	u := a.Session.CurrentUser()
	if u == nil {
		return LessonOutcome{}, shared.ErrNoSession
	}
	if !a.Progression.CanAccessLesson(u.ID, courseID) {
		return LessonOutcome{}, shared.ErrNotEnrolled
	}

	c, ok := a.Progression.Course(courseID)
	if !ok {
		return LessonOutcome{}, shared.ErrCourseNotFound
	}
	lesson, ok := c.Lesson(lessonID)
	if !ok {
		return LessonOutcome{}, shared.ErrLessonNotFound
	}

	out := LessonOutcome{
		Points:    course.ExerciseScore(lesson.Exercises, answers),
		TimeSpent: lesson.TimeSpent(),
	}

	if err := a.Progression.CompleteLesson(ctx, courseID, lessonID, u.ID); err != nil {
		a.log.Warn("lesson completion not confirmed", logger.LessonID(lessonID), logger.Err(err))
	}

	res, err := a.Session.RecordLessonProgress(ctx, 1, out.TimeSpent, out.Points)
	out.Result = res
	if err != nil {
		return out, fmt.Errorf("finish lesson: %w", err)
	}
	return out, nil
}

// SignIn replaces the session and switches the course and challenge views
// to the new user. A previous user's enrollments and completion are
// dropped from the progression store.
func (a *App) SignIn(ctx context.Context, email, password string) (*user.User, error) {
	prev := a.Session.CurrentUser()
	u, err := a.Session.SignIn(ctx, email, password)
	if err != nil {
		return nil, err
	}
	if prev != nil && prev.ID != u.ID {
		a.Progression.Forget(prev.ID)
	}
	_ = a.Progression.LoadUserCourses(ctx, u.ID)
	_ = a.Challenges.LoadUserChallenges(ctx, u.ID)
	return u, nil
}

// SignOut ends the session and forgets the user's course state.
func (a *App) SignOut(ctx context.Context) error {
	prev := a.Session.CurrentUser()
	if err := a.Session.SignOut(ctx); err != nil {
		return err
	}
	if prev != nil {
		a.Progression.Forget(prev.ID)
	}
	return nil
}
