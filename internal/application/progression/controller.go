// Package progression keeps the course catalog, enrollments and per-user
// lesson completion in one store. Queries that take no user id answer for
// the current learner: the last user whose courses were loaded or who
// completed a lesson.
package progression

import (
	"context"
	"fmt"
	"sync"

	"github.com/lingofin/lingofin-hub/internal/application/optimistic"
	"github.com/lingofin/lingofin-hub/internal/domain/course"
	"github.com/lingofin/lingofin-hub/internal/domain/shared"
	"github.com/lingofin/lingofin-hub/pkg/logger"
	"github.com/lingofin/lingofin-hub/pkg/timeutil"
)

type Options struct {
	Errors    *optimistic.ErrorSlot
	Publisher shared.EventPublisher
	Logger    *logger.Logger
	Clock     timeutil.Clock
}

// Controller serializes store access behind mu. Gateway calls are made
// without holding it.
type Controller struct {
	gateway   course.Gateway
	runner    *optimistic.Runner
	publisher shared.EventPublisher
	log       *logger.Logger
	clock     timeutil.Clock

	mu      sync.Mutex
	store   *course.Store
	learner string
}

func NewController(gateway course.Gateway, opts Options) *Controller {
	if opts.Publisher == nil {
		opts.Publisher = shared.NopPublisher{}
	}
	if opts.Logger == nil {
		opts.Logger = logger.Nop()
	}
	log := opts.Logger.With(logger.Component("progression"))
	return &Controller{
		gateway:   gateway,
		runner:    optimistic.NewRunner(opts.Errors, opts.Publisher, log),
		publisher: opts.Publisher,
		log:       log,
		clock:     timeutil.OrSystem(opts.Clock),
		store:     course.NewStore(),
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// COMMANDS
// ══════════════════════════════════════════════════════════════════════════════

func (c *Controller) LoadCourses(ctx context.Context) error {
	courses, err := c.gateway.FetchAllCourses(ctx)
	if err != nil {
		return c.fail("load courses", err)
	}

	c.mu.Lock()
	c.store.ReplaceCatalog(courses)
	n := c.store.Len()
	c.mu.Unlock()

	c.log.Debug("catalog loaded", logger.Int("count", n))
	return nil
}

// LoadUserCourses replaces the user's enrollment entry with the server list.
func (c *Controller) LoadUserCourses(ctx context.Context, userID string) error {
	courses, err := c.gateway.FetchUserCourses(ctx, userID)
	if err != nil {
		return c.fail("load user courses", err, logger.UserID(userID))
	}

	c.mu.Lock()
	c.store.SetEnrollment(userID, courses)
	c.learner = userID
	c.mu.Unlock()

	c.log.Debug("enrollment loaded", logger.UserID(userID), logger.Int("count", len(courses)))
	return nil
}

// Enroll asks the server first and reloads the user's courses on success.
// Nothing is enrolled locally ahead of the answer.
func (c *Controller) Enroll(ctx context.Context, courseID, userID string) error {
	if _, err := c.gateway.Enroll(ctx, courseID, userID); err != nil {
		return c.fail("enroll", err, logger.CourseID(courseID), logger.UserID(userID))
	}

	c.log.Info("enrolled", logger.CourseID(courseID), logger.UserID(userID))
	if err := c.publisher.Publish(shared.NewCourseEnrolledEvent(courseID, userID)); err != nil {
		c.log.Error("publish enroll event", logger.Err(err))
	}
	return c.LoadUserCourses(ctx, userID)
}

// CompleteLesson marks the lesson completed for userID, then reports it to
// the server. A server failure is recorded and returned but the local flag
// stays set until the user's courses are reloaded. Unknown course or lesson
// ids are skipped silently.
func (c *Controller) CompleteLesson(ctx context.Context, courseID, lessonID, userID string) error {
	now := c.clock.Now()

	c.mu.Lock()
	err := c.store.MarkCompleted(userID, courseID, lessonID, now)
	if err == nil {
		c.learner = userID
	}
	c.mu.Unlock()

	if err != nil {
		c.log.Debug("complete lesson skipped", logger.CourseID(courseID), logger.LessonID(lessonID), logger.Err(err))
		return nil
	}

	return c.runner.RunWithoutRevert(ctx, "complete_lesson", lessonID, func(ctx context.Context) error {
		_, err := c.gateway.UpdateLessonProgress(ctx, lessonID, userID, true)
		return err
	})
}

// ══════════════════════════════════════════════════════════════════════════════
// QUERIES
// ══════════════════════════════════════════════════════════════════════════════

// CompletionPercentage returns the current learner's completed/total for
// the course, 0 when the course is unknown or has no lessons.
func (c *Controller) CompletionPercentage(courseID string) float64 {
	cs, ok := c.Course(courseID)
	if !ok {
		return 0
	}
	return course.CompletionPercentage(cs)
}

func (c *Controller) CheckAnswer(e course.Exercise, answer string) bool {
	return course.CheckAnswer(e, answer)
}

// Course returns the course with the current learner's completion.
func (c *Controller) Course(id string) (course.Course, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.store.View(c.learner, id)
}

// Catalog returns every known course in catalog order.
func (c *Controller) Catalog() []course.Course {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.store.All(c.learner)
}

func (c *Controller) EnrolledCourses(userID string) []course.Course {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.store.Enrolled(userID)
}

// PopularCourses returns popular courses, best rated first.
func (c *Controller) PopularCourses() []course.Course {
	return course.ByRating(course.FilterCourses(c.Catalog(), course.Filter{Popular: true}))
}

func (c *Controller) FilterCourses(f course.Filter) []course.Course {
	return course.FilterCourses(c.Catalog(), f)
}

func (c *Controller) SearchCourses(query string) []course.Course {
	return course.Search(c.Catalog(), query)
}

func (c *Controller) SortedLessons(courseID string) []course.Lesson {
	cs, ok := c.Course(courseID)
	if !ok {
		return []course.Lesson{}
	}
	return course.SortedLessons(cs)
}

func (c *Controller) IsEnrolled(userID, courseID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.store.IsEnrolled(userID, courseID)
}

// CanAccessLesson gates lesson playback behind enrollment.
func (c *Controller) CanAccessLesson(userID, courseID string) bool {
	return userID != "" && c.IsEnrolled(userID, courseID)
}

// Forget drops the user's enrollments and completion and, when they are the
// current learner, leaves the controller without one.
func (c *Controller) Forget(userID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.store.Forget(userID)
	if c.learner == userID {
		c.learner = ""
	}
}

func (c *Controller) LastError() string { return c.runner.Slot().Message() }

func (c *Controller) ClearError() { c.runner.Slot().Clear() }

func (c *Controller) fail(op string, err error, fields ...logger.Field) error {
	c.runner.Slot().Set(err)
	c.log.Warn(op+" failed", append(fields, logger.Err(err))...)
	return fmt.Errorf("%s: %w", op, err)
}
