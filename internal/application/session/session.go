// Package session holds the signed-in learner explicitly and persists it in
// a key-value store under a fixed key.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/lingofin/lingofin-hub/internal/application/optimistic"
	"github.com/lingofin/lingofin-hub/internal/domain/shared"
	"github.com/lingofin/lingofin-hub/internal/domain/user"
	"github.com/lingofin/lingofin-hub/pkg/kv"
	"github.com/lingofin/lingofin-hub/pkg/logger"
	"github.com/lingofin/lingofin-hub/pkg/timeutil"
)

// CurrentUserKey is the single key the session lives under.
const CurrentUserKey = "current_user"

var validate = validator.New()

type signUpForm struct {
	Email    string `validate:"required,email"`
	Name     string `validate:"required"`
	Password string `validate:"min=6"`
}

type signInForm struct {
	Email    string `validate:"required,email"`
	Password string `validate:"required"`
}

type Options struct {
	Errors     *optimistic.ErrorSlot
	Publisher  shared.EventPublisher
	Logger     *logger.Logger
	Clock      timeutil.Clock
	BadgeRules user.BadgeRules
}

// Controller is the explicit replacement for a process-wide current user.
type Controller struct {
	gateway   user.Gateway
	store     kv.Store
	slot      *optimistic.ErrorSlot
	publisher shared.EventPublisher
	log       *logger.Logger
	clock     timeutil.Clock
	rules     user.BadgeRules

	mu      sync.Mutex
	current *user.User
}

func NewController(gateway user.Gateway, store kv.Store, opts Options) *Controller {
	if store == nil {
		store = kv.NewMemory()
	}
	if opts.Errors == nil {
		opts.Errors = &optimistic.ErrorSlot{}
	}
	if opts.Publisher == nil {
		opts.Publisher = shared.NopPublisher{}
	}
	if opts.Logger == nil {
		opts.Logger = logger.Nop()
	}
	if opts.BadgeRules == nil {
		opts.BadgeRules = user.DefaultBadgeRules()
	}
	return &Controller{
		gateway:   gateway,
		store:     store,
		slot:      opts.Errors,
		publisher: opts.Publisher,
		log:       opts.Logger.With(logger.Component("session")),
		clock:     timeutil.OrSystem(opts.Clock),
		rules:     opts.BadgeRules,
	}
}

// Restore loads the persisted user once. A missing or unreadable record
// leaves the controller signed out without an error.
func (c *Controller) Restore(ctx context.Context) error {
	data, err := c.store.Get(ctx, CurrentUserKey)
	if errors.Is(err, kv.ErrKeyNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("restore session: %w", err)
	}

	var u user.User
	if err := json.Unmarshal(data, &u); err != nil {
		c.log.Warn("stored session is unreadable, ignoring", logger.Err(err))
		return nil
	}

	c.mu.Lock()
	c.current = &u
	c.mu.Unlock()

	c.log.Info("session restored", logger.UserID(u.ID))
	return nil
}

func (c *Controller) SignUp(ctx context.Context, email, name, password string) (*user.User, error) {
	form := signUpForm{Email: strings.TrimSpace(email), Name: strings.TrimSpace(name), Password: password}
	if err := validateForm("SignUp", form); err != nil {
		c.slot.Set(err)
		return nil, err
	}

	u, err := c.gateway.SignUp(ctx, form.Email, form.Name, password)
	if err != nil {
		return nil, c.fail("sign up", err, logger.Email(form.Email))
	}
	c.begin(ctx, u, "sign_up")
	return u.Clone(), nil
}

func (c *Controller) SignIn(ctx context.Context, email, password string) (*user.User, error) {
	form := signInForm{Email: strings.TrimSpace(email), Password: password}
	if err := validateForm("SignIn", form); err != nil {
		c.slot.Set(err)
		return nil, err
	}

	u, err := c.gateway.SignIn(ctx, form.Email, password)
	if err != nil {
		return nil, c.fail("sign in", err, logger.Email(form.Email))
	}
	c.begin(ctx, u, "sign_in")
	return u.Clone(), nil
}

// SignOut clears the session and removes the persisted record.
func (c *Controller) SignOut(ctx context.Context) error {
	c.mu.Lock()
	prev := c.current
	c.current = nil
	c.mu.Unlock()

	if err := c.store.Delete(ctx, CurrentUserKey); err != nil {
		return c.fail("sign out", err)
	}
	if prev != nil {
		c.publish(shared.NewSessionEndedEvent(prev.ID))
		c.log.Info("signed out", logger.UserID(prev.ID))
	}
	return nil
}

// ProfileChanges lists the editable profile fields. Nil fields are kept.
type ProfileChanges struct {
	Name          *string
	Languages     []shared.Language
	LearningGoals []user.LearningGoal
}

// UpdateProfile sends a modified copy of the session user and adopts the
// server's answer. The session is unchanged on failure.
func (c *Controller) UpdateProfile(ctx context.Context, ch ProfileChanges) (*user.User, error) {
	u, err := c.snapshot()
	if err != nil {
		return nil, err
	}

	if ch.Name != nil {
		name := strings.TrimSpace(*ch.Name)
		if name == "" {
			err := shared.InvalidArgument("session", "UpdateProfile", "name is required")
			c.slot.Set(err)
			return nil, err
		}
		u.Name = name
	}
	if ch.Languages != nil {
		u.SetLanguages(ch.Languages)
	}
	if ch.LearningGoals != nil {
		u.LearningGoals = append([]user.LearningGoal{}, ch.LearningGoals...)
	}
	u.Touch(c.clock.Now())

	saved, err := c.gateway.UpdateProfile(ctx, u)
	if err != nil {
		return nil, c.fail("update profile", err, logger.UserID(u.ID))
	}
	c.replace(ctx, saved)
	return saved.Clone(), nil
}

// LessonResult is what RecordLessonProgress changed.
type LessonResult struct {
	Progress  user.Progress
	LeveledUp bool
	Badges    []user.Badge
}

// RecordLessonProgress runs the progress engine and badge rules on the
// session user and saves the result through the profile endpoint.
// When the endpoint fails the award is still applied to the session and
// persisted locally; the remote error is reported in the last-error slot
// and returned along with the result.
func (c *Controller) RecordLessonProgress(ctx context.Context, lessons, timeSpent, points int) (LessonResult, error) {
	u, err := c.snapshot()
	if err != nil {
		return LessonResult{}, err
	}

	before := u.Progress
	next, err := user.ApplyLessonCompletion(before, lessons, timeSpent, points)
	if err != nil {
		c.slot.Set(err)
		return LessonResult{}, fmt.Errorf("record progress: %w", err)
	}
	now := c.clock.Now()
	next, earned := c.rules.Apply(next, now)

	u.Progress = next
	u.Touch(now)

	saved, remoteErr := c.gateway.UpdateProfile(ctx, u)
	if remoteErr != nil {
		saved = u
	}
	c.replace(ctx, saved)

	res := LessonResult{Progress: saved.Progress.Clone(), LeveledUp: next.Level > before.Level, Badges: earned}
	c.publish(shared.NewLessonCompletedEvent(u.ID, lessons, timeSpent, points, next.TotalPoints))
	if res.LeveledUp {
		c.publish(shared.NewLevelUpEvent(u.ID, before.Level, next.Level, next.ExperiencePoints))
		c.log.Info("level up", logger.UserID(u.ID), logger.UserLevel(next.Level))
	}
	for _, b := range earned {
		c.publish(shared.NewBadgeEarnedEvent(u.ID, b.ID, b.Name, string(b.Category)))
	}
	if remoteErr != nil {
		return res, c.fail("sync progress", remoteErr, logger.UserID(u.ID))
	}
	return res, nil
}

// CurrentUser returns a copy of the session user, or nil.
func (c *Controller) CurrentUser() *user.User {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current.Clone()
}

func (c *Controller) IsAuthenticated() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current != nil
}

func (c *Controller) LastError() string { return c.slot.Message() }

func (c *Controller) ClearError() { c.slot.Clear() }

// ══════════════════════════════════════════════════════════════════════════════
// HELPERS
// ══════════════════════════════════════════════════════════════════════════════

func (c *Controller) snapshot() (*user.User, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == nil {
		c.slot.Set(shared.ErrNoSession)
		return nil, shared.ErrNoSession
	}
	return c.current.Clone(), nil
}

func (c *Controller) begin(ctx context.Context, u *user.User, reason string) {
	c.replace(ctx, u)
	c.publish(shared.NewSessionStartedEvent(u.ID, reason))
	c.log.Info("session started", logger.UserID(u.ID), logger.String("reason", reason))
}

// replace swaps in u and persists it. A persistence failure is logged only:
// the in-memory session is already valid.
func (c *Controller) replace(ctx context.Context, u *user.User) {
	cp := u.Clone()
	c.mu.Lock()
	c.current = cp
	c.mu.Unlock()

	data, err := json.Marshal(cp)
	if err == nil {
		err = c.store.Set(ctx, CurrentUserKey, data)
	}
	if err != nil {
		c.log.Error("persist session", logger.UserID(cp.ID), logger.Err(err))
	}
}

func (c *Controller) fail(op string, err error, fields ...logger.Field) error {
	c.slot.Set(err)
	c.log.Warn(op+" failed", append(fields, logger.Err(err))...)
	return fmt.Errorf("%s: %w", op, err)
}

func (c *Controller) publish(e shared.Event) {
	if err := c.publisher.Publish(e); err != nil {
		c.log.Error("publish event", logger.String("event", string(e.EventType())), logger.Err(err))
	}
}

// validateForm turns validator failures into one InvalidArgument error
// naming the first offending field.
func validateForm(op string, form any) error {
	err := validate.Struct(form)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		switch fe.Tag() {
		case "email":
			return shared.InvalidArgument("session", op, "invalid email format")
		case "min":
			return shared.InvalidArgument("session", op, "%s must be at least %s characters", strings.ToLower(fe.Field()), fe.Param())
		default:
			return shared.InvalidArgument("session", op, "%s is required", strings.ToLower(fe.Field()))
		}
	}
	return shared.InvalidArgument("session", op, "%v", err)
}
