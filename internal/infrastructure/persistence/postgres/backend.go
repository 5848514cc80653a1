package postgres

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/lingofin/lingofin-hub/internal/application/app"
	"github.com/lingofin/lingofin-hub/internal/domain/challenge"
	"github.com/lingofin/lingofin-hub/internal/domain/community"
	"github.com/lingofin/lingofin-hub/internal/domain/course"
	"github.com/lingofin/lingofin-hub/internal/domain/shared"
	"github.com/lingofin/lingofin-hub/internal/domain/user"
	"github.com/lingofin/lingofin-hub/pkg/logger"
	"github.com/lingofin/lingofin-hub/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// DATA-ACCESS BACKEND
// ══════════════════════════════════════════════════════════════════════════════

type BackendOptions struct {
	// HashCost is the bcrypt cost for new passwords.
	HashCost int
	Clock    timeutil.Clock
	Logger   *logger.Logger
}

// Backend serves the data-access port from PostgreSQL. Every error it
// returns is classified into the shared taxonomy.
type Backend struct {
	courses    *CourseRepository
	challenges *ChallengeRepository
	community  *CommunityRepository
	users      *UserRepository

	hashCost int
	clock    timeutil.Clock
	log      *logger.Logger
}

var _ app.DataAccess = (*Backend)(nil)

func NewBackend(conn *Connection, opts BackendOptions) *Backend {
	if opts.HashCost == 0 {
		opts.HashCost = bcrypt.DefaultCost
	}
	if opts.Logger == nil {
		opts.Logger = logger.Nop()
	}
	return &Backend{
		courses:    NewCourseRepository(conn),
		challenges: NewChallengeRepository(conn),
		community:  NewCommunityRepository(conn),
		users:      NewUserRepository(conn),
		hashCost:   opts.HashCost,
		clock:      timeutil.OrSystem(opts.Clock),
		log:        opts.Logger.With(logger.Component("postgres-backend")),
	}
}

// Courses exposes the course repository for the catalog importer.
func (b *Backend) Courses() *CourseRepository { return b.courses }

// Challenges exposes the challenge repository for seeding.
func (b *Backend) Challenges() *ChallengeRepository { return b.challenges }

func classify(op string, err error) error {
	return shared.Classify("postgres", op, err)
}

// ─────────────────────────────────────────────────────────────────────────────
// Courses
// ─────────────────────────────────────────────────────────────────────────────

func (b *Backend) FetchAllCourses(ctx context.Context) ([]course.Course, error) {
	out, err := b.courses.List(ctx)
	return out, classify("FetchAllCourses", err)
}

func (b *Backend) FetchUserCourses(ctx context.Context, userID string) ([]course.Course, error) {
	out, err := b.courses.ListEnrolled(ctx, userID)
	return out, classify("FetchUserCourses", err)
}

func (b *Backend) Enroll(ctx context.Context, courseID, userID string) (bool, error) {
	if err := b.courses.Enroll(ctx, courseID, userID, b.clock.Now()); err != nil {
		return false, classify("Enroll", err)
	}
	return true, nil
}

func (b *Backend) UpdateLessonProgress(ctx context.Context, lessonID, userID string, completed bool) (bool, error) {
	if err := b.courses.SetLessonProgress(ctx, lessonID, userID, completed, b.clock.Now()); err != nil {
		return false, classify("UpdateLessonProgress", err)
	}
	return true, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Challenges
// ─────────────────────────────────────────────────────────────────────────────

func (b *Backend) FetchAllChallenges(ctx context.Context) ([]challenge.Challenge, error) {
	out, err := b.challenges.List(ctx)
	return out, classify("FetchAllChallenges", err)
}

func (b *Backend) FetchUserChallenges(ctx context.Context, userID string) ([]challenge.Challenge, error) {
	out, err := b.challenges.ListJoined(ctx, userID)
	return out, classify("FetchUserChallenges", err)
}

// JoinChallenge also records the challenge on the user's profile when the
// user has an account here.
func (b *Backend) JoinChallenge(ctx context.Context, challengeID, userID string) (bool, error) {
	const op = "JoinChallenge"
	now := b.clock.Now()
	if err := b.challenges.Join(ctx, challengeID, userID, b.userName(ctx, userID), now); err != nil {
		return false, classify(op, err)
	}

	u, _, err := b.users.GetByID(ctx, userID)
	switch {
	case shared.IsNotFound(err):
	case err != nil:
		b.log.Warn("load user after join", logger.UserID(userID), logger.Err(err))
	case u.JoinChallenge(challengeID):
		if err := b.users.Update(ctx, u); err != nil {
			b.log.Warn("record joined challenge", logger.UserID(userID), logger.Err(err))
		}
	}
	return true, nil
}

func (b *Backend) FetchLeaderboard(ctx context.Context, challengeID string) ([]challenge.LeaderboardEntry, error) {
	out, err := b.challenges.Leaderboard(ctx, challengeID)
	return out, classify("FetchLeaderboard", err)
}

func (b *Backend) UpdateChallengeScore(ctx context.Context, challengeID, userID string, score int) (bool, error) {
	if score < 0 {
		return false, shared.ErrNegativeScore
	}
	err := b.challenges.UpsertEntry(ctx, challengeID, challenge.LeaderboardEntry{
		UserID:      userID,
		UserName:    b.userName(ctx, userID),
		Score:       score,
		LastUpdated: b.clock.Now(),
	})
	if err != nil {
		return false, classify("UpdateChallengeScore", err)
	}
	return true, nil
}

func (b *Backend) userName(ctx context.Context, userID string) string {
	names, err := b.users.Names(ctx, []string{userID})
	if err != nil {
		b.log.Debug("resolve user name", logger.UserID(userID), logger.Err(err))
		return ""
	}
	return names[userID]
}

// ─────────────────────────────────────────────────────────────────────────────
// Community
// ─────────────────────────────────────────────────────────────────────────────

func (b *Backend) FetchPosts(ctx context.Context) ([]community.Post, error) {
	out, err := b.community.ListPosts(ctx, 0)
	return out, classify("FetchPosts", err)
}

// CreatePost stores p and echoes it back with id and timestamps filled in.
func (b *Backend) CreatePost(ctx context.Context, p community.Post) (community.Post, error) {
	const op = "CreatePost"
	if strings.TrimSpace(p.Content) == "" {
		return community.Post{}, shared.ErrEmptyContent
	}
	if !p.Type.IsValid() {
		return community.Post{}, shared.InvalidArgument("postgres", op, "unknown post type %q", p.Type)
	}
	p = p.Clone()
	now := b.clock.Now()
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now
	p.Likes = []string{}
	p.Comments = []community.Comment{}
	p.Attachments = nonNil(p.Attachments)

	if err := b.community.CreatePost(ctx, p); err != nil {
		return community.Post{}, classify(op, err)
	}
	return p, nil
}

func (b *Backend) ToggleLike(ctx context.Context, postID, userID string) (bool, error) {
	if _, err := b.community.ToggleLike(ctx, postID, userID); err != nil {
		return false, classify("ToggleLike", err)
	}
	return true, nil
}

func (b *Backend) AddComment(ctx context.Context, postID string, c community.Comment) (community.Comment, error) {
	if strings.TrimSpace(c.Content) == "" {
		return community.Comment{}, shared.ErrEmptyContent
	}
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = b.clock.Now()
	}
	c.Likes = nonNil(c.Likes)
	c.Replies = nonNil(c.Replies)
	if err := b.community.AddComment(ctx, postID, c); err != nil {
		return community.Comment{}, classify("AddComment", err)
	}
	return c, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Users
// ─────────────────────────────────────────────────────────────────────────────

func (b *Backend) SignUp(ctx context.Context, email, name, password string) (*user.User, error) {
	const op = "SignUp"
	addr, err := shared.NewEmail(email)
	if err != nil {
		return nil, err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), b.hashCost)
	if err != nil {
		return nil, shared.ServiceFailure("postgres", op, err)
	}
	u := user.New(addr.String(), name, b.clock.Now())
	if err := b.users.Create(ctx, u, hash); err != nil {
		return nil, classify(op, err)
	}
	b.log.Info("account created", logger.UserID(u.ID))
	return u, nil
}

// SignIn answers ErrInvalidCredentials for both an unknown email and a
// wrong password.
func (b *Backend) SignIn(ctx context.Context, email, password string) (*user.User, error) {
	const op = "SignIn"
	u, hash, err := b.users.GetByEmail(ctx, strings.TrimSpace(email))
	if shared.IsNotFound(err) {
		return nil, shared.ErrInvalidCredentials
	}
	if err != nil {
		return nil, classify(op, err)
	}
	if err := bcrypt.CompareHashAndPassword(hash, []byte(password)); err != nil {
		return nil, shared.ErrInvalidCredentials
	}

	u.Touch(b.clock.Now())
	if err := b.users.Update(ctx, u); err != nil {
		b.log.Warn("touch last active", logger.UserID(u.ID), logger.Err(err))
	}
	return u, nil
}

// UpdateProfile replaces the stored profile; the email is kept.
func (b *Backend) UpdateProfile(ctx context.Context, u *user.User) (*user.User, error) {
	const op = "UpdateProfile"
	if u == nil {
		return nil, shared.InvalidArgument("postgres", op, "user is required")
	}
	stored, _, err := b.users.GetByID(ctx, u.ID)
	if err != nil {
		return nil, classify(op, err)
	}
	next := u.Clone()
	next.Email = stored.Email
	if err := b.users.Update(ctx, next); err != nil {
		return nil, classify(op, err)
	}
	return next.Clone(), nil
}
