// Package mock is an in-memory data-access backend seeded with the demo
// catalog, challenges, leaderboard and feed. It simulates network latency
// and lets tests inject failures per operation.
package mock

import (
	"context"
	"math/rand/v2"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/lingofin/lingofin-hub/internal/domain/challenge"
	"github.com/lingofin/lingofin-hub/internal/domain/community"
	"github.com/lingofin/lingofin-hub/internal/domain/course"
	"github.com/lingofin/lingofin-hub/internal/domain/shared"
	"github.com/lingofin/lingofin-hub/internal/domain/user"
	"github.com/lingofin/lingofin-hub/pkg/logger"
	"github.com/lingofin/lingofin-hub/pkg/timeutil"
)

// Operation names accepted by FailNext and FailAlways.
const (
	OpFetchAllCourses      = "FetchAllCourses"
	OpFetchUserCourses     = "FetchUserCourses"
	OpEnroll               = "Enroll"
	OpUpdateLessonProgress = "UpdateLessonProgress"
	OpFetchAllChallenges   = "FetchAllChallenges"
	OpFetchUserChallenges  = "FetchUserChallenges"
	OpJoinChallenge        = "JoinChallenge"
	OpFetchLeaderboard     = "FetchLeaderboard"
	OpUpdateChallengeScore = "UpdateChallengeScore"
	OpFetchPosts           = "FetchPosts"
	OpCreatePost           = "CreatePost"
	OpToggleLike           = "ToggleLike"
	OpAddComment           = "AddComment"
	OpSignUp               = "SignUp"
	OpSignIn               = "SignIn"
	OpUpdateProfile        = "UpdateProfile"
)

type Config struct {
	// MinLatency and MaxLatency bound the simulated round trip. Zero disables it.
	MinLatency time.Duration
	MaxLatency time.Duration
	// HashCost is the bcrypt cost for stored passwords.
	HashCost int
	// SeedDemoUser adds DemoEmail/DemoPassword enrolled in the first two
	// courses and joined to the first challenge.
	SeedDemoUser bool
	Clock        timeutil.Clock
	Logger       *logger.Logger
}

func DefaultConfig() Config {
	return Config{
		MinLatency:   300 * time.Millisecond,
		MaxLatency:   time.Second,
		HashCost:     bcrypt.DefaultCost,
		SeedDemoUser: true,
	}
}

type account struct {
	user *user.User
	hash []byte
}

type failure struct {
	err    error
	sticky bool
}

// Backend implements the whole data-access capability in memory.
type Backend struct {
	cfg   Config
	clock timeutil.Clock
	log   *logger.Logger

	mu           sync.Mutex
	courses      []course.Course
	enrollment   map[string][]string             // userID -> courseIDs
	completed    map[string]map[string]time.Time // userID -> lessonID -> at
	challenges   []challenge.Challenge
	leaderboards map[string][]challenge.LeaderboardEntry
	posts        []community.Post
	accounts     map[string]*account // by email
	failures     map[string]failure
}

func New(cfg Config) *Backend {
	if cfg.HashCost == 0 {
		cfg.HashCost = bcrypt.DefaultCost
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.Nop()
	}
	clock := timeutil.OrSystem(cfg.Clock)
	now := seedStart(clock)

	b := &Backend{
		cfg:          cfg,
		clock:        clock,
		log:          cfg.Logger.With(logger.Component("mock-backend")),
		courses:      seedCourses(now),
		enrollment:   make(map[string][]string),
		completed:    make(map[string]map[string]time.Time),
		challenges:   seedChallenges(now),
		leaderboards: make(map[string][]challenge.LeaderboardEntry),
		posts:        seedPosts(now),
		accounts:     make(map[string]*account),
		failures:     make(map[string]failure),
	}
	for _, ch := range b.challenges {
		b.leaderboards[ch.ID] = seedLeaderboard(now)
	}
	if cfg.SeedDemoUser {
		b.seedDemo(now)
	}
	return b
}

func (b *Backend) seedDemo(now time.Time) {
	u := user.New(DemoEmail, DemoName, now)
	u.ID = "user-demo"
	u.SetLanguages([]shared.Language{shared.LanguageFrench, shared.LanguageSpanish})
	hash, err := bcrypt.GenerateFromPassword([]byte(DemoPassword), b.cfg.HashCost)
	if err != nil {
		panic("mock: hash demo password: " + err.Error())
	}
	b.accounts[u.Email] = &account{user: u, hash: hash}
	b.enrollment[u.ID] = []string{CourseFrenchBanking, CourseSpanishInvest}
	if _, err := b.challenges[0].AddParticipant(u.ID); err == nil {
		u.JoinChallenge(b.challenges[0].ID)
	}
}

// FailNext makes the next call of op return err.
func (b *Backend) FailNext(op string, err error) {
	b.mu.Lock()
	b.failures[op] = failure{err: err}
	b.mu.Unlock()
}

// FailAlways makes every call of op return err until ClearFailures.
func (b *Backend) FailAlways(op string, err error) {
	b.mu.Lock()
	b.failures[op] = failure{err: err, sticky: true}
	b.mu.Unlock()
}

func (b *Backend) ClearFailures() {
	b.mu.Lock()
	b.failures = make(map[string]failure)
	b.mu.Unlock()
}

// call waits the simulated latency and returns an injected failure, if any.
// It must be called without b.mu held.
func (b *Backend) call(ctx context.Context, op string) error {
	if err := b.wait(ctx); err != nil {
		return shared.ServiceFailure("mock", op, err)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	f, ok := b.failures[op]
	if !ok {
		return nil
	}
	if !f.sticky {
		delete(b.failures, op)
	}
	b.log.Debug("injected failure", logger.Operation(op), logger.Err(f.err))
	return f.err
}

func (b *Backend) wait(ctx context.Context) error {
	lo, hi := b.cfg.MinLatency, b.cfg.MaxLatency
	if hi <= 0 {
		return ctx.Err()
	}
	d := lo
	if hi > lo {
		d += rand.N(hi - lo)
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// COURSES
// ══════════════════════════════════════════════════════════════════════════════

func (b *Backend) FetchAllCourses(ctx context.Context) ([]course.Course, error) {
	if err := b.call(ctx, OpFetchAllCourses); err != nil {
		return nil, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]course.Course, len(b.courses))
	for i, c := range b.courses {
		out[i] = c.Clone()
	}
	return out, nil
}

// FetchUserCourses returns the enrolled courses with the user's completion
// state applied to their lessons.
func (b *Backend) FetchUserCourses(ctx context.Context, userID string) ([]course.Course, error) {
	if err := b.call(ctx, OpFetchUserCourses); err != nil {
		return nil, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	done := b.completed[userID]
	out := []course.Course{}
	for _, c := range b.courses {
		if !slices.Contains(b.enrollment[userID], c.ID) {
			continue
		}
		cp := c.Clone()
		for i := range cp.Lessons {
			if at, ok := done[cp.Lessons[i].ID]; ok {
				cp.Lessons[i].MarkCompleted(at)
			}
		}
		out = append(out, cp)
	}
	return out, nil
}

func (b *Backend) Enroll(ctx context.Context, courseID, userID string) (bool, error) {
	if err := b.call(ctx, OpEnroll); err != nil {
		return false, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	i := slices.IndexFunc(b.courses, func(c course.Course) bool { return c.ID == courseID })
	if i < 0 {
		return false, shared.ErrCourseNotFound
	}
	if !slices.Contains(b.enrollment[userID], courseID) {
		b.enrollment[userID] = append(b.enrollment[userID], courseID)
		b.courses[i].EnrolledCount++
	}
	return true, nil
}

func (b *Backend) UpdateLessonProgress(ctx context.Context, lessonID, userID string, completed bool) (bool, error) {
	if err := b.call(ctx, OpUpdateLessonProgress); err != nil {
		return false, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	found := false
	for i := range b.courses {
		if _, ok := b.courses[i].Lesson(lessonID); ok {
			found = true
			break
		}
	}
	if !found {
		return false, shared.ErrLessonNotFound
	}
	if b.completed[userID] == nil {
		b.completed[userID] = make(map[string]time.Time)
	}
	if completed {
		b.completed[userID][lessonID] = b.clock.Now()
	} else {
		delete(b.completed[userID], lessonID)
	}
	return true, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// CHALLENGES
// ══════════════════════════════════════════════════════════════════════════════

func (b *Backend) FetchAllChallenges(ctx context.Context) ([]challenge.Challenge, error) {
	if err := b.call(ctx, OpFetchAllChallenges); err != nil {
		return nil, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]challenge.Challenge, len(b.challenges))
	for i, c := range b.challenges {
		out[i] = c.Clone()
	}
	return out, nil
}

func (b *Backend) FetchUserChallenges(ctx context.Context, userID string) ([]challenge.Challenge, error) {
	if err := b.call(ctx, OpFetchUserChallenges); err != nil {
		return nil, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	out := []challenge.Challenge{}
	for _, c := range b.challenges {
		if c.HasParticipant(userID) {
			out = append(out, c.Clone())
		}
	}
	return out, nil
}

// JoinChallenge adds the user as participant and gives them a zero-score
// leaderboard row.
func (b *Backend) JoinChallenge(ctx context.Context, challengeID, userID string) (bool, error) {
	if err := b.call(ctx, OpJoinChallenge); err != nil {
		return false, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	ch := b.challenge(challengeID)
	if ch == nil {
		return false, shared.ErrChallengeNotFound
	}
	added, err := ch.AddParticipant(userID)
	if err != nil {
		return false, err
	}
	if added {
		if _, ok := challenge.Find(b.leaderboards[challengeID], userID); !ok {
			b.leaderboards[challengeID] = challenge.Upsert(b.leaderboards[challengeID], challenge.LeaderboardEntry{
				ID:          uuid.New().String(),
				UserID:      userID,
				UserName:    b.userName(userID),
				LastUpdated: b.clock.Now(),
			})
		}
		if acc := b.accountByID(userID); acc != nil {
			acc.user.JoinChallenge(challengeID)
		}
	}
	return true, nil
}

// FetchLeaderboard returns entries in storage order; ranking is the
// caller's job.
func (b *Backend) FetchLeaderboard(ctx context.Context, challengeID string) ([]challenge.LeaderboardEntry, error) {
	if err := b.call(ctx, OpFetchLeaderboard); err != nil {
		return nil, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.challenge(challengeID) == nil {
		return nil, shared.ErrChallengeNotFound
	}
	return slices.Clone(b.leaderboards[challengeID]), nil
}

func (b *Backend) UpdateChallengeScore(ctx context.Context, challengeID, userID string, score int) (bool, error) {
	if err := b.call(ctx, OpUpdateChallengeScore); err != nil {
		return false, err
	}
	if score < 0 {
		return false, shared.ErrNegativeScore
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.challenge(challengeID) == nil {
		return false, shared.ErrChallengeNotFound
	}
	b.leaderboards[challengeID] = challenge.Upsert(b.leaderboards[challengeID], challenge.LeaderboardEntry{
		ID:          uuid.New().String(),
		UserID:      userID,
		UserName:    b.userName(userID),
		Score:       score,
		LastUpdated: b.clock.Now(),
	})
	return true, nil
}

func (b *Backend) challenge(id string) *challenge.Challenge {
	for i := range b.challenges {
		if b.challenges[i].ID == id {
			return &b.challenges[i]
		}
	}
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// COMMUNITY
// ══════════════════════════════════════════════════════════════════════════════

func (b *Backend) FetchPosts(ctx context.Context) ([]community.Post, error) {
	if err := b.call(ctx, OpFetchPosts); err != nil {
		return nil, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]community.Post, len(b.posts))
	for i, p := range b.posts {
		out[i] = p.Clone()
	}
	return out, nil
}

// CreatePost stores p and echoes it back with id and timestamps filled in.
func (b *Backend) CreatePost(ctx context.Context, p community.Post) (community.Post, error) {
	if err := b.call(ctx, OpCreatePost); err != nil {
		return community.Post{}, err
	}
	if strings.TrimSpace(p.Content) == "" {
		return community.Post{}, shared.ErrEmptyContent
	}
	if !p.Type.IsValid() {
		return community.Post{}, shared.InvalidArgument("mock", OpCreatePost, "unknown post type %q", p.Type)
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
	if p.Likes == nil {
		p.Likes = []string{}
	}
	if p.Comments == nil {
		p.Comments = []community.Comment{}
	}
	if p.Attachments == nil {
		p.Attachments = []community.Attachment{}
	}

	b.mu.Lock()
	b.posts = append([]community.Post{p}, b.posts...)
	b.mu.Unlock()
	return p.Clone(), nil
}

func (b *Backend) ToggleLike(ctx context.Context, postID, userID string) (bool, error) {
	if err := b.call(ctx, OpToggleLike); err != nil {
		return false, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	p := b.post(postID)
	if p == nil {
		return false, shared.ErrPostNotFound
	}
	p.ToggleLike(userID)
	return true, nil
}

func (b *Backend) AddComment(ctx context.Context, postID string, c community.Comment) (community.Comment, error) {
	if err := b.call(ctx, OpAddComment); err != nil {
		return community.Comment{}, err
	}
	if strings.TrimSpace(c.Content) == "" {
		return community.Comment{}, shared.ErrEmptyContent
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	p := b.post(postID)
	if p == nil {
		return community.Comment{}, shared.ErrPostNotFound
	}
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = b.clock.Now()
	}
	p.AppendComment(c)
	return c, nil
}

func (b *Backend) post(id string) *community.Post {
	for i := range b.posts {
		if b.posts[i].ID == id {
			return &b.posts[i]
		}
	}
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// USERS
// ══════════════════════════════════════════════════════════════════════════════

func (b *Backend) SignUp(ctx context.Context, email, name, password string) (*user.User, error) {
	if err := b.call(ctx, OpSignUp); err != nil {
		return nil, err
	}
	addr, err := shared.NewEmail(email)
	if err != nil {
		return nil, err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), b.cfg.HashCost)
	if err != nil {
		return nil, shared.ServiceFailure("mock", OpSignUp, err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.accounts[addr.String()]; ok {
		return nil, shared.ErrEmailTaken
	}
	u := user.New(addr.String(), name, b.clock.Now())
	b.accounts[u.Email] = &account{user: u, hash: hash}
	b.log.Info("account created", logger.UserID(u.ID))
	return u.Clone(), nil
}

func (b *Backend) SignIn(ctx context.Context, email, password string) (*user.User, error) {
	if err := b.call(ctx, OpSignIn); err != nil {
		return nil, err
	}
	key := strings.ToLower(strings.TrimSpace(email))

	b.mu.Lock()
	acc, ok := b.accounts[key]
	b.mu.Unlock()
	if !ok {
		return nil, shared.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword(acc.hash, []byte(password)); err != nil {
		return nil, shared.ErrInvalidCredentials
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	acc.user.Touch(b.clock.Now())
	return acc.user.Clone(), nil
}

// UpdateProfile replaces the stored user with the same id. The email is
// not changeable here.
func (b *Backend) UpdateProfile(ctx context.Context, u *user.User) (*user.User, error) {
	if err := b.call(ctx, OpUpdateProfile); err != nil {
		return nil, err
	}
	if u == nil {
		return nil, shared.InvalidArgument("mock", OpUpdateProfile, "user is required")
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	acc := b.accountByID(u.ID)
	if acc == nil {
		return nil, shared.ErrUserNotFound
	}
	next := u.Clone()
	next.Email = acc.user.Email
	acc.user = next
	return next.Clone(), nil
}

func (b *Backend) accountByID(id string) *account {
	for _, acc := range b.accounts {
		if acc.user.ID == id {
			return acc
		}
	}
	return nil
}

func (b *Backend) userName(id string) string {
	if acc := b.accountByID(id); acc != nil {
		return acc.user.Name
	}
	return ""
}
