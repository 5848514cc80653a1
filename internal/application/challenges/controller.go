// Package challenges loads challenges, joins learners to them and keeps
// ranked leaderboards per challenge.
package challenges

import (
	"context"
	"fmt"
	"sync"

	"github.com/lingofin/lingofin-hub/internal/application/optimistic"
	"github.com/lingofin/lingofin-hub/internal/domain/challenge"
	"github.com/lingofin/lingofin-hub/internal/domain/shared"
	"github.com/lingofin/lingofin-hub/pkg/logger"
	"github.com/lingofin/lingofin-hub/pkg/timeutil"
)

type Options struct {
	Errors    *optimistic.ErrorSlot
	Publisher shared.EventPublisher
	Logger    *logger.Logger
	Clock     timeutil.Clock
	// LiveActivity switches ActiveChallenges from the stored IsActive
	// snapshot to evaluation against Clock. Nil means snapshot.
	LiveActivity func() bool
}

type Controller struct {
	gateway      challenge.Gateway
	slot         *optimistic.ErrorSlot
	publisher    shared.EventPublisher
	log          *logger.Logger
	clock        timeutil.Clock
	liveActivity func() bool

	mu           sync.Mutex
	all          []challenge.Challenge
	byUser       map[string][]challenge.Challenge
	leaderboards map[string][]challenge.LeaderboardEntry
}

func NewController(gateway challenge.Gateway, opts Options) *Controller {
	if opts.Errors == nil {
		opts.Errors = &optimistic.ErrorSlot{}
	}
	if opts.Publisher == nil {
		opts.Publisher = shared.NopPublisher{}
	}
	if opts.Logger == nil {
		opts.Logger = logger.Nop()
	}
	if opts.LiveActivity == nil {
		opts.LiveActivity = func() bool { return false }
	}
	return &Controller{
		gateway:      gateway,
		slot:         opts.Errors,
		publisher:    opts.Publisher,
		log:          opts.Logger.With(logger.Component("challenges")),
		clock:        timeutil.OrSystem(opts.Clock),
		liveActivity: opts.LiveActivity,
		all:          []challenge.Challenge{},
		byUser:       make(map[string][]challenge.Challenge),
		leaderboards: make(map[string][]challenge.LeaderboardEntry),
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// COMMANDS
// ══════════════════════════════════════════════════════════════════════════════

func (c *Controller) LoadChallenges(ctx context.Context) error {
	list, err := c.gateway.FetchAllChallenges(ctx)
	if err != nil {
		return c.fail("load challenges", err)
	}

	c.mu.Lock()
	c.all = cloneAll(list)
	c.mu.Unlock()

	c.log.Debug("challenges loaded", logger.Int("count", len(list)))
	return nil
}

func (c *Controller) LoadUserChallenges(ctx context.Context, userID string) error {
	list, err := c.gateway.FetchUserChallenges(ctx, userID)
	if err != nil {
		return c.fail("load user challenges", err, logger.UserID(userID))
	}

	c.mu.Lock()
	c.byUser[userID] = cloneAll(list)
	c.mu.Unlock()
	return nil
}

// JoinChallenge registers the user on the server, then reloads the user's
// challenges followed by the full list. Nothing changes locally if the
// server refuses.
func (c *Controller) JoinChallenge(ctx context.Context, challengeID, userID string) error {
	if _, err := c.gateway.JoinChallenge(ctx, challengeID, userID); err != nil {
		return c.fail("join challenge", err, logger.ChallengeID(challengeID), logger.UserID(userID))
	}

	c.log.Info("challenge joined", logger.ChallengeID(challengeID), logger.UserID(userID))
	c.publish(shared.NewChallengeJoinedEvent(challengeID, userID))

	if err := c.LoadUserChallenges(ctx, userID); err != nil {
		return err
	}
	return c.LoadChallenges(ctx)
}

// LoadLeaderboard fetches the entries and stores them ranked.
func (c *Controller) LoadLeaderboard(ctx context.Context, challengeID string) error {
	entries, err := c.gateway.FetchLeaderboard(ctx, challengeID)
	if err != nil {
		return c.fail("load leaderboard", err, logger.ChallengeID(challengeID))
	}
	ranked := challenge.Rank(entries)

	c.mu.Lock()
	c.leaderboards[challengeID] = ranked
	c.mu.Unlock()

	c.log.Debug("leaderboard ranked", logger.ChallengeID(challengeID), logger.Int("entries", len(ranked)))
	return nil
}

// UpdateScore submits a non-negative score and reloads the leaderboard.
func (c *Controller) UpdateScore(ctx context.Context, challengeID, userID string, score int) error {
	if score < 0 {
		return c.fail("update score", shared.ErrNegativeScore, logger.ChallengeID(challengeID))
	}
	if _, err := c.gateway.UpdateChallengeScore(ctx, challengeID, userID, score); err != nil {
		return c.fail("update score", err, logger.ChallengeID(challengeID), logger.UserID(userID))
	}

	c.publish(shared.NewScoreUpdatedEvent(challengeID, userID, score))
	return c.LoadLeaderboard(ctx, challengeID)
}

// ══════════════════════════════════════════════════════════════════════════════
// QUERIES
// ══════════════════════════════════════════════════════════════════════════════

func (c *Controller) Challenges() []challenge.Challenge {
	c.mu.Lock()
	defer c.mu.Unlock()
	return cloneAll(c.all)
}

func (c *Controller) UserChallenges(userID string) []challenge.Challenge {
	c.mu.Lock()
	defer c.mu.Unlock()
	return cloneAll(c.byUser[userID])
}

// ActiveChallenges filters by the IsActive snapshot, or by the clock when
// live activity is switched on.
func (c *Controller) ActiveChallenges() []challenge.Challenge {
	live := c.liveActivity()
	now := c.clock.Now()

	out := []challenge.Challenge{}
	for _, ch := range c.Challenges() {
		active := ch.IsActive
		if live {
			active = ch.ActiveAt(now)
		}
		if active {
			out = append(out, ch)
		}
	}
	return out
}

// Leaderboard returns the ranked entries last loaded for challengeID.
func (c *Controller) Leaderboard(challengeID string) []challenge.LeaderboardEntry {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]challenge.LeaderboardEntry{}, c.leaderboards[challengeID]...)
}

func (c *Controller) LastError() string { return c.slot.Message() }

func (c *Controller) ClearError() { c.slot.Clear() }

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

func cloneAll(list []challenge.Challenge) []challenge.Challenge {
	out := make([]challenge.Challenge, len(list))
	for i, ch := range list {
		out[i] = ch.Clone()
	}
	return out
}
