// Package community drives the discussion feed on top of the community
// gateway: loading, likes, comments and new posts.
package community

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/lingofin/lingofin-hub/internal/application/optimistic"
	domain "github.com/lingofin/lingofin-hub/internal/domain/community"
	"github.com/lingofin/lingofin-hub/internal/domain/shared"
	"github.com/lingofin/lingofin-hub/pkg/logger"
)

// Options carries the optional collaborators of a Manager.
type Options struct {
	// Errors is shared with the challenge controller when both back one screen.
	Errors    *optimistic.ErrorSlot
	Publisher shared.EventPublisher
	Logger    *logger.Logger
}

// Manager owns the local feed. Mutations are applied under mu; gateway calls
// run without it.
type Manager struct {
	gateway   domain.Gateway
	runner    *optimistic.Runner
	publisher shared.EventPublisher
	log       *logger.Logger

	mu   sync.Mutex
	feed *domain.Feed
}

func NewManager(gateway domain.Gateway, opts Options) *Manager {
	if opts.Publisher == nil {
		opts.Publisher = shared.NopPublisher{}
	}
	if opts.Logger == nil {
		opts.Logger = logger.Nop()
	}
	log := opts.Logger.With(logger.Component("community"))
	return &Manager{
		gateway:   gateway,
		runner:    optimistic.NewRunner(opts.Errors, opts.Publisher, log),
		publisher: opts.Publisher,
		log:       log,
		feed:      domain.NewFeed(),
	}
}

// LoadPosts replaces the feed with the server copy, newest first. On failure
// the previous feed stays.
func (m *Manager) LoadPosts(ctx context.Context) error {
	posts, err := m.gateway.FetchPosts(ctx)
	if err != nil {
		m.runner.Slot().Set(err)
		m.log.Warn("load posts failed", logger.Err(err))
		return fmt.Errorf("load posts: %w", err)
	}

	m.mu.Lock()
	m.feed.Replace(posts)
	n := m.feed.Len()
	m.mu.Unlock()

	m.log.Debug("posts loaded", logger.Int("count", n))
	return nil
}

// ToggleLike flips the like locally and undoes the flip if the server
// refuses. Unknown posts are ignored.
func (m *Manager) ToggleLike(ctx context.Context, postID, userID string) error {
	if !m.has(postID) {
		return nil
	}

	var liked bool
	flip := func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		if p, ok := m.feed.Get(postID); ok {
			liked = p.ToggleLike(userID)
		}
	}

	err := m.runner.Run(ctx, optimistic.Command{
		Name:        "toggle_like",
		AggregateID: postID,
		Apply:       flip,
		Revert:      flip,
		Remote: func(ctx context.Context) error {
			_, err := m.gateway.ToggleLike(ctx, postID, userID)
			return err
		},
	})
	if err != nil {
		return err
	}

	m.publish(shared.NewPostLikedEvent(postID, userID, liked))
	return nil
}

// AddComment appends c to the post right away and removes it again if the
// server refuses. Unknown posts are ignored.
func (m *Manager) AddComment(ctx context.Context, postID string, c domain.Comment) error {
	if !m.has(postID) {
		return nil
	}
	if c.ID == "" {
		c.ID = uuid.New().String()
	}

	err := m.runner.Run(ctx, optimistic.Command{
		Name:        "add_comment",
		AggregateID: postID,
		Apply: func() {
			m.mu.Lock()
			defer m.mu.Unlock()
			if p, ok := m.feed.Get(postID); ok {
				p.AppendComment(c)
			}
		},
		Revert: func() {
			m.mu.Lock()
			defer m.mu.Unlock()
			if p, ok := m.feed.Get(postID); ok {
				p.RemoveComment(c.ID)
			}
		},
		Remote: func(ctx context.Context) error {
			_, err := m.gateway.AddComment(ctx, postID, c)
			return err
		},
	})
	if err != nil {
		return err
	}

	m.publish(shared.NewCommentAddedEvent(postID, c.ID, c.AuthorID))
	return nil
}

// CreatePost sends p to the server and prepends the echoed post. Nothing is
// inserted before the server answers.
func (m *Manager) CreatePost(ctx context.Context, p domain.Post) (domain.Post, error) {
	var created domain.Post
	err := m.runner.RunWithoutRevert(ctx, "create_post", p.ID, func(ctx context.Context) error {
		var err error
		created, err = m.gateway.CreatePost(ctx, p)
		return err
	})
	if err != nil {
		return domain.Post{}, err
	}

	m.mu.Lock()
	m.feed.Prepend(created)
	m.mu.Unlock()

	m.publish(shared.NewPostCreatedEvent(created.ID, created.AuthorID, string(created.Type), string(created.Language)))
	return created.Clone(), nil
}

// Posts returns a deep copy of the feed.
func (m *Manager) Posts() []domain.Post {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.feed.Snapshot()
}

func (m *Manager) Post(id string) (domain.Post, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.feed.Get(id)
	if !ok {
		return domain.Post{}, false
	}
	return p.Clone(), true
}

func (m *Manager) FilterByType(t domain.PostType) []domain.Post {
	return domain.FilterByType(m.Posts(), t)
}

func (m *Manager) FilterByLanguage(lang shared.Language) []domain.Post {
	return domain.FilterByLanguage(m.Posts(), lang)
}

// LastError returns the most recent failure message, or "".
func (m *Manager) LastError() string { return m.runner.Slot().Message() }

func (m *Manager) ClearError() { m.runner.Slot().Clear() }

func (m *Manager) has(postID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.feed.Get(postID)
	return ok
}

func (m *Manager) publish(e shared.Event) {
	if err := m.publisher.Publish(e); err != nil {
		m.log.Error("publish event", logger.String("event", string(e.EventType())), logger.Err(err))
	}
}
