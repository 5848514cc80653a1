package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/lingofin/lingofin-hub/internal/domain/community"
	"github.com/lingofin/lingofin-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// COMMUNITY REPOSITORY
// ══════════════════════════════════════════════════════════════════════════════

// CommunityRepository stores posts, likes and comments.
type CommunityRepository struct {
	conn *Connection
}

// NewCommunityRepository creates a new CommunityRepository.
func NewCommunityRepository(conn *Connection) *CommunityRepository {
	return &CommunityRepository{conn: conn}
}

// ListPosts returns posts newest first with likes and comments attached.
func (r *CommunityRepository) ListPosts(ctx context.Context, limit int) ([]community.Post, error) {
	if limit <= 0 {
		limit = 200
	}
	rows, err := r.conn.Query(ctx, `
		SELECT id, author_id, author_name, content, type, language, financial_topic,
			   attachments, is_reported, created_at, updated_at
		FROM posts
		ORDER BY created_at DESC, id
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query posts: %w", err)
	}
	posts, err := scanPosts(rows)
	if err != nil {
		return nil, err
	}
	if len(posts) == 0 {
		return posts, nil
	}

	ids := make([]string, len(posts))
	index := make(map[string]int, len(posts))
	for i, p := range posts {
		ids[i] = p.ID
		index[p.ID] = i
	}
	if err := r.attachLikes(ctx, posts, ids, index); err != nil {
		return nil, err
	}
	if err := r.attachComments(ctx, posts, ids, index); err != nil {
		return nil, err
	}
	return posts, nil
}

// CreatePost inserts p as given; the caller fills id and timestamps.
func (r *CommunityRepository) CreatePost(ctx context.Context, p community.Post) error {
	if strings.TrimSpace(p.Content) == "" {
		return shared.ErrEmptyContent
	}
	attachments, err := json.Marshal(nonNil(p.Attachments))
	if err != nil {
		return fmt.Errorf("failed to marshal attachments: %w", err)
	}
	_, err = r.conn.Exec(ctx, `
		INSERT INTO posts (
			id, author_id, author_name, content, type, language, financial_topic,
			attachments, is_reported, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`,
		p.ID,
		p.AuthorID,
		p.AuthorName,
		p.Content,
		string(p.Type),
		string(p.Language),
		string(p.FinancialTopic),
		attachments,
		p.IsReported,
		p.CreatedAt,
		p.UpdatedAt,
	)
	if err != nil {
		if IsUniqueViolation(err) {
			return shared.NewDomainError("community", "CreatePost", shared.ErrAlreadyExists, "post already exists")
		}
		if IsCheckViolation(err) {
			return shared.ErrEmptyContent
		}
		return fmt.Errorf("failed to insert post: %w", err)
	}
	return nil
}

// ToggleLike flips userID's like on postID. It reports whether the post is
// liked afterwards.
func (r *CommunityRepository) ToggleLike(ctx context.Context, postID, userID string) (bool, error) {
	var liked bool
	err := r.conn.WithTx(ctx, func(tx pgx.Tx) error {
		var exists bool
		if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM posts WHERE id = $1)`, postID).Scan(&exists); err != nil {
			return fmt.Errorf("failed to check post: %w", err)
		}
		if !exists {
			return shared.ErrPostNotFound
		}

		tag, err := tx.Exec(ctx, `DELETE FROM post_likes WHERE post_id = $1 AND user_id = $2`, postID, userID)
		if err != nil {
			return fmt.Errorf("failed to delete like: %w", err)
		}
		if tag.RowsAffected() > 0 {
			liked = false
			return nil
		}

		if _, err := tx.Exec(ctx, `INSERT INTO post_likes (post_id, user_id) VALUES ($1, $2)`, postID, userID); err != nil {
			return fmt.Errorf("failed to insert like: %w", err)
		}
		liked = true
		return nil
	})
	return liked, err
}

// AddComment appends c to postID; the caller fills id and timestamp.
func (r *CommunityRepository) AddComment(ctx context.Context, postID string, c community.Comment) error {
	if strings.TrimSpace(c.Content) == "" {
		return shared.ErrEmptyContent
	}
	likes, err := json.Marshal(nonNil(c.Likes))
	if err != nil {
		return fmt.Errorf("failed to marshal comment likes: %w", err)
	}
	replies, err := json.Marshal(nonNil(c.Replies))
	if err != nil {
		return fmt.Errorf("failed to marshal replies: %w", err)
	}

	tag, err := r.conn.Exec(ctx, `
		INSERT INTO comments (id, post_id, author_id, author_name, content, likes, replies, created_at)
		SELECT $1::text, id, $3::text, $4::text, $5::text, $6::jsonb, $7::jsonb, $8::timestamptz
		FROM posts WHERE id = $2
	`, c.ID, postID, c.AuthorID, c.AuthorName, c.Content, likes, replies, c.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert comment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrPostNotFound
	}
	return nil
}

func (r *CommunityRepository) attachLikes(ctx context.Context, posts []community.Post, ids []string, index map[string]int) error {
	rows, err := r.conn.Query(ctx, `
		SELECT post_id, user_id FROM post_likes
		WHERE post_id = ANY($1)
		ORDER BY liked_at, user_id
	`, ids)
	if err != nil {
		return fmt.Errorf("failed to query likes: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var postID, userID string
		if err := rows.Scan(&postID, &userID); err != nil {
			return fmt.Errorf("failed to scan like: %w", err)
		}
		i := index[postID]
		posts[i].Likes = append(posts[i].Likes, userID)
	}
	return rows.Err()
}

func (r *CommunityRepository) attachComments(ctx context.Context, posts []community.Post, ids []string, index map[string]int) error {
	rows, err := r.conn.Query(ctx, `
		SELECT id, post_id, author_id, author_name, content, likes, replies, created_at
		FROM comments
		WHERE post_id = ANY($1)
		ORDER BY created_at, id
	`, ids)
	if err != nil {
		return fmt.Errorf("failed to query comments: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var c community.Comment
		var postID string
		var likes, replies []byte
		if err := rows.Scan(&c.ID, &postID, &c.AuthorID, &c.AuthorName, &c.Content, &likes, &replies, &c.CreatedAt); err != nil {
			return fmt.Errorf("failed to scan comment: %w", err)
		}
		c.Likes = []string{}
		c.Replies = []community.Comment{}
		if err := json.Unmarshal(likes, &c.Likes); err != nil {
			return fmt.Errorf("failed to decode comment likes: %w", err)
		}
		if err := json.Unmarshal(replies, &c.Replies); err != nil {
			return fmt.Errorf("failed to decode replies: %w", err)
		}
		i := index[postID]
		posts[i].Comments = append(posts[i].Comments, c)
	}
	return rows.Err()
}

func scanPosts(rows pgx.Rows) ([]community.Post, error) {
	defer rows.Close()

	posts := []community.Post{}
	for rows.Next() {
		var p community.Post
		var typ, language, topic string
		var attachments []byte
		err := rows.Scan(
			&p.ID,
			&p.AuthorID,
			&p.AuthorName,
			&p.Content,
			&typ,
			&language,
			&topic,
			&attachments,
			&p.IsReported,
			&p.CreatedAt,
			&p.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan post: %w", err)
		}
		p.Type = community.PostType(typ)
		p.Language = shared.Language(language)
		p.FinancialTopic = shared.FinancialSkill(topic)
		p.Attachments = []community.Attachment{}
		if len(attachments) > 0 {
			if err := json.Unmarshal(attachments, &p.Attachments); err != nil {
				return nil, fmt.Errorf("failed to decode attachments of %s: %w", p.ID, err)
			}
		}
		p.Likes = []string{}
		p.Comments = []community.Comment{}
		posts = append(posts, p)
	}
	return posts, rows.Err()
}
