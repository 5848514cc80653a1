package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/lingofin/lingofin-hub/internal/domain/shared"
	"github.com/lingofin/lingofin-hub/internal/domain/user"
)

// ══════════════════════════════════════════════════════════════════════════════
// USER REPOSITORY
// ══════════════════════════════════════════════════════════════════════════════

// UserRepository stores accounts. Passwords arrive already hashed.
type UserRepository struct {
	conn *Connection
}

// NewUserRepository creates a new UserRepository.
func NewUserRepository(conn *Connection) *UserRepository {
	return &UserRepository{conn: conn}
}

const userColumns = `
	id, email, name, password_hash, profile_image_url, selected_languages,
	learning_goals, progress, joined_challenges, completed_courses,
	created_at, last_active_at`

// Create inserts u with passwordHash. A duplicate email yields
// shared.ErrEmailTaken.
func (r *UserRepository) Create(ctx context.Context, u *user.User, passwordHash []byte) error {
	doc, err := encodeUserDocs(u)
	if err != nil {
		return err
	}
	_, err = r.conn.Exec(ctx, `
		INSERT INTO users (`+userColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`,
		u.ID,
		u.Email,
		u.Name,
		passwordHash,
		u.ProfileImageURL,
		doc.languages,
		doc.goals,
		doc.progress,
		doc.challenges,
		doc.courses,
		u.CreatedAt,
		u.LastActiveAt,
	)
	if err != nil {
		if IsUniqueViolation(err) {
			return shared.ErrEmailTaken
		}
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

// GetByEmail returns the user and the stored password hash. The lookup is
// case-insensitive.
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*user.User, []byte, error) {
	row := r.conn.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE lower(email) = lower($1)`, email)
	return scanUser(row)
}

// GetByID returns the user and the stored password hash.
func (r *UserRepository) GetByID(ctx context.Context, id string) (*user.User, []byte, error) {
	row := r.conn.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	return scanUser(row)
}

// Update replaces the profile of u. Email and password are not touched.
func (r *UserRepository) Update(ctx context.Context, u *user.User) error {
	doc, err := encodeUserDocs(u)
	if err != nil {
		return err
	}
	tag, err := r.conn.Exec(ctx, `
		UPDATE users SET
			name = $1,
			profile_image_url = $2,
			selected_languages = $3,
			learning_goals = $4,
			progress = $5,
			joined_challenges = $6,
			completed_courses = $7,
			last_active_at = $8
		WHERE id = $9
	`,
		u.Name,
		u.ProfileImageURL,
		doc.languages,
		doc.goals,
		doc.progress,
		doc.challenges,
		doc.courses,
		u.LastActiveAt,
		u.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrUserNotFound
	}
	return nil
}

// Names returns display names for ids; unknown ids are absent.
func (r *UserRepository) Names(ctx context.Context, ids []string) (map[string]string, error) {
	rows, err := r.conn.Query(ctx, `SELECT id, name FROM users WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to query user names: %w", err)
	}
	defer rows.Close()

	out := make(map[string]string, len(ids))
	for rows.Next() {
		var id, name string
		if err := rows.Scan(&id, &name); err != nil {
			return nil, fmt.Errorf("failed to scan user name: %w", err)
		}
		out[id] = name
	}
	return out, rows.Err()
}

type userDocs struct {
	languages, goals, progress, challenges, courses []byte
}

func encodeUserDocs(u *user.User) (userDocs, error) {
	var d userDocs
	var err error
	if d.languages, err = json.Marshal(nonNil(u.SelectedLanguages)); err != nil {
		return d, fmt.Errorf("failed to marshal languages: %w", err)
	}
	if d.goals, err = json.Marshal(nonNil(u.LearningGoals)); err != nil {
		return d, fmt.Errorf("failed to marshal goals: %w", err)
	}
	if d.progress, err = json.Marshal(u.Progress); err != nil {
		return d, fmt.Errorf("failed to marshal progress: %w", err)
	}
	if d.challenges, err = json.Marshal(nonNil(u.JoinedChallenges)); err != nil {
		return d, fmt.Errorf("failed to marshal joined challenges: %w", err)
	}
	if d.courses, err = json.Marshal(nonNil(u.CompletedCourses)); err != nil {
		return d, fmt.Errorf("failed to marshal completed courses: %w", err)
	}
	return d, nil
}

func scanUser(row pgx.Row) (*user.User, []byte, error) {
	u := &user.User{}
	var hash []byte
	var d userDocs
	err := row.Scan(
		&u.ID,
		&u.Email,
		&u.Name,
		&hash,
		&u.ProfileImageURL,
		&d.languages,
		&d.goals,
		&d.progress,
		&d.challenges,
		&d.courses,
		&u.CreatedAt,
		&u.LastActiveAt,
	)
	if IsNoRows(err) {
		return nil, nil, shared.ErrUserNotFound
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to scan user: %w", err)
	}

	decode := []struct {
		raw  []byte
		into any
	}{
		{d.languages, &u.SelectedLanguages},
		{d.goals, &u.LearningGoals},
		{d.progress, &u.Progress},
		{d.challenges, &u.JoinedChallenges},
		{d.courses, &u.CompletedCourses},
	}
	for _, x := range decode {
		if len(x.raw) == 0 {
			continue
		}
		if err := json.Unmarshal(x.raw, x.into); err != nil {
			return nil, nil, fmt.Errorf("failed to decode user %s: %w", u.ID, err)
		}
	}
	return u, hash, nil
}
