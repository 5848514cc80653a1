package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/lingofin/lingofin-hub/internal/domain/challenge"
	"github.com/lingofin/lingofin-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// CHALLENGE REPOSITORY
// ══════════════════════════════════════════════════════════════════════════════

// ChallengeRepository stores challenges, their participants and the
// unranked leaderboard rows.
type ChallengeRepository struct {
	conn *Connection
}

// NewChallengeRepository creates a new ChallengeRepository.
func NewChallengeRepository(conn *Connection) *ChallengeRepository {
	return &ChallengeRepository{conn: conn}
}

const challengeColumns = `
	ch.id, ch.title, ch.description, ch.type, ch.language, ch.skill, ch.difficulty,
	ch.start_date, ch.end_date, ch.max_participants, ch.rewards, ch.is_active,
	ch.created_by, ch.created_at`

// List returns every challenge with its participants.
func (r *ChallengeRepository) List(ctx context.Context) ([]challenge.Challenge, error) {
	rows, err := r.conn.Query(ctx, `SELECT `+challengeColumns+` FROM challenges ch ORDER BY ch.created_at, ch.id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query challenges: %w", err)
	}
	out, err := scanChallenges(rows)
	if err != nil {
		return nil, err
	}
	return out, r.attachParticipants(ctx, out)
}

// ListJoined returns the challenges userID participates in.
func (r *ChallengeRepository) ListJoined(ctx context.Context, userID string) ([]challenge.Challenge, error) {
	rows, err := r.conn.Query(ctx, `
		SELECT `+challengeColumns+`
		FROM challenges ch
		JOIN challenge_participants p ON p.challenge_id = ch.id
		WHERE p.user_id = $1
		ORDER BY p.joined_at, ch.id
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query joined challenges: %w", err)
	}
	out, err := scanChallenges(rows)
	if err != nil {
		return nil, err
	}
	return out, r.attachParticipants(ctx, out)
}

// Insert stores a new challenge. It is used for seeding.
func (r *ChallengeRepository) Insert(ctx context.Context, c challenge.Challenge) error {
	rewards, err := json.Marshal(nonNil(c.Rewards))
	if err != nil {
		return fmt.Errorf("failed to marshal rewards: %w", err)
	}
	_, err = r.conn.Exec(ctx, `
		INSERT INTO challenges (
			id, title, description, type, language, skill, difficulty,
			start_date, end_date, max_participants, rewards, is_active, created_by, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`,
		c.ID,
		c.Title,
		c.Description,
		string(c.Type),
		string(c.Language),
		string(c.Skill),
		string(c.Difficulty),
		c.StartDate,
		c.EndDate,
		c.MaxParticipants,
		rewards,
		c.IsActive,
		c.CreatedBy,
		c.CreatedAt,
	)
	if err != nil {
		if IsUniqueViolation(err) {
			return shared.NewDomainError("challenge", "Insert", shared.ErrAlreadyExists, "challenge already exists")
		}
		return fmt.Errorf("failed to insert challenge: %w", err)
	}
	return nil
}

// Join adds userID as a participant with a zero-score leaderboard row. The
// participant limit is checked under a row lock on the challenge.
func (r *ChallengeRepository) Join(ctx context.Context, challengeID, userID, userName string, at time.Time) error {
	return r.conn.WithTx(ctx, func(tx pgx.Tx) error {
		var limit *int
		err := tx.QueryRow(ctx, `SELECT max_participants FROM challenges WHERE id = $1 FOR UPDATE`, challengeID).Scan(&limit)
		if IsNoRows(err) {
			return shared.ErrChallengeNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to lock challenge: %w", err)
		}

		var joined bool
		var count int
		err = tx.QueryRow(ctx, `
			SELECT
				EXISTS (SELECT 1 FROM challenge_participants WHERE challenge_id = $1 AND user_id = $2),
				(SELECT count(*) FROM challenge_participants WHERE challenge_id = $1)
		`, challengeID, userID).Scan(&joined, &count)
		if err != nil {
			return fmt.Errorf("failed to count participants: %w", err)
		}
		if joined {
			return nil
		}
		if limit != nil && count >= *limit {
			return shared.ErrChallengeFull
		}

		_, err = tx.Exec(ctx, `
			INSERT INTO challenge_participants (challenge_id, user_id, joined_at) VALUES ($1, $2, $3)
		`, challengeID, userID, at)
		if err != nil {
			return fmt.Errorf("failed to insert participant: %w", err)
		}

		_, err = tx.Exec(ctx, `
			INSERT INTO leaderboard_entries (id, challenge_id, user_id, user_name, last_updated)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (challenge_id, user_id) DO NOTHING
		`, uuid.New().String(), challengeID, userID, userName, at)
		if err != nil {
			return fmt.Errorf("failed to insert leaderboard row: %w", err)
		}
		return nil
	})
}

// Leaderboard returns the challenge's rows in storage order, unranked.
func (r *ChallengeRepository) Leaderboard(ctx context.Context, challengeID string) ([]challenge.LeaderboardEntry, error) {
	var exists bool
	if err := r.conn.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM challenges WHERE id = $1)`, challengeID).Scan(&exists); err != nil {
		return nil, fmt.Errorf("failed to check challenge: %w", err)
	}
	if !exists {
		return nil, shared.ErrChallengeNotFound
	}

	rows, err := r.conn.Query(ctx, `
		SELECT id, user_id, user_name, score, completed_tasks, time_spent, last_updated
		FROM leaderboard_entries
		WHERE challenge_id = $1
		ORDER BY position
	`, challengeID)
	if err != nil {
		return nil, fmt.Errorf("failed to query leaderboard: %w", err)
	}
	defer rows.Close()

	entries := []challenge.LeaderboardEntry{}
	for rows.Next() {
		var e challenge.LeaderboardEntry
		if err := rows.Scan(&e.ID, &e.UserID, &e.UserName, &e.Score, &e.CompletedTasks, &e.TimeSpent, &e.LastUpdated); err != nil {
			return nil, fmt.Errorf("failed to scan leaderboard entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// UpsertEntry writes the row for e.UserID, keeping its original position.
func (r *ChallengeRepository) UpsertEntry(ctx context.Context, challengeID string, e challenge.LeaderboardEntry) error {
	if e.Score < 0 {
		return shared.ErrNegativeScore
	}
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	tag, err := r.conn.Exec(ctx, `
		INSERT INTO leaderboard_entries (id, challenge_id, user_id, user_name, score, completed_tasks, time_spent, last_updated)
		SELECT $1::text, id, $3::text, $4::text, $5::integer, $6::integer, $7::integer, $8::timestamptz
		FROM challenges WHERE id = $2
		ON CONFLICT (challenge_id, user_id) DO UPDATE SET
			score = EXCLUDED.score,
			user_name = CASE WHEN EXCLUDED.user_name = '' THEN leaderboard_entries.user_name ELSE EXCLUDED.user_name END,
			last_updated = EXCLUDED.last_updated
	`, e.ID, challengeID, e.UserID, e.UserName, e.Score, e.CompletedTasks, e.TimeSpent, e.LastUpdated)
	if err != nil {
		return fmt.Errorf("failed to upsert leaderboard entry: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrChallengeNotFound
	}
	return nil
}

func (r *ChallengeRepository) attachParticipants(ctx context.Context, chs []challenge.Challenge) error {
	if len(chs) == 0 {
		return nil
	}
	ids := make([]string, len(chs))
	index := make(map[string]int, len(chs))
	for i, c := range chs {
		ids[i] = c.ID
		index[c.ID] = i
	}

	rows, err := r.conn.Query(ctx, `
		SELECT challenge_id, user_id
		FROM challenge_participants
		WHERE challenge_id = ANY($1)
		ORDER BY joined_at, user_id
	`, ids)
	if err != nil {
		return fmt.Errorf("failed to query participants: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var challengeID, userID string
		if err := rows.Scan(&challengeID, &userID); err != nil {
			return fmt.Errorf("failed to scan participant: %w", err)
		}
		i := index[challengeID]
		chs[i].Participants = append(chs[i].Participants, userID)
	}
	return rows.Err()
}

func scanChallenges(rows pgx.Rows) ([]challenge.Challenge, error) {
	defer rows.Close()

	out := []challenge.Challenge{}
	for rows.Next() {
		var c challenge.Challenge
		var typ, language, skill, difficulty string
		var rewards []byte
		err := rows.Scan(
			&c.ID,
			&c.Title,
			&c.Description,
			&typ,
			&language,
			&skill,
			&difficulty,
			&c.StartDate,
			&c.EndDate,
			&c.MaxParticipants,
			&rewards,
			&c.IsActive,
			&c.CreatedBy,
			&c.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan challenge: %w", err)
		}
		c.Type = challenge.Type(typ)
		c.Language = shared.Language(language)
		c.Skill = shared.FinancialSkill(skill)
		c.Difficulty = shared.Difficulty(difficulty)
		c.Participants = []string{}
		c.Leaderboard = []challenge.LeaderboardEntry{}
		c.Rewards = []challenge.Reward{}
		if len(rewards) > 0 {
			if err := json.Unmarshal(rewards, &c.Rewards); err != nil {
				return nil, fmt.Errorf("failed to decode rewards of %s: %w", c.ID, err)
			}
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
