package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/lingofin/lingofin-hub/internal/domain/course"
	"github.com/lingofin/lingofin-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// COURSE REPOSITORY
// ══════════════════════════════════════════════════════════════════════════════

// CourseRepository stores the catalog, enrollments and per-user lesson
// progress.
type CourseRepository struct {
	conn *Connection
}

// NewCourseRepository creates a new CourseRepository.
func NewCourseRepository(conn *Connection) *CourseRepository {
	return &CourseRepository{conn: conn}
}

const courseColumns = `
	c.id, c.title, c.description, c.language, c.financial_skill, c.difficulty,
	c.estimated_duration, c.thumbnail_url, c.is_popular, c.rating, c.enrolled_count,
	c.created_at, c.updated_at`

// List returns the whole catalog with lessons sorted by order. Lessons carry
// no per-user state.
func (r *CourseRepository) List(ctx context.Context) ([]course.Course, error) {
	rows, err := r.conn.Query(ctx, `SELECT `+courseColumns+` FROM courses c ORDER BY c.created_at, c.id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query courses: %w", err)
	}
	courses, err := scanCourses(rows)
	if err != nil {
		return nil, err
	}
	if err := r.attachLessons(ctx, courses); err != nil {
		return nil, err
	}
	return courses, nil
}

// ListEnrolled returns the user's courses in enrollment order with the
// user's completed lessons marked.
func (r *CourseRepository) ListEnrolled(ctx context.Context, userID string) ([]course.Course, error) {
	rows, err := r.conn.Query(ctx, `
		SELECT `+courseColumns+`
		FROM courses c
		JOIN enrollments e ON e.course_id = c.id
		WHERE e.user_id = $1
		ORDER BY e.enrolled_at, c.id
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query enrolled courses: %w", err)
	}
	courses, err := scanCourses(rows)
	if err != nil {
		return nil, err
	}
	if err := r.attachLessons(ctx, courses); err != nil {
		return nil, err
	}

	done, err := r.CompletedLessons(ctx, userID)
	if err != nil {
		return nil, err
	}
	for i := range courses {
		for j := range courses[i].Lessons {
			if at, ok := done[courses[i].Lessons[j].ID]; ok {
				courses[i].Lessons[j].MarkCompleted(at)
			}
		}
	}
	return courses, nil
}

// CompletedLessons maps lesson id to completion time for userID.
func (r *CourseRepository) CompletedLessons(ctx context.Context, userID string) (map[string]time.Time, error) {
	rows, err := r.conn.Query(ctx, `
		SELECT lesson_id, completed_at
		FROM lesson_progress
		WHERE user_id = $1 AND completed
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query lesson progress: %w", err)
	}
	defer rows.Close()

	done := make(map[string]time.Time)
	for rows.Next() {
		var lessonID string
		var at *time.Time
		if err := rows.Scan(&lessonID, &at); err != nil {
			return nil, fmt.Errorf("failed to scan lesson progress: %w", err)
		}
		if at != nil {
			done[lessonID] = *at
		} else {
			done[lessonID] = time.Time{}
		}
	}
	return done, rows.Err()
}

// Enroll records the enrollment once and bumps the course's counter.
// Enrolling twice is a no-op that still succeeds.
func (r *CourseRepository) Enroll(ctx context.Context, courseID, userID string, at time.Time) error {
	return r.conn.WithTx(ctx, func(tx pgx.Tx) error {
		var exists bool
		if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM courses WHERE id = $1)`, courseID).Scan(&exists); err != nil {
			return fmt.Errorf("failed to check course: %w", err)
		}
		if !exists {
			return shared.ErrCourseNotFound
		}

		tag, err := tx.Exec(ctx, `
			INSERT INTO enrollments (course_id, user_id, enrolled_at)
			VALUES ($1, $2, $3)
			ON CONFLICT (course_id, user_id) DO NOTHING
		`, courseID, userID, at)
		if err != nil {
			return fmt.Errorf("failed to insert enrollment: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return nil
		}

		_, err = tx.Exec(ctx, `UPDATE courses SET enrolled_count = enrolled_count + 1 WHERE id = $1`, courseID)
		if err != nil {
			return fmt.Errorf("failed to bump enrolled count: %w", err)
		}
		return nil
	})
}

// SetLessonProgress upserts the user's completion flag for lessonID.
func (r *CourseRepository) SetLessonProgress(ctx context.Context, lessonID, userID string, completed bool, at time.Time) error {
	var completedAt *time.Time
	if completed {
		completedAt = &at
	}

	tag, err := r.conn.Exec(ctx, `
		INSERT INTO lesson_progress (lesson_id, user_id, completed, completed_at)
		SELECT id, $2::text, $3::boolean, $4::timestamptz FROM lessons WHERE id = $1
		ON CONFLICT (lesson_id, user_id) DO UPDATE SET
			completed = EXCLUDED.completed,
			completed_at = EXCLUDED.completed_at
	`, lessonID, userID, completed, completedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert lesson progress: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrLessonNotFound
	}
	return nil
}

// Upsert writes c and its lessons in one transaction. Lessons no longer
// present in c are removed. It reports whether the course was new.
func (r *CourseRepository) Upsert(ctx context.Context, c course.Course) (bool, error) {
	var created bool
	err := r.conn.WithTx(ctx, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, `
			INSERT INTO courses (
				id, title, description, language, financial_skill, difficulty,
				estimated_duration, thumbnail_url, is_popular, rating, enrolled_count,
				created_at, updated_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
			ON CONFLICT (id) DO UPDATE SET
				title = EXCLUDED.title,
				description = EXCLUDED.description,
				language = EXCLUDED.language,
				financial_skill = EXCLUDED.financial_skill,
				difficulty = EXCLUDED.difficulty,
				estimated_duration = EXCLUDED.estimated_duration,
				thumbnail_url = EXCLUDED.thumbnail_url,
				is_popular = EXCLUDED.is_popular,
				rating = EXCLUDED.rating,
				updated_at = EXCLUDED.updated_at
			RETURNING (xmax = 0)
		`,
			c.ID,
			c.Title,
			c.Description,
			string(c.Language),
			string(c.FinancialSkill),
			string(c.Difficulty),
			c.EstimatedDuration,
			c.ThumbnailURL,
			c.IsPopular,
			c.Rating,
			c.EnrolledCount,
			c.CreatedAt,
			c.UpdatedAt,
		).Scan(&created)
		if err != nil {
			return fmt.Errorf("failed to upsert course: %w", err)
		}

		ids := make([]string, 0, len(c.Lessons))
		for _, l := range c.Lessons {
			if err := upsertLesson(ctx, tx, c.ID, l); err != nil {
				return err
			}
			ids = append(ids, l.ID)
		}

		_, err = tx.Exec(ctx, `DELETE FROM lessons WHERE course_id = $1 AND NOT (id = ANY($2))`, c.ID, ids)
		if err != nil {
			return fmt.Errorf("failed to prune lessons: %w", err)
		}
		return nil
	})
	return created, err
}

func upsertLesson(ctx context.Context, q Querier, courseID string, l course.Lesson) error {
	exercises, err := json.Marshal(nonNil(l.Exercises))
	if err != nil {
		return fmt.Errorf("failed to marshal exercises: %w", err)
	}
	var scenario []byte
	if l.FinancialScenario != nil {
		if scenario, err = json.Marshal(l.FinancialScenario); err != nil {
			return fmt.Errorf("failed to marshal scenario: %w", err)
		}
	}

	_, err = q.Exec(ctx, `
		INSERT INTO lessons (id, course_id, title, content, type, financial_scenario, exercises, duration, sort_order)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			course_id = EXCLUDED.course_id,
			title = EXCLUDED.title,
			content = EXCLUDED.content,
			type = EXCLUDED.type,
			financial_scenario = EXCLUDED.financial_scenario,
			exercises = EXCLUDED.exercises,
			duration = EXCLUDED.duration,
			sort_order = EXCLUDED.sort_order
	`, l.ID, courseID, l.Title, l.Content, string(l.Type), scenario, exercises, l.Duration, l.Order)
	if err != nil {
		return fmt.Errorf("failed to upsert lesson %s: %w", l.ID, err)
	}
	return nil
}

// attachLessons loads lessons for courses in one query.
func (r *CourseRepository) attachLessons(ctx context.Context, courses []course.Course) error {
	if len(courses) == 0 {
		return nil
	}
	ids := make([]string, len(courses))
	index := make(map[string]int, len(courses))
	for i, c := range courses {
		ids[i] = c.ID
		index[c.ID] = i
	}

	rows, err := r.conn.Query(ctx, `
		SELECT id, course_id, title, content, type, financial_scenario, exercises, duration, sort_order
		FROM lessons
		WHERE course_id = ANY($1)
		ORDER BY course_id, sort_order, id
	`, ids)
	if err != nil {
		return fmt.Errorf("failed to query lessons: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		l, err := scanLesson(rows)
		if err != nil {
			return err
		}
		i := index[l.CourseID]
		courses[i].Lessons = append(courses[i].Lessons, l)
	}
	return rows.Err()
}

func scanCourses(rows pgx.Rows) ([]course.Course, error) {
	defer rows.Close()

	courses := []course.Course{}
	for rows.Next() {
		var c course.Course
		var language, skill, difficulty string
		err := rows.Scan(
			&c.ID,
			&c.Title,
			&c.Description,
			&language,
			&skill,
			&difficulty,
			&c.EstimatedDuration,
			&c.ThumbnailURL,
			&c.IsPopular,
			&c.Rating,
			&c.EnrolledCount,
			&c.CreatedAt,
			&c.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan course: %w", err)
		}
		c.Language = shared.Language(language)
		c.FinancialSkill = shared.FinancialSkill(skill)
		c.Difficulty = shared.Difficulty(difficulty)
		c.Lessons = []course.Lesson{}
		courses = append(courses, c)
	}
	return courses, rows.Err()
}

func scanLesson(row pgx.Row) (course.Lesson, error) {
	var l course.Lesson
	var typ string
	var scenario, exercises []byte
	err := row.Scan(&l.ID, &l.CourseID, &l.Title, &l.Content, &typ, &scenario, &exercises, &l.Duration, &l.Order)
	if err != nil {
		return l, fmt.Errorf("failed to scan lesson: %w", err)
	}
	l.Type = course.LessonType(typ)

	l.Exercises = []course.Exercise{}
	if len(exercises) > 0 {
		if err := json.Unmarshal(exercises, &l.Exercises); err != nil {
			return l, fmt.Errorf("failed to decode exercises of %s: %w", l.ID, err)
		}
	}
	if len(scenario) > 0 {
		var fs course.FinancialScenario
		if err := json.Unmarshal(scenario, &fs); err != nil {
			return l, fmt.Errorf("failed to decode scenario of %s: %w", l.ID, err)
		}
		l.FinancialScenario = &fs
	}
	return l, nil
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
