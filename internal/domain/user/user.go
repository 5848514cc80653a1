package user

import (
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/lingofin/lingofin-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// USER ENTITY
// ══════════════════════════════════════════════════════════════════════════════

// User - учащийся платформы. Ровно одна запись Progress на пользователя.
type User struct {
	ID                string            `json:"id"`
	Email             string            `json:"email"`
	Name              string            `json:"name"`
	ProfileImageURL   string            `json:"profile_image_url,omitempty"`
	SelectedLanguages []shared.Language `json:"selected_languages"`
	LearningGoals     []LearningGoal    `json:"learning_goals"`
	Progress          Progress          `json:"progress"`
	JoinedChallenges  []string          `json:"joined_challenges"`
	CompletedCourses  []string          `json:"completed_courses"`
	CreatedAt         time.Time         `json:"created_at"`
	LastActiveAt      time.Time         `json:"last_active_at"`
}

// New создаёт пользователя с прогрессом по умолчанию.
func New(email, name string, now time.Time) *User {
	return &User{
		ID:                uuid.New().String(),
		Email:             strings.ToLower(strings.TrimSpace(email)),
		Name:              strings.TrimSpace(name),
		SelectedLanguages: []shared.Language{},
		LearningGoals:     []LearningGoal{},
		Progress:          NewProgress(),
		JoinedChallenges:  []string{},
		CompletedCourses:  []string{},
		CreatedAt:         now,
		LastActiveAt:      now,
	}
}

// Clone возвращает глубокую копию пользователя или nil для nil.
// Срезы языков, целей, челленджей и курсов копируются.
func (u *User) Clone() *User {
	if u == nil {
		return nil
	}
	c := *u
	c.SelectedLanguages = slices.Clone(u.SelectedLanguages)
	c.LearningGoals = slices.Clone(u.LearningGoals)
	c.Progress = u.Progress.Clone()
	c.JoinedChallenges = slices.Clone(u.JoinedChallenges)
	c.CompletedCourses = slices.Clone(u.CompletedCourses)
	return &c
}

// SetLanguages заменяет выбранные языки. Неизвестные коды и повторы
// отбрасываются, порядок первого появления сохраняется.
func (u *User) SetLanguages(langs []shared.Language) {
	out := make([]shared.Language, 0, len(langs))
	for _, l := range langs {
		if l.IsValid() && !slices.Contains(out, l) {
			out = append(out, l)
		}
	}
	u.SelectedLanguages = out
}

// JoinChallenge добавляет ID в множество; повтор игнорируется.
func (u *User) JoinChallenge(challengeID string) bool {
	if slices.Contains(u.JoinedChallenges, challengeID) {
		return false
	}
	u.JoinedChallenges = append(u.JoinedChallenges, challengeID)
	return true
}

// HasJoined сообщает, участвует ли пользователь в челлендже.
func (u *User) HasJoined(challengeID string) bool {
	return slices.Contains(u.JoinedChallenges, challengeID)
}

// CompleteCourse добавляет ID курса в множество завершённых.
func (u *User) CompleteCourse(courseID string) bool {
	if slices.Contains(u.CompletedCourses, courseID) {
		return false
	}
	u.CompletedCourses = append(u.CompletedCourses, courseID)
	return true
}

// Touch обновляет время последней активности.
func (u *User) Touch(now time.Time) {
	u.LastActiveAt = now
}

// ══════════════════════════════════════════════════════════════════════════════
// LEARNING GOAL
// ══════════════════════════════════════════════════════════════════════════════

// LearningGoal - учебная цель пользователя с долей выполнения.
type LearningGoal struct {
	ID             string                `json:"id"`
	Title          string                `json:"title"`
	Description    string                `json:"description"`
	TargetLanguage shared.Language       `json:"target_language"`
	TargetSkill    shared.FinancialSkill `json:"target_skill"`
	TargetDate     time.Time             `json:"target_date"`
	IsCompleted    bool                  `json:"is_completed"`
	Progress       float64               `json:"progress"` // 0.0 - 1.0
}

// NewLearningGoal проверяет название, язык и навык и создаёт цель
// с новым ID. Прогресс новой цели равен 0.
func NewLearningGoal(title, description string, lang shared.Language, skill shared.FinancialSkill, target time.Time) (LearningGoal, error) {
	if strings.TrimSpace(title) == "" {
		return LearningGoal{}, shared.InvalidArgument("user", "NewLearningGoal", "title is required")
	}
	if !lang.IsValid() {
		return LearningGoal{}, shared.InvalidArgument("user", "NewLearningGoal", "unknown language %q", lang)
	}
	if !skill.IsValid() {
		return LearningGoal{}, shared.InvalidArgument("user", "NewLearningGoal", "unknown skill %q", skill)
	}
	return LearningGoal{
		ID:             uuid.New().String(),
		Title:          strings.TrimSpace(title),
		Description:    description,
		TargetLanguage: lang,
		TargetSkill:    skill,
		TargetDate:     target,
	}, nil
}

// SetProgress ограничивает p отрезком [0, 1]. Значение 1 завершает цель,
// последующее уменьшение завершение не отменяет.
func (g *LearningGoal) SetProgress(p float64) {
	switch {
	case p < 0:
		p = 0
	case p > 1:
		p = 1
	}
	g.Progress = p
	if p == 1 {
		g.IsCompleted = true
	}
}
