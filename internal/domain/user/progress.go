package user

import (
	"slices"
	"time"

	"github.com/lingofin/lingofin-hub/internal/domain/shared"
)

// XPPerLevel - опыт, необходимый для одного уровня.
const XPPerLevel = 1000

// ══════════════════════════════════════════════════════════════════════════════
// PROGRESS
// ══════════════════════════════════════════════════════════════════════════════

// Progress - накопленный прогресс учащегося.
// Инварианты: Level >= 1, Level никогда не уменьшается,
// LongestStreak >= CurrentStreak, значки уникальны по ID.
type Progress struct {
	TotalLessonsCompleted int     `json:"total_lessons_completed"`
	TotalTimeSpent        int     `json:"total_time_spent"` // секунды
	CurrentStreak         int     `json:"current_streak"`
	LongestStreak         int     `json:"longest_streak"`
	TotalPoints           int     `json:"total_points"`
	Level                 int     `json:"level"`
	ExperiencePoints      int     `json:"experience_points"`
	Badges                []Badge `json:"badges"`
}

// NewProgress возвращает прогресс по умолчанию: уровень 1, всё остальное 0.
func NewProgress() Progress {
	return Progress{Level: 1, Badges: []Badge{}}
}

// Clone копирует прогресс вместе со срезом значков.
// Пустой список значков всегда непустой срез, а не nil.
func (p Progress) Clone() Progress {
	p.Badges = slices.Clone(p.Badges)
	if p.Badges == nil {
		p.Badges = []Badge{}
	}
	return p
}

// HasBadge сообщает, получен ли уже значок с идентификатором id.
func (p Progress) HasBadge(id string) bool {
	return slices.ContainsFunc(p.Badges, func(b Badge) bool { return b.ID == id })
}

// LevelForXP = floor(xp/1000) + 1. Отрицательный опыт считается нулевым.
func LevelForXP(xp int) int {
	if xp < 0 {
		xp = 0
	}
	return xp/XPPerLevel + 1
}

// ApplyLessonCompletion добавляет результаты урока к прогрессу.
// Опыт равен набранным очкам. Серии не меняются. Входное значение не
// изменяется; при отрицательных аргументах возвращается InvalidArgument.
func ApplyLessonCompletion(p Progress, lessonsCompleted, timeSpentSeconds, pointsEarned int) (Progress, error) {
	const op = "ApplyLessonCompletion"
	switch {
	case lessonsCompleted < 0:
		return p, shared.InvalidArgument("user", op, "lessons completed cannot be negative: %d", lessonsCompleted)
	case timeSpentSeconds < 0:
		return p, shared.InvalidArgument("user", op, "time spent cannot be negative: %d", timeSpentSeconds)
	case pointsEarned < 0:
		return p, shared.InvalidArgument("user", op, "points earned cannot be negative: %d", pointsEarned)
	}

	next := p.Clone()
	next.TotalLessonsCompleted += lessonsCompleted
	next.TotalTimeSpent += timeSpentSeconds
	next.TotalPoints += pointsEarned
	next.ExperiencePoints += pointsEarned
	next.Level = max(next.Level, LevelForXP(next.ExperiencePoints))
	return next, nil
}

// XPToNextLevel - сколько опыта осталось до следующего уровня.
func XPToNextLevel(p Progress) int {
	return max(0, p.Level*XPPerLevel-p.ExperiencePoints)
}

// LevelProgress - доля пройденного текущего уровня в [0, 1).
func LevelProgress(p Progress) float64 {
	into := p.ExperiencePoints - (p.Level-1)*XPPerLevel
	switch {
	case into <= 0:
		return 0
	case into >= XPPerLevel:
		return float64(XPPerLevel-1) / XPPerLevel
	}
	return float64(into) / XPPerLevel
}

// ══════════════════════════════════════════════════════════════════════════════
// BADGES
// ══════════════════════════════════════════════════════════════════════════════

// BadgeCategory - раздел, к которому относится значок.
type BadgeCategory string

const (
	BadgeCategoryStreak     BadgeCategory = "streak"
	BadgeCategoryCompletion BadgeCategory = "completion"
	BadgeCategoryCommunity  BadgeCategory = "community"
	BadgeCategoryFinancial  BadgeCategory = "financial"
	BadgeCategoryLanguage   BadgeCategory = "language"
)

// IsValid сообщает, входит ли категория в закрытый перечень.
func (c BadgeCategory) IsValid() bool {
	switch c {
	case BadgeCategoryStreak, BadgeCategoryCompletion, BadgeCategoryCommunity,
		BadgeCategoryFinancial, BadgeCategoryLanguage:
		return true
	}
	return false
}

// Badge - награда учащегося. Уникальна в прогрессе по ID.
type Badge struct {
	ID          string        `json:"id"`
	Name        string        `json:"name"`
	Description string        `json:"description"`
	IconName    string        `json:"icon_name"`
	EarnedDate  time.Time     `json:"earned_date"`
	Category    BadgeCategory `json:"category"`
}

// AwardBadge добавляет значок, если значка с таким ID ещё нет.
// Возвращает новый прогресс и признак добавления.
func AwardBadge(p Progress, b Badge) (Progress, bool) {
	if p.HasBadge(b.ID) {
		return p, false
	}
	next := p.Clone()
	next.Badges = append(next.Badges, b)
	return next, true
}
