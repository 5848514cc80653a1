// Package challenge содержит челленджи, награды и лидерборды.
package challenge

import (
	"slices"
	"strings"
	"time"

	"github.com/lingofin/lingofin-hub/internal/domain/shared"
)

// Type - вид задания челленджа.
type Type string

const (
	TypeTranslation          Type = "translation"
	TypeQuiz                 Type = "quiz"
	TypeFinancialReport      Type = "financial_report"
	TypeVocabulary           Type = "vocabulary"
	TypeConversation         Type = "conversation"
	TypeBudgetingTask        Type = "budgeting_task"
	TypeInvestmentSimulation Type = "investment_simulation"
)

// IsValid сообщает, входит ли вид в закрытый перечень.
func (t Type) IsValid() bool {
	switch t {
	case TypeTranslation, TypeQuiz, TypeFinancialReport, TypeVocabulary,
		TypeConversation, TypeBudgetingTask, TypeInvestmentSimulation:
		return true
	}
	return false
}

var typeNames = map[Type]string{
	TypeTranslation:          "Translation Challenge",
	TypeQuiz:                 "Financial Quiz",
	TypeFinancialReport:      "Financial Report Analysis",
	TypeVocabulary:           "Vocabulary Building",
	TypeConversation:         "Conversation Practice",
	TypeBudgetingTask:        "Budgeting Task",
	TypeInvestmentSimulation: "Investment Simulation",
}

// DisplayName - название вида для показа. Для неизвестного вида
// возвращается сам код.
func (t Type) DisplayName() string {
	if name, ok := typeNames[t]; ok {
		return name
	}
	return string(t)
}

// RewardType - вид награды за челлендж.
type RewardType string

const (
	RewardPoints        RewardType = "points"
	RewardBadge         RewardType = "badge"
	RewardCertificate   RewardType = "certificate"
	RewardUnlockContent RewardType = "unlock_content"
)

// IsValid сообщает, входит ли вид награды в закрытый перечень.
func (t RewardType) IsValid() bool {
	switch t {
	case RewardPoints, RewardBadge, RewardCertificate, RewardUnlockContent:
		return true
	}
	return false
}

// Reward - награда, объявленная челленджем.
type Reward struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Type        RewardType `json:"type"`
	Value       int        `json:"value"`
	IconName    string     `json:"icon_name"`
	Requirement string     `json:"requirement"`
	IsUnlocked  bool       `json:"is_unlocked"`
}

// ══════════════════════════════════════════════════════════════════════════════
// CHALLENGE
// ══════════════════════════════════════════════════════════════════════════════

// Challenge - соревнование с датами начала и конца.
// IsActive - снимок, вычисленный при создании; он не пересчитывается сам.
type Challenge struct {
	ID              string                `json:"id"`
	Title           string                `json:"title"`
	Description     string                `json:"description"`
	Type            Type                  `json:"type"`
	Language        shared.Language       `json:"language"`
	Skill           shared.FinancialSkill `json:"skill"`
	Difficulty      shared.Difficulty     `json:"difficulty"`
	StartDate       time.Time             `json:"start_date"`
	EndDate         time.Time             `json:"end_date"`
	MaxParticipants *int                  `json:"max_participants,omitempty"`
	Participants    []string              `json:"participants"`
	Leaderboard     []LeaderboardEntry    `json:"leaderboard"`
	Rewards         []Reward              `json:"rewards"`
	IsActive        bool                  `json:"is_active"`
	CreatedBy       string                `json:"created_by"`
	CreatedAt       time.Time             `json:"created_at"`
}

// NewParams - входные данные New.
type NewParams struct {
	ID              string
	Title           string
	Description     string
	Type            Type
	Language        shared.Language
	Skill           shared.FinancialSkill
	Difficulty      shared.Difficulty
	StartDate       time.Time
	EndDate         time.Time
	MaxParticipants *int
	Rewards         []Reward
	CreatedBy       string
}

// New проверяет параметры и создаёт челлендж. IsActive вычисляется
// один раз на момент now; участники и лидерборд пусты.
func New(p NewParams, now time.Time) (*Challenge, error) {
	const op = "New"
	if strings.TrimSpace(p.ID) == "" || strings.TrimSpace(p.Title) == "" {
		return nil, shared.InvalidArgument("challenge", op, "id and title are required")
	}
	if !p.Type.IsValid() {
		return nil, shared.InvalidArgument("challenge", op, "unknown type %q", p.Type)
	}
	if !p.Language.IsValid() || !p.Skill.IsValid() || !p.Difficulty.IsValid() {
		return nil, shared.InvalidArgument("challenge", op, "invalid language, skill or difficulty")
	}
	if _, err := shared.NewTimeRange(p.StartDate, p.EndDate); err != nil {
		return nil, err
	}
	if p.MaxParticipants != nil && *p.MaxParticipants <= 0 {
		return nil, shared.InvalidArgument("challenge", op, "max participants must be positive")
	}
	c := &Challenge{
		ID:              p.ID,
		Title:           p.Title,
		Description:     p.Description,
		Type:            p.Type,
		Language:        p.Language,
		Skill:           p.Skill,
		Difficulty:      p.Difficulty,
		StartDate:       p.StartDate,
		EndDate:         p.EndDate,
		MaxParticipants: p.MaxParticipants,
		Participants:    []string{},
		Leaderboard:     []LeaderboardEntry{},
		Rewards:         slices.Clone(p.Rewards),
		CreatedBy:       p.CreatedBy,
		CreatedAt:       now,
	}
	c.IsActive = c.ActiveAt(now)
	return c, nil
}

// ActiveAt вычисляет активность по часам, а не по снимку IsActive.
// Обе границы интервала включены.
func (c *Challenge) ActiveAt(now time.Time) bool {
	return shared.TimeRange{From: c.StartDate, To: c.EndDate}.Contains(now)
}

// IsFull сообщает, что лимит участников задан и достигнут.
func (c *Challenge) IsFull() bool {
	return c.MaxParticipants != nil && len(c.Participants) >= *c.MaxParticipants
}

// HasParticipant сообщает, состоит ли userID в участниках.
func (c *Challenge) HasParticipant(userID string) bool {
	return slices.Contains(c.Participants, userID)
}

// AddParticipant добавляет userID в множество участников. Повтор
// возвращает false без ошибки, переполнение даёт ErrChallengeFull.
func (c *Challenge) AddParticipant(userID string) (bool, error) {
	if c.HasParticipant(userID) {
		return false, nil
	}
	if c.IsFull() {
		return false, shared.ErrChallengeFull
	}
	c.Participants = append(c.Participants, userID)
	return true, nil
}

// Clone возвращает глубокую копию челленджа, включая лимит участников.
func (c Challenge) Clone() Challenge {
	c.Participants = slices.Clone(c.Participants)
	c.Leaderboard = slices.Clone(c.Leaderboard)
	c.Rewards = slices.Clone(c.Rewards)
	if c.MaxParticipants != nil {
		n := *c.MaxParticipants
		c.MaxParticipants = &n
	}
	return c
}

// DaysLeft округляет оставшееся время вверх до целых дней.
// После окончания возвращает 0.
func (c *Challenge) DaysLeft(now time.Time) int {
	left := c.EndDate.Sub(now)
	if left <= 0 {
		return 0
	}
	return int((left + 24*time.Hour - 1) / (24 * time.Hour))
}
