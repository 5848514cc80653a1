package user

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lingofin/lingofin-hub/internal/domain/shared"
)

func TestApplyLessonCompletion_AccumulatesCounters(t *testing.T) {
	p := NewProgress()

	next, err := ApplyLessonCompletion(p, 1, 300, 40)
	require.NoError(t, err)

	assert.Equal(t, 1, next.TotalLessonsCompleted)
	assert.Equal(t, 300, next.TotalTimeSpent)
	assert.Equal(t, 40, next.TotalPoints)
	assert.Equal(t, 40, next.ExperiencePoints)
	assert.Equal(t, 1, next.Level)
	assert.Equal(t, NewProgress(), p, "input must not be mutated")
}

func TestApplyLessonCompletion_LevelsUpAtThreshold(t *testing.T) {
	p := NewProgress()
	p.ExperiencePoints = 990
	p.TotalPoints = 990

	next, err := ApplyLessonCompletion(p, 1, 60, 20)
	require.NoError(t, err)

	assert.Equal(t, 1010, next.ExperiencePoints)
	assert.Equal(t, 2, next.Level)
}

func TestApplyLessonCompletion_LevelTable(t *testing.T) {
	tests := []struct {
		name      string
		xp        int
		points    int
		wantXP    int
		wantLevel int
	}{
		{"stays below threshold", 0, 999, 999, 1},
		{"reaches threshold exactly", 900, 100, 1000, 2},
		{"crosses threshold", 950, 100, 1050, 2},
		{"skips a level", 500, 2600, 3100, 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewProgress()
			p.ExperiencePoints = tt.xp
			p.TotalPoints = tt.xp

			next, err := ApplyLessonCompletion(p, 1, 300, tt.points)
			require.NoError(t, err)
			assert.Equal(t, tt.wantXP, next.ExperiencePoints)
			assert.Equal(t, tt.wantXP, next.TotalPoints)
			assert.Equal(t, tt.wantLevel, next.Level)
		})
	}
}

func TestApplyLessonCompletion_NeverDecrementsLevel(t *testing.T) {
	p := NewProgress()
	p.Level = 7
	p.ExperiencePoints = 100

	next, err := ApplyLessonCompletion(p, 0, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, 7, next.Level)
}

func TestApplyLessonCompletion_LeavesStreaksAlone(t *testing.T) {
	p := NewProgress()
	p.CurrentStreak = 3
	p.LongestStreak = 5

	next, err := ApplyLessonCompletion(p, 2, 100, 10)
	require.NoError(t, err)
	assert.Equal(t, 3, next.CurrentStreak)
	assert.Equal(t, 5, next.LongestStreak)
}

func TestApplyLessonCompletion_RejectsNegativeInput(t *testing.T) {
	tests := []struct {
		name                     string
		lessons, seconds, points int
	}{
		{"lessons", -1, 0, 0},
		{"time", 0, -5, 0},
		{"points", 0, 0, -10},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewProgress()
			next, err := ApplyLessonCompletion(p, tt.lessons, tt.seconds, tt.points)
			require.Error(t, err)
			assert.True(t, shared.IsInvalidArgument(err))
			assert.Equal(t, p, next)
		})
	}
}

func TestLevelHelpers(t *testing.T) {
	assert.Equal(t, 1, LevelForXP(-50))
	assert.Equal(t, 1, LevelForXP(999))
	assert.Equal(t, 2, LevelForXP(1000))
	assert.Equal(t, 4, LevelForXP(3500))

	p := NewProgress()
	p.ExperiencePoints = 1250
	p.Level = 2
	assert.Equal(t, 750, XPToNextLevel(p))
	assert.InDelta(t, 0.25, LevelProgress(p), 1e-9)

	assert.Equal(t, 1000, XPToNextLevel(NewProgress()))
	assert.Equal(t, 0.0, LevelProgress(NewProgress()))
}

func TestAwardBadge_IsUniqueByID(t *testing.T) {
	b := Badge{ID: "b1", Name: "One", Category: BadgeCategoryCommunity}

	p, added := AwardBadge(NewProgress(), b)
	require.True(t, added)
	require.Len(t, p.Badges, 1)

	again, added := AwardBadge(p, Badge{ID: "b1", Name: "Renamed"})
	assert.False(t, added)
	assert.Len(t, again.Badges, 1)
	assert.Equal(t, "One", again.Badges[0].Name)
}

func TestBadgeRules_AwardOnceAndStampDate(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	rules := DefaultBadgeRules()

	p, err := ApplyLessonCompletion(NewProgress(), 1, 3600, 5000)
	require.NoError(t, err)

	p, earned := rules.Apply(p, now)
	ids := make([]string, 0, len(earned))
	for _, b := range earned {
		ids = append(ids, b.ID)
		assert.Equal(t, now, b.EarnedDate)
	}
	assert.ElementsMatch(t, []string{BadgeFirstLesson, BadgeLevelFive, BadgeFirstHour}, ids)

	p, earned = rules.Apply(p, now.Add(time.Hour))
	assert.Empty(t, earned)
	assert.Len(t, p.Badges, 3)
}
