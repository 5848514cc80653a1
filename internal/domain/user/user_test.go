package user

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lingofin/lingofin-hub/internal/domain/shared"
)

func TestNew_DefaultsAndNormalization(t *testing.T) {
	now := time.Now()
	u := New("  Learner@Example.COM ", " Ana ", now)

	assert.NotEmpty(t, u.ID)
	assert.Equal(t, "learner@example.com", u.Email)
	assert.Equal(t, "Ana", u.Name)
	assert.Equal(t, 1, u.Progress.Level)
	assert.Empty(t, u.Progress.Badges)
	assert.Equal(t, now, u.CreatedAt)
}

func TestClone_IsDeep(t *testing.T) {
	u := New("a@b.io", "A", time.Now())
	u.JoinChallenge("c1")
	u.Progress, _ = AwardBadge(u.Progress, Badge{ID: "b"})

	c := u.Clone()
	c.JoinChallenge("c2")
	c.Progress.Badges[0].Name = "changed"

	assert.Equal(t, []string{"c1"}, u.JoinedChallenges)
	assert.Empty(t, u.Progress.Badges[0].Name)
}

func TestSetLanguages_DedupesAndDropsInvalid(t *testing.T) {
	u := New("a@b.io", "A", time.Now())
	u.SetLanguages([]shared.Language{"fr", "xx", "es", "fr"})
	assert.Equal(t, []shared.Language{shared.LanguageFrench, shared.LanguageSpanish}, u.SelectedLanguages)
}

func TestSetMembership(t *testing.T) {
	u := New("a@b.io", "A", time.Now())
	assert.True(t, u.JoinChallenge("c1"))
	assert.False(t, u.JoinChallenge("c1"))
	assert.True(t, u.HasJoined("c1"))
	assert.True(t, u.CompleteCourse("k1"))
	assert.False(t, u.CompleteCourse("k1"))
}

func TestLearningGoal(t *testing.T) {
	_, err := NewLearningGoal("", "", shared.LanguageFrench, shared.SkillBanking, time.Now())
	assert.True(t, shared.IsInvalidArgument(err))

	_, err = NewLearningGoal("Goal", "", "xx", shared.SkillBanking, time.Now())
	assert.True(t, shared.IsInvalidArgument(err))

	g, err := NewLearningGoal("Goal", "desc", shared.LanguageFrench, shared.SkillBanking, time.Now())
	require.NoError(t, err)

	g.SetProgress(1.7)
	assert.Equal(t, 1.0, g.Progress)
	assert.True(t, g.IsCompleted)
}
