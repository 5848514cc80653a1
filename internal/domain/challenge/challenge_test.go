package challenge

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lingofin/lingofin-hub/internal/domain/shared"
)

func params(start, end time.Time) NewParams {
	return NewParams{
		ID:         "ch1",
		Title:      "French Banking Translation",
		Type:       TypeTranslation,
		Language:   shared.LanguageFrench,
		Skill:      shared.SkillBanking,
		Difficulty: shared.DifficultyIntermediate,
		StartDate:  start,
		EndDate:    end,
		CreatedBy:  "admin",
	}
}

func TestNew_SnapshotsActivity(t *testing.T) {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

	running, err := New(params(now, now.AddDate(0, 0, 7)), now)
	require.NoError(t, err)
	assert.True(t, running.IsActive)

	upcoming, err := New(params(now.AddDate(0, 0, 2), now.AddDate(0, 0, 10)), now)
	require.NoError(t, err)
	assert.False(t, upcoming.IsActive)

	// the snapshot does not follow the clock
	later := now.AddDate(0, 0, 3)
	assert.False(t, upcoming.IsActive)
	assert.True(t, upcoming.ActiveAt(later))
	assert.True(t, running.ActiveAt(running.EndDate))
}

func TestNew_Validation(t *testing.T) {
	now := time.Now()

	p := params(now, now.Add(-time.Hour))
	_, err := New(p, now)
	assert.True(t, shared.IsInvalidArgument(err))

	p = params(now, now.Add(time.Hour))
	p.Type = "race"
	_, err = New(p, now)
	assert.True(t, shared.IsInvalidArgument(err))

	zero := 0
	p = params(now, now.Add(time.Hour))
	p.MaxParticipants = &zero
	_, err = New(p, now)
	assert.True(t, shared.IsInvalidArgument(err))
}

func TestAddParticipant(t *testing.T) {
	now := time.Now()
	limit := 1
	p := params(now, now.Add(time.Hour))
	p.MaxParticipants = &limit
	c, err := New(p, now)
	require.NoError(t, err)

	added, err := c.AddParticipant("u1")
	require.NoError(t, err)
	assert.True(t, added)

	added, err = c.AddParticipant("u1")
	require.NoError(t, err)
	assert.False(t, added)

	_, err = c.AddParticipant("u2")
	assert.ErrorIs(t, err, shared.ErrChallengeFull)
}

func TestDaysLeft(t *testing.T) {
	now := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	c, err := New(params(now, now.Add(36*time.Hour)), now)
	require.NoError(t, err)

	assert.Equal(t, 2, c.DaysLeft(now))
	assert.Equal(t, 0, c.DaysLeft(now.Add(48*time.Hour)))
}
