package config

import (
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFeatureFlags_Defaults(t *testing.T) {
	ff := NewFeatureFlags()

	assert.False(t, ff.IsEnabled(FeatureChallengeLiveActivity, nil))
	assert.True(t, ff.IsEnabled(FeatureLeaderboardCache, nil))
	assert.False(t, ff.IsEnabled("no.such.feature", nil))
	assert.True(t, ff.IsEnabled(FeatureChallengeLiveActivity, &FeatureContext{IsAdmin: true}))
}

func TestFeatureFlags_EnvOverride(t *testing.T) {
	t.Setenv("FEATURE_LEADERBOARD_CACHE", "false")
	t.Setenv("FEATURE_CHALLENGE_LIVE_ACTIVITY", "30")

	ff := LoadFeatureFlags()
	assert.False(t, ff.IsEnabled(FeatureLeaderboardCache, nil))

	f := ff.GetAllFeatures()[FeatureChallengeLiveActivity]
	assert.True(t, f.Enabled)
	assert.Equal(t, 30, f.RolloutPercent)
}

func TestFeatureFlags_CheckerSeesToggles(t *testing.T) {
	ff := NewFeatureFlags()
	live := ff.Checker(FeatureChallengeLiveActivity)

	assert.False(t, live())
	require.NoError(t, ff.EnableFeature(FeatureChallengeLiveActivity))
	assert.True(t, live())
	require.NoError(t, ff.DisableFeature(FeatureChallengeLiveActivity))
	assert.False(t, live())

	assert.ErrorIs(t, ff.SetRolloutPercent("missing", 10), ErrFeatureNotFound)
	assert.ErrorIs(t, ff.SetRolloutPercent(FeatureLeaderboardCache, 101), ErrInvalidRolloutPercent)
}

func TestFeatureFlags_RolloutIsStablePerUser(t *testing.T) {
	ff := NewFeatureFlags()
	require.NoError(t, ff.SetRolloutPercent(FeatureLeaderboardCache, 50))

	in := 0
	for i := 0; i < 200; i++ {
		ctx := &FeatureContext{UserID: "user-" + strconv.Itoa(i)}
		first := ff.IsEnabled(FeatureLeaderboardCache, ctx)
		assert.Equal(t, first, ff.IsEnabled(FeatureLeaderboardCache, ctx))
		if first {
			in++
		}
	}
	assert.Greater(t, in, 0)
	assert.Less(t, in, 200)
}

func TestFeatureFlags_OverridesAndTargeting(t *testing.T) {
	ff := NewFeatureFlags()
	ff.features[FeatureLeaderboardCache].TargetLanguages = []string{"fr"}

	assert.True(t, ff.IsEnabled(FeatureLeaderboardCache, &FeatureContext{UserID: "u1", Languages: []string{"es", "fr"}}))
	assert.False(t, ff.IsEnabled(FeatureLeaderboardCache, &FeatureContext{UserID: "u1", Languages: []string{"de"}}))

	ff.SetUserOverride("u1", FeatureLeaderboardCache, true)
	assert.True(t, ff.IsEnabled(FeatureLeaderboardCache, &FeatureContext{UserID: "u1", Languages: []string{"de"}}))
	ff.ClearUserOverrides("u1")
	assert.False(t, ff.IsEnabled(FeatureLeaderboardCache, &FeatureContext{UserID: "u1", Languages: []string{"de"}}))
}

func TestFeatureFlags_TimeWindow(t *testing.T) {
	ff := NewFeatureFlags()
	now := time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC)
	ff.now = func() time.Time { return now }
	from := now.Add(time.Hour)
	ff.features[FeatureLeaderboardCache].EnabledFrom = &from

	assert.False(t, ff.IsEnabled(FeatureLeaderboardCache, nil))
	now = now.Add(2 * time.Hour)
	assert.True(t, ff.IsEnabled(FeatureLeaderboardCache, nil))
}
