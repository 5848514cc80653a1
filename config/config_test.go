package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, BackendMock, cfg.Backend.Kind)
	assert.Equal(t, SessionSQLite, cfg.Session.Store)
	assert.Equal(t, 8080, cfg.HTTP.Port)
	assert.Equal(t, 10*time.Minute, cfg.Scheduler.RebuildLeaderboardInterval)
	assert.Equal(t, "Courses", cfg.Importer.CoursesSheet)
	assert.Equal(t, time.UTC, cfg.App.Location)
	assert.True(t, cfg.IsDevelopment())
	assert.False(t, cfg.Features.IsEnabled(FeatureChallengeLiveActivity, nil))
}

func TestLoad_FromEnvironment(t *testing.T) {
	t.Setenv("BACKEND", "postgres")
	t.Setenv("DB_HOST", "db")
	t.Setenv("DB_USER", "app")
	t.Setenv("DB_PASSWORD", "secret")
	t.Setenv("HTTP_ALLOWED_ORIGINS", "http://a.test, http://b.test,")
	t.Setenv("SCHEDULER_LEADERBOARD_INTERVAL", "90s")
	t.Setenv("FEATURE_CHALLENGE_LIVE_ACTIVITY", "true")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres://app:secret@db:5432/lingofin?sslmode=disable", cfg.Database.URL)
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.HTTP.AllowedOrigins)
	assert.Equal(t, 90*time.Second, cfg.Scheduler.RebuildLeaderboardInterval)
	assert.True(t, cfg.Features.IsEnabled(FeatureChallengeLiveActivity, nil))
}

func TestValidate_CollectsAllErrors(t *testing.T) {
	t.Setenv("BACKEND", "grpc")
	t.Setenv("SESSION_STORE", "redis")
	t.Setenv("REDIS_DISABLED", "true")
	t.Setenv("HTTP_PORT", "0")
	t.Setenv("LOG_LEVEL", "trace")

	_, err := Load()
	require.Error(t, err)
	msg := err.Error()
	assert.Contains(t, msg, "BACKEND must be")
	assert.Contains(t, msg, "SESSION_STORE=redis")
	assert.Contains(t, msg, "HTTP_PORT")
	assert.Contains(t, msg, "LOG_LEVEL")
}

func TestValidate_BackendRequirements(t *testing.T) {
	t.Setenv("BACKEND", "http")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "BACKEND_BASE_URL")

	t.Setenv("BACKEND_BASE_URL", "http://api.local")
	_, err = Load()
	assert.NoError(t, err)
}
