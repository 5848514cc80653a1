package bootstrap

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lingofin/lingofin-hub/config"
	"github.com/lingofin/lingofin-hub/internal/domain/shared"
	"github.com/lingofin/lingofin-hub/internal/infrastructure/dataaccess/mock"
	"github.com/lingofin/lingofin-hub/internal/infrastructure/dataaccess/resilient"
	"github.com/lingofin/lingofin-hub/pkg/kv"
	"github.com/lingofin/lingofin-hub/pkg/logger"
)

func quietSlog() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestClosers_ReverseOrderAndJoinedErrors(t *testing.T) {
	var order []string
	var c Closers
	c.Add("first", func() error { order = append(order, "first"); return nil })
	c.Add("second", func() error { order = append(order, "second"); return errors.New("boom") })
	c.Add("third", func() error { order = append(order, "third"); return nil })

	err := c.Close()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "close second: boom")
	assert.Equal(t, []string{"third", "second", "first"}, order)

	// A second Close is a no-op.
	require.NoError(t, c.Close())
	assert.Len(t, order, 3)
}

func TestOpenSessionStore(t *testing.T) {
	t.Run("memory", func(t *testing.T) {
		var c Closers
		store, err := OpenSessionStore(config.SessionConfig{Store: config.SessionMemory}, nil, &c)
		require.NoError(t, err)
		assert.IsType(t, &kv.Memory{}, store)
	})

	t.Run("sqlite", func(t *testing.T) {
		var c Closers
		path := filepath.Join(t.TempDir(), "nested", "session.db")
		store, err := OpenSessionStore(config.SessionConfig{Store: config.SessionSQLite, SQLitePath: path}, nil, &c)
		require.NoError(t, err)
		t.Cleanup(func() { _ = c.Close() })

		ctx := context.Background()
		require.NoError(t, store.Set(ctx, "user", []byte(`{"id":"u1"}`)))
		got, err := store.Get(ctx, "user")
		require.NoError(t, err)
		assert.JSONEq(t, `{"id":"u1"}`, string(got))
	})

	t.Run("redis without cache", func(t *testing.T) {
		var c Closers
		_, err := OpenSessionStore(config.SessionConfig{Store: config.SessionRedis}, nil, &c)
		assert.Error(t, err)
	})

	t.Run("unknown", func(t *testing.T) {
		var c Closers
		_, err := OpenSessionStore(config.SessionConfig{Store: "etcd"}, nil, &c)
		assert.ErrorContains(t, err, `unknown session store "etcd"`)
	})
}

func mockConfig(resilience bool) *config.Config {
	return &config.Config{
		App:     config.AppConfig{Name: "test"},
		Backend: config.BackendConfig{Kind: config.BackendMock, SeedDemoUser: true},
		Resilience: config.ResilienceConfig{
			Enabled:          resilience,
			MaxAttempts:      2,
			InitialDelay:     time.Millisecond,
			MaxDelay:         time.Millisecond,
			BreakerThreshold: 5,
			BreakerTimeout:   time.Second,
		},
		Features: config.NewFeatureFlags(),
	}
}

func TestOpenBackend_Mock(t *testing.T) {
	ctx := context.Background()

	t.Run("plain", func(t *testing.T) {
		var c Closers
		b, err := OpenBackend(ctx, mockConfig(false), quietSlog(), logger.Nop(), &c)
		require.NoError(t, err)
		assert.IsType(t, &mock.Backend{}, b.DataAccess)
		assert.Nil(t, b.Postgres)
		assert.Nil(t, b.Remote)

		courses, err := b.DataAccess.FetchAllCourses(ctx)
		require.NoError(t, err)
		assert.Len(t, courses, 4)
	})

	t.Run("resilient", func(t *testing.T) {
		var c Closers
		b, err := OpenBackend(ctx, mockConfig(true), quietSlog(), logger.Nop(), &c)
		require.NoError(t, err)
		assert.IsType(t, &resilient.DataAccess{}, b.DataAccess)

		courses, err := b.DataAccess.FetchAllCourses(ctx)
		require.NoError(t, err)
		assert.Len(t, courses, 4)
	})

	t.Run("unknown kind", func(t *testing.T) {
		cfg := mockConfig(false)
		cfg.Backend.Kind = "grpc"
		var c Closers
		_, err := OpenBackend(ctx, cfg, quietSlog(), logger.Nop(), &c)
		assert.ErrorContains(t, err, `unknown backend "grpc"`)
	})
}

func TestOpenEventBus_Memory(t *testing.T) {
	var c Closers
	bus, err := OpenEventBus(config.EventsConfig{Transport: "memory", Async: false}, nil, quietSlog(), &c)
	require.NoError(t, err)

	var got []shared.EventType
	require.NoError(t, bus.Subscribe(shared.EventPostCreated, func(e shared.Event) error {
		got = append(got, e.EventType())
		return nil
	}))
	require.NoError(t, bus.Publish(shared.NewPostCreatedEvent("post-1", "user-1", "tip", "en")))
	assert.Equal(t, []shared.EventType{shared.EventPostCreated}, got)

	require.NoError(t, c.Close())
}

func TestOpenEventBus_Errors(t *testing.T) {
	var c Closers
	_, err := OpenEventBus(config.EventsConfig{Transport: "redis"}, nil, quietSlog(), &c)
	assert.Error(t, err)

	_, err = OpenEventBus(config.EventsConfig{Transport: "kafka"}, nil, quietSlog(), &c)
	assert.ErrorContains(t, err, `unknown event transport "kafka"`)
}

func TestOpenRedis_Disabled(t *testing.T) {
	var c Closers
	cache, err := OpenRedis(config.RedisConfig{Disabled: true}, quietSlog(), &c)
	require.NoError(t, err)
	assert.Nil(t, cache)
	require.NoError(t, c.Close())
}
