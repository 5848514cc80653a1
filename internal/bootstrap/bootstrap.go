// Package bootstrap builds the shared infrastructure of the cmd entrypoints
// from a loaded config: loggers, the data-access backend, Redis, the session
// store and the event bus. Every opened resource registers its cleanup in a
// Closers list.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/lingofin/lingofin-hub/config"
	"github.com/lingofin/lingofin-hub/internal/application/app"
	"github.com/lingofin/lingofin-hub/internal/domain/shared"
	"github.com/lingofin/lingofin-hub/internal/infrastructure/dataaccess/httpclient"
	"github.com/lingofin/lingofin-hub/internal/infrastructure/dataaccess/mock"
	"github.com/lingofin/lingofin-hub/internal/infrastructure/dataaccess/resilient"
	"github.com/lingofin/lingofin-hub/internal/infrastructure/messaging"
	"github.com/lingofin/lingofin-hub/internal/infrastructure/persistence/postgres"
	"github.com/lingofin/lingofin-hub/internal/infrastructure/persistence/redis"
	"github.com/lingofin/lingofin-hub/internal/infrastructure/persistence/sqlite"
	"github.com/lingofin/lingofin-hub/pkg/circuitbreaker"
	"github.com/lingofin/lingofin-hub/pkg/kv"
	"github.com/lingofin/lingofin-hub/pkg/logger"
	"github.com/lingofin/lingofin-hub/pkg/retry"
)

// ══════════════════════════════════════════════════════════════════════════════
// CLEANUP
// ══════════════════════════════════════════════════════════════════════════════

// Closers runs registered cleanups in reverse order.
type Closers struct {
	names []string
	fns   []func() error
}

func (c *Closers) Add(name string, fn func() error) {
	c.names = append(c.names, name)
	c.fns = append(c.fns, fn)
}

// Close runs every cleanup once and joins their errors.
func (c *Closers) Close() error {
	var errs []error
	for i := len(c.fns) - 1; i >= 0; i-- {
		if err := c.fns[i](); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", c.names[i], err))
		}
	}
	c.names, c.fns = nil, nil
	return errors.Join(errs...)
}

// ══════════════════════════════════════════════════════════════════════════════
// LOGGING
// ══════════════════════════════════════════════════════════════════════════════

// NewSlog sets up the process-wide slog logger: JSON in production or when
// LOG_FORMAT=json, text otherwise.
func NewSlog(cfg *config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{Level: slogLevel(cfg.Observability.LogLevel)}
	if cfg.App.Debug {
		opts.Level = slog.LevelDebug
	}

	var handler slog.Handler
	if cfg.IsProduction() || cfg.Observability.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	log := slog.New(handler).With("app", cfg.App.Name, "version", cfg.App.Version)
	slog.SetDefault(log)
	return log
}

func slogLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// NewLogger builds the house logger used by the application and backends.
func NewLogger(cfg *config.Config) *logger.Logger {
	level := logger.ParseLevel(cfg.Observability.LogLevel)
	if cfg.App.Debug {
		level = logger.LevelDebug
	}
	return logger.New(logger.Options{
		Output:    os.Stdout,
		Level:     level,
		AddCaller: cfg.App.Debug,
	}).With(logger.String("app", cfg.App.Name))
}

// ══════════════════════════════════════════════════════════════════════════════
// STORAGE
// ══════════════════════════════════════════════════════════════════════════════

// OpenPostgres connects with retries and applies migrations when enabled.
func OpenPostgres(ctx context.Context, cfg config.DatabaseConfig, log *slog.Logger, closers *Closers) (*postgres.Connection, error) {
	pgCfg := postgres.DefaultConfig()
	pgCfg.URL = cfg.URL
	pgCfg.MaxConns = int32(cfg.MaxConns)
	pgCfg.MinConns = int32(cfg.MinConns)
	pgCfg.MaxConnLifetime = cfg.ConnMaxLifetime
	pgCfg.MaxConnIdleTime = cfg.ConnMaxIdleTime
	pgCfg.ConnectTimeout = cfg.ConnectTimeout

	r := retry.New(
		retry.WithMaxAttempts(5),
		retry.WithInitialDelay(500*time.Millisecond),
		retry.WithMaxDelay(5*time.Second),
		retry.WithRetryIf(func(error) bool { return true }),
		retry.WithOnRetry(func(attempt int, err error, delay time.Duration) {
			log.Warn("postgres not ready, retrying", "attempt", attempt, "delay", delay, "error", err)
		}),
	)
	conn, err := retry.DoValue(ctx, r, func(ctx context.Context) (*postgres.Connection, error) {
		return postgres.NewConnection(ctx, pgCfg)
	})
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	closers.Add("postgres", func() error {
		conn.Close()
		return nil
	})
	log.Info("database connection established")

	if cfg.AutoMigrate {
		if err := postgres.NewMigrator(conn).Migrate(ctx); err != nil {
			return nil, fmt.Errorf("run migrations: %w", err)
		}
		log.Info("database schema is up to date")
	}
	return conn, nil
}

// OpenRedis returns nil when Redis is disabled.
func OpenRedis(cfg config.RedisConfig, log *slog.Logger, closers *Closers) (*redis.Cache, error) {
	if cfg.Disabled {
		log.Info("redis disabled")
		return nil, nil
	}

	cache, err := redis.NewCache(redis.Config{
		Host:         cfg.Host,
		Port:         cfg.Port,
		Password:     cfg.Password,
		DB:           cfg.DB,
		MasterName:   cfg.MasterName,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		MaxRetries:   3,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	closers.Add("redis", cache.Close)
	log.Info("redis connection established", "host", cfg.Host, "port", cfg.Port)
	return cache, nil
}

// OpenSessionStore picks where the signed-in user is persisted.
func OpenSessionStore(cfg config.SessionConfig, cache *redis.Cache, closers *Closers) (kv.Store, error) {
	switch cfg.Store {
	case config.SessionMemory:
		return kv.NewMemory(), nil
	case config.SessionSQLite:
		if dir := filepath.Dir(cfg.SQLitePath); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create session dir: %w", err)
			}
		}
		store, err := sqlite.Open(cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		closers.Add("sqlite", store.Close)
		return store, nil
	case config.SessionRedis:
		if cache == nil {
			return nil, errors.New("redis session store requires redis")
		}
		return redis.NewSessionStore(cache, cfg.TTL), nil
	default:
		return nil, fmt.Errorf("unknown session store %q", cfg.Store)
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// DATA ACCESS
// ══════════════════════════════════════════════════════════════════════════════

// Backend is the opened data-access backend. Postgres and Remote are set
// only for their kinds, so callers can add health checks.
type Backend struct {
	DataAccess app.DataAccess
	Postgres   *postgres.Connection
	Remote     *httpclient.Client
}

// OpenBackend builds the configured backend, wrapped in retries and a
// circuit breaker when resilience is enabled. A postgres backend opens its
// own connection.
func OpenBackend(ctx context.Context, cfg *config.Config, slogger *slog.Logger, log *logger.Logger, closers *Closers) (*Backend, error) {
	b := &Backend{}

	switch cfg.Backend.Kind {
	case config.BackendMock:
		b.DataAccess = mock.New(mock.Config{
			MinLatency:   cfg.Backend.MinLatency,
			MaxLatency:   cfg.Backend.MaxLatency,
			SeedDemoUser: cfg.Backend.SeedDemoUser,
			Logger:       log,
		})
	case config.BackendPostgres:
		conn, err := OpenPostgres(ctx, cfg.Database, slogger, closers)
		if err != nil {
			return nil, err
		}
		b.Postgres = conn
		b.DataAccess = postgres.NewBackend(conn, postgres.BackendOptions{Logger: log})
	case config.BackendHTTP:
		b.Remote = httpclient.New(httpclient.Config{
			BaseURL: cfg.Backend.BaseURL,
			APIKey:  cfg.Backend.APIKey,
			Timeout: cfg.Backend.Timeout,
			Logger:  log,
			Debug:   cfg.App.Debug,
		})
		b.DataAccess = b.Remote
	default:
		return nil, fmt.Errorf("unknown backend %q", cfg.Backend.Kind)
	}

	b.DataAccess = WithResilience(b.DataAccess, cfg.Resilience, log)
	slogger.Info("data-access backend ready", "kind", cfg.Backend.Kind, "resilient", cfg.Resilience.Enabled)
	return b, nil
}

// WithResilience decorates da unless resilience is disabled.
func WithResilience(da app.DataAccess, cfg config.ResilienceConfig, log *logger.Logger) app.DataAccess {
	if !cfg.Enabled {
		return da
	}

	retrier := retry.New(
		retry.WithMaxAttempts(cfg.MaxAttempts),
		retry.WithInitialDelay(cfg.InitialDelay),
		retry.WithMaxDelay(cfg.MaxDelay),
		retry.WithJitter(0.2),
		retry.WithRetryIf(shared.IsRetryable),
	)
	breaker := circuitbreaker.New("data-access",
		circuitbreaker.WithFailureThreshold(cfg.BreakerThreshold),
		circuitbreaker.WithSuccessThreshold(2),
		circuitbreaker.WithOpenTimeout(cfg.BreakerTimeout),
		circuitbreaker.WithIsFailure(shared.IsServiceFailure),
		circuitbreaker.WithOnStateChange(func(name string, from, to circuitbreaker.State) {
			log.Warn("circuit breaker state changed",
				logger.String("breaker", name),
				logger.String("from", from.String()),
				logger.String("to", to.String()),
			)
		}),
	)
	return resilient.New(da, resilient.Options{Retrier: retrier, Breaker: breaker, Logger: log})
}

// ══════════════════════════════════════════════════════════════════════════════
// EVENTS
// ══════════════════════════════════════════════════════════════════════════════

// EventBus is what the entrypoints need from either transport.
type EventBus interface {
	shared.EventBus
	Close() error
}

// OpenEventBus builds the in-memory bus, or the Redis Pub/Sub bus that
// fans events out to every instance.
func OpenEventBus(cfg config.EventsConfig, cache *redis.Cache, log *slog.Logger, closers *Closers) (EventBus, error) {
	local := messaging.InMemoryEventBusConfig{
		AsyncMode:      cfg.Async,
		WorkerPoolSize: cfg.Workers,
		Logger:         log,
		EnableMetrics:  true,
	}

	var bus EventBus
	switch cfg.Transport {
	case "memory", "":
		bus = messaging.NewInMemoryEventBus(local)
	case "redis":
		if cache == nil {
			return nil, errors.New("redis event transport requires redis")
		}
		rb, err := messaging.NewRedisEventBus(messaging.RedisEventBusConfig{
			Client:         messaging.NewGoRedisClient(cache.Client()),
			ChannelName:    cfg.Channel,
			InstanceID:     uuid.NewString(),
			LocalBusConfig: local,
			Logger:         log,
		})
		if err != nil {
			return nil, fmt.Errorf("start redis event bus: %w", err)
		}
		bus = rb
	default:
		return nil, fmt.Errorf("unknown event transport %q", cfg.Transport)
	}

	closers.Add("event bus", bus.Close)
	log.Info("event bus ready", "transport", cfg.Transport, "async", cfg.Async)
	return bus, nil
}
