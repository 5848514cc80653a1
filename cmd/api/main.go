// Package main - точка входа REST API LingoFin Hub.
//
// API отдаёт курсы, челленджи с лидербордами, ленту сообщества и
// аккаунты. Хранилище выбирается конфигом: mock, PostgreSQL или
// удалённый REST backend.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/lingofin/lingofin-hub/config"
	"github.com/lingofin/lingofin-hub/internal/application/eventhandler"
	"github.com/lingofin/lingofin-hub/internal/bootstrap"
	"github.com/lingofin/lingofin-hub/internal/infrastructure/messaging"
	"github.com/lingofin/lingofin-hub/internal/infrastructure/persistence/redis"
	httpserver "github.com/lingofin/lingofin-hub/internal/interface/http"
	"github.com/lingofin/lingofin-hub/internal/interface/http/handlers"
	"github.com/lingofin/lingofin-hub/pkg/timeutil"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "fatal error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	// ─────────────────────────────────────────────────────────────────────────
	// 1. КОНФИГУРАЦИЯ И ЛОГИРОВАНИЕ
	// ─────────────────────────────────────────────────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log := bootstrap.NewSlog(cfg)
	appLog := bootstrap.NewLogger(cfg)
	log.Info("starting LingoFin Hub API",
		"env", cfg.App.Environment,
		"backend", cfg.Backend.Kind,
		"events", cfg.Events.Transport,
	)

	closers := &bootstrap.Closers{}
	defer func() {
		log.Info("releasing resources...")
		if err := closers.Close(); err != nil {
			log.Error("cleanup failed", "error", err)
		}
	}()

	// ─────────────────────────────────────────────────────────────────────────
	// 2. REDIS (опционально)
	// ─────────────────────────────────────────────────────────────────────────
	cache, err := bootstrap.OpenRedis(cfg.Redis, log, closers)
	if err != nil {
		return err
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 3. BACKEND
	// ─────────────────────────────────────────────────────────────────────────
	backend, err := bootstrap.OpenBackend(ctx, cfg, log, appLog, closers)
	if err != nil {
		return err
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 4. EVENT BUS И ОБРАБОТЧИКИ
	// ─────────────────────────────────────────────────────────────────────────
	bus, err := bootstrap.OpenEventBus(cfg.Events, cache, log, closers)
	if err != nil {
		return err
	}

	dispatcherCfg := messaging.DefaultDispatcherConfig(bus)
	dispatcherCfg.Logger = log
	dispatcher := messaging.NewDispatcher(dispatcherCfg)
	dispatcher.Use(messaging.RecoveryMiddleware(log))
	dispatcher.Use(messaging.LoggingMiddleware(log))

	// Кеш лидербордов живёт только в Redis. Интерфейс остаётся nil, если
	// Redis выключен.
	var leaderboards httpserver.LeaderboardCache
	if cache != nil {
		lbCache := redis.NewLeaderboardCache(cache, cfg.Redis.LeaderboardTTL)
		leaderboards = lbCache
		if err := eventhandler.NewOnLeaderboardChangedHandler(lbCache, log).Register(dispatcher); err != nil {
			return fmt.Errorf("failed to register event handlers: %w", err)
		}
	}

	if err := dispatcher.Start(); err != nil {
		return fmt.Errorf("failed to start dispatcher: %w", err)
	}
	closers.Add("dispatcher", dispatcher.Stop)

	// ─────────────────────────────────────────────────────────────────────────
	// 5. HEALTH CHECKS
	// ─────────────────────────────────────────────────────────────────────────
	health := handlers.NewCompositeHealthChecker(cfg.App.Version)
	if cache != nil {
		health.AddOptionalCheck("redis", handlers.NewPingCheck(cache))
	}
	if backend.Postgres != nil {
		health.AddCheck("postgres", handlers.NewPingCheck(backend.Postgres))
	}
	if backend.Remote != nil {
		health.AddCheck("backend", handlers.NewBackendCheck(backend.Remote))
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 6. HTTP SERVER
	// ─────────────────────────────────────────────────────────────────────────
	serverCfg := httpserver.DefaultConfig()
	serverCfg.Host = cfg.HTTP.Host
	serverCfg.Port = cfg.HTTP.Port
	serverCfg.ReadTimeout = cfg.HTTP.ReadTimeout
	serverCfg.WriteTimeout = cfg.HTTP.WriteTimeout
	serverCfg.IdleTimeout = cfg.HTTP.IdleTimeout
	serverCfg.AllowedOrigins = cfg.HTTP.AllowedOrigins
	serverCfg.RateLimitPerMinute = cfg.HTTP.RateLimitPerMinute
	serverCfg.APIKeys = cfg.HTTP.APIKeys

	server := httpserver.NewServer(serverCfg, httpserver.Dependencies{
		Backend:       backend.DataAccess,
		Leaderboards:  leaderboards,
		UseCache:      cfg.Features.Checker(config.FeatureLeaderboardCache),
		Publisher:     bus,
		HealthChecker: health,
		Logger:        appLog,
		Clock:         timeutil.SystemClock{},
		Version:       cfg.App.Version,
	})

	errCh := server.StartAsync()
	log.Info("LingoFin Hub API is running", "address", server.Address())

	// ─────────────────────────────────────────────────────────────────────────
	// 7. GRACEFUL SHUTDOWN
	// ─────────────────────────────────────────────────────────────────────────
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Info("received shutdown signal", "signal", sig.String())
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server failed: %w", err)
		}
	case <-ctx.Done():
	}

	log.Info("starting graceful shutdown...", "timeout", cfg.App.ShutdownTimeout.String())
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("http server shutdown failed", "error", err)
	}

	log.Info("shutdown completed successfully")
	return nil
}
