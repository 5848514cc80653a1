// Package main - точка входа для фоновых процессов (Worker) LingoFin Hub.
//
// Worker отвечает за периодические задачи:
// - Пересчёт лидербордов челленджей и запись их в кеш
// - Отчёт по активности челленджей
//
// События пересчёта публикуются в шину. При транспорте redis их получают
// все экземпляры API.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/lingofin/lingofin-hub/config"
	"github.com/lingofin/lingofin-hub/internal/bootstrap"
	"github.com/lingofin/lingofin-hub/internal/infrastructure/persistence/redis"
	"github.com/lingofin/lingofin-hub/internal/infrastructure/scheduler"
	"github.com/lingofin/lingofin-hub/internal/infrastructure/scheduler/jobs"
	"github.com/lingofin/lingofin-hub/pkg/timeutil"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	defer stop()

	if err := run(ctx); err != nil {
		stop()
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
	log.Info("starting LingoFin Hub Worker",
		"env", cfg.App.Environment,
		"timezone", cfg.App.Timezone,
		"backend", cfg.Backend.Kind,
	)

	if !cfg.Scheduler.Enabled {
		log.Info("scheduler disabled, nothing to do")
		return nil
	}

	closers := &bootstrap.Closers{}
	defer func() {
		log.Info("releasing resources...")
		if err := closers.Close(); err != nil {
			log.Error("cleanup failed", "error", err)
		}
	}()

	// ─────────────────────────────────────────────────────────────────────────
	// 2. ИНФРАСТРУКТУРА
	// ─────────────────────────────────────────────────────────────────────────
	cache, err := bootstrap.OpenRedis(cfg.Redis, log, closers)
	if err != nil {
		return err
	}

	backend, err := bootstrap.OpenBackend(ctx, cfg, log, bootstrap.NewLogger(cfg), closers)
	if err != nil {
		return err
	}

	bus, err := bootstrap.OpenEventBus(cfg.Events, cache, log, closers)
	if err != nil {
		return err
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 3. ПЛАНИРОВЩИК
	// ─────────────────────────────────────────────────────────────────────────
	sched := scheduler.NewScheduler(scheduler.SchedulerConfig{
		Logger:         log,
		Timezone:       cfg.App.Location,
		RunOnStart:     cfg.Scheduler.RunOnStart,
		MaxHistorySize: 100,
	})
	clock := timeutil.SystemClock{}

	// Без Redis пересчитанные лидерборды некуда писать.
	if cache != nil {
		rebuild := jobs.NewRebuildLeaderboardsJob(
			backend.DataAccess,
			redis.NewLeaderboardCache(cache, cfg.Redis.LeaderboardTTL),
			bus,
			clock,
			log,
			cfg.Scheduler.JobTimeout,
		)
		if err := sched.Register(rebuild, cfg.Scheduler.RebuildLeaderboardInterval); err != nil {
			return fmt.Errorf("failed to register %s: %w", rebuild.Name(), err)
		}
	} else {
		log.Warn("redis disabled, leaderboard rebuild job skipped")
	}

	if cfg.Features.Checker(config.FeatureWorkerActivityReport)() {
		activity := jobs.NewRefreshChallengeActivityJob(backend.DataAccess, clock, log)
		if err := sched.Register(activity, cfg.Scheduler.ActivityCheckInterval); err != nil {
			return fmt.Errorf("failed to register %s: %w", activity.Name(), err)
		}
	}

	if err := sched.Start(); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}
	closers.Add("scheduler", sched.Stop)

	for _, job := range sched.ListJobs() {
		log.Info("job scheduled", "job", job.Name, "interval", job.Interval.String())
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 4. GRACEFUL SHUTDOWN
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("LingoFin Hub Worker is running")

	<-ctx.Done()
	log.Info("shutdown signal received, stopping")
	return nil
}
