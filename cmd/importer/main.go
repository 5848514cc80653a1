// Package main - импорт каталога курсов из Excel-книги в PostgreSQL.
//
// Книга содержит два листа: курсы и уроки. Пример:
//
//	importer -file catalog.xlsx
//	importer -file catalog.xlsx -dry-run
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/lingofin/lingofin-hub/config"
	"github.com/lingofin/lingofin-hub/internal/bootstrap"
	"github.com/lingofin/lingofin-hub/internal/domain/course"
	"github.com/lingofin/lingofin-hub/internal/infrastructure/catalog"
	"github.com/lingofin/lingofin-hub/internal/infrastructure/persistence/postgres"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "import failed: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	fs := flag.NewFlagSet("importer", flag.ContinueOnError)
	path := fs.String("file", "", "path to the .xlsx catalog")
	dryRun := fs.Bool("dry-run", cfg.Importer.DryRun, "parse and validate without writing")
	coursesSheet := fs.String("courses-sheet", cfg.Importer.CoursesSheet, "sheet with course rows")
	lessonsSheet := fs.String("lessons-sheet", cfg.Importer.LessonsSheet, "sheet with lesson rows")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *path == "" {
		fs.Usage()
		return errors.New("-file is required")
	}

	log := bootstrap.NewSlog(cfg)
	closers := &bootstrap.Closers{}
	defer func() {
		if err := closers.Close(); err != nil {
			log.Error("cleanup failed", "error", err)
		}
	}()

	// В режиме dry-run база не нужна.
	var store catalog.CourseStore = discardStore{}
	if !*dryRun {
		conn, err := bootstrap.OpenPostgres(ctx, cfg.Database, log, closers)
		if err != nil {
			return err
		}
		store = postgres.NewBackend(conn, postgres.BackendOptions{Logger: bootstrap.NewLogger(cfg)}).Courses()
	}

	cache, err := bootstrap.OpenRedis(cfg.Redis, log, closers)
	if err != nil {
		return err
	}
	bus, err := bootstrap.OpenEventBus(cfg.Events, cache, log, closers)
	if err != nil {
		return err
	}

	importer := catalog.NewImporter(store, catalog.ImportConfig{
		CoursesSheet: *coursesSheet,
		LessonsSheet: *lessonsSheet,
		DryRun:       *dryRun,
	}, catalog.Options{
		Publisher: bus,
		Logger:    bootstrap.NewLogger(cfg),
	})

	result, err := importer.ImportFile(ctx, *path)
	if err != nil {
		return err
	}

	fmt.Printf("processed: %d\ncreated:   %d\nupdated:   %d\nskipped:   %d\n",
		result.TotalProcessed, result.Created, result.Updated, result.Skipped)
	for _, e := range result.Errors {
		fmt.Printf("  - %s\n", e)
	}
	if *dryRun {
		fmt.Println("dry run, nothing written")
	}
	return nil
}

type discardStore struct{}

func (discardStore) Upsert(context.Context, course.Course) (bool, error) { return true, nil }
