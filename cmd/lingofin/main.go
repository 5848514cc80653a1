// Package main - консольный клиент LingoFin Hub.
//
// Клиент работает поверх того же backend, что и API, и хранит сессию в
// выбранном хранилище (memory, sqlite, redis):
//
//	lingofin signin -email demo@lingofin.app -password demo123
//	lingofin dashboard
//	lingofin join challenge-spanish-quiz
//	lingofin signout
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/lingofin/lingofin-hub/config"
	"github.com/lingofin/lingofin-hub/internal/application/app"
	"github.com/lingofin/lingofin-hub/internal/bootstrap"
	"github.com/lingofin/lingofin-hub/internal/domain/shared"
)

const usage = `usage: lingofin <command> [flags]

commands:
  signin     -email -password
  signout
  dashboard  progress, courses, challenges and the feed
  join       <challenge-id>
  leaderboard <challenge-id>`

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "lingofin: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, out io.Writer) error {
	if len(args) == 0 {
		fmt.Fprintln(out, usage)
		return nil
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log := bootstrap.NewSlog(cfg)
	appLog := bootstrap.NewLogger(cfg)
	closers := &bootstrap.Closers{}
	defer func() {
		if err := closers.Close(); err != nil {
			log.Error("cleanup failed", "error", err)
		}
	}()

	cache, err := bootstrap.OpenRedis(cfg.Redis, log, closers)
	if err != nil {
		return err
	}
	store, err := bootstrap.OpenSessionStore(cfg.Session, cache, closers)
	if err != nil {
		return err
	}
	backend, err := bootstrap.OpenBackend(ctx, cfg, log, appLog, closers)
	if err != nil {
		return err
	}
	bus, err := bootstrap.OpenEventBus(cfg.Events, cache, log, closers)
	if err != nil {
		return err
	}

	a := app.New(backend.DataAccess, store, app.Options{
		Publisher:    bus,
		Logger:       appLog,
		LiveActivity: cfg.Features.Checker(config.FeatureChallengeLiveActivity),
	})
	if err := a.Start(ctx); err != nil {
		return err
	}

	switch cmd, rest := args[0], args[1:]; cmd {
	case "signin":
		return signIn(ctx, a, rest, out)
	case "signout":
		if err := a.SignOut(ctx); err != nil {
			return err
		}
		fmt.Fprintln(out, "signed out")
		return nil
	case "dashboard":
		return dashboard(a, out)
	case "join":
		if len(rest) != 1 {
			return errors.New("join needs a challenge id")
		}
		return join(ctx, a, rest[0], out)
	case "leaderboard":
		if len(rest) != 1 {
			return errors.New("leaderboard needs a challenge id")
		}
		return leaderboard(ctx, a, rest[0], out)
	default:
		return fmt.Errorf("unknown command %q\n%s", cmd, usage)
	}
}

func signIn(ctx context.Context, a *app.App, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("signin", flag.ContinueOnError)
	email := fs.String("email", "", "account email")
	password := fs.String("password", "", "account password")
	if err := fs.Parse(args); err != nil {
		return err
	}

	u, err := a.SignIn(ctx, *email, *password)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "welcome back, %s (level %d)\n", u.Name, u.Progress.Level)
	return nil
}

func dashboard(a *app.App, out io.Writer) error {
	u := a.Session.CurrentUser()
	if u == nil {
		return shared.ErrNoSession
	}

	p := u.Progress
	fmt.Fprintf(out, "%s · level %d · %d XP · streak %d (best %d)\n\n",
		u.Name, p.Level, p.ExperiencePoints, p.CurrentStreak, p.LongestStreak)

	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)

	fmt.Fprintln(w, "COURSE\tLANGUAGE\tDIFFICULTY\tDONE")
	for _, c := range a.Progression.EnrolledCourses(u.ID) {
		fmt.Fprintf(w, "%s\t%s\t%s\t%.0f%%\n", c.Title, c.Language, c.Difficulty, 100*a.Progression.CompletionPercentage(c.ID))
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "CHALLENGE\tID\tPARTICIPANTS\t")
	for _, c := range a.Challenges.ActiveChallenges() {
		fmt.Fprintf(w, "%s\t%s\t%d\t\n", c.Title, c.ID, len(c.Participants))
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "FEED\tTYPE\tLIKES\t")
	for _, post := range a.Community.Posts() {
		fmt.Fprintf(w, "%s\t%s\t%d\t\n", post.AuthorName, post.Type, len(post.Likes))
	}
	return w.Flush()
}

func join(ctx context.Context, a *app.App, challengeID string, out io.Writer) error {
	u := a.Session.CurrentUser()
	if u == nil {
		return shared.ErrNoSession
	}
	if err := a.Challenges.JoinChallenge(ctx, challengeID, u.ID); err != nil {
		return err
	}
	fmt.Fprintf(out, "joined %s\n", challengeID)
	return nil
}

func leaderboard(ctx context.Context, a *app.App, challengeID string, out io.Writer) error {
	if err := a.Challenges.LoadLeaderboard(ctx, challengeID); err != nil {
		return err
	}

	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "#\tNAME\tSCORE")
	for _, e := range a.Challenges.Leaderboard(challengeID) {
		fmt.Fprintf(w, "%d\t%s\t%d\n", e.Rank, e.UserName, e.Score)
	}
	return w.Flush()
}
