// Package http serves the data-access port as a REST API. The routes mirror
// what the httpclient backend calls, so a LingoFin client can run against
// this server with any other backend behind it.
package http

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/gorilla/mux"

	"github.com/lingofin/lingofin-hub/internal/application/app"
	"github.com/lingofin/lingofin-hub/internal/domain/challenge"
	"github.com/lingofin/lingofin-hub/internal/domain/shared"
	"github.com/lingofin/lingofin-hub/internal/interface/http/handlers"
	"github.com/lingofin/lingofin-hub/pkg/logger"
	"github.com/lingofin/lingofin-hub/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// CONFIG
// ══════════════════════════════════════════════════════════════════════════════

type Config struct {
	Host string
	Port int

	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	MaxHeaderBytes int
	MaxBodyBytes   int64

	AllowedOrigins []string

	// RateLimitPerMinute is per client IP. Zero disables limiting.
	RateLimitPerMinute int

	APIKeyHeader string
	// APIKeys guard /api/v1. Empty leaves it open.
	APIKeys []string
}

func DefaultConfig() Config {
	return Config{
		Host:               "0.0.0.0",
		Port:               8080,
		ReadTimeout:        15 * time.Second,
		WriteTimeout:       15 * time.Second,
		IdleTimeout:        time.Minute,
		MaxHeaderBytes:     1 << 20,
		MaxBodyBytes:       1 << 20,
		AllowedOrigins:     []string{"*"},
		RateLimitPerMinute: 100,
		APIKeyHeader:       "X-API-Key",
	}
}

func (c Config) Address() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// ══════════════════════════════════════════════════════════════════════════════
// DEPENDENCIES
// ══════════════════════════════════════════════════════════════════════════════

// LeaderboardCache holds ranked leaderboards between backend reads.
type LeaderboardCache interface {
	Get(ctx context.Context, challengeID string) ([]challenge.LeaderboardEntry, error)
	Store(ctx context.Context, challengeID string, entries []challenge.LeaderboardEntry, now time.Time) error
}

type Dependencies struct {
	Backend app.DataAccess

	// Leaderboards is optional; UseCache is asked on every request.
	Leaderboards LeaderboardCache
	UseCache     func() bool

	// Publisher gets one event per successful write.
	Publisher shared.EventPublisher

	HealthChecker handlers.HealthChecker
	Logger        *logger.Logger
	Clock         timeutil.Clock
	Version       string
}

func (d *Dependencies) applyDefaults() {
	if d.Publisher == nil {
		d.Publisher = shared.NopPublisher{}
	}
	if d.UseCache == nil {
		d.UseCache = func() bool { return true }
	}
	if d.Version == "" {
		d.Version = "dev"
	}
	if d.Logger == nil {
		d.Logger = logger.Default()
	}
	d.Clock = timeutil.OrSystem(d.Clock)
}

// ══════════════════════════════════════════════════════════════════════════════
// SERVER
// ══════════════════════════════════════════════════════════════════════════════

type Server struct {
	config  Config
	deps    Dependencies
	logger  *logger.Logger
	clock   timeutil.Clock
	limiter *ipLimiter

	handler http.Handler
	srv     *http.Server

	// startedAt is unix nanos while serving, zero otherwise.
	startedAt atomic.Int64
}

func NewServer(cfg Config, deps Dependencies) *Server {
	deps.applyDefaults()

	s := &Server{
		config: cfg,
		deps:   deps,
		logger: deps.Logger.With(logger.Component("http")),
		clock:  deps.Clock,
	}
	if cfg.RateLimitPerMinute > 0 {
		s.limiter = newIPLimiter(cfg.RateLimitPerMinute)
	}

	router := mux.NewRouter()
	s.routes(router)
	s.handler = s.wrap(router)

	s.srv = &http.Server{
		Addr:           cfg.Address(),
		Handler:        s.handler,
		ReadTimeout:    cfg.ReadTimeout,
		WriteTimeout:   cfg.WriteTimeout,
		IdleTimeout:    cfg.IdleTimeout,
		MaxHeaderBytes: cfg.MaxHeaderBytes,
	}
	return s
}

// Handler is the router with the whole middleware chain applied.
func (s *Server) Handler() http.Handler { return s.handler }

func (s *Server) Address() string { return s.config.Address() }

// Start blocks until the server is shut down.
func (s *Server) Start() error {
	if !s.startedAt.CompareAndSwap(0, time.Now().UnixNano()) {
		return errors.New("http server already running")
	}
	s.logger.Info("http server listening", logger.String("address", s.Address()))

	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		s.startedAt.Store(0)
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// StartAsync runs Start in a goroutine. The channel yields at most one
// error and is then closed.
func (s *Server) StartAsync() <-chan error {
	errCh := make(chan error, 1)
	go func() {
		defer close(errCh)
		if err := s.Start(); err != nil {
			errCh <- err
		}
	}()
	return errCh
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.limiter != nil {
		s.limiter.stop()
	}
	if s.startedAt.Swap(0) == 0 {
		return nil
	}
	s.logger.Info("http server shutting down")
	return s.srv.Shutdown(ctx)
}

func (s *Server) IsRunning() bool { return s.startedAt.Load() != 0 }

func (s *Server) Uptime() time.Duration {
	started := s.startedAt.Load()
	if started == 0 {
		return 0
	}
	return time.Since(time.Unix(0, started))
}
