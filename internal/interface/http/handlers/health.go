package handlers

import (
	"context"
	"errors"
	"slices"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// ══════════════════════════════════════════════════════════════════════════════
// PROBES
// ══════════════════════════════════════════════════════════════════════════════

// HealthChecker is what the /health and /ready routes need.
type HealthChecker interface {
	Check(ctx context.Context) HealthStatus
}

// HealthCheckFunc returns nil when the dependency answers.
type HealthCheckFunc func(ctx context.Context) error

// Overall states reported in HealthStatus.State.
const (
	StateOK       = "ok"
	StateDegraded = "degraded"
	StateDown     = "down"
)

// HealthStatus is the body of /health.
//
// A failing optional probe (the leaderboard cache) degrades the service but
// keeps it ready; a failing required probe (the backend store) takes it down.
type HealthStatus struct {
	State     string                 `json:"state"`
	Healthy   bool                   `json:"healthy"`
	Ready     bool                   `json:"ready"`
	Message   string                 `json:"message,omitempty"`
	Probes    map[string]ProbeResult `json:"probes,omitempty"`
	Uptime    string                 `json:"uptime,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	Version   string                 `json:"version,omitempty"`
}

type ProbeResult struct {
	OK       bool   `json:"ok"`
	Optional bool   `json:"optional,omitempty"`
	Error    string `json:"error,omitempty"`
	Latency  string `json:"latency"`
}

type probe struct {
	check    HealthCheckFunc
	optional bool
}

// ══════════════════════════════════════════════════════════════════════════════
// COMPOSITE HEALTH CHECKER
// ══════════════════════════════════════════════════════════════════════════════

// CompositeHealthChecker runs its probes in parallel, each under its own
// timeout.
type CompositeHealthChecker struct {
	mu        sync.RWMutex
	probes    map[string]probe
	startedAt time.Time
	version   string
	timeout   time.Duration
}

func NewCompositeHealthChecker(version string) *CompositeHealthChecker {
	return &CompositeHealthChecker{
		probes:    make(map[string]probe),
		startedAt: time.Now(),
		version:   version,
		timeout:   3 * time.Second,
	}
}

func (c *CompositeHealthChecker) SetTimeout(timeout time.Duration) {
	c.mu.Lock()
	c.timeout = timeout
	c.mu.Unlock()
}

// AddCheck registers a required probe.
func (c *CompositeHealthChecker) AddCheck(name string, check HealthCheckFunc) {
	c.add(name, probe{check: check})
}

// AddOptionalCheck registers a probe whose failure only degrades the service.
func (c *CompositeHealthChecker) AddOptionalCheck(name string, check HealthCheckFunc) {
	c.add(name, probe{check: check, optional: true})
}

func (c *CompositeHealthChecker) add(name string, p probe) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.probes[name] = p
}

// Check runs every probe and folds the results into one status.
func (c *CompositeHealthChecker) Check(ctx context.Context) HealthStatus {
	c.mu.RLock()
	probes := make(map[string]probe, len(c.probes))
	for name, p := range c.probes {
		probes[name] = p
	}
	timeout := c.timeout
	c.mu.RUnlock()

	var (
		mu      sync.Mutex
		results = make(map[string]ProbeResult, len(probes))
		g       errgroup.Group
	)
	for name, p := range probes {
		g.Go(func() error {
			res := runProbe(ctx, p, timeout)
			mu.Lock()
			results[name] = res
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	return c.fold(results)
}

func runProbe(ctx context.Context, p probe, timeout time.Duration) ProbeResult {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	err := p.check(ctx)
	res := ProbeResult{
		OK:       err == nil,
		Optional: p.optional,
		Latency:  time.Since(start).Round(time.Millisecond).String(),
	}
	if err != nil {
		res.Error = err.Error()
	}
	return res
}

func (c *CompositeHealthChecker) fold(results map[string]ProbeResult) HealthStatus {
	status := HealthStatus{
		State:     StateOK,
		Healthy:   true,
		Ready:     true,
		Probes:    results,
		Uptime:    time.Since(c.startedAt).Round(time.Second).String(),
		Timestamp: time.Now().UTC(),
		Version:   c.version,
	}

	var down, degraded []string
	for name, r := range results {
		switch {
		case r.OK:
		case r.Optional:
			degraded = append(degraded, name)
		default:
			down = append(down, name)
		}
	}
	slices.Sort(down)
	slices.Sort(degraded)

	switch {
	case len(down) > 0:
		status.State = StateDown
		status.Healthy = false
		status.Ready = false
		status.Message = "unavailable: " + strings.Join(down, ", ")
	case len(degraded) > 0:
		status.State = StateDegraded
		status.Message = "degraded: " + strings.Join(degraded, ", ")
	}
	return status
}

// ══════════════════════════════════════════════════════════════════════════════
// PREDEFINED PROBES
// ══════════════════════════════════════════════════════════════════════════════

// Pinger is satisfied by the postgres connection and the Redis cache.
type Pinger interface {
	Ping(ctx context.Context) error
}

func NewPingCheck(p Pinger) HealthCheckFunc {
	return p.Ping
}

// BackendProber reports whether a remote data-access API answers.
type BackendProber interface {
	IsHealthy(ctx context.Context) bool
}

func NewBackendCheck(b BackendProber) HealthCheckFunc {
	return func(ctx context.Context) error {
		if !b.IsHealthy(ctx) {
			return errors.New("backend API is not reachable")
		}
		return nil
	}
}
