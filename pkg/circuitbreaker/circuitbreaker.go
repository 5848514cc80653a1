// Package circuitbreaker stops calling a failing backend for a cool-down
// period, then lets a few probe requests through before closing again.
package circuitbreaker

import (
	"context"
	"errors"
	"sync"
	"time"
)

type State uint8

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

var stateNames = [...]string{"closed", "open", "half-open"}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return "unknown"
}

var (
	ErrCircuitOpen     = errors.New("circuit breaker is open")
	ErrTooManyRequests = errors.New("circuit breaker: half-open probe limit reached")
)

// Settings tune a breaker. New starts from defaults and applies options.
type Settings struct {
	Name string

	// TripAfter consecutive failures open a closed circuit.
	TripAfter int
	// CloseAfter consecutive half-open successes close it again.
	CloseAfter int
	// Cooldown is how long an open circuit rejects before probing.
	Cooldown time.Duration
	// Probes bounds concurrent calls while half-open.
	Probes int

	OnStateChange func(name string, from, to State)
	// IsFailure picks the errors that count. Nil counts all of them.
	IsFailure func(error) bool
	Now       func() time.Time
}

type Option func(*Settings)

func positive[T int | time.Duration](dst *T, v T) {
	if v > 0 {
		*dst = v
	}
}

func WithFailureThreshold(n int) Option {
	return func(s *Settings) { positive(&s.TripAfter, n) }
}

func WithSuccessThreshold(n int) Option {
	return func(s *Settings) { positive(&s.CloseAfter, n) }
}

func WithOpenTimeout(d time.Duration) Option {
	return func(s *Settings) { positive(&s.Cooldown, d) }
}

func WithMaxHalfOpenRequests(n int) Option {
	return func(s *Settings) { positive(&s.Probes, n) }
}

func WithOnStateChange(fn func(name string, from, to State)) Option {
	return func(s *Settings) { s.OnStateChange = fn }
}

func WithIsFailure(fn func(error) bool) Option {
	return func(s *Settings) { s.IsFailure = fn }
}

func WithClock(now func() time.Time) Option {
	return func(s *Settings) {
		if now != nil {
			s.Now = now
		}
	}
}

// Counts are totals since creation or the last Reset.
type Counts struct {
	Calls          int
	TotalSuccesses int
	TotalFailures  int
	Rejected       int

	// Streak is the run of equal outcomes in the current state: positive
	// for successes, negative for failures.
	Streak int
}

func (c *Counts) observe(ok bool) {
	c.Calls++
	if ok {
		c.TotalSuccesses++
		c.Streak = max(c.Streak, 0) + 1
		return
	}
	c.TotalFailures++
	c.Streak = min(c.Streak, 0) - 1
}

type CircuitBreaker struct {
	set Settings

	mu      sync.Mutex
	state   State
	counts  Counts
	until   time.Time // open circuits reject until then
	probing int
}

func New(name string, opts ...Option) *CircuitBreaker {
	set := Settings{
		Name:       name,
		TripAfter:  5,
		CloseAfter: 2,
		Cooldown:   30 * time.Second,
		Probes:     1,
		Now:        time.Now,
	}
	for _, opt := range opts {
		opt(&set)
	}
	return &CircuitBreaker{set: set}
}

func (cb *CircuitBreaker) Name() string { return cb.set.Name }

// Execute runs fn when the circuit admits it and records the outcome.
// Rejections return ErrCircuitOpen or ErrTooManyRequests without calling fn.
func (cb *CircuitBreaker) Execute(ctx context.Context, fn func(context.Context) error) error {
	if err := cb.before(); err != nil {
		return err
	}
	err := fn(ctx)
	cb.after(err)
	return err
}

// Call is Execute for functions returning a value.
func Call[T any](ctx context.Context, cb *CircuitBreaker, fn func(context.Context) (T, error)) (T, error) {
	var out T
	err := cb.Execute(ctx, func(ctx context.Context) (err error) {
		out, err = fn(ctx)
		return err
	})
	return out, err
}

// IsRejection reports whether err came from the breaker rather than fn.
func IsRejection(err error) bool {
	return errors.Is(err, ErrCircuitOpen) || errors.Is(err, ErrTooManyRequests)
}

func (cb *CircuitBreaker) before() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == StateOpen {
		if cb.set.Now().Before(cb.until) {
			cb.counts.Rejected++
			return ErrCircuitOpen
		}
		cb.moveTo(StateHalfOpen)
	}
	if cb.state == StateHalfOpen {
		if cb.probing >= cb.set.Probes {
			cb.counts.Rejected++
			return ErrTooManyRequests
		}
		cb.probing++
	}
	return nil
}

func (cb *CircuitBreaker) after(err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	ok := err == nil || (cb.set.IsFailure != nil && !cb.set.IsFailure(err))
	cb.counts.observe(ok)

	switch cb.state {
	case StateHalfOpen:
		cb.probing = max(cb.probing-1, 0)
		switch {
		case !ok:
			cb.open()
		case cb.counts.Streak >= cb.set.CloseAfter:
			cb.moveTo(StateClosed)
		}
	case StateClosed:
		if -cb.counts.Streak >= cb.set.TripAfter {
			cb.open()
		}
	}
}

func (cb *CircuitBreaker) open() {
	cb.until = cb.set.Now().Add(cb.set.Cooldown)
	cb.moveTo(StateOpen)
}

// moveTo starts a fresh streak in the new state.
func (cb *CircuitBreaker) moveTo(to State) {
	from := cb.state
	if from == to {
		return
	}
	cb.state, cb.counts.Streak, cb.probing = to, 0, 0
	if cb.set.OnStateChange != nil {
		cb.set.OnStateChange(cb.set.Name, from, to)
	}
}

func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

func (cb *CircuitBreaker) Counts() Counts {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.counts
}

// Reset closes the circuit and zeroes the counts without notifying.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.state, cb.counts, cb.probing, cb.until = StateClosed, Counts{}, 0, time.Time{}
}

// DataAccessBreaker guards the remote data-access backend.
func DataAccessBreaker(isFailure func(error) bool, onStateChange func(name string, from, to State)) *CircuitBreaker {
	return New("data-access",
		WithFailureThreshold(5),
		WithSuccessThreshold(2),
		WithOpenTimeout(20*time.Second),
		WithIsFailure(isFailure),
		WithOnStateChange(onStateChange),
	)
}
