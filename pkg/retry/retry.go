// Package retry runs an operation again with exponential backoff and jitter
// until it succeeds, the error is classified as final, attempts run out, or
// the context ends.
package retry

import (
	"context"
	"errors"
	"math"
	"math/rand/v2"
	"time"
)

// verdict is attached to an error by Retryable or Permanent.
type verdict struct {
	err   error
	final bool
}

func (v *verdict) Error() string { return v.err.Error() }
func (v *verdict) Unwrap() error { return v.err }

func mark(err error, final bool) error {
	if err == nil {
		return nil
	}
	return &verdict{err: err, final: final}
}

func verdictOf(err error) (*verdict, bool) {
	var v *verdict
	ok := errors.As(err, &v)
	return v, ok
}

// Retryable marks err as worth another attempt.
func Retryable(err error) error { return mark(err, false) }

// Permanent stops the loop at once. Do returns the unmarked error.
func Permanent(err error) error { return mark(err, true) }

func IsRetryable(err error) bool {
	v, ok := verdictOf(err)
	return ok && !v.final
}

func IsPermanent(err error) bool {
	v, ok := verdictOf(err)
	return ok && v.final
}

func strip(err error) error {
	if v, ok := verdictOf(err); ok {
		return v.err
	}
	return err
}

type Config struct {
	// MaxAttempts includes the first call.
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
	// JitterFactor in [0, 1] moves each delay by up to that fraction either way.
	JitterFactor float64
	// RetryIf classifies unmarked errors. When nil only Retryable errors
	// are retried.
	RetryIf func(error) bool
	OnRetry func(attempt int, err error, delay time.Duration)
	Sleep   func(ctx context.Context, d time.Duration) error
}

func DefaultConfig() Config {
	return Config{
		MaxAttempts:  3,
		InitialDelay: 100 * time.Millisecond,
		MaxDelay:     10 * time.Second,
		Multiplier:   2,
		JitterFactor: 0.1,
		Sleep:        sleep,
	}
}

type Option func(*Config)

func WithMaxAttempts(n int) Option {
	return func(c *Config) {
		if n > 0 {
			c.MaxAttempts = n
		}
	}
}

// WithInitialDelay accepts zero for back-to-back attempts.
func WithInitialDelay(d time.Duration) Option {
	return func(c *Config) {
		if d >= 0 {
			c.InitialDelay = d
		}
	}
}

func WithMaxDelay(d time.Duration) Option {
	return func(c *Config) {
		if d > 0 {
			c.MaxDelay = d
		}
	}
}

func WithMultiplier(m float64) Option {
	return func(c *Config) {
		if m >= 1 {
			c.Multiplier = m
		}
	}
}

func WithJitter(j float64) Option {
	return func(c *Config) {
		if 0 <= j && j <= 1 {
			c.JitterFactor = j
		}
	}
}

func WithRetryIf(fn func(error) bool) Option {
	return func(c *Config) { c.RetryIf = fn }
}

func WithOnRetry(fn func(attempt int, err error, delay time.Duration)) Option {
	return func(c *Config) { c.OnRetry = fn }
}

// WithSleep replaces the wait between attempts, mostly for tests.
func WithSleep(fn func(ctx context.Context, d time.Duration) error) Option {
	return func(c *Config) {
		if fn != nil {
			c.Sleep = fn
		}
	}
}

// Retrier holds configuration only and is safe to share.
type Retrier struct {
	cfg Config
}

func New(opts ...Option) *Retrier {
	cfg := DefaultConfig()
	for _, o := range opts {
		o(&cfg)
	}
	return &Retrier{cfg: cfg}
}

func (r *Retrier) Config() Config { return r.cfg }

// Do calls op until it succeeds or another attempt is pointless. The error
// returned never carries a Retryable or Permanent mark.
func (r *Retrier) Do(ctx context.Context, op func(ctx context.Context) error) error {
	var last error
	for attempt := 1; ; attempt++ {
		if ctx.Err() != nil {
			if last == nil {
				last = ctx.Err()
			}
			return last
		}

		err := op(ctx)
		if err == nil {
			return nil
		}
		last = strip(err)
		if attempt >= r.cfg.MaxAttempts || !r.retriable(err) {
			return last
		}

		wait := r.delay(attempt)
		if r.cfg.OnRetry != nil {
			r.cfg.OnRetry(attempt, last, wait)
		}
		if r.cfg.Sleep(ctx, wait) != nil {
			return last
		}
	}
}

func (r *Retrier) retriable(err error) bool {
	if v, ok := verdictOf(err); ok {
		return !v.final
	}
	return r.cfg.RetryIf != nil && r.cfg.RetryIf(err)
}

// delay is InitialDelay * Multiplier^(attempt-1), capped, then jittered.
func (r *Retrier) delay(attempt int) time.Duration {
	base := float64(r.cfg.InitialDelay) * math.Pow(r.cfg.Multiplier, float64(attempt-1))
	base = math.Min(base, float64(r.cfg.MaxDelay))
	if j := r.cfg.JitterFactor; j > 0 {
		base *= 1 + j*(2*rand.Float64()-1)
	}
	return time.Duration(math.Max(base, 0))
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func Do(ctx context.Context, op func(ctx context.Context) error, opts ...Option) error {
	return New(opts...).Do(ctx, op)
}

// DoValue is Do for operations that produce a value.
func DoValue[T any](ctx context.Context, r *Retrier, op func(ctx context.Context) (T, error)) (T, error) {
	var out T
	err := r.Do(ctx, func(ctx context.Context) error {
		v, err := op(ctx)
		if err != nil {
			return err
		}
		out = v
		return nil
	})
	return out, err
}

// DataAccessRetrier is tuned for port calls made while a user waits.
func DataAccessRetrier(retryIf func(error) bool) *Retrier {
	return New(
		WithMaxAttempts(3),
		WithInitialDelay(200*time.Millisecond),
		WithMaxDelay(2*time.Second),
		WithJitter(0.2),
		WithRetryIf(retryIf),
	)
}
