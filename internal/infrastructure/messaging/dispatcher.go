package messaging

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/lingofin/lingofin-hub/internal/domain/shared"
	"github.com/lingofin/lingofin-hub/pkg/retry"
)

// ══════════════════════════════════════════════════════════════════════════════
// DISPATCHER
// ══════════════════════════════════════════════════════════════════════════════

type Middleware func(shared.EventHandler) shared.EventHandler

// HandlerRegistration names a handler and bounds its work. Zero MaxRetries
// and Timeout take the dispatcher defaults.
type HandlerRegistration struct {
	Name       string
	Handler    shared.EventHandler
	MaxRetries int
	Timeout    time.Duration
}

type RetryConfig struct {
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	DefaultTimeout time.Duration
}

func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:     2,
		InitialBackoff: 100 * time.Millisecond,
		MaxBackoff:     2 * time.Second,
		DefaultTimeout: 10 * time.Second,
	}
}

type DispatcherConfig struct {
	EventBus    shared.EventBus
	RetryConfig RetryConfig

	// DeadLetterQueueSize of zero disables the queue.
	DeadLetterQueueSize int

	Logger *slog.Logger
}

func DefaultDispatcherConfig(bus shared.EventBus) DispatcherConfig {
	return DispatcherConfig{
		EventBus:            bus,
		RetryConfig:         DefaultRetryConfig(),
		DeadLetterQueueSize: 100,
	}
}

// Dispatcher sits on a bus and fans each event out to the named handlers
// registered for its type. A failing handler is retried with backoff and,
// once out of attempts, parked in the dead letter queue. Panics are never
// retried.
type Dispatcher struct {
	bus    shared.EventBus
	policy RetryConfig
	dlq    *DeadLetterQueue
	log    *slog.Logger

	mu     sync.RWMutex
	routes map[shared.EventType][]HandlerRegistration
	chain  []Middleware

	ctx  context.Context
	stop context.CancelFunc
}

func NewDispatcher(cfg DispatcherConfig) *Dispatcher {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	ctx, stop := context.WithCancel(context.Background())

	d := &Dispatcher{
		bus:    cfg.EventBus,
		policy: cfg.RetryConfig,
		log:    cfg.Logger,
		routes: make(map[shared.EventType][]HandlerRegistration),
		ctx:    ctx,
		stop:   stop,
	}
	if cfg.DeadLetterQueueSize > 0 {
		d.dlq = NewDeadLetterQueue(cfg.DeadLetterQueueSize)
	}
	return d
}

func (d *Dispatcher) RegisterHandler(eventType shared.EventType, reg HandlerRegistration) error {
	switch {
	case reg.Handler == nil:
		return ErrNilHandler
	case reg.Name == "":
		return errors.New("dispatcher: handler name is required")
	}
	if reg.MaxRetries == 0 {
		reg.MaxRetries = d.policy.MaxRetries
	}
	if reg.Timeout == 0 {
		reg.Timeout = d.policy.DefaultTimeout
	}

	d.mu.Lock()
	d.routes[eventType] = append(d.routes[eventType], reg)
	d.mu.Unlock()

	d.log.Debug("handler registered", "event_type", eventType, "handler", reg.Name)
	return nil
}

func (d *Dispatcher) Register(eventType shared.EventType, name string, handler shared.EventHandler) error {
	return d.RegisterHandler(eventType, HandlerRegistration{Name: name, Handler: handler})
}

// Use adds middleware. The first one added is the outermost.
func (d *Dispatcher) Use(mw Middleware) {
	d.mu.Lock()
	d.chain = append(d.chain, mw)
	d.mu.Unlock()
}

// Start subscribes to every event on the bus.
func (d *Dispatcher) Start() error {
	return d.bus.SubscribeAll(d.Dispatch)
}

// Stop cancels retries still waiting on backoff.
func (d *Dispatcher) Stop() error {
	d.stop()
	d.log.Info("dispatcher stopped")
	return nil
}

// DeadLetterQueue is nil when the queue is disabled.
func (d *Dispatcher) DeadLetterQueue() *DeadLetterQueue { return d.dlq }

// Dispatch runs the handlers for the event one after another and joins the
// errors of those that gave up.
func (d *Dispatcher) Dispatch(event shared.Event) error {
	d.mu.RLock()
	regs := d.routes[event.EventType()]
	chain := d.chain
	d.mu.RUnlock()

	var errs []error
	for _, reg := range regs {
		h := reg.Handler
		for i := len(chain) - 1; i >= 0; i-- {
			h = chain[i](h)
		}
		if err := d.deliver(event, reg, h); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (d *Dispatcher) deliver(event shared.Event, reg HandlerRegistration, h shared.EventHandler) error {
	r := retry.New(
		retry.WithMaxAttempts(reg.MaxRetries+1),
		retry.WithInitialDelay(d.policy.InitialBackoff),
		retry.WithMaxDelay(d.policy.MaxBackoff),
		retry.WithRetryIf(func(err error) bool { return !errors.Is(err, ErrHandlerPanic) }),
		retry.WithOnRetry(func(attempt int, err error, wait time.Duration) {
			d.log.Debug("handler retry", "handler", reg.Name, "attempt", attempt, "backoff", wait, "error", err)
		}),
	)

	err := r.Do(d.ctx, func(ctx context.Context) error {
		return callWithin(ctx, reg.Timeout, h, event)
	})
	if err == nil {
		return nil
	}

	if d.dlq != nil {
		d.dlq.Add(DeadLetterEntry{Event: event, HandlerName: reg.Name, Error: err, FailedAt: time.Now()})
	}
	return fmt.Errorf("handler %s: %w", reg.Name, err)
}

// callWithin stops waiting for h after timeout. The handler goroutine is
// left to finish on its own.
func callWithin(ctx context.Context, timeout time.Duration, h shared.EventHandler, event shared.Event) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- h(event) }()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return fmt.Errorf("handler timed out after %v", timeout)
		}
		return ctx.Err()
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// MIDDLEWARE
// ══════════════════════════════════════════════════════════════════════════════

// RecoveryMiddleware reports a panic as ErrHandlerPanic with the stack
// logged.
func RecoveryMiddleware(log *slog.Logger) Middleware {
	return func(next shared.EventHandler) shared.EventHandler {
		return func(event shared.Event) (err error) {
			defer func() {
				r := recover()
				if r == nil {
					return
				}
				log.Error("event handler panic", "event_type", event.EventType(), "panic", r, "stack", string(debug.Stack()))
				err = fmt.Errorf("%w: %v", ErrHandlerPanic, r)
			}()
			return next(event)
		}
	}
}

func LoggingMiddleware(log *slog.Logger) Middleware {
	return func(next shared.EventHandler) shared.EventHandler {
		return func(event shared.Event) error {
			began := time.Now()
			err := next(event)

			l := log.With("event_type", event.EventType(), "aggregate_id", event.AggregateID(), "duration", time.Since(began))
			if err != nil {
				l.Warn("event handler failed", "error", err)
			} else {
				l.Debug("event handled")
			}
			return err
		}
	}
}
