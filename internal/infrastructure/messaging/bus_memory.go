// Package messaging carries domain events between the parts of LingoFin Hub:
// an in-process bus, a Redis Pub/Sub bus that spans the API, worker and
// importer processes, and a dispatcher that adds retries on top of either.
package messaging

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/lingofin/lingofin-hub/internal/domain/shared"
)

var (
	ErrEventBusClosed = errors.New("event bus is closed")
	ErrHandlerPanic   = errors.New("handler panicked")
	ErrNilHandler     = errors.New("handler cannot be nil")
	ErrNilEvent       = errors.New("event cannot be nil")
)

// ══════════════════════════════════════════════════════════════════════════════
// IN-MEMORY EVENT BUS
// ══════════════════════════════════════════════════════════════════════════════

type InMemoryEventBusConfig struct {
	// AsyncMode runs handlers on at most WorkerPoolSize goroutines instead
	// of inline in Publish.
	AsyncMode      bool
	WorkerPoolSize int

	Logger        *slog.Logger
	EnableMetrics bool
}

func DefaultInMemoryEventBusConfig() InMemoryEventBusConfig {
	return InMemoryEventBusConfig{
		AsyncMode:      true,
		WorkerPoolSize: 10,
		EnableMetrics:  true,
	}
}

// InMemoryEventBus delivers events to handlers of this process. Typed
// handlers run before catch-all ones. Handler errors and panics are logged
// and counted, never returned to the publisher.
type InMemoryEventBus struct {
	mu       sync.RWMutex
	byType   map[shared.EventType][]shared.EventHandler
	catchAll []shared.EventHandler
	closed   bool

	async   bool
	workers *semaphore.Weighted
	stop    context.Context
	halt    context.CancelFunc
	running sync.WaitGroup

	log   *slog.Logger
	stats *EventBusMetrics
}

func NewInMemoryEventBus(cfg InMemoryEventBusConfig) *InMemoryEventBus {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.WorkerPoolSize <= 0 {
		cfg.WorkerPoolSize = 10
	}

	stop, halt := context.WithCancel(context.Background())
	b := &InMemoryEventBus{
		byType:  make(map[shared.EventType][]shared.EventHandler),
		async:   cfg.AsyncMode,
		workers: semaphore.NewWeighted(int64(cfg.WorkerPoolSize)),
		stop:    stop,
		halt:    halt,
		log:     cfg.Logger,
	}
	if cfg.EnableMetrics {
		b.stats = NewEventBusMetrics()
	}
	return b
}

func (b *InMemoryEventBus) Subscribe(eventType shared.EventType, handler shared.EventHandler) error {
	return b.subscribe(handler, func() {
		b.byType[eventType] = append(b.byType[eventType], handler)
	})
}

func (b *InMemoryEventBus) SubscribeAll(handler shared.EventHandler) error {
	return b.subscribe(handler, func() {
		b.catchAll = append(b.catchAll, handler)
	})
}

func (b *InMemoryEventBus) subscribe(handler shared.EventHandler, add func()) error {
	if handler == nil {
		return ErrNilHandler
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return ErrEventBusClosed
	}
	add()
	return nil
}

// Publish fails only for a nil event or a closed bus.
func (b *InMemoryEventBus) Publish(event shared.Event) error {
	if event == nil {
		return ErrNilEvent
	}

	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return ErrEventBusClosed
	}
	typed := b.byType[event.EventType()]
	targets := make([]shared.EventHandler, 0, len(typed)+len(b.catchAll))
	targets = append(targets, typed...)
	targets = append(targets, b.catchAll...)
	if b.async {
		// Registered under the lock so Close cannot miss them.
		b.running.Add(len(targets))
	}
	b.mu.RUnlock()

	b.stats.published(event.EventType())

	for _, h := range targets {
		if b.async {
			go b.runPooled(event, h)
			continue
		}
		b.run(event, h)
	}
	return nil
}

func (b *InMemoryEventBus) runPooled(event shared.Event, h shared.EventHandler) {
	defer b.running.Done()
	if err := b.workers.Acquire(b.stop, 1); err != nil {
		return
	}
	defer b.workers.Release(1)
	b.run(event, h)
}

func (b *InMemoryEventBus) run(event shared.Event, h shared.EventHandler) {
	start := time.Now()
	err := safeCall(h, event)
	b.stats.handled(time.Since(start), err)
	if err != nil {
		b.log.Error("event handler failed", "event_type", event.EventType(), "aggregate_id", event.AggregateID(), "error", err)
	}
}

// safeCall turns a handler panic into ErrHandlerPanic.
func safeCall(h shared.EventHandler, event shared.Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrHandlerPanic, r)
		}
	}()
	return h(event)
}

// Close rejects new events, drops queued async deliveries and waits for
// the running ones.
func (b *InMemoryEventBus) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	b.mu.Unlock()

	b.halt()
	b.running.Wait()
	b.log.Info("event bus closed")
	return nil
}

// Wait blocks until every async delivery started so far has finished.
func (b *InMemoryEventBus) Wait() { b.running.Wait() }

// Metrics is nil unless EnableMetrics was set.
func (b *InMemoryEventBus) Metrics() *EventBusMetrics { return b.stats }
