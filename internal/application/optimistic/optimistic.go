// Package optimistic applies local mutations before the backend confirms
// them and undoes them with an exact inverse when it refuses.
package optimistic

import (
	"context"
	"fmt"
	"sync"

	"github.com/lingofin/lingofin-hub/internal/domain/shared"
	"github.com/lingofin/lingofin-hub/pkg/logger"
)

// ErrorSlot is the single user-facing "last error" of a controller. Any
// failure overwrites it; success never clears it.
type ErrorSlot struct {
	mu  sync.RWMutex
	err error
}

func (s *ErrorSlot) Set(err error) {
	if err == nil {
		return
	}
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
}

func (s *ErrorSlot) Err() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.err
}

// Message returns the error text, or "" when the slot is empty.
func (s *ErrorSlot) Message() string {
	if err := s.Err(); err != nil {
		return err.Error()
	}
	return ""
}

func (s *ErrorSlot) Clear() {
	s.mu.Lock()
	s.err = nil
	s.mu.Unlock()
}

// Command is one optimistic mutation. Apply and Revert run synchronously on
// local state and must take whatever lock guards it; Remote runs unlocked.
type Command struct {
	Name        string
	AggregateID string
	Apply       func()
	Revert      func()
	Remote      func(ctx context.Context) error
}

// Runner executes commands and reports failures into one ErrorSlot.
type Runner struct {
	slot      *ErrorSlot
	publisher shared.EventPublisher
	log       *logger.Logger
}

func NewRunner(slot *ErrorSlot, publisher shared.EventPublisher, log *logger.Logger) *Runner {
	if slot == nil {
		slot = &ErrorSlot{}
	}
	if publisher == nil {
		publisher = shared.NopPublisher{}
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Runner{slot: slot, publisher: publisher, log: log.With(logger.Component("optimistic"))}
}

func (r *Runner) Slot() *ErrorSlot { return r.slot }

// Run applies cmd locally, calls Remote and on failure reverts, records the
// error and publishes an optimistic.reverted event.
func (r *Runner) Run(ctx context.Context, cmd Command) error {
	if cmd.Apply != nil {
		cmd.Apply()
	}
	err := cmd.Remote(ctx)
	if err == nil {
		return nil
	}

	if cmd.Revert != nil {
		cmd.Revert()
	}
	r.slot.Set(err)
	r.log.Warn("optimistic update reverted",
		logger.Operation(cmd.Name),
		logger.String("aggregate_id", cmd.AggregateID),
		logger.Err(err),
	)
	if perr := r.publisher.Publish(shared.NewOptimisticRevertedEvent(cmd.Name, cmd.AggregateID, err.Error())); perr != nil {
		r.log.Error("publish revert event", logger.Err(perr))
	}
	return fmt.Errorf("%s: %w", cmd.Name, err)
}

// RunWithoutRevert is for operations whose local effect is kept (or never
// made) on failure. The error is still recorded.
func (r *Runner) RunWithoutRevert(ctx context.Context, name, aggregateID string, remote func(ctx context.Context) error) error {
	err := remote(ctx)
	if err == nil {
		return nil
	}
	r.slot.Set(err)
	r.log.Warn("remote call failed, local state kept",
		logger.Operation(name),
		logger.String("aggregate_id", aggregateID),
		logger.Err(err),
	)
	return fmt.Errorf("%s: %w", name, err)
}
