package messaging

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/lingofin/lingofin-hub/internal/domain/shared"
)

// EventBusMetrics counts publishes per event type and handler outcomes.
// A nil *EventBusMetrics records nothing.
type EventBusMetrics struct {
	mu     sync.Mutex
	byType map[shared.EventType]int64

	runs     atomic.Int64
	failures atomic.Int64
	busy     atomic.Int64 // nanoseconds spent in handlers
	since    time.Time
}

func NewEventBusMetrics() *EventBusMetrics {
	return &EventBusMetrics{
		byType: make(map[shared.EventType]int64),
		since:  time.Now(),
	}
}

func (m *EventBusMetrics) published(t shared.EventType) {
	if m == nil {
		return
	}
	m.mu.Lock()
	m.byType[t]++
	m.mu.Unlock()
}

func (m *EventBusMetrics) handled(d time.Duration, err error) {
	if m == nil {
		return
	}
	m.runs.Add(1)
	m.busy.Add(int64(d))
	if err != nil {
		m.failures.Add(1)
	}
}

// PublishedByType returns a copy of the per-type publish counters.
func (m *EventBusMetrics) PublishedByType() map[shared.EventType]int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[shared.EventType]int64, len(m.byType))
	for k, v := range m.byType {
		out[k] = v
	}
	return out
}

func (m *EventBusMetrics) Snapshot() EventBusMetricsSnapshot {
	snap := EventBusMetricsSnapshot{
		TotalHandlerExecs:  m.runs.Load(),
		HandlerFailures:    m.failures.Load(),
		HandlerSuccessRate: 1.0,
		LastReset:          m.since,
	}
	for _, n := range m.PublishedByType() {
		snap.TotalPublished += n
	}
	if snap.TotalHandlerExecs > 0 {
		ok := snap.TotalHandlerExecs - snap.HandlerFailures
		snap.HandlerSuccessRate = float64(ok) / float64(snap.TotalHandlerExecs)
		snap.AverageHandlerDuration = time.Duration(m.busy.Load() / snap.TotalHandlerExecs)
	}
	return snap
}

type EventBusMetricsSnapshot struct {
	TotalPublished         int64
	TotalHandlerExecs      int64
	HandlerFailures        int64
	HandlerSuccessRate     float64
	AverageHandlerDuration time.Duration
	LastReset              time.Time
}
