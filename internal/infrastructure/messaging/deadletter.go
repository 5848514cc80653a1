package messaging

import (
	"sync"
	"time"

	"github.com/lingofin/lingofin-hub/internal/domain/shared"
)

// DeadLetterEntry is an event a handler gave up on.
type DeadLetterEntry struct {
	Event       shared.Event
	HandlerName string
	Error       error
	FailedAt    time.Time
}

// DeadLetterQueue keeps the last N entries in a ring.
type DeadLetterQueue struct {
	mu    sync.Mutex
	ring  []DeadLetterEntry
	start int
	n     int
}

func NewDeadLetterQueue(capacity int) *DeadLetterQueue {
	if capacity < 1 {
		capacity = 1
	}
	return &DeadLetterQueue{ring: make([]DeadLetterEntry, capacity)}
}

// Add overwrites the oldest entry when full.
func (q *DeadLetterQueue) Add(e DeadLetterEntry) {
	q.mu.Lock()
	defer q.mu.Unlock()

	size := len(q.ring)
	if q.n < size {
		q.ring[(q.start+q.n)%size] = e
		q.n++
		return
	}
	q.ring[q.start] = e
	q.start = (q.start + 1) % size
}

// Entries returns the queue oldest first.
func (q *DeadLetterQueue) Entries() []DeadLetterEntry {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := make([]DeadLetterEntry, q.n)
	for i := range out {
		out[i] = q.ring[(q.start+i)%len(q.ring)]
	}
	return out
}

func (q *DeadLetterQueue) Size() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.n
}
