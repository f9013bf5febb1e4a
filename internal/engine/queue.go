package engine

import (
	"sync"

	"github.com/roach88/splitscript/internal/timer"
)

// eventQueue is a FIFO of timer notifications waiting for the runtime lock.
//
// Notifications may arrive on any goroutine, including synchronously from a
// facade call the tick itself made. Enqueueing never blocks, so a listener
// can always hand off its event and return to the facade.
type eventQueue struct {
	mu     sync.Mutex
	events []timer.Event
	closed bool
}

func newEventQueue() *eventQueue {
	return &eventQueue{events: make([]timer.Event, 0, 8)}
}

// Enqueue adds e to the back of the queue. It returns false once closed.
func (q *eventQueue) Enqueue(e timer.Event) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}
	q.events = append(q.events, e)
	return true
}

// TryDequeue removes the front event without blocking.
func (q *eventQueue) TryDequeue() (timer.Event, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.events) == 0 {
		return timer.Event{}, false
	}
	e := q.events[0]
	if len(q.events) == 1 {
		q.events = q.events[:0]
	} else {
		q.events = q.events[1:]
	}
	return e, true
}

// Len returns the number of pending events.
func (q *eventQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.events)
}

// Close drops pending events and rejects further ones.
func (q *eventQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
	q.events = nil
}
