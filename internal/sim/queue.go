package sim

import (
	"sync"

	"github.com/roboticsapi/robotics-api-sub003/internal/sensor"
)

// delivery is one listener callback to perform, or a sync marker when
// done is set.
type delivery struct {
	listener *sensor.Listener
	value    any
	done     chan struct{}
}

// deliveryQueue is a thread-safe unbounded FIFO of deliveries.
//
// Runs enqueue from Step; a single dispatcher goroutine dequeues, so every
// listener observes values in cycle order. The signal channel allows
// waiting with select.
type deliveryQueue struct {
	mu     sync.Mutex
	items  []delivery
	closed bool
	signal chan struct{} // buffered, size 1
}

func newDeliveryQueue() *deliveryQueue {
	return &deliveryQueue{
		items:  make([]delivery, 0, 64),
		signal: make(chan struct{}, 1),
	}
}

// Enqueue adds d to the back of the queue. Returns false if the queue is
// closed.
func (q *deliveryQueue) Enqueue(d delivery) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}
	q.items = append(q.items, d)

	// a buffer of 1 coalesces signals
	select {
	case q.signal <- struct{}{}:
	default:
	}
	return true
}

// TryDequeue removes the front delivery without blocking.
func (q *deliveryQueue) TryDequeue() (delivery, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) == 0 {
		return delivery{}, false
	}
	d := q.items[0]
	// release the value for GC
	q.items[0] = delivery{}
	if len(q.items) == 1 {
		q.items = q.items[:0]
	} else {
		q.items = q.items[1:]
	}
	return d, true
}

// Wait returns a channel that signals when deliveries may be available.
// It is closed by Close.
func (q *deliveryQueue) Wait() <-chan struct{} {
	return q.signal
}

// Len returns the number of pending deliveries.
func (q *deliveryQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Close stops accepting deliveries and wakes the dispatcher.
func (q *deliveryQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}
	q.closed = true
	close(q.signal)
}
