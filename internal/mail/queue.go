package mail

import (
	"sync"
	"time"
)

// queue is an unbounded FIFO for a single consumer. Producers push from any
// goroutine; pop blocks up to a bounded wait so the consumer can interleave
// flush-timer and shutdown checks.
type queue struct {
	mu    sync.Mutex
	items []*Message
	wake  chan struct{}
}

func newQueue() *queue {
	return &queue{wake: make(chan struct{}, 1)}
}

func (q *queue) push(m *Message) {
	q.mu.Lock()
	q.items = append(q.items, m)
	q.mu.Unlock()

	select {
	case q.wake <- struct{}{}:
	default:
	}
}

func (q *queue) tryPop() (*Message, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return nil, false
	}
	m := q.items[0]
	q.items = q.items[1:]
	return m, true
}

// pop returns the next message, waiting up to wait for one to arrive.
func (q *queue) pop(wait time.Duration) (*Message, bool) {
	if m, ok := q.tryPop(); ok {
		return m, true
	}

	timer := time.NewTimer(wait)
	defer timer.Stop()

	select {
	case <-q.wake:
		return q.tryPop()
	case <-timer.C:
		return nil, false
	}
}

// drain empties the queue in FIFO order.
func (q *queue) drain() []*Message {
	q.mu.Lock()
	defer q.mu.Unlock()
	items := q.items
	q.items = nil
	return items
}

func (q *queue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
