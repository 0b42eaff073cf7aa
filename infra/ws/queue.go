package ws

import (
	"context"
	"sync"

	"github.com/voltgrid/csms/core/ocpp"
)

// callQueue is the unbounded FIFO between the reader and the worker. The
// reader must never block on a full buffer: while a server-initiated call
// awaits its reply the station may keep sending, and the reply it owes us
// sits behind that burst on the same socket.
type callQueue struct {
	mu     sync.Mutex
	items  []*ocpp.Call
	wake   chan struct{}
	closed bool
}

func newCallQueue() *callQueue {
	return &callQueue{wake: make(chan struct{}, 1)}
}

// push enqueues a call without blocking. Pushes after close are dropped.
func (q *callQueue) push(c *ocpp.Call) {
	q.mu.Lock()
	if !q.closed {
		q.items = append(q.items, c)
	}
	q.mu.Unlock()
	q.signal()
}

// pop returns the next call in arrival order. It blocks until one is
// available; false means the queue is closed and drained, or the context
// ended while it was empty.
func (q *callQueue) pop(ctx context.Context) (*ocpp.Call, bool) {
	for {
		q.mu.Lock()
		if len(q.items) > 0 {
			c := q.items[0]
			q.items = q.items[1:]
			q.mu.Unlock()
			return c, true
		}
		closed := q.closed
		q.mu.Unlock()
		if closed {
			return nil, false
		}
		select {
		case <-q.wake:
		case <-ctx.Done():
			return nil, false
		}
	}
}

// close stops accepting pushes; pop still drains the backlog.
func (q *callQueue) close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	q.signal()
}

func (q *callQueue) signal() {
	select {
	case q.wake <- struct{}{}:
	default:
	}
}
